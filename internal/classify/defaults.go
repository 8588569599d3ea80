package classify

// DefaultChannelRules returns the built-in channel type cascade. Order
// matters: a channel name containing both "pharma" and "cosmetic" is
// Pharmaceutical because that rule is checked first.
func DefaultChannelRules() []Rule {
	return []Rule{
		{Label: "Pharmaceutical", Keywords: []string{"pharma", "drug", "medicine"}},
		{Label: "Cosmetics", Keywords: []string{"cosmetic", "beauty", "skincare"}},
		{Label: "Medical", Keywords: []string{"medical", "health", "clinic"}},
	}
}

// DefaultProductRules returns the built-in product type cascade
func DefaultProductRules() []Rule {
	return []Rule{
		{Label: "pill", Keywords: []string{"pill", "tablet", "capsule"}},
		{Label: "cream", Keywords: []string{"cream", "ointment", "gel", "lotion"}},
		{Label: "liquid", Keywords: []string{"syrup", "liquid", "solution"}},
		{Label: "injection", Keywords: []string{"injection", "inject", "ampoule"}},
		{Label: "drops", Keywords: []string{"drops", "eye"}},
	}
}

// DefaultPriceKeywords returns the built-in price mention keywords.
// "birr" and "etb" cover Ethiopian currency references common in the
// source channels.
func DefaultPriceKeywords() []string {
	return []string{"price", "birr", "etb", "cost"}
}
