// Package classify implements keyword cascades used to label channels,
// products and price mentions. A cascade is an ordered list of rules; the
// first rule whose keywords match wins, so rule order encodes priority.
package classify

import (
	"strings"

	"github.com/tphakala/medtel-go/internal/conf"
	"github.com/tphakala/medtel-go/internal/errors"
)

// Rule maps a set of keywords to a label. Matching is a case-insensitive
// substring test against the whole input text.
type Rule struct {
	Label    string
	Keywords []string
}

// Cascade is a priority-ordered rule list with a fallback label for inputs
// no rule matches.
type Cascade struct {
	rules    []Rule
	fallback string
}

// NewCascade builds a cascade from ordered rules. Keywords are lowercased
// once at construction time.
func NewCascade(rules []Rule, fallback string) *Cascade {
	normalized := make([]Rule, 0, len(rules))
	for _, r := range rules {
		keywords := make([]string, 0, len(r.Keywords))
		for _, kw := range r.Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw != "" {
				keywords = append(keywords, kw)
			}
		}
		normalized = append(normalized, Rule{Label: r.Label, Keywords: keywords})
	}
	return &Cascade{rules: normalized, fallback: fallback}
}

// Classify returns the label of the first matching rule, or the fallback
// label when nothing matches. An empty input always falls through.
func (c *Cascade) Classify(text string) string {
	if text == "" {
		return c.fallback
	}
	lowered := strings.ToLower(text)
	for _, rule := range c.rules {
		for _, kw := range rule.Keywords {
			if strings.Contains(lowered, kw) {
				return rule.Label
			}
		}
	}
	return c.fallback
}

// Fallback returns the label used when no rule matches
func (c *Cascade) Fallback() string {
	return c.fallback
}

// Labels returns every label the cascade can produce, fallback last
func (c *Cascade) Labels() []string {
	labels := make([]string, 0, len(c.rules)+1)
	for _, rule := range c.rules {
		labels = append(labels, rule.Label)
	}
	return append(labels, c.fallback)
}

// Matcher reports whether any of its keywords occur in a text. Used for
// boolean flags such as price mentions where no label is needed.
type Matcher struct {
	keywords []string
}

// NewMatcher builds a keyword matcher
func NewMatcher(keywords []string) *Matcher {
	normalized := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			normalized = append(normalized, kw)
		}
	}
	return &Matcher{keywords: normalized}
}

// Matches performs a case-insensitive substring test
func (m *Matcher) Matches(text string) bool {
	if text == "" {
		return false
	}
	lowered := strings.ToLower(text)
	for _, kw := range m.keywords {
		if strings.Contains(lowered, kw) {
			return true
		}
	}
	return false
}

// Classifiers bundles every cascade the fact builders need
type Classifiers struct {
	ChannelType *Cascade
	ProductType *Cascade
	Price       *Matcher
}

// FromSettings builds the classifier set from configuration, falling back
// to the built-in rule sets for any cascade left empty.
func FromSettings(settings *conf.Settings) (*Classifiers, error) {
	channelRules, err := rulesFromSettings(settings.Pipeline.Classify.ChannelRules)
	if err != nil {
		return nil, errors.New(err).
			Component("classify").
			Category(errors.CategoryConfiguration).
			Context("cascade", "channel_type").
			Build()
	}
	if len(channelRules) == 0 {
		channelRules = DefaultChannelRules()
	}

	productRules, err := rulesFromSettings(settings.Pipeline.Classify.ProductRules)
	if err != nil {
		return nil, errors.New(err).
			Component("classify").
			Category(errors.CategoryConfiguration).
			Context("cascade", "product_type").
			Build()
	}
	if len(productRules) == 0 {
		productRules = DefaultProductRules()
	}

	priceKeywords := settings.Pipeline.Classify.PriceKeywords
	if len(priceKeywords) == 0 {
		priceKeywords = DefaultPriceKeywords()
	}

	return &Classifiers{
		ChannelType: NewCascade(channelRules, "Other"),
		ProductType: NewCascade(productRules, "other"),
		Price:       NewMatcher(priceKeywords),
	}, nil
}

func rulesFromSettings(settings []conf.RuleSetting) ([]Rule, error) {
	rules := make([]Rule, 0, len(settings))
	for i, rs := range settings {
		if rs.Label == "" {
			return nil, errors.Newf("rule %d has no label", i).Build()
		}
		if len(rs.Keywords) == 0 {
			return nil, errors.Newf("rule %q has no keywords", rs.Label).Build()
		}
		rules = append(rules, Rule{Label: rs.Label, Keywords: rs.Keywords})
	}
	return rules, nil
}
