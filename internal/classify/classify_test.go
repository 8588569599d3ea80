package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/medtel-go/internal/conf"
)

func TestCascadePriorityOrder(t *testing.T) {
	t.Parallel()

	cascade := NewCascade(DefaultProductRules(), "other")

	tests := []struct {
		name string
		text string
		want string
	}{
		{"single match", "Paracetamol tablet 500mg", "pill"},
		{"case insensitive", "PARACETAMOL TABLET", "pill"},
		{"first rule wins over later rule", "tablet dissolved in solution", "pill"},
		{"cream before liquid", "gel solution for skin", "cream"},
		{"drops", "eye drops twice daily", "drops"},
		{"no match falls through", "bandages and gauze", "other"},
		{"empty text falls through", "", "other"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, cascade.Classify(tt.text))
		})
	}
}

func TestChannelCascade(t *testing.T) {
	t.Parallel()

	cascade := NewCascade(DefaultChannelRules(), "Other")

	// pharma outranks everything later in the cascade
	assert.Equal(t, "Pharmaceutical", cascade.Classify("tikvahpharma Medical Supplies"))
	assert.Equal(t, "Cosmetics", cascade.Classify("lobelia4cosmetics"))
	assert.Equal(t, "Medical", cascade.Classify("cheMed123 Health Channel"))
	assert.Equal(t, "Other", cascade.Classify("random_channel"))
}

func TestPriceMatcher(t *testing.T) {
	t.Parallel()

	matcher := NewMatcher(DefaultPriceKeywords())

	assert.True(t, matcher.Matches("Paracetamol tablet 500mg, price 200 birr"))
	assert.True(t, matcher.Matches("Only 150 ETB!"))
	assert.False(t, matcher.Matches("Paracetamol tablet 500mg"))
	assert.False(t, matcher.Matches(""))
}

func TestFromSettingsDefaults(t *testing.T) {
	t.Parallel()

	settings := &conf.Settings{}
	classifiers, err := FromSettings(settings)
	require.NoError(t, err)

	assert.Equal(t, "pill", classifiers.ProductType.Classify("vitamin capsule"))
	assert.Equal(t, "Pharmaceutical", classifiers.ChannelType.Classify("acme pharma"))
	assert.True(t, classifiers.Price.Matches("cost: 40"))
}

func TestFromSettingsCustomRules(t *testing.T) {
	t.Parallel()

	settings := &conf.Settings{}
	settings.Pipeline.Classify.ProductRules = []conf.RuleSetting{
		{Label: "device", Keywords: []string{"monitor", "thermometer"}},
	}

	classifiers, err := FromSettings(settings)
	require.NoError(t, err)

	assert.Equal(t, "device", classifiers.ProductType.Classify("blood pressure monitor"))
	// custom rules replace the defaults entirely
	assert.Equal(t, "other", classifiers.ProductType.Classify("paracetamol tablet"))
}

func TestFromSettingsRejectsInvalidRules(t *testing.T) {
	t.Parallel()

	settings := &conf.Settings{}
	settings.Pipeline.Classify.ChannelRules = []conf.RuleSetting{
		{Label: "", Keywords: []string{"x"}},
	}

	_, err := FromSettings(settings)
	assert.Error(t, err)
}
