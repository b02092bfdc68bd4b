package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		utterance string
		want      Intent
	}{
		{"availability sinhala", "meka thiyanawada?", IntentAvailability},
		{"availability english", "is this available", IntentAvailability},
		{"photos", "photo ekak evanna", IntentPhotos},
		{"delivery", "delivery charge kohomada", IntentDelivery},
		{"details", "vistara tikak kiyala denna", IntentDetails},
		{"dimensions", "mekey size eka mokakda", IntentDimensions},
		{"price sinhala", "meka kiyada", IntentPrice},
		{"price english", "how much is this", IntentPrice},
		{"total", "total eka danna", IntentTotalPrice},
		{"product list", "monawada thiyenne", IntentProductList},
		{"how to order", "order karanne kohomada", IntentHowToOrder},
		{"greeting is general", "hello", IntentGeneral},
		{"empty is general", "", IntentGeneral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.utterance)
			assert.Equal(t, tt.want, got.Intent)
		})
	}
}

func TestClassifyConfidence(t *testing.T) {
	matched := Classify("meka kiyada")
	assert.Equal(t, 0.9, matched.Confidence)

	general := Classify("hello there")
	assert.Equal(t, 0.5, general.Confidence)
}

// Price keywords outrank total-price ones when both appear, so a mixed
// question gets the simpler answer.
func TestClassifyTieBreak(t *testing.T) {
	got := Classify("okkoma kiyada")
	assert.Equal(t, IntentPrice, got.Intent)
}

func TestClassifyExtractsQuantity(t *testing.T) {
	got := Classify("meka 2k thiyanawada")
	assert.Equal(t, IntentAvailability, got.Intent)
	assert.Equal(t, 2, got.Entities.Quantity)
}

func TestHighPriority(t *testing.T) {
	assert.True(t, HighPriority(IntentPrice))
	assert.True(t, HighPriority(IntentAvailability))
	assert.True(t, HighPriority(IntentDelivery))
	assert.False(t, HighPriority(IntentHowToOrder))
	assert.False(t, HighPriority(IntentGeneral))
}

func TestContainsIntentKeyword(t *testing.T) {
	assert.True(t, ContainsIntentKeyword("kiyada"))
	assert.False(t, ContainsIntentKeyword("kandy"))
}

func TestParseIntent(t *testing.T) {
	intent, ok := parseIntent("price_inquiry")
	assert.True(t, ok)
	assert.Equal(t, IntentPrice, intent)

	intent, ok = parseIntent("nonsense")
	assert.False(t, ok)
	assert.Equal(t, IntentGeneral, intent)
}
