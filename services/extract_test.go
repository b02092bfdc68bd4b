package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractPhone(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"local format", "0771234567", "0771234567"},
		{"plus94 format", "call me +94771234567", "+94771234567"},
		{"bare 94 prefix", "94771234567 thanks", "94771234567"},
		{"embedded in sentence", "my number is 0712345678 call after 6", "0712345678"},
		{"no phone", "I live in Kandy", ""},
		{"too short", "077123", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractPhone(tt.text))
		})
	}
}

func TestExtractName(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"capitalized pair", "Nimal Perera", "Nimal Perera"},
		{"three words", "my name is Kasun Sampath Fernando", "Kasun Sampath Fernando"},
		{"first line fallback", "nimal perera\n0771234567", "nimal perera"},
		{"skips phone line", "0771234567\nsunil", "sunil"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractName(tt.text))
		})
	}
}

func TestExtractAddress(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"road token", "Nimal Perera\n123 Galle Road, Colombo 03\n0771234567", "123 Galle Road, Colombo 03"},
		{"mawatha token", "45 Sirimavo Mawatha Kandy", "45 Sirimavo Mawatha Kandy"},
		{"second line fallback", "Nimal\nsome place kurunduwatte\n0771234567", "some place kurunduwatte"},
		{"single line no token", "Nimal Perera", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractAddress(tt.text))
		})
	}
}

func TestExtractQuantity(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"suffix k", "meka 2k ganna puluwanda", 2},
		{"pcs unit", "I need 5 pcs", 5},
		{"ganna unit", "3 ganna one", 3},
		{"two digits", "25k thiyanawada", 25},
		{"no quantity", "kiyada meka", 0},
		{"bare number", "I live at number 7", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractQuantity(tt.text))
		})
	}
}

func TestLooksLikeLocation(t *testing.T) {
	tests := []struct {
		name string
		text string
		want bool
	}{
		{"known place", "Kandy", true},
		{"known place in sentence", "I live in Moratuwa", true},
		{"unknown short place", "Pitakotuwa", true},
		{"question word", "kiyada", false},
		{"delivery question", "what is the delivery charge for this", false},
		{"phone number", "0771234567", false},
		{"empty", "   ", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LooksLikeLocation(tt.text))
		})
	}
}

func TestMatchedPlace(t *testing.T) {
	assert.Equal(t, "nugegoda", MatchedPlace("Nugegoda town"))
	assert.Equal(t, "mount lavinia", MatchedPlace("im in Mount Lavinia"))
	assert.Equal(t, "", MatchedPlace("somewhere else"))
}
