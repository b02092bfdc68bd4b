package services

import "strings"

// Intent is a closed-set classification of what a customer message asks for.
type Intent string

const (
	IntentAvailability Intent = "product_availability"
	IntentPhotos       Intent = "photo_request"
	IntentDelivery     Intent = "delivery_cost"
	IntentDetails      Intent = "product_details"
	IntentDimensions   Intent = "product_dimensions"
	IntentPrice        Intent = "price_inquiry"
	IntentTotalPrice   Intent = "total_price"
	IntentProductList  Intent = "product_list"
	IntentHowToOrder   Intent = "how_to_order"
	IntentGeneral      Intent = "general"
)

// Entities extracted alongside an intent.
type Entities struct {
	Product  string `json:"product,omitempty"`
	Quantity int    `json:"quantity,omitempty"`
}

// Classification is the result of routing a customer message.
type Classification struct {
	Intent     Intent
	Confidence float64
	Entities   Entities
}

// intentKeywords holds the per-intent phrase tables. Customers write in
// transliterated Sinhala or English, often mixed in one message.
// Check order is the tie-break: earlier entries win when several match.
var intentKeywords = []struct {
	intent  Intent
	phrases []string
}{
	{IntentAvailability, []string{
		"thiyanawada", "thiyenawada", "tiyanawada", "tiyenawada", "thiyanawa da",
		"available", "in stock", "stock eka", "ganna puluwanda", "ethida",
	}},
	{IntentPhotos, []string{
		"photo", "photos", "pic ", "pics", "picture", "image", "images",
		"pinthura", "pintura", "photo ekak", "balanna evanna",
	}},
	{IntentDelivery, []string{
		"delivery", "deliver", "courier", "transport", "gedarata",
		"delivery charge", "delivery fee", "delivery gana", "evanna puluwanda",
	}},
	{IntentDetails, []string{
		"details", "detail", "vistara", "wistara", "visthara", "info",
		"mokakda meka", "kiyala denna",
	}},
	{IntentDimensions, []string{
		"size", "sizes", "dimension", "dimensions", "height", "width",
		"usa", "palala", "adi ", "loku da", "podi da",
	}},
	{IntentPrice, []string{
		"price", "kiyada", "keeyada", "kíyada", "mila", "gana kiyada",
		"how much", "cost",
	}},
	{IntentTotalPrice, []string{
		"total", "okkoma kiyada", "mulu gana", "altogether", "full price",
	}},
	{IntentProductList, []string{
		"mokada thiyenne", "monawada thiyenne", "what do you have",
		"items", "item list", "product list", "catalogue", "catalog",
	}},
	{IntentHowToOrder, []string{
		"how to order", "order karanne kohomada", "order danna", "order karanna",
		"ganne kohomada", "buy karanna",
	}},
}

// Classify runs the keyword-table classifier. The first matching intent
// in table order wins; no match yields the general intent.
func Classify(utterance string) Classification {
	text := strings.ToLower(utterance)

	for _, entry := range intentKeywords {
		for _, phrase := range entry.phrases {
			if strings.Contains(text, phrase) {
				return Classification{
					Intent:     entry.intent,
					Confidence: 0.9,
					Entities:   Entities{Quantity: ExtractQuantity(text)},
				}
			}
		}
	}

	return Classification{Intent: IntentGeneral, Confidence: 0.5, Entities: Entities{}}
}

// ContainsIntentKeyword reports whether the text matches any non-general
// intent phrase. The location heuristic uses this to reject utterances
// that are really questions.
func ContainsIntentKeyword(text string) bool {
	c := Classify(text)
	return c.Intent != IntentGeneral
}

// HighPriority reports whether an intent should interrupt the order
// dialogue so the customer's question gets answered instead of trapping
// them in the flow.
func HighPriority(intent Intent) bool {
	switch intent {
	case IntentAvailability, IntentPhotos, IntentDelivery, IntentDetails,
		IntentDimensions, IntentPrice, IntentTotalPrice, IntentProductList:
		return true
	}
	return false
}

// intentNames returns all intent values for the tool schema enum.
func intentNames() []string {
	return []string{
		string(IntentAvailability),
		string(IntentPhotos),
		string(IntentDelivery),
		string(IntentDetails),
		string(IntentDimensions),
		string(IntentPrice),
		string(IntentTotalPrice),
		string(IntentProductList),
		string(IntentHowToOrder),
		string(IntentGeneral),
	}
}

// parseIntent maps a string back to an Intent.
func parseIntent(s string) (Intent, bool) {
	for _, name := range intentNames() {
		if s == name {
			return Intent(s), true
		}
	}
	return IntentGeneral, false
}
