package services

import (
	"fmt"
	"strings"

	"messenger-shop-bot/models"
)

// A customer gets this many retry prompts at the order-confirmation step
// before the flow gives up and resets.
const orderRetryCap = 2

// Delivery fees announced once the customer names their town.
const (
	DeliveryFeeColombo    = "Rs. 350"
	DeliveryFeeOutstation = "Rs. 450"
)

// colomboAreaPlaces get the lower delivery fee.
var colomboAreaPlaces = []string{
	"colombo", "dehiwala", "mount lavinia", "moratuwa", "kotte", "maharagama",
	"nugegoda", "kaduwela", "homagama", "piliyandala", "kottawa", "malabe",
	"athurugiriya", "wattala", "kelaniya", "kiribathgoda",
}

// DialogueResult tells the orchestrator what the flow decided. The
// transition function never touches the database or the network itself.
type DialogueResult struct {
	// Handled is false when the message does not belong to the flow and
	// should fall through to the intent handlers.
	Handled bool
	Reply   string
	// Interrupted means a question broke the order flow; the message
	// should be re-dispatched through the intent handlers.
	Interrupted bool
	// SaveLead asks for a partial lead write (location captured).
	SaveLead bool
	// SaveOrder asks for the completed order write.
	SaveOrder bool
	// ClearContext removes the sender's dialogue state.
	ClearContext bool
}

var agreementWords = []string{"ow", "owu", "ov", "yes", "hari", "ok", "okay", "okey", "one", "ona", "onna", "sure"}
var disagreementWords = []string{"no", "na", "naa", "nae", "nehe", "epa", "bae", "not now"}

func containsWord(text string, words []string) bool {
	lower := strings.ToLower(text)
	fields := strings.Fields(lower)
	for _, w := range words {
		if strings.Contains(w, " ") {
			if strings.Contains(lower, w) {
				return true
			}
			continue
		}
		for _, f := range fields {
			if strings.Trim(f, ".,!?") == w {
				return true
			}
		}
	}
	return false
}

// StartAdFlow initializes the flow for a conversation that began from an
// ad referral: remember the ad and ask where the customer is.
func StartAdFlow(cc *ConversationContext, adID string) string {
	cc.AdID = adID
	cc.Step = StepAskLocation
	cc.AskedLocation = true
	return "Hi! Thank you for your interest. 😊 Could you tell me which town you're in, so I can check the delivery charge?"
}

// Advance runs one step of the dialogue state machine. It mutates cc and
// returns the decision; all side effects stay with the caller.
func Advance(cc *ConversationContext, text string, intent Intent, products []models.Product) DialogueResult {
	switch cc.Step {
	case StepAskLocation:
		return advanceAskLocation(cc, text)
	case StepAskOrder:
		return advanceAskOrder(cc, text, intent)
	case StepCollectName:
		return advanceCollectName(cc, text, products)
	case StepCollectAddress:
		return advanceCollectAddress(cc, text)
	case StepCollectPhone:
		return advanceCollectPhone(cc, text, products)
	}
	return DialogueResult{}
}

func advanceAskLocation(cc *ConversationContext, text string) DialogueResult {
	if !LooksLikeLocation(text) {
		// Not a location: drop out of the flow and let the intent
		// handlers answer whatever this was.
		cc.Step = StepNone
		return DialogueResult{}
	}

	location := MatchedPlace(text)
	if location == "" {
		location = strings.TrimSpace(text)
	}
	cc.Location = location
	cc.Step = StepAskOrder
	cc.AskedOrder = true

	return DialogueResult{
		Handled:  true,
		SaveLead: true,
		Reply: fmt.Sprintf("Great, delivery to %s is %s. 🚚 Would you like to place an order?",
			location, DeliveryFee(location)),
	}
}

// DeliveryFee quotes the fee for a town. Anywhere we don't recognize as
// the Colombo area gets the outstation rate.
func DeliveryFee(location string) string {
	lower := strings.ToLower(location)
	for _, place := range colomboAreaPlaces {
		if strings.Contains(lower, place) {
			return DeliveryFeeColombo
		}
	}
	return DeliveryFeeOutstation
}

func advanceAskOrder(cc *ConversationContext, text string, intent Intent) DialogueResult {
	// A question mid-flow must not trap the customer: reset and let the
	// intent handlers answer it.
	if HighPriority(intent) {
		cc.Step = StepNone
		cc.OrderRetries = 0
		return DialogueResult{Interrupted: true}
	}

	if containsWord(text, agreementWords) {
		cc.Step = StepCollectName
		cc.OrderRetries = 0
		return DialogueResult{
			Handled: true,
			Reply:   "Perfect! 🎉 May I have your name please?",
		}
	}

	if containsWord(text, disagreementWords) {
		cc.Step = StepNone
		cc.OrderRetries = 0
		return DialogueResult{
			Handled: true,
			Reply:   "No problem at all! Message me anytime if you'd like to order. 😊",
		}
	}

	cc.OrderRetries++
	if cc.OrderRetries >= orderRetryCap {
		cc.Step = StepNone
		cc.OrderRetries = 0
		return DialogueResult{
			Handled: true,
			Reply:   "That's okay! If you decide to order later just say \"order\" and I'll help you. 😊",
		}
	}

	return DialogueResult{
		Handled: true,
		Reply:   "Shall I put an order through for you? Please reply \"yes\" or \"no\".",
	}
}

func advanceCollectName(cc *ConversationContext, text string, products []models.Product) DialogueResult {
	// Customers often paste name, address and phone in one message.
	// Take everything we can and skip ahead.
	if phone := ExtractPhone(text); phone != "" {
		cc.Phone = phone
		if name := ExtractName(text); name != "" {
			cc.Name = name
		}
		if address := ExtractAddress(text); address != "" {
			cc.Address = address
		}
		return completeOrder(cc, products)
	}

	name := ExtractName(text)
	if name == "" {
		name = strings.TrimSpace(text)
	}
	cc.Name = name
	cc.Step = StepCollectAddress

	return DialogueResult{
		Handled: true,
		Reply:   fmt.Sprintf("Thank you %s! Please send me your delivery address.", cc.Name),
	}
}

func advanceCollectAddress(cc *ConversationContext, text string) DialogueResult {
	// Raw text as given; no validation at this step.
	cc.Address = strings.TrimSpace(text)
	cc.Step = StepCollectPhone

	return DialogueResult{
		Handled: true,
		Reply:   "Got it. 📦 Finally, what's your phone number? (e.g. 0771234567)",
	}
}

func advanceCollectPhone(cc *ConversationContext, text string, products []models.Product) DialogueResult {
	phone := ExtractPhone(text)
	if phone == "" {
		return DialogueResult{
			Handled: true,
			Reply:   "That doesn't look like a phone number. Please send it like 0771234567 or +94771234567.",
		}
	}

	cc.Phone = phone
	return completeOrder(cc, products)
}

func completeOrder(cc *ConversationContext, products []models.Product) DialogueResult {
	summary := OrderSummary(products, cc.Quantity)

	reply := "Thank you! ✅ Your order has been recorded"
	if summary != "" {
		reply += " for " + summary
	}
	reply += ". We'll call you on " + cc.Phone + " to confirm. 🙏"

	cc.Step = StepNone
	return DialogueResult{
		Handled:      true,
		Reply:        reply,
		SaveOrder:    true,
		ClearContext: true,
	}
}

// OrderSummary builds the product summary written to the lead row: the
// first product line truncated to 50 chars, with a quantity suffix when
// the customer mentioned one.
func OrderSummary(products []models.Product, quantity int) string {
	if len(products) == 0 {
		return ""
	}

	line := products[0].Name
	if products[0].Price != "" {
		line += " - " + products[0].Price
	}
	if len(line) > 50 {
		line = line[:50]
	}
	if quantity > 1 {
		line += fmt.Sprintf(" (x%d)", quantity)
	}
	return line
}
