package services

import (
	"log/slog"
	"regexp"
	"strings"
)

// Product or brand names the model has been seen inventing. A reply may
// only mention them when the product context itself does.
var forbiddenTerms = []string{
	"samsung", "lg", "sony", "apple", "huawei", "xiaomi",
	"stainless steel", "imported", "warranty card",
}

// Phrases that only ever appear in hallucinated replies.
var hallucinatedPhrases = []string{
	"price on request",
	"contact us for pricing",
	"prices may vary",
}

var priceMentionPattern = regexp.MustCompile(`(?i)rs\.?\s*[\d,]+`)

var affirmativeTokens = []string{"yes", "ow", "owu", "available", "thiyanawa", "thiyenawa", "we have", "in stock"}
var negativeTokens = []string{"no", "na", "nehe", "not available", "out of stock", "sold out", "ne "}

// ValidateReply runs the post-hoc hallucination guard on a generated
// reply. It returns false (with a reason) when the reply must be
// replaced with the deterministic fallback. This is a last-line filter,
// not a correctness guarantee.
func ValidateReply(reply, productContext, userMessage string) (bool, string) {
	replyLower := strings.ToLower(reply)
	contextLower := strings.ToLower(productContext)

	// (a) forbidden terms not present in the actual product context
	for _, term := range forbiddenTerms {
		if strings.Contains(replyLower, term) && !strings.Contains(contextLower, term) {
			return false, "forbidden term: " + term
		}
	}

	// (b) quoted prices must appear verbatim in the product context
	for _, price := range priceMentionPattern.FindAllString(reply, -1) {
		normalized := normalizePrice(price)
		if !strings.Contains(normalizePrice(productContext), normalized) {
			return false, "price not in context: " + price
		}
	}

	// (c) availability questions need a definite answer
	if isAvailabilityQuestion(userMessage) {
		hasAnswer := false
		for _, token := range append(append([]string{}, affirmativeTokens...), negativeTokens...) {
			if strings.Contains(replyLower, token) {
				hasAnswer = true
				break
			}
		}
		if !hasAnswer {
			return false, "availability question without a yes/no answer"
		}
	}

	// (d) known hallucinated stock phrases
	for _, phrase := range hallucinatedPhrases {
		if strings.Contains(replyLower, phrase) {
			return false, "hallucinated phrase: " + phrase
		}
	}

	return true, ""
}

// FallbackReply builds the deterministic substitute from verified
// product data only.
func FallbackReply(productContext string) string {
	if productContext == "" {
		return "Thank you for your message! 😊 Let me check on that and get back to you shortly."
	}
	return "Here's what we have right now:\n\n" + productContext + "\n\nPlease let me know which one you're interested in! 😊"
}

// CheckedReply validates and substitutes in one step, logging rejects.
func CheckedReply(reply, productContext, userMessage string) string {
	ok, reason := ValidateReply(reply, productContext, userMessage)
	if ok {
		return reply
	}

	slog.Warn("Reply rejected by validator", "reason", reason)
	return FallbackReply(productContext)
}

func isAvailabilityQuestion(userMessage string) bool {
	return Classify(userMessage).Intent == IntentAvailability
}

// normalizePrice strips spaces, dots and commas so "Rs. 5,000" and
// "Rs.5000" compare equal.
func normalizePrice(s string) string {
	s = strings.ToLower(s)
	for _, r := range []string{" ", ".", ","} {
		s = strings.ReplaceAll(s, r, "")
	}
	return s
}
