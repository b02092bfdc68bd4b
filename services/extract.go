package services

import (
	"regexp"
	"strconv"
	"strings"
)

// Sri Lankan phone formats: 0XXXXXXXXX, +94XXXXXXXXX, 94XXXXXXXXX.
// Ordered so the +94 form wins over the bare 94 prefix.
var phonePattern = regexp.MustCompile(`(?:\+94\d{9}|0\d{9}|94\d{9})`)

// ExtractPhone returns the first phone number in the text, or "".
func ExtractPhone(text string) string {
	return phonePattern.FindString(text)
}

// A sequence of two to four capitalized words, e.g. "Nimal Perera".
var namePattern = regexp.MustCompile(`\b[A-Z][a-z]+(?: [A-Z][a-z]+){1,3}\b`)

// ExtractName tries the capitalized-word-sequence pattern first, then
// falls back to the first line that is not a phone number. Best effort;
// ambiguous input yields a possibly wrong answer.
func ExtractName(text string) string {
	if m := namePattern.FindString(text); m != "" {
		return m
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || phonePattern.MatchString(line) {
			continue
		}
		return line
	}

	return ""
}

// addressTokens are words that suggest a line is an address.
var addressTokens = []string{
	"road", "rd", "street", "st", "lane", "mawatha", "mw", "place",
	"gardens", "watta", "para", "junction", "town", "city",
}

// ExtractAddress looks for a line carrying an address token, then falls
// back to the second non-phone line of a multi-line message.
func ExtractAddress(text string) string {
	lines := strings.Split(text, "\n")

	for _, line := range lines {
		lower := strings.ToLower(line)
		for _, token := range addressTokens {
			if strings.Contains(lower, token) {
				return strings.TrimSpace(line)
			}
		}
	}

	// Second non-phone line heuristic
	nonPhone := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || phonePattern.MatchString(line) {
			continue
		}
		nonPhone = append(nonPhone, line)
	}
	if len(nonPhone) >= 2 {
		return nonPhone[1]
	}

	return ""
}

// quantityPattern matches a small count like "2k", "2ක්", "x2" or a
// bare "2" followed by a unit-ish word.
var quantityPattern = regexp.MustCompile(`(?:^|\s)(?:x\s*)?(\d{1,2})(?:k\b|ක්|\s*(?:pcs|pieces|units|ekak|denna|ganna))`)

// ExtractQuantity returns a quantity mentioned in the text, or 0.
func ExtractQuantity(text string) int {
	m := quantityPattern.FindStringSubmatch(strings.ToLower(text))
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}

// knownPlaces is the place-name list for the location heuristic.
var knownPlaces = []string{
	"colombo", "dehiwala", "mount lavinia", "moratuwa", "kotte", "maharagama",
	"nugegoda", "kaduwela", "homagama", "gampaha", "negombo", "kelaniya",
	"wattala", "ja-ela", "kandana", "kiribathgoda", "kalutara", "panadura",
	"horana", "kandy", "peradeniya", "matale", "nuwara eliya", "galle",
	"matara", "hambantota", "tangalle", "jaffna", "vavuniya", "trincomalee",
	"batticaloa", "ampara", "kurunegala", "puttalam", "chilaw", "anuradhapura",
	"polonnaruwa", "badulla", "bandarawela", "monaragala", "ratnapura",
	"kegalle", "avissawella", "piliyandala", "kottawa", "malabe", "athurugiriya",
}

// LooksLikeLocation applies the ask_location heuristic: a known place
// name, or a short utterance that is not really a question.
func LooksLikeLocation(text string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return false
	}

	for _, place := range knownPlaces {
		if strings.Contains(lower, place) {
			return true
		}
	}

	// Short free text with no intent keywords is probably a place we
	// just do not know.
	if len(strings.Fields(lower)) <= 3 && !ContainsIntentKeyword(lower) && ExtractPhone(lower) == "" {
		return true
	}

	return false
}

// MatchedPlace returns the known place contained in the text, or "".
func MatchedPlace(text string) string {
	lower := strings.ToLower(text)
	for _, place := range knownPlaces {
		if strings.Contains(lower, place) {
			return place
		}
	}
	return ""
}
