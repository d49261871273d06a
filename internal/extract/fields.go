package extract

import (
	"strconv"
	"strings"
)

// UnknownMerchant is the sentinel merchant name when OCR produced no usable
// lines.
const UnknownMerchant = "Unknown"

// Fields is the structured result of receipt text extraction. It is always
// fully populated: MerchantName falls back to UnknownMerchant and TotalAmount
// to 0.0 when nothing could be extracted.
type Fields struct {
	MerchantName string
	TotalAmount  float64

	// TotalFound distinguishes a parsed total from the 0.0 default. A genuine
	// $0.00 total is indistinguishable from "not found" and reports false.
	TotalFound bool
}

// Degraded is the substitute result when the extraction sub-pipeline failed
// before any text was available.
func Degraded() Fields {
	return Fields{MerchantName: UnknownMerchant, TotalAmount: 0.0}
}

// currency/punctuation noise stripped from candidate amount tokens, in order
var stripTokens = []string{"Rs", "$", ",", ":"}

// FromText extracts the merchant name and total amount from raw recognized
// text. The merchant name is the first non-blank line. The total is found by
// scanning lines containing "total" (case-insensitive) and taking the first
// whitespace-separated token that parses as a number once currency noise is
// stripped. The scan is greedy: the first parseable token on a matching line
// wins, even when a later token on the same line would be a more plausible
// amount.
func FromText(text string) Fields {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}

	out := Degraded()
	if len(lines) > 0 {
		out.MerchantName = lines[0]
	}

	for _, line := range lines {
		if !strings.Contains(strings.ToLower(line), "total") {
			continue
		}
		for _, word := range strings.Fields(line) {
			v, err := strconv.ParseFloat(stripNoise(word), 64)
			if err != nil {
				continue
			}
			out.TotalAmount = v
			break
		}
		// A parsed 0.0 keeps scanning later lines, same as the "not found"
		// case. See Fields.TotalFound.
		if out.TotalAmount != 0 {
			out.TotalFound = true
			break
		}
	}

	if !out.TotalFound {
		out.TotalAmount = 0.0
	}
	return out
}

func stripNoise(word string) string {
	for _, s := range stripTokens {
		word = strings.ReplaceAll(word, s, "")
	}
	return word
}
