// Package dutch contains the text primitives for understanding Dutch caller
// utterances: normalisation, yes/no detection, digit extraction and the small
// closed vocabularies (number words, connectives) the order flow relies on.
//
// Everything operates on speech-to-text output, so matching is deliberately
// forgiving: diacritics are stripped, apostrophes folded, punctuation ignored.
package dutch

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Answer is the outcome of a yes/no question.
type Answer int

const (
	AnswerUnknown Answer = iota
	AnswerYes
	AnswerNo
)

var (
	postcodePattern    = regexp.MustCompile(`\b\d{4}\s?[A-Za-z]{2}\b`)
	houseNumberPattern = regexp.MustCompile(`\b\d{1,4}[A-Za-z]?\b`)
	connectivePattern  = regexp.MustCompile(`,| en dan | plus | & | en `)

	stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

	apostropheFolder = strings.NewReplacer("’", "'", "‘", "'", "ʼ", "'")

	// Negations are tested before affirmations: "klopt niet" contains "klopt"
	// but is a refusal.
	noPhrases  = []string{"nee", "niets", "dat was het", "is alles", "klaar", "klopt niet", "anders"}
	yesPhrases = []string{"ja", "jazeker", "klopt", "is goed", "oke", "is prima", "correct"}

	numberWords = map[string]int{
		"een": 1, "twee": 2, "drie": 3, "vier": 4, "vijf": 5,
		"zes": 6, "zeven": 7, "acht": 8, "negen": 9, "tien": 10,
	}
)

// Normalize folds an utterance into the canonical matching form: lower case,
// diacritics stripped, apostrophes removed (so "pizza's" becomes "pizzas"),
// punctuation turned into spaces and whitespace collapsed. The transcript
// variants hawaii/hawaï both end up as "hawai".
func Normalize(text string) string {
	s := strings.ToLower(text)
	s = apostropheFolder.Replace(s)
	s = strings.ReplaceAll(s, "'", "")
	if folded, _, err := transform.String(stripMarks, s); err == nil {
		s = folded
	}

	var b strings.Builder
	b.Grow(len(s))
	prevSpace := true
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			prevSpace = false
		default:
			if !prevSpace {
				b.WriteByte(' ')
				prevSpace = true
			}
		}
	}
	s = strings.TrimSpace(b.String())
	return strings.ReplaceAll(s, "hawaii", "hawai")
}

// YesNo classifies a normalised or raw utterance as an affirmation, a refusal
// or neither. Phrases match on word boundaries only.
func YesNo(text string) Answer {
	padded := " " + Normalize(text) + " "
	for _, p := range noPhrases {
		if strings.Contains(padded, " "+p+" ") {
			return AnswerNo
		}
	}
	for _, p := range yesPhrases {
		if strings.Contains(padded, " "+p+" ") {
			return AnswerYes
		}
	}
	return AnswerUnknown
}

// PhoneDigits extracts the digits of a spoken phone number. A number starting
// with the country prefix 31 is rewritten to national notation (leading 0).
func PhoneDigits(text string) string {
	var b strings.Builder
	for _, r := range text {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	d := b.String()
	if strings.HasPrefix(d, "31") && len(d) >= 11 {
		return "0" + d[2:]
	}
	return d
}

// Postcode finds the first Dutch postcode (four digits, two letters) in text
// and returns it upper-cased without the optional space.
func Postcode(text string) (string, bool) {
	m := postcodePattern.FindString(text)
	if m == "" {
		return "", false
	}
	return strings.ToUpper(strings.ReplaceAll(m, " ", "")), true
}

// CutPostcode is Postcode plus the remainder of the text with the match
// removed, so a following house-number scan cannot pick up the postcode's own
// digits ("1234 AB 5" must yield house number "5").
func CutPostcode(text string) (postcode, rest string, ok bool) {
	loc := postcodePattern.FindStringIndex(text)
	if loc == nil {
		return "", text, false
	}
	pc := strings.ToUpper(strings.ReplaceAll(text[loc[0]:loc[1]], " ", ""))
	return pc, text[:loc[0]] + " " + text[loc[1]:], true
}

// HouseNumber finds the first house number (1-4 digits, optional letter).
func HouseNumber(text string) (string, bool) {
	m := houseNumberPattern.FindString(text)
	if m == "" {
		return "", false
	}
	return m, true
}

// NumberWord maps the Dutch number words one through ten to their value.
// The accented "één" resolves through normalisation.
func NumberWord(word string) (int, bool) {
	n, ok := numberWords[Normalize(word)]
	return n, ok
}

// SplitSegments splits an utterance into order segments on the spoken
// connectives (",", "en", "en dan", "plus", "&"). Segments are lower-cased
// but otherwise raw; callers normalise them individually.
func SplitSegments(text string) []string {
	parts := connectivePattern.Split(strings.ToLower(text), -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
