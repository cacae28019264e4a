// Package policy keeps caller data out of places it does not belong: phone
// numbers are masked before log lines are written and the admin surface sits
// behind credentials.
package policy

import "regexp"

var phonePattern = regexp.MustCompile(`\+?[0-9][0-9\-() ]{7,}[0-9]`)

// Callback form fields whose value is a phone number. Identifiers like
// CallSid stay untouched so operators can still correlate log lines.
var callerFields = []string{"From", "To", "Caller", "Called", "ForwardedFrom"}

// maskNumber blanks the digits of a phone number except the last two, which
// are enough to tell repeat callers apart in a log.
func maskNumber(s string) string {
	digits := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	if digits <= 2 {
		return s
	}
	out := []rune(s)
	seen := 0
	for i, r := range out {
		if r >= '0' && r <= '9' {
			seen++
			if seen <= digits-2 {
				out[i] = '*'
			}
		}
	}
	return string(out)
}

// RedactPhones masks phone numbers appearing in free text, such as a speech
// transcript quoted in a log line.
func RedactPhones(input string) (redacted string, changed bool) {
	out := phonePattern.ReplaceAllStringFunc(input, maskNumber)
	return out, out != input
}

// RedactCallback masks the caller-number fields of a provider status
// callback in place before it is appended to the durable log.
func RedactCallback(payload map[string]string) bool {
	changed := false
	for _, k := range callerFields {
		v, ok := payload[k]
		if !ok || v == "" {
			continue
		}
		if masked := maskNumber(v); masked != v {
			payload[k] = masked
			changed = true
		}
	}
	return changed
}
