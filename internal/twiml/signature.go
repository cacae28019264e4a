package twiml

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"io"
	"net/url"
	"sort"
)

// Sign computes the provider's webhook signature: HMAC-SHA1 over the full
// request URL followed by the form parameters, names sorted, each name
// immediately followed by its value, base64 encoded.
func Sign(token, requestURL string, form url.Values) string {
	mac := hmac.New(sha1.New, []byte(token))
	io.WriteString(mac, requestURL)
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		io.WriteString(mac, k)
		io.WriteString(mac, form.Get(k))
	}
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// ValidateSignature checks a webhook signature header against the auth
// token. An empty token disables the check entirely, which is how local
// setups without provider credentials run.
func ValidateSignature(token, requestURL string, form url.Values, signature string) bool {
	if token == "" {
		return true
	}
	want := Sign(token, requestURL, form)
	return hmac.Equal([]byte(want), []byte(signature))
}
