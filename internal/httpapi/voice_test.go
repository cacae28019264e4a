package httpapi

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"sort"
	"strings"
	"testing"

	"github.com/antoniostano/sara/internal/config"
	"github.com/antoniostano/sara/internal/runtime"
	"github.com/antoniostano/sara/internal/tts"
)

func getBody(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	res, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	raw, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatal(err)
	}
	return res, string(raw)
}

func postForm(t *testing.T, target string, form url.Values) (*http.Response, string) {
	t.Helper()
	res, err := http.PostForm(target, form)
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	raw, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatal(err)
	}
	return res, string(raw)
}

// signWebhook mirrors the provider's webhook signing scheme so the tests do
// not depend on the implementation under test.
func signWebhook(token, rawURL string, form url.Values) string {
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	mac := hmac.New(sha1.New, []byte(token))
	io.WriteString(mac, rawURL)
	for _, k := range keys {
		io.WriteString(mac, k+form.Get(k))
	}
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestIncomingOpen(t *testing.T) {
	ts, f := newTestServer(t, config.Config{}, nil)
	f.force(t, runtime.OverrideOpen)

	res, body := getBody(t, ts.URL+"/voice/incoming")
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", res.StatusCode)
	}
	if ct := res.Header.Get("Content-Type"); ct != "text/xml" {
		t.Fatalf("content type = %q", ct)
	}
	if !strings.Contains(body, "/tts?text=Welkom+bij+Sara") {
		t.Fatalf("no greeting play in %q", body)
	}
	if !strings.Contains(body, `<Redirect method="POST">`+ts.URL+"/voice/step</Redirect>") {
		t.Fatalf("no redirect to step in %q", body)
	}
}

func TestIncomingClosed(t *testing.T) {
	ts, f := newTestServer(t, config.Config{}, nil)
	f.force(t, runtime.OverrideClosed)

	_, body := getBody(t, ts.URL+"/voice/incoming")
	if !strings.Contains(body, "Wij+zijn+gesloten") {
		t.Fatalf("no closed message in %q", body)
	}
	if !strings.Contains(body, "<Hangup>") {
		t.Fatalf("no hangup in %q", body)
	}
	if strings.Contains(body, "<Redirect") {
		t.Fatalf("closed call must not continue: %q", body)
	}
}

func TestIncomingBotDisabled(t *testing.T) {
	cfg := config.Config{FallbackPhone: "+31101111111", CallerID: "+31102222222"}
	ts, f := newTestServer(t, cfg, nil)

	o := f.overrides.Defaults()
	o.BotEnabled = false
	if err := f.overrides.Put(context.Background(), o); err != nil {
		t.Fatal(err)
	}

	_, body := getBody(t, ts.URL+"/voice/incoming")
	if !strings.Contains(body, `<Dial callerId="+31102222222">+31101111111</Dial>`) {
		t.Fatalf("no dial to fallback in %q", body)
	}
	if strings.Contains(body, "<Play>") {
		t.Fatalf("disabled bot must not speak: %q", body)
	}
}

func TestIncomingBotDisabledWithoutFallback(t *testing.T) {
	ts, f := newTestServer(t, config.Config{}, nil)

	o := f.overrides.Defaults()
	o.BotEnabled = false
	if err := f.overrides.Put(context.Background(), o); err != nil {
		t.Fatal(err)
	}

	_, body := getBody(t, ts.URL+"/voice/incoming")
	if !strings.Contains(body, "Wij+zijn+gesloten") || !strings.Contains(body, "<Hangup>") {
		t.Fatalf("body = %q", body)
	}
}

func TestStepGather(t *testing.T) {
	ts, _ := newTestServer(t, config.Config{}, nil)

	res, body := getBody(t, ts.URL+"/voice/step")
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", res.StatusCode)
	}
	for _, want := range []string{
		`input="speech"`,
		`language="nl-NL"`,
		`hints="bestellen`,
		`action="` + ts.URL + `/voice/handle"`,
		`method="POST"`,
		`timeout="8"`,
		`speechTimeout="auto"`,
		`bargeIn="true"`,
		"Zegt+u+het+maar",
		`<Redirect method="POST">` + ts.URL + "/voice/step</Redirect>",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("body %q misses %q", body, want)
		}
	}
}

func TestHandleDialogueTurn(t *testing.T) {
	ts, f := newTestServer(t, config.Config{}, nil)
	f.force(t, runtime.OverrideOpen)

	res, body := postForm(t, ts.URL+"/voice/handle", url.Values{"CallSid": {"CA77"}})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", res.StatusCode)
	}
	if !strings.Contains(body, "Wat+wilt+u+bestellen") {
		t.Fatalf("greeting turn body = %q", body)
	}
	if !strings.Contains(body, ts.URL+"/voice/step") {
		t.Fatalf("no gather redirect in %q", body)
	}

	_, body = postForm(t, ts.URL+"/voice/handle", url.Values{
		"CallSid":      {"CA77"},
		"SpeechResult": {"twee margherita"},
	})
	if !strings.Contains(body, "2+keer+Pizza+Margherita") {
		t.Fatalf("item turn body = %q", body)
	}
	if !strings.Contains(body, "Nog+iets") {
		t.Fatalf("no follow-up question in %q", body)
	}
	if got := strings.Count(body, "<Play>"); got != 2 {
		t.Fatalf("plays = %d, want 2 in %q", got, body)
	}
}

func TestHandleWhenClosed(t *testing.T) {
	ts, f := newTestServer(t, config.Config{}, nil)
	f.force(t, runtime.OverrideClosed)

	_, body := postForm(t, ts.URL+"/voice/handle", url.Values{"CallSid": {"CA88"}})
	if got := strings.Count(body, "<Play>"); got != 1 {
		t.Fatalf("plays = %d, want 1 in %q", got, body)
	}
	if !strings.Contains(body, "Wij+zijn+gesloten") {
		t.Fatalf("body = %q", body)
	}
	if strings.Contains(body, "<Redirect") {
		t.Fatalf("closed call must not loop: %q", body)
	}
}

func TestHandleSignature(t *testing.T) {
	cfg := config.Config{
		TwilioAuthToken: "tok",
		PublicBaseURL:   "https://sara.example.test",
	}
	ts, f := newTestServer(t, cfg, nil)
	f.force(t, runtime.OverrideOpen)

	form := url.Values{"CallSid": {"CA55"}, "SpeechResult": {"hallo"}}

	res, _ := postForm(t, ts.URL+"/voice/handle", form)
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("unsigned: status = %d, want 403", res.StatusCode)
	}

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/voice/handle", strings.NewReader(form.Encode()))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Twilio-Signature", signWebhook("tok", "https://sara.example.test/voice/handle", form))
	signed, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer signed.Body.Close()
	if signed.StatusCode != http.StatusOK {
		t.Fatalf("signed: status = %d, want 200", signed.StatusCode)
	}
	if ct := signed.Header.Get("Content-Type"); ct != "text/xml" {
		t.Fatalf("signed: content type = %q", ct)
	}
}

func TestStatusCallbackRedactsNumbers(t *testing.T) {
	ts, f := newTestServer(t, config.Config{}, nil)

	form := url.Values{
		"CallSid":    {"CA9"},
		"CallStatus": {"completed"},
		"From":       {"+31612345678"},
	}
	res, body := postForm(t, ts.URL+"/voice/status", form)
	if res.StatusCode != http.StatusOK || body != "ok" {
		t.Fatalf("status = %d body = %q", res.StatusCode, body)
	}

	raw, err := os.ReadFile(f.statusLog)
	if err != nil {
		t.Fatal(err)
	}
	line := string(raw)
	if !strings.Contains(line, "CA9") || !strings.Contains(line, "completed") {
		t.Fatalf("log line = %q", line)
	}
	if strings.Contains(line, "612345") {
		t.Fatalf("caller number not redacted: %q", line)
	}
	if !strings.Contains(line, "*********78") {
		t.Fatalf("masked number missing from %q", line)
	}
}

func TestTTSEndpoint(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ID3-audio"))
	}))
	defer upstream.Close()

	srv := New(config.Config{}, Deps{
		Speech: tts.NewClient(tts.Options{Endpoint: upstream.URL, Key: "sk-test"}),
	})
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	res, body := getBody(t, ts.URL+"/tts?text=hoi")
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", res.StatusCode)
	}
	if ct := res.Header.Get("Content-Type"); ct != "audio/mpeg" {
		t.Fatalf("content type = %q", ct)
	}
	if body != "ID3-audio" {
		t.Fatalf("body = %q", body)
	}

	res, _ = getBody(t, ts.URL+"/tts")
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing text: status = %d, want 400", res.StatusCode)
	}
}

func TestTTSEndpointUpstreamFailure(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota", http.StatusTooManyRequests)
	}))
	defer upstream.Close()

	srv := New(config.Config{}, Deps{
		Speech: tts.NewClient(tts.Options{Endpoint: upstream.URL, Key: "sk-test"}),
	})
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	res, _ := getBody(t, ts.URL+"/tts?text=hoi")
	if res.StatusCode != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", res.StatusCode)
	}
}
