package twiml

import (
	"net/url"
	"strings"
	"testing"
)

func render(t *testing.T, r *Response) string {
	t.Helper()
	out, err := r.Render()
	if err != nil {
		t.Fatal(err)
	}
	return string(out)
}

func TestRenderPlayRedirect(t *testing.T) {
	r := new(Response).
		Play("https://example.test/tts?text=hallo").
		Redirect("POST", "https://example.test/voice/step")
	got := render(t, r)

	want := `<?xml version="1.0" encoding="UTF-8"?>` + "\n" +
		`<Response>` +
		`<Play>https://example.test/tts?text=hallo</Play>` +
		`<Redirect method="POST">https://example.test/voice/step</Redirect>` +
		`</Response>`
	if got != want {
		t.Fatalf("rendered:\n%s\nwant:\n%s", got, want)
	}
}

func TestRenderGather(t *testing.T) {
	r := new(Response).Gather(Gather{
		Input:         "speech",
		Language:      "nl-NL",
		Hints:         "bestellen, pizza",
		Action:        "https://example.test/voice/handle",
		Method:        "POST",
		Timeout:       8,
		SpeechTimeout: "auto",
		BargeIn:       true,
		Play:          &Play{URL: "https://example.test/tts?text=zeg"},
	})
	got := render(t, r)

	for _, frag := range []string{
		`input="speech"`,
		`language="nl-NL"`,
		`hints="bestellen, pizza"`,
		`action="https://example.test/voice/handle"`,
		`method="POST"`,
		`timeout="8"`,
		`speechTimeout="auto"`,
		`bargeIn="true"`,
		`<Play>https://example.test/tts?text=zeg</Play>`,
	} {
		if !strings.Contains(got, frag) {
			t.Errorf("rendered %s\nmissing %s", got, frag)
		}
	}
}

func TestRenderGatherWithoutPrompt(t *testing.T) {
	got := render(t, new(Response).Gather(Gather{Input: "speech"}))
	if strings.Contains(got, "<Play>") {
		t.Fatalf("empty prompt rendered: %s", got)
	}
}

func TestRenderDialHangup(t *testing.T) {
	got := render(t, new(Response).Dial("+3110000000", "+31612345678"))
	if !strings.Contains(got, `<Dial callerId="+3110000000">+31612345678</Dial>`) {
		t.Fatalf("rendered: %s", got)
	}

	got = render(t, new(Response).Play("x").Hangup())
	if !strings.Contains(got, "<Hangup></Hangup>") {
		t.Fatalf("rendered: %s", got)
	}
}

func TestValidateSignature(t *testing.T) {
	form := url.Values{}
	form.Set("CallSid", "CA123")
	form.Set("SpeechResult", "twee pizza margherita")
	reqURL := "https://example.test/voice/handle"

	sig := Sign("token-1", reqURL, form)
	if !ValidateSignature("token-1", reqURL, form, sig) {
		t.Fatal("genuine signature rejected")
	}
	if ValidateSignature("token-1", reqURL, form, "bogus") {
		t.Fatal("bogus signature accepted")
	}
	if ValidateSignature("token-2", reqURL, form, sig) {
		t.Fatal("signature for other token accepted")
	}

	tampered := url.Values{}
	tampered.Set("CallSid", "CA123")
	tampered.Set("SpeechResult", "tien pizza margherita")
	if ValidateSignature("token-1", reqURL, tampered, sig) {
		t.Fatal("tampered form accepted")
	}
}

func TestValidateSignatureDisabled(t *testing.T) {
	if !ValidateSignature("", "https://example.test", url.Values{}, "anything") {
		t.Fatal("empty token must disable the check")
	}
}
