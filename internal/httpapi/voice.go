package httpapi

import (
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/antoniostano/sara/internal/policy"
	"github.com/antoniostano/sara/internal/runtime"
	"github.com/antoniostano/sara/internal/twiml"
)

// Recognition hints handed to the provider's speech engine, covering the
// order vocabulary the dialogue listens for.
const dutchHints = "bestellen, pizza, schotel, pasta, afhalen, bezorgen, contant, ideal, postcode, huisnummer, telefoonnummer, dat is alles, klaar, ja, nee"

func (s *Server) handleIncoming(w http.ResponseWriter, r *http.Request) {
	st := s.eval.Status(r.Context())
	res := new(twiml.Response)

	if !st.BotEnabled {
		s.dialFallback(w, r, res)
		return
	}

	res.Play(s.playURL(r, runtime.Greeting(st, s.prompts, s.cfg.RecordCalls)))
	if st.Open() {
		res.Redirect(http.MethodPost, s.baseURL(r)+"/voice/step")
	} else {
		res.Hangup()
	}
	s.writeTwiML(w, res)
}

func (s *Server) handleStep(w http.ResponseWriter, r *http.Request) {
	base := s.baseURL(r)
	g := twiml.Gather{
		Input:         "speech",
		Language:      "nl-NL",
		Hints:         dutchHints,
		Action:        base + "/voice/handle",
		Method:        http.MethodPost,
		Timeout:       8,
		SpeechTimeout: "auto",
		BargeIn:       true,
	}
	if say := s.prompts.Get("say_prompt"); say != "" {
		g.Play = &twiml.Play{URL: s.playURL(r, say)}
	}

	// The trailing redirect loops the gather on silence.
	res := new(twiml.Response).
		Gather(g).
		Redirect(http.MethodPost, base+"/voice/step")
	s.writeTwiML(w, res)
}

func (s *Server) handleHandle(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_form", err.Error())
		return
	}
	sigURL := s.baseURL(r) + r.URL.RequestURI()
	if !twiml.ValidateSignature(s.cfg.TwilioAuthToken, sigURL, r.PostForm, r.Header.Get("X-Twilio-Signature")) {
		respondError(w, http.StatusForbidden, "bad_signature", "webhook signature mismatch")
		return
	}

	callID := strings.TrimSpace(r.PostFormValue("CallSid"))
	if callID == "" {
		callID = "no-sid"
	}
	speech := strings.TrimSpace(r.PostFormValue("SpeechResult"))

	ctx := r.Context()
	st := s.eval.Status(ctx)
	res := new(twiml.Response)

	if !st.BotEnabled {
		s.dialFallback(w, r, res)
		return
	}
	if !st.Open() {
		// No redirect: the document runs out and the provider ends the
		// call. The session is left alone.
		res.Play(s.playURL(r, s.prompts.Get("greet_closed")))
		s.writeTwiML(w, res)
		return
	}

	turn := s.engine.Handle(ctx, callID, speech, st)
	for _, msg := range turn.Messages {
		res.Play(s.playURL(r, msg))
	}
	if !turn.Ended() {
		res.Redirect(http.MethodPost, s.baseURL(r)+"/voice/step")
	}
	s.writeTwiML(w, res)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_form", err.Error())
		return
	}
	payload := make(map[string]string, len(r.PostForm))
	for k := range r.PostForm {
		payload[k] = r.PostForm.Get(k)
	}
	policy.RedactCallback(payload)
	if s.statusLog != nil {
		if err := s.statusLog.Append(payload); err != nil {
			log.Printf("httpapi: status callback not logged: %v", err)
		}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleTTS(w http.ResponseWriter, r *http.Request) {
	text := strings.TrimSpace(r.URL.Query().Get("text"))
	if text == "" {
		respondError(w, http.StatusBadRequest, "missing_text", "query parameter text is required")
		return
	}
	if s.speech == nil {
		respondError(w, http.StatusBadGateway, "tts_unavailable", "speech client not configured")
		return
	}

	audio, err := s.speech.Synthesize(r.Context(), text)
	if err != nil {
		if s.metrics != nil {
			s.metrics.TTSRequests.WithLabelValues("error").Inc()
		}
		log.Printf("httpapi: tts fetch failed: %v", err)
		respondError(w, http.StatusBadGateway, "tts_failed", err.Error())
		return
	}
	if s.metrics != nil {
		s.metrics.TTSRequests.WithLabelValues("ok").Inc()
	}
	w.Header().Set("Content-Type", "audio/mpeg")
	_, _ = w.Write(audio)
}

// dialFallback hands the call to a human when the assistant is switched off.
// Without a fallback number the caller at least hears the closed message.
func (s *Server) dialFallback(w http.ResponseWriter, r *http.Request, res *twiml.Response) {
	if s.cfg.FallbackPhone != "" {
		res.Dial(s.cfg.CallerID, s.cfg.FallbackPhone)
	} else {
		res.Play(s.playURL(r, s.prompts.Get("greet_closed"))).Hangup()
	}
	s.writeTwiML(w, res)
}

func (s *Server) playURL(r *http.Request, text string) string {
	return s.baseURL(r) + "/tts?text=" + url.QueryEscape(text)
}
