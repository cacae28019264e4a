// saracall replays a scripted caller conversation against a running
// instance, speaking the same form posts the telephony provider would
// send and printing what the caller would hear. No telephony account
// needed, which makes it the quickest way to exercise the call flow.
package main

import (
	"encoding/xml"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/antoniostano/sara/internal/twiml"
)

type options struct {
	baseURL        string
	callSid        string
	authToken      string
	interTurnDelay time.Duration
	texts          []string
	verbose        bool
}

var defaultUtterances = []string{
	"twee pizza margherita en een cola",
	"nee dat was het",
	"ja dat klopt",
	"afhalen",
}

func main() {
	cfg, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "saracall: %v\n", err)
		os.Exit(2)
	}
	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "saracall: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() (options, error) {
	var cfg options
	var textsRaw string
	var interTurnMS int

	flag.StringVar(&cfg.baseURL, "base-url", "http://127.0.0.1:8080", "service base URL")
	flag.StringVar(&cfg.callSid, "call-sid", "", "call id to replay under (default: derived from the clock)")
	flag.StringVar(&cfg.authToken, "auth-token", "", "webhook auth token; when set every post is signed")
	flag.IntVar(&interTurnMS, "inter-turn-ms", 250, "delay between caller turns in milliseconds")
	flag.StringVar(&textsRaw, "texts", "", "caller utterances separated by '|' (optional)")
	flag.BoolVar(&cfg.verbose, "verbose", true, "print the conversation")
	flag.Parse()

	cfg.baseURL = strings.TrimRight(strings.TrimSpace(cfg.baseURL), "/")
	if cfg.baseURL == "" {
		return options{}, fmt.Errorf("base-url is required")
	}
	if strings.TrimSpace(cfg.callSid) == "" {
		cfg.callSid = fmt.Sprintf("replay-%d", time.Now().UnixNano())
	}
	if interTurnMS < 0 {
		interTurnMS = 0
	}
	cfg.interTurnDelay = time.Duration(interTurnMS) * time.Millisecond

	if strings.TrimSpace(textsRaw) == "" {
		cfg.texts = append([]string(nil), defaultUtterances...)
	} else {
		for _, part := range strings.Split(textsRaw, "|") {
			if t := strings.TrimSpace(part); t != "" {
				cfg.texts = append(cfg.texts, t)
			}
		}
		if len(cfg.texts) == 0 {
			return options{}, fmt.Errorf("texts produced no non-empty utterances")
		}
	}
	return cfg, nil
}

func run(cfg options) error {
	client := &http.Client{Timeout: 15 * time.Second}

	doc, err := fetchDocument(client, cfg, http.MethodGet, "/voice/incoming", nil)
	if err != nil {
		return fmt.Errorf("incoming: %w", err)
	}
	printDocument(cfg, doc)
	if done, why := callOver(doc); done {
		if cfg.verbose {
			fmt.Printf("saracall: %s\n", why)
		}
		return nil
	}

	for i, text := range cfg.texts {
		if cfg.verbose {
			fmt.Printf("caller: %s\n", text)
		}
		form := url.Values{}
		form.Set("CallSid", cfg.callSid)
		form.Set("SpeechResult", text)
		doc, err = fetchDocument(client, cfg, http.MethodPost, "/voice/handle", form)
		if err != nil {
			return fmt.Errorf("turn %d: %w", i+1, err)
		}
		printDocument(cfg, doc)
		if done, why := callOver(doc); done {
			if cfg.verbose {
				fmt.Printf("saracall: %s\n", why)
			}
			return nil
		}
		if cfg.interTurnDelay > 0 {
			time.Sleep(cfg.interTurnDelay)
		}
	}

	if cfg.verbose {
		fmt.Println("saracall: out of utterances while the call still expects input")
	}
	return nil
}

func fetchDocument(client *http.Client, cfg options, method, path string, form url.Values) (callDocument, error) {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequest(method, cfg.baseURL+path, body)
	if err != nil {
		return callDocument{}, err
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		if cfg.authToken != "" {
			req.Header.Set("X-Twilio-Signature", twiml.Sign(cfg.authToken, cfg.baseURL+path, form))
		}
	}

	res, err := client.Do(req)
	if err != nil {
		return callDocument{}, err
	}
	defer res.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return callDocument{}, err
	}
	if res.StatusCode != http.StatusOK {
		return callDocument{}, fmt.Errorf("HTTP %d: %s", res.StatusCode, strings.TrimSpace(string(raw)))
	}
	return parseDocument(raw)
}

// callDocument is the slice of the call-control XML the replay cares
// about: what is spoken, whether the call continues, where it hands off.
type callDocument struct {
	Plays     []string     `xml:"Play"`
	Redirects []string     `xml:"Redirect"`
	Dials     []string     `xml:"Dial"`
	Gather    *gatherBlock `xml:"Gather"`
	Hangups   []struct{}   `xml:"Hangup"`
}

type gatherBlock struct {
	Action string   `xml:"action,attr"`
	Plays  []string `xml:"Play"`
}

func parseDocument(raw []byte) (callDocument, error) {
	var doc callDocument
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return callDocument{}, fmt.Errorf("parse response XML: %w", err)
	}
	return doc, nil
}

// spokenLines resolves the Play URLs back to the text they speak.
func spokenLines(doc callDocument) []string {
	urls := append([]string(nil), doc.Plays...)
	if doc.Gather != nil {
		urls = append(urls, doc.Gather.Plays...)
	}
	lines := make([]string, 0, len(urls))
	for _, raw := range urls {
		u, err := url.Parse(strings.TrimSpace(raw))
		if err != nil {
			continue
		}
		if text := u.Query().Get("text"); text != "" {
			lines = append(lines, text)
		}
	}
	return lines
}

func callOver(doc callDocument) (bool, string) {
	if len(doc.Dials) > 0 {
		return true, fmt.Sprintf("call handed to %s", strings.TrimSpace(doc.Dials[0]))
	}
	if len(doc.Redirects) > 0 || doc.Gather != nil {
		return false, ""
	}
	return true, "call ended"
}

func printDocument(cfg options, doc callDocument) {
	if !cfg.verbose {
		return
	}
	for _, line := range spokenLines(doc) {
		fmt.Printf("sara: %s\n", line)
	}
}
