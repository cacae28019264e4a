// Package twiml renders the telephony provider's call-control XML. Only the
// verbs the voice flow actually uses are modelled: play a URL, gather
// speech, redirect, dial out and hang up.
package twiml

import (
	"encoding/xml"
	"fmt"
)

// Play fetches and plays an audio URL.
type Play struct {
	XMLName xml.Name `xml:"Play"`
	URL     string   `xml:",chardata"`
}

// Redirect transfers call control to another webhook.
type Redirect struct {
	XMLName xml.Name `xml:"Redirect"`
	Method  string   `xml:"method,attr,omitempty"`
	URL     string   `xml:",chardata"`
}

// Gather collects speech until silence and posts the transcript to Action.
// A nested Play is spoken while gathering and can be interrupted.
type Gather struct {
	XMLName       xml.Name `xml:"Gather"`
	Input         string   `xml:"input,attr,omitempty"`
	Language      string   `xml:"language,attr,omitempty"`
	Hints         string   `xml:"hints,attr,omitempty"`
	Action        string   `xml:"action,attr,omitempty"`
	Method        string   `xml:"method,attr,omitempty"`
	Timeout       int      `xml:"timeout,attr,omitempty"`
	SpeechTimeout string   `xml:"speechTimeout,attr,omitempty"`
	BargeIn       bool     `xml:"bargeIn,attr,omitempty"`
	Play          *Play
}

// Dial connects the caller to a phone number.
type Dial struct {
	XMLName  xml.Name `xml:"Dial"`
	CallerID string   `xml:"callerId,attr,omitempty"`
	Number   string   `xml:",chardata"`
}

// Hangup ends the call.
type Hangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

// Response is a call-control document. Verbs execute top to bottom; a
// document without a trailing Redirect ends the call when it runs out.
type Response struct {
	verbs []any
}

func (r *Response) Play(url string) *Response {
	r.verbs = append(r.verbs, Play{URL: url})
	return r
}

func (r *Response) Gather(g Gather) *Response {
	r.verbs = append(r.verbs, g)
	return r
}

func (r *Response) Redirect(method, url string) *Response {
	r.verbs = append(r.verbs, Redirect{Method: method, URL: url})
	return r
}

func (r *Response) Dial(callerID, number string) *Response {
	r.verbs = append(r.verbs, Dial{CallerID: callerID, Number: number})
	return r
}

func (r *Response) Hangup() *Response {
	r.verbs = append(r.verbs, Hangup{})
	return r
}

// MarshalXML writes the verbs in insertion order under a Response root.
func (r *Response) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	start.Name = xml.Name{Local: "Response"}
	start.Attr = nil
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	for _, v := range r.verbs {
		if err := e.Encode(v); err != nil {
			return err
		}
	}
	return e.EncodeToken(start.End())
}

// Render serialises the document with the XML declaration the provider
// expects.
func (r *Response) Render() ([]byte, error) {
	body, err := xml.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("render twiml: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}
