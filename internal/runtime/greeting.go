package runtime

import "github.com/antoniostano/sara/internal/prompts"

// Greeting picks the opening line for an incoming call: the closed text when
// the restaurant is not taking orders, otherwise the day-part salutation,
// optionally followed by the recording notice.
func Greeting(st Status, p *prompts.Catalog, recordingNotice bool) string {
	if !st.Open() {
		return p.Get("greet_closed")
	}
	var id string
	switch h := st.Now.Hour(); {
	case h < 12:
		id = "greet_open_morning"
	case h < 18:
		id = "greet_open_afternoon"
	default:
		id = "greet_open_evening"
	}
	g := p.Get(id)
	if recordingNotice {
		if notice := p.Get("recording_notice"); notice != "" {
			g += " " + notice
		}
	}
	return g
}
