package orders

import (
	"encoding/json"
	"sync"
	"time"
)

// Feed fans events out to live dashboard connections. Subscribers that fall
// behind lose events rather than slow the publisher; the dashboard refetches
// the order list anyway.
type Feed struct {
	mu   sync.Mutex
	subs map[chan []byte]struct{}
}

func NewFeed() *Feed {
	return &Feed{subs: make(map[chan []byte]struct{})}
}

// Subscribe registers a client. The cancel function must be called when the
// connection goes away; it closes the returned channel.
func (f *Feed) Subscribe() (<-chan []byte, func()) {
	ch := make(chan []byte, 8)
	f.mu.Lock()
	f.subs[ch] = struct{}{}
	f.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, ch)
			f.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Publish encodes the event and offers it to every subscriber.
func (f *Feed) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subs {
		select {
		case ch <- raw:
		default:
		}
	}
}

// Clients is the current subscriber count.
func (f *Feed) Clients() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}
