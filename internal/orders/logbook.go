package orders

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Logbook is an append-only JSON-lines file. It is the durable record;
// everything in the keyed store can be regenerated or expire.
type Logbook struct {
	mu sync.Mutex
	f  *os.File
}

// OpenLogbook opens (and creates, directories included) the log file.
func OpenLogbook(path string) (*Logbook, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log %s: %w", path, err)
	}
	return &Logbook{f: f}, nil
}

// Append writes one value as a JSON line.
func (l *Logbook) Append(v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode log line: %w", err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.f.Write(append(raw, '\n')); err != nil {
		return fmt.Errorf("append log line: %w", err)
	}
	return nil
}

func (l *Logbook) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.f.Close()
}
