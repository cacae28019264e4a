// Package customers answers phone-number lookups against the restaurant's
// exported customer CSV so returning callers do not have to spell out their
// address.
package customers

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/antoniostano/sara/internal/dutch"
)

// Record is one customer row.
type Record struct {
	Phone       string `json:"phone"`
	Mobile      string `json:"mobile"`
	Street      string `json:"street"`
	HouseNumber string `json:"house_number"`
	Postcode    string `json:"postcode"`
	Name        string `json:"name"`

	phoneDigits  string
	mobileDigits string
}

// Directory reads the CSV on demand and caches it until the file's
// modification time changes.
type Directory struct {
	path string

	mu      sync.Mutex
	loaded  bool
	modTime time.Time
	records []Record
}

// NewDirectory returns a directory over the given CSV path. The file does
// not have to exist; lookups simply miss until it does.
func NewDirectory(path string) *Directory {
	return &Directory{path: path}
}

// Refresh loads the CSV when it changed on disk since the previous load.
func (d *Directory) Refresh() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.refreshLocked()
}

// Lookup resolves a caller's phone number to a customer record. The query is
// reduced to digits, matched exactly against both phone columns, and on a
// miss retried with its last eight digits as a suffix match.
func (d *Directory) Lookup(phone string) (Record, bool) {
	q := dutch.PhoneDigits(phone)
	if q == "" {
		return Record{}, false
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.refreshLocked()

	for _, r := range d.records {
		if q == r.phoneDigits || q == r.mobileDigits {
			return r, true
		}
	}
	if len(q) >= 8 {
		suffix := q[len(q)-8:]
		for _, r := range d.records {
			if hasSuffix(r.phoneDigits, suffix) || hasSuffix(r.mobileDigits, suffix) {
				return r, true
			}
		}
	}
	return Record{}, false
}

func hasSuffix(digits, suffix string) bool {
	return digits != "" && strings.HasSuffix(digits, suffix)
}

func (d *Directory) refreshLocked() error {
	if d.path == "" {
		return nil
	}
	fi, err := os.Stat(d.path)
	if err != nil {
		return fmt.Errorf("stat customers csv: %w", err)
	}
	if d.loaded && fi.ModTime().Equal(d.modTime) {
		return nil
	}
	f, err := os.Open(d.path)
	if err != nil {
		return fmt.Errorf("open customers csv: %w", err)
	}
	defer f.Close()

	records, err := parse(f)
	if err != nil {
		return fmt.Errorf("parse customers csv %s: %w", d.path, err)
	}
	d.records = records
	d.modTime = fi.ModTime()
	d.loaded = true
	return nil
}

func parse(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	col := make(map[string]int, len(rows[0]))
	for i, h := range rows[0] {
		h = strings.TrimPrefix(h, "\uFEFF")
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	if _, ok := col["phone"]; !ok {
		if _, ok := col["mobile"]; !ok {
			return nil, fmt.Errorf("header has neither phone nor mobile column")
		}
	}
	field := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var out []Record
	for _, row := range rows[1:] {
		rec := Record{
			Phone:       field(row, "phone"),
			Mobile:      field(row, "mobile"),
			Street:      field(row, "street1"),
			HouseNumber: field(row, "house_number"),
			Postcode:    field(row, "postcode"),
		}
		rec.Name = strings.TrimSpace(field(row, "fname") + " " + field(row, "iname"))
		rec.phoneDigits = dutch.PhoneDigits(rec.Phone)
		rec.mobileDigits = dutch.PhoneDigits(rec.Mobile)
		if rec.phoneDigits == "" && rec.mobileDigits == "" {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}
