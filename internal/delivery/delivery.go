// Package delivery holds the delivery zones with their fees and the kitchen
// SLA minutes used for spoken ready-time estimates.
package delivery

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Zone couples a delivery fee to a list of postcode prefixes.
type Zone struct {
	Postcodes []string `json:"postcodes"`
	Fee       float64  `json:"fee"`
}

// SLA is the baseline preparation time in minutes per fulfilment kind.
type SLA struct {
	PickupMinutes      int `json:"pickup_minutes"`
	PickupComboMinutes int `json:"pickup_combo_minutes"`
	DeliveryMinutes    int `json:"delivery_minutes"`
}

// Config is the on-disk delivery configuration.
type Config struct {
	Zones []Zone `json:"zones"`
	SLA   SLA    `json:"sla"`
}

// Default returns the baseline used when no config file is present: no
// delivery zones (fee 0 everywhere) and the standard kitchen minutes.
func Default() Config {
	return Config{SLA: SLA{PickupMinutes: 15, PickupComboMinutes: 30, DeliveryMinutes: 60}}
}

// Load reads a delivery config file. Missing SLA fields fall back to the
// defaults so a zones-only file stays valid.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Default(), fmt.Errorf("read delivery config: %w", err)
	}
	cfg := Default()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Default(), fmt.Errorf("parse delivery config %s: %w", path, err)
	}
	if cfg.SLA.PickupMinutes <= 0 {
		cfg.SLA.PickupMinutes = 15
	}
	if cfg.SLA.PickupComboMinutes <= 0 {
		cfg.SLA.PickupComboMinutes = 30
	}
	if cfg.SLA.DeliveryMinutes <= 0 {
		cfg.SLA.DeliveryMinutes = 60
	}
	return cfg, nil
}

// FeeFor returns the fee of the first zone holding a prefix of the caller's
// postcode, or 0 when no zone matches. Comparison ignores case and spaces.
func (c Config) FeeFor(postcode string) float64 {
	pc := canonical(postcode)
	if pc == "" {
		return 0
	}
	for _, z := range c.Zones {
		for _, prefix := range z.Postcodes {
			if p := canonical(prefix); p != "" && strings.HasPrefix(pc, p) {
				return z.Fee
			}
		}
	}
	return 0
}

func canonical(s string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), " ", ""))
}
