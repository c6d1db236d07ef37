package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Tunables holds the reconciliation and scan-cadence knobs documented in the
// external-interfaces contract. The three reconcile knobs are bound through
// viper under the "reconcile" key; ScanIntervalMinutes is read from
// "sms.scan_interval_minutes".
type Tunables struct {
	AmountToleranceCents int
	TimeWindowHours      int
	ConfidenceThreshold  int
	ScanIntervalMinutes  int
}

// DefaultTunables returns the documented defaults.
func DefaultTunables() Tunables {
	return Tunables{
		AmountToleranceCents: 50,
		TimeWindowHours:      48,
		ConfidenceThreshold:  75,
		ScanIntervalMinutes:  15,
	}
}

// LoadTunables reads tunables from viper, falling back to defaults for any
// unset key, then validates the result.
func LoadTunables() (Tunables, error) {
	t := DefaultTunables()

	if viper.IsSet("reconcile.amount_tolerance_cents") {
		t.AmountToleranceCents = viper.GetInt("reconcile.amount_tolerance_cents")
	}
	if viper.IsSet("reconcile.time_window_hours") {
		t.TimeWindowHours = viper.GetInt("reconcile.time_window_hours")
	}
	if viper.IsSet("reconcile.confidence_threshold") {
		t.ConfidenceThreshold = viper.GetInt("reconcile.confidence_threshold")
	}
	if viper.IsSet("sms.scan_interval_minutes") {
		t.ScanIntervalMinutes = viper.GetInt("sms.scan_interval_minutes")
	}

	return t, t.Validate()
}

// Validate enforces the documented bounds for each tunable.
func (t Tunables) Validate() error {
	if t.AmountToleranceCents < 0 || t.AmountToleranceCents > 10000 {
		return fmt.Errorf("amount_tolerance_cents must be in [0, 10000], got %d", t.AmountToleranceCents)
	}
	if t.TimeWindowHours < 1 || t.TimeWindowHours > 168 {
		return fmt.Errorf("time_window_hours must be in [1, 168], got %d", t.TimeWindowHours)
	}
	if t.ConfidenceThreshold < 10 || t.ConfidenceThreshold > 100 {
		return fmt.Errorf("confidence_threshold must be in [10, 100], got %d", t.ConfidenceThreshold)
	}
	if t.ScanIntervalMinutes < 15 {
		return fmt.Errorf("scan_interval_minutes must be >= 15, got %d", t.ScanIntervalMinutes)
	}
	return nil
}
