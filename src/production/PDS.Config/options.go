package config

import (
	"errors"
	"fmt"
	"time"
	_ "time/tzdata" // alarm timezone must resolve in minimal images
)

// Options is the single table of behavioural defaults used by the
// ingestion, alarm and command components.
type Options struct {
	SnoozeMinutes    int    `json:"snooze_minutes"`
	MaxSnoozeMinutes int    `json:"max_snooze_minutes"`
	DoseSource       string `json:"dose_source"`
	MaxWeightBatch   int    `json:"max_weight_batch"`

	PendingCommandLimit    int `json:"pending_command_limit"`
	MaxPendingCommandLimit int `json:"max_pending_command_limit"`

	AlarmLocale   string `json:"alarm_locale"`
	AlarmTimezone string `json:"alarm_timezone"`
	AlarmTitle    string `json:"alarm_title"`
	// Placeholders: {label}, {time}, {index}
	AlarmBodyTemplate     string `json:"alarm_body_template"`
	AlarmDefaultLabel     string `json:"alarm_default_label"`
	AlarmPlaceholderIndex string `json:"alarm_placeholder_index"`
	AlarmRoute            string `json:"alarm_route"`
	AlarmAction           string `json:"alarm_action"`

	SnoozeRedirectDelay time.Duration `json:"snooze_redirect_delay"`
}

// DefaultOptions returns the built-in defaults
func DefaultOptions() Options {
	return Options{
		SnoozeMinutes:          5,
		MaxSnoozeMinutes:       60,
		DoseSource:             "auto",
		MaxWeightBatch:         1000,
		PendingCommandLimit:    20,
		MaxPendingCommandLimit: 100,
		AlarmLocale:            "es-MX",
		AlarmTimezone:          "America/Mexico_City",
		AlarmTitle:             "💊 Hora de tu pastilla",
		AlarmBodyTemplate:      "{label} — {time} (compartimento {index})",
		AlarmDefaultLabel:      "Medicamento",
		AlarmPlaceholderIndex:  "?",
		AlarmRoute:             "/dashboard",
		AlarmAction:            "open_app",
		SnoozeRedirectDelay:    time.Second,
	}
}

// Validate checks the option table for values the services cannot work with
func (o Options) Validate() error {
	if o.SnoozeMinutes <= 0 || o.SnoozeMinutes > o.MaxSnoozeMinutes {
		return fmt.Errorf("DEFAULT_SNOOZE_MINUTES must be between 1 and %d", o.MaxSnoozeMinutes)
	}
	if o.DoseSource != "auto" && o.DoseSource != "manual" {
		return fmt.Errorf("DEFAULT_DOSE_SOURCE must be auto or manual, got %q", o.DoseSource)
	}
	if o.MaxWeightBatch <= 0 {
		return errors.New("MAX_WEIGHT_BATCH must be positive")
	}
	if o.PendingCommandLimit <= 0 || o.PendingCommandLimit > o.MaxPendingCommandLimit {
		return fmt.Errorf("PENDING_COMMAND_LIMIT must be between 1 and %d", o.MaxPendingCommandLimit)
	}
	if _, err := o.Location(); err != nil {
		return fmt.Errorf("invalid ALARM_TIMEZONE %q: %w", o.AlarmTimezone, err)
	}
	return nil
}

// Location resolves the alarm timezone
func (o Options) Location() (*time.Location, error) {
	return time.LoadLocation(o.AlarmTimezone)
}
