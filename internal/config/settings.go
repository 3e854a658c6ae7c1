package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultDateFormat renders dates as "10. 1. 2024".
const DefaultDateFormat = "2. 1. 2006"

// Settings is a read-only snapshot of the seminar settings consumed by the
// registration workflow and the maturity sweep. Callers load it once per
// request or sweep run and pass it down explicitly.
type Settings struct {
	SeminarName string `yaml:"seminar_name"`

	// DateFormat is a Go time layout used in notifications.
	DateFormat string `yaml:"date_format"`

	// MaturityGraceDays is added to the registration date to obtain the
	// maturity date of a paid application.
	MaturityGraceDays int `yaml:"maturity_grace_days"`

	// CancelRegistrationAfterMaturityDays disables the cancellation pass when nil.
	CancelRegistrationAfterMaturityDays *int `yaml:"cancel_registration_after_maturity_days"`

	// MaturityReminderDays disables the reminder pass when nil.
	MaturityReminderDays *int `yaml:"maturity_reminder_days"`
}

// DefaultSettings returns the settings used when no file is given.
func DefaultSettings() Settings {
	return Settings{
		SeminarName:       "Seminar",
		DateFormat:        DefaultDateFormat,
		MaturityGraceDays: 14,
	}
}

// FormatDate renders t using the configured layout.
func (s Settings) FormatDate(t time.Time) string {
	layout := s.DateFormat
	if layout == "" {
		layout = DefaultDateFormat
	}
	return t.Format(layout)
}

// Validate rejects negative day counts.
func (s Settings) Validate() error {
	if s.MaturityGraceDays < 0 {
		return errors.New("maturity_grace_days must not be negative")
	}
	if s.CancelRegistrationAfterMaturityDays != nil && *s.CancelRegistrationAfterMaturityDays < 0 {
		return errors.New("cancel_registration_after_maturity_days must not be negative")
	}
	if s.MaturityReminderDays != nil && *s.MaturityReminderDays < 0 {
		return errors.New("maturity_reminder_days must not be negative")
	}
	return nil
}

// LoadSettings reads the YAML file at path (skipped when path is empty)
// over the defaults, then applies environment overrides.
func LoadSettings(path string) (Settings, error) {
	s := DefaultSettings()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Settings{}, fmt.Errorf("read settings file: %w", err)
		}
		if err := yaml.Unmarshal(data, &s); err != nil {
			return Settings{}, fmt.Errorf("parse settings file %s: %w", path, err)
		}
	}

	if v := os.Getenv("SEMINAR_NAME"); v != "" {
		s.SeminarName = v
	}
	if v := os.Getenv("DATE_FORMAT"); v != "" {
		s.DateFormat = v
	}
	if n, ok, err := lookupInt("MATURITY_GRACE_DAYS"); err != nil {
		return Settings{}, err
	} else if ok {
		s.MaturityGraceDays = n
	}
	if n, ok, err := lookupInt("CANCEL_REGISTRATION_AFTER_MATURITY_DAYS"); err != nil {
		return Settings{}, err
	} else if ok {
		s.CancelRegistrationAfterMaturityDays = &n
	}
	if n, ok, err := lookupInt("MATURITY_REMINDER_DAYS"); err != nil {
		return Settings{}, err
	} else if ok {
		s.MaturityReminderDays = &n
	}

	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}
