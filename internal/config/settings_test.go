package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadSettingsDefaults(t *testing.T) {
	s, err := LoadSettings("")
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if s.CancelRegistrationAfterMaturityDays != nil || s.MaturityReminderDays != nil {
		t.Fatal("sweep settings should be disabled by default")
	}
	if s.MaturityGraceDays != 14 {
		t.Fatalf("MaturityGraceDays = %d, want 14", s.MaturityGraceDays)
	}
}

func TestLoadSettingsFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")
	body := "seminar_name: Summer School\n" +
		"maturity_grace_days: 7\n" +
		"cancel_registration_after_maturity_days: 5\n" +
		"maturity_reminder_days: 3\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("MATURITY_REMINDER_DAYS", "2")

	s, err := LoadSettings(path)
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if s.SeminarName != "Summer School" {
		t.Errorf("SeminarName = %q", s.SeminarName)
	}
	if s.MaturityGraceDays != 7 {
		t.Errorf("MaturityGraceDays = %d, want 7", s.MaturityGraceDays)
	}
	if s.CancelRegistrationAfterMaturityDays == nil || *s.CancelRegistrationAfterMaturityDays != 5 {
		t.Errorf("CancelRegistrationAfterMaturityDays = %v, want 5", s.CancelRegistrationAfterMaturityDays)
	}
	if s.MaturityReminderDays == nil || *s.MaturityReminderDays != 2 {
		t.Errorf("MaturityReminderDays = %v, want env override 2", s.MaturityReminderDays)
	}
}

func TestLoadSettingsRejectsBadValues(t *testing.T) {
	t.Setenv("MATURITY_GRACE_DAYS", "soon")
	if _, err := LoadSettings(""); err == nil {
		t.Fatal("expected error for non-numeric env value")
	}

	t.Setenv("MATURITY_GRACE_DAYS", "-1")
	if _, err := LoadSettings(""); err == nil {
		t.Fatal("expected error for negative grace days")
	}
}

func TestFormatDate(t *testing.T) {
	s := DefaultSettings()
	got := s.FormatDate(time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC))
	if got != "10. 1. 2024" {
		t.Fatalf("FormatDate = %q", got)
	}
}

func TestDSN(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: "5432", User: "u", Password: "p", DBName: "seminar", SSLMode: "disable"}
	want := "host=db port=5432 user=u password=p dbname=seminar sslmode=disable"
	if got := c.DSN(); got != want {
		t.Fatalf("DSN() = %q, want %q", got, want)
	}
}
