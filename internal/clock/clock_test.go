package clock

import (
	"testing"
	"time"
)

func TestFixedAdvance(t *testing.T) {
	start := time.Date(2024, 1, 10, 15, 30, 0, 0, time.UTC)
	c := NewFixed(start)
	c.Advance(36 * time.Hour)
	want := time.Date(2024, 1, 12, 3, 30, 0, 0, time.UTC)
	if !c.Now().Equal(want) {
		t.Fatalf("Now() = %v, want %v", c.Now(), want)
	}
}

func TestMidnight(t *testing.T) {
	got := Midnight(time.Date(2024, 2, 29, 23, 59, 59, 5, time.UTC))
	want := time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("Midnight() = %v, want %v", got, want)
	}
}

func TestAddDaysCrossesMonth(t *testing.T) {
	got := AddDays(time.Date(2024, 1, 30, 0, 0, 0, 0, time.UTC), 3)
	want := time.Date(2024, 2, 2, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("AddDays() = %v, want %v", got, want)
	}
}
