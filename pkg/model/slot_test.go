package model

import (
	"testing"
	"time"
)

func TestSlotKeyRoundTrip(t *testing.T) {
	key := SlotKey("507f1f77bcf86cd799439011", "2026-09-01", "18:30")
	want := "507f1f77bcf86cd799439011:2026-09-01:18:30"
	if key != want {
		t.Fatalf("SlotKey = %q, want %q", key, want)
	}

	amenityID, date, start, err := ParseSlotKey(key)
	if err != nil {
		t.Fatalf("ParseSlotKey failed: %v", err)
	}
	if amenityID != "507f1f77bcf86cd799439011" {
		t.Errorf("amenityID = %q", amenityID)
	}
	if date != "2026-09-01" {
		t.Errorf("date = %q", date)
	}
	if start != "18:30" {
		t.Errorf("start = %q", start)
	}
}

func TestParseSlotKeyMalformed(t *testing.T) {
	malformed := []string{
		"",
		"justone",
		"a:b",
		"a:b:c",
		"a:b:c:d:e",
	}

	for _, key := range malformed {
		if _, _, _, err := ParseSlotKey(key); err == nil {
			t.Errorf("expected error for key %q", key)
		}
	}
}

func TestSlotInstanceKey(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		t.Fatal(err)
	}

	slot := SlotInstance{
		AmenityID: "507f1f77bcf86cd799439011",
		Date:      "2026-09-01",
		StartTime: time.Date(2026, 9, 1, 7, 0, 0, 0, loc),
		EndTime:   time.Date(2026, 9, 1, 8, 0, 0, 0, loc),
		Capacity:  10,
	}

	if got := slot.Key(); got != "507f1f77bcf86cd799439011:2026-09-01:07:00" {
		t.Errorf("Key() = %q", got)
	}
}
