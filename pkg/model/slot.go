package model

import (
	"fmt"
	"strings"
	"time"
)

// SlotInstance is a concrete bookable window of an amenity on one calendar
// date. Instances are computed from templates, never persisted; the key is
// the stable identity bookings reference.
type SlotInstance struct {
	AmenityID string    `json:"amenity_id"`
	Date      string    `json:"date"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Capacity  int       `json:"capacity"`
}

func (s SlotInstance) Key() string {
	return SlotKey(s.AmenityID, s.Date, s.StartTime.Format("15:04"))
}

// SlotKey builds the deterministic `<amenityID>:<date>:<start>` key. The date
// segment keeps capacity counting addressable per day without touching
// unrelated dates.
func SlotKey(amenityID, date, start string) string {
	return fmt.Sprintf("%s:%s:%s", amenityID, date, start)
}

// ParseSlotKey splits a slot key back into its segments.
func ParseSlotKey(key string) (amenityID, date, start string, err error) {
	parts := strings.Split(key, ":")
	if len(parts) != 4 {
		return "", "", "", fmt.Errorf("malformed slot key: %q", key)
	}
	// start carries an embedded colon (HH:MM)
	return parts[0], parts[1], parts[2] + ":" + parts[3], nil
}

// SlotAvailability is the read projection for the availability listing.
type SlotAvailability struct {
	SlotKey   string    `json:"slot_key"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Capacity  int       `json:"capacity"`
	Remaining int       `json:"remaining"`
}
