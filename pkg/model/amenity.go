package model

import (
	"time"
)

// Amenity is a bookable shared resource of the society (pool, hall, gym).
// Slot templates are embedded; they expand into concrete slot instances per
// calendar date on demand.
type Amenity struct {
	ID                    string         `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	Name                  string         `json:"name" bson:"name" validate:"required,min=2,max=100"`
	Description           string         `json:"description,omitempty" bson:"description,omitempty" validate:"omitempty,max=500"`
	Capacity              int            `json:"capacity" bson:"capacity" validate:"required,min=1,max=200"`
	Paid                  bool           `json:"paid" bson:"paid"`
	PriceCents            int64          `json:"price_cents" bson:"price_cents" validate:"min=0"`
	RequiresApproval      bool           `json:"requires_approval" bson:"requires_approval"`
	OpenFrom              string         `json:"open_from" bson:"open_from" validate:"required,clock_time"`
	OpenUntil             string         `json:"open_until" bson:"open_until" validate:"required,clock_time"`
	TimeZone              string         `json:"time_zone,omitempty" bson:"time_zone,omitempty" validate:"omitempty,timezone"`
	CancellationWindowMin int            `json:"cancellation_window_min" bson:"cancellation_window_min" validate:"min=0,max=10080"`
	SlotTemplates         []SlotTemplate `json:"slot_templates" bson:"slot_templates" validate:"required,min=1,max=48,dive"`
	CreatedAt             time.Time      `json:"created_at" bson:"created_at" validate:"omitempty"`
}

// SlotTemplate is a recurring bookable window of its amenity. Capacity zero
// means "inherit the amenity capacity".
type SlotTemplate struct {
	StartTime string   `json:"start_time" bson:"start_time" validate:"required,clock_time"`
	EndTime   string   `json:"end_time" bson:"end_time" validate:"required,clock_time"`
	Weekdays  []string `json:"weekdays" bson:"weekdays" validate:"required,min=1,max=7,dive,oneof=Sunday Monday Tuesday Wednesday Thursday Friday Saturday"`
	Capacity  int      `json:"capacity,omitempty" bson:"capacity,omitempty" validate:"omitempty,min=1,max=200"`
}

type AmenityUpdate struct {
	Name                  string          `json:"name,omitempty" validate:"omitempty,min=2,max=100"`
	Description           string          `json:"description,omitempty" validate:"omitempty,max=500"`
	Capacity              *int            `json:"capacity,omitempty" validate:"omitempty,min=1,max=200"`
	Paid                  *bool           `json:"paid,omitempty"`
	PriceCents            *int64          `json:"price_cents,omitempty" validate:"omitempty,min=0"`
	RequiresApproval      *bool           `json:"requires_approval,omitempty"`
	OpenFrom              string          `json:"open_from,omitempty" validate:"omitempty,clock_time"`
	OpenUntil             string          `json:"open_until,omitempty" validate:"omitempty,clock_time"`
	TimeZone              string          `json:"time_zone,omitempty" validate:"omitempty,timezone"`
	CancellationWindowMin *int            `json:"cancellation_window_min,omitempty" validate:"omitempty,min=0,max=10080"`
	SlotTemplates         *[]SlotTemplate `json:"slot_templates,omitempty" validate:"omitempty,min=1,max=48,dive"`
}

// TemplateCapacity resolves the effective capacity of a template.
func (a *Amenity) TemplateCapacity(t SlotTemplate) int {
	if t.Capacity > 0 {
		return t.Capacity
	}
	return a.Capacity
}

// Location resolves the amenity time zone, falling back to UTC.
func (a *Amenity) Location() *time.Location {
	if a.TimeZone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(a.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}
