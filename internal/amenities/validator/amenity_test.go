package validator

import (
	"testing"

	"reserva/pkg/logger"
	"reserva/pkg/model"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Config{
		Level:     "info",
		Format:    logger.JSON,
		AddSource: false,
		Service:   "test",
	})
}

func validAmenity() *model.Amenity {
	return &model.Amenity{
		Name:      "Community Hall",
		Capacity:  50,
		OpenFrom:  "08:00",
		OpenUntil: "22:00",
		TimeZone:  "Asia/Kolkata",
		SlotTemplates: []model.SlotTemplate{
			{StartTime: "10:00", EndTime: "13:00", Weekdays: []string{"Saturday", "Sunday"}},
			{StartTime: "17:00", EndTime: "21:00", Weekdays: []string{"Friday"}, Capacity: 30},
		},
	}
}

func TestValidateAmenity(t *testing.T) {
	v := NewAmenityValidator(testLogger())

	tests := []struct {
		name    string
		mutate  func(a *model.Amenity)
		wantErr bool
	}{
		{"valid amenity", func(a *model.Amenity) {}, false},
		{"name too short", func(a *model.Amenity) { a.Name = "x" }, true},
		{"zero capacity", func(a *model.Amenity) { a.Capacity = 0 }, true},
		{"bad open_from", func(a *model.Amenity) { a.OpenFrom = "8am" }, true},
		{"bad time zone", func(a *model.Amenity) { a.TimeZone = "Mars/Olympus" }, true},
		{"no templates", func(a *model.Amenity) { a.SlotTemplates = nil }, true},
		{"bad weekday", func(a *model.Amenity) { a.SlotTemplates[0].Weekdays = []string{"Funday"} }, true},
		{"closed before open", func(a *model.Amenity) { a.OpenFrom, a.OpenUntil = "22:00", "08:00" }, true},
		{"template end before start", func(a *model.Amenity) {
			a.SlotTemplates[0].StartTime, a.SlotTemplates[0].EndTime = "13:00", "10:00"
		}, true},
		{"template before opening", func(a *model.Amenity) { a.SlotTemplates[0].StartTime = "06:00" }, true},
		{"template past closing", func(a *model.Amenity) { a.SlotTemplates[1].EndTime = "23:00" }, true},
		{"negative price", func(a *model.Amenity) { a.PriceCents = -100 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			amenity := validAmenity()
			tt.mutate(amenity)
			err := v.Validate(amenity)
			if tt.wantErr && err == nil {
				t.Error("expected validation error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidateUpdate(t *testing.T) {
	v := NewAmenityValidator(testLogger())

	if err := v.ValidateUpdate(&model.AmenityUpdate{}); err != nil {
		t.Errorf("empty update should be valid: %v", err)
	}

	if err := v.ValidateUpdate(&model.AmenityUpdate{OpenFrom: "whenever"}); err == nil {
		t.Error("expected error for malformed open_from")
	}
}
