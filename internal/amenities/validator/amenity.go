package validator

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"reserva/pkg/logger"
	"reserva/pkg/model"

	"github.com/go-playground/validator/v10"
)

var clockTimeRegex = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

// ClockTime validates an HH:MM wall-clock value.
func ClockTime(fl validator.FieldLevel) bool {
	return clockTimeRegex.MatchString(fl.Field().String())
}

// DateYMD validates a YYYY-MM-DD calendar date.
func DateYMD(fl validator.FieldLevel) bool {
	_, err := time.Parse("2006-01-02", fl.Field().String())
	return err == nil
}

type AmenityValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewAmenityValidator(log *logger.Logger) *AmenityValidator {
	v := validator.New()

	if err := v.RegisterValidation("clock_time", ClockTime); err != nil {
		log.Fatal("Failed to register 'clock_time' validator", "error", err)
	}
	if err := v.RegisterValidation("date_ymd", DateYMD); err != nil {
		log.Fatal("Failed to register 'date_ymd' validator", "error", err)
	}

	return &AmenityValidator{
		validate: v,
		logger:   log,
	}
}

func (v *AmenityValidator) Validate(amenity *model.Amenity) error {
	if err := v.validate.Struct(amenity); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return translate(validationErrs)
		}
		return err
	}

	if amenity.OpenUntil <= amenity.OpenFrom {
		return ValidationErrors{
			ValidationError{
				Field:   "OpenUntil",
				Message: "open_until must be after open_from",
			},
		}
	}

	for i, tpl := range amenity.SlotTemplates {
		if tpl.EndTime <= tpl.StartTime {
			return ValidationErrors{
				ValidationError{
					Field:   fmt.Sprintf("SlotTemplates[%d].EndTime", i),
					Message: "end_time must be after start_time",
				},
			}
		}
		if tpl.StartTime < amenity.OpenFrom || tpl.EndTime > amenity.OpenUntil {
			return ValidationErrors{
				ValidationError{
					Field:   fmt.Sprintf("SlotTemplates[%d]", i),
					Message: "template window must fall within operating hours",
				},
			}
		}
	}

	return nil
}

func (v *AmenityValidator) ValidateUpdate(update *model.AmenityUpdate) error {
	if err := v.validate.Struct(update); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return translate(validationErrs)
		}
		return err
	}
	return nil
}

func translate(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "min":
			message = fmt.Sprintf("%s must be at least %s", err.Field(), err.Param())
		case "max":
			message = fmt.Sprintf("%s must be at most %s", err.Field(), err.Param())
		case "mongodb":
			message = fmt.Sprintf("%s must be a valid MongoDB ObjectID", err.Field())
		case "oneof":
			message = fmt.Sprintf("%s must be one of: %s", err.Field(), err.Param())
		case "clock_time":
			message = fmt.Sprintf("%s must be a valid HH:MM time", err.Field())
		case "date_ymd":
			message = fmt.Sprintf("%s must be a valid YYYY-MM-DD date", err.Field())
		case "timezone":
			message = fmt.Sprintf("%s must be a valid IANA time zone", err.Field())
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}
