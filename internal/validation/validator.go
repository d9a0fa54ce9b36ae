package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/cvitapilot/cvitapilot/internal/models"
)

const Present = "present"

var dateLayouts = []string{"2006-01-02", "2006-01"}

var (
	validatorOnce sync.Once
	validatorInst *validator.Validate
)

// Validator returns the shared validator with the CV rules registered.
func Validator() *validator.Validate {
	validatorOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return f.Name
			}
			return name
		})
		_ = v.RegisterValidation("date_or_present", func(fl validator.FieldLevel) bool {
			value := fl.Field().String()
			if value == "" || strings.EqualFold(value, Present) {
				return true
			}
			_, ok := ParseDate(value)
			return ok
		})
		v.RegisterStructValidation(experienceRange, models.Experience{})
		v.RegisterStructValidation(educationRange, models.Education{})
		validatorInst = v
	})
	return validatorInst
}

// ParseDate accepts YYYY-MM-DD or YYYY-MM.
func ParseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func endBeforeStart(start, end string) bool {
	if start == "" || end == "" || strings.EqualFold(end, Present) {
		return false
	}
	s, ok1 := ParseDate(start)
	e, ok2 := ParseDate(end)
	if !ok1 || !ok2 {
		return false
	}
	return e.Before(s)
}

func experienceRange(sl validator.StructLevel) {
	e := sl.Current().Interface().(models.Experience)
	if endBeforeStart(e.StartDate, e.EndDate) {
		sl.ReportError(e.EndDate, "end_date", "EndDate", "after_start", "")
	}
}

func educationRange(sl validator.StructLevel) {
	e := sl.Current().Interface().(models.Education)
	if endBeforeStart(e.StartDate, e.EndDate) {
		sl.ReportError(e.EndDate, "end_date", "EndDate", "after_start", "")
	}
}

// Struct validates v against its `validate` tags.
func Struct(v any) error {
	return Validator().Struct(v)
}

type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// FieldErrors flattens a validator error into client-facing details.
// It returns nil for errors that did not come from the validator.
func FieldErrors(err error) []FieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{
			Field:   fe.Field(),
			Rule:    fe.Tag(),
			Message: message(fe),
		})
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "email":
		return "must be a valid email address"
	case "url":
		return "must be a valid URL"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "date_or_present":
		return "must be YYYY-MM, YYYY-MM-DD or \"present\""
	case "after_start":
		return "must not be before the start date"
	case "hexcolor":
		return "must be a hex colour"
	default:
		return "is invalid"
	}
}
