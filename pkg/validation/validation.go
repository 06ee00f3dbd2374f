// Package validation registers the request validation tags used by the scheduler API
// and converts validator errors into per-field messages.
package validation

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/teambition/rrule-go"

	"github.com/shepherd-hub/backend/pkg/response"
)

var (
	timeOfDayRegex    = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)
	ministryCodeRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_\-]*$`)
)

// Messages for the built-in and custom tags. Unknown tags fall back to ErrInvalidValue.
const (
	ErrFieldRequired = "is required"
	ErrInvalidValue  = "is invalid"
	ErrInvalidEmail  = "must be a valid email address"
	ErrTooShort      = "is too short"
	ErrTooLong       = "is too long"
	ErrTooSmall      = "is too small"
	ErrTooLarge      = "is too large"
)

// New returns a validator with the custom tags registered and JSON field names reported.
func New() *validator.Validate {
	v := validator.New()
	if err := Register(v); err != nil {
		panic(err)
	}
	return v
}

// Install registers the custom tags on gin's default binding validator.
func Install() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("gin binding engine is not go-playground validator")
	}
	return Register(v)
}

// Register adds timeofday, timezone, rrule and ministrycode tags to v.
func Register(v *validator.Validate) error {
	v.RegisterTagNameFunc(jsonName)
	for tag, fn := range map[string]validator.Func{
		"timeofday":    validateTimeOfDay,
		"timezone":     validateTimezone,
		"rrule":        validateRRule,
		"ministrycode": validateMinistryCode,
	} {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return err
		}
	}
	return nil
}

func jsonName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return f.Name
	}
	return name
}

func validateTimeOfDay(fl validator.FieldLevel) bool {
	return timeOfDayRegex.MatchString(fl.Field().String())
}

func validateTimezone(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" {
		return false
	}
	_, err := time.LoadLocation(s)
	return err == nil
}

// Empty rules are allowed; they mean a one-off schedule.
func validateRRule(fl validator.FieldLevel) bool {
	s := strings.TrimSpace(fl.Field().String())
	if s == "" {
		return true
	}
	_, err := rrule.StrToROption(strings.TrimPrefix(s, "RRULE:"))
	return err == nil
}

func validateMinistryCode(fl validator.FieldLevel) bool {
	return ministryCodeRegex.MatchString(fl.Field().String())
}

// FieldErrors converts validator errors into a field -> message map.
// It returns nil when err is not a validation error.
func FieldErrors(err error) response.FieldErrors {
	var vErrs validator.ValidationErrors
	if !errors.As(err, &vErrs) || len(vErrs) == 0 {
		return nil
	}
	out := make(response.FieldErrors, len(vErrs))
	for _, fe := range vErrs {
		out[fieldPath(fe)] = message(fe)
	}
	return out
}

// fieldPath drops the top-level struct name from the namespace. Generic struct names carry their
// type arguments in brackets (SaveRequest[pkg/path.Input]), so dots inside brackets are skipped.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	depth := 0
	for i := 0; i < len(ns); i++ {
		switch ns[i] {
		case '[':
			depth++
		case ']':
			depth--
		case '.':
			if depth == 0 {
				return ns[i+1:]
			}
		}
	}
	return fe.Field()
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_without", "required_with":
		return ErrFieldRequired
	case "email":
		return ErrInvalidEmail
	case "min":
		if fe.Kind() == reflect.String || fe.Kind() == reflect.Slice {
			return ErrTooShort
		}
		return ErrTooSmall
	case "max":
		if fe.Kind() == reflect.String || fe.Kind() == reflect.Slice {
			return ErrTooLong
		}
		return ErrTooLarge
	case "gt", "gte":
		return ErrTooSmall
	case "lt", "lte":
		return ErrTooLarge
	case "timeofday":
		return "must be a time of day (HH:MM)"
	case "timezone":
		return "must be an IANA time zone"
	case "rrule":
		return "must be a valid recurrence rule"
	case "hexcolor":
		return "must be a hex color"
	case "ministrycode":
		return "may only contain letters, digits, '-' and '_'"
	case "oneof":
		return "must be one of: " + fe.Param()
	}
	return ErrInvalidValue
}
