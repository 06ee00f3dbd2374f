package formschema

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/shepherd-hub/backend/internal/models"
	"github.com/shepherd-hub/backend/pkg/response"
)

var (
	phoneRegex = regexp.MustCompile(`^\+?[0-9 ()\-.]{7,20}$`)
	validate   = validator.New()
)

// ValidateSchema checks a field list before it is stored on a schedule.
func ValidateSchema(fields []models.FormField) response.FieldErrors {
	errs := response.FieldErrors{}
	seen := make(map[string]bool, len(fields))
	for i, f := range fields {
		key := fmt.Sprintf("form_schema[%d]", i)
		switch {
		case strings.TrimSpace(f.ID) == "":
			errs[key+".id"] = "is required"
		case seen[f.ID]:
			errs[key+".id"] = "must be unique"
		}
		seen[f.ID] = true
		if strings.TrimSpace(f.Label) == "" {
			errs[key+".label"] = "is required"
		}
		if !validType(f.Type) {
			errs[key+".type"] = "is not a supported field type"
		}
		if f.Type == models.FieldSelect && len(f.Options) == 0 {
			errs[key+".options"] = "select fields need at least one option"
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

func validType(t models.FieldType) bool {
	switch t {
	case models.FieldText, models.FieldEmail, models.FieldPhone, models.FieldNumber,
		models.FieldDate, models.FieldSelect, models.FieldCheckbox, models.FieldTextarea:
		return true
	}
	return false
}

// ValidateResponses checks submitted answers against fields. It returns the answers restricted to known
// field ids, plus per-field errors keyed by field id (nil when valid).
func ValidateResponses(fields []models.FormField, answers map[string]interface{}) (map[string]interface{}, response.FieldErrors) {
	clean := make(map[string]interface{}, len(fields))
	errs := response.FieldErrors{}
	for _, f := range fields {
		v, present := answers[f.ID]
		if !present || isBlank(v) {
			if f.Required {
				errs[f.ID] = f.Label + " is required"
			}
			continue
		}
		norm, msg := checkValue(f, v)
		if msg != "" {
			errs[f.ID] = f.Label + " " + msg
			continue
		}
		if checked, _ := norm.(bool); f.Type == models.FieldCheckbox && f.Required && !checked {
			errs[f.ID] = f.Label + " must be checked"
			continue
		}
		clean[f.ID] = norm
	}
	if len(errs) == 0 {
		return clean, nil
	}
	return clean, errs
}

func isBlank(v interface{}) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	}
	return false
}

func checkValue(f models.FormField, v interface{}) (interface{}, string) {
	switch f.Type {
	case models.FieldText, models.FieldTextarea:
		s, ok := v.(string)
		if !ok {
			return nil, "must be text"
		}
		return strings.TrimSpace(s), ""
	case models.FieldEmail:
		s, ok := v.(string)
		if !ok || validate.Var(strings.TrimSpace(s), "email") != nil {
			return nil, "must be a valid email address"
		}
		return strings.TrimSpace(s), ""
	case models.FieldPhone:
		s, ok := v.(string)
		if !ok || !phoneRegex.MatchString(strings.TrimSpace(s)) {
			return nil, "must be a valid phone number"
		}
		return strings.TrimSpace(s), ""
	case models.FieldNumber:
		switch n := v.(type) {
		case float64:
			return n, ""
		case json.Number:
			if f, err := n.Float64(); err == nil {
				return f, ""
			}
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
				return f, ""
			}
		}
		return nil, "must be a number"
	case models.FieldDate:
		s, ok := v.(string)
		if !ok {
			return nil, "must be a date (YYYY-MM-DD)"
		}
		if _, err := time.Parse("2006-01-02", strings.TrimSpace(s)); err != nil {
			return nil, "must be a date (YYYY-MM-DD)"
		}
		return strings.TrimSpace(s), ""
	case models.FieldSelect:
		s, ok := v.(string)
		if !ok {
			return nil, "must be one of the listed options"
		}
		for _, o := range f.Options {
			if o == s {
				return s, ""
			}
		}
		return nil, "must be one of the listed options"
	case models.FieldCheckbox:
		switch b := v.(type) {
		case bool:
			return b, ""
		case string:
			if p, err := strconv.ParseBool(b); err == nil {
				return p, ""
			}
		}
		return nil, "must be true or false"
	}
	return nil, "has an unsupported type"
}
