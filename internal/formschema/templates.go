package formschema

import (
	"sort"

	"github.com/shepherd-hub/backend/internal/models"
)

// Template names a predefined field set.
type Template string

const (
	TemplateSeminar    Template = "seminar"
	TemplateConference Template = "conference"
	TemplateFellowship Template = "fellowship"
)

var templates = map[Template][]models.FormField{
	TemplateSeminar: {
		{Type: models.FieldText, Label: "Organization / Church", Placeholder: "Where do you attend?"},
		{Type: models.FieldText, Label: "Role or Title"},
		{Type: models.FieldSelect, Label: "How did you hear about this seminar?", Options: []string{"Church announcement", "Friend or family", "Social media", "Website", "Other"}},
		{Type: models.FieldTextarea, Label: "Questions for the speaker", HelpText: "Optional, we will try to cover them."},
	},
	TemplateConference: {
		{Type: models.FieldPhone, Label: "Mobile number", Required: true},
		{Type: models.FieldText, Label: "Organization / Church"},
		{Type: models.FieldSelect, Label: "T-shirt size", Options: []string{"XS", "S", "M", "L", "XL", "XXL"}},
		{Type: models.FieldSelect, Label: "Dietary requirements", Options: []string{"None", "Vegetarian", "Vegan", "Gluten free", "Other"}},
		{Type: models.FieldTextarea, Label: "Accessibility needs"},
		{Type: models.FieldCheckbox, Label: "I agree to be photographed during the event", Required: true},
	},
	TemplateFellowship: {
		{Type: models.FieldNumber, Label: "Number of children attending", Placeholder: "0"},
		{Type: models.FieldSelect, Label: "Bringing a dish?", Options: []string{"Main", "Side", "Dessert", "Drinks", "Not this time"}},
		{Type: models.FieldTextarea, Label: "Food allergies"},
	},
}

// Templates lists the available template names in a stable order.
func Templates() []Template {
	out := make([]Template, 0, len(templates))
	for name := range templates {
		out = append(out, name)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// TemplateFields returns a copy of the named template's fields, without ids.
func TemplateFields(name Template) []models.FormField {
	tpl := templates[name]
	out := make([]models.FormField, len(tpl))
	for i, f := range tpl {
		f.Options = append([]string(nil), f.Options...)
		out[i] = f
	}
	return out
}
