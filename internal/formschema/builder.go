// Package formschema edits a schedule's registration form and validates submitted responses against it.
package formschema

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/shepherd-hub/backend/internal/models"
)

var (
	ErrUnknownTemplate = errors.New("unknown form template")
	ErrFieldNotFound   = errors.New("form field not found")
)

// Builder holds an ordered field list. The zero value is not usable; call NewBuilder.
type Builder struct {
	fields []models.FormField
	newID  func() string
}

// NewBuilder starts from a copy of fields.
func NewBuilder(fields []models.FormField) *Builder {
	return &Builder{
		fields: append([]models.FormField(nil), fields...),
		newID:  func() string { return "field_" + uuid.NewString() },
	}
}

// Fields returns a copy of the current list.
func (b *Builder) Fields() []models.FormField {
	return append([]models.FormField{}, b.fields...)
}

func (b *Builder) uniqueID() string {
	for {
		id := b.newID()
		if b.indexOf(id) < 0 {
			return id
		}
	}
}

func (b *Builder) indexOf(id string) int {
	for i, f := range b.fields {
		if f.ID == id {
			return i
		}
	}
	return -1
}

// FillIDs gives every field that arrived without an id a fresh one, keeping order.
func (b *Builder) FillIDs() {
	for i := range b.fields {
		if strings.TrimSpace(b.fields[i].ID) == "" {
			b.fields[i].ID = b.uniqueID()
		}
	}
}

// Add appends f with a freshly generated id and returns the stored field.
func (b *Builder) Add(f models.FormField) models.FormField {
	f.ID = b.uniqueID()
	if f.Type != models.FieldSelect {
		f.Options = nil
	}
	b.fields = append(b.fields, f)
	return f
}

// Update replaces the field with f.ID, keeping its position.
func (b *Builder) Update(f models.FormField) error {
	i := b.indexOf(f.ID)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrFieldNotFound, f.ID)
	}
	if f.Type != models.FieldSelect {
		f.Options = nil
	}
	b.fields[i] = f
	return nil
}

// MoveUp swaps the field with its predecessor. Moving the first field is a no-op.
func (b *Builder) MoveUp(id string) error {
	i := b.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrFieldNotFound, id)
	}
	if i > 0 {
		b.fields[i-1], b.fields[i] = b.fields[i], b.fields[i-1]
	}
	return nil
}

// MoveDown swaps the field with its successor. Moving the last field is a no-op.
func (b *Builder) MoveDown(id string) error {
	i := b.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrFieldNotFound, id)
	}
	if i < len(b.fields)-1 {
		b.fields[i+1], b.fields[i] = b.fields[i], b.fields[i+1]
	}
	return nil
}

// Remove deletes the field with id.
func (b *Builder) Remove(id string) error {
	i := b.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrFieldNotFound, id)
	}
	b.fields = append(b.fields[:i], b.fields[i+1:]...)
	return nil
}

// ApplyTemplate appends the named template's fields, each with a fresh id. Names are matched
// ignoring case and surrounding space. On an empty form this is the same as replacing it.
func (b *Builder) ApplyTemplate(name string) error {
	tpl, ok := templates[Template(strings.ToLower(strings.TrimSpace(name)))]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTemplate, name)
	}
	for _, f := range tpl {
		f.Options = append([]string(nil), f.Options...)
		b.Add(f)
	}
	return nil
}
