package formschema

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shepherd-hub/backend/internal/models"
)

func labels(fields []models.FormField) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = f.Label
	}
	return out
}

func TestSeminarTemplateOnEmptyForm(t *testing.T) {
	b := NewBuilder(nil)
	require.NoError(t, b.ApplyTemplate("seminar"))

	got := b.Fields()
	require.Len(t, got, 4)
	assert.Equal(t, labels(templates[TemplateSeminar]), labels(got))

	ids := map[string]bool{}
	for _, f := range got {
		assert.NotEmpty(t, f.ID)
		ids[f.ID] = true
	}
	assert.Len(t, ids, 4, "ids are unique")
}

func TestTemplateAppendsToExistingFields(t *testing.T) {
	b := NewBuilder(nil)
	first := b.Add(models.FormField{Type: models.FieldText, Label: "Favourite hymn"})
	require.NoError(t, b.ApplyTemplate("fellowship"))

	got := b.Fields()
	require.Len(t, got, 1+len(templates[TemplateFellowship]))
	assert.Equal(t, first.ID, got[0].ID)

	// applying twice never reuses ids
	require.NoError(t, b.ApplyTemplate("fellowship"))
	assert.Nil(t, ValidateSchema(b.Fields()))
}

func TestTemplateDoesNotShareOptions(t *testing.T) {
	b := NewBuilder(nil)
	require.NoError(t, b.ApplyTemplate("conference"))
	f := b.Fields()[2]
	f.Options[0] = "changed"
	assert.Equal(t, "XS", templates[TemplateConference][2].Options[0])
}

func TestUnknownTemplate(t *testing.T) {
	err := NewBuilder(nil).ApplyTemplate("picnic")
	assert.ErrorIs(t, err, ErrUnknownTemplate)
}

func TestTemplateNameIgnoresCase(t *testing.T) {
	for _, name := range []string{"Seminar", "SEMINAR", " seminar "} {
		b := NewBuilder(nil)
		require.NoError(t, b.ApplyTemplate(name), name)
		assert.Len(t, b.Fields(), len(templates[TemplateSeminar]), name)
	}
}

func TestFillIDs(t *testing.T) {
	b := NewBuilder([]models.FormField{
		{Type: models.FieldText, Label: "A"},
		{ID: "f1", Type: models.FieldText, Label: "B"},
		{ID: "  ", Type: models.FieldText, Label: "C"},
	})
	n := 0
	b.newID = func() string { n++; return fmt.Sprintf("f%d", n) }
	b.FillIDs()

	got := b.Fields()
	assert.Equal(t, []string{"A", "B", "C"}, labels(got))
	assert.Equal(t, "f2", got[0].ID)
	assert.Equal(t, "f1", got[1].ID)
	assert.Equal(t, "f3", got[2].ID)
	assert.Nil(t, ValidateSchema(got))
}

func TestGeneratedIDsSkipCollisions(t *testing.T) {
	b := NewBuilder([]models.FormField{{ID: "f1", Type: models.FieldText, Label: "A"}})
	n := 0
	b.newID = func() string { n++; return fmt.Sprintf("f%d", n) }

	added := b.Add(models.FormField{Type: models.FieldText, Label: "B"})
	assert.Equal(t, "f2", added.ID)
}

func TestMoveAndRemove(t *testing.T) {
	b := NewBuilder([]models.FormField{
		{ID: "a", Type: models.FieldText, Label: "A"},
		{ID: "b", Type: models.FieldText, Label: "B"},
		{ID: "c", Type: models.FieldText, Label: "C"},
	})

	require.NoError(t, b.MoveUp("a")) // first: no-op
	require.NoError(t, b.MoveDown("c")) // last: no-op
	assert.Equal(t, []string{"A", "B", "C"}, labels(b.Fields()))

	require.NoError(t, b.MoveUp("c"))
	assert.Equal(t, []string{"A", "C", "B"}, labels(b.Fields()))
	require.NoError(t, b.MoveDown("a"))
	assert.Equal(t, []string{"C", "A", "B"}, labels(b.Fields()))

	require.NoError(t, b.Remove("a"))
	assert.Equal(t, []string{"C", "B"}, labels(b.Fields()))

	assert.ErrorIs(t, b.Remove("a"), ErrFieldNotFound)
	assert.ErrorIs(t, b.MoveUp("zzz"), ErrFieldNotFound)
}

func TestUpdateDropsOptionsForNonSelect(t *testing.T) {
	b := NewBuilder([]models.FormField{{ID: "a", Type: models.FieldSelect, Label: "A", Options: []string{"x"}}})
	require.NoError(t, b.Update(models.FormField{ID: "a", Type: models.FieldText, Label: "A2", Options: []string{"x"}}))
	got := b.Fields()[0]
	assert.Equal(t, "A2", got.Label)
	assert.Nil(t, got.Options)
}

func TestBuilderCopiesInput(t *testing.T) {
	in := []models.FormField{{ID: "a", Type: models.FieldText, Label: "A"}}
	b := NewBuilder(in)
	require.NoError(t, b.Remove("a"))
	assert.Len(t, in, 1)
}
