package database

import (
	"fmt"
	"regexp"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsUniqueViolation(t *testing.T) {
	dup := &pgconn.PgError{Code: "23505", ConstraintName: "ministries_tenant_code_key"}

	tests := []struct {
		name       string
		err        error
		constraint string
		want       bool
	}{
		{"any constraint", dup, "", true},
		{"matching constraint", dup, "ministries_tenant_code_key", true},
		{"wrapped", fmt.Errorf("insert ministry: %w", dup), "ministries_tenant_code_key", true},
		{"other constraint", dup, "users_email_key", false},
		{"other code", &pgconn.PgError{Code: "23503"}, "", false},
		{"plain error", fmt.Errorf("boom"), "", false},
		{"nil", nil, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsUniqueViolation(tt.err, tt.constraint))
		})
	}
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(fmt.Errorf("get: %w", pgx.ErrNoRows)))
	assert.False(t, IsNotFound(fmt.Errorf("get")))
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	assert.NoError(t, err)
	assert.NotEmpty(t, entries)
}

var nullMemberOnDelete = regexp.MustCompile(`member_id\s+UUID\s+REFERENCES\s+members\(id\)\s+ON DELETE SET NULL`)

// Registrations and attendance rows need either a member or a guest name, so removing a member
// must not null the reference out from under the identity check.
func TestMemberReferencesKeepIdentity(t *testing.T) {
	raw, err := migrationsFS.ReadFile("migrations/001_schema.sql")
	require.NoError(t, err)
	schema := string(raw)

	for _, table := range []string{"registrations", "attendance_records"} {
		t.Run(table, func(t *testing.T) {
			start := strings.Index(schema, "CREATE TABLE IF NOT EXISTS "+table+" (")
			require.GreaterOrEqual(t, start, 0)
			end := strings.Index(schema[start:], ");")
			require.Greater(t, end, 0)
			def := schema[start : start+end]

			assert.Contains(t, def, "(member_id IS NULL) <> (guest_name IS NULL)")
			assert.False(t, nullMemberOnDelete.MatchString(def))
			assert.Contains(t, def, "REFERENCES members(id) ON DELETE NO ACTION")
		})
	}
}
