package registrations

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shepherd-hub/backend/internal/middleware"
	"github.com/shepherd-hub/backend/pkg/validation"
)

func newTestRouter(t *testing.T, f *fixture) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	require.NoError(t, validation.Install())
	h := NewHandler(f.svc, nil)
	r := gin.New()
	r.GET("/public/occurrences/:id", h.Public)
	r.POST("/public/occurrences/:id/register", h.PublicRegister)
	authed := r.Group("", func(c *gin.Context) { c.Set(middleware.ContextTenantID, f.tenant) })
	authed.GET("/occurrences/:id/registrations", h.List)
	authed.POST("/occurrences/:id/registrations", h.Create)
	authed.GET("/occurrences/:id/registrations/export", h.Export)
	authed.PUT("/occurrences/:id/registrations/:regId", h.UpdateStatus)
	return r
}

func do(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Success bool              `json:"success"`
	Data    json.RawMessage   `json:"data"`
	Error   string            `json:"error"`
	Fields  map[string]string `json:"fields"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestHandlerCreateAndWaitlist(t *testing.T) {
	f := newFixture(true)
	r := newTestRouter(t, f)
	occ := f.occurrence(intPtr(2))
	path := "/occurrences/" + occ.ID.String() + "/registrations"

	w := do(r, http.MethodPost, path, `{"guest_name":"Ana","guest_email":"ana@example.org","party_size":2}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"status":"confirmed"`)

	w = do(r, http.MethodPost, path, `{"guest_name":"Ben","guest_email":"ben@example.org"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"waitlisted"`)
	assert.Contains(t, w.Body.String(), `"waitlist_position":1`)

	w = do(r, http.MethodPost, path, `{"guest_name":"Ana","guest_email":"ANA@example.org"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(r, http.MethodGet, path+"?status=waitlisted", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list []map[string]interface{}
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &list))
	require.Len(t, list, 1)
	assert.Equal(t, "Ben", list[0]["guest_name"])

	w = do(r, http.MethodGet, path+"?status=maybe", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandlerCreateValidation(t *testing.T) {
	f := newFixture(true)
	r := newTestRouter(t, f)
	occ := f.occurrence(nil)
	path := "/occurrences/" + occ.ID.String() + "/registrations"

	tests := []struct {
		name   string
		body   string
		status int
		field  string
	}{
		{"bad email", `{"guest_name":"Ana","guest_email":"nope"}`, http.StatusUnprocessableEntity, "guest_email"},
		{"party too big", `{"guest_name":"Ana","guest_email":"ana@example.org","party_size":99}`, http.StatusUnprocessableEntity, "party_size"},
		{"missing guest name", `{"guest_email":"ana@example.org"}`, http.StatusUnprocessableEntity, "guest_name"},
		{"unknown member", `{"member_id":"` + uuid.NewString() + `"}`, http.StatusUnprocessableEntity, "member_id"},
		{"malformed", `{`, http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, http.MethodPost, path, tt.body)
			require.Equal(t, tt.status, w.Code, w.Body.String())
			if tt.field != "" {
				assert.Contains(t, decode(t, w).Fields, tt.field)
			}
		})
	}

	w := do(r, http.MethodPost, "/occurrences/"+uuid.NewString()+"/registrations", `{"guest_name":"Ana","guest_email":"ana@example.org"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandlerUpdateStatusPromotes(t *testing.T) {
	f := newFixture(true)
	r := newTestRouter(t, f)
	occ := f.occurrence(intPtr(1))
	path := "/occurrences/" + occ.ID.String() + "/registrations"

	w := do(r, http.MethodPost, path, `{"guest_name":"Ana","guest_email":"ana@example.org"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	var ana struct{ ID uuid.UUID }
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &ana))
	w = do(r, http.MethodPost, path, `{"guest_name":"Ben","guest_email":"ben@example.org"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w = do(r, http.MethodPut, path+"/"+ana.ID.String(), `{"status":"waitlisted"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(r, http.MethodPut, path+"/"+ana.ID.String(), `{"status":"cancelled"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var res StatusResult
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &res))
	require.Len(t, res.Promoted, 1)
	assert.Equal(t, "Ben", res.Promoted[0].GuestName)
	assert.Equal(t, 1, res.Counts.Registered)

	w = do(r, http.MethodPut, path+"/"+ana.ID.String(), `{"status":"confirmed"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(r, http.MethodPut, path+"/"+uuid.NewString(), `{"status":"cancelled"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandlerExport(t *testing.T) {
	f := newFixture(true)
	r := newTestRouter(t, f)
	occ := f.occurrence(nil)
	_, err := f.svc.Register(context.Background(), f.tenant, occ.ID, guest("ana", 1))
	require.NoError(t, err)

	w := do(r, http.MethodGet, "/occurrences/"+occ.ID.String()+"/registrations/export", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), occ.ID.String()+".csv")
	assert.True(t, strings.HasPrefix(w.Body.String(), "Name,Email,Phone,Type"))
	assert.Contains(t, w.Body.String(), "ana,ana@example.org")
}

func TestHandlerPublic(t *testing.T) {
	f := newFixture(true)
	r := newTestRouter(t, f)
	occ := f.occurrence(intPtr(10))

	w := do(r, http.MethodGet, "/public/occurrences/"+occ.ID.String(), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"schedule_name":"Marriage Seminar"`)
	assert.Contains(t, w.Body.String(), `"spots_left":10`)

	w = do(r, http.MethodPost, "/public/occurrences/"+occ.ID.String()+"/register", `{"guest_name":"Ana"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(r, http.MethodPost, "/public/occurrences/"+occ.ID.String()+"/register", `{"guest_name":"Ana","guest_email":"ana@example.org","party_size":3}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"confirmed"`)
	assert.Contains(t, w.Body.String(), `"party_size":3`)
	assert.NotContains(t, w.Body.String(), "tenant_id")

	w = do(r, http.MethodGet, "/public/occurrences/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = do(r, http.MethodGet, "/public/occurrences/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
