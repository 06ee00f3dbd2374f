package tenants

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shepherd-hub/backend/internal/models"
)

type fakeStore struct {
	rows       []models.TenantOverview
	err        error
	now, since time.Time
}

func (f *fakeStore) Overview(_ context.Context, now, since time.Time) ([]models.TenantOverview, error) {
	f.now, f.since = now, since
	return f.rows, f.err
}

func serve(h *Handler) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/admin/tenants/overview", h.Overview)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/tenants/overview", nil))
	return w
}

func TestOverviewTotals(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	store := &fakeStore{rows: []models.TenantOverview{
		{Tenant: models.Tenant{ID: uuid.New(), Name: "Grace", IsActive: true}, Ministries: 4, UpcomingOccurrences: 10, RecentRegistrations: 40, RecentCheckIns: 31},
		{Tenant: models.Tenant{ID: uuid.New(), Name: "Hope"}, UpcomingOccurrences: 2, RecentRegistrations: 1},
	}}
	h := NewHandler(store, nil)
	h.now = func() time.Time { return now }

	w := serve(h)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, now, store.now)
	assert.Equal(t, time.Date(2024, 2, 9, 12, 0, 0, 0, time.UTC), store.since)

	var body struct {
		Data OverviewResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Data.Tenants, 2)
	assert.Equal(t, Totals{Tenants: 2, ActiveTenants: 1, UpcomingOccurrences: 12, RecentRegistrations: 41, RecentCheckIns: 31}, body.Data.Totals)
}

func TestOverviewEmptyAndError(t *testing.T) {
	w := serve(NewHandler(&fakeStore{}, nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"tenants":[]`)

	w = serve(NewHandler(&fakeStore{err: errors.New("boom")}, nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
