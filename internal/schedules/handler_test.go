package schedules

import (
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
	"github.com/shepherd-hub/backend/internal/models"
	"github.com/shepherd-hub/backend/pkg/response"
	"github.com/shepherd-hub/backend/pkg/validation"
)

func newTestRouter(t *testing.T, f *fixture) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	require.NoError(t, validation.Install())
	h := NewHandler(f.svc, nil)
	r := gin.New()
	r.GET("/qr/registration/:token", h.ResolveRegistrationQR)
	api := r.Group("", func(c *gin.Context) { c.Set(middleware.ContextTenantID, f.tenant) })
	api.GET("/form-templates", h.FormTemplates)
	api.POST("/schedules", h.Create)
	api.GET("/schedules/:id", h.Get)
	api.POST("/schedules/:id/attendance-qr", h.IssueQR(models.QRPurposeAttendance))
	api.GET("/schedules/:id/attendance-qr", h.LatestQR(models.QRPurposeAttendance))
	api.POST("/schedules/:id/registration-qr", h.IssueQR(models.QRPurposeRegistration))
	api.POST("/schedules/:id/cover-photo", h.UploadCoverPhoto)
	return r
}

func do(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandlerCreateValidation(t *testing.T) {
	f := newFixture(false)
	r := newTestRouter(t, f)

	body := `{"ministry_id":"` + f.ministryID.String() + `","name":"Youth Night","schedule_type":"youth",
		"start_date":"2024-13-01","start_time":"25:00","end_time":"21:00","timezone":"Mars/Olympus",
		"recurrence_rule":"FREQ=NEVER","location_type":"orbital","capacity":-1}`
	w := do(r, http.MethodPost, "/schedules", body)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var resp response.Body
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	for _, field := range []string{"start_date", "start_time", "timezone", "recurrence_rule", "location_type", "capacity"} {
		assert.Contains(t, resp.Fields, field)
	}
}

func TestHandlerCreateWithFormTemplate(t *testing.T) {
	f := newFixture(false)
	r := newTestRouter(t, f)

	body := `{"ministry_id":"` + f.ministryID.String() + `","name":"Leaders Seminar","schedule_type":"seminar",
		"start_date":"2024-03-03","start_time":"09:30","end_time":"11:00","timezone":"America/Chicago",
		"form_schema":[{"type":"text","label":"Small group"}],"form_template":"Seminar"}`
	w := do(r, http.MethodPost, "/schedules", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		Data models.Schedule `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data.FormSchema, 5)
	assert.Equal(t, "Small group", resp.Data.FormSchema[0].Label)
	for _, field := range resp.Data.FormSchema {
		assert.NotEmpty(t, field.ID)
	}
}

func TestHandlerFormTemplates(t *testing.T) {
	r := newTestRouter(t, newFixture(false))
	w := do(r, http.MethodGet, "/form-templates", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data []struct {
			Name   string             `json:"name"`
			Fields []models.FormField `json:"fields"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 3)
	assert.Equal(t, "conference", resp.Data[0].Name)
	assert.NotEmpty(t, resp.Data[0].Fields)
}

func TestHandlerCreateUnknownMinistry(t *testing.T) {
	f := newFixture(false)
	r := newTestRouter(t, f)

	body := `{"ministry_id":"` + uuid.NewString() + `","name":"Youth Night","schedule_type":"youth",
		"start_date":"2024-03-01","start_time":"19:00","end_time":"21:00","timezone":"UTC"}`
	w := do(r, http.MethodPost, "/schedules", body)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "ministry_id")
}

func TestHandlerQRFlow(t *testing.T) {
	f := newFixture(false)
	r := newTestRouter(t, f)

	body := `{"ministry_id":"` + f.ministryID.String() + `","name":"Youth Night","schedule_type":"youth",
		"start_date":"2024-03-01","start_time":"19:00","end_time":"21:00","timezone":"UTC","registration_required":true}`
	w := do(r, http.MethodPost, "/schedules", body)
	require.Equal(t, http.StatusCreated, w.Code)
	var created struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = do(r, http.MethodGet, "/schedules/"+created.Data.ID+"/attendance-qr", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, http.MethodPost, "/schedules/"+created.Data.ID+"/attendance-qr", "")
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), "/checkin?token=")

	w = do(r, http.MethodPost, "/schedules/"+created.Data.ID+"/attendance-qr", `{"expires_in_hours":1000}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(r, http.MethodGet, "/schedules/"+created.Data.ID+"/attendance-qr", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodPost, "/schedules/"+created.Data.ID+"/registration-qr", `{"expires_in_hours":2}`)
	require.Equal(t, http.StatusCreated, w.Code)
	var issued struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &issued))

	w = do(r, http.MethodGet, "/qr/registration/"+issued.Data.Token, "")
	assert.Equal(t, http.StatusNotFound, w.Code, "no upcoming occurrence yet")

	w = do(r, http.MethodGet, "/qr/registration/garbage", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandlerCoverPhotoWithoutStorage(t *testing.T) {
	f := newFixture(false)
	r := newTestRouter(t, f)

	w := do(r, http.MethodPost, "/schedules/"+uuid.NewString()+"/cover-photo", "")
	assert.Equal(t, http.StatusBadRequest, w.Code, "missing multipart file")
}
