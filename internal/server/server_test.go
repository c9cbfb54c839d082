package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sweepin/internal/models"
	"sweepin/internal/report"
)

type fakeService struct {
	got      report.SubmitRequest
	tempSeen []bool
	result   *report.SubmitResult
	err      error

	details   *report.Details
	updated   *models.Report
	statusErr error

	images map[uuid.UUID]*report.ImageContent
}

func (f *fakeService) Submit(_ context.Context, req report.SubmitRequest) (*report.SubmitResult, error) {
	f.got = req
	for _, p := range req.Photos {
		_, err := os.Stat(p.TempPath)
		f.tempSeen = append(f.tempSeen, err == nil)
	}
	return f.result, f.err
}

func (f *fakeService) Report(_ context.Context, id uuid.UUID) (*report.Details, error) {
	if f.details == nil {
		return nil, fmt.Errorf("report.Report: %w", models.ErrReportNotFound)
	}
	return f.details, nil
}

func (f *fakeService) UpdateStatus(_ context.Context, id uuid.UUID, status models.ReportStatus) (*models.Report, error) {
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	return f.updated, nil
}

func (f *fakeService) ReportImage(_ context.Context, reportID, imageID uuid.UUID) (*report.ImageContent, error) {
	img, ok := f.images[imageID]
	if !ok || img.Image.ReportID != reportID {
		return nil, fmt.Errorf("report.ReportImage: %w: %s", models.ErrImageNotFound, imageID)
	}
	return img, nil
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T, svc ReportService) *Server {
	t.Helper()
	cfg := &models.Config{
		Environment:     "test",
		StoragePath:     t.TempDir(),
		UploadDir:       t.TempDir(),
		ArtifactBackend: "local",
	}
	return NewServer(cfg, svc, fakePinger{}, zerolog.Nop())
}

func multipartBody(t *testing.T, fields map[string]string, files map[string][]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for field, names := range files {
		for _, name := range names {
			fw, err := w.CreateFormFile(field, name)
			require.NoError(t, err)
			_, err = fw.Write([]byte("data of " + name))
			require.NoError(t, err)
		}
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func sampleResult(images int, failed ...report.PhotoError) *report.SubmitResult {
	rep := &models.Report{
		ID:          uuid.New(),
		UserID:      "42",
		Status:      models.StatusPending,
		SubmittedAt: time.Date(2026, 10, 18, 7, 0, 0, 0, time.UTC),
	}
	res := &report.SubmitResult{Report: rep, Failed: failed}
	for i := 0; i < images; i++ {
		res.Images = append(res.Images, models.ReportImage{ID: uuid.New(), ReportID: rep.ID, StoredPath: fmt.Sprintf("storage/reports/%d.jpg", i)})
	}
	return res
}

func TestSubmit_OK(t *testing.T) {
	svc := &fakeService{result: sampleResult(2)}
	s := newTestServer(t, svc)

	body, ctype := multipartBody(t,
		map[string]string{"user_id": "42", "description": "Spill near entrance B"},
		map[string][]string{"photos": {"a.jpg", "b.jpg"}})
	req := httptest.NewRequest(http.MethodPost, "/report", body)
	req.Header.Set("Content-Type", ctype)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "42", svc.got.UserID)
	assert.Equal(t, "Spill near entrance B", svc.got.Description)
	require.Len(t, svc.got.Photos, 2)
	assert.Equal(t, "a.jpg", svc.got.Photos[0].Filename)
	assert.Equal(t, "b.jpg", svc.got.Photos[1].Filename)
	assert.NotEqual(t, svc.got.Photos[0].TempPath, svc.got.Photos[1].TempPath)
	assert.Equal(t, []bool{true, true}, svc.tempSeen)

	resp := decode(t, rec)
	data := resp["data"].(map[string]any)
	assert.Equal(t, svc.result.Report.ID.String(), data["id"])
	assert.Equal(t, "PENDING", data["status"])
	assert.Len(t, data["images"], 2)
	assert.NotContains(t, data, "failed")
}

func TestSubmit_Partial(t *testing.T) {
	svc := &fakeService{result: sampleResult(1, report.PhotoError{Index: 1, Filename: "b.jpg", Err: models.ErrDecode})}
	s := newTestServer(t, svc)

	body, ctype := multipartBody(t, map[string]string{"user_id": "42"}, map[string][]string{"photos": {"a.jpg", "b.jpg"}})
	req := httptest.NewRequest(http.MethodPost, "/report", body)
	req.Header.Set("Content-Type", ctype)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusMultiStatus, rec.Code)
	data := decode(t, rec)["data"].(map[string]any)
	failed := data["failed"].([]any)
	require.Len(t, failed, 1)
	assert.Equal(t, "b.jpg", failed[0].(map[string]any)["filename"])
}

func TestSubmit_Errors(t *testing.T) {
	cases := []struct {
		name   string
		result *report.SubmitResult
		err    error
		want   int
	}{
		{"invalid input", nil, fmt.Errorf("report.Submit: %w: at least one photo is required", models.ErrInvalidInput), http.StatusBadRequest},
		{"unknown user", nil, fmt.Errorf("report.Submit: %w: 9", models.ErrUserNotFound), http.StatusNotFound},
		{"db down", nil, fmt.Errorf("report.Submit: %w", models.ErrPersistence), http.StatusServiceUnavailable},
		{"nothing stored", sampleResult(0, report.PhotoError{Filename: "a.jpg", Err: models.ErrInvalidInput}),
			fmt.Errorf("report.Submit: %w: %w", models.ErrNoImagesStored, models.ErrInvalidInput), http.StatusUnprocessableEntity},
		{"unexpected", nil, errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestServer(t, &fakeService{result: tc.result, err: tc.err})

			body, ctype := multipartBody(t, map[string]string{"user_id": "42"}, map[string][]string{"photos": {"a.jpg"}})
			req := httptest.NewRequest(http.MethodPost, "/report", body)
			req.Header.Set("Content-Type", ctype)
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, req)

			assert.Equal(t, tc.want, rec.Code)
			assert.Contains(t, decode(t, rec), "error")
		})
	}
}

func TestSubmit_NotMultipart(t *testing.T) {
	s := newTestServer(t, &fakeService{})

	req := httptest.NewRequest(http.MethodPost, "/report", strings.NewReader(`{"user_id":"42"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetReport(t *testing.T) {
	id := uuid.New()
	svc := &fakeService{details: &report.Details{Report: &models.Report{ID: id, UserID: "42", Status: models.StatusApproved}}}
	s := newTestServer(t, svc)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/report/"+id.String(), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	data := decode(t, rec)["data"].(map[string]any)
	assert.Equal(t, "APPROVED", data["report"].(map[string]any)["status"])
	assert.Equal(t, []any{}, data["images"])

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/report/not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	s = newTestServer(t, &fakeService{})
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/report/"+id.String(), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateStatus(t *testing.T) {
	id := uuid.New()
	svc := &fakeService{updated: &models.Report{ID: id, Status: models.StatusRejected}}
	s := newTestServer(t, svc)

	patch := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPatch, "/report/"+id.String()+"/status", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		return rec
	}

	rec := patch(`{"status":"REJECTED"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "REJECTED", decode(t, rec)["data"].(map[string]any)["status"])

	assert.Equal(t, http.StatusBadRequest, patch(`{}`).Code)

	svc.statusErr = fmt.Errorf("report.UpdateStatus: %w", models.ErrInvalidTransition)
	assert.Equal(t, http.StatusConflict, patch(`{"status":"APPROVED"}`).Code)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, &fakeService{})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	s.db = fakePinger{err: models.ErrPersistence}
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestGetReport_ListsImageURLs(t *testing.T) {
	id := uuid.New()
	img := models.ReportImage{ID: uuid.New(), ReportID: id, StoredPath: "reports/a.jpg"}
	svc := &fakeService{details: &report.Details{
		Report: &models.Report{ID: id, UserID: "42", Status: models.StatusPending},
		Images: []models.ReportImage{img},
	}}
	s := newTestServer(t, svc)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/report/"+id.String(), nil))
	require.Equal(t, http.StatusOK, rec.Code)

	images := decode(t, rec)["data"].(map[string]any)["images"].([]any)
	require.Len(t, images, 1)
	got := images[0].(map[string]any)
	assert.Equal(t, img.ID.String(), got["id"])
	assert.Equal(t, "reports/a.jpg", got["stored_path"])
	assert.Equal(t, "/report/"+id.String()+"/images/"+img.ID.String(), got["url"])
}

func TestGetImage(t *testing.T) {
	reportID := uuid.New()
	img := models.ReportImage{ID: uuid.New(), ReportID: reportID, StoredPath: "reports/IMG_9.jpg"}
	svc := &fakeService{images: map[uuid.UUID]*report.ImageContent{
		img.ID: {Image: img, Data: []byte("jpeg bytes")},
	}}
	s := newTestServer(t, svc)

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	rec := get("/report/" + reportID.String() + "/images/" + img.ID.String())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, "jpeg bytes", rec.Body.String())

	assert.Equal(t, http.StatusNotFound, get("/report/"+uuid.NewString()+"/images/"+img.ID.String()).Code)
	assert.Equal(t, http.StatusNotFound, get("/report/"+reportID.String()+"/images/"+uuid.NewString()).Code)
	assert.Equal(t, http.StatusBadRequest, get("/report/"+reportID.String()+"/images/nope").Code)
}

func TestFiles_ServesOnlyStampedArtifacts(t *testing.T) {
	root := t.TempDir()
	cfg := &models.Config{
		Environment:     "test",
		StoragePath:     root,
		UploadDir:       filepath.Join(root, "tmp"),
		ArtifactBackend: "local",
	}
	require.NoError(t, os.MkdirAll(filepath.Join(root, "reports"), 0o755))
	require.NoError(t, os.MkdirAll(cfg.UploadDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "reports", "a.jpg"), []byte("stamped"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.UploadDir, "raw.jpg"), []byte("raw"), 0o644))

	s := NewServer(cfg, &fakeService{}, fakePinger{}, zerolog.Nop())
	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	rec := get("/files/a.jpg")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "stamped", rec.Body.String())

	assert.Equal(t, http.StatusNotFound, get("/files/tmp/raw.jpg").Code)
}
