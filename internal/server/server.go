package server

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"sweepin/internal/models"
	"sweepin/internal/report"
)

type ReportService interface {
	Submit(ctx context.Context, req report.SubmitRequest) (*report.SubmitResult, error)
	Report(ctx context.Context, id uuid.UUID) (*report.Details, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.ReportStatus) (*models.Report, error)
	ReportImage(ctx context.Context, reportID, imageID uuid.UUID) (*report.ImageContent, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	cfg    *models.Config
	router *gin.Engine
	http   *http.Server
	svc    ReportService
	db     Pinger
	log    zerolog.Logger
}

func NewServer(cfg *models.Config, svc ReportService, db Pinger, log zerolog.Logger) *Server {
	if cfg.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(log))
	// only stamped artifacts; upload_dir may live under storage_path
	if cfg.ArtifactBackend == "local" {
		r.Static("/files", filepath.Join(cfg.StoragePath, "reports"))
	}

	s := &Server{cfg: cfg, router: r, svc: svc, db: db, log: log}

	r.GET("/health", s.handleHealth)
	r.POST("/report", s.handleSubmit)
	r.GET("/report/:id", s.handleGetReport)
	r.GET("/report/:id/images/:imageId", s.handleGetImage)
	r.PATCH("/report/:id/status", s.handleUpdateStatus)

	s.http = &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.cfg.ServerAddr).Msg("http server listening")
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	if s.db != nil {
		if err := s.db.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type failedPhoto struct {
	Index    int    `json:"index"`
	Filename string `json:"filename"`
	Error    string `json:"error"`
}

type submitResponse struct {
	ID          uuid.UUID           `json:"id"`
	Status      models.ReportStatus `json:"status"`
	SubmittedAt time.Time           `json:"submitted_at"`
	Images      []string            `json:"images"`
	Failed      []failedPhoto       `json:"failed,omitempty"`
}

func (s *Server) handleSubmit(c *gin.Context) {
	const op = "server.handleSubmit"

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	}

	photos, err := s.saveUploads(c, form)
	if err != nil {
		removeUploads(photos)
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	}

	res, err := s.svc.Submit(c.Request.Context(), report.SubmitRequest{
		UserID:      formValue(form, "user_id"),
		Description: formValue(form, "description"),
		Photos:      photos,
	})
	if err != nil && (res == nil || res.Report == nil) {
		s.fail(c, op, err)
		return
	}

	body := toSubmitResponse(res)
	switch {
	case err != nil:
		c.JSON(statusFor(err), gin.H{"error": err.Error(), "data": body})
	case res.Partial():
		c.JSON(http.StatusMultiStatus, gin.H{"message": "Report submitted with failed photos", "data": body})
	default:
		c.JSON(http.StatusOK, gin.H{"message": "Report submitted", "data": body})
	}
}

// saveUploads writes every file part to upload_dir under a unique temp name.
// Field names are walked in sorted order and files keep their order within a
// field.
func (s *Server) saveUploads(c *gin.Context, form *multipart.Form) ([]models.PhotoUpload, error) {
	if err := os.MkdirAll(s.cfg.UploadDir, 0o755); err != nil {
		return nil, err
	}

	fields := make([]string, 0, len(form.File))
	for field := range form.File {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var photos []models.PhotoUpload
	for _, field := range fields {
		for _, fh := range form.File[field] {
			tmp := filepath.Join(s.cfg.UploadDir, uuid.NewString()+filepath.Ext(fh.Filename))
			if err := c.SaveUploadedFile(fh, tmp); err != nil {
				return photos, err
			}
			photos = append(photos, models.PhotoUpload{Filename: fh.Filename, TempPath: tmp})
		}
	}
	return photos, nil
}

func removeUploads(photos []models.PhotoUpload) {
	for _, p := range photos {
		os.Remove(p.TempPath)
	}
}

func formValue(form *multipart.Form, key string) string {
	if v := form.Value[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}

func toSubmitResponse(res *report.SubmitResult) submitResponse {
	body := submitResponse{
		ID:          res.Report.ID,
		Status:      res.Report.Status,
		SubmittedAt: res.Report.SubmittedAt,
		Images:      make([]string, 0, len(res.Images)),
	}
	for _, img := range res.Images {
		body.Images = append(body.Images, img.StoredPath)
	}
	for _, f := range res.Failed {
		body.Failed = append(body.Failed, failedPhoto{Index: f.Index, Filename: f.Filename, Error: f.Err.Error()})
	}
	return body
}

func (s *Server) handleGetReport(c *gin.Context) {
	const op = "server.handleGetReport"

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	}

	details, err := s.svc.Report(c.Request.Context(), id)
	if err != nil {
		s.fail(c, op, err)
		return
	}
	images := make([]imageResponse, 0, len(details.Images))
	for _, img := range details.Images {
		images = append(images, imageResponse{
			ReportImage: img,
			URL:         fmt.Sprintf("/report/%s/images/%s", img.ReportID, img.ID),
		})
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"report": details.Report,
		"images": images,
	}})
}

type imageResponse struct {
	models.ReportImage
	URL string `json:"url"`
}

// handleGetImage streams a stamped photo from the artifact backend, local or
// Supabase alike.
func (s *Server) handleGetImage(c *gin.Context) {
	const op = "server.handleGetImage"

	reportID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	}
	imageID, err := uuid.Parse(c.Param("imageId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	}

	content, err := s.svc.ReportImage(c.Request.Context(), reportID, imageID)
	if err != nil {
		s.fail(c, op, err)
		return
	}
	contentType := mime.TypeByExtension(filepath.Ext(content.Image.StoredPath))
	if contentType == "" {
		contentType = http.DetectContentType(content.Data)
	}
	c.Data(http.StatusOK, contentType, content.Data)
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (s *Server) handleUpdateStatus(c *gin.Context) {
	const op = "server.handleUpdateStatus"

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	}

	rep, err := s.svc.UpdateStatus(c.Request.Context(), id, models.ReportStatus(req.Status))
	if err != nil {
		s.fail(c, op, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Status updated", "data": rep})
}

func (s *Server) fail(c *gin.Context, op string, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		s.log.Error().Err(err).Str("op", op).Msg("request failed")
	}
	c.JSON(code, gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	// ErrNoImagesStored wraps the first photo error, so it is matched first.
	switch {
	case errors.Is(err, models.ErrNoImagesStored), errors.Is(err, models.ErrDecode):
		return http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrUserNotFound), errors.Is(err, models.ErrReportNotFound),
		errors.Is(err, models.ErrImageNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, models.ErrPersistence):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
