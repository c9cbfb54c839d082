// Package report runs report submission: it creates the report, stamps every
// photo with the report's watermark and records the durable artifacts.
package report

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"sweepin/internal/artifact"
	"sweepin/internal/events"
	"sweepin/internal/models"
	"sweepin/internal/processor"
	"sweepin/internal/watermark"
)

type UserStore interface {
	UserExists(ctx context.Context, userID string) (bool, error)
}

type ReportStore interface {
	CreateReport(ctx context.Context, r *models.Report) error
	AddImage(ctx context.Context, img *models.ReportImage) error
	GetReport(ctx context.Context, id uuid.UUID) (*models.Report, error)
	ListImages(ctx context.Context, reportID uuid.UUID) ([]models.ReportImage, error)
	// UpdateStatus moves the report only if it is still in from.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to models.ReportStatus) error
	// StaleReports lists PENDING reports without images submitted before cutoff.
	StaleReports(ctx context.Context, cutoff time.Time) ([]models.Report, error)
}

type StampComposer interface {
	Compose(qrPayload, reportID string, submittedAt time.Time, description string) (*watermark.Stamp, error)
}

type Normalizer interface {
	Normalize(photo []byte) (*processor.NormalizedImage, error)
}

type Overlayer interface {
	Overlay(img *processor.NormalizedImage, stamp *watermark.Stamp) ([]byte, error)
}

type Deps struct {
	Users      UserStore
	Reports    ReportStore
	Composer   StampComposer
	Normalizer Normalizer
	Overlayer  Overlayer
	Artifacts  artifact.Store
	Events     events.Publisher
	Logger     zerolog.Logger
}

type Options struct {
	DeepLinkBase   string
	MaxDescription int
	Workers        int
}

type Service struct {
	Deps
	opts Options
	now  func() time.Time
}

func NewService(deps Deps, opts Options) *Service {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if deps.Events == nil {
		deps.Events = events.Nop{}
	}
	opts.DeepLinkBase = strings.TrimSuffix(opts.DeepLinkBase, "/")
	return &Service{Deps: deps, opts: opts, now: time.Now}
}

type SubmitRequest struct {
	UserID      string
	Description string
	Photos      []models.PhotoUpload
}

// PhotoError is one photo that did not make it to durable storage.
type PhotoError struct {
	Index    int
	Filename string
	Err      error
}

func (e PhotoError) Error() string {
	return fmt.Sprintf("photo %d (%s): %v", e.Index, e.Filename, e.Err)
}

func (e PhotoError) Unwrap() error { return e.Err }

// SubmitResult lists stored images in upload order. Failed is empty on full
// success.
type SubmitResult struct {
	Report *models.Report
	Images []models.ReportImage
	Failed []PhotoError
}

func (r *SubmitResult) Partial() bool {
	return len(r.Images) > 0 && len(r.Failed) > 0
}

// QRPayload is the deep link encoded in a report's stamp.
func (s *Service) QRPayload(reportID uuid.UUID) string {
	return s.opts.DeepLinkBase + "/laporan/" + reportID.String()
}

// Submit creates a PENDING report and stamps every photo with one shared
// watermark. A failing photo does not stop the others; when no photo is
// stored the result is returned together with ErrNoImagesStored.
// Temp uploads are removed whatever the outcome.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	const op = "report.Submit"
	defer s.removeTemps(req.Photos)

	if err := s.validate(req); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	exists, err := s.Users.UserExists(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !exists {
		return nil, fmt.Errorf("%s: %w: %s", op, models.ErrUserNotFound, req.UserID)
	}

	rep := &models.Report{
		ID:          uuid.New(),
		UserID:      req.UserID,
		Description: req.Description,
		SubmittedAt: s.now().Truncate(time.Second),
		Status:      models.StatusPending,
	}
	if err := s.Reports.CreateReport(ctx, rep); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	log := s.Logger.With().Str("report_id", rep.ID.String()).Str("user_id", rep.UserID).Logger()

	stamp, err := s.Composer.Compose(s.QRPayload(rep.ID), rep.ID.String(), rep.SubmittedAt, rep.Description)
	if err != nil {
		log.Error().Err(err).Msg("stamp composition failed")
		return &SubmitResult{Report: rep}, fmt.Errorf("%s: %w: %w", op, models.ErrNoImagesStored, err)
	}

	stored := s.processAll(ctx, stamp, req.Photos)

	res := &SubmitResult{Report: rep}
	for i, out := range stored {
		if out.err != nil {
			res.Failed = append(res.Failed, PhotoError{Index: i, Filename: req.Photos[i].Filename, Err: out.err})
			continue
		}
		img := models.ReportImage{ID: uuid.New(), ReportID: rep.ID, StoredPath: out.path}
		if err := s.Reports.AddImage(ctx, &img); err != nil {
			// the artifact is on disk but unrecorded; the sweeper reports it if nothing else lands
			res.Failed = append(res.Failed, PhotoError{Index: i, Filename: req.Photos[i].Filename, Err: err})
			continue
		}
		res.Images = append(res.Images, img)
	}

	for _, f := range res.Failed {
		log.Warn().Err(f.Err).Int("photo", f.Index).Str("filename", f.Filename).Msg("photo not stored")
	}

	if len(res.Images) == 0 {
		return res, fmt.Errorf("%s: %w: %w", op, models.ErrNoImagesStored, res.Failed[0])
	}

	s.publish(ctx, log, submittedEvent(res, s.now()))
	log.Info().Int("images", len(res.Images)).Int("failed", len(res.Failed)).Msg("report submitted")
	return res, nil
}

func (s *Service) validate(req SubmitRequest) error {
	if strings.TrimSpace(req.UserID) == "" {
		return fmt.Errorf("%w: user id is required", models.ErrInvalidInput)
	}
	if len(req.Photos) == 0 {
		return fmt.Errorf("%w: at least one photo is required", models.ErrInvalidInput)
	}
	if !utf8.ValidString(req.Description) {
		return fmt.Errorf("%w: description is not valid UTF-8", models.ErrInvalidInput)
	}
	if limit := s.opts.MaxDescription; limit > 0 && utf8.RuneCountInString(req.Description) > limit {
		return fmt.Errorf("%w: description longer than %d characters", models.ErrInvalidInput, limit)
	}
	return nil
}

type photoOutcome struct {
	path string
	err  error
}

// processAll stamps photos on a bounded group. Outcomes are indexed by upload
// position so the caller can record them in order.
func (s *Service) processAll(ctx context.Context, stamp *watermark.Stamp, photos []models.PhotoUpload) []photoOutcome {
	out := make([]photoOutcome, len(photos))

	var g errgroup.Group
	g.SetLimit(s.opts.Workers)
	for i, photo := range photos {
		i, photo := i, photo
		g.Go(func() error {
			path, err := s.processPhoto(ctx, stamp, photo)
			out[i] = photoOutcome{path: path, err: err}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (s *Service) processPhoto(ctx context.Context, stamp *watermark.Stamp, photo models.PhotoUpload) (string, error) {
	defer s.removeTemp(photo)

	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := readPhoto(photo)
	if err != nil {
		return "", err
	}
	norm, err := s.Normalizer.Normalize(data)
	if err != nil {
		return "", err
	}
	stamped, err := s.Overlayer.Overlay(norm, stamp)
	if err != nil {
		return "", err
	}
	return s.Artifacts.Put(ctx, photo.Filename, stamped)
}

func readPhoto(photo models.PhotoUpload) ([]byte, error) {
	if photo.Data != nil {
		return photo.Data, nil
	}
	if photo.TempPath == "" {
		return nil, fmt.Errorf("%w: photo %q has no content", models.ErrInvalidInput, photo.Filename)
	}
	data, err := os.ReadFile(photo.TempPath)
	if err != nil {
		return nil, fmt.Errorf("%w: read upload: %v", models.ErrInvalidInput, err)
	}
	return data, nil
}

func (s *Service) removeTemp(photo models.PhotoUpload) {
	if photo.TempPath == "" {
		return
	}
	if err := os.Remove(photo.TempPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.Logger.Warn().Err(err).Str("path", photo.TempPath).Msg("temp upload not removed")
	}
}

func (s *Service) removeTemps(photos []models.PhotoUpload) {
	for _, p := range photos {
		s.removeTemp(p)
	}
}

func (s *Service) publish(ctx context.Context, log zerolog.Logger, ev events.Event) {
	if err := s.Events.Publish(ctx, ev); err != nil {
		log.Warn().Err(err).Str("event", ev.Type).Msg("event not published")
	}
}

func submittedEvent(res *SubmitResult, at time.Time) events.Event {
	ev := events.Event{
		Type:     events.ReportSubmitted,
		ReportID: res.Report.ID.String(),
		UserID:   res.Report.UserID,
		At:       at,
	}
	for _, img := range res.Images {
		ev.Images = append(ev.Images, img.StoredPath)
	}
	if len(res.Failed) > 0 {
		ev.Failed = make(map[string]string, len(res.Failed))
		for _, f := range res.Failed {
			ev.Failed[f.Filename] = f.Err.Error()
		}
	}
	return ev
}
