package report

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"sweepin/internal/events"
	"sweepin/internal/models"
)

type Details struct {
	Report *models.Report
	Images []models.ReportImage
}

// Report returns a report with its recorded images.
func (s *Service) Report(ctx context.Context, id uuid.UUID) (*Details, error) {
	const op = "report.Report"

	rep, err := s.Reports.GetReport(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	images, err := s.Reports.ListImages(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Details{Report: rep, Images: images}, nil
}

// ImageContent is one stored, stamped photo read back from artifact storage.
type ImageContent struct {
	Image models.ReportImage
	Data  []byte
}

// ReportImage reads one of a report's stamped photos from whichever artifact
// backend stored it. An image id that does not belong to the report is
// ErrImageNotFound.
func (s *Service) ReportImage(ctx context.Context, reportID, imageID uuid.UUID) (*ImageContent, error) {
	const op = "report.ReportImage"

	if _, err := s.Reports.GetReport(ctx, reportID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	images, err := s.Reports.ListImages(ctx, reportID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	for _, img := range images {
		if img.ID != imageID {
			continue
		}
		data, err := s.Artifacts.Get(ctx, img.StoredPath)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return &ImageContent{Image: img, Data: data}, nil
	}
	return nil, fmt.Errorf("%s: %w: %s", op, models.ErrImageNotFound, imageID)
}

// UpdateStatus approves or rejects a PENDING report. Every other move is
// ErrInvalidTransition, including a report decided concurrently.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status models.ReportStatus) (*models.Report, error) {
	const op = "report.UpdateStatus"

	if _, ok := models.ParseReportStatus(string(status)); !ok {
		return nil, fmt.Errorf("%s: %w: unknown status %q", op, models.ErrInvalidInput, status)
	}
	rep, err := s.Reports.GetReport(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !rep.Status.CanTransition(status) {
		return nil, fmt.Errorf("%s: %w: %s -> %s", op, models.ErrInvalidTransition, rep.Status, status)
	}
	if err := s.Reports.UpdateStatus(ctx, id, rep.Status, status); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	rep.Status = status

	log := s.Logger.With().Str("report_id", id.String()).Logger()
	s.publish(ctx, log, events.Event{
		Type:     events.ReportStatusChanged,
		ReportID: id.String(),
		UserID:   rep.UserID,
		Status:   string(status),
		At:       s.now(),
	})
	log.Info().Str("status", string(status)).Msg("report status changed")
	return rep, nil
}
