// internal/storage/storage.go
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"sweepin/internal/models"
)

const foreignKeyViolation = "23503"

type Storage struct {
	pool *pgxpool.Pool
}

func NewStorage(ctx context.Context, dsn string, log zerolog.Logger) (*Storage, error) {
	const op = "storage.NewStorage"

	if err := runMigrations(dsn, log); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, models.ErrPersistence, err)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, models.ErrPersistence, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s: %w: %v", op, models.ErrPersistence, err)
	}
	return &Storage{pool: pool}, nil
}

func (s *Storage) Close() {
	s.pool.Close()
}

func (s *Storage) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("storage.Ping: %w: %v", models.ErrPersistence, err)
	}
	return nil
}

func (s *Storage) UserExists(ctx context.Context, userID string) (bool, error) {
	const op = "storage.UserExists"

	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%s: %w: %v", op, models.ErrPersistence, err)
	}
	return exists, nil
}

// CreateUser is used by seeding and tests; users are otherwise managed elsewhere.
func (s *Storage) CreateUser(ctx context.Context, id, name string) error {
	const op = "storage.CreateUser"

	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, name) VALUES ($1, $2) ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`,
		id, name)
	if err != nil {
		return fmt.Errorf("%s: %w: %v", op, models.ErrPersistence, err)
	}
	return nil
}

func (s *Storage) CreateReport(ctx context.Context, r *models.Report) error {
	const op = "storage.CreateReport"

	_, err := s.pool.Exec(ctx,
		`INSERT INTO reports (id, user_id, description, status, submitted_at)
		VALUES ($1, $2, $3, $4, $5)`,
		r.ID, r.UserID, r.Description, string(r.Status), r.SubmittedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
			return fmt.Errorf("%s: %w: %s", op, models.ErrUserNotFound, r.UserID)
		}
		return fmt.Errorf("%s: %w: %v", op, models.ErrPersistence, err)
	}
	return nil
}

func (s *Storage) AddImage(ctx context.Context, img *models.ReportImage) error {
	const op = "storage.AddImage"

	_, err := s.pool.Exec(ctx,
		`INSERT INTO report_images (id, report_id, stored_path) VALUES ($1, $2, $3)`,
		img.ID, img.ReportID, img.StoredPath)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
			return fmt.Errorf("%s: %w: %s", op, models.ErrReportNotFound, img.ReportID)
		}
		return fmt.Errorf("%s: %w: %v", op, models.ErrPersistence, err)
	}
	return nil
}

func (s *Storage) GetReport(ctx context.Context, id uuid.UUID) (*models.Report, error) {
	const op = "storage.GetReport"

	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, description, status, submitted_at FROM reports WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, models.ErrPersistence, err)
	}
	r, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[models.Report])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w: %s", op, models.ErrReportNotFound, id)
		}
		return nil, fmt.Errorf("%s: %w: %v", op, models.ErrPersistence, err)
	}
	return &r, nil
}

// ListImages returns a report's images in the order they were recorded.
func (s *Storage) ListImages(ctx context.Context, reportID uuid.UUID) ([]models.ReportImage, error) {
	const op = "storage.ListImages"

	rows, err := s.pool.Query(ctx,
		`SELECT id, report_id, stored_path FROM report_images
		WHERE report_id = $1 ORDER BY created_at, id`, reportID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, models.ErrPersistence, err)
	}
	images, err := pgx.CollectRows(rows, pgx.RowToStructByName[models.ReportImage])
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, models.ErrPersistence, err)
	}
	return images, nil
}

func (s *Storage) UpdateStatus(ctx context.Context, id uuid.UUID, from, to models.ReportStatus) error {
	const op = "storage.UpdateStatus"

	tag, err := s.pool.Exec(ctx,
		`UPDATE reports SET status = $3 WHERE id = $1 AND status = $2`,
		id, string(from), string(to))
	if err != nil {
		return fmt.Errorf("%s: %w: %v", op, models.ErrPersistence, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w: report %s is no longer %s", op, models.ErrInvalidTransition, id, from)
	}
	return nil
}

func (s *Storage) StaleReports(ctx context.Context, cutoff time.Time) ([]models.Report, error) {
	const op = "storage.StaleReports"

	rows, err := s.pool.Query(ctx,
		`SELECT r.id, r.user_id, r.description, r.status, r.submitted_at
		FROM reports r
		WHERE r.status = 'PENDING' AND r.submitted_at < $1
		  AND NOT EXISTS (SELECT 1 FROM report_images i WHERE i.report_id = r.id)
		ORDER BY r.submitted_at`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, models.ErrPersistence, err)
	}
	reports, err := pgx.CollectRows(rows, pgx.RowToStructByName[models.Report])
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, models.ErrPersistence, err)
	}
	return reports, nil
}
