package report

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"sweepin/internal/events"
)

// Sweeper finds reports left PENDING with no images, typically after a crash
// between report creation and the first durable write, and announces them
// as report.stale. It never deletes anything.
type Sweeper struct {
	reports    ReportStore
	events     events.Publisher
	log        zerolog.Logger
	staleAfter time.Duration
	interval   time.Duration
	now        func() time.Time

	announced map[uuid.UUID]struct{}
}

func NewSweeper(reports ReportStore, publisher events.Publisher, log zerolog.Logger, staleAfter, interval time.Duration) *Sweeper {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Sweeper{
		reports:    reports,
		events:     publisher,
		log:        log.With().Str("component", "sweeper").Logger(),
		staleAfter: staleAfter,
		interval:   interval,
		now:        time.Now,
		announced:  make(map[uuid.UUID]struct{}),
	}
}

// Run sweeps every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := s.Sweep(ctx); err != nil {
				s.log.Error().Err(err).Msg("sweep failed")
			} else if n > 0 {
				s.log.Info().Int("stale", n).Msg("stale reports announced")
			}
		}
	}
}

// Sweep announces each stale report once and returns how many were new.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	const op = "report.Sweep"

	stale, err := s.reports.StaleReports(ctx, s.now().Add(-s.staleAfter))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	// forget reports that left the stale set (imaged or decided)
	current := make(map[uuid.UUID]struct{}, len(stale))
	for _, rep := range stale {
		current[rep.ID] = struct{}{}
	}
	for id := range s.announced {
		if _, ok := current[id]; !ok {
			delete(s.announced, id)
		}
	}

	n := 0
	for _, rep := range stale {
		if _, ok := s.announced[rep.ID]; ok {
			continue
		}
		err := s.events.Publish(ctx, events.Event{
			Type:     events.ReportStale,
			ReportID: rep.ID.String(),
			UserID:   rep.UserID,
			Status:   string(rep.Status),
			At:       s.now(),
		})
		if err != nil {
			return n, fmt.Errorf("%s: %w", op, err)
		}
		s.announced[rep.ID] = struct{}{}
		n++
	}
	return n, nil
}
