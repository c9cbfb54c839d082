// internal/models/models.go
package models

import (
	"time"

	"github.com/google/uuid"
)

type ReportStatus string

const (
	StatusPending  ReportStatus = "PENDING"
	StatusApproved ReportStatus = "APPROVED"
	StatusRejected ReportStatus = "REJECTED"
)

func ParseReportStatus(s string) (ReportStatus, bool) {
	switch st := ReportStatus(s); st {
	case StatusPending, StatusApproved, StatusRejected:
		return st, true
	}
	return "", false
}

// CanTransition reports whether an admin may move a report from s to next.
// Only PENDING moves, and only to a terminal state.
func (s ReportStatus) CanTransition(next ReportStatus) bool {
	return s == StatusPending && (next == StatusApproved || next == StatusRejected)
}

type Report struct {
	ID          uuid.UUID    `db:"id" json:"id"`
	UserID      string       `db:"user_id" json:"user_id"`
	Description string       `db:"description" json:"description"`
	SubmittedAt time.Time    `db:"submitted_at" json:"submitted_at"`
	Status      ReportStatus `db:"status" json:"status"`
}

// ReportImage exists only once the artifact at StoredPath is durably written.
type ReportImage struct {
	ID         uuid.UUID `db:"id" json:"id"`
	ReportID   uuid.UUID `db:"report_id" json:"report_id"`
	StoredPath string    `db:"stored_path" json:"stored_path"`
}

// PhotoUpload is one uploaded photo. Data wins over TempPath when both are set;
// TempPath is removed once the photo has been processed.
type PhotoUpload struct {
	Filename string
	TempPath string
	Data     []byte
}
