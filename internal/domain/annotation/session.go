package annotation

import (
	"time"

	"github.com/google/uuid"
)

type SessionKind string

const (
	SessionKindAIAnalysis    SessionKind = "AI_ANALYSIS"
	SessionKindManualEditing SessionKind = "MANUAL_EDITING"
)

const (
	LabelEditingSession   = "User Editing Session"
	LabelCompletedEditing = "Completed Editing Session"
)

// Session is either one AI inference run or one user's editing pass over an inspection.
// Rows are never deleted; an editing session is finished by relabelling it.
type Session struct {
	ID             uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	InspectionID   uuid.UUID   `gorm:"type:uuid;not null;index:idx_annotation_session_inspection_created,priority:1" json:"inspection_id"`
	UserID         uuid.UUID   `gorm:"type:uuid;not null;index" json:"user_id"`
	Kind           SessionKind `gorm:"type:varchar(32);not null" json:"kind"`
	Label          string      `gorm:"not null" json:"label"`
	DetectionCount int         `gorm:"not null;default:0" json:"detection_count"`
	CreatedAt      time.Time   `gorm:"not null;index:idx_annotation_session_inspection_created,priority:2" json:"created_at"`
}

func (Session) TableName() string { return "annotation_session" }

func (s *Session) IsEditing() bool {
	return s != nil && s.Kind == SessionKindManualEditing
}

// IsFinished reports whether an editing session carries the completion marker.
func (s *Session) IsFinished() bool {
	return s.IsEditing() && s.Label == LabelCompletedEditing
}
