package annotation

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type DetectionSource string

const (
	SourceAIGenerated   DetectionSource = "AI_GENERATED"
	SourceManuallyAdded DetectionSource = "MANUALLY_ADDED"
)

type ActionType string

const (
	ActionAdded   ActionType = "ADDED"
	ActionEdited  ActionType = "EDITED"
	ActionDeleted ActionType = "DELETED"
)

type BBox struct {
	X float64 `gorm:"column:x;not null" json:"x"`
	Y float64 `gorm:"column:y;not null" json:"y"`
	W float64 `gorm:"column:w;not null" json:"w"`
	H float64 `gorm:"column:h;not null" json:"h"`
}

// BBoxFromCorners converts two corner points into origin + size.
func BBoxFromCorners(x1, y1, x2, y2 float64) BBox {
	return BBox{X: x1, Y: y1, W: x2 - x1, H: y2 - y1}
}

// DetectionRecord is one immutable action against a logical detection.
// EDITED and DELETED rows point at the record they supersede.
type DetectionRecord struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	SessionID        uuid.UUID       `gorm:"type:uuid;not null;index" json:"session_id"`
	InspectionID     uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_detection_record_inspection_log,priority:1" json:"inspection_id"`
	LogEntryID       int64           `gorm:"not null;uniqueIndex:idx_detection_record_inspection_log,priority:2" json:"log_entry_id"`
	ClassID          int             `gorm:"not null" json:"class_id"`
	Confidence       float64         `gorm:"not null" json:"confidence"`
	BBox             BBox            `gorm:"embedded;embeddedPrefix:bbox_" json:"bbox"`
	Source           DetectionSource `gorm:"type:varchar(32);not null" json:"source"`
	ActionType       ActionType      `gorm:"type:varchar(16);not null" json:"action_type"`
	OriginalRecordID *uuid.UUID      `gorm:"type:uuid;index" json:"original_record_id,omitempty"`
	Comments         string          `gorm:"type:text" json:"comments"`
	Polygon          datatypes.JSON  `json:"polygon,omitempty"`
	CreatedAt        time.Time       `gorm:"not null" json:"created_at"`
}

func (DetectionRecord) TableName() string { return "detection_record" }

// LogCounter holds the last allocated log entry id per inspection.
type LogCounter struct {
	InspectionID uuid.UUID `gorm:"type:uuid;primaryKey" json:"inspection_id"`
	LastValue    int64     `gorm:"not null;default:0" json:"last_value"`
}

func (LogCounter) TableName() string { return "detection_log_counter" }
