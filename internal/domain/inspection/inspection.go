package inspection

import (
	"time"

	"github.com/google/uuid"
)

type Inspection struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	TransformerNo string     `gorm:"not null;index" json:"transformer_no"`
	ImageURL      string     `gorm:"column:image_url" json:"image_url,omitempty"`
	InspectedAt   *time.Time `json:"inspected_at,omitempty"`
	CreatedAt     time.Time  `gorm:"not null" json:"created_at"`
}

func (Inspection) TableName() string { return "inspection" }
