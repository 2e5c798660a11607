package store

import (
	"time"

	"gorm.io/datatypes"
)

// GenerationModel is the GORM persistence model for one generation record.
type GenerationModel struct {
	ID          string `gorm:"primaryKey"`
	OwnerID     string `gorm:"not null;index"`
	Topic       string `gorm:"not null"`
	ContentType string `gorm:"not null"`
	Tone        string
	Language    string
	Answer      string         `gorm:"type:text;not null"`
	Analytics   datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt   time.Time      `gorm:"not null;index"`
}

// TableName fixes the table name independent of struct naming.
func (GenerationModel) TableName() string { return "generations" }
