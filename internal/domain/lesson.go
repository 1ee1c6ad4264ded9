package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Lesson struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	// CorrelationID is the client-side id used to match optimistic rows.
	CorrelationID string `gorm:"column:correlation_id;index" json:"lessonId,omitempty"`

	Outline     string `gorm:"column:outline;type:text;not null" json:"outline"`
	Title       string `gorm:"column:title" json:"title,omitempty"`
	Description string `gorm:"column:description;type:text" json:"description,omitempty"`
	Details     string `gorm:"column:details;type:text" json:"details"`
	Code        string `gorm:"column:code;type:text" json:"code,omitempty"`

	Status LessonStatus `gorm:"column:status;not null;index" json:"status"`
	Error  string       `gorm:"column:error;type:text" json:"error,omitempty"`

	CacheKey string         `gorm:"column:cache_key;index" json:"-"`
	Metadata datatypes.JSON `gorm:"column:metadata" json:"metadata,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Lesson) TableName() string { return "lesson" }

func (l *Lesson) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	if l.Status == "" {
		l.Status = LessonGenerating
	}
	return nil
}
