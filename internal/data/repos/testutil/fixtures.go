package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/yungbote/lessongen/internal/domain"
)

// SeedLesson inserts a lesson row directly, bypassing repo validation.
func SeedLesson(tb testing.TB, ctx context.Context, tx *gorm.DB, outline string, status types.LessonStatus) *types.Lesson {
	tb.Helper()
	now := time.Now().UTC()
	l := &types.Lesson{
		ID:        uuid.New(),
		Outline:   outline,
		Details:   "details for " + outline,
		Status:    status,
		Metadata:  datatypes.JSON([]byte("{}")),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if status == types.LessonGenerated {
		l.Code = "export default function Lesson() { return null; }"
	}
	if err := tx.WithContext(ctx).Create(l).Error; err != nil {
		tb.Fatalf("seed lesson: %v", err)
	}
	return l
}
