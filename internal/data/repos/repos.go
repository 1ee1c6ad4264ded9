package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/lessongen/internal/data/repos/learning"
	"github.com/yungbote/lessongen/internal/platform/logger"
)

type LessonRepo = learning.LessonRepo

func NewLessonRepo(db *gorm.DB, baseLog *logger.Logger) LessonRepo {
	return learning.NewLessonRepo(db, baseLog)
}
