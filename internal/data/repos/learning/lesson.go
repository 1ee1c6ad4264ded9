package learning

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/lessongen/internal/domain"
	"github.com/yungbote/lessongen/internal/pkg/dbctx"
	pkgerrors "github.com/yungbote/lessongen/internal/pkg/errors"
	"github.com/yungbote/lessongen/internal/platform/logger"
)

type LessonRepo interface {
	Create(dbc dbctx.Context, lessons []*types.Lesson) ([]*types.Lesson, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Lesson, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Lesson, error)
	GetLatestByCorrelationID(dbc dbctx.Context, correlationID string) (*types.Lesson, error)
	List(dbc dbctx.Context, limit int) ([]*types.Lesson, error)
	UpdateStatus(dbc dbctx.Context, id uuid.UUID, to types.LessonStatus, updates map[string]interface{}) (*types.Lesson, error)
}

type lessonRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewLessonRepo(db *gorm.DB, baseLog *logger.Logger) LessonRepo {
	return &lessonRepo{
		db:  db,
		log: baseLog.With("repo", "LessonRepo"),
	}
}

func (r *lessonRepo) Create(dbc dbctx.Context, lessons []*types.Lesson) ([]*types.Lesson, error) {
	transaction := dbc.DB(r.db)
	if len(lessons) == 0 {
		return []*types.Lesson{}, nil
	}
	for _, l := range lessons {
		if l == nil {
			return nil, fmt.Errorf("%w: nil lesson", pkgerrors.ErrInvalidArgument)
		}
		if strings.TrimSpace(l.Outline) == "" {
			return nil, fmt.Errorf("%w: lesson outline required", pkgerrors.ErrInvalidArgument)
		}
		if l.Status != "" && !l.Status.Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", pkgerrors.ErrInvalidArgument, l.Status)
		}
	}
	if err := transaction.Create(&lessons).Error; err != nil {
		return nil, err
	}
	return lessons, nil
}

func (r *lessonRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Lesson, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.ErrNotFound
	}
	var lesson types.Lesson
	err := dbc.DB(r.db).Where("id = ?", id).First(&lesson).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &lesson, nil
}

func (r *lessonRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Lesson, error) {
	var out []*types.Lesson
	if len(ids) == 0 {
		return out, nil
	}
	if err := dbc.DB(r.db).
		Where("id IN ?", ids).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// GetLatestByCorrelationID returns the newest record for a client-side id, or
// ErrNotFound.
func (r *lessonRepo) GetLatestByCorrelationID(dbc dbctx.Context, correlationID string) (*types.Lesson, error) {
	correlationID = strings.TrimSpace(correlationID)
	if correlationID == "" {
		return nil, pkgerrors.ErrNotFound
	}
	var lesson types.Lesson
	err := dbc.DB(r.db).
		Where("correlation_id = ?", correlationID).
		Order("created_at DESC").
		First(&lesson).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &lesson, nil
}

func (r *lessonRepo) List(dbc dbctx.Context, limit int) ([]*types.Lesson, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var out []*types.Lesson
	if err := dbc.DB(r.db).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateStatus moves a lesson to status `to` and applies updates in the same
// write. Backward moves return ErrInvalidTransition.
func (r *lessonRepo) UpdateStatus(dbc dbctx.Context, id uuid.UUID, to types.LessonStatus, updates map[string]interface{}) (*types.Lesson, error) {
	if !to.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", pkgerrors.ErrInvalidArgument, to)
	}
	var out *types.Lesson
	err := dbc.DB(r.db).Transaction(func(txx *gorm.DB) error {
		var current types.Lesson
		qErr := txx.Where("id = ?", id).First(&current).Error
		if errors.Is(qErr, gorm.ErrRecordNotFound) {
			return pkgerrors.ErrNotFound
		}
		if qErr != nil {
			return qErr
		}
		if !types.CanTransition(current.Status, to) {
			return fmt.Errorf("%w: %s -> %s", pkgerrors.ErrInvalidTransition, current.Status, to)
		}

		fields := make(map[string]interface{}, len(updates)+2)
		for k, v := range updates {
			fields[k] = v
		}
		fields["status"] = to
		fields["updated_at"] = time.Now().UTC()

		if uErr := txx.Model(&types.Lesson{}).
			Where("id = ?", id).
			Updates(fields).Error; uErr != nil {
			return uErr
		}
		var fresh types.Lesson
		if err := txx.Where("id = ?", id).First(&fresh).Error; err != nil {
			return err
		}
		out = &fresh
		return nil
	})
	if err != nil {
		if errors.Is(err, pkgerrors.ErrInvalidTransition) {
			r.log.Warn("Rejected lesson status transition", "lesson_id", id.String(), "to", string(to), "error", err)
		}
		return nil, err
	}
	return out, nil
}
