package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/noah-isme/course-enrollment-api/internal/models"
	"github.com/noah-isme/course-enrollment-api/internal/repository"
	appErrors "github.com/noah-isme/course-enrollment-api/pkg/errors"
	"github.com/noah-isme/course-enrollment-api/pkg/lock"
)

type courseRepository interface {
	Get(ctx context.Context, id string) (*models.Course, error)
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error)
	Create(ctx context.Context, course *models.Course) error
}

type courseCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// CreateCourseRequest describes a new course.
type CreateCourseRequest struct {
	Code        string `json:"code" validate:"required,max=32"`
	Name        string `json:"name" validate:"required,max=200"`
	MaxStudents int    `json:"maxStudents" validate:"required,min=1"`
	Credits     int    `json:"credits" validate:"min=0,max=18"`
}

// UpdateCourseRequest changes editable course fields. Nil fields are kept.
type UpdateCourseRequest struct {
	Name        *string `json:"name" validate:"omitempty,max=200"`
	MaxStudents *int    `json:"maxStudents" validate:"omitempty,min=1"`
	Credits     *int    `json:"credits" validate:"omitempty,min=1,max=18"`
}

// CourseService manages course records. Reads go through the course cache;
// updates run under the per-course lock shared with enrollment operations.
type CourseService struct {
	repo           courseRepository
	uow            UnitOfWork
	locker         lock.Locker
	cache          courseCache
	cacheTTL       time.Duration
	defaultCredits int
	group          singleflight.Group
	genMu          sync.Mutex
	generations    map[string]uint64
	validator      *validator.Validate
	logger         *zap.Logger
}

// NewCourseService constructs CourseService. cache may be nil.
func NewCourseService(repo courseRepository, uow UnitOfWork, locker lock.Locker, cache courseCache, cacheTTL time.Duration, defaultCredits int, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaultCredits <= 0 {
		defaultCredits = DefaultEnrollmentPolicy().DefaultCourseCredits
	}
	return &CourseService{
		repo:           repo,
		uow:            uow,
		locker:         locker,
		cache:          cache,
		cacheTTL:       cacheTTL,
		defaultCredits: defaultCredits,
		generations:    make(map[string]uint64),
		validator:      validate,
		logger:         logger,
	}
}

// courseLoadTimeout bounds a shared cache-miss load, which outlives any
// single caller's context.
const courseLoadTimeout = 5 * time.Second

func courseCacheKey(id string) string {
	return "course:" + id
}

// generation returns the invalidation counter of a course. A load that saw an
// older generation must not leave its snapshot in the cache.
func (s *CourseService) generation(id string) uint64 {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	return s.generations[id]
}

// Create registers a course with zero occupancy.
func (s *CourseService) Create(ctx context.Context, req CreateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	credits := req.Credits
	if credits == 0 {
		credits = s.defaultCredits
	}
	course := &models.Course{
		Code:            strings.ToUpper(strings.TrimSpace(req.Code)),
		Name:            strings.TrimSpace(req.Name),
		MaxStudents:     req.MaxStudents,
		CurrentStudents: 0,
		Credits:         credits,
		Status:          models.CourseStatusOpen,
	}
	if err := s.repo.Create(ctx, course); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("course code %s already exists", course.Code))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}
	s.logger.Info("course created", zap.String("course_id", course.ID), zap.String("code", course.Code))
	return course, nil
}

// Get returns a course, served from cache when possible. Concurrent misses
// for the same id share one database read, which is detached from the
// caller's cancellation so one abandoned request cannot fail the others.
func (s *CourseService) Get(ctx context.Context, id string) (*models.Course, error) {
	var cached models.Course
	if s.cache != nil {
		if hit, err := s.cache.Get(ctx, courseCacheKey(id), &cached); err == nil && hit {
			return &cached, nil
		}
	}

	value, err, _ := s.group.Do(id, func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), courseLoadTimeout)
		defer cancel()

		gen := s.generation(id)
		course, err := s.repo.Get(loadCtx, id)
		if err != nil {
			return nil, err
		}
		s.storeCourse(loadCtx, id, course, gen)
		return course, nil
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	course := *value.(*models.Course)
	return &course, nil
}

// List returns courses with pagination metadata.
func (s *CourseService) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, *models.Pagination, error) {
	if filter.Status != "" && filter.Status != models.CourseStatusOpen && filter.Status != models.CourseStatusFull {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown course status %q", filter.Status))
	}
	courses, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	return courses, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Update edits a course under its lock. Capacity may not drop below the seats
// already taken, and the status is recomputed from the new capacity. Credit
// changes never touch snapshots on existing enrollments.
func (s *CourseService) Update(ctx context.Context, id string, req UpdateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}

	release, err := s.locker.Acquire(ctx, lock.Key(lockScopeCourse, id))
	if err != nil {
		return nil, lockError(err)
	}
	defer release()

	var updated *models.Course
	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx TxScope) error {
		course, err := loadCourse(ctx, tx.Courses, id)
		if err != nil {
			return err
		}
		if req.Name != nil {
			course.Name = strings.TrimSpace(*req.Name)
		}
		if req.Credits != nil {
			course.Credits = *req.Credits
		}
		if req.MaxStudents != nil {
			if *req.MaxStudents < course.CurrentStudents {
				return appErrors.Clone(appErrors.ErrValidation,
					fmt.Sprintf("maxStudents %d is below current occupancy %d", *req.MaxStudents, course.CurrentStudents))
			}
			course.MaxStudents = *req.MaxStudents
		}
		course.Status = models.DeriveCourseStatus(course.CurrentStudents, course.MaxStudents)
		if err := tx.Courses.Update(ctx, course); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course")
		}
		updated = course
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.InvalidateCourse(ctx, id)
	s.logger.Info("course updated", zap.String("course_id", id), zap.Int("max_students", updated.MaxStudents), zap.String("status", string(updated.Status)))
	return updated, nil
}

// storeCourse caches a loaded course unless the course was invalidated after
// the load began. An invalidation racing the write is caught by the second
// check, since InvalidateCourse bumps the generation before deleting.
func (s *CourseService) storeCourse(ctx context.Context, id string, course *models.Course, gen uint64) {
	if s.cache == nil || s.generation(id) != gen {
		return
	}
	_ = s.cache.Set(ctx, courseCacheKey(id), course, s.cacheTTL)
	if s.generation(id) != gen {
		_ = s.cache.Delete(ctx, courseCacheKey(id))
	}
}

// InvalidateCourse evicts the cached copy of a course.
func (s *CourseService) InvalidateCourse(ctx context.Context, id string) {
	if s.cache == nil {
		return
	}
	s.genMu.Lock()
	s.generations[id]++
	s.genMu.Unlock()
	s.group.Forget(id)
	if err := s.cache.Delete(ctx, courseCacheKey(id)); err != nil {
		s.logger.Warn("course cache eviction failed", zap.String("course_id", id), zap.Error(err))
	}
}
