package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/course-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/course-enrollment-api/pkg/errors"
	"github.com/noah-isme/course-enrollment-api/pkg/jobs"
	"github.com/noah-isme/course-enrollment-api/pkg/lock"
)

// ReconcileJobType identifies occupancy reconciliation jobs on the queue.
const ReconcileJobType = "course.reconcile"

type jobEnqueuer interface {
	Enqueue(job jobs.Job) (string, error)
}

// ReconcileService recomputes a course seat counter from its approved
// enrollments.
type ReconcileService struct {
	uow    UnitOfWork
	locker lock.Locker
	queue  jobEnqueuer
	cache  courseCacheInvalidator
	logger *zap.Logger
}

// NewReconcileService constructs ReconcileService. queue and cache may be nil.
func NewReconcileService(uow UnitOfWork, locker lock.Locker, queue jobEnqueuer, cache courseCacheInvalidator, logger *zap.Logger) *ReconcileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReconcileService{uow: uow, locker: locker, queue: queue, cache: cache, logger: logger}
}

// Reconcile sets occupancy to the number of APPROVED enrollments and the status
// to its derived value. A count above capacity is reported and nothing is written.
func (s *ReconcileService) Reconcile(ctx context.Context, courseID string) (*models.Course, error) {
	release, err := s.locker.Acquire(ctx, lock.Key(lockScopeCourse, courseID))
	if err != nil {
		return nil, lockError(err)
	}
	defer release()

	var (
		result  *models.Course
		drifted bool
	)
	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx TxScope) error {
		course, err := loadCourse(ctx, tx.Courses, courseID)
		if err != nil {
			return err
		}
		approved, err := tx.Enrollments.CountApprovedByCourse(ctx, courseID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count approved enrollments")
		}
		if approved > course.MaxStudents {
			return appErrors.Wrap(fmt.Errorf("approved=%d max=%d", approved, course.MaxStudents),
				appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "approved enrollments exceed course capacity")
		}
		drifted = approved != course.CurrentStudents || course.Status != models.DeriveCourseStatus(approved, course.MaxStudents)
		if drifted {
			if _, err := setOccupancy(ctx, tx.Courses, course, approved); err != nil {
				return err
			}
		}
		result = course
		return nil
	})
	if err != nil {
		s.logger.Warn("course reconcile failed", zap.String("course_id", courseID), zap.Error(err))
		return nil, err
	}
	if drifted {
		if s.cache != nil {
			s.cache.InvalidateCourse(ctx, courseID)
		}
		s.logger.Info("course occupancy reconciled",
			zap.String("course_id", courseID),
			zap.Int("current_students", result.CurrentStudents),
			zap.String("status", string(result.Status)))
	}
	return result, nil
}

// Enqueue schedules a background reconcile and returns the job id.
func (s *ReconcileService) Enqueue(ctx context.Context, courseID string) (string, error) {
	if s.queue == nil {
		return "", appErrors.Clone(appErrors.ErrServiceNotConfigured, "reconcile queue not configured")
	}
	id, err := s.queue.Enqueue(jobs.Job{Type: ReconcileJobType, Key: courseID})
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrServiceNotConfigured.Code, appErrors.ErrServiceNotConfigured.Status, "failed to enqueue reconcile job")
	}
	s.logger.Info("course reconcile enqueued", zap.String("course_id", courseID), zap.String("job_id", id))
	return id, nil
}

// HandleJob is the queue handler for ReconcileJobType. Missing courses are not retried.
func (s *ReconcileService) HandleJob(ctx context.Context, job jobs.Job) error {
	_, err := s.Reconcile(ctx, job.Key)
	if err != nil && errors.Is(err, appErrors.ErrNotFound) {
		return nil
	}
	return err
}
