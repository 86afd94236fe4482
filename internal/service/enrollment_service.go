package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/course-enrollment-api/internal/models"
	"github.com/noah-isme/course-enrollment-api/internal/repository"
	appErrors "github.com/noah-isme/course-enrollment-api/pkg/errors"
	"github.com/noah-isme/course-enrollment-api/pkg/lock"
)

// Lock scopes. Multi-key operations acquire them in this order.
const (
	lockScopeEnrollment = "enrollment"
	lockScopeStudent    = "student"
	lockScopeCourse     = "course"
)

// Operation labels used for metrics and logs.
const (
	opApply        = "apply"
	opApprove      = "approve"
	opReject       = "reject"
	opCancel       = "cancel"
	opBatchApprove = "batch_approve"
	opBatchReject  = "batch_reject"
)

type enrollmentQueries interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	FindByStudent(ctx context.Context, studentID string) ([]models.Enrollment, error)
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
}

type enrollmentMetrics interface {
	ObserveEnrollmentOperation(operation, outcome string)
	ObserveLockWait(scope string, duration time.Duration)
}

type courseCacheInvalidator interface {
	InvalidateCourse(ctx context.Context, courseID string)
}

// EnrollmentPolicy carries the business limits of the engine.
type EnrollmentPolicy struct {
	MaxSemesterCredits     int
	DefaultCourseCredits   int
	DefaultRejectionReason string
	Location               *time.Location
	BatchMaxSize           int
}

// DefaultEnrollmentPolicy returns the stock limits.
func DefaultEnrollmentPolicy() EnrollmentPolicy {
	return EnrollmentPolicy{
		MaxSemesterCredits:     18,
		DefaultCourseCredits:   3,
		DefaultRejectionReason: "no reason provided",
		Location:               time.UTC,
		BatchMaxSize:           200,
	}
}

// ApplyEnrollmentRequest asks for a seat in a course.
type ApplyEnrollmentRequest struct {
	StudentID string `json:"studentId" validate:"required"`
	CourseID  string `json:"courseId" validate:"required"`
}

// RejectEnrollmentRequest carries an optional rejection reason.
type RejectEnrollmentRequest struct {
	RejectionReason string `json:"rejectionReason" validate:"max=500"`
}

// CancelEnrollmentRequest identifies the student withdrawing.
type CancelEnrollmentRequest struct {
	StudentID string `json:"studentId" validate:"required"`
}

// BatchApproveRequest lists enrollments to approve.
type BatchApproveRequest struct {
	EnrollmentIDs []string `json:"enrollmentIds" validate:"required,min=1,dive,required"`
}

// BatchRejectRequest lists enrollments to reject with one shared reason.
type BatchRejectRequest struct {
	EnrollmentIDs   []string `json:"enrollmentIds" validate:"required,min=1,dive,required"`
	RejectionReason string   `json:"rejectionReason" validate:"max=500"`
}

// EnrollmentService coordinates enrollment transitions with course capacity and
// the semester credit ceiling. Every mutation runs under keyed locks taken in
// enrollment, student, course order, and inside one unit of work.
type EnrollmentService struct {
	uow       UnitOfWork
	queries   enrollmentQueries
	locker    lock.Locker
	policy    EnrollmentPolicy
	clock     Clock
	ledger    *CreditLedger
	validator *validator.Validate
	metrics   enrollmentMetrics
	cache     courseCacheInvalidator
	logger    *zap.Logger
}

// EnrollmentServiceOption configures the service.
type EnrollmentServiceOption func(*EnrollmentService)

// WithEnrollmentPolicy overrides the business limits.
func WithEnrollmentPolicy(policy EnrollmentPolicy) EnrollmentServiceOption {
	return func(s *EnrollmentService) {
		defaults := DefaultEnrollmentPolicy()
		if policy.MaxSemesterCredits <= 0 {
			policy.MaxSemesterCredits = defaults.MaxSemesterCredits
		}
		if policy.DefaultCourseCredits <= 0 {
			policy.DefaultCourseCredits = defaults.DefaultCourseCredits
		}
		if strings.TrimSpace(policy.DefaultRejectionReason) == "" {
			policy.DefaultRejectionReason = defaults.DefaultRejectionReason
		}
		if policy.Location == nil {
			policy.Location = defaults.Location
		}
		if policy.BatchMaxSize <= 0 {
			policy.BatchMaxSize = defaults.BatchMaxSize
		}
		s.policy = policy
	}
}

// WithEnrollmentClock injects the clock used for timestamps and semester windows.
func WithEnrollmentClock(clock Clock) EnrollmentServiceOption {
	return func(s *EnrollmentService) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithEnrollmentMetrics records operation outcomes and lock waits.
func WithEnrollmentMetrics(metrics enrollmentMetrics) EnrollmentServiceOption {
	return func(s *EnrollmentService) {
		s.metrics = metrics
	}
}

// WithCourseCacheInvalidator evicts cached course reads after seat changes.
func WithCourseCacheInvalidator(cache courseCacheInvalidator) EnrollmentServiceOption {
	return func(s *EnrollmentService) {
		s.cache = cache
	}
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(uow UnitOfWork, queries enrollmentQueries, locker lock.Locker, validate *validator.Validate, logger *zap.Logger, opts ...EnrollmentServiceOption) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &EnrollmentService{
		uow:       uow,
		queries:   queries,
		locker:    locker,
		policy:    DefaultEnrollmentPolicy(),
		clock:     SystemClock,
		validator: validate,
		logger:    logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	svc.ledger = NewCreditLedger(svc.clock, svc.policy.Location, svc.policy.MaxSemesterCredits)
	return svc
}

// Get returns one enrollment with course info.
func (s *EnrollmentService) Get(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	detail, err := s.queries.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return detail, nil
}

// List returns enrollments with pagination metadata.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	if filter.Status != "" {
		status, ok := models.ParseEnrollmentStatus(string(filter.Status))
		if !ok {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown enrollment status %q", filter.Status))
		}
		filter.Status = status
	}
	enrollments, total, err := s.queries.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return enrollments, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// CreditSummary reports the student's credit usage for the current semester.
func (s *EnrollmentService) CreditSummary(ctx context.Context, studentID string) (*models.CreditSummary, error) {
	if strings.TrimSpace(studentID) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student id is required")
	}
	summary, err := s.ledger.Summary(ctx, s.queries, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute credits")
	}
	return summary, nil
}

// Apply creates a PENDING enrollment after duplicate, capacity and credit checks.
func (s *EnrollmentService) Apply(ctx context.Context, req ApplyEnrollmentRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}

	var created *models.Enrollment
	err := s.locked(ctx, []string{lock.Key(lockScopeStudent, req.StudentID), lock.Key(lockScopeCourse, req.CourseID)}, func() error {
		return s.uow.WithinTx(ctx, func(ctx context.Context, tx TxScope) error {
			_, err := tx.Enrollments.FindByStudentAndCourse(ctx, req.StudentID, req.CourseID)
			switch {
			case err == nil:
				return appErrors.Clone(appErrors.ErrDuplicateEnrollment, "student already has an enrollment for this course")
			case !errors.Is(err, sql.ErrNoRows):
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing enrollment")
			}

			course, err := loadCourse(ctx, tx.Courses, req.CourseID)
			if err != nil {
				return err
			}
			if !course.HasSeat() {
				return appErrors.Clone(appErrors.ErrCourseFull, fmt.Sprintf("course %s is full", course.Code))
			}

			credits := course.Credits
			if credits <= 0 {
				credits = s.policy.DefaultCourseCredits
			}
			used, err := s.ledger.CurrentSemesterCredits(ctx, tx.Enrollments, req.StudentID)
			if err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student credits")
			}
			if s.ledger.Exceeds(used, credits) {
				return appErrors.Clone(appErrors.ErrCreditLimitExceeded,
					fmt.Sprintf("semester credit limit exceeded: %d used + %d requested > %d", used, credits, s.policy.MaxSemesterCredits))
			}

			enrollment := &models.Enrollment{
				ID:        uuid.NewString(),
				StudentID: req.StudentID,
				CourseID:  req.CourseID,
				Credits:   credits,
				Status:    models.EnrollmentStatusPending,
				AppliedAt: s.clock.Now().UTC(),
			}
			if err := tx.Enrollments.Insert(ctx, enrollment); err != nil {
				if errors.Is(err, repository.ErrDuplicate) {
					return appErrors.Clone(appErrors.ErrDuplicateEnrollment, "student already has an enrollment for this course")
				}
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
			}
			created = enrollment
			return nil
		})
	})
	s.record(opApply, err)
	if err != nil {
		return nil, err
	}
	s.logger.Info("enrollment applied",
		zap.String("enrollment_id", created.ID),
		zap.String("student_id", created.StudentID),
		zap.String("course_id", created.CourseID),
		zap.Int("credits", created.Credits))
	return created, nil
}

// Approve moves a PENDING enrollment to APPROVED and takes a seat.
func (s *EnrollmentService) Approve(ctx context.Context, id string) (*models.Enrollment, error) {
	var approved *models.Enrollment
	var becameFull bool
	err := s.locked(ctx, []string{lock.Key(lockScopeEnrollment, id)}, func() error {
		current, err := s.peek(ctx, id)
		if err != nil {
			return err
		}
		if err := checkTransition(current.Status, models.EnrollmentStatusApproved); err != nil {
			return err
		}
		return s.locked(ctx, []string{lock.Key(lockScopeCourse, current.CourseID)}, func() error {
			return s.uow.WithinTx(ctx, func(ctx context.Context, tx TxScope) error {
				enrollment, err := loadEnrollment(ctx, tx.Enrollments, id)
				if err != nil {
					return err
				}
				if err := checkTransition(enrollment.Status, models.EnrollmentStatusApproved); err != nil {
					return err
				}
				course, err := loadCourse(ctx, tx.Courses, enrollment.CourseID)
				if err != nil {
					return err
				}
				if !course.HasSeat() {
					return appErrors.Clone(appErrors.ErrCourseFull, fmt.Sprintf("course %s is full", course.Code))
				}

				if err := transition(enrollment, models.EnrollmentStatusApproved, s.clock.Now().UTC(), ""); err != nil {
					return err
				}
				if err := tx.Enrollments.Update(ctx, enrollment); err != nil {
					return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve enrollment")
				}
				status, err := setOccupancy(ctx, tx.Courses, course, course.CurrentStudents+1)
				if err != nil {
					return err
				}
				becameFull = status == models.CourseStatusFull
				approved = enrollment
				return nil
			})
		})
	})
	s.record(opApprove, err)
	if err != nil {
		return nil, err
	}
	s.invalidateCourse(ctx, approved.CourseID)
	s.logger.Info("enrollment approved",
		zap.String("enrollment_id", approved.ID),
		zap.String("course_id", approved.CourseID),
		zap.Bool("course_full", becameFull))
	return approved, nil
}

// Reject moves a PENDING enrollment to REJECTED. A blank reason falls back to
// the configured default.
func (s *EnrollmentService) Reject(ctx context.Context, id string, req RejectEnrollmentRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid rejection payload")
	}
	reason := strings.TrimSpace(req.RejectionReason)
	if reason == "" {
		reason = s.policy.DefaultRejectionReason
	}

	var rejected *models.Enrollment
	err := s.locked(ctx, []string{lock.Key(lockScopeEnrollment, id)}, func() error {
		current, err := s.peek(ctx, id)
		if err != nil {
			return err
		}
		if err := checkTransition(current.Status, models.EnrollmentStatusRejected); err != nil {
			return err
		}
		return s.locked(ctx, []string{lock.Key(lockScopeStudent, current.StudentID)}, func() error {
			return s.uow.WithinTx(ctx, func(ctx context.Context, tx TxScope) error {
				enrollment, err := loadEnrollment(ctx, tx.Enrollments, id)
				if err != nil {
					return err
				}
				if err := transition(enrollment, models.EnrollmentStatusRejected, s.clock.Now().UTC(), reason); err != nil {
					return err
				}
				if err := tx.Enrollments.Update(ctx, enrollment); err != nil {
					return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reject enrollment")
				}
				rejected = enrollment
				return nil
			})
		})
	})
	s.record(opReject, err)
	if err != nil {
		return nil, err
	}
	s.logger.Info("enrollment rejected", zap.String("enrollment_id", rejected.ID), zap.String("reason", reason))
	return rejected, nil
}

// Cancel withdraws an enrollment on behalf of its owner. An APPROVED
// enrollment becomes CANCELLED and frees its seat; a PENDING one is deleted
// and returned with status CANCELLED.
func (s *EnrollmentService) Cancel(ctx context.Context, id string, req CancelEnrollmentRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid cancel payload")
	}

	var cancelled *models.Enrollment
	var previous models.EnrollmentStatus
	err := s.locked(ctx, []string{lock.Key(lockScopeEnrollment, id)}, func() error {
		current, err := s.peek(ctx, id)
		if err != nil {
			return err
		}
		if current.StudentID != req.StudentID {
			return appErrors.Clone(appErrors.ErrForbidden, "enrollment belongs to another student")
		}
		if err := checkTransition(current.Status, models.EnrollmentStatusCancelled); err != nil {
			return err
		}
		keys := []string{lock.Key(lockScopeStudent, current.StudentID), lock.Key(lockScopeCourse, current.CourseID)}
		return s.locked(ctx, keys, func() error {
			return s.uow.WithinTx(ctx, func(ctx context.Context, tx TxScope) error {
				enrollment, err := loadEnrollment(ctx, tx.Enrollments, id)
				if err != nil {
					return err
				}
				previous = enrollment.Status
				now := s.clock.Now().UTC()

				switch enrollment.Status {
				case models.EnrollmentStatusApproved:
					if err := s.cancelApproved(ctx, tx, enrollment, now); err != nil {
						return err
					}
				case models.EnrollmentStatusPending:
					if err := tx.Enrollments.Delete(ctx, enrollment.ID); err != nil {
						return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to withdraw enrollment")
					}
					if err := transition(enrollment, models.EnrollmentStatusCancelled, now, ""); err != nil {
						return err
					}
				default:
					return checkTransition(enrollment.Status, models.EnrollmentStatusCancelled)
				}
				cancelled = enrollment
				return nil
			})
		})
	})
	s.record(opCancel, err)
	if err != nil {
		return nil, err
	}
	if previous == models.EnrollmentStatusApproved {
		s.invalidateCourse(ctx, cancelled.CourseID)
	}
	s.logger.Info("enrollment cancelled",
		zap.String("enrollment_id", cancelled.ID),
		zap.String("previous_status", string(previous)))
	return cancelled, nil
}

func (s *EnrollmentService) cancelApproved(ctx context.Context, tx TxScope, enrollment *models.Enrollment, now time.Time) error {
	if err := transition(enrollment, models.EnrollmentStatusCancelled, now, ""); err != nil {
		return err
	}
	if err := tx.Enrollments.Update(ctx, enrollment); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel enrollment")
	}
	course, err := loadCourse(ctx, tx.Courses, enrollment.CourseID)
	if err != nil {
		return err
	}
	occupied := course.CurrentStudents - 1
	if occupied < 0 {
		occupied = 0
	}
	_, err = setOccupancy(ctx, tx.Courses, course, occupied)
	return err
}

// BatchApprove approves each id independently. Successes commit even when
// other items fail.
func (s *EnrollmentService) BatchApprove(ctx context.Context, req BatchApproveRequest) (*models.BatchResult, error) {
	if err := s.validateBatch(req, req.EnrollmentIDs); err != nil {
		return nil, err
	}
	return s.runBatch(ctx, opBatchApprove, req.EnrollmentIDs, func(id string) (*models.Enrollment, error) {
		return s.Approve(ctx, id)
	})
}

// BatchReject rejects each id independently with one shared reason.
func (s *EnrollmentService) BatchReject(ctx context.Context, req BatchRejectRequest) (*models.BatchResult, error) {
	if err := s.validateBatch(req, req.EnrollmentIDs); err != nil {
		return nil, err
	}
	single := RejectEnrollmentRequest{RejectionReason: req.RejectionReason}
	return s.runBatch(ctx, opBatchReject, req.EnrollmentIDs, func(id string) (*models.Enrollment, error) {
		return s.Reject(ctx, id, single)
	})
}

func (s *EnrollmentService) validateBatch(req interface{}, ids []string) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid batch payload")
	}
	if len(ids) > s.policy.BatchMaxSize {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("batch accepts at most %d enrollments", s.policy.BatchMaxSize))
	}
	return nil
}

func (s *EnrollmentService) runBatch(ctx context.Context, operation string, ids []string, apply func(id string) (*models.Enrollment, error)) (*models.BatchResult, error) {
	result := &models.BatchResult{
		Succeeded: make([]models.Enrollment, 0, len(ids)),
		Failed:    make([]models.BatchFailure, 0),
	}
	for _, id := range ids {
		enrollment, err := apply(id)
		if err != nil {
			appErr := appErrors.FromError(err)
			result.Failed = append(result.Failed, models.BatchFailure{EnrollmentID: id, Code: appErr.Code, Message: appErr.Message})
			continue
		}
		result.Succeeded = append(result.Succeeded, *enrollment)
	}
	result.SuccessCount = len(result.Succeeded)
	result.FailureCount = len(result.Failed)

	s.logger.Info("enrollment batch processed",
		zap.String("operation", operation),
		zap.Int("succeeded", result.SuccessCount),
		zap.Int("failed", result.FailureCount))

	if result.SuccessCount == 0 {
		s.record(operation, appErrors.ErrBatchFailed)
		return result, appErrors.Clone(appErrors.ErrBatchFailed, fmt.Sprintf("all %d enrollments failed", result.FailureCount))
	}
	s.record(operation, nil)
	return result, nil
}

// peek reads the enrollment outside the unit of work to learn which student
// and course locks are needed. The caller already holds the enrollment lock.
func (s *EnrollmentService) peek(ctx context.Context, id string) (*models.Enrollment, error) {
	return loadEnrollment(ctx, s.queries, id)
}

func (s *EnrollmentService) locked(ctx context.Context, keys []string, fn func() error) error {
	start := time.Now()
	release, err := lock.AcquireAll(ctx, s.locker, keys...)
	if s.metrics != nil {
		s.metrics.ObserveLockWait(lockScopes(keys), time.Since(start))
	}
	if err != nil {
		return lockError(err)
	}
	defer release()
	return fn()
}

func (s *EnrollmentService) record(operation string, err error) {
	if s.metrics == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = strings.ToLower(appErrors.FromError(err).Code)
	}
	s.metrics.ObserveEnrollmentOperation(operation, outcome)
}

func (s *EnrollmentService) invalidateCourse(ctx context.Context, courseID string) {
	if s.cache != nil {
		s.cache.InvalidateCourse(ctx, courseID)
	}
}

type enrollmentFinder interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
}

func loadEnrollment(ctx context.Context, store enrollmentFinder, id string) (*models.Enrollment, error) {
	enrollment, err := store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return enrollment, nil
}

func loadCourse(ctx context.Context, registry CourseRegistry, id string) (*models.Course, error) {
	course, err := registry.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}

// setOccupancy stores the new seat count and, when it changes, the derived
// status. It returns the resulting status.
func setOccupancy(ctx context.Context, registry CourseRegistry, course *models.Course, occupied int) (models.CourseStatus, error) {
	if occupied < 0 || occupied > course.MaxStudents {
		return "", appErrors.Wrap(fmt.Errorf("occupancy %d outside [0,%d]", occupied, course.MaxStudents),
			appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "course occupancy out of range")
	}
	if err := registry.SetOccupancy(ctx, course.ID, occupied); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course occupancy")
	}
	status := models.DeriveCourseStatus(occupied, course.MaxStudents)
	if status != course.Status {
		if err := registry.SetStatus(ctx, course.ID, status); err != nil {
			return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course status")
		}
	}
	course.CurrentStudents = occupied
	course.Status = status
	return status, nil
}

func lockError(err error) error {
	switch {
	case errors.Is(err, lock.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return appErrors.Wrap(err, appErrors.ErrLockTimeout.Code, appErrors.ErrLockTimeout.Status, appErrors.ErrLockTimeout.Message)
	default:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to acquire lock")
	}
}

func lockScopes(keys []string) string {
	scopes := make([]string, 0, len(keys))
	for _, key := range keys {
		scope := key
		if i := strings.IndexByte(key, ':'); i >= 0 {
			scope = key[:i]
		}
		scopes = append(scopes, scope)
	}
	return strings.Join(scopes, "+")
}
