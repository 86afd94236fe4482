package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/course-enrollment-api/internal/models"
	"github.com/noah-isme/course-enrollment-api/internal/repository"
	appErrors "github.com/noah-isme/course-enrollment-api/pkg/errors"
	"github.com/noah-isme/course-enrollment-api/pkg/lock"
)

var fixedNow = time.Date(2026, time.October, 16, 9, 0, 0, 0, time.UTC)

type metricsRecorder struct {
	mu       sync.Mutex
	outcomes map[string]int
	waits    map[string]int
}

func newMetricsRecorder() *metricsRecorder {
	return &metricsRecorder{outcomes: map[string]int{}, waits: map[string]int{}}
}

func (r *metricsRecorder) ObserveEnrollmentOperation(operation, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes[operation+"/"+outcome]++
}

func (r *metricsRecorder) ObserveLockWait(scope string, duration time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.waits[scope]++
}

type invalidationRecorder struct {
	mu  sync.Mutex
	ids []string
}

func (r *invalidationRecorder) InvalidateCourse(ctx context.Context, courseID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, courseID)
}

type enrollmentFixture struct {
	svc     *EnrollmentService
	store   *memoryStore
	locker  *lock.KeyedMutex
	metrics *metricsRecorder
	cache   *invalidationRecorder
}

func newEnrollmentFixture(t *testing.T, opts ...EnrollmentServiceOption) *enrollmentFixture {
	t.Helper()
	store := newMemoryStore()
	locker := lock.NewKeyedMutex(2 * time.Second)
	metrics := newMetricsRecorder()
	cache := &invalidationRecorder{}
	base := []EnrollmentServiceOption{
		WithEnrollmentClock(ClockFunc(func() time.Time { return fixedNow })),
		WithEnrollmentMetrics(metrics),
		WithCourseCacheInvalidator(cache),
	}
	svc := NewEnrollmentService(store, enrollmentQueryStore{store}, locker, nil, nil, append(base, opts...)...)
	return &enrollmentFixture{svc: svc, store: store, locker: locker, metrics: metrics, cache: cache}
}

func assertKind(t *testing.T, err error, kind *appErrors.Error) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, errors.Is(err, kind), "expected %s, got %v", kind.Code, err)
}

func TestApplyCreatesPendingWithCreditSnapshot(t *testing.T) {
	f := newEnrollmentFixture(t)
	course := f.store.addCourse(models.Course{Code: "CS101", MaxStudents: 10, Credits: 4})

	enrollment, err := f.svc.Apply(context.Background(), ApplyEnrollmentRequest{StudentID: "stu-1", CourseID: course.ID})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusPending, enrollment.Status)
	assert.Equal(t, 4, enrollment.Credits)
	assert.Equal(t, fixedNow, enrollment.AppliedAt)
	assert.Nil(t, enrollment.ApprovedAt)
	assert.Equal(t, 0, f.store.course(course.ID).CurrentStudents)

	// later course edits never reach the snapshot
	_, err = NewCourseService(f.store, f.store, f.locker, nil, 0, 3, nil, nil).
		Update(context.Background(), course.ID, UpdateCourseRequest{Credits: intPtr(2)})
	require.NoError(t, err)
	stored, ok := f.store.enrollment(enrollment.ID)
	require.True(t, ok)
	assert.Equal(t, 4, stored.Credits)
}

func TestApplyDefaultsCreditsWhenCourseHasNone(t *testing.T) {
	f := newEnrollmentFixture(t)
	course := f.store.addCourse(models.Course{Code: "CS102", MaxStudents: 10})

	enrollment, err := f.svc.Apply(context.Background(), ApplyEnrollmentRequest{StudentID: "stu-1", CourseID: course.ID})
	require.NoError(t, err)
	assert.Equal(t, 3, enrollment.Credits)
}

func TestApplyDuplicateEnrollment(t *testing.T) {
	f := newEnrollmentFixture(t)
	course := f.store.addCourse(models.Course{Code: "CS101", MaxStudents: 10, Credits: 3})
	req := ApplyEnrollmentRequest{StudentID: "stu-1", CourseID: course.ID}

	first, err := f.svc.Apply(context.Background(), req)
	require.NoError(t, err)

	_, err = f.svc.Apply(context.Background(), req)
	assertKind(t, err, appErrors.ErrDuplicateEnrollment)

	stored, ok := f.store.enrollment(first.ID)
	require.True(t, ok)
	assert.Equal(t, models.EnrollmentStatusPending, stored.Status)
}

func TestApplyDuplicateDetectedAtInsert(t *testing.T) {
	f := newEnrollmentFixture(t)
	course := f.store.addCourse(models.Course{Code: "CS101", MaxStudents: 10, Credits: 3})
	f.store.failInsert = fmt.Errorf("create enrollment: %w", repository.ErrDuplicate)

	_, err := f.svc.Apply(context.Background(), ApplyEnrollmentRequest{StudentID: "stu-1", CourseID: course.ID})
	assertKind(t, err, appErrors.ErrDuplicateEnrollment)
}

func TestApplyCourseNotFound(t *testing.T) {
	f := newEnrollmentFixture(t)

	_, err := f.svc.Apply(context.Background(), ApplyEnrollmentRequest{StudentID: "stu-1", CourseID: "missing"})
	assertKind(t, err, appErrors.ErrNotFound)
}

func TestApplyCourseFull(t *testing.T) {
	f := newEnrollmentFixture(t)
	course := f.store.addCourse(models.Course{Code: "CS101", MaxStudents: 2, CurrentStudents: 2, Credits: 3})

	_, err := f.svc.Apply(context.Background(), ApplyEnrollmentRequest{StudentID: "stu-1", CourseID: course.ID})
	assertKind(t, err, appErrors.ErrCourseFull)
}

func TestApplyValidation(t *testing.T) {
	f := newEnrollmentFixture(t)

	_, err := f.svc.Apply(context.Background(), ApplyEnrollmentRequest{StudentID: "stu-1"})
	assertKind(t, err, appErrors.ErrValidation)
}

func TestApplyCreditLimitExceeded(t *testing.T) {
	f := newEnrollmentFixture(t)
	approvedCourse := f.store.addCourse(models.Course{Code: "CS101", MaxStudents: 10, CurrentStudents: 1, Credits: 3})
	pendingCourse := f.store.addCourse(models.Course{Code: "CS900", MaxStudents: 10, Credits: 15})
	target := f.store.addCourse(models.Course{Code: "CS102", MaxStudents: 10, Credits: 1})

	approvedAt := fixedNow.Add(-time.Hour)
	f.store.addEnrollment(models.Enrollment{StudentID: "stu-1", CourseID: approvedCourse.ID, Credits: 3, Status: models.EnrollmentStatusApproved, AppliedAt: fixedNow.Add(-48 * time.Hour), ApprovedAt: &approvedAt})
	f.store.addEnrollment(models.Enrollment{StudentID: "stu-1", CourseID: pendingCourse.ID, Credits: 15, Status: models.EnrollmentStatusPending, AppliedAt: fixedNow.Add(-24 * time.Hour)})

	_, err := f.svc.Apply(context.Background(), ApplyEnrollmentRequest{StudentID: "stu-1", CourseID: target.ID})
	assertKind(t, err, appErrors.ErrCreditLimitExceeded)
	assert.Equal(t, 1, f.metrics.outcomes["apply/credit_limit_exceeded"])
}

func TestApplyIgnoresOtherSemestersAndClosedEnrollments(t *testing.T) {
	f := newEnrollmentFixture(t)
	old := f.store.addCourse(models.Course{Code: "CS050", MaxStudents: 10, Credits: 15})
	rejected := f.store.addCourse(models.Course{Code: "CS051", MaxStudents: 10, Credits: 15})
	target := f.store.addCourse(models.Course{Code: "CS102", MaxStudents: 10, Credits: 3})

	f.store.addEnrollment(models.Enrollment{StudentID: "stu-1", CourseID: old.ID, Credits: 15, Status: models.EnrollmentStatusApproved, AppliedAt: time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)})
	reason := "late"
	f.store.addEnrollment(models.Enrollment{StudentID: "stu-1", CourseID: rejected.ID, Credits: 15, Status: models.EnrollmentStatusRejected, AppliedAt: fixedNow.Add(-time.Hour), RejectionReason: &reason})

	_, err := f.svc.Apply(context.Background(), ApplyEnrollmentRequest{StudentID: "stu-1", CourseID: target.ID})
	require.NoError(t, err)
}

func TestApproveTakesSeatAndFlipsFull(t *testing.T) {
	f := newEnrollmentFixture(t)
	course := f.store.addCourse(models.Course{Code: "CS101", MaxStudents: 1, Credits: 3})
	pending := f.store.addEnrollment(models.Enrollment{StudentID: "stu-1", CourseID: course.ID, Credits: 3, Status: models.EnrollmentStatusPending, AppliedAt: fixedNow})

	approved, err := f.svc.Approve(context.Background(), pending.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusApproved, approved.Status)
	require.NotNil(t, approved.ApprovedAt)
	assert.Nil(t, approved.RejectedAt)
	assert.Nil(t, approved.CancelledAt)

	stored := f.store.course(course.ID)
	assert.Equal(t, 1, stored.CurrentStudents)
	assert.Equal(t, models.CourseStatusFull, stored.Status)
	assert.Equal(t, []string{course.ID}, f.cache.ids)
}

func TestApproveRechecksCapacity(t *testing.T) {
	f := newEnrollmentFixture(t)
	course := f.store.addCourse(models.Course{Code: "CS101", MaxStudents: 1, CurrentStudents: 1, Credits: 3})
	pending := f.store.addEnrollment(models.Enrollment{StudentID: "stu-2", CourseID: course.ID, Credits: 3, Status: models.EnrollmentStatusPending, AppliedAt: fixedNow})

	_, err := f.svc.Approve(context.Background(), pending.ID)
	assertKind(t, err, appErrors.ErrCourseFull)

	stored, _ := f.store.enrollment(pending.ID)
	assert.Equal(t, models.EnrollmentStatusPending, stored.Status)
}

func TestApproveNotFound(t *testing.T) {
	f := newEnrollmentFixture(t)

	_, err := f.svc.Approve(context.Background(), "missing")
	assertKind(t, err, appErrors.ErrNotFound)
}

func TestIllegalTransitions(t *testing.T) {
	f := newEnrollmentFixture(t)
	course := f.store.addCourse(models.Course{Code: "CS101", MaxStudents: 5, CurrentStudents: 1, Credits: 3})
	reason := "no"
	at := fixedNow
	rejected := f.store.addEnrollment(models.Enrollment{StudentID: "stu-1", CourseID: course.ID, Credits: 3, Status: models.EnrollmentStatusRejected, AppliedAt: at, RejectedAt: &at, RejectionReason: &reason})
	cancelled := f.store.addEnrollment(models.Enrollment{StudentID: "stu-2", CourseID: course.ID, Credits: 3, Status: models.EnrollmentStatusCancelled, AppliedAt: at, CancelledAt: &at})
	approved := f.store.addEnrollment(models.Enrollment{StudentID: "stu-3", CourseID: course.ID, Credits: 3, Status: models.EnrollmentStatusApproved, AppliedAt: at, ApprovedAt: &at})

	_, err := f.svc.Approve(context.Background(), rejected.ID)
	assertKind(t, err, appErrors.ErrInvalidTransition)
	_, err = f.svc.Approve(context.Background(), cancelled.ID)
	assertKind(t, err, appErrors.ErrInvalidTransition)
	_, err = f.svc.Reject(context.Background(), approved.ID, RejectEnrollmentRequest{})
	assertKind(t, err, appErrors.ErrInvalidTransition)
	_, err = f.svc.Cancel(context.Background(), rejected.ID, CancelEnrollmentRequest{StudentID: "stu-1"})
	assertKind(t, err, appErrors.ErrInvalidTransition)

	assert.Equal(t, 1, f.store.course(course.ID).CurrentStudents)
}

func TestConcurrentApprovalsForLastSeat(t *testing.T) {
	f := newEnrollmentFixture(t)
	course := f.store.addCourse(models.Course{Code: "CS101", MaxStudents: 1, Credits: 3})
	first := f.store.addEnrollment(models.Enrollment{StudentID: "stu-1", CourseID: course.ID, Credits: 3, Status: models.EnrollmentStatusPending, AppliedAt: fixedNow})
	second := f.store.addEnrollment(models.Enrollment{StudentID: "stu-2", CourseID: course.ID, Credits: 3, Status: models.EnrollmentStatusPending, AppliedAt: fixedNow})

	var succeeded, full int32
	var g errgroup.Group
	for _, id := range []string{first.ID, second.ID} {
		id := id
		g.Go(func() error {
			_, err := f.svc.Approve(context.Background(), id)
			switch {
			case err == nil:
				atomic.AddInt32(&succeeded, 1)
			case errors.Is(err, appErrors.ErrCourseFull):
				atomic.AddInt32(&full, 1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(1), succeeded)
	assert.Equal(t, int32(1), full)
	stored := f.store.course(course.ID)
	assert.Equal(t, 1, stored.CurrentStudents)
	assert.Equal(t, models.CourseStatusFull, stored.Status)
}

func TestConcurrentMixedOperationsKeepOccupancyInRange(t *testing.T) {
	f := newEnrollmentFixture(t)
	course := f.store.addCourse(models.Course{Code: "CS101", MaxStudents: 5, Credits: 3})

	ids := make([]string, 0, 20)
	for i := 0; i < 20; i++ {
		enrollment := f.store.addEnrollment(models.Enrollment{StudentID: fmt.Sprintf("stu-%d", i), CourseID: course.ID, Credits: 3, Status: models.EnrollmentStatusPending, AppliedAt: fixedNow})
		ids = append(ids, enrollment.ID)
	}

	var g errgroup.Group
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			approved, err := f.svc.Approve(context.Background(), id)
			if err != nil {
				if errors.Is(err, appErrors.ErrCourseFull) {
					return nil
				}
				return err
			}
			if i%3 == 0 {
				_, err = f.svc.Cancel(context.Background(), approved.ID, CancelEnrollmentRequest{StudentID: approved.StudentID})
			}
			return err
		})
	}
	require.NoError(t, g.Wait())

	stored := f.store.course(course.ID)
	approvedCount, err := (&memoryEnrollments{store: f.store}).CountApprovedByCourse(context.Background(), course.ID)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, stored.CurrentStudents, 0)
	assert.LessOrEqual(t, stored.CurrentStudents, stored.MaxStudents)
	assert.Equal(t, approvedCount, stored.CurrentStudents)
	assert.Equal(t, models.DeriveCourseStatus(stored.CurrentStudents, stored.MaxStudents), stored.Status)
}

func TestConcurrentAppliesRespectCreditCeiling(t *testing.T) {
	f := newEnrollmentFixture(t)
	courses := make([]models.Course, 0, 10)
	for i := 0; i < 10; i++ {
		courses = append(courses, f.store.addCourse(models.Course{Code: fmt.Sprintf("CS1%02d", i), MaxStudents: 10, Credits: 3}))
	}

	var succeeded int32
	var g errgroup.Group
	for _, course := range courses {
		courseID := course.ID
		g.Go(func() error {
			_, err := f.svc.Apply(context.Background(), ApplyEnrollmentRequest{StudentID: "stu-1", CourseID: courseID})
			if err == nil {
				atomic.AddInt32(&succeeded, 1)
				return nil
			}
			if errors.Is(err, appErrors.ErrCreditLimitExceeded) {
				return nil
			}
			return err
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(6), succeeded)
	summary, err := f.svc.CreditSummary(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.Equal(t, 18, summary.UsedCredits)
	assert.Equal(t, 0, summary.RemainingCredits)
}

func TestRejectStoresReason(t *testing.T) {
	f := newEnrollmentFixture(t)
	course := f.store.addCourse(models.Course{Code: "CS101", MaxStudents: 5, Credits: 3})
	first := f.store.addEnrollment(models.Enrollment{StudentID: "stu-1", CourseID: course.ID, Credits: 3, Status: models.EnrollmentStatusPending, AppliedAt: fixedNow})
	second := f.store.addEnrollment(models.Enrollment{StudentID: "stu-2", CourseID: course.ID, Credits: 3, Status: models.EnrollmentStatusPending, AppliedAt: fixedNow})

	rejected, err := f.svc.Reject(context.Background(), first.ID, RejectEnrollmentRequest{RejectionReason: "  prerequisites missing "})
	require.NoError(t, err)
	require.NotNil(t, rejected.RejectionReason)
	assert.Equal(t, "prerequisites missing", *rejected.RejectionReason)
	require.NotNil(t, rejected.RejectedAt)
	assert.Nil(t, rejected.ApprovedAt)

	defaulted, err := f.svc.Reject(context.Background(), second.ID, RejectEnrollmentRequest{})
	require.NoError(t, err)
	assert.Equal(t, "no reason provided", *defaulted.RejectionReason)
	assert.Equal(t, 0, f.store.course(course.ID).CurrentStudents)
}

func TestRejectUsesConfiguredDefaultReason(t *testing.T) {
	policy := DefaultEnrollmentPolicy()
	policy.DefaultRejectionReason = "declined"
	f := newEnrollmentFixture(t, WithEnrollmentPolicy(policy))
	course := f.store.addCourse(models.Course{Code: "CS101", MaxStudents: 5, Credits: 3})
	pending := f.store.addEnrollment(models.Enrollment{StudentID: "stu-1", CourseID: course.ID, Credits: 3, Status: models.EnrollmentStatusPending, AppliedAt: fixedNow})

	rejected, err := f.svc.Reject(context.Background(), pending.ID, RejectEnrollmentRequest{RejectionReason: "   "})
	require.NoError(t, err)
	assert.Equal(t, "declined", *rejected.RejectionReason)
}

func TestCancelApprovedFreesSeatAndReopensCourse(t *testing.T) {
	f := newEnrollmentFixture(t)
	course := f.store.addCourse(models.Course{Code: "CS101", MaxStudents: 2, CurrentStudents: 2, Credits: 3})
	at := fixedNow.Add(-time.Hour)
	approved := f.store.addEnrollment(models.Enrollment{StudentID: "stu-1", CourseID: course.ID, Credits: 3, Status: models.EnrollmentStatusApproved, AppliedAt: at, ApprovedAt: &at})
	require.Equal(t, models.CourseStatusFull, f.store.course(course.ID).Status)

	cancelled, err := f.svc.Cancel(context.Background(), approved.ID, CancelEnrollmentRequest{StudentID: "stu-1"})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)
	assert.Nil(t, cancelled.ApprovedAt)

	stored, ok := f.store.enrollment(approved.ID)
	require.True(t, ok)
	assert.Equal(t, models.EnrollmentStatusCancelled, stored.Status)

	updated := f.store.course(course.ID)
	assert.Equal(t, 1, updated.CurrentStudents)
	assert.Equal(t, models.CourseStatusOpen, updated.Status)
	assert.Equal(t, []string{course.ID}, f.cache.ids)
}

func TestCancelApprovedFloorsOccupancyAtZero(t *testing.T) {
	f := newEnrollmentFixture(t)
	course := f.store.addCourse(models.Course{Code: "CS101", MaxStudents: 2, CurrentStudents: 0, Credits: 3})
	at := fixedNow
	approved := f.store.addEnrollment(models.Enrollment{StudentID: "stu-1", CourseID: course.ID, Credits: 3, Status: models.EnrollmentStatusApproved, AppliedAt: at, ApprovedAt: &at})

	_, err := f.svc.Cancel(context.Background(), approved.ID, CancelEnrollmentRequest{StudentID: "stu-1"})
	require.NoError(t, err)
	assert.Equal(t, 0, f.store.course(course.ID).CurrentStudents)
}

func TestCancelPendingDeletesRow(t *testing.T) {
	f := newEnrollmentFixture(t)
	course := f.store.addCourse(models.Course{Code: "CS101", MaxStudents: 2, Credits: 3})
	pending, err := f.svc.Apply(context.Background(), ApplyEnrollmentRequest{StudentID: "stu-1", CourseID: course.ID})
	require.NoError(t, err)

	cancelled, err := f.svc.Cancel(context.Background(), pending.ID, CancelEnrollmentRequest{StudentID: "stu-1"})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusCancelled, cancelled.Status)
	assert.NotNil(t, cancelled.CancelledAt)

	_, ok := f.store.enrollment(pending.ID)
	assert.False(t, ok)
	assert.Equal(t, 0, f.store.course(course.ID).CurrentStudents)
	assert.Empty(t, f.cache.ids)

	// the pair is free again
	_, err = f.svc.Apply(context.Background(), ApplyEnrollmentRequest{StudentID: "stu-1", CourseID: course.ID})
	require.NoError(t, err)
}

func TestCancelOwnershipAndMissing(t *testing.T) {
	f := newEnrollmentFixture(t)
	course := f.store.addCourse(models.Course{Code: "CS101", MaxStudents: 2, Credits: 3})
	pending := f.store.addEnrollment(models.Enrollment{StudentID: "stu-1", CourseID: course.ID, Credits: 3, Status: models.EnrollmentStatusPending, AppliedAt: fixedNow})

	_, err := f.svc.Cancel(context.Background(), pending.ID, CancelEnrollmentRequest{StudentID: "stu-2"})
	assertKind(t, err, appErrors.ErrForbidden)

	_, err = f.svc.Cancel(context.Background(), "missing", CancelEnrollmentRequest{StudentID: "stu-1"})
	assertKind(t, err, appErrors.ErrNotFound)

	_, ok := f.store.enrollment(pending.ID)
	assert.True(t, ok)
}

func TestBatchApprovePartialFailure(t *testing.T) {
	f := newEnrollmentFixture(t)
	course := f.store.addCourse(models.Course{Code: "CS101", MaxStudents: 5, Credits: 3})
	first := f.store.addEnrollment(models.Enrollment{StudentID: "stu-1", CourseID: course.ID, Credits: 3, Status: models.EnrollmentStatusPending, AppliedAt: fixedNow})
	third := f.store.addEnrollment(models.Enrollment{StudentID: "stu-3", CourseID: course.ID, Credits: 3, Status: models.EnrollmentStatusPending, AppliedAt: fixedNow})

	result, err := f.svc.BatchApprove(context.Background(), BatchApproveRequest{EnrollmentIDs: []string{first.ID, "missing", third.ID}})
	require.NoError(t, err)
	assert.Equal(t, 2, result.SuccessCount)
	assert.Equal(t, 1, result.FailureCount)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, "missing", result.Failed[0].EnrollmentID)
	assert.Equal(t, appErrors.ErrNotFound.Code, result.Failed[0].Code)
	assert.Equal(t, "2 succeeded (1 failed)", result.Summary())

	for _, id := range []string{first.ID, third.ID} {
		stored, _ := f.store.enrollment(id)
		assert.Equal(t, models.EnrollmentStatusApproved, stored.Status)
	}
	assert.Equal(t, 2, f.store.course(course.ID).CurrentStudents)
}

func TestBatchApproveAllFailed(t *testing.T) {
	f := newEnrollmentFixture(t)

	result, err := f.svc.BatchApprove(context.Background(), BatchApproveRequest{EnrollmentIDs: []string{"a", "b"}})
	assertKind(t, err, appErrors.ErrBatchFailed)
	require.NotNil(t, result)
	assert.Equal(t, 2, result.FailureCount)
	assert.Empty(t, result.Succeeded)
}

func TestBatchRejectSharedReason(t *testing.T) {
	f := newEnrollmentFixture(t)
	course := f.store.addCourse(models.Course{Code: "CS101", MaxStudents: 5, Credits: 3})
	first := f.store.addEnrollment(models.Enrollment{StudentID: "stu-1", CourseID: course.ID, Credits: 3, Status: models.EnrollmentStatusPending, AppliedAt: fixedNow})
	at := fixedNow
	approved := f.store.addEnrollment(models.Enrollment{StudentID: "stu-2", CourseID: course.ID, Credits: 3, Status: models.EnrollmentStatusApproved, AppliedAt: fixedNow, ApprovedAt: &at})

	result, err := f.svc.BatchReject(context.Background(), BatchRejectRequest{EnrollmentIDs: []string{first.ID, approved.ID}, RejectionReason: "section closed"})
	require.NoError(t, err)
	require.Len(t, result.Succeeded, 1)
	assert.Equal(t, "section closed", *result.Succeeded[0].RejectionReason)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, result.Failed[0].Code)
}

func TestBatchValidation(t *testing.T) {
	policy := DefaultEnrollmentPolicy()
	policy.BatchMaxSize = 2
	f := newEnrollmentFixture(t, WithEnrollmentPolicy(policy))

	_, err := f.svc.BatchApprove(context.Background(), BatchApproveRequest{})
	assertKind(t, err, appErrors.ErrValidation)

	_, err = f.svc.BatchApprove(context.Background(), BatchApproveRequest{EnrollmentIDs: []string{"a", "b", "c"}})
	assertKind(t, err, appErrors.ErrValidation)
}

func TestApproveRollsBackOnStorageFailure(t *testing.T) {
	f := newEnrollmentFixture(t)
	course := f.store.addCourse(models.Course{Code: "CS101", MaxStudents: 1, Credits: 3})
	pending := f.store.addEnrollment(models.Enrollment{StudentID: "stu-1", CourseID: course.ID, Credits: 3, Status: models.EnrollmentStatusPending, AppliedAt: fixedNow})
	f.store.failSetStatus = errors.New("connection reset")

	_, err := f.svc.Approve(context.Background(), pending.ID)
	assertKind(t, err, appErrors.ErrInternal)

	stored, _ := f.store.enrollment(pending.ID)
	assert.Equal(t, models.EnrollmentStatusPending, stored.Status)
	assert.Nil(t, stored.ApprovedAt)
	updated := f.store.course(course.ID)
	assert.Equal(t, 0, updated.CurrentStudents)
	assert.Equal(t, models.CourseStatusOpen, updated.Status)
	assert.Equal(t, 1, f.store.rollbacks)
}

func TestLockTimeoutIsReported(t *testing.T) {
	store := newMemoryStore()
	locker := lock.NewKeyedMutex(20 * time.Millisecond)
	svc := NewEnrollmentService(store, enrollmentQueryStore{store}, locker, nil, nil)
	course := store.addCourse(models.Course{Code: "CS101", MaxStudents: 1, Credits: 3})
	pending := store.addEnrollment(models.Enrollment{StudentID: "stu-1", CourseID: course.ID, Credits: 3, Status: models.EnrollmentStatusPending, AppliedAt: fixedNow})

	release, err := locker.Acquire(context.Background(), lock.Key("course", course.ID))
	require.NoError(t, err)
	defer release()

	_, err = svc.Approve(context.Background(), pending.ID)
	assertKind(t, err, appErrors.ErrLockTimeout)

	// the enrollment lock was released on the error path
	enrollmentRelease, err := locker.Acquire(context.Background(), lock.Key("enrollment", pending.ID))
	require.NoError(t, err)
	enrollmentRelease()
}

func TestGetAndList(t *testing.T) {
	f := newEnrollmentFixture(t)
	course := f.store.addCourse(models.Course{Code: "CS101", Name: "Intro", MaxStudents: 5, Credits: 3})
	pending := f.store.addEnrollment(models.Enrollment{StudentID: "stu-1", CourseID: course.ID, Credits: 3, Status: models.EnrollmentStatusPending, AppliedAt: fixedNow})

	detail, err := f.svc.Get(context.Background(), pending.ID)
	require.NoError(t, err)
	assert.Equal(t, "CS101", detail.CourseCode)

	_, err = f.svc.Get(context.Background(), "missing")
	assertKind(t, err, appErrors.ErrNotFound)

	items, pagination, err := f.svc.List(context.Background(), models.EnrollmentFilter{StudentID: "stu-1", Status: "pending"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 1, pagination.TotalCount)
	assert.Equal(t, 20, pagination.PageSize)

	_, _, err = f.svc.List(context.Background(), models.EnrollmentFilter{Status: "WAITLISTED"})
	assertKind(t, err, appErrors.ErrValidation)
}

func TestCreditSummary(t *testing.T) {
	f := newEnrollmentFixture(t)
	course := f.store.addCourse(models.Course{Code: "CS101", MaxStudents: 5, Credits: 4})
	f.store.addEnrollment(models.Enrollment{StudentID: "stu-1", CourseID: course.ID, Credits: 4, Status: models.EnrollmentStatusPending, AppliedAt: fixedNow})

	summary, err := f.svc.CreditSummary(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.Equal(t, "2026-H2", summary.Semester)
	assert.Equal(t, 4, summary.UsedCredits)
	assert.Equal(t, 18, summary.MaxCredits)
	assert.Equal(t, 14, summary.RemainingCredits)

	_, err = f.svc.CreditSummary(context.Background(), " ")
	assertKind(t, err, appErrors.ErrValidation)
}

func TestOperationsAreMetered(t *testing.T) {
	f := newEnrollmentFixture(t)
	course := f.store.addCourse(models.Course{Code: "CS101", MaxStudents: 5, Credits: 3})

	_, err := f.svc.Apply(context.Background(), ApplyEnrollmentRequest{StudentID: "stu-1", CourseID: course.ID})
	require.NoError(t, err)
	_, err = f.svc.Approve(context.Background(), "missing")
	require.Error(t, err)

	assert.Equal(t, 1, f.metrics.outcomes["apply/success"])
	assert.Equal(t, 1, f.metrics.outcomes["approve/not_found"])
	assert.Equal(t, 1, f.metrics.waits["student+course"])
	assert.Equal(t, 1, f.metrics.waits["enrollment"])
}

func intPtr(v int) *int {
	return &v
}
