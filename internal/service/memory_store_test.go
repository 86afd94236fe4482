package service

import (
	"context"
	"database/sql"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/course-enrollment-api/internal/models"
	"github.com/noah-isme/course-enrollment-api/internal/repository"
)

// memoryStore is an in-memory backing store. Single calls are atomic, but
// nothing serialises whole units of work; that is left to the service locks.
// Failed units of work are undone from a journal.
type memoryStore struct {
	mu          sync.Mutex
	courses     map[string]models.Course
	enrollments map[string]models.Enrollment

	failSetStatus error
	failInsert    error
	commits       int
	rollbacks     int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		courses:     make(map[string]models.Course),
		enrollments: make(map[string]models.Enrollment),
	}
}

func (m *memoryStore) addCourse(course models.Course) models.Course {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	if course.Status == "" {
		course.Status = models.DeriveCourseStatus(course.CurrentStudents, course.MaxStudents)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.courses[course.ID] = course
	return course
}

func (m *memoryStore) addEnrollment(enrollment models.Enrollment) models.Enrollment {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enrollments[enrollment.ID] = enrollment
	return enrollment
}

func (m *memoryStore) course(id string) models.Course {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.courses[id]
}

func (m *memoryStore) enrollment(id string) (models.Enrollment, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.enrollments[id]
	return e, ok
}

func (m *memoryStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx TxScope) error) error {
	j := &journal{store: m}
	scope := TxScope{Courses: &memoryCourses{store: m, journal: j}, Enrollments: &memoryEnrollments{store: m, journal: j}}
	if err := fn(ctx, scope); err != nil {
		j.rollback()
		m.mu.Lock()
		m.rollbacks++
		m.mu.Unlock()
		return err
	}
	m.mu.Lock()
	m.commits++
	m.mu.Unlock()
	return nil
}

type journal struct {
	store *memoryStore
	undo  []func()
}

// record must be called with store.mu held.
func (j *journal) record(undo func()) {
	j.undo = append(j.undo, undo)
}

func (j *journal) rollback() {
	j.store.mu.Lock()
	defer j.store.mu.Unlock()
	for i := len(j.undo) - 1; i >= 0; i-- {
		j.undo[i]()
	}
}

type memoryCourses struct {
	store   *memoryStore
	journal *journal
}

func (c *memoryCourses) Get(ctx context.Context, id string) (*models.Course, error) {
	runtime.Gosched()
	return c.store.Get(ctx, id)
}

func (c *memoryCourses) SetOccupancy(ctx context.Context, id string, occupied int) error {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	course, ok := c.store.courses[id]
	if !ok {
		return sql.ErrNoRows
	}
	prev := course
	c.journal.record(func() { c.store.courses[id] = prev })
	course.CurrentStudents = occupied
	c.store.courses[id] = course
	return nil
}

func (c *memoryCourses) SetStatus(ctx context.Context, id string, status models.CourseStatus) error {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	if c.store.failSetStatus != nil {
		return c.store.failSetStatus
	}
	course, ok := c.store.courses[id]
	if !ok {
		return sql.ErrNoRows
	}
	prev := course
	c.journal.record(func() { c.store.courses[id] = prev })
	course.Status = status
	c.store.courses[id] = course
	return nil
}

func (c *memoryCourses) Update(ctx context.Context, course *models.Course) error {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	prev, ok := c.store.courses[course.ID]
	if !ok {
		return sql.ErrNoRows
	}
	c.journal.record(func() { c.store.courses[course.ID] = prev })
	updated := prev
	updated.Name = course.Name
	updated.MaxStudents = course.MaxStudents
	updated.Credits = course.Credits
	updated.Status = course.Status
	c.store.courses[course.ID] = updated
	return nil
}

type memoryEnrollments struct {
	store   *memoryStore
	journal *journal
}

func (e *memoryEnrollments) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	return e.store.FindByID(ctx, id)
}

func (e *memoryEnrollments) FindByStudentAndCourse(ctx context.Context, studentID, courseID string) (*models.Enrollment, error) {
	e.store.mu.Lock()
	defer e.store.mu.Unlock()
	for _, enrollment := range e.store.enrollments {
		if enrollment.StudentID == studentID && enrollment.CourseID == courseID {
			found := enrollment
			return &found, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (e *memoryEnrollments) FindByStudent(ctx context.Context, studentID string) ([]models.Enrollment, error) {
	runtime.Gosched()
	return e.store.FindByStudent(ctx, studentID)
}

func (e *memoryEnrollments) CountApprovedByCourse(ctx context.Context, courseID string) (int, error) {
	e.store.mu.Lock()
	defer e.store.mu.Unlock()
	count := 0
	for _, enrollment := range e.store.enrollments {
		if enrollment.CourseID == courseID && enrollment.Status == models.EnrollmentStatusApproved {
			count++
		}
	}
	return count, nil
}

func (e *memoryEnrollments) Insert(ctx context.Context, enrollment *models.Enrollment) error {
	e.store.mu.Lock()
	defer e.store.mu.Unlock()
	if e.store.failInsert != nil {
		return e.store.failInsert
	}
	for _, existing := range e.store.enrollments {
		if existing.StudentID == enrollment.StudentID && existing.CourseID == enrollment.CourseID {
			return repository.ErrDuplicate
		}
	}
	id := enrollment.ID
	e.journal.record(func() { delete(e.store.enrollments, id) })
	e.store.enrollments[id] = *enrollment
	return nil
}

func (e *memoryEnrollments) Update(ctx context.Context, enrollment *models.Enrollment) error {
	e.store.mu.Lock()
	defer e.store.mu.Unlock()
	prev, ok := e.store.enrollments[enrollment.ID]
	if !ok {
		return sql.ErrNoRows
	}
	e.journal.record(func() { e.store.enrollments[prev.ID] = prev })
	e.store.enrollments[enrollment.ID] = *enrollment
	return nil
}

func (e *memoryEnrollments) Delete(ctx context.Context, id string) error {
	e.store.mu.Lock()
	defer e.store.mu.Unlock()
	prev, ok := e.store.enrollments[id]
	if !ok {
		return nil
	}
	e.journal.record(func() { e.store.enrollments[id] = prev })
	delete(e.store.enrollments, id)
	return nil
}

// Non-transactional reads used by services outside a unit of work.

func (m *memoryStore) Get(ctx context.Context, id string) (*models.Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	course, ok := m.courses[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &course, nil
}

func (m *memoryStore) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	courses := make([]models.Course, 0, len(m.courses))
	for _, course := range m.courses {
		if filter.Status != "" && course.Status != filter.Status {
			continue
		}
		courses = append(courses, course)
	}
	sort.Slice(courses, func(i, j int) bool { return courses[i].Code < courses[j].Code })
	return courses, len(courses), nil
}

func (m *memoryStore) Create(ctx context.Context, course *models.Course) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.courses {
		if existing.Code == course.Code {
			return repository.ErrDuplicate
		}
	}
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	course.CreatedAt = time.Now().UTC()
	course.UpdatedAt = course.CreatedAt
	m.courses[course.ID] = *course
	return nil
}

func (m *memoryStore) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	enrollment, ok := m.enrollments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &enrollment, nil
}

func (m *memoryStore) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	enrollment, ok := m.enrollments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	course := m.courses[enrollment.CourseID]
	return &models.EnrollmentDetail{Enrollment: enrollment, CourseCode: course.Code, CourseName: course.Name}, nil
}

func (m *memoryStore) FindByStudent(ctx context.Context, studentID string) ([]models.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []models.Enrollment
	for _, enrollment := range m.enrollments {
		if enrollment.StudentID == studentID {
			result = append(result, enrollment)
		}
	}
	return result, nil
}

func (m *memoryStore) ListEnrollments(filter models.EnrollmentFilter) []models.EnrollmentDetail {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []models.EnrollmentDetail
	for _, enrollment := range m.enrollments {
		if filter.StudentID != "" && enrollment.StudentID != filter.StudentID {
			continue
		}
		if filter.CourseID != "" && enrollment.CourseID != filter.CourseID {
			continue
		}
		if filter.Status != "" && enrollment.Status != filter.Status {
			continue
		}
		course := m.courses[enrollment.CourseID]
		result = append(result, models.EnrollmentDetail{Enrollment: enrollment, CourseCode: course.Code, CourseName: course.Name})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].AppliedAt.Before(result[j].AppliedAt) })
	return result
}

func (m *memoryStore) ListApprovedByCourse(ctx context.Context, courseID string) ([]models.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []models.Enrollment
	for _, enrollment := range m.enrollments {
		if enrollment.CourseID == courseID && enrollment.Status == models.EnrollmentStatusApproved {
			result = append(result, enrollment)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StudentID < result[j].StudentID })
	return result, nil
}

// enrollmentQueryStore adapts memoryStore to the enrollment query interface;
// List is already taken by the course listing.
type enrollmentQueryStore struct {
	*memoryStore
}

func (q enrollmentQueryStore) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	items := q.ListEnrollments(filter)
	return items, len(items), nil
}
