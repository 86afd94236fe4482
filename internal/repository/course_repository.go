package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/course-enrollment-api/internal/models"
)

const courseColumns = `id, code, name, max_students, current_students, credits, status, created_at, updated_at`

// CourseRepository persists courses and their seat counters.
type CourseRepository struct {
	db       sqlx.ExtContext
	lockRows bool
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// Get returns a course by id. Inside a transaction the row is locked until commit.
func (r *CourseRepository) Get(ctx context.Context, id string) (*models.Course, error) {
	query := `SELECT ` + courseColumns + ` FROM courses WHERE id = $1` + forUpdate(r.lockRows)
	var course models.Course
	if err := sqlx.GetContext(ctx, r.db, &course, query, id); err != nil {
		return nil, err
	}
	return &course, nil
}

// List returns courses filtered by the provided criteria.
func (r *CourseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	var conditions []string
	var args []interface{}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(code ILIKE $%d OR name ILIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}
	page, size := models.NormalisePage(filter.Page, filter.PageSize)
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s FROM courses%s ORDER BY code ASC LIMIT %d OFFSET %d`, courseColumns, clause, size, offset)
	var courses []models.Course
	if err := sqlx.SelectContext(ctx, r.db, &courses, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list courses: %w", err)
	}

	var total int
	if err := sqlx.GetContext(ctx, r.db, &total, "SELECT COUNT(*) FROM courses"+clause, args...); err != nil {
		return nil, 0, fmt.Errorf("count courses: %w", err)
	}
	return courses, total, nil
}

// Create persists a new course.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if course.CreatedAt.IsZero() {
		course.CreatedAt = now
	}
	course.UpdatedAt = course.CreatedAt
	if course.Status == "" {
		course.Status = models.DeriveCourseStatus(course.CurrentStudents, course.MaxStudents)
	}
	const query = `INSERT INTO courses (id, code, name, max_students, current_students, credits, status, created_at, updated_at)
        VALUES (:id, :code, :name, :max_students, :current_students, :credits, :status, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.db, query, course); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create course: %w", ErrDuplicate)
		}
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}

// Update writes the editable course fields together with the derived status.
func (r *CourseRepository) Update(ctx context.Context, course *models.Course) error {
	course.UpdatedAt = time.Now().UTC()
	const query = `UPDATE courses SET name = :name, max_students = :max_students, credits = :credits, status = :status, updated_at = :updated_at WHERE id = :id`
	if _, err := sqlx.NamedExecContext(ctx, r.db, query, course); err != nil {
		return fmt.Errorf("update course: %w", err)
	}
	return nil
}

// SetOccupancy stores the seat counter for a course.
func (r *CourseRepository) SetOccupancy(ctx context.Context, id string, occupied int) error {
	const query = `UPDATE courses SET current_students = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, occupied, time.Now().UTC()); err != nil {
		return fmt.Errorf("update course occupancy: %w", err)
	}
	return nil
}

// SetStatus stores the course status.
func (r *CourseRepository) SetStatus(ctx context.Context, id string, status models.CourseStatus) error {
	const query = `UPDATE courses SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update course status: %w", err)
	}
	return nil
}
