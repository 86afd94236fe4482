package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/course-enrollment-api/internal/models"
)

const enrollmentColumns = `id, student_id, course_id, credits, status, applied_at, approved_at, rejected_at, cancelled_at, rejection_reason`

// EnrollmentRepository handles persistence of enrollments.
type EnrollmentRepository struct {
	db       sqlx.ExtContext
	lockRows bool
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// List returns enrollments filtered by the provided criteria.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	base := `FROM enrollments e
JOIN courses c ON c.id = e.course_id`
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("e.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("e.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("e.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"applied_at":  "e.applied_at",
		"course_code": "c.code",
		"status":      "e.status",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "e.applied_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page, size := models.NormalisePage(filter.Page, filter.PageSize)
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT e.id, e.student_id, e.course_id, e.credits, e.status, e.applied_at, e.approved_at, e.rejected_at, e.cancelled_at, e.rejection_reason,
        c.code AS course_code, c.name AS course_name
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, size, offset)

	var enrollments []models.EnrollmentDetail
	if err := sqlx.SelectContext(ctx, r.db, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := sqlx.GetContext(ctx, r.db, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// FindByID returns an enrollment by its ID. Inside a transaction the row is locked.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE id = $1` + forUpdate(r.lockRows)
	var enrollment models.Enrollment
	if err := sqlx.GetContext(ctx, r.db, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindDetailByID returns an enrollment with course info.
func (r *EnrollmentRepository) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	const query = `SELECT e.id, e.student_id, e.course_id, e.credits, e.status, e.applied_at, e.approved_at, e.rejected_at, e.cancelled_at, e.rejection_reason,
        c.code AS course_code, c.name AS course_name
        FROM enrollments e
        JOIN courses c ON c.id = e.course_id
        WHERE e.id = $1`
	var detail models.EnrollmentDetail
	if err := sqlx.GetContext(ctx, r.db, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// FindByStudentAndCourse returns the enrollment row for a pair, if any.
func (r *EnrollmentRepository) FindByStudentAndCourse(ctx context.Context, studentID, courseID string) (*models.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE student_id = $1 AND course_id = $2` + forUpdate(r.lockRows)
	var enrollment models.Enrollment
	if err := sqlx.GetContext(ctx, r.db, &enrollment, query, studentID, courseID); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindByStudent returns every enrollment of a student.
func (r *EnrollmentRepository) FindByStudent(ctx context.Context, studentID string) ([]models.Enrollment, error) {
	const query = `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE student_id = $1 ORDER BY applied_at`
	var enrollments []models.Enrollment
	if err := sqlx.SelectContext(ctx, r.db, &enrollments, query, studentID); err != nil {
		return nil, fmt.Errorf("find student enrollments: %w", err)
	}
	return enrollments, nil
}

// ListApprovedByCourse returns the approved enrollments of a course.
func (r *EnrollmentRepository) ListApprovedByCourse(ctx context.Context, courseID string) ([]models.Enrollment, error) {
	const query = `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE course_id = $1 AND status = $2 ORDER BY approved_at`
	var enrollments []models.Enrollment
	if err := sqlx.SelectContext(ctx, r.db, &enrollments, query, courseID, models.EnrollmentStatusApproved); err != nil {
		return nil, fmt.Errorf("list course enrollments: %w", err)
	}
	return enrollments, nil
}

// CountApprovedByCourse counts the seats actually held in a course.
func (r *EnrollmentRepository) CountApprovedByCourse(ctx context.Context, courseID string) (int, error) {
	const query = `SELECT COUNT(*) FROM enrollments WHERE course_id = $1 AND status = $2`
	var total int
	if err := sqlx.GetContext(ctx, r.db, &total, query, courseID, models.EnrollmentStatusApproved); err != nil {
		return 0, fmt.Errorf("count approved enrollments: %w", err)
	}
	return total, nil
}

// Insert persists a new enrollment record.
func (r *EnrollmentRepository) Insert(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	const query = `INSERT INTO enrollments (id, student_id, course_id, credits, status, applied_at, approved_at, rejected_at, cancelled_at, rejection_reason)
        VALUES (:id, :student_id, :course_id, :credits, :status, :applied_at, :approved_at, :rejected_at, :cancelled_at, :rejection_reason)`
	if _, err := sqlx.NamedExecContext(ctx, r.db, query, enrollment); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create enrollment: %w", ErrDuplicate)
		}
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// Update writes status, decision timestamps and rejection reason.
func (r *EnrollmentRepository) Update(ctx context.Context, enrollment *models.Enrollment) error {
	const query = `UPDATE enrollments SET status = :status, approved_at = :approved_at, rejected_at = :rejected_at,
        cancelled_at = :cancelled_at, rejection_reason = :rejection_reason WHERE id = :id`
	if _, err := sqlx.NamedExecContext(ctx, r.db, query, enrollment); err != nil {
		return fmt.Errorf("update enrollment: %w", err)
	}
	return nil
}

// Delete removes an enrollment row.
func (r *EnrollmentRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM enrollments WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete enrollment: %w", err)
	}
	return nil
}
