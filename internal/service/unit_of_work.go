package service

import (
	"context"

	"github.com/noah-isme/course-enrollment-api/internal/models"
	"github.com/noah-isme/course-enrollment-api/internal/repository"
)

// CourseRegistry holds course capacity and the seat counter. It performs no
// business validation; capacity rules live in the services.
type CourseRegistry interface {
	Get(ctx context.Context, id string) (*models.Course, error)
	SetOccupancy(ctx context.Context, id string, occupied int) error
	SetStatus(ctx context.Context, id string, status models.CourseStatus) error
	Update(ctx context.Context, course *models.Course) error
}

// EnrollmentStore is keyed enrollment storage.
type EnrollmentStore interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindByStudentAndCourse(ctx context.Context, studentID, courseID string) (*models.Enrollment, error)
	FindByStudent(ctx context.Context, studentID string) ([]models.Enrollment, error)
	CountApprovedByCourse(ctx context.Context, courseID string) (int, error)
	Insert(ctx context.Context, enrollment *models.Enrollment) error
	Update(ctx context.Context, enrollment *models.Enrollment) error
	Delete(ctx context.Context, id string) error
}

// TxScope exposes stores bound to one unit of work.
type TxScope struct {
	Courses     CourseRegistry
	Enrollments EnrollmentStore
}

// UnitOfWork runs fn atomically: every write inside fn commits together or
// not at all.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx TxScope) error) error
}

type sqlUnitOfWork struct {
	manager *repository.TxManager
}

// NewSQLUnitOfWork adapts a repository.TxManager to UnitOfWork.
func NewSQLUnitOfWork(manager *repository.TxManager) UnitOfWork {
	return sqlUnitOfWork{manager: manager}
}

func (u sqlUnitOfWork) WithinTx(ctx context.Context, fn func(ctx context.Context, tx TxScope) error) error {
	return u.manager.WithinTx(ctx, func(ctx context.Context, repos repository.TxRepositories) error {
		return fn(ctx, TxScope{Courses: repos.Courses, Enrollments: repos.Enrollments})
	})
}
