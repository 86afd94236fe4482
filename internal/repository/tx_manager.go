package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// TxRepositories are repositories bound to one transaction. Their point reads
// take row locks that are held until the transaction ends.
type TxRepositories struct {
	Courses     *CourseRepository
	Enrollments *EnrollmentRepository
}

// TxManager runs read-check-write sequences inside a database transaction.
type TxManager struct {
	db *sqlx.DB
}

// NewTxManager constructs a TxManager.
func NewTxManager(db *sqlx.DB) *TxManager {
	return &TxManager{db: db}
}

// WithinTx commits when fn returns nil and rolls back otherwise.
func (m *TxManager) WithinTx(ctx context.Context, fn func(ctx context.Context, repos TxRepositories) error) (err error) {
	tx, err := m.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	repos := TxRepositories{
		Courses:     &CourseRepository{db: tx, lockRows: true},
		Enrollments: &EnrollmentRepository{db: tx, lockRows: true},
	}
	if err = fn(ctx, repos); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
