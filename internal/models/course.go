package models

import "time"

// CourseStatus is derived from occupancy and capacity.
type CourseStatus string

// Course statuses.
const (
	CourseStatusOpen CourseStatus = "OPEN"
	CourseStatusFull CourseStatus = "FULL"
)

// DeriveCourseStatus returns FULL once every seat is taken.
func DeriveCourseStatus(occupied, max int) CourseStatus {
	if occupied >= max {
		return CourseStatusFull
	}
	return CourseStatusOpen
}

// Course holds capacity and the current seat counter.
type Course struct {
	ID              string       `db:"id" json:"id"`
	Code            string       `db:"code" json:"code"`
	Name            string       `db:"name" json:"name"`
	MaxStudents     int          `db:"max_students" json:"maxStudents"`
	CurrentStudents int          `db:"current_students" json:"currentStudents"`
	Credits         int          `db:"credits" json:"credits"`
	Status          CourseStatus `db:"status" json:"status"`
	CreatedAt       time.Time    `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time    `db:"updated_at" json:"updatedAt"`
}

// HasSeat reports whether another approval fits.
func (c Course) HasSeat() bool {
	return c.Status != CourseStatusFull && c.CurrentStudents < c.MaxStudents
}

// CourseFilter provides filters for listing courses.
type CourseFilter struct {
	Search   string
	Status   CourseStatus
	Page     int
	PageSize int
}
