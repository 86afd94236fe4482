package models

import (
	"fmt"
	"strings"
	"time"
)

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentStatusPending   EnrollmentStatus = "PENDING"
	EnrollmentStatusApproved  EnrollmentStatus = "APPROVED"
	EnrollmentStatusRejected  EnrollmentStatus = "REJECTED"
	EnrollmentStatusCancelled EnrollmentStatus = "CANCELLED"
)

// ParseEnrollmentStatus normalises a status literal. The boolean is false for
// values outside the known set.
func ParseEnrollmentStatus(raw string) (EnrollmentStatus, bool) {
	status := EnrollmentStatus(strings.ToUpper(strings.TrimSpace(raw)))
	switch status {
	case EnrollmentStatusPending, EnrollmentStatusApproved, EnrollmentStatusRejected, EnrollmentStatusCancelled:
		return status, true
	default:
		return "", false
	}
}

// Terminal reports whether no further transition is possible.
func (s EnrollmentStatus) Terminal() bool {
	return s == EnrollmentStatusRejected || s == EnrollmentStatusCancelled
}

// CountsTowardCredits reports whether the enrollment occupies semester credits.
func (s EnrollmentStatus) CountsTowardCredits() bool {
	return s == EnrollmentStatusPending || s == EnrollmentStatusApproved
}

// Enrollment captures a student's request for a seat in a course. Credits is a
// snapshot of the course credit value taken when the request was made.
type Enrollment struct {
	ID              string           `db:"id" json:"id"`
	StudentID       string           `db:"student_id" json:"studentId"`
	CourseID        string           `db:"course_id" json:"courseId"`
	Credits         int              `db:"credits" json:"credits"`
	Status          EnrollmentStatus `db:"status" json:"status"`
	AppliedAt       time.Time        `db:"applied_at" json:"appliedAt"`
	ApprovedAt      *time.Time       `db:"approved_at" json:"approvedAt,omitempty"`
	RejectedAt      *time.Time       `db:"rejected_at" json:"rejectedAt,omitempty"`
	CancelledAt     *time.Time       `db:"cancelled_at" json:"cancelledAt,omitempty"`
	RejectionReason *string          `db:"rejection_reason" json:"rejectionReason,omitempty"`
}

// EnrollmentDetail enriches Enrollment with course info.
type EnrollmentDetail struct {
	Enrollment
	CourseCode string `db:"course_code" json:"courseCode"`
	CourseName string `db:"course_name" json:"courseName"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	StudentID string
	CourseID  string
	Status    EnrollmentStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// BatchFailure describes one batch item that did not go through.
type BatchFailure struct {
	EnrollmentID string `json:"enrollmentId"`
	Code         string `json:"code"`
	Message      string `json:"message"`
}

// BatchResult aggregates the outcome of a batch approve/reject.
type BatchResult struct {
	Succeeded    []Enrollment   `json:"succeeded"`
	Failed       []BatchFailure `json:"failed"`
	SuccessCount int            `json:"successCount"`
	FailureCount int            `json:"failureCount"`
}

// CreditSummary reports a student's credit load for the current semester.
type CreditSummary struct {
	StudentID        string `json:"studentId"`
	Semester         string `json:"semester"`
	UsedCredits      int    `json:"usedCredits"`
	MaxCredits       int    `json:"maxCredits"`
	RemainingCredits int    `json:"remainingCredits"`
}

// RosterEntry is one approved student in a course roster.
type RosterEntry struct {
	EnrollmentID string    `json:"enrollmentId"`
	StudentID    string    `json:"studentId"`
	Credits      int       `json:"credits"`
	ApprovedAt   time.Time `json:"approvedAt"`
}

// CourseRoster lists the approved students of a course.
type CourseRoster struct {
	Course  Course        `json:"course"`
	Entries []RosterEntry `json:"entries"`
}

// Summary renders the outcome counts, e.g. "2 succeeded (1 failed)".
func (r BatchResult) Summary() string {
	if r.FailureCount == 0 {
		return fmt.Sprintf("%d succeeded", r.SuccessCount)
	}
	return fmt.Sprintf("%d succeeded (%d failed)", r.SuccessCount, r.FailureCount)
}
