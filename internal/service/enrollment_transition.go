package service

import (
	"fmt"
	"time"

	"github.com/noah-isme/course-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/course-enrollment-api/pkg/errors"
)

// enrollmentTransitions lists the legal targets for each non-terminal status.
var enrollmentTransitions = map[models.EnrollmentStatus][]models.EnrollmentStatus{
	models.EnrollmentStatusPending:  {models.EnrollmentStatusApproved, models.EnrollmentStatusRejected, models.EnrollmentStatusCancelled},
	models.EnrollmentStatusApproved: {models.EnrollmentStatusCancelled},
}

func canTransition(from, to models.EnrollmentStatus) bool {
	if from.Terminal() {
		return false
	}
	for _, target := range enrollmentTransitions[from] {
		if target == to {
			return true
		}
	}
	return false
}

func checkTransition(from, to models.EnrollmentStatus) error {
	if canTransition(from, to) {
		return nil
	}
	if from.Terminal() {
		return appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("enrollment is already %s", from))
	}
	return appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("cannot move enrollment from %s to %s", from, to))
}

// transition moves the enrollment to status "to" at the given instant. Only the
// decision timestamp matching the new status stays set; the rejection reason
// is kept only for REJECTED.
func transition(enrollment *models.Enrollment, to models.EnrollmentStatus, at time.Time, reason string) error {
	if err := checkTransition(enrollment.Status, to); err != nil {
		return err
	}
	enrollment.Status = to
	enrollment.ApprovedAt = nil
	enrollment.RejectedAt = nil
	enrollment.CancelledAt = nil
	enrollment.RejectionReason = nil

	switch to {
	case models.EnrollmentStatusApproved:
		enrollment.ApprovedAt = &at
	case models.EnrollmentStatusRejected:
		enrollment.RejectedAt = &at
		enrollment.RejectionReason = &reason
	case models.EnrollmentStatusCancelled:
		enrollment.CancelledAt = &at
	}
	return nil
}
