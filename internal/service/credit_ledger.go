package service

import (
	"context"
	"fmt"
	"time"

	"github.com/noah-isme/course-enrollment-api/internal/models"
)

// Semester is one half of a calendar year: H1 covers January to June, H2 July
// to December.
type Semester struct {
	Year int
	Half int
}

// SemesterOf returns the semester containing t in loc.
func SemesterOf(t time.Time, loc *time.Location) Semester {
	if loc != nil {
		t = t.In(loc)
	}
	half := 1
	if t.Month() > time.June {
		half = 2
	}
	return Semester{Year: t.Year(), Half: half}
}

func (s Semester) String() string {
	return fmt.Sprintf("%d-H%d", s.Year, s.Half)
}

type studentHistory interface {
	FindByStudent(ctx context.Context, studentID string) ([]models.Enrollment, error)
}

// CreditLedger projects a student's committed credits for the semester that
// contains "now". Nothing is stored; totals are recomputed from history.
type CreditLedger struct {
	clock      Clock
	location   *time.Location
	maxCredits int
}

// NewCreditLedger constructs a CreditLedger.
func NewCreditLedger(clock Clock, location *time.Location, maxCredits int) *CreditLedger {
	if clock == nil {
		clock = SystemClock
	}
	if location == nil {
		location = time.UTC
	}
	return &CreditLedger{clock: clock, location: location, maxCredits: maxCredits}
}

// Semester returns the current semester window.
func (l *CreditLedger) Semester() Semester {
	return SemesterOf(l.clock.Now(), l.location)
}

// Total sums snapshot credits of PENDING and APPROVED enrollments applied in
// the current semester.
func (l *CreditLedger) Total(history []models.Enrollment) int {
	current := l.Semester()
	total := 0
	for _, enrollment := range history {
		if !enrollment.Status.CountsTowardCredits() {
			continue
		}
		if SemesterOf(enrollment.AppliedAt, l.location) != current {
			continue
		}
		total += enrollment.Credits
	}
	return total
}

// CurrentSemesterCredits loads the student's history and totals it.
func (l *CreditLedger) CurrentSemesterCredits(ctx context.Context, store studentHistory, studentID string) (int, error) {
	history, err := store.FindByStudent(ctx, studentID)
	if err != nil {
		return 0, err
	}
	return l.Total(history), nil
}

// Exceeds reports whether adding credits to used goes over the ceiling.
func (l *CreditLedger) Exceeds(used, credits int) bool {
	return used+credits > l.maxCredits
}

// Summary reports usage against the ceiling for the current semester.
func (l *CreditLedger) Summary(ctx context.Context, store studentHistory, studentID string) (*models.CreditSummary, error) {
	used, err := l.CurrentSemesterCredits(ctx, store, studentID)
	if err != nil {
		return nil, err
	}
	remaining := l.maxCredits - used
	if remaining < 0 {
		remaining = 0
	}
	return &models.CreditSummary{
		StudentID:        studentID,
		Semester:         l.Semester().String(),
		UsedCredits:      used,
		MaxCredits:       l.maxCredits,
		RemainingCredits: remaining,
	}, nil
}
