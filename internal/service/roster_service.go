package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/course-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/course-enrollment-api/pkg/errors"
	"github.com/noah-isme/course-enrollment-api/pkg/export"
)

type courseGetter interface {
	Get(ctx context.Context, id string) (*models.Course, error)
}

type approvedEnrollmentLister interface {
	ListApprovedByCourse(ctx context.Context, courseID string) ([]models.Enrollment, error)
}

// RosterDocument is a rendered roster ready for download.
type RosterDocument struct {
	Filename    string
	ContentType string
	Body        []byte
}

// RosterService builds course rosters from approved enrollments.
type RosterService struct {
	courses     courseGetter
	enrollments approvedEnrollmentLister
}

// NewRosterService constructs RosterService.
func NewRosterService(courses courseGetter, enrollments approvedEnrollmentLister) *RosterService {
	return &RosterService{courses: courses, enrollments: enrollments}
}

// Roster loads the course and its approved enrollments concurrently.
func (s *RosterService) Roster(ctx context.Context, courseID string) (*models.CourseRoster, error) {
	var (
		course   *models.Course
		approved []models.Enrollment
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		course, err = s.courses.Get(gctx, courseID)
		return err
	})
	g.Go(func() error {
		var err error
		approved, err = s.enrollments.ListApprovedByCourse(gctx, courseID)
		return err
	})
	if err := g.Wait(); err != nil {
		if errors.Is(err, sql.ErrNoRows) || errors.Is(err, appErrors.ErrNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Internal(err, "failed to load course roster")
	}

	roster := &models.CourseRoster{Course: *course, Entries: make([]models.RosterEntry, 0, len(approved))}
	for _, enrollment := range approved {
		entry := models.RosterEntry{EnrollmentID: enrollment.ID, StudentID: enrollment.StudentID, Credits: enrollment.Credits}
		if enrollment.ApprovedAt != nil {
			entry.ApprovedAt = *enrollment.ApprovedAt
		}
		roster.Entries = append(roster.Entries, entry)
	}
	return roster, nil
}

// Export renders the roster in the requested format.
func (s *RosterService) Export(ctx context.Context, courseID, format string) (*RosterDocument, error) {
	parsed, err := export.ParseFormat(format)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	roster, err := s.Roster(ctx, courseID)
	if err != nil {
		return nil, err
	}

	renderer := export.RendererFor(parsed)
	body, err := renderer.Render(rosterDataset(roster))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render roster")
	}
	return &RosterDocument{
		Filename:    fmt.Sprintf("roster-%s.%s", strings.ToLower(roster.Course.Code), renderer.Extension()),
		ContentType: renderer.ContentType(),
		Body:        body,
	}, nil
}

func rosterDataset(roster *models.CourseRoster) export.Dataset {
	headers := []string{"No", "Student ID", "Enrollment ID", "Credits", "Approved At"}
	rows := make([]map[string]string, 0, len(roster.Entries))
	for i, entry := range roster.Entries {
		approvedAt := ""
		if !entry.ApprovedAt.IsZero() {
			approvedAt = entry.ApprovedAt.UTC().Format(time.RFC3339)
		}
		rows = append(rows, map[string]string{
			"No":            strconv.Itoa(i + 1),
			"Student ID":    entry.StudentID,
			"Enrollment ID": entry.EnrollmentID,
			"Credits":       strconv.Itoa(entry.Credits),
			"Approved At":   approvedAt,
		})
	}
	return export.Dataset{
		Title:   fmt.Sprintf("%s %s (%d/%d)", roster.Course.Code, roster.Course.Name, roster.Course.CurrentStudents, roster.Course.MaxStudents),
		Headers: headers,
		Rows:    rows,
	}
}
