package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-enrollment-api/internal/models"
	"github.com/noah-isme/course-enrollment-api/internal/service"
	appErrors "github.com/noah-isme/course-enrollment-api/pkg/errors"
	"github.com/noah-isme/course-enrollment-api/pkg/response"
)

type courseService interface {
	Create(ctx context.Context, req service.CreateCourseRequest) (*models.Course, error)
	Get(ctx context.Context, id string) (*models.Course, error)
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, *models.Pagination, error)
	Update(ctx context.Context, id string, req service.UpdateCourseRequest) (*models.Course, error)
}

type rosterService interface {
	Roster(ctx context.Context, courseID string) (*models.CourseRoster, error)
	Export(ctx context.Context, courseID, format string) (*service.RosterDocument, error)
}

type reconcileService interface {
	Enqueue(ctx context.Context, courseID string) (string, error)
}

// CourseHandler exposes course registry endpoints.
type CourseHandler struct {
	courses   courseService
	rosters   rosterService
	reconcile reconcileService
}

// NewCourseHandler constructs CourseHandler.
func NewCourseHandler(courses courseService, rosters rosterService, reconcile reconcileService) *CourseHandler {
	return &CourseHandler{courses: courses, rosters: rosters, reconcile: reconcile}
}

// Create godoc
// @Summary Create course
// @Tags Courses
// @Accept json
// @Produce json
// @Param payload body service.CreateCourseRequest true "Course payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /courses [post]
func (h *CourseHandler) Create(c *gin.Context) {
	var req service.CreateCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	course, err := h.courses.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, course)
}

// List godoc
// @Summary List courses
// @Tags Courses
// @Produce json
// @Param search query string false "Code or name fragment"
// @Param status query string false "OPEN or FULL"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /courses [get]
func (h *CourseHandler) List(c *gin.Context) {
	filter := models.CourseFilter{
		Search:   strings.TrimSpace(c.Query("search")),
		Status:   models.CourseStatus(strings.ToUpper(strings.TrimSpace(c.Query("status")))),
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "limit", 20),
	}
	courses, pagination, err := h.courses.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, courses, pagination)
}

// Get godoc
// @Summary Get course
// @Tags Courses
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /courses/{id} [get]
func (h *CourseHandler) Get(c *gin.Context) {
	course, err := h.courses.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course, nil)
}

// Update godoc
// @Summary Update course
// @Tags Courses
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body service.UpdateCourseRequest true "Fields to change"
// @Success 200 {object} response.Envelope
// @Router /courses/{id} [put]
func (h *CourseHandler) Update(c *gin.Context) {
	var req service.UpdateCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	course, err := h.courses.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course, nil)
}

// Roster godoc
// @Summary Course roster
// @Description Returns approved enrollments as JSON, or a CSV/PDF download when format is given.
// @Tags Courses
// @Produce json,text/csv,application/pdf
// @Param id path string true "Course ID"
// @Param format query string false "csv or pdf"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/roster [get]
func (h *CourseHandler) Roster(c *gin.Context) {
	format := strings.TrimSpace(c.Query("format"))
	if format == "" {
		roster, err := h.rosters.Roster(c.Request.Context(), c.Param("id"))
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, roster, nil)
		return
	}

	doc, err := h.rosters.Export(c.Request.Context(), c.Param("id"), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, doc.ContentType, doc.Filename, doc.Body)
}

// Reconcile godoc
// @Summary Queue occupancy reconciliation
// @Tags Courses
// @Produce json
// @Param id path string true "Course ID"
// @Success 202 {object} response.Envelope
// @Router /courses/{id}/reconcile [post]
func (h *CourseHandler) Reconcile(c *gin.Context) {
	courseID := c.Param("id")
	if _, err := h.courses.Get(c.Request.Context(), courseID); err != nil {
		response.Error(c, err)
		return
	}
	jobID, err := h.reconcile.Enqueue(c.Request.Context(), courseID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, gin.H{"jobId": jobID, "courseId": courseID})
}
