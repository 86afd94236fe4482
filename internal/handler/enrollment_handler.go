package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-enrollment-api/internal/middleware"
	"github.com/noah-isme/course-enrollment-api/internal/models"
	"github.com/noah-isme/course-enrollment-api/internal/service"
	appErrors "github.com/noah-isme/course-enrollment-api/pkg/errors"
	"github.com/noah-isme/course-enrollment-api/pkg/response"
)

type enrollmentService interface {
	Get(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error)
	CreditSummary(ctx context.Context, studentID string) (*models.CreditSummary, error)
	Apply(ctx context.Context, req service.ApplyEnrollmentRequest) (*models.Enrollment, error)
	Approve(ctx context.Context, id string) (*models.Enrollment, error)
	Reject(ctx context.Context, id string, req service.RejectEnrollmentRequest) (*models.Enrollment, error)
	Cancel(ctx context.Context, id string, req service.CancelEnrollmentRequest) (*models.Enrollment, error)
	BatchApprove(ctx context.Context, req service.BatchApproveRequest) (*models.BatchResult, error)
	BatchReject(ctx context.Context, req service.BatchRejectRequest) (*models.BatchResult, error)
}

// EnrollmentHandler exposes enrollment endpoints.
type EnrollmentHandler struct {
	enrollments enrollmentService
}

// NewEnrollmentHandler constructs EnrollmentHandler.
func NewEnrollmentHandler(enrollments enrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments}
}

// Apply godoc
// @Summary Apply for a course
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body service.ApplyEnrollmentRequest true "Application payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /enrollments/apply [post]
func (h *EnrollmentHandler) Apply(c *gin.Context) {
	var req service.ApplyEnrollmentRequest
	if err := c.ShouldBindJSON(&req); err != nil && !isEmptyBody(err) {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	req.StudentID = actingStudent(c, req.StudentID)

	enrollment, err := h.enrollments.Apply(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusCreated, "enrollment application submitted", enrollment)
}

// List godoc
// @Summary List enrollments
// @Tags Enrollments
// @Produce json
// @Param studentId query string false "Filter by student"
// @Param courseId query string false "Filter by course"
// @Param status query string false "Filter by status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /enrollments [get]
func (h *EnrollmentHandler) List(c *gin.Context) {
	filter := models.EnrollmentFilter{
		StudentID: actingStudent(c, c.Query("studentId")),
		CourseID:  c.Query("courseId"),
		Status:    models.EnrollmentStatus(strings.ToUpper(strings.TrimSpace(c.Query("status")))),
		Page:      queryInt(c, "page", 1),
		PageSize:  queryInt(c, "limit", 20),
		SortBy:    c.Query("sort"),
		SortOrder: c.Query("order"),
	}

	enrollments, pagination, err := h.enrollments.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollments, pagination)
}

// Get godoc
// @Summary Get enrollment
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /enrollments/{id} [get]
func (h *EnrollmentHandler) Get(c *gin.Context) {
	enrollment, err := h.enrollments.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if claims := middleware.CurrentClaims(c); claims.IsStudent() && enrollment.StudentID != claims.UserID {
		response.Error(c, appErrors.ErrForbidden)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

// Approve godoc
// @Summary Approve enrollment
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /enrollments/{id}/approve [post]
func (h *EnrollmentHandler) Approve(c *gin.Context) {
	enrollment, err := h.enrollments.Approve(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, "enrollment approved", enrollment)
}

// Reject godoc
// @Summary Reject enrollment
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body service.RejectEnrollmentRequest false "Rejection reason"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/reject [post]
func (h *EnrollmentHandler) Reject(c *gin.Context) {
	var req service.RejectEnrollmentRequest
	if err := c.ShouldBindJSON(&req); err != nil && !isEmptyBody(err) {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	enrollment, err := h.enrollments.Reject(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, "enrollment rejected", enrollment)
}

// Cancel godoc
// @Summary Cancel own enrollment
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body service.CancelEnrollmentRequest false "Owning student"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /enrollments/{id}/cancel [post]
func (h *EnrollmentHandler) Cancel(c *gin.Context) {
	var req service.CancelEnrollmentRequest
	if err := c.ShouldBindJSON(&req); err != nil && !isEmptyBody(err) {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	req.StudentID = actingStudent(c, req.StudentID)

	enrollment, err := h.enrollments.Cancel(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, "enrollment cancelled", enrollment)
}

// BatchApprove godoc
// @Summary Approve many enrollments
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body service.BatchApproveRequest true "Enrollment ids"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /enrollments/batch/approve [post]
func (h *EnrollmentHandler) BatchApprove(c *gin.Context) {
	var req service.BatchApproveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.enrollments.BatchApprove(c.Request.Context(), req)
	writeBatch(c, result, err)
}

// BatchReject godoc
// @Summary Reject many enrollments
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body service.BatchRejectRequest true "Enrollment ids and shared reason"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /enrollments/batch/reject [post]
func (h *EnrollmentHandler) BatchReject(c *gin.Context) {
	var req service.BatchRejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.enrollments.BatchReject(c.Request.Context(), req)
	writeBatch(c, result, err)
}

// Credits godoc
// @Summary Semester credit usage for a student
// @Tags Enrollments
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/credits [get]
func (h *EnrollmentHandler) Credits(c *gin.Context) {
	summary, err := h.enrollments.CreditSummary(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

func writeBatch(c *gin.Context, result *models.BatchResult, err error) {
	switch {
	case err == nil:
		response.Message(c, http.StatusOK, result.Summary(), result)
	case result != nil:
		response.ErrorWithData(c, err, result)
	default:
		response.Error(c, err)
	}
}

// isEmptyBody reports a request without a body; optional payloads accept it.
func isEmptyBody(err error) bool {
	return errors.Is(err, io.EOF)
}
