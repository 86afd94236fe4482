package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-enrollment-api/internal/middleware"
)

// actingStudent returns the caller's own id unless the caller is staff, so a
// student can never act for someone else. Anonymous calls keep the requested id.
func actingStudent(c *gin.Context, requested string) string {
	if claims := middleware.CurrentClaims(c); claims != nil && !claims.Role.IsStaff() {
		return claims.UserID
	}
	return requested
}

func queryInt(c *gin.Context, key string, fallback int) int {
	if value, err := strconv.Atoi(c.DefaultQuery(key, strconv.Itoa(fallback))); err == nil {
		return value
	}
	return fallback
}
