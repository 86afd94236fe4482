package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/course-enrollment-api/internal/middleware"
	"github.com/noah-isme/course-enrollment-api/internal/models"
	"github.com/noah-isme/course-enrollment-api/pkg/config"
	"github.com/noah-isme/course-enrollment-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/course-enrollment-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/course-enrollment-api/pkg/middleware/requestid"
)

func newRouter(cfg *config.Config, logr *zap.Logger, a *app) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(a.metrics))

	r.GET("/health", a.health.Health)
	r.GET("/ready", a.health.Ready)
	r.GET("/metrics", a.health.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// passthrough keeps routes open when auth is disabled.
	passthrough := func(c *gin.Context) { c.Next() }
	authenticated, staff, selfOrStaff := passthrough, passthrough, passthrough
	if cfg.JWT.Enabled {
		authenticated = middleware.JWT(a.tokens)
		staff = middleware.RequireRoles(models.StaffRoles()...)
		selfOrStaff = middleware.RequireSelfOr(models.StaffRoles()...)
	}

	api := r.Group(cfg.APIPrefix, authenticated)

	enrollments := api.Group("/enrollments")
	enrollments.POST("/apply", a.enrollments.Apply)
	enrollments.GET("", a.enrollments.List)
	enrollments.GET("/:id", a.enrollments.Get)
	enrollments.POST("/:id/cancel", a.enrollments.Cancel)
	enrollments.POST("/:id/approve", staff, a.enrollments.Approve)
	enrollments.POST("/:id/reject", staff, a.enrollments.Reject)
	enrollments.POST("/batch/approve", staff, a.enrollments.BatchApprove)
	enrollments.POST("/batch/reject", staff, a.enrollments.BatchReject)

	api.GET("/students/:id/credits", selfOrStaff, a.enrollments.Credits)

	courses := api.Group("/courses")
	courses.GET("", a.courses.List)
	courses.GET("/:id", a.courses.Get)
	courses.POST("", staff, a.courses.Create)
	courses.PUT("/:id", staff, a.courses.Update)
	courses.GET("/:id/roster", staff, a.courses.Roster)
	courses.POST("/:id/reconcile", staff, a.courses.Reconcile)

	return r
}
