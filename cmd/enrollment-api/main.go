package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/course-enrollment-api/api/swagger"
	"github.com/noah-isme/course-enrollment-api/internal/handler"
	"github.com/noah-isme/course-enrollment-api/internal/repository"
	"github.com/noah-isme/course-enrollment-api/internal/service"
	"github.com/noah-isme/course-enrollment-api/pkg/cache"
	"github.com/noah-isme/course-enrollment-api/pkg/config"
	"github.com/noah-isme/course-enrollment-api/pkg/database"
	"github.com/noah-isme/course-enrollment-api/pkg/jobs"
	"github.com/noah-isme/course-enrollment-api/pkg/lock"
	"github.com/noah-isme/course-enrollment-api/pkg/logger"
)

// @title Course Enrollment API
// @version 1.0.0
// @description Enrollment lifecycle and course capacity engine
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer db.Close()

	var redisClient *redis.Client
	if cfg.Lock.Backend == config.LockBackendRedis || cfg.CourseCache.Enabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Fatal("failed to connect redis", zap.Error(err))
		}
		defer redisClient.Close()
	}

	app := buildApp(cfg, logr, db, redisClient)
	app.queue.Start(ctx)
	defer app.queue.Stop()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	router := newRouter(cfg, logr, app)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "lock_backend", cfg.Lock.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

type app struct {
	metrics     *service.MetricsService
	tokens      *service.TokenService
	enrollments *handler.EnrollmentHandler
	courses     *handler.CourseHandler
	health      *handler.MetricsHandler
	queue       *jobs.Queue
}

func buildApp(cfg *config.Config, logr *zap.Logger, db *sqlx.DB, redisClient *redis.Client) *app {
	validate := validator.New()
	metrics := service.NewMetricsService()

	var locker lock.Locker
	if cfg.Lock.Backend == config.LockBackendRedis {
		locker = lock.NewRedisLocker(redisClient, lock.RedisConfig{
			Prefix:      "enrollment:lock:",
			TTL:         cfg.Lock.TTL,
			WaitTimeout: cfg.Lock.WaitTimeout,
			RetryDelay:  cfg.Lock.RetryDelay,
			Logger:      logr.Named("lock"),
		})
	} else {
		locker = lock.NewKeyedMutex(cfg.Lock.WaitTimeout)
	}

	courseRepo := repository.NewCourseRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	uow := service.NewSQLUnitOfWork(repository.NewTxManager(db))

	cacheSvc := service.NewCacheService(
		repository.NewCacheRepository(redisClient, "enrollment:cache:"),
		metrics,
		cfg.CourseCache.TTL,
		logr.Named("cache"),
		cfg.CourseCache.Enabled,
	)
	courseSvc := service.NewCourseService(courseRepo, uow, locker, cacheSvc, cfg.CourseCache.TTL,
		cfg.Enrollment.DefaultCourseCredits, validate, logr.Named("course"))

	enrollmentSvc := service.NewEnrollmentService(uow, enrollmentRepo, locker, validate, logr.Named("enrollment"),
		service.WithEnrollmentPolicy(service.EnrollmentPolicy{
			MaxSemesterCredits:     cfg.Enrollment.MaxSemesterCredits,
			DefaultCourseCredits:   cfg.Enrollment.DefaultCourseCredits,
			DefaultRejectionReason: cfg.Enrollment.DefaultRejectionReason,
			Location:               cfg.Enrollment.Location(),
			BatchMaxSize:           cfg.Enrollment.BatchMaxSize,
		}),
		service.WithEnrollmentMetrics(metrics),
		service.WithCourseCacheInvalidator(courseSvc),
	)

	queue := jobs.NewQueue("reconcile", jobs.QueueConfig{
		Workers:    cfg.Reconcile.Workers,
		MaxRetries: cfg.Reconcile.Retries,
		Logger:     logr.Named("jobs"),
	})
	reconcileSvc := service.NewReconcileService(uow, locker, queue, courseSvc, logr.Named("reconcile"))
	queue.Register(service.ReconcileJobType, reconcileSvc.HandleJob)

	rosterSvc := service.NewRosterService(courseSvc, enrollmentRepo)

	checks := []handler.ReadinessCheck{{Name: "postgres", Check: db.PingContext}}
	if redisClient != nil {
		checks = append(checks, handler.ReadinessCheck{Name: "redis", Check: func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}})
	}

	return &app{
		metrics:     metrics,
		tokens:      service.NewTokenService(service.TokenConfig{Secret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer}),
		enrollments: handler.NewEnrollmentHandler(enrollmentSvc),
		courses:     handler.NewCourseHandler(courseSvc, rosterSvc, reconcileSvc),
		health:      handler.NewMetricsHandler(metrics.Handler(), checks...),
		queue:       queue,
	}
}
