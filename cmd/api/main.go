package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/hawkerboys/tms-api/api/swagger"
	"github.com/hawkerboys/tms-api/internal/handler"
	"github.com/hawkerboys/tms-api/internal/middleware"
	"github.com/hawkerboys/tms-api/internal/models"
	"github.com/hawkerboys/tms-api/internal/registry"
	"github.com/hawkerboys/tms-api/internal/repository"
	"github.com/hawkerboys/tms-api/internal/service"
	"github.com/hawkerboys/tms-api/pkg/cache"
	"github.com/hawkerboys/tms-api/pkg/config"
	"github.com/hawkerboys/tms-api/pkg/database"
	"github.com/hawkerboys/tms-api/pkg/export"
	"github.com/hawkerboys/tms-api/pkg/logger"
	corsmiddleware "github.com/hawkerboys/tms-api/pkg/middleware/cors"
	reqidmiddleware "github.com/hawkerboys/tms-api/pkg/middleware/requestid"
	"github.com/hawkerboys/tms-api/pkg/queue"
)

// @title Hawker Boys TMS API
// @version 1.0.0
// @description Training management backend with national registry sync
// @BasePath /api/v1
// @schemes http

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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect postgres", "error", err)
	}
	defer db.Close()

	rdb, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect redis", "error", err)
	}
	defer rdb.Close()

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	runRepo := repository.NewClassRunRepository(db)
	learnerRepo := repository.NewLearnerRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	certRepo := repository.NewCertificateRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	// The API process only produces jobs; the worker binary consumes them.
	syncQueue := queue.New(cfg.Sync.QueueName, rdb, nil, queue.Config{Logger: logr})

	metricsSvc := service.NewMetricsService()
	authSvc := service.NewAuthService(userRepo, validate, logr, cfg.JWT)
	courseSvc := service.NewCourseService(courseRepo, syncQueue, auditRepo, validate, logr)
	runSvc := service.NewClassRunService(runRepo, courseRepo, syncQueue, auditRepo, validate, logr)
	learnerSvc := service.NewLearnerService(learnerRepo, auditRepo, validate, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, runRepo, learnerRepo, syncQueue, auditRepo, validate, logr)
	attendanceSvc := service.NewAttendanceService(attendanceRepo, runRepo, enrollmentRepo, syncQueue, auditRepo, validate, logr)
	renderer := export.NewCertificateRenderer(cfg.Certs.IssuerName)
	certSvc := service.NewCertificateService(certRepo, enrollmentRepo, renderer, auditRepo, validate, logr)
	claimSvc := service.NewClaimService(enrollmentRepo, func() service.ClaimSubmitter {
		return registry.New(cfg.Registry, logr)
	}, auditRepo, validate, logr)
	syncSvc := service.NewSyncService(syncQueue, logr)

	authHandler := handler.NewAuthHandler(authSvc)
	courseHandler := handler.NewCourseHandler(courseSvc)
	runHandler := handler.NewClassRunHandler(runSvc)
	learnerHandler := handler.NewLearnerHandler(learnerSvc)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentSvc)
	attendanceHandler := handler.NewAttendanceHandler(attendanceSvc)
	certHandler := handler.NewCertificateHandler(certSvc)
	claimHandler := handler.NewClaimHandler(claimSvc)
	syncHandler := handler.NewSyncHandler(syncSvc, cfg.Registry.WebhookSecret, logr)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)
	api.POST("/registry/test-webhook", syncHandler.TestWebhook)

	authed := api.Group("")
	authed.Use(middleware.JWT(authSvc))

	authed.POST("/auth/users", middleware.RequireRoles(models.RoleAdmin), authHandler.CreateUser)

	courses := authed.Group("/courses")
	courses.GET("", courseHandler.List)
	courses.GET("/:id", courseHandler.Get)
	courses.POST("", middleware.RequireRoles(models.RoleAdmin, models.RoleOps), courseHandler.Create)
	courses.PUT("/:id", middleware.RequireRoles(models.RoleAdmin, models.RoleOps), courseHandler.Update)
	courses.POST("/:id/modules", middleware.RequireRoles(models.RoleAdmin, models.RoleOps), courseHandler.AddModule)

	runs := authed.Group("/class-runs")
	runs.GET("", runHandler.List)
	runs.GET("/:id", runHandler.Get)
	runs.GET("/:id/sessions", runHandler.ListSessions)
	runs.POST("", middleware.RequireRoles(models.RoleAdmin, models.RoleOps), runHandler.Create)
	runs.PUT("/:id", middleware.RequireRoles(models.RoleAdmin, models.RoleOps), runHandler.Update)
	runs.POST("/:id/sessions", middleware.RequireRoles(models.RoleAdmin, models.RoleOps), runHandler.AddSession)

	learners := authed.Group("/learners")
	learners.GET("", learnerHandler.List)
	learners.GET("/:id", learnerHandler.Get)
	learners.POST("", middleware.RequireRoles(models.RoleAdmin, models.RoleOps), learnerHandler.Create)
	learners.PUT("/:id", middleware.RequireRoles(models.RoleAdmin, models.RoleOps), learnerHandler.Update)

	enrollments := authed.Group("/enrollments")
	enrollments.GET("", enrollmentHandler.List)
	enrollments.POST("", middleware.RequireRoles(models.RoleAdmin, models.RoleOps), enrollmentHandler.Create)
	enrollments.PATCH("/:id/status", middleware.RequireRoles(models.RoleAdmin, models.RoleOps), enrollmentHandler.UpdateStatus)
	enrollments.POST("/:id/assessment", middleware.RequireRoles(models.RoleAdmin, models.RoleOps, models.RoleTrainer), certHandler.RecordAssessment)
	enrollments.POST("/:id/certificate", middleware.RequireRoles(models.RoleAdmin, models.RoleOps), certHandler.Issue)
	enrollments.POST("/:id/claim", middleware.RequireRoles(models.RoleAdmin, models.RoleOps), claimHandler.Submit)

	authed.GET("/certificates/:id/pdf", certHandler.Download)

	sessions := authed.Group("/sessions")
	sessions.GET("/:id/attendance", attendanceHandler.ListBySession)
	sessions.POST("/:id/attendance", middleware.RequireRoles(models.RoleAdmin, models.RoleOps, models.RoleTrainer), attendanceHandler.Mark)

	syncOps := authed.Group("/sync", middleware.RequireRoles(models.RoleAdmin, models.RoleOps))
	syncOps.GET("/status", syncHandler.Status)
	syncOps.GET("/dead-letters", syncHandler.DeadLetters)
	syncOps.POST("/dead-letters/:id/requeue", syncHandler.Requeue)
	syncOps.POST("/trigger", syncHandler.Trigger)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
