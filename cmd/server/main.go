// Package main runs the community scheduler HTTP server with live counters and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/shepherd-hub/backend/config"
	"github.com/shepherd-hub/backend/internal/actions"
	"github.com/shepherd-hub/backend/internal/assignments"
	"github.com/shepherd-hub/backend/internal/attendance"
	"github.com/shepherd-hub/backend/internal/auth"
	"github.com/shepherd-hub/backend/internal/live"
	"github.com/shepherd-hub/backend/internal/members"
	"github.com/shepherd-hub/backend/internal/middleware"
	"github.com/shepherd-hub/backend/internal/ministries"
	"github.com/shepherd-hub/backend/internal/models"
	"github.com/shepherd-hub/backend/internal/notify"
	"github.com/shepherd-hub/backend/internal/occurrences"
	"github.com/shepherd-hub/backend/internal/qrtoken"
	"github.com/shepherd-hub/backend/internal/registrations"
	"github.com/shepherd-hub/backend/internal/schedules"
	"github.com/shepherd-hub/backend/internal/teams"
	"github.com/shepherd-hub/backend/internal/tenants"
	"github.com/shepherd-hub/backend/pkg/database"
	"github.com/shepherd-hub/backend/pkg/queue"
	"github.com/shepherd-hub/backend/pkg/redis"
	"github.com/shepherd-hub/backend/pkg/response"
	"github.com/shepherd-hub/backend/pkg/storage"
	"github.com/shepherd-hub/backend/pkg/validation"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	if err := validation.Install(); err != nil {
		logger.Fatal("validation", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool, logger); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB}, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var media schedules.MediaStore
	if cfg.AWS.Region != "" {
		s3Client, err := storage.NewS3(ctx, storage.S3Config{
			Region:          cfg.AWS.Region,
			AccessKeyID:     cfg.AWS.AccessKeyID,
			SecretAccessKey: cfg.AWS.SecretAccessKey,
			MediaBucket:     cfg.AWS.MediaBucket,
		}, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		} else {
			media = s3Client
		}
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	qrTokens := qrtoken.NewService(cfg.Scheduler.QRSecret)
	jobQueue := queue.NewQueue(rdb.Client, logger)
	composer := notify.NewComposer(jobQueue, cfg.Email.FromName)
	hub := live.NewHub(live.NewRedisBus(rdb, logger), logger)

	// Repositories
	authRepo := auth.NewRepository(pool)
	memberRepo := members.NewRepository(pool)
	ministryRepo := ministries.NewRepository(pool)
	teamRepo := teams.NewRepository(pool)
	scheduleRepo := schedules.NewRepository(pool)
	occurrenceRepo := occurrences.NewRepository(pool)
	registrationRepo := registrations.NewRepository(pool)
	attendanceRepo := attendance.NewRepository(pool)
	assignmentRepo := assignments.NewRepository(pool)
	emailLogRepo := notify.NewRepository(pool)

	// Services
	ministrySvc := ministries.NewService(ministryRepo, logger)
	teamSvc := teams.NewService(teamRepo, ministryRepo, memberRepo, logger)
	scheduleSvc := schedules.NewService(scheduleRepo, ministryRepo, qrTokens, media, schedules.Config{
		DefaultQRExpiryHours: cfg.Scheduler.QRExpiryHours,
		PublicBaseURL:        cfg.Scheduler.PublicBaseURL,
	}, logger)
	occurrenceSvc := occurrences.NewService(occurrenceRepo, scheduleRepo, composer, occurrences.Config{
		HorizonDays:    cfg.Scheduler.GenerateHorizonDays,
		MaxOccurrences: cfg.Scheduler.MaxOccurrencesPerRun,
	}, logger)
	registrationSvc := registrations.NewService(registrationRepo, occurrenceRepo, scheduleRepo, memberRepo,
		composer, hub, cfg.Scheduler.AutoPromoteWaitlist, logger)
	attendanceSvc := attendance.NewService(attendanceRepo, occurrenceRepo, scheduleRepo, memberRepo, qrTokens, hub, logger)
	assignmentSvc := assignments.NewService(assignmentRepo, occurrenceRepo, teamRepo, logger)
	dispatcher := actions.NewDispatcher(actions.Deps{
		Ministries:    ministrySvc,
		Schedules:     scheduleSvc,
		Occurrences:   occurrenceSvc,
		Registrations: registrationSvc,
		Teams:         teamSvc,
	}, logger)

	// Handlers
	authHandler := auth.NewHandler(authRepo, jwtService, logger)
	memberHandler := members.NewHandler(memberRepo, logger)
	ministryHandler := ministries.NewHandler(ministrySvc, logger)
	teamHandler := teams.NewHandler(teamSvc, logger)
	scheduleHandler := schedules.NewHandler(scheduleSvc, logger)
	occurrenceHandler := occurrences.NewHandler(occurrenceSvc, logger)
	registrationHandler := registrations.NewHandler(registrationSvc, logger)
	attendanceHandler := attendance.NewHandler(attendanceSvc, logger)
	assignmentHandler := assignments.NewHandler(assignmentSvc, logger)
	actionHandler := actions.NewHandler(dispatcher, logger)
	liveHandler := live.NewHandler(hub, occurrenceRepo, cfg.Server.CORSAllowedOrigins, logger)
	emailLogHandler := notify.NewHandler(emailLogRepo, logger)
	tenantHandler := tenants.NewHandler(tenants.NewRepository(pool), logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) {
		if err := pool.Ping(c.Request.Context()); err != nil {
			response.ServiceUnavailable(c, "database unavailable")
			return
		}
		response.OK(c, gin.H{"status": "ok"})
	})

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/register", authHandler.Register)
	}

	community := router.Group("/api/community")

	// Public: registration page, QR resolution and self check-in
	public := community.Group("/scheduler")
	{
		public.GET("/occurrences/:id/public", registrationHandler.Public)
		public.POST("/occurrences/:id/public/register", registrationHandler.PublicRegister)
		public.POST("/checkin", attendanceHandler.SelfCheckIn)
		public.GET("/qr/registration/:token", scheduleHandler.ResolveRegistrationQR)
	}

	// Protected API (JWT required)
	api := community.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		api.GET("/users", middleware.RequireAdmin(), authHandler.List)
		api.GET("/members", middleware.RequireStaff(), memberHandler.Search)

		// Ministries and team roster
		api.GET("/ministries", ministryHandler.List)
		api.GET("/ministries/:id", ministryHandler.Get)
		api.POST("/ministries", middleware.RequireAdmin(), ministryHandler.Create)
		api.PUT("/ministries/:id", middleware.RequireAdmin(), ministryHandler.Update)
		api.DELETE("/ministries/:id", middleware.RequireAdmin(), ministryHandler.Delete)
		api.GET("/ministries/:id/team", teamHandler.List)
		api.POST("/ministries/:id/team", middleware.RequireAdmin(), teamHandler.Add)
		api.PUT("/ministries/:id/team/:memberId", middleware.RequireAdmin(), teamHandler.Update)
		api.DELETE("/ministries/:id/team/:memberId", middleware.RequireAdmin(), teamHandler.Remove)

		sched := api.Group("/scheduler")

		// Schedules
		sched.GET("/form-templates", scheduleHandler.FormTemplates)
		sched.GET("/schedules", scheduleHandler.List)
		sched.GET("/schedules/:id", scheduleHandler.Get)
		sched.POST("/schedules", middleware.RequireAdmin(), scheduleHandler.Create)
		sched.PUT("/schedules/:id", middleware.RequireAdmin(), scheduleHandler.Update)
		sched.DELETE("/schedules/:id", middleware.RequireAdmin(), scheduleHandler.Delete)
		sched.POST("/schedules/:id/generate-occurrences", middleware.RequireAdmin(), occurrenceHandler.Generate)
		sched.GET("/schedules/:id/attendance-qr", middleware.RequireStaff(), scheduleHandler.LatestQR(models.QRPurposeAttendance))
		sched.POST("/schedules/:id/attendance-qr", middleware.RequireStaff(), scheduleHandler.IssueQR(models.QRPurposeAttendance))
		sched.GET("/schedules/:id/registration-qr", middleware.RequireStaff(), scheduleHandler.LatestQR(models.QRPurposeRegistration))
		sched.POST("/schedules/:id/registration-qr", middleware.RequireStaff(), scheduleHandler.IssueQR(models.QRPurposeRegistration))
		sched.POST("/schedules/:id/cover-photo", middleware.RequireAdmin(), scheduleHandler.UploadCoverPhoto)
		sched.DELETE("/schedules/:id/cover-photo", middleware.RequireAdmin(), scheduleHandler.DeleteCoverPhoto)

		// Occurrences
		sched.GET("/occurrences", occurrenceHandler.List)
		sched.GET("/calendar", occurrenceHandler.Calendar)
		sched.GET("/occurrences/:id", occurrenceHandler.Get)
		sched.PUT("/occurrences/:id", middleware.RequireStaff(), occurrenceHandler.Update)
		sched.POST("/occurrences/:id/cancel", middleware.RequireAdmin(), occurrenceHandler.Cancel)
		sched.GET("/occurrences/:id/live", liveHandler.Serve)
		sched.GET("/occurrences/:id/emails", middleware.RequireAdmin(), emailLogHandler.ListByOccurrence)

		// Attendance
		sched.GET("/occurrences/:id/attendance", middleware.RequireStaff(), attendanceHandler.List)
		sched.POST("/occurrences/:id/attendance", middleware.RequireStaff(), attendanceHandler.CheckIn)
		sched.GET("/occurrences/:id/attendance/export", middleware.RequireStaff(), attendanceHandler.Export)

		// Registrations
		sched.GET("/occurrences/:id/registrations", middleware.RequireStaff(), registrationHandler.List)
		sched.POST("/occurrences/:id/registrations", middleware.RequireStaff(), registrationHandler.Create)
		sched.GET("/occurrences/:id/registrations/export", middleware.RequireStaff(), registrationHandler.Export)
		sched.PUT("/occurrences/:id/registrations/:regId", middleware.RequireStaff(), registrationHandler.UpdateStatus)

		// Team assignments
		sched.GET("/occurrences/:id/team-assignments", assignmentHandler.List)
		sched.POST("/occurrences/:id/team-assignments", middleware.RequireAdmin(), assignmentHandler.Create)
		sched.PUT("/occurrences/:id/team-assignments", middleware.RequireAdmin(), assignmentHandler.Sync)
		sched.PUT("/occurrences/:id/team-assignments/:assignmentId", middleware.RequireStaff(), assignmentHandler.Update)
		sched.DELETE("/occurrences/:id/team-assignments/:assignmentId", middleware.RequireAdmin(), assignmentHandler.Delete)

		// Metadata actions
		api.POST("/actions/:handlerId", middleware.RequireAdmin(), actionHandler.Run)
	}

	// Super admin
	admin := router.Group("/api/admin")
	admin.Use(middleware.JWT(jwtService), middleware.RequireRole(models.RoleSuperAdmin))
	admin.GET("/tenants/overview", tenantHandler.Overview)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()

	go func() {
		if err := hub.Run(bgCtx); err != nil {
			logger.Error("live relay stopped", zap.Error(err))
		}
	}()

	if cfg.Server.RunWorker {
		var sender notify.Sender = notify.NewLogMailer(logger)
		if cfg.Email.Enabled() {
			sender = notify.NewSMTPMailer(cfg.Email)
		}
		go notify.NewProcessor(jobQueue, sender, emailLogRepo, logger).Run(bgCtx)
		logger.Info("email worker started")
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	bgCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
