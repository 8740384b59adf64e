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
	"go.uber.org/zap"

	_ "github.com/noah-isme/langcenter-api/api/swagger"
	"github.com/noah-isme/langcenter-api/internal/handler"
	"github.com/noah-isme/langcenter-api/internal/repository"
	"github.com/noah-isme/langcenter-api/internal/service"
	"github.com/noah-isme/langcenter-api/pkg/cache"
	"github.com/noah-isme/langcenter-api/pkg/config"
	"github.com/noah-isme/langcenter-api/pkg/database"
	"github.com/noah-isme/langcenter-api/pkg/export"
	"github.com/noah-isme/langcenter-api/pkg/logger"
	"github.com/noah-isme/langcenter-api/pkg/mail"
)

// @title Language Center Registration API
// @version 1.0.0
// @description Course signup, waiting lists and seat assignment for a language center.
// @BasePath /api/v1
// @schemes http https
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		// the API keeps working without redis: no vacancy cache and an in-process run lock
		logr.Warn("redis unavailable, continuing without cache", zap.Error(err))
		redisClient = nil
	} else {
		defer redisClient.Close()
	}

	location, err := time.LoadLocation(cfg.Population.Timezone)
	if err != nil {
		logr.Warn("unknown population timezone, using UTC", zap.String("timezone", cfg.Population.Timezone), zap.Error(err))
		location = time.UTC
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	validate := validator.New()
	metrics := service.NewMetricsService()

	languageRepo := repository.NewLanguageRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	applicantRepo := repository.NewApplicantRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	logRepo := repository.NewLogRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logger.Component(logr, "cache"))

	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.VacanciesTTL, logger.Component(logr, "cache"), cfg.Cache.Enabled && redisClient != nil)

	notifications := service.NewNotificationService(newMailSender(cfg.Mail, logr), service.NotificationConfig{
		BaseURL:       cfg.Mail.BaseURL,
		SignoffSecret: cfg.Signup.SignoffSecret,
		Workers:       cfg.Mail.Workers,
		BufferSize:    cfg.Mail.BufferSize,
		MaxRetries:    cfg.Mail.MaxRetries,
		RetryDelay:    cfg.Mail.RetryDelay,
	}, metrics, logger.Component(logr, "notification"))
	// workers outlive the signal context so queued mails are delivered during shutdown
	notifications.Start(context.Background())

	authSvc := service.NewAuthService(service.AuthConfig{
		Secret:   cfg.JWT.Secret,
		Issuer:   cfg.JWT.Issuer,
		Audience: cfg.JWT.Audience,
	}, logger.Component(logr, "auth"))

	pretermSvc := service.NewPretermService(service.PretermConfig{
		Secret: cfg.Preterm.Secret,
		TTL:    cfg.Preterm.TokenTTL,
	}, notifications, validate, logger.Component(logr, "preterm"))

	catalogSvc := service.NewCatalogService(languageRepo, courseRepo, logRepo, cacheSvc, cfg.Cache.VacanciesTTL, validate, logger.Component(logr, "catalog"))

	signupSvc := service.NewSignupService(db, courseRepo, languageRepo, applicantRepo, attendanceRepo, logRepo, pretermSvc, notifications, cacheSvc,
		service.SignupConfig{
			OverbookingFactor: cfg.Signup.OverbookingFactor,
			AttendanceLimit:   cfg.Signup.AttendanceLimit,
		}, validate, logger.Component(logr, "signup"))

	attendanceSvc := service.NewAttendanceService(db, courseRepo, applicantRepo, attendanceRepo, attendanceRepo, logRepo, notifications, notifications, cacheSvc,
		validate, logger.Component(logr, "attendance"))

	signoffSvc := service.NewSignoffService(applicantRepo, attendanceSvc, service.SignoffConfig{
		Secret: cfg.Signup.SignoffSecret,
		Window: cfg.Signup.SignoffWindow,
	}, validate, logger.Component(logr, "signoff"))

	exportSvc := service.NewExportService(courseRepo, attendanceRepo, export.NewCSVExporter(), location, logger.Component(logr, "export"))

	applicantSvc := service.NewApplicantService(applicantRepo, applicantRepo, validate, logger.Component(logr, "applicant"))
	paymentSvc := service.NewPaymentService(attendanceRepo)
	announcementSvc := service.NewAnnouncementService(attendanceRepo, notifications, validate, logger.Component(logr, "announcement"))

	populationSvc := service.NewPopulationService(db, attendanceRepo, courseRepo, logRepo, notifications, cacheSvc, metrics, logger.Component(logr, "population"))

	scheduler, err := service.NewPopulationScheduler(populationSvc, cache.NewLock(redisClient, cfg.Population.LockKey, cfg.Population.LockTTL), service.SchedulerConfig{
		Spec:     cfg.Population.Cron,
		Location: location,
		Timeout:  cfg.Population.LockTTL,
	}, logger.Component(logr, "scheduler"))
	if err != nil {
		logr.Fatal("failed to configure population scheduler", zap.Error(err))
	}
	if cfg.Population.Enabled {
		scheduler.Start()
		logr.Info("population scheduler started", zap.String("cron", cfg.Population.Cron), zap.String("timezone", location.String()))
	}

	router := newRouter(cfg, logr, metrics, authSvc, routeHandlers{
		signup:        handler.NewSignupHandler(signupSvc, signoffSvc),
		catalog:       handler.NewCatalogHandler(catalogSvc),
		attendance:    handler.NewAttendanceHandler(attendanceSvc, exportSvc),
		preterm:       handler.NewPretermHandler(pretermSvc),
		population:    handler.NewPopulationHandler(scheduler),
		applicants:    handler.NewApplicantHandler(applicantSvc),
		payments:      handler.NewPaymentHandler(paymentSvc),
		announcements: handler.NewAnnouncementHandler(announcementSvc),
		metrics:       handler.NewMetricsHandler(metrics),
		auth:          handler.NewAuthHandler(),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("http shutdown", zap.Error(err))
	}
	if cfg.Population.Enabled {
		scheduler.Stop(shutdownCtx)
	}
	notifications.Shutdown(shutdownCtx)
}

func newMailSender(cfg config.MailConfig, logr *zap.Logger) mail.Sender {
	if cfg.Provider == "sendgrid" && cfg.SendgridAPIKey != "" {
		return mail.NewSendgridSender(cfg.SendgridAPIKey, cfg.FromName, cfg.FromAddress, cfg.SubjectPrefix, logger.Component(logr, "sendgrid"))
	}
	if cfg.Provider == "sendgrid" {
		logr.Warn("sendgrid selected without api key, falling back to console mail")
	}
	return mail.NewConsoleSender(cfg.SubjectPrefix, logger.Component(logr, "mail"))
}
