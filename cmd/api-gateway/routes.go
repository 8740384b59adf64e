package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/langcenter-api/internal/handler"
	"github.com/noah-isme/langcenter-api/internal/middleware"
	"github.com/noah-isme/langcenter-api/internal/models"
	"github.com/noah-isme/langcenter-api/pkg/config"
	"github.com/noah-isme/langcenter-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/langcenter-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/langcenter-api/pkg/middleware/requestid"
)

type routeHandlers struct {
	signup        *handler.SignupHandler
	catalog       *handler.CatalogHandler
	attendance    *handler.AttendanceHandler
	preterm       *handler.PretermHandler
	population    *handler.PopulationHandler
	applicants    *handler.ApplicantHandler
	payments      *handler.PaymentHandler
	announcements *handler.AnnouncementHandler
	metrics       *handler.MetricsHandler
	auth          *handler.AuthHandler
}

func newRouter(cfg *config.Config, logr *zap.Logger, observer middleware.RequestObserver, auth middleware.TokenValidator, h routeHandlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(observer))

	r.GET("/health", h.metrics.Health)
	r.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", h.metrics.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.GET("/languages", h.catalog.ListLanguages)
	api.GET("/languages/:id/courses", h.catalog.ListCourses)
	api.GET("/courses/:id", h.catalog.GetCourse)
	api.GET("/vacancies", h.catalog.Vacancies)
	api.POST("/signups", middleware.OptionalJWT(auth), h.signup.Signup)
	api.POST("/signoffs", h.signup.Signoff)

	audit := logger.Component(logr, "audit")
	admin := api.Group("/admin")
	admin.Use(middleware.JWT(auth), middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleCourseAdmin))
	admin.GET("/courses/:id/attendances", h.attendance.ListByCourse)
	admin.GET("/courses/:id/export", h.attendance.Export)
	admin.POST("/attendances", middleware.Audit(audit, "attendance.add"), h.attendance.Add)
	admin.DELETE("/attendances/:applicantId/:courseId", middleware.Audit(audit, "attendance.remove"), h.attendance.Remove)
	admin.PUT("/attendances/:applicantId/:courseId/status", middleware.Audit(audit, "attendance.status"), h.attendance.UpdateStatus)
	admin.GET("/statistics/courses", h.catalog.Statistics)
	admin.GET("/statistics/payments", h.payments.Statistics)
	admin.GET("/payments/outstanding", h.payments.Outstanding)
	admin.GET("/applicants", h.applicants.Search)
	admin.GET("/applicants/:id", h.applicants.Get)
	admin.PUT("/applicants/:id", middleware.Audit(audit, "applicant.update"), h.applicants.Update)
	admin.GET("/duplicates", h.applicants.Duplicates)
	admin.GET("/logs", h.catalog.Logs)
	admin.GET("/metrics", h.metrics.Snapshot)
	admin.GET("/me", h.auth.Me)

	managers := admin.Group("")
	managers.Use(middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin))
	managers.POST("/preterm-tokens", middleware.Audit(audit, "preterm.issue"), h.preterm.Issue)
	managers.POST("/population/run", middleware.Audit(audit, "population.run"), h.population.Run)
	managers.POST("/population/cleanup-parallel", middleware.Audit(audit, "population.cleanup_parallel"), h.population.CleanupParallel)
	managers.POST("/announcements", middleware.Audit(audit, "announcement.send"), h.announcements.Send)
	managers.POST("/languages", middleware.Audit(audit, "language.create"), h.catalog.CreateLanguage)
	managers.PUT("/languages/:id", middleware.Audit(audit, "language.update"), h.catalog.UpdateLanguage)
	managers.POST("/courses", middleware.Audit(audit, "course.create"), h.catalog.CreateCourse)
	managers.PUT("/courses/:id", middleware.Audit(audit, "course.update"), h.catalog.UpdateCourse)

	return r
}
