package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smartshop/smartshop-backend/config"
	"github.com/smartshop/smartshop-backend/internal/app/controller"
	"github.com/smartshop/smartshop-backend/internal/app/model"
	"github.com/smartshop/smartshop-backend/internal/metrics"
	"github.com/smartshop/smartshop-backend/internal/middleware"
)

type Router struct {
	authController         *controller.AuthController
	companyController      *controller.CompanyController
	adminCompanyController *controller.AdminCompanyController
	alertController        *controller.AlertController
	authMiddleware         *middleware.AuthMiddleware
	metrics                *metrics.Metrics
	gatherer               prometheus.Gatherer
	config                 *config.Config
}

func NewRouter(
	authController *controller.AuthController,
	companyController *controller.CompanyController,
	adminCompanyController *controller.AdminCompanyController,
	alertController *controller.AlertController,
	authMiddleware *middleware.AuthMiddleware,
	m *metrics.Metrics,
	gatherer prometheus.Gatherer,
	cfg *config.Config,
) *Router {
	return &Router{
		authController:         authController,
		companyController:      companyController,
		adminCompanyController: adminCompanyController,
		alertController:        alertController,
		authMiddleware:         authMiddleware,
		metrics:                m,
		gatherer:               gatherer,
		config:                 cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	gin.SetMode(r.config.Server.GinMode)

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.LoggingMiddleware())
	router.Use(middleware.MetricsMiddleware(r.metrics))
	router.Use(corsMiddleware(r.config.CORS.AllowedOrigins))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"message": "SmartShop partner API is running",
		})
	})
	if r.gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})))
	}

	v1 := router.Group("/api/v1")
	{
		auth := v1.Group("/auth")
		{
			auth.POST("/login", r.authController.Login)
			auth.POST("/refresh", r.authController.Refresh)
			auth.POST("/logout", r.authMiddleware.Authenticate(), r.authController.Logout)
			auth.GET("/me", r.authMiddleware.Authenticate(), r.authController.Me)
		}

		companies := v1.Group("/companies")
		{
			companies.POST("/register", r.companyController.Register)
			companies.POST("/documents/presigned-url", r.companyController.DocumentUploadURL)
		}

		admin := v1.Group("/admin")
		admin.Use(r.authMiddleware.Authenticate(), r.authMiddleware.RequireRole(model.RoleAdmin))
		{
			admin.GET("/companies", r.adminCompanyController.List)
			admin.GET("/companies/:id", r.adminCompanyController.Get)
			admin.GET("/companies/:id/events", r.adminCompanyController.History)
			admin.POST("/companies/:id/approve", r.adminCompanyController.Approve)
			admin.POST("/companies/:id/reject", r.adminCompanyController.Reject)
			admin.POST("/companies/:id/reopen", r.adminCompanyController.Reopen)
			admin.POST("/companies/:id/evaluate", r.adminCompanyController.Evaluate)

			admin.GET("/alerts", r.alertController.List)
			admin.GET("/alerts/unread-count", r.alertController.UnreadCount)
			admin.GET("/alerts/export", r.alertController.Export)
			admin.GET("/alerts/ws", r.alertController.Stream)
			admin.POST("/alerts/:id/acknowledge", r.alertController.Acknowledge)
		}
	}

	return router
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		allowed := false
		for _, allowedOrigin := range allowedOrigins {
			if origin == allowedOrigin || allowedOrigin == "*" {
				allowed = true
				break
			}
		}

		if allowed {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Disposition, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
