package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	gorillaws "github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"vehicle-service-server/config"
	"vehicle-service-server/middleware"
	"vehicle-service-server/models"
	"vehicle-service-server/services"
	"vehicle-service-server/websocket"
)

// Handler holds the services the HTTP layer dispatches to.
type Handler struct {
	Bookings *services.BookingService
	Accounts *services.AccountService
	Uploader services.Uploader
	Hub      *websocket.Hub
	Upgrader gorillaws.Upgrader
}

const (
	limiterCleanupEvery = 5 * time.Minute
	limiterMaxIdle      = 10 * time.Minute
)

// SetupRoutes registers middleware and every API route on router. Idle
// rate limiter entries are swept until ctx is cancelled.
func SetupRoutes(ctx context.Context, router *gin.Engine, h *Handler) {
	limiter := middleware.NewRateLimiter(rate.Every(time.Second/10), 40)
	authLimiter := middleware.NewRateLimiter(rate.Every(time.Minute/5), 5)
	limiter.StartCleanup(ctx, limiterCleanupEvery, limiterMaxIdle)
	authLimiter.StartCleanup(ctx, limiterCleanupEvery, limiterMaxIdle)

	router.Use(
		middleware.RequestID(),
		middleware.AuditLogMiddleware(),
		middleware.Metrics(),
		middleware.SecurityHeadersMiddleware(),
		middleware.CORS(config.AppConfig.CORS.AllowedOrigins),
		middleware.InputValidationMiddleware(),
	)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if local, ok := h.Uploader.(*services.LocalUploader); ok {
		router.Static("/uploads", local.Dir())
	}

	apiV1 := router.Group("/api/v1")
	apiV1.GET("/ws", middleware.WebSocketAuthMiddleware(), h.serveWebSocket)

	api := apiV1.Group("")
	api.Use(limiter.Middleware())

	auth := api.Group("/auth")
	{
		auth.POST("/register", authLimiter.Middleware(), h.register)
		auth.POST("/login", authLimiter.Middleware(), h.login)
		auth.POST("/refresh", h.refresh)
		auth.POST("/logout", h.logout)
		auth.GET("/me", middleware.AuthMiddleware(), h.me)
	}

	api.GET("/servicers", h.searchServicers)

	bookings := api.Group("/bookings")
	bookings.Use(middleware.AuthMiddleware())
	{
		bookings.POST("", middleware.RequireRole(models.RoleUser), h.createBooking)
		bookings.GET("", middleware.RequireRole(models.RoleUser), h.listMyBookings)
		bookings.GET("/pending-payments", middleware.RequireRole(models.RoleUser), h.listPendingPayments)
		bookings.GET("/history", middleware.RequireRole(models.RoleUser), h.listWorkHistory)

		bookings.GET("/:id", h.getBooking)
		bookings.GET("/:id/diagnosis", h.getDiagnosis)
		bookings.GET("/:id/progress", h.listProgress)
		bookings.GET("/:id/events", h.listStatusEvents)

		bookings.POST("/:id/diagnosis/approve", h.approveDiagnosis)
		bookings.POST("/:id/pay", h.processPayment)
		bookings.POST("/:id/feedback", h.submitFeedback)
	}

	servicer := api.Group("/servicer")
	servicer.Use(middleware.AuthMiddleware(), middleware.RequireRole(models.RoleServicer))
	{
		servicer.GET("/profile", h.getServicerProfile)
		servicer.PUT("/profile/status", h.updateServicerStatus)
		servicer.POST("/profile/image", h.uploadServicerImage)

		servicer.GET("/bookings", h.servicerWorklist)
		servicer.GET("/bookings/history", h.servicerHistory)
		servicer.POST("/bookings/:id/accept", h.acceptBooking)
		servicer.POST("/bookings/:id/reject", h.rejectBooking)
		servicer.POST("/bookings/:id/diagnosis", h.submitDiagnosis)
		servicer.POST("/bookings/:id/progress", h.addProgress)
		servicer.POST("/bookings/:id/complete", h.completeWork)
	}

	admin := api.Group("/admin")
	admin.Use(middleware.AuthMiddleware(), middleware.RequireRole(models.RoleAdmin))
	{
		admin.GET("/bookings", h.adminListBookings)
		admin.GET("/servicers", h.adminListServicers)
		admin.POST("/servicers", h.adminCreateServicer)
		admin.GET("/users", h.adminListUsers)
		admin.PATCH("/users/:id/deactivate", h.adminDeactivateUser)
		admin.GET("/feedback", h.adminListFeedback)
	}

	notifications := api.Group("/notifications")
	notifications.Use(middleware.AuthMiddleware())
	{
		notifications.GET("", h.listNotifications)
		notifications.PATCH("/:id/read", h.markNotificationRead)
	}
}

func (h *Handler) serveWebSocket(c *gin.Context) {
	websocket.ServeWebSocket(h.Hub, h.Upgrader, c.Writer, c.Request, middleware.CurrentUserID(c), string(middleware.CurrentRole(c)))
}
