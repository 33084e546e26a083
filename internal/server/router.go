package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/reelpost/reelpost-backend/internal/handlers"
	"github.com/reelpost/reelpost-backend/internal/middleware"
)

type RouterConfig struct {
	AuthMiddleware  *middleware.AuthMiddleware
	AuthHandler     *handlers.AuthHandler
	ProjectHandler  *handlers.ProjectHandler
	RevisionHandler *handlers.RevisionHandler
	CommentHandler  *handlers.CommentHandler
	PaymentHandler  *handlers.PaymentHandler
	RealtimeHandler *handlers.RealtimeHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	// Cors
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{
			"http://localhost:80",
			"http://localhost:3000",
			"http://localhost:5174",
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	// ===============
	// || Public    ||
	// ===============
	router.GET("/healthcheck", handlers.HealthCheck)
	api := router.Group("/api")
	{
		api.POST("/register", cfg.AuthHandler.Register)
		api.POST("/login", cfg.AuthHandler.Login)
		api.POST("/guest/identify", cfg.AuthHandler.IdentifyGuest)
		api.POST("/payments/confirm", cfg.PaymentHandler.Confirm)
	}

	// ===============
	// || Protected ||
	// ===============
	// Account-holder surface. Guests never reach these routes.
	protected := api.Group("/")
	protected.Use(cfg.AuthMiddleware.RequireAuth())
	// Projects
	protected.POST("/projects", cfg.ProjectHandler.Create)
	protected.GET("/projects", cfg.ProjectHandler.List)
	protected.GET("/projects/:id", cfg.ProjectHandler.Get)
	protected.POST("/projects/:id/assign", cfg.ProjectHandler.Assign)
	protected.POST("/projects/:id/respond", cfg.ProjectHandler.Respond)
	protected.POST("/projects/:id/request-unlock", cfg.ProjectHandler.RequestUnlock)
	protected.POST("/projects/:id/unlock", cfg.ProjectHandler.Unlock)
	// Revisions
	protected.POST("/projects/:id/revisions", cfg.RevisionHandler.Upload)
	protected.GET("/projects/:id/revisions", cfg.RevisionHandler.List)
	protected.POST("/projects/:id/revisions/:revisionID/download", cfg.RevisionHandler.Download)

	// ===============
	// || Review    ||
	// ===============
	// Feedback surface. Guests participate here with a captured identity.
	review := api.Group("/")
	review.Use(cfg.AuthMiddleware.RequireIdentity())
	// Comments
	review.POST("/revisions/:id/comments", cfg.CommentHandler.Add)
	review.GET("/revisions/:id/comments", cfg.CommentHandler.List)
	review.POST("/comments/:id/replies", cfg.CommentHandler.Reply)
	review.POST("/comments/:id/resolve", cfg.CommentHandler.ToggleResolve)
	// SSE
	review.GET("/realtime/stream", cfg.RealtimeHandler.SSEStream)
	review.POST("/realtime/subscribe", cfg.RealtimeHandler.SSESubscribe)
	review.POST("/realtime/unsubscribe", cfg.RealtimeHandler.SSEUnsubscribe)

	return router
}
