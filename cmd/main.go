package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/reelpost/reelpost-backend/internal/clients/redis"
	"github.com/reelpost/reelpost-backend/internal/db"
	"github.com/reelpost/reelpost-backend/internal/handlers"
	"github.com/reelpost/reelpost-backend/internal/logger"
	"github.com/reelpost/reelpost-backend/internal/middleware"
	"github.com/reelpost/reelpost-backend/internal/repos"
	"github.com/reelpost/reelpost-backend/internal/server"
	"github.com/reelpost/reelpost-backend/internal/services"
	"github.com/reelpost/reelpost-backend/internal/sse"
	"github.com/reelpost/reelpost-backend/internal/utils"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := godotenv.Load(); err != nil {
		log.Info("No .env file found; relying on process environment")
	}

	// Env
	log.Info("Loading environment variables from main...")
	jwtSecretKey := utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log)
	accessTokenTTL := utils.GetEnvAsInt("ACCESS_TOKEN_TTL", 3600, log)
	assignmentTTL := utils.GetEnvAsInt("ASSIGNMENT_TTL", 600, log)
	downloadLimit := utils.GetEnvAsInt("DOWNLOAD_LIMIT", 10, log)
	downloadURLTTL := utils.GetEnvAsInt("DOWNLOAD_URL_TTL", 3600, log)
	paymentSecret := utils.GetEnv("PAYMENT_WEBHOOK_SECRET", "", log)

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Fatal("Postgres init failed", "error", err)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Fatal("Postgres auto migration failed", "error", err)
	}
	thePG := postgresService.DB()

	// Repos
	log.Info("Setting up Repos from main...")
	userRepo := repos.NewUserRepo(thePG, log)
	projectRepo := repos.NewProjectRepo(thePG, log)
	revisionRepo := repos.NewRevisionRepo(thePG, log)
	commentRepo := repos.NewCommentRepo(thePG, log)

	// SSE
	log.Info("Setting up SSE hub now...")
	sseHub := sse.NewSSEHub(log)
	var emitter services.SSEEmitter = &services.HubEmitter{Hub: sseHub}
	sseBus, err := redis.NewSSEBus(log)
	if err != nil {
		log.Warn("Redis SSE bus unavailable; events stay in-process", "error", err)
	} else {
		emitter = &services.RedisEmitter{Bus: sseBus, Log: log}
		if err := sseBus.StartForwarder(context.Background(), sseHub.Broadcast); err != nil {
			log.Warn("Could not start SSE forwarder", "error", err)
		}
	}
	notifier := services.NewProjectNotifier(emitter)

	// Services
	log.Info("Setting up Services from main...")
	bucketService, err := services.NewBucketService(log)
	if err != nil {
		log.Warn("Could not init BucketService; download links fall back to raw URLs", "error", err)
	}
	authService := services.NewAuthService(thePG, log, userRepo, jwtSecretKey, time.Duration(accessTokenTTL)*time.Second)
	projectService := services.NewProjectService(thePG, log, projectRepo)
	assignmentService := services.NewAssignmentService(thePG, log, projectRepo, userRepo, notifier, time.Duration(assignmentTTL)*time.Second)
	revisionService := services.NewRevisionService(thePG, log, projectRepo, revisionRepo, bucketService, notifier)
	downloadService := services.NewDownloadService(thePG, log, projectRepo, revisionRepo, bucketService, notifier, downloadLimit, time.Duration(downloadURLTTL)*time.Second)
	commentService := services.NewCommentService(thePG, log, revisionRepo, commentRepo, notifier)
	paymentService := services.NewPaymentService(thePG, log, projectRepo, services.NewHMACVerifier(paymentSecret), notifier)

	// Handlers
	log.Info("Setting up handlers from main...")
	authHandler := handlers.NewAuthHandler(authService)
	projectHandler := handlers.NewProjectHandler(log, projectService, assignmentService, downloadService)
	revisionHandler := handlers.NewRevisionHandler(log, revisionService, downloadService)
	commentHandler := handlers.NewCommentHandler(log, commentService)
	paymentHandler := handlers.NewPaymentHandler(log, paymentService)
	realtimeHandler := handlers.NewRealtimeHandler(log, sseHub)

	// Middleware
	log.Info("Setting up middleware from main...")
	authMiddleware := middleware.NewAuthMiddleware(log, authService)

	// Router
	log.Info("Setting up router from main...")
	router := server.NewRouter(server.RouterConfig{
		AuthMiddleware:  authMiddleware,
		AuthHandler:     authHandler,
		ProjectHandler:  projectHandler,
		RevisionHandler: revisionHandler,
		CommentHandler:  commentHandler,
		PaymentHandler:  paymentHandler,
		RealtimeHandler: realtimeHandler,
	})

	port := utils.GetEnv("PORT", "8080", log)
	fmt.Printf("Server listening on :%s\n", port)
	if err := router.Run(":" + port); err != nil {
		log.Warn("Server failed", "error", err)
	}
}
