package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/fieldpunch/api/internal/client"
	"github.com/fieldpunch/api/internal/config"
	"github.com/fieldpunch/api/internal/handler"
	"github.com/fieldpunch/api/internal/middleware"
	"github.com/fieldpunch/api/internal/report"
	"github.com/fieldpunch/api/internal/service"
	"github.com/fieldpunch/api/internal/speech"
	"github.com/fieldpunch/api/internal/store"
	"github.com/fieldpunch/api/internal/worker"
	ws "github.com/fieldpunch/api/internal/websocket"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// Test Redis connection
	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Redis not available: %v", err)
	}

	// Initialize Asynq client
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer asynqClient.Close()

	// Initialize validator
	validate := validator.New()

	// Initialize WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	// Initialize external clients. Missing credentials fall back to mock
	// behavior so local development works without accounts.
	geminiClient := client.NewGeminiClient(&cfg.Gemini)
	if !geminiClient.IsConfigured() {
		log.Println("Warning: Gemini API key not set, extraction will use mock results")
	}

	var storage client.StorageClient
	if r2Client, err := client.NewR2Client(&cfg.R2); err != nil {
		log.Printf("Warning: R2 not configured, photo storage will use mock URLs: %v", err)
	} else {
		storage = r2Client
	}

	recognizer := speech.NewDeepgramRecognizer(cfg.Deepgram)
	if !recognizer.IsConfigured() {
		log.Println("Warning: Deepgram API key not set, voice capture is disabled")
	}

	// Initialize stores and services
	jobStore := store.NewRedisJobStore(redisClient)
	taskQueue := service.NewTaskQueue(asynqClient)

	extractService := service.NewExtractService(geminiClient, cfg.Categories)
	itemService := service.NewItemService(jobStore, storage)
	jobService := service.NewJobService(jobStore, taskQueue)
	draftService := service.NewDraftService(extractService, itemService, hub, cfg.Categories)
	captureService := service.NewCaptureService(recognizer, draftService, hub, speech.SessionConfig{
		SampleRate: 16000,
		Channels:   1,
		Encoding:   "linear16",
	})
	reportService := service.NewReportService(redisClient, jobStore, taskQueue)

	// Initialize handlers
	jobHandler := handler.NewJobHandler(jobService, hub, validate)
	itemHandler := handler.NewItemHandler(itemService, jobStore)
	draftHandler := handler.NewDraftHandler(draftService, jobStore)
	captureHandler := handler.NewCaptureHandler(captureService, hub)
	reportHandler := handler.NewReportHandler(reportService, validate)

	// Initialize middleware
	authMiddleware := middleware.NewAuthMiddleware(cfg.JWT.Secret)
	rateLimiter := middleware.NewRateLimiter(redisClient)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    20 * 1024 * 1024, // 20MB, bounded by photo uploads
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PATCH,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// API routes
	api := app.Group("/api", authMiddleware.Authenticate())

	// Job routes
	jobs := api.Group("/jobs")
	jobs.Get("/", jobHandler.List)
	jobs.Post("/", jobHandler.Create)
	jobs.Delete("/:jobId", jobHandler.Delete)
	jobs.Delete("/:jobId/items/:itemId", itemHandler.Delete)

	// Draft routes
	draft := api.Group("/draft")
	draft.Get("/", draftHandler.Get)
	draft.Patch("/", draftHandler.Update)
	draft.Post("/cancel", draftHandler.Cancel)
	draft.Post("/submit", rateLimiter.SubmitLimit(cfg.RateLimit.SubmitPerHour), draftHandler.Submit)

	// Report routes
	reports := api.Group("/reports")
	reports.Post("/", rateLimiter.ReportLimit(cfg.RateLimit.ReportsPerHour), reportHandler.Start)
	reports.Get("/:reportId", reportHandler.Status)
	reports.Get("/:reportId/result", reportHandler.Result)

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/capture", authMiddleware.Authenticate(), rateLimiter.CaptureLimit(cfg.RateLimit.CapturePerMin), websocket.New(func(c *websocket.Conn) {
		userID, _ := c.Locals("userId").(string)
		captureHandler.HandleSocket(c, userID)
	}))

	app.Get("/ws/jobs", authMiddleware.Authenticate(), websocket.New(func(c *websocket.Conn) {
		userID, _ := c.Locals("userId").(string)
		jobHandler.HandleUpdates(c, userID)
	}))

	// Start Asynq worker server
	go startWorkerServer(cfg, reportService, jobStore, storage, hub)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	// Start server
	addr := ":" + cfg.Server.Port
	log.Printf("Server starting on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func startWorkerServer(cfg *config.Config, reportService *service.ReportService, jobStore store.JobStore, storage client.StorageClient, hub *ws.Hub) {
	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"reports": 6,
				"cleanup": 4,
			},
		},
	)

	// Create workers
	renderer := report.NewPDFRenderer(report.NewHTTPImageFetcher())
	reportWorker := worker.NewReportWorker(reportService, jobStore, renderer, storage, hub)
	cleanupWorker := worker.NewCleanupWorker(storage)

	mux := asynq.NewServeMux()
	mux.HandleFunc(service.TaskTypeReport, reportWorker.ProcessTask)
	mux.HandleFunc(service.TaskTypeCleanup, cleanupWorker.ProcessTask)

	if err := srv.Run(mux); err != nil {
		log.Printf("Asynq worker error: %v", err)
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "SERVICE_ERROR",
			"message": message,
		},
	})
}
