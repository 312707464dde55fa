// Package main runs the live Q&A room HTTP server with WebSocket push
// and graceful shutdown.
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

	"github.com/askroom/backend/config"
	"github.com/askroom/backend/internal/archive"
	"github.com/askroom/backend/internal/auth"
	"github.com/askroom/backend/internal/middleware"
	"github.com/askroom/backend/internal/realtime"
	"github.com/askroom/backend/internal/rooms"
	"github.com/askroom/backend/internal/store"
	"github.com/askroom/backend/internal/worker"
	"github.com/askroom/backend/pkg/database"
	"github.com/askroom/backend/pkg/queue"
	"github.com/askroom/backend/pkg/redis"
	"github.com/askroom/backend/pkg/response"
	"github.com/askroom/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var s3Client *storage.S3
	if cfg.AWS.Region != "" {
		s3Cfg := storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			ArchivesBucket:       cfg.AWS.ArchivesBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}
		s3Client, err = storage.NewS3(ctx, s3Cfg, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		}
	}

	storeCtx, storeCancel := context.WithCancel(context.Background())
	defer storeCancel()
	notifier := store.NewRedisNotifier(rdb.Client, logger)
	treeStore, err := store.NewPostgres(storeCtx, pool, notifier, logger)
	if err != nil {
		logger.Fatal("store", zap.Error(err))
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	hub := realtime.NewHub(treeStore, logger)

	// Auth
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	// Archives (S3-backed snapshots of closed rooms)
	archiveRepo := archive.NewRepository(pool)
	archiveHandler := archive.NewHandler(archiveRepo, s3Client)
	jobQueue := queue.NewQueue(rdb.Client, logger)
	var archiver rooms.Archiver
	if s3Client != nil {
		archiver = archive.NewScheduler(archiveRepo, jobQueue, logger)
	}

	// Rooms
	roomSvc := rooms.NewService(treeStore, logger)
	roomHandler := rooms.NewHandler(roomSvc, archiver, logger)

	archiveProcessor := worker.NewArchiveProcessor(archiveRepo, treeStore, s3Client, jobQueue, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/register", authHandler.Register)
		authGroup.GET("/me", authHandler.Me)
	}

	// Rooms: reads allow anonymous viewers, writes need a session,
	// admin operations need the room owner.
	router.GET("/rooms/:id", middleware.OptionalSession(jwtService), roomHandler.Get)

	api := router.Group("")
	api.Use(middleware.RequireSession(jwtService))
	{
		api.POST("/rooms", roomHandler.Create)
		api.POST("/rooms/:id/questions", roomHandler.SendQuestion)
		api.POST("/rooms/:id/questions/:qid/like", roomHandler.Like)
		api.DELETE("/rooms/:id/questions/:qid/like/:lid", roomHandler.Unlike)

		owner := api.Group("")
		owner.Use(rooms.RequireRoomOwner(roomSvc))
		{
			owner.PATCH("/rooms/:id/questions/:qid/answer", roomHandler.MarkAnswered)
			owner.PATCH("/rooms/:id/questions/:qid/highlight", roomHandler.Highlight)
			owner.DELETE("/rooms/:id/questions/:qid", roomHandler.DeleteQuestion)
			owner.PATCH("/rooms/:id/close", roomHandler.Close)
			owner.GET("/rooms/:id/archives", archiveHandler.ListByRoom)
		}

		api.GET("/archives/:id/download-url", archiveHandler.DownloadURL)
		api.DELETE("/archives/:id", archiveHandler.Delete)
	}

	// WebSocket (token in query; no Authorization header required)
	router.GET("/ws", realtime.ServeWs(hub, logger, jwtService))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Background worker (room archive upload to S3)
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	if s3Client != nil {
		go archiveProcessor.Run(workerCtx)
		logger.Info("archive worker started")
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

	workerCancel()
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
