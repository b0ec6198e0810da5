// Package main runs the chat HTTP server with WebSocket and graceful shutdown.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/bloomcircle/backend/config"
	"github.com/bloomcircle/backend/internal/auth"
	"github.com/bloomcircle/backend/internal/avatars"
	"github.com/bloomcircle/backend/internal/chat"
	"github.com/bloomcircle/backend/internal/middleware"
	"github.com/bloomcircle/backend/internal/notifications"
	"github.com/bloomcircle/backend/internal/polls"
	"github.com/bloomcircle/backend/internal/reactions"
	"github.com/bloomcircle/backend/internal/realtime"
	"github.com/bloomcircle/backend/internal/rooms"
	"github.com/bloomcircle/backend/pkg/database"
	"github.com/bloomcircle/backend/pkg/queue"
	"github.com/bloomcircle/backend/pkg/redis"
	"github.com/bloomcircle/backend/pkg/response"
	"github.com/bloomcircle/backend/pkg/storage"
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
	if cfg.AWS.Region != "" && cfg.AWS.AvatarsBucket != "" {
		s3Cfg := storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			AvatarsBucket:        cfg.AWS.AvatarsBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}
		s3Client, err = storage.NewS3(ctx, s3Cfg, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		}
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(logger, redisPubSub, redisPubSub)
	jobQueue := queue.NewQueue(rdb.Client, logger)

	// Auth
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	// Rooms and membership
	roomRepo := rooms.NewRepository(pool)
	roomHandler := rooms.NewHandler(roomRepo)

	// Messages
	chatRepo := chat.NewRepository(pool)
	chatHandler := chat.NewHandler(chatRepo, roomRepo, hub, jobQueue, logger, cfg.Chat.HistoryLimit)

	// Reactions
	reactionRepo := reactions.NewRepository(pool)
	reactionHandler := reactions.NewHandler(reactionRepo, chatRepo, roomRepo, hub, logger)

	// Polls
	pollRepo := polls.NewRepository(pool)
	pollHandler := polls.NewHandler(pollRepo, roomRepo, hub, logger)

	// Notifications
	notificationRepo := notifications.NewRepository(pool)
	notificationHandler := notifications.NewHandler(notificationRepo)

	// Avatars (S3-backed)
	avatarHandler := avatars.NewHandler(s3Client, authRepo, logger)

	// Joining or leaving the live channel drops a system notice into the room.
	hub.SetPresenceHandlers(
		func(roomID, _ uuid.UUID, displayName string) {
			msg, err := chatRepo.CreateSystemMessage(context.Background(), roomID, fmt.Sprintf("%s joined the room", displayName))
			if err != nil {
				return
			}
			hub.PublishToRoom(roomID, realtime.EventNewMessage, msg)
		},
		func(roomID, _ uuid.UUID, displayName string) {
			msg, err := chatRepo.CreateSystemMessage(context.Background(), roomID, fmt.Sprintf("%s left the room", displayName))
			if err != nil {
				return
			}
			hub.PublishToRoom(roomID, realtime.EventNewMessage, msg)
		},
	)

	jwtValidate := func(token string) (uuid.UUID, string, string, error) {
		claims, err := jwtService.Validate(token)
		if err != nil {
			return uuid.Nil, "", "", err
		}
		return claims.UserID, claims.DisplayName, claims.Role, nil
	}
	isMember := func(roomID, userID uuid.UUID) bool {
		ok, err := roomRepo.IsMember(context.Background(), roomID, userID)
		return err == nil && ok
	}

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
	}

	// Avatar images (public; URLs are embedded in messages)
	router.GET("/avatars/:user_id", avatarHandler.Serve)

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		// Users (admin only)
		api.GET("/users", middleware.RequireRole("admin"), authHandler.List)

		// Rooms
		api.GET("/rooms", roomHandler.List)
		api.POST("/rooms", roomHandler.Create)
		api.POST("/rooms/:id/join", roomHandler.Join)
		api.GET("/rooms/:id/members", roomHandler.ListMembers)

		// Messages (room members only)
		api.GET("/rooms/:id/messages", roomHandler.RequireMembership(), chatHandler.List)
		api.POST("/rooms/:id/messages", roomHandler.RequireMembership(), chatHandler.Send)

		// Polls
		api.POST("/rooms/:id/polls", roomHandler.RequireMembership(), pollHandler.Create)
		api.POST("/polls/options/:id/vote", pollHandler.Vote)

		// Reactions
		api.POST("/messages/:id/reactions", reactionHandler.Toggle)

		// Notifications
		api.GET("/notifications", notificationHandler.List)
		api.POST("/notifications/:id/read", notificationHandler.MarkRead)

		// Avatar upload
		api.POST("/avatars/presign", avatarHandler.Presign)
		api.POST("/avatars/confirm", avatarHandler.Confirm)
	}

	// WebSocket (token in query; no Authorization header required)
	router.GET("/ws", realtime.ServeWs(hub, logger, jwtValidate, isMember))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
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
