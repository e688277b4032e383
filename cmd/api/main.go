package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/modu-office/modu-api/internal/config"
	"github.com/modu-office/modu-api/internal/database"
	"github.com/modu-office/modu-api/internal/directory"
	"github.com/modu-office/modu-api/internal/handler"
	"github.com/modu-office/modu-api/internal/middleware"
	"github.com/modu-office/modu-api/internal/models"
	"github.com/modu-office/modu-api/internal/repository"
	"github.com/modu-office/modu-api/internal/router"
	"github.com/modu-office/modu-api/internal/service"
	"github.com/modu-office/modu-api/pkg/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.Channel{},
		&models.Room{},
		&models.RoomMembership{},
		&models.Post{},
		&models.Reaction{},
		&models.ReadReceipt{},
		&models.Notification{},
		&models.PushSubscription{},
	); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	natsConn, err := database.ConnectNATS(cfg.NATSURL, cfg.AppName)
	if err != nil {
		log.Fatalf("failed to connect to nats: %v", err)
	}
	if natsConn != nil {
		defer natsConn.Close()
	}

	attachmentStore, err := storage.NewCloudinary(storage.Config{
		CloudName: cfg.CloudinaryCloudName,
		APIKey:    cfg.CloudinaryAPIKey,
		APISecret: cfg.CloudinaryAPISecret,
		Folder:    cfg.CloudinaryUploadFolder,
	}, logger)
	if err != nil {
		log.Fatalf("failed to create attachment store: %v", err)
	}

	users, err := directory.NewHTTPGateway(cfg.DirectoryBaseURL, cfg.DirectoryToken, cfg.DirectoryTimeout, logger)
	if err != nil {
		log.Fatalf("failed to create directory gateway: %v", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	channelRepo := repository.NewChannelRepository(db)
	roomRepo := repository.NewRoomRepository(db)
	postRepo := repository.NewPostRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	pushRepo := repository.NewPushSubscriptionRepository(db)

	pushService := service.NewPushService(pushRepo, service.PushConfig{
		VAPIDPublicKey:  cfg.VAPIDPublicKey,
		VAPIDPrivateKey: cfg.VAPIDPrivateKey,
		Subscriber:      cfg.VAPIDSubscriber,
		TTL:             cfg.PushTTL,
		Timeout:         cfg.PushTimeout,
	}, validate, logger)
	notificationService := service.NewNotificationService(notificationRepo, pushService, redisClient, cfg.EventChannelBase, natsConn, cfg.NotificationDedupWindow, validate, logger)
	roomService := service.NewRoomService(roomRepo, channelRepo, users, validate, logger)
	postService := service.NewPostService(postRepo, roomRepo, channelRepo, users, notificationService, attachmentStore, validate, logger)

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	notificationService.Start(runCtx)

	roomHandler := handler.NewRoomHandler(roomService, logger)
	postHandler := handler.NewPostHandler(postService, logger)
	notificationHandler := handler.NewNotificationHandler(notificationService, logger, cfg.StreamKeepAlive)
	pushHandler := handler.NewPushHandler(pushService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		RoomHandler:         roomHandler,
		PostHandler:         postHandler,
		NotificationHandler: notificationHandler,
		PushHandler:         pushHandler,
		JWTMiddleware:       middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
