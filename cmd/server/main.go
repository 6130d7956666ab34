package main

import (
	"context"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Yetunde495/mentorr-me/internal/config"
	"github.com/Yetunde495/mentorr-me/internal/database"
	"github.com/Yetunde495/mentorr-me/internal/realtime"
	"github.com/Yetunde495/mentorr-me/internal/routes"
	"github.com/Yetunde495/mentorr-me/internal/services"
)

const rebroadcastQueueName = "chat"

func main() {
	// 1. Load Config
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := buildLogger(cfg.AppEnv)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	// 2. Connect to Database
	if cfg.DBUrl == "" {
		logger.Fatal("DB_URL is required")
	}
	if err := database.ConnectDB(cfg.DBUrl); err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.CloseDB()

	// 3. Realtime fan-out. With Redis every instance sees every channel
	// event; without it the relay is in-process and the server is
	// single-instance only.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		relay       realtime.Relay
		rebroadcast *services.RebroadcastQueue
	)
	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal("Failed to parse REDIS_URL", zap.Error(err))
		}
		redisClient := redis.NewClient(redisOpts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Fatal("Failed to connect to redis", zap.Error(err))
		}
		relay = realtime.NewRedisRelay(redisClient, logger)

		if cfg.RebroadcastQueue {
			asynqOpt := asynq.RedisClientOpt{
				Addr:     redisOpts.Addr,
				Password: redisOpts.Password,
				DB:       redisOpts.DB,
			}
			client := asynq.NewClient(asynqOpt)
			defer client.Close()
			rebroadcast = services.NewRebroadcastQueue(client, rebroadcastQueueName)

			worker := asynq.NewServer(asynqOpt, asynq.Config{
				Concurrency: 5,
				Queues:      map[string]int{rebroadcastQueueName: 1},
			})
			mux := asynq.NewServeMux()
			mux.HandleFunc(services.TaskRebroadcast, services.NewRebroadcastHandler(relay, logger))
			go func() {
				if err := worker.Run(mux); err != nil {
					logger.Error("Rebroadcast worker stopped", zap.Error(err))
				}
			}()
			defer worker.Shutdown()
		}
	} else {
		logger.Warn("REDIS_URL not set, running with in-process relay")
		relay = realtime.NewLocalRelay()
	}

	hub := realtime.NewHub(relay, logger)
	switch r := relay.(type) {
	case *realtime.RedisRelay:
		go r.Listen(ctx, hub.Deliver)
		defer r.Close()
	case *realtime.LocalRelay:
		r.Attach(hub.Deliver)
	}

	// 4. Setup Fiber
	app := fiber.New()

	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.AllowedOrigins,
	}))
	app.Use(fiberlogger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
		})
	})
	routes.RegisterRoutes(app, cfg, database.DB, hub, relay, rebroadcast, logger)

	// 5. Start Server
	logger.Info("Server starting", zap.String("port", cfg.Port))
	if err := app.Listen(":" + cfg.Port); err != nil {
		logger.Fatal("Server failed to start", zap.Error(err))
	}
}

func buildLogger(env string) (*zap.Logger, error) {
	if env == "development" || env == "test" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
