package routes

import (
	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/Yetunde495/mentorr-me/internal/config"
	"github.com/Yetunde495/mentorr-me/internal/handlers"
	"github.com/Yetunde495/mentorr-me/internal/middleware"
	"github.com/Yetunde495/mentorr-me/internal/realtime"
	"github.com/Yetunde495/mentorr-me/internal/repository"
	"github.com/Yetunde495/mentorr-me/internal/services"
)

func RegisterRoutes(
	app *fiber.App,
	cfg *config.Config,
	db *pgxpool.Pool,
	hub *realtime.Hub,
	broadcaster realtime.Broadcaster,
	rebroadcast *services.RebroadcastQueue,
	logger *zap.Logger,
) {
	userRepo := repository.NewUserRepository(db)
	profileRepo := repository.NewProfileRepository(db)
	conversationRepo := repository.NewConversationRepository(db)
	messageRepo := repository.NewMessageRepository(db)

	var storageService services.StorageService
	if cfg.SupabaseURL != "" && cfg.SupabaseBucket != "" && cfg.SupabaseServiceKey != "" {
		storageService = services.NewSupabaseStorageService(cfg.SupabaseURL, cfg.SupabaseBucket, cfg.SupabaseServiceKey)
	}

	var chatService *services.ChatService
	if rebroadcast != nil {
		chatService = services.NewChatService(conversationRepo, messageRepo, userRepo, profileRepo, broadcaster, rebroadcast, logger)
	} else {
		chatService = services.NewChatService(conversationRepo, messageRepo, userRepo, profileRepo, broadcaster, nil, logger)
	}

	authHandler := handlers.NewAuthHandler(db, userRepo, profileRepo, cfg.JWTSecret)
	profileHandler := handlers.NewProfileHandler(profileRepo, storageService)
	adminHandler := handlers.NewAdminHandler(userRepo, profileRepo)
	chatHandler := handlers.NewChatHandler(chatService, hub, storageService, cfg.JWTSecret)

	api := app.Group("/api")

	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Get("/me", middleware.AuthRequired(cfg.JWTSecret), authHandler.Me)

	authProtected := api.Group("/v1", middleware.AuthRequired(cfg.JWTSecret))

	profile := authProtected.Group("/profile")
	profile.Get("", profileHandler.GetProfile)
	profile.Put("", profileHandler.UpdateProfile)
	profile.Post("/photo", profileHandler.UploadPhoto)

	authProtected.Get("/mentor", profileHandler.GetMentor)

	chat := authProtected.Group("/chat")
	chat.Get("/conversations", chatHandler.ListConversations)
	chat.Get("/conversations/:id", chatHandler.GetConversation)
	chat.Get("/conversations/:id/messages", chatHandler.GetMessages)
	chat.Post("/conversations/:id/typing", chatHandler.NotifyTyping)
	chat.Post("/messages", chatHandler.SendMessage)
	chat.Post("/messages/:id/receipt", chatHandler.MarkReceipt)
	chat.Post("/attachments", chatHandler.UploadAttachment)

	admin := authProtected.Group("/admin")
	admin.Get("/users", adminHandler.ListUsers)
	admin.Post("/assign-mentor", adminHandler.AssignMentor)

	api.Use("/v1/ws/chat/:id", chatHandler.WebSocketAuth)
	api.Get("/v1/ws/chat/:id", websocket.New(chatHandler.HandleWebSocket))
}
