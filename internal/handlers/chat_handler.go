package handlers

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/Yetunde495/mentorr-me/internal/models"
	"github.com/Yetunde495/mentorr-me/internal/realtime"
	"github.com/Yetunde495/mentorr-me/internal/services"
	"github.com/Yetunde495/mentorr-me/pkg/chatwire"
	"github.com/Yetunde495/mentorr-me/pkg/utils"
)

const maxAttachmentSizeBytes = 10 * 1024 * 1024

type chatApplicationService interface {
	Submit(ctx context.Context, actorID int64, role string, input services.SubmitInput) (chatwire.Message, error)
	MarkReceipt(ctx context.Context, actorID, messageID, receiptType string) (*models.Message, error)
	NotifyTyping(ctx context.Context, conversationID, senderID string) error
	GetConversation(ctx context.Context, actorID, conversationID string) (*models.Conversation, error)
	ListConversations(ctx context.Context, actorID string) ([]models.ConversationSummary, error)
	ListMessages(ctx context.Context, actorID, conversationID string, page, limit int) ([]models.Message, int, error)
}

type ChatHandler struct {
	service        chatApplicationService
	hub            *realtime.Hub
	storageService services.StorageService
	jwtSecret      string
}

func NewChatHandler(
	service chatApplicationService,
	hub *realtime.Hub,
	storageService services.StorageService,
	jwtSecret string,
) *ChatHandler {
	return &ChatHandler{
		service:        service,
		hub:            hub,
		storageService: storageService,
		jwtSecret:      jwtSecret,
	}
}

type receiptRequest struct {
	Type string `json:"type"`
}

func (h *ChatHandler) SendMessage(c *fiber.Ctx) error {
	userID, role, err := chatActor(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var req services.SubmitInput
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	message, err := h.service.Submit(c.Context(), userID, role, req)
	if err != nil {
		return mapChatError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": message})
}

func (h *ChatHandler) MarkReceipt(c *fiber.Ctx) error {
	userID, _, err := chatActor(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var req receiptRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	message, err := h.service.MarkReceipt(
		c.Context(),
		strconv.FormatInt(userID, 10),
		c.Params("id"),
		req.Type,
	)
	if err != nil {
		return mapChatError(c, err)
	}

	return c.JSON(fiber.Map{"message": message})
}

func (h *ChatHandler) NotifyTyping(c *fiber.Ctx) error {
	userID, _, err := chatActor(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	if err := h.service.NotifyTyping(c.Context(), c.Params("id"), strconv.FormatInt(userID, 10)); err != nil {
		return mapChatError(c, err)
	}

	return c.SendStatus(fiber.StatusAccepted)
}

func (h *ChatHandler) ListConversations(c *fiber.Ctx) error {
	userID, _, err := chatActor(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	conversations, err := h.service.ListConversations(c.Context(), strconv.FormatInt(userID, 10))
	if err != nil {
		return mapChatError(c, err)
	}

	return c.JSON(fiber.Map{"conversations": conversations})
}

func (h *ChatHandler) GetConversation(c *fiber.Ctx) error {
	userID, _, err := chatActor(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	conversation, err := h.service.GetConversation(c.Context(), strconv.FormatInt(userID, 10), c.Params("id"))
	if err != nil {
		return mapChatError(c, err)
	}

	return c.JSON(fiber.Map{"conversation": conversation})
}

func (h *ChatHandler) GetMessages(c *fiber.Ctx) error {
	userID, _, err := chatActor(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	page := parsePositiveInt(c.Query("page"), 1)
	limit := parsePositiveInt(c.Query("limit"), defaultPageLimit)
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	messages, total, err := h.service.ListMessages(
		c.Context(),
		strconv.FormatInt(userID, 10),
		c.Params("id"),
		page,
		limit,
	)
	if err != nil {
		return mapChatError(c, err)
	}

	return c.JSON(fiber.Map{
		"messages":   messages,
		"pagination": buildPaginationMeta(page, limit, total),
	})
}

// UploadAttachment stores a media file and returns its URL; the client then
// submits a message of the matching type carrying that URL.
func (h *ChatHandler) UploadAttachment(c *fiber.Ctx) error {
	userID, _, err := chatActor(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}
	if h.storageService == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Storage service is not configured"})
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "file is required"})
	}
	if fileHeader.Size <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "file is empty"})
	}
	if fileHeader.Size > maxAttachmentSizeBytes {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "file exceeds 10MB limit"})
	}

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	contentType := attachmentContentType(ext)
	if contentType == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unsupported file type"})
	}

	file, err := fileHeader.Open()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to open file"})
	}
	defer file.Close()

	filename := fmt.Sprintf("%d-%d%s", userID, time.Now().UnixNano(), ext)
	fileURL, err := h.storageService.UploadFile(c.Context(), file, filename, "chat/attachments")
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to upload file"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"file_url": fileURL,
		"type":     contentType,
	})
}

func (h *ChatHandler) WebSocketAuth(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return c.Status(fiber.StatusUpgradeRequired).JSON(fiber.Map{"error": "WebSocket upgrade required"})
	}

	claims, err := h.parseWSClaims(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid or expired token"})
	}

	c.Locals("user_id", claims.UserID)
	c.Locals("role", claims.Role)
	return c.Next()
}

// HandleWebSocket binds one connection to one conversation channel. The
// participant check runs before registration, so a non-participant never
// enters the presence set.
func (h *ChatHandler) HandleWebSocket(conn *websocket.Conn) {
	userID, _ := conn.Locals("user_id").(string)
	role, _ := conn.Locals("role").(string)
	conversationID := conn.Params("id")

	conversation, err := h.service.GetConversation(context.Background(), userID, conversationID)
	if err != nil {
		_ = conn.WriteMessage(websocket.CloseMessage, nil)
		_ = conn.Close()
		return
	}

	info := conversation.MenteeInfo
	if userID == conversation.MentorID {
		info = conversation.MentorInfo
	}
	member := chatwire.Member{UserID: userID, Name: info.Name, Role: role}

	client := realtime.NewClient(h.hub, conn, chatwire.ChannelName(conversation.ID), member)
	h.hub.Register(context.Background(), client)
	go client.WritePump()
	client.ReadPump(h.service)
}

func (h *ChatHandler) parseWSClaims(c *fiber.Ctx) (*utils.Claims, error) {
	tokenString := strings.TrimSpace(c.Query("token"))
	if tokenString == "" {
		authHeader := strings.TrimSpace(c.Get("Authorization"))
		if authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) == 2 && parts[0] == "Bearer" {
				tokenString = parts[1]
			}
		}
	}

	if tokenString == "" {
		return nil, errors.New("missing token")
	}

	return utils.ValidateToken(tokenString, h.jwtSecret)
}

func attachmentContentType(ext string) string {
	switch ext {
	case ".jpg", ".jpeg", ".png", ".webp", ".gif":
		return chatwire.TypeImage
	case ".mp3", ".m4a", ".ogg", ".wav", ".webm":
		return chatwire.TypeAudio
	case ".pdf", ".doc", ".docx", ".txt", ".zip":
		return chatwire.TypeFile
	}
	return ""
}

func chatActor(c *fiber.Ctx) (int64, string, error) {
	userIDStr, ok := c.Locals("user_id").(string)
	if !ok {
		return 0, "", strconv.ErrSyntax
	}
	role, ok := c.Locals("role").(string)
	if !ok {
		return 0, "", strconv.ErrSyntax
	}
	userID, err := strconv.ParseInt(userIDStr, 10, 64)
	if err != nil {
		return 0, "", err
	}
	return userID, role, nil
}

func mapChatError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	case errors.Is(err, services.ErrValidation):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
	case errors.Is(err, services.ErrUnauthorized):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	case errors.Is(err, services.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Not found"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process chat request"})
	}
}
