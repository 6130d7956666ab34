package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/Yetunde495/mentorr-me/internal/models"
	"github.com/Yetunde495/mentorr-me/internal/realtime"
	"github.com/Yetunde495/mentorr-me/internal/repository"
	"github.com/Yetunde495/mentorr-me/pkg/chatwire"
)

type conversationStore interface {
	CreateIfAbsent(ctx context.Context, conversation *models.Conversation) (bool, error)
	GetByID(ctx context.Context, id string) (*models.Conversation, error)
	GetByIDForParticipant(ctx context.Context, id, participantID string) (*models.Conversation, error)
	ListForParticipant(ctx context.Context, participantID string) ([]models.ConversationSummary, error)
	SetLastRead(ctx context.Context, conversationID, readerRole string, at time.Time) error
}

type messageStore interface {
	Append(ctx context.Context, message *models.Message) error
	GetByID(ctx context.Context, id string) (*models.Message, error)
	ListByConversation(ctx context.Context, conversationID string, limit, offset int) ([]models.Message, int, error)
	AdvanceStatus(ctx context.Context, messageID, status string) (*models.Message, bool, error)
}

type userReader interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

type profileReader interface {
	GetByUserID(ctx context.Context, userID int64) (*models.Profile, error)
}

// rebroadcastEnqueuer defers a failed fan-out for a later retry. Optional:
// without one, a failed broadcast is only logged.
type rebroadcastEnqueuer interface {
	Enqueue(ctx context.Context, env chatwire.Envelope) error
}

// ChatService runs the delivery pipeline: validate, derive the conversation
// id, persist, then broadcast. Persistence is the commit point; a failed
// broadcast never rolls a message back.
type ChatService struct {
	conversations conversationStore
	messages      messageStore
	users         userReader
	profiles      profileReader
	broadcaster   realtime.Broadcaster
	rebroadcast   rebroadcastEnqueuer
	logger        *zap.Logger
}

func NewChatService(
	conversations conversationStore,
	messages messageStore,
	users userReader,
	profiles profileReader,
	broadcaster realtime.Broadcaster,
	rebroadcast rebroadcastEnqueuer,
	logger *zap.Logger,
) *ChatService {
	return &ChatService{
		conversations: conversations,
		messages:      messages,
		users:         users,
		profiles:      profiles,
		broadcaster:   broadcaster,
		rebroadcast:   rebroadcast,
		logger:        logger,
	}
}

// SubmitInput is one outbound message from a sending device. TempID is the
// device's optimistic correlation id; it rides the broadcast but is never
// stored.
type SubmitInput struct {
	TempID    string `json:"tempId"`
	PartnerID string `json:"partnerId"`
	Type      string `json:"type"`
	Content   string `json:"content"`
	FileURL   string `json:"fileUrl"`
}

// Submit validates and persists one message, creating the conversation on
// first contact, then broadcasts new-message to the conversation channel.
func (s *ChatService) Submit(
	ctx context.Context,
	actorID int64,
	role string,
	input SubmitInput,
) (chatwire.Message, error) {
	if role != chatwire.RoleMentor && role != chatwire.RoleMentee {
		return chatwire.Message{}, ErrForbidden
	}
	if !chatwire.ValidContentType(input.Type) {
		return chatwire.Message{}, ErrValidation
	}

	content := strings.TrimSpace(input.Content)
	switch input.Type {
	case chatwire.TypeText:
		if content == "" {
			return chatwire.Message{}, ErrValidation
		}
	default:
		if input.FileURL == "" {
			return chatwire.Message{}, ErrValidation
		}
	}

	partnerID, err := strconv.ParseInt(input.PartnerID, 10, 64)
	if err != nil || partnerID <= 0 || partnerID == actorID {
		return chatwire.Message{}, ErrValidation
	}

	partner, err := s.users.GetByID(ctx, partnerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return chatwire.Message{}, ErrNotFound
		}
		return chatwire.Message{}, fmt.Errorf("%w: load partner: %v", ErrPersistence, err)
	}
	if !oppositeRoles(role, partner.Role) {
		return chatwire.Message{}, ErrValidation
	}

	actorChatID := strconv.FormatInt(actorID, 10)
	conversationID := chatwire.ConversationID(actorChatID, partner.ChatID())

	conversation, err := s.conversations.GetByID(ctx, conversationID)
	switch {
	case err == nil:
	case errors.Is(err, pgx.ErrNoRows):
		conversation, err = s.openConversation(ctx, conversationID, actorID, role, partner)
		if err != nil {
			return chatwire.Message{}, err
		}
	default:
		return chatwire.Message{}, fmt.Errorf("%w: load conversation: %v", ErrPersistence, err)
	}

	message := &models.Message{
		ID:             uuid.NewString(),
		ConversationID: conversation.ID,
		SenderID:       actorChatID,
		SenderRole:     role,
		Type:           input.Type,
		Content:        content,
		Status:         chatwire.StatusSent,
	}
	if input.FileURL != "" {
		message.FileURL = &input.FileURL
	}

	if err := s.messages.Append(ctx, message); err != nil {
		return chatwire.Message{}, fmt.Errorf("%w: append message: %v", ErrPersistence, err)
	}

	wire := message.Wire(input.TempID)
	s.broadcast(ctx, conversation.ID, chatwire.EventNewMessage, wire, true)

	return wire, nil
}

// openConversation creates the conversation row on first contact, snapshotting
// both participants' profiles. A concurrent first send is resolved by the
// store: the first insert wins and both senders proceed against it.
func (s *ChatService) openConversation(
	ctx context.Context,
	conversationID string,
	actorID int64,
	role string,
	partner *models.User,
) (*models.Conversation, error) {
	mentorUserID, menteeUserID := actorID, partner.ID
	if role == chatwire.RoleMentee {
		mentorUserID, menteeUserID = partner.ID, actorID
	}

	menteeProfile, err := s.loadProfile(ctx, menteeUserID)
	if err != nil {
		return nil, err
	}
	if menteeProfile.MentorID == nil || *menteeProfile.MentorID != mentorUserID {
		return nil, ErrForbidden
	}
	mentorProfile, err := s.loadProfile(ctx, mentorUserID)
	if err != nil {
		return nil, err
	}

	conversation := &models.Conversation{
		ID:         conversationID,
		MentorID:   strconv.FormatInt(mentorUserID, 10),
		MenteeID:   strconv.FormatInt(menteeUserID, 10),
		MentorInfo: snapshot(mentorUserID, mentorProfile),
		MenteeInfo: snapshot(menteeUserID, menteeProfile),
	}

	if _, err := s.conversations.CreateIfAbsent(ctx, conversation); err != nil {
		return nil, fmt.Errorf("%w: create conversation: %v", ErrPersistence, err)
	}
	return conversation, nil
}

func (s *ChatService) loadProfile(ctx context.Context, userID int64) (*models.Profile, error) {
	profile, err := s.profiles.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			return &models.Profile{UserID: userID}, nil
		}
		return nil, fmt.Errorf("%w: load profile: %v", ErrPersistence, err)
	}
	return profile, nil
}

// MarkReceipt advances a message's delivery status on behalf of a recipient.
// Receipts are monotonic: an earlier stage arriving after a later one is a
// no-op, not an error. The sender cannot receipt their own message.
func (s *ChatService) MarkReceipt(
	ctx context.Context,
	actorID string,
	messageID string,
	receiptType string,
) (*models.Message, error) {
	if !chatwire.ValidReceiptType(receiptType) {
		return nil, ErrValidation
	}
	if messageID == "" {
		return nil, ErrValidation
	}

	message, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: load message: %v", ErrPersistence, err)
	}
	if message.SenderID == actorID {
		return nil, ErrForbidden
	}

	conversation, err := s.conversations.GetByIDForParticipant(ctx, message.ConversationID, actorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrForbidden
		}
		return nil, fmt.Errorf("%w: load conversation: %v", ErrPersistence, err)
	}

	updated, applied, err := s.messages.AdvanceStatus(ctx, messageID, receiptType)
	if err != nil {
		return nil, fmt.Errorf("%w: advance status: %v", ErrPersistence, err)
	}

	now := time.Now().UTC()
	if applied {
		receipt := chatwire.Receipt{
			MessageID: messageID,
			Type:      receiptType,
			UserID:    actorID,
			At:        now,
		}
		s.broadcast(ctx, conversation.ID, chatwire.EventMessageReceipt, receipt, true)
	}

	if receiptType == chatwire.StatusRead {
		readerRole := chatwire.RoleMentee
		if actorID == conversation.MentorID {
			readerRole = chatwire.RoleMentor
		}
		if err := s.conversations.SetLastRead(ctx, conversation.ID, readerRole, now); err != nil {
			s.logger.Warn("chat: advancing last-read marker failed",
				zap.String("conversation_id", conversation.ID),
				zap.Error(err),
			)
		}
	}

	return updated, nil
}

// NotifyTyping rebroadcasts a typing signal to the conversation channel. The
// signal is ephemeral: it is never persisted and a lost one is not retried,
// the next keystroke renews it.
func (s *ChatService) NotifyTyping(ctx context.Context, conversationID, senderID string) error {
	conversation, err := s.conversations.GetByIDForParticipant(ctx, conversationID, senderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrForbidden
		}
		return fmt.Errorf("%w: load conversation: %v", ErrPersistence, err)
	}

	name := conversation.MenteeInfo.Name
	if senderID == conversation.MentorID {
		name = conversation.MentorInfo.Name
	}

	typing := chatwire.Typing{
		UserID: senderID,
		Name:   name,
		At:     time.Now().UTC(),
	}
	s.broadcast(ctx, conversation.ID, chatwire.EventTyping, typing, false)
	return nil
}

// GetConversation returns a conversation the actor participates in.
func (s *ChatService) GetConversation(
	ctx context.Context,
	actorID string,
	conversationID string,
) (*models.Conversation, error) {
	conversation, err := s.conversations.GetByIDForParticipant(ctx, conversationID, actorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: load conversation: %v", ErrPersistence, err)
	}
	return conversation, nil
}

// ListConversations returns the actor's conversation summaries, most recent
// activity first.
func (s *ChatService) ListConversations(
	ctx context.Context,
	actorID string,
) ([]models.ConversationSummary, error) {
	summaries, err := s.conversations.ListForParticipant(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("%w: list conversations: %v", ErrPersistence, err)
	}
	return summaries, nil
}

// ListMessages returns a page of a conversation's history in canonical
// server-timestamp order. Reading history mutates nothing; receipts are the
// only path that advances statuses.
func (s *ChatService) ListMessages(
	ctx context.Context,
	actorID string,
	conversationID string,
	page int,
	limit int,
) ([]models.Message, int, error) {
	if page <= 0 || limit <= 0 {
		return nil, 0, ErrValidation
	}

	if _, err := s.conversations.GetByIDForParticipant(ctx, conversationID, actorID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, 0, ErrNotFound
		}
		return nil, 0, fmt.Errorf("%w: load conversation: %v", ErrPersistence, err)
	}

	messages, total, err := s.messages.ListByConversation(ctx, conversationID, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: list messages: %v", ErrPersistence, err)
	}
	return messages, total, nil
}

// broadcast publishes an envelope and absorbs fan-out failures. Durable
// events are handed to the rebroadcast queue on failure; ephemeral ones are
// just logged.
func (s *ChatService) broadcast(
	ctx context.Context,
	conversationID string,
	event string,
	payload any,
	durable bool,
) {
	env, err := chatwire.NewEnvelope(chatwire.ChannelName(conversationID), event, payload)
	if err != nil {
		s.logger.Error("chat: encode envelope",
			zap.String("event", event),
			zap.Error(err),
		)
		return
	}

	err = s.broadcaster.Publish(ctx, env)
	if err == nil {
		return
	}
	s.logger.Warn("chat: broadcast failed",
		zap.String("conversation_id", conversationID),
		zap.String("event", event),
		zap.Error(err),
	)

	if !durable || s.rebroadcast == nil {
		return
	}
	if err := s.rebroadcast.Enqueue(ctx, env); err != nil {
		s.logger.Error("chat: rebroadcast enqueue failed",
			zap.String("conversation_id", conversationID),
			zap.String("event", event),
			zap.Error(err),
		)
	}
}

// snapshot freezes a profile's presentation fields for the conversation
// document. Missing optionals become empty strings, not nulls.
func snapshot(userID int64, profile *models.Profile) models.ParticipantInfo {
	return models.ParticipantInfo{
		UserID:     strconv.FormatInt(userID, 10),
		Name:       deref(profile.FullName),
		Profession: deref(profile.Profession),
		SkillFocus: deref(profile.SkillFocus),
		Bio:        deref(profile.Bio),
		PhotoURL:   deref(profile.PhotoURL),
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func oppositeRoles(a, b string) bool {
	return (a == chatwire.RoleMentor && b == chatwire.RoleMentee) ||
		(a == chatwire.RoleMentee && b == chatwire.RoleMentor)
}
