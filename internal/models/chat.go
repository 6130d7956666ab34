package models

import (
	"time"

	"github.com/Yetunde495/mentorr-me/pkg/chatwire"
)

// ParticipantInfo is the profile snapshot captured when a conversation is
// created. Historical conversations keep the snapshot even if the profile
// changes later.
type ParticipantInfo struct {
	UserID     string `json:"user_id"`
	Name       string `json:"name"`
	Profession string `json:"profession"`
	SkillFocus string `json:"skill_focus"`
	Bio        string `json:"bio"`
	PhotoURL   string `json:"photo_url"`
}

// Conversation is the single persistent 1:1 thread between a paired mentor
// and mentee. Its id is derived from the sorted participant ids, so at most
// one row can exist per pair.
type Conversation struct {
	ID               string          `json:"id"`
	MentorID         string          `json:"mentor_id"`
	MenteeID         string          `json:"mentee_id"`
	MentorInfo       ParticipantInfo `json:"mentor_info"`
	MenteeInfo       ParticipantInfo `json:"mentee_info"`
	CreatedAt        time.Time       `json:"created_at"`
	LastMessageAt    *time.Time      `json:"last_message_at"`
	MentorLastReadAt *time.Time      `json:"mentor_last_read_at"`
	MenteeLastReadAt *time.Time      `json:"mentee_last_read_at"`
}

// PartnerOf returns the other participant's chat id, or "" when userID is not
// a participant.
func (c *Conversation) PartnerOf(userID string) string {
	switch userID {
	case c.MentorID:
		return c.MenteeID
	case c.MenteeID:
		return c.MentorID
	}
	return ""
}

// Message is the durable record of a chat message. id, sender, content and
// created_at are immutable after insert; only Status mutates, and only
// forward.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	SenderRole     string    `json:"sender_role"`
	Type           string    `json:"type"`
	Content        string    `json:"content"`
	FileURL        *string   `json:"file_url"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
}

// Wire converts the persisted message into its broadcast shape, tagging it
// with the sender's optimistic correlation id.
func (m *Message) Wire(tempID string) chatwire.Message {
	fileURL := ""
	if m.FileURL != nil {
		fileURL = *m.FileURL
	}
	return chatwire.Message{
		ID:             m.ID,
		TempID:         tempID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		SenderRole:     m.SenderRole,
		Type:           m.Type,
		Content:        m.Content,
		FileURL:        fileURL,
		CreatedAt:      m.CreatedAt,
		Status:         m.Status,
	}
}

type ConversationSummary struct {
	Conversation
	LastMessage *Message `json:"last_message,omitempty"`
	UnreadCount int      `json:"unread_count"`
}
