// Package chatwire defines the wire protocol shared by the chat server and
// client sessions: event names, payload shapes, the conversation id
// derivation, and the message status ordering. Both sides must agree on these
// so a conversation channel computed on a mentee's device matches the one the
// server persists and broadcasts on.
package chatwire

import (
	"sort"
	"strings"
	"time"
)

// Event names carried in the envelope. Mirrors the channel vocabulary the web
// clients bind to.
const (
	EventNewMessage            = "new-message"
	EventMessageReceipt        = "message-receipt"
	EventTyping                = "typing"
	EventMemberAdded           = "member-added"
	EventMemberRemoved         = "member-removed"
	EventSubscriptionSucceeded = "subscription-succeeded"
)

// Roles of the two fixed conversation participants.
const (
	RoleMentor = "mentor"
	RoleMentee = "mentee"
)

// Message content types.
const (
	TypeText  = "text"
	TypeImage = "image"
	TypeAudio = "audio"
	TypeFile  = "file"
)

// Message delivery statuses. "sending" and "failed" exist only on the sending
// device; the server never persists them.
const (
	StatusSending   = "sending"
	StatusSent      = "sent"
	StatusDelivered = "delivered"
	StatusRead      = "read"
	StatusFailed    = "failed"
)

// ChannelPrefix prefixes every conversation channel name.
const ChannelPrefix = "chat-"

// conversationIDSeparator joins the two sorted participant ids.
const conversationIDSeparator = "_"

// ConversationID derives the deterministic conversation identifier for an
// unordered pair of participant ids. Sorting guarantees both participants
// compute the same id regardless of who sends first.
func ConversationID(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return strings.Join(ids, conversationIDSeparator)
}

// ChannelName returns the realtime channel for a conversation.
func ChannelName(conversationID string) string {
	return ChannelPrefix + conversationID
}

// ConversationIDFromChannel strips the channel prefix. Returns "" if the name
// is not a conversation channel.
func ConversationIDFromChannel(channel string) string {
	if !strings.HasPrefix(channel, ChannelPrefix) {
		return ""
	}
	return strings.TrimPrefix(channel, ChannelPrefix)
}

// StatusRank orders statuses for the monotonicity rule: a displayed status
// never moves backward. "failed" is a terminal branch outside the ordering
// and ranks below everything so it is never applied by a receipt.
func StatusRank(status string) int {
	switch status {
	case StatusSending:
		return 1
	case StatusSent:
		return 2
	case StatusDelivered:
		return 3
	case StatusRead:
		return 4
	default:
		return 0
	}
}

// ValidContentType reports whether t is one of the supported message types.
func ValidContentType(t string) bool {
	switch t {
	case TypeText, TypeImage, TypeAudio, TypeFile:
		return true
	}
	return false
}

// Message is the broadcast shape of a persisted message. TempID carries the
// sender's optimistic correlation id so the originating device can replace
// its pending entry in place.
type Message struct {
	ID             string    `json:"id"`
	TempID         string    `json:"tempId,omitempty"`
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	SenderRole     string    `json:"senderRole"`
	Type           string    `json:"type"`
	Content        string    `json:"content,omitempty"`
	FileURL        string    `json:"fileUrl,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	Status         string    `json:"status,omitempty"`
}

// Receipt confirms a message was delivered to or read by a recipient.
type Receipt struct {
	MessageID string    `json:"messageId"`
	Type      string    `json:"type"`
	UserID    string    `json:"userId"`
	At        time.Time `json:"at"`
}

// Typing is the ephemeral "user X is typing" signal. It is never persisted;
// receivers expire it client-side when no renewal arrives.
type Typing struct {
	UserID string    `json:"userId"`
	Name   string    `json:"name"`
	At     time.Time `json:"at"`
}

// Member describes a presence channel participant.
type Member struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Role   string `json:"role"`
}

// MemberSnapshot is sent once on successful channel subscription.
type MemberSnapshot struct {
	Members []Member `json:"members"`
}

// ValidReceiptType reports whether t is a known receipt kind.
func ValidReceiptType(t string) bool {
	return t == StatusDelivered || t == StatusRead
}
