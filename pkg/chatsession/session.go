// Package chatsession is the client-side engine for one conversation: it
// holds the ordered message list, reconciles optimistic sends against server
// broadcasts, applies receipts, and tracks the partner's presence and typing
// state. It is transport-agnostic; the embedding client feeds it the events
// it receives and asks it what to render.
package chatsession

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Yetunde495/mentorr-me/pkg/chatwire"
)

const (
	defaultTypingThrottle = 700 * time.Millisecond
	defaultTypingExpiry   = 4 * time.Second
)

// Config tunes the typing windows. Zero values fall back to the defaults the
// web client ships with.
type Config struct {
	// TypingThrottle is the minimum gap between outbound typing signals.
	TypingThrottle time.Duration
	// TypingExpiry is how long a peer's typing indicator survives without a
	// renewing signal.
	TypingExpiry time.Duration
	// Clock overrides time.Now, for tests.
	Clock func() time.Time
	// OnReceipt, when set, is called with the delivered receipt the session
	// wants emitted after a partner message arrives. Read receipts are
	// UI-driven and go through MarkRead instead.
	OnReceipt func(chatwire.Receipt)
}

func (c Config) withDefaults() Config {
	if c.TypingThrottle <= 0 {
		c.TypingThrottle = defaultTypingThrottle
	}
	if c.TypingExpiry <= 0 {
		c.TypingExpiry = defaultTypingExpiry
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
	return c
}

// Session is the state machine for one open conversation. All methods are
// safe for concurrent use; the receive loop and the UI typically run on
// different goroutines.
type Session struct {
	mu  sync.Mutex
	cfg Config

	selfID         string
	partnerID      string
	conversationID string

	entries  []*entry
	byID     map[string]*entry
	byTempID map[string]*entry

	members map[string]chatwire.Member
	typing  map[string]typingState

	lastTypingSent time.Time
	closed         bool
}

type entry struct {
	message chatwire.Message
}

type typingState struct {
	name      string
	expiresAt time.Time
}

func New(selfID, partnerID string, cfg Config) *Session {
	return &Session{
		cfg:            cfg.withDefaults(),
		selfID:         selfID,
		partnerID:      partnerID,
		conversationID: chatwire.ConversationID(selfID, partnerID),
		byID:           make(map[string]*entry),
		byTempID:       make(map[string]*entry),
		members:        make(map[string]chatwire.Member),
		typing:         make(map[string]typingState),
	}
}

func (s *Session) ConversationID() string {
	return s.conversationID
}

// Seed loads a history page fetched from the server. Messages already present
// are skipped, so seeding after live traffic began is safe.
func (s *Session) Seed(messages []chatwire.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, message := range messages {
		if message.ID == "" {
			continue
		}
		if _, known := s.byID[message.ID]; known {
			continue
		}
		s.insertCanonical(message)
	}
}

// Send appends an optimistic pending message and returns it. The returned
// TempID is the correlation key the caller must pass to the server; the
// message renders immediately with a "sending" status and the local clock as
// a provisional timestamp.
func (s *Session) Send(contentType, content, fileURL string) chatwire.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	message := chatwire.Message{
		TempID:         "temp-" + uuid.NewString(),
		ConversationID: s.conversationID,
		SenderID:       s.selfID,
		Type:           contentType,
		Content:        content,
		FileURL:        fileURL,
		CreatedAt:      s.cfg.Clock(),
		Status:         chatwire.StatusSending,
	}

	e := &entry{message: message}
	s.entries = append(s.entries, e)
	s.byTempID[message.TempID] = e
	return message
}

// ConfirmSend replaces the pending entry with the canonical message from the
// server response. The entry keeps its list position; the canonical
// server timestamp replaces the provisional one.
func (s *Session) ConfirmSend(tempID string, canonical chatwire.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reconcile(tempID, canonical)
}

// FailSend moves a pending message to the terminal "failed" state. The entry
// stays in the list so the user can see it and retry.
func (s *Session) FailSend(tempID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.byTempID[tempID]
	if !ok || e.message.ID != "" {
		return false
	}
	e.message.Status = chatwire.StatusFailed
	return true
}

// Retry re-queues a failed message under a fresh temp id and a fresh local
// timestamp, moving it to the end of the list. It returns the new pending
// message for the caller to resend.
func (s *Session) Retry(tempID string) (chatwire.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.byTempID[tempID]
	if !ok || e.message.Status != chatwire.StatusFailed {
		return chatwire.Message{}, false
	}

	delete(s.byTempID, tempID)
	s.removeEntry(e)

	retried := e.message
	retried.TempID = "temp-" + uuid.NewString()
	retried.Status = chatwire.StatusSending
	retried.CreatedAt = s.cfg.Clock()

	fresh := &entry{message: retried}
	s.entries = append(s.entries, fresh)
	s.byTempID[retried.TempID] = fresh
	return retried, true
}

// ApplyBroadcast folds a new-message event into the list. The sender's own
// echo reconciles its pending entry in place; a message already known by
// durable id is suppressed; anything else is inserted in canonical order and,
// for partner messages, acknowledged with a delivered receipt via OnReceipt.
func (s *Session) ApplyBroadcast(message chatwire.Message) {
	s.mu.Lock()

	if s.closed || message.ID == "" {
		s.mu.Unlock()
		return
	}
	if message.TempID != "" && message.SenderID == s.selfID {
		if s.reconcile(message.TempID, message) {
			s.mu.Unlock()
			return
		}
	}
	if known, ok := s.byID[message.ID]; ok {
		// Duplicate delivery; keep the furthest status.
		if chatwire.StatusRank(message.Status) > chatwire.StatusRank(known.message.Status) {
			known.message.Status = message.Status
		}
		s.mu.Unlock()
		return
	}
	s.insertCanonical(message)

	fromPartner := message.SenderID != s.selfID
	if fromPartner {
		// A live message from the partner supersedes their typing signal.
		delete(s.typing, message.SenderID)
	}
	emit := s.cfg.OnReceipt
	at := s.cfg.Clock()
	s.mu.Unlock()

	if fromPartner && emit != nil {
		emit(chatwire.Receipt{
			MessageID: message.ID,
			Type:      chatwire.StatusDelivered,
			UserID:    s.selfID,
			At:        at,
		})
	}
}

// MarkRead reports every partner message not yet read and returns the read
// receipts the caller should emit. The local statuses advance immediately; the
// receipt broadcast coming back is absorbed by the monotonicity rule.
func (s *Session) MarkRead() []chatwire.Receipt {
	s.mu.Lock()
	defer s.mu.Unlock()

	at := s.cfg.Clock()
	receipts := make([]chatwire.Receipt, 0)
	for _, e := range s.entries {
		if e.message.ID == "" || e.message.SenderID == s.selfID {
			continue
		}
		if chatwire.StatusRank(e.message.Status) >= chatwire.StatusRank(chatwire.StatusRead) {
			continue
		}
		e.message.Status = chatwire.StatusRead
		receipts = append(receipts, chatwire.Receipt{
			MessageID: e.message.ID,
			Type:      chatwire.StatusRead,
			UserID:    s.selfID,
			At:        at,
		})
	}
	return receipts
}

// ApplyReceipt advances a message's displayed status. Stale receipts are
// absorbed by the rank guard, so orderings like read-then-delivered cannot
// regress the UI.
func (s *Session) ApplyReceipt(receipt chatwire.Receipt) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.byID[receipt.MessageID]
	if !ok {
		return false
	}
	if chatwire.StatusRank(receipt.Type) <= chatwire.StatusRank(e.message.Status) {
		return false
	}
	e.message.Status = receipt.Type
	return true
}

// NotifyTyping reports whether the client should emit a typing signal for
// this keystroke. At most one signal per throttle window goes out.
func (s *Session) NotifyTyping() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.cfg.Clock()
	if !s.lastTypingSent.IsZero() && now.Sub(s.lastTypingSent) < s.cfg.TypingThrottle {
		return false
	}
	s.lastTypingSent = now
	return true
}

// ApplyTyping records a peer's typing signal. The session's own echo is
// ignored; a peer's indicator stays live for the expiry window and each new
// signal renews it.
func (s *Session) ApplyTyping(typing chatwire.Typing) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || typing.UserID == s.selfID {
		return
	}
	s.typing[typing.UserID] = typingState{
		name:      typing.Name,
		expiresAt: s.cfg.Clock().Add(s.cfg.TypingExpiry),
	}
}

// TypingPeers returns who is typing right now, expired indicators pruned.
func (s *Session) TypingPeers() []chatwire.Typing {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.cfg.Clock()
	peers := make([]chatwire.Typing, 0, len(s.typing))
	for userID, state := range s.typing {
		if now.After(state.expiresAt) {
			delete(s.typing, userID)
			continue
		}
		peers = append(peers, chatwire.Typing{UserID: userID, Name: state.name})
	}
	sort.Slice(peers, func(i, j int) bool { return peers[i].UserID < peers[j].UserID })
	return peers
}

// PartnerTyping reports whether the conversation partner is typing.
func (s *Session) PartnerTyping() bool {
	for _, peer := range s.TypingPeers() {
		if peer.UserID == s.partnerID {
			return true
		}
	}
	return false
}

// ApplySnapshot replaces the presence set with the subscription snapshot.
func (s *Session) ApplySnapshot(snapshot chatwire.MemberSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.members = make(map[string]chatwire.Member, len(snapshot.Members))
	for _, member := range snapshot.Members {
		s.members[member.UserID] = member
	}
}

func (s *Session) ApplyMemberAdded(member chatwire.Member) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.members[member.UserID] = member
}

func (s *Session) ApplyMemberRemoved(member chatwire.Member) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.members, member.UserID)
	delete(s.typing, member.UserID)
}

// PartnerOnline reports whether the partner currently holds a connection on
// the conversation channel.
func (s *Session) PartnerOnline() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, online := s.members[s.partnerID]
	return online
}

// Apply dispatches a raw envelope to the matching handler. Unknown events
// are ignored so protocol additions do not break older clients.
func (s *Session) Apply(env chatwire.Envelope) error {
	switch env.Event {
	case chatwire.EventNewMessage:
		var message chatwire.Message
		if err := env.Decode(&message); err != nil {
			return err
		}
		s.ApplyBroadcast(message)
	case chatwire.EventMessageReceipt:
		var receipt chatwire.Receipt
		if err := env.Decode(&receipt); err != nil {
			return err
		}
		s.ApplyReceipt(receipt)
	case chatwire.EventTyping:
		var typing chatwire.Typing
		if err := env.Decode(&typing); err != nil {
			return err
		}
		s.ApplyTyping(typing)
	case chatwire.EventSubscriptionSucceeded:
		var snapshot chatwire.MemberSnapshot
		if err := env.Decode(&snapshot); err != nil {
			return err
		}
		s.ApplySnapshot(snapshot)
	case chatwire.EventMemberAdded:
		var member chatwire.Member
		if err := env.Decode(&member); err != nil {
			return err
		}
		s.ApplyMemberAdded(member)
	case chatwire.EventMemberRemoved:
		var member chatwire.Member
		if err := env.Decode(&member); err != nil {
			return err
		}
		s.ApplyMemberRemoved(member)
	}
	return nil
}

// Messages returns a copy of the current list in display order.
func (s *Session) Messages() []chatwire.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	messages := make([]chatwire.Message, len(s.entries))
	for i, e := range s.entries {
		messages[i] = e.message
	}
	return messages
}

// Unread counts partner messages not yet read.
func (s *Session) Unread() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, e := range s.entries {
		if e.message.SenderID != s.selfID && e.message.Status != chatwire.StatusRead {
			count++
		}
	}
	return count
}

// Close drops the session's volatile state. Applying events after Close is a
// no-op for presence and typing.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.typing = make(map[string]typingState)
	s.members = make(map[string]chatwire.Member)
}

// reconcile replaces a pending entry in place with its canonical server
// form. The caller holds the lock.
func (s *Session) reconcile(tempID string, canonical chatwire.Message) bool {
	e, ok := s.byTempID[tempID]
	if !ok {
		return false
	}
	if _, dup := s.byID[canonical.ID]; dup {
		// Response and broadcast both arrived; the first one won.
		delete(s.byTempID, tempID)
		s.removeEntry(e)
		return true
	}
	e.message = canonical
	e.message.TempID = tempID
	if e.message.Status == "" || e.message.Status == chatwire.StatusSending {
		e.message.Status = chatwire.StatusSent
	}
	delete(s.byTempID, tempID)
	s.byID[canonical.ID] = e
	return true
}

// insertCanonical places a durable message by server timestamp with id as
// the tiebreak. Pending entries float after confirmed ones with later local
// times, which matches how the list renders. The caller holds the lock.
func (s *Session) insertCanonical(message chatwire.Message) {
	e := &entry{message: message}
	s.byID[message.ID] = e

	at := len(s.entries)
	for i, existing := range s.entries {
		if existing.message.ID == "" {
			// Keep pending sends at the tail.
			at = i
			break
		}
		if message.CreatedAt.Before(existing.message.CreatedAt) ||
			(message.CreatedAt.Equal(existing.message.CreatedAt) && message.ID < existing.message.ID) {
			at = i
			break
		}
	}
	s.entries = append(s.entries, nil)
	copy(s.entries[at+1:], s.entries[at:])
	s.entries[at] = e
}

func (s *Session) removeEntry(target *entry) {
	for i, e := range s.entries {
		if e == target {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			return
		}
	}
}
