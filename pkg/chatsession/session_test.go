package chatsession

import (
	"testing"
	"time"

	"github.com/Yetunde495/mentorr-me/pkg/chatwire"
)

type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time { return f.now }

func (f *fakeClock) advance(d time.Duration) { f.now = f.now.Add(d) }

func newTestSession() (*Session, *fakeClock) {
	clock := &fakeClock{now: time.Date(2025, 6, 10, 15, 0, 0, 0, time.UTC)}
	session := New("3", "7", Config{Clock: clock.Now})
	return session, clock
}

func serverMessage(id, senderID string, at time.Time) chatwire.Message {
	return chatwire.Message{
		ID:             id,
		ConversationID: "3_7",
		SenderID:       senderID,
		Type:           chatwire.TypeText,
		Content:        "msg " + id,
		CreatedAt:      at,
		Status:         chatwire.StatusSent,
	}
}

func TestSendIsOptimistic(t *testing.T) {
	session, _ := newTestSession()

	pending := session.Send(chatwire.TypeText, "hello", "")
	if pending.TempID == "" {
		t.Fatal("pending message has no temp id")
	}
	if pending.ID != "" {
		t.Fatalf("pending message has durable id %q before confirmation", pending.ID)
	}
	if pending.Status != chatwire.StatusSending {
		t.Fatalf("status = %q, want sending", pending.Status)
	}

	messages := session.Messages()
	if len(messages) != 1 || messages[0].TempID != pending.TempID {
		t.Fatalf("messages = %+v, want the pending entry", messages)
	}
}

func TestConfirmSendReplacesInPlace(t *testing.T) {
	session, clock := newTestSession()
	session.Seed([]chatwire.Message{serverMessage("a", "7", clock.now.Add(-time.Hour))})

	pending := session.Send(chatwire.TypeText, "hello", "")
	canonical := serverMessage("b", "3", clock.now.Add(2*time.Second))

	if !session.ConfirmSend(pending.TempID, canonical) {
		t.Fatal("ConfirmSend() = false")
	}

	messages := session.Messages()
	if len(messages) != 2 {
		t.Fatalf("got %d messages, want 2", len(messages))
	}
	got := messages[1]
	if got.ID != "b" || got.TempID != pending.TempID {
		t.Fatalf("confirmed = %+v, want id b with original temp id", got)
	}
	if got.Status != chatwire.StatusSent {
		t.Fatalf("status = %q, want sent", got.Status)
	}
	if !got.CreatedAt.Equal(canonical.CreatedAt) {
		t.Fatal("provisional timestamp survived confirmation")
	}
}

func TestBroadcastEchoReconcilesPending(t *testing.T) {
	session, clock := newTestSession()

	pending := session.Send(chatwire.TypeText, "hello", "")
	echo := serverMessage("b", "3", clock.now.Add(time.Second))
	echo.TempID = pending.TempID

	session.ApplyBroadcast(echo)

	messages := session.Messages()
	if len(messages) != 1 {
		t.Fatalf("got %d messages, want 1 after reconciliation", len(messages))
	}
	if messages[0].ID != "b" {
		t.Fatalf("id = %q, want b", messages[0].ID)
	}

	// The HTTP response landing after the echo must not duplicate the entry.
	if !session.ConfirmSend(pending.TempID, echo) {
		session.ApplyBroadcast(echo)
	}
	if got := len(session.Messages()); got != 1 {
		t.Fatalf("got %d messages after double delivery, want 1", got)
	}
}

func TestBroadcastDuplicateSuppressed(t *testing.T) {
	session, clock := newTestSession()

	message := serverMessage("a", "7", clock.now)
	session.ApplyBroadcast(message)
	session.ApplyBroadcast(message)

	if got := len(session.Messages()); got != 1 {
		t.Fatalf("got %d messages, want 1", got)
	}
}

func TestBroadcastInsertsInServerTimestampOrder(t *testing.T) {
	session, clock := newTestSession()

	session.ApplyBroadcast(serverMessage("b", "7", clock.now.Add(2*time.Minute)))
	session.ApplyBroadcast(serverMessage("a", "7", clock.now.Add(time.Minute)))

	messages := session.Messages()
	if messages[0].ID != "a" || messages[1].ID != "b" {
		t.Fatalf("order = %q, %q; want a, b", messages[0].ID, messages[1].ID)
	}
}

func TestRetryAssignsFreshTempIDAndMovesToEnd(t *testing.T) {
	session, clock := newTestSession()

	pending := session.Send(chatwire.TypeText, "first try", "")
	session.ApplyBroadcast(serverMessage("a", "7", clock.now.Add(time.Second)))

	if !session.FailSend(pending.TempID) {
		t.Fatal("FailSend() = false")
	}
	messages := session.Messages()
	var failed *chatwire.Message
	for i := range messages {
		if messages[i].TempID == pending.TempID {
			failed = &messages[i]
		}
	}
	if failed == nil || failed.Status != chatwire.StatusFailed {
		t.Fatalf("failed entry = %+v, want status failed", failed)
	}

	clock.advance(time.Minute)
	retried, ok := session.Retry(pending.TempID)
	if !ok {
		t.Fatal("Retry() = false")
	}
	if retried.TempID == pending.TempID {
		t.Fatal("retry reused the old temp id")
	}
	if retried.Status != chatwire.StatusSending {
		t.Fatalf("retry status = %q, want sending", retried.Status)
	}

	messages = session.Messages()
	if last := messages[len(messages)-1]; last.TempID != retried.TempID {
		t.Fatalf("retried entry is not at the end: %+v", messages)
	}

	// The old temp id is gone; a stale failure callback does nothing.
	if session.FailSend(pending.TempID) {
		t.Fatal("stale temp id still addressable after retry")
	}
}

func TestRetryOnlyAppliesToFailedMessages(t *testing.T) {
	session, _ := newTestSession()

	pending := session.Send(chatwire.TypeText, "hello", "")
	if _, ok := session.Retry(pending.TempID); ok {
		t.Fatal("Retry() succeeded on a message still in flight")
	}
}

func TestApplyReceiptIsMonotonic(t *testing.T) {
	session, clock := newTestSession()
	session.ApplyBroadcast(serverMessage("a", "3", clock.now))

	if !session.ApplyReceipt(chatwire.Receipt{MessageID: "a", Type: chatwire.StatusRead, UserID: "7"}) {
		t.Fatal("read receipt not applied")
	}
	if session.ApplyReceipt(chatwire.Receipt{MessageID: "a", Type: chatwire.StatusDelivered, UserID: "7"}) {
		t.Fatal("stale delivered receipt applied after read")
	}
	if got := session.Messages()[0].Status; got != chatwire.StatusRead {
		t.Fatalf("status = %q, want read", got)
	}

	if session.ApplyReceipt(chatwire.Receipt{MessageID: "missing", Type: chatwire.StatusRead}) {
		t.Fatal("receipt for unknown message applied")
	}
}

func TestNotifyTypingThrottles(t *testing.T) {
	session, clock := newTestSession()

	if !session.NotifyTyping() {
		t.Fatal("first keystroke suppressed")
	}
	if session.NotifyTyping() {
		t.Fatal("second keystroke inside the window not suppressed")
	}

	clock.advance(defaultTypingThrottle)
	if !session.NotifyTyping() {
		t.Fatal("keystroke after the window suppressed")
	}
}

func TestTypingIndicatorExpiresAndRenews(t *testing.T) {
	session, clock := newTestSession()

	// The session's own echo is filtered.
	session.ApplyTyping(chatwire.Typing{UserID: "3", Name: "Sam"})
	if len(session.TypingPeers()) != 0 {
		t.Fatal("own typing echo recorded")
	}

	session.ApplyTyping(chatwire.Typing{UserID: "7", Name: "Ada"})
	if !session.PartnerTyping() {
		t.Fatal("partner typing not recorded")
	}

	clock.advance(3 * time.Second)
	session.ApplyTyping(chatwire.Typing{UserID: "7", Name: "Ada"})

	// The renewal pushed the expiry forward past the original window.
	clock.advance(3 * time.Second)
	if !session.PartnerTyping() {
		t.Fatal("renewed indicator expired early")
	}

	clock.advance(2 * time.Second)
	if session.PartnerTyping() {
		t.Fatal("indicator survived past expiry")
	}
}

func TestPartnerMessageClearsTypingIndicator(t *testing.T) {
	session, clock := newTestSession()

	session.ApplyTyping(chatwire.Typing{UserID: "7", Name: "Ada"})
	session.ApplyBroadcast(serverMessage("a", "7", clock.now))

	if session.PartnerTyping() {
		t.Fatal("typing indicator survived the partner's message")
	}
}

func TestPresenceFollowsSnapshotAndDeltas(t *testing.T) {
	session, _ := newTestSession()

	session.ApplySnapshot(chatwire.MemberSnapshot{Members: []chatwire.Member{
		{UserID: "3", Name: "Sam"},
	}})
	if session.PartnerOnline() {
		t.Fatal("partner online before joining")
	}

	session.ApplyMemberAdded(chatwire.Member{UserID: "7", Name: "Ada"})
	if !session.PartnerOnline() {
		t.Fatal("partner not online after member-added")
	}

	session.ApplyMemberRemoved(chatwire.Member{UserID: "7"})
	if session.PartnerOnline() {
		t.Fatal("partner still online after member-removed")
	}
}

func TestApplyDispatchesEnvelopes(t *testing.T) {
	session, clock := newTestSession()

	env, err := chatwire.NewEnvelope("chat-3_7", chatwire.EventNewMessage, serverMessage("a", "7", clock.now))
	if err != nil {
		t.Fatalf("build envelope: %v", err)
	}
	if err := session.Apply(env); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if len(session.Messages()) != 1 {
		t.Fatal("new-message envelope not applied")
	}

	env, err = chatwire.NewEnvelope("chat-3_7", chatwire.EventMemberAdded, chatwire.Member{UserID: "7"})
	if err != nil {
		t.Fatalf("build envelope: %v", err)
	}
	if err := session.Apply(env); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if !session.PartnerOnline() {
		t.Fatal("member-added envelope not applied")
	}

	// Unknown events are ignored without error.
	if err := session.Apply(chatwire.Envelope{Event: "pong"}); err != nil {
		t.Fatalf("unknown event error = %v", err)
	}
}

func TestUnreadCountsPartnerMessagesOnly(t *testing.T) {
	session, clock := newTestSession()

	session.ApplyBroadcast(serverMessage("a", "7", clock.now))
	session.ApplyBroadcast(serverMessage("b", "7", clock.now.Add(time.Second)))
	session.ApplyBroadcast(serverMessage("c", "3", clock.now.Add(2*time.Second)))

	if got := session.Unread(); got != 2 {
		t.Fatalf("Unread() = %d, want 2", got)
	}

	session.ApplyReceipt(chatwire.Receipt{MessageID: "a", Type: chatwire.StatusRead, UserID: "3"})
	if got := session.Unread(); got != 1 {
		t.Fatalf("Unread() = %d after read receipt, want 1", got)
	}
}

func TestPartnerArrivalEmitsDeliveredReceipt(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 6, 10, 15, 0, 0, 0, time.UTC)}
	var emitted []chatwire.Receipt
	session := New("3", "7", Config{
		Clock:     clock.Now,
		OnReceipt: func(r chatwire.Receipt) { emitted = append(emitted, r) },
	})

	message := serverMessage("a", "7", clock.now)
	session.ApplyBroadcast(message)
	if len(emitted) != 1 {
		t.Fatalf("emitted %d receipts, want 1", len(emitted))
	}
	got := emitted[0]
	if got.MessageID != "a" || got.Type != chatwire.StatusDelivered || got.UserID != "3" {
		t.Fatalf("receipt = %+v, want delivered for a from 3", got)
	}

	// Redelivery and own echoes stay silent.
	session.ApplyBroadcast(message)
	session.ApplyBroadcast(serverMessage("b", "3", clock.now.Add(time.Second)))
	if len(emitted) != 1 {
		t.Fatalf("emitted %d receipts after redelivery and own echo, want 1", len(emitted))
	}
}

func TestMarkReadCoversUnreadPartnerMessages(t *testing.T) {
	session, clock := newTestSession()

	session.ApplyBroadcast(serverMessage("a", "7", clock.now))
	session.ApplyBroadcast(serverMessage("b", "7", clock.now.Add(time.Second)))
	session.ApplyBroadcast(serverMessage("c", "3", clock.now.Add(2*time.Second)))
	session.ApplyReceipt(chatwire.Receipt{MessageID: "a", Type: chatwire.StatusRead, UserID: "3"})

	receipts := session.MarkRead()
	if len(receipts) != 1 {
		t.Fatalf("MarkRead() returned %d receipts, want 1: %+v", len(receipts), receipts)
	}
	if receipts[0].MessageID != "b" || receipts[0].Type != chatwire.StatusRead {
		t.Fatalf("receipt = %+v, want read for b", receipts[0])
	}

	if got := session.Unread(); got != 0 {
		t.Fatalf("Unread() = %d after MarkRead, want 0", got)
	}
	if again := session.MarkRead(); len(again) != 0 {
		t.Fatalf("second MarkRead() returned %d receipts, want 0", len(again))
	}
}

func TestDayGroupsSplitOnLocalMidnight(t *testing.T) {
	session, _ := newTestSession()
	lagos := time.FixedZone("WAT", 1*60*60)

	// 23:30 and 00:30 UTC straddle midnight in UTC+1.
	session.ApplyBroadcast(serverMessage("a", "7", time.Date(2025, 6, 8, 22, 30, 0, 0, time.UTC)))
	session.ApplyBroadcast(serverMessage("b", "7", time.Date(2025, 6, 8, 23, 30, 0, 0, time.UTC)))
	session.ApplyBroadcast(serverMessage("c", "3", time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)))

	groups := session.DayGroups(lagos)
	if len(groups) != 3 {
		t.Fatalf("got %d groups, want 3: %+v", len(groups), groups)
	}
	if len(groups[0].Messages) != 1 || groups[0].Messages[0].ID != "a" {
		t.Fatalf("first group = %+v, want just message a", groups[0].Messages)
	}
	if len(groups[1].Messages) != 1 || groups[1].Messages[0].ID != "b" {
		t.Fatalf("second group = %+v, want just message b", groups[1].Messages)
	}

	// In UTC the first two land on the same day.
	utcGroups := session.DayGroups(time.UTC)
	if len(utcGroups) != 2 {
		t.Fatalf("got %d UTC groups, want 2", len(utcGroups))
	}
}

func TestDayGroupLabels(t *testing.T) {
	session, clock := newTestSession()
	// clock.now is 2025-06-10 15:00 UTC.

	session.ApplyBroadcast(serverMessage("a", "7", clock.now.Add(-9*24*time.Hour)))
	session.ApplyBroadcast(serverMessage("b", "7", clock.now.Add(-3*24*time.Hour)))
	session.ApplyBroadcast(serverMessage("c", "7", clock.now.Add(-24*time.Hour)))
	session.ApplyBroadcast(serverMessage("d", "3", clock.now))

	groups := session.DayGroups(time.UTC)
	if len(groups) != 4 {
		t.Fatalf("got %d groups, want 4", len(groups))
	}
	wantLabels := []string{"June 1, 2025", "Saturday", "Yesterday", "Today"}
	for i, want := range wantLabels {
		if groups[i].Label != want {
			t.Fatalf("group %d label = %q, want %q", i, groups[i].Label, want)
		}
	}
}
