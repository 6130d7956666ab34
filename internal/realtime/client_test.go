package realtime

import (
	"context"
	"testing"

	"github.com/Yetunde495/mentorr-me/internal/models"
	"github.com/Yetunde495/mentorr-me/pkg/chatwire"
)

type stubSignaler struct {
	typingCtx    context.Context
	typingConvo  string
	typingSender string

	receiptCtx       context.Context
	receiptActor     string
	receiptMessageID string
	receiptType      string
}

func (s *stubSignaler) NotifyTyping(ctx context.Context, conversationID, senderID string) error {
	s.typingCtx = ctx
	s.typingConvo = conversationID
	s.typingSender = senderID
	return nil
}

func (s *stubSignaler) MarkReceipt(ctx context.Context, actorID, messageID, receiptType string) (*models.Message, error) {
	s.receiptCtx = ctx
	s.receiptActor = actorID
	s.receiptMessageID = messageID
	s.receiptType = receiptType
	return &models.Message{ID: messageID, Status: receiptType}, nil
}

func TestInboundFramesCarryConnectionContext(t *testing.T) {
	hub, _ := newTestHub()
	client := NewClient(hub, nil, chatwire.ChannelName("1_2"), chatwire.Member{UserID: "2"})
	service := &stubSignaler{}

	ctx, cancel := context.WithCancel(context.Background())

	client.routeFrame(ctx, service, []byte(`{"event":"typing"}`))
	if service.typingConvo != "1_2" || service.typingSender != "2" {
		t.Fatalf("typing routed as (%q, %q), want (1_2, 2)", service.typingConvo, service.typingSender)
	}

	client.routeFrame(ctx, service, []byte(`{"event":"message-receipt","messageId":"m1","type":"delivered"}`))
	if service.receiptActor != "2" || service.receiptMessageID != "m1" || service.receiptType != "delivered" {
		t.Fatalf("receipt routed as (%q, %q, %q)", service.receiptActor, service.receiptMessageID, service.receiptType)
	}

	// Tearing the connection down cancels whatever the frames started.
	cancel()
	if service.typingCtx.Err() == nil || service.receiptCtx.Err() == nil {
		t.Fatal("service calls did not share the connection context")
	}
}

func TestRouteFrameRejectsBadFrames(t *testing.T) {
	hub, _ := newTestHub()
	client := NewClient(hub, nil, chatwire.ChannelName("1_2"), chatwire.Member{UserID: "2"})
	service := &stubSignaler{}
	ctx := context.Background()

	client.routeFrame(ctx, service, []byte(`not json`))
	env := drain(t, client)
	if env.Event != "error" {
		t.Fatalf("malformed frame produced %q, want error", env.Event)
	}

	client.routeFrame(ctx, service, []byte(`{"event":"new-message"}`))
	env = drain(t, client)
	if env.Event != "error" {
		t.Fatalf("unsupported event produced %q, want error", env.Event)
	}

	if service.typingCtx != nil || service.receiptCtx != nil {
		t.Fatal("rejected frames reached the service")
	}
}
