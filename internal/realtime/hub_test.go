package realtime

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/Yetunde495/mentorr-me/pkg/chatwire"
)

func newTestHub() (*Hub, *LocalRelay) {
	relay := NewLocalRelay()
	hub := NewHub(relay, zap.NewNop())
	relay.Attach(hub.Deliver)
	return hub, relay
}

func drain(t *testing.T, c *Client) chatwire.Envelope {
	t.Helper()
	select {
	case env := <-c.send:
		return env
	default:
		t.Fatal("expected an envelope in the client buffer")
		return chatwire.Envelope{}
	}
}

func TestRegisterSendsSnapshotThenMemberAdded(t *testing.T) {
	hub, _ := newTestHub()
	channel := chatwire.ChannelName("1_2")
	ctx := context.Background()

	mentor := NewClient(hub, nil, channel, chatwire.Member{UserID: "1", Name: "Ada", Role: chatwire.RoleMentor})
	hub.Register(ctx, mentor)

	env := drain(t, mentor)
	if env.Event != chatwire.EventSubscriptionSucceeded {
		t.Fatalf("first envelope = %q, want %q", env.Event, chatwire.EventSubscriptionSucceeded)
	}
	var snapshot chatwire.MemberSnapshot
	if err := env.Decode(&snapshot); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if len(snapshot.Members) != 1 || snapshot.Members[0].UserID != "1" {
		t.Fatalf("snapshot members = %+v, want just user 1", snapshot.Members)
	}

	// The joining member also sees their own member-added via the relay.
	env = drain(t, mentor)
	if env.Event != chatwire.EventMemberAdded {
		t.Fatalf("second envelope = %q, want %q", env.Event, chatwire.EventMemberAdded)
	}

	mentee := NewClient(hub, nil, channel, chatwire.Member{UserID: "2", Name: "Sam", Role: chatwire.RoleMentee})
	hub.Register(ctx, mentee)

	env = drain(t, mentee)
	var both chatwire.MemberSnapshot
	if err := env.Decode(&both); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if len(both.Members) != 2 {
		t.Fatalf("snapshot has %d members, want 2", len(both.Members))
	}

	env = drain(t, mentor)
	if env.Event != chatwire.EventMemberAdded {
		t.Fatalf("mentor saw %q, want %q", env.Event, chatwire.EventMemberAdded)
	}
	var added chatwire.Member
	if err := env.Decode(&added); err != nil {
		t.Fatalf("decode member: %v", err)
	}
	if added.UserID != "2" {
		t.Fatalf("member-added for %q, want user 2", added.UserID)
	}
}

func TestSecondConnectionDoesNotRepeatMemberAdded(t *testing.T) {
	hub, _ := newTestHub()
	channel := chatwire.ChannelName("1_2")
	ctx := context.Background()
	member := chatwire.Member{UserID: "1", Name: "Ada", Role: chatwire.RoleMentor}

	first := NewClient(hub, nil, channel, member)
	hub.Register(ctx, first)
	drain(t, first) // snapshot
	drain(t, first) // member-added

	second := NewClient(hub, nil, channel, member)
	hub.Register(ctx, second)
	env := drain(t, second)
	if env.Event != chatwire.EventSubscriptionSucceeded {
		t.Fatalf("second tab got %q, want snapshot", env.Event)
	}

	select {
	case env := <-first.send:
		t.Fatalf("first tab got unexpected %q after a second tab joined", env.Event)
	default:
	}

	// Closing one of two tabs keeps the member online.
	hub.Unregister(ctx, second)
	if !hub.IsOnline(channel, "1") {
		t.Fatal("member went offline while a connection remained")
	}
	select {
	case env := <-first.send:
		t.Fatalf("first tab got unexpected %q after sibling tab closed", env.Event)
	default:
	}

	hub.Unregister(ctx, first)
	if hub.IsOnline(channel, "1") {
		t.Fatal("member still online after last connection closed")
	}
}

func TestUnregisterBroadcastsMemberRemoved(t *testing.T) {
	hub, _ := newTestHub()
	channel := chatwire.ChannelName("1_2")
	ctx := context.Background()

	mentor := NewClient(hub, nil, channel, chatwire.Member{UserID: "1", Role: chatwire.RoleMentor})
	mentee := NewClient(hub, nil, channel, chatwire.Member{UserID: "2", Role: chatwire.RoleMentee})
	hub.Register(ctx, mentor)
	hub.Register(ctx, mentee)
	drain(t, mentor) // snapshot
	drain(t, mentor) // own member-added
	drain(t, mentor) // mentee member-added
	drain(t, mentee) // snapshot

	hub.Unregister(ctx, mentee)
	env := drain(t, mentor)
	if env.Event != chatwire.EventMemberRemoved {
		t.Fatalf("mentor saw %q, want %q", env.Event, chatwire.EventMemberRemoved)
	}
	var removed chatwire.Member
	if err := env.Decode(&removed); err != nil {
		t.Fatalf("decode member: %v", err)
	}
	if removed.UserID != "2" {
		t.Fatalf("member-removed for %q, want user 2", removed.UserID)
	}
}

// reentrantRelay reads hub state from inside the subscribe and unsubscribe
// paths. Those reads take the hub's lock, so they only complete when the hub
// is not holding it across the relay round-trip.
type reentrantRelay struct {
	*LocalRelay
	hub *Hub

	sawMemberOnSubscribe  bool
	sawEmptyOnUnsubscribe bool
}

func (r *reentrantRelay) Subscribe(ctx context.Context, channel string) error {
	r.sawMemberOnSubscribe = len(r.hub.Members(channel)) > 0
	return r.LocalRelay.Subscribe(ctx, channel)
}

func (r *reentrantRelay) Unsubscribe(ctx context.Context, channel string) error {
	r.sawEmptyOnUnsubscribe = len(r.hub.Members(channel)) == 0
	return r.LocalRelay.Unsubscribe(ctx, channel)
}

func TestRelayRoundTripsRunOffTheHubLock(t *testing.T) {
	relay := &reentrantRelay{LocalRelay: NewLocalRelay()}
	hub := NewHub(relay, zap.NewNop())
	relay.hub = hub
	relay.Attach(hub.Deliver)
	ctx := context.Background()

	channel := chatwire.ChannelName("1_2")
	client := NewClient(hub, nil, channel, chatwire.Member{UserID: "1"})
	hub.Register(ctx, client)
	if !relay.sawMemberOnSubscribe {
		t.Fatal("subscribe ran before the member was registered")
	}

	hub.Unregister(ctx, client)
	if !relay.sawEmptyOnUnsubscribe {
		t.Fatal("unsubscribe ran before the channel was released")
	}
}

func TestDeliverFansOutToChannelMembersOnly(t *testing.T) {
	hub, relay := newTestHub()
	ctx := context.Background()

	inChannel := NewClient(hub, nil, chatwire.ChannelName("1_2"), chatwire.Member{UserID: "1"})
	elsewhere := NewClient(hub, nil, chatwire.ChannelName("3_4"), chatwire.Member{UserID: "3"})
	hub.Register(ctx, inChannel)
	hub.Register(ctx, elsewhere)
	drain(t, inChannel)
	drain(t, inChannel)
	drain(t, elsewhere)
	drain(t, elsewhere)

	env, err := chatwire.NewEnvelope(chatwire.ChannelName("1_2"), chatwire.EventTyping, chatwire.Typing{UserID: "2"})
	if err != nil {
		t.Fatalf("build envelope: %v", err)
	}
	if err := relay.Publish(ctx, env); err != nil {
		t.Fatalf("publish: %v", err)
	}

	got := drain(t, inChannel)
	if got.Event != chatwire.EventTyping {
		t.Fatalf("got %q, want %q", got.Event, chatwire.EventTyping)
	}
	select {
	case env := <-elsewhere.send:
		t.Fatalf("other channel received %q", env.Event)
	default:
	}
}
