package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/Yetunde495/mentorr-me/pkg/chatwire"
)

// Hub tracks which participants hold live connections on each conversation
// channel and fans relay envelopes out to them. Presence is per channel: a
// member is online while at least one of their connections is registered, so
// a second tab never produces a duplicate member-added and closing one of two
// tabs never produces a member-removed.
type Hub struct {
	mu       sync.RWMutex
	channels map[string]*channelState
	relay    Relay
	logger   *zap.Logger
}

type channelState struct {
	members map[string]*memberState
}

type memberState struct {
	info  chatwire.Member
	conns map[*Client]struct{}
}

func NewHub(relay Relay, logger *zap.Logger) *Hub {
	return &Hub{
		channels: make(map[string]*channelState),
		relay:    relay,
		logger:   logger,
	}
}

// Register adds an authorized client to its channel. The joining client
// receives a subscription-succeeded snapshot of everyone currently on the
// channel; if this is the member's first connection, everyone else receives
// member-added.
func (h *Hub) Register(ctx context.Context, client *Client) {
	h.mu.Lock()
	ch, ok := h.channels[client.channel]
	newChannel := !ok
	if newChannel {
		ch = &channelState{members: make(map[string]*memberState)}
		h.channels[client.channel] = ch
	}

	member, ok := ch.members[client.member.UserID]
	first := !ok
	if first {
		member = &memberState{
			info:  client.member,
			conns: make(map[*Client]struct{}),
		}
		ch.members[client.member.UserID] = member
	}
	member.conns[client] = struct{}{}

	snapshot := chatwire.MemberSnapshot{Members: make([]chatwire.Member, 0, len(ch.members))}
	for _, m := range ch.members {
		snapshot.Members = append(snapshot.Members, m.info)
	}
	h.mu.Unlock()

	// The relay round-trip stays off the hub lock; a slow broker must not
	// stall unrelated channels.
	if newChannel {
		if err := h.relay.Subscribe(ctx, client.channel); err != nil {
			h.logger.Error("hub: relay subscribe failed",
				zap.String("channel", client.channel),
				zap.Error(err),
			)
		}
	}

	if env, err := chatwire.NewEnvelope(client.channel, chatwire.EventSubscriptionSucceeded, snapshot); err == nil {
		client.enqueue(env)
	}

	if first {
		h.publish(ctx, client.channel, chatwire.EventMemberAdded, client.member)
	}
}

// Unregister drops a client connection. When the member's last connection
// goes, everyone remaining on the channel receives member-removed; when the
// channel empties, the hub drops its relay subscription.
func (h *Hub) Unregister(ctx context.Context, client *Client) {
	h.mu.Lock()
	ch, ok := h.channels[client.channel]
	if !ok {
		h.mu.Unlock()
		return
	}
	member, ok := ch.members[client.member.UserID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, exists := member.conns[client]; !exists {
		h.mu.Unlock()
		return
	}
	delete(member.conns, client)
	client.close()

	last := len(member.conns) == 0
	if last {
		delete(ch.members, client.member.UserID)
	}
	empty := len(ch.members) == 0
	if empty {
		delete(h.channels, client.channel)
	}
	h.mu.Unlock()

	if empty {
		if err := h.relay.Unsubscribe(ctx, client.channel); err != nil {
			h.logger.Warn("hub: relay unsubscribe failed",
				zap.String("channel", client.channel),
				zap.Error(err),
			)
		}
	}
	if last {
		h.publish(ctx, client.channel, chatwire.EventMemberRemoved, client.member)
	}
}

// Deliver fans a relay envelope out to every local connection on its channel.
// This is the relay sink: events published on any instance arrive here.
func (h *Hub) Deliver(env chatwire.Envelope) {
	h.mu.RLock()
	ch, ok := h.channels[env.Channel]
	if !ok {
		h.mu.RUnlock()
		return
	}
	clients := make([]*Client, 0, 2)
	for _, member := range ch.members {
		for client := range member.conns {
			clients = append(clients, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range clients {
		client.enqueue(env)
	}
}

// IsOnline reports whether a participant currently holds a connection on the
// channel of this hub instance.
func (h *Hub) IsOnline(channel, userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ch, ok := h.channels[channel]
	if !ok {
		return false
	}
	_, online := ch.members[userID]
	return online
}

// Members returns the current presence snapshot for a channel.
func (h *Hub) Members(channel string) []chatwire.Member {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ch, ok := h.channels[channel]
	if !ok {
		return nil
	}
	members := make([]chatwire.Member, 0, len(ch.members))
	for _, m := range ch.members {
		members = append(members, m.info)
	}
	return members
}

func (h *Hub) publish(ctx context.Context, channel, event string, payload any) {
	env, err := chatwire.NewEnvelope(channel, event, payload)
	if err != nil {
		h.logger.Error("hub: encode envelope",
			zap.String("event", event),
			zap.Error(err),
		)
		return
	}
	if err := h.relay.Publish(ctx, env); err != nil {
		h.logger.Error("hub: relay publish failed",
			zap.String("channel", channel),
			zap.String("event", event),
			zap.Error(err),
		)
	}
}

func encodeEnvelope(env chatwire.Envelope) ([]byte, error) {
	return json.Marshal(env)
}
