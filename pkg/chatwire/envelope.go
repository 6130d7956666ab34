package chatwire

import "encoding/json"

// Envelope frames every event published on a conversation channel. Data holds
// the event-specific payload and is decoded by the receiver after it has
// switched on Event — inbound payloads are never merged into client state
// without narrowing first.
type Envelope struct {
	Event   string          `json:"event"`
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
}

// NewEnvelope marshals payload into an envelope for the given channel/event.
func NewEnvelope(channel, event string, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Event: event, Channel: channel, Data: data}, nil
}

// Decode unmarshals the envelope payload into out.
func (e Envelope) Decode(out any) error {
	return json.Unmarshal(e.Data, out)
}
