package redis

import (
	"encoding/json"
	"fmt"
)

// Envelope is the Pub/Sub payload for one mirrored post.
type Envelope struct {
	Origin  string `json:"origin"`
	Group   string `json:"group"`
	Message string `json:"message"`
}

// Marshal encodes e as JSON.
func (e Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// DecodeEnvelope parses a payload published by a Mirror.
func DecodeEnvelope(payload []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(payload, &e); err != nil {
		return Envelope{}, fmt.Errorf("%w: %w", ErrInvalidEnvelope, err)
	}
	if e.Origin == "" || e.Group == "" {
		return Envelope{}, fmt.Errorf("%w: origin and group are required", ErrInvalidEnvelope)
	}
	return e, nil
}
