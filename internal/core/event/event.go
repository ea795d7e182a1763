package event

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/polygonid/launchpad-identity/pkg/pubsub"
)

const (
	ClaimRequestedEvent = "claimRequested" // ClaimRequestedEvent a claim verification was requested
	ClaimSettledEvent   = "claimSettled"   // ClaimSettledEvent the issuer settled a claim request
)

// ClaimRequested defines the claimRequested data
type ClaimRequested struct {
	RequestID   uuid.UUID `json:"requestID"`
	Wallet      string    `json:"wallet"`
	Identity    string    `json:"identity"`
	Topic       uint64    `json:"topic"`
	RequestedAt time.Time `json:"requestedAt"`
}

// Marshal marshals the event into a pubsub.Message
func (ev *ClaimRequested) Marshal() (msg pubsub.Message, err error) {
	return json.Marshal(ev)
}

// Unmarshal creates an event from that message
func (ev *ClaimRequested) Unmarshal(msg pubsub.Message) error {
	return json.Unmarshal(msg, &ev)
}

// ClaimSettled defines the claimSettled data
type ClaimSettled struct {
	RequestID uuid.UUID `json:"requestID"`
	Identity  string    `json:"identity"`
	Topic     uint64    `json:"topic"`
	SettledAt time.Time `json:"settledAt"`
}

// Marshal marshals the event into a pubsub.Message
func (ev *ClaimSettled) Marshal() (msg pubsub.Message, err error) {
	return json.Marshal(ev)
}

// Unmarshal creates an event from that message
func (ev *ClaimSettled) Unmarshal(msg pubsub.Message) error {
	return json.Unmarshal(msg, &ev)
}
