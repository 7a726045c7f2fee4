package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// Action is what happened to a ledger record.
type Action string

const (
	ActionCreated Action = "created"
	ActionDeleted Action = "deleted"
)

// LedgerChangeMessage announces a write to one user's ledger. It carries ids
// only; receivers refetch the ledger they care about.
type LedgerChangeMessage struct {
	Action    Action    `json:"action"`
	OwnerID   string    `json:"owner_id"`
	RecordID  string    `json:"record_id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewLedgerChangeMessage(action Action, ownerID, recordID string) *LedgerChangeMessage {
	return &LedgerChangeMessage{
		Action:    action,
		OwnerID:   ownerID,
		RecordID:  recordID,
		Timestamp: time.Now().UTC(),
	}
}

// RoutingKey is the topic the message is published under.
func (m *LedgerChangeMessage) RoutingKey() string {
	return routingPrefix + string(m.Action)
}

func (m *LedgerChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerChangeMessageFromJSON decodes and checks a message body.
func LedgerChangeMessageFromJSON(data []byte) (*LedgerChangeMessage, error) {
	var msg LedgerChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	switch msg.Action {
	case ActionCreated, ActionDeleted:
	default:
		return nil, fmt.Errorf("unknown action %q", msg.Action)
	}
	if msg.OwnerID == "" {
		return nil, fmt.Errorf("message without owner_id")
	}
	return &msg, nil
}
