package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"finboard/internal/core"
)

// Routing keys of the jobs exchange.
const (
	KindFxRefresh      = "fx.refresh"
	KindSnapshotExport = "snapshot.export"
)

// JobMessage is a lightweight job request. The worker recomputes everything it needs
// from the store.
type JobMessage struct {
	Kind      string    `json:"kind"`
	Date      core.Date `json:"date"`
	UserID    string    `json:"userId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewFxRefreshMessage requests a refresh of the FX table for date.
func NewFxRefreshMessage(date core.Date) *JobMessage {
	return &JobMessage{Kind: KindFxRefresh, Date: date, Timestamp: time.Now()}
}

// NewSnapshotExportMessage requests a net-worth snapshot of userID as of date.
func NewSnapshotExportMessage(userID string, date core.Date) *JobMessage {
	return &JobMessage{Kind: KindSnapshotExport, Date: date, UserID: userID, Timestamp: time.Now()}
}

// Validate checks the fields each kind needs.
func (m *JobMessage) Validate() error {
	switch m.Kind {
	case KindFxRefresh:
	case KindSnapshotExport:
		if m.UserID == "" {
			return fmt.Errorf("%s message without user id", m.Kind)
		}
	default:
		return fmt.Errorf("unknown job kind %q", m.Kind)
	}
	if m.Date.IsEmpty() {
		return fmt.Errorf("%s message without date", m.Kind)
	}
	return nil
}

// ToJSON converts the message to JSON bytes
func (m *JobMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// JobMessageFromJSON decodes and validates a message.
func JobMessageFromJSON(data []byte) (*JobMessage, error) {
	var msg JobMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
