package amqp

import (
	"encoding/json"
	"time"
)

const (
	KindSync   = "sync"
	KindDelete = "delete"
)

// TransactionMessage is the lightweight queue message for mirroring a
// transaction to the cloud target. It carries only the id and kind;
// the worker fetches the full transaction from the local store.
type TransactionMessage struct {
	Kind      string    `json:"kind"`
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

// NewSyncMessage creates a message announcing a new or changed
// transaction.
func NewSyncMessage(id string) *TransactionMessage {
	return &TransactionMessage{Kind: KindSync, ID: id, Timestamp: time.Now()}
}

// NewDeleteMessage creates a message announcing a deleted transaction.
func NewDeleteMessage(id string) *TransactionMessage {
	return &TransactionMessage{Kind: KindDelete, ID: id, Timestamp: time.Now()}
}

// ToJSON converts the message to JSON bytes.
func (m *TransactionMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// FromJSON creates a message from JSON bytes.
func FromJSON(data []byte) (*TransactionMessage, error) {
	var msg TransactionMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
