package amqp

import (
	"encoding/json"
	"time"

	"github.com/Pehalba/AdmFinanceira/internal/core"
)

// Export operations carried by TransactionExportMessage.
const (
	OpUpsert = "upsert"
	OpDelete = "delete"
)

// TransactionExportMessage is the event pushed to the export queue. Upserts
// carry only identifiers; the worker fetches the full record from the store,
// so a stale message after later edits still mirrors the freshest version.
// Deletes carry a snapshot of the removed record, since by the time the
// worker runs there is nothing left to fetch.
type TransactionExportMessage struct {
	ID        string            `json:"id"`
	UID       string            `json:"uid"`
	Op        string            `json:"op"`
	Snapshot  *core.Transaction `json:"snapshot,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// NewTransactionExportMessage creates an export message for one operation.
func NewTransactionExportMessage(id, uid, op string) *TransactionExportMessage {
	return &TransactionExportMessage{
		ID:        id,
		UID:       uid,
		Op:        op,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *TransactionExportMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TransactionExportMessageFromJSON creates a message from JSON bytes
func TransactionExportMessageFromJSON(data []byte) (*TransactionExportMessage, error) {
	var msg TransactionExportMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
