package amqp

import (
	"encoding/json"
	"time"
)

// Message kinds carried on the export queue.
const (
	KindUpsert = "upsert"
	KindDelete = "delete"
)

// ExportMessage is the single message shape on the export queue. Upserts are
// lightweight: they carry only the quantity ID and the worker fetches the
// full row from the database. Deletes also carry the recorded date, since the
// row no longer exists and the date picks the year shard the export lives in.
type ExportMessage struct {
	Kind       string    `json:"kind"`
	ID         int64     `json:"id"`
	RecordedOn string    `json:"recorded_on,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewExportUpsertMessage creates an upsert message for a stored quantity.
func NewExportUpsertMessage(id int64) *ExportMessage {
	return &ExportMessage{
		Kind:      KindUpsert,
		ID:        id,
		Timestamp: time.Now(),
	}
}

// NewExportDeleteMessage creates a delete message for a removed quantity.
func NewExportDeleteMessage(id int64, recordedOn string) *ExportMessage {
	return &ExportMessage{
		Kind:       KindDelete,
		ID:         id,
		RecordedOn: recordedOn,
		Timestamp:  time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ExportMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExportMessageFromJSON creates a message from JSON bytes
func ExportMessageFromJSON(data []byte) (*ExportMessage, error) {
	var msg ExportMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
