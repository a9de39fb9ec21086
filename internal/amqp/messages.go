package amqp

import (
	"encoding/json"
	"time"

	syncport "fintrack/internal/sync"
)

// RecordDirtyMessage signals that a local record was created or changed and
// needs a sync pass. It carries only the entity type and id, the worker
// reads the current record state from the database when it runs.
type RecordDirtyMessage struct {
	Entity    syncport.EntityType `json:"entity"`
	ID        int64               `json:"id"`
	Timestamp time.Time           `json:"timestamp"`
}

func NewRecordDirtyMessage(entity syncport.EntityType, id int64) *RecordDirtyMessage {
	return &RecordDirtyMessage{
		Entity:    entity,
		ID:        id,
		Timestamp: time.Now().UTC(),
	}
}

func (m *RecordDirtyMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func RecordDirtyMessageFromJSON(data []byte) (*RecordDirtyMessage, error) {
	var msg RecordDirtyMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
