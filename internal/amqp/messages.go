package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"moneyguard/internal/cache"
)

// InvalidationMessage carries the tags of a successful mutation to the other
// clients of the same user. Origin identifies the publishing process.
type InvalidationMessage struct {
	Tags      []cache.Tag `json:"tags"`
	Origin    string      `json:"origin"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewInvalidationMessage creates a message stamped with the current time
func NewInvalidationMessage(origin string, tags []cache.Tag) *InvalidationMessage {
	return &InvalidationMessage{
		Tags:      tags,
		Origin:    origin,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *InvalidationMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// InvalidationMessageFromJSON creates a message from JSON bytes
func InvalidationMessageFromJSON(data []byte) (*InvalidationMessage, error) {
	var msg InvalidationMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if len(msg.Tags) == 0 {
		return nil, errors.New("invalidation message without tags")
	}
	return &msg, nil
}
