package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Message is one captured notification.
type Message struct {
	Topic string
	Data  []byte
}

// Memory records notifications in process memory, for local runs and tests.
type Memory struct {
	mu       sync.Mutex
	messages []Message
	nextID   int
}

// NewMemory returns an empty in-memory publisher.
func NewMemory() *Memory {
	return &Memory{}
}

// Publish captures the payload and returns a synthetic message id.
func (m *Memory) Publish(_ context.Context, topic string, payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.messages = append(m.messages, Message{Topic: topic, Data: data})
	return fmt.Sprintf("mem-%d", m.nextID), nil
}

// Messages snapshots all captured notifications.
func (m *Memory) Messages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.messages...)
}

// Noop discards every notification.
type Noop struct{}

// Publish drops the payload.
func (Noop) Publish(context.Context, string, any) (string, error) { return "", nil }
