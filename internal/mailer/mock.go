package mailer

import (
	"context"
	"fmt"
	"sync"
)

// MockSender prints messages to the console instead of sending them
type MockSender struct {
	mu   sync.Mutex
	Sent []Message
	Err  error
}

func NewMockSender() *MockSender {
	return &MockSender{}
}

func (m *MockSender) From() string { return "bookings@localhost" }

func (m *MockSender) Send(ctx context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	fmt.Printf("\n========== MOCK EMAIL ==========\n")
	fmt.Printf("To: %s\n", msg.To)
	fmt.Printf("Subject: %s\n", msg.Subject)
	fmt.Printf("Attachments: %d\n", len(msg.Attachments))
	fmt.Printf("================================\n\n")
	m.Sent = append(m.Sent, msg)
	return nil
}

func (m *MockSender) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Sent)
}
