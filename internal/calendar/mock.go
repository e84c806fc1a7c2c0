package calendar

import (
	"context"
	"fmt"
	"log"
	"sync"
)

// MockProvider keeps events in memory for tests. Err makes every call fail.
type MockProvider struct {
	mu     sync.Mutex
	next   int
	Events map[string]EventSpec
	Calls  []string
	Err    error
}

func NewMockProvider() *MockProvider {
	return &MockProvider{Events: make(map[string]EventSpec)}
}

func (m *MockProvider) Create(ctx context.Context, spec EventSpec) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, "create")
	if m.Err != nil {
		return "", m.Err
	}
	m.next++
	id := fmt.Sprintf("mock-evt-%d", m.next)
	m.Events[id] = spec
	log.Printf("[Calendar] mock create %s %q at %s", id, spec.Summary, spec.Start)
	return id, nil
}

func (m *MockProvider) Update(ctx context.Context, eventID string, spec EventSpec) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, "update")
	if m.Err != nil {
		return "", m.Err
	}
	m.Events[eventID] = spec
	return eventID, nil
}

func (m *MockProvider) Delete(ctx context.Context, eventID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, "delete")
	if m.Err != nil {
		return m.Err
	}
	delete(m.Events, eventID)
	return nil
}

// SetErr swaps the failure mode between calls
func (m *MockProvider) SetErr(err error) {
	m.mu.Lock()
	m.Err = err
	m.mu.Unlock()
}

func (m *MockProvider) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Events)
}

func (m *MockProvider) Has(eventID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.Events[eventID]
	return ok
}
