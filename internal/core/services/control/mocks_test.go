package control

import (
	"context"
	"sync"
	"time"

	"world-state-engine/internal/core/domain"
)

type mockSink struct {
	mu     sync.Mutex
	events []domain.Event
}

func (m *mockSink) Publish(ctx context.Context, event domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *mockSink) kinds() []domain.EventKind {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.EventKind
	for _, e := range m.events {
		out = append(out, e.Kind)
	}
	return out
}

type mockGate struct {
	checkFunc func(ctx context.Context, engine domain.Engine) error
}

func (m *mockGate) Check(ctx context.Context, engine domain.Engine) error {
	if m.checkFunc != nil {
		return m.checkFunc(ctx, engine)
	}
	return nil
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }
