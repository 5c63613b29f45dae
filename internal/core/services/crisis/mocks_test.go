package crisis

import (
	"context"
	"sync"
	"time"

	"world-state-engine/internal/adapters/storage/memory"
	"world-state-engine/internal/core/domain"
)

type mockStore struct {
	*memory.Store
	insertTriggerFunc func(ctx context.Context, trigger domain.Trigger) error
}

func (m *mockStore) InsertTrigger(ctx context.Context, trigger domain.Trigger) error {
	if m.insertTriggerFunc != nil {
		if err := m.insertTriggerFunc(ctx, trigger); err != nil {
			return err
		}
	}
	return m.Store.InsertTrigger(ctx, trigger)
}

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

func (m *mockSink) ofKind(kind domain.EventKind) []domain.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Event
	for _, e := range m.events {
		if e.Kind == kind {
			out = append(out, e)
		}
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
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
