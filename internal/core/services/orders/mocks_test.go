package orders

import (
	"context"
	"sync"
	"time"

	"world-state-engine/internal/adapters/storage/memory"
	"world-state-engine/internal/core/domain"
)

// mockStore serves from memory unless saveChecklistFunc is set.
type mockStore struct {
	*memory.Store
	saveChecklistFunc func(ctx context.Context, checklist domain.ValidationChecklist) (*domain.ValidationChecklist, error)
}

func (m *mockStore) SaveChecklist(ctx context.Context, checklist domain.ValidationChecklist) (*domain.ValidationChecklist, error) {
	if m.saveChecklistFunc != nil {
		return m.saveChecklistFunc(ctx, checklist)
	}
	return m.Store.SaveChecklist(ctx, checklist)
}

type mockCatalog struct {
	getZoneFunc     func(ctx context.Context, zoneID string) (*domain.ZoneDefinition, error)
	getTemplateFunc func(ctx context.Context, templateCode string) (*domain.TemplateDefinition, error)
}

func (m *mockCatalog) GetZone(ctx context.Context, zoneID string) (*domain.ZoneDefinition, error) {
	if m.getZoneFunc != nil {
		return m.getZoneFunc(ctx, zoneID)
	}
	return nil, domain.ErrNotFound
}

func (m *mockCatalog) GetTemplate(ctx context.Context, templateCode string) (*domain.TemplateDefinition, error) {
	if m.getTemplateFunc != nil {
		return m.getTemplateFunc(ctx, templateCode)
	}
	return nil, domain.ErrNotFound
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

func (m *mockSink) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
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
