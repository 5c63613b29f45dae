package population

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

type mockGate struct {
	checkFunc func(ctx context.Context, engine domain.Engine) error
}

func (m *mockGate) Check(ctx context.Context, engine domain.Engine) error {
	if m.checkFunc != nil {
		return m.checkFunc(ctx, engine)
	}
	return nil
}

type mockSnapshotStore struct {
	insertSnapshotFunc   func(ctx context.Context, snapshot domain.PopulationSnapshot) error
	getSnapshotFunc      func(ctx context.Context, cityID string, at time.Time) (*domain.PopulationSnapshot, error)
	insertWorldEventFunc func(ctx context.Context, event domain.WorldEvent) error
	listWorldEventsFunc  func(ctx context.Context, cityID string, from, to time.Time) ([]domain.WorldEvent, error)
}

func (m *mockSnapshotStore) InsertSnapshot(ctx context.Context, snapshot domain.PopulationSnapshot) error {
	if m.insertSnapshotFunc != nil {
		return m.insertSnapshotFunc(ctx, snapshot)
	}
	return nil
}

func (m *mockSnapshotStore) GetSnapshot(ctx context.Context, cityID string, at time.Time) (*domain.PopulationSnapshot, error) {
	if m.getSnapshotFunc != nil {
		return m.getSnapshotFunc(ctx, cityID, at)
	}
	return nil, domain.ErrSnapshotNotFound
}

func (m *mockSnapshotStore) InsertWorldEvent(ctx context.Context, event domain.WorldEvent) error {
	if m.insertWorldEventFunc != nil {
		return m.insertWorldEventFunc(ctx, event)
	}
	return nil
}

func (m *mockSnapshotStore) ListWorldEvents(ctx context.Context, cityID string, from, to time.Time) ([]domain.WorldEvent, error) {
	if m.listWorldEventsFunc != nil {
		return m.listWorldEventsFunc(ctx, cityID, from, to)
	}
	return nil, nil
}
