package progression

import (
	"context"
	"sync"
	"time"

	"world-state-engine/internal/config"
	"world-state-engine/internal/core/domain"

	"github.com/shopspring/decimal"
)

type mockCatalog struct {
	getSkillFunc func(ctx context.Context, skillID string) (*domain.SkillDefinition, error)
}

func (m *mockCatalog) GetSkill(ctx context.Context, skillID string) (*domain.SkillDefinition, error) {
	if m.getSkillFunc != nil {
		return m.getSkillFunc(ctx, skillID)
	}
	return nil, domain.ErrNotFound
}

// staticSkills builds a catalog from skill id -> soft cap.
func staticSkills(caps map[string]int64) *mockCatalog {
	return &mockCatalog{
		getSkillFunc: func(ctx context.Context, skillID string) (*domain.SkillDefinition, error) {
			softCap, ok := caps[skillID]
			if !ok {
				return nil, domain.ErrNotFound
			}
			return &domain.SkillDefinition{SkillID: skillID, Name: skillID, SoftCap: decimal.NewFromInt(softCap)}, nil
		},
	}
}

type mockSink struct {
	mu     sync.Mutex
	events []domain.Event
	err    error
}

func (m *mockSink) Publish(ctx context.Context, event domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return m.err
}

func (m *mockSink) kinds() []domain.EventKind {
	m.mu.Lock()
	defer m.mu.Unlock()
	kinds := make([]domain.EventKind, 0, len(m.events))
	for _, e := range m.events {
		kinds = append(kinds, e.Kind)
	}
	return kinds
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

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func testPolicy() config.ProgressionPolicy {
	return config.ProgressionPolicy{
		DecayCurve: []config.CurvePoint{
			{Ratio: 0, Value: 1},
			{Ratio: 0.5, Value: 0.9},
			{Ratio: 1, Value: 0.5},
		},
		TailValue:       0.5,
		TailSlope:       2,
		FatigueWeight:   0.01,
		DayRolloverHour: 4,
		TimeZone:        "UTC",
		CeilingFactor:   1.5,
		EntryRetention:  48 * time.Hour,
		Recommendations: []string{"rest"},
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
