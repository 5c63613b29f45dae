package db

import (
	"context"
	"time"
)

const insertTrigger = `
INSERT INTO impact_triggers (impact_id, source, recorded_at, payload)
VALUES ($1::text::uuid, $2, $3, $4::jsonb)
`

type InsertTriggerParams struct {
	ImpactID   string
	Source     string
	RecordedAt time.Time
	Payload    []byte
}

func (q *Queries) InsertTrigger(ctx context.Context, arg InsertTriggerParams) error {
	_, err := q.db.Exec(ctx, insertTrigger, arg.ImpactID, arg.Source, arg.RecordedAt, arg.Payload)
	return err
}

const listTriggers = `
SELECT payload FROM impact_triggers
WHERE source = $1 AND recorded_at >= $2
ORDER BY recorded_at
`

func (q *Queries) ListTriggers(ctx context.Context, source string, since time.Time) ([][]byte, error) {
	return q.listPayloads(ctx, listTriggers, source, since)
}

const insertPlan = `
INSERT INTO mitigation_plans (plan_id, source, state, version, payload)
VALUES ($1::text::uuid, $2, $3, $4, $5::jsonb)
`

type PlanParams struct {
	PlanID  string
	Source  string
	State   string
	Version int64
	Payload []byte
}

func (q *Queries) InsertPlan(ctx context.Context, arg PlanParams) error {
	_, err := q.db.Exec(ctx, insertPlan, arg.PlanID, arg.Source, arg.State, arg.Version, arg.Payload)
	return err
}

const getPlan = `SELECT payload FROM mitigation_plans WHERE plan_id = $1::text::uuid`

func (q *Queries) GetPlan(ctx context.Context, planID string) ([]byte, error) {
	return q.getPayload(ctx, getPlan, planID)
}

const findOpenPlan = `
SELECT payload FROM mitigation_plans
WHERE source = $1 AND state IN ('draft', 'in_progress')
LIMIT 1
`

func (q *Queries) FindOpenPlan(ctx context.Context, source string) ([]byte, error) {
	return q.getPayload(ctx, findOpenPlan, source)
}

const updatePlan = `
UPDATE mitigation_plans SET state = $3, version = $4, payload = $5::jsonb
WHERE plan_id = $1::text::uuid AND source = $2 AND version = $4 - 1
`

// UpdatePlan returns zero rows affected when the stored version is not Version-1.
func (q *Queries) UpdatePlan(ctx context.Context, arg PlanParams) (int64, error) {
	tag, err := q.db.Exec(ctx, updatePlan, arg.PlanID, arg.Source, arg.State, arg.Version, arg.Payload)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const planExists = `SELECT EXISTS (SELECT 1 FROM mitigation_plans WHERE plan_id = $1::text::uuid)`

func (q *Queries) PlanExists(ctx context.Context, planID string) (bool, error) {
	var exists bool
	err := q.db.QueryRow(ctx, planExists, planID).Scan(&exists)
	return exists, err
}
