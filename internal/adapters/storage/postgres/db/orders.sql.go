package db

import (
	"context"
	"time"
)

const getChecklist = `SELECT payload FROM checklists WHERE order_id = $1::text::uuid`

func (q *Queries) GetChecklist(ctx context.Context, orderID string) ([]byte, error) {
	return q.getPayload(ctx, getChecklist, orderID)
}

const insertChecklist = `
INSERT INTO checklists (order_id, payload)
VALUES ($1::text::uuid, $2::jsonb)
ON CONFLICT (order_id) DO NOTHING
`

func (q *Queries) InsertChecklist(ctx context.Context, orderID string, payload []byte) (int64, error) {
	tag, err := q.db.Exec(ctx, insertChecklist, orderID, payload)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const insertSanction = `
INSERT INTO sanctions (sanction_id, starts_at, ends_at, payload)
VALUES ($1::text::uuid, $2, $3, $4::jsonb)
`

type InsertSanctionParams struct {
	SanctionID string
	StartsAt   time.Time
	EndsAt     *time.Time
	Payload    []byte
}

func (q *Queries) InsertSanction(ctx context.Context, arg InsertSanctionParams) error {
	_, err := q.db.Exec(ctx, insertSanction, arg.SanctionID, arg.StartsAt, arg.EndsAt, arg.Payload)
	return err
}

const listActiveSanctions = `
SELECT payload FROM sanctions
WHERE starts_at <= $1 AND (ends_at IS NULL OR ends_at > $1)
ORDER BY starts_at
`

func (q *Queries) ListActiveSanctions(ctx context.Context, at time.Time) ([][]byte, error) {
	return q.listPayloads(ctx, listActiveSanctions, at)
}
