package db

import (
	"context"
	"time"
)

const regionColumns = `region_id::text, current_owner, control_score::text, last_shift_at, version, pending`

const getRegion = `SELECT ` + regionColumns + ` FROM regions WHERE region_id = $1::text::uuid`

func (q *Queries) GetRegion(ctx context.Context, regionID string) (Region, error) {
	row := q.db.QueryRow(ctx, getRegion, regionID)
	var i Region
	err := row.Scan(
		&i.RegionID,
		&i.CurrentOwner,
		&i.ControlScore,
		&i.LastShiftAt,
		&i.Version,
		&i.Pending,
	)
	return i, err
}

const upsertRegion = `
INSERT INTO regions (region_id, current_owner, control_score, last_shift_at, version)
VALUES ($1::text::uuid, $2, $3::text::numeric, $4, $5)
ON CONFLICT (region_id) DO UPDATE SET
    current_owner = EXCLUDED.current_owner,
    control_score = EXCLUDED.control_score,
    last_shift_at = EXCLUDED.last_shift_at,
    version = EXCLUDED.version
`

type UpsertRegionParams struct {
	RegionID     string
	CurrentOwner string
	ControlScore string
	LastShiftAt  *time.Time
	Version      int64
}

func (q *Queries) UpsertRegion(ctx context.Context, arg UpsertRegionParams) error {
	_, err := q.db.Exec(ctx, upsertRegion,
		arg.RegionID,
		arg.CurrentOwner,
		arg.ControlScore,
		arg.LastShiftAt,
		arg.Version,
	)
	return err
}

// swapRegion updates the region only at the expected version and appends the
// history row in the same statement.
const swapRegion = `
WITH updated AS (
    UPDATE regions SET
        current_owner = $2,
        control_score = $3::text::numeric,
        last_shift_at = $4,
        version = $5,
        pending = $7::jsonb,
        pending_due = $8
    WHERE region_id = $1::text::uuid AND version = $6
    RETURNING region_id
)
INSERT INTO control_history (event_id, region_id, recorded_at, payload)
SELECT $9::text::uuid, region_id, $10, $11::jsonb FROM updated
`

type SwapRegionParams struct {
	RegionID        string
	CurrentOwner    string
	ControlScore    string
	LastShiftAt     *time.Time
	Version         int64
	ExpectedVersion int64
	Pending         []byte
	PendingDue      *time.Time
	EventID         string
	RecordedAt      time.Time
	Event           []byte
}

// SwapRegion returns the number of history rows written: one on success, zero on a version mismatch.
func (q *Queries) SwapRegion(ctx context.Context, arg SwapRegionParams) (int64, error) {
	tag, err := q.db.Exec(ctx, swapRegion,
		arg.RegionID,
		arg.CurrentOwner,
		arg.ControlScore,
		arg.LastShiftAt,
		arg.Version,
		arg.ExpectedVersion,
		arg.Pending,
		arg.PendingDue,
		arg.EventID,
		arg.RecordedAt,
		arg.Event,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const listRegionsWithDueShifts = `SELECT ` + regionColumns + ` FROM regions WHERE pending_due IS NOT NULL AND pending_due <= $1 ORDER BY pending_due`

func (q *Queries) ListRegionsWithDueShifts(ctx context.Context, now time.Time) ([]Region, error) {
	rows, err := q.db.Query(ctx, listRegionsWithDueShifts, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Region
	for rows.Next() {
		var i Region
		if err := rows.Scan(
			&i.RegionID,
			&i.CurrentOwner,
			&i.ControlScore,
			&i.LastShiftAt,
			&i.Version,
			&i.Pending,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listControlHistory = `
SELECT payload FROM control_history
WHERE region_id = $1::text::uuid
ORDER BY recorded_at, event_id
`

func (q *Queries) ListControlHistory(ctx context.Context, regionID string) ([][]byte, error) {
	return q.listPayloads(ctx, listControlHistory, regionID)
}

func (q *Queries) listPayloads(ctx context.Context, query string, args ...interface{}) ([][]byte, error) {
	rows, err := q.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items [][]byte
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		items = append(items, payload)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (q *Queries) getPayload(ctx context.Context, query string, args ...interface{}) ([]byte, error) {
	var payload []byte
	err := q.db.QueryRow(ctx, query, args...).Scan(&payload)
	return payload, err
}
