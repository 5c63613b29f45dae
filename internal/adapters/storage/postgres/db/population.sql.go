package db

import (
	"context"
	"time"
)

const insertSnapshot = `
INSERT INTO population_snapshots (city_id, taken_at, districts)
VALUES ($1, $2, $3::jsonb)
ON CONFLICT (city_id, taken_at) DO NOTHING
`

type InsertSnapshotParams struct {
	CityID    string
	TakenAt   time.Time
	Districts []byte
}

// InsertSnapshot returns the number of rows inserted; zero means the key was taken.
func (q *Queries) InsertSnapshot(ctx context.Context, arg InsertSnapshotParams) (int64, error) {
	tag, err := q.db.Exec(ctx, insertSnapshot, arg.CityID, arg.TakenAt, arg.Districts)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const getSnapshot = `
SELECT city_id, taken_at, districts
FROM population_snapshots
WHERE city_id = $1 AND taken_at = $2
`

func (q *Queries) GetSnapshot(ctx context.Context, cityID string, takenAt time.Time) (PopulationSnapshot, error) {
	row := q.db.QueryRow(ctx, getSnapshot, cityID, takenAt)
	var i PopulationSnapshot
	err := row.Scan(&i.CityID, &i.TakenAt, &i.Districts)
	return i, err
}

const insertWorldEvent = `
INSERT INTO world_events (event_id, city_id, category, title, starts_at, duration_minutes)
VALUES ($1::text::uuid, $2, $3, $4, $5, $6)
`

func (q *Queries) InsertWorldEvent(ctx context.Context, arg WorldEvent) error {
	_, err := q.db.Exec(ctx, insertWorldEvent,
		arg.EventID,
		arg.CityID,
		arg.Category,
		arg.Title,
		arg.StartsAt,
		arg.DurationMinutes,
	)
	return err
}

const listWorldEvents = `
SELECT event_id::text, city_id, category, title, starts_at, duration_minutes
FROM world_events
WHERE city_id = $1
  AND starts_at <= $3
  AND starts_at + make_interval(mins => duration_minutes) >= $2
ORDER BY starts_at
`

type ListWorldEventsParams struct {
	CityID string
	From   time.Time
	To     time.Time
}

func (q *Queries) ListWorldEvents(ctx context.Context, arg ListWorldEventsParams) ([]WorldEvent, error) {
	rows, err := q.db.Query(ctx, listWorldEvents, arg.CityID, arg.From, arg.To)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []WorldEvent
	for rows.Next() {
		var i WorldEvent
		if err := rows.Scan(
			&i.EventID,
			&i.CityID,
			&i.Category,
			&i.Title,
			&i.StartsAt,
			&i.DurationMinutes,
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
