package db

import (
	"context"
	"time"
)

const getSkillProgress = `
SELECT character_id::text, skill_id, xp_total::text, day_total::text, fatigue_score::text,
       last_action_at, day, soft_cap_notified_day
FROM skill_progress
WHERE character_id = $1::text::uuid
`

func (q *Queries) GetSkillProgress(ctx context.Context, characterID string) ([]SkillProgress, error) {
	rows, err := q.db.Query(ctx, getSkillProgress, characterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []SkillProgress
	for rows.Next() {
		var i SkillProgress
		if err := rows.Scan(
			&i.CharacterID,
			&i.SkillID,
			&i.XPTotal,
			&i.DayTotal,
			&i.FatigueScore,
			&i.LastActionAt,
			&i.Day,
			&i.SoftCapNotifiedDay,
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

const lockCharacter = `
SELECT pg_advisory_xact_lock(hashtextextended($1::text, 0))
`

// LockCharacter takes a transaction-scoped advisory lock keyed by character id.
func (q *Queries) LockCharacter(ctx context.Context, characterID string) error {
	_, err := q.db.Exec(ctx, lockCharacter, characterID)
	return err
}

const upsertSkillProgress = `
INSERT INTO skill_progress (character_id, skill_id, xp_total, day_total, fatigue_score, last_action_at, day, soft_cap_notified_day)
SELECT c::uuid, s, x::numeric, d::numeric, f::numeric, l, dk, n
FROM unnest($1::text[], $2::text[], $3::text[], $4::text[], $5::text[], $6::timestamptz[], $7::text[], $8::text[])
    AS t(c, s, x, d, f, l, dk, n)
ON CONFLICT (character_id, skill_id) DO UPDATE SET
    xp_total = EXCLUDED.xp_total,
    day_total = EXCLUDED.day_total,
    fatigue_score = EXCLUDED.fatigue_score,
    last_action_at = EXCLUDED.last_action_at,
    day = EXCLUDED.day,
    soft_cap_notified_day = EXCLUDED.soft_cap_notified_day
`

type UpsertSkillProgressParams struct {
	CharacterIDs        []string
	SkillIDs            []string
	XPTotals            []string
	DayTotals           []string
	FatigueScores       []string
	LastActionAts       []time.Time
	Days                []string
	SoftCapNotifiedDays []string
}

// UpsertSkillProgress writes every row in one statement so a batch is stored atomically.
func (q *Queries) UpsertSkillProgress(ctx context.Context, arg UpsertSkillProgressParams) error {
	_, err := q.db.Exec(ctx, upsertSkillProgress,
		arg.CharacterIDs,
		arg.SkillIDs,
		arg.XPTotals,
		arg.DayTotals,
		arg.FatigueScores,
		arg.LastActionAts,
		arg.Days,
		arg.SoftCapNotifiedDays,
	)
	return err
}

const resetFatigue = `
INSERT INTO skill_progress (character_id, skill_id, last_action_at)
VALUES ($1::text::uuid, $2, $3)
ON CONFLICT (character_id, skill_id) DO UPDATE SET fatigue_score = 0
`

type ResetFatigueParams struct {
	CharacterID string
	SkillID     string
	At          time.Time
}

func (q *Queries) ResetFatigue(ctx context.Context, arg ResetFatigueParams) error {
	_, err := q.db.Exec(ctx, resetFatigue, arg.CharacterID, arg.SkillID, arg.At)
	return err
}
