package db

import (
	"context"
	"time"
)

type CommandParams struct {
	CommandID string
	Status    string
	StartAt   time.Time
	Payload   []byte
}

const insertCommand = `
INSERT INTO maintenance_commands (command_id, status, start_at, payload)
VALUES ($1::text::uuid, $2, $3, $4::jsonb)
`

func (q *Queries) InsertCommand(ctx context.Context, arg CommandParams) error {
	_, err := q.db.Exec(ctx, insertCommand, arg.CommandID, arg.Status, arg.StartAt, arg.Payload)
	return err
}

const getCommand = `SELECT payload FROM maintenance_commands WHERE command_id = $1::text::uuid`

func (q *Queries) GetCommand(ctx context.Context, commandID string) ([]byte, error) {
	return q.getPayload(ctx, getCommand, commandID)
}

const listOpenCommands = `
SELECT payload FROM maintenance_commands
WHERE status IN ('accepted', 'in_progress')
ORDER BY start_at
`

func (q *Queries) ListOpenCommands(ctx context.Context) ([][]byte, error) {
	return q.listPayloads(ctx, listOpenCommands)
}

const updateCommand = `
UPDATE maintenance_commands SET status = $2, start_at = $3, payload = $4::jsonb
WHERE command_id = $1::text::uuid
`

func (q *Queries) UpdateCommand(ctx context.Context, arg CommandParams) (int64, error) {
	tag, err := q.db.Exec(ctx, updateCommand, arg.CommandID, arg.Status, arg.StartAt, arg.Payload)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
