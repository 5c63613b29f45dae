package domain

import "github.com/google/uuid"

// ID is an opaque 128-bit identifier for characters, regions, orders and audit records.
type ID = uuid.UUID

var NilID = uuid.Nil

func NewID() ID {
	return uuid.New()
}

func ParseID(s string) (ID, error) {
	return uuid.Parse(s)
}
