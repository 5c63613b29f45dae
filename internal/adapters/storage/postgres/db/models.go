package db

import "time"

// Numeric columns cross the driver as text so decimal precision is never lost.

type SkillProgress struct {
	CharacterID        string
	SkillID            string
	XPTotal            string
	DayTotal           string
	FatigueScore       string
	LastActionAt       time.Time
	Day                string
	SoftCapNotifiedDay string
}

type PopulationSnapshot struct {
	CityID    string
	TakenAt   time.Time
	Districts []byte
}

type WorldEvent struct {
	EventID         string
	CityID          string
	Category        string
	Title           string
	StartsAt        time.Time
	DurationMinutes int32
}

type Region struct {
	RegionID     string
	CurrentOwner string
	ControlScore string
	LastShiftAt  *time.Time
	Version      int64
	Pending      []byte
}
