package progression

import "time"

const dayLayout = "2006-01-02"

// dayClock maps instants to ledger days that roll over at a fixed local hour.
type dayClock struct {
	loc  *time.Location
	hour int
}

func (c dayClock) key(t time.Time) string {
	return t.In(c.loc).Add(-time.Duration(c.hour) * time.Hour).Format(dayLayout)
}
