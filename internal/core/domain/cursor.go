package domain

import "time"

// Cursor marks how far classification has progressed on one branch: the
// newest push that has a stored outcome. It survives restarts so a monitor
// does not reclassify a head it already settled.
type Cursor struct {
	Branch    string    `json:"branch"`
	PushID    int       `json:"push_id"`
	Rev       string    `json:"rev"`
	UpdatedAt time.Time `json:"updated_at"`
}
