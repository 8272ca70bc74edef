package models

import "time"

// RunRecord is one pipeline run mirrored into the local transcript store.
// A session id may span multiple runs.
type RunRecord struct {
	Id        int64
	SessionId string
	Request   string
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TurnRecord mirrors one persisted stage turn: the stage's input payload and
// its terminal result, ordered by seq within a run.
type TurnRecord struct {
	Id        int64
	RunId     int64
	Stage     string
	Input     string
	Result    string
	Seq       int
	CreatedAt time.Time
}
