package models

import "time"

// EventType is the kind of row change carried by a ChangeEvent.
type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
)

// TableMessages is the only table the realtime channel reports on.
const TableMessages = "messages"

// ChangeEvent is a row-level change pushed by the realtime channel.
type ChangeEvent struct {
	ID         string    `json:"id"` // ULID
	Type       EventType `json:"type"`
	Table      string    `json:"table"`
	Record     Message   `json:"record"`
	CommitTime time.Time `json:"commit_time"`
}
