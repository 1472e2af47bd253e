package ids

import (
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// NewUUIDv7 generates a time-ordered UUID v7 for new rows.
func NewUUIDv7() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}

// NewEventID generates a ULID for a realtime change event.
func NewEventID() string {
	return ulid.Make().String()
}
