package entity

import (
	"time"

	"github.com/google/uuid"
)

// DomainEvent is an immutable, timestamped fact emitted by an aggregate
// mutation. Events are buffered on the aggregate and published after the
// owning transaction commits.
type DomainEvent interface {
	// Name identifies the event type on the wire.
	Name() string
	// OccurredAt is the creation timestamp. Publication order is ascending
	// OccurredAt across all aggregates touched in a transaction.
	OccurredAt() time.Time
}

// UserCreated is emitted once by the NewUser factory.
type UserCreated struct {
	At     time.Time `json:"at"`
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
	Kind   UserKind  `json:"kind"`
}

func (e UserCreated) Name() string          { return "user.created" }
func (e UserCreated) OccurredAt() time.Time { return e.At }
