package domain

import (
	"time"

	"github.com/google/uuid"
)

// Event is something that happened to an aggregate.
type Event interface {
	EventName() string
}

// UserCreated is raised by CreateUser. The confirmation mail is sent from it.
type UserCreated struct {
	UserID            uuid.UUID
	Username          string
	Email             string
	ConfirmationToken string
	OccurredAt        time.Time
}

func (UserCreated) EventName() string { return "user.created" }
