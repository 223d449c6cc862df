package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"pastebox/internal/dbx"
	"pastebox/internal/domain"
)

var (
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a unique constraint is violated.
	ErrConflict = errors.New("conflict")
)

// DefaultPageLimit and MaxPageLimit bound list queries.
const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// Page selects a window of a list query. Page numbers start at 1.
type Page struct {
	Number int
	Limit  int
}

// Normalize clamps the page into its valid range.
func (p Page) Normalize() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	return p
}

func (p Page) Offset() int {
	n := p.Normalize()
	return (n.Number - 1) * n.Limit
}

// Counter names a reaction column.
type Counter string

const (
	CounterLikes    Counter = "likes"
	CounterDislikes Counter = "dislikes"
)

// UserRepository persists users. GetByID and GetByUsername return the owned
// records too; List does not.
type UserRepository interface {
	Create(ctx context.Context, u domain.UserState) error
	Update(ctx context.Context, u domain.UserState) error
	GetByID(ctx context.Context, id uuid.UUID) (domain.UserState, error)
	GetByUsername(ctx context.Context, username string) (domain.UserState, error)
	List(ctx context.Context, page Page) ([]domain.UserState, error)
	DeleteByIDs(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error)
	DeleteByUsername(ctx context.Context, username string) (uuid.UUID, error)
}

// RecordRepository persists record metadata.
type RecordRepository interface {
	Create(ctx context.Context, r domain.RecordState) error
	Update(ctx context.Context, r domain.RecordState) error
	GetByID(ctx context.Context, id uuid.UUID) (domain.RecordState, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.RecordState, error)
	ListPublic(ctx context.Context, now time.Time, page Page) ([]domain.RecordState, error)
	Increment(ctx context.Context, id uuid.UUID, c Counter) (likes, dislikes int64, err error)
	ListExpired(ctx context.Context, before time.Time, limit int) ([]domain.RecordState, error)
	Existing(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]bool, error)
	DeleteByIDs(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error)
}

// Manager vends repositories bound to a DBTX, so callers decide whether they
// run against the pool or inside dbx.WithTx.
type Manager interface {
	DB() *sql.DB
	Users(db dbx.DBTX) UserRepository
	Records(db dbx.DBTX) RecordRepository
	Migrate(ctx context.Context) error
	Close() error
}
