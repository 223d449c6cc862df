package domain

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"pastebox/internal/apperr"
)

// Text bounds enforced at the API boundary. The body itself lives in the
// blob store, never on the entity.
const (
	MinTextLength = 1
	MaxTextLength = 4000
)

// Record is a shared piece of text: metadata here, body behind Locator.
type Record struct {
	id        uuid.UUID
	ownerID   uuid.UUID
	title     string
	locator   string
	private   bool
	createdAt time.Time
	deadline  time.Time
	likes     int64
	dislikes  int64
}

// RecordState is the flat form used to hydrate and persist a Record.
type RecordState struct {
	ID        uuid.UUID
	OwnerID   uuid.UUID
	Title     string
	Locator   string
	Private   bool
	CreatedAt time.Time
	Deadline  time.Time
	Likes     int64
	Dislikes  int64
}

// NewRecord builds a record for a freshly uploaded body.
func NewRecord(id, ownerID uuid.UUID, title *string, locator string, private bool, createdAt, deadline time.Time) (*Record, error) {
	var reasons []string
	if id == uuid.Nil {
		reasons = append(reasons, "record id is required")
	}
	if ownerID == uuid.Nil {
		reasons = append(reasons, "owner id is required")
	}
	if strings.TrimSpace(locator) == "" {
		reasons = append(reasons, "text locator is required")
	}
	if deadline.Before(createdAt) {
		reasons = append(reasons, "deadline must not be before creation time")
	}
	r := &Record{
		id:        id,
		ownerID:   ownerID,
		locator:   locator,
		private:   private,
		createdAt: createdAt.UTC(),
		deadline:  deadline.UTC(),
	}
	if title != nil {
		if err := validateTitle(*title); err != nil {
			reasons = append(reasons, apperr.ReasonsOf(err)...)
		}
		r.title = *title
	}
	if len(reasons) > 0 {
		return nil, apperr.Validation(reasons...)
	}
	return r, nil
}

// RestoreRecord hydrates a record from storage without re-validating it.
func RestoreRecord(s RecordState) *Record {
	return &Record{
		id:        s.ID,
		ownerID:   s.OwnerID,
		title:     s.Title,
		locator:   s.Locator,
		private:   s.Private,
		createdAt: s.CreatedAt.UTC(),
		deadline:  s.Deadline.UTC(),
		likes:     s.Likes,
		dislikes:  s.Dislikes,
	}
}

func (r *Record) State() RecordState {
	return RecordState{
		ID:        r.id,
		OwnerID:   r.ownerID,
		Title:     r.title,
		Locator:   r.locator,
		Private:   r.private,
		CreatedAt: r.createdAt,
		Deadline:  r.deadline,
		Likes:     r.likes,
		Dislikes:  r.dislikes,
	}
}

func (r *Record) ID() uuid.UUID        { return r.id }
func (r *Record) OwnerID() uuid.UUID   { return r.ownerID }
func (r *Record) Title() string        { return r.title }
func (r *Record) Locator() string      { return r.locator }
func (r *Record) Private() bool        { return r.private }
func (r *Record) CreatedAt() time.Time { return r.createdAt }
func (r *Record) Deadline() time.Time  { return r.deadline }
func (r *Record) Likes() int64         { return r.likes }
func (r *Record) Dislikes() int64      { return r.dislikes }

// StorageKey is the blob-store key of the record body.
func (r *Record) StorageKey() string { return r.id.String() }

// Expired reports whether the deadline has passed at now.
func (r *Record) Expired(now time.Time) bool {
	return now.After(r.deadline)
}

// Rename replaces the title.
func (r *Record) Rename(title string) error {
	if err := validateTitle(title); err != nil {
		return err
	}
	r.title = title
	return nil
}

// Reschedule moves the deadline; it may never precede creation.
func (r *Record) Reschedule(deadline time.Time) error {
	if deadline.Before(r.createdAt) {
		return apperr.Validation("deadline must not be before creation time")
	}
	r.deadline = deadline.UTC()
	return nil
}

func (r *Record) SetPrivate(private bool) { r.private = private }

// SetCounters adopts counters read back from an atomic increment.
func (r *Record) SetCounters(likes, dislikes int64) {
	if likes < 0 {
		likes = 0
	}
	if dislikes < 0 {
		dislikes = 0
	}
	r.likes, r.dislikes = likes, dislikes
}

func validateTitle(title string) error {
	n := utf8.RuneCountInString(title)
	if n < 1 || n > MaxFieldLength {
		return apperr.Validation("title must be between 1 and 200 characters")
	}
	return nil
}

// ValidateText checks the body bounds.
func ValidateText(text string) error {
	n := utf8.RuneCountInString(text)
	if n < MinTextLength || n > MaxTextLength {
		return apperr.Validation("text must be between 1 and 4000 characters")
	}
	return nil
}

// CanView reports whether requester may read r: public records are visible
// to everyone, private ones only to their owner. Admins get no override.
func CanView(r *Record, requester uuid.UUID) bool {
	if r == nil {
		return false
	}
	return !r.private || r.ownerID == requester
}
