package domain

import (
	"crypto/subtle"
	"time"

	"github.com/google/uuid"

	"pastebox/internal/apperr"
)

// User owns a collection of records. The collection is replaced on every
// change so slices handed out earlier never observe later mutations.
type User struct {
	id                uuid.UUID
	username          Username
	password          PasswordHash
	email             Email
	confirmationToken string
	role              Role
	createdAt         time.Time
	updatedAt         time.Time
	records           []*Record
	events            []Event
}

// UserState is the flat form used to hydrate and persist a User.
type UserState struct {
	ID                uuid.UUID
	Username          string
	PasswordHash      string
	Email             string
	EmailConfirmed    bool
	ConfirmationToken string
	Role              Role
	CreatedAt         time.Time
	UpdatedAt         time.Time
	Records           []RecordState
}

// CreateUser validates every field, collecting all failures, and records a
// UserCreated event.
func CreateUser(username, passwordHash, email string, role Role, confirmationToken string, now time.Time) (*User, error) {
	name, errName := NewUsername(username)
	if errName == nil && !name.IsAlphanumeric() {
		errName = apperr.Validation("username must contain only letters and digits")
	}
	hash, errHash := NewPasswordHash(passwordHash)
	mail, errMail := NewEmail(email, false)
	var errRole error
	if !role.Valid() {
		errRole = apperr.Validation("role must be one of User, Admin")
	}
	if err := apperr.Merge(errName, errHash, errMail, errRole); err != nil {
		return nil, err
	}

	now = now.UTC()
	u := &User{
		id:                uuid.New(),
		username:          name,
		password:          hash,
		email:             mail,
		confirmationToken: confirmationToken,
		role:              role,
		createdAt:         now,
		updatedAt:         now,
	}
	u.events = append(u.events, UserCreated{
		UserID:            u.id,
		Username:          name.String(),
		Email:             mail.String(),
		ConfirmationToken: confirmationToken,
		OccurredAt:        now,
	})
	return u, nil
}

// RestoreUser hydrates a user from storage without re-validating it.
func RestoreUser(s UserState) *User {
	u := &User{
		id:                s.ID,
		username:          Username{value: s.Username},
		password:          PasswordHash{value: s.PasswordHash},
		email:             Email{address: s.Email, confirmed: s.EmailConfirmed},
		confirmationToken: s.ConfirmationToken,
		role:              s.Role,
		createdAt:         s.CreatedAt.UTC(),
		updatedAt:         s.UpdatedAt.UTC(),
	}
	if len(s.Records) > 0 {
		u.records = make([]*Record, 0, len(s.Records))
		for _, rs := range s.Records {
			u.records = append(u.records, RestoreRecord(rs))
		}
	}
	return u
}

func (u *User) State() UserState {
	s := UserState{
		ID:                u.id,
		Username:          u.username.String(),
		PasswordHash:      u.password.String(),
		Email:             u.email.String(),
		EmailConfirmed:    u.email.Confirmed(),
		ConfirmationToken: u.confirmationToken,
		Role:              u.role,
		CreatedAt:         u.createdAt,
		UpdatedAt:         u.updatedAt,
	}
	for _, r := range u.records {
		s.Records = append(s.Records, r.State())
	}
	return s
}

func (u *User) ID() uuid.UUID              { return u.id }
func (u *User) Username() Username         { return u.username }
func (u *User) PasswordHash() PasswordHash { return u.password }
func (u *User) Email() Email               { return u.email }
func (u *User) ConfirmationToken() string  { return u.confirmationToken }
func (u *User) Role() Role                 { return u.role }
func (u *User) CreatedAt() time.Time       { return u.createdAt }
func (u *User) UpdatedAt() time.Time       { return u.updatedAt }

// Records returns a copy of the owned collection.
func (u *User) Records() []*Record {
	out := make([]*Record, len(u.records))
	copy(out, u.records)
	return out
}

// Record looks up an owned record by id.
func (u *User) Record(id uuid.UUID) (*Record, bool) {
	for _, r := range u.records {
		if r.id == id {
			return r, true
		}
	}
	return nil, false
}

// AddRecord appends r to the owned collection.
func (u *User) AddRecord(r *Record, now time.Time) error {
	if r == nil {
		return apperr.Validation("record is required")
	}
	if r.ownerID != u.id {
		return apperr.Validation("record belongs to another user")
	}
	if _, ok := u.Record(r.id); ok {
		return apperr.Conflict("record already exists")
	}
	next := make([]*Record, len(u.records), len(u.records)+1)
	copy(next, u.records)
	u.records = append(next, r)
	u.touch(now)
	return nil
}

// RemoveRecord drops the record with id from the owned collection.
func (u *User) RemoveRecord(id uuid.UUID, now time.Time) (*Record, error) {
	idx := -1
	for i, r := range u.records {
		if r.id == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, apperr.NotFound("Paste not found")
	}
	removed := u.records[idx]
	next := make([]*Record, 0, len(u.records)-1)
	next = append(next, u.records[:idx]...)
	next = append(next, u.records[idx+1:]...)
	u.records = next
	u.touch(now)
	return removed, nil
}

func (u *User) UpdateUsername(raw string, now time.Time) error {
	name, err := NewUsername(raw)
	if err != nil {
		return err
	}
	u.username = name
	u.touch(now)
	return nil
}

func (u *User) UpdatePassword(hashed string, now time.Time) error {
	hash, err := NewPasswordHash(hashed)
	if err != nil {
		return err
	}
	u.password = hash
	u.touch(now)
	return nil
}

// UpdateEmail replaces the address. A changed address is unconfirmed and
// gets the new confirmation token.
func (u *User) UpdateEmail(raw, confirmationToken string, now time.Time) error {
	mail, err := NewEmail(raw, false)
	if err != nil {
		return err
	}
	if mail.address == u.email.address {
		return nil
	}
	u.email = mail
	u.confirmationToken = confirmationToken
	u.touch(now)
	return nil
}

func (u *User) UpdateRole(role Role, now time.Time) error {
	if !role.Valid() {
		return apperr.Validation("role must be one of User, Admin")
	}
	u.role = role
	u.touch(now)
	return nil
}

// ConfirmEmail marks the address confirmed when token matches.
func (u *User) ConfirmEmail(token string, now time.Time) error {
	if token == "" || u.confirmationToken == "" ||
		subtle.ConstantTimeCompare([]byte(token), []byte(u.confirmationToken)) != 1 {
		return apperr.Authentication("token mismatch")
	}
	u.email.confirmed = true
	u.touch(now)
	return nil
}

// PullEvents returns and clears the recorded events.
func (u *User) PullEvents() []Event {
	ev := u.events
	u.events = nil
	return ev
}

func (u *User) touch(now time.Time) {
	u.updatedAt = now.UTC()
}
