package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pastebox/internal/apperr"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newAlice(t *testing.T) *User {
	t.Helper()
	u, err := CreateUser("alice", "$argon2id$hash", "alice@example.com", RoleUser, "tok", t0)
	require.NoError(t, err)
	return u
}

func TestValueObjects(t *testing.T) {
	name, err := NewUsername("  bob  ")
	require.NoError(t, err)
	assert.Equal(t, "bob", name.String())

	_, err = NewUsername("   ")
	assert.True(t, apperr.IsCode(err, apperr.CodeValidation))
	_, err = NewUsername(strings.Repeat("a", 201))
	assert.Error(t, err)

	for _, bad := range []string{"not-an-email", "alice@localhost", "@example.com", "alice@", "a b@example.com"} {
		_, err = NewEmail(bad, false)
		assert.Equal(t, []string{"email has an invalid format"}, apperr.ReasonsOf(err), bad)
	}
	_, err = NewEmail(strings.Repeat("a", 190)+"@example.com", false)
	assert.Equal(t, []string{"email must be at most 200 characters"}, apperr.ReasonsOf(err))
	trimmed, err := NewEmail("  carol@example.com ", false)
	require.NoError(t, err)
	assert.Equal(t, "carol@example.com", trimmed.String())
	mail, err := NewEmail("a.b+c@mail.example.org", true)
	require.NoError(t, err)
	assert.True(t, mail.Confirmed())

	_, err = NewPasswordHash("")
	assert.Error(t, err)

	role, err := ParseRole("admin")
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, role)
	_, err = ParseRole("root")
	assert.Error(t, err)
}

func TestCreateUserAggregatesReasons(t *testing.T) {
	_, err := CreateUser("bad name!", "", "nope", Role("x"), "", t0)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))
	assert.Len(t, apperr.ReasonsOf(err), 4)
}

func TestCreateUserRaisesEvent(t *testing.T) {
	u := newAlice(t)
	assert.NotEqual(t, uuid.Nil, u.ID())
	assert.False(t, u.Email().Confirmed())

	events := u.PullEvents()
	require.Len(t, events, 1)
	created, ok := events[0].(UserCreated)
	require.True(t, ok)
	assert.Equal(t, u.ID(), created.UserID)
	assert.Equal(t, "tok", created.ConfirmationToken)
	assert.Empty(t, u.PullEvents())
}

func TestRecordsAreCopyOnWrite(t *testing.T) {
	u := newAlice(t)
	title := "first"
	r, err := NewRecord(uuid.New(), u.ID(), &title, "bolt://records/x", false, t0, t0.Add(time.Hour))
	require.NoError(t, err)

	before := u.Records()
	require.NoError(t, u.AddRecord(r, t0))
	assert.Empty(t, before)
	after := u.Records()
	require.Len(t, after, 1)

	err = u.AddRecord(r, t0)
	assert.True(t, apperr.IsCode(err, apperr.CodeConflict))

	_, err = u.RemoveRecord(r.ID(), t0)
	require.NoError(t, err)
	assert.Len(t, after, 1)
	assert.Empty(t, u.Records())

	_, err = u.RemoveRecord(r.ID(), t0)
	assert.True(t, apperr.IsCode(err, apperr.CodeNotFound))
}

func TestAddRecordRejectsForeignOwner(t *testing.T) {
	u := newAlice(t)
	r, err := NewRecord(uuid.New(), uuid.New(), nil, "bolt://records/x", false, t0, t0)
	require.NoError(t, err)
	assert.Error(t, u.AddRecord(r, t0))
}

func TestConfirmEmail(t *testing.T) {
	u := newAlice(t)
	err := u.ConfirmEmail("wrong", t0)
	assert.True(t, apperr.IsCode(err, apperr.CodeAuthentication))
	assert.False(t, u.Email().Confirmed())

	require.NoError(t, u.ConfirmEmail("tok", t0))
	assert.True(t, u.Email().Confirmed())
}

func TestUpdateEmailResetsConfirmation(t *testing.T) {
	u := newAlice(t)
	require.NoError(t, u.ConfirmEmail("tok", t0))

	require.NoError(t, u.UpdateEmail("alice@example.com", "other", t0))
	assert.True(t, u.Email().Confirmed())

	later := t0.Add(time.Minute)
	require.NoError(t, u.UpdateEmail("alice@new.example.com", "tok2", later))
	assert.False(t, u.Email().Confirmed())
	assert.Equal(t, "tok2", u.ConfirmationToken())
	assert.Equal(t, later, u.UpdatedAt())
}

func TestNewRecordValidation(t *testing.T) {
	long := strings.Repeat("t", 201)
	_, err := NewRecord(uuid.New(), uuid.New(), &long, "s3://b/k", false, t0, t0.Add(-time.Second))
	require.Error(t, err)
	assert.Len(t, apperr.ReasonsOf(err), 2)

	r, err := NewRecord(uuid.New(), uuid.New(), nil, "s3://b/k", true, t0, t0)
	require.NoError(t, err)
	assert.Equal(t, "", r.Title())
	assert.False(t, r.Expired(t0))
	assert.True(t, r.Expired(t0.Add(time.Nanosecond)))

	assert.Error(t, r.Reschedule(t0.Add(-time.Hour)))
	require.NoError(t, r.Reschedule(t0.Add(time.Hour)))
}

func TestValidateText(t *testing.T) {
	cases := map[int]bool{0: false, 1: true, 4000: true, 4001: false}
	for n, ok := range cases {
		err := ValidateText(strings.Repeat("x", n))
		assert.Equal(t, ok, err == nil, "length %d", n)
	}
}

func TestCanView(t *testing.T) {
	owner := uuid.New()
	public := RestoreRecord(RecordState{ID: uuid.New(), OwnerID: owner})
	private := RestoreRecord(RecordState{ID: uuid.New(), OwnerID: owner, Private: true})

	assert.True(t, CanView(public, uuid.Nil))
	assert.True(t, CanView(public, uuid.New()))
	assert.True(t, CanView(private, owner))
	assert.False(t, CanView(private, uuid.New()))
	assert.False(t, CanView(private, uuid.Nil))
	assert.False(t, CanView(nil, owner))
}

func TestStateRoundTrip(t *testing.T) {
	u := newAlice(t)
	r, err := NewRecord(uuid.New(), u.ID(), nil, "s3://b/k", false, t0, t0.Add(time.Hour))
	require.NoError(t, err)
	require.NoError(t, u.AddRecord(r, t0))

	restored := RestoreUser(u.State())
	assert.Equal(t, u.State(), restored.State())
	got, ok := restored.Record(r.ID())
	require.True(t, ok)
	assert.Equal(t, r.State(), got.State())
}
