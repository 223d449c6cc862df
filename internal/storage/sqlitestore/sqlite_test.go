package sqlitestore

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pastebox/internal/dbx"
	"pastebox/internal/domain"
	"pastebox/internal/storage"
	"pastebox/internal/storage/sqlstore"
)

func openStore(t *testing.T) *sqlstore.Manager {
	t.Helper()
	m, err := Open(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	if err := m.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return m
}

func seedUser(t *testing.T, m *sqlstore.Manager, name string) domain.UserState {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	u := domain.UserState{
		ID: uuid.New(), Username: name, PasswordHash: "h", Email: name + "@example.com",
		ConfirmationToken: "tok", Role: domain.RoleUser, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, m.Users(m.DB()).Create(context.Background(), u))
	return u
}

func seedRecord(t *testing.T, m *sqlstore.Manager, owner uuid.UUID, private bool, created, deadline time.Time) domain.RecordState {
	t.Helper()
	id := uuid.New()
	r := domain.RecordState{
		ID: id, OwnerID: owner, Title: "t", Locator: "bolt://records/" + id.String(),
		Private: private, CreatedAt: created, Deadline: deadline,
	}
	require.NoError(t, m.Records(m.DB()).Create(context.Background(), r))
	return r
}

func TestUserCRUD(t *testing.T) {
	m := openStore(t)
	ctx := context.Background()
	u := seedUser(t, m, "alice")

	err := m.Users(m.DB()).Create(ctx, u)
	assert.ErrorIs(t, err, storage.ErrConflict)

	got, err := m.Users(m.DB()).GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.True(t, u.CreatedAt.Equal(got.CreatedAt))
	assert.False(t, got.EmailConfirmed)

	got.EmailConfirmed = true
	got.Role = domain.RoleAdmin
	require.NoError(t, m.Users(m.DB()).Update(ctx, got))
	again, err := m.Users(m.DB()).GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, again.EmailConfirmed)
	assert.Equal(t, domain.RoleAdmin, again.Role)

	list, err := m.Users(m.DB()).List(ctx, storage.Page{})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestDeleteUserCascades(t *testing.T) {
	m := openStore(t)
	ctx := context.Background()
	u := seedUser(t, m, "bob")
	now := time.Now().UTC().Truncate(time.Microsecond)
	r := seedRecord(t, m, u.ID, false, now, now.Add(time.Hour))

	id, err := m.Users(m.DB()).DeleteByUsername(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, u.ID, id)

	_, err = m.Records(m.DB()).GetByID(ctx, r.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = m.Users(m.DB()).DeleteByUsername(ctx, "bob")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRecordQueries(t *testing.T) {
	m := openStore(t)
	ctx := context.Background()
	u := seedUser(t, m, "carol")
	now := time.Now().UTC().Truncate(time.Microsecond)

	older := seedRecord(t, m, u.ID, false, now.Add(-2*time.Minute), now.Add(time.Hour))
	newer := seedRecord(t, m, u.ID, false, now.Add(-time.Minute), now.Add(time.Hour))
	hidden := seedRecord(t, m, u.ID, true, now, now.Add(time.Hour))
	expired := seedRecord(t, m, u.ID, false, now.Add(-time.Hour), now.Add(-time.Second))

	public, err := m.Records(m.DB()).ListPublic(ctx, now, storage.Page{})
	require.NoError(t, err)
	require.Len(t, public, 2)
	assert.Equal(t, newer.ID, public[0].ID)
	assert.Equal(t, older.ID, public[1].ID)

	owned, err := m.Records(m.DB()).ListByOwner(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, owned, 4)

	exp, err := m.Records(m.DB()).ListExpired(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, exp, 1)
	assert.Equal(t, expired.ID, exp[0].ID)

	existing, err := m.Records(m.DB()).Existing(ctx, []uuid.UUID{hidden.ID, uuid.New()})
	require.NoError(t, err)
	assert.Equal(t, map[uuid.UUID]bool{hidden.ID: true}, existing)

	hidden.Title = ""
	hidden.Private = false
	require.NoError(t, m.Records(m.DB()).Update(ctx, hidden))
	got, err := m.Records(m.DB()).GetByID(ctx, hidden.ID)
	require.NoError(t, err)
	assert.Equal(t, "", got.Title)
	assert.False(t, got.Private)
}

func TestIncrementInsideTx(t *testing.T) {
	m := openStore(t)
	ctx := context.Background()
	u := seedUser(t, m, "dave")
	now := time.Now().UTC().Truncate(time.Microsecond)
	r := seedRecord(t, m, u.ID, false, now, now.Add(time.Hour))

	for i := 0; i < 5; i++ {
		err := dbx.WithTx(ctx, m.DB(), nil, func(ctx context.Context, tx dbx.DBTX) error {
			_, _, err := m.Records(tx).Increment(ctx, r.ID, storage.CounterLikes)
			return err
		})
		require.NoError(t, err)
	}
	likes, dislikes, err := m.Records(m.DB()).Increment(ctx, r.ID, storage.CounterDislikes)
	require.NoError(t, err)
	assert.Equal(t, int64(5), likes)
	assert.Equal(t, int64(1), dislikes)

	deleted, err := m.Records(m.DB()).DeleteByIDs(ctx, []uuid.UUID{r.ID})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{r.ID}, deleted)
	_, _, err = m.Records(m.DB()).Increment(ctx, r.ID, storage.CounterLikes)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestConcurrentReadThenWriteTx(t *testing.T) {
	m := openStore(t)
	ctx := context.Background()
	assert.Equal(t, 1, m.DB().Stats().MaxOpenConnections)

	u := seedUser(t, m, "erin")
	now := time.Now().UTC().Truncate(time.Microsecond)
	r := seedRecord(t, m, u.ID, false, now, now.Add(time.Hour))

	const workers = 10
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- dbx.WithTx(ctx, m.DB(), nil, func(ctx context.Context, tx dbx.DBTX) error {
				if _, err := m.Records(tx).ListByOwner(ctx, u.ID); err != nil {
					return err
				}
				_, _, err := m.Records(tx).Increment(ctx, r.ID, storage.CounterLikes)
				return err
			})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	got, err := m.Records(m.DB()).GetByID(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(workers), got.Likes)
}

func TestForeignKeyEnforced(t *testing.T) {
	m := openStore(t)
	now := time.Now().UTC()
	err := m.Records(m.DB()).Create(context.Background(), domain.RecordState{
		ID: uuid.New(), OwnerID: uuid.New(), Locator: "x", CreatedAt: now, Deadline: now,
	})
	assert.Error(t, err)
}
