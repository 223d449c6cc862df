package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"pastebox/internal/dbx"
	"pastebox/internal/domain"
	"pastebox/internal/storage"
)

const recordColumns = `id, owner_id, title, locator, private, created_at, deadline, likes, dislikes`

// RecordRepository stores record metadata. Bodies live in the blob store.
type RecordRepository struct {
	db dbx.DBTX
	d  Dialect
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(s rowScanner) (domain.RecordState, error) {
	var (
		r     domain.RecordState
		title sql.NullString
	)
	err := s.Scan(&r.ID, &r.OwnerID, &title, &r.Locator, &r.Private, &r.CreatedAt, &r.Deadline, &r.Likes, &r.Dislikes)
	if err != nil {
		return domain.RecordState{}, err
	}
	r.Title = title.String
	r.CreatedAt = r.CreatedAt.UTC()
	r.Deadline = r.Deadline.UTC()
	return r, nil
}

func collectRecords(rows *sql.Rows) ([]domain.RecordState, error) {
	defer rows.Close()
	var out []domain.RecordState
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return out, nil
}

func (r *RecordRepository) Create(ctx context.Context, rec domain.RecordState) error {
	q := r.d.Rebind(`INSERT INTO records (` + recordColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := r.db.ExecContext(ctx, q,
		rec.ID, rec.OwnerID, nullString(rec.Title), rec.Locator, rec.Private,
		rec.CreatedAt.UTC(), rec.Deadline.UTC(), rec.Likes, rec.Dislikes)
	if err != nil {
		if r.d.uniqueViolation(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

// Update writes the mutable metadata. Counters only change through Increment.
func (r *RecordRepository) Update(ctx context.Context, rec domain.RecordState) error {
	q := r.d.Rebind(`UPDATE records SET title = ?, private = ?, deadline = ? WHERE id = ?`)
	res, err := r.db.ExecContext(ctx, q, nullString(rec.Title), rec.Private, rec.Deadline.UTC(), rec.ID)
	if err != nil {
		return fmt.Errorf("update record: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (r *RecordRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.RecordState, error) {
	q := r.d.Rebind(`SELECT ` + recordColumns + ` FROM records WHERE id = ?`)
	rec, err := scanRecord(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.RecordState{}, storage.ErrNotFound
		}
		return domain.RecordState{}, fmt.Errorf("query record: %w", err)
	}
	return rec, nil
}

func (r *RecordRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.RecordState, error) {
	return listByOwner(ctx, r.db, r.d, ownerID)
}

func listByOwner(ctx context.Context, db dbx.DBTX, d Dialect, ownerID uuid.UUID) ([]domain.RecordState, error) {
	q := d.Rebind(`SELECT ` + recordColumns + ` FROM records WHERE owner_id = ? ORDER BY created_at, id`)
	rows, err := db.QueryContext(ctx, q, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query owner records: %w", err)
	}
	return collectRecords(rows)
}

// ListPublic returns public records whose deadline has not passed at now,
// newest first.
func (r *RecordRepository) ListPublic(ctx context.Context, now time.Time, page storage.Page) ([]domain.RecordState, error) {
	p := page.Normalize()
	q := r.d.Rebind(`SELECT ` + recordColumns + ` FROM records
WHERE private = ? AND deadline >= ?
ORDER BY created_at DESC, id DESC
LIMIT ? OFFSET ?`)
	rows, err := r.db.QueryContext(ctx, q, false, now.UTC(), p.Limit, p.Offset())
	if err != nil {
		return nil, fmt.Errorf("query public records: %w", err)
	}
	return collectRecords(rows)
}

// Increment bumps one counter in place and returns both counters.
func (r *RecordRepository) Increment(ctx context.Context, id uuid.UUID, c storage.Counter) (int64, int64, error) {
	var col string
	switch c {
	case storage.CounterLikes:
		col = "likes"
	case storage.CounterDislikes:
		col = "dislikes"
	default:
		return 0, 0, fmt.Errorf("increment: unknown counter %q", c)
	}
	q := r.d.Rebind(`UPDATE records SET ` + col + ` = ` + col + ` + 1 WHERE id = ? RETURNING likes, dislikes`)
	var likes, dislikes int64
	if err := r.db.QueryRowContext(ctx, q, id).Scan(&likes, &dislikes); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, 0, storage.ErrNotFound
		}
		return 0, 0, fmt.Errorf("increment %s: %w", col, err)
	}
	return likes, dislikes, nil
}

func (r *RecordRepository) ListExpired(ctx context.Context, before time.Time, limit int) ([]domain.RecordState, error) {
	if limit <= 0 {
		limit = storage.MaxPageLimit
	}
	q := r.d.Rebind(`SELECT ` + recordColumns + ` FROM records WHERE deadline < ? ORDER BY deadline LIMIT ?`)
	rows, err := r.db.QueryContext(ctx, q, before.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("query expired records: %w", err)
	}
	return collectRecords(rows)
}

// Existing reports which of ids still have a row.
func (r *RecordRepository) Existing(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]bool, error) {
	out := make(map[uuid.UUID]bool, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	q := r.d.Rebind(`SELECT id FROM records WHERE id IN (` + placeholders(len(ids)) + `)`)
	rows, err := r.db.QueryContext(ctx, q, uuidArgs(ids)...)
	if err != nil {
		return nil, fmt.Errorf("query existing records: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan record id: %w", err)
		}
		out[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate record ids: %w", err)
	}
	return out, nil
}

func (r *RecordRepository) DeleteByIDs(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error) {
	return deleteReturning(ctx, r.db, r.d, "records", ids)
}

func deleteReturning(ctx context.Context, db dbx.DBTX, d Dialect, table string, ids []uuid.UUID) ([]uuid.UUID, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	q := d.Rebind(`DELETE FROM ` + table + ` WHERE id IN (` + placeholders(len(ids)) + `) RETURNING id`)
	rows, err := db.QueryContext(ctx, q, uuidArgs(ids)...)
	if err != nil {
		return nil, fmt.Errorf("delete %s: %w", table, err)
	}
	defer rows.Close()
	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan deleted id: %w", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deleted ids: %w", err)
	}
	return out, nil
}

func uuidArgs(ids []uuid.UUID) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
