package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"pastebox/internal/dbx"
	"pastebox/internal/domain"
	"pastebox/internal/storage"
)

const userColumns = `id, username, password_hash, email, email_confirmed, confirmation_token, role, created_at, updated_at`

type UserRepository struct {
	db dbx.DBTX
	d  Dialect
}

func scanUser(s rowScanner) (domain.UserState, error) {
	var (
		u     domain.UserState
		token sql.NullString
		role  string
	)
	err := s.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Email, &u.EmailConfirmed, &token, &role, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return domain.UserState{}, err
	}
	u.ConfirmationToken = token.String
	u.Role = domain.Role(role)
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return u, nil
}

func (r *UserRepository) Create(ctx context.Context, u domain.UserState) error {
	q := r.d.Rebind(`INSERT INTO users (` + userColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := r.db.ExecContext(ctx, q,
		u.ID, u.Username, u.PasswordHash, u.Email, u.EmailConfirmed,
		nullString(u.ConfirmationToken), string(u.Role), u.CreatedAt.UTC(), u.UpdatedAt.UTC())
	if err != nil {
		if r.d.uniqueViolation(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// Update writes the user columns. Owned records are persisted through the
// record repository.
func (r *UserRepository) Update(ctx context.Context, u domain.UserState) error {
	q := r.d.Rebind(`UPDATE users SET username = ?, password_hash = ?, email = ?, email_confirmed = ?,
confirmation_token = ?, role = ?, updated_at = ? WHERE id = ?`)
	res, err := r.db.ExecContext(ctx, q,
		u.Username, u.PasswordHash, u.Email, u.EmailConfirmed,
		nullString(u.ConfirmationToken), string(u.Role), u.UpdatedAt.UTC(), u.ID)
	if err != nil {
		if r.d.uniqueViolation(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("update user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.UserState, error) {
	return r.getWithRecords(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (domain.UserState, error) {
	return r.getWithRecords(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
}

func (r *UserRepository) getWithRecords(ctx context.Context, query string, arg any) (domain.UserState, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, r.d.Rebind(query), arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.UserState{}, storage.ErrNotFound
		}
		return domain.UserState{}, fmt.Errorf("query user: %w", err)
	}
	u.Records, err = listByOwner(ctx, r.db, r.d, u.ID)
	if err != nil {
		return domain.UserState{}, err
	}
	return u, nil
}

func (r *UserRepository) List(ctx context.Context, page storage.Page) ([]domain.UserState, error) {
	p := page.Normalize()
	q := r.d.Rebind(`SELECT ` + userColumns + ` FROM users ORDER BY created_at, id LIMIT ? OFFSET ?`)
	rows, err := r.db.QueryContext(ctx, q, p.Limit, p.Offset())
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()
	var out []domain.UserState
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return out, nil
}

// DeleteByIDs removes users; owned records go with them via ON DELETE CASCADE.
func (r *UserRepository) DeleteByIDs(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error) {
	return deleteReturning(ctx, r.db, r.d, "users", ids)
}

func (r *UserRepository) DeleteByUsername(ctx context.Context, username string) (uuid.UUID, error) {
	q := r.d.Rebind(`DELETE FROM users WHERE username = ? RETURNING id`)
	var id uuid.UUID
	if err := r.db.QueryRowContext(ctx, q, username).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return uuid.Nil, storage.ErrNotFound
		}
		return uuid.Nil, fmt.Errorf("delete user: %w", err)
	}
	return id, nil
}
