// Package sqlstore implements the storage repositories on database/sql. The
// PostgreSQL and SQLite backends share this code and differ only by Dialect.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"

	"pastebox/internal/dbx"
	"pastebox/internal/storage"
)

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// goose keeps its base FS and dialect in package globals.
var gooseMu sync.Mutex

// Manager vends SQL repositories and runs the embedded migrations.
type Manager struct {
	db      *sql.DB
	dialect Dialect
}

var _ storage.Manager = (*Manager)(nil)

func New(db *sql.DB, dialect Dialect) *Manager {
	return &Manager{db: db, dialect: dialect}
}

func (m *Manager) DB() *sql.DB { return m.db }

func (m *Manager) Dialect() Dialect { return m.dialect }

func (m *Manager) Users(db dbx.DBTX) storage.UserRepository {
	return &UserRepository{db: db, d: m.dialect}
}

func (m *Manager) Records(db dbx.DBTX) storage.RecordRepository {
	return &RecordRepository{db: db, d: m.dialect}
}

// Migrate applies the dialect's embedded goose migrations.
func (m *Manager) Migrate(ctx context.Context) error {
	if m.dialect.Migrations == nil {
		return fmt.Errorf("migrate: no migrations for dialect %q", m.dialect.Name)
	}
	gooseMu.Lock()
	defer gooseMu.Unlock()
	goose.SetBaseFS(m.dialect.Migrations)
	defer goose.SetBaseFS(nil)
	if err := goose.SetDialect(m.dialect.Name); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if err := gooseUpContext(ctx, m.db, "."); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (m *Manager) Close() error {
	if m == nil || m.db == nil {
		return nil
	}
	return m.db.Close()
}
