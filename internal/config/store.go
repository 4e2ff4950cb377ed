package config

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/microsoft/go-mssqldb"
	_ "modernc.org/sqlite"

	"github.com/kindfund/kindfund/internal/model"
)

// Store manages kindfund's persistent state: admin identities and the
// content document collections. It runs on SQLite (default), PostgreSQL
// or MySQL.
type Store struct {
	docOps
	db      *sqlx.DB
	dialect dialect
}

// NewStore opens the database for driver and applies migrations. An empty
// dsn with the sqlite driver opens a private in-memory database.
func NewStore(driver, dsn string) (*Store, error) {
	d, err := lookupDialect(driver)
	if err != nil {
		return nil, err
	}

	if d.name == "sqlite" && dsn == "" {
		dsn = ":memory:"
	}
	if dsn == "" {
		return nil, fmt.Errorf("a DSN is required for the %s driver", driver)
	}

	db, err := sqlx.Connect(d.name, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if d.name == "sqlite" {
		db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes
	}

	s := &Store{
		docOps:  docOps{ext: db, now: time.Now, dialect: d},
		db:      db,
		dialect: d,
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return s, nil
}

// SQLiteDSN returns the DSN of the on-disk SQLite database inside dataDir,
// creating the directory if needed.
func SQLiteDSN(dataDir string) (string, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", fmt.Errorf("create data dir: %w", err)
	}
	return filepath.Join(dataDir, "kindfund.db") + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Driver returns the canonical driver name (sqlite, postgres, mysql or mssql).
func (s *Store) Driver() string {
	switch s.dialect.name {
	case "pgx":
		return "postgres"
	case "sqlserver":
		return "mssql"
	}
	return s.dialect.name
}

// Tx is a store transaction exposing the document operations.
type Tx struct {
	docOps
}

// GetDocumentForUpdate is GetDocument holding a row lock until the
// transaction ends, for read-modify-write sequences such as adjusting a
// cause's raised amount.
func (tx *Tx) GetDocumentForUpdate(ctx context.Context, collection, id string, dst any) error {
	return tx.getDocument(ctx, tx.dialect.selectForUpdate(), collection, id, dst)
}

// WithTx runs fn inside a transaction, committing when fn returns nil and
// rolling back otherwise. fn must only use tx for store access; on SQLite
// the store holds a single connection.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer sqlTx.Rollback() //nolint:errcheck

	if err := fn(&Tx{docOps{ext: sqlTx, now: s.now, dialect: s.dialect}}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Admin identities
// ---------------------------------------------------------------------------

type adminRow struct {
	ID           string `db:"id"`
	Email        string `db:"email"`
	PasswordHash string `db:"password_hash"`
	Name         string `db:"name"`
	CreatedAt    int64  `db:"created_at"`
}

func (r adminRow) toModel() model.Admin {
	return model.Admin{
		ID:           r.ID,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		Name:         r.Name,
		CreatedAt:    time.UnixMilli(r.CreatedAt).UTC(),
	}
}

// CreateAdmin inserts a new admin identity. The ID and CreatedAt fields are
// populated on success. Returns ErrConflict if the email is already taken.
func (s *Store) CreateAdmin(ctx context.Context, admin *model.Admin) error {
	id, err := newID()
	if err != nil {
		return err
	}
	now := s.now().UTC().Truncate(time.Millisecond)

	row := adminRow{
		ID:           id,
		Email:        admin.Email,
		PasswordHash: admin.PasswordHash,
		Name:         admin.Name,
		CreatedAt:    now.UnixMilli(),
	}

	const q = `INSERT INTO admins (id, email, password_hash, name, created_at)
		VALUES (:id, :email, :password_hash, :name, :created_at)`

	if _, err := s.db.NamedExecContext(ctx, q, row); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("admin %q: %w", admin.Email, ErrConflict)
		}
		return fmt.Errorf("insert admin: %w", err)
	}

	admin.ID = id
	admin.CreatedAt = now
	return nil
}

// GetAdminByEmail returns the admin whose email matches exactly.
func (s *Store) GetAdminByEmail(ctx context.Context, email string) (*model.Admin, error) {
	var row adminRow
	q := s.db.Rebind("SELECT id, email, password_hash, name, created_at FROM admins WHERE email = ?")
	if err := s.db.GetContext(ctx, &row, q, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get admin by email: %w", err)
	}
	admin := row.toModel()
	return &admin, nil
}

// ListAdmins returns all admin identities ordered by email.
func (s *Store) ListAdmins(ctx context.Context) ([]model.Admin, error) {
	var rows []adminRow
	if err := s.db.SelectContext(ctx, &rows,
		"SELECT id, email, password_hash, name, created_at FROM admins ORDER BY email"); err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}

	admins := make([]model.Admin, len(rows))
	for i, r := range rows {
		admins[i] = r.toModel()
	}
	return admins, nil
}

// HasAnyAdmin reports whether at least one admin account exists. Used at
// startup to point operators at `kindfund admin create`.
func (s *Store) HasAnyAdmin(ctx context.Context) (bool, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM admins"); err != nil {
		return false, fmt.Errorf("count admins: %w", err)
	}
	return count > 0, nil
}
