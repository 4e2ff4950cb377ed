package config

import (
	"fmt"
	"strings"
)

// dialect captures the per-driver differences in DDL. Query text is written
// with '?' placeholders and rebound by sqlx for drivers that need it.
type dialect struct {
	name      string // sqlx/database/sql driver name
	keyType   string
	emailType string
	jsonType  string
	inlineIdx bool // MySQL has no CREATE INDEX IF NOT EXISTS
	// guarded wraps DDL in existence checks; SQL Server has no IF NOT EXISTS.
	guarded bool
	// offsetFetch pages with OFFSET/FETCH NEXT instead of LIMIT/OFFSET.
	offsetFetch bool
	// lockSuffix and lockHint turn a single-row read into a locking read.
	lockSuffix string
	lockHint   string
}

var dialects = map[string]dialect{
	"sqlite": {
		name:      "sqlite",
		keyType:   "TEXT",
		emailType: "TEXT",
		jsonType:  "TEXT",
	},
	"postgres": {
		name:       "pgx",
		keyType:    "VARCHAR(64)",
		emailType:  "VARCHAR(255)",
		jsonType:   "JSONB",
		lockSuffix: " FOR UPDATE",
	},
	"mysql": {
		name:    "mysql",
		keyType: "VARCHAR(64)",
		// Identifiers are matched exactly; the default collation folds case.
		emailType:  "VARCHAR(255) CHARACTER SET utf8mb4 COLLATE utf8mb4_bin",
		jsonType:   "JSON",
		inlineIdx:  true,
		lockSuffix: " FOR UPDATE",
	},
	"sqlserver": {
		name:    "sqlserver",
		keyType: "NVARCHAR(64)",
		// Binary collation for exact identifier matching, as with MySQL.
		emailType:   "NVARCHAR(255) COLLATE Latin1_General_100_BIN2",
		jsonType:    "NVARCHAR(MAX)",
		guarded:     true,
		offsetFetch: true,
		lockHint:    " WITH (UPDLOCK, ROWLOCK)",
	},
}

func lookupDialect(driver string) (dialect, error) {
	switch driver {
	case "", "sqlite", "sqlite3":
		return dialects["sqlite"], nil
	case "postgres", "postgresql", "pgx":
		return dialects["postgres"], nil
	case "mysql", "mariadb":
		return dialects["mysql"], nil
	case "mssql", "sqlserver":
		return dialects["sqlserver"], nil
	}
	return dialect{}, fmt.Errorf("unsupported database driver %q (want sqlite, postgres, mysql or mssql)", driver)
}

// page returns the paging clause for a query already ordered, with its
// arguments in placeholder order.
func (d dialect) page(limit, offset int) (string, []any) {
	if d.offsetFetch {
		return " OFFSET ? ROWS FETCH NEXT ? ROWS ONLY", []any{offset, limit}
	}
	return " LIMIT ? OFFSET ?", []any{limit, offset}
}

// selectForUpdate returns the body read of one document, locking the row
// until the transaction ends where the database supports it. SQLite
// serialises writers on its single connection.
func (d dialect) selectForUpdate() string {
	return "SELECT body FROM documents" + d.lockHint + " WHERE collection = ? AND id = ?" + d.lockSuffix
}

func (d dialect) migrations() []string {
	docIdx := ""
	if d.inlineIdx {
		docIdx = ",\n\t\t\tINDEX idx_documents_listing (collection, created_at, id)"
	}

	if d.guarded {
		return d.guardedMigrations()
	}

	m := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS admins (
			id %[1]s PRIMARY KEY,
			email %[2]s NOT NULL UNIQUE,
			password_hash VARCHAR(255) NOT NULL,
			name VARCHAR(255) NOT NULL DEFAULT '',
			created_at BIGINT NOT NULL
		)`, d.keyType, d.emailType),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS documents (
			collection VARCHAR(64) NOT NULL,
			id %[1]s NOT NULL,
			body %[2]s NOT NULL,
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL,
			PRIMARY KEY (collection, id)%[3]s
		)`, d.keyType, d.jsonType, docIdx),
	}

	if !d.inlineIdx {
		m = append(m,
			`CREATE INDEX IF NOT EXISTS idx_documents_listing ON documents(collection, created_at, id)`)
	}
	return m
}

func (d dialect) guardedMigrations() []string {
	return []string{
		fmt.Sprintf(`IF OBJECT_ID(N'admins', N'U') IS NULL
		CREATE TABLE admins (
			id %[1]s PRIMARY KEY,
			email %[2]s NOT NULL UNIQUE,
			password_hash NVARCHAR(255) NOT NULL,
			name NVARCHAR(255) NOT NULL DEFAULT '',
			created_at BIGINT NOT NULL
		)`, d.keyType, d.emailType),

		fmt.Sprintf(`IF OBJECT_ID(N'documents', N'U') IS NULL
		CREATE TABLE documents (
			collection NVARCHAR(64) NOT NULL,
			id %[1]s NOT NULL,
			body %[2]s NOT NULL,
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL,
			PRIMARY KEY (collection, id)
		)`, d.keyType, d.jsonType),

		`IF NOT EXISTS (SELECT 1 FROM sys.indexes WHERE name = N'idx_documents_listing')
		CREATE INDEX idx_documents_listing ON documents(collection, created_at, id)`,
	}
}

func (s *Store) migrate() error {
	for _, m := range s.dialect.migrations() {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}

// isUniqueViolation reports whether err is a unique/primary key violation
// from any of the supported drivers.
func isUniqueViolation(err error) bool {
	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "unique constraint") ||
		strings.Contains(lower, "duplicate key") ||
		strings.Contains(lower, "duplicate entry")
}
