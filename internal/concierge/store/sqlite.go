package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/everafter-app/server/internal/concierge/model"
	errx "github.com/everafter-app/server/internal/core/error"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a SQLite database holding tenants, wedding kernels, and
// conversations. Writes are single statements; there is no transactionality
// across the kernel and tenant updates a merge produces.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database in dataDir and runs pending
// migrations. Pass ":memory:" as dataDir for an in-memory database (tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "everafter.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate reads embedded SQL migration files and applies any that haven't run yet.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns applied migration versions in ascending order.
func (s *Store) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// --- Tenants ---

func (s *Store) CreateTenant(ctx context.Context, t *model.Tenant) error {
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tenants (id, email, display_name, wedding_date, api_token, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Email, t.DisplayName, t.WeddingDate, t.APIToken,
		t.CreatedAt.Format(time.RFC3339), t.UpdatedAt.Format(time.RFC3339),
	)
	return errx.WrapStore(err)
}

func (s *Store) TenantByToken(ctx context.Context, token string) (*model.Tenant, error) {
	var t model.Tenant
	var createdAt, updatedAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, display_name, wedding_date, api_token, created_at, updated_at
		FROM tenants WHERE api_token = ?`, token,
	).Scan(&t.ID, &t.Email, &t.DisplayName, &t.WeddingDate, &t.APIToken, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, errx.WrapStore(err)
	}
	if t.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if t.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &t, nil
}

func (s *Store) SetDisplayName(ctx context.Context, tenantID, displayName string) error {
	return s.updateTenantColumn(ctx, tenantID, "display_name", displayName)
}

func (s *Store) SetWeddingDate(ctx context.Context, tenantID, weddingDate string) error {
	return s.updateTenantColumn(ctx, tenantID, "wedding_date", weddingDate)
}

func (s *Store) updateTenantColumn(ctx context.Context, tenantID, column, value string) error {
	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf("UPDATE tenants SET %s = ?, updated_at = ? WHERE id = ?", column),
		value, time.Now().UTC().Format(time.RFC3339), tenantID,
	)
	if err != nil {
		return errx.WrapStore(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errx.WrapStore(err)
	}
	if n == 0 {
		return model.ErrNotFound
	}
	return nil
}

// --- Wedding kernels ---

func (s *Store) KernelByTenant(ctx context.Context, tenantID string) (*model.WeddingKernel, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		"SELECT data FROM wedding_kernels WHERE tenant_id = ?", tenantID,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, errx.WrapStore(err)
	}

	var k model.WeddingKernel
	if err := json.Unmarshal([]byte(data), &k); err != nil {
		return nil, fmt.Errorf("unmarshal kernel for tenant %s: %w", tenantID, err)
	}
	return &k, nil
}

func (s *Store) SaveKernel(ctx context.Context, k *model.WeddingKernel) error {
	k.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(k)
	if err != nil {
		return fmt.Errorf("marshal kernel: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO wedding_kernels (tenant_id, data, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(tenant_id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		k.TenantID, string(data),
		k.CreatedAt.Format(time.RFC3339), k.UpdatedAt.Format(time.RFC3339),
	)
	return errx.WrapStore(err)
}

var (
	_ model.TenantRepository = (*Store)(nil)
	_ model.KernelRepository = (*Store)(nil)
)
