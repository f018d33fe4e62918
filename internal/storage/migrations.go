// Schema migrations are embedded SQL files under migrations/<driver>/, named
// NNNN_name.up.sql or NNNN_name.down.sql. Applied versions are recorded in the
// schema_migrations table, so a restart only runs what is new.

package storage

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"regexp"
	"sort"
	"strconv"
	"time"
)

//go:embed migrations/*/*.sql
var migrationsFS embed.FS

var reMigrationFilename = regexp.MustCompile(`^(?P<Version>\d{4})\_(?P<Name>[^.]+)\.(?P<Direction>(up|down))\.sql$`)

var (
	ErrMigrateCurrentVersionSameAsTarget = errors.New("current version is the same as target version")
)

// SchemaMigration represents a single migration file.
type SchemaMigration struct {
	Version int
	Name    string
	Up      bool
	SQL     string
}

type MigrationRunner struct {
	driver string
	fsys   fs.FS
	logger *slog.Logger
}

func NewMigrationRunner(driver string) *MigrationRunner {
	return &MigrationRunner{
		driver: driver,
		fsys:   migrationsFS,
		logger: slog.With("component", "migrations", "driver", driver),
	}
}

func (mr *MigrationRunner) dir() (string, error) {
	switch mr.driver {
	case "sqlite3":
		return "migrations/sqlite3", nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedDriver, mr.driver)
	}
}

// all parses every well-formed migration file of the driver.
func (mr *MigrationRunner) all() ([]SchemaMigration, error) {
	dir, err := mr.dir()
	if err != nil {
		return nil, err
	}
	entries, err := fs.ReadDir(mr.fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migration directory: %w", err)
	}

	var migrations []SchemaMigration
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m, err := mr.parseMigrationFile(path.Join(dir, entry.Name()))
		if err != nil {
			mr.logger.Warn("Failed to parse migration file", "file", entry.Name(), "error", err)
			continue
		}
		migrations = append(migrations, m)
	}
	return migrations, nil
}

// LatestVersion returns the highest "up" version available.
func (mr *MigrationRunner) LatestVersion() (int, error) {
	migrations, err := mr.all()
	if err != nil {
		return -1, err
	}
	latest := 0
	for _, m := range migrations {
		if m.Up && m.Version > latest {
			latest = m.Version
		}
	}
	return latest, nil
}

// LoadMigrations returns the migrations leading from prior to target, in the
// order they must run. Target -1 means the latest version, 0 the empty schema.
func (mr *MigrationRunner) LoadMigrations(prior int, target int) ([]SchemaMigration, error) {
	if target == -1 {
		latest, err := mr.LatestVersion()
		if err != nil {
			return nil, fmt.Errorf("failed to get latest migration version: %w", err)
		}
		target = latest
	}
	if prior == target {
		return nil, ErrMigrateCurrentVersionSameAsTarget
	}

	migrations, err := mr.all()
	if err != nil {
		return nil, err
	}

	up := target > prior
	var selected []SchemaMigration
	for _, m := range migrations {
		if m.Up != up {
			continue
		}
		if up && (m.Version <= prior || m.Version > target) {
			continue
		}
		if !up && (m.Version > prior || m.Version <= target) {
			continue
		}
		selected = append(selected, m)
	}

	sort.Slice(selected, func(i, j int) bool {
		if up {
			return selected[i].Version < selected[j].Version
		}
		return selected[i].Version > selected[j].Version
	})

	mr.logger.Info("Loaded migrations", "count", len(selected), "from_version", prior, "to_version", target)
	return selected, nil
}

func (mr *MigrationRunner) parseMigrationFile(file string) (SchemaMigration, error) {
	parts := reMigrationFilename.FindStringSubmatch(path.Base(file))
	if parts == nil {
		return SchemaMigration{}, fmt.Errorf("invalid migration filename: %s", path.Base(file))
	}

	body, err := fs.ReadFile(mr.fsys, file)
	if err != nil {
		return SchemaMigration{}, fmt.Errorf("failed to read migration file: %w", err)
	}

	version, _ := strconv.Atoi(parts[reMigrationFilename.SubexpIndex("Version")])
	return SchemaMigration{
		Version: version,
		Name:    parts[reMigrationFilename.SubexpIndex("Name")],
		Up:      parts[reMigrationFilename.SubexpIndex("Direction")] == "up",
		SQL:     string(body),
	}, nil
}

// runMigrations brings the schema to the latest embedded version. Each
// migration runs in its own transaction together with its bookkeeping row.
func (p *SQLProvider) runMigrations(driver string) error {
	ctx := context.Background()

	if _, err := p.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version    INTEGER PRIMARY KEY,
    name       TEXT NOT NULL,
    applied_at TEXT NOT NULL
)`); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}

	current, err := p.GetSchemaVersion(ctx)
	if err != nil {
		return err
	}

	migrations, err := NewMigrationRunner(driver).LoadMigrations(current, -1)
	if errors.Is(err, ErrMigrateCurrentVersionSameAsTarget) {
		p.logger.Debug("Schema is up to date", "version", current)
		return nil
	}
	if err != nil {
		return err
	}

	for _, m := range migrations {
		tx, err := p.db.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %04d: %w", m.Version, err)
		}
		if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply migration %04d_%s: %w", m.Version, m.Name, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)`,
			m.Version, m.Name, time.Now().UTC().Format(time.RFC3339),
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %04d_%s: %w", m.Version, m.Name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %04d_%s: %w", m.Version, m.Name, err)
		}
		p.logger.Info("Applied migration", "version", m.Version, "name", m.Name)
	}
	return nil
}
