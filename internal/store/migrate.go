package store

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"time"
)

// Formato de archivo: {version}_{name}.sql (ej: 0001_init.sql)

// Migration representa una migración individual.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// MigrationResult resultado de aplicar migraciones.
type MigrationResult struct {
	Applied  []int
	Skipped  []int
	Duration time.Duration
}

// MigrationExecutor abstrae el driver (pgx vs gorm) para el Migrator.
type MigrationExecutor interface {
	// EnsureMigrationsTable crea la tabla _migrations si no existe.
	EnsureMigrationsTable(ctx context.Context) error

	// AppliedVersions retorna las versiones ya registradas.
	AppliedVersions(ctx context.Context) (map[int]bool, error)

	// Apply ejecuta el SQL y registra la versión en una sola transacción.
	Apply(ctx context.Context, m Migration) error
}

var migrationFilePattern = regexp.MustCompile(`^(\d+)_(.+)\.sql$`)

// ParseMigrations lee y ordena las migraciones de dir dentro de fsys.
func ParseMigrations(fsys fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}

	var migrations []Migration
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		matches := migrationFilePattern.FindStringSubmatch(e.Name())
		if matches == nil {
			continue // Ignorar archivos que no coinciden
		}
		version, _ := strconv.Atoi(matches[1])

		content, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", e.Name(), err)
		}
		migrations = append(migrations, Migration{Version: version, Name: matches[2], SQL: string(content)})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// RunMigrations aplica las migraciones pendientes de dir.
func RunMigrations(ctx context.Context, exec MigrationExecutor, fsys fs.FS, dir string) (*MigrationResult, error) {
	start := time.Now()
	result := &MigrationResult{}

	if err := exec.EnsureMigrationsTable(ctx); err != nil {
		return result, fmt.Errorf("creating migrations table: %w", err)
	}

	applied, err := exec.AppliedVersions(ctx)
	if err != nil {
		return result, fmt.Errorf("getting applied migrations: %w", err)
	}

	migrations, err := ParseMigrations(fsys, dir)
	if err != nil {
		return result, fmt.Errorf("parsing migrations: %w", err)
	}

	for _, mig := range migrations {
		if applied[mig.Version] {
			result.Skipped = append(result.Skipped, mig.Version)
			continue
		}
		if err := exec.Apply(ctx, mig); err != nil {
			result.Duration = time.Since(start)
			return result, fmt.Errorf("applying migration %d_%s: %w", mig.Version, mig.Name, err)
		}
		result.Applied = append(result.Applied, mig.Version)
	}

	result.Duration = time.Since(start)
	return result, nil
}
