// Package pg implementa el adapter PostgreSQL de la DataAccessLayer.
// Usa pgxpool directamente.
package pg

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/hellojohn-dingtalk/internal/domain/repository"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/store"
	"github.com/dropDatabas3/hellojohn-dingtalk/migrations"
)

func init() {
	store.RegisterAdapter(&postgresAdapter{})
}

// Códigos SQLSTATE relevantes.
const (
	codeUniqueViolation = "23505"
	codeInvalidTextRepr = "22P02"
)

// postgresAdapter implementa store.Adapter para PostgreSQL.
type postgresAdapter struct{}

func (a *postgresAdapter) Name() string { return "postgres" }

func (a *postgresAdapter) Connect(ctx context.Context, cfg store.AdapterConfig) (store.DataAccessLayer, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("pg: parse DSN: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxOpenConns)
	} else {
		poolCfg.MaxConns = 10
	}
	if cfg.MaxIdleConns > 0 {
		poolCfg.MinConns = int32(cfg.MaxIdleConns)
	} else {
		poolCfg.MinConns = 2
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("pg: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pg: ping failed: %w", err)
	}

	return &pgConnection{pool: pool}, nil
}

// pgConnection representa una conexión activa a PostgreSQL.
type pgConnection struct {
	pool *pgxpool.Pool
}

func (c *pgConnection) Driver() string { return "postgres" }

func (c *pgConnection) Ping(ctx context.Context) error {
	return c.pool.Ping(ctx)
}

func (c *pgConnection) Close() error {
	c.pool.Close()
	return nil
}

// ─── Repositorios ───

func (c *pgConnection) Users() repository.UserRepository            { return &userRepo{pool: c.pool} }
func (c *pgConnection) Links() repository.LinkRepository            { return &linkRepo{pool: c.pool} }
func (c *pgConnection) Attempts() repository.LoginAttemptRepository { return &attemptRepo{pool: c.pool} }
func (c *pgConnection) Settings() repository.SettingRepository      { return &settingRepo{pool: c.pool} }

func (c *pgConnection) Migrate(ctx context.Context) (*store.MigrationResult, error) {
	return store.RunMigrations(ctx, &migrationExecutor{pool: c.pool}, migrations.FS, migrations.PostgresDir)
}

// ─── Migraciones ───

type migrationExecutor struct{ pool *pgxpool.Pool }

func (m *migrationExecutor) EnsureMigrationsTable(ctx context.Context) error {
	_, err := m.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS _migrations (
			version INT PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			applied_at TIMESTAMPTZ DEFAULT NOW()
		)`)
	return err
}

func (m *migrationExecutor) AppliedVersions(ctx context.Context) (map[int]bool, error) {
	rows, err := m.pool.Query(ctx, `SELECT version FROM _migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

func (m *migrationExecutor) Apply(ctx context.Context, mig store.Migration) error {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, mig.SQL); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `INSERT INTO _migrations (version, name) VALUES ($1, $2)`, mig.Version, mig.Name); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// ─── Helpers ───

func pgCode(err error) (code, constraint string) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code, pgErr.ConstraintName
	}
	return "", ""
}

// isInvalidID detecta un id que no parsea como UUID: para los lookups
// equivale a "no existe".
func isInvalidID(err error) bool {
	code, _ := pgCode(err)
	return code == codeInvalidTextRepr
}

// nullIfEmpty retorna nil si s está vacío.
func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// likePattern escapa comodines y envuelve con %.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}
