// Package sqlite implementa el adapter SQLite de la DataAccessLayer sobre gorm.
// Es el driver por defecto para instalaciones de un solo nodo y para tests.
package sqlite

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/dropDatabas3/hellojohn-dingtalk/internal/domain/repository"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/store"
	"github.com/dropDatabas3/hellojohn-dingtalk/migrations"
)

func init() {
	store.RegisterAdapter(&sqliteAdapter{})
}

type sqliteAdapter struct{}

func (a *sqliteAdapter) Name() string { return "sqlite" }

func (a *sqliteAdapter) Connect(ctx context.Context, cfg store.AdapterConfig) (store.DataAccessLayer, error) {
	if err := ensureDir(cfg.DSN); err != nil {
		return nil, err
	}

	db, err := gorm.Open(sqlite.Open(cfg.DSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sqlite: underlying db: %w", err)
	}
	// Un único writer evita SQLITE_BUSY entre conexiones del pool.
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	} else {
		sqlDB.SetMaxOpenConns(1)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("sqlite: ping failed: %w", err)
	}

	return &sqliteConnection{db: db}, nil
}

// MemoryDSN retorna un DSN de base en memoria con nombre único, compartida
// entre las conexiones del pool.
func MemoryDSN() string {
	return fmt.Sprintf("file:mem-%d?mode=memory&cache=shared&_foreign_keys=on", memSeq.Add(1))
}

var memSeq atomic.Int64

// ensureDir crea el directorio del archivo de base si el DSN apunta a disco.
func ensureDir(dsn string) error {
	p := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(p, '?'); i >= 0 {
		if strings.Contains(p[i:], "mode=memory") {
			return nil
		}
		p = p[:i]
	}
	if p == "" || p == ":memory:" {
		return nil
	}
	dir := filepath.Dir(p)
	if dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("sqlite: create data dir: %w", err)
	}
	return nil
}

// sqliteConnection es la DataAccessLayer sobre gorm.
type sqliteConnection struct {
	db *gorm.DB
}

func (c *sqliteConnection) Driver() string { return "sqlite" }

func (c *sqliteConnection) Ping(ctx context.Context) error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (c *sqliteConnection) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ─── Repositorios ───

func (c *sqliteConnection) Users() repository.UserRepository            { return &userRepo{db: c.db} }
func (c *sqliteConnection) Links() repository.LinkRepository            { return &linkRepo{db: c.db} }
func (c *sqliteConnection) Attempts() repository.LoginAttemptRepository { return &attemptRepo{db: c.db} }
func (c *sqliteConnection) Settings() repository.SettingRepository      { return &settingRepo{db: c.db} }

func (c *sqliteConnection) Migrate(ctx context.Context) (*store.MigrationResult, error) {
	return store.RunMigrations(ctx, &migrationExecutor{db: c.db}, migrations.FS, migrations.SQLiteDir)
}

// ─── Migraciones ───

type migrationRecord struct {
	Version int    `gorm:"primaryKey;column:version"`
	Name    string `gorm:"column:name"`
}

func (migrationRecord) TableName() string { return "_migrations" }

type migrationExecutor struct{ db *gorm.DB }

func (m *migrationExecutor) EnsureMigrationsTable(ctx context.Context) error {
	return m.db.WithContext(ctx).Exec(`
		CREATE TABLE IF NOT EXISTS _migrations (
			version INT PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`).Error
}

func (m *migrationExecutor) AppliedVersions(ctx context.Context) (map[int]bool, error) {
	var recs []migrationRecord
	if err := m.db.WithContext(ctx).Find(&recs).Error; err != nil {
		return nil, err
	}
	applied := make(map[int]bool, len(recs))
	for _, r := range recs {
		applied[r.Version] = true
	}
	return applied, nil
}

func (m *migrationExecutor) Apply(ctx context.Context, mig store.Migration) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(mig.SQL).Error; err != nil {
			return err
		}
		return tx.Create(&migrationRecord{Version: mig.Version, Name: mig.Name}).Error
	})
}

// ─── Helpers ───

// uniqueViolation reporta si err es un UNIQUE constraint failed y sobre qué
// columna ("tabla.columna").
func uniqueViolation(err error) (string, bool) {
	if err == nil {
		return "", false
	}
	msg := err.Error()
	const marker = "UNIQUE constraint failed: "
	i := strings.Index(msg, marker)
	if i < 0 {
		return "", false
	}
	return msg[i+len(marker):], true
}

// likePattern escapa comodines y envuelve con %. Usar con ESCAPE '\'.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}
