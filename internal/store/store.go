// Package store provee el registry de adaptadores de base de datos y la
// capa de acceso a datos que consumen los servicios.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dropDatabas3/hellojohn-dingtalk/internal/domain/repository"
)

// Adapter representa un driver capaz de abrir una DataAccessLayer.
type Adapter interface {
	// Name retorna el nombre del adapter ("postgres", "sqlite").
	Name() string

	// Connect establece conexión con el almacenamiento.
	Connect(ctx context.Context, cfg AdapterConfig) (DataAccessLayer, error)
}

// DataAccessLayer es una conexión activa con todos los repositorios.
type DataAccessLayer interface {
	// Driver retorna el nombre del adapter que la abrió.
	Driver() string

	Users() repository.UserRepository
	Links() repository.LinkRepository
	Attempts() repository.LoginAttemptRepository
	Settings() repository.SettingRepository

	// Migrate aplica las migraciones pendientes.
	Migrate(ctx context.Context) (*MigrationResult, error)

	Ping(ctx context.Context) error
	Close() error
}

// AdapterConfig configuración para conectar a un almacenamiento.
type AdapterConfig struct {
	// Name del adapter: "postgres", "sqlite"
	Name string

	// DSN connection string
	DSN string

	// Pool settings
	MaxOpenConns int
	MaxIdleConns int
}

// ─── Registry Global ───

var (
	registryMu sync.RWMutex
	adapters   = make(map[string]Adapter)
)

// RegisterAdapter registra un adapter en el registry global.
// Llamar en init() de cada adapter.
func RegisterAdapter(a Adapter) {
	registryMu.Lock()
	defer registryMu.Unlock()

	name := a.Name()
	if _, exists := adapters[name]; exists {
		panic(fmt.Sprintf("adapter: %q already registered", name))
	}
	adapters[name] = a
}

// GetAdapter obtiene un adapter por nombre.
func GetAdapter(name string) (Adapter, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	a, ok := adapters[name]
	return a, ok
}

// ListAdapters retorna los nombres registrados, ordenados.
func ListAdapters() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(adapters))
	for name := range adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open abre una conexión usando el adapter especificado en la config.
func Open(ctx context.Context, cfg AdapterConfig) (DataAccessLayer, error) {
	a, ok := GetAdapter(cfg.Name)
	if !ok {
		return nil, fmt.Errorf("adapter: %q not registered (available: %v)", cfg.Name, ListAdapters())
	}
	return a.Connect(ctx, cfg)
}
