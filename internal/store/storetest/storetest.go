// Package storetest abre una DataAccessLayer SQLite en memoria, migrada, para
// los tests de servicios y controllers.
package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/hellojohn-dingtalk/internal/store"
	"github.com/dropDatabas3/hellojohn-dingtalk/internal/store/adapters/sqlite"
)

// Open retorna una base nueva por test; se cierra en t.Cleanup.
func Open(t testing.TB) store.DataAccessLayer {
	t.Helper()
	ctx := context.Background()

	dal, err := store.Open(ctx, store.AdapterConfig{Name: "sqlite", DSN: sqlite.MemoryDSN()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = dal.Close() })

	_, err = dal.Migrate(ctx)
	require.NoError(t, err)
	return dal
}
