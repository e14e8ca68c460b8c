// Package testutil provides shared test helpers for setting up vaults and databases.
package testutil

import (
	"log/slog"
	"os"
	"testing"

	"github.com/starford/raido/internal/cache"
	"github.com/starford/raido/internal/kvstore"
	"github.com/starford/raido/internal/linkservice"
	"github.com/starford/raido/internal/registry"
	"github.com/starford/raido/internal/storage"
)

// TestDB creates a temporary settings database that is automatically cleaned up.
func TestDB(t *testing.T) *kvstore.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "raido-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := kvstore.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestVault creates a temporary vault directory with a storage.Provider.
func TestVault(t *testing.T) (string, storage.Provider) {
	t.Helper()
	vaultDir := t.TempDir()
	store, err := storage.NewFS(vaultDir)
	if err != nil {
		t.Fatal(err)
	}
	return vaultDir, store
}

// TestService wires a full link service over a temporary current vault and
// settings database. Returns the service and the current vault root.
func TestService(t *testing.T) (*linkservice.Service, string) {
	t.Helper()
	currentVault, store := TestVault(t)
	db := TestDB(t)

	reg, err := registry.Open(registry.NewSQLiteStore(db))
	if err != nil {
		t.Fatal(err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	svc := linkservice.New(reg, cache.NewManager(store, logger), currentVault, logger)
	return svc, currentVault
}
