package linkservice

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/cache"
	"github.com/starford/raido/internal/kvstore"
	"github.com/starford/raido/internal/registry"
	"github.com/starford/raido/internal/storage"
)

func testService(t *testing.T) (*Service, string) {
	t.Helper()
	currentVault := t.TempDir()

	store, err := storage.NewFS(currentVault)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}

	dbFile, err := os.CreateTemp("", "raido-linkservice-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := kvstore.Open(dbFile.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	reg, err := registry.Open(registry.NewSQLiteStore(db))
	if err != nil {
		t.Fatalf("Open registry: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	cm := cache.NewManager(store, logger)
	return New(reg, cm, currentVault, logger), currentVault
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	abs := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestClassify_Mapped(t *testing.T) {
	svc, _ := testService(t)
	vaultDir := t.TempDir()
	writeFile(t, vaultDir, "Meeting Plan.md", "agenda")
	if err := svc.MapVault("Notes", vaultDir, registry.CachePolicyDisabled, ""); err != nil {
		t.Fatalf("MapVault: %v", err)
	}

	cls, err := svc.Classify("obsidian://open?vault=Notes&file=Meeting%20Plan")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if cls.Status != StatusMapped {
		t.Errorf("status = %q, want mapped", cls.Status)
	}
	if cls.Path != filepath.Join(vaultDir, "Meeting Plan.md") {
		t.Errorf("path = %q", cls.Path)
	}
}

func TestClassify_Unmapped(t *testing.T) {
	svc, _ := testService(t)
	cls, err := svc.Classify("obsidian://open?vault=Notes&file=Meeting%20Plan")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if cls.Status != StatusUnmapped {
		t.Errorf("status = %q, want unmapped", cls.Status)
	}
	if cls.Vault != "Notes" {
		t.Errorf("vault = %q", cls.Vault)
	}
}

func TestClassify_Missing(t *testing.T) {
	svc, _ := testService(t)
	vaultDir := t.TempDir()
	_ = svc.MapVault("Notes", vaultDir, registry.CachePolicyDisabled, "")

	cls, err := svc.Classify("obsidian://open?vault=Notes&file=Meeting%20Plan")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if cls.Status != StatusMissing {
		t.Errorf("status = %q, want missing", cls.Status)
	}
	if cls.Vault != "Notes" || cls.File != "Meeting Plan" {
		t.Errorf("got %+v", cls)
	}
}

func TestClassify_MappedViaCacheEntry(t *testing.T) {
	svc, currentVault := testService(t)
	vaultDir := t.TempDir()
	_ = svc.MapVault("Notes", vaultDir, registry.CachePolicyEnabled, "")
	// Source gone, cache entry present.
	writeFile(t, currentVault, "Notes/plan.md", "cached")

	cls, err := svc.Classify("obsidian://open?vault=Notes&file=plan")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if cls.Status != StatusMapped {
		t.Errorf("status = %q, cache entry should count as mapped", cls.Status)
	}
}

func TestClassify_ParseError(t *testing.T) {
	svc, _ := testService(t)
	if _, err := svc.Classify("https://not-a-deep-link"); !errors.Is(err, apperr.ErrParse) {
		t.Errorf("err = %v, want ErrParse", err)
	}
}

func TestFetch_EndToEnd(t *testing.T) {
	svc, currentVault := testService(t)
	vaultDir := t.TempDir()
	writeFile(t, vaultDir, "Meeting Plan.md", "agenda")
	_ = svc.MapVault("Notes", vaultDir, registry.CachePolicyDisabled, "")

	res, err := svc.Fetch("obsidian://open?vault=Notes&file=Meeting%20Plan")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(res.Content) != "agenda" {
		t.Errorf("content = %q", res.Content)
	}
	// Cache disabled: no cache file created.
	if _, err := os.Stat(filepath.Join(currentVault, "Notes")); !errors.Is(err, os.ErrNotExist) {
		t.Error("no cache namespace should appear for a cache-disabled vault")
	}
}

func TestFetch_TraversalLinkDoesNotEscapeVault(t *testing.T) {
	svc, _ := testService(t)
	parent := t.TempDir()
	vaultDir := filepath.Join(parent, "vault")
	if err := os.MkdirAll(vaultDir, 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, parent, "victim.md", "outside the vault")
	_ = svc.MapVault("Notes", vaultDir, registry.CachePolicyEnabled, "")

	_, err := svc.Fetch("obsidian://open?vault=Notes&file=..%2Fvictim")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, traversal link must not be served", err)
	}

	cls, err := svc.Classify("obsidian://open?vault=Notes&file=..%2Fvictim")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if cls.Status != StatusMissing {
		t.Errorf("status = %q, want missing", cls.Status)
	}
}

func TestFetch_UnmappedVault(t *testing.T) {
	svc, _ := testService(t)
	_, err := svc.Fetch("obsidian://open?vault=Ghost&file=plan")
	if !errors.Is(err, apperr.ErrUnmappedVault) {
		t.Errorf("err = %v, want ErrUnmappedVault", err)
	}
}

func TestRootFor_RelativePath(t *testing.T) {
	svc, currentVault := testService(t)
	m := registry.Mapping{Name: "Sibling", Path: "../sibling", CachePolicy: registry.CachePolicyDisabled}
	want := filepath.Join(currentVault, "../sibling")
	if got := svc.RootFor(m); got != want {
		t.Errorf("RootFor = %q, want %q", got, want)
	}

	abs := registry.Mapping{Name: "Abs", Path: "/vaults/abs", CachePolicy: registry.CachePolicyDisabled}
	if got := svc.RootFor(abs); got != "/vaults/abs" {
		t.Errorf("RootFor abs = %q", got)
	}
}

func TestRelativeMappingResolvesAtLookupTime(t *testing.T) {
	svc, currentVault := testService(t)
	// Sibling vault next to the current vault, mapped with a relative path.
	sibling := filepath.Join(filepath.Dir(currentVault), filepath.Base(currentVault)+"-sibling")
	if err := os.MkdirAll(sibling, 0o755); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(sibling) })
	writeFile(t, sibling, "note.md", "sibling note")

	rel := filepath.Join("..", filepath.Base(sibling))
	_ = svc.MapVault("Sibling", rel, registry.CachePolicyDisabled, "")

	cls, err := svc.Classify("obsidian://open?vault=Sibling&file=note")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if cls.Status != StatusMapped {
		t.Errorf("status = %q", cls.Status)
	}
}

func TestRemoveVaultPurgesCache(t *testing.T) {
	svc, currentVault := testService(t)
	vaultDir := t.TempDir()
	writeFile(t, vaultDir, "plan.md", "v1")
	_ = svc.MapVault("Notes", vaultDir, registry.CachePolicyEnabled, "")

	if _, err := svc.Fetch("obsidian://open?vault=Notes&file=plan"); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if _, err := os.Stat(filepath.Join(currentVault, "Notes", "plan.md")); err != nil {
		t.Fatalf("cache entry expected: %v", err)
	}

	if err := svc.RemoveVault("Notes"); err != nil {
		t.Fatalf("RemoveVault: %v", err)
	}
	if _, ok := svc.LookupVault("Notes"); ok {
		t.Error("mapping still present")
	}
	if _, err := os.Stat(filepath.Join(currentVault, "Notes")); !errors.Is(err, os.ErrNotExist) {
		t.Error("cache namespace should be purged on removal")
	}
}

type brokenStore struct{}

func (brokenStore) Load() (string, bool, error) { return "", false, nil }
func (brokenStore) Save(string) error           { return errors.New("disk full") }

func TestNotifyPersistFailure(t *testing.T) {
	reg, err := registry.Open(brokenStore{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	currentVault := t.TempDir()
	store, err := storage.NewFS(currentVault)
	if err != nil {
		t.Fatal(err)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	svc := New(reg, cache.NewManager(store, logger), currentVault, logger)

	var notified string
	svc.NotifyPersistFailure = func(name string, err error) { notified = name }

	if err := svc.MapVault("Notes", "/v", "", ""); err == nil {
		t.Fatal("MapVault should surface the persist failure")
	}
	if notified != "Notes" {
		t.Errorf("notified = %q, want Notes", notified)
	}

	// Validation failures return before persistence and do not notify.
	notified = ""
	if err := svc.MapVault("", "/v", "", ""); err == nil {
		t.Fatal("invalid mapping should fail")
	}
	if notified != "" {
		t.Errorf("validation failure must not notify, got %q", notified)
	}
}
