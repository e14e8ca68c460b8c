package api

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/raido/internal/cache"
	"github.com/starford/raido/internal/decorate"
	"github.com/starford/raido/internal/kvstore"
	"github.com/starford/raido/internal/linkservice"
	"github.com/starford/raido/internal/registry"
	"github.com/starford/raido/internal/storage"
)

// testEnv sets up a temp current vault, settings DB, service, and router.
// An empty authToken means disabled auth mode.
func testEnv(t *testing.T, authToken string) (*linkservice.Service, http.Handler, string) {
	t.Helper()

	currentVault := t.TempDir()
	store, err := storage.NewFS(currentVault)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}

	dbFile, err := os.CreateTemp("", "raido-api-test-*.db")
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
	svc := linkservice.New(reg, cache.NewManager(store, logger), currentVault, logger)
	dec := decorate.New(svc)
	router := NewRouter(svc, dec, authToken != "", authToken, nil)
	return svc, router, currentVault
}

func doJSON(t *testing.T, router http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func writeVaultFile(t *testing.T, root, rel, content string) {
	t.Helper()
	abs := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestVaultCRUD(t *testing.T) {
	_, router, _ := testEnv(t, "")

	// Empty list.
	rec := doJSON(t, router, http.MethodGet, "/vaults", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var list VaultListResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if list.Total != 0 {
		t.Errorf("total = %d, want 0", list.Total)
	}

	// Upsert.
	rec = doJSON(t, router, http.MethodPut, "/vaults/Notes", UpsertVaultRequest{
		Path:        "/vaults/notes",
		CachePolicy: registry.CachePolicyEnabled,
		Description: "team notes",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("upsert status = %d: %s", rec.Code, rec.Body.String())
	}
	var m registry.Mapping
	if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
		t.Fatal(err)
	}
	if m.Name != "Notes" || !m.CacheEnabled() {
		t.Errorf("mapping = %+v", m)
	}

	// List reflects the upsert.
	rec = doJSON(t, router, http.MethodGet, "/vaults", nil)
	_ = json.Unmarshal(rec.Body.Bytes(), &list)
	if list.Total != 1 {
		t.Errorf("total = %d, want 1", list.Total)
	}

	// Delete.
	rec = doJSON(t, router, http.MethodDelete, "/vaults/Notes", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}
	rec = doJSON(t, router, http.MethodGet, "/vaults", nil)
	_ = json.Unmarshal(rec.Body.Bytes(), &list)
	if list.Total != 0 {
		t.Errorf("total after delete = %d", list.Total)
	}
}

func TestUpsertVaultValidation(t *testing.T) {
	_, router, _ := testEnv(t, "")

	rec := doJSON(t, router, http.MethodPut, "/vaults/Notes", UpsertVaultRequest{Path: ""})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing path status = %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodPut, "/vaults/Notes", UpsertVaultRequest{
		Path:        "/v",
		CachePolicy: "sometimes",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad policy status = %d: %s", rec.Code, rec.Body.String())
	}
}

func TestClassifyEndpoint(t *testing.T) {
	svc, router, _ := testEnv(t, "")
	vaultDir := t.TempDir()
	writeVaultFile(t, vaultDir, "Meeting Plan.md", "agenda")
	if err := svc.MapVault("Notes", vaultDir, registry.CachePolicyDisabled, ""); err != nil {
		t.Fatal(err)
	}

	rec := doJSON(t, router, http.MethodGet,
		"/links/classify?uri=obsidian%3A%2F%2Fopen%3Fvault%3DNotes%26file%3DMeeting%2520Plan", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var cls linkservice.Classification
	if err := json.Unmarshal(rec.Body.Bytes(), &cls); err != nil {
		t.Fatal(err)
	}
	if cls.Status != linkservice.StatusMapped {
		t.Errorf("status = %q, want mapped", cls.Status)
	}

	// Unparseable link is a 400, not a 500.
	rec = doJSON(t, router, http.MethodGet, "/links/classify?uri=gibberish", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}

	// Missing uri parameter.
	rec = doJSON(t, router, http.MethodGet, "/links/classify", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestFetchEndpoint(t *testing.T) {
	svc, router, _ := testEnv(t, "")
	vaultDir := t.TempDir()
	writeVaultFile(t, vaultDir, "plan.md", "the content")
	if err := svc.MapVault("Notes", vaultDir, registry.CachePolicyDisabled, ""); err != nil {
		t.Fatal(err)
	}

	rec := doJSON(t, router, http.MethodGet,
		"/links/fetch?uri=obsidian%3A%2F%2Fopen%3Fvault%3DNotes%26file%3Dplan", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var res FetchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.Content != "the content" || res.Origin != "source" {
		t.Errorf("res = %+v", res)
	}

	// Unmapped vault.
	rec = doJSON(t, router, http.MethodGet,
		"/links/fetch?uri=obsidian%3A%2F%2Fopen%3Fvault%3DGhost%26file%3Dplan", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unmapped status = %d", rec.Code)
	}

	// Mapped but missing.
	rec = doJSON(t, router, http.MethodGet,
		"/links/fetch?uri=obsidian%3A%2F%2Fopen%3Fvault%3DNotes%26file%3Dgone", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing status = %d", rec.Code)
	}
}

func TestDecorateEndpoint(t *testing.T) {
	svc, router, _ := testEnv(t, "")
	vaultDir := t.TempDir()
	writeVaultFile(t, vaultDir, "plan.md", "x")
	if err := svc.MapVault("Notes", vaultDir, registry.CachePolicyDisabled, ""); err != nil {
		t.Fatal(err)
	}

	rec := doJSON(t, router, http.MethodPost, "/decorate", DecorateRequest{
		Content: "see obsidian://open?vault=Notes&file=plan and obsidian://open?vault=Ghost&file=x",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var res DecorateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.Total != 2 {
		t.Fatalf("total = %d: %+v", res.Total, res)
	}
	if res.Occurrences[0].Status != linkservice.StatusMapped {
		t.Errorf("occ[0] = %+v", res.Occurrences[0])
	}
	if res.Occurrences[1].Status != linkservice.StatusUnmapped {
		t.Errorf("occ[1] = %+v", res.Occurrences[1])
	}
}

func TestAuth(t *testing.T) {
	_, router, _ := testEnv(t, "secret")

	req := httptest.NewRequest(http.MethodGet, "/vaults", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no token status = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/vaults", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong token status = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/vaults", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("valid token status = %d", rec.Code)
	}
}
