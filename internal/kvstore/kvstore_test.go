package kvstore

import (
	"os"
	"testing"
)

func tempDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "raido-kv-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestGetAbsent(t *testing.T) {
	db := tempDB(t)
	_, ok, err := db.Get("missing")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Error("absent key reported present")
	}
}

func TestPutGet(t *testing.T) {
	db := tempDB(t)
	if err := db.Put("k", "v1"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok, err := db.Get("k")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if got != "v1" {
		t.Errorf("value = %q", got)
	}

	// Overwrite.
	if err := db.Put("k", "v2"); err != nil {
		t.Fatalf("Put overwrite: %v", err)
	}
	got, _, _ = db.Get("k")
	if got != "v2" {
		t.Errorf("value after overwrite = %q", got)
	}
}

func TestDelete(t *testing.T) {
	db := tempDB(t)
	_ = db.Put("k", "v")
	if err := db.Delete("k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := db.Get("k"); ok {
		t.Error("key still present after delete")
	}
	// Deleting again is a no-op.
	if err := db.Delete("k"); err != nil {
		t.Errorf("Delete absent: %v", err)
	}
}
