package sqlite

import (
	"path/filepath"
	"testing"
	"time"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpen_CreatesFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	db, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer db.Close()

	if db.Path() != filepath.Join(dir, FileName) {
		t.Errorf("Path() = %q, want %q", db.Path(), filepath.Join(dir, FileName))
	}
}

func TestOpen_Reopen(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	db.Close()

	// Migrations must be idempotent.
	db, err = Open(dir)
	if err != nil {
		t.Fatalf("second Open() error: %v", err)
	}
	db.Close()
}

func TestTimeLayout_SortsLexically(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 5, 0, time.UTC)
	a := formatTime(base.Add(100 * time.Millisecond))
	b := formatTime(base.Add(120 * time.Millisecond))
	if !(a < b) {
		t.Errorf("formatTime ordering: %q should sort before %q", a, b)
	}
	if got := parseTime(a); !got.Equal(base.Add(100 * time.Millisecond)) {
		t.Errorf("parseTime(%q) = %v", a, got)
	}
}
