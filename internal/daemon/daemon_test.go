package daemon

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/mediaforge-app/mediaforge/internal/domain"
)

func newTestDaemon(t *testing.T, mutate func(*Config)) *Daemon {
	t.Helper()
	t.Setenv("MEDIAFORGE_HOME", t.TempDir())
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	d, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	t.Cleanup(func() {
		d.Controller.Shutdown(context.Background())
		d.Close()
	})
	return d
}

func TestNew_WiresComponents(t *testing.T) {
	d := newTestDaemon(t, nil)

	if d.Blobs == nil {
		t.Error("archive should be enabled by default")
	}
	if d.Bus != nil {
		t.Error("NATS should be disabled by default")
	}
	if _, err := os.Stat(d.Blobs.BlobDir()); err != nil {
		t.Errorf("blob dir not created: %v", err)
	}
	if got := d.Controller.Config().MaxConcurrent; got != 16 {
		t.Errorf("MaxConcurrent = %d, want 16", got)
	}
}

func TestNew_ArchiveDisabled(t *testing.T) {
	d := newTestDaemon(t, func(c *Config) { c.Archive.Enabled = false })
	if d.Blobs != nil {
		t.Error("Blobs should be nil when archive is disabled")
	}
}

func TestNew_NATSUnavailable(t *testing.T) {
	d := newTestDaemon(t, func(c *Config) {
		c.NATS.Enabled = true
		c.NATS.URL = "nats://127.0.0.1:1"
	})
	if d.Bus != nil {
		t.Error("Bus should be nil when NATS cannot be reached")
	}
}

func TestHandler_RoutesAndPricing(t *testing.T) {
	d := newTestDaemon(t, func(c *Config) { c.Video.Cost = 3 })
	ctx := context.Background()
	if _, err := d.DB.Grant(ctx, "alice", 2, "test"); err != nil {
		t.Fatal(err)
	}
	h := d.Handler()

	for _, path := range []string{"/health", "/metrics", "/api/status"} {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, w.Code)
		}
	}

	// Configured video cost (3) exceeds the balance (2).
	_, err := d.Controller.Submit(ctx, "alice", domain.KindVideoSynthesis, domain.JobInput{Ref: "a cat"})
	if err == nil {
		t.Fatal("Submit() should fail on insufficient balance")
	}
	entries, _ := d.DB.Entries(ctx, "alice", 1)
	if len(entries) != 1 || entries[0].Amount != 3 {
		t.Errorf("latest entry = %+v, want amount 3", entries)
	}
}
