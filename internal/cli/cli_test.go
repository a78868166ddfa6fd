package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/mediaforge-app/mediaforge/internal/domain"
	"github.com/mediaforge-app/mediaforge/internal/infra/sqlite"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestAccountCommands(t *testing.T) {
	t.Setenv("MEDIAFORGE_HOME", t.TempDir())

	out, err := run(t, "account", "grant", "alice", "25", "--reason", "signup bonus")
	if err != nil {
		t.Fatalf("grant error: %v", err)
	}
	if !strings.Contains(out, "balance 25") {
		t.Errorf("grant output = %q", out)
	}

	out, err = run(t, "account", "balance", "alice")
	if err != nil {
		t.Fatalf("balance error: %v", err)
	}
	if !strings.Contains(out, "alice: 25 coins") {
		t.Errorf("balance output = %q", out)
	}

	out, err = run(t, "account", "ledger", "alice")
	if err != nil {
		t.Fatalf("ledger error: %v", err)
	}
	if !strings.Contains(out, "GRANT") || !strings.Contains(out, "signup bonus") {
		t.Errorf("ledger output = %q", out)
	}

	if _, err := run(t, "account", "grant", "alice", "-3"); err == nil {
		t.Error("grant of a negative amount should fail")
	}
}

func TestJobsSweep(t *testing.T) {
	home := t.TempDir()
	t.Setenv("MEDIAFORGE_HOME", home)

	db, err := sqlite.Open(home)
	if err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-time.Hour).UTC()
	err = db.CreateJob(context.Background(), domain.Job{
		ID: "j1", OwnerID: "alice", Kind: domain.KindVideoSynthesis, Status: domain.StatusProcessing,
		Input: domain.JobInput{Ref: "a cat"}, CostReserved: 10, CreatedAt: old, UpdatedAt: old,
	})
	db.Close()
	if err != nil {
		t.Fatal(err)
	}

	out, err := run(t, "jobs", "sweep")
	if err != nil {
		t.Fatalf("sweep error: %v", err)
	}
	if !strings.Contains(out, "Failed 1 abandoned") {
		t.Errorf("sweep output = %q", out)
	}

	out, err = run(t, "jobs", "list", "alice")
	if err != nil {
		t.Fatalf("list error: %v", err)
	}
	if !strings.Contains(out, "j1") || !strings.Contains(out, "failed") {
		t.Errorf("list output = %q", out)
	}

	if _, err := run(t, "jobs", "remove", "alice", "j1"); err != nil {
		t.Errorf("remove error: %v", err)
	}
	if _, err := run(t, "jobs", "status", "alice", "j1"); err == nil {
		t.Error("status of a removed job should fail")
	}
}
