package orchestrator

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/redpay/transferd/internal/session"
	"github.com/redpay/transferd/internal/testutil"
	"github.com/redpay/transferd/internal/worker"
)

// putRecord stores a record with the given status and idle age.
func putRecord(t *testing.T, store *session.Store, id, status string, age time.Duration) {
	t.Helper()
	now := time.Now().UTC()
	rec := &session.Record{
		SessionID: id,
		CreatedAt: now.Add(-age),
		UpdatedAt: now.Add(-age),
		Payload:   testPayload(),
		Status:    status,
	}
	if err := store.Put(rec); err != nil {
		t.Fatalf("Put %s failed: %v", id, err)
	}
}

func TestSweepOnceReclaimsStaleSessions(t *testing.T) {
	script := testutil.EchoWorker(t, `{"success": true, "message": "ok"}`)
	orch, store := newTestOrchestrator(t, script)

	putRecord(t, store, "stale", session.StatusAwaitingOTP, 10*time.Minute)
	putRecord(t, store, "fresh", session.StatusAwaitingOTP, time.Minute)

	swept := orch.SweepOnce(time.Now())
	if swept != 1 {
		t.Errorf("swept: got %d, want 1", swept)
	}

	if _, err := store.Get("stale"); !errors.Is(err, session.ErrNotFound) {
		t.Error("stale session should be gone")
	}
	if _, err := store.Get("fresh"); err != nil {
		t.Errorf("fresh session should survive: %v", err)
	}

	// A swept session surfaces as not-found on the handshake path.
	res := orch.SubmitOTP(context.Background(), "stale", "123456")
	if res.ErrorCode != CodeSessionNotFound {
		t.Errorf("expected session_not_found after sweep, got %+v", res)
	}
}

func TestSweepOnceSkipsSubmittingSessions(t *testing.T) {
	script := testutil.EchoWorker(t, `{"success": true, "message": "ok"}`)
	orch, store := newTestOrchestrator(t, script)

	putRecord(t, store, "resuming", session.StatusSubmittingOTP, 10*time.Minute)

	if swept := orch.SweepOnce(time.Now()); swept != 0 {
		t.Errorf("swept: got %d, want 0", swept)
	}
	if _, err := store.Get("resuming"); err != nil {
		t.Errorf("session mid-handshake must not be swept: %v", err)
	}
}

func TestSweepOnceSkipsInflightSessions(t *testing.T) {
	// An in-flight handshake protects a record even before its status write
	// lands.
	script := testutil.EchoWorker(t, `{"success": true, "message": "ok"}`)
	orch, store := newTestOrchestrator(t, script)

	putRecord(t, store, "busy", session.StatusAwaitingOTP, 10*time.Minute)
	if !orch.acquire("busy") {
		t.Fatal("acquire failed")
	}
	defer orch.release("busy")

	if swept := orch.SweepOnce(time.Now()); swept != 0 {
		t.Errorf("swept: got %d, want 0", swept)
	}
	if _, err := store.Get("busy"); err != nil {
		t.Errorf("in-flight session must not be swept: %v", err)
	}
}

func TestSweeperRunsPeriodically(t *testing.T) {
	store, err := session.NewStore(filepath.Join(t.TempDir(), "sessions"))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	launcher := &worker.Launcher{Command: "/bin/sh", Timeout: time.Second}
	orch := New(Deps{Store: store, Launcher: launcher, InactivityWindow: time.Millisecond})

	putRecord(t, store, "stale", session.StatusAwaitingOTP, time.Minute)

	sweeper := NewSweeper(orch, 50*time.Millisecond)
	sweeper.Start()
	defer sweeper.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := store.Get("stale"); errors.Is(err, session.ErrNotFound) {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Error("sweeper did not reclaim the stale session in time")
}
