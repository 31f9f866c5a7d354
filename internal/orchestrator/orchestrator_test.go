package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/redpay/transferd/internal/session"
	"github.com/redpay/transferd/internal/testutil"
	"github.com/redpay/transferd/internal/worker"
)

func testPayload() session.JobPayload {
	return session.JobPayload{
		BankConfig: json.RawMessage(`{"name":"Banco Atlantico"}`),
		TransferData: session.TransferData{
			BankID:       "atlantico",
			Username:     "user1",
			Password:     "secret",
			ReceiverIBAN: "AO06000600000100037131174",
			Amount:       1000,
		},
	}
}

// newTestOrchestrator wires an orchestrator around a temp store and the
// given fake worker script.
func newTestOrchestrator(t *testing.T, script string) (*Orchestrator, *session.Store) {
	t.Helper()
	store, err := session.NewStore(filepath.Join(t.TempDir(), "sessions"))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	launcher := &worker.Launcher{Command: "/bin/sh", Script: script, Timeout: 5 * time.Second}
	orch := New(Deps{Store: store, Launcher: launcher, InactivityWindow: 5 * time.Minute})
	return orch, store
}

// spawnCounter returns a script body prefix that appends one line to a
// counter file per invocation, and a function reading the count.
func spawnCounter(t *testing.T) (string, func() int) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "spawns")
	prefix := fmt.Sprintf(`echo x >> %q`, path)
	count := func() int {
		data, err := os.ReadFile(path)
		if err != nil {
			return 0
		}
		n := 0
		for _, b := range data {
			if b == '\n' {
				n++
			}
		}
		return n
	}
	return prefix, count
}

func TestStartJobImmediateResult(t *testing.T) {
	script := testutil.EchoWorker(t, `{"success": true, "message": "done", "transaction_id": "TXN1", "details": {"amount": 1000, "receiver_iban": "AO06000600000100037131174", "fee": 500}}`)
	orch, store := newTestOrchestrator(t, script)

	res := orch.StartJob(context.Background(), testPayload())
	if !res.Success || res.TransactionID != "TXN1" {
		t.Errorf("unexpected result: %+v", res)
	}
	if res.Details == nil || res.Details.Fee != 500 {
		t.Errorf("details not carried through: %+v", res.Details)
	}

	ids, err := store.ListIDs()
	if err != nil {
		t.Fatalf("ListIDs failed: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("no session should be stored for an immediate result, got %v", ids)
	}
}

func TestStartJobValidationBeforeSpawn(t *testing.T) {
	prefix, spawns := spawnCounter(t)
	script := testutil.FakeWorker(t, prefix+`
printf '{"success": true, "message": "ok"}\n'`)
	orch, _ := newTestOrchestrator(t, script)

	payload := testPayload()
	payload.TransferData.Username = ""

	res := orch.StartJob(context.Background(), payload)
	if res.Success || res.ErrorCode != CodeValidation {
		t.Errorf("expected validation failure, got %+v", res)
	}
	if spawns() != 0 {
		t.Error("invalid payload must never spawn a worker")
	}
}

func TestStartJobCheckpointPersistsSession(t *testing.T) {
	script := testutil.CheckpointWorker(t, "S1", `{"success": true, "message": "ok"}`)
	orch, store := newTestOrchestrator(t, script)

	res := orch.StartJob(context.Background(), testPayload())
	if res.Success || !res.RequiresOTP || res.SessionID != "S1" {
		t.Fatalf("expected pending result for S1, got %+v", res)
	}

	// The record must be retrievable the moment the call returns.
	rec, err := store.Get("S1")
	if err != nil {
		t.Fatalf("Get after checkpoint failed: %v", err)
	}
	if rec.Status != session.StatusAwaitingOTP {
		t.Errorf("status: got %q, want %q", rec.Status, session.StatusAwaitingOTP)
	}
	if !rec.OTPSeen {
		t.Error("otp_seen should carry the worker's flag")
	}
	if rec.Payload.TransferData != testPayload().TransferData {
		t.Errorf("payload not stored verbatim: %+v", rec.Payload.TransferData)
	}
	if len(rec.ExternalRef) == 0 {
		t.Error("checkpoint document should be stored as external reference")
	}
}

func TestStartJobWorkerFailures(t *testing.T) {
	tests := []struct {
		name     string
		launcher *worker.Launcher
		code     string
	}{
		{
			"spawn error",
			&worker.Launcher{Command: "/nonexistent/worker", Timeout: time.Second},
			CodeWorkerSpawn,
		},
		{
			"malformed output",
			&worker.Launcher{Command: "/bin/sh", Script: testutil.EchoWorker(t, "garbage"), Timeout: time.Second},
			CodeWorkerProtocol,
		},
		{
			"timeout",
			&worker.Launcher{Command: "/bin/sh", Script: testutil.HangingWorker(t), Timeout: 300 * time.Millisecond},
			CodeWorkerTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := session.NewStore(filepath.Join(t.TempDir(), "sessions"))
			if err != nil {
				t.Fatalf("NewStore failed: %v", err)
			}
			orch := New(Deps{Store: store, Launcher: tt.launcher})

			res := orch.StartJob(context.Background(), testPayload())
			if res.Success {
				t.Fatal("expected failure result")
			}
			if res.ErrorCode != tt.code {
				t.Errorf("error code: got %q, want %q", res.ErrorCode, tt.code)
			}
		})
	}
}

func TestSubmitOTPFullScenario(t *testing.T) {
	script := testutil.CheckpointWorker(t, "S1", `{"success": true, "message": "transfer completed", "transaction_id": "TXN1"}`)
	orch, store := newTestOrchestrator(t, script)

	if res := orch.StartJob(context.Background(), testPayload()); res.SessionID != "S1" {
		t.Fatalf("expected checkpoint for S1, got %+v", res)
	}

	res := orch.SubmitOTP(context.Background(), "S1", "123456")
	if !res.Success || res.TransactionID != "TXN1" {
		t.Fatalf("unexpected handshake result: %+v", res)
	}

	// Terminal outcome retires the session.
	if _, err := store.Get("S1"); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("expected session gone after resolution, got %v", err)
	}

	// A second submission against the resolved session is a not-found failure.
	res = orch.SubmitOTP(context.Background(), "S1", "000000")
	if res.Success || res.ErrorCode != CodeSessionNotFound {
		t.Errorf("expected session_not_found, got %+v", res)
	}
}

func TestSubmitOTPUnknownSessionNeverSpawns(t *testing.T) {
	prefix, spawns := spawnCounter(t)
	script := testutil.FakeWorker(t, prefix+`
printf '{"success": true, "message": "ok"}\n'`)
	orch, _ := newTestOrchestrator(t, script)

	res := orch.SubmitOTP(context.Background(), "ghost", "123456")
	if res.Success || res.ErrorCode != CodeSessionNotFound {
		t.Fatalf("expected session_not_found, got %+v", res)
	}
	if spawns() != 0 {
		t.Error("unknown session must never relaunch a worker")
	}
}

func TestSubmitOTPRequiresCode(t *testing.T) {
	script := testutil.EchoWorker(t, `{"success": true, "message": "ok"}`)
	orch, _ := newTestOrchestrator(t, script)

	if res := orch.SubmitOTP(context.Background(), "S1", ""); res.ErrorCode != CodeValidation {
		t.Errorf("expected validation failure, got %+v", res)
	}
	if res := orch.SubmitOTP(context.Background(), "", "123456"); res.ErrorCode != CodeValidation {
		t.Errorf("expected validation failure, got %+v", res)
	}
}

func TestSubmitOTPConcurrentConflict(t *testing.T) {
	script := testutil.SlowResumeWorker(t, "S1", `{"success": true, "message": "ok", "transaction_id": "TXN1"}`, "0.5")
	orch, _ := newTestOrchestrator(t, script)

	if res := orch.StartJob(context.Background(), testPayload()); res.SessionID != "S1" {
		t.Fatalf("expected checkpoint for S1, got %+v", res)
	}

	var wg sync.WaitGroup
	results := make([]*Result, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i == 1 {
				// Let the first submission take the in-flight slot.
				time.Sleep(100 * time.Millisecond)
			}
			results[i] = orch.SubmitOTP(context.Background(), "S1", "123456")
		}(i)
	}
	wg.Wait()

	var successes, conflicts int
	for _, res := range results {
		if res.Success {
			successes++
		}
		if res.ErrorCode == CodeSessionConflict {
			conflicts++
		}
	}
	if successes != 1 || conflicts != 1 {
		t.Errorf("want exactly one success and one conflict, got %+v and %+v", results[0], results[1])
	}
}

func TestSubmitOTPWorkerFailureStillRetiresSession(t *testing.T) {
	// The resume invocation emits garbage; the session must still be deleted.
	script := testutil.FakeWorker(t, `if [ "$2" = "submit_otp" ]; then
  echo "Traceback (most recent call last):" >&2
  exit 1
else
  printf '{"requires_otp": true, "session_id": "S1"}\n'
fi`)
	orch, store := newTestOrchestrator(t, script)

	if res := orch.StartJob(context.Background(), testPayload()); res.SessionID != "S1" {
		t.Fatalf("expected checkpoint for S1, got %+v", res)
	}

	res := orch.SubmitOTP(context.Background(), "S1", "123456")
	if res.Success || res.ErrorCode != CodeWorkerProtocol {
		t.Errorf("expected worker_protocol failure, got %+v", res)
	}
	if _, err := store.Get("S1"); !errors.Is(err, session.ErrNotFound) {
		t.Error("session must not be resumable twice, even after a failed resume")
	}
}
