// Package testutil provides test helper utilities for transferd tests.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// FakeWorker writes an executable shell script that plays the part of the
// automation worker and returns its path. The script body runs under /bin/sh
// with the invocation arguments available as $1.. (payload JSON first).
func FakeWorker(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "worker.sh")
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		t.Fatalf("writing fake worker: %v", err)
	}
	return path
}

// EchoWorker returns a fake worker that prints the given terminal JSON
// document and exits.
func EchoWorker(t *testing.T, doc string) string {
	t.Helper()
	return FakeWorker(t, fmt.Sprintf("printf '%%s\\n' '%s'", doc))
}

// CheckpointWorker returns a fake worker that emits an OTP checkpoint for
// sessionID on its first run and a final result on a resume invocation
// (detected by the submit_otp argument, as the real scraper does).
func CheckpointWorker(t *testing.T, sessionID, finalDoc string) string {
	t.Helper()
	return FakeWorker(t, fmt.Sprintf(`if [ "$2" = "submit_otp" ]; then
  printf '%%s\n' '%s'
else
  printf '%%s\n' '{"requires_otp": true, "session_id": "%s", "otp_seen": true, "browser_pid": 4242}'
fi`, finalDoc, sessionID))
}

// HangingWorker returns a fake worker that emits nothing and sleeps,
// for timeout tests.
func HangingWorker(t *testing.T) string {
	t.Helper()
	return FakeWorker(t, "sleep 60")
}

// SlowResumeWorker returns a fake worker that checkpoints immediately but
// sleeps before answering a resume, for concurrency tests. delay is passed
// to sleep(1) verbatim, e.g. "0.3".
func SlowResumeWorker(t *testing.T, sessionID, finalDoc, delay string) string {
	t.Helper()
	return FakeWorker(t, fmt.Sprintf(`if [ "$2" = "submit_otp" ]; then
  sleep %s
  printf '%%s\n' '%s'
else
  printf '%%s\n' '{"requires_otp": true, "session_id": "%s"}'
fi`, delay, finalDoc, sessionID))
}
