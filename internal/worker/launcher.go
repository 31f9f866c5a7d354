// Package worker spawns the external automation process and interprets its
// line-oriented JSON protocol. launcher.go manages process lifecycle: spawn,
// terminal-document collection, and the hard timeout.
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/redpay/transferd/internal/config"
	"github.com/redpay/transferd/internal/session"
)

// Error categories for a failed worker run. All are converted to uniform
// failure results at the orchestrator boundary; none crash the process.
var (
	ErrSpawn    = errors.New("worker spawn failed")
	ErrTimeout  = errors.New("worker timed out")
	ErrProtocol = errors.New("worker protocol error")
)

// Launcher runs one automation attempt to completion or to an OTP checkpoint.
type Launcher struct {
	Command string
	Script  string
	Timeout time.Duration
}

// NewLauncher builds a Launcher from the worker config section.
func NewLauncher(cfg config.WorkerConfig) *Launcher {
	return &Launcher{
		Command: cfg.Command,
		Script:  cfg.Script,
		Timeout: cfg.Timeout(),
	}
}

// Start runs a fresh automation attempt with the given payload.
func (l *Launcher) Start(ctx context.Context, payload session.JobPayload) (*Outcome, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal job payload: %w", err)
	}
	return l.run(ctx, data)
}

// resumePayload is the start payload plus the checkpoint document the worker
// reported, handed back verbatim as a resume hint.
type resumePayload struct {
	session.JobPayload
	ExternalRef json.RawMessage `json:"external_reference,omitempty"`
}

// Resume runs a fresh worker process that re-drives the flow to the OTP
// entry point and submits the code. No browser continuity is assumed; the
// stored payload carries everything needed to get there again.
func (l *Launcher) Resume(ctx context.Context, rec *session.Record, otpCode string) (*Outcome, error) {
	data, err := json.Marshal(resumePayload{
		JobPayload:  rec.Payload,
		ExternalRef: rec.ExternalRef,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal resume payload: %w", err)
	}
	return l.run(ctx, data, "submit_otp", rec.SessionID, otpCode)
}

// run spawns the worker with the payload as a single serialized argument and
// waits for its terminal JSON document on stdout. Stderr is captured for
// diagnostics only. The hard timeout applies until a terminal document
// arrives; a checkpoint exempts the process from it (the OTP inactivity
// window takes over from there).
func (l *Launcher) run(ctx context.Context, payloadJSON []byte, extraArgs ...string) (*Outcome, error) {
	args := make([]string, 0, len(extraArgs)+2)
	if l.Script != "" {
		args = append(args, l.Script)
	}
	args = append(args, string(payloadJSON))
	args = append(args, extraArgs...)

	cmd := exec.Command(l.Command, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSpawn, err)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSpawn, err)
	}

	outCh := make(chan *Outcome, 1)
	errCh := make(chan error, 1)
	go func() {
		// The first complete JSON value on stdout is the terminal document.
		var raw json.RawMessage
		if err := json.NewDecoder(stdout).Decode(&raw); err != nil {
			errCh <- err
			return
		}
		outcome, err := ParseDocument(raw)
		if err != nil {
			errCh <- err
			return
		}
		outCh <- outcome
	}()

	timeout := l.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case outcome := <-outCh:
		return l.finish(cmd, outcome)

	case decodeErr := <-errCh:
		// Stdout closed or carried garbage before any terminal document.
		_ = cmd.Process.Kill()
		waitErr := cmd.Wait()
		if errors.Is(decodeErr, ErrProtocol) {
			return nil, decodeErr
		}
		detail := strings.TrimSpace(stderr.String())
		if detail == "" && waitErr != nil {
			detail = waitErr.Error()
		}
		return nil, fmt.Errorf("%w: no terminal document (%s)", ErrProtocol, detail)

	case <-timer.C:
		// A checkpoint that landed in the same instant still wins.
		select {
		case outcome := <-outCh:
			return l.finish(cmd, outcome)
		default:
		}
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return nil, fmt.Errorf("%w after %s", ErrTimeout, timeout)

	case <-ctx.Done():
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return nil, fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
	}
}

// finish reaps the worker after a terminal document. A final result means
// the worker is done and is waited on; a checkpointed worker keeps running
// (it owns its browser lifetime) and is reaped in the background.
func (l *Launcher) finish(cmd *exec.Cmd, outcome *Outcome) (*Outcome, error) {
	if outcome.Checkpoint != nil {
		go func() { _ = cmd.Wait() }()
		return outcome, nil
	}
	_ = cmd.Wait()
	return outcome, nil
}
