// Package orchestrator coordinates multi-step transfer automation jobs that
// pause for an out-of-band OTP and later resume. It owns the session
// lifecycle: created at the worker's checkpoint, resolved by an OTP
// handshake, or reclaimed by the sweeper.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redpay/transferd/internal/ledger"
	"github.com/redpay/transferd/internal/log"
	"github.com/redpay/transferd/internal/session"
	"github.com/redpay/transferd/internal/worker"
)

// Deps holds the collaborators an Orchestrator needs. Ledger is optional.
type Deps struct {
	Store    *session.Store
	Launcher *worker.Launcher
	Logger   *log.Logger
	Ledger   *ledger.Ledger
	// InactivityWindow bounds how long an awaiting_otp session may sit idle
	// before the sweeper reclaims it. Zero means 5 minutes.
	InactivityWindow time.Duration
}

// Orchestrator runs jobs and completes OTP handshakes. The session store is
// the only shared mutable state; the in-flight set exists solely to reject
// concurrent handshakes for the same session.
type Orchestrator struct {
	store    *session.Store
	launcher *worker.Launcher
	logger   *log.Logger
	ledger   *ledger.Ledger
	window   time.Duration

	mu       sync.Mutex
	inflight map[string]struct{}
}

// New creates an Orchestrator. Corrupt-record discards in the store are
// wired into the event log here.
func New(deps Deps) *Orchestrator {
	window := deps.InactivityWindow
	if window <= 0 {
		window = 5 * time.Minute
	}

	o := &Orchestrator{
		store:    deps.Store,
		launcher: deps.Launcher,
		logger:   deps.Logger,
		ledger:   deps.Ledger,
		window:   window,
		inflight: make(map[string]struct{}),
	}

	deps.Store.OnCorrupt(func(sessionID string, err error) {
		o.logEvent(log.LogEvent{
			Event:     log.EventSessionCorrupt,
			SessionID: sessionID,
			Error:     err.Error(),
		})
	})

	return o
}

// StartJob validates the payload, runs a worker to completion or to an OTP
// checkpoint, and returns the uniform Result. A checkpoint is durably stored
// before the pending result is returned, so the session is retrievable the
// moment the caller sees it.
func (o *Orchestrator) StartJob(ctx context.Context, payload session.JobPayload) *Result {
	if err := payload.Validate(); err != nil {
		return failure(CodeValidation, err.Error())
	}

	o.logEvent(log.LogEvent{
		Event:  log.EventJobStarted,
		BankID: payload.TransferData.BankID,
		Amount: payload.TransferData.Amount,
	})

	started := time.Now()
	outcome, err := o.launcher.Start(ctx, payload)
	if err != nil {
		res := fromWorkerError(err)
		o.logWorkerError(err, "")
		return res
	}

	if outcome.Checkpoint != nil {
		return o.storeCheckpoint(payload, outcome.Checkpoint)
	}

	res := fromFinal(outcome.Final)
	o.finishJob("", payload, res, time.Since(started))
	return res
}

// storeCheckpoint persists the session record for a paused job. A write
// failure aborts the operation: losing the record would make the session
// unresumable, so the caller must restart rather than believe a pending
// session exists.
func (o *Orchestrator) storeCheckpoint(payload session.JobPayload, cp *worker.Checkpoint) *Result {
	now := time.Now().UTC()
	rec := &session.Record{
		SessionID:   cp.SessionID,
		CreatedAt:   now,
		UpdatedAt:   now,
		Payload:     payload,
		Status:      session.StatusAwaitingOTP,
		ExternalRef: cp.Raw,
		OTPSeen:     cp.OTPSeen,
	}

	if err := o.store.Put(rec); err != nil {
		o.logEvent(log.LogEvent{
			Event:     log.EventStoreError,
			SessionID: cp.SessionID,
			Error:     err.Error(),
		})
		return failure(CodeStoreIO, "failed to persist OTP session; restart the transfer")
	}

	o.logEvent(log.LogEvent{
		Event:     log.EventCheckpointStored,
		SessionID: cp.SessionID,
		BankID:    payload.TransferData.BankID,
		Status:    session.StatusAwaitingOTP,
	})

	return &Result{
		Success:     false,
		RequiresOTP: true,
		SessionID:   cp.SessionID,
		Message:     "OTP verification required",
		Timestamp:   time.Now().UTC(),
	}
}

// SubmitOTP completes a paused job. At most one handshake may be in flight
// per session; a concurrent second submission is rejected immediately. The
// session record is deleted on every terminal outcome, parseable or not — a
// session is never resumable twice.
func (o *Orchestrator) SubmitOTP(ctx context.Context, sessionID, otpCode string) *Result {
	if sessionID == "" || otpCode == "" {
		return failure(CodeValidation, "session_id and otp_code are required")
	}

	if !o.acquire(sessionID) {
		o.logEvent(log.LogEvent{Event: log.EventSessionConflict, SessionID: sessionID})
		return failure(CodeSessionConflict, "an OTP submission is already in progress for this session")
	}
	defer o.release(sessionID)

	rec, err := o.store.Get(sessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			o.logEvent(log.LogEvent{Event: log.EventSessionNotFound, SessionID: sessionID})
			return failure(CodeSessionNotFound, "session expired or not found")
		}
		o.logEvent(log.LogEvent{Event: log.EventStoreError, SessionID: sessionID, Error: err.Error()})
		return failure(CodeStoreIO, "failed to load session")
	}

	rec.Status = session.StatusSubmittingOTP
	rec.Touch()
	if err := o.store.Put(rec); err != nil {
		// Abort without deleting: the session is untouched and may still be
		// resumed once storage recovers.
		o.logEvent(log.LogEvent{Event: log.EventStoreError, SessionID: sessionID, Error: err.Error()})
		return failure(CodeStoreIO, "failed to update session state")
	}

	o.logEvent(log.LogEvent{
		Event:     log.EventOTPSubmitted,
		SessionID: sessionID,
		BankID:    rec.Payload.TransferData.BankID,
	})

	started := time.Now()
	outcome, err := o.launcher.Resume(ctx, rec, otpCode)
	if err != nil {
		o.deleteRecord(sessionID)
		o.logWorkerError(err, sessionID)
		if errors.Is(err, worker.ErrSpawn) || errors.Is(err, worker.ErrTimeout) {
			return fromWorkerError(err)
		}
		return failure(CodeWorkerProtocol, "OTP verification failed")
	}

	if outcome.Checkpoint != nil {
		// A resume must terminate; a second checkpoint is a protocol breach.
		o.deleteRecord(sessionID)
		o.logWorkerError(fmt.Errorf("%w: checkpoint on resume", worker.ErrProtocol), sessionID)
		return failure(CodeWorkerProtocol, "OTP verification failed")
	}

	res := fromFinal(outcome.Final)
	res.SessionID = sessionID
	o.deleteRecord(sessionID)
	o.finishJob(sessionID, rec.Payload, res, time.Since(started))
	return res
}

// SessionInfo is a read-only view of a pending session for listings.
type SessionInfo struct {
	SessionID string    `json:"session_id"`
	BankID    string    `json:"bank_id"`
	Amount    float64   `json:"amount"`
	Status    string    `json:"status"`
	OTPSeen   bool      `json:"otp_seen"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ListSessions returns every live session, for the status surfaces.
// Credentials never leave this method.
func (o *Orchestrator) ListSessions() ([]SessionInfo, error) {
	ids, err := o.store.ListIDs()
	if err != nil {
		return nil, err
	}

	infos := make([]SessionInfo, 0, len(ids))
	for _, id := range ids {
		rec, err := o.store.Get(id)
		if err != nil {
			// Deleted or discarded between list and get.
			continue
		}
		infos = append(infos, SessionInfo{
			SessionID: rec.SessionID,
			BankID:    rec.Payload.TransferData.BankID,
			Amount:    rec.Payload.TransferData.Amount,
			Status:    rec.Status,
			OTPSeen:   rec.OTPSeen,
			CreatedAt: rec.CreatedAt,
			UpdatedAt: rec.UpdatedAt,
		})
	}
	return infos, nil
}

// acquire marks a session as having a handshake in flight.
// Returns false if one already is.
func (o *Orchestrator) acquire(sessionID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.inflight[sessionID]; busy {
		return false
	}
	o.inflight[sessionID] = struct{}{}
	return true
}

func (o *Orchestrator) release(sessionID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.inflight, sessionID)
}

// isInflight reports whether a handshake is currently resuming the session.
func (o *Orchestrator) isInflight(sessionID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, busy := o.inflight[sessionID]
	return busy
}

func (o *Orchestrator) deleteRecord(sessionID string) {
	if err := o.store.Delete(sessionID); err != nil {
		o.logEvent(log.LogEvent{Event: log.EventStoreError, SessionID: sessionID, Error: err.Error()})
	}
}

// finishJob logs a terminal outcome and records it in the ledger.
func (o *Orchestrator) finishJob(sessionID string, payload session.JobPayload, res *Result, elapsed time.Duration) {
	event := log.EventJobCompleted
	status := session.StatusCompleted
	if !res.Success {
		event = log.EventJobFailed
		status = session.StatusFailed
	}
	if sessionID != "" {
		event = log.EventOTPResolved
	}
	o.logEvent(log.LogEvent{
		Event:         event,
		SessionID:     sessionID,
		TransactionID: res.TransactionID,
		BankID:        payload.TransferData.BankID,
		Status:        status,
		Message:       res.Message,
		DurationMs:    elapsed.Milliseconds(),
	})

	if o.ledger == nil {
		return
	}
	entry := ledger.Entry{
		SessionID:     sessionID,
		BankID:        payload.TransferData.BankID,
		Success:       res.Success,
		Message:       res.Message,
		TransactionID: res.TransactionID,
		Amount:        payload.TransferData.Amount,
		ReceiverIBAN:  payload.TransferData.ReceiverIBAN,
	}
	if res.Details != nil {
		entry.Fee = res.Details.Fee
	}
	if _, err := o.ledger.Record(entry); err != nil {
		o.logEvent(log.LogEvent{Event: log.EventStoreError, SessionID: sessionID, Error: err.Error()})
	}
}

func (o *Orchestrator) logWorkerError(err error, sessionID string) {
	event := log.EventWorkerProtocol
	switch {
	case errors.Is(err, worker.ErrSpawn):
		event = log.EventWorkerSpawnFailed
	case errors.Is(err, worker.ErrTimeout):
		event = log.EventWorkerTimeout
	}
	o.logEvent(log.LogEvent{Event: event, SessionID: sessionID, Error: err.Error()})
}

// logEvent appends to the event log, tolerating a nil logger in tests.
func (o *Orchestrator) logEvent(event log.LogEvent) {
	if o.logger == nil {
		return
	}
	_ = o.logger.Append(event)
}
