// sweeper.go reclaims awaiting_otp sessions that were never resumed.
package orchestrator

import (
	"time"

	"github.com/redpay/transferd/internal/log"
	"github.com/redpay/transferd/internal/session"
)

// Sweeper periodically deletes sessions idle past the inactivity window.
// Deletion is silent; the next OTP submission for a swept session surfaces
// "session expired or not found" through the normal lookup path.
type Sweeper struct {
	orch     *Orchestrator
	interval time.Duration
	stopCh   chan struct{}
}

// NewSweeper creates a Sweeper over the orchestrator's store. A non-positive
// interval defaults to one minute.
func NewSweeper(orch *Orchestrator, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{
		orch:     orch,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start runs the sweep loop in a goroutine until Stop is called.
func (s *Sweeper) Start() {
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stopCh:
				return
			case <-ticker.C:
				s.orch.SweepOnce(time.Now())
			}
		}
	}()
}

// Stop terminates the sweep loop.
func (s *Sweeper) Stop() {
	close(s.stopCh)
}

// SweepOnce deletes every stored session older than the inactivity window.
// Sessions with a handshake in flight (or already marked submitting_otp by
// one) are skipped, so a record is never deleted out from under an active
// resume. Returns the number of sessions reclaimed.
func (o *Orchestrator) SweepOnce(now time.Time) int {
	ids, err := o.store.ListIDs()
	if err != nil {
		o.logEvent(log.LogEvent{Event: log.EventStoreError, Error: err.Error()})
		return 0
	}

	swept := 0
	for _, id := range ids {
		if o.isInflight(id) {
			continue
		}
		rec, err := o.store.Get(id)
		if err != nil {
			// Already gone, or corrupt and discarded by the store.
			continue
		}
		if rec.Status == session.StatusSubmittingOTP {
			continue
		}
		if rec.Age(now) <= o.window {
			continue
		}

		o.deleteRecord(id)
		swept++
		o.logEvent(log.LogEvent{
			Event:     log.EventSessionExpired,
			SessionID: id,
			BankID:    rec.Payload.TransferData.BankID,
			Status:    session.StatusExpired,
		})
	}

	if swept > 0 {
		o.logEvent(log.LogEvent{Event: log.EventSweepComplete, Swept: swept})
	}
	return swept
}
