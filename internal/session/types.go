// Package session provides the durable record of an in-flight transfer
// paused for OTP entry, and file-backed persistence for it.
package session

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Status values a Record moves through. A record only exists between the
// worker's OTP checkpoint and a terminal outcome; completed, failed and
// expired all end in deletion from the store.
const (
	StatusAwaitingOTP   = "awaiting_otp"
	StatusSubmittingOTP = "submitting_otp"
	StatusCompleted     = "completed"
	StatusFailed        = "failed"
	StatusExpired       = "expired"
)

// TransferData holds the caller-supplied transfer parameters. The worker
// needs all of it again on resume, so it is persisted verbatim inside the
// session record.
type TransferData struct {
	BankID       string  `json:"bank_id"`
	Username     string  `json:"username"`
	Password     string  `json:"password"`
	ReceiverIBAN string  `json:"receiver_iban"`
	Amount       float64 `json:"amount"`
	Description  string  `json:"description,omitempty"`
}

// JobPayload is the full input handed to a worker process. BankConfig is
// the per-institution automation config (selectors, URLs); the orchestrator
// never looks inside it.
type JobPayload struct {
	BankConfig   json.RawMessage `json:"bank_config"`
	TransferData TransferData    `json:"transfer_data"`
}

// Validate checks the fields a worker cannot run without. Called before
// anything is spawned so a bad request never costs a process.
func (p JobPayload) Validate() error {
	var missing []string
	if strings.TrimSpace(p.TransferData.BankID) == "" {
		missing = append(missing, "bank_id")
	}
	if strings.TrimSpace(p.TransferData.Username) == "" {
		missing = append(missing, "username")
	}
	if p.TransferData.Password == "" {
		missing = append(missing, "password")
	}
	if strings.TrimSpace(p.TransferData.ReceiverIBAN) == "" {
		missing = append(missing, "receiver_iban")
	}
	if p.TransferData.Amount <= 0 {
		missing = append(missing, "amount")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required transfer fields: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Record is the persisted state of one transfer paused for OTP.
// ExternalRef holds the worker's checkpoint document byte-for-byte
// (transaction id, browser pid, current URL and whatever else the worker
// reported); it is passed back on resume but never interpreted here.
type Record struct {
	SessionID   string          `json:"session_id"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	Payload     JobPayload      `json:"job_payload"`
	Status      string          `json:"status"`
	ExternalRef json.RawMessage `json:"external_reference,omitempty"`
	OTPSeen     bool            `json:"otp_seen"`
}

// Touch refreshes UpdatedAt. Call on every state transition before Put.
func (r *Record) Touch() {
	r.UpdatedAt = time.Now().UTC()
}

// Age returns how long the record has been idle, measured from UpdatedAt
// (falling back to CreatedAt for records written before any transition).
func (r *Record) Age(now time.Time) time.Duration {
	ref := r.UpdatedAt
	if ref.IsZero() {
		ref = r.CreatedAt
	}
	return now.Sub(ref)
}
