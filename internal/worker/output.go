// output.go parses the terminal JSON document a worker emits on stdout.
package worker

import (
	"encoding/json"
	"fmt"
)

// FeeDetails is the optional fee breakdown attached to a final result.
type FeeDetails struct {
	Amount       float64 `json:"amount"`
	ReceiverIBAN string  `json:"receiver_iban"`
	Fee          float64 `json:"fee,omitempty"`
	BankName     string  `json:"bank_name,omitempty"`
}

// FinalResult is a worker's terminal outcome for a finished attempt.
type FinalResult struct {
	Success       bool        `json:"success"`
	Message       string      `json:"message"`
	TransactionID string      `json:"transaction_id,omitempty"`
	Details       *FeeDetails `json:"details,omitempty"`
}

// Checkpoint is a worker's signal that it has paused for OTP entry.
// Raw carries the entire checkpoint document so correlation fields the
// worker reported (browser pid, current URL, its own transaction id) are
// preserved verbatim without this package knowing their names.
type Checkpoint struct {
	SessionID string
	OTPSeen   bool
	Raw       json.RawMessage
}

// Outcome is the parsed terminal document: exactly one of Checkpoint or
// Final is set.
type Outcome struct {
	Checkpoint *Checkpoint
	Final      *FinalResult
}

// document is the union wire shape. Success is a pointer so a final result
// missing the key entirely can be told apart from success=false.
type document struct {
	RequiresOTP   bool        `json:"requires_otp"`
	SessionID     string      `json:"session_id"`
	OTPSeen       bool        `json:"otp_seen"`
	Success       *bool       `json:"success"`
	Message       string      `json:"message"`
	TransactionID string      `json:"transaction_id"`
	Details       *FeeDetails `json:"details"`
}

// ParseDocument classifies raw as a checkpoint or a final result.
// A document that is neither is a protocol violation.
func ParseDocument(raw []byte) (*Outcome, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty output", ErrProtocol)
	}

	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProtocol, err)
	}

	if doc.RequiresOTP {
		if doc.SessionID == "" {
			return nil, fmt.Errorf("%w: checkpoint without session_id", ErrProtocol)
		}
		return &Outcome{Checkpoint: &Checkpoint{
			SessionID: doc.SessionID,
			OTPSeen:   doc.OTPSeen,
			Raw:       json.RawMessage(raw),
		}}, nil
	}

	if doc.Success == nil {
		return nil, fmt.Errorf("%w: document is neither checkpoint nor final result", ErrProtocol)
	}

	return &Outcome{Final: &FinalResult{
		Success:       *doc.Success,
		Message:       doc.Message,
		TransactionID: doc.TransactionID,
		Details:       doc.Details,
	}}, nil
}
