// result.go defines the uniform outcome shape every operation resolves to.
package orchestrator

import (
	"errors"
	"time"

	"github.com/redpay/transferd/internal/worker"
)

// Error codes carried on failure results. Callers get the same shape for
// business failures and infrastructure failures; the code exists so callers
// that do care (and tests) can tell them apart without parsing messages.
const (
	CodeValidation      = "validation"
	CodeSessionNotFound = "session_not_found"
	CodeSessionConflict = "session_conflict"
	CodeWorkerSpawn     = "worker_spawn"
	CodeWorkerTimeout   = "worker_timeout"
	CodeWorkerProtocol  = "worker_protocol"
	CodeStoreIO         = "store_io"
)

// Result is the single shape every job and OTP submission resolves to,
// success or failure, pending or terminal.
type Result struct {
	Success       bool               `json:"success"`
	RequiresOTP   bool               `json:"requires_otp,omitempty"`
	SessionID     string             `json:"session_id,omitempty"`
	Message       string             `json:"message"`
	TransactionID string             `json:"transaction_id,omitempty"`
	Details       *worker.FeeDetails `json:"details,omitempty"`
	ErrorCode     string             `json:"error,omitempty"`
	Timestamp     time.Time          `json:"timestamp"`
}

// failure builds a failure Result with the given code and message.
func failure(code, message string) *Result {
	return &Result{
		Success:   false,
		Message:   message,
		ErrorCode: code,
		Timestamp: time.Now().UTC(),
	}
}

// fromFinal converts a worker's terminal document into a Result.
func fromFinal(final *worker.FinalResult) *Result {
	return &Result{
		Success:       final.Success,
		Message:       final.Message,
		TransactionID: final.TransactionID,
		Details:       final.Details,
		Timestamp:     time.Now().UTC(),
	}
}

// fromWorkerError classifies a launcher error into a failure Result.
func fromWorkerError(err error) *Result {
	switch {
	case errors.Is(err, worker.ErrSpawn):
		return failure(CodeWorkerSpawn, "failed to start automation worker")
	case errors.Is(err, worker.ErrTimeout):
		return failure(CodeWorkerTimeout, "automation timed out before completing")
	default:
		return failure(CodeWorkerProtocol, "automation produced no usable result")
	}
}
