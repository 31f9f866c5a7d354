// Package server exposes the orchestrator over a small HTTP API. It is a
// thin adapter: every response is the orchestrator's uniform result shape,
// and no business decisions are made here.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/redpay/transferd/internal/orchestrator"
	"github.com/redpay/transferd/internal/session"
)

// Service is the orchestrator surface the HTTP layer consumes.
type Service interface {
	StartJob(ctx context.Context, payload session.JobPayload) *orchestrator.Result
	SubmitOTP(ctx context.Context, sessionID, otpCode string) *orchestrator.Result
	ListSessions() ([]orchestrator.SessionInfo, error)
}

// Server is the transferd HTTP API server.
type Server struct {
	service      Service
	receiverIBAN string
	listener     net.Listener
	server       *http.Server
}

// NewServer creates a Server bound to addr.
func NewServer(addr string, service Service, receiverIBAN string) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("binding listener: %w", err)
	}

	s := &Server{
		service:      service,
		receiverIBAN: receiverIBAN,
		listener:     ln,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/receiver-iban", s.handleReceiverIBAN)
	mux.HandleFunc("/api/transfer", s.handleTransfer)
	mux.HandleFunc("/api/submit-otp", s.handleSubmitOTP)
	mux.HandleFunc("/api/sessions", s.handleSessions)

	s.server = &http.Server{Handler: mux}
	return s, nil
}

// Addr returns the address the server is listening on.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Start begins serving HTTP requests. Blocks until Shutdown or Close.
func (s *Server) Start() error {
	err := s.server.Serve(s.listener)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// --- Handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "OK",
		"message":   "transfer API is running",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleReceiverIBAN(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"iban": s.receiverIBAN})
}

// transferRequest is the inbound shape for /api/transfer. A request that
// carries both session_id and otp_code is an OTP submission for an earlier
// transfer; anything else starts a new job.
type transferRequest struct {
	BankID       string          `json:"bank_id"`
	BankConfig   json.RawMessage `json:"bank_config"`
	Username     string          `json:"username"`
	Password     string          `json:"password"`
	ReceiverIBAN string          `json:"receiver_iban"`
	Amount       float64         `json:"amount"`
	Description  string          `json:"description"`
	SessionID    string          `json:"session_id"`
	OTPCode      string          `json:"otp_code"`
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req transferRequest
	if !readJSON(w, r, &req) {
		return
	}

	if req.SessionID != "" && req.OTPCode != "" {
		res := s.service.SubmitOTP(r.Context(), req.SessionID, req.OTPCode)
		writeJSON(w, statusFor(res), res)
		return
	}

	res := s.service.StartJob(r.Context(), session.JobPayload{
		BankConfig: req.BankConfig,
		TransferData: session.TransferData{
			BankID:       req.BankID,
			Username:     req.Username,
			Password:     req.Password,
			ReceiverIBAN: req.ReceiverIBAN,
			Amount:       req.Amount,
			Description:  req.Description,
		},
	})
	writeJSON(w, statusFor(res), res)
}

type otpRequest struct {
	SessionID string `json:"session_id"`
	OTPCode   string `json:"otp_code"`
}

func (s *Server) handleSubmitOTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req otpRequest
	if !readJSON(w, r, &req) {
		return
	}

	res := s.service.SubmitOTP(r.Context(), req.SessionID, req.OTPCode)
	writeJSON(w, statusFor(res), res)
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	infos, err := s.service.ListSessions()
	if err != nil {
		http.Error(w, fmt.Sprintf("listing sessions: %v", err), http.StatusInternalServerError)
		return
	}
	if infos == nil {
		infos = []orchestrator.SessionInfo{}
	}
	writeJSON(w, http.StatusOK, infos)
}

// statusFor maps a result to an HTTP status. Business failures stay 200 so
// the caller reads one shape; malformed requests are the caller's fault.
func statusFor(res *orchestrator.Result) int {
	switch res.ErrorCode {
	case orchestrator.CodeValidation:
		return http.StatusBadRequest
	case orchestrator.CodeSessionNotFound:
		return http.StatusNotFound
	case orchestrator.CodeSessionConflict:
		return http.StatusConflict
	default:
		return http.StatusOK
	}
}

func readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil {
		return true
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, fmt.Sprintf("invalid JSON: %v", err), http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, fmt.Sprintf("encoding response: %v", err), http.StatusInternalServerError)
	}
}
