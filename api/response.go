package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"ledger-api/ledger"
)

// errorResponse is the failure body. The detail field carries the
// user-facing message; trace_id ties the response to server logs.
type errorResponse struct {
	Detail  string `json:"detail"`
	TraceID string `json:"trace_id,omitempty"`
}

type balanceResponse struct {
	Email   string          `json:"email"`
	Balance decimal.Decimal `json:"balance"`
}

type transactionResponse struct {
	ID        int64           `json:"id"`
	Kind      string          `json:"kind"`
	Sender    string          `json:"sender_email,omitempty"`
	Receiver  string          `json:"receiver_email"`
	Amount    decimal.Decimal `json:"amount"`
	Timestamp time.Time       `json:"timestamp"`
}

func newTransactionResponse(record ledger.Transaction) transactionResponse {
	return transactionResponse{
		ID:        record.ID,
		Kind:      string(record.Kind),
		Sender:    record.Sender,
		Receiver:  record.Receiver,
		Amount:    ledger.ToDecimal(record.Amount),
		Timestamp: record.Timestamp,
	}
}

func writeJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, r *http.Request, statusCode int, detail string) {
	writeJSON(w, statusCode, errorResponse{Detail: detail, TraceID: traceID(r)})
}

// writeDomainError maps a ledger error to its HTTP status and display
// text. The domain never formats presentation strings; this table is the
// single place where error kinds become user-facing messages.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ledger.ErrAccountNotFound):
		writeError(w, r, http.StatusNotFound, "Account not found")
	case errors.Is(err, ledger.ErrDuplicateAccount):
		writeError(w, r, http.StatusBadRequest, "Account already exists")
	case errors.Is(err, ledger.ErrInvalidAmount):
		writeError(w, r, http.StatusBadRequest, "Invalid amount")
	case errors.Is(err, ledger.ErrInvalidEmail):
		writeError(w, r, http.StatusBadRequest, "Invalid email")
	case errors.Is(err, ledger.ErrInsufficientFunds):
		writeError(w, r, http.StatusBadRequest, "Insufficient funds")
	case errors.Is(err, ledger.ErrSelfTransfer):
		writeError(w, r, http.StatusBadRequest, "Sender and receiver must differ")
	default:
		log.Printf("[ERROR] trace=%s %v", traceID(r), err)
		writeError(w, r, http.StatusInternalServerError, "Internal server error")
	}
}
