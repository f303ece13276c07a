package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"ledger-api/ledger"
)

const (
	defaultRecentLimit = 10
	maxRecentLimit     = 100
)

type createAccountRequest struct {
	Email          string          `json:"email"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
}

type depositRequest struct {
	Email  string          `json:"email"`
	Amount decimal.Decimal `json:"amount"`
}

type transferRequest struct {
	Sender   string          `json:"sender_email"`
	Receiver string          `json:"receiver_email"`
	Amount   decimal.Decimal `json:"amount"`
}

// validEmail is a structural check only; credential ownership of the
// address is the external user service's problem.
func validEmail(email string) bool {
	email = strings.TrimSpace(email)
	at := strings.IndexByte(email, '@')
	return at > 0 && at < len(email)-1
}

func (app *App) CreateAccount() http.HandlerFunc {
	handler := func(w http.ResponseWriter, r *http.Request) {
		var req createAccountRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, r, http.StatusBadRequest, "Invalid request body")
			return
		}
		if !validEmail(req.Email) {
			writeError(w, r, http.StatusBadRequest, "Invalid email")
			return
		}

		initial, err := ledger.MinorUnits(req.InitialBalance)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		account, err := app.Engine.CreateAccount(r.Context(), req.Email, initial)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, balanceResponse{
			Email:   account.Email,
			Balance: ledger.ToDecimal(account.Balance),
		})
		log.Printf("created account %s", account.Email)
	}

	return app.RateLimit(handler, "ip")
}

func (app *App) Deposit() http.HandlerFunc {
	handler := func(w http.ResponseWriter, r *http.Request) {
		var req depositRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, r, http.StatusBadRequest, "Invalid request body")
			return
		}
		if !validEmail(req.Email) {
			writeError(w, r, http.StatusBadRequest, "Invalid email")
			return
		}

		amount, err := ledger.MinorUnits(req.Amount)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		record, balance, err := app.Engine.Deposit(r.Context(), req.Email, amount)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, balanceResponse{
			Email:   record.Receiver,
			Balance: ledger.ToDecimal(balance),
		})
		log.Printf("deposit committed: tx %d, %s to %s",
			record.ID, ledger.ToDecimal(record.Amount), record.Receiver)
	}

	return app.RateLimit(handler, "ip")
}

func (app *App) GetBalance() http.HandlerFunc {
	handler := func(w http.ResponseWriter, r *http.Request) {
		email := mux.Vars(r)["email"]

		account, err := app.Engine.Balance(r.Context(), email)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, balanceResponse{
			Email:   account.Email,
			Balance: ledger.ToDecimal(account.Balance),
		})
	}

	return app.RateLimit(app.RateLimit(handler, "ip"), "account")
}

func (app *App) CreateTransaction() http.HandlerFunc {
	handler := func(w http.ResponseWriter, r *http.Request) {
		var req transferRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, r, http.StatusBadRequest, "Invalid request body")
			return
		}
		if !validEmail(req.Sender) || !validEmail(req.Receiver) {
			writeError(w, r, http.StatusBadRequest, "Invalid email")
			return
		}

		amount, err := ledger.MinorUnits(req.Amount)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		record, err := app.Engine.Transfer(r.Context(), req.Sender, req.Receiver, amount)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, newTransactionResponse(record))
		log.Printf("transfer committed: tx %d, %s from %s to %s",
			record.ID, ledger.ToDecimal(record.Amount), record.Sender, record.Receiver)
	}

	return app.RateLimit(handler, "ip")
}

func (app *App) RecentTransactions() http.HandlerFunc {
	handler := func(w http.ResponseWriter, r *http.Request) {
		email := mux.Vars(r)["email"]

		limit := defaultRecentLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed <= 0 {
				writeError(w, r, http.StatusBadRequest, "Invalid limit")
				return
			}
			limit = parsed
		}
		if limit > maxRecentLimit {
			limit = maxRecentLimit
		}

		records, err := app.Engine.Recent(r.Context(), email, limit)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}

		out := make([]transactionResponse, 0, len(records))
		for _, record := range records {
			out = append(out, newTransactionResponse(record))
		}
		writeJSON(w, http.StatusOK, out)
	}

	return app.RateLimit(app.RateLimit(handler, "ip"), "account")
}

func (app *App) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
