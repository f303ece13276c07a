package ledger

import (
	"context"
	"strings"
	"time"
)

// Engine executes money-movement operations against a Store. Every
// operation either commits fully (ledger mutation plus log record) or is
// rejected with one of the domain errors and no side effects. Balances
// are only ever mutated through the engine.
type Engine struct {
	store Store
	now   func() time.Time
}

func NewEngine(store Store) *Engine {
	return &Engine{store: store, now: time.Now}
}

// NormalizeEmail canonicalizes an account key. Emails are compared and
// stored case-insensitively.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateAccount opens a new account with the given opening balance in
// minor units. There is no default opening balance; the caller supplies
// any non-negative value, including zero.
func (e *Engine) CreateAccount(ctx context.Context, email string, initialBalance int64) (Account, error) {
	if initialBalance < 0 {
		return Account{}, ErrInvalidAmount
	}
	account := Account{
		Email:     NormalizeEmail(email),
		Balance:   initialBalance,
		CreatedAt: e.now().UTC(),
	}
	if account.Email == "" {
		return Account{}, ErrInvalidEmail
	}
	if err := e.store.CreateAccount(ctx, account); err != nil {
		return Account{}, err
	}
	return account, nil
}

// Deposit credits the account and records a DEPOSIT transaction. It
// returns the committed record and the resulting balance.
func (e *Engine) Deposit(ctx context.Context, email string, amount int64) (Transaction, int64, error) {
	if amount <= 0 {
		return Transaction{}, 0, ErrInvalidAmount
	}
	email = NormalizeEmail(email)
	if _, err := e.store.GetAccount(ctx, email); err != nil {
		return Transaction{}, 0, err
	}
	return e.store.Deposit(ctx, email, amount)
}

// Transfer moves amount from sender to receiver as one atomic unit and
// records a TRANSFER transaction. A failed debit rejects the whole
// operation; the receiver is never credited first.
func (e *Engine) Transfer(ctx context.Context, sender, receiver string, amount int64) (Transaction, error) {
	if amount <= 0 {
		return Transaction{}, ErrInvalidAmount
	}
	sender = NormalizeEmail(sender)
	receiver = NormalizeEmail(receiver)
	if sender == receiver {
		return Transaction{}, ErrSelfTransfer
	}
	if _, err := e.store.GetAccount(ctx, sender); err != nil {
		return Transaction{}, err
	}
	if _, err := e.store.GetAccount(ctx, receiver); err != nil {
		return Transaction{}, err
	}
	return e.store.Transfer(ctx, sender, receiver, amount)
}

// Balance returns a snapshot of the account.
func (e *Engine) Balance(ctx context.Context, email string) (Account, error) {
	return e.store.GetAccount(ctx, NormalizeEmail(email))
}

// Recent returns up to limit transactions involving the account, newest
// first. A non-positive limit returns an empty slice.
func (e *Engine) Recent(ctx context.Context, email string, limit int) ([]Transaction, error) {
	if limit <= 0 {
		return []Transaction{}, nil
	}
	return e.store.RecentFor(ctx, NormalizeEmail(email), limit)
}
