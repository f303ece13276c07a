// Package ledger holds the account ledger domain: account and transaction
// records, the closed error set, minor-unit money conversion and the
// transaction engine that validates and executes money movement.
package ledger

import (
	"context"
	"time"
)

// Kind classifies a committed transaction.
type Kind string

const (
	KindDeposit  Kind = "DEPOSIT"
	KindTransfer Kind = "TRANSFER"
)

// Account is one ledger account. Email is the unique key, lower-cased and
// trimmed before it reaches a store. Balance is in minor units (cents);
// it is never negative.
type Account struct {
	Email     string
	Balance   int64
	CreatedAt time.Time
}

// Transaction is an immutable record of one committed money movement.
// Sender is empty for deposits. ID and Timestamp are assigned by the
// store at commit; IDs are monotonic and never reused, timestamps are
// non-decreasing in log order.
type Transaction struct {
	ID        int64
	Kind      Kind
	Sender    string
	Receiver  string
	Amount    int64
	Timestamp time.Time
}

// Store is the persistence boundary the engine drives. Implementations
// must make each mutating call atomic: the balance change(s) and the log
// append commit together or not at all, and a failed call leaves no
// partial state behind.
type Store interface {
	// CreateAccount inserts the account, failing with ErrDuplicateAccount
	// if the email is already taken.
	CreateAccount(ctx context.Context, account Account) error

	// GetAccount returns a snapshot of the account, or ErrAccountNotFound.
	GetAccount(ctx context.Context, email string) (Account, error)

	// Deposit credits the account and appends a DEPOSIT record, returning
	// the record and the post-commit balance.
	Deposit(ctx context.Context, email string, amount int64) (Transaction, int64, error)

	// Transfer debits sender and credits receiver as one unit and appends
	// a TRANSFER record. ErrInsufficientFunds leaves both balances
	// untouched and appends nothing.
	Transfer(ctx context.Context, sender, receiver string, amount int64) (Transaction, error)

	// RecentFor returns up to limit transactions where email is sender or
	// receiver, ordered newest first (timestamp descending, ties by
	// ascending id).
	RecentFor(ctx context.Context, email string, limit int) ([]Transaction, error)
}
