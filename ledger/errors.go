package ledger

import "errors"

// Domain errors form a closed set. The HTTP layer maps them to status
// codes and user-facing text; nothing in this package formats messages
// for presentation.
var (
	// ErrDuplicateAccount indicates an account already exists for the email.
	ErrDuplicateAccount = errors.New("account already exists")

	// ErrAccountNotFound indicates no account exists for the email.
	ErrAccountNotFound = errors.New("account not found")

	// ErrInvalidAmount indicates a malformed, zero or negative amount,
	// or a negative opening balance.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvalidEmail indicates an account key that is empty after
	// normalization.
	ErrInvalidEmail = errors.New("invalid email")

	// ErrInsufficientFunds indicates a debit would leave the balance negative.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrSelfTransfer indicates sender and receiver are the same account.
	ErrSelfTransfer = errors.New("cannot transfer to the same account")
)
