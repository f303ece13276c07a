// Package db provides the ledger.Store implementations: an in-memory
// store with per-account locking and a SQL store backed by SQLite or
// Postgres.
package db

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"ledger-api/ledger"
)

// MemoryStore keeps accounts and the transaction log in process memory.
// Each account carries its own mutex; operations touching two accounts
// acquire the locks in lexicographic email order, so two crossing
// transfers over the same pair can never deadlock. The log has a separate
// mutex that serializes appends, which keeps ids monotonic and timestamps
// non-decreasing.
type MemoryStore struct {
	mu       sync.Mutex // guards accounts map membership
	accounts map[string]*memAccount

	logMu  sync.Mutex // guards log, nextID and commit timestamps
	log    []ledger.Transaction
	nextID int64
	now    func() time.Time
}

type memAccount struct {
	mu        sync.Mutex
	balance   int64
	createdAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[string]*memAccount),
		now:      time.Now,
	}
}

func (m *MemoryStore) CreateAccount(ctx context.Context, account ledger.Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[account.Email]; ok {
		return ledger.ErrDuplicateAccount
	}
	m.accounts[account.Email] = &memAccount{
		balance:   account.Balance,
		createdAt: account.CreatedAt,
	}
	return nil
}

func (m *MemoryStore) GetAccount(ctx context.Context, email string) (ledger.Account, error) {
	if err := ctx.Err(); err != nil {
		return ledger.Account{}, err
	}
	acct, err := m.lookup(email)
	if err != nil {
		return ledger.Account{}, err
	}
	acct.mu.Lock()
	defer acct.mu.Unlock()
	return ledger.Account{Email: email, Balance: acct.balance, CreatedAt: acct.createdAt}, nil
}

func (m *MemoryStore) Deposit(ctx context.Context, email string, amount int64) (ledger.Transaction, int64, error) {
	if err := ctx.Err(); err != nil {
		return ledger.Transaction{}, 0, err
	}
	acct, err := m.lookup(email)
	if err != nil {
		return ledger.Transaction{}, 0, err
	}
	acct.mu.Lock()
	defer acct.mu.Unlock()
	if acct.balance > math.MaxInt64-amount {
		return ledger.Transaction{}, 0, ledger.ErrInvalidAmount
	}
	acct.balance += amount
	record := m.append(ledger.KindDeposit, "", email, amount)
	return record, acct.balance, nil
}

func (m *MemoryStore) Transfer(ctx context.Context, sender, receiver string, amount int64) (ledger.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return ledger.Transaction{}, err
	}
	from, err := m.lookup(sender)
	if err != nil {
		return ledger.Transaction{}, err
	}
	to, err := m.lookup(receiver)
	if err != nil {
		return ledger.Transaction{}, err
	}

	// Lock both accounts, smaller email first regardless of role.
	first, second := from, to
	if receiver < sender {
		first, second = to, from
	}
	first.mu.Lock()
	defer first.mu.Unlock()
	second.mu.Lock()
	defer second.mu.Unlock()

	if from.balance < amount {
		return ledger.Transaction{}, ledger.ErrInsufficientFunds
	}
	if to.balance > math.MaxInt64-amount {
		return ledger.Transaction{}, ledger.ErrInvalidAmount
	}
	from.balance -= amount
	to.balance += amount
	record := m.append(ledger.KindTransfer, sender, receiver, amount)
	return record, nil
}

func (m *MemoryStore) RecentFor(ctx context.Context, email string, limit int) ([]ledger.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.logMu.Lock()
	defer m.logMu.Unlock()

	matches := []ledger.Transaction{}
	for _, record := range m.log {
		if record.Sender == email || record.Receiver == email {
			matches = append(matches, record)
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		if !matches[i].Timestamp.Equal(matches[j].Timestamp) {
			return matches[i].Timestamp.After(matches[j].Timestamp)
		}
		return matches[i].ID < matches[j].ID
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (m *MemoryStore) lookup(email string) (*memAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acct, ok := m.accounts[email]
	if !ok {
		return nil, ledger.ErrAccountNotFound
	}
	return acct, nil
}

// append assigns the next id and the commit timestamp and adds the record
// to the log. Callers must still hold the account lock(s), so a record
// only ever exists for a fully applied mutation.
func (m *MemoryStore) append(kind ledger.Kind, sender, receiver string, amount int64) ledger.Transaction {
	m.logMu.Lock()
	defer m.logMu.Unlock()
	m.nextID++
	record := ledger.Transaction{
		ID:        m.nextID,
		Kind:      kind,
		Sender:    sender,
		Receiver:  receiver,
		Amount:    amount,
		Timestamp: m.now().UTC(),
	}
	m.log = append(m.log, record)
	return record
}
