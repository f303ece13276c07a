package db

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"ledger-api/ledger"
)

func seedAccount(t *testing.T, m *MemoryStore, email string, balance int64) {
	t.Helper()
	err := m.CreateAccount(context.Background(), ledger.Account{
		Email:     email,
		Balance:   balance,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateAccount(%s): %v", email, err)
	}
}

func TestMemoryStoreCreateDuplicate(t *testing.T) {
	m := NewMemoryStore()
	seedAccount(t, m, "a@x.com", 100)

	err := m.CreateAccount(context.Background(), ledger.Account{Email: "a@x.com"})
	if !errors.Is(err, ledger.ErrDuplicateAccount) {
		t.Fatalf("want ErrDuplicateAccount, got %v", err)
	}
}

func TestMemoryStoreGetAccount(t *testing.T) {
	m := NewMemoryStore()
	seedAccount(t, m, "a@x.com", 100)

	account, err := m.GetAccount(context.Background(), "a@x.com")
	if err != nil {
		t.Fatal(err)
	}
	if account.Email != "a@x.com" || account.Balance != 100 {
		t.Fatalf("unexpected account: %+v", account)
	}

	if _, err := m.GetAccount(context.Background(), "ghost@x.com"); !errors.Is(err, ledger.ErrAccountNotFound) {
		t.Fatalf("want ErrAccountNotFound, got %v", err)
	}
}

func TestMemoryStoreInsufficientLeavesNoTrace(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	seedAccount(t, m, "a@x.com", 100)
	seedAccount(t, m, "b@x.com", 0)

	_, err := m.Transfer(ctx, "a@x.com", "b@x.com", 500)
	if !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("want ErrInsufficientFunds, got %v", err)
	}

	a, _ := m.GetAccount(ctx, "a@x.com")
	b, _ := m.GetAccount(ctx, "b@x.com")
	if a.Balance != 100 || b.Balance != 0 {
		t.Fatalf("balances changed: a=%d b=%d", a.Balance, b.Balance)
	}
	records, _ := m.RecentFor(ctx, "a@x.com", 10)
	if len(records) != 0 {
		t.Fatalf("log should be empty, got %d records", len(records))
	}
}

func TestMemoryStoreCreditOverflowRejected(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	seedAccount(t, m, "a@x.com", 10)
	seedAccount(t, m, "b@x.com", math.MaxInt64-5)

	if _, _, err := m.Deposit(ctx, "a@x.com", math.MaxInt64); !errors.Is(err, ledger.ErrInvalidAmount) {
		t.Fatalf("deposit: want ErrInvalidAmount, got %v", err)
	}
	if _, err := m.Transfer(ctx, "a@x.com", "b@x.com", 10); !errors.Is(err, ledger.ErrInvalidAmount) {
		t.Fatalf("transfer: want ErrInvalidAmount, got %v", err)
	}

	a, _ := m.GetAccount(ctx, "a@x.com")
	b, _ := m.GetAccount(ctx, "b@x.com")
	if a.Balance != 10 || b.Balance != math.MaxInt64-5 {
		t.Fatalf("balances changed: a=%d b=%d", a.Balance, b.Balance)
	}
	records, _ := m.RecentFor(ctx, "a@x.com", 10)
	if len(records) != 0 {
		t.Fatalf("log should be empty, got %d records", len(records))
	}
}

func TestMemoryStoreIDsMonotonicTimestampsOrdered(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	seedAccount(t, m, "a@x.com", 0)

	const n = 50
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			if _, _, err := m.Deposit(ctx, "a@x.com", 1); err != nil {
				t.Errorf("deposit: %v", err)
			}
		}()
	}
	wg.Wait()

	records, err := m.RecentFor(ctx, "a@x.com", n)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != n {
		t.Fatalf("len=%d want %d", len(records), n)
	}
	seen := make(map[int64]bool, n)
	for i, record := range records {
		if seen[record.ID] {
			t.Fatalf("duplicate id %d", record.ID)
		}
		seen[record.ID] = true
		if i > 0 && records[i-1].Timestamp.Before(record.Timestamp) {
			t.Fatalf("timestamps not newest-first at %d", i)
		}
	}
}

// Equal timestamps order by ascending id; the rule keeps listings
// deterministic when the clock does not move between commits.
func TestMemoryStoreRecentForTieBreak(t *testing.T) {
	m := NewMemoryStore()
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return fixed }

	ctx := context.Background()
	seedAccount(t, m, "a@x.com", 0)
	for i := 0; i < 3; i++ {
		if _, _, err := m.Deposit(ctx, "a@x.com", int64(i+1)); err != nil {
			t.Fatal(err)
		}
	}

	records, err := m.RecentFor(ctx, "a@x.com", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("len=%d want 2", len(records))
	}
	if records[0].ID != 1 || records[1].ID != 2 {
		t.Fatalf("tie-break ids=[%d %d] want [1 2]", records[0].ID, records[1].ID)
	}
}

func TestMemoryStoreRecentForFiltersParticipant(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	seedAccount(t, m, "a@x.com", 100)
	seedAccount(t, m, "b@x.com", 100)
	seedAccount(t, m, "c@x.com", 100)

	if _, err := m.Transfer(ctx, "a@x.com", "b@x.com", 10); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Transfer(ctx, "b@x.com", "c@x.com", 10); err != nil {
		t.Fatal(err)
	}

	records, _ := m.RecentFor(ctx, "a@x.com", 10)
	if len(records) != 1 || records[0].Sender != "a@x.com" {
		t.Fatalf("a records unexpected: %+v", records)
	}
	records, _ = m.RecentFor(ctx, "b@x.com", 10)
	if len(records) != 2 {
		t.Fatalf("b records len=%d want 2", len(records))
	}
}

// Transfers over the same pair in opposite directions acquire the two
// account locks in the same order, so this must run to completion.
func TestMemoryStoreCrossingTransfersNoDeadlock(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	seedAccount(t, m, "a@x.com", 1000)
	seedAccount(t, m, "b@x.com", 1000)

	const n = 300
	var wg sync.WaitGroup
	wg.Add(2 * n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, _ = m.Transfer(ctx, "a@x.com", "b@x.com", 1)
		}()
		go func() {
			defer wg.Done()
			_, _ = m.Transfer(ctx, "b@x.com", "a@x.com", 1)
		}()
	}
	wg.Wait()

	a, _ := m.GetAccount(ctx, "a@x.com")
	b, _ := m.GetAccount(ctx, "b@x.com")
	if a.Balance < 0 || b.Balance < 0 {
		t.Fatalf("negative balance: a=%d b=%d", a.Balance, b.Balance)
	}
	if a.Balance+b.Balance != 2000 {
		t.Fatalf("total=%d want 2000", a.Balance+b.Balance)
	}
}
