package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"ledger-api/ledger"
)

// Dialect selects the SQL flavor. The value doubles as the database/sql
// driver name.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite3"
	DialectPostgres Dialect = "postgres"
)

// SQLStore persists accounts and the transaction log in a relational
// database. Every mutating operation runs in a single sql.Tx, so the
// balance change(s) and the log append commit together or not at all.
// On Postgres, balance reads inside a transaction take row locks in
// lexicographic email order; SQLite serializes writers on its own.
type SQLStore struct {
	client  *sql.DB
	dialect Dialect
}

// OpenSQL connects to the database named by driver ("sqlite3" or
// "postgres") and creates the schema if needed. Postgres connections are
// retried for a short while to tolerate a database that is still coming up.
func OpenSQL(driver, dsn string) (*SQLStore, error) {
	dialect := Dialect(driver)
	if dialect != DialectSQLite && dialect != DialectPostgres {
		return nil, fmt.Errorf("unsupported db driver %q", driver)
	}

	client, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if dialect == DialectSQLite {
		// database/sql pooling and SQLite's single writer do not mix well;
		// one connection avoids SQLITE_BUSY under concurrent operations.
		client.SetMaxOpenConns(1)
	}

	for i := 0; i < 5; i++ {
		err = client.Ping()
		if err == nil {
			break
		}
		log.Printf("Waiting for database... (%d/5): %v", i+1, err)
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLStore{client: client, dialect: dialect}
	if err := store.createTables(); err != nil {
		client.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLStore) Close() error {
	return s.client.Close()
}

func (s *SQLStore) createTables() error {
	createAccountsTable := `CREATE TABLE IF NOT EXISTS accounts (
        email TEXT PRIMARY KEY,
        balance BIGINT NOT NULL CHECK (balance >= 0),
        created_at TIMESTAMP NOT NULL
    );`

	transactionsID := "id INTEGER PRIMARY KEY AUTOINCREMENT"
	if s.dialect == DialectPostgres {
		transactionsID = "id BIGSERIAL PRIMARY KEY"
	}
	createTransactionsTable := `CREATE TABLE IF NOT EXISTS transactions (
        ` + transactionsID + `,
        kind TEXT NOT NULL,
        sender_email TEXT,
        receiver_email TEXT NOT NULL,
        amount BIGINT NOT NULL CHECK (amount > 0),
        timestamp TIMESTAMP NOT NULL
    );`

	createParticipantIndexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_transactions_sender ON transactions (sender_email);`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_receiver ON transactions (receiver_email);`,
	}

	if _, err := s.client.Exec(createAccountsTable); err != nil {
		return fmt.Errorf("create accounts table: %w", err)
	}
	if _, err := s.client.Exec(createTransactionsTable); err != nil {
		return fmt.Errorf("create transactions table: %w", err)
	}
	for _, stmt := range createParticipantIndexes {
		if _, err := s.client.Exec(stmt); err != nil {
			return fmt.Errorf("create transaction index: %w", err)
		}
	}
	return nil
}

// bind rewrites ? placeholders to $1..$n for Postgres.
func (s *SQLStore) bind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

func (s *SQLStore) CreateAccount(ctx context.Context, account ledger.Account) error {
	_, err := s.client.ExecContext(ctx,
		s.bind("INSERT INTO accounts (email, balance, created_at) VALUES (?, ?, ?)"),
		account.Email, account.Balance, account.CreatedAt)
	if isUniqueViolation(err) {
		return ledger.ErrDuplicateAccount
	}
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (s *SQLStore) GetAccount(ctx context.Context, email string) (ledger.Account, error) {
	var account ledger.Account
	err := s.client.QueryRowContext(ctx,
		s.bind("SELECT email, balance, created_at FROM accounts WHERE email = ?"),
		email).Scan(&account.Email, &account.Balance, &account.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Account{}, ledger.ErrAccountNotFound
	}
	if err != nil {
		return ledger.Account{}, fmt.Errorf("select account: %w", err)
	}
	return account, nil
}

func (s *SQLStore) Deposit(ctx context.Context, email string, amount int64) (ledger.Transaction, int64, error) {
	tx, err := s.client.BeginTx(ctx, nil)
	if err != nil {
		return ledger.Transaction{}, 0, fmt.Errorf("begin deposit: %w", err)
	}

	balance, err := s.balanceForUpdate(ctx, tx, email)
	if err != nil {
		tx.Rollback()
		return ledger.Transaction{}, 0, err
	}

	if balance > math.MaxInt64-amount {
		tx.Rollback()
		return ledger.Transaction{}, 0, ledger.ErrInvalidAmount
	}
	newBalance := balance + amount
	if _, err := tx.ExecContext(ctx,
		s.bind("UPDATE accounts SET balance = ? WHERE email = ?"),
		newBalance, email); err != nil {
		tx.Rollback()
		return ledger.Transaction{}, 0, fmt.Errorf("update balance: %w", err)
	}

	record := ledger.Transaction{
		Kind:     ledger.KindDeposit,
		Receiver: email,
		Amount:   amount,
	}
	if err := s.insertTransaction(ctx, tx, &record); err != nil {
		tx.Rollback()
		return ledger.Transaction{}, 0, err
	}

	if err := tx.Commit(); err != nil {
		return ledger.Transaction{}, 0, fmt.Errorf("commit deposit: %w", err)
	}
	return record, newBalance, nil
}

func (s *SQLStore) Transfer(ctx context.Context, sender, receiver string, amount int64) (ledger.Transaction, error) {
	tx, err := s.client.BeginTx(ctx, nil)
	if err != nil {
		return ledger.Transaction{}, fmt.Errorf("begin transfer: %w", err)
	}

	// Lock both rows, smaller email first regardless of role, so crossing
	// transfers over the same pair cannot deadlock.
	first, second := sender, receiver
	if receiver < sender {
		first, second = receiver, sender
	}
	firstBalance, err := s.balanceForUpdate(ctx, tx, first)
	if err != nil {
		tx.Rollback()
		return ledger.Transaction{}, err
	}
	secondBalance, err := s.balanceForUpdate(ctx, tx, second)
	if err != nil {
		tx.Rollback()
		return ledger.Transaction{}, err
	}

	senderBalance, receiverBalance := firstBalance, secondBalance
	if sender == second {
		senderBalance, receiverBalance = secondBalance, firstBalance
	}
	if senderBalance < amount {
		tx.Rollback()
		return ledger.Transaction{}, ledger.ErrInsufficientFunds
	}
	if receiverBalance > math.MaxInt64-amount {
		tx.Rollback()
		return ledger.Transaction{}, ledger.ErrInvalidAmount
	}

	if _, err := tx.ExecContext(ctx,
		s.bind("UPDATE accounts SET balance = balance - ? WHERE email = ?"),
		amount, sender); err != nil {
		tx.Rollback()
		return ledger.Transaction{}, fmt.Errorf("debit sender: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		s.bind("UPDATE accounts SET balance = balance + ? WHERE email = ?"),
		amount, receiver); err != nil {
		tx.Rollback()
		return ledger.Transaction{}, fmt.Errorf("credit receiver: %w", err)
	}

	record := ledger.Transaction{
		Kind:     ledger.KindTransfer,
		Sender:   sender,
		Receiver: receiver,
		Amount:   amount,
	}
	if err := s.insertTransaction(ctx, tx, &record); err != nil {
		tx.Rollback()
		return ledger.Transaction{}, err
	}

	if err := tx.Commit(); err != nil {
		return ledger.Transaction{}, fmt.Errorf("commit transfer: %w", err)
	}
	return record, nil
}

func (s *SQLStore) RecentFor(ctx context.Context, email string, limit int) ([]ledger.Transaction, error) {
	rows, err := s.client.QueryContext(ctx,
		s.bind(`SELECT id, kind, sender_email, receiver_email, amount, timestamp
            FROM transactions
            WHERE sender_email = ? OR receiver_email = ?
            ORDER BY timestamp DESC, id ASC
            LIMIT ?`),
		email, email, limit)
	if err != nil {
		return nil, fmt.Errorf("select transactions: %w", err)
	}
	defer rows.Close()

	transactions := []ledger.Transaction{}
	for rows.Next() {
		var record ledger.Transaction
		var sender sql.NullString
		if err := rows.Scan(&record.ID, &record.Kind, &sender,
			&record.Receiver, &record.Amount, &record.Timestamp); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		record.Sender = sender.String
		transactions = append(transactions, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read transactions: %w", err)
	}
	return transactions, nil
}

// balanceForUpdate reads a balance inside the transaction; on Postgres it
// also takes the row lock.
func (s *SQLStore) balanceForUpdate(ctx context.Context, tx *sql.Tx, email string) (int64, error) {
	query := "SELECT balance FROM accounts WHERE email = ?"
	if s.dialect == DialectPostgres {
		query += " FOR UPDATE"
	}
	var balance int64
	err := tx.QueryRowContext(ctx, s.bind(query), email).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ledger.ErrAccountNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("select balance: %w", err)
	}
	return balance, nil
}

// insertTransaction appends the record and assigns its id and timestamp.
// Postgres stamps the row from the database clock at insert, so ids and
// timestamps are assigned at the same moment even for transactions on
// disjoint accounts; SQLite runs on one connection and the process clock
// cannot regress between its serialized commits.
func (s *SQLStore) insertTransaction(ctx context.Context, tx *sql.Tx, record *ledger.Transaction) error {
	sender := sql.NullString{String: record.Sender, Valid: record.Sender != ""}

	if s.dialect == DialectPostgres {
		err := tx.QueryRowContext(ctx,
			s.bind(`INSERT INTO transactions (kind, sender_email, receiver_email, amount, timestamp)
                VALUES (?, ?, ?, ?, clock_timestamp()) RETURNING id, timestamp`),
			record.Kind, sender, record.Receiver, record.Amount).Scan(&record.ID, &record.Timestamp)
		if err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}
		return nil
	}

	record.Timestamp = time.Now().UTC()
	result, err := tx.ExecContext(ctx,
		`INSERT INTO transactions (kind, sender_email, receiver_email, amount, timestamp)
            VALUES (?, ?, ?, ?, ?)`,
		record.Kind, sender, record.Receiver, record.Amount, record.Timestamp)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("transaction id: %w", err)
	}
	record.ID = id
	return nil
}
