package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/oakbank/transferd/internal/domain"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(connString string) (*Store, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return &Store{db: pool}, nil
}

func (s *Store) Close() {
	s.db.Close()
}

// Pool exposes the underlying pool for schema setup in the seeder.
func (s *Store) Pool() *pgxpool.Pool {
	return s.db
}

const accountColumns = "id, number, type, balance::text, nickname, owner_id, created_at"

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var (
		acc     domain.Account
		balance string
	)
	err := row.Scan(&acc.ID, &acc.Number, &acc.Type, &balance, &acc.Nickname, &acc.OwnerID, &acc.CreatedAt)
	if err != nil {
		return nil, err
	}
	acc.Balance, err = decimal.NewFromString(balance)
	if err != nil {
		return nil, fmt.Errorf("malformed balance %q: %w", balance, err)
	}
	return &acc, nil
}

// ListAccountsByOwner returns every account owned by the customer,
// oldest first.
func (s *Store) ListAccountsByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.Account, error) {
	rows, err := s.db.Query(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE owner_id = $1 ORDER BY created_at",
		ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *acc)
	}
	return accounts, rows.Err()
}

// GetAccount retrieves a single account by its internal id.
func (s *Store) GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	acc, err := scanAccount(s.db.QueryRow(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrAccountNotFound
	}
	return acc, err
}

// FindAccountByNumber resolves an externally visible account number.
func (s *Store) FindAccountByNumber(ctx context.Context, number string) (*domain.Account, error) {
	acc, err := scanAccount(s.db.QueryRow(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE number = $1", number))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrRecipientNotFound
	}
	return acc, err
}

// CustomerByEmail looks up the identity row for login.
func (s *Store) CustomerByEmail(ctx context.Context, email string) (*domain.Customer, error) {
	var c domain.Customer
	err := s.db.QueryRow(ctx,
		"SELECT id, email, full_name FROM customers WHERE email = $1", email).
		Scan(&c.ID, &c.Email, &c.FullName)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// PasswordHashByEmail feeds the step-up verifier. Unknown emails are
// indistinguishable from store failures at the caller.
func (s *Store) PasswordHashByEmail(ctx context.Context, email string) (string, error) {
	var hash string
	err := s.db.QueryRow(ctx,
		"SELECT password_hash FROM customers WHERE email = $1", email).Scan(&hash)
	if err != nil {
		return "", err
	}
	return hash, nil
}

const recordColumns = "id, draft_key, source_account_id, destination_number, amount::text, purpose, classification, created_at"

func scanRecord(row pgx.Row) (*domain.TransactionRecord, error) {
	var (
		rec    domain.TransactionRecord
		amount string
	)
	err := row.Scan(&rec.ID, &rec.DraftKey, &rec.SourceAccountID, &rec.DestinationNumber,
		&amount, &rec.Purpose, &rec.Classification, &rec.CreatedAt)
	if err != nil {
		return nil, err
	}
	rec.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("malformed amount %q: %w", amount, err)
	}
	return &rec, nil
}

// ListTransactions returns both legs of the account's history, newest
// first: rows it sourced and rows addressed to its number.
func (s *Store) ListTransactions(ctx context.Context, accountID uuid.UUID, accountNumber string) ([]domain.TransactionRecord, error) {
	rows, err := s.db.Query(ctx,
		"SELECT "+recordColumns+" FROM transactions WHERE source_account_id = $1 OR destination_number = $2 ORDER BY created_at DESC",
		accountID, accountNumber)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.TransactionRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			slog.Warn("skipping unreadable transaction row", "error", err)
			continue
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// ExecTransfer moves funds atomically: one transaction, both account
// rows locked in deterministic id order, a fresh in-transaction balance
// check, then debit, credit, and the ledger insert. Any failure rolls
// everything back; partial mutation cannot escape. The unique draft key
// makes re-execution return the already-written record instead of
// moving funds twice.
func (s *Store) ExecTransfer(ctx context.Context, req domain.TransferRequest) (*domain.TransactionRecord, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return nil, fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	// 1. Draft-key idempotency: a replayed commit returns the original row.
	rec, err := scanRecord(tx.QueryRow(ctx,
		"SELECT "+recordColumns+" FROM transactions WHERE draft_key = $1", req.DraftKey))
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("idempotency query failed: %w", err)
	}

	// 2. Resolve the destination inside the transaction.
	var destID uuid.UUID
	err = tx.QueryRow(ctx,
		"SELECT id FROM accounts WHERE number = $1", req.DestinationNumber).Scan(&destID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrRecipientNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("destination lookup failed: %w", err)
	}
	if destID == req.SourceAccountID {
		return nil, domain.ErrSelfTransfer
	}

	// 3. Acquire row locks in id order to prevent deadlock between
	// opposing transfers.
	first, second := req.SourceAccountID, destID
	if first.String() > second.String() {
		first, second = second, first
	}

	balances := map[uuid.UUID]decimal.Decimal{}
	for _, id := range []uuid.UUID{first, second} {
		var raw string
		err = tx.QueryRow(ctx,
			"SELECT balance::text FROM accounts WHERE id = $1 FOR UPDATE", id).Scan(&raw)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("lock acquisition failed: %w", err)
		}
		balances[id], err = decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("malformed balance %q: %w", raw, err)
		}
	}

	// 4. Fresh balance check under the lock.
	if balances[req.SourceAccountID].LessThan(req.Amount) {
		return nil, domain.ErrInsufficientFunds
	}

	// 5. Debit and credit.
	amount := req.Amount.StringFixed(2)
	if _, err = tx.Exec(ctx,
		"UPDATE accounts SET balance = balance - $1::numeric WHERE id = $2",
		amount, req.SourceAccountID); err != nil {
		return nil, fmt.Errorf("debit failed: %w", err)
	}
	if _, err = tx.Exec(ctx,
		"UPDATE accounts SET balance = balance + $1::numeric WHERE id = $2",
		amount, destID); err != nil {
		return nil, fmt.Errorf("credit failed: %w", err)
	}

	// 6. Ledger insert.
	rec, err = scanRecord(tx.QueryRow(ctx,
		`INSERT INTO transactions (draft_key, source_account_id, destination_number, amount, purpose, classification)
		 VALUES ($1, $2, $3, $4::numeric, $5, $6)
		 RETURNING `+recordColumns,
		req.DraftKey, req.SourceAccountID, req.DestinationNumber, amount, req.Memo, req.Classification))
	if err != nil {
		return nil, fmt.Errorf("ledger insert failed: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("tx commit failed: %w", err)
	}
	return rec, nil
}
