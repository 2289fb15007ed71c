package transfer

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/oakbank/transferd/internal/domain"
)

// fakeBank is an in-memory stand-in for the data-store API. Its
// ExecTransfer mirrors the real store's contract: atomic under a lock,
// fresh balance check, draft-key idempotent.
type fakeBank struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]*domain.Account
	records  map[uuid.UUID]*domain.TransactionRecord // by draft key
	failWith error
}

func newFakeBank() *fakeBank {
	return &fakeBank{
		accounts: make(map[uuid.UUID]*domain.Account),
		records:  make(map[uuid.UUID]*domain.TransactionRecord),
	}
}

func (b *fakeBank) addAccount(number string, balance string, owner uuid.UUID) *domain.Account {
	b.mu.Lock()
	defer b.mu.Unlock()
	acc := &domain.Account{
		ID:      uuid.New(),
		Number:  number,
		Type:    domain.TypeChecking,
		Balance: decimal.RequireFromString(balance),
		OwnerID: owner,
	}
	b.accounts[acc.ID] = acc
	return acc
}

func (b *fakeBank) setBalance(id uuid.UUID, balance string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.accounts[id].Balance = decimal.RequireFromString(balance)
}

func (b *fakeBank) balance(id uuid.UUID) decimal.Decimal {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.accounts[id].Balance
}

func (b *fakeBank) recordCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.records)
}

func (b *fakeBank) GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	acc, ok := b.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	copied := *acc
	return &copied, nil
}

func (b *fakeBank) FindAccountByNumber(ctx context.Context, number string) (*domain.Account, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, acc := range b.accounts {
		if acc.Number == number {
			copied := *acc
			return &copied, nil
		}
	}
	return nil, domain.ErrRecipientNotFound
}

func (b *fakeBank) ExecTransfer(ctx context.Context, req domain.TransferRequest) (*domain.TransactionRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.failWith != nil {
		return nil, b.failWith
	}
	if rec, ok := b.records[req.DraftKey]; ok {
		return rec, nil
	}

	source, ok := b.accounts[req.SourceAccountID]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	var dest *domain.Account
	for _, acc := range b.accounts {
		if acc.Number == req.DestinationNumber {
			dest = acc
			break
		}
	}
	if dest == nil {
		return nil, domain.ErrRecipientNotFound
	}
	if dest.ID == source.ID {
		return nil, domain.ErrSelfTransfer
	}
	if source.Balance.LessThan(req.Amount) {
		return nil, domain.ErrInsufficientFunds
	}

	source.Balance = source.Balance.Sub(req.Amount)
	dest.Balance = dest.Balance.Add(req.Amount)

	rec := &domain.TransactionRecord{
		ID:                uuid.New(),
		DraftKey:          req.DraftKey,
		SourceAccountID:   source.ID,
		DestinationNumber: dest.Number,
		Amount:            req.Amount,
		Purpose:           req.Memo,
		Classification:    req.Classification,
		CreatedAt:         time.Now(),
	}
	b.records[req.DraftKey] = rec
	return rec, nil
}

const goodPassword = "correct-horse"

// fakeVerifier accepts goodPassword and can be switched to a hard
// failure to exercise the generic verification-error path.
type fakeVerifier struct {
	mu     sync.Mutex
	broken bool
	calls  int
}

func (v *fakeVerifier) Verify(ctx context.Context, email, password string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls++
	if v.broken {
		return domain.ErrVerificationFailed
	}
	if password != goodPassword {
		return domain.ErrWrongPassword
	}
	return nil
}
