// Package transfer implements the staged funds-transfer workflow:
// input validation and recipient resolution produce a draft, the draft
// is confirmed, a step-up password check gates the commit, and the
// commit itself is delegated to the ledger as a single atomic
// operation. Stages are strictly ordered; the only re-entrant edge is
// dismissing the re-auth gate back to confirmation.
package transfer

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/oakbank/transferd/internal/domain"
	"github.com/oakbank/transferd/internal/money"
)

// AccountStore is the slice of the data-store API the workflow reads.
type AccountStore interface {
	GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	FindAccountByNumber(ctx context.Context, number string) (*domain.Account, error)
}

// Ledger executes the atomic commit. Implementations must guarantee
// all-or-nothing semantics and draft-key idempotency.
type Ledger interface {
	ExecTransfer(ctx context.Context, req domain.TransferRequest) (*domain.TransactionRecord, error)
}

// Verifier is the step-up credential check.
type Verifier interface {
	Verify(ctx context.Context, email, password string) error
}

// Identity is the authenticated customer driving the workflow.
type Identity struct {
	ID    uuid.UUID
	Email string
}

// Stage of a draft. Terminal outcomes (success, failure, cancel) remove
// the draft instead of being stages of their own.
type Stage string

const (
	StageConfirming Stage = "confirming"
	StageReauth     Stage = "reauth"
)

// Input is the raw submission from the input stage.
type Input struct {
	SourceAccountID   uuid.UUID
	DestinationNumber string
	Amount            string
	Memo              string
	Classification    string
}

// Draft is one in-flight workflow instance.
type Draft struct {
	ID        uuid.UUID
	OwnerID   uuid.UUID
	Request   domain.TransferRequest
	Snapshot  domain.Confirmation
	CreatedAt time.Time

	mu       sync.Mutex
	stage    Stage
	attempts int
	done     bool
}

// View is the draft projection returned to callers.
type View struct {
	ID        uuid.UUID           `json:"id"`
	Stage     Stage               `json:"stage"`
	Snapshot  domain.Confirmation `json:"confirmation"`
	ExpiresAt time.Time           `json:"expires_at"`
}

// CommitFailure is a terminal commit-stage error. It carries the
// attempted amount and recipient so the failure view has context.
type CommitFailure struct {
	Amount         decimal.Decimal
	RecipientLabel string
	err            error
}

func (f *CommitFailure) Error() string { return f.err.Error() }
func (f *CommitFailure) Unwrap() error { return f.err }

const defaultMaxAttempts = 5

// Manager owns the draft registry and drives stage transitions.
type Manager struct {
	accounts    AccountStore
	ledger      Ledger
	verifier    Verifier
	ttl         time.Duration
	maxAttempts int

	mu     sync.Mutex
	drafts map[uuid.UUID]*Draft

	stopOnce sync.Once
	stop     chan struct{}
}

// NewManager starts a manager with a background janitor that expires
// abandoned drafts after ttl.
func NewManager(accounts AccountStore, ledger Ledger, verifier Verifier, ttl time.Duration) *Manager {
	m := &Manager{
		accounts:    accounts,
		ledger:      ledger,
		verifier:    verifier,
		ttl:         ttl,
		maxAttempts: defaultMaxAttempts,
		drafts:      make(map[uuid.UUID]*Draft),
		stop:        make(chan struct{}),
	}
	go m.janitor()
	return m
}

// Close stops the expiry janitor.
func (m *Manager) Close() {
	m.stopOnce.Do(func() { close(m.stop) })
}

func (m *Manager) janitor() {
	interval := m.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case now := <-ticker.C:
			m.expire(now)
		}
	}
}

func (m *Manager) expire(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, d := range m.drafts {
		if now.Sub(d.CreatedAt) > m.ttl {
			delete(m.drafts, id)
			slog.Info("transfer draft expired", "draft_id", id)
		}
	}
}

// Start runs the input and recipient-resolution stages. On success the
// draft is registered in the confirming stage.
func (m *Manager) Start(ctx context.Context, owner Identity, in Input) (*View, error) {
	amount, err := money.ParseAmount(in.Amount)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.DestinationNumber) == "" {
		return nil, domain.ErrRecipientNotFound
	}

	source, err := m.accounts.GetAccount(ctx, in.SourceAccountID)
	if err != nil {
		return nil, err
	}
	if source.OwnerID != owner.ID {
		return nil, domain.ErrNotAccountOwner
	}
	// Advisory check against the last-fetched balance. The commit
	// re-checks under a row lock; this only gives early feedback.
	if source.Balance.LessThan(amount) {
		return nil, domain.ErrInsufficientFunds
	}

	dest, err := m.accounts.FindAccountByNumber(ctx, strings.TrimSpace(in.DestinationNumber))
	if err != nil {
		return nil, err
	}
	if dest.Number == source.Number {
		return nil, domain.ErrSelfTransfer
	}

	memo := strings.TrimSpace(in.Memo)
	if memo == "" {
		memo = domain.DefaultMemo
	}
	classification := strings.TrimSpace(in.Classification)
	if classification == "" {
		classification = domain.DefaultClassification
	}

	draft := &Draft{
		ID:      uuid.New(),
		OwnerID: owner.ID,
		Request: domain.TransferRequest{
			SourceAccountID:   source.ID,
			DestinationNumber: dest.Number,
			Amount:            amount,
			Memo:              memo,
			Classification:    classification,
		},
		Snapshot: domain.Confirmation{
			SourceLabel:      source.Label(),
			DestinationLabel: dest.Label(),
			Amount:           amount,
			Memo:             memo,
			Classification:   classification,
		},
		CreatedAt: time.Now(),
		stage:     StageConfirming,
	}
	draft.Request.DraftKey = draft.ID

	m.mu.Lock()
	m.drafts[draft.ID] = draft
	m.mu.Unlock()

	return m.view(draft), nil
}

func (m *Manager) view(d *Draft) *View {
	return &View{
		ID:        d.ID,
		Stage:     d.stage,
		Snapshot:  d.Snapshot,
		ExpiresAt: d.CreatedAt.Add(m.ttl),
	}
}

// get fetches a draft owned by the caller. Drafts belonging to other
// customers are reported as missing, not forbidden.
func (m *Manager) get(id uuid.UUID, ownerID uuid.UUID) (*Draft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drafts[id]
	if !ok || d.OwnerID != ownerID {
		return nil, domain.ErrDraftNotFound
	}
	return d, nil
}

// Get returns the current view of a draft.
func (m *Manager) Get(id uuid.UUID, ownerID uuid.UUID) (*View, error) {
	d, err := m.get(id, ownerID)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return m.view(d), nil
}

// Proceed acknowledges the confirmation snapshot and opens the re-auth
// gate.
func (m *Manager) Proceed(id uuid.UUID, ownerID uuid.UUID) (*View, error) {
	d, err := m.get(id, ownerID)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stage != StageConfirming {
		return nil, domain.ErrStageViolation
	}
	d.stage = StageReauth
	return m.view(d), nil
}

// Dismiss closes the re-auth gate without verifying, returning the
// draft to confirmation. No mutation has occurred.
func (m *Manager) Dismiss(id uuid.UUID, ownerID uuid.UUID) (*View, error) {
	d, err := m.get(id, ownerID)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stage != StageReauth {
		return nil, domain.ErrStageViolation
	}
	d.stage = StageConfirming
	return m.view(d), nil
}

// Cancel discards a draft entirely.
func (m *Manager) Cancel(id uuid.UUID, ownerID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drafts[id]
	if !ok || d.OwnerID != ownerID {
		return domain.ErrDraftNotFound
	}
	delete(m.drafts, id)
	return nil
}

func (m *Manager) remove(id uuid.UUID) {
	m.mu.Lock()
	delete(m.drafts, id)
	m.mu.Unlock()
}

// VerifyAndCommit runs the re-auth gate and, on success, the commit —
// exactly once per draft. A wrong password keeps the draft at the gate
// and counts an attempt; after too many the draft locks. Commit errors
// are terminal: the draft is discarded and the failure carries the
// attempted amount and recipient for the failure view.
func (m *Manager) VerifyAndCommit(ctx context.Context, id uuid.UUID, owner Identity, password string) (*domain.Receipt, error) {
	d, err := m.get(id, owner.ID)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.done {
		return nil, domain.ErrDuplicateTransfer
	}
	if d.stage != StageReauth {
		return nil, domain.ErrStageViolation
	}

	if err := m.verifier.Verify(ctx, owner.Email, password); err != nil {
		if errors.Is(err, domain.ErrWrongPassword) {
			d.attempts++
			if d.attempts >= m.maxAttempts {
				m.remove(d.ID)
				slog.Warn("transfer draft locked", "draft_id", d.ID, "attempts", d.attempts)
				return nil, domain.ErrDraftLocked
			}
			return nil, domain.ErrWrongPassword
		}
		return nil, domain.ErrVerificationFailed
	}

	rec, err := m.ledger.ExecTransfer(ctx, d.Request)
	if err != nil {
		d.done = true
		m.remove(d.ID)
		slog.Error("transfer commit failed", "draft_id", d.ID, "error", err)
		return nil, &CommitFailure{
			Amount:         d.Request.Amount,
			RecipientLabel: d.Snapshot.DestinationLabel,
			err:            err,
		}
	}

	d.done = true
	m.remove(d.ID)
	slog.Info("transfer committed",
		"draft_id", d.ID, "transaction_id", rec.ID, "amount", rec.Amount.StringFixed(2))

	return &domain.Receipt{
		TransactionID:    rec.ID,
		Amount:           rec.Amount,
		DestinationLabel: d.Snapshot.DestinationLabel,
		Timestamp:        rec.CreatedAt,
	}, nil
}
