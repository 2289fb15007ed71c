package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountType classifies an account for display and product rules.
type AccountType string

const (
	TypeChecking AccountType = "checking"
	TypeSavings  AccountType = "savings"
	TypeCredit   AccountType = "credit"
)

// Account is a customer-owned balance row. Number is the externally
// visible routing identifier; ID is the internal ownership key.
type Account struct {
	ID        uuid.UUID       `json:"id"`
	Number    string          `json:"number"`
	Type      AccountType     `json:"type"`
	Balance   decimal.Decimal `json:"balance"`
	Nickname  string          `json:"nickname,omitempty"`
	OwnerID   uuid.UUID       `json:"owner_id"`
	CreatedAt time.Time       `json:"created_at"`
}

// Label renders the account for confirmation screens: type, masked
// number, and nickname when one is set.
func (a Account) Label() string {
	var b strings.Builder
	b.WriteString(titleType(a.Type))
	b.WriteString(" ")
	b.WriteString(MaskNumber(a.Number))
	if a.Nickname != "" {
		b.WriteString(" (")
		b.WriteString(a.Nickname)
		b.WriteString(")")
	}
	return b.String()
}

func titleType(t AccountType) string {
	switch t {
	case TypeChecking:
		return "Checking"
	case TypeSavings:
		return "Savings"
	case TypeCredit:
		return "Credit"
	}
	return string(t)
}

// MaskNumber hides all but the last four digits of an account number.
func MaskNumber(number string) string {
	if len(number) <= 4 {
		return number
	}
	return strings.Repeat("*", len(number)-4) + number[len(number)-4:]
}

// Customer is the identity join used for login and step-up checks.
type Customer struct {
	ID       uuid.UUID `json:"id"`
	Email    string    `json:"email"`
	FullName string    `json:"full_name"`
}

// DefaultMemo replaces a blank transfer memo.
const DefaultMemo = "Fund Transfer"

// DefaultClassification tags transfers that carry no explicit type.
// Classification is an open enumeration; values pass through verbatim.
const DefaultClassification = "standard"

// TransferRequest is the transient intent built up by the workflow.
// It is not persisted; on commit it materializes into a
// TransactionRecord or is discarded.
type TransferRequest struct {
	DraftKey          uuid.UUID
	SourceAccountID   uuid.UUID
	DestinationNumber string
	Amount            decimal.Decimal
	Memo              string
	Classification    string
}

// Confirmation is the frozen display snapshot shown before re-auth.
type Confirmation struct {
	SourceLabel      string          `json:"source_label"`
	DestinationLabel string          `json:"destination_label"`
	Amount           decimal.Decimal `json:"amount"`
	Memo             string          `json:"memo"`
	Classification   string          `json:"classification"`
}

// TransactionRecord is the immutable ledger row written by a
// successful commit. Amount is always the positive magnitude; direction
// is inferred from which side matches the viewing account.
type TransactionRecord struct {
	ID                uuid.UUID       `json:"id"`
	DraftKey          uuid.UUID       `json:"draft_key"`
	SourceAccountID   uuid.UUID       `json:"source_account_id"`
	DestinationNumber string          `json:"destination_number"`
	Amount            decimal.Decimal `json:"amount"`
	Purpose           string          `json:"purpose"`
	Classification    string          `json:"classification"`
	CreatedAt         time.Time       `json:"created_at"`
}

// Direction of a transaction relative to a viewing account.
type Direction string

const (
	DirectionOutgoing Direction = "outgoing"
	DirectionIncoming Direction = "incoming"
)

// DirectionFor reports whether the record debits or credits the
// viewing account.
func (r TransactionRecord) DirectionFor(viewing Account) Direction {
	if r.SourceAccountID == viewing.ID {
		return DirectionOutgoing
	}
	return DirectionIncoming
}

// SignedAmountFor is the display amount from the viewing account's
// perspective: negative for outgoing, positive for incoming.
func (r TransactionRecord) SignedAmountFor(viewing Account) decimal.Decimal {
	if r.DirectionFor(viewing) == DirectionOutgoing {
		return r.Amount.Neg()
	}
	return r.Amount
}

// Receipt is carried to the success view after a commit.
type Receipt struct {
	TransactionID    uuid.UUID       `json:"transaction_id"`
	Amount           decimal.Decimal `json:"amount"`
	DestinationLabel string          `json:"destination_label"`
	Timestamp        time.Time       `json:"timestamp"`
}
