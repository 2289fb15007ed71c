package domain

import "errors"

// Sentinel errors shared across the workflow, store, and API layers.
// Handlers map these to status codes; everything else is a 500.
var (
	ErrAccountNotFound   = errors.New("account not found")
	ErrRecipientNotFound = errors.New("recipient account not found")
	ErrSelfTransfer      = errors.New("cannot transfer to the same account")
	ErrInsufficientFunds = errors.New("insufficient funds")

	ErrDraftNotFound  = errors.New("transfer draft not found")
	ErrStageViolation = errors.New("operation not valid in current stage")
	ErrDraftLocked    = errors.New("transfer draft locked after repeated failed verifications")

	ErrWrongPassword      = errors.New("incorrect password")
	ErrVerificationFailed = errors.New("identity verification failed")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrDuplicateTransfer  = errors.New("transfer already committed for this draft")
	ErrNotAccountOwner    = errors.New("account does not belong to the authenticated customer")
)
