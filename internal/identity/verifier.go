// Package identity covers the two identity-provider concerns the
// transfer workflow needs: session tokens and step-up credential
// verification. Verification is deliberately verify-only; it never
// issues, refreshes, or replaces a session.
package identity

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/oakbank/transferd/internal/domain"
)

// CredentialSource provides the stored password hash for an email.
type CredentialSource interface {
	PasswordHashByEmail(ctx context.Context, email string) (string, error)
}

// Verifier performs the step-up password check before a commit.
type Verifier struct {
	creds CredentialSource
}

func NewVerifier(creds CredentialSource) *Verifier {
	return &Verifier{creds: creds}
}

// Verify compares the supplied password against the stored hash.
// A mismatch is reported as ErrWrongPassword; every other failure
// (unknown email included) collapses to the generic
// ErrVerificationFailed so callers cannot probe for valid emails.
func (v *Verifier) Verify(ctx context.Context, email, password string) error {
	hash, err := v.creds.PasswordHashByEmail(ctx, email)
	if err != nil {
		return domain.ErrVerificationFailed
	}
	err = bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return domain.ErrWrongPassword
	}
	if err != nil {
		return domain.ErrVerificationFailed
	}
	return nil
}
