package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/oakbank/transferd/internal/domain"
)

type fakeCreds struct {
	hashes map[string]string
	err    error
}

func (f *fakeCreds) PasswordHashByEmail(ctx context.Context, email string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	hash, ok := f.hashes[email]
	if !ok {
		return "", errors.New("no rows")
	}
	return hash, nil
}

func TestVerifier(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2!"), bcrypt.MinCost)
	require.NoError(t, err)

	creds := &fakeCreds{hashes: map[string]string{"jo@oakbank.test": string(hash)}}
	v := NewVerifier(creds)
	ctx := context.Background()

	t.Run("correct password", func(t *testing.T) {
		assert.NoError(t, v.Verify(ctx, "jo@oakbank.test", "hunter2!"))
	})

	t.Run("wrong password", func(t *testing.T) {
		assert.ErrorIs(t, v.Verify(ctx, "jo@oakbank.test", "hunter3!"), domain.ErrWrongPassword)
	})

	t.Run("unknown email collapses to generic failure", func(t *testing.T) {
		assert.ErrorIs(t, v.Verify(ctx, "nobody@oakbank.test", "hunter2!"), domain.ErrVerificationFailed)
	})

	t.Run("store failure collapses to generic failure", func(t *testing.T) {
		broken := NewVerifier(&fakeCreds{err: errors.New("connection refused")})
		assert.ErrorIs(t, broken.Verify(ctx, "jo@oakbank.test", "hunter2!"), domain.ErrVerificationFailed)
	})
}

func TestTokenRoundTrip(t *testing.T) {
	m := NewTokenManager("test-secret", time.Hour)
	customer := domain.Customer{ID: uuid.New(), Email: "jo@oakbank.test", FullName: "Jo Demo"}

	token, err := m.Issue(customer)
	require.NoError(t, err)

	session, err := m.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, customer.ID, session.CustomerID)
	assert.Equal(t, customer.Email, session.Email)
}

func TestTokenRejections(t *testing.T) {
	m := NewTokenManager("test-secret", time.Hour)
	customer := domain.Customer{ID: uuid.New(), Email: "jo@oakbank.test"}

	t.Run("garbage", func(t *testing.T) {
		_, err := m.Parse("not.a.token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong secret", func(t *testing.T) {
		token, err := m.Issue(customer)
		require.NoError(t, err)
		other := NewTokenManager("different-secret", time.Hour)
		_, err = other.Parse(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		short := NewTokenManager("test-secret", -time.Minute)
		token, err := short.Issue(customer)
		require.NoError(t, err)
		_, err = m.Parse(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
