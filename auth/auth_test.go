package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"whirl/errors"

	"github.com/stretchr/testify/require"
)

func TestHashAndCompare(t *testing.T) {
	req := require.New(t)
	password := "correct horse battery"

	hash, err := HashPassword(password)
	req.NoError(err)
	req.True(strings.HasPrefix(hash, "$argon2id$"))

	match, err := ComparePassword(password, hash)
	req.NoError(err)
	req.True(match)

	// Wrong password
	match, err = ComparePassword("wrong horse battery", hash)
	req.NoError(err)
	req.False(match)
}

func TestCompare_MalformedHash(t *testing.T) {
	req := require.New(t)

	_, err := ComparePassword("whatever", "plaintext")
	req.ErrorIs(err, errors.ErrInvalidPassword)

	_, err = ComparePassword("whatever", "$bcrypt$v=19$m=1,t=1,p=1$c2FsdA$aGFzaA")
	req.ErrorIs(err, errors.ErrInvalidPassword)
}

func TestRegistrationValidation(t *testing.T) {
	tests := []struct {
		name    string
		req     RegisterRequest
		wantErr error
	}{
		{"Valid request", RegisterRequest{"alice", "password1"}, nil},
		{"Username too short", RegisterRequest{"a", "password1"}, errors.ErrInvalidUsername},
		{"Username with spaces", RegisterRequest{"al ice", "password1"}, errors.ErrInvalidUsername},
		{"Password too short", RegisterRequest{"alice", "short"}, errors.ErrInvalidPassword},
		{"Password too long", RegisterRequest{"alice", strings.Repeat("a", 73)}, errors.ErrInvalidPassword},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			err := ValidateRegister(tt.req)
			if tt.wantErr == nil {
				req.NoError(err)
				return
			}
			req.ErrorIs(err, tt.wantErr)
		})
	}
}

func TestToken_RoundTrip(t *testing.T) {
	req := require.New(t)
	issuer := NewTokenIssuer("test-secret", time.Hour)

	token, err := issuer.Generate("id-1", "alice")
	req.NoError(err)

	claims, err := issuer.Validate(token)
	req.NoError(err)
	req.Equal("id-1", claims.UserID)
	req.Equal("alice", claims.Username)
}

func TestToken_Rejected(t *testing.T) {
	req := require.New(t)
	issuer := NewTokenIssuer("test-secret", time.Hour)
	token, err := issuer.Generate("id-1", "alice")
	req.NoError(err)

	// Signed with another secret
	_, err = NewTokenIssuer("other-secret", time.Hour).Validate(token)
	req.ErrorIs(err, errors.ErrInvalidToken)

	// Expired
	issuer.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = issuer.Validate(token)
	req.ErrorIs(err, errors.ErrInvalidToken)

	// Garbage
	_, err = issuer.Validate("not-a-token")
	req.ErrorIs(err, errors.ErrInvalidToken)
}

func TestSessionToken(t *testing.T) {
	req := require.New(t)

	withCookie := httptest.NewRequest(http.MethodGet, "/ws", nil)
	withCookie.AddCookie(&http.Cookie{Name: "whirl_session", Value: "from-cookie"})
	withCookie.Header.Set("Authorization", "Bearer from-header")
	req.Equal("from-cookie", SessionToken(withCookie, "whirl_session"))

	withHeader := httptest.NewRequest(http.MethodGet, "/ws", nil)
	withHeader.Header.Set("Authorization", "Bearer from-header")
	req.Equal("from-header", SessionToken(withHeader, "whirl_session"))

	req.Empty(SessionToken(httptest.NewRequest(http.MethodGet, "/ws", nil), "whirl_session"))
}

func BenchmarkHashPassword(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_, _ = HashPassword("A-very-long-password-for-bench-123")
	}
}
