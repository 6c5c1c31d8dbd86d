package domain

import (
	stderrors "errors"
	"strings"
	"testing"
	"whirl/errors"

	"github.com/stretchr/testify/require"
)

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		name     string
		username string
		valid    bool
	}{
		{"two characters", "al", true},
		{"twenty characters", strings.Repeat("a", 20), true},
		{"digits and underscores", "bob_42", true},
		{"single character", "a", false},
		{"twenty one characters", strings.Repeat("a", 21), false},
		{"empty", "", false},
		{"space", "al ice", false},
		{"dash", "al-ice", false},
		{"trailing newline", "alice\n", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			err := ValidateUsername(tt.username)
			if tt.valid {
				req.NoError(err)
				return
			}
			req.ErrorIs(err, errors.ErrValidation)
			req.Equal("Username should contain 2-20 characters (only letters, numbers and underscores).", err.Error())
		})
	}
}

func TestValidateChannel(t *testing.T) {
	tests := []struct {
		name    string
		channel string
		want    error
	}{
		{"plain name", "django", nil},
		{"sixteen characters", strings.Repeat("c", 16), nil},
		{"case sensitive server", "Server", nil},
		{"reserved", "server", errors.ErrReservedChannel},
		{"too short", "a", errors.ErrInvalidChannel},
		{"too long", strings.Repeat("c", 17), errors.ErrInvalidChannel},
		{"hash is not a word character", "#django", errors.ErrInvalidChannel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			err := ValidateChannel(tt.channel)
			if tt.want == nil {
				req.NoError(err)
				return
			}
			req.Equal(tt.want, err)
			req.ErrorIs(err, errors.ErrValidation)
		})
	}
}

func TestValidateMessage(t *testing.T) {
	req := require.New(t)

	req.NoError(ValidateMessage("h"))
	req.NoError(ValidateMessage(strings.Repeat("x", 2048)))
	req.NoError(ValidateMessage(strings.Repeat("é", 2048)))
	req.NoError(ValidateMessage("line one\nline two"))

	req.Equal(errors.ErrInvalidMessage, ValidateMessage(""))
	req.Equal(errors.ErrInvalidMessage, ValidateMessage(strings.Repeat("x", 2049)))
}

func TestValidationErrors_AreReplyErrors(t *testing.T) {
	req := require.New(t)

	var reply *errors.ReplyError
	req.True(stderrors.As(ValidateChannel("server"), &reply))
	req.Equal("Channel name 'server' is reserved.", reply.Message)
}

func TestNormalizeChannel(t *testing.T) {
	req := require.New(t)

	req.Equal("django", NormalizeChannel("#django"))
	req.Equal("django", NormalizeChannel("django"))
	// Only one leading hash is stripped
	req.Equal("#django", NormalizeChannel("##django"))
}
