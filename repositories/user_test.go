package repositories

import (
	"testing"
	"whirl/errors"

	"github.com/stretchr/testify/require"
)

func TestUser_Create_Get(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openTestDB(t))

	// When alice registers
	id, err := repository.CreateUser("alice", "$argon2id$hash")
	req.NoError(err)
	req.NotEmpty(id)

	// Then she can be found again
	user, err := repository.GetUser("alice")
	req.NoError(err)
	req.Equal(id, user.ID)
	req.Equal("alice", user.Username)
	req.Equal("$argon2id$hash", user.PasswordHash)
	req.False(user.CreatedAt.IsZero())
}

func TestUser_Create_Duplicate(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openTestDB(t))
	_, err := repository.CreateUser("alice", "first")
	req.NoError(err)

	_, err = repository.CreateUser("alice", "second")

	req.ErrorIs(err, errors.ErrUserAlreadyExists)
	user, err := repository.GetUser("alice")
	req.NoError(err)
	req.Equal("first", user.PasswordHash)
}

func TestUser_Get_Unknown(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openTestDB(t))

	_, err := repository.GetUser("nobody")

	req.ErrorIs(err, errors.ErrUserNotFound)
}
