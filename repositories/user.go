//go:generate go run go.uber.org/mock/mockgen -source=user.go -destination=../mocks/mock_user_repository.go -package=mocks
package repositories

import (
	stderrors "errors"
	"fmt"
	"time"
	"whirl/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

type IUserRepository interface {
	CreateUser(username, hashedPassword string) (string, error)
	GetUser(username string) (User, error)
}

type UserRepository struct {
	db *badger.DB
}

func NewUserRepository(db *badger.DB) IUserRepository {
	return &UserRepository{db: db}
}

// User is an account as stored on disk.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

func userKey(username string) []byte {
	return []byte("user:" + username)
}

// CreateUser persists a new account and returns its generated ID.
// The password must already be hashed.
func (u UserRepository) CreateUser(username, hashedPassword string) (string, error) {
	newID := uuid.New().String()
	value, err := structpb.NewStruct(map[string]any{
		"id":            newID,
		"username":      username,
		"password_hash": hashedPassword,
		"created_at":    time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrPersistence, err)
	}
	data, err := proto.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("marshal failed: %w", err)
	}

	err = u.db.Update(func(txn *badger.Txn) error {
		key := userKey(username)
		if _, err := txn.Get(key); err == nil {
			return errors.ErrUserAlreadyExists
		}
		return txn.Set(key, data)
	})
	if err != nil {
		return "", err
	}
	return newID, nil
}

// GetUser loads an account by username.
func (u UserRepository) GetUser(username string) (User, error) {
	var value structpb.Struct
	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(userKey(username))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return proto.Unmarshal(val, &value)
		})
	})
	switch {
	case stderrors.Is(err, badger.ErrKeyNotFound):
		return User{}, errors.ErrUserNotFound
	case err != nil:
		return User{}, fmt.Errorf("%w: %v", errors.ErrPersistence, err)
	}
	return toUser(&value), nil
}

func toUser(value *structpb.Struct) User {
	fields := value.GetFields()
	createdAt, _ := time.Parse(time.RFC3339, fields["created_at"].GetStringValue())
	return User{
		ID:           fields["id"].GetStringValue(),
		Username:     fields["username"].GetStringValue(),
		PasswordHash: fields["password_hash"].GetStringValue(),
		CreatedAt:    createdAt.UTC(),
	}
}
