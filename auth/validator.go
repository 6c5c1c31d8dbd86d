package auth

import (
	"fmt"
	"whirl/domain"
	"whirl/errors"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type RegisterRequest struct {
	Username string
	Password string `validate:"required,min=8,max=72"`
}

// ValidateRegister applies the account rules before any hashing happens.
func ValidateRegister(req RegisterRequest) error {
	if err := domain.ValidateUsername(req.Username); err != nil {
		return err
	}
	if err := validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidPassword, err)
	}
	return nil
}
