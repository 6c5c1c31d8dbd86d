package domain

import (
	"regexp"
	"strings"
	"whirl/errors"

	"github.com/go-playground/validator/v10"
)

// ReservedChannel can never be joined, left or listed by clients.
const ReservedChannel = "server"

var wordPattern = regexp.MustCompile(`^\w+$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Only letters, digits and underscores; length is enforced by min/max.
	if err := v.RegisterValidation("word", func(fl validator.FieldLevel) bool {
		return wordPattern.MatchString(fl.Field().String())
	}); err != nil {
		panic(err)
	}
	return v
}

// ValidateUsername accepts 2-20 word characters.
func ValidateUsername(username string) error {
	if err := validate.Var(username, "min=2,max=20,word"); err != nil {
		return errors.ErrInvalidUsername
	}
	return nil
}

// ValidateChannel accepts 2-16 word characters, except the reserved name.
func ValidateChannel(channel string) error {
	if channel == ReservedChannel {
		return errors.ErrReservedChannel
	}
	if err := validate.Var(channel, "min=2,max=16,word"); err != nil {
		return errors.ErrInvalidChannel
	}
	return nil
}

// ValidateMessage accepts any text of 1 to 2048 characters.
func ValidateMessage(message string) error {
	if err := validate.Var(message, "min=1,max=2048"); err != nil {
		return errors.ErrInvalidMessage
	}
	return nil
}

// NormalizeChannel strips a single leading '#'.
func NormalizeChannel(channel string) string {
	return strings.TrimPrefix(channel, "#")
}
