package errors

import "fmt"

// Error kinds. Every error surfaced by the chat core wraps exactly one of them.
var (
	ErrValidation       = fmt.Errorf("validation failed")
	ErrStateConflict    = fmt.Errorf("state conflict")
	ErrCredentials      = fmt.Errorf("credential failure")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrMalformedFrame   = fmt.Errorf("malformed frame")
	ErrPeerUnreachable  = fmt.Errorf("peer unreachable")
	ErrPersistence      = fmt.Errorf("persistence failure")
	ErrHistoryConflict  = fmt.Errorf("%w: history record already exists", ErrPersistence)
	ErrWorkerPanic      = fmt.Errorf("worker panic")
)

// Account errors raised by the credential store.
var (
	ErrUserAlreadyExists = fmt.Errorf("user already exists")
	ErrUserNotFound      = fmt.Errorf("user not found")
	ErrInvalidPassword   = fmt.Errorf("invalid password")
	ErrInvalidToken      = fmt.Errorf("invalid or expired session token")
	ErrTokenGeneration   = fmt.Errorf("token generation failed")
)

// ReplyError is an error the offending connection must see as an ERROR payload.
// Message is the human-readable text sent on the wire.
type ReplyError struct {
	Kind    error
	Message string
}

func (e *ReplyError) Error() string { return e.Message }

func (e *ReplyError) Unwrap() error { return e.Kind }

// NewReplyError builds a ReplyError of the given kind.
func NewReplyError(kind error, message string) *ReplyError {
	return &ReplyError{Kind: kind, Message: message}
}

var (
	ErrAlreadyJoined    = NewReplyError(ErrStateConflict, "You have already joined that channel!")
	ErrNotMember        = NewReplyError(ErrStateConflict, "You aren't present on that channel!")
	ErrNameTaken        = NewReplyError(ErrStateConflict, "That username is already logged in.")
	ErrAlreadyLoggedIn  = NewReplyError(ErrStateConflict, "You are already logged in.")
	ErrUsernameTaken    = NewReplyError(ErrStateConflict, "That username is already taken.")
	ErrWrongCredentials = NewReplyError(ErrCredentials, "Wrong username or password.")
	ErrLoginRequired    = NewReplyError(ErrNotAuthenticated, "You must log in first.")
	ErrMalformed        = NewReplyError(ErrMalformedFrame, "Malformed payload.")
	ErrUnknownType      = NewReplyError(ErrMalformedFrame, "Unknown payload type.")
	ErrRateLimited      = NewReplyError(ErrValidation, "You are sending messages too fast.")
	ErrReservedChannel  = NewReplyError(ErrValidation, "Channel name 'server' is reserved.")
	ErrInvalidUsername  = NewReplyError(ErrValidation, "Username should contain 2-20 characters (only letters, numbers and underscores).")
	ErrInvalidChannel   = NewReplyError(ErrValidation, "Channel should contain 2-16 characters (only letters, numbers and underscores).")
	ErrInvalidMessage   = NewReplyError(ErrValidation, "Message should contain 1-2048 characters.")
	ErrWeakPassword     = NewReplyError(ErrValidation, "Password should contain 8-72 characters.")
	ErrInternal         = NewReplyError(fmt.Errorf("internal error"), "Something went wrong, please try again.")
)
