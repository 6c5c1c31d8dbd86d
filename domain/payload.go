// Package domain contains the core concepts of the chat protocol.
// This file defines payload types and the immutable Payload value.
// No runtime, network, or storage logic should be added here.
package domain

import (
	"fmt"
	"time"
)

// PayloadType is the closed set of frame types understood by the protocol.
type PayloadType int

const (
	ERROR    PayloadType = -1
	MESSAGE  PayloadType = 0
	REGISTER PayloadType = 1
	LOGIN    PayloadType = 2
	LOGOUT   PayloadType = 3
	JOIN     PayloadType = 4
	LEAVE    PayloadType = 5
	LIST     PayloadType = 6
	ACTION   PayloadType = 7
)

// InboundTypes lists every type a client is allowed to send.
// ERROR is server-to-client only.
var InboundTypes = []PayloadType{MESSAGE, REGISTER, LOGIN, LOGOUT, JOIN, LEAVE, LIST, ACTION}

func (t PayloadType) String() string {
	switch t {
	case ERROR:
		return "ERROR"
	case MESSAGE:
		return "MESSAGE"
	case REGISTER:
		return "REGISTER"
	case LOGIN:
		return "LOGIN"
	case LOGOUT:
		return "LOGOUT"
	case JOIN:
		return "JOIN"
	case LEAVE:
		return "LEAVE"
	case LIST:
		return "LIST"
	case ACTION:
		return "ACTION"
	default:
		return fmt.Sprintf("PayloadType(%d)", int(t))
	}
}

// Known reports whether t belongs to the protocol.
func (t PayloadType) Known() bool {
	return t == ERROR || (t >= MESSAGE && t <= ACTION)
}

// Inbound reports whether a client may send t.
func (t PayloadType) Inbound() bool {
	return t.Known() && t != ERROR
}

// UserOriginated reports whether payloads of this type carry the sender's display name.
func (t PayloadType) UserOriginated() bool {
	switch t {
	case MESSAGE, REGISTER, LOGIN, LOGOUT, JOIN, LEAVE, ACTION:
		return true
	default:
		return false
	}
}

// Payload is an immutable protocol value. Once built it is never mutated,
// so a single encoded frame can be shared by every fan-out target.
type Payload struct {
	Type     PayloadType
	User     string
	Channel  string
	Message  string
	Password string
	Users    []string
	Auth     bool
	History  bool
	Time     time.Time
}

// NewPayload builds an outbound payload stamped with the given time.
// user is dropped for types that are not user-originated.
func NewPayload(t PayloadType, user string, at time.Time) Payload {
	p := Payload{Type: t, Time: at}
	if t.UserOriginated() {
		p.User = user
	}
	return p
}

// WithChannel returns a copy of p addressed to channel.
func (p Payload) WithChannel(channel string) Payload {
	p.Channel = channel
	return p
}

// WithMessage returns a copy of p carrying message.
func (p Payload) WithMessage(message string) Payload {
	p.Message = message
	return p
}

// WithUsers returns a copy of p carrying a private copy of users.
func (p Payload) WithUsers(users []string) Payload {
	p.Users = append(make([]string, 0, len(users)), users...)
	return p
}

// WithAuth returns a copy of p flagged as an authentication acknowledgement.
func (p Payload) WithAuth(auth bool) Payload {
	p.Auth = auth
	return p
}

// ErrorPayload builds the server-to-client ERROR reply.
func ErrorPayload(message string, at time.Time) Payload {
	return Payload{Type: ERROR, Message: message, Time: at}
}

// ListPayload builds a LIST reply. An empty channel means the global user list.
func ListPayload(channel string, users []string, at time.Time) Payload {
	return Payload{Type: LIST, Channel: channel, Time: at}.WithUsers(users)
}
