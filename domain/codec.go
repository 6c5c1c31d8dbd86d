package domain

import (
	"encoding/json"
	"time"
	"whirl/errors"
)

// frame is the JSON shape exchanged with clients.
// Unknown fields are ignored on decode.
type frame struct {
	Type     *PayloadType `json:"type"`
	User     string       `json:"user,omitempty"`
	Channel  string       `json:"channel,omitempty"`
	Dest     string       `json:"dest,omitempty"`
	Message  string       `json:"message,omitempty"`
	Password string       `json:"password,omitempty"`
	Users    *[]string    `json:"users,omitempty"`
	Auth     bool         `json:"auth,omitempty"`
	History  bool         `json:"history,omitempty"`
	Time     int64        `json:"time,omitempty"`
}

// Encode serializes an outbound payload. Passwords never leave the server
// and LIST always carries a users array, even when empty.
func Encode(p Payload) ([]byte, error) {
	t := p.Type
	f := frame{
		Type:    &t,
		User:    p.User,
		Channel: p.Channel,
		Message: p.Message,
		Auth:    p.Auth,
		History: p.History,
	}
	if p.Type == LIST || p.Users != nil {
		users := p.Users
		if users == nil {
			users = []string{}
		}
		f.Users = &users
	}
	if !p.Time.IsZero() {
		f.Time = p.Time.UnixMilli()
	}
	return json.Marshal(f)
}

// Parse reads any frame of a known type, including server-to-client ones.
func Parse(data []byte) (Payload, error) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Payload{}, errors.ErrMalformed
	}
	if f.Type == nil {
		return Payload{}, errors.ErrMalformed
	}
	if !f.Type.Known() {
		return Payload{}, errors.ErrUnknownType
	}

	p := Payload{
		Type:     *f.Type,
		User:     f.User,
		Channel:  f.Channel,
		Message:  f.Message,
		Password: f.Password,
		Auth:     f.Auth,
		History:  f.History,
	}
	// Older clients address channel traffic through "dest".
	if p.Channel == "" {
		p.Channel = f.Dest
	}
	if f.Users != nil {
		p.Users = *f.Users
	}
	if f.Time != 0 {
		p.Time = time.UnixMilli(f.Time).UTC()
	}
	return p, nil
}

// Decode reads an inbound client frame. A client may not send ERROR.
func Decode(data []byte) (Payload, error) {
	p, err := Parse(data)
	if err != nil {
		return Payload{}, err
	}
	if !p.Type.Inbound() {
		return Payload{}, errors.ErrUnknownType
	}
	return p, nil
}
