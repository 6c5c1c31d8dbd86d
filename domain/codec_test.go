package domain

import (
	"encoding/json"
	"testing"
	"time"
	"whirl/errors"

	"github.com/stretchr/testify/require"
)

func TestEncode_Message(t *testing.T) {
	req := require.New(t)
	at := time.UnixMilli(1700000000123).UTC()

	// Given a MESSAGE sent by alice to django
	p := NewPayload(MESSAGE, "alice", at).WithChannel("django").WithMessage("hi")

	// When it is encoded
	data, err := Encode(p)
	req.NoError(err)

	// Then the wire object carries every populated field and nothing else
	var raw map[string]any
	req.NoError(json.Unmarshal(data, &raw))
	req.Equal(map[string]any{
		"type":    float64(0),
		"user":    "alice",
		"channel": "django",
		"message": "hi",
		"time":    float64(1700000000123),
	}, raw)
}

func TestEncode_ListAlwaysCarriesUsers(t *testing.T) {
	req := require.New(t)

	data, err := Encode(ListPayload("empty", nil, time.Time{}))
	req.NoError(err)
	req.JSONEq(`{"type":6,"channel":"empty","users":[]}`, string(data))
}

func TestEncode_NeverLeaksPassword(t *testing.T) {
	req := require.New(t)

	p := Payload{Type: REGISTER, User: "alice", Password: "hunter22"}
	data, err := Encode(p)
	req.NoError(err)
	req.NotContains(string(data), "hunter22")
}

func TestEncode_NonUserTypesDropUser(t *testing.T) {
	req := require.New(t)

	p := NewPayload(LIST, "alice", time.Time{})
	req.Empty(p.User)
	p = NewPayload(ERROR, "alice", time.Time{})
	req.Empty(p.User)
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		frame   string
		want    Payload
		wantErr error
	}{
		{
			name:  "login",
			frame: `{"type":2,"user":"alice","password":"secret"}`,
			want:  Payload{Type: LOGIN, User: "alice", Password: "secret"},
		},
		{
			name:  "message through legacy dest",
			frame: `{"type":0,"dest":"#django","message":"hi"}`,
			want:  Payload{Type: MESSAGE, Channel: "#django", Message: "hi"},
		},
		{
			name:  "channel wins over dest",
			frame: `{"type":0,"channel":"go","dest":"django","message":"hi"}`,
			want:  Payload{Type: MESSAGE, Channel: "go", Message: "hi"},
		},
		{
			name:  "unknown fields are ignored",
			frame: `{"type":6,"color":"blue","nested":{"a":1}}`,
			want:  Payload{Type: LIST},
		},
		{
			name:  "action",
			frame: `{"type":7,"channel":"django","message":"waves"}`,
			want:  Payload{Type: ACTION, Channel: "django", Message: "waves"},
		},
		{
			name:    "not json",
			frame:   `hello`,
			wantErr: errors.ErrMalformed,
		},
		{
			name:    "missing type",
			frame:   `{"user":"alice"}`,
			wantErr: errors.ErrMalformed,
		},
		{
			name:    "wrong field type",
			frame:   `{"type":4,"channel":12}`,
			wantErr: errors.ErrMalformed,
		},
		{
			name:    "unknown type",
			frame:   `{"type":42}`,
			wantErr: errors.ErrUnknownType,
		},
		{
			name:    "client may not send ERROR",
			frame:   `{"type":-1,"message":"boom"}`,
			wantErr: errors.ErrUnknownType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			got, err := Decode([]byte(tt.frame))
			if tt.wantErr != nil {
				req.Equal(tt.wantErr, err)
				req.ErrorIs(err, errors.ErrMalformedFrame)
				return
			}
			req.NoError(err)
			req.Equal(tt.want, got)
		})
	}
}

func TestParse_AcceptsServerFrames(t *testing.T) {
	req := require.New(t)
	at := time.UnixMilli(1700000000000).UTC()

	// Given a replayed history record
	data, err := Encode(HistoryRecord{User: "bob", Type: MESSAGE, Channel: "django", Message: "old", CreatedAt: at}.Replay())
	req.NoError(err)

	// When a client parses it
	p, err := Parse(data)

	// Then it is recognised as historical
	req.NoError(err)
	req.True(p.History)
	req.Equal(at, p.Time)
	req.Equal("old", p.Message)

	// And ERROR frames parse too
	p, err = Parse([]byte(`{"type":-1,"message":"nope"}`))
	req.NoError(err)
	req.Equal(ERROR, p.Type)
}

func TestPayloadType_Inbound(t *testing.T) {
	req := require.New(t)

	for _, pt := range InboundTypes {
		req.True(pt.Inbound(), pt.String())
	}
	req.False(ERROR.Inbound())
	req.False(PayloadType(8).Known())
	req.Equal("PayloadType(8)", PayloadType(8).String())
}
