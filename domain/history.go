package domain

import "time"

// DefaultHistoryLimit caps the number of records replayed on JOIN.
const DefaultHistoryLimit = 50

// HistoryRecord is one append-only entry of channel traffic.
type HistoryRecord struct {
	User      string
	Type      PayloadType
	Channel   string
	Message   string
	CreatedAt time.Time
}

// Recordable reports whether traffic of type t belongs in channel history.
func (t PayloadType) Recordable() bool {
	switch t {
	case MESSAGE, ACTION, JOIN, LEAVE:
		return true
	default:
		return false
	}
}

// RecordOf captures a channel-scoped payload as a history record.
func RecordOf(p Payload) HistoryRecord {
	return HistoryRecord{
		User:      p.User,
		Type:      p.Type,
		Channel:   p.Channel,
		Message:   p.Message,
		CreatedAt: p.Time,
	}
}

// Replay turns a stored record back into a payload tagged as historical.
func (r HistoryRecord) Replay() Payload {
	return Payload{
		Type:    r.Type,
		User:    r.User,
		Channel: r.Channel,
		Message: r.Message,
		Time:    r.CreatedAt,
		History: true,
	}
}

// Identity is the account a connection is bound to once authenticated.
type Identity struct {
	ID       string
	Username string
}
