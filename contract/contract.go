//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"
	"time"
	"whirl/domain"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// Peer is the transport handle owned by a connection.
// Send must never block: when the peer cannot take the frame it fails
// with an error wrapping errors.ErrPeerUnreachable.
type Peer interface {
	Send(frame []byte) error
	Close() error
	RemoteAddr() string
}

// IHistoryStore is the durable log of channel traffic.
type IHistoryStore interface {
	Append(record domain.HistoryRecord) error
	// Recent returns at most limit records of channel in ascending time order.
	Recent(channel string, limit int) ([]domain.HistoryRecord, error)
}

// ICredentialStore checks who a connection claims to be.
type ICredentialStore interface {
	Authenticate(username, password string) (domain.Identity, error)
	CurrentUser(sessionToken string) (domain.Identity, error)
	Register(username, password string) (domain.Identity, error)
}

// IModerator rewrites user text before it is broadcast and stored.
type IModerator interface {
	Censor(content string) (string, []string)
}

// IMetrics records what happens on the live messaging path.
type IMetrics interface {
	ConnectionOpened()
	ConnectionClosed()
	FrameReceived(t domain.PayloadType)
	FrameRejected(reason string)
	DeliveryDropped()
	HistoryFailed()
	ProcessStats(rssBytes uint64, cpuPercent float64, connections int)
	DispatchLatency(t domain.PayloadType, d time.Duration)
}
