package runtime

import (
	"fmt"
	"sync"
	"testing"
	"whirl/domain"
	"whirl/errors"

	"github.com/stretchr/testify/require"
)

// recordingPeer keeps every frame it was handed.
type recordingPeer struct {
	mu     sync.Mutex
	addr   string
	frames [][]byte
	closed bool
}

func newRecordingPeer(addr string) *recordingPeer {
	return &recordingPeer{addr: addr}
}

func (p *recordingPeer) Send(frame []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return fmt.Errorf("%w: %s is closed", errors.ErrPeerUnreachable, p.addr)
	}
	p.frames = append(p.frames, append([]byte(nil), frame...))
	return nil
}

func (p *recordingPeer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *recordingPeer) RemoteAddr() string { return p.addr }

func (p *recordingPeer) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// drain decodes and forgets everything received so far.
func (p *recordingPeer) drain(t *testing.T) []domain.Payload {
	t.Helper()
	p.mu.Lock()
	frames := p.frames
	p.frames = nil
	p.mu.Unlock()

	payloads := make([]domain.Payload, 0, len(frames))
	for _, frame := range frames {
		payload, err := domain.Parse(frame)
		require.NoError(t, err)
		payloads = append(payloads, payload)
	}
	return payloads
}
