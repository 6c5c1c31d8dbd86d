package runtime

import "sync"

// channelLocks hands out one mutex per channel name. Holding it orders
// membership changes, history replay and fan-out within that channel.
// Like the directory, a channel's lock is never released once created.
type channelLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newChannelLocks() *channelLocks {
	return &channelLocks{locks: make(map[string]*sync.Mutex)}
}

// lock blocks until channel is free and returns its unlock func.
func (l *channelLocks) lock(channel string) func() {
	l.mu.Lock()
	m, ok := l.locks[channel]
	if !ok {
		m = &sync.Mutex{}
		l.locks[channel] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
