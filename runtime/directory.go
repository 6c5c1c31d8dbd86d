package runtime

import (
	"slices"
	"sync"
	"whirl/errors"

	"github.com/samber/lo"
)

type Set map[string]struct{}

// ChannelDirectory maps channel names to the display names of their members.
// Channels are created on first join and never destroyed.
type ChannelDirectory struct {
	mu       sync.RWMutex
	channels map[string]Set
}

// NewChannelDirectory creates a directory pre-seeded with empty channels.
func NewChannelDirectory(defaults ...string) *ChannelDirectory {
	d := &ChannelDirectory{channels: make(map[string]Set)}
	for _, channel := range defaults {
		d.channels[channel] = make(Set)
	}
	return d
}

// Join adds name to channel, creating the channel on the fly.
func (d *ChannelDirectory) Join(channel, name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	members, ok := d.channels[channel]
	if !ok {
		members = make(Set)
		d.channels[channel] = members
	}
	if _, joined := members[name]; joined {
		return errors.ErrAlreadyJoined
	}
	members[name] = struct{}{}
	return nil
}

// Leave removes name from channel. An unknown channel is not created.
func (d *ChannelDirectory) Leave(channel, name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	members, ok := d.channels[channel]
	if !ok {
		return errors.ErrNotMember
	}
	if _, joined := members[name]; !joined {
		return errors.ErrNotMember
	}
	delete(members, name)
	return nil
}

// MembersOf snapshots the sorted members of channel.
func (d *ChannelDirectory) MembersOf(channel string) []string {
	d.mu.RLock()
	members := lo.Keys(d.channels[channel])
	d.mu.RUnlock()

	slices.Sort(members)
	return members
}

// ChannelsContaining lists every channel name is a member of.
func (d *ChannelDirectory) ChannelsContaining(name string) []string {
	d.mu.RLock()
	channels := lo.Keys(lo.PickBy(d.channels, func(_ string, members Set) bool {
		_, ok := members[name]
		return ok
	}))
	d.mu.RUnlock()

	slices.Sort(channels)
	return channels
}

// Channels lists every known channel, empty ones included.
func (d *ChannelDirectory) Channels() []string {
	d.mu.RLock()
	channels := lo.Keys(d.channels)
	d.mu.RUnlock()

	slices.Sort(channels)
	return channels
}

func (d *ChannelDirectory) Exists(channel string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.channels[channel]
	return ok
}
