package runtime

import (
	"testing"
	"whirl/errors"

	"github.com/stretchr/testify/require"
)

func TestDirectory_DefaultChannelsExistEmpty(t *testing.T) {
	req := require.New(t)
	directory := NewChannelDirectory("general", "random")

	req.Equal([]string{"general", "random"}, directory.Channels())
	req.True(directory.Exists("general"))
	req.Empty(directory.MembersOf("general"))
}

func TestDirectory_Join_CreatesChannel(t *testing.T) {
	req := require.New(t)
	directory := NewChannelDirectory()

	// When bob then alice join an unknown channel
	req.NoError(directory.Join("django", "bob"))
	req.NoError(directory.Join("django", "alice"))

	// Then the channel exists with both members, sorted
	req.True(directory.Exists("django"))
	req.Equal([]string{"alice", "bob"}, directory.MembersOf("django"))
}

func TestDirectory_Join_Twice(t *testing.T) {
	req := require.New(t)
	directory := NewChannelDirectory()
	req.NoError(directory.Join("django", "alice"))

	err := directory.Join("django", "alice")

	req.ErrorIs(err, errors.ErrAlreadyJoined)
	req.Equal([]string{"alice"}, directory.MembersOf("django"))
}

func TestDirectory_Leave(t *testing.T) {
	req := require.New(t)
	directory := NewChannelDirectory()
	req.NoError(directory.Join("django", "alice"))

	// When alice leaves
	req.NoError(directory.Leave("django", "alice"))

	// Then the channel survives, empty
	req.True(directory.Exists("django"))
	req.Empty(directory.MembersOf("django"))
}

func TestDirectory_Leave_NotMember(t *testing.T) {
	req := require.New(t)
	directory := NewChannelDirectory("general")

	req.ErrorIs(directory.Leave("general", "alice"), errors.ErrNotMember)
	req.ErrorIs(directory.Leave("nowhere", "alice"), errors.ErrNotMember)

	// And leaving an unknown channel does not create it
	req.False(directory.Exists("nowhere"))
}

func TestDirectory_ChannelsContaining(t *testing.T) {
	req := require.New(t)
	directory := NewChannelDirectory("general")
	req.NoError(directory.Join("python", "alice"))
	req.NoError(directory.Join("django", "alice"))
	req.NoError(directory.Join("django", "bob"))

	req.Equal([]string{"django", "python"}, directory.ChannelsContaining("alice"))
	req.Equal([]string{"django"}, directory.ChannelsContaining("bob"))
	req.Empty(directory.ChannelsContaining("carol"))
}
