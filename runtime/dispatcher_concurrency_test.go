package runtime

import (
	"fmt"
	"sync"
	"testing"
	"time"
	"whirl/domain"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func isDone(ch <-chan struct{}) func() bool {
	return func() bool {
		select {
		case <-ch:
			return true
		default:
			return false
		}
	}
}

func TestDispatcher_Join_MessageDuringReplay(t *testing.T) {
	req := require.New(t)
	f := newDispatcherFixture(t)
	alice, _ := f.login(t, "alice")
	bob, bobPeer := f.login(t, "bob")
	f.history.EXPECT().Append(gomock.Any()).Return(nil).AnyTimes()
	f.history.EXPECT().Recent("django", domain.DefaultHistoryLimit).Return(nil, nil)
	f.join(t, alice, "django")
	bobPeer.drain(t)

	// Given bob's join is stuck reading the backlog
	replaying := make(chan struct{})
	release := make(chan struct{})
	f.history.EXPECT().Recent("django", domain.DefaultHistoryLimit).
		DoAndReturn(func(string, int) ([]domain.HistoryRecord, error) {
			close(replaying)
			<-release
			return []domain.HistoryRecord{
				{User: "alice", Type: domain.JOIN, Channel: "django", CreatedAt: testNow},
			}, nil
		})
	joined := make(chan struct{})
	go func() {
		defer close(joined)
		f.send(bob, `{"type":4,"channel":"django"}`)
	}()
	<-replaying

	// When alice talks in the channel meanwhile
	sent := make(chan struct{})
	go func() {
		defer close(sent)
		f.send(alice, `{"type":0,"channel":"django","message":"hi"}`)
	}()

	// Then her message waits for the join to complete
	req.Never(isDone(sent), 50*time.Millisecond, 5*time.Millisecond)
	close(release)
	<-joined
	<-sent

	// And bob gets backlog, JOIN and LIST before a single live copy
	got := bobPeer.drain(t)
	req.Len(got, 4)
	req.Equal(domain.JOIN, got[0].Type)
	req.True(got[0].History)
	req.Equal(domain.JOIN, got[1].Type)
	req.Equal("bob", got[1].User)
	req.Equal(domain.LIST, got[2].Type)
	req.Equal(domain.MESSAGE, got[3].Type)
	req.Equal("hi", got[3].Message)
	req.False(got[3].History)
}

func TestDispatcher_ConcurrentTraffic(t *testing.T) {
	req := require.New(t)
	f := newDispatcherFixture(t)
	f.allowHistory()

	// Given a watcher that stays online the whole time
	watcher, watcherPeer := f.login(t, "watcher")
	f.credentials.EXPECT().
		Authenticate(gomock.Any(), "password1").
		DoAndReturn(func(name, _ string) (domain.Identity, error) {
			return domain.Identity{ID: "id-" + name, Username: name}, nil
		}).
		AnyTimes()

	const users = 40
	const messages = 3
	names := make([]string, users)
	conns := make([]*Connection, users)
	peers := make([]*recordingPeer, users)
	for i := range users {
		names[i] = fmt.Sprintf("user%02d", i)
		peers[i] = newRecordingPeer(names[i])
	}

	// When everybody logs in at once
	var wg sync.WaitGroup
	for i := range users {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conns[i] = f.dispatcher.Accept(peers[i], "")
			f.send(conns[i], fmt.Sprintf(`{"type":2,"user":%q,"password":"password1"}`, names[i]))
		}()
	}
	wg.Wait()
	req.Len(f.registry.ListAuthenticated(), users+1)

	// And then joins, talks, leaves and quits while a LOGOUT races the transport close
	for i := range users {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conn := conns[i]
			f.send(conn, `{"type":4,"channel":"django"}`)
			for m := range messages {
				f.send(conn, fmt.Sprintf(`{"type":0,"channel":"django","message":"%s-%d"}`, names[i], m))
			}
			f.send(conn, `{"type":5,"channel":"django"}`)
			f.send(conn, `{"type":4,"channel":"golang"}`)
			f.send(conn, fmt.Sprintf(`{"type":7,"channel":"golang","message":"%s waves"}`, names[i]))

			var quit sync.WaitGroup
			quit.Add(2)
			go func() {
				defer quit.Done()
				f.send(conn, `{"type":3}`)
			}()
			go func() {
				defer quit.Done()
				f.dispatcher.Disconnect(conn)
			}()
			quit.Wait()
		}()
	}
	wg.Wait()

	// Then nothing is left behind
	req.Equal([]string{"watcher"}, f.registry.ListAuthenticated())
	req.Equal(1, f.registry.Len())
	req.Empty(f.directory.MembersOf("django"))
	req.Empty(f.directory.MembersOf("golang"))

	// And every user saw each of their own messages exactly once, never an error
	for i, peer := range peers {
		own := map[string]int{}
		for _, p := range peer.drain(t) {
			req.NotEqual(domain.ERROR, p.Type, "%s got %q", names[i], p.Message)
			req.False(p.Type == domain.LOGOUT && p.User == names[i])
			if (p.Type == domain.MESSAGE || p.Type == domain.ACTION) && p.User == names[i] {
				own[p.Message]++
			}
		}
		req.Len(own, messages+1)
		for message, count := range own {
			req.Equal(1, count, "%s received %q", names[i], message)
		}
	}

	// And the watcher heard exactly one LOGOUT per user
	logouts := map[string]int{}
	for _, p := range watcherPeer.drain(t) {
		if p.Type == domain.LOGOUT {
			logouts[p.User]++
		}
	}
	req.Len(logouts, users)
	for _, name := range names {
		req.Equal(1, logouts[name], name)
	}

	f.dispatcher.Disconnect(watcher)
	req.Zero(f.registry.Len())
}
