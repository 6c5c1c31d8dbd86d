package test

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"whirl/auth"
	"whirl/domain"
	"whirl/errors"
	"whirl/infrastructure/api"
	"whirl/infrastructure/websocket"
	"whirl/observability"
	"whirl/repositories"
	"whirl/runtime"
	"whirl/services"

	"github.com/dgraph-io/badger/v4"
	gorilla "github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

const cookieName = "whirl_session"

type stack struct {
	server    *httptest.Server
	directory *runtime.ChannelDirectory
	registry  *runtime.ConnectionRegistry
}

func newStack(t *testing.T) stack {
	req := require.New(t)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR).
		WithValueLogFileSize(16 << 20))
	req.NoError(err)

	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	reg := prometheus.NewRegistry()
	metrics := observability.NewCollector(reg)
	authService := services.NewAuthService(log, repositories.NewUserRepository(db),
		auth.NewTokenIssuer("integration-secret", time.Hour))
	registry := runtime.NewConnectionRegistry(log, metrics)
	directory := runtime.NewChannelDirectory("general")
	dispatcher := runtime.NewDispatcher(log, registry, directory,
		repositories.NewHistoryRepository(db, log), authService, metrics)

	wsHandler := websocket.NewHandler(log, dispatcher, websocket.Config{
		SessionCookie:      cookieName,
		RateLimitPerSecond: 1000,
		RateLimitBurst:     1000,
	})
	router := api.NewRouter(api.RouterDeps{
		Log:        log,
		Websocket:  wsHandler,
		Auth:       authService,
		AuthConfig: api.AuthHandlerConfig{CookieName: cookieName},
		Gatherer:   reg,
	})
	server := httptest.NewServer(router)

	// Clean everything at the end of the test
	t.Cleanup(func() {
		server.Close()
		registry.CloseAll()
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = wsHandler.Wait(ctx)
		_ = db.Close()
	})
	return stack{server: server, directory: directory, registry: registry}
}

func (s stack) register(t *testing.T, username string) {
	t.Helper()
	body := fmt.Sprintf(`{"username":%q,"password":"password1"}`, username)
	resp, err := http.Post(s.server.URL+"/register", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
}

func (s stack) sessionCookie(t *testing.T, username string) *http.Cookie {
	t.Helper()
	body := fmt.Sprintf(`{"username":%q,"password":"password1"}`, username)
	resp, err := http.Post(s.server.URL+"/login", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	for _, cookie := range resp.Cookies() {
		if cookie.Name == cookieName {
			return cookie
		}
	}
	require.FailNow(t, "no session cookie")
	return nil
}

type client struct {
	t    *testing.T
	conn *gorilla.Conn
}

func (s stack) connect(t *testing.T, header http.Header) *client {
	t.Helper()
	url := "ws" + strings.TrimPrefix(s.server.URL, "http") + "/ws"
	conn, _, err := gorilla.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &client{t: t, conn: conn}
}

func (c *client) send(frame string) {
	c.t.Helper()
	require.NoError(c.t, c.conn.WriteMessage(gorilla.TextMessage, []byte(frame)))
}

func (c *client) next() domain.Payload {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, data, err := c.conn.ReadMessage()
	require.NoError(c.t, err)
	payload, err := domain.Parse(data)
	require.NoError(c.t, err)
	return payload
}

// until skips frames until one of type t shows up.
func (c *client) until(t domain.PayloadType) domain.Payload {
	c.t.Helper()
	for {
		if p := c.next(); p.Type == t {
			return p
		}
	}
}

// login authenticates with a password and consumes the LOGIN and LIST replies.
func (s stack) login(t *testing.T, username string) *client {
	t.Helper()
	c := s.connect(t, nil)
	c.send(fmt.Sprintf(`{"type":2,"user":%q,"password":"password1"}`, username))
	login := c.next()
	require.Equal(t, domain.LOGIN, login.Type)
	require.True(t, login.Auth)
	require.Equal(t, domain.LIST, c.next().Type)
	return c
}

func Test_Scenario_ChannelLifecycle(t *testing.T) {
	req := require.New(t)
	s := newStack(t)
	s.register(t, "alice")
	s.register(t, "bob")

	alice := s.login(t, "alice")
	bob := s.login(t, "bob")
	req.Equal("bob", alice.until(domain.LOGIN).User)

	// Given alice and bob both in django
	alice.send(`{"type":4,"channel":"django"}`)
	join := alice.until(domain.JOIN)
	req.Equal("alice", join.User)
	req.Equal("django", join.Channel)
	req.Equal([]string{"alice"}, alice.until(domain.LIST).Users)

	bob.send(`{"type":4,"channel":"django"}`)
	replayed := bob.next()
	req.Equal(domain.JOIN, replayed.Type)
	req.Equal("alice", replayed.User)
	req.True(replayed.History)
	req.Equal("bob", bob.until(domain.JOIN).User)
	req.Equal([]string{"alice", "bob"}, bob.until(domain.LIST).Users)
	req.Equal("bob", alice.until(domain.JOIN).User)
	alice.until(domain.LIST)

	// When alice says hi
	alice.send(`{"type":0,"channel":"django","message":"hi"}`)

	// Then both members get the message, alice included
	for _, c := range []*client{alice, bob} {
		msg := c.until(domain.MESSAGE)
		req.Equal("alice", msg.User)
		req.Equal("django", msg.Channel)
		req.Equal("hi", msg.Message)
		req.False(msg.History)
	}

	// When alice logs out
	alice.send(`{"type":3}`)

	// Then bob sees her go and the channel list no longer has her
	req.Equal("alice", bob.until(domain.LOGOUT).User)
	leave := bob.until(domain.LEAVE)
	req.Equal("alice", leave.User)
	req.Equal("django", leave.Channel)
	req.Equal([]string{"bob"}, bob.until(domain.LIST).Users)

	bob.send(`{"type":6,"channel":"django"}`)
	req.Equal([]string{"bob"}, bob.until(domain.LIST).Users)
	bob.send(`{"type":6}`)
	req.Equal([]string{"bob"}, bob.until(domain.LIST).Users)
}

func Test_Scenario_HistoryReplay(t *testing.T) {
	req := require.New(t)
	s := newStack(t)
	s.register(t, "alice")
	s.register(t, "carol")

	alice := s.login(t, "alice")
	alice.send(`{"type":4,"channel":"django"}`)
	alice.until(domain.LIST)
	alice.send(`{"type":0,"dest":"django","message":"first"}`)
	alice.until(domain.MESSAGE)
	alice.send(`{"type":7,"channel":"django","message":"waves"}`)
	alice.until(domain.ACTION)

	// When carol joins afterwards
	carol := s.login(t, "carol")
	carol.send(`{"type":4,"channel":"django"}`)

	// Then she first gets the backlog in order, tagged as history
	backlog := []domain.Payload{carol.next(), carol.next(), carol.next()}
	req.Equal(domain.JOIN, backlog[0].Type)
	req.Equal(domain.MESSAGE, backlog[1].Type)
	req.Equal("first", backlog[1].Message)
	req.Equal(domain.ACTION, backlog[2].Type)
	req.Equal("waves", backlog[2].Message)
	for _, p := range backlog {
		req.True(p.History)
		req.Equal("alice", p.User)
	}

	// And then her own live JOIN
	join := carol.next()
	req.Equal(domain.JOIN, join.Type)
	req.Equal("carol", join.User)
	req.False(join.History)
}

func Test_Scenario_ReservedChannel(t *testing.T) {
	req := require.New(t)
	s := newStack(t)
	s.register(t, "bob")
	bob := s.login(t, "bob")
	before := s.directory.Channels()

	// When bob tries to join the reserved channel
	bob.send(`{"type":4,"channel":"server"}`)

	// Then he is told off and nothing was created
	reply := bob.next()
	req.Equal(domain.ERROR, reply.Type)
	req.Equal(errors.ErrReservedChannel.Message, reply.Message)
	req.Equal(before, s.directory.Channels())
	req.False(s.directory.Exists("server"))
}

func Test_Scenario_SessionLogin(t *testing.T) {
	req := require.New(t)
	s := newStack(t)
	s.register(t, "alice")
	cookie := s.sessionCookie(t, "alice")

	// Given a socket opened with the session cookie
	header := http.Header{}
	header.Set("Cookie", cookie.Name+"="+cookie.Value)
	alice := s.connect(t, header)

	// When alice logs in without a password
	alice.send(`{"type":2,"user":"alice"}`)

	// Then the session is enough
	login := alice.next()
	req.Equal(domain.LOGIN, login.Type)
	req.True(login.Auth)

	// And the same session cannot be used for somebody else
	mallory := s.connect(t, header)
	mallory.send(`{"type":2,"user":"bob"}`)
	reply := mallory.next()
	req.Equal(domain.ERROR, reply.Type)
	req.Equal(errors.ErrWrongCredentials.Message, reply.Message)
}

func Test_Scenario_DuplicateLogin(t *testing.T) {
	req := require.New(t)
	s := newStack(t)
	s.register(t, "alice")
	s.login(t, "alice")

	// When a second socket claims alice
	second := s.connect(t, nil)
	second.send(`{"type":2,"user":"alice","password":"password1"}`)

	// Then it is refused and alice is listed once
	reply := second.next()
	req.Equal(domain.ERROR, reply.Type)
	req.Equal(errors.ErrNameTaken.Message, reply.Message)
	req.Equal([]string{"alice"}, s.registry.ListAuthenticated())
}

func Test_Scenario_RegisterOverSocket(t *testing.T) {
	req := require.New(t)
	s := newStack(t)
	c := s.connect(t, nil)

	c.send(`{"type":1,"user":"dave","password":"password1"}`)
	registered := c.next()
	req.Equal(domain.REGISTER, registered.Type)
	req.Equal("dave", registered.User)

	c.send(`{"type":1,"user":"dave","password":"password1"}`)
	taken := c.next()
	req.Equal(domain.ERROR, taken.Type)
	req.Equal(errors.ErrUsernameTaken.Message, taken.Message)

	c.send(`{"type":2,"user":"dave","password":"password1"}`)
	req.Equal(domain.LOGIN, c.next().Type)
}
