package e2e

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"
	"whirl/domain"

	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type BaseSuite struct {
	suite.Suite
	Config Config
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if s.Config.ServerAddr == "" {
		s.T().Skip("WHIRL_ADDR is not set")
	}
}

func (s *BaseSuite) header(t *testing.T, name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	t.Log(header)
}

// Client is one websocket session against the server under test.
type Client struct {
	s    *BaseSuite
	name string
	conn *websocket.Conn
}

// Dial opens a socket, presenting the session cookie when one is given.
func (s *BaseSuite) Dial(name string, cookie *http.Cookie) *Client {
	s.header(s.T(), name)
	header := http.Header{}
	if cookie != nil {
		header.Set("Cookie", cookie.Name+"="+cookie.Value)
	}
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+s.Config.ServerAddr+"/ws", header)
	s.Require().NoError(err, "Failed to open websocket on "+s.Config.ServerAddr)
	return &Client{s: s, name: name, conn: conn}
}

func (c *Client) Close() {
	_ = c.conn.Close()
}

func (c *Client) Send(payload domain.Payload, password string) {
	frame := fmt.Sprintf(`{"type":%d,"user":%q,"channel":%q,"message":%q,"password":%q}`,
		int(payload.Type), payload.User, payload.Channel, payload.Message, password)
	if c.s.Config.DebugJSON {
		c.s.T().Logf("%s >>> %s", c.name, frame)
	}
	c.s.Require().NoError(c.conn.WriteMessage(websocket.TextMessage, []byte(frame)))
}

// Expect reads frames until one of type t arrives.
func (c *Client) Expect(t domain.PayloadType) domain.Payload {
	for {
		c.s.Require().NoError(c.conn.SetReadDeadline(time.Now().Add(5 * time.Second)))
		_, data, err := c.conn.ReadMessage()
		c.s.Require().NoError(err, c.name+" did not receive "+t.String())
		if c.s.Config.DebugJSON {
			c.s.T().Logf("%s <<< %s", c.name, data)
		}
		payload, err := domain.Parse(data)
		c.s.Require().NoError(err)
		if payload.Type == t {
			return payload
		}
	}
}

// Register creates an account over HTTP. An existing account is fine.
func (s *BaseSuite) Register(username, password string) {
	resp, err := http.Post("http://"+s.Config.ServerAddr+"/register", "application/json",
		strings.NewReader(fmt.Sprintf(`{"username":%q,"password":%q}`, username, password)))
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Require().Contains([]int{http.StatusCreated, http.StatusConflict}, resp.StatusCode)
}

// Login returns the session cookie issued by POST /login.
func (s *BaseSuite) Login(username, password string) *http.Cookie {
	resp, err := http.Post("http://"+s.Config.ServerAddr+"/login", "application/json",
		strings.NewReader(fmt.Sprintf(`{"username":%q,"password":%q}`, username, password)))
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	for _, cookie := range resp.Cookies() {
		if cookie.Value != "" {
			return cookie
		}
	}
	s.Require().Fail("no session cookie in login response")
	return nil
}

// WithHealth provides a gRPC health client when WHIRL_HEALTH_ADDR is set.
func (s *BaseSuite) WithHealth(name string, fn func(ctx context.Context, client healthpb.HealthClient)) {
	if s.Config.HealthAddr == "" {
		s.T().Skip("WHIRL_HEALTH_ADDR is not set")
	}
	s.header(s.T(), name)
	conn, err := grpc.NewClient(s.Config.HealthAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	s.Require().NoError(err, "Failed to connect to gRPC server at "+s.Config.HealthAddr)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	fn(ctx, healthpb.NewHealthClient(conn))
}
