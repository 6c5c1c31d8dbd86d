package runtime

import (
	"context"
	stderrors "errors"
	"log/slog"
	"time"
	"whirl/contract"
	"whirl/domain"
	"whirl/errors"
)

type handler func(ctx context.Context, conn *Connection, in domain.Payload) error

// Dispatcher is the per-connection protocol state machine.
// It validates every inbound payload before touching shared state,
// mutates the registry and directory, and fans out the resulting payloads.
type Dispatcher struct {
	log          *slog.Logger
	registry     *ConnectionRegistry
	directory    *ChannelDirectory
	channels     *channelLocks
	history      contract.IHistoryStore
	credentials  contract.ICredentialStore
	moderator    contract.IModerator
	metrics      contract.IMetrics
	historyLimit int
	now          func() time.Time
	handlers     map[domain.PayloadType]handler
}

type Option func(*Dispatcher)

// WithModerator rewrites MESSAGE and ACTION bodies before they go out.
func WithModerator(m contract.IModerator) Option {
	return func(d *Dispatcher) { d.moderator = m }
}

// WithHistoryLimit caps the replay sent on JOIN.
func WithHistoryLimit(limit int) Option {
	return func(d *Dispatcher) {
		if limit > 0 {
			d.historyLimit = limit
		}
	}
}

// WithClock replaces time.Now for payload timestamps.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

func NewDispatcher(log *slog.Logger, registry *ConnectionRegistry, directory *ChannelDirectory,
	history contract.IHistoryStore, credentials contract.ICredentialStore,
	metrics contract.IMetrics, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		log:          log,
		registry:     registry,
		directory:    directory,
		channels:     newChannelLocks(),
		history:      history,
		credentials:  credentials,
		metrics:      metrics,
		historyLimit: domain.DefaultHistoryLimit,
		now:          func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(d)
	}
	d.handlers = map[domain.PayloadType]handler{
		domain.MESSAGE:  d.handleText,
		domain.ACTION:   d.handleText,
		domain.REGISTER: d.handleRegister,
		domain.LOGIN:    d.handleLogin,
		domain.LOGOUT:   d.handleLogout,
		domain.JOIN:     d.handleJoin,
		domain.LEAVE:    d.handleLeave,
		domain.LIST:     d.handleList,
	}
	return d
}

// Accept registers a transport that was just opened.
func (d *Dispatcher) Accept(peer contract.Peer, sessionToken string) *Connection {
	conn := d.registry.Register(peer, sessionToken)
	d.metrics.ConnectionOpened()
	return conn
}

// HandleFrame decodes one inbound frame and dispatches it. A frame that does
// not decode is answered with an ERROR and the connection stays open.
func (d *Dispatcher) HandleFrame(ctx context.Context, conn *Connection, data []byte) {
	start := time.Now()
	in, err := domain.Decode(data)
	if err != nil {
		d.Reject(ctx, conn, err)
		return
	}
	d.metrics.FrameReceived(in.Type)
	d.Handle(ctx, conn, in)
	d.metrics.DispatchLatency(in.Type, time.Since(start))
}

// Handle runs the transition for one decoded payload.
func (d *Dispatcher) Handle(ctx context.Context, conn *Connection, in domain.Payload) {
	if !d.registry.Contains(conn) {
		d.log.DebugContext(ctx, "Frame ignored, connection already closed", "id", conn.ID, "type", in.Type)
		return
	}
	h, ok := d.handlers[in.Type]
	if !ok {
		d.Reject(ctx, conn, errors.ErrUnknownType)
		return
	}
	if requiresLogin(in.Type) && !conn.Authenticated() {
		d.Reject(ctx, conn, errors.ErrLoginRequired)
		return
	}
	if err := h(ctx, conn, in); err != nil {
		d.Reject(ctx, conn, err)
	}
}

// Disconnect cleans conn up exactly once, whichever of LOGOUT or the
// transport close callback gets here first.
func (d *Dispatcher) Disconnect(conn *Connection) {
	conn.cleanup.Do(func() {
		if identity, ok := conn.Identity(); ok {
			d.logout(conn, identity.Username)
		}
		if d.registry.Deregister(conn) {
			d.metrics.ConnectionClosed()
		}
	})
}

func requiresLogin(t domain.PayloadType) bool {
	switch t {
	case domain.JOIN, domain.LEAVE, domain.MESSAGE, domain.ACTION, domain.LIST:
		return true
	default:
		return false
	}
}

func (d *Dispatcher) handleRegister(ctx context.Context, conn *Connection, in domain.Payload) error {
	if conn.Authenticated() {
		return errors.ErrAlreadyLoggedIn
	}
	if err := domain.ValidateUsername(in.User); err != nil {
		return err
	}
	identity, err := d.credentials.Register(in.User, in.Password)
	switch {
	case stderrors.Is(err, errors.ErrUserAlreadyExists):
		return errors.ErrUsernameTaken
	case stderrors.Is(err, errors.ErrInvalidPassword):
		return errors.ErrWeakPassword
	case err != nil:
		return err
	}
	d.log.InfoContext(ctx, "Account registered", "user", identity.Username)
	d.reply(conn, domain.NewPayload(domain.REGISTER, identity.Username, d.now()))
	return nil
}

func (d *Dispatcher) handleLogin(ctx context.Context, conn *Connection, in domain.Payload) error {
	if err := domain.ValidateUsername(in.User); err != nil {
		return err
	}
	if conn.Authenticated() {
		return errors.ErrAlreadyLoggedIn
	}
	identity, err := d.checkCredentials(ctx, conn, in)
	if err != nil {
		return err
	}
	if err = d.registry.Authenticate(conn, identity); err != nil {
		return err
	}

	now := d.now()
	login := domain.NewPayload(domain.LOGIN, identity.Username, now)
	d.reply(conn, login.WithAuth(true))
	d.broadcast(d.registry.Authenticated(conn), login)
	d.reply(conn, domain.ListPayload("", d.registry.ListAuthenticated(), now))
	d.log.InfoContext(ctx, "User logged in", "user", identity.Username, "addr", conn.RemoteAddr())
	return nil
}

// checkCredentials accepts either a password or the session presented at
// connect time. Both failures look the same to the client.
func (d *Dispatcher) checkCredentials(ctx context.Context, conn *Connection, in domain.Payload) (domain.Identity, error) {
	var (
		identity domain.Identity
		err      error
	)
	if in.Password != "" {
		identity, err = d.credentials.Authenticate(in.User, in.Password)
	} else {
		identity, err = d.credentials.CurrentUser(conn.SessionToken())
	}
	if err != nil {
		d.log.DebugContext(ctx, "Credential check failed", "user", in.User, "error", err)
		return domain.Identity{}, errors.ErrWrongCredentials
	}
	if identity.Username != in.User {
		d.log.DebugContext(ctx, "Session belongs to another user", "user", in.User)
		return domain.Identity{}, errors.ErrWrongCredentials
	}
	return identity, nil
}

func (d *Dispatcher) handleLogout(ctx context.Context, conn *Connection, _ domain.Payload) error {
	d.Disconnect(conn)
	if conn.peer != nil {
		if err := conn.peer.Close(); err != nil {
			d.log.DebugContext(ctx, "Error closing transport on logout", "id", conn.ID, "error", err)
		}
	}
	return nil
}

// logout tells everybody else, then removes name from every channel it is in.
func (d *Dispatcher) logout(conn *Connection, name string) {
	d.broadcast(d.registry.Authenticated(conn), domain.NewPayload(domain.LOGOUT, name, d.now()))
	for _, channel := range d.directory.ChannelsContaining(name) {
		if err := d.leave(conn, name, channel); err != nil {
			d.log.Debug("Channel already left", "user", name, "channel", channel)
		}
	}
	d.log.Info("User logged out", "user", name)
}

func (d *Dispatcher) handleJoin(ctx context.Context, conn *Connection, in domain.Payload) error {
	channel := domain.NormalizeChannel(in.Channel)
	if err := domain.ValidateChannel(channel); err != nil {
		return err
	}
	name := conn.Name()
	unlock := d.channels.lock(channel)
	defer unlock()
	if err := d.directory.Join(channel, name); err != nil {
		return err
	}

	now := d.now()
	d.replay(ctx, conn, channel)
	join := domain.NewPayload(domain.JOIN, name, now).WithChannel(channel)
	d.broadcastChannel(channel, join)
	d.record(join)
	d.broadcastChannel(channel, domain.ListPayload(channel, d.directory.MembersOf(channel), now))
	return nil
}

func (d *Dispatcher) handleLeave(_ context.Context, conn *Connection, in domain.Payload) error {
	channel := domain.NormalizeChannel(in.Channel)
	if err := domain.ValidateChannel(channel); err != nil {
		return err
	}
	return d.leave(conn, conn.Name(), channel)
}

// leave removes name from channel. The leaver still receives its own LEAVE,
// the LIST only goes to who is left.
func (d *Dispatcher) leave(conn *Connection, name, channel string) error {
	unlock := d.channels.lock(channel)
	defer unlock()
	if err := d.directory.Leave(channel, name); err != nil {
		return err
	}

	now := d.now()
	leave := domain.NewPayload(domain.LEAVE, name, now).WithChannel(channel)
	d.broadcast(append(d.channelTargets(channel), conn), leave)
	d.record(leave)
	d.broadcastChannel(channel, domain.ListPayload(channel, d.directory.MembersOf(channel), now))
	return nil
}

func (d *Dispatcher) handleText(ctx context.Context, conn *Connection, in domain.Payload) error {
	channel := domain.NormalizeChannel(in.Channel)
	if err := domain.ValidateChannel(channel); err != nil {
		return err
	}
	if err := domain.ValidateMessage(in.Message); err != nil {
		return err
	}

	text := in.Message
	if d.moderator != nil {
		var censored []string
		text, censored = d.moderator.Censor(text)
		if len(censored) > 0 {
			d.log.DebugContext(ctx, "Message censored", "user", conn.Name(), "channel", channel, "words", len(censored))
		}
		// Length is checked on the text the client sent. Escaping may grow
		// it, stripping markup may leave nothing.
		if text == "" {
			return errors.ErrInvalidMessage
		}
	}

	unlock := d.channels.lock(channel)
	defer unlock()
	out := domain.NewPayload(in.Type, conn.Name(), d.now()).WithChannel(channel).WithMessage(text)
	d.broadcastChannel(channel, out)
	d.record(out)
	return nil
}

func (d *Dispatcher) handleList(_ context.Context, conn *Connection, in domain.Payload) error {
	if in.Channel == "" {
		d.reply(conn, domain.ListPayload("", d.registry.ListAuthenticated(), d.now()))
		return nil
	}
	channel := domain.NormalizeChannel(in.Channel)
	if err := domain.ValidateChannel(channel); err != nil {
		return err
	}
	d.reply(conn, domain.ListPayload(channel, d.directory.MembersOf(channel), d.now()))
	return nil
}

// replay sends the channel backlog to conn only. A failing store means no
// backlog, never a failed join.
func (d *Dispatcher) replay(ctx context.Context, conn *Connection, channel string) {
	records, err := d.history.Recent(channel, d.historyLimit)
	if err != nil {
		d.metrics.HistoryFailed()
		d.log.WarnContext(ctx, "History replay failed", "channel", channel, "error", err)
		return
	}
	if len(records) > d.historyLimit {
		records = records[len(records)-d.historyLimit:]
	}
	for _, record := range records {
		d.reply(conn, record.Replay())
	}
}

// record appends channel traffic to history. Failures stay local.
func (d *Dispatcher) record(p domain.Payload) {
	if err := d.history.Append(domain.RecordOf(p)); err != nil {
		d.metrics.HistoryFailed()
		d.log.Warn("History append failed", "channel", p.Channel, "type", p.Type, "error", err)
	}
}

// Reject answers conn with an ERROR carrying the client-facing message of err.
// Errors that are not ReplyErrors are logged and reported as internal.
func (d *Dispatcher) Reject(ctx context.Context, conn *Connection, err error) {
	var reply *errors.ReplyError
	if !stderrors.As(err, &reply) {
		d.log.ErrorContext(ctx, "Unexpected dispatch failure", "id", conn.ID, "user", conn.Name(), "error", err)
		reply = errors.ErrInternal
	} else {
		d.log.DebugContext(ctx, "Frame rejected", "id", conn.ID, "user", conn.Name(), "reason", reply.Message)
	}
	d.metrics.FrameRejected(rejectReason(reply))
	d.reply(conn, domain.ErrorPayload(reply.Message, d.now()))
}

func rejectReason(reply *errors.ReplyError) string {
	switch {
	case stderrors.Is(reply, errors.ErrValidation):
		return "validation"
	case stderrors.Is(reply, errors.ErrStateConflict):
		return "state_conflict"
	case stderrors.Is(reply, errors.ErrCredentials):
		return "credentials"
	case stderrors.Is(reply, errors.ErrNotAuthenticated):
		return "not_authenticated"
	case stderrors.Is(reply, errors.ErrMalformedFrame):
		return "malformed"
	default:
		return "internal"
	}
}

func (d *Dispatcher) channelTargets(channel string) []*Connection {
	return d.registry.Resolve(d.directory.MembersOf(channel))
}

func (d *Dispatcher) broadcastChannel(channel string, p domain.Payload) {
	d.broadcast(d.channelTargets(channel), p)
}

// broadcast encodes p once and hands the same frame to every target.
func (d *Dispatcher) broadcast(targets []*Connection, p domain.Payload) {
	if len(targets) == 0 {
		return
	}
	frame, err := domain.Encode(p)
	if err != nil {
		d.log.Error("Payload encoding failed", "type", p.Type, "error", err)
		return
	}
	d.registry.Broadcast(targets, frame)
}

func (d *Dispatcher) reply(conn *Connection, p domain.Payload) {
	d.broadcast([]*Connection{conn}, p)
}
