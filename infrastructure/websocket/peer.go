package websocket

import (
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"
	"whirl/errors"

	"github.com/gorilla/websocket"
)

// Peer is the websocket side of a connection. Outbound frames go through a
// bounded queue drained by writePump, so Send never waits on the socket.
type Peer struct {
	conn      *websocket.Conn
	log       *slog.Logger
	addr      string
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	writeWait time.Duration
	pingEvery time.Duration
}

func newPeer(conn *websocket.Conn, log *slog.Logger, addr string, cfg Config) *Peer {
	return &Peer{
		conn:      conn,
		log:       log,
		addr:      addr,
		send:      make(chan []byte, cfg.SendBufferSize),
		done:      make(chan struct{}),
		writeWait: cfg.WriteWait,
		pingEvery: cfg.PongWait * 9 / 10,
	}
}

// Send queues frame. A closed peer or a full queue fails immediately.
func (p *Peer) Send(frame []byte) error {
	select {
	case <-p.done:
		return fmt.Errorf("%w: %s is closed", errors.ErrPeerUnreachable, p.addr)
	default:
	}
	select {
	case p.send <- frame:
		return nil
	default:
		return fmt.Errorf("%w: outbound queue of %s is full", errors.ErrPeerUnreachable, p.addr)
	}
}

// Close asks writePump to flush, say goodbye and drop the socket.
// It is safe to call any number of times.
func (p *Peer) Close() error {
	p.closeOnce.Do(func() { close(p.done) })
	return nil
}

func (p *Peer) RemoteAddr() string {
	return p.addr
}

func (p *Peer) writePump() {
	ticker := time.NewTicker(p.pingEvery)
	defer func() {
		ticker.Stop()
		if err := p.conn.Close(); err != nil && !isExpectedCloseError(err) {
			p.log.Debug("Error closing websocket", "addr", p.addr, "error", err)
		}
	}()

	for {
		select {
		case frame := <-p.send:
			if err := p.write(websocket.TextMessage, frame); err != nil {
				p.log.Debug("Write failed, closing peer", "addr", p.addr, "error", err)
				_ = p.Close()
				return
			}
		case <-ticker.C:
			if err := p.write(websocket.PingMessage, nil); err != nil {
				p.log.Debug("Ping failed, closing peer", "addr", p.addr, "error", err)
				_ = p.Close()
				return
			}
		case <-p.done:
			p.flush()
			closing := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			if err := p.write(websocket.CloseMessage, closing); err != nil && !isExpectedCloseError(err) {
				p.log.Debug("Error writing close message", "addr", p.addr, "error", err)
			}
			return
		}
	}
}

// flush writes what was queued before Close, so a LOGOUT still reaches
// the frames that preceded it.
func (p *Peer) flush() {
	for {
		select {
		case frame := <-p.send:
			if err := p.write(websocket.TextMessage, frame); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (p *Peer) write(messageType int, data []byte) error {
	if err := p.conn.SetWriteDeadline(time.Now().Add(p.writeWait)); err != nil {
		return err
	}
	return p.conn.WriteMessage(messageType, data)
}

func isExpectedCloseError(err error) bool {
	return stderrors.Is(err, net.ErrClosed) || stderrors.Is(err, io.EOF) ||
		stderrors.Is(err, websocket.ErrCloseSent)
}
