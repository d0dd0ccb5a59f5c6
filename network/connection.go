package network

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/wfunc/wordbot/logger"
)

var (
	ErrConnClosed     = errors.New("connection closed")
	ErrSendBufferFull = errors.New("send buffer full")
	ErrHandshake      = errors.New("socket handshake failed")
)

// Conn is a connected event socket.
type Conn interface {
	// Emit queues an event. It never blocks; delivery is best effort.
	Emit(event string, args ...any) error
	// EmitWithAck sends an event and waits for the server's acknowledgement,
	// returning its arguments as a JSON array.
	EmitWithAck(ctx context.Context, event string, args ...any) ([]byte, error)
	Close() error
	Done() <-chan struct{}
}

// Handler receives inbound events. It is called from the connection's read
// loop, so events from one connection arrive in order. A handler must not wait
// for an ack on the same connection.
type Handler interface {
	HandleEvent(conn Conn, event string, payload []byte)
}

type HandlerFunc func(conn Conn, event string, payload []byte)

func (f HandlerFunc) HandleEvent(conn Conn, event string, payload []byte) {
	f(conn, event, payload)
}

type Options struct {
	// Name labels the connection in logs.
	Name string
	// ChatRate and ChatBurst throttle outgoing chat events.
	ChatRate         float64
	ChatBurst        int
	WriteTimeout     time.Duration
	HandshakeTimeout time.Duration
	SendBuffer       int
	Header           http.Header
}

func DefaultOptions() Options {
	return Options{
		ChatRate:         2,
		ChatBurst:        4,
		WriteTimeout:     5 * time.Second,
		HandshakeTimeout: 10 * time.Second,
		SendBuffer:       64,
	}
}

type WSConn struct {
	conn         *websocket.Conn
	name         string
	handler      Handler
	send         chan []byte
	chat         chan []byte
	limiter      *rate.Limiter
	writeTimeout time.Duration

	ackMutex sync.Mutex
	nextAck  int64
	acks     map[int64]chan []byte

	done      chan struct{}
	closeOnce sync.Once
}

// Dial connects to a game socket server at rawURL and completes the
// open/connect handshake before returning.
func Dial(ctx context.Context, rawURL string, handler Handler, opts Options) (*WSConn, error) {
	target, err := SocketURL(rawURL)
	if err != nil {
		return nil, err
	}

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: opts.HandshakeTimeout,
	}
	ws, _, err := dialer.DialContext(ctx, target, opts.Header)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", target, err)
	}

	if err := handshake(ws, opts.HandshakeTimeout); err != nil {
		ws.Close()
		return nil, err
	}

	c := newWSConn(ws, handler, opts)
	logger.Log.Infow("socket connected", "conn", c.name, "url", target)
	return c, nil
}

// SocketURL turns a server address into its websocket endpoint.
func SocketURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse socket url: %w", err)
	}
	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	case "http", "ws":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("parse socket url: unsupported scheme %q", u.Scheme)
	}
	if !strings.Contains(u.Path, "/socket.io") {
		u.Path = strings.TrimSuffix(u.Path, "/") + "/socket.io/"
	}
	q := u.Query()
	q.Set("EIO", "4")
	q.Set("transport", "websocket")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func handshake(ws *websocket.Conn, timeout time.Duration) error {
	if timeout > 0 {
		ws.SetReadDeadline(time.Now().Add(timeout))
		defer ws.SetReadDeadline(time.Time{})
	}

	p, err := readPacket(ws)
	if err != nil {
		return err
	}
	if p.Type != PacketOpen {
		return fmt.Errorf("%w: expected open, got %s", ErrHandshake, p.Type)
	}
	if err := ws.WriteMessage(websocket.TextMessage, frameConnect); err != nil {
		return fmt.Errorf("%w: %v", ErrHandshake, err)
	}

	for {
		p, err := readPacket(ws)
		if err != nil {
			return err
		}
		switch p.Type {
		case PacketConnect:
			return nil
		case PacketPing:
			if err := ws.WriteMessage(websocket.TextMessage, framePong); err != nil {
				return fmt.Errorf("%w: %v", ErrHandshake, err)
			}
		case PacketConnectError:
			return fmt.Errorf("%w: %s", ErrHandshake, p.Data)
		}
	}
}

func readPacket(ws *websocket.Conn) (Packet, error) {
	_, data, err := ws.ReadMessage()
	if err != nil {
		return Packet{}, fmt.Errorf("%w: %v", ErrHandshake, err)
	}
	p, err := Decode(data)
	if err != nil {
		return Packet{}, fmt.Errorf("%w: %v", ErrHandshake, err)
	}
	return p, nil
}

func newWSConn(ws *websocket.Conn, handler Handler, opts Options) *WSConn {
	defaults := DefaultOptions()
	if opts.ChatRate <= 0 {
		opts.ChatRate = defaults.ChatRate
	}
	if opts.ChatBurst <= 0 {
		opts.ChatBurst = defaults.ChatBurst
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaults.WriteTimeout
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = defaults.SendBuffer
	}

	c := &WSConn{
		conn:         ws,
		name:         opts.Name,
		handler:      handler,
		send:         make(chan []byte, opts.SendBuffer),
		chat:         make(chan []byte, opts.SendBuffer),
		limiter:      rate.NewLimiter(rate.Limit(opts.ChatRate), opts.ChatBurst),
		writeTimeout: opts.WriteTimeout,
		acks:         make(map[int64]chan []byte),
		done:         make(chan struct{}),
	}
	go c.writePump()
	go c.readPump()
	return c
}

func (c *WSConn) Emit(event string, args ...any) error {
	data, err := EncodeEvent(NoAck, event, args...)
	if err != nil {
		return err
	}
	return c.enqueue(c.queueFor(event), data)
}

func (c *WSConn) EmitWithAck(ctx context.Context, event string, args ...any) ([]byte, error) {
	reply := make(chan []byte, 1)

	c.ackMutex.Lock()
	id := c.nextAck
	c.nextAck++
	c.acks[id] = reply
	c.ackMutex.Unlock()

	defer func() {
		c.ackMutex.Lock()
		delete(c.acks, id)
		c.ackMutex.Unlock()
	}()

	data, err := EncodeEvent(id, event, args...)
	if err != nil {
		return nil, err
	}
	if err := c.enqueue(c.queueFor(event), data); err != nil {
		return nil, err
	}

	select {
	case payload := <-reply:
		return payload, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("wait for %s ack: %w", event, ctx.Err())
	case <-c.done:
		return nil, ErrConnClosed
	}
}

// queueFor returns the throttled queue for chat and the protocol queue for
// everything else.
func (c *WSConn) queueFor(event string) chan []byte {
	if event == EventChat {
		return c.chat
	}
	return c.send
}

func (c *WSConn) enqueue(queue chan []byte, data []byte) error {
	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}
	select {
	case queue <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

func (c *WSConn) Done() <-chan struct{} { return c.done }

func (c *WSConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		err = c.conn.Close()
		logger.Log.Infow("socket closed", "conn", c.name)
	})
	return err
}

// writePump is the only writer. A chat frame waiting for the limiter is held
// aside while protocol frames keep flowing, so pongs and acks never queue
// behind a chat backlog.
func (c *WSConn) writePump() {
	var (
		held  []byte
		ready <-chan time.Time
	)
	for {
		chat := c.chat
		if held != nil {
			chat = nil
		}

		select {
		case <-c.done:
			return
		case data := <-c.send:
			if !c.write(data) {
				return
			}
		case data := <-chat:
			delay := c.limiter.Reserve().Delay()
			if delay == 0 {
				if !c.write(data) {
					return
				}
				continue
			}
			held, ready = data, time.After(delay)
		case <-ready:
			data := held
			held, ready = nil, nil
			if !c.write(data) {
				return
			}
		}
	}
}

func (c *WSConn) write(data []byte) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		logger.Log.Warnw("set write deadline", "conn", c.name, "error", err)
		c.Close()
		return false
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		logger.Log.Warnw("write failed", "conn", c.name, "error", err)
		c.Close()
		return false
	}
	return true
}

func (c *WSConn) readPump() {
	defer c.Close()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				logger.Log.Infow("read loop stopped", "conn", c.name, "error", err)
			}
			return
		}
		if !c.dispatch(data) {
			return
		}
	}
}

// dispatch handles one frame and reports whether the connection stays open.
func (c *WSConn) dispatch(data []byte) bool {
	p, err := Decode(data)
	if err != nil {
		logger.Log.Warnw("dropping frame", "conn", c.name, "error", err)
		return true
	}

	switch p.Type {
	case PacketPing:
		if err := c.enqueue(c.send, framePong); err != nil {
			logger.Log.Warnw("pong not sent", "conn", c.name, "error", err)
		}
	case PacketEvent:
		if p.ID != NoAck {
			if ack, err := EncodeAck(p.ID); err == nil {
				_ = c.enqueue(c.send, ack)
			}
		}
		if c.handler != nil {
			c.handler.HandleEvent(c, p.Event, p.Data)
		}
	case PacketAck:
		c.ackMutex.Lock()
		reply, ok := c.acks[p.ID]
		c.ackMutex.Unlock()
		if ok {
			select {
			case reply <- p.Data:
			default:
			}
		}
	case PacketClose, PacketDisconnect:
		return false
	}
	return true
}
