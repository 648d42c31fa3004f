// Package link manages the single outbound TCP session to the peer
// tracker: dial, full-message send, timeout-bounded single-message
// poll, and teardown. There is no automatic retry; reconnection is the
// caller's explicit decision.
package link

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/saltytrain2/genradio/internal/protocol"
)

var (
	ErrConnect    = errors.New("link: connect failed")
	ErrSend       = errors.New("link: send failed")
	ErrClosed     = errors.New("link: channel closed")
	ErrPeerClosed = errors.New("link: peer closed connection")
)

// Config defines transport defaults for one peer session.
type Config struct {
	Host         string
	Port         int
	DialTimeout  time.Duration
	PollTimeout  time.Duration
	WriteTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Host:         "127.0.0.1",
		Port:         45455,
		DialTimeout:  5 * time.Second,
		PollTimeout:  500 * time.Millisecond,
		WriteTimeout: 5 * time.Second,
	}
}

// WithDefaults fills zero-valued durations from DefaultConfig.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.Host == "" {
		c.Host = def.Host
	}
	if c.Port == 0 {
		c.Port = def.Port
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = def.DialTimeout
	}
	if c.PollTimeout <= 0 {
		c.PollTimeout = def.PollTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	return c
}

func (c Config) addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Channel is one live session to the peer. It is not safe for
// concurrent use; the controller drives it from a single thread.
type Channel struct {
	conn  net.Conn
	dec   *protocol.Decoder
	cfg   Config
	stale bool
}

// Dial opens the peer session. A failed dial is not retried here.
func Dial(ctx context.Context, cfg Config) (*Channel, error) {
	cfg = cfg.WithDefaults()
	dialer := net.Dialer{Timeout: cfg.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", cfg.addr())
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConnect, cfg.addr(), err)
	}
	return &Channel{
		conn: conn,
		dec:  protocol.NewDecoder(conn),
		cfg:  cfg,
	}, nil
}

// Send serializes msg and writes it fully to the socket. There is no
// buffering and no retry; the caller surfaces failures.
func (ch *Channel) Send(msg protocol.Message) error {
	if ch.conn == nil {
		return ErrClosed
	}
	if ch.stale {
		return ErrPeerClosed
	}
	payload, err := protocol.Marshal(msg)
	if err != nil {
		return err
	}
	if err := ch.conn.SetWriteDeadline(time.Now().Add(ch.cfg.WriteTimeout)); err != nil {
		return fmt.Errorf("%w: %v", ErrSend, err)
	}
	if _, err := ch.conn.Write(payload); err != nil {
		ch.stale = true
		return fmt.Errorf("%w: %v", ErrSend, err)
	}
	return nil
}

// PollOnce makes a single timeout-bounded read attempt. No inbound
// bytes before the poll timeout is not an error: it returns nil, nil.
// A peer close marks the channel stale and returns nil, nil once; any
// later call fails with ErrPeerClosed. A malformed payload is fatal to
// the session and is returned as the decode error.
func (ch *Channel) PollOnce() (*protocol.Message, error) {
	if ch.conn == nil {
		return nil, ErrClosed
	}
	if ch.stale {
		return nil, ErrPeerClosed
	}
	if err := ch.conn.SetReadDeadline(time.Now().Add(ch.cfg.PollTimeout)); err != nil {
		ch.stale = true
		return nil, fmt.Errorf("%w: %v", ErrPeerClosed, err)
	}
	msg, err := ch.dec.Decode()
	if err != nil {
		if isTimeout(err) {
			return nil, nil
		}
		ch.stale = true
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, nil
		}
		return nil, err
	}
	return &msg, nil
}

// Close releases the connection. Safe to call more than once.
func (ch *Channel) Close() error {
	if ch.conn == nil {
		return nil
	}
	err := ch.conn.Close()
	ch.conn = nil
	ch.dec = nil
	return err
}

// Connected reports whether the channel still holds a usable session.
func (ch *Channel) Connected() bool {
	return ch.conn != nil && !ch.stale
}

// RemoteAddr returns the configured peer address.
func (ch *Channel) RemoteAddr() string {
	return ch.cfg.addr()
}

func isTimeout(err error) bool {
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}
