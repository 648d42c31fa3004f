// Package radio orchestrates the source registry and the peer sync
// channel: lifecycle commands, click-driven drop/remove, and the
// periodic inbound poll. All calls run on the host's control thread;
// nothing here spawns goroutines or takes locks.
package radio

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/saltytrain2/genradio/internal/geo"
	"github.com/saltytrain2/genradio/internal/link"
	"github.com/saltytrain2/genradio/internal/observability"
	"github.com/saltytrain2/genradio/internal/protocol"
	"github.com/saltytrain2/genradio/internal/source"
)

var ErrNotConnected = errors.New("radio: not connected, run start first")

// ClickSource reads the operator's most recent clicked map position.
type ClickSource interface {
	LastClick() (geo.Point, bool)
}

// SyncChannel is the peer session surface the controller drives.
// *link.Channel satisfies it; tests substitute fakes.
type SyncChannel interface {
	Send(msg protocol.Message) error
	PollOnce() (*protocol.Message, error)
	Close() error
	RemoteAddr() string
}

// DialFunc opens a new peer session.
type DialFunc func(ctx context.Context, cfg link.Config) (SyncChannel, error)

// Settings are the operator-adjustable knobs.
type Settings struct {
	Host             string
	Port             int
	Verbose          bool
	RemoveThresholdM float64
	PollTimeout      time.Duration
}

func DefaultSettings() Settings {
	return Settings{
		Host:             "127.0.0.1",
		Port:             45455,
		Verbose:          false,
		RemoveThresholdM: source.DefaultRemoveThresholdM,
		PollTimeout:      500 * time.Millisecond,
	}
}

// Config wires the controller's injected collaborators.
type Config struct {
	Settings Settings
	Registry *source.Registry
	Clicks   ClickSource
	Dial     DialFunc // nil selects link.Dial
}

// Controller owns the tracker lifecycle. Idle until Start succeeds;
// Stop or a fatal session error returns it to Idle.
type Controller struct {
	settings Settings
	registry *source.Registry
	clicks   ClickSource
	dial     DialFunc

	ch        SyncChannel
	lastClick *geo.Point

	statusCalls int
	sent        int
	received    int
}

func NewController(cfg Config) *Controller {
	settings := cfg.Settings
	def := DefaultSettings()
	if settings.Host == "" {
		settings.Host = def.Host
	}
	if settings.Port == 0 {
		settings.Port = def.Port
	}
	if settings.RemoveThresholdM <= 0 {
		settings.RemoveThresholdM = def.RemoveThresholdM
	}
	if settings.PollTimeout <= 0 {
		settings.PollTimeout = def.PollTimeout
	}
	registry := cfg.Registry
	if registry == nil {
		registry = source.NewRegistry(nil)
	}
	dial := cfg.Dial
	if dial == nil {
		dial = func(ctx context.Context, linkCfg link.Config) (SyncChannel, error) {
			return link.Dial(ctx, linkCfg)
		}
	}
	return &Controller{
		settings: settings,
		registry: registry,
		clicks:   cfg.Clicks,
		dial:     dial,
	}
}

// Running reports whether a peer session is open.
func (c *Controller) Running() bool {
	return c.ch != nil
}

// Registry exposes the local source set for read-only inspection.
func (c *Controller) Registry() *source.Registry {
	return c.registry
}

// Settings returns the current operator settings.
func (c *Controller) Settings() Settings {
	return c.settings
}

// Start opens the peer session. An existing session is closed first,
// so a repeated start behaves like a restart of the connection. A
// failed dial leaves the controller idle; it is not retried.
func (c *Controller) Start(ctx context.Context) error {
	if c.ch != nil {
		_ = c.ch.Close()
		c.ch = nil
	}
	linkCfg := link.Config{
		Host:        c.settings.Host,
		Port:        c.settings.Port,
		PollTimeout: c.settings.PollTimeout,
	}
	ch, err := c.dial(ctx, linkCfg)
	if err != nil {
		return err
	}
	c.ch = ch
	log.Info().Msgf("radio started peer=%s", ch.RemoteAddr())
	return nil
}

// Stop clears every source, telling the peer once, and closes the
// session. Stopping while idle just clears the local registry.
func (c *Controller) Stop() error {
	err := c.clearAll()
	if c.ch != nil {
		_ = c.ch.Close()
		c.ch = nil
	}
	return err
}

// Restart is stop followed by start. A start failure after a clean
// stop leaves the controller idle, never half-open.
func (c *Controller) Restart(ctx context.Context) error {
	if err := c.Stop(); err != nil {
		log.Warn().Msgf("radio restart: stop reported err=%v", err)
	}
	return c.Start(ctx)
}

// Drop places a source at the last clicked position and announces it
// to the peer. A repeated click at the same coordinate is a no-op.
func (c *Controller) Drop() (*source.Source, error) {
	if c.ch == nil {
		return nil, ErrNotConnected
	}
	click, ok := c.takeClick()
	if !ok {
		return nil, nil
	}
	s := c.registry.Add(click)
	observability.SetActiveSources(c.registry.Len())
	if c.settings.Verbose {
		log.Info().Msgf("radio drop key=%s lat=%f lon=%f", s.ID, click.Lat, click.Lon)
	}
	if err := c.send(protocol.AddMessage(s.ID, click.Lat, click.Lon)); err != nil {
		// The local source stands; the peer is now behind until the
		// operator reconnects (eventual consistency, not rollback).
		return s, err
	}
	return s, nil
}

// Remove deletes the source nearest to the last clicked position, if
// one lies within the removal threshold, and tells the peer.
func (c *Controller) Remove() (*source.Source, error) {
	if c.ch == nil {
		return nil, ErrNotConnected
	}
	click, ok := c.takeClick()
	if !ok {
		return nil, nil
	}
	s, ok := c.registry.RemoveNearest(click, c.settings.RemoveThresholdM)
	if !ok {
		log.Info().Msg("no suitable radio source near click")
		return nil, nil
	}
	observability.SetActiveSources(c.registry.Len())
	if c.settings.Verbose {
		log.Info().Msgf("radio remove key=%s", s.ID)
	}
	if err := c.send(protocol.RemoveMessage(s.ID)); err != nil {
		return s, err
	}
	return s, nil
}

// ClearAll removes every source and sends a single clear message.
func (c *Controller) ClearAll() error {
	if c.ch == nil {
		return ErrNotConnected
	}
	return c.clearAll()
}

// Tick is the host's periodic callback: one bounded poll of the peer
// session. A peer-initiated remove is applied locally without echoing
// anything back. A session error tears the channel down; reconnecting
// is the operator's explicit decision.
func (c *Controller) Tick() error {
	if c.ch == nil {
		return nil
	}
	msg, err := c.ch.PollOnce()
	if err != nil {
		observability.RecordPollError()
		_ = c.ch.Close()
		c.ch = nil
		log.Error().Msgf("radio session lost err=%v (run start to reconnect)", err)
		return err
	}
	if msg == nil {
		return nil
	}
	c.received++
	observability.RecordMessageReceived(string(msg.Action))
	if msg.Action != protocol.ActionRemove {
		log.Debug().Msgf("radio ignoring peer message action=%s", msg.Action)
		return nil
	}
	if c.registry.RemoveByID(msg.Key) {
		observability.SetActiveSources(c.registry.Len())
		if c.settings.Verbose {
			log.Info().Msgf("radio peer removed key=%s", msg.Key)
		}
	} else {
		log.Debug().Msgf("radio peer removal for unknown key=%s", msg.Key)
	}
	return nil
}

// Status returns a one-line operator report.
func (c *Controller) Status() string {
	c.statusCalls++
	return fmt.Sprintf(
		"status called %d times. sent=%d received=%d active_sources=%d connected=%t",
		c.statusCalls, c.sent, c.received, c.registry.Len(), c.ch != nil,
	)
}

func (c *Controller) clearAll() error {
	ids := c.registry.ClearAll()
	observability.SetActiveSources(0)
	if c.settings.Verbose && len(ids) > 0 {
		log.Info().Msgf("radio cleared sources=%d", len(ids))
	}
	if c.ch == nil {
		return nil
	}
	return c.send(protocol.ClearMessage())
}

func (c *Controller) send(msg protocol.Message) error {
	if err := c.ch.Send(msg); err != nil {
		log.Error().Msgf("radio send action=%s err=%v", msg.Action, err)
		return err
	}
	c.sent++
	observability.RecordMessageSent(string(msg.Action))
	return nil
}

// takeClick reads the collaborator's last clicked position, dropping
// a coordinate identical to the previously acted-upon one.
func (c *Controller) takeClick() (geo.Point, bool) {
	if c.clicks == nil {
		return geo.Point{}, false
	}
	click, ok := c.clicks.LastClick()
	if !ok {
		return geo.Point{}, false
	}
	if c.lastClick != nil && *c.lastClick == click {
		return geo.Point{}, false
	}
	c.lastClick = &click
	return click, true
}
