// peerctl is the debug peer for the genradio tracker: it accepts the
// tracker's sync connection, mirrors the source set into its own
// registry, and offers a small console for peer-initiated removals.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/saltytrain2/genradio/internal/geo"
	"github.com/saltytrain2/genradio/internal/logging"
	"github.com/saltytrain2/genradio/internal/protocol"
	"github.com/saltytrain2/genradio/internal/source"
)

const usage = "usage: list | remove <key> | clear | quit"

// Peer mirrors one tracker's source registry. A single tracker
// connection is tracked at a time; a newer one displaces the old.
type Peer struct {
	mu       sync.Mutex
	registry *source.Registry
	conn     net.Conn
}

func main() {
	var listenAddr string
	flag.StringVar(&listenAddr, "listen", "127.0.0.1:45455", "address to accept the tracker connection on")
	flag.Parse()

	logging.ConfigureRuntime()

	ln, err := net.Listen("tcp", listenAddr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "peerctl: %v\n", err)
		os.Exit(1)
	}
	defer ln.Close()
	log.Info().Msgf("peerctl listening on %s", ln.Addr())

	peer := &Peer{registry: source.NewRegistry(nil)}
	go peer.acceptLoop(ln)
	peer.console()
}

func (p *Peer) acceptLoop(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		p.adoptConn(conn)
		go p.readLoop(conn)
	}
}

func (p *Peer) adoptConn(conn net.Conn) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.conn = conn
	log.Info().Msgf("tracker connected from %s", conn.RemoteAddr())
}

func (p *Peer) readLoop(conn net.Conn) {
	dec := protocol.NewDecoder(conn)
	for {
		msg, err := dec.Decode()
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				log.Warn().Msgf("tracker session ended err=%v", err)
			}
			p.dropConn(conn)
			return
		}
		p.apply(msg)
	}
}

func (p *Peer) dropConn(conn net.Conn) {
	_ = conn.Close()
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == conn {
		p.conn = nil
	}
}

func (p *Peer) apply(msg protocol.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch msg.Action {
	case protocol.ActionAdd:
		if _, ok := p.registry.Put(msg.Key, geo.Point{Lat: msg.Lat, Lon: msg.Lon}); !ok {
			log.Warn().Msgf("duplicate add key=%s ignored", msg.Key)
			return
		}
		log.Info().Msgf("add key=%s lat=%f lon=%f sources=%d", msg.Key, msg.Lat, msg.Lon, p.registry.Len())
	case protocol.ActionRemove:
		if !p.registry.RemoveByID(msg.Key) {
			log.Warn().Msgf("remove for unknown key=%s", msg.Key)
			return
		}
		log.Info().Msgf("remove key=%s sources=%d", msg.Key, p.registry.Len())
	case protocol.ActionClear:
		ids := p.registry.ClearAll()
		log.Info().Msgf("clear removed=%d", len(ids))
	}
}

func (p *Peer) console() {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Println(usage)
	for {
		fmt.Print("peer> ")
		if !scanner.Scan() {
			return
		}
		args := strings.Fields(scanner.Text())
		if len(args) == 0 {
			continue
		}
		switch args[0] {
		case "quit", "exit":
			return
		case "list":
			p.list()
		case "remove":
			if len(args) != 2 {
				fmt.Println(usage)
				continue
			}
			p.removeSource(args[1])
		case "clear":
			p.clearSources()
		default:
			fmt.Println(usage)
		}
	}
}

func (p *Peer) list() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range p.registry.List() {
		fmt.Printf("%s lat=%f lon=%f\n", s.ID, s.Pos.Lat, s.Pos.Lon)
	}
	fmt.Printf("%d source(s)\n", p.registry.Len())
}

// removeSource drops a source locally and tells the tracker, mirroring
// the peer-initiated removal path of the sync protocol.
func (p *Peer) removeSource(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.registry.RemoveByID(key) {
		fmt.Printf("no source with key %s\n", key)
		return
	}
	if err := p.sendLocked(protocol.RemoveMessage(key)); err != nil {
		log.Error().Msgf("notify tracker: %v", err)
	}
	fmt.Printf("removed %s\n", key)
}

func (p *Peer) clearSources() {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := p.registry.ClearAll()
	// The tracker protocol has no peer-initiated clear; remove each
	// key individually so the tracker mirrors the result.
	for _, id := range ids {
		if err := p.sendLocked(protocol.RemoveMessage(id)); err != nil {
			log.Error().Msgf("notify tracker: %v", err)
			break
		}
	}
	fmt.Printf("cleared %d source(s)\n", len(ids))
}

func (p *Peer) sendLocked(msg protocol.Message) error {
	if p.conn == nil {
		return errors.New("no tracker connected")
	}
	payload, err := protocol.Marshal(msg)
	if err != nil {
		return err
	}
	_, err = p.conn.Write(payload)
	return err
}
