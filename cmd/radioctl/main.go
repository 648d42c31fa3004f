package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/saltytrain2/genradio/internal/geo"
	"github.com/saltytrain2/genradio/internal/logging"
	"github.com/saltytrain2/genradio/internal/observability"
	"github.com/saltytrain2/genradio/internal/radio"
	"github.com/saltytrain2/genradio/internal/source"
)

const tickInterval = 500 * time.Millisecond

// clickStore holds the operator's last clicked position. The host map
// normally provides this; the console stands in for it.
type clickStore struct {
	pos *geo.Point
}

func (c *clickStore) LastClick() (geo.Point, bool) {
	if c.pos == nil {
		return geo.Point{}, false
	}
	return *c.pos, true
}

func (c *clickStore) Set(p geo.Point) {
	c.pos = &p
}

// logMarkerLayer is the console's map collaborator: it has nothing to
// draw on, so markers are just reported.
type logMarkerLayer struct{}

func (logMarkerLayer) AddMarker(key string, pos geo.Point) source.Marker {
	log.Debug().Msgf("marker add key=%s lat=%f lon=%f", key, pos.Lat, pos.Lon)
	return key
}

func (logMarkerLayer) RemoveMarker(key string) {
	log.Debug().Msgf("marker remove key=%s", key)
}

// App serializes console commands and the periodic tick onto the
// controller, which is itself single-threaded.
type App struct {
	mu         sync.Mutex
	controller *radio.Controller
	clicks     *clickStore
}

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to radioctl TOML config")
	flag.Parse()

	logging.ConfigureRuntime()

	cfg, err := loadCtlConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "radioctl: %v\n", err)
		os.Exit(1)
	}

	if cfg.MetricsAddr != "" {
		srv := observability.StartMetricsServer(cfg.MetricsAddr)
		defer srv.Close()
		log.Info().Msgf("metrics on %s/metrics", cfg.MetricsAddr)
	}

	clicks := &clickStore{}
	app := &App{
		controller: radio.NewController(radio.Config{
			Settings: cfg.Settings,
			Registry: source.NewRegistry(logMarkerLayer{}),
			Clicks:   clicks,
		}),
		clicks: clicks,
	}
	if err := app.Run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "radioctl: %v\n", err)
		os.Exit(1)
	}
}

// Run drives the console until EOF or quit, ticking the controller in
// the background so peer-initiated removals arrive between commands.
func (a *App) Run(ctx context.Context) error {
	tickCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go a.tickLoop(tickCtx)

	fmt.Println(radio.Usage)
	fmt.Println("console extras: click <lat> <lon>, quit")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		args := strings.Fields(scanner.Text())
		if len(args) == 0 {
			continue
		}
		if args[0] == "quit" || args[0] == "exit" {
			break
		}
		if args[0] == "click" {
			a.handleClick(args[1:])
			continue
		}
		a.dispatch(ctx, args)
	}
	cancel()

	a.mu.Lock()
	defer a.mu.Unlock()
	return a.controller.Stop()
}

func (a *App) dispatch(ctx context.Context, args []string) {
	a.mu.Lock()
	out, err := a.controller.HandleCommand(ctx, args)
	a.mu.Unlock()
	if err != nil {
		log.Error().Msgf("%s: %v", args[0], err)
		return
	}
	if out != "" {
		fmt.Println(out)
	}
}

func (a *App) handleClick(args []string) {
	if len(args) != 2 {
		fmt.Println("usage: click <lat> <lon>")
		return
	}
	lat, errLat := strconv.ParseFloat(args[0], 64)
	lon, errLon := strconv.ParseFloat(args[1], 64)
	if errLat != nil || errLon != nil {
		fmt.Println("usage: click <lat> <lon>")
		return
	}
	a.mu.Lock()
	a.clicks.Set(geo.Point{Lat: lat, Lon: lon})
	a.mu.Unlock()
	fmt.Printf("click at lat=%f lon=%f\n", lat, lon)
}

func (a *App) tickLoop(ctx context.Context) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.mu.Lock()
			_ = a.controller.Tick()
			a.mu.Unlock()
		}
	}
}
