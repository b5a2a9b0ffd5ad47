// Package main provides the server entry point.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	apiconnect "github.com/osa030/19cast/internal/api/connect"
	"github.com/osa030/19cast/internal/api/netctl"
	"github.com/osa030/19cast/internal/api/stream"
	"github.com/osa030/19cast/internal/app/automation"
	"github.com/osa030/19cast/internal/app/filter"
	"github.com/osa030/19cast/internal/app/playback"
	"github.com/osa030/19cast/internal/infra/config"
	"github.com/osa030/19cast/internal/infra/discovery"
	"github.com/osa030/19cast/internal/infra/history"
	"github.com/osa030/19cast/internal/infra/library"
	"github.com/osa030/19cast/internal/infra/logger"
)

var (
	app        = kingpin.New("19cast-server", "19cast broadcast server")
	configPath = app.Flag("config", "Path to config file").Default("config/server.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (overrides log.output)").String()

	// list-filters command
	listFiltersCmd = app.Command("list-filters", "List available filters and exit")
)

func init() {
	// start command (default) - no need to store the command
	app.Command("start", "Start the server (default)").Default()
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	// Parse command
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	// Handle list-filters command
	if command == listFiltersCmd.FullCommand() {
		printFilters()
		return
	}

	// Bootstrap logger so config errors are visible
	if err := logger.Init(loggerConfig(nil)); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	// Load config
	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	if err := logger.Init(loggerConfig(cfg)); err != nil {
		zlog.Fatal().Msgf("Failed to initialize logger: %v", err)
	}

	// Run server (defer ensures shutdown hook is called)
	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Server error: %v", err)
		os.Exit(1)
	}
}

// loggerConfig merges the log section with command-line overrides.
func loggerConfig(cfg *config.Config) logger.Config {
	lc := logger.Config{Output: "stdout", Level: "info"}
	if cfg != nil {
		lc.Output = cfg.Log.Output
		lc.Level = cfg.Log.Level
	}
	if *verbose {
		lc.Level = "debug"
	}
	if *logfile != "" {
		lc.Output = *logfile
	}
	return lc
}

// run executes the main server logic. Using a separate function ensures
// defer statements are executed even when returning with an error.
func run(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer logger.Close()

	chain, err := filter.NewChainFromConfig(filterSettings(cfg))
	if err != nil {
		return errors.Wrap(err, "invalid filter config")
	}

	lib, err := library.New(library.Config{
		Dir:           cfg.Library.Dir,
		Extension:     cfg.Library.Extension,
		MeasureDuration: cfg.MeasureDuration(),
	})
	if err != nil {
		return errors.Wrap(err, "failed to open track library")
	}

	var store *history.Store
	if cfg.History.Enabled {
		store, err = history.Open(cfg.History.DSN)
		if err != nil {
			return errors.Wrap(err, "failed to open play history")
		}
		defer func() {
			if err := store.Close(); err != nil {
				zlog.Warn().Err(err).Msg("Failed to close play history")
			}
		}()
	}

	scheduler := playback.NewScheduler(playback.Config{
		TickInterval: cfg.TickInterval(),
		ChunkSize:    cfg.Playback.ChunkSize,
	}, lib, chain)

	entries := make([]automation.Entry, len(cfg.Automation))
	for i, e := range cfg.Automation {
		entries[i] = automation.Entry{Schedule: e.Schedule, Command: e.Command}
	}
	runner, err := automation.New(entries, scheduler)
	if err != nil {
		return errors.Wrap(err, "invalid automation config")
	}

	// Control protocol server
	ctl := netctl.NewServer(netctl.Config{
		Addr:         cfg.Control.Addr,
		MaxLineBytes: cfg.MaxLineBytes(),
		WriteTimeout: cfg.ControlWriteTimeout(),
	}, scheduler)
	if err := ctl.Listen(); err != nil {
		return errors.Wrap(err, "failed to start control server")
	}

	// Broadcast and RPC share one HTTP server
	router := stream.NewRouter(stream.NewHandler(stream.Config{
		QueueChunks:  cfg.Broadcast.SinkQueueChunks,
		WriteTimeout: cfg.BroadcastWriteTimeout(),
		WebSocket:    cfg.Broadcast.WebSocket,
	}, scheduler))

	var historySource apiconnect.HistorySource
	if store != nil {
		historySource = store
	}
	controlService := apiconnect.NewControlService(scheduler, historySource)
	controlService.SetHistoryLimit(cfg.History.RecentLimit)
	controlPath, controlHandler := apiconnect.NewControlServiceHandler(
		controlService,
		connect.WithInterceptors(apiconnect.NewAdminAuthInterceptor(cfg.Admin.Token)),
	)
	router.Mount(controlPath, controlHandler)

	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return errors.Wrap(err, "failed to listen")
	}
	server := &http.Server{
		Handler: h2c.NewHandler(router, &http2.Server{}),
		// Streams end with the root context
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	var wg sync.WaitGroup
	errCh := make(chan error, 3)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := scheduler.Run(ctx); err != nil {
			errCh <- errors.Wrap(err, "scheduler")
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		consumeEvents(ctx, scheduler.Events(), store)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := ctl.Serve(ctx); err != nil {
			errCh <- errors.Wrap(err, "control server")
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		runner.Run(ctx)
	}()

	if cfg.WatchLibrary() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := lib.Watch(ctx); err != nil {
				zlog.Warn().Err(err).Msg("Library watch stopped; listings are no longer cached")
			}
		}()
	}

	go func() {
		zlog.Info().Msgf("Starting server: addr=%s control=%s", ln.Addr(), ctl.Addr())
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	if cfg.Discovery.Enabled {
		if err := discovery.Advertise(ctx, discovery.Config{
			Instance:    cfg.Discovery.ServiceName,
			Port:        portOf(ln.Addr()),
			ControlPort: portOf(ctl.Addr()),
		}); err != nil {
			zlog.Warn().Err(err).Msg("Failed to advertise via mDNS")
		}
	}

	// Execute startup hook if configured (after server is running)
	executeHooks(cfg.Server.Hooks.OnStarted, "on_started")

	// Wait for shutdown signal or a fatal error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var runErr error
	select {
	case <-sigCh:
		zlog.Info().Msg("Received shutdown signal...")
	case err := <-errCh:
		runErr = err
	}

	// Graceful shutdown
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Msgf("Failed to shutdown server: %v", err)
	}
	wg.Wait()

	zlog.Info().Msg("Server stopped")

	// Execute shutdown hook if configured
	executeHooks(cfg.Server.Hooks.OnStopped, "on_stopped")

	return runErr
}

// consumeEvents logs scheduler events and records them when history is on.
func consumeEvents(ctx context.Context, events <-chan playback.Event, store *history.Store) {
	var recorder *history.Recorder
	if store != nil {
		recorder = history.NewRecorder(store)
	}
	log := logger.Component("events")

	for ev := range events {
		entry := log.Info()
		if ev.Type == playback.EventTrackFailed {
			entry = log.Warn().Err(ev.Err)
		}
		entry.Str("type", ev.Type.String()).
			Str("track", ev.Track.Name).
			Str("state", ev.State.String()).
			Msg("playback event")

		if recorder == nil {
			continue
		}
		if err := recorder.Handle(context.WithoutCancel(ctx), ev); err != nil {
			log.Error().Err(err).Msgf("Failed to record event: type=%s", ev.Type)
		}
	}
}

// filterSettings converts the filters section for the filter package.
func filterSettings(cfg *config.Config) map[string]filter.Settings {
	out := make(map[string]filter.Settings, len(cfg.Filters))
	for name, f := range cfg.Filters {
		out[name] = filter.Settings{Enabled: f.Enabled, Settings: f.Settings}
	}
	return out
}

func portOf(addr net.Addr) int {
	_, port, err := net.SplitHostPort(addr.String())
	if err != nil {
		return 0
	}
	n, _ := strconv.Atoi(port)
	return n
}

// printFilters prints available filters.
func printFilters() {
	fmt.Println("Available Filters:")
	for name, factory := range filter.GetRegistered() {
		f := factory()
		codes := strings.Join(f.ReturnCodes(), ", ")
		fmt.Printf("  %-30s - %s [codes: %s]\n", name, f.Description(), codes)
	}
}

// executeHooks runs a list of shell commands.
func executeHooks(hooks []string, stage string) {
	if len(hooks) == 0 {
		return
	}

	zlog.Info().Msgf("Executing %s hooks (%d commands)", stage, len(hooks))

	for _, hook := range hooks {
		zlog.Info().Msgf("Executing hook: %s", hook)
		// Use sh -c to allow shell features like redirection or pipes
		cmd := exec.Command("sh", "-c", hook)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		if err := cmd.Run(); err != nil {
			zlog.Error().Err(err).Msgf("Failed to execute hook: %s", hook)
		}
	}
}
