// Command rew-bridge supervises a headless REW instance and bridges its SPL
// meter telemetry to a small HTTP API for show-control systems.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"

	"github.com/jensen-user/rew-bridge/internal/announce"
	"github.com/jensen-user/rew-bridge/internal/bridge"
	"github.com/jensen-user/rew-bridge/internal/config"
	"github.com/jensen-user/rew-bridge/internal/leq"
	"github.com/jensen-user/rew-bridge/internal/logging"
	"github.com/jensen-user/rew-bridge/internal/rew"
)

const (
	configPath   = "config.json"
	logFile      = "rew_bridge.log"
	mdnsInstance = "REW SPL Bridge"
)

func main() {
	if err := run(os.Args[1:], os.LookupEnv); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string, lookup func(string) (string, bool)) error {
	persisted, created, err := config.LoadOrCreate(configPath)
	if err != nil {
		return fmt.Errorf("load config: %v", err)
	}
	// Flag and env overrides apply to this run only; the file is written
	// just once, on first run, so a one-off -log-level does not stick.
	cfg, err := parseFlags(args, lookup, persisted)
	if err != nil {
		return err
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	format, err := logging.ParseFormat(cfg.LogFormat)
	if err != nil {
		return err
	}
	logger, logCloser, err := logging.NewWithFile(level, format, os.Stderr, logFile)
	if err != nil {
		// A read-only install directory shouldn't keep the bridge down.
		logger = logging.New(level, format, os.Stderr)
		logger.Warn("log file unavailable, console only", logging.Field{Key: "error", Value: err})
	} else {
		defer logCloser.Close()
	}
	logging.SetDefault(logger)

	logger.Info("configuration",
		logging.Field{Key: "bridge_port", Value: cfg.BridgePort},
		logging.Field{Key: "rew_api_port", Value: cfg.REWAPIPort},
		logging.Field{Key: "log_level", Value: cfg.LogLevel},
		logging.Field{Key: "rew_path", Value: cfg.REWPath})
	if created {
		logger.Info("first run, selected free bridge port",
			logging.Field{Key: "bridge_port", Value: cfg.BridgePort})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	state := bridge.NewState(leq.NewWindow(leq.DefaultCapacity))
	client := rew.NewClient(fmt.Sprintf("http://localhost:%d", cfg.REWAPIPort), logger)
	super := rew.NewSupervisor(cfg.REWPath, logger)
	callbackURL := fmt.Sprintf("http://localhost:%d/rew-callback", cfg.BridgePort)
	controller := bridge.NewController(state, client, super, callbackURL, logger)

	logger.Info("starting rew spl meter bridge")
	if err := controller.Startup(ctx); err != nil {
		logger.Error("rew startup failed, bridge serving without rew",
			logging.Field{Key: "error", Value: err})
	}

	var background sync.WaitGroup

	keepalive := bridge.NewKeepalive(state, client, callbackURL, logger)
	background.Add(1)
	go func() {
		defer background.Done()
		keepalive.Run(ctx)
	}()

	if cfg.MDNS {
		background.Add(1)
		go func() {
			defer background.Done()
			if err := announce.Run(ctx, mdnsInstance, cfg.BridgePort, logger); err != nil {
				logger.Warn("mdns advertisement unavailable", logging.Field{Key: "error", Value: err})
			}
		}()
	}

	serveErr := bridge.NewServer(fmt.Sprintf(":%d", cfg.BridgePort), state, controller, logger).Start(ctx)

	// Teardown order matters: the keepalive must be fully stopped before
	// REW goes away, so no probe observes a process we are killing. A
	// listen failure takes the same path so the spawned REW is not left
	// orphaned behind a bridge with no API surface.
	stop()
	background.Wait()
	controller.Shutdown(context.Background())
	if serveErr != nil {
		return fmt.Errorf("bridge server: %v", serveErr)
	}
	logger.Info("rew spl meter bridge stopped")
	return nil
}

func parseFlags(args []string, lookup func(string) (string, bool), defaults config.Config) (config.Config, error) {
	cfg := config.Config{}
	fs := flag.NewFlagSet("rew-bridge", flag.ContinueOnError)
	fs.StringVar(&cfg.REWPath, "rew-path", envString(lookup, "REWBRIDGE_REW_PATH", defaults.REWPath), "Path to the REW executable (overrides the conventional locations)")
	fs.IntVar(&cfg.BridgePort, "bridge-port", envInt(lookup, "REWBRIDGE_PORT", defaults.BridgePort), "Bridge HTTP listen port")
	fs.IntVar(&cfg.REWAPIPort, "rew-api-port", envInt(lookup, "REWBRIDGE_REW_API_PORT", defaults.REWAPIPort), "REW API port")
	fs.StringVar(&cfg.LogLevel, "log-level", envString(lookup, "REWBRIDGE_LOG_LEVEL", defaults.LogLevel), "Log level (debug|info|warn|error)")
	fs.StringVar(&cfg.LogFormat, "log-format", envString(lookup, "REWBRIDGE_LOG_FORMAT", defaults.LogFormat), "Log format (text|json)")
	fs.BoolVar(&cfg.MDNS, "mdns", envBool(lookup, "REWBRIDGE_MDNS", defaults.MDNS), "Advertise the bridge API over mDNS")

	if err := fs.Parse(args); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func envString(lookup func(string) (string, bool), key, def string) string {
	if val, ok := lookup(key); ok {
		return val
	}
	return def
}

func envInt(lookup func(string) (string, bool), key string, def int) int {
	if val, ok := lookup(key); ok {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

func envBool(lookup func(string) (string, bool), key string, def bool) bool {
	if val, ok := lookup(key); ok {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return def
}
