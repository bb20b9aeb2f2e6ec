package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/jessevdk/go-flags"
	"go.uber.org/zap"

	"github.com/spacemeshos/auditor/benchmark"
	"github.com/spacemeshos/auditor/client"
	"github.com/spacemeshos/auditor/config"
	"github.com/spacemeshos/auditor/logging"
	"github.com/spacemeshos/auditor/migrations"
	"github.com/spacemeshos/auditor/server"
	"github.com/spacemeshos/auditor/signing"
	"github.com/spacemeshos/auditor/store"
)

// Auditor binary version.
// It should be passed during the build with '-ldflags "-X main.version="'.
var version = "unknown"

// auditorMain is the true entry point for the auditor. This function is
// required since defers created in the top-level scope of a main method
// aren't executed if os.Exit() is called.
func auditorMain() error {
	var err error
	// Start with a default Config with sane settings
	cfg := config.DefaultConfig()
	// Pre-parse the command line to check for an alternative Config file
	cfg, err = config.ParseFlags(cfg)
	if err != nil {
		return err
	}
	// Load configuration file overwriting defaults with any specified options
	cfg, err = config.ReadConfigFile(cfg)
	if err != nil {
		return err
	}

	cfg, err = config.SetupConfig(cfg)
	if err != nil {
		return err
	}
	// Finally, parse the remaining command line options again to ensure
	// they take precedence.
	cfg, err = config.ParseFlags(cfg)
	if err != nil {
		return err
	}
	cfg.ExpandPaths()

	hostID, err := config.LoadOrCreateHostID(cfg.DataDir)
	if err != nil {
		return err
	}
	if cfg.PrintConfiguration {
		cfg.Print(os.Stdout, hostID)
		return nil
	}

	// Initialize logging
	logLevel := zap.InfoLevel
	if cfg.DebugLog {
		logLevel = zap.DebugLevel
	}
	logger := logging.New(logLevel, filepath.Join(cfg.LogDir, "auditor.log"), cfg.JSONLog, logging.FileOptions{
		MaxBackups: cfg.MaxLogFiles,
		MaxSizeMB:  cfg.MaxLogFileSize,
	})
	logger = logger.With(zap.String("host_id", hostID))
	ctx := logging.NewContext(context.Background(), logger)

	defer func() {
		logger.Info("shutdown complete")
	}()

	// Show version at startup.
	logger.Sugar().Infof("version: %s, mode: %s", version, cfg.Mode())
	logger.Debug("configuration", zap.Object("config", cfg))

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch cfg.Mode() {
	case config.ModeClientLoadSimulator:
		return client.RunLoadSimulator(ctx, cfg.Client.PollInterval, cfg.Client.BenchmarkLoops)
	case config.ModeServer:
		identity, err := loadIdentity(cfg)
		if err != nil {
			return err
		}
		return runServer(ctx, cfg, identity, hostID)
	default:
		identity, err := loadIdentity(cfg)
		if err != nil {
			return err
		}
		return runClient(ctx, cfg, identity, hostID)
	}
}

func loadIdentity(cfg *config.Config) (*signing.Identity, error) {
	identity, err := signing.LoadOrCreate(cfg.PrivateKeyPath(), cfg.PublicKeyPath(), cfg.KeyBits)
	if err != nil {
		return nil, fmt.Errorf("failed to load signing identity: %w", err)
	}
	return identity, nil
}

func runServer(ctx context.Context, cfg *config.Config, identity *signing.Identity, hostID string) error {
	endpoint, err := config.LoadServerEndpoint(cfg.EtcDir)
	if err != nil {
		return err
	}
	if err := migrations.Migrate(ctx, cfg); err != nil {
		return fmt.Errorf("failed to migrate data dir: %w", err)
	}
	st, err := store.Open(ctx, cfg.DataDir, cfg.Store.Backend, cfg.Store.AtomicSnapshot)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}

	serverCfg := server.Config{
		Listen:  endpoint.Listen(),
		Version: version,
	}
	if cfg.MetricsPort != nil {
		serverCfg.MetricsListen = net.JoinHostPort("", strconv.Itoa(int(*cfg.MetricsPort)))
	}

	srv, err := server.New(ctx, serverCfg, identity, hostID, st)
	if err != nil {
		st.Close()
		return fmt.Errorf("failed to create server: %w", err)
	}
	defer srv.Close()
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("failure in server: %w", err)
	}
	return nil
}

func runClient(ctx context.Context, cfg *config.Config, identity *signing.Identity, hostID string) error {
	endpoint, err := config.LoadClientEndpoint(cfg.EtcDir)
	if err != nil {
		return err
	}
	cl, err := client.New(endpoint.Endpoint, client.WithIdentity(identity, hostID), client.WithVersion(version))
	if err != nil {
		return err
	}
	return client.NewReporter(cl, cfg.Client.PollInterval,
		client.WithBenchmark(func() benchmark.Result { return benchmark.Run(cfg.Client.BenchmarkLoops) }),
	).Run(ctx)
}

func main() {
	// Call the "real" main in a nested manner so the defers will properly
	// be executed in the case of a graceful shutdown.
	if err := auditorMain(); err != nil {
		// If it's the flag utility error don't print it,
		// because it was already printed.
		if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
		} else {
			_, _ = fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
