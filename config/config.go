// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2015-2016 The Decred developers
// Copyright (c) 2017-2023 The Spacemesh developers

package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	"github.com/jessevdk/go-flags"
	"go.uber.org/zap/zapcore"

	"github.com/spacemeshos/auditor/logging"
	"github.com/spacemeshos/auditor/signing"
	"github.com/spacemeshos/auditor/store"
)

const (
	defaultDataDirname    = "data"
	defaultEtcDirname     = "etc"
	defaultLogDirname     = "logs"
	defaultMaxLogFiles    = 3
	defaultMaxLogFileSize = 10
	defaultPollInterval   = 10 * time.Second
	defaultBenchmarkLoops = 32

	PrivateKeyFilename = "key"
	PublicKeyFilename  = "key.pub"
)

var ErrMissingDirectory = errors.New("directory doesn't exist")

type Mode int

const (
	ModeClient Mode = iota
	ModeClientLoadSimulator
	ModeServer
)

func (m Mode) String() string {
	switch m {
	case ModeServer:
		return "Server"
	case ModeClientLoadSimulator:
		return "ClientLoadSimulator"
	default:
		return "Client"
	}
}

// Config defines the configuration options for auditor.
//
//nolint:lll
type Config struct {
	AuditorDir     string  `long:"auditordir"     description:"The base directory that contains auditor's data, keys, logs, etc."`
	ConfigFile     string  `long:"configfile"     description:"Path to configuration file"                                              short:"c"`
	DataDir        string  `long:"data-dir"       description:"Sets a custom data dir"                                                  short:"d"`
	EtcDir         string  `long:"etc-dir"        description:"Sets a custom etc dir"                                                   short:"e"`
	LogDir         string  `long:"logdir"         description:"Directory to log output."`
	DebugLog       bool    `long:"debuglog"       description:"Enable debug logs"`
	JSONLog        bool    `long:"jsonlog"        description:"Whether to log in JSON format"`
	MaxLogFiles    int     `long:"maxlogfiles"    description:"Maximum logfiles to keep (0 for no rotation)"`
	MaxLogFileSize int     `long:"maxlogfilesize" description:"Maximum logfile size in MB"`
	MetricsPort    *uint16 `long:"metrics-port"   description:"The port to expose metrics"`
	KeyBits        int     `long:"key-bits"       description:"RSA modulus size used when a new signing key is generated"`

	ServerMode              bool `long:"server-mode"                description:"Run in server mode"                 short:"S"`
	ClientMode              bool `long:"client-mode"                description:"Run in client mode"                 short:"C"`
	ClientLoadSimulatorMode bool `long:"client-load-simulator-mode" description:"Run in client load simulator mode"  short:"L"`
	PrintConfiguration      bool `long:"print-configuration"        description:"Prints configuration information"   short:"P"`

	Store  StoreConfig  `group:"Store"`
	Client ClientConfig `group:"Client"`
}

type StoreConfig struct {
	Backend        string `long:"store-backend"   description:"Storage backend for host records" choice:"snapshot" choice:"leveldb"`
	AtomicSnapshot bool   `long:"atomic-snapshot" description:"Write snapshots to a temporary file and rename it over the old one"`
}

type ClientConfig struct {
	PollInterval   time.Duration `long:"poll-interval"   description:"Interval between statistics submissions"`
	BenchmarkLoops uint32        `long:"benchmark-loops" description:"Number of fibonacci iterations per benchmark thread"`
}

// DefaultConfig returns a config with default hardcoded values.
func DefaultConfig() *Config {
	auditorDir := "./auditor"
	cacheDir, err := os.UserCacheDir()
	if err == nil {
		auditorDir = filepath.Join(cacheDir, "auditor")
	}

	return &Config{
		AuditorDir:     auditorDir,
		DataDir:        filepath.Join(auditorDir, defaultDataDirname),
		EtcDir:         filepath.Join(auditorDir, defaultEtcDirname),
		LogDir:         filepath.Join(auditorDir, defaultLogDirname),
		MaxLogFiles:    defaultMaxLogFiles,
		MaxLogFileSize: defaultMaxLogFileSize,
		KeyBits:        signing.DefaultKeyBits,
		Store: StoreConfig{
			Backend: store.BackendSnapshot,
		},
		Client: ClientConfig{
			PollInterval:   defaultPollInterval,
			BenchmarkLoops: defaultBenchmarkLoops,
		},
	}
}

// Mode picks the run mode. Server mode wins over the load simulator, client is the default.
func (c *Config) Mode() Mode {
	switch {
	case c.ServerMode:
		return ModeServer
	case c.ClientLoadSimulatorMode:
		return ModeClientLoadSimulator
	default:
		return ModeClient
	}
}

func (c *Config) PrivateKeyPath() string {
	return filepath.Join(c.EtcDir, PrivateKeyFilename)
}

func (c *Config) PublicKeyPath() string {
	return filepath.Join(c.EtcDir, PublicKeyFilename)
}

// Print writes the resolved configuration in a human readable form.
func (c *Config) Print(w io.Writer, hostID string) {
	fmt.Fprintf(w, "data_dir = %s\n", c.DataDir)
	fmt.Fprintf(w, "etc_dir = %s\n", c.EtcDir)
	fmt.Fprintf(w, "host_id = %s\n", hostID)
	fmt.Fprintf(w, "mode = %s\n", c.Mode())
}

// implement zap.ObjectMarshaler interface.
func (c *Config) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("auditordir", c.AuditorDir)
	enc.AddString("datadir", c.DataDir)
	enc.AddString("etcdir", c.EtcDir)
	enc.AddString("logdir", c.LogDir)
	enc.AddString("mode", c.Mode().String())
	enc.AddString("store-backend", c.Store.Backend)
	enc.AddDuration("poll-interval", c.Client.PollInterval)
	return nil
}

// ParseFlags reads values from command line arguments.
func ParseFlags(preCfg *Config) (*Config, error) {
	if _, err := flags.Parse(preCfg); err != nil {
		return nil, err
	}
	return preCfg, nil
}

// ReadConfigFile reads config from an ini file.
// It uses the provided `cfg` as a base config and overrides it with the values
// from the config file.
func ReadConfigFile(cfg *Config) (*Config, error) {
	if cfg.ConfigFile == "" {
		return cfg, nil
	}
	logging.FromContext(context.Background()).Sugar().Debugf("reading config from %s", cfg.ConfigFile)
	if err := flags.IniParse(cfg.ConfigFile, cfg); err != nil {
		return nil, fmt.Errorf("failed to read config from %v: %w", cfg.ConfigFile, err)
	}

	return cfg, nil
}

// SetupConfig expands paths and initializes filesystem.
// Directories that live under the auditor directory are created, directories
// pointed elsewhere must already exist.
func SetupConfig(cfg *Config) (*Config, error) {
	// If the provided auditor directory is not the default, we'll modify the
	// path to all of the files and directories that will live within it.
	defaultCfg := DefaultConfig()
	if cfg.AuditorDir != defaultCfg.AuditorDir {
		if cfg.DataDir == defaultCfg.DataDir {
			cfg.DataDir = filepath.Join(cfg.AuditorDir, defaultDataDirname)
		}
		if cfg.EtcDir == defaultCfg.EtcDir {
			cfg.EtcDir = filepath.Join(cfg.AuditorDir, defaultEtcDirname)
		}
		if cfg.LogDir == defaultCfg.LogDir {
			cfg.LogDir = filepath.Join(cfg.AuditorDir, defaultLogDirname)
		}
	}

	cfg.ExpandPaths()

	// Create the auditor directory if it doesn't already exist.
	if err := os.MkdirAll(cfg.AuditorDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create %v: %w", cfg.AuditorDir, err)
	}

	for _, dir := range []string{cfg.DataDir, cfg.EtcDir, cfg.LogDir} {
		if isWithin(cfg.AuditorDir, dir) {
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return nil, fmt.Errorf("failed to create %v: %w", dir, err)
			}
			continue
		}
		if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMissingDirectory, dir)
		} else if err != nil {
			return nil, fmt.Errorf("checking %v: %w", dir, err)
		}
	}

	return cfg, nil
}

// ExpandPaths cleans the configured directories and expands environment
// variables and a leading ~ in them. It must run again after flags are
// re-parsed over an already set up config.
func (c *Config) ExpandPaths() {
	c.AuditorDir = cleanAndExpandPath(c.AuditorDir)
	c.DataDir = cleanAndExpandPath(c.DataDir)
	c.EtcDir = cleanAndExpandPath(c.EtcDir)
	c.LogDir = cleanAndExpandPath(c.LogDir)
}

func isWithin(base, path string) bool {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// cleanAndExpandPath expands environment variables and leading ~ in the
// passed path, cleans the result, and returns it.
// This function is taken from https://github.com/btcsuite/btcd
func cleanAndExpandPath(path string) string {
	if path == "" {
		return ""
	}

	// Expand initial ~ to OS specific home directory.
	if strings.HasPrefix(path, "~") {
		var homeDir string
		user, err := user.Current()
		if err == nil {
			homeDir = user.HomeDir
		} else {
			homeDir = os.Getenv("HOME")
		}

		path = strings.Replace(path, "~", homeDir, 1)
	}

	// NOTE: The os.ExpandEnv doesn't work with Windows-style %VARIABLE%,
	// but the variables can still be expanded via POSIX-style $VARIABLE.
	return filepath.Clean(os.ExpandEnv(path))
}
