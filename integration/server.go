package integration

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/spacemeshos/auditor/config"
)

const shutdownTimeout = 10 * time.Second

// ServerConfig contains everything required to launch an auditor server
// process and talk to it.
type ServerConfig struct {
	Address      string
	Port         uint16
	StoreBackend string
	DebugLog     bool

	auditorDir string
	exe        string
}

// DefaultConfig returns a config for a server listening on a free loopback
// port, keeping its state under baseDir.
func DefaultConfig(baseDir string) (*ServerConfig, error) {
	exe, err := auditorExecutablePath()
	if err != nil {
		return nil, err
	}
	port, err := freePort()
	if err != nil {
		return nil, err
	}
	return &ServerConfig{
		Address:    "127.0.0.1",
		Port:       port,
		DebugLog:   true,
		auditorDir: filepath.Join(baseDir, "auditor-home"),
		exe:        exe,
	}, nil
}

func (cfg *ServerConfig) endpoint() config.ServerEndpoint {
	return config.ServerEndpoint{Address: cfg.Address, Port: cfg.Port}
}

// genArgs generates a slice of command line arguments from the config.
func (cfg *ServerConfig) genArgs() []string {
	args := []string{
		"--server-mode",
		fmt.Sprintf("--auditordir=%v", cfg.auditorDir),
	}
	if cfg.StoreBackend != "" {
		args = append(args, fmt.Sprintf("--store-backend=%v", cfg.StoreBackend))
	}
	if cfg.DebugLog {
		args = append(args, "--debuglog")
	}
	return args
}

// writeEndpoint writes the server endpoint file the process reads on start.
func (cfg *ServerConfig) writeEndpoint() error {
	etcDir := filepath.Join(cfg.auditorDir, "etc")
	if err := os.MkdirAll(etcDir, 0o700); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg.endpoint()); err != nil {
		return fmt.Errorf("encoding endpoint: %w", err)
	}
	return os.WriteFile(filepath.Join(etcDir, config.ServerEndpointFilename), buf.Bytes(), 0o600)
}

// server houses the state required to launch and manage an auditor
// server process.
type server struct {
	cfg    *ServerConfig
	cmd    *exec.Cmd
	stderr bytes.Buffer
	stdout bytes.Buffer

	// processExit is closed once the process this instance is bound to has exited.
	processExit chan struct{}
	wg          sync.WaitGroup

	errChan chan error
}

func newServer(cfg *ServerConfig) *server {
	return &server{
		cfg:     cfg,
		errChan: make(chan error, 1),
	}
}

// start launches a new running process of the auditor server.
func (s *server) start() error {
	if err := s.cfg.writeEndpoint(); err != nil {
		return err
	}

	s.cmd = exec.Command(s.cfg.exe, s.cfg.genArgs()...)
	s.cmd.Stderr = &s.stderr
	s.cmd.Stdout = &s.stdout
	if err := s.cmd.Start(); err != nil {
		return err
	}

	// Bubble up fatal process errors to errChan.
	s.processExit = make(chan struct{})
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.cmd.Wait(); err != nil {
			var exitErr *exec.ExitError
			if !errors.As(err, &exitErr) || exitErr.Exited() {
				s.errChan <- fmt.Errorf("%v\n%v", err, s.stderr.String())
			}
		}
		close(s.processExit)
	}()

	return nil
}

// shutdown interrupts the process, killing it when it doesn't exit in time,
// and removes its files when cleanup is set.
func (s *server) shutdown(cleanup bool) error {
	if err := s.stop(); err != nil {
		return err
	}
	if cleanup {
		return os.RemoveAll(s.cfg.auditorDir)
	}
	return nil
}

func (s *server) stop() error {
	// Do nothing if the process is not running.
	if s.processExit == nil {
		return nil
	}

	if err := s.cmd.Process.Signal(os.Interrupt); err != nil {
		return fmt.Errorf("failed to interrupt process: %v", err)
	}
	select {
	case <-s.processExit:
	case <-time.After(shutdownTimeout):
		if err := s.cmd.Process.Kill(); err != nil {
			return fmt.Errorf("failed to kill process: %v", err)
		}
	}
	s.wg.Wait()
	s.processExit = nil
	return nil
}

func freePort() (uint16, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return uint16(l.Addr().(*net.TCPAddr).Port), nil
}
