package config

import (
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
)

const (
	ServerEndpointFilename = "auditor_server.toml"
	ClientEndpointFilename = "auditor_client.toml"
)

var ErrInvalidEndpoint = errors.New("invalid endpoint configuration")

// ServerEndpoint is the address the server listens on.
type ServerEndpoint struct {
	Address string `toml:"address"`
	Port    uint16 `toml:"port"`
}

func (e ServerEndpoint) Listen() string {
	return net.JoinHostPort(e.Address, strconv.Itoa(int(e.Port)))
}

// ClientEndpoint is the base URL of the server a node reports to.
type ClientEndpoint struct {
	Endpoint string `toml:"endpoint"`
}

func LoadServerEndpoint(etcDir string) (ServerEndpoint, error) {
	var e ServerEndpoint
	path := filepath.Join(etcDir, ServerEndpointFilename)
	if _, err := toml.DecodeFile(path, &e); err != nil {
		return ServerEndpoint{}, fmt.Errorf("can not read configuration file %s: %w", path, err)
	}
	if net.ParseIP(e.Address) == nil {
		return ServerEndpoint{}, fmt.Errorf("%w: address %q in %s", ErrInvalidEndpoint, e.Address, path)
	}
	return e, nil
}

func LoadClientEndpoint(etcDir string) (ClientEndpoint, error) {
	var e ClientEndpoint
	path := filepath.Join(etcDir, ClientEndpointFilename)
	if _, err := toml.DecodeFile(path, &e); err != nil {
		return ClientEndpoint{}, fmt.Errorf("can not read configuration file %s: %w", path, err)
	}
	if e.Endpoint == "" {
		return ClientEndpoint{}, fmt.Errorf("%w: missing endpoint in %s", ErrInvalidEndpoint, path)
	}
	return e, nil
}
