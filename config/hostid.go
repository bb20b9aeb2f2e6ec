package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const HostIDFilename = "host_id.dat"

var ErrEmptyHostID = errors.New("host id file is empty")

// LoadOrCreateHostID returns the identifier persisted in dataDir,
// generating and persisting a fresh one on first run.
func LoadOrCreateHostID(dataDir string) (string, error) {
	path := filepath.Join(dataDir, HostIDFilename)
	data, err := os.ReadFile(path) //#nosec G304
	switch {
	case errors.Is(err, fs.ErrNotExist):
		hostID := uuid.NewString()
		if err := os.WriteFile(path, []byte(hostID), 0o600); err != nil {
			return "", fmt.Errorf("writing host id to %s: %w", path, err)
		}
		return hostID, nil
	case err != nil:
		return "", fmt.Errorf("reading host id from %s: %w", path, err)
	}

	hostID := strings.TrimSpace(string(data))
	if hostID == "" {
		return "", fmt.Errorf("%w: %s", ErrEmptyHostID, path)
	}
	return hostID, nil
}
