package integration

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"
)

var (
	// compileOnce makes sure the project is only compiled once per test binary.
	compileOnce sync.Once

	// buildDir holds the compiled executable. It belongs to the package rather
	// than to any single test so it outlives the test that triggered the build.
	buildDir       string
	executablePath string
	compileErr     error
)

// auditorExecutablePath returns a path to the auditor executable.
// The binary is compiled the first time this is called, later calls reuse it.
func auditorExecutablePath() (string, error) {
	compileOnce.Do(func() {
		executablePath, compileErr = compile()
	})
	return executablePath, compileErr
}

func compile() (string, error) {
	dir, err := os.MkdirTemp("", "auditor-integration")
	if err != nil {
		return "", fmt.Errorf("failed to create build directory: %w", err)
	}
	buildDir = dir

	outputPath := filepath.Join(dir, "auditor")
	if runtime.GOOS == "windows" {
		outputPath += ".exe"
	}

	var errb bytes.Buffer
	cmd := exec.Command("go", "build", "-o", outputPath, "github.com/spacemeshos/auditor")
	cmd.Stderr = &errb
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("failed to build auditor: %v: %s", err, errb.String())
	}
	return outputPath, nil
}

// RemoveBuild deletes the compiled executable. Call it from TestMain once
// all tests using the package are done.
func RemoveBuild() error {
	if buildDir == "" {
		return nil
	}
	return os.RemoveAll(buildDir)
}
