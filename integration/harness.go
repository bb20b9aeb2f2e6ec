package integration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/spacemeshos/auditor/client"
	"github.com/spacemeshos/auditor/shared"
)

const startupTimeout = 30 * time.Second

// Harness fully encapsulates an active auditor server process to provide a
// unified platform to programmatically drive it.
type Harness struct {
	server *server
	*client.Client
}

// NewHarness launches an auditor server process and waits until it answers
// requests. The embedded client signs submissions with opts' identity.
func NewHarness(ctx context.Context, cfg *ServerConfig, opts ...client.Option) (*Harness, error) {
	srv := newServer(cfg)
	if err := srv.start(); err != nil {
		return nil, err
	}

	cl, err := client.New(fmt.Sprintf("http://%s", cfg.endpoint().Listen()), opts...)
	if err != nil {
		_ = srv.shutdown(true)
		return nil, err
	}
	if err := waitReady(ctx, srv, cl); err != nil {
		_ = srv.shutdown(true)
		return nil, err
	}

	return &Harness{server: srv, Client: cl}, nil
}

// waitReady polls the proof endpoint until the server answers with its
// signed not found response.
func waitReady(ctx context.Context, srv *server, cl *client.Client) error {
	ctx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 50 * time.Millisecond
	policy.MaxInterval = time.Second
	operation := func() error {
		select {
		case err := <-srv.errChan:
			return backoff.Permanent(fmt.Errorf("auditor exited: %w", err))
		default:
		}
		_, err := cl.ProofOfComputation(ctx, "readiness-probe")
		if errors.Is(err, client.ErrHostNotFound) {
			return nil
		}
		if err == nil {
			return errors.New("unexpected proof for readiness probe")
		}
		return err
	}
	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		return fmt.Errorf("auditor server did not become ready: %w", err)
	}
	return nil
}

// TearDown stops the server process. With cleanup set the auditor
// directory is removed as well.
func (h *Harness) TearDown(cleanup bool) error {
	if err := h.server.shutdown(cleanup); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	return nil
}

// ProcessErrors returns a channel used for reporting any fatal process errors.
func (h *Harness) ProcessErrors() <-chan error {
	return h.server.errChan
}

// Stderr returns what the server process wrote to stderr so far.
func (h *Harness) Stderr() string {
	return h.server.stderr.String()
}

// Submit posts a report through the harness client.
func (h *Harness) Submit(ctx context.Context, report shared.Report) (*shared.StatisticsResponse, error) {
	return h.PostStatistics(ctx, report)
}
