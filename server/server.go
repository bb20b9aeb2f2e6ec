package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spacemeshos/auditor/logging"
	"github.com/spacemeshos/auditor/shared"
	"github.com/spacemeshos/auditor/signing"
	"github.com/spacemeshos/auditor/store"
)

var ErrNoListener = errors.New("server has no listen address")

const (
	defaultKeyCacheSize = 1024
	maxRequestBodySize  = 1 << 20
)

type Config struct {
	// Listen is the interface/port for the statistics API.
	Listen string
	// MetricsListen enables the prometheus endpoint when set.
	MetricsListen string
	Version       string
}

// Server accepts signed statistics from reporting nodes and serves
// their proof of computation.
type Server struct {
	cfg      Config
	identity *signing.Identity
	hostID   string
	store    *store.Store
	verifier *signing.Verifier
	now      func() time.Time

	listener        net.Listener
	metricsListener net.Listener
}

type Option func(*Server)

// WithClock overrides the time source used to stamp observations.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

func New(ctx context.Context, cfg Config, identity *signing.Identity, hostID string, st *store.Store, opts ...Option) (*Server, error) {
	verifier, err := signing.NewVerifier(defaultKeyCacheSize)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:      cfg,
		identity: identity,
		hostID:   hostID,
		store:    st,
		verifier: verifier,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if cfg.Listen != "" {
		s.listener, err = listen(cfg.Listen)
		if err != nil {
			return nil, err
		}
	}
	if cfg.MetricsListen != "" {
		s.metricsListener, err = listen(cfg.MetricsListen)
		if err != nil {
			if s.listener != nil {
				s.listener.Close()
			}
			return nil, err
		}
	}

	logging.FromContext(ctx).Info("server created", zap.String("host_id", hostID), zap.String("listen", cfg.Listen))
	return s, nil
}

func listen(raw string) (net.Listener, error) {
	addr, err := net.ResolveTCPAddr("tcp", raw)
	if err != nil {
		return nil, err
	}
	l, err := net.Listen(addr.Network(), addr.String())
	if err != nil {
		return nil, fmt.Errorf("failed to listen: %v", err)
	}
	return l, nil
}

// Addr returns the address the statistics API is listening on.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

func (s *Server) MetricsAddr() net.Addr {
	return s.metricsListener.Addr()
}

func (s *Server) HostID() string {
	return s.hostID
}

func (s *Server) PublicKeyText() string {
	return s.identity.PublicKeyText()
}

// Handler returns the HTTP handler serving the statistics API.
func (s *Server) Handler(logger *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(loggerMiddleware(logger))
	r.Use(middleware.Recoverer)

	r.Post(shared.StatisticsPath, s.handlePostStatistics)
	r.Get(shared.ProofOfComputationPath+"/{host_id}", s.handleGetProofOfComputation)

	// Anything else is a plain not found without a signed body.
	r.NotFound(http.NotFound)
	r.MethodNotAllowed(http.NotFound)
	return r
}

// Start serves the API until ctx is canceled.
func (s *Server) Start(ctx context.Context) error {
	ctx, stop := context.WithCancel(ctx)
	defer stop()
	serverGroup, ctx := errgroup.WithContext(ctx)

	logger := logging.FromContext(ctx)
	if s.listener == nil {
		return ErrNoListener
	}

	servers := []*http.Server{}
	server := &http.Server{Handler: s.Handler(logger), ReadHeaderTimeout: time.Second * 5}
	servers = append(servers, server)
	serverGroup.Go(func() error {
		logger.Sugar().Infof("Listening on %s", s.listener.Addr())
		err := server.Serve(s.listener)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	if s.metricsListener != nil {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer := &http.Server{Handler: mux, ReadHeaderTimeout: time.Second * 5}
		servers = append(servers, metricsServer)
		serverGroup.Go(func() error {
			logger.Sugar().Infof("Metrics server listening on %s", s.metricsListener.Addr())
			err := metricsServer.Serve(s.metricsListener)
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		})
	}

	// Wait for the server to shut down gracefully
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Sugar().Errorf("failed to shutdown server: %s", err)
		}
	}
	if err := serverGroup.Wait(); err != nil {
		logger.Sugar().Errorf("error when waiting to shutdown servers: %s", err)
		return err
	}
	return nil
}

// Close releases the listeners and the store.
func (s *Server) Close() error {
	var result *multierror.Error
	for _, l := range []net.Listener{s.listener, s.metricsListener} {
		if l == nil {
			continue
		}
		if err := l.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			result = multierror.Append(result, err)
		}
	}
	if err := s.store.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("closing store: %w", err))
	}
	return result.ErrorOrNil()
}

// loggerMiddleware attaches a request scoped logger to every request and logs its outcome.
func loggerMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := logger.Named("http").With(zap.Stringer("request_id", uuid.New()))
			ctx := logging.NewContext(r.Context(), logger)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r.WithContext(ctx))

			logger.Info(fmt.Sprintf("%s %s", r.Method, r.URL.Path),
				zap.String("from", r.RemoteAddr),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}
