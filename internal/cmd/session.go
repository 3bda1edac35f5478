package cmd

import (
	"context"
	stderrors "errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/gitpipe/internal/config"
	"github.com/felixgeelhaar/gitpipe/internal/executor"
	"github.com/felixgeelhaar/gitpipe/internal/log"
	"github.com/felixgeelhaar/gitpipe/internal/metrics"
	"github.com/felixgeelhaar/gitpipe/internal/telemetry"
	"github.com/felixgeelhaar/gitpipe/internal/version"
)

const shutdownTimeout = 5 * time.Second

var metricsAddr string

func init() {
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while the command runs")
}

// session is one command's executor together with the observability it
// reports to.
type session struct {
	cfg      config.Config
	logger   *log.Logger
	exec     *executor.Executor
	registry *prometheus.Registry

	shutdownTracing telemetry.ShutdownFunc
	server          *http.Server
}

// newSession builds an executor from cfg whose processes are aborted when the
// command's context ends.
func newSession(cmd *cobra.Command, cfg config.Config, opts ...executor.Option) (*session, error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	logger := newLogger(cmd, cfg)

	tc := telemetry.DefaultConfig()
	tc.ServiceVersion = version.GetInfo().Short()
	tc.Enabled = cfg.Telemetry.Enabled
	tc.Endpoint = cfg.Telemetry.Endpoint
	tc.SampleRate = cfg.Telemetry.SampleRate
	tp, shutdownTracing, err := telemetry.NewProvider(ctx, tc)
	if err != nil {
		return nil, err
	}

	registry, m := metrics.NewRegistry()
	opts = append([]executor.Option{
		executor.WithLogger(logger),
		executor.WithMetrics(m),
		executor.WithTracerProvider(tp),
		executor.WithAbort(ctx),
	}, opts...)

	exec, err := executor.New(cfg, opts...)
	if err != nil {
		_ = shutdownTracing(context.Background())
		return nil, err
	}

	s := &session{
		cfg:             cfg,
		logger:          logger,
		exec:            exec,
		registry:        registry,
		shutdownTracing: shutdownTracing,
	}
	if metricsAddr != "" {
		if err := s.serveMetrics(metricsAddr); err != nil {
			_ = s.Close()
			return nil, err
		}
	}
	return s, nil
}

func (s *session) serveMetrics(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.HandlerFor(s.registry))
	s.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := s.server.Serve(ln); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			s.logger.WithError(err).Warn("Metrics server stopped")
		}
	}()
	s.logger.Info("Serving metrics", "addr", ln.Addr().String())
	return nil
}

// Close flushes traces and stops the metrics server.
func (s *session) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if s.server != nil {
		errs = append(errs, s.server.Shutdown(ctx))
	}
	if s.shutdownTracing != nil {
		errs = append(errs, s.shutdownTracing(ctx))
	}
	return stderrors.Join(errs...)
}
