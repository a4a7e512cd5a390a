package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	cxdbclient "github.com/strongdm/ai-cxdb/clients/go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/strongdm/ai-cxdb-jsexc/pkg/jsexc"
	"github.com/strongdm/ai-cxdb-jsexc/pkg/jsexc/adapters/gojart"
	"github.com/strongdm/ai-cxdb-jsexc/pkg/jsexc/sinks/async"
	"github.com/strongdm/ai-cxdb-jsexc/pkg/jsexc/sinks/cxdb"
	"github.com/strongdm/ai-cxdb-jsexc/pkg/jsexc/sinks/multi"
	"github.com/strongdm/ai-cxdb-jsexc/pkg/jsexc/sinks/prom"
	"github.com/strongdm/ai-cxdb-jsexc/pkg/jsexc/sinks/stderr"
)

// runEnv carries the process-level dependencies of a run.
type runEnv struct {
	logger *zap.Logger
	out    io.Writer

	// dial connects to cxdb. Replaced in tests.
	dial func(addr, clientTag string) (cxdb.Client, io.Closer, error)
}

func dialCXDB(addr, clientTag string) (cxdb.Client, io.Closer, error) {
	client, err := cxdbclient.Dial(addr, cxdbclient.WithClientTag(clientTag))
	if err != nil {
		return nil, nil, err
	}
	return client, client, nil
}

// runResult summarizes a run.
type runResult struct {
	Captured int64
}

// runPage loads every script of cfg into a fresh page, lets the realms settle
// and flushes all captured exceptions to the configured sinks.
func runPage(ctx context.Context, cfg *Config, env runEnv) (res runResult, err error) {
	logger := env.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	sink, closeSinks, err := buildSink(cfg, env, logger)
	if err != nil {
		return res, err
	}
	defer func() {
		err = errors.Join(err, closeSinks())
	}()

	collectorOpts := []jsexc.CollectorOption{
		jsexc.WithSink(sink),
		jsexc.WithHostState(time.Now()),
	}
	if scrub, ok := cfg.ScrubberConfig(); ok {
		collectorOpts = append(collectorOpts, jsexc.WithScrubber(scrub))
	}
	collector := jsexc.NewCollector(collectorOpts...)
	reporter := jsexc.NewCollectorReporter(collector,
		jsexc.WithReporterLogger(logger),
		jsexc.WithMetadata(cfg.Metadata),
	)

	var captured atomic.Int64
	counting := jsexc.ReporterFunc(func(ctx context.Context, msg jsexc.JSException) {
		captured.Add(1)
		reporter.Send(ctx, msg)
	})

	page := gojart.NewPage(gojart.WithLogger(logger.Named("page")))
	capture := jsexc.NewCapture(counting,
		jsexc.WithCaptureExceptions(cfg.CaptureEnabled()),
		jsexc.WithLogger(logger.Named("capture")),
	)
	capture.Install(page)

	runErr := runScripts(ctx, cfg, page, logger)

	// Capture closes before the realms it observes.
	if err := capture.Close(); err != nil {
		logger.Warn("failed to close capture", zap.Error(err))
	}
	if err := page.Close(); err != nil {
		logger.Warn("failed to close page", zap.Error(err))
	}
	if err := collector.Flush(ctx); err != nil {
		logger.Warn("failed to flush events", zap.Error(err))
	}

	res.Captured = captured.Load()
	logger.Info("run complete",
		zap.Int64("captured", res.Captured),
		zap.Int("frames", len(cfg.Page.Frames)),
	)
	return res, runErr
}

// runScripts runs the main document, then all frames concurrently, then
// waits for every realm to settle.
func runScripts(ctx context.Context, cfg *Config, page *gojart.Page, logger *zap.Logger) error {
	if err := runRealm(ctx, page.Main(), cfg.Page.Scripts); err != nil {
		return fmt.Errorf("main: %w", err)
	}

	realms := []*gojart.Realm{page.Main()}
	frames := make([]*gojart.Realm, len(cfg.Page.Frames))
	for i, fc := range cfg.Page.Frames {
		frame, err := page.AttachFrame(fc.Name)
		if err != nil {
			return err
		}
		frames[i] = frame
		realms = append(realms, frame)
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, fc := range cfg.Page.Frames {
		frame, scripts := frames[i], fc.Scripts
		g.Go(func() error {
			if err := runRealm(gctx, frame, scripts); err != nil {
				return fmt.Errorf("frame %q: %w", frame.Name(), err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	settle := time.Duration(cfg.Settle)
	g, gctx = errgroup.WithContext(ctx)
	for _, realm := range realms {
		realm := realm
		g.Go(func() error {
			return realm.Settle(gctx, settle)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("settle: %w", err)
	}
	logger.Debug("realms settled", zap.Int("realms", len(realms)), zap.Duration("settle", settle))
	return nil
}

func runRealm(ctx context.Context, realm *gojart.Realm, scripts []ScriptConfig) error {
	for _, s := range scripts {
		name, src, err := s.load()
		if err != nil {
			return err
		}
		if err := realm.RunScript(ctx, name, src); err != nil {
			return fmt.Errorf("run %s: %w", name, err)
		}
	}
	return nil
}

// buildSink assembles the configured sinks behind one fan-out sink. The
// returned function closes them and their connections.
func buildSink(cfg *Config, env runEnv, logger *zap.Logger) (jsexc.Sink, func() error, error) {
	var (
		sinks   []jsexc.Sink
		closers []func() error
	)
	closeAll := func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i]())
		}
		return errors.Join(errs...)
	}

	if cfg.StderrEnabled() {
		opts := []stderr.Option{}
		if env.out != nil {
			opts = append(opts, stderr.WithWriter(env.out))
		}
		if cfg.Sinks.Stderr.Verbose {
			opts = append(opts, stderr.WithVerbose())
		}
		sinks = append(sinks, stderr.New(opts...))
	}

	if addr := cfg.Sinks.CXDB.Addr; addr != "" {
		tag := cfg.Sinks.CXDB.ClientTag
		if tag == "" {
			tag = "jsexc-run"
		}
		dial := env.dial
		if dial == nil {
			dial = dialCXDB
		}
		client, conn, err := dial(addr, tag)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to cxdb at %s: %w", addr, err)
		}
		closers = append(closers, conn.Close)
		logger.Info("connected to cxdb", zap.String("addr", addr))

		opts := []cxdb.Option{cxdb.WithClientTag(tag)}
		if len(cfg.Sinks.CXDB.Labels) > 0 {
			opts = append(opts, cxdb.WithLabels(cfg.Sinks.CXDB.Labels))
		}
		var s jsexc.Sink = cxdb.New(client, opts...)
		if cfg.Sinks.Async.Enabled {
			s = async.New(s,
				async.WithQueueSize(cfg.Sinks.Async.QueueSize),
				async.WithLogger(logger.Named("async")),
				async.WithOnDropped(func(n int) {
					logger.Warn("dropped events", zap.Int("count", n))
				}),
			)
		}
		sinks = append(sinks, s)
	}

	if addr := cfg.Sinks.Metrics.Addr; addr != "" {
		reg := prometheus.NewRegistry()
		sinks = append(sinks, prom.New(reg))
		stop, err := serveMetrics(addr, reg, logger)
		if err != nil {
			_ = closeAll()
			return nil, nil, err
		}
		closers = append(closers, stop)
	}

	s := multi.New(sinks...)
	// The sinks close before their connections.
	closers = append(closers, s.Close)
	return s, closeAll, nil
}

// serveMetrics exposes reg on addr until the returned stop function is called.
func serveMetrics(addr string, reg *prometheus.Registry, logger *zap.Logger) (func() error, error) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen for metrics: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving metrics", zap.String("addr", ln.Addr().String()))
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	return func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown metrics server: %w", err)
		}
		if err := <-errCh; err != nil {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	}, nil
}
