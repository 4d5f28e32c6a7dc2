package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/wisarudtecha/CMS-sub002/internal/expressions"
	"github.com/wisarudtecha/CMS-sub002/internal/logging"
	"github.com/wisarudtecha/CMS-sub002/internal/metrics"
	"github.com/wisarudtecha/CMS-sub002/internal/monitor"
	"github.com/wisarudtecha/CMS-sub002/internal/panel"
	"github.com/wisarudtecha/CMS-sub002/internal/payload"
	"github.com/wisarudtecha/CMS-sub002/internal/sla"
	"github.com/wisarudtecha/CMS-sub002/internal/store"
	"github.com/wisarudtecha/CMS-sub002/internal/streaming"
	"github.com/wisarudtecha/CMS-sub002/internal/tracker"
	"github.com/wisarudtecha/CMS-sub002/pkg/mcp"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd(a *app) *cobra.Command {
	var stdio bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the tracker with the MCP stdio server, the SLA monitor and the HTTP endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx, stdio)
		},
	}
	cmd.Flags().BoolVar(&stdio, "stdio", true, "serve MCP over stdin/stdout")
	return cmd
}

// components is everything serve wires together.
type components struct {
	store     *store.LibSQLStore
	hub       *streaming.MemoryHub
	metrics   *metrics.Metrics
	tracker   *tracker.Tracker
	decoder   *payload.Decoder
}

// buildTrackerConfig compiles the configured rules into a tracker.Config.
func buildTrackerConfig(cfg Config, m *metrics.Metrics) (tracker.Config, error) {
	delayRule, err := expressions.DelayRule(expressions.NewExprEngine(), cfg.DelayRule)
	if err != nil {
		return tracker.Config{}, fmt.Errorf("delay_rule: %w", err)
	}
	cel, err := expressions.NewCELEngine()
	if err != nil {
		return tracker.Config{}, err
	}
	evaluator, err := sla.NewEvaluator(cel, cfg.SLARiskRule)
	if err != nil {
		return tracker.Config{}, fmt.Errorf("sla_risk_rule: %w", err)
	}
	return tracker.Config{
		Language:    cfg.Language,
		BypassDepth: cfg.BypassDepth,
		CacheTTL:    cfg.CacheTTL,
		DelayRule:   delayRule,
		SLA:         evaluator,
		Metrics:     m,
	}, nil
}

func (a *app) wire(ctx context.Context) (*components, error) {
	if err := os.MkdirAll(filepath.Dir(a.cfg.DBPath), 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	s, err := store.NewLibSQLStore("file:" + a.cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}

	m := metrics.New()
	tcfg, err := buildTrackerConfig(a.cfg, m)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	dec, err := payload.NewDecoder()
	if err != nil {
		_ = s.Close()
		return nil, err
	}

	hub := streaming.NewMemoryHub()
	return &components{
		store:     s,
		hub:       hub,
		metrics:   m,
		tracker:   tracker.NewTracker(s, hub, tcfg, a.logger),
		decoder:   dec,
	}, nil
}

func (a *app) serve(ctx context.Context, stdio bool) error {
	c, err := a.wire(ctx)
	if err != nil {
		return err
	}
	defer c.store.Close()

	mon, err := monitor.NewMonitor(c.store, c.tracker, c.hub, c.metrics, a.cfg.MonitorSchedule, a.logger)
	if err != nil {
		return err
	}
	mon.SetWorkers(a.cfg.MonitorWorkers)
	if err := mon.Start(ctx); err != nil {
		return err
	}
	defer mon.Stop()

	handler := &liveHandler{}
	handler.Set(a.httpHandler(c, a.cfg.Panel))
	a.watchConfig(func(d configDiff, next Config) {
		if d.PanelChanged {
			handler.Set(a.httpHandler(c, next.Panel))
		}
	})

	httpSrv := &http.Server{Addr: a.cfg.ListenAddr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	httpErr := make(chan error, 1)
	go func() {
		a.logger.Info("http listening", "addr", a.cfg.ListenAddr, "panel", a.cfg.Panel)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server stopped", "error", err)
			httpErr <- err
		}
		close(httpErr)
	}()

	srv := mcp.NewProgressServer(mcp.ProgressServerDeps{
		Tracker:   c.tracker,
		Decoder:   c.decoder,
		Logger:    a.logger,
	})
	go func() {
		if err := srv.Notifier().Run(ctx, c.hub); err != nil {
			a.logger.Error("case notifier stopped", "error", err)
		}
	}()

	var runErr error
	if stdio {
		a.logger.Info("mcp stdio server started", "version", mcp.Version)
		runErr = srv.Serve(ctx)
	} else {
		select {
		case <-ctx.Done():
		case runErr = <-httpErr:
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("http shutdown", "error", err)
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}

// httpHandler returns the full panel API, or only health and metrics when the
// panel is off.
func (a *app) httpHandler(c *components, withPanel bool) http.Handler {
	if withPanel {
		return panel.NewPanelServer(panel.PanelDeps{
			Store:     c.store,
			Tracker:   c.tracker,
			Decoder:   c.decoder,
				Hub:       c.hub,
			Metrics:   c.metrics,
			Logger:    a.logger,
		}).Handler()
	}

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", c.metrics.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

// watchConfig reloads the settings file on change. Log level and the panel
// switch apply live; other fields are reported as needing a restart.
func (a *app) watchConfig(apply func(configDiff, Config)) {
	if a.v.ConfigFileUsed() == "" {
		return
	}

	var mu sync.Mutex
	current := a.cfg
	a.v.OnConfigChange(func(e fsnotify.Event) {
		next, err := decodeConfig(a.v)
		if err != nil {
			a.logger.Warn("config reload rejected", "file", e.Name, "error", err)
			return
		}

		mu.Lock()
		d := diffConfigs(current, next)
		current = next
		mu.Unlock()
		if d.empty() {
			return
		}

		if d.LogLevelChanged {
			a.level.Set(logging.ParseLevel(next.LogLevel))
		}
		apply(d, next)
		if len(d.RestartNeeded) > 0 {
			a.logger.Warn("config changes need a restart", "fields", d.RestartNeeded)
		}
		a.logger.Info("config reloaded", "panel", next.Panel, "log_level", next.LogLevel)
	})
	a.v.WatchConfig()
}

// liveHandler is an http.Handler whose target can be replaced while serving.
type liveHandler struct {
	current atomic.Value // handlerBox
}

type handlerBox struct{ http.Handler }

func (h *liveHandler) Set(next http.Handler) {
	h.current.Store(handlerBox{next})
}

func (h *liveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.current.Load().(handlerBox).ServeHTTP(w, r)
}
