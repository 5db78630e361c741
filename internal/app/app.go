// Package app wires the configuration, logging, storage, delivery, and
// monitor components into one runnable daemon.
package app

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"remindd/internal/config"
	"remindd/internal/delivery"
	"remindd/internal/eventbus"
	"remindd/internal/monitor"
	"remindd/internal/prioritizer"
	"remindd/internal/storage"
	"remindd/internal/tracker"
	"remindd/pkg/logx"
)

type App struct {
	cfgm *config.Manager
	logs *logx.Service
	log  logx.Logger

	store storage.Store // may be nil
	bus   eventbus.Bus
	trk   *tracker.Tracker
	pri   *prioritizer.Service
	dlv   *delivery.Manager
	mon   *monitor.Service
	inApp *delivery.InAppChannel

	metricsSrv *http.Server

	runCancel context.CancelFunc
	done      chan struct{}
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logSvc, log := logx.New(cfg.Logging.ToLogx())
	log = log.With(logx.String("comp", "app"))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	store, err := openStore(cfg, log)
	if err != nil {
		logSvc.Close()
		return nil, err
	}

	bus := eventbus.New()
	pri := prioritizer.New(log.With(logx.String("comp", "prioritizer")))

	trkCfg, err := trackerConfig(cfg)
	if err != nil {
		logSvc.Close()
		return nil, err
	}
	trk := tracker.New(trkCfg, log.With(logx.String("comp", "tracker")))

	dlvCfg, err := deliveryConfig(cfg)
	if err != nil {
		logSvc.Close()
		return nil, err
	}
	dlv := delivery.New(dlvCfg, cfg.Preferences.ToPreferences(), log.With(logx.String("comp", "delivery")))

	inApp := registerChannels(dlv, cfg.Delivery.Channels, log)

	rules, err := cfg.ParsedRules()
	if err != nil {
		logSvc.Close()
		return nil, err
	}

	monCfg, err := monitorConfig(cfg)
	if err != nil {
		logSvc.Close()
		return nil, err
	}
	mon := monitor.New(monCfg, monitor.Deps{
		Tracker:     trk,
		Prioritizer: pri,
		Delivery:    dlv,
		Bus:         bus,
		Store:       store,
		Rules:       rules,
	}, log.With(logx.String("comp", "monitor")))

	return &App{
		cfgm:  cfgm,
		logs:  logSvc,
		log:   log,
		store: store,
		bus:   bus,
		trk:   trk,
		pri:   pri,
		dlv:   dlv,
		mon:   mon,
		inApp: inApp,
	}, nil
}

// Component accessors used by the CLI surface and tests.

func (a *App) Tracker() *tracker.Tracker         { return a.trk }
func (a *App) Prioritizer() *prioritizer.Service { return a.pri }
func (a *App) Delivery() *delivery.Manager       { return a.dlv }
func (a *App) Monitor() *monitor.Service         { return a.mon }
func (a *App) Bus() eventbus.Bus                 { return a.bus }
func (a *App) InApp() *delivery.InAppChannel     { return a.inApp }
func (a *App) Config() *config.Config            { return a.cfgm.Get() }

func (a *App) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.runCancel = cancel
	a.done = make(chan struct{})

	a.mon.Start(runCtx)

	cfg := a.cfgm.Get()
	if cfg.Metrics.Enabled {
		a.startMetrics(cfg.Metrics)
	}

	sub := a.cfgm.Subscribe(8)
	go func() {
		defer close(a.done)
		defer a.cfgm.Unsubscribe(sub)
		for {
			select {
			case <-runCtx.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest config.
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						goto APPLY
					}
				}
			APPLY:
				a.applyConfig(runCtx, newCfg)
			}
		}
	}()

	go func() {
		if err := a.cfgm.Watch(runCtx); err != nil {
			a.log.Warn("config watch exited", logx.Err(err))
		}
	}()

	a.log.Info("remindd started")
	return nil
}

func (a *App) Stop(ctx context.Context) error {
	// Stop the monitor before cancelling the run context so an in-flight
	// tick can finish its deliveries.
	a.mon.Stop(ctx)
	if a.runCancel != nil {
		a.runCancel()
	}

	if a.metricsSrv != nil {
		sctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		_ = a.metricsSrv.Shutdown(sctx)
		cancel()
		a.metricsSrv = nil
	}
	if a.done != nil {
		select {
		case <-a.done:
		case <-ctx.Done():
		}
	}
	if a.store != nil {
		_ = a.store.Close()
	}
	a.log.Info("remindd stopped")
	_ = a.logs.Close()
	return nil
}

// applyConfig fans a reloaded config out to the live components. Channel
// adapters and storage are fixed at startup; everything else is live.
func (a *App) applyConfig(ctx context.Context, cfg *config.Config) {
	a.logs.Apply(cfg.Logging.ToLogx())

	a.dlv.SetPreferences(cfg.Preferences.ToPreferences())

	if rules, err := cfg.ParsedRules(); err == nil {
		a.mon.SetRules(rules)
	} else {
		a.log.Warn("reloaded rules rejected", logx.Err(err))
	}

	wasEnabled := a.mon.Enabled()
	monCfg, err := monitorConfig(cfg)
	if err != nil {
		a.log.Warn("reloaded monitor config rejected", logx.Err(err))
		return
	}
	a.mon.Apply(monCfg)

	if wasEnabled && !monCfg.Enabled {
		a.log.Info("monitor disabled via config")
		stopCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		a.mon.Stop(stopCtx)
		cancel()
	} else if !wasEnabled && monCfg.Enabled {
		a.log.Info("monitor enabled via config")
		a.mon.Start(ctx)
	}

	a.log.Info("config applied")
}

func (a *App) startMetrics(cfg config.MetricsConfig) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		addr = "127.0.0.1:9090"
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	a.metricsSrv = &http.Server{
		Addr:        addr,
		Handler:     mux,
		ReadTimeout: 5 * time.Second,
	}
	srv := a.metricsSrv
	go func() {
		a.log.Info("metrics endpoint listening", logx.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.log.Warn("metrics server stopped", logx.Err(err))
		}
	}()
}
