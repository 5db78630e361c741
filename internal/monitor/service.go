package monitor

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"remindd/internal/delivery"
	"remindd/internal/eventbus"
	"remindd/internal/metrics"
	"remindd/internal/notification"
	"remindd/internal/prioritizer"
	"remindd/internal/storage"
	"remindd/internal/tracker"
	"remindd/pkg/logx"
)

// Service drives the check loop. The cron entry only enqueues ticks; the
// actual evaluation runs on a dedicated worker goroutine so a slow
// delivery never stalls cron's scheduling thread.
type Service struct {
	mu  sync.Mutex
	cfg Config
	log logx.Logger

	trk   *tracker.Tracker
	pri   *prioritizer.Service
	dlv   *delivery.Manager
	bus   eventbus.Bus
	store storage.Store // may be nil

	rules []notification.ReminderRule

	c         *cron.Cron
	stopCh    chan struct{}
	stopDone  chan struct{}
	runCtx    context.Context
	runCancel context.CancelFunc
	tickCh    chan struct{}
	workerWG  sync.WaitGroup

	saving   bool
	lastSave time.Time

	stats Stats
}

// Deps are the collaborators the monitor drives.
type Deps struct {
	Tracker     *tracker.Tracker
	Prioritizer *prioritizer.Service
	Delivery    *delivery.Manager
	Bus         eventbus.Bus
	Store       storage.Store
	Rules       []notification.ReminderRule
}

func New(cfg Config, deps Deps, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	rules := deps.Rules
	if len(rules) == 0 {
		rules = notification.DefaultRules()
	}
	return &Service{
		cfg:   cfg.withDefaults(),
		log:   log,
		trk:   deps.Tracker,
		pri:   deps.Prioritizer,
		dlv:   deps.Delivery,
		bus:   deps.Bus,
		store: deps.Store,
		rules: rules,
	}
}

// Enabled reports the current config flag. (Thread-safe; Apply() may run
// concurrently.)
func (s *Service) Enabled() bool {
	s.mu.Lock()
	en := s.cfg.Enabled
	s.mu.Unlock()
	return en
}

// Apply swaps the config at runtime. A changed check interval restarts
// the cron entry; everything else takes effect on the next tick.
func (s *Service) Apply(cfg Config) {
	cfg = cfg.withDefaults()
	s.mu.Lock()
	defer s.mu.Unlock()

	restart := s.c != nil && cfg.CheckInterval != s.cfg.CheckInterval
	s.cfg = cfg
	if restart {
		s.restartCronLocked()
	}
}

// SetRules replaces the active rule set, used by config reload.
func (s *Service) SetRules(rules []notification.ReminderRule) {
	if len(rules) == 0 {
		rules = notification.DefaultRules()
	}
	s.mu.Lock()
	s.rules = rules
	s.mu.Unlock()
	s.log.Info("reminder rules replaced", logx.Int("rules", len(rules)))
}

func (s *Service) restartCronLocked() {
	if s.c != nil {
		s.c.Stop()
	}
	s.c = cron.New()
	spec := fmt.Sprintf("@every %s", s.cfg.CheckInterval)
	if _, err := s.c.AddFunc(spec, s.enqueueTick); err != nil {
		s.log.Error("cron schedule rejected", logx.String("spec", spec), logx.Err(err))
		return
	}
	s.c.Start()
}

// Start launches the cron trigger and the tick worker. Safe to call after
// Stop(); a second Start while running is a no-op.
func (s *Service) Start(ctx context.Context) {
	// If a Stop() is in progress, wait for it (prevents double workers).
	for {
		s.mu.Lock()
		if s.stopCh == nil {
			break
		}
		done := s.stopDone
		if done == nil {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return
		}
	}
	if !s.cfg.Enabled {
		s.mu.Unlock()
		s.log.Info("monitor disabled by config")
		return
	}

	s.stopCh = make(chan struct{})
	s.runCtx, s.runCancel = context.WithCancel(ctx)
	s.tickCh = make(chan struct{}, 1)

	if s.store != nil {
		s.restoreLocked(s.runCtx)
	}

	runCtx := s.runCtx
	stopCh := s.stopCh
	tickCh := s.tickCh

	s.workerWG.Add(1)
	go func() {
		defer s.workerWG.Done()
		for {
			select {
			case <-stopCh:
				return
			case <-runCtx.Done():
				return
			case <-tickCh:
				s.safeTick(runCtx)
			}
		}
	}()

	s.restartCronLocked()
	interval := s.cfg.CheckInterval
	rules := len(s.rules)
	// Release before enqueueTick: the cron callback and enqueueTick both
	// take s.mu, so holding it here would deadlock against ourselves.
	s.mu.Unlock()

	// Evaluate immediately instead of waiting a full interval.
	s.enqueueTick()

	s.log.Info("monitor started",
		logx.Duration("check_interval", interval),
		logx.Int("rules", rules),
		logx.Int("items", s.trk.Len()))
}

// Stop halts the loop, waits for an in-flight tick, and saves a final
// snapshot. Returns when done or when ctx expires; cleanup continues in
// the background on timeout.
func (s *Service) Stop(ctx context.Context) {
	start := time.Now()
	s.mu.Lock()
	if s.stopCh == nil {
		s.mu.Unlock()
		return
	}
	if s.stopDone != nil {
		done := s.stopDone
		s.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
		}
		return
	}
	done := make(chan struct{})
	s.stopDone = done
	stopCh := s.stopCh
	cancel := s.runCancel
	c := s.c
	s.c = nil
	s.runCancel = nil
	s.mu.Unlock()

	close(stopCh)
	if c != nil {
		<-c.Stop().Done()
	}

	go func() {
		s.workerWG.Wait()
		// Cancel only after the worker has drained: an in-flight tick
		// delivers on runCtx and must not be aborted mid-send.
		if cancel != nil {
			cancel()
		}
		if s.store != nil {
			sctx, scancel := context.WithTimeout(context.Background(), 10*time.Second)
			s.saveNow(sctx)
			scancel()
		}
		s.mu.Lock()
		s.stopCh = nil
		s.runCtx = nil
		s.tickCh = nil
		s.stopDone = nil
		s.mu.Unlock()
		close(done)
		s.log.Info("monitor stopped", logx.Duration("took", time.Since(start)))
	}()

	select {
	case <-done:
	case <-ctx.Done():
	}
}

func (s *Service) enqueueTick() {
	s.mu.Lock()
	ch := s.tickCh
	s.mu.Unlock()
	if ch == nil {
		return
	}
	select {
	case ch <- struct{}{}:
	default:
		// a tick is already pending; coalesce
	}
}

// CheckNow forces an immediate evaluation pass.
func (s *Service) CheckNow() { s.enqueueTick() }

func (s *Service) safeTick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			metrics.TickErrors.Inc()
			s.log.Error("panic in monitor tick",
				logx.Any("panic", r),
				logx.String("stack", string(debug.Stack())))
		}
	}()
	s.tick(ctx)
}

// Stats returns the cumulative counters plus a live item breakdown.
func (s *Service) Stats() Stats {
	s.mu.Lock()
	out := s.stats
	s.mu.Unlock()

	byStatus := map[tracker.Status]int{}
	for _, it := range s.trk.All() {
		byStatus[it.Status]++
	}
	out.ByStatus = byStatus
	out.ItemsMonitored = s.trk.Len()
	out.Upcoming24h = len(s.trk.Upcoming(24 * time.Hour))
	out.Overdue = byStatus[tracker.StatusOverdue]
	out.LearningConfidence = s.pri.Stats().Confidence
	return out
}
