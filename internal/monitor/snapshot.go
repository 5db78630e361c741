package monitor

import (
	"context"
	"time"

	"remindd/internal/metrics"
	"remindd/internal/storage"
	"remindd/pkg/logx"
)

// maybeSave offloads a snapshot when the save interval has elapsed.
// At most one save is in flight; overlapping requests are dropped.
func (s *Service) maybeSave(now time.Time, cfg Config) {
	if s.store == nil {
		return
	}
	s.mu.Lock()
	if s.saving || now.Sub(s.lastSave) < cfg.SaveInterval {
		s.mu.Unlock()
		return
	}
	s.saving = true
	s.mu.Unlock()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.saveNow(ctx)
		s.mu.Lock()
		s.saving = false
		s.mu.Unlock()
	}()
}

// saveNow writes the full pipeline snapshot synchronously.
func (s *Service) saveNow(ctx context.Context) {
	if s.store == nil {
		return
	}
	now := time.Now()
	added, completed := s.trk.Counters()

	s.mu.Lock()
	counters := storage.Counters{
		ItemsMonitored:  added,
		RemindersSent:   int(s.stats.RemindersSent),
		OverdueDetected: int(s.stats.OverdueNotices),
		ItemsCompleted:  completed,
		LastCleanup:     now,
	}
	s.mu.Unlock()

	st := storage.State{
		Items:       s.trk.Export(),
		Counters:    counters,
		Prioritizer: s.pri.Export(),
		SavedAt:     now,
	}
	if err := s.store.SaveState(ctx, st); err != nil {
		metrics.SnapshotErrors.Inc()
		s.log.Warn("state snapshot failed", logx.Err(err))
		return
	}
	s.mu.Lock()
	s.lastSave = now
	s.stats.LastSave = &now
	s.mu.Unlock()
	s.log.Debug("state snapshot saved", logx.Int("items", len(st.Items)))
}

// restoreLocked loads the previous snapshot on startup. Caller holds s.mu.
func (s *Service) restoreLocked(ctx context.Context) {
	st, ok, err := s.store.LoadState(ctx)
	if err != nil {
		s.log.Warn("state restore failed, starting empty", logx.Err(err))
		return
	}
	if !ok {
		return
	}
	s.trk.Import(st.Items)
	s.pri.Import(st.Prioritizer)
	s.stats.RemindersSent = int64(st.Counters.RemindersSent)
	s.stats.OverdueNotices = int64(st.Counters.OverdueDetected)
	s.lastSave = st.SavedAt
	s.log.Info("state restored",
		logx.Int("items", len(st.Items)),
		logx.Time("saved_at", st.SavedAt))
}
