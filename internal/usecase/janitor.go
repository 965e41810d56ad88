package usecase

import (
	"context"
	"log/slog"
	"time"

	"voicebridge/internal/metrics"
	"voicebridge/internal/ports"
)

// Janitor expires sessions that have been idle past a configurable TTL.
// Expiry follows the same ordering as an explicit end: notify, then remove.
type Janitor struct {
	store      ports.SessionStore
	controller *SessionController
	metrics    *metrics.Metrics
	log        *slog.Logger
	ttl        time.Duration
	interval   time.Duration
	now        func() time.Time
}

func NewJanitor(store ports.SessionStore, controller *SessionController, m *metrics.Metrics, log *slog.Logger, ttl time.Duration, interval time.Duration) *Janitor {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Janitor{
		store:      store,
		controller: controller,
		metrics:    m,
		log:        log,
		ttl:        ttl,
		interval:   interval,
		now:        time.Now,
	}
}

// Run sweeps until ctx is cancelled. A zero TTL disables expiry entirely.
func (j *Janitor) Run(ctx context.Context) {
	if j.ttl <= 0 {
		return
	}

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.sweep(ctx)
		}
	}
}

func (j *Janitor) sweep(ctx context.Context) {
	codes, err := j.store.Codes(ctx)
	if err != nil {
		j.log.Warn("session sweep failed", "error", err)
		return
	}

	cutoff := j.now().Add(-j.ttl)
	for _, code := range codes {
		session, err := j.store.Get(ctx, code)
		if err != nil {
			continue
		}
		// A session that is actively streaming is never idle.
		if session.Active || j.controller.bridge.Active(code) {
			continue
		}
		if session.LastActivity.After(cutoff) {
			continue
		}

		j.log.Info("expiring idle session", "session", code, "idle_since", session.LastActivity)
		if err := j.controller.EndSession(ctx, code); err != nil {
			j.log.Warn("failed to expire session", "session", code, "error", err)
			continue
		}
		j.metrics.SessionsExpired.Inc()
	}
}
