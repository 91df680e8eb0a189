package server

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/ppiankov/veracity/internal/cache"
)

// Refresher reloads shared state written by other processes
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Maintenance runs periodic housekeeping: backend maintenance (expired rows,
// value-log GC) and a profile snapshot refresh so replicas sharing a store
// pick up feedback applied elsewhere
type Maintenance struct {
	cron   *cron.Cron
	store  cache.Store
	state  Refresher
	logger *zap.Logger

	mu   sync.Mutex
	runs int
}

// NewMaintenance schedules housekeeping with a standard cron spec or a
// descriptor such as "@every 10m"
func NewMaintenance(schedule string, store cache.Store, state Refresher, logger *zap.Logger) (*Maintenance, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Maintenance{
		cron:   cron.New(),
		store:  store,
		state:  state,
		logger: logger,
	}
	if _, err := m.cron.AddFunc(schedule, func() { m.Run(context.Background()) }); err != nil {
		return nil, fmt.Errorf("invalid maintenance schedule %q: %w", schedule, err)
	}
	return m, nil
}

// Start begins the schedule
func (m *Maintenance) Start() {
	m.cron.Start()
	m.logger.Info("maintenance scheduler started")
}

// Stop halts the schedule and waits for a running job to finish
func (m *Maintenance) Stop() {
	<-m.cron.Stop().Done()
	m.logger.Info("maintenance scheduler stopped")
}

// Run performs one housekeeping pass. Failures are logged; the next pass
// retries.
func (m *Maintenance) Run(ctx context.Context) {
	if mt, ok := m.store.(cache.Maintainer); ok {
		if err := mt.Maintain(ctx); err != nil {
			m.logger.Warn("store maintenance failed", zap.Error(err))
		}
	}
	if m.state != nil {
		if err := m.state.Refresh(ctx); err != nil {
			m.logger.Warn("profile refresh failed", zap.Error(err))
		}
	}

	m.mu.Lock()
	m.runs++
	m.mu.Unlock()
	m.logger.Debug("maintenance pass completed")
}

// Runs returns the number of completed passes
func (m *Maintenance) Runs() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runs
}
