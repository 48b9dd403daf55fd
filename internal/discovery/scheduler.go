package discovery

import (
	"context"
	"fmt"
	"log"

	"github.com/robfig/cron/v3"
)

// Broadcaster pushes a refreshed model out to connected UI sessions.
type Broadcaster interface {
	BroadcastCapabilitiesRefreshed(model *Capabilities)
}

// Scheduler periodically re-runs discovery so hot-plugged devices show up
// without anyone pressing refresh.
type Scheduler struct {
	cron        *cron.Cron
	engine      *Engine
	broadcaster Broadcaster
	intervalMin int
}

// NewScheduler creates a scheduler refreshing every intervalMin minutes.
func NewScheduler(engine *Engine, broadcaster Broadcaster, intervalMin int) *Scheduler {
	if intervalMin <= 0 {
		intervalMin = 15
	}
	return &Scheduler{
		cron:        cron.New(),
		engine:      engine,
		broadcaster: broadcaster,
		intervalMin: intervalMin,
	}
}

// Start begins the periodic refresh.
func (s *Scheduler) Start() error {
	spec := fmt.Sprintf("@every %dm", s.intervalMin)
	if _, err := s.cron.AddFunc(spec, s.refresh); err != nil {
		return fmt.Errorf("scheduling discovery refresh: %w", err)
	}
	s.cron.Start()
	log.Printf("Discovery refresh scheduled every %d minutes", s.intervalMin)
	return nil
}

// Stop gracefully shuts the scheduler down, waiting for a running refresh.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Println("Discovery refresh scheduler stopped")
}

func (s *Scheduler) refresh() {
	model := s.engine.Refresh(context.Background())
	if s.broadcaster != nil {
		s.broadcaster.BroadcastCapabilitiesRefreshed(model)
	}
}
