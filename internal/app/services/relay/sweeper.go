package relay

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/R3E-Network/relay_layer/internal/app/system"
	"github.com/R3E-Network/relay_layer/pkg/logger"
	"github.com/robfig/cron/v3"
)

// DefaultSweepSchedule drives the expiry sweep once a minute.
const DefaultSweepSchedule = "@every 1m"

// Sweeper periodically fails pending messages whose expiration height has
// passed.
type Sweeper struct {
	service  *Service
	schedule string
	log      *logger.Logger

	mu       sync.Mutex
	cron     *cron.Cron
	sweepCtx context.Context
	cancel   context.CancelFunc
	running  bool
}

var _ system.Service = (*Sweeper)(nil)

// NewSweeper creates a sweeper on the given cron schedule.
func NewSweeper(service *Service, schedule string, log *logger.Logger) *Sweeper {
	if log == nil {
		log = logger.NewDefault("relay-sweeper")
	}
	if strings.TrimSpace(schedule) == "" {
		schedule = DefaultSweepSchedule
	}
	return &Sweeper{
		service:  service,
		schedule: schedule,
		log:      log,
	}
}

// Name implements system.Service.
func (s *Sweeper) Name() string { return "relay-sweeper" }

// Start begins the sweep schedule.
func (s *Sweeper) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("sweeper already running")
	}

	ctx, cancel := context.WithCancel(context.Background())

	c := cron.New()
	if _, err := c.AddFunc(s.schedule, func() { s.sweep(ctx) }); err != nil {
		cancel()
		return fmt.Errorf("invalid sweep schedule %q: %w", s.schedule, err)
	}
	c.Start()

	s.cron = c
	s.sweepCtx = ctx
	s.cancel = cancel
	s.running = true
	s.log.WithField("schedule", s.schedule).Info("expiry sweeper started")
	return nil
}

// Stop cancels any in-flight sweep, halts the schedule, and waits for the
// running job to return.
func (s *Sweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	s.cancel()
	done := s.cron.Stop().Done()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.cron = nil
	s.cancel = nil
	s.running = false
	return nil
}

func (s *Sweeper) sweep(ctx context.Context) {
	if _, err := s.service.SweepExpired(ctx); err != nil {
		s.log.WithError(err).Warn("expiry sweep failed")
	}
}
