package apps

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/davbaghdasaryann/ehvm2/internal/app/system"
	"github.com/davbaghdasaryann/ehvm2/pkg/logger"
)

var _ system.Service = (*Refresher)(nil)

// Refresher re-warms the catalog caches on a cron schedule so reads rarely
// pay the upstream fetch.
type Refresher struct {
	service  *Service
	log      *logger.Logger
	schedule string

	mu      sync.Mutex
	cron    *cron.Cron
	cancel  context.CancelFunc
	running bool
}

// NewRefresher creates a lifecycle-managed catalog refresher. The schedule
// uses cron syntax, including the @every form.
func NewRefresher(service *Service, schedule string, log *logger.Logger) *Refresher {
	if log == nil {
		log = logger.NewDefault("apps-refresher")
	}
	if schedule == "" {
		schedule = "@every 10m"
	}
	return &Refresher{
		service:  service,
		log:      log,
		schedule: schedule,
	}
}

func (r *Refresher) Name() string { return "apps-refresher" }

func (r *Refresher) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return nil
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	c := cron.New()
	if _, err := c.AddFunc(r.schedule, func() { r.tick(runCtx) }); err != nil {
		cancel()
		return err
	}
	c.Start()

	r.cron = c
	r.cancel = cancel
	r.running = true

	r.log.WithField("schedule", r.schedule).Info("catalog refresher started")

	// Warm the caches right away instead of waiting for the first tick.
	go r.tick(runCtx)
	return nil
}

func (r *Refresher) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	c := r.cron
	cancel := r.cancel
	r.cron = nil
	r.cancel = nil
	r.running = false
	r.mu.Unlock()

	cancel()
	stopped := c.Stop()

	select {
	case <-stopped.Done():
	case <-ctx.Done():
		return ctx.Err()
	}

	r.log.Info("catalog refresher stopped")
	return nil
}

func (r *Refresher) tick(ctx context.Context) {
	if r.service == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	if err := r.service.Refresh(ctx); err != nil {
		r.log.WithError(err).Warn("catalog refresh failed")
	}
}
