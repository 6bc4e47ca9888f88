package keywords

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/nichepulse/nichepulse-go/internal/logging"
)

// Poller keeps the live feed warm by refreshing its cache on a fixed
// interval, so the live view rarely pays a fetch on read.
type Poller struct {
	svc      *Service
	logger   *logging.Logger
	interval time.Duration
	cron     *cron.Cron
	cancel   context.CancelFunc
}

// NewPoller creates a poller refreshing the live cache every interval.
func NewPoller(svc *Service, interval time.Duration, logger *logging.Logger) *Poller {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Poller{
		svc:      svc,
		logger:   logger,
		interval: interval,
	}
}

// Start schedules the refresh job. Errors are logged and the next tick tries
// again; the poller never retries within a tick.
func (p *Poller) Start() error {
	if p.cron != nil {
		return fmt.Errorf("keywords: poller already started")
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	c := cron.New()
	spec := fmt.Sprintf("@every %s", p.interval)
	if _, err := c.AddFunc(spec, func() {
		if _, err := p.svc.RefreshLive(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.WithError(err).Warn("live feed refresh failed")
		}
	}); err != nil {
		cancel()
		p.cancel = nil
		return fmt.Errorf("keywords: schedule live refresh: %w", err)
	}

	p.cron = c
	c.Start()
	return nil
}

// Stop cancels the in-flight refresh, if any, and halts the schedule.
func (p *Poller) Stop() {
	if p.cron == nil {
		return
	}
	p.cancel()
	stopCtx := p.cron.Stop()
	<-stopCtx.Done()
	p.cron = nil
	p.cancel = nil
}
