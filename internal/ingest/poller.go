package ingest

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/shorewatch/shorewatch/internal/metrics"
	"github.com/shorewatch/shorewatch/internal/models"
)

const defaultConcurrency = 4

// Handler consumes a freshly fetched snapshot.
type Handler func(ctx context.Context, snap models.ConditionSnapshot) error

// SweepStats summarizes one pass over the active beaches.
type SweepStats struct {
	Beaches int
	OK      int
	Failed  int
}

// Poller sweeps all active beaches on an interval. Beaches are fetched
// concurrently; one beach failing does not abort the sweep, it is
// counted and reported in the aggregate.
type Poller struct {
	beaches     models.BeachStore
	source      Source
	budget      *Budget
	handler     Handler
	interval    time.Duration
	concurrency int
}

// PollerOption configures a Poller.
type PollerOption func(*Poller)

// WithBudget attaches an upstream call budget.
func WithBudget(b *Budget) PollerOption {
	return func(p *Poller) { p.budget = b }
}

// WithConcurrency caps concurrent per-beach fetches.
func WithConcurrency(n int) PollerOption {
	return func(p *Poller) { p.concurrency = n }
}

func NewPoller(beaches models.BeachStore, source Source, handler Handler, interval time.Duration, opts ...PollerOption) *Poller {
	p := &Poller{
		beaches:     beaches,
		source:      source,
		handler:     handler,
		interval:    interval,
		concurrency: defaultConcurrency,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run sweeps immediately, then on every tick until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	log.Info().
		Str("source", p.source.Name()).
		Dur("interval", p.interval).
		Msg("Starting ingestion poller")

	p.Sweep(ctx)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Ingestion poller stopped")
			return
		case <-ticker.C:
			p.Sweep(ctx)
		}
	}
}

// Sweep fetches and handles a snapshot for every active beach.
func (p *Poller) Sweep(ctx context.Context) SweepStats {
	var stats SweepStats

	beaches, err := p.beaches.ListActiveBeaches(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list active beaches")
		return stats
	}
	stats.Beaches = len(beaches)

	results := make([]bool, len(beaches))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, beach := range beaches {
		g.Go(func() error {
			if err := p.fetchOne(gctx, beach.ID); err != nil {
				log.Warn().Err(err).Str("beachID", beach.ID).Msg("Beach ingestion failed")
				metrics.IngestBeaches.WithLabelValues("error").Inc()
				return nil
			}
			results[i] = true
			metrics.IngestBeaches.WithLabelValues("ok").Inc()
			return nil
		})
	}
	g.Wait()

	for _, ok := range results {
		if ok {
			stats.OK++
		} else {
			stats.Failed++
		}
	}
	metrics.IngestSweeps.Inc()
	log.Debug().
		Int("beaches", stats.Beaches).
		Int("ok", stats.OK).
		Int("failed", stats.Failed).
		Msg("Ingestion sweep complete")
	return stats
}

func (p *Poller) fetchOne(ctx context.Context, beachID string) error {
	if p.budget != nil {
		if err := p.budget.Allow(); err != nil {
			return err
		}
	}
	snap, err := p.source.Fetch(ctx, beachID)
	if err != nil {
		return err
	}
	return p.handler(ctx, *snap)
}
