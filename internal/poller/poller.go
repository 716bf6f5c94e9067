// Package poller drives the fixed-interval fetch cycle over the configured
// sensors.
package poller

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/davidwilemski/purpleair-exporter/internal/aqi"
	"github.com/davidwilemski/purpleair-exporter/internal/metrics"
	"github.com/davidwilemski/purpleair-exporter/internal/purpleair"
	"github.com/davidwilemski/purpleair-exporter/internal/sensorid"
)

const (
	defaultInterval = time.Minute
	defaultWorkers  = 4
)

// Provider fetches the current reading for one sensor.
type Provider interface {
	Fetch(ctx context.Context, id sensorid.SensorID) (purpleair.Reading, error)
}

// Poller polls every configured sensor once per cycle and records the
// outcome in the metrics registry.
type Poller struct {
	ids      []sensorid.SensorID
	provider Provider
	registry *metrics.Registry
	poll     *metrics.PollMetrics
	logger   *log.Logger

	interval time.Duration
	workers  int
}

// Option configures the poller.
type Option func(*Poller)

// WithInterval overrides the cycle interval.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithWorkers overrides the number of concurrent fetches per cycle.
func WithWorkers(n int) Option {
	return func(p *Poller) {
		if n > 0 {
			p.workers = n
		}
	}
}

// New constructs a Poller over the given sensor set.
func New(ids []sensorid.SensorID, provider Provider, registry *metrics.Registry, poll *metrics.PollMetrics, logger *log.Logger, opts ...Option) *Poller {
	p := &Poller{
		ids:      ids,
		provider: provider,
		registry: registry,
		poll:     poll,
		logger:   logger,
		interval: defaultInterval,
		workers:  defaultWorkers,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run polls once immediately, then on every tick until ctx is canceled.
// Cycles run synchronously in the loop and never overlap; when a cycle
// outlasts the interval the pending tick fires right after it.
func (p *Poller) Run(ctx context.Context) {
	p.Poll(ctx)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Poll(ctx)
		}
	}
}

// Poll runs one cycle: every sensor is dispatched in configured order to a
// bounded worker pool. A sensor's failure is recorded and logged without
// disturbing the rest of the cycle.
func (p *Poller) Poll(ctx context.Context) {
	start := time.Now()
	sem := make(chan struct{}, p.workers)
	var wg sync.WaitGroup
	for _, id := range p.ids {
		if ctx.Err() != nil {
			break
		}
		sem <- struct{}{}
		wg.Add(1)
		go func(id sensorid.SensorID) {
			defer wg.Done()
			defer func() { <-sem }()
			p.pollOne(ctx, id)
		}(id)
	}
	wg.Wait()
	if p.poll != nil {
		p.poll.PollDuration.Observe(time.Since(start).Seconds())
	}
}

func (p *Poller) pollOne(ctx context.Context, id sensorid.SensorID) {
	reading, err := p.provider.Fetch(ctx, id)
	if err != nil {
		p.fail(id, err)
		return
	}
	aqiValue, err := aqi.FromPM25(reading.PM25)
	if err != nil {
		p.fail(id, err)
		return
	}

	p.registry.Record(metrics.Update{
		ID:       id,
		Label:    reading.Label,
		PM25:     reading.PM25,
		AQI:      aqiValue,
		TempF:    reading.TempF,
		Humidity: reading.Humidity,
		Pressure: reading.Pressure,
		Lat:      reading.Lat,
		Lon:      reading.Lon,
		Uptime:   reading.Uptime,
		LastSeen: reading.LastSeen,
	})
	if p.poll != nil {
		p.poll.SensorPolls.WithLabelValues(string(id), metrics.ResultSuccess).Inc()
	}
	if p.logger != nil {
		p.logger.Printf("poll ok: sensor=%s pm2_5=%.1f aqi=%d category=%q", id, reading.PM25, aqiValue, aqi.Category(aqiValue))
	}
}

func (p *Poller) fail(id sensorid.SensorID, err error) {
	p.registry.MarkFailure(id)
	if p.poll != nil {
		p.poll.SensorPolls.WithLabelValues(string(id), metrics.ResultError).Inc()
	}
	if p.logger != nil {
		p.logger.Printf("poll error: sensor=%s err=%v", id, err)
	}
}
