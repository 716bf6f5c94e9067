package poller

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/davidwilemski/purpleair-exporter/internal/metrics"
	"github.com/davidwilemski/purpleair-exporter/internal/purpleair"
	"github.com/davidwilemski/purpleair-exporter/internal/sensorid"
)

type stubProvider struct {
	mu    sync.Mutex
	calls map[sensorid.SensorID]int
	fetch func(ctx context.Context, id sensorid.SensorID) (purpleair.Reading, error)
}

func (s *stubProvider) Fetch(ctx context.Context, id sensorid.SensorID) (purpleair.Reading, error) {
	s.mu.Lock()
	if s.calls == nil {
		s.calls = make(map[sensorid.SensorID]int)
	}
	s.calls[id]++
	s.mu.Unlock()
	return s.fetch(ctx, id)
}

func (s *stubProvider) callCount(id sensorid.SensorID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[id]
}

func reading(id sensorid.SensorID, label string, pm float64) purpleair.Reading {
	return purpleair.Reading{ID: string(id), Label: label, PM25: pm}
}

func newTestPoller(ids []sensorid.SensorID, provider Provider, opts ...Option) (*Poller, *metrics.Registry, *metrics.PollMetrics) {
	registry := metrics.NewRegistry()
	poll := metrics.NewPollMetrics(prometheus.NewRegistry())
	return New(ids, provider, registry, poll, nil, opts...), registry, poll
}

func TestPollRecordsAllSensors(t *testing.T) {
	provider := &stubProvider{fetch: func(_ context.Context, id sensorid.SensorID) (purpleair.Reading, error) {
		switch id {
		case "1":
			return reading(id, "porch", 5.5), nil
		case "2":
			return reading(id, "yard", 30.2), nil
		default:
			return reading(id, "roof", 70.1), nil
		}
	}}
	p, registry, poll := newTestPoller([]sensorid.SensorID{"1", "2", "3"}, provider)

	p.Poll(context.Background())

	expected := `
# HELP purpleair_pm2_5_value Raw PM2.5 particulate mass in micrograms per cubic meter
# TYPE purpleair_pm2_5_value gauge
purpleair_pm2_5_value{label="porch",sensor_id="1"} 5.5
purpleair_pm2_5_value{label="yard",sensor_id="2"} 30.2
purpleair_pm2_5_value{label="roof",sensor_id="3"} 70.1
# HELP purpleair_pm2_5_aqi EPA AQI derived from the PM2.5 reading
# TYPE purpleair_pm2_5_aqi gauge
purpleair_pm2_5_aqi{label="porch",sensor_id="1"} 23
purpleair_pm2_5_aqi{label="yard",sensor_id="2"} 89
purpleair_pm2_5_aqi{label="roof",sensor_id="3"} 159
`
	err := testutil.CollectAndCompare(registry, strings.NewReader(expected),
		"purpleair_pm2_5_value", "purpleair_pm2_5_aqi")
	if err != nil {
		t.Fatal(err)
	}
	for _, id := range []string{"1", "2", "3"} {
		if got := testutil.ToFloat64(poll.SensorPolls.WithLabelValues(id, metrics.ResultSuccess)); got != 1 {
			t.Errorf("success polls for %s = %v, want 1", id, got)
		}
	}
}

func TestPollIsolatesFailures(t *testing.T) {
	provider := &stubProvider{fetch: func(_ context.Context, id sensorid.SensorID) (purpleair.Reading, error) {
		if id == "2" {
			return purpleair.Reading{}, errors.New("upstream down")
		}
		return reading(id, "ok", 10.0), nil
	}}
	p, registry, poll := newTestPoller([]sensorid.SensorID{"1", "2", "3"}, provider)

	p.Poll(context.Background())

	expected := `
# HELP purpleair_scrape_success Whether the most recent poll of this sensor succeeded
# TYPE purpleair_scrape_success gauge
purpleair_scrape_success{sensor_id="1"} 1
purpleair_scrape_success{sensor_id="2"} 0
purpleair_scrape_success{sensor_id="3"} 1
`
	err := testutil.CollectAndCompare(registry, strings.NewReader(expected),
		"purpleair_scrape_success")
	if err != nil {
		t.Fatal(err)
	}
	if got := testutil.ToFloat64(poll.SensorPolls.WithLabelValues("2", metrics.ResultError)); got != 1 {
		t.Errorf("error polls for 2 = %v, want 1", got)
	}
}

func TestPollRejectsNegativeConcentration(t *testing.T) {
	provider := &stubProvider{fetch: func(_ context.Context, id sensorid.SensorID) (purpleair.Reading, error) {
		return reading(id, "broken", -3.0), nil
	}}
	p, registry, poll := newTestPoller([]sensorid.SensorID{"1"}, provider)

	p.Poll(context.Background())

	expected := `
# HELP purpleair_scrape_success Whether the most recent poll of this sensor succeeded
# TYPE purpleair_scrape_success gauge
purpleair_scrape_success{sensor_id="1"} 0
`
	err := testutil.CollectAndCompare(registry, strings.NewReader(expected),
		"purpleair_scrape_success", "purpleair_pm2_5_value")
	if err != nil {
		t.Fatal(err)
	}
	if got := testutil.ToFloat64(poll.SensorPolls.WithLabelValues("1", metrics.ResultError)); got != 1 {
		t.Errorf("error polls = %v, want 1", got)
	}
}

// Upstream "NaN" parses as a float, so it reaches the AQI conversion; the
// cycle must treat it as a failed poll and export no value series for it.
func TestPollRejectsNaNConcentration(t *testing.T) {
	provider := &stubProvider{fetch: func(_ context.Context, id sensorid.SensorID) (purpleair.Reading, error) {
		return reading(id, "broken", math.NaN()), nil
	}}
	p, registry, poll := newTestPoller([]sensorid.SensorID{"1"}, provider)

	p.Poll(context.Background())

	expected := `
# HELP purpleair_scrape_success Whether the most recent poll of this sensor succeeded
# TYPE purpleair_scrape_success gauge
purpleair_scrape_success{sensor_id="1"} 0
`
	err := testutil.CollectAndCompare(registry, strings.NewReader(expected),
		"purpleair_scrape_success", "purpleair_pm2_5_value", "purpleair_pm2_5_aqi")
	if err != nil {
		t.Fatal(err)
	}
	if got := testutil.ToFloat64(poll.SensorPolls.WithLabelValues("1", metrics.ResultError)); got != 1 {
		t.Errorf("error polls = %v, want 1", got)
	}
}

func TestPollBoundsConcurrency(t *testing.T) {
	var mu sync.Mutex
	inFlight, peak := 0, 0
	provider := &stubProvider{fetch: func(_ context.Context, id sensorid.SensorID) (purpleair.Reading, error) {
		mu.Lock()
		inFlight++
		if inFlight > peak {
			peak = inFlight
		}
		mu.Unlock()
		time.Sleep(5 * time.Millisecond)
		mu.Lock()
		inFlight--
		mu.Unlock()
		return reading(id, "x", 1.0), nil
	}}
	ids := []sensorid.SensorID{"1", "2", "3", "4", "5", "6", "7", "8"}
	p, _, _ := newTestPoller(ids, provider, WithWorkers(2))

	p.Poll(context.Background())

	mu.Lock()
	defer mu.Unlock()
	if peak > 2 {
		t.Errorf("peak concurrent fetches = %d, want <= 2", peak)
	}
	for _, id := range ids {
		if got := provider.callCount(id); got != 1 {
			t.Errorf("calls for %s = %d, want 1", id, got)
		}
	}
}

func TestRunPollsImmediatelyThenOnTicks(t *testing.T) {
	provider := &stubProvider{fetch: func(_ context.Context, id sensorid.SensorID) (purpleair.Reading, error) {
		return reading(id, "x", 1.0), nil
	}}
	p, _, _ := newTestPoller([]sensorid.SensorID{"1"}, provider, WithInterval(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
	if got := provider.callCount("1"); got < 3 {
		t.Errorf("calls = %d, want at least 3 (immediate cycle plus ticks)", got)
	}
}
