// Package metrics exposes sensor readings as Prometheus series.
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/davidwilemski/purpleair-exporter/internal/sensorid"
)

var (
	descPM25 = prometheus.NewDesc(
		"purpleair_pm2_5_value",
		"Raw PM2.5 particulate mass in micrograms per cubic meter",
		[]string{"sensor_id", "label"}, nil,
	)
	descAQI = prometheus.NewDesc(
		"purpleair_pm2_5_aqi",
		"EPA AQI derived from the PM2.5 reading",
		[]string{"sensor_id", "label"}, nil,
	)
	descTempF = prometheus.NewDesc(
		"purpleair_temperature_fahrenheit",
		"Sensor temperature in degrees Fahrenheit",
		[]string{"sensor_id", "label"}, nil,
	)
	descHumidity = prometheus.NewDesc(
		"purpleair_humidity",
		"Sensor relative humidity in percent",
		[]string{"sensor_id", "label"}, nil,
	)
	descPressure = prometheus.NewDesc(
		"purpleair_pressure",
		"Sensor barometric pressure in millibars",
		[]string{"sensor_id", "label"}, nil,
	)
	descUptime = prometheus.NewDesc(
		"purpleair_uptime_seconds",
		"Sensor-reported uptime in seconds",
		[]string{"sensor_id", "label"}, nil,
	)
	descLastSeen = prometheus.NewDesc(
		"purpleair_lastseen_timestamp",
		"Unix timestamp of the sensor's last report upstream",
		[]string{"sensor_id", "label"}, nil,
	)
	descInfo = prometheus.NewDesc(
		"purpleair_info",
		"Sensor identity and location",
		[]string{"sensor_id", "label", "lat", "lon"}, nil,
	)
	descScrapeSuccess = prometheus.NewDesc(
		"purpleair_scrape_success",
		"Whether the most recent poll of this sensor succeeded",
		[]string{"sensor_id"}, nil,
	)
)

// Update carries everything one successful poll learned about a sensor.
// Optional fields stay nil when the sensor did not report them.
type Update struct {
	ID    sensorid.SensorID
	Label string

	PM25 float64
	AQI  int

	TempF    *float64
	Humidity *float64
	Pressure *float64

	Lat *float64
	Lon *float64

	Uptime   *int64
	LastSeen time.Time
}

type sensorState struct {
	success bool
	snap    *Update
}

// Registry holds the latest snapshot per sensor and renders them as
// Prometheus metrics. Writes replace a sensor's snapshot wholesale and
// scrapes read under the same lock, so a scrape sees each sensor either
// fully before or fully after a concurrent update.
type Registry struct {
	mu      sync.RWMutex
	sensors map[sensorid.SensorID]*sensorState
}

// NewRegistry returns an empty registry. Register it on a
// *prometheus.Registry to expose its series.
func NewRegistry() *Registry {
	return &Registry{sensors: make(map[sensorid.SensorID]*sensorState)}
}

// Record replaces the sensor's snapshot with u and marks its last poll
// successful.
func (r *Registry) Record(u Update) {
	r.mu.Lock()
	defer r.mu.Unlock()
	state := r.state(u.ID)
	state.success = true
	state.snap = &u
}

// MarkFailure marks the sensor's last poll failed. Values from an earlier
// successful poll keep being exported.
func (r *Registry) MarkFailure(id sensorid.SensorID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state(id).success = false
}

func (r *Registry) state(id sensorid.SensorID) *sensorState {
	state, ok := r.sensors[id]
	if !ok {
		state = &sensorState{}
		r.sensors[id] = state
	}
	return state
}

// Describe implements prometheus.Collector.
func (r *Registry) Describe(ch chan<- *prometheus.Desc) {
	ch <- descPM25
	ch <- descAQI
	ch <- descTempF
	ch <- descHumidity
	ch <- descPressure
	ch <- descUptime
	ch <- descLastSeen
	ch <- descInfo
	ch <- descScrapeSuccess
}

// Collect implements prometheus.Collector.
func (r *Registry) Collect(ch chan<- prometheus.Metric) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for id, state := range r.sensors {
		sensorID := string(id)
		ch <- gauge(descScrapeSuccess, boolValue(state.success), sensorID)
		u := state.snap
		if u == nil {
			continue
		}
		ch <- gauge(descPM25, u.PM25, sensorID, u.Label)
		ch <- gauge(descAQI, float64(u.AQI), sensorID, u.Label)
		ch <- gauge(descInfo, 1, sensorID, u.Label, coord(u.Lat), coord(u.Lon))
		if u.TempF != nil {
			ch <- gauge(descTempF, *u.TempF, sensorID, u.Label)
		}
		if u.Humidity != nil {
			ch <- gauge(descHumidity, *u.Humidity, sensorID, u.Label)
		}
		if u.Pressure != nil {
			ch <- gauge(descPressure, *u.Pressure, sensorID, u.Label)
		}
		if u.Uptime != nil {
			ch <- gauge(descUptime, float64(*u.Uptime), sensorID, u.Label)
		}
		if !u.LastSeen.IsZero() {
			ch <- gauge(descLastSeen, float64(u.LastSeen.Unix()), sensorID, u.Label)
		}
	}
}

func gauge(desc *prometheus.Desc, value float64, labels ...string) prometheus.Metric {
	return prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, value, labels...)
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func coord(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
