// Fake PurpleAir server for local development. Serves the legacy JSON API
// shape with string-typed numerics and a random-walk PM2.5 per sensor, so
// the exporter can be pointed at it instead of the real upstream.
//
// Sensors are created on first request for any ?show= id.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

type fakeSensor struct {
	id       int64
	label    string
	lat, lon float64

	pm25     float64
	tempF    float64
	humidity float64
	pressure float64
	started  time.Time
}

type fakeServer struct {
	start    time.Time
	latency  time.Duration
	failRate float64

	mu      sync.Mutex
	rng     *rand.Rand
	sensors map[int64]*fakeSensor

	totalCalls int64
	bySensor   map[string]int64
	byResult   map[string]int64
}

func main() {
	addr := getenvDefault("FAKE_PURPLEAIR_ADDR", ":19080")
	latencyMs := getenvIntDefault("FAKE_PURPLEAIR_LATENCY_MS", 0)
	failRate := getenvFloatDefault("FAKE_PURPLEAIR_FAIL_RATE", 0)

	srv := &fakeServer{
		start:    time.Now().UTC(),
		latency:  time.Duration(latencyMs) * time.Millisecond,
		failRate: failRate,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		sensors:  make(map[int64]*fakeSensor),
		bySensor: make(map[string]int64),
		byResult: make(map[string]int64),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", srv.handleHealth)
	mux.HandleFunc("/stats", srv.handleStats)
	mux.HandleFunc("/json", srv.handleJSON)

	log.Printf("fake PurpleAir server listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatal(err)
	}
}

func (s *fakeServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *fakeServer) handleStats(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, map[string]any{
		"started_at": s.start.Format(time.RFC3339),
		"total":      atomic.LoadInt64(&s.totalCalls),
		"by_sensor":  s.bySensor,
		"by_result":  s.byResult,
	})
}

func (s *fakeServer) handleJSON(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	show := r.URL.Query().Get("show")
	if show == "" {
		http.Error(w, "show parameter required", http.StatusBadRequest)
		return
	}
	id, err := strconv.ParseInt(show, 10, 64)
	if err != nil {
		http.Error(w, "show must be a numeric sensor id", http.StatusBadRequest)
		return
	}

	if s.latency > 0 {
		time.Sleep(s.latency)
	}
	if s.shouldFail() {
		s.recordCall(show, "fail")
		http.Error(w, "fake upstream failure", http.StatusBadGateway)
		return
	}

	now := time.Now().UTC()
	s.mu.Lock()
	sensor, ok := s.sensors[id]
	if !ok {
		sensor = s.newSensor(id)
		s.sensors[id] = sensor
	}
	s.step(sensor)
	primary := resultJSON(sensor, now, false)
	secondary := resultJSON(sensor, now, true)
	s.mu.Unlock()

	s.recordCall(show, "ok")
	writeJSON(w, map[string]any{
		"mapVersion":  "0.17",
		"baseVersion": "7",
		"results":     []any{primary, secondary},
	})
}

func (s *fakeServer) newSensor(id int64) *fakeSensor {
	return &fakeSensor{
		id:       id,
		label:    fmt.Sprintf("Fake Sensor %d", id),
		lat:      37.7 + s.rng.Float64()/5,
		lon:      -122.5 + s.rng.Float64()/5,
		pm25:     5 + s.rng.Float64()*20,
		tempF:    55 + s.rng.Float64()*30,
		humidity: 30 + s.rng.Float64()*40,
		pressure: 1000 + s.rng.Float64()*20,
		started:  time.Now().UTC(),
	}
}

func (s *fakeServer) step(f *fakeSensor) {
	f.pm25 = clamp(f.pm25+s.rng.NormFloat64()*1.5, 0, 500.4)
	f.tempF += s.rng.Float64() - 0.5
	f.humidity = clamp(f.humidity+s.rng.Float64()-0.5, 0, 100)
	f.pressure += (s.rng.Float64() - 0.5) / 4
}

// resultJSON renders one channel of a sensor in the upstream wire shape.
// The secondary (B) channel carries its own id, a ParentID, and no
// temperature or humidity, like real dual-channel sensors.
func resultJSON(f *fakeSensor, now time.Time, secondary bool) map[string]any {
	pm := f.pm25
	result := map[string]any{
		"ID":       f.id,
		"Label":    f.label,
		"Lat":      f.lat,
		"Lon":      f.lon,
		"LastSeen": now.Unix(),
		"Uptime":   strconv.FormatInt(int64(now.Sub(f.started).Seconds()), 10),
		"temp_f":   formatValue(f.tempF, 0),
		"humidity": formatValue(f.humidity, 0),
		"pressure": formatValue(f.pressure, 2),
	}
	if secondary {
		pm = clamp(pm*0.95, 0, 500.4)
		result["ID"] = f.id + 100000
		result["ParentID"] = f.id
		result["Label"] = f.label + " B"
		delete(result, "temp_f")
		delete(result, "humidity")
	}
	result["PM2_5Value"] = formatValue(pm, 2)
	result["pm2_5_cf_1"] = formatValue(pm, 2)
	result["pm2_5_atm"] = formatValue(pm, 2)
	return result
}

func (s *fakeServer) shouldFail() bool {
	if s.failRate <= 0 {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64() < s.failRate
}

func (s *fakeServer) recordCall(sensor, result string) {
	atomic.AddInt64(&s.totalCalls, 1)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bySensor[sensor]++
	s.byResult[result]++
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func formatValue(v float64, decimals int) string {
	return strconv.FormatFloat(v, 'f', decimals, 64)
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvFloatDefault(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}
