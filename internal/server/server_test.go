package server

import (
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func exposition(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_, _ = w.Write([]byte("purpleair_pm2_5_value{sensor_id=\"1\"} 4.2\n"))
}

func TestMetricsRoute(t *testing.T) {
	h := NewHandler(http.HandlerFunc(exposition), testLogger())

	r, _ := http.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "purpleair_pm2_5_value")
}

func TestUnknownPathNotFound(t *testing.T) {
	h := NewHandler(http.HandlerFunc(exposition), testLogger())

	r, _ := http.NewRequest(http.MethodGet, "/sensors", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsRejectsNonGet(t *testing.T) {
	h := NewHandler(http.HandlerFunc(exposition), testLogger())

	r, _ := http.NewRequest(http.MethodPost, "/metrics", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestCORSAllowsAnyOrigin(t *testing.T) {
	h := NewHandler(http.HandlerFunc(exposition), testLogger())

	r, _ := http.NewRequest(http.MethodGet, "/metrics", nil)
	r.Header.Set("Origin", "http://dashboard.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRecoveryTurnsPanicInto500(t *testing.T) {
	h := NewHandler(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("exposition exploded")
	}), testLogger())

	r, _ := http.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
