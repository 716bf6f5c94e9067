// Package purpleair fetches current sensor readings from the PurpleAir
// legacy JSON API.
package purpleair

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/davidwilemski/purpleair-exporter/internal/sensorid"
)

const defaultTimeout = 10 * time.Second

var (
	// ErrSensorNotFound is returned when the upstream response carries no
	// result for the requested sensor.
	ErrSensorNotFound = errors.New("purpleair: sensor not found")
	// ErrMalformedPayload is returned when an upstream payload or a required
	// field in it cannot be parsed.
	ErrMalformedPayload = errors.New("purpleair: malformed payload")
)

// Client is a minimal PurpleAir REST client.
type Client struct {
	http *resty.Client
}

// Option configures the client.
type Option func(*Client)

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.SetTimeout(d)
		}
	}
}

// NewClient constructs a client for the given base URL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("purpleair: empty base url")
	}
	c := &Client{
		http: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetTimeout(defaultTimeout),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Fetch retrieves the current reading for one sensor. The upstream response
// may include the sensor's secondary (B) channel as an extra result; the
// result whose ID matches the requested sensor wins, falling back to the
// first one.
func (c *Client) Fetch(ctx context.Context, id sensorid.SensorID) (Reading, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("show", string(id)).
		Get("/json")
	if err != nil {
		return Reading{}, fmt.Errorf("purpleair: fetch sensor %s: %w", id, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return Reading{}, fmt.Errorf("purpleair: fetch sensor %s: http %d", id, resp.StatusCode())
	}

	var payload resultsEnvelope
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return Reading{}, fmt.Errorf("%w: sensor %s: %v", ErrMalformedPayload, id, err)
	}
	if len(payload.Results) == 0 {
		return Reading{}, fmt.Errorf("%w: %s", ErrSensorNotFound, id)
	}

	result := payload.Results[0]
	for _, candidate := range payload.Results {
		if strconv.FormatInt(candidate.ID, 10) == string(id) {
			result = candidate
			break
		}
	}

	reading, err := result.normalize(time.Now().UTC())
	if err != nil {
		return Reading{}, fmt.Errorf("sensor %s: %w", id, err)
	}
	return reading, nil
}
