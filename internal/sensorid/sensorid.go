// Package sensorid parses the configured PurpleAir sensor id list.
package sensorid

import (
	"errors"
	"strings"
)

// SensorID names one upstream sensor. IDs are opaque tokens; equality is by
// literal value.
type SensorID string

// ErrNoSensorIDs is returned when the configured list yields no sensor ids.
var ErrNoSensorIDs = errors.New("sensorid: no sensor ids configured")

// ParseList parses a delimited sensor id list into an ordered, duplicate-free
// slice. Comma and pipe both act as delimiters, tokens are trimmed, empty
// tokens are dropped, and a repeated id keeps its first position.
func ParseList(raw string) ([]SensorID, error) {
	tokens := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == '|'
	})

	seen := make(map[string]struct{}, len(tokens))
	ids := make([]SensorID, 0, len(tokens))
	for _, token := range tokens {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		if _, ok := seen[token]; ok {
			continue
		}
		seen[token] = struct{}{}
		ids = append(ids, SensorID(token))
	}
	if len(ids) == 0 {
		return nil, ErrNoSensorIDs
	}
	return ids, nil
}
