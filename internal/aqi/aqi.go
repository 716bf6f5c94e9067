// Package aqi converts raw PM2.5 concentration into the EPA Air Quality Index.
package aqi

import (
	"errors"
	"math"
)

// MaxAQI is the top of the EPA index scale.
const MaxAQI = 500

// MaxConcentration is the upper bound of the breakpoint table in µg/m³.
// Concentrations above it clamp to MaxAQI.
const MaxConcentration = 500.4

// ErrNegativeConcentration is returned for concentrations below zero.
var ErrNegativeConcentration = errors.New("aqi: negative concentration")

// ErrNaNConcentration is returned when the concentration is NaN.
var ErrNaNConcentration = errors.New("aqi: concentration is NaN")

// breakpoint maps one concentration interval onto one index interval, per the
// EPA PM2.5 table (24-hour average, µg/m³).
type breakpoint struct {
	cLow, cHigh float64
	iLow, iHigh int
}

var breakpoints = []breakpoint{
	{0.0, 12.0, 0, 50},
	{12.1, 35.4, 51, 100},
	{35.5, 55.4, 101, 150},
	{55.5, 150.4, 151, 200},
	{150.5, 250.4, 201, 300},
	{250.5, 350.4, 301, 400},
	{350.5, 500.4, 401, 500},
}

// FromPM25 converts a PM2.5 concentration in µg/m³ into the EPA AQI.
// The concentration is truncated to one decimal place before lookup, as the
// EPA convention prescribes, and the interpolated index is rounded to the
// nearest integer. Concentrations above MaxConcentration clamp to MaxAQI.
func FromPM25(concentration float64) (int, error) {
	// NaN compares false against every bound and would interpolate
	// against the first breakpoint.
	if math.IsNaN(concentration) {
		return 0, ErrNaNConcentration
	}
	if concentration < 0 {
		return 0, ErrNegativeConcentration
	}
	c := math.Trunc(concentration*10) / 10
	if c > MaxConcentration {
		return MaxAQI, nil
	}
	for _, bp := range breakpoints {
		if c > bp.cHigh {
			continue
		}
		slope := float64(bp.iHigh-bp.iLow) / (bp.cHigh - bp.cLow)
		return int(math.Round(slope*(c-bp.cLow) + float64(bp.iLow))), nil
	}
	return MaxAQI, nil
}

// Category returns the EPA descriptor for an AQI value.
func Category(aqi int) string {
	switch {
	case aqi <= 50:
		return "Good"
	case aqi <= 100:
		return "Moderate"
	case aqi <= 150:
		return "Unhealthy for Sensitive Groups"
	case aqi <= 200:
		return "Unhealthy"
	case aqi <= 300:
		return "Very Unhealthy"
	default:
		return "Hazardous"
	}
}
