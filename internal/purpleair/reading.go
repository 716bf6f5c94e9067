package purpleair

import (
	"fmt"
	"strconv"
	"time"
)

// Reading is one sensor's normalized snapshot, decoupled from the upstream
// wire schema. A reading is created fresh on every poll and never mutated;
// the next poll supersedes it wholesale.
type Reading struct {
	ID    string
	Label string

	Lat *float64
	Lon *float64

	// PM25 is the sensor-reported PM2.5 particulate mass in µg/m³.
	PM25 float64

	TempF    *float64
	Humidity *float64
	Pressure *float64

	// Uptime is the sensor uptime in seconds, when reported.
	Uptime *int64

	// LastSeen is the zero time when the sensor has never reported.
	LastSeen  time.Time
	FetchedAt time.Time
}

type resultsEnvelope struct {
	Results []sensorResult `json:"results"`
}

// sensorResult mirrors the upstream JSON schema. Most numeric fields arrive
// as strings and are parsed during normalization. Particle counts and the
// CF=1/ATM particulate-mass channels are part of the schema but not exported
// as metrics yet.
type sensorResult struct {
	ID       int64    `json:"ID"`
	Label    string   `json:"Label"`
	Lat      *float64 `json:"Lat"`
	Lon      *float64 `json:"Lon"`
	PM25     string   `json:"PM2_5Value"`
	Uptime   *string  `json:"Uptime"`
	LastSeen int64    `json:"LastSeen"`

	P03um  string `json:"p_0_3_um"`
	P05um  string `json:"p_0_5_um"`
	P10um  string `json:"p_1_0_um"`
	P25um  string `json:"p_2_5_um"`
	P50um  string `json:"p_5_0_um"`
	P100um string `json:"p_10_0_um"`

	PM10CF1  string `json:"pm1_0_cf_1"`
	PM25CF1  string `json:"pm2_5_cf_1"`
	PM100CF1 string `json:"pm10_0_cf_1"`

	PM10ATM  string `json:"pm1_0_atm"`
	PM25ATM  string `json:"pm2_5_atm"`
	PM100ATM string `json:"pm10_0_atm"`

	TempF    *string `json:"temp_f"`
	Humidity *string `json:"humidity"`
	Pressure *string `json:"pressure"`
}

func (r sensorResult) normalize(fetchedAt time.Time) (Reading, error) {
	pm25, err := strconv.ParseFloat(r.PM25, 64)
	if err != nil {
		return Reading{}, fmt.Errorf("%w: PM2_5Value %q", ErrMalformedPayload, r.PM25)
	}
	// Malformed optional fields degrade to absent rather than invalidating
	// the reading.
	reading := Reading{
		ID:        strconv.FormatInt(r.ID, 10),
		Label:     r.Label,
		Lat:       r.Lat,
		Lon:       r.Lon,
		PM25:      pm25,
		TempF:     parseOptionalFloat(r.TempF),
		Humidity:  parseOptionalFloat(r.Humidity),
		Pressure:  parseOptionalFloat(r.Pressure),
		Uptime:    parseOptionalInt(r.Uptime),
		FetchedAt: fetchedAt,
	}
	// A wire LastSeen of 0 means the sensor has never reported; keep the
	// zero time rather than converting it into the Unix epoch.
	if r.LastSeen != 0 {
		reading.LastSeen = time.Unix(r.LastSeen, 0).UTC()
	}
	return reading, nil
}

func parseOptionalFloat(s *string) *float64 {
	if s == nil {
		return nil
	}
	v, err := strconv.ParseFloat(*s, 64)
	if err != nil {
		return nil
	}
	return &v
}

func parseOptionalInt(s *string) *int64 {
	if s == nil {
		return nil
	}
	v, err := strconv.ParseInt(*s, 10, 64)
	if err != nil {
		return nil
	}
	return &v
}
