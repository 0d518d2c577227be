/*
 * Copyright 2025 Ocean Data Tools.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package transform

import (
	"strconv"
	"strings"
	"time"

	"github.com/oceandatatools/rvdas/pkg/logger"
	"github.com/oceandatatools/rvdas/pkg/timeutil"
)

// nmeaTimeField maps a recognized sentence key to the comma-separated
// index of its time-of-day field. Standard sentences are keyed by their
// three-letter type, proprietary ones by full name.
var nmeaTimeField = map[string]int{
	"GGA":     1,
	"RMC":     1,
	"GLL":     5,
	"ZDA":     1,
	"GBS":     1,
	"PASHR":   1,
	"PSXN,26": 2,
}

// TimestampConfig controls the timestamp transform.
type TimestampConfig struct {
	// Sep goes between the timestamp and the record, default single space.
	Sep string `json:"sep" yaml:"sep"`
	// UseNMEATimestamp extracts time-of-day from recognized NMEA
	// sentences instead of the system clock.
	UseNMEATimestamp bool `json:"use_nmea_timestamp" yaml:"use_nmea_timestamp"`
	// NMEATimestampTimeout bounds how long a previously extracted NMEA
	// time may substitute for a missing one, in seconds. Default 60.
	NMEATimestampTimeout float64 `json:"nmea_timestamp_timeout" yaml:"nmea_timestamp_timeout"`
}

// TimestampTransform prepends a formatted timestamp to string records.
type TimestampTransform struct {
	cfg TimestampConfig
	log logger.Logger

	lastNMEATime     float64
	lastNMEAWallTime time.Time
	haveNMEATime     bool

	now func() time.Time
}

// NewTimestampTransform builds a timestamp transform.
func NewTimestampTransform(cfg TimestampConfig, log logger.Logger) *TimestampTransform {
	if log == nil {
		log = logger.Default()
	}

	if cfg.Sep == "" {
		cfg.Sep = " "
	}

	if cfg.NMEATimestampTimeout == 0 {
		cfg.NMEATimestampTimeout = 60
	}

	return &TimestampTransform{
		cfg: cfg,
		log: log.WithComponent("timestamp_transform"),
		now: time.Now,
	}
}

func (t *TimestampTransform) Apply(in any) any {
	return each(in, func(v any) any {
		s, ok := asString(v)
		if !ok {
			return nil
		}

		ts := t.timestampFor(s)

		return timeutil.FormatISO8601(ts) + t.cfg.Sep + s
	})
}

func (t *TimestampTransform) timestampFor(record string) float64 {
	now := t.now()

	if !t.cfg.UseNMEATimestamp {
		return float64(now.UnixNano()) / 1e9
	}

	if ts, ok := t.extractNMEATime(record, now); ok {
		t.lastNMEATime = ts
		t.lastNMEAWallTime = now
		t.haveNMEATime = true

		return ts
	}

	// Unrecognized sentence: reuse the last extracted NMEA time while it
	// is fresh.
	if t.haveNMEATime && now.Sub(t.lastNMEAWallTime).Seconds() <= t.cfg.NMEATimestampTimeout {
		return t.lastNMEATime
	}

	return float64(now.UnixNano()) / 1e9
}

// extractNMEATime pulls the time-of-day from a recognized NMEA sentence
// and anchors it to today's UTC date.
func (t *TimestampTransform) extractNMEATime(record string, now time.Time) (float64, bool) {
	record = strings.TrimPrefix(strings.TrimSpace(record), "$")

	tokens := strings.Split(record, ",")
	if len(tokens) < 2 {
		return 0, false
	}

	key := tokens[0]
	if len(key) >= 5 && !strings.HasPrefix(key, "P") {
		key = key[len(key)-3:]
	}

	idx, ok := nmeaTimeField[key]
	if !ok {
		// Proprietary sentences with subtypes, e.g. PSXN,26.
		idx, ok = nmeaTimeField[key+","+tokens[1]]
		if !ok {
			return 0, false
		}
	}

	if idx >= len(tokens) {
		return 0, false
	}

	tod, err := parseNMEATimeOfDay(tokens[idx])
	if err != nil {
		return 0, false
	}

	midnight := time.Date(now.UTC().Year(), now.UTC().Month(), now.UTC().Day(),
		0, 0, 0, 0, time.UTC)

	return float64(midnight.Unix()) + tod, true
}

// parseNMEATimeOfDay parses hhmmss[.sss] into seconds since midnight.
func parseNMEATimeOfDay(s string) (float64, error) {
	s = strings.TrimSpace(s)

	if len(s) < 6 {
		return 0, strconv.ErrSyntax
	}

	hours, err := strconv.Atoi(s[0:2])
	if err != nil {
		return 0, err
	}

	minutes, err := strconv.Atoi(s[2:4])
	if err != nil {
		return 0, err
	}

	seconds, err := strconv.ParseFloat(s[4:], 64)
	if err != nil {
		return 0, err
	}

	return float64(hours*3600+minutes*60) + seconds, nil
}
