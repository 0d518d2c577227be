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

// Package timeutil parses and formats the timestamp forms used across the
// framework: ISO 8601 text, float64 epoch seconds, Julian day numbers, and
// the strftime-style patterns that name time-bucketed logfiles.
package timeutil

import (
	"fmt"
	"strings"
	"time"
)

// ISO8601Format is the default wire format for record timestamps,
// e.g. "2023-01-01T00:00:00.000Z".
const ISO8601Format = "2006-01-02T15:04:05.000Z"

// Now returns the current time as float64 epoch seconds.
func Now() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}

// ParseISO8601 parses an ISO 8601 timestamp (with or without fractional
// seconds, Z or numeric offset) into epoch seconds.
func ParseISO8601(s string) (float64, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return 0, fmt.Errorf("failed to parse timestamp %q: %w", s, err)
	}

	return float64(t.UnixNano()) / 1e9, nil
}

// FormatISO8601 renders epoch seconds in the default ISO 8601 form with
// millisecond precision, UTC.
func FormatISO8601(ts float64) string {
	return ToTime(ts).UTC().Format(ISO8601Format)
}

// ToTime converts epoch seconds to a time.Time.
func ToTime(ts float64) time.Time {
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * 1e9)

	return time.Unix(sec, nsec)
}

// epoch expressed as a Julian day number.
const julianEpoch = 2440587.5

// ToJulian converts epoch seconds to a Julian day number.
func ToJulian(ts float64) float64 {
	return ts/86400.0 + julianEpoch
}

// FromJulian converts a Julian day number to epoch seconds.
func FromJulian(jd float64) float64 {
	return (jd - julianEpoch) * 86400.0
}

var strftimeGoLayouts = map[byte]string{
	'Y': "2006",
	'm': "01",
	'd': "02",
	'H': "15",
	'M': "04",
	'S': "05",
	'y': "06",
	'j': "", // day of year, handled specially
	'%': "%",
}

// Strftime formats t (UTC) with the strftime subset used in logfile date
// formats: %Y %y %m %d %H %M %S %j %%. Unknown directives are left as-is.
func Strftime(format string, t time.Time) string {
	t = t.UTC()

	var b strings.Builder

	for i := 0; i < len(format); i++ {
		if format[i] != '%' || i+1 >= len(format) {
			b.WriteByte(format[i])
			continue
		}

		i++

		switch c := format[i]; c {
		case 'j':
			fmt.Fprintf(&b, "%03d", t.YearDay())
		case '%':
			b.WriteByte('%')
		default:
			layout, ok := strftimeGoLayouts[c]
			if !ok || layout == "" {
				b.WriteByte('%')
				b.WriteByte(c)
			} else {
				b.WriteString(t.Format(layout))
			}
		}
	}

	return b.String()
}

// StrftimeContains reports whether the format string includes the given
// directive, e.g. StrftimeContains(f, 'd') for day-of-month.
func StrftimeContains(format string, directive byte) bool {
	for i := 0; i+1 < len(format); i++ {
		if format[i] == '%' && format[i+1] == directive {
			return true
		}
	}

	return false
}
