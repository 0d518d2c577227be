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

package device

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/oceandatatools/rvdas/pkg/models"
)

var (
	errNotNumeric  = errors.New("value is not numeric")
	errBadCardinal = errors.New("direction is not one of N/S/E/W")
)

// ConvertValue coerces a raw string to the declared field type. Integer
// targets accept float text like "123.0"; hex accepts "1A", "0x1A" and
// "0X1a". nmea_lat/nmea_lon values stay raw here; they compose with a
// direction via NMEADegrees.
func ConvertValue(t models.FieldType, raw string) (any, error) {
	switch t {
	case models.FieldStr, models.FieldNMEALat, models.FieldNMEALon:
		return raw, nil
	case models.FieldFloat:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q as float", errNotNumeric, raw)
		}

		return f, nil
	case models.FieldInt:
		if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return int(i), nil
		}

		// Instruments emit integers as "123.0" often enough to accept the
		// detour through float.
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q as int", errNotNumeric, raw)
		}

		return int(f), nil
	case models.FieldBool:
		b, err := strconv.ParseBool(strings.ToLower(raw))
		if err != nil {
			return nil, fmt.Errorf("%w: %q as bool", errNotNumeric, raw)
		}

		return b, nil
	case models.FieldHex:
		s := strings.TrimPrefix(strings.TrimPrefix(raw, "0x"), "0X")

		i, err := strconv.ParseInt(s, 16, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q as hex", errNotNumeric, raw)
		}

		return int(i), nil
	default:
		return nil, fmt.Errorf("unknown field type %q", t)
	}
}

// NMEADegrees composes a DDMM.MMMM value and a cardinal direction into
// signed decimal degrees rounded to 5 decimals. South and west are
// negative.
func NMEADegrees(value any, direction string) (float64, error) {
	var raw float64

	switch v := value.(type) {
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", errNotNumeric, v)
		}

		raw = f
	default:
		f, ok := models.ToFloat(v)
		if !ok {
			return 0, fmt.Errorf("%w: %v", errNotNumeric, v)
		}

		raw = f
	}

	degrees := math.Floor(raw / 100)
	minutes := raw - degrees*100
	decimal := degrees + minutes/60

	switch strings.ToUpper(strings.TrimSpace(direction)) {
	case "N", "E":
	case "S", "W":
		decimal = -decimal
	default:
		return 0, fmt.Errorf("%w: %q", errBadCardinal, direction)
	}

	return math.Round(decimal*1e5) / 1e5, nil
}
