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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/oceandatatools/rvdas/pkg/logger"
)

func TestTimestampPrependsSystemTime(t *testing.T) {
	tr := NewTimestampTransform(TimestampConfig{}, logger.NewTestLogger())
	tr.now = func() time.Time { return time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC) }

	assert.Equal(t, "2023-01-01T00:00:00.000Z $HEHDT,234.5,T",
		tr.Apply("$HEHDT,234.5,T"))
}

func TestTimestampCustomSep(t *testing.T) {
	tr := NewTimestampTransform(TimestampConfig{Sep: "\t"}, logger.NewTestLogger())
	tr.now = func() time.Time { return time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC) }

	assert.Equal(t, "2023-01-01T00:00:00.000Z\tline", tr.Apply("line"))
}

func TestTimestampNonString(t *testing.T) {
	tr := NewTimestampTransform(TimestampConfig{}, logger.NewTestLogger())
	assert.Nil(t, tr.Apply(42))
}

func TestTimestampNMEA(t *testing.T) {
	tr := NewTimestampTransform(TimestampConfig{UseNMEATimestamp: true},
		logger.NewTestLogger())

	now := time.Date(2023, 1, 1, 12, 0, 0, 0, time.UTC)
	tr.now = func() time.Time { return now }

	// Time-of-day comes from the sentence, anchored to today's UTC date.
	out := tr.Apply("$GPGGA,123456.00,3745.12,N")
	assert.Equal(t, "2023-01-01T12:34:56.000Z $GPGGA,123456.00,3745.12,N", out)

	// An unrecognized sentence reuses the last extracted time while fresh.
	out = tr.Apply("$HEHDT,234.5,T")
	assert.Equal(t, "2023-01-01T12:34:56.000Z $HEHDT,234.5,T", out)

	// Past the staleness timeout the system clock takes over.
	now = now.Add(2 * time.Minute)

	out = tr.Apply("$HEHDT,235.0,T")
	assert.Equal(t, "2023-01-01T12:02:00.000Z $HEHDT,235.0,T", out)
}

func TestTimestampProprietarySentence(t *testing.T) {
	tr := NewTimestampTransform(TimestampConfig{UseNMEATimestamp: true},
		logger.NewTestLogger())
	tr.now = func() time.Time { return time.Date(2023, 1, 1, 12, 0, 0, 0, time.UTC) }

	out := tr.Apply("$PSXN,26,101112.5,x")
	assert.Equal(t, "2023-01-01T10:11:12.500Z $PSXN,26,101112.5,x", out)
}

func TestParseNMEATimeOfDay(t *testing.T) {
	tod, err := parseNMEATimeOfDay("123456.78")
	assert.NoError(t, err)
	assert.InDelta(t, 45296.78, tod, 1e-9)

	_, err = parseNMEATimeOfDay("123")
	assert.Error(t, err)

	_, err = parseNMEATimeOfDay("12xx56")
	assert.Error(t, err)
}
