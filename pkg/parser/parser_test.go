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

package parser

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceandatatools/rvdas/pkg/device"
	"github.com/oceandatatools/rvdas/pkg/logger"
)

const testDefinitions = `
device_types:
  Gyrocompass:
    format:
      "$HEHDT": '\$HEHDT,(?P<Heading>[\d.]+),T'
    fields:
      Heading:
        data_type: float
        units: degrees
  WindSensor:
    format: '(?P<Dir>[\d.]+),(?P<Speed>[\d.]+)'
    fields:
      Dir: float
      Speed: float

devices:
  gyr1:
    device_type: Gyrocompass
    fields:
      Heading: GyroHeading
  mwx1:
    device_type: WindSensor
    fields:
      Dir: WindDir
      Speed: WindSpeed
`

func testRegistry(t *testing.T) *device.Registry {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "defs.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testDefinitions), 0o600))

	reg, err := device.NewRegistry(logger.NewTestLogger(), path)
	require.NoError(t, err)

	return reg
}

func TestParseRecord(t *testing.T) {
	p, err := NewParser(testRegistry(t), Config{}, logger.NewTestLogger())
	require.NoError(t, err)

	rec := p.ParseRecord("gyr1 2023-01-01T00:00:00.000Z $HEHDT,234.5,T")
	require.NotNil(t, rec)

	assert.Equal(t, "gyr1", rec.DataID)
	assert.Equal(t, "$HEHDT", rec.MessageType)
	assert.InDelta(t, 1672531200.0, rec.Timestamp, 1e-6)
	assert.Equal(t, 234.5, rec.Fields["GyroHeading"])
	_, raw := rec.Fields["Heading"]
	assert.False(t, raw, "raw field name should be renamed away")
}

func TestParseRecordUnknownDevicePassesPayloadThrough(t *testing.T) {
	p, err := NewParser(testRegistry(t), Config{Quiet: true}, logger.NewTestLogger())
	require.NoError(t, err)

	rec := p.ParseRecord("nobody 2023-01-01T00:00:00.000Z hello world")
	require.NotNil(t, rec)
	assert.Equal(t, "hello world", rec.Fields["message"])
}

func TestParseRecordDrops(t *testing.T) {
	p, err := NewParser(testRegistry(t), Config{Quiet: true}, logger.NewTestLogger())
	require.NoError(t, err)

	assert.Nil(t, p.ParseRecord(42), "non-string input")
	assert.Nil(t, p.ParseRecord("oneword"), "envelope miss")
	assert.Nil(t, p.ParseRecord("gyr1 2023-01-01T00:00:00.000Z not-a-gyro-line"),
		"no field pattern match")
}

func TestParseRecordDataIDOverride(t *testing.T) {
	p, err := NewParser(testRegistry(t), Config{DataID: "gyr1"}, logger.NewTestLogger())
	require.NoError(t, err)

	rec := p.ParseRecord("other 2023-01-01T00:00:00.000Z $HEHDT,180.0,T")
	require.NotNil(t, rec)
	assert.Equal(t, "gyr1", rec.DataID)
	assert.Equal(t, 180.0, rec.Fields["GyroHeading"])
}

func TestParseRecordBadTimestampFallsBackToSystemTime(t *testing.T) {
	p, err := NewParser(testRegistry(t), Config{Quiet: true}, logger.NewTestLogger())
	require.NoError(t, err)

	p.now = func() time.Time { return time.Unix(500, 0) }

	rec := p.ParseRecord("gyr1 garbage $HEHDT,90.0,T")
	require.NotNil(t, rec)
	assert.InDelta(t, 500.0, rec.Timestamp, 1e-6)
}

func TestParseRecordMetadataInterval(t *testing.T) {
	p, err := NewParser(testRegistry(t),
		Config{MetadataInterval: 10 * time.Second}, logger.NewTestLogger())
	require.NoError(t, err)

	clock := time.Unix(1000, 0)
	p.now = func() time.Time { return clock }

	line := "gyr1 2023-01-01T00:00:00.000Z $HEHDT,234.5,T"

	rec := p.ParseRecord(line)
	require.NotNil(t, rec)
	require.Contains(t, rec.Metadata, "GyroHeading")
	assert.Equal(t, "degrees", rec.Metadata["GyroHeading"]["units"])

	// Within the interval the metadata stays off.
	clock = clock.Add(5 * time.Second)
	rec = p.ParseRecord(line)
	require.NotNil(t, rec)
	assert.NotContains(t, rec.Metadata, "GyroHeading")

	clock = clock.Add(6 * time.Second)
	rec = p.ParseRecord(line)
	require.NotNil(t, rec)
	assert.Contains(t, rec.Metadata, "GyroHeading")
}

func TestApplySliceFanIn(t *testing.T) {
	p, err := NewParser(testRegistry(t), Config{Quiet: true}, logger.NewTestLogger())
	require.NoError(t, err)

	out := p.Apply([]any{
		"gyr1 2023-01-01T00:00:00.000Z $HEHDT,1.0,T",
		"gyr1 bogus-line",
		"mwx1 2023-01-01T00:00:01.000Z 45.0,12.5",
	})

	items, ok := out.([]any)
	require.True(t, ok)
	assert.Len(t, items, 2)

	assert.Nil(t, p.Apply("nonsense"))
}
