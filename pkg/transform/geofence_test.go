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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceandatatools/rvdas/pkg/logger"
	"github.com/oceandatatools/rvdas/pkg/models"
)

// squareBoundary writes a GML file describing a 10x10 degree square at
// the origin and returns its path.
func squareBoundary(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "boundary.gml")
	require.NoError(t, os.WriteFile(path, []byte(`
<Polygon>
  <exterior>
    <LinearRing>
      <posList>0 0 0 10 10 10 10 0 0 0</posList>
    </LinearRing>
  </exterior>
</Polygon>
`), 0o600))

	return path
}

func fixAt(lat, lon float64) *models.Record {
	return models.NewRecord("s330", 0, map[string]any{"Lat": lat, "Lon": lon})
}

func geofenceConfig(t *testing.T) GeofenceConfig {
	t.Helper()

	return GeofenceConfig{
		BoundaryFile:    squareBoundary(t),
		LatitudeField:   "Lat",
		LongitudeField:  "Lon",
		EnteringMessage: "entering EEZ",
		LeavingMessage:  "leaving EEZ",
	}
}

func TestGeofenceTransitions(t *testing.T) {
	g, err := NewGeofence(geofenceConfig(t), logger.NewTestLogger())
	require.NoError(t, err)

	assert.Equal(t, "entering EEZ", g.Apply(fixAt(5, 5)))
	assert.Nil(t, g.Apply(fixAt(6, 6)), "no message while state holds")

	assert.Equal(t, "leaving EEZ", g.Apply(fixAt(20, 20)))
	assert.Nil(t, g.Apply(fixAt(21, 21)))

	assert.Equal(t, "entering EEZ", g.Apply(fixAt(1, 1)))
}

func TestGeofenceSuppressedMessage(t *testing.T) {
	cfg := geofenceConfig(t)
	cfg.EnteringMessage = ""

	g, err := NewGeofence(cfg, logger.NewTestLogger())
	require.NoError(t, err)

	// State still advances even though the entering side is silent.
	assert.Nil(t, g.Apply(fixAt(5, 5)))
	assert.Equal(t, "leaving EEZ", g.Apply(fixAt(20, 20)))
}

func TestGeofenceDistanceBuffer(t *testing.T) {
	cfg := geofenceConfig(t)
	cfg.Distance = 1

	g, err := NewGeofence(cfg, logger.NewTestLogger())
	require.NoError(t, err)

	// Half a degree outside the east edge but within the buffer.
	assert.Equal(t, "entering EEZ", g.Apply(fixAt(5, 10.5)))
	assert.Equal(t, "leaving EEZ", g.Apply(fixAt(5, 12)))
}

func TestGeofenceThrottle(t *testing.T) {
	cfg := geofenceConfig(t)
	cfg.SecondsBetweenChecks = 10

	g, err := NewGeofence(cfg, logger.NewTestLogger())
	require.NoError(t, err)

	now := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return now }

	assert.Equal(t, "entering EEZ", g.Apply(fixAt(5, 5)))

	// A crossing inside the check interval goes unnoticed.
	now = now.Add(5 * time.Second)
	assert.Nil(t, g.Apply(fixAt(20, 20)))

	now = now.Add(10 * time.Second)
	assert.Equal(t, "leaving EEZ", g.Apply(fixAt(20, 20)))
}

func TestGeofenceMissingPosition(t *testing.T) {
	g, err := NewGeofence(geofenceConfig(t), logger.NewTestLogger())
	require.NoError(t, err)

	assert.Nil(t, g.Apply(models.NewRecord("s330", 0, map[string]any{"Lat": 5.0})))
	assert.Nil(t, g.Apply("not a record"))
}

func TestGeofenceBadBoundary(t *testing.T) {
	log := logger.NewTestLogger()

	_, err := NewGeofence(GeofenceConfig{
		BoundaryFile: filepath.Join(t.TempDir(), "absent.gml"),
	}, log)
	assert.Error(t, err)

	odd := filepath.Join(t.TempDir(), "odd.gml")
	require.NoError(t, os.WriteFile(odd,
		[]byte(`<Polygon><LinearRing><posList>0 0 10</posList></LinearRing></Polygon>`), 0o600))

	_, err = NewGeofence(GeofenceConfig{BoundaryFile: odd}, log)
	assert.ErrorIs(t, err, errOddPosList)

	empty := filepath.Join(t.TempDir(), "empty.gml")
	require.NoError(t, os.WriteFile(empty, []byte(`<Polygon></Polygon>`), 0o600))

	_, err = NewGeofence(GeofenceConfig{BoundaryFile: empty}, log)
	assert.ErrorIs(t, err, errNoLinearRing)
}
