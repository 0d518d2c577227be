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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceandatatools/rvdas/pkg/logger"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestRegistryLoadAndLookup(t *testing.T) {
	dir := t.TempDir()

	writeFile(t, dir, "types.yaml", `
device_types:
  Gyrocompass:
    format:
      "$HEHDT": '\$HEHDT,(?P<Heading>[\d.]+),T'
    fields:
      Heading:
        data_type: float
        units: degrees
`)

	writeFile(t, dir, "devices.yaml", `
includes: types.yaml
devices:
  gyr1:
    device_type: Gyrocompass
    fields:
      Heading: GyroHeading
`)

	reg, err := NewRegistry(logger.NewTestLogger(), filepath.Join(dir, "devices.yaml"))
	require.NoError(t, err)

	binding, ok := reg.Lookup("gyr1")
	require.True(t, ok)

	assert.Equal(t, "Gyrocompass", binding.DeviceType)
	assert.Equal(t, "GyroHeading", binding.Renames["Heading"])
	require.Len(t, binding.Patterns, 1)
	assert.Equal(t, "$HEHDT", binding.Patterns[0].MessageType)
	assert.True(t, binding.Patterns[0].Regex.MatchString("$HEHDT,234.5,T"))

	md := binding.Metadata("gyr1", "Heading")
	assert.Equal(t, "degrees", md["units"])
	assert.Equal(t, "Gyrocompass", md["device_type"])
}

func TestRegistryUnknownDeviceType(t *testing.T) {
	dir := t.TempDir()

	writeFile(t, dir, "bad.yaml", `
devices:
  gyr1:
    device_type: DoesNotExist
`)

	_, err := NewRegistry(logger.NewTestLogger(), filepath.Join(dir, "bad.yaml"))
	assert.ErrorIs(t, err, errUnknownDevice)
}

func TestRegistryRenameOfUndeclaredField(t *testing.T) {
	dir := t.TempDir()

	writeFile(t, dir, "bad.yaml", `
device_types:
  Wind:
    format: '(?P<Speed>[\d.]+)'
    fields:
      Speed: float
devices:
  wind1:
    device_type: Wind
    fields:
      Direction: WindDir
`)

	_, err := NewRegistry(logger.NewTestLogger(), filepath.Join(dir, "bad.yaml"))
	assert.ErrorIs(t, err, errUnknownField)
}

func TestRegistryNotAMapping(t *testing.T) {
	dir := t.TempDir()

	writeFile(t, dir, "bad.yaml", `
devices:
  - one
  - two
`)

	_, err := NewRegistry(logger.NewTestLogger(), filepath.Join(dir, "bad.yaml"))
	assert.ErrorIs(t, err, errNotAMapping)
}

func TestDeepMerge(t *testing.T) {
	dst := map[string]any{
		"a": map[string]any{"x": 1},
		"l": []any{1},
		"s": "old",
	}
	src := map[string]any{
		"a": map[string]any{"y": 2},
		"l": []any{2},
		"s": "new",
		"b": true,
	}

	out := DeepMerge(dst, src)

	assert.Equal(t, map[string]any{"x": 1, "y": 2}, out["a"])
	assert.Equal(t, []any{1, 2}, out["l"])
	assert.Equal(t, "new", out["s"])
	assert.Equal(t, true, out["b"])
}

func TestLoadDefinitionTreeGlobMerge(t *testing.T) {
	dir := t.TempDir()

	writeFile(t, dir, "01-a.yaml", `
device_types:
  A:
    format: '(?P<V>\d+)'
    fields:
      V: int
`)
	writeFile(t, dir, "02-b.yaml", `
device_types:
  B:
    format: '(?P<W>\d+)'
    fields:
      W: int
`)

	tree, err := LoadDefinitionTree([]string{filepath.Join(dir, "*.yaml")}, logger.NewTestLogger())
	require.NoError(t, err)

	types, ok := tree["device_types"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, types, "A")
	assert.Contains(t, types, "B")
}

func TestRegistryDuplicateDeviceLastWins(t *testing.T) {
	dir := t.TempDir()

	writeFile(t, dir, "01-a.yaml", `
device_types:
  Gyrocompass:
    format: '\$HEHDT,(?P<Heading>[\d.]+),T'
    fields:
      Heading: float
      Variation: float
devices:
  gyr1:
    device_type: Gyrocompass
    fields:
      Heading: Heading
`)

	// Redeclaring gyr1 replaces the whole definition; the Heading rename
	// from the earlier file must not leak into the later one.
	writeFile(t, dir, "02-b.yaml", `
devices:
  gyr1:
    device_type: Gyrocompass
    fields:
      Variation: Variation
`)

	reg, err := NewRegistry(logger.NewTestLogger(), filepath.Join(dir, "*.yaml"))
	require.NoError(t, err)

	binding, ok := reg.Lookup("gyr1")
	require.True(t, ok)

	assert.Equal(t, map[string]string{"Variation": "Variation"}, binding.Renames)
}

func TestRegistryDuplicateDeviceTypeLastWins(t *testing.T) {
	dir := t.TempDir()

	writeFile(t, dir, "01-a.yaml", `
device_types:
  Wind:
    format:
      "$WIMWV": '\$WIMWV,(?P<Dir>[\d.]+)'
    fields:
      Dir: float
`)

	writeFile(t, dir, "02-b.yaml", `
device_types:
  Wind:
    format: '(?P<Speed>[\d.]+)'
    fields:
      Speed: float
devices:
  wind1:
    device_type: Wind
    fields:
      Speed: WindSpeed
`)

	reg, err := NewRegistry(logger.NewTestLogger(), filepath.Join(dir, "*.yaml"))
	require.NoError(t, err)

	binding, ok := reg.Lookup("wind1")
	require.True(t, ok)

	// Only the later file's pattern and fields survive.
	require.Len(t, binding.Patterns, 1)
	assert.Empty(t, binding.Patterns[0].MessageType)
	assert.NotContains(t, binding.FieldTypes, "Dir")
	assert.Contains(t, binding.FieldTypes, "Speed")
}
