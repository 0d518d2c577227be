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

package control

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceandatatools/rvdas/pkg/logger"
)

func testDefinition() *Definition {
	return &Definition{
		Cruise:      CruiseInfo{ID: "NBP1406"},
		DefaultMode: "port",
		Loggers: map[string]LoggerDef{
			"gyr1": {Configs: []string{"gyr1->off", "gyr1->file", "gyr1->db"}},
			"mwx1": {Configs: []string{"mwx1->off", "mwx1->file"}},
		},
		Modes: map[string]ModeDef{
			"off":      {"gyr1": "gyr1->off", "mwx1": "mwx1->off"},
			"port":     {"gyr1": "gyr1->file", "mwx1": "mwx1->file"},
			"underway": {"gyr1": "gyr1->db"},
		},
		Configs: map[string]map[string]any{
			"gyr1->off":  {},
			"gyr1->file": {"readers": []any{map[string]any{"class": "TextFileReader"}}},
			"gyr1->db":   {},
			"mwx1->off":  {},
			"mwx1->file": {},
		},
	}
}

func TestDefinitionValidate(t *testing.T) {
	require.NoError(t, testDefinition().Validate())

	tests := []struct {
		name   string
		mutate func(*Definition)
	}{
		{"no cruise id", func(d *Definition) { d.Cruise.ID = "" }},
		{"no loggers", func(d *Definition) { d.Loggers = nil }},
		{"no modes", func(d *Definition) { d.Modes = nil }},
		{"no configs", func(d *Definition) { d.Configs = nil }},
		{"logger lists unknown config", func(d *Definition) {
			d.Loggers["gyr1"] = LoggerDef{Configs: []string{"nope"}}
		}},
		{"mode references unknown logger", func(d *Definition) {
			d.Modes["port"]["ghost"] = "gyr1->file"
		}},
		{"mode references unknown config", func(d *Definition) {
			d.Modes["port"]["gyr1"] = "nope"
		}},
		{"unknown default mode", func(d *Definition) { d.DefaultMode = "nope" }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			def := testDefinition()
			tc.mutate(def)
			assert.Error(t, def.Validate())
		})
	}
}

func TestDefinitionModeNames(t *testing.T) {
	assert.Equal(t, []string{"off", "port", "underway"}, testDefinition().ModeNames())
}

func TestDefinitionConfigSpecFoldsName(t *testing.T) {
	spec, err := testDefinition().ConfigSpec("gyr1->file")
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(spec), &decoded))

	assert.Equal(t, "gyr1->file", decoded["name"])
	assert.Contains(t, decoded, "readers")

	_, err = testDefinition().ConfigSpec("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDefinitionConfigModes(t *testing.T) {
	def := testDefinition()

	assert.Equal(t, []string{"port"}, def.ConfigModes("gyr1", "gyr1->file"))
	assert.Equal(t, []string{"off"}, def.ConfigModes("mwx1", "mwx1->off"))
	assert.Empty(t, def.ConfigModes("gyr1", "mwx1->file"))
}

func TestLoadDefinitionWithIncludes(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "configs.yaml"), []byte(`
configs:
  gyr1->off: {}
  gyr1->file:
    readers:
      - class: TextFileReader
        kwargs:
          file_spec: /var/log/gyr1
    writers:
      - class: LogfileWriter
        kwargs:
          filebase: /data/gyr1
`), 0o600))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "cruise.yaml"), []byte(`
includes: configs.yaml
cruise:
  id: NBP1406
default_mode: "off"
loggers:
  gyr1:
    configs:
      - gyr1->off
      - gyr1->file
modes:
  "off":
    gyr1: gyr1->off
  underway:
    gyr1: gyr1->file
`), 0o600))

	def, err := LoadDefinition(filepath.Join(dir, "cruise.yaml"), logger.NewTestLogger())
	require.NoError(t, err)

	assert.Equal(t, "NBP1406", def.Cruise.ID)
	assert.Equal(t, "off", def.DefaultMode)
	assert.Equal(t, []string{"off", "underway"}, def.ModeNames())
	assert.Contains(t, def.Configs, "gyr1->file")
}

func TestLoadDefinitionMissingFile(t *testing.T) {
	_, err := LoadDefinition(filepath.Join(t.TempDir(), "absent.yaml"), logger.NewTestLogger())
	assert.Error(t, err)
}
