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
	"fmt"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oceandatatools/rvdas/pkg/device"
	"github.com/oceandatatools/rvdas/pkg/logger"
)

// Definition is a parsed cruise definition file: the cruise identity,
// the logger roster, the named modes and the pipeline spec behind each
// config name.
type Definition struct {
	Cruise      CruiseInfo               `json:"cruise" yaml:"cruise"`
	Loggers     map[string]LoggerDef     `json:"loggers" yaml:"loggers"`
	Modes       map[string]ModeDef       `json:"modes" yaml:"modes"`
	DefaultMode string                   `json:"default_mode" yaml:"default_mode"`
	Configs     map[string]map[string]any `json:"configs" yaml:"configs"`
}

// CruiseInfo is the cruise header block.
type CruiseInfo struct {
	ID             string     `json:"id" yaml:"id"`
	Start          *time.Time `json:"start,omitempty" yaml:"start,omitempty"`
	End            *time.Time `json:"end,omitempty" yaml:"end,omitempty"`
	ConfigFilename string     `json:"config_filename,omitempty" yaml:"config_filename,omitempty"`
}

// LoggerDef lists the config names a logger may run.
type LoggerDef struct {
	Configs []string `json:"configs" yaml:"configs"`
}

// ModeDef maps logger name to the config it runs in this mode.
type ModeDef map[string]string

// LoadDefinition reads a cruise definition file, resolving includes with
// glob expansion and deep merge, then validates it.
func LoadDefinition(path string, log logger.Logger) (*Definition, error) {
	if log == nil {
		log = logger.Default()
	}

	tree, err := device.LoadDefinitionTree([]string{path}, log)
	if err != nil {
		return nil, err
	}

	return ParseDefinition(tree)
}

// ParseDefinition converts a merged YAML tree into a Definition and
// validates the cross-references.
func ParseDefinition(tree map[string]any) (*Definition, error) {
	// Round-trip through YAML to decode the loosely typed tree onto the
	// typed struct.
	raw, err := yaml.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("bad cruise definition: %w", err)
	}

	var def Definition
	if err := yaml.Unmarshal(raw, &def); err != nil {
		return nil, fmt.Errorf("bad cruise definition: %w", err)
	}

	if err := def.Validate(); err != nil {
		return nil, err
	}

	return &def, nil
}

// Validate enforces the definition invariants: every mode's logger is
// declared, every referenced config exists, and the default mode (when
// set) is a known mode.
func (d *Definition) Validate() error {
	if d.Cruise.ID == "" {
		return fmt.Errorf("cruise definition has no cruise id")
	}

	if len(d.Loggers) == 0 {
		return fmt.Errorf("cruise %q defines no loggers", d.Cruise.ID)
	}

	if len(d.Modes) == 0 {
		return fmt.Errorf("cruise %q defines no modes", d.Cruise.ID)
	}

	if len(d.Configs) == 0 {
		return fmt.Errorf("cruise %q defines no configs", d.Cruise.ID)
	}

	for logger, ld := range d.Loggers {
		for _, cfg := range ld.Configs {
			if _, ok := d.Configs[cfg]; !ok {
				return fmt.Errorf("logger %q lists unknown config %q", logger, cfg)
			}
		}
	}

	for mode, md := range d.Modes {
		for logger, cfg := range md {
			if _, ok := d.Loggers[logger]; !ok {
				return fmt.Errorf("mode %q references unknown logger %q", mode, logger)
			}

			if _, ok := d.Configs[cfg]; !ok {
				return fmt.Errorf("mode %q references unknown config %q for logger %q",
					mode, cfg, logger)
			}
		}
	}

	if d.DefaultMode != "" {
		if _, ok := d.Modes[d.DefaultMode]; !ok {
			return fmt.Errorf("default mode %q is not a defined mode", d.DefaultMode)
		}
	}

	return nil
}

// ModeNames returns the defined modes, sorted.
func (d *Definition) ModeNames() []string {
	names := make([]string, 0, len(d.Modes))
	for name := range d.Modes {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// ConfigSpec serializes the named config's pipeline spec to JSON, with
// the config name folded in.
func (d *Definition) ConfigSpec(name string) (string, error) {
	spec, ok := d.Configs[name]
	if !ok {
		return "", fmt.Errorf("config %q: %w", name, ErrNotFound)
	}

	folded := map[string]any{"name": name}
	for k, v := range spec {
		folded[k] = v
	}

	raw, err := json.Marshal(folded)
	if err != nil {
		return "", fmt.Errorf("failed to serialize config %q: %w", name, err)
	}

	return string(raw), nil
}

// ConfigModes returns the modes that reference config for logger, sorted.
func (d *Definition) ConfigModes(loggerName, configName string) []string {
	var modes []string

	for mode, md := range d.Modes {
		if md[loggerName] == configName {
			modes = append(modes, mode)
		}
	}

	sort.Strings(modes)

	return modes
}
