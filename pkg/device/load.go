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
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/oceandatatools/rvdas/pkg/logger"
	"github.com/oceandatatools/rvdas/pkg/models"
)

// LoadDefinitionTree expands each path spec as a glob, reads every matching
// YAML/JSON file, resolves nested includes depth-first, and deep-merges the
// results in order. The cruise loader shares it with the device registry.
func LoadDefinitionTree(paths []string, log logger.Logger) (map[string]any, error) {
	merged := map[string]any{}

	for _, spec := range paths {
		matches, err := filepath.Glob(spec)
		if err != nil {
			return nil, fmt.Errorf("bad path spec %q: %w", spec, err)
		}

		if len(matches) == 0 {
			log.Warn().Str("path", spec).Msg("definition path matched no files")
		}

		sort.Strings(matches)

		for _, path := range matches {
			tree, err := loadDefinitionFile(path, log)
			if err != nil {
				return nil, err
			}

			merged = mergeDefinitions(merged, tree, log)
		}
	}

	return merged, nil
}

func loadDefinitionFile(path string, log logger.Logger) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read definition file: %w", err)
	}

	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("failed to parse %q: %w", path, err)
	}

	// Includes are resolved relative to the including file and merged
	// before the file's own keys, so the containing file wins.
	includes := includeSpecs(tree["includes"])
	delete(tree, "includes")

	if len(includes) == 0 {
		return tree, nil
	}

	dir := filepath.Dir(path)
	for i, inc := range includes {
		if !filepath.IsAbs(inc) {
			includes[i] = filepath.Join(dir, inc)
		}
	}

	included, err := LoadDefinitionTree(includes, log)
	if err != nil {
		return nil, fmt.Errorf("while resolving includes of %q: %w", path, err)
	}

	return mergeDefinitions(included, tree, log), nil
}

// mergeDefinitions deep-merges src into dst, except that same-named
// entries under devices and device_types replace rather than merge: a
// redefinition warns and the later definition wins whole, so a device
// redeclared in a later file does not inherit fields from the earlier
// declaration.
func mergeDefinitions(dst, src map[string]any, log logger.Logger) map[string]any {
	if dst == nil {
		dst = map[string]any{}
	}

	rest := make(map[string]any, len(src))
	for key, value := range src {
		rest[key] = value
	}

	for _, section := range []string{"devices", "device_types"} {
		sm, ok := rest[section].(map[string]any)
		if !ok {
			continue
		}

		delete(rest, section)

		dm, ok := dst[section].(map[string]any)
		if !ok {
			dst[section] = sm
			continue
		}

		for name, def := range sm {
			if _, dup := dm[name]; dup {
				log.Warn().Str("section", section).Str("name", name).
					Msg("duplicate definition, last wins")
			}

			dm[name] = def
		}
	}

	return DeepMerge(dst, rest)
}

func includeSpecs(v any) []string {
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		return []string{x}
	case []any:
		var out []string

		for _, elem := range x {
			if s, ok := elem.(string); ok {
				out = append(out, s)
			}
		}

		return out
	default:
		return nil
	}
}

// DeepMerge merges src into dst and returns the result: maps merge
// recursively, lists append, scalars overwrite.
func DeepMerge(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = map[string]any{}
	}

	for key, sv := range src {
		dv, exists := dst[key]
		if !exists {
			dst[key] = sv
			continue
		}

		dm, dIsMap := dv.(map[string]any)
		sm, sIsMap := sv.(map[string]any)

		if dIsMap && sIsMap {
			dst[key] = DeepMerge(dm, sm)
			continue
		}

		dl, dIsList := dv.([]any)
		sl, sIsList := sv.([]any)

		if dIsList && sIsList {
			dst[key] = append(dl, sl...)
			continue
		}

		dst[key] = sv
	}

	return dst
}

func parseDeviceType(name string, raw any) (*models.DeviceTypeDef, error) {
	def, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: device type %q is %T", errNotAMapping, name, raw)
	}

	dt := &models.DeviceTypeDef{Name: name, Fields: map[string]models.FieldSpec{}}

	switch format := def["format"].(type) {
	case string:
		dt.Patterns = []models.MessagePattern{{Pattern: format}}
	case []any:
		for _, p := range format {
			if s, ok := p.(string); ok {
				dt.Patterns = append(dt.Patterns, models.MessagePattern{Pattern: s})
			}
		}
	case map[string]any:
		// Iterate message types in sorted order so first-match-wins is
		// deterministic across loads.
		types := make([]string, 0, len(format))
		for mt := range format {
			types = append(types, mt)
		}

		sort.Strings(types)

		for _, mt := range types {
			if s, ok := format[mt].(string); ok {
				dt.Patterns = append(dt.Patterns, models.MessagePattern{MessageType: mt, Pattern: s})
			}
		}
	}

	if len(dt.Patterns) == 0 {
		return nil, fmt.Errorf("%w: %q", errNoPatterns, name)
	}

	if fields, ok := def["fields"].(map[string]any); ok {
		for fname, fdef := range fields {
			spec, err := parseFieldSpec(name, fname, fdef)
			if err != nil {
				return nil, err
			}

			dt.Fields[fname] = spec
		}
	}

	return dt, nil
}

func parseFieldSpec(typeName, fieldName string, raw any) (models.FieldSpec, error) {
	switch x := raw.(type) {
	case string:
		return validFieldSpec(typeName, fieldName, models.FieldSpec{Type: models.FieldType(x)})
	case map[string]any:
		spec := models.FieldSpec{}

		if dt, ok := x["data_type"].(string); ok {
			spec.Type = models.FieldType(dt)
		}

		if units, ok := x["units"].(string); ok {
			spec.Units = units
		}

		if desc, ok := x["description"].(string); ok {
			spec.Description = desc
		}

		return validFieldSpec(typeName, fieldName, spec)
	default:
		return models.FieldSpec{}, fmt.Errorf("%w: type %q field %q is %T",
			errNotAMapping, typeName, fieldName, raw)
	}
}

func validFieldSpec(typeName, fieldName string, spec models.FieldSpec) (models.FieldSpec, error) {
	switch spec.Type {
	case models.FieldFloat, models.FieldInt, models.FieldStr, models.FieldBool,
		models.FieldHex, models.FieldNMEALat, models.FieldNMEALon:
		return spec, nil
	default:
		return spec, fmt.Errorf("%w: type %q field %q declares %q",
			errUnknownDataType, typeName, fieldName, spec.Type)
	}
}

func parseDevice(name string, raw any) (*models.DeviceDef, error) {
	def, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: device %q is %T", errNotAMapping, name, raw)
	}

	dev := &models.DeviceDef{Name: name, Fields: map[string]string{}}

	if dt, ok := def["device_type"].(string); ok {
		dev.DeviceType = dt
	}

	if fields, ok := def["fields"].(map[string]any); ok {
		for rawName, canonical := range fields {
			if s, ok := canonical.(string); ok {
				dev.Fields[rawName] = s
			}
		}
	}

	return dev, nil
}
