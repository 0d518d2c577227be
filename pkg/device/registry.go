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

// Package device loads device and device-type definitions from a
// configuration tree and exposes the lookups the record parser needs:
// type-conversion specs, field rename maps and message patterns keyed by
// data_id.
package device

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/oceandatatools/rvdas/pkg/logger"
	"github.com/oceandatatools/rvdas/pkg/models"
)

var (
	errNotAMapping     = errors.New("definition value is not a mapping")
	errNoPatterns      = errors.New("device type declares no format patterns")
	errUnknownDevice   = errors.New("device references unknown device type")
	errUnknownField    = errors.New("device renames a field its device type does not declare")
	errBadPattern      = errors.New("device type pattern does not compile")
	errUnknownDataType = errors.New("unknown field data type")
)

// CompiledPattern is one (message_type, regex) pair of a device type.
type CompiledPattern struct {
	MessageType string
	Regex       *regexp.Regexp
}

// Binding is everything the parser needs to know about one data_id.
type Binding struct {
	DeviceType string
	// Renames maps raw field names to canonical names. Raw fields with no
	// entry are dropped after conversion.
	Renames    map[string]string
	FieldTypes map[string]models.FieldSpec
	Patterns   []CompiledPattern
}

// Metadata builds the metadata descriptor for a raw field.
func (b *Binding) Metadata(device, rawField string) map[string]string {
	spec, ok := b.FieldTypes[rawField]
	if !ok {
		return nil
	}

	md := map[string]string{
		"device":            device,
		"device_type":       b.DeviceType,
		"device_type_field": rawField,
	}

	if spec.Units != "" {
		md["units"] = spec.Units
	}

	if spec.Description != "" {
		md["description"] = spec.Description
	}

	return md
}

// Registry holds loaded device and device-type definitions.
type Registry struct {
	devices     map[string]*models.DeviceDef
	deviceTypes map[string]*models.DeviceTypeDef
	bindings    map[string]*Binding
	log         logger.Logger
}

// NewRegistry loads definitions from the given path specs (each may contain
// glob wildcards). An empty path list yields an empty registry.
func NewRegistry(log logger.Logger, paths ...string) (*Registry, error) {
	if log == nil {
		log = logger.Default()
	}

	r := &Registry{
		devices:     map[string]*models.DeviceDef{},
		deviceTypes: map[string]*models.DeviceTypeDef{},
		bindings:    map[string]*Binding{},
		log:         log.WithComponent("device_registry"),
	}

	if len(paths) == 0 {
		return r, nil
	}

	tree, err := LoadDefinitionTree(paths, r.log)
	if err != nil {
		return nil, err
	}

	if err := r.ingest(tree); err != nil {
		return nil, err
	}

	if err := r.compile(); err != nil {
		return nil, err
	}

	return r, nil
}

// Lookup returns the parser binding for a data_id.
func (r *Registry) Lookup(dataID string) (*Binding, bool) {
	b, ok := r.bindings[dataID]
	return b, ok
}

// DeviceNames lists the loaded device names.
func (r *Registry) DeviceNames() []string {
	names := make([]string, 0, len(r.devices))
	for name := range r.devices {
		names = append(names, name)
	}

	return names
}

func (r *Registry) ingest(tree map[string]any) error {
	if raw, ok := tree["device_types"]; ok {
		mapping, ok := raw.(map[string]any)
		if !ok {
			return fmt.Errorf("%w: device_types is %T", errNotAMapping, raw)
		}

		for name, def := range mapping {
			dt, err := parseDeviceType(name, def)
			if err != nil {
				return err
			}

			r.deviceTypes[name] = dt
		}
	}

	if raw, ok := tree["devices"]; ok {
		mapping, ok := raw.(map[string]any)
		if !ok {
			return fmt.Errorf("%w: devices is %T", errNotAMapping, raw)
		}

		for name, def := range mapping {
			dev, err := parseDevice(name, def)
			if err != nil {
				return err
			}

			r.devices[name] = dev
		}
	}

	return nil
}

// compile validates cross-references and compiles patterns into per-data_id
// bindings.
func (r *Registry) compile() error {
	for name, dev := range r.devices {
		dt, ok := r.deviceTypes[dev.DeviceType]
		if !ok {
			return fmt.Errorf("%w: device %q wants type %q", errUnknownDevice, name, dev.DeviceType)
		}

		for raw := range dev.Fields {
			if _, ok := dt.Fields[raw]; !ok {
				return fmt.Errorf("%w: device %q field %q (type %q)",
					errUnknownField, name, raw, dev.DeviceType)
			}
		}

		patterns := make([]CompiledPattern, 0, len(dt.Patterns))

		for _, p := range dt.Patterns {
			re, err := regexp.Compile(p.Pattern)
			if err != nil {
				return fmt.Errorf("%w: type %q message %q: %w",
					errBadPattern, dt.Name, p.MessageType, err)
			}

			patterns = append(patterns, CompiledPattern{MessageType: p.MessageType, Regex: re})
		}

		r.bindings[name] = &Binding{
			DeviceType: dev.DeviceType,
			Renames:    dev.Fields,
			FieldTypes: dt.Fields,
			Patterns:   patterns,
		}
	}

	return nil
}
