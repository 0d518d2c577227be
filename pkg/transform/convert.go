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
	"fmt"

	"github.com/rs/zerolog"

	"github.com/oceandatatools/rvdas/pkg/device"
	"github.com/oceandatatools/rvdas/pkg/logger"
	"github.com/oceandatatools/rvdas/pkg/models"
)

// LatLonSpec composes two source fields into one signed-decimal-degree
// target: a DDMM.MMMM value and an N/S/E/W direction.
type LatLonSpec struct {
	ValueField     string `json:"value_field" yaml:"value_field"`
	DirectionField string `json:"direction_field" yaml:"direction_field"`
}

// ConvertFieldsConfig controls the field converter.
type ConvertFieldsConfig struct {
	// FieldTypes maps field name to target type.
	FieldTypes map[string]models.FieldType `json:"field_types" yaml:"field_types"`
	// LatLon maps target field name to its composition spec.
	LatLon map[string]LatLonSpec `json:"lat_lon" yaml:"lat_lon"`
	// DeleteSourceFields removes lat/lon composition inputs, unless a
	// source doubles as the target.
	DeleteSourceFields bool `json:"delete_source_fields" yaml:"delete_source_fields"`
	// DeleteUnconvertedFields removes fields no spec references.
	DeleteUnconvertedFields bool `json:"delete_unconverted_fields" yaml:"delete_unconverted_fields"`
	// Quiet suppresses per-field conversion warnings.
	Quiet bool `json:"quiet" yaml:"quiet"`
}

// ConvertFields applies type conversion and NMEA lat/lon composition to
// record fields.
type ConvertFields struct {
	cfg ConvertFieldsConfig
	log logger.Logger
}

// NewConvertFields builds the converter.
func NewConvertFields(cfg ConvertFieldsConfig, log logger.Logger) *ConvertFields {
	if log == nil {
		log = logger.Default()
	}

	return &ConvertFields{cfg: cfg, log: log.WithComponent("convert_fields")}
}

func (t *ConvertFields) Apply(in any) any {
	return each(in, func(v any) any {
		rec := asRecord(v)
		if rec == nil {
			return nil
		}

		out := rec.Copy()

		t.convertTypes(out)
		t.composeLatLon(out)

		if t.cfg.DeleteUnconvertedFields {
			for name := range out.Fields {
				if !t.referenced(name) {
					delete(out.Fields, name)
					delete(out.Metadata, name)
				}
			}
		}

		if len(out.Fields) == 0 {
			return nil
		}

		return out
	})
}

func (t *ConvertFields) convertTypes(rec *models.Record) {
	for name, target := range t.cfg.FieldTypes {
		value, ok := rec.Fields[name]
		if !ok {
			continue
		}

		converted, err := device.ConvertValue(target, fmt.Sprintf("%v", value))
		if err != nil {
			t.warn().Str("field", name).Str("value", fmt.Sprintf("%v", value)).
				Str("target", string(target)).Msg("field conversion failed")

			delete(rec.Fields, name)

			continue
		}

		rec.Fields[name] = converted
	}
}

func (t *ConvertFields) composeLatLon(rec *models.Record) {
	for target, spec := range t.cfg.LatLon {
		value, haveValue := rec.Fields[spec.ValueField]
		direction, haveDir := rec.Fields[spec.DirectionField]

		if !haveValue || !haveDir {
			continue
		}

		dirText, ok := direction.(string)
		if !ok {
			t.warn().Str("field", target).Msg("lat/lon direction field is not a string")
			continue
		}

		degrees, err := device.NMEADegrees(value, dirText)
		if err != nil {
			t.warn().Str("field", target).Err(err).Msg("lat/lon composition failed")
			continue
		}

		if t.cfg.DeleteSourceFields {
			if spec.ValueField != target {
				delete(rec.Fields, spec.ValueField)
				delete(rec.Metadata, spec.ValueField)
			}

			if spec.DirectionField != target {
				delete(rec.Fields, spec.DirectionField)
				delete(rec.Metadata, spec.DirectionField)
			}
		}

		rec.Fields[target] = degrees
	}
}

// referenced reports whether any spec reads or writes the field.
func (t *ConvertFields) referenced(name string) bool {
	if _, ok := t.cfg.FieldTypes[name]; ok {
		return true
	}

	for target, spec := range t.cfg.LatLon {
		if name == target || name == spec.ValueField || name == spec.DirectionField {
			return true
		}
	}

	return false
}

func (t *ConvertFields) warn() *zerolog.Event {
	if t.cfg.Quiet {
		return t.log.Debug()
	}

	return t.log.Warn()
}
