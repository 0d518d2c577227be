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
	"strings"

	"github.com/oceandatatools/rvdas/pkg/logger"
	"github.com/oceandatatools/rvdas/pkg/models"
)

// SelectFieldsTransform keeps or deletes named fields of a record. When
// keep is non-empty only those fields survive; delete is then applied on
// top. A record left with no fields drops.
type SelectFieldsTransform struct {
	keep   []string
	delete []string
}

// NewSelectFieldsTransform builds a field selector.
func NewSelectFieldsTransform(keep, del []string) *SelectFieldsTransform {
	return &SelectFieldsTransform{keep: keep, delete: del}
}

func (t *SelectFieldsTransform) Apply(in any) any {
	return each(in, func(v any) any {
		rec := asRecord(v)
		if rec == nil {
			return nil
		}

		out := rec.Copy()

		if len(t.keep) > 0 {
			for name := range out.Fields {
				if !contains(t.keep, name) {
					delete(out.Fields, name)
					delete(out.Metadata, name)
				}
			}
		}

		for _, name := range t.delete {
			delete(out.Fields, name)
			delete(out.Metadata, name)
		}

		if len(out.Fields) == 0 {
			return nil
		}

		return out
	})
}

// RenameTransform renames record fields by map; unmapped fields pass
// through unchanged.
type RenameTransform struct {
	renames map[string]string
}

// NewRenameTransform builds a rename transform.
func NewRenameTransform(renames map[string]string) *RenameTransform {
	return &RenameTransform{renames: renames}
}

func (t *RenameTransform) Apply(in any) any {
	return each(in, func(v any) any {
		rec := asRecord(v)
		if rec == nil {
			return nil
		}

		out := rec.Copy()

		for old, renamed := range t.renames {
			if value, ok := out.Fields[old]; ok {
				delete(out.Fields, old)
				out.Fields[renamed] = value
			}

			if md, ok := out.Metadata[old]; ok {
				delete(out.Metadata, old)
				out.Metadata[renamed] = md
			}
		}

		return out
	})
}

// ExtractFieldTransform reduces a record to the bare value of one field;
// records without the field drop.
type ExtractFieldTransform struct {
	field string
}

// NewExtractFieldTransform builds an extractor for the named field.
func NewExtractFieldTransform(field string) *ExtractFieldTransform {
	return &ExtractFieldTransform{field: field}
}

func (t *ExtractFieldTransform) Apply(in any) any {
	return each(in, func(v any) any {
		rec := asRecord(v)
		if rec == nil {
			return nil
		}

		value, ok := rec.Fields[t.field]
		if !ok {
			return nil
		}

		return value
	})
}

// FormatTransform renders a record into a string using a format with
// {field_name} substitutions. Missing fields use defaults when provided,
// otherwise the record drops.
type FormatTransform struct {
	format   string
	defaults map[string]any
	log      logger.Logger
}

// NewFormatTransform builds a format transform.
func NewFormatTransform(format string, defaults map[string]any, log logger.Logger) *FormatTransform {
	if log == nil {
		log = logger.Default()
	}

	return &FormatTransform{
		format:   format,
		defaults: defaults,
		log:      log.WithComponent("format_transform"),
	}
}

func (t *FormatTransform) Apply(in any) any {
	return each(in, func(v any) any {
		rec := asRecord(v)
		if rec == nil {
			return nil
		}

		out := t.format
		missing := false

		for {
			start := strings.Index(out, "{")
			if start < 0 {
				break
			}

			end := strings.Index(out[start:], "}")
			if end < 0 {
				break
			}

			name := out[start+1 : start+end]

			value, ok := rec.Fields[name]
			if !ok {
				if name == "timestamp" {
					value, ok = rec.Timestamp, true
				} else if name == "data_id" {
					value, ok = rec.DataID, true
				} else {
					value, ok = t.defaults[name]
				}
			}

			if !ok {
				t.log.Debug().Str("field", name).Msg("format field missing, dropping record")

				missing = true

				break
			}

			out = out[:start] + fmt.Sprintf("%v", value) + out[start+end+1:]
		}

		if missing {
			return nil
		}

		return out
	})
}

// CountTransform counts observations of each field and emits a record of
// "<field>:count" values on every input.
type CountTransform struct {
	counts map[string]int
}

// NewCountTransform builds a count transform.
func NewCountTransform() *CountTransform {
	return &CountTransform{counts: map[string]int{}}
}

func (t *CountTransform) Apply(in any) any {
	return each(in, func(v any) any {
		rec := asRecord(v)
		if rec == nil {
			return nil
		}

		fields := make(map[string]any, len(rec.Fields))

		for name := range rec.Fields {
			t.counts[name]++
			fields[name+":count"] = t.counts[name]
		}

		if len(fields) == 0 {
			return nil
		}

		return models.NewRecord(rec.DataID, rec.Timestamp, fields)
	})
}

// MaxMinTransform tracks per-field extremes and emits a record holding
// only the fields that set a new max or min; inputs that set none drop.
type MaxMinTransform struct {
	maxSeen map[string]float64
	minSeen map[string]float64
}

// NewMaxMinTransform builds a max/min transform.
func NewMaxMinTransform() *MaxMinTransform {
	return &MaxMinTransform{
		maxSeen: map[string]float64{},
		minSeen: map[string]float64{},
	}
}

func (t *MaxMinTransform) Apply(in any) any {
	return each(in, func(v any) any {
		rec := asRecord(v)
		if rec == nil {
			return nil
		}

		fields := map[string]any{}

		for name, value := range rec.Fields {
			f, numeric := models.ToFloat(value)
			if !numeric {
				continue
			}

			if cur, ok := t.maxSeen[name]; !ok || f > cur {
				t.maxSeen[name] = f
				fields[name+":max"] = f
			}

			if cur, ok := t.minSeen[name]; !ok || f < cur {
				t.minSeen[name] = f
				fields[name+":min"] = f
			}
		}

		if len(fields) == 0 {
			return nil
		}

		return models.NewRecord(rec.DataID, rec.Timestamp, fields)
	})
}

// ToJSONTransform serializes records to their canonical JSON text.
type ToJSONTransform struct {
	log logger.Logger
}

// NewToJSONTransform builds a record-to-JSON transform.
func NewToJSONTransform(log logger.Logger) *ToJSONTransform {
	if log == nil {
		log = logger.Default()
	}

	return &ToJSONTransform{log: log.WithComponent("to_json_transform")}
}

func (t *ToJSONTransform) Apply(in any) any {
	return each(in, func(v any) any {
		rec := asRecord(v)
		if rec == nil {
			return nil
		}

		data, err := rec.ToJSON()
		if err != nil {
			t.log.Warn().Err(err).Msg("failed to serialize record")
			return nil
		}

		return string(data)
	})
}

// FromJSONTransform parses canonical JSON text back into records.
type FromJSONTransform struct {
	log logger.Logger
}

// NewFromJSONTransform builds a JSON-to-record transform.
func NewFromJSONTransform(log logger.Logger) *FromJSONTransform {
	if log == nil {
		log = logger.Default()
	}

	return &FromJSONTransform{log: log.WithComponent("from_json_transform")}
}

func (t *FromJSONTransform) Apply(in any) any {
	return each(in, func(v any) any {
		s, ok := asString(v)
		if !ok {
			return nil
		}

		rec, err := models.RecordFromJSON([]byte(s))
		if err != nil {
			t.log.Warn().Err(err).Msg("failed to parse record JSON")
			return nil
		}

		return rec
	})
}
