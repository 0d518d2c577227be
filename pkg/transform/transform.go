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

// Package transform implements the record-to-record operators of the
// pipeline: stateless filters and converters plus the stateful derived-data
// transforms (true winds, interpolation, subsampling, deltas).
//
// A transform's Apply returns nil to drop the input, a single value, or a
// []any to fan out. Slice inputs apply element-wise with nil results
// dropped; transforms never fail on bad data, they log and drop.
package transform

import (
	"github.com/oceandatatools/rvdas/pkg/models"
)

// Transform is the single operation every operator implements. Stateful
// transforms are not safe for concurrent use; each pipeline node owns its
// transform.
type Transform interface {
	Apply(in any) any
}

// Func adapts a function to the Transform interface.
type Func func(in any) any

// Apply implements Transform.
func (f Func) Apply(in any) any { return f(in) }

// each applies fn to in, unrolling slice inputs element-wise and dropping
// nil results. A slice whose results all drop returns nil.
func each(in any, fn func(any) any) any {
	switch batch := in.(type) {
	case nil:
		return nil
	case []any:
		var out []any

		for _, elem := range batch {
			if r := each(elem, fn); r != nil {
				out = append(out, r)
			}
		}

		if out == nil {
			return nil
		}

		return out
	case []*models.Record:
		var out []any

		for _, elem := range batch {
			if r := each(elem, fn); r != nil {
				out = append(out, r)
			}
		}

		if out == nil {
			return nil
		}

		return out
	default:
		return fn(in)
	}
}

// asRecord admits *models.Record inputs; anything else drops.
func asRecord(in any) *models.Record {
	rec, _ := in.(*models.Record)
	return rec
}

// asString admits string inputs.
func asString(in any) (string, bool) {
	s, ok := in.(string)
	return s, ok
}

// timedValue is a cached observation.
type timedValue struct {
	ts    float64
	value any
}

// latestValues caches the most recent observation of each named field for
// the derived-data transforms. A strictly older update is ignored.
type latestValues struct {
	values map[string]timedValue
}

func newLatestValues() *latestValues {
	return &latestValues{values: map[string]timedValue{}}
}

// update ingests the fields of a record. It returns the names of fields
// whose cached value advanced.
func (l *latestValues) update(rec *models.Record) []string {
	var updated []string

	for name, value := range rec.Fields {
		cur, ok := l.values[name]
		if ok && rec.Timestamp < cur.ts {
			continue
		}

		l.values[name] = timedValue{ts: rec.Timestamp, value: value}

		updated = append(updated, name)
	}

	return updated
}

// float returns the cached numeric value and timestamp for a field.
func (l *latestValues) float(name string) (value, ts float64, ok bool) {
	tv, present := l.values[name]
	if !present {
		return 0, 0, false
	}

	f, numeric := models.ToFloat(tv.value)
	if !numeric {
		return 0, 0, false
	}

	return f, tv.ts, true
}

// contains reports whether name is in names; an empty names list matches
// everything.
func contains(names []string, name string) bool {
	if len(names) == 0 {
		return true
	}

	for _, n := range names {
		if n == name {
			return true
		}
	}

	return false
}
