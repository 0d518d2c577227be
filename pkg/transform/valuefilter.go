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
	"strconv"
	"strings"

	"github.com/oceandatatools/rvdas/pkg/logger"
	"github.com/oceandatatools/rvdas/pkg/models"
)

type valueBound struct {
	lower    float64
	upper    float64
	hasLower bool
	hasUpper bool
	exact    any
	hasExact bool
}

func (b valueBound) allows(value any) bool {
	if b.hasExact {
		bf, bNum := models.ToFloat(b.exact)
		vf, vNum := models.ToFloat(value)

		if bNum && vNum {
			return bf == vf
		}

		return fmt.Sprintf("%v", value) == fmt.Sprintf("%v", b.exact)
	}

	f, numeric := models.ToFloat(value)
	if !numeric {
		// Bounds only constrain numeric values.
		return true
	}

	if b.hasLower && f < b.lower {
		return false
	}

	if b.hasUpper && f > b.upper {
		return false
	}

	return true
}

// parseBounds parses a comma-separated list of field:lower:upper triples;
// either bound may be empty.
func parseBounds(spec string) (map[string]valueBound, error) {
	bounds := map[string]valueBound{}

	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		pieces := strings.Split(part, ":")
		if len(pieces) != 3 {
			return nil, fmt.Errorf("bad bounds entry %q, want field:lower:upper", part)
		}

		var b valueBound

		if pieces[1] != "" {
			lower, err := strconv.ParseFloat(pieces[1], 64)
			if err != nil {
				return nil, fmt.Errorf("bad lower bound in %q: %w", part, err)
			}

			b.lower, b.hasLower = lower, true
		}

		if pieces[2] != "" {
			upper, err := strconv.ParseFloat(pieces[2], 64)
			if err != nil {
				return nil, fmt.Errorf("bad upper bound in %q: %w", part, err)
			}

			b.upper, b.hasUpper = upper, true
		}

		bounds[pieces[0]] = b
	}

	return bounds, nil
}

// exactBounds builds bounds from a field:exact_match map.
func exactBounds(matches map[string]any) map[string]valueBound {
	bounds := make(map[string]valueBound, len(matches))

	for field, want := range matches {
		bounds[field] = valueBound{exact: want, hasExact: true}
	}

	return bounds
}

// ValueFilter drops out-of-bounds field values from records; a record left
// with no fields drops entirely.
type ValueFilter struct {
	bounds map[string]valueBound
	log    logger.Logger
}

// NewValueFilter builds a filter from a bounds spec string.
func NewValueFilter(spec string, log logger.Logger) (*ValueFilter, error) {
	bounds, err := parseBounds(spec)
	if err != nil {
		return nil, err
	}

	return newValueFilter(bounds, log), nil
}

// NewValueFilterExact builds a filter from a field:exact_match map.
func NewValueFilterExact(matches map[string]any, log logger.Logger) *ValueFilter {
	return newValueFilter(exactBounds(matches), log)
}

func newValueFilter(bounds map[string]valueBound, log logger.Logger) *ValueFilter {
	if log == nil {
		log = logger.Default()
	}

	return &ValueFilter{bounds: bounds, log: log.WithComponent("value_filter")}
}

func (t *ValueFilter) Apply(in any) any {
	return each(in, func(v any) any {
		rec := asRecord(v)
		if rec == nil {
			return nil
		}

		out := rec.Copy()

		for field, bound := range t.bounds {
			value, ok := out.Fields[field]
			if !ok {
				continue
			}

			if !bound.allows(value) {
				t.log.Debug().Str("field", field).Str("value", fmt.Sprintf("%v", value)).
					Msg("filtering out-of-bounds field value")
				delete(out.Fields, field)
				delete(out.Metadata, field)
			}
		}

		if len(out.Fields) == 0 {
			return nil
		}

		return out
	})
}

// ValueFilterIgnore drops the entire record when any bounded field is out
// of bounds. It warns on the first drop, then goes silent.
type ValueFilterIgnore struct {
	bounds map[string]valueBound
	log    logger.Logger
	warned bool
}

// NewValueFilterIgnore builds an ignore-filter from a bounds spec string.
func NewValueFilterIgnore(spec string, log logger.Logger) (*ValueFilterIgnore, error) {
	bounds, err := parseBounds(spec)
	if err != nil {
		return nil, err
	}

	if log == nil {
		log = logger.Default()
	}

	return &ValueFilterIgnore{
		bounds: bounds,
		log:    log.WithComponent("value_filter_ignore"),
	}, nil
}

// NewValueFilterIgnoreExact builds an ignore-filter from a field:exact map.
func NewValueFilterIgnoreExact(matches map[string]any, log logger.Logger) *ValueFilterIgnore {
	if log == nil {
		log = logger.Default()
	}

	return &ValueFilterIgnore{
		bounds: exactBounds(matches),
		log:    log.WithComponent("value_filter_ignore"),
	}
}

func (t *ValueFilterIgnore) Apply(in any) any {
	return each(in, func(v any) any {
		rec := asRecord(v)
		if rec == nil {
			return nil
		}

		for field, bound := range t.bounds {
			value, ok := rec.Fields[field]
			if !ok {
				continue
			}

			if !bound.allows(value) {
				if !t.warned {
					t.log.Warn().Str("field", field).
						Str("value", fmt.Sprintf("%v", value)).
						Msg("ignoring records with out-of-bounds values; further drops are silent")

					t.warned = true
				}

				return nil
			}
		}

		return rec
	})
}
