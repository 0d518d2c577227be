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
	"math"

	"github.com/oceandatatools/rvdas/pkg/logger"
	"github.com/oceandatatools/rvdas/pkg/models"
)

// DeltaConfig controls the delta transform.
type DeltaConfig struct {
	// Fields restricts which fields get differenced; empty means all
	// numeric fields.
	Fields []string `json:"fields" yaml:"fields"`
	// PolarFields are differenced on the circle, yielding the signed
	// minimal angle in (-180, 180].
	PolarFields []string `json:"polar_fields" yaml:"polar_fields"`
	// Rate divides each delta by the timestamp delta. RateFields can
	// instead select rate behavior per field.
	Rate       bool `json:"rate" yaml:"rate"`
	RateFields []string `json:"rate_fields" yaml:"rate_fields"`
}

// Delta emits per-field differences (or rates) between successive
// observations. The first observation of a field emits nothing for it.
type Delta struct {
	cfg  DeltaConfig
	last map[string]timedValue
	log  logger.Logger
}

// NewDelta builds the transform.
func NewDelta(cfg DeltaConfig, log logger.Logger) *Delta {
	if log == nil {
		log = logger.Default()
	}

	return &Delta{
		cfg:  cfg,
		last: map[string]timedValue{},
		log:  log.WithComponent("delta"),
	}
}

func (t *Delta) Apply(in any) any {
	return each(in, func(v any) any {
		rec := asRecord(v)
		if rec == nil {
			return nil
		}

		fields := map[string]any{}

		for name, value := range rec.Fields {
			if !contains(t.cfg.Fields, name) {
				continue
			}

			f, numeric := models.ToFloat(value)
			if !numeric {
				continue
			}

			prev, seen := t.last[name]
			t.last[name] = timedValue{ts: rec.Timestamp, value: f}

			if !seen {
				continue
			}

			prevValue, _ := models.ToFloat(prev.value)

			var delta float64
			if contains2(t.cfg.PolarFields, name) {
				delta = PolarDiff(prevValue, f)
			} else {
				delta = f - prevValue
			}

			if t.rateWanted(name) {
				dt := rec.Timestamp - prev.ts
				if dt <= 0 {
					t.log.Warn().Str("field", name).Float64("dt", dt).
						Msg("non-increasing timestamps, dropping rate")
					continue
				}

				delta /= dt
			}

			fields[name] = delta
		}

		if len(fields) == 0 {
			return nil
		}

		return models.NewRecord(rec.DataID, rec.Timestamp, fields)
	})
}

func (t *Delta) rateWanted(field string) bool {
	if len(t.cfg.RateFields) > 0 {
		return contains2(t.cfg.RateFields, field)
	}

	return t.cfg.Rate
}

// contains2 is contains without the empty-matches-everything rule.
func contains2(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}

	return false
}

// PolarDiff returns the signed minimal angle from last to now in
// (-180, 180].
func PolarDiff(last, now float64) float64 {
	d := math.Mod(now-last+180, 360)
	if d < 0 {
		d += 360
	}

	d -= 180

	if d == -180 {
		return 180
	}

	return d
}
