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
	"sort"

	"github.com/oceandatatools/rvdas/pkg/logger"
	"github.com/oceandatatools/rvdas/pkg/models"
)

// SubsampleSpec controls one subsampled output field.
type SubsampleSpec struct {
	Source    string    `json:"source" yaml:"source"`
	Algorithm Algorithm `json:"algorithm" yaml:"algorithm"`
	// Interval is the emission spacing, seconds.
	Interval float64 `json:"interval" yaml:"interval"`
	// Window is the symmetric sampling window, seconds; defaults to
	// Interval.
	Window float64 `json:"window" yaml:"window"`
}

// Subsample reduces the rate of selected fields. Unlike Interpolation,
// emission is driven per output field by its own last-emitted timestamp.
type Subsample struct {
	specs  map[string]SubsampleSpec
	values map[string][]timedValue
	// lastEmitted tracks, per output field, the timestamp of its last
	// emission; zero means none yet.
	lastEmitted map[string]float64
	dataID      string
	log         logger.Logger
}

// NewSubsample builds the transform; dataID stamps emitted records.
func NewSubsample(specs map[string]SubsampleSpec, dataID string, log logger.Logger) *Subsample {
	if log == nil {
		log = logger.Default()
	}

	normalized := make(map[string]SubsampleSpec, len(specs))

	for output, spec := range specs {
		if spec.Window == 0 {
			spec.Window = spec.Interval
		}

		normalized[output] = spec
	}

	return &Subsample{
		specs:       normalized,
		values:      map[string][]timedValue{},
		lastEmitted: map[string]float64{},
		dataID:      dataID,
		log:         log.WithComponent("subsample"),
	}
}

func (t *Subsample) Apply(in any) any {
	recs, err := models.ToRecords(in)
	if err != nil {
		t.log.Info().Err(err).Msg("subsample got uninterpretable input")
		return nil
	}

	for _, rec := range recs {
		t.ingest(rec)
	}

	var out []any

	for output, spec := range t.specs {
		for _, tv := range t.subsample(output, spec) {
			out = append(out, models.NewRecord(t.dataID, tv.ts,
				map[string]any{output: tv.value}))
		}
	}

	if out == nil {
		return nil
	}

	if len(out) == 1 {
		return out[0]
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].(*models.Record).Timestamp < out[j].(*models.Record).Timestamp
	})

	return out
}

func (t *Subsample) ingest(rec *models.Record) {
	for _, spec := range t.specs {
		value, ok := rec.Fields[spec.Source]
		if !ok {
			continue
		}

		queue := t.values[spec.Source]
		tv := timedValue{ts: rec.Timestamp, value: value}

		if n := len(queue); n == 0 || queue[n-1].ts <= tv.ts {
			queue = append(queue, tv)
		} else {
			i := sort.Search(n, func(j int) bool { return queue[j].ts > tv.ts })
			queue = append(queue, timedValue{})
			copy(queue[i+1:], queue[i:])
			queue[i] = tv
		}

		t.values[spec.Source] = queue
	}
}

// subsample returns the (ts, value) pairs now due for one output field and
// advances its last-emitted watermark, pruning values that can no longer
// contribute.
func (t *Subsample) subsample(output string, spec SubsampleSpec) []timedValue {
	queue := t.values[spec.Source]
	if len(queue) == 0 {
		return nil
	}

	half := spec.Window / 2
	latest := queue[len(queue)-1].ts

	next := t.lastEmitted[output] + spec.Interval
	if t.lastEmitted[output] == 0 {
		next = queue[0].ts + half
	}

	var emitted []timedValue

	for next+half <= latest {
		value := applyAlgorithm(spec.Algorithm, queue, next, half, t.log)
		if value != nil {
			emitted = append(emitted, timedValue{ts: next, value: value})
		}

		t.lastEmitted[output] = next
		next += spec.Interval
	}

	// Values older than the window behind the watermark are done.
	if last := t.lastEmitted[output]; last > 0 {
		cutoff := last + spec.Interval - half

		i := 0
		for i < len(queue) && queue[i].ts < cutoff {
			i++
		}

		if i > 0 {
			t.values[spec.Source] = queue[i:]
		}
	}

	return emitted
}
