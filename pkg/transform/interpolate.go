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
	"sort"

	"github.com/oceandatatools/rvdas/pkg/logger"
	"github.com/oceandatatools/rvdas/pkg/models"
)

// Algorithm names an interpolation algorithm.
type Algorithm string

const (
	BoxcarAverage Algorithm = "boxcar_average"
	Nearest       Algorithm = "nearest"
	PolarAverage  Algorithm = "polar_average"
)

// OutputSpec binds an interpolated output field to its source field and
// algorithm.
type OutputSpec struct {
	Source    string    `json:"source" yaml:"source"`
	Algorithm Algorithm `json:"algorithm" yaml:"algorithm"`
}

// InterpolationConfig controls the interpolation transform.
type InterpolationConfig struct {
	// FieldSpec maps output field name to its spec.
	FieldSpec map[string]OutputSpec `json:"field_spec" yaml:"field_spec"`
	// Interval is the emission spacing, seconds.
	Interval float64 `json:"interval" yaml:"interval"`
	// Window is the symmetric sampling window, seconds.
	Window float64 `json:"window" yaml:"window"`
	// DataID stamps emitted records when non-empty.
	DataID string `json:"data_id" yaml:"data_id"`
}

// Interpolation caches per-source observations and emits records of
// interpolated values every Interval seconds of record time, once the
// half-window behind the emission point has filled.
type Interpolation struct {
	cfg    InterpolationConfig
	values map[string][]timedValue
	next   float64
	log    logger.Logger
}

// NewInterpolation builds the transform.
func NewInterpolation(cfg InterpolationConfig, log logger.Logger) *Interpolation {
	if log == nil {
		log = logger.Default()
	}

	return &Interpolation{
		cfg:    cfg,
		values: map[string][]timedValue{},
		log:    log.WithComponent("interpolation"),
	}
}

func (t *Interpolation) Apply(in any) any {
	recs, err := models.ToRecords(in)
	if err != nil {
		t.log.Info().Err(err).Msg("interpolation got uninterpretable input")
		return nil
	}

	for _, rec := range recs {
		t.ingest(rec)
	}

	var out []any

	for {
		rec, due := t.emitNext()
		if !due {
			break
		}

		if rec != nil {
			out = append(out, rec)
		}
	}

	if out == nil {
		return nil
	}

	if len(out) == 1 {
		return out[0]
	}

	return out
}

func (t *Interpolation) ingest(rec *models.Record) {
	for _, spec := range t.cfg.FieldSpec {
		value, ok := rec.Fields[spec.Source]
		if !ok {
			continue
		}

		queue := t.values[spec.Source]
		tv := timedValue{ts: rec.Timestamp, value: value}

		// Records usually arrive in time order; fall back to a sorted
		// insert when one is late.
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

// emitNext emits one record at the next emission timestamp if the
// half-window past it has filled, advancing and pruning. due is false when
// the queue has not yet reached the next emission point.
func (t *Interpolation) emitNext() (rec *models.Record, due bool) {
	oldest, latest, ok := t.timeRange()
	if !ok {
		return nil, false
	}

	half := t.cfg.Window / 2

	if t.next < oldest+half {
		t.next = oldest + half
	}

	if t.next > latest-half {
		return nil, false
	}

	fields := map[string]any{}

	for output, spec := range t.cfg.FieldSpec {
		value := t.interpolate(spec, t.next, half)
		if value != nil {
			fields[output] = value
		}
	}

	ts := t.next
	t.next += t.cfg.Interval
	t.prune(t.next - half)

	if len(fields) == 0 {
		return nil, true
	}

	return models.NewRecord(t.cfg.DataID, ts, fields), true
}

func (t *Interpolation) timeRange() (oldest, latest float64, ok bool) {
	first := true

	for _, queue := range t.values {
		if len(queue) == 0 {
			continue
		}

		if first {
			oldest, latest = queue[0].ts, queue[len(queue)-1].ts
			first = false

			continue
		}

		if queue[0].ts < oldest {
			oldest = queue[0].ts
		}

		if queue[len(queue)-1].ts > latest {
			latest = queue[len(queue)-1].ts
		}
	}

	return oldest, latest, !first
}

func (t *Interpolation) prune(before float64) {
	for source, queue := range t.values {
		i := 0
		for i < len(queue) && queue[i].ts < before {
			i++
		}

		if i > 0 {
			t.values[source] = queue[i:]
		}
	}
}

func (t *Interpolation) interpolate(spec OutputSpec, at, half float64) any {
	return applyAlgorithm(spec.Algorithm, t.values[spec.Source], at, half, t.log)
}

// applyAlgorithm evaluates one interpolation algorithm over a sorted
// queue at the given timestamp.
func applyAlgorithm(alg Algorithm, queue []timedValue, at, half float64, log logger.Logger) any {
	switch alg {
	case BoxcarAverage:
		return boxcarAverage(queue, at, half, log)
	case Nearest:
		return nearestValue(queue, at)
	case PolarAverage:
		return polarAverage(queue, at, half, log)
	default:
		log.Error().Str("algorithm", string(alg)).
			Msg("unknown interpolation algorithm")
		return nil
	}
}

// boxcarAverage is the arithmetic mean of values in [at-half, at+half];
// nil when the window is empty or a value is non-numeric.
func boxcarAverage(queue []timedValue, at, half float64, log logger.Logger) any {
	var sum float64

	count := 0

	for _, tv := range queue {
		if tv.ts < at-half || tv.ts > at+half {
			continue
		}

		f, numeric := models.ToFloat(tv.value)
		if !numeric {
			log.Error().Interface("value", tv.value).
				Msg("non-numeric value in boxcar average")
			return nil
		}

		sum += f
		count++
	}

	if count == 0 {
		return nil
	}

	return sum / float64(count)
}

// nearestValue picks the value whose timestamp minimizes |ts - at|; ties
// go to the earlier timestamp. Iteration stops once distance starts to
// grow, which the sorted queue guarantees is final.
func nearestValue(queue []timedValue, at float64) any {
	if len(queue) == 0 {
		return nil
	}

	best := queue[0]
	bestDist := math.Abs(best.ts - at)

	for _, tv := range queue[1:] {
		dist := math.Abs(tv.ts - at)
		if dist >= bestDist {
			break
		}

		best, bestDist = tv, dist
	}

	return best.value
}

// polarAverage is boxcarAverage on the unit circle: average sin and cos
// independently and recover the angle, continuous across 0/360.
func polarAverage(queue []timedValue, at, half float64, log logger.Logger) any {
	var sinSum, cosSum float64

	count := 0

	for _, tv := range queue {
		if tv.ts < at-half || tv.ts > at+half {
			continue
		}

		f, numeric := models.ToFloat(tv.value)
		if !numeric {
			log.Error().Interface("value", tv.value).
				Msg("non-numeric value in polar average")
			return nil
		}

		rad := f * math.Pi / 180
		sinSum += math.Sin(rad)
		cosSum += math.Cos(rad)
		count++
	}

	if count == 0 {
		return nil
	}

	deg := math.Atan2(sinSum/float64(count), cosSum/float64(count)) * 180 / math.Pi
	if deg < 0 {
		deg += 360
	}

	return deg
}
