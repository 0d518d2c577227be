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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceandatatools/rvdas/pkg/logger"
	"github.com/oceandatatools/rvdas/pkg/models"
)

func speedRecord(ts, speed float64) *models.Record {
	return models.NewRecord("s330", ts, map[string]any{"Speed": speed})
}

func TestInterpolationBoxcarEmission(t *testing.T) {
	interp := NewInterpolation(InterpolationConfig{
		FieldSpec: map[string]OutputSpec{
			"AvgSpeed": {Source: "Speed", Algorithm: BoxcarAverage},
		},
		Interval: 10,
		Window:   30,
		DataID:   "der",
	}, logger.NewTestLogger())

	// Nothing emits until the half-window past the emission point fills.
	assert.Nil(t, interp.Apply(speedRecord(0, 1)))
	assert.Nil(t, interp.Apply(speedRecord(10, 2)))
	assert.Nil(t, interp.Apply(speedRecord(20, 3)))

	out := interp.Apply(speedRecord(30, 4))
	rec, ok := out.(*models.Record)
	require.True(t, ok)

	assert.Equal(t, "der", rec.DataID)
	assert.InDelta(t, 15.0, rec.Timestamp, 1e-9)
	assert.InDelta(t, 2.5, rec.Fields["AvgSpeed"], 1e-9)

	// The next emission point is 25; its window closes at ts 40.
	assert.Nil(t, interp.Apply(speedRecord(35, 5)))

	out = interp.Apply(speedRecord(40, 6))
	rec, ok = out.(*models.Record)
	require.True(t, ok)
	assert.InDelta(t, 25.0, rec.Timestamp, 1e-9)
}

func TestInterpolationUninterpretableInput(t *testing.T) {
	interp := NewInterpolation(InterpolationConfig{
		FieldSpec: map[string]OutputSpec{
			"AvgSpeed": {Source: "Speed", Algorithm: BoxcarAverage},
		},
		Interval: 10,
		Window:   30,
	}, logger.NewTestLogger())

	assert.Nil(t, interp.Apply(struct{}{}))
}

func TestNearestValue(t *testing.T) {
	queue := []timedValue{
		{ts: 0, value: "a"},
		{ts: 10, value: "b"},
		{ts: 20, value: "c"},
	}

	assert.Equal(t, "a", nearestValue(queue, 4))
	assert.Equal(t, "b", nearestValue(queue, 6))
	assert.Equal(t, "c", nearestValue(queue, 100))
	assert.Nil(t, nearestValue(nil, 5))
}

func TestBoxcarAverageWindow(t *testing.T) {
	queue := []timedValue{
		{ts: 0, value: 1.0},
		{ts: 10, value: 2.0},
		{ts: 100, value: 50.0},
	}

	got := boxcarAverage(queue, 5, 10, logger.NewTestLogger())
	require.NotNil(t, got)
	assert.InDelta(t, 1.5, got.(float64), 1e-9)

	assert.Nil(t, boxcarAverage(queue, 50, 10, logger.NewTestLogger()),
		"empty window yields nil")
}

func TestPolarAverageWrapsAcrossNorth(t *testing.T) {
	angles := []float64{345, 350, 355, 0, 5, 10, 15}

	queue := make([]timedValue, len(angles))
	for i, a := range angles {
		queue[i] = timedValue{ts: float64(i), value: a}
	}

	got := polarAverage(queue, 3, 10, logger.NewTestLogger())
	require.NotNil(t, got)

	deg := got.(float64)
	dist := math.Min(deg, 360-deg)
	assert.InDelta(t, 0.0, dist, 1e-6, "average of angles straddling north is north")
}

func TestApplyAlgorithmUnknown(t *testing.T) {
	got := applyAlgorithm(Algorithm("spline"), nil, 0, 0, logger.NewTestLogger())
	assert.Nil(t, got)
}
