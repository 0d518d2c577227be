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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceandatatools/rvdas/pkg/logger"
	"github.com/oceandatatools/rvdas/pkg/models"
)

func TestDeltaFirstObservationEmitsNothing(t *testing.T) {
	d := NewDelta(DeltaConfig{}, logger.NewTestLogger())

	out := d.Apply(models.NewRecord("x", 0, map[string]any{"Depth": 100.0}))
	assert.Nil(t, out)

	out = d.Apply(models.NewRecord("x", 1, map[string]any{"Depth": 103.5}))
	rec, ok := out.(*models.Record)
	require.True(t, ok)
	assert.InDelta(t, 3.5, rec.Fields["Depth"], 1e-9)
}

func TestDeltaPolarFields(t *testing.T) {
	d := NewDelta(DeltaConfig{
		Fields:      []string{"Heading"},
		PolarFields: []string{"Heading"},
	}, logger.NewTestLogger())

	d.Apply(models.NewRecord("gyr1", 0, map[string]any{"Heading": 90.0}))

	out := d.Apply(models.NewRecord("gyr1", 1, map[string]any{"Heading": 271.0}))
	rec, ok := out.(*models.Record)
	require.True(t, ok)
	assert.InDelta(t, -179.0, rec.Fields["Heading"], 1e-9)

	d2 := NewDelta(DeltaConfig{
		Fields:      []string{"Heading"},
		PolarFields: []string{"Heading"},
	}, logger.NewTestLogger())

	d2.Apply(models.NewRecord("gyr1", 0, map[string]any{"Heading": 90.0}))

	out = d2.Apply(models.NewRecord("gyr1", 1, map[string]any{"Heading": 269.0}))
	rec, ok = out.(*models.Record)
	require.True(t, ok)
	assert.InDelta(t, 179.0, rec.Fields["Heading"], 1e-9)
}

func TestDeltaRate(t *testing.T) {
	d := NewDelta(DeltaConfig{Rate: true}, logger.NewTestLogger())

	d.Apply(models.NewRecord("x", 0, map[string]any{"Speed": 5.0}))

	out := d.Apply(models.NewRecord("x", 2, map[string]any{"Speed": 6.0}))
	rec, ok := out.(*models.Record)
	require.True(t, ok)
	assert.InDelta(t, 0.5, rec.Fields["Speed"], 1e-9)
}

func TestDeltaRateRejectsNonIncreasingTimestamps(t *testing.T) {
	d := NewDelta(DeltaConfig{Rate: true}, logger.NewTestLogger())

	d.Apply(models.NewRecord("x", 5, map[string]any{"Speed": 5.0}))

	out := d.Apply(models.NewRecord("x", 5, map[string]any{"Speed": 6.0}))
	assert.Nil(t, out)
}

func TestDeltaSkipsNonNumericAndUnlistedFields(t *testing.T) {
	d := NewDelta(DeltaConfig{Fields: []string{"Depth"}}, logger.NewTestLogger())

	d.Apply(models.NewRecord("x", 0, map[string]any{
		"Depth": 10.0, "Speed": 1.0, "Name": "alpha",
	}))

	out := d.Apply(models.NewRecord("x", 1, map[string]any{
		"Depth": 12.0, "Speed": 2.0, "Name": "beta",
	}))
	rec, ok := out.(*models.Record)
	require.True(t, ok)

	assert.InDelta(t, 2.0, rec.Fields["Depth"], 1e-9)
	assert.NotContains(t, rec.Fields, "Speed")
	assert.NotContains(t, rec.Fields, "Name")
}

func TestPolarDiff(t *testing.T) {
	tests := []struct {
		last, now, want float64
	}{
		{last: 0, now: 10, want: 10},
		{last: 350, now: 10, want: 20},
		{last: 10, now: 350, want: -20},
		{last: 0, now: 180, want: 180},
		{last: 90, now: 271, want: -179},
		{last: 90, now: 269, want: 179},
	}

	for _, tc := range tests {
		assert.InDelta(t, tc.want, PolarDiff(tc.last, tc.now), 1e-9,
			"PolarDiff(%v, %v)", tc.last, tc.now)
	}
}
