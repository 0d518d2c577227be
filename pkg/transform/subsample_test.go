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

func speedAt(ts, v float64) *models.Record {
	return models.NewRecord("s330", ts, map[string]any{"Speed": v})
}

func TestSubsampleEmission(t *testing.T) {
	tr := NewSubsample(map[string]SubsampleSpec{
		"AvgSpeed": {Source: "Speed", Algorithm: BoxcarAverage, Interval: 10},
	}, "der", logger.NewTestLogger())

	// Window defaults to the interval; the first emission lands half a
	// window past the oldest observation.
	out := tr.Apply([]any{speedAt(0, 1), speedAt(10, 2), speedAt(20, 3)})
	require.IsType(t, []any{}, out)

	recs := out.([]any)
	require.Len(t, recs, 2)

	first := recs[0].(*models.Record)
	assert.Equal(t, "der", first.DataID)
	assert.InDelta(t, 5.0, first.Timestamp, 1e-9)
	assert.InDelta(t, 1.5, first.Fields["AvgSpeed"].(float64), 1e-9)

	second := recs[1].(*models.Record)
	assert.InDelta(t, 15.0, second.Timestamp, 1e-9)
	assert.InDelta(t, 2.5, second.Fields["AvgSpeed"].(float64), 1e-9)

	// The watermark advances by one interval per emission.
	out = tr.Apply(speedAt(30, 4))
	rec, ok := out.(*models.Record)
	require.True(t, ok)
	assert.InDelta(t, 25.0, rec.Timestamp, 1e-9)
	assert.InDelta(t, 3.5, rec.Fields["AvgSpeed"].(float64), 1e-9)
}

func TestSubsampleNothingDueYet(t *testing.T) {
	tr := NewSubsample(map[string]SubsampleSpec{
		"AvgSpeed": {Source: "Speed", Algorithm: BoxcarAverage, Interval: 10},
	}, "der", logger.NewTestLogger())

	assert.Nil(t, tr.Apply(speedAt(0, 1)))
	assert.Nil(t, tr.Apply(models.NewRecord("s330", 5, map[string]any{"Heading": 90.0})))
}

func TestSubsampleUninterpretableInput(t *testing.T) {
	tr := NewSubsample(map[string]SubsampleSpec{
		"AvgSpeed": {Source: "Speed", Algorithm: BoxcarAverage, Interval: 10},
	}, "der", logger.NewTestLogger())

	assert.Nil(t, tr.Apply(42))
}
