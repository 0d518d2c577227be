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

func TestConvertFieldsTypes(t *testing.T) {
	tr := NewConvertFields(ConvertFieldsConfig{
		FieldTypes: map[string]models.FieldType{
			"Count": models.FieldInt,
			"Temp":  models.FieldFloat,
		},
	}, logger.NewTestLogger())

	in := models.NewRecord("mwx1", 1, map[string]any{
		"Count": "3",
		"Temp":  "19.5",
		"Name":  "deck",
	})

	out, ok := tr.Apply(in).(*models.Record)
	require.True(t, ok)

	assert.Equal(t, 3, out.Fields["Count"])
	assert.Equal(t, 19.5, out.Fields["Temp"])
	assert.Equal(t, "deck", out.Fields["Name"])

	// The input record is untouched.
	assert.Equal(t, "3", in.Fields["Count"])
}

func TestConvertFieldsBadValueDropsField(t *testing.T) {
	tr := NewConvertFields(ConvertFieldsConfig{
		FieldTypes: map[string]models.FieldType{"Count": models.FieldInt},
		Quiet:      true,
	}, logger.NewTestLogger())

	out := tr.Apply(models.NewRecord("mwx1", 1, map[string]any{"Count": "abc"}))
	assert.Nil(t, out, "record emptied by the failed conversion drops")
}

func TestConvertFieldsLatLon(t *testing.T) {
	tr := NewConvertFields(ConvertFieldsConfig{
		LatLon: map[string]LatLonSpec{
			"Longitude": {ValueField: "LonRaw", DirectionField: "LonDir"},
		},
		DeleteSourceFields: true,
	}, logger.NewTestLogger())

	out, ok := tr.Apply(models.NewRecord("s330", 1, map[string]any{
		"LonRaw": 12345.6789,
		"LonDir": "E",
	})).(*models.Record)
	require.True(t, ok)

	assert.InDelta(t, 123.76132, out.Fields["Longitude"].(float64), 1e-5)
	assert.NotContains(t, out.Fields, "LonRaw")
	assert.NotContains(t, out.Fields, "LonDir")
}

func TestConvertFieldsLatLonMissingSource(t *testing.T) {
	tr := NewConvertFields(ConvertFieldsConfig{
		LatLon: map[string]LatLonSpec{
			"Longitude": {ValueField: "LonRaw", DirectionField: "LonDir"},
		},
	}, logger.NewTestLogger())

	out, ok := tr.Apply(models.NewRecord("s330", 1, map[string]any{
		"LonRaw": 12345.6789,
	})).(*models.Record)
	require.True(t, ok)

	assert.NotContains(t, out.Fields, "Longitude")
	assert.Contains(t, out.Fields, "LonRaw")
}

func TestConvertFieldsDeleteUnconverted(t *testing.T) {
	tr := NewConvertFields(ConvertFieldsConfig{
		FieldTypes:              map[string]models.FieldType{"Temp": models.FieldFloat},
		DeleteUnconvertedFields: true,
	}, logger.NewTestLogger())

	out, ok := tr.Apply(models.NewRecord("mwx1", 1, map[string]any{
		"Temp": "1.5",
		"Junk": "x",
	})).(*models.Record)
	require.True(t, ok)

	assert.Equal(t, map[string]any{"Temp": 1.5}, out.Fields)
}
