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

package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceandatatools/rvdas/pkg/models"
)

func TestConvertValue(t *testing.T) {
	tests := []struct {
		name    string
		ftype   models.FieldType
		raw     string
		want    any
		wantErr bool
	}{
		{name: "float", ftype: models.FieldFloat, raw: "234.5", want: 234.5},
		{name: "int", ftype: models.FieldInt, raw: "123", want: 123},
		{name: "int from float text", ftype: models.FieldInt, raw: "123.0", want: 123},
		{name: "int garbage", ftype: models.FieldInt, raw: "abc", wantErr: true},
		{name: "str", ftype: models.FieldStr, raw: "hello", want: "hello"},
		{name: "bool", ftype: models.FieldBool, raw: "true", want: true},
		{name: "hex bare", ftype: models.FieldHex, raw: "1A", want: 26},
		{name: "hex 0x", ftype: models.FieldHex, raw: "0x1A", want: 26},
		{name: "hex 0X", ftype: models.FieldHex, raw: "0X1a", want: 26},
		{name: "unknown type", ftype: models.FieldType("complex"), raw: "1", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ConvertValue(tc.ftype, tc.raw)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNMEADegrees(t *testing.T) {
	tests := []struct {
		name      string
		value     any
		direction string
		want      float64
		wantErr   bool
	}{
		{name: "north", value: "4530.00", direction: "N", want: 45.5},
		{name: "south", value: "3000.00", direction: "S", want: -30.0},
		{name: "east", value: 12345.6789, direction: "E", want: 123.76132},
		{name: "west", value: "4530.00", direction: "W", want: -45.5},
		{name: "bad direction", value: "4530.00", direction: "X", wantErr: true},
		{name: "bad value", value: "lat", direction: "N", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NMEADegrees(tc.value, tc.direction)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.InDelta(t, tc.want, got, 1e-9)
		})
	}
}
