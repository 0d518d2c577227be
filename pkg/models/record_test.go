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

package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordJSONRoundTrip(t *testing.T) {
	rec := NewRecord("gyr1", 1672531200.5, map[string]any{
		"Heading": 234.5,
		"Source":  "gyro",
		"Count":   3,
		"Valid":   true,
	})
	rec.MessageType = "$HEHDT"
	rec.SetMetadata("Heading", map[string]string{"units": "degrees"})

	raw, err := rec.ToJSON()
	require.NoError(t, err)

	back, err := RecordFromJSON(raw)
	require.NoError(t, err)

	assert.True(t, rec.Equal(back), "record should equal its JSON round trip")
	assert.Equal(t, "gyr1", back.DataID)
	assert.Equal(t, "$HEHDT", back.MessageType)
	assert.InDelta(t, 1672531200.5, back.Timestamp, 1e-9)
}

func TestRecordEqualNumericNormalization(t *testing.T) {
	a := NewRecord("x", 10, map[string]any{"n": 3})
	b := NewRecord("x", 10, map[string]any{"n": 3.0})

	assert.True(t, a.Equal(b), "int and float of the same value compare equal")

	c := NewRecord("x", 10, map[string]any{"n": 4})
	assert.False(t, a.Equal(c))
}

func TestRecordCopyIsDeep(t *testing.T) {
	rec := NewRecord("x", 10, map[string]any{"a": 1})
	rec.SetMetadata("a", map[string]string{"units": "m"})

	cp := rec.Copy()
	cp.Fields["a"] = 2
	cp.Metadata["a"]["units"] = "ft"

	assert.Equal(t, 1, rec.Fields["a"])
	assert.Equal(t, "m", rec.Metadata["a"]["units"])
}

func TestToRecordsSingleAndSlice(t *testing.T) {
	rec := NewRecord("x", 10, map[string]any{"a": 1})

	recs, err := ToRecords(rec)
	require.NoError(t, err)
	require.Len(t, recs, 1)

	recs, err = ToRecords([]any{rec, rec.Copy()})
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestToRecordsTimestampFieldsMap(t *testing.T) {
	recs, err := ToRecords(map[string]any{
		"data_id":   "s330",
		"timestamp": 100.0,
		"fields":    map[string]any{"Lat": 45.5},
	})
	require.NoError(t, err)
	require.Len(t, recs, 1)

	assert.Equal(t, "s330", recs[0].DataID)
	assert.InDelta(t, 100.0, recs[0].Timestamp, 1e-9)
	assert.Equal(t, 45.5, recs[0].Fields["Lat"])
}

func TestToRecordsFieldDict(t *testing.T) {
	recs, err := ToRecords(map[string]any{
		"Speed":   []any{[]any{2.0, 5.1}, []any{1.0, 5.0}},
		"Heading": []any{[]any{1.0, 90.0}},
	})
	require.NoError(t, err)
	require.Len(t, recs, 2)

	// Regrouped by timestamp, sorted ascending.
	assert.InDelta(t, 1.0, recs[0].Timestamp, 1e-9)
	assert.Equal(t, 5.0, recs[0].Fields["Speed"])
	assert.Equal(t, 90.0, recs[0].Fields["Heading"])

	assert.InDelta(t, 2.0, recs[1].Timestamp, 1e-9)
	assert.Equal(t, 5.1, recs[1].Fields["Speed"])
	_, hasHeading := recs[1].Fields["Heading"]
	assert.False(t, hasHeading)
}

func TestToRecordsRejectsUnknownShape(t *testing.T) {
	_, err := ToRecords(42)
	assert.Error(t, err)
}
