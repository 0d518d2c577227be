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

package recordstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceandatatools/rvdas/pkg/logger"
	"github.com/oceandatatools/rvdas/pkg/models"
)

func TestTableName(t *testing.T) {
	tests := []struct {
		dataID string
		want   string
	}{
		{"gyr1", "data_gyr1"},
		{"GYR1", "data_gyr1"},
		{"s330-gps", "data_s330_gps"},
		{"mwx1 deck", "data_mwx1_deck"},
		{"", "data_unknown"},
	}

	for _, tc := range tests {
		rec := models.NewRecord(tc.dataID, 0, nil)
		assert.Equal(t, tc.want, TableName(rec), "data_id %q", tc.dataID)
	}
}

func TestCheckTableName(t *testing.T) {
	assert.NoError(t, checkTableName("data_gyr1"))
	assert.NoError(t, checkTableName("_private"))

	assert.ErrorIs(t, checkTableName("1bad"), errBadTableName)
	assert.ErrorIs(t, checkTableName("drop table;--"), errBadTableName)
	assert.ErrorIs(t, checkTableName(""), errBadTableName)
}

func TestColumnType(t *testing.T) {
	assert.Equal(t, "BOOLEAN", columnType(true))
	assert.Equal(t, "BIGINT", columnType(42))
	assert.Equal(t, "BIGINT", columnType(int64(42)))
	assert.Equal(t, "DOUBLE PRECISION", columnType(234.5))
	assert.Equal(t, "TEXT", columnType("hdg"))
	assert.Equal(t, "TEXT", columnType(nil))
}

func TestFieldWanted(t *testing.T) {
	assert.True(t, fieldWanted([]string{"Heading", "Speed"}, "Speed"))
	assert.False(t, fieldWanted([]string{"Heading"}, "Speed"))
	assert.False(t, fieldWanted(nil, "Speed"))
}

func TestSeek(t *testing.T) {
	s := NewPostgresStore(nil, logger.NewTestLogger())

	require.NoError(t, s.Seek("data_gyr1", 10, SeekStart))
	assert.Equal(t, 10, s.cursors["data_gyr1"])

	require.NoError(t, s.Seek("data_gyr1", 5, SeekCurrent))
	assert.Equal(t, 15, s.cursors["data_gyr1"])

	// Empty origin behaves as current.
	require.NoError(t, s.Seek("data_gyr1", -5, ""))
	assert.Equal(t, 10, s.cursors["data_gyr1"])

	// Seeking before the start clamps to zero.
	require.NoError(t, s.Seek("data_gyr1", -100, SeekCurrent))
	assert.Equal(t, 0, s.cursors["data_gyr1"])

	assert.Error(t, s.Seek("data_gyr1", 0, "sideways"))
}

func TestSeekEnd(t *testing.T) {
	s := NewPostgresStore(nil, logger.NewTestLogger())

	// End-relative cursors stay negative until Read resolves them.
	require.NoError(t, s.Seek("data_gyr1", 3, SeekEnd))
	assert.Equal(t, -3, s.cursors["data_gyr1"])
}

func TestClampStart(t *testing.T) {
	// "last 3 of 10" starts at row 7.
	assert.Equal(t, 7, clampStart(-3, 10))

	// Asking for more rows than exist starts at the beginning.
	assert.Equal(t, 0, clampStart(-5, 3))
	assert.Equal(t, 0, clampStart(-3, 3))

	// Non-negative cursors pass through.
	assert.Equal(t, 0, clampStart(0, 10))
	assert.Equal(t, 4, clampStart(4, 10))
}
