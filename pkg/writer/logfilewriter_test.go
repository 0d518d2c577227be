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

package writer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceandatatools/rvdas/pkg/logger"
)

func readFile(t *testing.T, path string) string {
	t.Helper()

	data, err := os.ReadFile(path)
	require.NoError(t, err, "expected output file %s", path)

	return string(data)
}

func TestLogfileWriterDailySplit(t *testing.T) {
	dir := t.TempDir()
	filebase := filepath.Join(dir, "sea")

	w, err := NewLogfileWriter(LogfileConfig{Filebase: filebase}, logger.NewTestLogger())
	require.NoError(t, err)

	lines := []string{
		"2020-08-11T13:01:38.000Z gyr1 $HEHDT,234.5,T",
		"2020-08-12T13:01:38.000Z gyr1 $HEHDT,235.0,T",
		"2020-08-13T13:01:38.000Z gyr1 $HEHDT,235.5,T",
	}

	for _, line := range lines {
		require.NoError(t, w.Write(line))
	}

	require.NoError(t, w.Close())

	assert.Equal(t, lines[0]+"\n", readFile(t, filebase+"-2020-08-11"))
	assert.Equal(t, lines[1]+"\n", readFile(t, filebase+"-2020-08-12"))
	assert.Equal(t, lines[2]+"\n", readFile(t, filebase+"-2020-08-13"))
}

func TestLogfileWriterHourlySplit(t *testing.T) {
	dir := t.TempDir()
	filebase := filepath.Join(dir, "sea")

	w, err := NewLogfileWriter(LogfileConfig{
		Filebase:      filebase,
		SplitInterval: "1H",
	}, logger.NewTestLogger())
	require.NoError(t, err)

	require.NoError(t, w.Write("2020-08-11T13:01:38.000Z one"))
	require.NoError(t, w.Write("2020-08-11T13:59:59.000Z two"))
	require.NoError(t, w.Write("2020-08-11T14:00:00.000Z three"))
	require.NoError(t, w.Close())

	assert.Equal(t,
		"2020-08-11T13:01:38.000Z one\n2020-08-11T13:59:59.000Z two\n",
		readFile(t, filebase+"-2020-08-11_13"))
	assert.Equal(t,
		"2020-08-11T14:00:00.000Z three\n",
		readFile(t, filebase+"-2020-08-11_14"))
}

func TestLogfileWriterFilebaseMapRouting(t *testing.T) {
	dir := t.TempDir()

	w, err := NewLogfileWriter(LogfileConfig{
		FilebaseMap: map[string]string{
			"AAA": filepath.Join(dir, "A"),
			"BBB": filepath.Join(dir, "B"),
		},
		Suffix:    ".log",
		SuffixMap: map[string]string{"BBB": ".txt"},
	}, logger.NewTestLogger())
	require.NoError(t, err)

	require.NoError(t, w.Write("2017-11-03T17:23:04.832Z AAA hello"))
	require.NoError(t, w.Write("2017-11-04T00:00:00.000Z BBB there"))
	require.NoError(t, w.Write("2017-11-04T00:00:01.000Z CCC unmatched"))
	require.NoError(t, w.Close())

	assert.Equal(t, "2017-11-03T17:23:04.832Z AAA hello\n",
		readFile(t, filepath.Join(dir, "A-2017-11-03.log")))
	assert.Equal(t, "2017-11-04T00:00:00.000Z BBB there\n",
		readFile(t, filepath.Join(dir, "B-2017-11-04.txt")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "unmatched records write nowhere")
}

func TestLogfileWriterHeaderOnNewBucket(t *testing.T) {
	dir := t.TempDir()
	filebase := filepath.Join(dir, "sea")

	w, err := NewLogfileWriter(LogfileConfig{
		Filebase: filebase,
		Header:   "# rvdas log",
	}, logger.NewTestLogger())
	require.NoError(t, err)

	require.NoError(t, w.Write("2020-08-11T13:01:38.000Z one"))
	require.NoError(t, w.Write("2020-08-12T13:01:38.000Z two"))
	require.NoError(t, w.Close())

	assert.Equal(t, "# rvdas log\n2020-08-11T13:01:38.000Z one\n",
		readFile(t, filebase+"-2020-08-11"))
	assert.Equal(t, "# rvdas log\n2020-08-12T13:01:38.000Z two\n",
		readFile(t, filebase+"-2020-08-12"))
}

func TestLogfileWriterUnparseableTimestampDrops(t *testing.T) {
	dir := t.TempDir()

	w, err := NewLogfileWriter(LogfileConfig{
		Filebase: filepath.Join(dir, "sea"),
	}, logger.NewTestLogger())
	require.NoError(t, err)

	require.NoError(t, w.Write("no timestamp here"))
	require.NoError(t, w.Close())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLogfileWriterValidation(t *testing.T) {
	log := logger.NewTestLogger()

	_, err := NewLogfileWriter(LogfileConfig{Filebase: "x", SplitInterval: "7H"}, log)
	assert.ErrorIs(t, err, errBadSplitInterval)

	_, err = NewLogfileWriter(LogfileConfig{Filebase: "x", SplitInterval: "soon"}, log)
	assert.ErrorIs(t, err, errBadSplitInterval)

	_, err = NewLogfileWriter(LogfileConfig{
		Filebase: "x", SplitInterval: "6H", DateFormat: "-%Y-%m-%d",
	}, log)
	assert.ErrorIs(t, err, errBadDateFormat)

	_, err = NewLogfileWriter(LogfileConfig{}, log)
	assert.ErrorIs(t, err, errNoFilebase)

	_, err = NewLogfileWriter(LogfileConfig{FilebaseMap: map[string]string{"(": "x"}}, log)
	assert.Error(t, err)
}
