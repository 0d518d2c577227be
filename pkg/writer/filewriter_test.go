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
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceandatatools/rvdas/pkg/logger"
)

func TestTextFileWriterAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.txt")

	w, err := NewTextFileWriter(FileConfig{Filename: path}, logger.NewTestLogger())
	require.NoError(t, err)

	require.NoError(t, w.Write("one"))
	require.NoError(t, w.Write("two"))
	require.NoError(t, w.Close())

	assert.Equal(t, "one\ntwo\n", readFile(t, path))
}

func TestTextFileWriterCustomDelimiter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.txt")
	delim := ""

	w, err := NewTextFileWriter(FileConfig{
		Filename:  path,
		Delimiter: &delim,
	}, logger.NewTestLogger())
	require.NoError(t, err)

	require.NoError(t, w.Write("one"))
	require.NoError(t, w.Write("two"))
	require.NoError(t, w.Close())

	assert.Equal(t, "onetwo", readFile(t, path))
}

func TestTextFileWriterHeaderOncePerFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.txt")

	w, err := NewTextFileWriter(FileConfig{
		Filename: path,
		Header:   "# header",
	}, logger.NewTestLogger())
	require.NoError(t, err)

	require.NoError(t, w.Write("one"))
	require.NoError(t, w.Close())

	// Reopening the same non-empty file must not repeat the header.
	w, err = NewTextFileWriter(FileConfig{
		Filename: path,
		Header:   "# header",
	}, logger.NewTestLogger())
	require.NoError(t, err)

	require.NoError(t, w.Write("two"))
	require.NoError(t, w.Close())

	assert.Equal(t, "# header\none\ntwo\n", readFile(t, path))
}

func TestTextFileWriterSplitByTime(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out")

	w, err := NewTextFileWriter(FileConfig{
		Filename:    path,
		SplitByTime: true,
	}, logger.NewTestLogger())
	require.NoError(t, err)

	now := time.Date(2020, 8, 11, 12, 0, 0, 0, time.UTC)
	w.Now = func() time.Time { return now }

	require.NoError(t, w.Write("day one"))

	now = now.Add(24 * time.Hour)

	require.NoError(t, w.Write("day two"))
	require.NoError(t, w.Close())

	assert.Equal(t, "day one\n", readFile(t, path+"-2020-08-11"))
	assert.Equal(t, "day two\n", readFile(t, path+"-2020-08-12"))
}

func TestTextFileWriterCreateDirs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deeper", "out.txt")

	w, err := NewTextFileWriter(FileConfig{
		Filename:   path,
		CreateDirs: true,
	}, logger.NewTestLogger())
	require.NoError(t, err)

	require.NoError(t, w.Write("one"))
	require.NoError(t, w.Close())

	assert.Equal(t, "one\n", readFile(t, path))
}

func TestTextFileWriterSplitNeedsFilename(t *testing.T) {
	_, err := NewTextFileWriter(FileConfig{SplitByTime: true}, logger.NewTestLogger())
	assert.Error(t, err)
}
