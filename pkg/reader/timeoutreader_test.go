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

package reader

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceandatatools/rvdas/pkg/logger"
)

// chanReader feeds scripted records; Read blocks until one arrives.
type chanReader struct {
	ch     chan any
	closed bool
}

func newChanReader() *chanReader {
	return &chanReader{ch: make(chan any, 16)}
}

func (r *chanReader) Read(ctx context.Context) (any, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case v, ok := <-r.ch:
		if !ok {
			return nil, ErrEOF
		}

		return v, nil
	}
}

func (r *chanReader) Close() error {
	r.closed = true
	return nil
}

func TestTimeoutReaderPassesDataThrough(t *testing.T) {
	src := newChanReader()
	src.ch <- "hello"

	tr := NewTimeoutReader(src, time.Second, "gyr1", logger.NewTestLogger())

	rec, err := tr.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "hello", rec)
}

func TestTimeoutReaderEmitsTimeoutAndResume(t *testing.T) {
	src := newChanReader()
	tr := NewTimeoutReader(src, 50*time.Millisecond, "gyr1", logger.NewTestLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Quiet source: the watchdog message arrives instead of data.
	rec, err := tr.Read(ctx)
	require.NoError(t, err)
	assert.Contains(t, rec.(string), "gyr1: no data received")

	// Data returns: one resume message, then normal flow.
	src.ch <- "back"

	rec, err = tr.Read(ctx)
	require.NoError(t, err)
	assert.Contains(t, rec.(string), "gyr1: data resumed")

	src.ch <- "normal"

	rec, err = tr.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "normal", rec)
}

func TestTimeoutReaderPropagatesEOF(t *testing.T) {
	src := newChanReader()
	close(src.ch)

	tr := NewTimeoutReader(src, time.Second, "gyr1", logger.NewTestLogger())

	_, err := tr.Read(context.Background())
	assert.ErrorIs(t, err, ErrEOF)
}

func TestTimeoutReaderClosesSource(t *testing.T) {
	src := newChanReader()
	tr := NewTimeoutReader(src, time.Second, "gyr1", logger.NewTestLogger())

	require.NoError(t, tr.Close())
	assert.True(t, src.closed)
}
