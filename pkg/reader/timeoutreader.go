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
	"fmt"
	"time"

	"github.com/oceandatatools/rvdas/pkg/logger"
)

// TimeoutReader wraps a source with a watchdog: when the source goes
// quiet for longer than the timeout, it emits a warning message instead
// of a record, then resumes a normal message once data returns.
type TimeoutReader struct {
	source  Reader
	timeout time.Duration
	name    string
	log     logger.Logger

	quiet   bool
	pending chan readResult
}

// NewTimeoutReader wraps source. name identifies the watched feed in the
// emitted messages.
func NewTimeoutReader(source Reader, timeout time.Duration, name string, log logger.Logger) *TimeoutReader {
	if log == nil {
		log = logger.Default()
	}

	return &TimeoutReader{
		source:  source,
		timeout: timeout,
		name:    name,
		log:     log.WithComponent("timeout_reader"),
	}
}

type readResult struct {
	value any
	err   error
}

func (r *TimeoutReader) Read(ctx context.Context) (any, error) {
	// A read abandoned by a previous timeout keeps running; pick its
	// result up here rather than issuing a second concurrent read.
	if r.pending == nil {
		r.pending = make(chan readResult, 1)

		go func(results chan readResult) {
			v, err := r.source.Read(ctx)
			results <- readResult{value: v, err: err}
		}(r.pending)
	}

	results := r.pending

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case res := <-results:
			r.pending = nil

			if res.err != nil {
				return nil, res.err
			}

			if r.quiet {
				r.quiet = false
				r.log.Info().Str("source", r.name).Msg("source resumed")

				return fmt.Sprintf("%s: data resumed after timeout", r.name), nil
			}

			return res.value, nil
		case <-timer.C:
			if !r.quiet {
				r.quiet = true
				r.log.Warn().
					Str("source", r.name).
					Dur("timeout", r.timeout).
					Msg("no data within timeout")

				return fmt.Sprintf("%s: no data received in %v", r.name, r.timeout), nil
			}

			timer.Reset(r.timeout)
		}
	}
}

func (r *TimeoutReader) Close() error {
	return r.source.Close()
}
