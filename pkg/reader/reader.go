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

// Package reader provides the input side of the record pipeline: sources
// that deliver raw text lines or records one at a time.
package reader

import (
	"context"
	"errors"
)

// ErrEOF signals that a finite source is exhausted. Streaming sources
// never return it.
var ErrEOF = errors.New("reader exhausted")

// Reader delivers the next input from a source. A nil result with a nil
// error means "nothing right now, try again"; ErrEOF means the source is
// done. Readers block on I/O and honor context cancellation.
type Reader interface {
	Read(ctx context.Context) (any, error)
	Close() error
}
