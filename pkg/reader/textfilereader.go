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
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/oceandatatools/rvdas/pkg/logger"
)

// TextFileReader reads lines from one or more files matched by a glob
// pattern, in sorted order. With Tail set it keeps the last file open
// after EOF and polls for appended lines instead of finishing.
type TextFileReader struct {
	pattern string
	tail    bool
	log     logger.Logger

	files   []string
	fileIdx int
	current *os.File
	scanner *bufio.Scanner
}

const tailPollInterval = 100 * time.Millisecond

// NewTextFileReader builds a reader over the files matching pattern.
// "-" or an empty pattern reads stdin.
func NewTextFileReader(pattern string, tail bool, log logger.Logger) (*TextFileReader, error) {
	if log == nil {
		log = logger.Default()
	}

	r := &TextFileReader{
		pattern: pattern,
		tail:    tail,
		log:     log.WithComponent("text_file_reader"),
	}

	if pattern == "" || pattern == "-" {
		r.current = os.Stdin
		r.scanner = newLineScanner(os.Stdin)

		return r, nil
	}

	files, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("bad file pattern %q: %w", pattern, err)
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("no files match %q", pattern)
	}

	sort.Strings(files)
	r.files = files

	return r, nil
}

func newLineScanner(f io.Reader) *bufio.Scanner {
	s := bufio.NewScanner(f)
	s.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	return s
}

func (r *TextFileReader) Read(ctx context.Context) (any, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if r.scanner == nil {
			if err := r.openNext(); err != nil {
				return nil, err
			}
		}

		if r.scanner.Scan() {
			return strings.TrimRight(r.scanner.Text(), "\r"), nil
		}

		if err := r.scanner.Err(); err != nil {
			return nil, fmt.Errorf("read failed: %w", err)
		}

		// EOF on the current file.
		if r.fileIdx < len(r.files) {
			r.closeCurrent()
			continue
		}

		if !r.tail {
			return nil, ErrEOF
		}

		// Tailing the last file: re-arm the scanner past the current
		// offset and wait for more data.
		r.scanner = newLineScanner(r.current)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(tailPollInterval):
		}
	}
}

func (r *TextFileReader) openNext() error {
	if r.fileIdx >= len(r.files) {
		return ErrEOF
	}

	path := r.files[r.fileIdx]
	r.fileIdx++

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %q: %w", path, err)
	}

	r.log.Debug().Str("file", path).Msg("reading file")

	r.current = f
	r.scanner = newLineScanner(f)

	return nil
}

func (r *TextFileReader) closeCurrent() {
	if r.current != nil && r.current != os.Stdin {
		_ = r.current.Close()
	}

	r.current = nil
	r.scanner = nil
}

func (r *TextFileReader) Close() error {
	r.closeCurrent()
	return nil
}
