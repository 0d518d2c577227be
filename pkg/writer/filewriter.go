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
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/oceandatatools/rvdas/pkg/logger"
	"github.com/oceandatatools/rvdas/pkg/timeutil"
)

// FileConfig controls a TextFileWriter.
type FileConfig struct {
	// Filename is the output path; empty writes to stdout.
	Filename string `json:"filename" yaml:"filename"`
	// Delimiter follows every record, default "\n".
	Delimiter *string `json:"delimiter" yaml:"delimiter"`
	// Flush syncs the file after every write.
	Flush bool `json:"flush" yaml:"flush"`
	// CreateDirs creates missing parent directories.
	CreateDirs bool `json:"create_dirs" yaml:"create_dirs"`
	// SplitByTime appends Strftime(TimeFormat) to the filename and rolls
	// the file over whenever the formatted suffix changes.
	SplitByTime bool `json:"split_by_time" yaml:"split_by_time"`
	// TimeFormat is the strftime suffix pattern, default "-%Y-%m-%d".
	TimeFormat string `json:"time_format" yaml:"time_format"`
	// Header is written at the top of every newly opened file.
	Header string `json:"header" yaml:"header"`
}

// TextFileWriter writes stringified records to a file or stdout,
// optionally splitting into time-suffixed files.
type TextFileWriter struct {
	cfg       FileConfig
	delimiter string
	file      *os.File
	curSuffix string
	log       logger.Logger

	// Now is the clock used for split suffixes; replaced in tests.
	Now func() time.Time
}

// NewTextFileWriter builds the writer; the file opens lazily on first
// write.
func NewTextFileWriter(cfg FileConfig, log logger.Logger) (*TextFileWriter, error) {
	if log == nil {
		log = logger.Default()
	}

	if cfg.SplitByTime && cfg.Filename == "" {
		return nil, fmt.Errorf("split_by_time requires a filename")
	}

	if cfg.TimeFormat == "" {
		cfg.TimeFormat = "-%Y-%m-%d"
	}

	delimiter := "\n"
	if cfg.Delimiter != nil {
		delimiter = *cfg.Delimiter
	}

	return &TextFileWriter{
		cfg:       cfg,
		delimiter: delimiter,
		log:       log.WithComponent("file_writer"),
		Now:       time.Now,
	}, nil
}

func (w *TextFileWriter) Write(in any) error {
	if in == nil {
		return nil
	}

	out, err := w.target()
	if err != nil {
		return err
	}

	if _, err := out.WriteString(Stringify(in) + w.delimiter); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}

	if w.cfg.Flush && out != os.Stdout {
		if err := out.Sync(); err != nil {
			return fmt.Errorf("failed to flush: %w", err)
		}
	}

	return nil
}

// target returns the file to write to, rolling over when the time suffix
// has changed.
func (w *TextFileWriter) target() (*os.File, error) {
	if w.cfg.Filename == "" {
		return os.Stdout, nil
	}

	suffix := ""
	if w.cfg.SplitByTime {
		suffix = timeutil.Strftime(w.cfg.TimeFormat, w.Now())
	}

	if w.file != nil && suffix == w.curSuffix {
		return w.file, nil
	}

	if w.file != nil {
		if err := w.file.Close(); err != nil {
			w.log.Warn().Err(err).Msg("failed to close previous split file")
		}

		w.file = nil
	}

	path := w.cfg.Filename + suffix

	if w.cfg.CreateDirs {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open %q: %w", path, err)
	}

	if w.cfg.Header != "" {
		if info, err := file.Stat(); err == nil && info.Size() == 0 {
			if _, err := file.WriteString(w.cfg.Header + w.delimiter); err != nil {
				return nil, fmt.Errorf("failed to write header: %w", err)
			}
		}
	}

	w.file = file
	w.curSuffix = suffix

	return file, nil
}

// Close closes the current output file.
func (w *TextFileWriter) Close() error {
	if w.file == nil {
		return nil
	}

	err := w.file.Close()
	w.file = nil

	return err
}
