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
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/oceandatatools/rvdas/pkg/logger"
	"github.com/oceandatatools/rvdas/pkg/models"
	"github.com/oceandatatools/rvdas/pkg/timeutil"
)

var (
	errBadSplitInterval = errors.New("split_interval must be like \"24H\" or \"15M\"")
	errBadDateFormat    = errors.New("date_format lacks fields for the split granularity")
	errNoFilebase       = errors.New("logfile writer needs a filebase or filebase map")
)

var splitIntervalRE = regexp.MustCompile(`^(\d+)([HMhm])$`)

// LogfileConfig controls a LogfileWriter.
type LogfileConfig struct {
	// Filebase is the single output family; FilebaseMap instead routes
	// each record to every filebase whose regex matches it.
	Filebase    string `json:"filebase" yaml:"filebase"`
	FilebaseMap map[string]string `json:"filebase_map" yaml:"filebase_map"`
	// SplitInterval is the bucket width: "NH" hours or "NM" minutes.
	// Default "24H". Hour counts must divide 24, minute counts 60.
	SplitInterval string `json:"split_interval" yaml:"split_interval"`
	// DateFormat is the strftime suffix appended to the filebase; the
	// default depends on the split granularity.
	DateFormat string `json:"date_format" yaml:"date_format"`
	// Suffix follows the date suffix, e.g. ".log"; SuffixMap keys by the
	// same regexes as FilebaseMap.
	Suffix    string `json:"suffix" yaml:"suffix"`
	SuffixMap map[string]string `json:"suffix_map" yaml:"suffix_map"`
	// Header is written when a new bucket file opens; HeaderMap keys by
	// regex.
	Header    string `json:"header" yaml:"header"`
	HeaderMap map[string]string `json:"header_map" yaml:"header_map"`
	// Flush syncs after every write.
	Flush bool `json:"flush" yaml:"flush"`
	// CreateDirs creates missing parent directories.
	CreateDirs bool `json:"create_dirs" yaml:"create_dirs"`
}

type logfileRoute struct {
	pattern  *regexp.Regexp
	filebase string
	header   string
	suffix   string

	curSuffix string
	file      *TextFileWriter
}

// LogfileWriter buckets records into time-windowed files per routing
// pattern, rolling over when a record's bucket differs from the open one.
// Old buckets are never revisited.
type LogfileWriter struct {
	cfg    LogfileConfig
	routes []*logfileRoute

	intervalCount int
	intervalUnit  byte
	dateFormat    string

	log logger.Logger
}

// NewLogfileWriter validates the split interval and date format and
// compiles the routing patterns.
func NewLogfileWriter(cfg LogfileConfig, log logger.Logger) (*LogfileWriter, error) {
	if log == nil {
		log = logger.Default()
	}

	w := &LogfileWriter{cfg: cfg, log: log.WithComponent("logfile_writer")}

	if err := w.parseSplitInterval(); err != nil {
		return nil, err
	}

	if err := w.checkDateFormat(); err != nil {
		return nil, err
	}

	if err := w.buildRoutes(); err != nil {
		return nil, err
	}

	return w, nil
}

func (w *LogfileWriter) parseSplitInterval() error {
	interval := w.cfg.SplitInterval
	if interval == "" {
		interval = "24H"
	}

	m := splitIntervalRE.FindStringSubmatch(interval)
	if m == nil {
		return fmt.Errorf("%w: got %q", errBadSplitInterval, interval)
	}

	count, err := strconv.Atoi(m[1])
	if err != nil || count == 0 {
		return fmt.Errorf("%w: got %q", errBadSplitInterval, interval)
	}

	unit := strings.ToUpper(m[2])[0]

	switch unit {
	case 'H':
		if 24%count != 0 {
			return fmt.Errorf("%w: %d hours does not divide the day", errBadSplitInterval, count)
		}
	case 'M':
		if 60%count != 0 {
			return fmt.Errorf("%w: %d minutes does not divide the hour", errBadSplitInterval, count)
		}
	}

	w.intervalCount = count
	w.intervalUnit = unit

	return nil
}

// checkDateFormat fills the granularity-appropriate default and verifies
// the format names every field the bucket needs.
func (w *LogfileWriter) checkDateFormat() error {
	subDay := w.intervalUnit == 'M' || w.intervalCount < 24
	subHour := w.intervalUnit == 'M'

	if w.cfg.DateFormat == "" {
		switch {
		case subHour:
			w.dateFormat = "-%Y-%m-%d_%H%M"
		case subDay:
			w.dateFormat = "-%Y-%m-%d_%H"
		default:
			w.dateFormat = "-%Y-%m-%d"
		}

		return nil
	}

	w.dateFormat = w.cfg.DateFormat

	required := []byte{'Y', 'm', 'd'}
	if subDay {
		required = append(required, 'H')
	}

	if subHour {
		required = append(required, 'M')
	}

	for _, directive := range required {
		if !timeutil.StrftimeContains(w.dateFormat, directive) {
			return fmt.Errorf("%w: %q needs %%%c", errBadDateFormat, w.dateFormat, directive)
		}
	}

	return nil
}

func (w *LogfileWriter) buildRoutes() error {
	if w.cfg.Filebase != "" {
		w.routes = []*logfileRoute{{
			filebase: w.cfg.Filebase,
			header:   w.cfg.Header,
			suffix:   w.cfg.Suffix,
		}}

		return nil
	}

	if len(w.cfg.FilebaseMap) == 0 {
		return errNoFilebase
	}

	for pattern, filebase := range w.cfg.FilebaseMap {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return fmt.Errorf("bad filebase pattern %q: %w", pattern, err)
		}

		route := &logfileRoute{
			pattern:  re,
			filebase: filebase,
			header:   w.cfg.Header,
			suffix:   w.cfg.Suffix,
		}

		if h, ok := w.cfg.HeaderMap[pattern]; ok {
			route.header = h
		}

		if s, ok := w.cfg.SuffixMap[pattern]; ok {
			route.suffix = s
		}

		w.routes = append(w.routes, route)
	}

	return nil
}

func (w *LogfileWriter) Write(in any) error {
	if in == nil {
		return nil
	}

	ts, ok := w.recordTimestamp(in)
	if !ok {
		return nil
	}

	text := Stringify(in)
	suffix := timeutil.Strftime(w.dateFormat, w.bucketStart(ts))
	matched := false

	for _, route := range w.routes {
		if route.pattern != nil && !route.pattern.MatchString(text) {
			continue
		}

		matched = true

		if err := w.writeRoute(route, suffix, text); err != nil {
			return err
		}
	}

	if !matched {
		w.log.Warn().Str("record", text).Msg("record matched no logfile pattern")
	}

	return nil
}

func (w *LogfileWriter) writeRoute(route *logfileRoute, suffix, text string) error {
	if route.file == nil || route.curSuffix != suffix {
		if route.file != nil {
			if err := route.file.Close(); err != nil {
				w.log.Warn().Err(err).Msg("failed to close previous bucket file")
			}
		}

		file, err := NewTextFileWriter(FileConfig{
			Filename:   route.filebase + suffix + route.suffix,
			Flush:      w.cfg.Flush,
			CreateDirs: w.cfg.CreateDirs,
			Header:     route.header,
		}, w.log)
		if err != nil {
			return err
		}

		route.file = file
		route.curSuffix = suffix
	}

	return route.file.Write(text)
}

// recordTimestamp pulls epoch seconds from a Record, a map's timestamp
// key, or the first whitespace-delimited token of a string.
func (w *LogfileWriter) recordTimestamp(in any) (float64, bool) {
	switch v := in.(type) {
	case *models.Record:
		return v.Timestamp, true
	case map[string]any:
		if f, ok := models.ToFloat(v["timestamp"]); ok {
			return f, true
		}
	case string:
		token, _, _ := strings.Cut(strings.TrimSpace(v), " ")

		if ts, err := timeutil.ParseISO8601(token); err == nil {
			return ts, true
		}
	}

	w.log.Warn().Str("record", Stringify(in)).Msg("cannot extract record timestamp")

	return 0, false
}

// bucketStart floors a timestamp to its split boundary.
func (w *LogfileWriter) bucketStart(ts float64) time.Time {
	t := timeutil.ToTime(ts).UTC()

	switch w.intervalUnit {
	case 'M':
		minute := (t.Minute() / w.intervalCount) * w.intervalCount
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), minute, 0, 0, time.UTC)
	default:
		hour := 0
		if w.intervalCount < 24 {
			hour = (t.Hour() / w.intervalCount) * w.intervalCount
		}

		return time.Date(t.Year(), t.Month(), t.Day(), hour, 0, 0, 0, time.UTC)
	}
}

// Close closes every open bucket file.
func (w *LogfileWriter) Close() error {
	var firstErr error

	for _, route := range w.routes {
		if route.file == nil {
			continue
		}

		if err := route.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}

		route.file = nil
	}

	return firstErr
}
