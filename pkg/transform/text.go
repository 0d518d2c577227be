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

package transform

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/oceandatatools/rvdas/pkg/logger"
)

// PrefixTransform prepends a fixed prefix (typically a data_id) to string
// records.
type PrefixTransform struct {
	prefix string
	sep    string
}

// NewPrefixTransform builds a prefix transform; sep defaults to a single
// space.
func NewPrefixTransform(prefix, sep string) *PrefixTransform {
	if sep == "" {
		sep = " "
	}

	return &PrefixTransform{prefix: prefix, sep: sep}
}

func (t *PrefixTransform) Apply(in any) any {
	return each(in, func(v any) any {
		s, ok := asString(v)
		if !ok {
			return nil
		}

		return t.prefix + t.sep + s
	})
}

// StripTransform removes leading/trailing characters from string records.
type StripTransform struct {
	chars string
}

// NewStripTransform strips cutset chars (whitespace when empty).
func NewStripTransform(chars string) *StripTransform {
	return &StripTransform{chars: chars}
}

func (t *StripTransform) Apply(in any) any {
	return each(in, func(v any) any {
		s, ok := asString(v)
		if !ok {
			return nil
		}

		if t.chars == "" {
			return strings.TrimSpace(s)
		}

		return strings.Trim(s, t.chars)
	})
}

// SliceTransform keeps selected whitespace-delimited tokens of a string
// record, by index spec like "0,2:4,-1" (python-style slices, no step).
type SliceTransform struct {
	specs []sliceSpec
	sep   string
	log   logger.Logger
}

type sliceSpec struct {
	start    int
	stop     int
	hasStop  bool
	isRange  bool
	hasStart bool
}

// NewSliceTransform parses the index spec; sep defaults to whitespace.
func NewSliceTransform(fields, sep string, log logger.Logger) (*SliceTransform, error) {
	if log == nil {
		log = logger.Default()
	}

	t := &SliceTransform{sep: sep, log: log.WithComponent("slice_transform")}

	for _, part := range strings.Split(fields, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		spec, err := parseSliceSpec(part)
		if err != nil {
			return nil, err
		}

		t.specs = append(t.specs, spec)
	}

	return t, nil
}

func parseSliceSpec(part string) (sliceSpec, error) {
	if !strings.Contains(part, ":") {
		idx, err := strconv.Atoi(part)
		if err != nil {
			return sliceSpec{}, fmt.Errorf("bad slice index %q: %w", part, err)
		}

		return sliceSpec{start: idx, hasStart: true}, nil
	}

	bounds := strings.SplitN(part, ":", 2)
	spec := sliceSpec{isRange: true}

	if bounds[0] != "" {
		start, err := strconv.Atoi(bounds[0])
		if err != nil {
			return sliceSpec{}, fmt.Errorf("bad slice start %q: %w", part, err)
		}

		spec.start = start
		spec.hasStart = true
	}

	if bounds[1] != "" {
		stop, err := strconv.Atoi(bounds[1])
		if err != nil {
			return sliceSpec{}, fmt.Errorf("bad slice stop %q: %w", part, err)
		}

		spec.stop = stop
		spec.hasStop = true
	}

	return spec, nil
}

func (t *SliceTransform) Apply(in any) any {
	return each(in, func(v any) any {
		s, ok := asString(v)
		if !ok {
			return nil
		}

		var tokens []string
		if t.sep == "" {
			tokens = strings.Fields(s)
		} else {
			tokens = strings.Split(s, t.sep)
		}

		var kept []string

		for _, spec := range t.specs {
			kept = append(kept, applySlice(tokens, spec)...)
		}

		if kept == nil {
			return nil
		}

		sep := t.sep
		if sep == "" {
			sep = " "
		}

		return strings.Join(kept, sep)
	})
}

func applySlice(tokens []string, spec sliceSpec) []string {
	n := len(tokens)

	norm := func(i int) int {
		if i < 0 {
			i += n
		}

		if i < 0 {
			i = 0
		}

		if i > n {
			i = n
		}

		return i
	}

	if !spec.isRange {
		i := spec.start
		if i < 0 {
			i += n
		}

		if i < 0 || i >= n {
			return nil
		}

		return tokens[i : i+1]
	}

	start := 0
	if spec.hasStart {
		start = norm(spec.start)
	}

	stop := n
	if spec.hasStop {
		stop = norm(spec.stop)
	}

	if start >= stop {
		return nil
	}

	return tokens[start:stop]
}

// SplitTransform splits a string record on a separator and fans out the
// non-empty pieces as individual records.
type SplitTransform struct {
	sep string
}

// NewSplitTransform splits on sep, newline by default.
func NewSplitTransform(sep string) *SplitTransform {
	if sep == "" {
		sep = "\n"
	}

	return &SplitTransform{sep: sep}
}

func (t *SplitTransform) Apply(in any) any {
	return each(in, func(v any) any {
		s, ok := asString(v)
		if !ok {
			return nil
		}

		var out []any

		for _, piece := range strings.Split(s, t.sep) {
			if piece != "" {
				out = append(out, piece)
			}
		}

		if out == nil {
			return nil
		}

		return out
	})
}

// RegexFilterTransform passes string records matching the pattern and
// drops the rest (or the inverse).
type RegexFilterTransform struct {
	pattern *regexp.Regexp
	negate  bool
}

// NewRegexFilterTransform compiles the pattern; negate inverts the test.
func NewRegexFilterTransform(pattern string, negate bool) (*RegexFilterTransform, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}

	return &RegexFilterTransform{pattern: re, negate: negate}, nil
}

func (t *RegexFilterTransform) Apply(in any) any {
	return each(in, func(v any) any {
		s, ok := asString(v)
		if !ok {
			return nil
		}

		if t.pattern.MatchString(s) != t.negate {
			return s
		}

		return nil
	})
}

// RegexReplaceTransform rewrites string records with a regex substitution.
type RegexReplaceTransform struct {
	pattern     *regexp.Regexp
	replacement string
	count       int
}

// NewRegexReplaceTransform compiles the pattern; count <= 0 replaces all
// occurrences.
func NewRegexReplaceTransform(pattern, replacement string, count int) (*RegexReplaceTransform, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}

	return &RegexReplaceTransform{pattern: re, replacement: replacement, count: count}, nil
}

func (t *RegexReplaceTransform) Apply(in any) any {
	return each(in, func(v any) any {
		s, ok := asString(v)
		if !ok {
			return nil
		}

		if t.count <= 0 {
			return t.pattern.ReplaceAllString(s, t.replacement)
		}

		remaining := t.count

		return t.pattern.ReplaceAllStringFunc(s, func(m string) string {
			if remaining <= 0 {
				return m
			}

			remaining--

			return t.pattern.ReplaceAllString(m, t.replacement)
		})
	})
}

// UniqueTransform drops records identical to the previous one.
type UniqueTransform struct {
	last    string
	hasLast bool
}

// NewUniqueTransform suppresses consecutive duplicate string records.
func NewUniqueTransform() *UniqueTransform {
	return &UniqueTransform{}
}

func (t *UniqueTransform) Apply(in any) any {
	return each(in, func(v any) any {
		s, ok := asString(v)
		if !ok {
			return nil
		}

		if t.hasLast && s == t.last {
			return nil
		}

		t.last = s
		t.hasLast = true

		return s
	})
}
