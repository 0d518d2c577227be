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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceandatatools/rvdas/pkg/logger"
)

func TestPrefixTransform(t *testing.T) {
	p := NewPrefixTransform("gyr1", "")
	assert.Equal(t, "gyr1 $HEHDT,1.0,T", p.Apply("$HEHDT,1.0,T"))

	p = NewPrefixTransform("gyr1", "\t")
	assert.Equal(t, "gyr1\tx", p.Apply("x"))

	assert.Nil(t, p.Apply(42))
}

func TestStripTransform(t *testing.T) {
	assert.Equal(t, "abc", NewStripTransform("").Apply("  abc \r\n"))
	assert.Equal(t, "abc", NewStripTransform("xy").Apply("xyabcyx"))
}

func TestSliceTransform(t *testing.T) {
	s, err := NewSliceTransform("0,2:4,-1", "", logger.NewTestLogger())
	require.NoError(t, err)

	assert.Equal(t, "a c d f", s.Apply("a b c d e f"))

	s, err = NewSliceTransform("1:", ",", logger.NewTestLogger())
	require.NoError(t, err)
	assert.Equal(t, "b,c", s.Apply("a,b,c"))

	_, err = NewSliceTransform("one", "", logger.NewTestLogger())
	assert.Error(t, err)
}

func TestSliceTransformOutOfRange(t *testing.T) {
	s, err := NewSliceTransform("5", "", logger.NewTestLogger())
	require.NoError(t, err)

	assert.Nil(t, s.Apply("a b"))
}

func TestSplitTransformFansOut(t *testing.T) {
	s := NewSplitTransform("")

	out := s.Apply("one\ntwo\n\nthree")
	items, ok := out.([]any)
	require.True(t, ok)
	assert.Equal(t, []any{"one", "two", "three"}, items)

	assert.Nil(t, s.Apply("\n\n"))
}

func TestRegexFilterTransform(t *testing.T) {
	f, err := NewRegexFilterTransform(`^\$HEHDT`, false)
	require.NoError(t, err)

	assert.Equal(t, "$HEHDT,1.0,T", f.Apply("$HEHDT,1.0,T"))
	assert.Nil(t, f.Apply("$GPGGA,..."))

	neg, err := NewRegexFilterTransform(`^\$HEHDT`, true)
	require.NoError(t, err)

	assert.Nil(t, neg.Apply("$HEHDT,1.0,T"))
	assert.Equal(t, "$GPGGA,...", neg.Apply("$GPGGA,..."))
}

func TestRegexReplaceTransform(t *testing.T) {
	r, err := NewRegexReplaceTransform(`,`, ";", 0)
	require.NoError(t, err)
	assert.Equal(t, "a;b;c", r.Apply("a,b,c"))

	r, err = NewRegexReplaceTransform(`,`, ";", 1)
	require.NoError(t, err)
	assert.Equal(t, "a;b,c", r.Apply("a,b,c"))

	_, err = NewRegexReplaceTransform(`(`, "", 0)
	assert.Error(t, err)
}

func TestUniqueTransform(t *testing.T) {
	u := NewUniqueTransform()

	assert.Equal(t, "a", u.Apply("a"))
	assert.Nil(t, u.Apply("a"))
	assert.Equal(t, "b", u.Apply("b"))
	assert.Equal(t, "a", u.Apply("a"))
}
