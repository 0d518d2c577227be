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

import "strings"

// XMLAggregator accumulates string records (lines of an XML document) and
// emits the whole buffer as one record when the named closing tag arrives,
// then resets.
type XMLAggregator struct {
	closingTag string
	buffer     []string
}

// NewXMLAggregator aggregates until </tag> is seen.
func NewXMLAggregator(tag string) *XMLAggregator {
	return &XMLAggregator{closingTag: "</" + tag + ">"}
}

func (t *XMLAggregator) Apply(in any) any {
	return each(in, func(v any) any {
		s, ok := asString(v)
		if !ok {
			return nil
		}

		t.buffer = append(t.buffer, s)

		if !strings.Contains(s, t.closingTag) {
			return nil
		}

		doc := strings.Join(t.buffer, "\n")
		t.buffer = nil

		return doc
	})
}
