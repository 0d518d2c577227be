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

// Package writer implements the output side of a pipeline: files with
// time-bucketed rollover, UDP, NATS subjects, the cached-data websocket
// server and pluggable record stores.
package writer

import (
	"fmt"

	"github.com/oceandatatools/rvdas/pkg/models"
)

// Writer consumes pipeline values. Write errors are returned to the
// caller; a writer should be able to recover on the next record.
type Writer interface {
	Write(in any) error
	Close() error
}

// Stringify renders a pipeline value for text sinks: strings pass
// through, Records render as canonical JSON, everything else via %v.
func Stringify(in any) string {
	switch v := in.(type) {
	case string:
		return v
	case *models.Record:
		data, err := v.ToJSON()
		if err != nil {
			return fmt.Sprintf("%v", v)
		}

		return string(data)
	default:
		return fmt.Sprintf("%v", v)
	}
}
