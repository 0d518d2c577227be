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

// Package models holds the shared data structures of the framework: the
// Record envelope that flows through pipelines, device definitions used by
// the parser, and the control-plane entities (cruise, mode, logger).
package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Record is the universal data envelope. Transforms treat Records as
// immutable and return new values.
type Record struct {
	DataID      string                       `json:"data_id"`
	MessageType string                       `json:"message_type,omitempty"`
	Timestamp   float64                      `json:"timestamp"`
	Fields      map[string]any               `json:"fields"`
	Metadata    map[string]map[string]string `json:"metadata,omitempty"`
}

// NewRecord creates a Record with the given data_id and fields, stamped
// with the current time when ts is zero.
func NewRecord(dataID string, ts float64, fields map[string]any) *Record {
	if ts == 0 {
		ts = float64(time.Now().UnixNano()) / 1e9
	}

	if fields == nil {
		fields = map[string]any{}
	}

	return &Record{DataID: dataID, Timestamp: ts, Fields: fields}
}

// ToJSON renders the canonical JSON form.
func (r *Record) ToJSON() ([]byte, error) {
	type alias Record

	return json.Marshal((*alias)(r))
}

// RecordFromJSON parses the canonical JSON form.
func RecordFromJSON(data []byte) (*Record, error) {
	var r Record

	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse record JSON: %w", err)
	}

	if r.Fields == nil {
		r.Fields = map[string]any{}
	}

	return &r, nil
}

// Copy returns a deep copy of the record.
func (r *Record) Copy() *Record {
	out := &Record{
		DataID:      r.DataID,
		MessageType: r.MessageType,
		Timestamp:   r.Timestamp,
		Fields:      make(map[string]any, len(r.Fields)),
	}

	for k, v := range r.Fields {
		out.Fields[k] = v
	}

	if r.Metadata != nil {
		out.Metadata = make(map[string]map[string]string, len(r.Metadata))

		for field, md := range r.Metadata {
			inner := make(map[string]string, len(md))
			for k, v := range md {
				inner[k] = v
			}

			out.Metadata[field] = inner
		}
	}

	return out
}

// SetMetadata attaches a metadata descriptor for a field, allocating the
// metadata map on first use.
func (r *Record) SetMetadata(field string, descriptor map[string]string) {
	if r.Metadata == nil {
		r.Metadata = map[string]map[string]string{}
	}

	r.Metadata[field] = descriptor
}

// Equal reports structural equality. Numeric field values compare by value,
// so a record that has round-tripped through JSON (where ints come back as
// float64) still equals its source.
func (r *Record) Equal(other *Record) bool {
	if r == nil || other == nil {
		return r == other
	}

	if r.DataID != other.DataID || r.MessageType != other.MessageType ||
		r.Timestamp != other.Timestamp || len(r.Fields) != len(other.Fields) {
		return false
	}

	for k, v := range r.Fields {
		ov, ok := other.Fields[k]
		if !ok || !scalarEqual(v, ov) {
			return false
		}
	}

	if len(r.Metadata) != len(other.Metadata) {
		return false
	}

	for field, md := range r.Metadata {
		omd, ok := other.Metadata[field]
		if !ok || len(md) != len(omd) {
			return false
		}

		for k, v := range md {
			if omd[k] != v {
				return false
			}
		}
	}

	return true
}

func scalarEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == b
	}

	af, aNum := ToFloat(a)
	bf, bNum := ToFloat(b)

	if aNum && bNum {
		return af == bf
	}

	return a == b
}

// ToFloat coerces a numeric scalar to float64. Booleans and strings are not
// numeric.
func ToFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	default:
		return 0, false
	}
}

// ToRecords normalizes a value into a flat list of Records. It accepts a
// single *Record, a slice of records or nested values, a map with
// "timestamp" and "fields" keys, or a field dict of the form
// {field_name: [[ts, value], ...]} which is regrouped into per-timestamp
// Records sorted by timestamp.
func ToRecords(v any) ([]*Record, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case *Record:
		return []*Record{x}, nil
	case Record:
		return []*Record{&x}, nil
	case []*Record:
		return x, nil
	case []any:
		var out []*Record

		for _, elem := range x {
			recs, err := ToRecords(elem)
			if err != nil {
				return nil, err
			}

			out = append(out, recs...)
		}

		return out, nil
	case map[string]any:
		return recordsFromMap(x)
	default:
		return nil, fmt.Errorf("cannot interpret value of type %T as records", v)
	}
}

func recordsFromMap(m map[string]any) ([]*Record, error) {
	if fields, ok := m["fields"]; ok {
		fm, ok := fields.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("record map has non-map fields value of type %T", fields)
		}

		var ts float64
		if t, ok := m["timestamp"]; ok {
			f, num := ToFloat(t)
			if !num {
				return nil, fmt.Errorf("record map has non-numeric timestamp %v", t)
			}

			ts = f
		}

		rec := NewRecord("", ts, fm)

		if id, ok := m["data_id"].(string); ok {
			rec.DataID = id
		}

		return []*Record{rec}, nil
	}

	// Field dict: {field: [[ts, value], ...]}. Regroup by timestamp.
	byTime := map[float64]map[string]any{}

	for field, raw := range m {
		pairs, ok := raw.([]any)
		if !ok {
			return nil, fmt.Errorf("field dict entry %q is not a list of (ts, value) pairs", field)
		}

		for _, p := range pairs {
			pair, ok := p.([]any)
			if !ok || len(pair) != 2 {
				return nil, fmt.Errorf("field dict entry %q has malformed pair %v", field, p)
			}

			ts, num := ToFloat(pair[0])
			if !num {
				return nil, fmt.Errorf("field dict entry %q has non-numeric timestamp %v", field, pair[0])
			}

			if byTime[ts] == nil {
				byTime[ts] = map[string]any{}
			}

			byTime[ts][field] = pair[1]
		}
	}

	stamps := make([]float64, 0, len(byTime))
	for ts := range byTime {
		stamps = append(stamps, ts)
	}

	sort.Float64s(stamps)

	out := make([]*Record, 0, len(stamps))
	for _, ts := range stamps {
		out = append(out, NewRecord("", ts, byTime[ts]))
	}

	return out, nil
}
