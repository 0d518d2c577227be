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

// Package parser turns raw text records into structured Records using the
// regex patterns, type specs and rename maps of a device registry.
package parser

import (
	"fmt"
	"regexp"
	"time"

	"github.com/rs/zerolog"

	"github.com/oceandatatools/rvdas/pkg/device"
	"github.com/oceandatatools/rvdas/pkg/logger"
	"github.com/oceandatatools/rvdas/pkg/models"
	"github.com/oceandatatools/rvdas/pkg/timeutil"
)

// DefaultRecordFormat is the envelope regex applied to each raw line:
// "<data_id> <timestamp> <payload>".
const DefaultRecordFormat = `^(?P<data_id>\S+)\s+(?P<timestamp>\S+)\s+(?P<field_string>.*)$`

// Config controls parser behavior.
type Config struct {
	// RecordFormat is the envelope regex; named groups data_id, timestamp
	// and field_string are recognized.
	RecordFormat string
	// DataID overrides the envelope-extracted data_id when set.
	DataID string
	// MetadataInterval, when positive, attaches per-field metadata to the
	// first record that carries the field after the interval has elapsed.
	MetadataInterval time.Duration
	// Quiet demotes per-record parse warnings to debug.
	Quiet bool
}

// Parser parses raw text records. Not safe for concurrent use; each
// pipeline owns its parser.
type Parser struct {
	envelope *regexp.Regexp
	registry *device.Registry
	cfg      Config
	log      logger.Logger

	// lastMetadata tracks, per data_id and raw field, the wall time the
	// field's metadata was last attached.
	lastMetadata map[string]map[string]time.Time
	now          func() time.Time
}

// NewParser builds a parser over the given registry. A nil registry
// disables conversion and renaming; parsed fields stay string-valued.
func NewParser(registry *device.Registry, cfg Config, log logger.Logger) (*Parser, error) {
	if log == nil {
		log = logger.Default()
	}

	format := cfg.RecordFormat
	if format == "" {
		format = DefaultRecordFormat
	}

	envelope, err := regexp.Compile(format)
	if err != nil {
		return nil, err
	}

	return &Parser{
		envelope:     envelope,
		registry:     registry,
		cfg:          cfg,
		log:          log.WithComponent("parser"),
		lastMetadata: map[string]map[string]time.Time{},
		now:          time.Now,
	}, nil
}

// ParseRecord parses one raw record. Returns nil when the input is not a
// string, the envelope or every field pattern misses, or no fields
// survive conversion.
func (p *Parser) ParseRecord(raw any) *models.Record {
	line, ok := raw.(string)
	if !ok {
		p.log.Info().Str("type", typeName(raw)).Msg("parser got non-string record")
		return nil
	}

	dataID, ts, fieldString, ok := p.splitEnvelope(line)
	if !ok {
		return nil
	}

	if p.cfg.DataID != "" {
		dataID = p.cfg.DataID
	} else if dataID == "" {
		dataID = "unknown"
	}

	binding, bound := (*device.Binding)(nil), false
	if p.registry != nil {
		binding, bound = p.registry.Lookup(dataID)
	}

	messageType, fields, matched := p.matchFields(dataID, binding, fieldString)
	if !matched {
		p.dropLog().Str("data_id", dataID).Str("field_string", fieldString).
			Msg("no field pattern matched")
		return nil
	}

	rec := models.NewRecord(dataID, ts, nil)
	rec.MessageType = messageType

	if bound {
		p.convertAndRename(rec, binding, fields)
	} else {
		for name, value := range fields {
			rec.Fields[name] = value
		}
	}

	if len(rec.Fields) == 0 {
		return nil
	}

	return rec
}

// Apply lets a Parser stand in a pipeline as a transform. Slices parse
// element-wise; unparseable elements drop out.
func (p *Parser) Apply(in any) any {
	if items, ok := in.([]any); ok {
		var out []any

		for _, item := range items {
			if rec := p.ParseRecord(item); rec != nil {
				out = append(out, rec)
			}
		}

		if len(out) == 0 {
			return nil
		}

		return out
	}

	if rec := p.ParseRecord(in); rec != nil {
		return rec
	}

	return nil
}

// splitEnvelope applies the envelope regex and parses the timestamp,
// falling back to the current system time.
func (p *Parser) splitEnvelope(line string) (dataID string, ts float64, fieldString string, ok bool) {
	match := p.envelope.FindStringSubmatch(line)
	if match == nil {
		p.dropLog().Str("record", line).Msg("record does not match envelope format")
		return "", 0, "", false
	}

	var tsText string

	for i, name := range p.envelope.SubexpNames() {
		switch name {
		case "data_id":
			dataID = match[i]
		case "timestamp":
			tsText = match[i]
		case "field_string":
			fieldString = match[i]
			ok = true
		}
	}

	if !ok || fieldString == "" {
		p.dropLog().Str("record", line).Msg("record has no field_string")
		return "", 0, "", false
	}

	ts = float64(p.now().UnixNano()) / 1e9

	if tsText != "" {
		if parsed, err := timeutil.ParseISO8601(tsText); err == nil {
			ts = parsed
		} else {
			p.dropLog().Str("timestamp", tsText).Msg("unparseable timestamp, using system time")
		}
	}

	return dataID, ts, fieldString, true
}

// matchFields tries each pattern in order; the first match wins, and a
// message_type-keyed pattern contributes its key.
func (p *Parser) matchFields(dataID string, binding *device.Binding, fieldString string) (string, map[string]string, bool) {
	if binding == nil {
		// No device definition; the whole payload becomes one field.
		return "", map[string]string{"message": fieldString}, true
	}

	for _, pattern := range binding.Patterns {
		match := pattern.Regex.FindStringSubmatch(fieldString)
		if match == nil {
			continue
		}

		fields := map[string]string{}

		for i, name := range pattern.Regex.SubexpNames() {
			if name != "" {
				fields[name] = match[i]
			}
		}

		return pattern.MessageType, fields, true
	}

	return "", nil, false
}

func (p *Parser) convertAndRename(rec *models.Record, binding *device.Binding, raw map[string]string) {
	for rawName, text := range raw {
		canonical, wanted := binding.Renames[rawName]
		if !wanted {
			continue
		}

		spec, declared := binding.FieldTypes[rawName]
		if !declared {
			rec.Fields[canonical] = text
			continue
		}

		value, err := device.ConvertValue(spec.Type, text)
		if err != nil {
			p.dropLog().Str("data_id", rec.DataID).Str("field", rawName).
				Str("value", text).Msg("field failed type conversion")
			continue
		}

		rec.Fields[canonical] = value

		if p.metadataDue(rec.DataID, rawName) {
			if md := binding.Metadata(rec.DataID, rawName); md != nil {
				rec.SetMetadata(canonical, md)
			}
		}
	}
}

func (p *Parser) metadataDue(dataID, rawField string) bool {
	if p.cfg.MetadataInterval <= 0 {
		return false
	}

	perField := p.lastMetadata[dataID]
	if perField == nil {
		perField = map[string]time.Time{}
		p.lastMetadata[dataID] = perField
	}

	now := p.now()
	if last, ok := perField[rawField]; ok && now.Sub(last) < p.cfg.MetadataInterval {
		return false
	}

	perField[rawField] = now

	return true
}

func (p *Parser) dropLog() *zerolog.Event {
	if p.cfg.Quiet {
		return p.log.Debug()
	}

	return p.log.Info()
}

func typeName(v any) string {
	return fmt.Sprintf("%T", v)
}
