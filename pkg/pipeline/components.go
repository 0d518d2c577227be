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

package pipeline

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oceandatatools/rvdas/pkg/device"
	"github.com/oceandatatools/rvdas/pkg/parser"
	"github.com/oceandatatools/rvdas/pkg/reader"
	"github.com/oceandatatools/rvdas/pkg/recordstore"
	"github.com/oceandatatools/rvdas/pkg/transform"
	"github.com/oceandatatools/rvdas/pkg/writer"
)

// registerBuiltins wires the component classes shipped with the module.
func registerBuiltins(r *Registry) {
	registerReaders(r)
	registerTransforms(r)
	registerWriters(r)
}

func registerReaders(r *Registry) {
	r.Register("TextFileReader", func(kwargs map[string]any, deps BuildDeps) (any, error) {
		var cfg struct {
			FileSpec string `json:"file_spec"`
			Tail     bool   `json:"tail"`
		}

		if err := decodeKwargs(kwargs, &cfg); err != nil {
			return nil, err
		}

		return reader.NewTextFileReader(cfg.FileSpec, cfg.Tail, deps.Log)
	})

	r.Register("UDPReader", func(kwargs map[string]any, deps BuildDeps) (any, error) {
		var cfg struct {
			Interface string `json:"interface"`
			Port      int    `json:"port"`
		}

		if err := decodeKwargs(kwargs, &cfg); err != nil {
			return nil, err
		}

		return reader.NewUDPReader(fmt.Sprintf("%s:%d", cfg.Interface, cfg.Port), deps.Log)
	})

	r.Register("SerialReader", func(kwargs map[string]any, deps BuildDeps) (any, error) {
		var cfg reader.SerialConfig
		if err := decodeKwargs(kwargs, &cfg); err != nil {
			return nil, err
		}

		return reader.NewSerialReader(cfg, deps.Log)
	})

	r.Register("NATSReader", func(kwargs map[string]any, deps BuildDeps) (any, error) {
		var cfg struct {
			Server  string `json:"server"`
			Subject string `json:"subject"`
		}

		if err := decodeKwargs(kwargs, &cfg); err != nil {
			return nil, err
		}

		return reader.NewNATSReader(cfg.Server, cfg.Subject, deps.Log)
	})

	r.Register("TimeoutReader", func(kwargs map[string]any, deps BuildDeps) (any, error) {
		var cfg struct {
			Reader  ComponentSpec `json:"reader"`
			Timeout float64       `json:"timeout"`
			Name    string        `json:"name"`
		}

		if err := decodeKwargs(kwargs, &cfg); err != nil {
			return nil, err
		}

		source, err := deps.Registry.Build(cfg.Reader.Class, cfg.Reader.Kwargs, deps)
		if err != nil {
			return nil, err
		}

		src, ok := source.(reader.Reader)
		if !ok {
			return nil, fmt.Errorf("timeout reader wraps %q, which is not a reader", cfg.Reader.Class)
		}

		return reader.NewTimeoutReader(src, seconds(cfg.Timeout), cfg.Name, deps.Log), nil
	})
}

func registerTransforms(r *Registry) {
	r.Register("ParseTransform", func(kwargs map[string]any, deps BuildDeps) (any, error) {
		var cfg struct {
			DefinitionPath   stringList `json:"definition_path"`
			RecordFormat     string     `json:"record_format"`
			DataID           string     `json:"data_id"`
			MetadataInterval float64    `json:"metadata_interval"`
			Quiet            bool       `json:"quiet"`
		}

		if err := decodeKwargs(kwargs, &cfg); err != nil {
			return nil, err
		}

		var registry *device.Registry

		if len(cfg.DefinitionPath) > 0 {
			var err error

			registry, err = device.NewRegistry(deps.Log, cfg.DefinitionPath...)
			if err != nil {
				return nil, err
			}
		}

		return parser.NewParser(registry, parser.Config{
			RecordFormat:     cfg.RecordFormat,
			DataID:           cfg.DataID,
			MetadataInterval: seconds(cfg.MetadataInterval),
			Quiet:            cfg.Quiet,
		}, deps.Log)
	})

	r.Register("PrefixTransform", func(kwargs map[string]any, _ BuildDeps) (any, error) {
		var cfg struct {
			Prefix string `json:"prefix"`
			Sep    string `json:"sep"`
		}

		if err := decodeKwargs(kwargs, &cfg); err != nil {
			return nil, err
		}

		return transform.NewPrefixTransform(cfg.Prefix, cfg.Sep), nil
	})

	r.Register("StripTransform", func(kwargs map[string]any, _ BuildDeps) (any, error) {
		var cfg struct {
			Chars string `json:"chars"`
		}

		if err := decodeKwargs(kwargs, &cfg); err != nil {
			return nil, err
		}

		return transform.NewStripTransform(cfg.Chars), nil
	})

	r.Register("SliceTransform", func(kwargs map[string]any, deps BuildDeps) (any, error) {
		var cfg struct {
			Fields string `json:"fields"`
			Sep    string `json:"sep"`
		}

		if err := decodeKwargs(kwargs, &cfg); err != nil {
			return nil, err
		}

		return transform.NewSliceTransform(cfg.Fields, cfg.Sep, deps.Log)
	})

	r.Register("SplitTransform", func(kwargs map[string]any, _ BuildDeps) (any, error) {
		var cfg struct {
			Sep string `json:"sep"`
		}

		if err := decodeKwargs(kwargs, &cfg); err != nil {
			return nil, err
		}

		return transform.NewSplitTransform(cfg.Sep), nil
	})

	r.Register("RegexFilterTransform", func(kwargs map[string]any, _ BuildDeps) (any, error) {
		var cfg struct {
			Pattern string `json:"pattern"`
			Negate  bool   `json:"negate"`
		}

		if err := decodeKwargs(kwargs, &cfg); err != nil {
			return nil, err
		}

		return transform.NewRegexFilterTransform(cfg.Pattern, cfg.Negate)
	})

	r.Register("RegexReplaceTransform", func(kwargs map[string]any, _ BuildDeps) (any, error) {
		var cfg struct {
			Pattern     string `json:"pattern"`
			Replacement string `json:"replacement"`
			Count       int    `json:"count"`
		}

		if err := decodeKwargs(kwargs, &cfg); err != nil {
			return nil, err
		}

		return transform.NewRegexReplaceTransform(cfg.Pattern, cfg.Replacement, cfg.Count)
	})

	r.Register("UniqueTransform", func(_ map[string]any, _ BuildDeps) (any, error) {
		return transform.NewUniqueTransform(), nil
	})

	r.Register("SelectFieldsTransform", func(kwargs map[string]any, _ BuildDeps) (any, error) {
		var cfg struct {
			Keep   []string `json:"keep"`
			Delete []string `json:"delete"`
		}

		if err := decodeKwargs(kwargs, &cfg); err != nil {
			return nil, err
		}

		return transform.NewSelectFieldsTransform(cfg.Keep, cfg.Delete), nil
	})

	r.Register("RenameTransform", func(kwargs map[string]any, _ BuildDeps) (any, error) {
		var cfg struct {
			Renames map[string]string `json:"renames"`
		}

		if err := decodeKwargs(kwargs, &cfg); err != nil {
			return nil, err
		}

		return transform.NewRenameTransform(cfg.Renames), nil
	})

	r.Register("ExtractFieldTransform", func(kwargs map[string]any, _ BuildDeps) (any, error) {
		var cfg struct {
			Field string `json:"field"`
		}

		if err := decodeKwargs(kwargs, &cfg); err != nil {
			return nil, err
		}

		return transform.NewExtractFieldTransform(cfg.Field), nil
	})

	r.Register("FormatTransform", func(kwargs map[string]any, deps BuildDeps) (any, error) {
		var cfg struct {
			Format   string         `json:"format"`
			Defaults map[string]any `json:"defaults"`
		}

		if err := decodeKwargs(kwargs, &cfg); err != nil {
			return nil, err
		}

		return transform.NewFormatTransform(cfg.Format, cfg.Defaults, deps.Log), nil
	})

	r.Register("CountTransform", func(_ map[string]any, _ BuildDeps) (any, error) {
		return transform.NewCountTransform(), nil
	})

	r.Register("MaxMinTransform", func(_ map[string]any, _ BuildDeps) (any, error) {
		return transform.NewMaxMinTransform(), nil
	})

	r.Register("ToJSONTransform", func(_ map[string]any, deps BuildDeps) (any, error) {
		return transform.NewToJSONTransform(deps.Log), nil
	})

	r.Register("FromJSONTransform", func(_ map[string]any, deps BuildDeps) (any, error) {
		return transform.NewFromJSONTransform(deps.Log), nil
	})

	r.Register("TimestampTransform", func(kwargs map[string]any, deps BuildDeps) (any, error) {
		var cfg transform.TimestampConfig
		if err := decodeKwargs(kwargs, &cfg); err != nil {
			return nil, err
		}

		return transform.NewTimestampTransform(cfg, deps.Log), nil
	})

	r.Register("ConvertFieldsTransform", func(kwargs map[string]any, deps BuildDeps) (any, error) {
		var cfg transform.ConvertFieldsConfig
		if err := decodeKwargs(kwargs, &cfg); err != nil {
			return nil, err
		}

		return transform.NewConvertFields(cfg, deps.Log), nil
	})

	r.Register("ValueFilterTransform", func(kwargs map[string]any, deps BuildDeps) (any, error) {
		var cfg struct {
			Bounds string `json:"bounds"`
		}

		if err := decodeKwargs(kwargs, &cfg); err != nil {
			return nil, err
		}

		return transform.NewValueFilter(cfg.Bounds, deps.Log)
	})

	r.Register("ValueFilterIgnoreTransform", func(kwargs map[string]any, deps BuildDeps) (any, error) {
		var cfg struct {
			Bounds string `json:"bounds"`
		}

		if err := decodeKwargs(kwargs, &cfg); err != nil {
			return nil, err
		}

		return transform.NewValueFilterIgnore(cfg.Bounds, deps.Log)
	})

	r.Register("TrueWindsTransform", func(kwargs map[string]any, deps BuildDeps) (any, error) {
		var cfg transform.TrueWindsConfig
		if err := decodeKwargs(kwargs, &cfg); err != nil {
			return nil, err
		}

		// metadata_interval arrives in seconds, not nanoseconds.
		if v, ok := kwargs["metadata_interval"]; ok {
			if secs, ok := toFloat(v); ok {
				cfg.MetadataInterval = seconds(secs)
			}
		}

		return transform.NewTrueWinds(cfg, deps.Log), nil
	})

	r.Register("MWDTransform", func(kwargs map[string]any, deps BuildDeps) (any, error) {
		var cfg transform.MWDConfig
		if err := decodeKwargs(kwargs, &cfg); err != nil {
			return nil, err
		}

		return transform.NewMWD(cfg, deps.Log), nil
	})

	r.Register("XDRTransform", func(kwargs map[string]any, deps BuildDeps) (any, error) {
		var cfg struct {
			Measurements []transform.XDRMeasurement `json:"measurements"`
			Talker       string                     `json:"talker"`
		}

		if err := decodeKwargs(kwargs, &cfg); err != nil {
			return nil, err
		}

		return transform.NewXDR(cfg.Measurements, cfg.Talker, deps.Log), nil
	})

	r.Register("DeltaTransform", func(kwargs map[string]any, deps BuildDeps) (any, error) {
		var cfg transform.DeltaConfig
		if err := decodeKwargs(kwargs, &cfg); err != nil {
			return nil, err
		}

		return transform.NewDelta(cfg, deps.Log), nil
	})

	r.Register("InterpolationTransform", func(kwargs map[string]any, deps BuildDeps) (any, error) {
		var cfg transform.InterpolationConfig
		if err := decodeKwargs(kwargs, &cfg); err != nil {
			return nil, err
		}

		return transform.NewInterpolation(cfg, deps.Log), nil
	})

	r.Register("SubsampleTransform", func(kwargs map[string]any, deps BuildDeps) (any, error) {
		var cfg struct {
			FieldSpec map[string]transform.SubsampleSpec `json:"field_spec"`
			DataID    string                             `json:"data_id"`
		}

		if err := decodeKwargs(kwargs, &cfg); err != nil {
			return nil, err
		}

		return transform.NewSubsample(cfg.FieldSpec, cfg.DataID, deps.Log), nil
	})

	r.Register("GeofenceTransform", func(kwargs map[string]any, deps BuildDeps) (any, error) {
		var cfg transform.GeofenceConfig
		if err := decodeKwargs(kwargs, &cfg); err != nil {
			return nil, err
		}

		return transform.NewGeofence(cfg, deps.Log)
	})

	r.Register("XMLAggregateTransform", func(kwargs map[string]any, _ BuildDeps) (any, error) {
		var cfg struct {
			Tag string `json:"tag"`
		}

		if err := decodeKwargs(kwargs, &cfg); err != nil {
			return nil, err
		}

		return transform.NewXMLAggregator(cfg.Tag), nil
	})
}

func registerWriters(r *Registry) {
	r.Register("TextFileWriter", func(kwargs map[string]any, deps BuildDeps) (any, error) {
		var cfg writer.FileConfig
		if err := decodeKwargs(kwargs, &cfg); err != nil {
			return nil, err
		}

		return writer.NewTextFileWriter(cfg, deps.Log)
	})

	r.Register("LogfileWriter", func(kwargs map[string]any, deps BuildDeps) (any, error) {
		var cfg writer.LogfileConfig
		if err := decodeKwargs(kwargs, &cfg); err != nil {
			return nil, err
		}

		return writer.NewLogfileWriter(cfg, deps.Log)
	})

	r.Register("UDPWriter", func(kwargs map[string]any, deps BuildDeps) (any, error) {
		var cfg struct {
			Destination string `json:"destination"`
			Port        int    `json:"port"`
			Broadcast   bool   `json:"broadcast"`
		}

		if err := decodeKwargs(kwargs, &cfg); err != nil {
			return nil, err
		}

		return writer.NewUDPWriter(fmt.Sprintf("%s:%d", cfg.Destination, cfg.Port),
			cfg.Broadcast, deps.Log)
	})

	r.Register("NATSWriter", func(kwargs map[string]any, deps BuildDeps) (any, error) {
		var cfg struct {
			Server  string `json:"server"`
			Subject string `json:"subject"`
		}

		if err := decodeKwargs(kwargs, &cfg); err != nil {
			return nil, err
		}

		return writer.NewNATSWriter(cfg.Server, cfg.Subject, deps.Log)
	})

	r.Register("CachedDataWriter", func(kwargs map[string]any, deps BuildDeps) (any, error) {
		var cfg struct {
			URL string `json:"url"`
		}

		if err := decodeKwargs(kwargs, &cfg); err != nil {
			return nil, err
		}

		return writer.NewCachedDataWriter(cfg.URL, deps.Log), nil
	})

	r.Register("RecordStoreWriter", func(kwargs map[string]any, deps BuildDeps) (any, error) {
		var cfg struct {
			Connection string `json:"connection"`
		}

		if err := decodeKwargs(kwargs, &cfg); err != nil {
			return nil, err
		}

		pool, err := pgxpool.New(deps.Ctx, cfg.Connection)
		if err != nil {
			return nil, fmt.Errorf("failed to open record store pool: %w", err)
		}

		store := recordstore.NewPostgresStore(pool, deps.Log)

		return writer.NewRecordStoreWriter(deps.Ctx, store, deps.Log), nil
	})
}

// stringList accepts a single string or a list of strings.
type stringList []string

func (s *stringList) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var one string
		if err := json.Unmarshal(data, &one); err != nil {
			return err
		}

		*s = []string{one}

		return nil
	}

	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}

	*s = many

	return nil
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
