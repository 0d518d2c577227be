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
	"math"
	"time"

	"github.com/oceandatatools/rvdas/pkg/logger"
	"github.com/oceandatatools/rvdas/pkg/models"
)

// TrueWindsConfig names the input and output fields of the true-winds
// computation.
type TrueWindsConfig struct {
	CourseField   string `json:"course_field" yaml:"course_field"`
	SpeedField    string `json:"speed_field" yaml:"speed_field"`
	HeadingField  string `json:"heading_field" yaml:"heading_field"`
	WindDirField  string `json:"wind_dir_field" yaml:"wind_dir_field"`
	WindSpeedField string `json:"wind_speed_field" yaml:"wind_speed_field"`
	TrueDirName     string `json:"true_dir_name" yaml:"true_dir_name"`
	TrueSpeedName   string `json:"true_speed_name" yaml:"true_speed_name"`
	ApparentDirName string `json:"apparent_dir_name" yaml:"apparent_dir_name"`
	// UpdateOnFields restricts which input updates trigger a computation;
	// empty means any.
	UpdateOnFields []string `json:"update_on_fields" yaml:"update_on_fields"`
	// ZeroLineReference is the angle between the bow and the wind
	// sensor's zero line, degrees.
	ZeroLineReference float64 `json:"zero_line_reference" yaml:"zero_line_reference"`
	// ConvertSpeedFactor and ConvertWindFactor scale vessel and wind
	// speeds into common units; zero means 1.
	ConvertSpeedFactor float64 `json:"convert_speed_factor" yaml:"convert_speed_factor"`
	ConvertWindFactor  float64 `json:"convert_wind_factor" yaml:"convert_wind_factor"`
	// MetadataInterval, when positive, attaches descriptors to the
	// derived fields on that wall-clock interval.
	MetadataInterval time.Duration `json:"metadata_interval" yaml:"metadata_interval"`
}

// TrueWinds derives true wind direction/speed and apparent wind direction
// from cached course, speed, heading and relative wind observations.
type TrueWinds struct {
	cfg    TrueWindsConfig
	cache  *latestValues
	log    logger.Logger
	inputs []string

	lastMetadata time.Time
	now          func() time.Time
}

// NewTrueWinds builds the transform. Output names default to TrueWindDir,
// TrueWindSpeed and ApparentWindDir.
func NewTrueWinds(cfg TrueWindsConfig, log logger.Logger) *TrueWinds {
	if log == nil {
		log = logger.Default()
	}

	if cfg.TrueDirName == "" {
		cfg.TrueDirName = "TrueWindDir"
	}

	if cfg.TrueSpeedName == "" {
		cfg.TrueSpeedName = "TrueWindSpeed"
	}

	if cfg.ApparentDirName == "" {
		cfg.ApparentDirName = "ApparentWindDir"
	}

	if cfg.ConvertSpeedFactor == 0 {
		cfg.ConvertSpeedFactor = 1
	}

	if cfg.ConvertWindFactor == 0 {
		cfg.ConvertWindFactor = 1
	}

	return &TrueWinds{
		cfg:   cfg,
		cache: newLatestValues(),
		log:   log.WithComponent("true_winds"),
		inputs: []string{
			cfg.CourseField, cfg.SpeedField, cfg.HeadingField,
			cfg.WindDirField, cfg.WindSpeedField,
		},
		now: time.Now,
	}
}

func (t *TrueWinds) Apply(in any) any {
	return each(in, func(v any) any {
		rec := asRecord(v)
		if rec == nil {
			return nil
		}

		updated := t.cache.update(rec)

		trigger := false

		for _, name := range updated {
			if !contains(t.inputs, name) {
				continue
			}

			if contains(t.cfg.UpdateOnFields, name) {
				trigger = true
			}
		}

		if !trigger {
			return nil
		}

		return t.compute(rec.Timestamp)
	})
}

func (t *TrueWinds) compute(ts float64) any {
	course, _, haveCourse := t.cache.float(t.cfg.CourseField)
	speed, _, haveSpeed := t.cache.float(t.cfg.SpeedField)
	heading, _, haveHeading := t.cache.float(t.cfg.HeadingField)
	windDir, _, haveWindDir := t.cache.float(t.cfg.WindDirField)
	windSpeed, _, haveWindSpeed := t.cache.float(t.cfg.WindSpeedField)

	if !haveCourse || !haveSpeed || !haveHeading || !haveWindDir || !haveWindSpeed {
		return nil
	}

	if course < 0 || course > 360 || windDir < 0 || windDir > 360 {
		t.log.Warn().Float64("course", course).Float64("wind_dir", windDir).
			Msg("true winds input out of range")
		return nil
	}

	speed *= t.cfg.ConvertSpeedFactor
	windSpeed *= t.cfg.ConvertWindFactor

	trueDir, trueSpeed, apparentDir := trueWinds(course, speed, heading,
		windDir, windSpeed, t.cfg.ZeroLineReference)

	out := models.NewRecord("", ts, map[string]any{
		t.cfg.TrueDirName:     trueDir,
		t.cfg.TrueSpeedName:   trueSpeed,
		t.cfg.ApparentDirName: apparentDir,
	})

	if t.metadataDue() {
		out.SetMetadata(t.cfg.TrueDirName, map[string]string{
			"units": "degrees", "description": "True wind direction"})
		out.SetMetadata(t.cfg.TrueSpeedName, map[string]string{
			"description": "True wind speed"})
		out.SetMetadata(t.cfg.ApparentDirName, map[string]string{
			"units": "degrees", "description": "Apparent wind direction"})
	}

	return out
}

func (t *TrueWinds) metadataDue() bool {
	if t.cfg.MetadataInterval <= 0 {
		return false
	}

	now := t.now()
	if !t.lastMetadata.IsZero() && now.Sub(t.lastMetadata) < t.cfg.MetadataInterval {
		return false
	}

	t.lastMetadata = now

	return true
}

// trueWinds composes the vessel's ground velocity with the measured
// apparent wind. Directions are compass degrees "from"; the true direction
// comes back in (0, 360].
func trueWinds(course, speed, heading, windDir, windSpeed, zeroLine float64) (trueDir, trueSpeed, apparentDir float64) {
	apparentDir = math.Mod(heading+windDir-zeroLine, 360)
	if apparentDir < 0 {
		apparentDir += 360
	}

	// Air velocity over ground = velocity relative to ship + ship velocity.
	// "From" direction d means motion toward d+180.
	u := -windSpeed*math.Sin(apparentDir*math.Pi/180) + speed*math.Sin(course*math.Pi/180)
	v := -windSpeed*math.Cos(apparentDir*math.Pi/180) + speed*math.Cos(course*math.Pi/180)

	trueSpeed = math.Hypot(u, v)

	trueDir = math.Atan2(-u, -v) * 180 / math.Pi
	if trueDir <= 0 {
		trueDir += 360
	}

	return trueDir, trueSpeed, apparentDir
}
