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

	"github.com/oceandatatools/rvdas/pkg/logger"
)

// nmeaSentence wraps a payload in $...*checksum form.
func nmeaSentence(payload string) string {
	var sum byte
	for i := 0; i < len(payload); i++ {
		sum ^= payload[i]
	}

	return fmt.Sprintf("$%s*%02X", payload, sum)
}

// knots per meter/second.
const knotsPerMps = 1.9438445

// MWDConfig names the inputs of the MWD sentence synthesizer.
type MWDConfig struct {
	// TrueDirField and TrueSpeedField carry true wind direction (degrees)
	// and speed (meters/second), typically the output of TrueWinds.
	TrueDirField   string `json:"true_dir_field" yaml:"true_dir_field"`
	TrueSpeedField string `json:"true_speed_field" yaml:"true_speed_field"`
	// Talker is the two-letter talker id, default "WI".
	Talker string `json:"talker" yaml:"talker"`
}

// MWD synthesizes $--MWD NMEA sentences (wind direction and speed) from
// cached true-wind observations.
type MWD struct {
	cfg   MWDConfig
	cache *latestValues
	log   logger.Logger
}

// NewMWD builds the transform.
func NewMWD(cfg MWDConfig, log logger.Logger) *MWD {
	if log == nil {
		log = logger.Default()
	}

	if cfg.Talker == "" {
		cfg.Talker = "WI"
	}

	return &MWD{
		cfg:   cfg,
		cache: newLatestValues(),
		log:   log.WithComponent("mwd"),
	}
}

func (t *MWD) Apply(in any) any {
	return each(in, func(v any) any {
		rec := asRecord(v)
		if rec == nil {
			return nil
		}

		updated := t.cache.update(rec)

		relevant := false
		for _, name := range updated {
			if name == t.cfg.TrueDirField || name == t.cfg.TrueSpeedField {
				relevant = true
				break
			}
		}

		if !relevant {
			return nil
		}

		dir, _, haveDir := t.cache.float(t.cfg.TrueDirField)
		mps, _, haveSpeed := t.cache.float(t.cfg.TrueSpeedField)

		if !haveDir || !haveSpeed {
			return nil
		}

		// Magnetic direction is left empty; we have no variation source.
		payload := fmt.Sprintf("%sMWD,%.1f,T,,M,%.1f,N,%.1f,M",
			t.cfg.Talker, dir, mps*knotsPerMps, mps)

		return nmeaSentence(payload)
	})
}

// XDRMeasurement describes one measurement of an XDR sentence.
type XDRMeasurement struct {
	// Type is the single-letter transducer type, e.g. "C" temperature.
	Type string `json:"type" yaml:"type"`
	// Field supplies the value.
	Field string `json:"field" yaml:"field"`
	// Units is the single-letter units code, e.g. "C".
	Units string `json:"units" yaml:"units"`
	// ID names the transducer.
	ID string `json:"id" yaml:"id"`
}

// XDR synthesizes $--XDR transducer sentences from record fields. Only
// measurements whose fields are present contribute; a record carrying none
// drops.
type XDR struct {
	measurements []XDRMeasurement
	talker       string
	log          logger.Logger
}

// NewXDR builds the transform; talker defaults to "WI".
func NewXDR(measurements []XDRMeasurement, talker string, log logger.Logger) *XDR {
	if log == nil {
		log = logger.Default()
	}

	if talker == "" {
		talker = "WI"
	}

	return &XDR{
		measurements: measurements,
		talker:       talker,
		log:          log.WithComponent("xdr"),
	}
}

func (t *XDR) Apply(in any) any {
	return each(in, func(v any) any {
		rec := asRecord(v)
		if rec == nil {
			return nil
		}

		payload := t.talker + "XDR"
		found := false

		for _, m := range t.measurements {
			value, ok := rec.Fields[m.Field]
			if !ok {
				continue
			}

			payload += fmt.Sprintf(",%s,%v,%s,%s", m.Type, value, m.Units, m.ID)
			found = true
		}

		if !found {
			return nil
		}

		return nmeaSentence(payload)
	})
}
