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
	"encoding/xml"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/oceandatatools/rvdas/pkg/logger"
)

var (
	errNoLinearRing = errors.New("boundary file contains no LinearRing posList")
	errOddPosList   = errors.New("posList has an odd number of coordinates")
)

// GeofenceConfig controls the geofence transform.
type GeofenceConfig struct {
	// BoundaryFile is a GML file whose LinearRing posList defines the
	// polygon, "lat lon lat lon ...".
	BoundaryFile string `json:"boundary_file" yaml:"boundary_file"`
	// Distance buffers the boundary outward, in degrees.
	Distance float64 `json:"distance" yaml:"distance"`
	// LatitudeField and LongitudeField supply position, decimal degrees.
	LatitudeField  string `json:"latitude_field" yaml:"latitude_field"`
	LongitudeField string `json:"longitude_field" yaml:"longitude_field"`
	// EnteringMessage and LeavingMessage are emitted on state
	// transitions; an empty message suppresses that side.
	EnteringMessage string `json:"entering_message" yaml:"entering_message"`
	LeavingMessage  string `json:"leaving_message" yaml:"leaving_message"`
	// SecondsBetweenChecks throttles checks against the system clock,
	// independent of record rate.
	SecondsBetweenChecks float64 `json:"seconds_between_checks" yaml:"seconds_between_checks"`
}

type geoPoint struct {
	lat float64
	lon float64
}

// Geofence tracks whether the vessel is inside a polygonal boundary and
// emits messages on boundary crossings.
type Geofence struct {
	cfg     GeofenceConfig
	polygon []geoPoint
	cache   *latestValues
	log     logger.Logger

	// state is -1 unknown, 0 outside, 1 inside.
	state     int
	lastCheck time.Time
	now       func() time.Time
}

// NewGeofence loads the boundary polygon and builds the transform.
func NewGeofence(cfg GeofenceConfig, log logger.Logger) (*Geofence, error) {
	if log == nil {
		log = logger.Default()
	}

	polygon, err := loadLinearRing(cfg.BoundaryFile)
	if err != nil {
		return nil, err
	}

	return &Geofence{
		cfg:     cfg,
		polygon: polygon,
		cache:   newLatestValues(),
		log:     log.WithComponent("geofence"),
		state:   -1,
		now:     time.Now,
	}, nil
}

func (t *Geofence) Apply(in any) any {
	return each(in, func(v any) any {
		rec := asRecord(v)
		if rec == nil {
			return nil
		}

		t.cache.update(rec)

		now := t.now()
		if t.cfg.SecondsBetweenChecks > 0 && !t.lastCheck.IsZero() &&
			now.Sub(t.lastCheck).Seconds() < t.cfg.SecondsBetweenChecks {
			return nil
		}

		lat, _, haveLat := t.cache.float(t.cfg.LatitudeField)
		lon, _, haveLon := t.cache.float(t.cfg.LongitudeField)

		if !haveLat || !haveLon {
			return nil
		}

		t.lastCheck = now

		inside := 0
		if t.contains(geoPoint{lat: lat, lon: lon}) {
			inside = 1
		}

		if inside == t.state {
			return nil
		}

		t.state = inside

		if inside == 1 {
			if t.cfg.EnteringMessage == "" {
				return nil
			}

			return t.cfg.EnteringMessage
		}

		if t.cfg.LeavingMessage == "" {
			return nil
		}

		return t.cfg.LeavingMessage
	})
}

// contains tests point-in-polygon, widened by the configured buffer
// distance.
func (t *Geofence) contains(p geoPoint) bool {
	if pointInPolygon(p, t.polygon) {
		return true
	}

	if t.cfg.Distance <= 0 {
		return false
	}

	for i := range t.polygon {
		a := t.polygon[i]
		b := t.polygon[(i+1)%len(t.polygon)]

		if distanceToSegment(p, a, b) <= t.cfg.Distance {
			return true
		}
	}

	return false
}

// pointInPolygon is the even-odd ray casting test in plate carree
// coordinates (lon as x, lat as y).
func pointInPolygon(p geoPoint, polygon []geoPoint) bool {
	inside := false

	for i, j := 0, len(polygon)-1; i < len(polygon); j, i = i, i+1 {
		a, b := polygon[i], polygon[j]

		if (a.lat > p.lat) != (b.lat > p.lat) &&
			p.lon < (b.lon-a.lon)*(p.lat-a.lat)/(b.lat-a.lat)+a.lon {
			inside = !inside
		}
	}

	return inside
}

func distanceToSegment(p, a, b geoPoint) float64 {
	ax, ay := a.lon, a.lat
	bx, by := b.lon, b.lat
	px, py := p.lon, p.lat

	dx, dy := bx-ax, by-ay

	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return math.Hypot(px-ax, py-ay)
	}

	u := ((px-ax)*dx + (py-ay)*dy) / lenSq
	u = math.Max(0, math.Min(1, u))

	return math.Hypot(px-(ax+u*dx), py-(ay+u*dy))
}

// loadLinearRing extracts the first LinearRing posList (or coordinates)
// element from a GML file.
func loadLinearRing(path string) ([]geoPoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read boundary file: %w", err)
	}

	decoder := xml.NewDecoder(strings.NewReader(string(data)))

	inRing := false

	for {
		token, err := decoder.Token()
		if err != nil {
			return nil, errNoLinearRing
		}

		switch elem := token.(type) {
		case xml.StartElement:
			switch elem.Name.Local {
			case "LinearRing":
				inRing = true
			case "posList", "coordinates":
				if !inRing {
					continue
				}

				var text string
				if err := decoder.DecodeElement(&text, &elem); err != nil {
					return nil, fmt.Errorf("failed to decode posList: %w", err)
				}

				return parsePosList(text)
			}
		case xml.EndElement:
			if elem.Name.Local == "LinearRing" {
				inRing = false
			}
		}
	}
}

func parsePosList(text string) ([]geoPoint, error) {
	tokens := strings.Fields(strings.ReplaceAll(text, ",", " "))
	if len(tokens)%2 != 0 {
		return nil, errOddPosList
	}

	polygon := make([]geoPoint, 0, len(tokens)/2)

	for i := 0; i < len(tokens); i += 2 {
		lat, err := strconv.ParseFloat(tokens[i], 64)
		if err != nil {
			return nil, fmt.Errorf("bad latitude %q: %w", tokens[i], err)
		}

		lon, err := strconv.ParseFloat(tokens[i+1], 64)
		if err != nil {
			return nil, fmt.Errorf("bad longitude %q: %w", tokens[i+1], err)
		}

		polygon = append(polygon, geoPoint{lat: lat, lon: lon})
	}

	// A GML ring repeats its first point at the end.
	if len(polygon) > 1 && polygon[0] == polygon[len(polygon)-1] {
		polygon = polygon[:len(polygon)-1]
	}

	return polygon, nil
}
