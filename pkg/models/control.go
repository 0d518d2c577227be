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

package models

import "time"

// Cruise is the unit of configuration: a named, time-bounded deployment.
// At most one cruise is loaded at a time.
type Cruise struct {
	ID             string     `json:"id"`
	Start          *time.Time `json:"start,omitempty"`
	End            *time.Time `json:"end,omitempty"`
	ConfigFilename string     `json:"config_filename,omitempty"`
	LoadedTime     time.Time  `json:"loaded_time"`
	ActiveMode     string     `json:"active_mode,omitempty"`
	DefaultMode    string     `json:"default_mode,omitempty"`
}

// Mode is a named bundle naming one LoggerConfig per Logger. Unique per
// (name, cruise).
type Mode struct {
	Name   string `json:"name"`
	Cruise string `json:"cruise"`
}

// Logger is a named data-acquisition pipeline. Logger and LoggerConfig
// reference each other; the cycle is broken with IDs so that deletes can
// null the link explicitly.
type Logger struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Cruise string `json:"cruise"`
	// ConfigID is the logger's current LoggerConfig, 0 when unset.
	ConfigID int64 `json:"config_id,omitempty"`
}

// LoggerConfig is one possible pipeline spec for a Logger.
type LoggerConfig struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	LoggerID int64  `json:"logger_id"`
	// Spec is the serialized reader/transform/writer DAG, JSON.
	Spec          string   `json:"spec"`
	Modes         []string `json:"modes,omitempty"`
	CurrentConfig bool     `json:"current_config"`
	Enabled       bool     `json:"enabled"`
}

// LoggerConfigState is one row of the append-only observed-state history
// for a logger. The latest row per logger is authoritative.
type LoggerConfigState struct {
	ID          string    `json:"id"`
	LoggerID    int64     `json:"logger_id"`
	ConfigID    int64     `json:"config_id,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	LastChecked time.Time `json:"last_checked"`
	Running     bool      `json:"running"`
	Failed      bool      `json:"failed"`
	Pid         int       `json:"pid"`
	Errors      string    `json:"errors,omitempty"`
}

// LoggerStatus is the observed state a runner reports for one logger.
type LoggerStatus struct {
	Config  string   `json:"config"`
	Errors  []string `json:"errors,omitempty"`
	Pid     int      `json:"pid"`
	Failed  bool     `json:"failed"`
	Running bool     `json:"running"`
}

// LogMessage is one entry of the server-side message log.
type LogMessage struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	User      string    `json:"user,omitempty"`
	LogLevel  int       `json:"log_level"`
	CruiseID  string    `json:"cruise_id,omitempty"`
	Message   string    `json:"message"`
}
