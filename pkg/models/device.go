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

// FieldType enumerates the raw field types a device type may declare.
type FieldType string

const (
	FieldFloat   FieldType = "float"
	FieldInt     FieldType = "int"
	FieldStr     FieldType = "str"
	FieldBool    FieldType = "bool"
	FieldHex     FieldType = "hex"
	FieldNMEALat FieldType = "nmea_lat"
	FieldNMEALon FieldType = "nmea_lon"
)

// FieldSpec declares the type and optional metadata of one raw field.
type FieldSpec struct {
	Type        FieldType `json:"data_type" yaml:"data_type"`
	Units       string    `json:"units,omitempty" yaml:"units,omitempty"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
}

// DeviceTypeDef is a configuration-time device type: a named set of regex
// patterns (one per message type) plus field type specs.
type DeviceTypeDef struct {
	Name string
	// Patterns preserves declaration order; for list-form formats the
	// MessageType is empty.
	Patterns []MessagePattern
	Fields   map[string]FieldSpec
}

// MessagePattern pairs an optional message type with its regex source.
type MessagePattern struct {
	MessageType string
	Pattern     string
}

// DeviceDef binds a data_id to a device type and a raw-to-canonical field
// rename map.
type DeviceDef struct {
	Name       string
	DeviceType string
	// Fields maps raw (device-type) field names to canonical names.
	// Every key must be a field declared by the device type.
	Fields map[string]string
}
