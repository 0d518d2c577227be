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

// Package recordstore defines the pluggable table-per-data_id record
// store consumed by pipeline writers, and its Postgres implementation.
package recordstore

import (
	"context"

	"github.com/oceandatatools/rvdas/pkg/models"
)

// SeekOrigin anchors a Seek offset.
type SeekOrigin string

const (
	SeekStart   SeekOrigin = "start"
	SeekCurrent SeekOrigin = "current"
	SeekEnd     SeekOrigin = "end"
)

// RecordStore maps Records into named tables, one per data_id, with the
// schema inferred from the first record observed. Implementations are not
// concurrency-safe; each writer owns its store connection.
type RecordStore interface {
	TableExists(ctx context.Context, table string) (bool, error)
	CreateTableFromRecord(ctx context.Context, rec *models.Record) error
	WriteRecord(ctx context.Context, rec *models.Record) error

	// Read returns up to count rows from the table's current cursor,
	// restricted to the named fields (nil means all). count <= 0 reads
	// to the end.
	Read(ctx context.Context, table string, fields []string, count int) ([]*models.Record, error)
	// ReadRange returns rows [start, stop) by row index.
	ReadRange(ctx context.Context, table string, fields []string, start, stop int) ([]*models.Record, error)
	// ReadTimeRange returns rows with start <= timestamp < stop.
	ReadTimeRange(ctx context.Context, table string, fields []string, start, stop float64) ([]*models.Record, error)
	// Seek moves the table's read cursor.
	Seek(table string, offset int, origin SeekOrigin) error

	DeleteTable(ctx context.Context, table string) error
	Close(ctx context.Context) error
}
