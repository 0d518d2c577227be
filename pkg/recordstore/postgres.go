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

package recordstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oceandatatools/rvdas/pkg/logger"
	"github.com/oceandatatools/rvdas/pkg/models"
)

const (
	pgUndefinedTable  = "42P01"
	pgUndefinedColumn = "42703"
	pgDuplicateColumn = "42701"
)

var errBadTableName = errors.New("table name contains invalid characters")

var (
	tableNameRE   = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)
	badTableChars = regexp.MustCompile(`[^a-z0-9_]`)
)

// PostgresStore is a RecordStore over a pgx pool. One table per data_id;
// columns are inferred from the first record and widened with ALTER when
// later records bring new fields.
type PostgresStore struct {
	pool    *pgxpool.Pool
	cursors map[string]int
	log     logger.Logger
}

// NewPostgresStore wraps an existing pool.
func NewPostgresStore(pool *pgxpool.Pool, log logger.Logger) *PostgresStore {
	if log == nil {
		log = logger.Default()
	}

	return &PostgresStore{
		pool:    pool,
		cursors: map[string]int{},
		log:     log.WithComponent("postgres_store"),
	}
}

// TableName derives the store table for a record's data_id.
func TableName(rec *models.Record) string {
	name := strings.ToLower(rec.DataID)
	if name == "" {
		name = "unknown"
	}

	name = badTableChars.ReplaceAllString(name, "_")

	return "data_" + name
}

func checkTableName(table string) error {
	if !tableNameRE.MatchString(table) {
		return fmt.Errorf("%w: %q", errBadTableName, table)
	}

	return nil
}

func (s *PostgresStore) TableExists(ctx context.Context, table string) (bool, error) {
	var exists bool

	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = $1)`,
		table).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("table existence check failed: %w", err)
	}

	return exists, nil
}

// columnType infers the SQL type for a field value.
func columnType(value any) string {
	switch value.(type) {
	case bool:
		return "BOOLEAN"
	case int, int32, int64:
		return "BIGINT"
	case float32, float64:
		return "DOUBLE PRECISION"
	default:
		return "TEXT"
	}
}

func (s *PostgresStore) CreateTableFromRecord(ctx context.Context, rec *models.Record) error {
	table := TableName(rec)
	if err := checkTableName(table); err != nil {
		return err
	}

	columns := []string{`"timestamp" DOUBLE PRECISION`, `"message_type" TEXT`}

	names := make([]string, 0, len(rec.Fields))
	for name := range rec.Fields {
		names = append(names, name)
	}

	sort.Strings(names)

	for _, name := range names {
		columns = append(columns, fmt.Sprintf("%q %s", name, columnType(rec.Fields[name])))
	}

	query := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %q (id BIGSERIAL PRIMARY KEY, %s)",
		table, strings.Join(columns, ", "))

	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create table %q: %w", table, err)
	}

	return nil
}

func (s *PostgresStore) WriteRecord(ctx context.Context, rec *models.Record) error {
	err := s.insert(ctx, rec)
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case pgUndefinedTable:
		if err := s.CreateTableFromRecord(ctx, rec); err != nil {
			return err
		}

		return s.insert(ctx, rec)
	case pgUndefinedColumn:
		if err := s.widenTable(ctx, rec); err != nil {
			return err
		}

		return s.insert(ctx, rec)
	default:
		return err
	}
}

func (s *PostgresStore) insert(ctx context.Context, rec *models.Record) error {
	table := TableName(rec)
	if err := checkTableName(table); err != nil {
		return err
	}

	columns := []string{`"timestamp"`, `"message_type"`}
	values := []any{rec.Timestamp, rec.MessageType}

	names := make([]string, 0, len(rec.Fields))
	for name := range rec.Fields {
		names = append(names, name)
	}

	sort.Strings(names)

	for _, name := range names {
		columns = append(columns, fmt.Sprintf("%q", name))
		values = append(values, rec.Fields[name])
	}

	placeholders := make([]string, len(values))
	for i := range values {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	query := fmt.Sprintf("INSERT INTO %q (%s) VALUES (%s)",
		table, strings.Join(columns, ", "), strings.Join(placeholders, ", "))

	if _, err := s.pool.Exec(ctx, query, values...); err != nil {
		return fmt.Errorf("insert into %q failed: %w", table, err)
	}

	return nil
}

// widenTable adds columns for fields the table does not yet know.
// Duplicate-column races with other writers are swallowed.
func (s *PostgresStore) widenTable(ctx context.Context, rec *models.Record) error {
	table := TableName(rec)

	for name, value := range rec.Fields {
		query := fmt.Sprintf("ALTER TABLE %q ADD COLUMN %q %s", table, name, columnType(value))

		if _, err := s.pool.Exec(ctx, query); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgDuplicateColumn {
				continue
			}

			return fmt.Errorf("failed to widen table %q: %w", table, err)
		}

		s.log.Info().Str("table", table).Str("column", name).Msg("added column for new field")
	}

	return nil
}

func (s *PostgresStore) Read(ctx context.Context, table string, fields []string, count int) ([]*models.Record, error) {
	start := s.cursors[table]

	// An end-relative seek stored a negative cursor; resolve it against
	// the current row count before building the query.
	if start < 0 {
		total, err := s.rowCount(ctx, table)
		if err != nil {
			return nil, err
		}

		start = clampStart(start, total)
	}

	stop := -1
	if count > 0 {
		stop = start + count
	}

	recs, err := s.readRows(ctx, table, fields, start, stop)
	if err != nil {
		return nil, err
	}

	s.cursors[table] = start + len(recs)

	return recs, nil
}

func (s *PostgresStore) ReadRange(ctx context.Context, table string, fields []string, start, stop int) ([]*models.Record, error) {
	return s.readRows(ctx, table, fields, start, stop)
}

func (s *PostgresStore) readRows(ctx context.Context, table string, fields []string, start, stop int) ([]*models.Record, error) {
	if err := checkTableName(table); err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT * FROM %q ORDER BY id OFFSET %d", table, start)
	if stop >= 0 {
		query += fmt.Sprintf(" LIMIT %d", stop-start)
	}

	return s.query(ctx, table, query, fields)
}

func (s *PostgresStore) ReadTimeRange(ctx context.Context, table string, fields []string, start, stop float64) ([]*models.Record, error) {
	if err := checkTableName(table); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(
		`SELECT * FROM %q WHERE "timestamp" >= $1 AND "timestamp" < $2 ORDER BY id`, table)

	return s.query(ctx, table, query, fields, start, stop)
}

// query runs a SELECT * and reassembles rows into Records, restricted to
// the requested fields. A missing table reads as empty.
func (s *PostgresStore) query(ctx context.Context, table, sql string, fields []string, args ...any) ([]*models.Record, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUndefinedTable {
			s.log.Warn().Str("table", table).Msg("read from missing table, returning empty")
			return nil, nil
		}

		return nil, fmt.Errorf("read from %q failed: %w", table, err)
	}

	defer rows.Close()

	dataID := strings.TrimPrefix(table, "data_")

	var out []*models.Record

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("row scan failed: %w", err)
		}

		rec := models.NewRecord(dataID, 0, map[string]any{})

		for i, desc := range rows.FieldDescriptions() {
			switch desc.Name {
			case "id":
			case "timestamp":
				if f, ok := models.ToFloat(values[i]); ok {
					rec.Timestamp = f
				}
			case "message_type":
				if mt, ok := values[i].(string); ok {
					rec.MessageType = mt
				}
			default:
				if values[i] == nil {
					continue
				}

				if len(fields) > 0 && !fieldWanted(fields, desc.Name) {
					continue
				}

				rec.Fields[desc.Name] = values[i]
			}
		}

		out = append(out, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read from %q failed: %w", table, err)
	}

	return out, nil
}

// clampStart resolves a cursor against a table's row count: negative
// cursors count back from the end, clamped to the first row.
func clampStart(cursor, total int) int {
	if cursor >= 0 {
		return cursor
	}

	if start := total + cursor; start > 0 {
		return start
	}

	return 0
}

func (s *PostgresStore) rowCount(ctx context.Context, table string) (int, error) {
	if err := checkTableName(table); err != nil {
		return 0, err
	}

	var total int

	err := s.pool.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %q", table)).Scan(&total)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUndefinedTable {
			return 0, nil
		}

		return 0, fmt.Errorf("row count for %q failed: %w", table, err)
	}

	return total, nil
}

func fieldWanted(fields []string, name string) bool {
	for _, f := range fields {
		if f == name {
			return true
		}
	}

	return false
}

func (s *PostgresStore) Seek(table string, offset int, origin SeekOrigin) error {
	switch origin {
	case SeekStart:
		s.cursors[table] = offset
	case SeekCurrent, "":
		s.cursors[table] += offset
	case SeekEnd:
		// End-relative seeks resolve at read time; Read translates the
		// negative cursor against the table's row count.
		s.cursors[table] = -offset
	default:
		return fmt.Errorf("unknown seek origin %q", origin)
	}

	if s.cursors[table] < 0 && origin != SeekEnd {
		s.cursors[table] = 0
	}

	return nil
}

func (s *PostgresStore) DeleteTable(ctx context.Context, table string) error {
	if err := checkTableName(table); err != nil {
		return err
	}

	if _, err := s.pool.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %q", table)); err != nil {
		return fmt.Errorf("failed to drop table %q: %w", table, err)
	}

	delete(s.cursors, table)

	return nil
}

func (s *PostgresStore) Close(_ context.Context) error {
	s.pool.Close()
	return nil
}

var _ RecordStore = (*PostgresStore)(nil)
