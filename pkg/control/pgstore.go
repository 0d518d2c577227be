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

package control

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oceandatatools/rvdas/pkg/logger"
	"github.com/oceandatatools/rvdas/pkg/models"
)

// querier is the subset of pgx shared by pools and transactions.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconnCommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// pgconnCommandTag aliases the pgconn result type without importing it
// everywhere.
type pgconnCommandTag = interface{ RowsAffected() int64 }

// poolQuerier adapts a pgxpool.Pool to querier.
type poolQuerier struct{ pool *pgxpool.Pool }

func (p poolQuerier) Exec(ctx context.Context, sql string, args ...any) (pgconnCommandTag, error) {
	tag, err := p.pool.Exec(ctx, sql, args...)
	return tag, err
}

func (p poolQuerier) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return p.pool.Query(ctx, sql, args...)
}

func (p poolQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return p.pool.QueryRow(ctx, sql, args...)
}

// txQuerier adapts a pgx.Tx to querier.
type txQuerier struct{ tx pgx.Tx }

func (t txQuerier) Exec(ctx context.Context, sql string, args ...any) (pgconnCommandTag, error) {
	tag, err := t.tx.Exec(ctx, sql, args...)
	return tag, err
}

func (t txQuerier) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return t.tx.Query(ctx, sql, args...)
}

func (t txQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return t.tx.QueryRow(ctx, sql, args...)
}

// PgStore is the Postgres-backed Store. WithTransaction takes an access
// exclusive lock on the configuration tables, giving mutators strict
// serializability.
type PgStore struct {
	db   querier
	pool *pgxpool.Pool
	log  logger.Logger
}

const (
	pgTxRetries    = 3
	pgTxRetryDelay = 250 * time.Millisecond
)

// NewPgStore wraps an existing pool and ensures the schema exists.
func NewPgStore(ctx context.Context, pool *pgxpool.Pool, log logger.Logger) (*PgStore, error) {
	if log == nil {
		log = logger.Default()
	}

	s := &PgStore{
		db:   poolQuerier{pool: pool},
		pool: pool,
		log:  log.WithComponent("pg_store"),
	}

	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}

	return s, nil
}

var controlSchema = []string{
	`CREATE TABLE IF NOT EXISTS cruise (
		id TEXT PRIMARY KEY,
		start_time TIMESTAMPTZ,
		end_time TIMESTAMPTZ,
		config_filename TEXT NOT NULL DEFAULT '',
		loaded_time TIMESTAMPTZ NOT NULL,
		active_mode TEXT NOT NULL DEFAULT '',
		default_mode TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS mode (
		name TEXT NOT NULL,
		cruise TEXT NOT NULL REFERENCES cruise(id) ON DELETE CASCADE,
		PRIMARY KEY (name, cruise)
	)`,
	`CREATE TABLE IF NOT EXISTS logger (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		cruise TEXT NOT NULL REFERENCES cruise(id) ON DELETE CASCADE,
		config_id BIGINT NOT NULL DEFAULT 0,
		UNIQUE (name, cruise)
	)`,
	`CREATE TABLE IF NOT EXISTS logger_config (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		logger_id BIGINT NOT NULL REFERENCES logger(id) ON DELETE CASCADE,
		spec TEXT NOT NULL DEFAULT '',
		modes TEXT[] NOT NULL DEFAULT '{}',
		current_config BOOLEAN NOT NULL DEFAULT FALSE,
		enabled BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`CREATE TABLE IF NOT EXISTS logger_config_state (
		id UUID PRIMARY KEY,
		logger_id BIGINT NOT NULL,
		config_id BIGINT NOT NULL DEFAULT 0,
		ts TIMESTAMPTZ NOT NULL,
		last_checked TIMESTAMPTZ NOT NULL,
		running BOOLEAN NOT NULL,
		failed BOOLEAN NOT NULL,
		pid INT NOT NULL,
		errors TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS log_message (
		id UUID PRIMARY KEY,
		ts TIMESTAMPTZ NOT NULL,
		source TEXT NOT NULL,
		usr TEXT NOT NULL DEFAULT '',
		log_level INT NOT NULL,
		cruise_id TEXT NOT NULL DEFAULT '',
		message TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS last_update (
		id INT PRIMARY KEY,
		updated TIMESTAMPTZ NOT NULL
	)`,
}

func (s *PgStore) ensureSchema(ctx context.Context) error {
	for _, stmt := range controlSchema {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create control schema: %w", err)
		}
	}

	return nil
}

func (s *PgStore) GetCruise(ctx context.Context) (*models.Cruise, error) {
	var c models.Cruise

	err := s.db.QueryRow(ctx,
		`SELECT id, start_time, end_time, config_filename, loaded_time, active_mode, default_mode
		 FROM cruise LIMIT 1`).
		Scan(&c.ID, &c.Start, &c.End, &c.ConfigFilename, &c.LoadedTime, &c.ActiveMode, &c.DefaultMode)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoCruise
		}

		return nil, fmt.Errorf("failed to read cruise: %w", err)
	}

	return &c, nil
}

func (s *PgStore) SaveCruise(ctx context.Context, cruise *models.Cruise) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO cruise (id, start_time, end_time, config_filename, loaded_time, active_mode, default_mode)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO UPDATE SET
			start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time,
			config_filename = EXCLUDED.config_filename,
			loaded_time = EXCLUDED.loaded_time,
			active_mode = EXCLUDED.active_mode,
			default_mode = EXCLUDED.default_mode`,
		cruise.ID, cruise.Start, cruise.End, cruise.ConfigFilename,
		cruise.LoadedTime, cruise.ActiveMode, cruise.DefaultMode)
	if err != nil {
		return fmt.Errorf("failed to save cruise: %w", err)
	}

	return nil
}

func (s *PgStore) DeleteCruise(ctx context.Context, id string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM cruise WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete cruise %q: %w", id, err)
	}

	return nil
}

func (s *PgStore) CreateMode(ctx context.Context, mode *models.Mode) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO mode (name, cruise) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		mode.Name, mode.Cruise)
	if err != nil {
		return fmt.Errorf("failed to create mode %q: %w", mode.Name, err)
	}

	return nil
}

func (s *PgStore) GetModes(ctx context.Context, cruise string) ([]models.Mode, error) {
	rows, err := s.db.Query(ctx,
		`SELECT name, cruise FROM mode WHERE cruise = $1 ORDER BY name`, cruise)
	if err != nil {
		return nil, fmt.Errorf("failed to read modes: %w", err)
	}

	defer rows.Close()

	var out []models.Mode

	for rows.Next() {
		var m models.Mode
		if err := rows.Scan(&m.Name, &m.Cruise); err != nil {
			return nil, fmt.Errorf("failed to scan mode: %w", err)
		}

		out = append(out, m)
	}

	return out, rows.Err()
}

func (s *PgStore) CreateLogger(ctx context.Context, lg *models.Logger) (int64, error) {
	err := s.db.QueryRow(ctx,
		`INSERT INTO logger (name, cruise, config_id) VALUES ($1, $2, $3) RETURNING id`,
		lg.Name, lg.Cruise, lg.ConfigID).Scan(&lg.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to create logger %q: %w", lg.Name, err)
	}

	return lg.ID, nil
}

func (s *PgStore) SaveLogger(ctx context.Context, lg *models.Logger) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE logger SET name = $2, cruise = $3, config_id = $4 WHERE id = $1`,
		lg.ID, lg.Name, lg.Cruise, lg.ConfigID)
	if err != nil {
		return fmt.Errorf("failed to save logger %d: %w", lg.ID, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("logger %d: %w", lg.ID, ErrNotFound)
	}

	return nil
}

func (s *PgStore) GetLoggers(ctx context.Context, cruise string) ([]models.Logger, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, name, cruise, config_id FROM logger WHERE cruise = $1 ORDER BY name`, cruise)
	if err != nil {
		return nil, fmt.Errorf("failed to read loggers: %w", err)
	}

	defer rows.Close()

	var out []models.Logger

	for rows.Next() {
		var lg models.Logger
		if err := rows.Scan(&lg.ID, &lg.Name, &lg.Cruise, &lg.ConfigID); err != nil {
			return nil, fmt.Errorf("failed to scan logger: %w", err)
		}

		out = append(out, lg)
	}

	return out, rows.Err()
}

func (s *PgStore) GetLogger(ctx context.Context, cruise, name string) (*models.Logger, error) {
	var lg models.Logger

	err := s.db.QueryRow(ctx,
		`SELECT id, name, cruise, config_id FROM logger WHERE cruise = $1 AND name = $2`,
		cruise, name).Scan(&lg.ID, &lg.Name, &lg.Cruise, &lg.ConfigID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("logger %q: %w", name, ErrNotFound)
		}

		return nil, fmt.Errorf("failed to read logger %q: %w", name, err)
	}

	return &lg, nil
}

func (s *PgStore) CreateLoggerConfig(ctx context.Context, cfg *models.LoggerConfig) (int64, error) {
	err := s.db.QueryRow(ctx,
		`INSERT INTO logger_config (name, logger_id, spec, modes, current_config, enabled)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		cfg.Name, cfg.LoggerID, cfg.Spec, cfg.Modes, cfg.CurrentConfig, cfg.Enabled).
		Scan(&cfg.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to create logger config %q: %w", cfg.Name, err)
	}

	return cfg.ID, nil
}

func (s *PgStore) SaveLoggerConfig(ctx context.Context, cfg *models.LoggerConfig) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE logger_config
		 SET name = $2, logger_id = $3, spec = $4, modes = $5, current_config = $6, enabled = $7
		 WHERE id = $1`,
		cfg.ID, cfg.Name, cfg.LoggerID, cfg.Spec, cfg.Modes, cfg.CurrentConfig, cfg.Enabled)
	if err != nil {
		return fmt.Errorf("failed to save logger config %d: %w", cfg.ID, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("logger config %d: %w", cfg.ID, ErrNotFound)
	}

	return nil
}

func (s *PgStore) GetLoggerConfigs(ctx context.Context, cruise string) ([]models.LoggerConfig, error) {
	rows, err := s.db.Query(ctx,
		`SELECT c.id, c.name, c.logger_id, c.spec, c.modes, c.current_config, c.enabled
		 FROM logger_config c JOIN logger l ON l.id = c.logger_id
		 WHERE l.cruise = $1 ORDER BY c.id`, cruise)
	if err != nil {
		return nil, fmt.Errorf("failed to read logger configs: %w", err)
	}

	defer rows.Close()

	var out []models.LoggerConfig

	for rows.Next() {
		var cfg models.LoggerConfig
		if err := rows.Scan(&cfg.ID, &cfg.Name, &cfg.LoggerID, &cfg.Spec,
			&cfg.Modes, &cfg.CurrentConfig, &cfg.Enabled); err != nil {
			return nil, fmt.Errorf("failed to scan logger config: %w", err)
		}

		out = append(out, cfg)
	}

	return out, rows.Err()
}

func (s *PgStore) GetLoggerConfigByID(ctx context.Context, id int64) (*models.LoggerConfig, error) {
	var cfg models.LoggerConfig

	err := s.db.QueryRow(ctx,
		`SELECT id, name, logger_id, spec, modes, current_config, enabled
		 FROM logger_config WHERE id = $1`, id).
		Scan(&cfg.ID, &cfg.Name, &cfg.LoggerID, &cfg.Spec,
			&cfg.Modes, &cfg.CurrentConfig, &cfg.Enabled)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("logger config %d: %w", id, ErrNotFound)
		}

		return nil, fmt.Errorf("failed to read logger config %d: %w", id, err)
	}

	return &cfg, nil
}

func (s *PgStore) AppendConfigState(ctx context.Context, state *models.LoggerConfigState) error {
	if state.ID == "" {
		state.ID = uuid.NewString()
	}

	_, err := s.db.Exec(ctx,
		`INSERT INTO logger_config_state
			(id, logger_id, config_id, ts, last_checked, running, failed, pid, errors)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		state.ID, state.LoggerID, state.ConfigID, state.Timestamp,
		state.LastChecked, state.Running, state.Failed, state.Pid, state.Errors)
	if err != nil {
		return fmt.Errorf("failed to append config state: %w", err)
	}

	return nil
}

func (s *PgStore) SaveConfigState(ctx context.Context, state *models.LoggerConfigState) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE logger_config_state
		 SET ts = $2, last_checked = $3, running = $4, failed = $5, pid = $6, errors = $7
		 WHERE id = $1`,
		state.ID, state.Timestamp, state.LastChecked, state.Running,
		state.Failed, state.Pid, state.Errors)
	if err != nil {
		return fmt.Errorf("failed to save config state: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("config state %q: %w", state.ID, ErrNotFound)
	}

	return nil
}

func (s *PgStore) LatestConfigState(ctx context.Context, loggerID int64) (*models.LoggerConfigState, error) {
	var st models.LoggerConfigState

	err := s.db.QueryRow(ctx,
		`SELECT id, logger_id, config_id, ts, last_checked, running, failed, pid, errors
		 FROM logger_config_state WHERE logger_id = $1
		 ORDER BY ts DESC LIMIT 1`, loggerID).
		Scan(&st.ID, &st.LoggerID, &st.ConfigID, &st.Timestamp, &st.LastChecked,
			&st.Running, &st.Failed, &st.Pid, &st.Errors)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("config state for logger %d: %w", loggerID, ErrNotFound)
		}

		return nil, fmt.Errorf("failed to read config state: %w", err)
	}

	return &st, nil
}

func (s *PgStore) ConfigStatesSince(ctx context.Context, since time.Time) ([]models.LoggerConfigState, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, logger_id, config_id, ts, last_checked, running, failed, pid, errors
		 FROM logger_config_state WHERE ts >= $1 ORDER BY ts`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to read config states: %w", err)
	}

	defer rows.Close()

	var out []models.LoggerConfigState

	for rows.Next() {
		var st models.LoggerConfigState
		if err := rows.Scan(&st.ID, &st.LoggerID, &st.ConfigID, &st.Timestamp,
			&st.LastChecked, &st.Running, &st.Failed, &st.Pid, &st.Errors); err != nil {
			return nil, fmt.Errorf("failed to scan config state: %w", err)
		}

		out = append(out, st)
	}

	return out, rows.Err()
}

func (s *PgStore) AddLogMessage(ctx context.Context, msg *models.LogMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}

	_, err := s.db.Exec(ctx,
		`INSERT INTO log_message (id, ts, source, usr, log_level, cruise_id, message)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		msg.ID, msg.Timestamp, msg.Source, msg.User, msg.LogLevel, msg.CruiseID, msg.Message)
	if err != nil {
		return fmt.Errorf("failed to add log message: %w", err)
	}

	return nil
}

func (s *PgStore) LogMessages(ctx context.Context, source, user string, minLevel int, since time.Time) ([]models.LogMessage, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, ts, source, usr, log_level, cruise_id, message
		 FROM log_message
		 WHERE ($1 = '' OR source = $1)
		   AND ($2 = '' OR usr = $2)
		   AND log_level >= $3
		   AND ts >= $4
		 ORDER BY ts`, source, user, minLevel, since)
	if err != nil {
		return nil, fmt.Errorf("failed to read log messages: %w", err)
	}

	defer rows.Close()

	var out []models.LogMessage

	for rows.Next() {
		var msg models.LogMessage
		if err := rows.Scan(&msg.ID, &msg.Timestamp, &msg.Source, &msg.User,
			&msg.LogLevel, &msg.CruiseID, &msg.Message); err != nil {
			return nil, fmt.Errorf("failed to scan log message: %w", err)
		}

		out = append(out, msg)
	}

	return out, rows.Err()
}

func (s *PgStore) LastUpdate(ctx context.Context) (time.Time, error) {
	var t time.Time

	err := s.db.QueryRow(ctx, `SELECT updated FROM last_update WHERE id = 1`).Scan(&t)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, nil
		}

		return time.Time{}, fmt.Errorf("failed to read update watermark: %w", err)
	}

	return t, nil
}

func (s *PgStore) SetLastUpdate(ctx context.Context, t time.Time) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO last_update (id, updated) VALUES (1, $1)
		 ON CONFLICT (id) DO UPDATE SET updated = EXCLUDED.updated`, t)
	if err != nil {
		return fmt.Errorf("failed to set update watermark: %w", err)
	}

	return nil
}

// WithTransaction runs fn inside a transaction holding an access
// exclusive lock on the configuration tables. Transient begin failures
// get a few bounded retries.
func (s *PgStore) WithTransaction(ctx context.Context, fn func(tx Store) error) error {
	if s.pool == nil {
		// Already inside a transaction; just run.
		return fn(s)
	}

	var lastErr error

	for attempt := 0; attempt < pgTxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(pgTxRetryDelay):
			}
		}

		tx, err := s.pool.Begin(ctx)
		if err != nil {
			lastErr = err
			s.log.Warn().Err(err).Int("attempt", attempt+1).Msg("begin failed, retrying")

			continue
		}

		err = s.runTx(ctx, tx, fn)
		if err == nil {
			return nil
		}

		return err
	}

	return fmt.Errorf("transaction failed after %d attempts: %w", pgTxRetries, lastErr)
}

func (s *PgStore) runTx(ctx context.Context, tx pgx.Tx, fn func(tx Store) error) error {
	defer func() { _ = tx.Rollback(ctx) }()

	_, err := tx.Exec(ctx,
		`LOCK TABLE cruise, mode, logger, logger_config IN ACCESS EXCLUSIVE MODE`)
	if err != nil {
		return fmt.Errorf("failed to lock configuration tables: %w", err)
	}

	inner := &PgStore{db: txQuerier{tx: tx}, log: s.log}

	if err := fn(inner); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit failed: %w", err)
	}

	return nil
}

func (s *PgStore) Close(_ context.Context) error {
	if s.pool != nil {
		s.pool.Close()
	}

	return nil
}

var _ Store = (*PgStore)(nil)
