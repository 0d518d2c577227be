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
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/oceandatatools/rvdas/pkg/models"
)

// MemStore is the in-memory Store used by tests and single-process
// deployments. A plain mutex gives WithTransaction its exclusive lock;
// the unlocked inner view keeps transaction bodies from self-deadlocking.
type MemStore struct {
	mu    sync.Mutex
	state memState
}

type memState struct {
	cruise  *models.Cruise
	modes   []models.Mode
	loggers map[int64]*models.Logger
	configs map[int64]*models.LoggerConfig
	states  []models.LoggerConfigState
	msgs    []models.LogMessage

	lastUpdate time.Time
	nextID     int64
}

// NewMemStore returns an empty store.
func NewMemStore() *MemStore {
	return &MemStore{
		state: memState{
			loggers: map[int64]*models.Logger{},
			configs: map[int64]*models.LoggerConfig{},
			nextID:  1,
		},
	}
}

// memView is the unlocked implementation the locked wrappers and
// transaction bodies share.
type memView struct {
	s *memState
}

func (m *MemStore) view() memView { return memView{s: &m.state} }

func (m *MemStore) GetCruise(ctx context.Context) (*models.Cruise, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.view().GetCruise(ctx)
}

func (m *MemStore) SaveCruise(ctx context.Context, cruise *models.Cruise) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.view().SaveCruise(ctx, cruise)
}

func (m *MemStore) DeleteCruise(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.view().DeleteCruise(ctx, id)
}

func (m *MemStore) CreateMode(ctx context.Context, mode *models.Mode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.view().CreateMode(ctx, mode)
}

func (m *MemStore) GetModes(ctx context.Context, cruise string) ([]models.Mode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.view().GetModes(ctx, cruise)
}

func (m *MemStore) CreateLogger(ctx context.Context, lg *models.Logger) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.view().CreateLogger(ctx, lg)
}

func (m *MemStore) SaveLogger(ctx context.Context, lg *models.Logger) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.view().SaveLogger(ctx, lg)
}

func (m *MemStore) GetLoggers(ctx context.Context, cruise string) ([]models.Logger, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.view().GetLoggers(ctx, cruise)
}

func (m *MemStore) GetLogger(ctx context.Context, cruise, name string) (*models.Logger, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.view().GetLogger(ctx, cruise, name)
}

func (m *MemStore) CreateLoggerConfig(ctx context.Context, cfg *models.LoggerConfig) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.view().CreateLoggerConfig(ctx, cfg)
}

func (m *MemStore) SaveLoggerConfig(ctx context.Context, cfg *models.LoggerConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.view().SaveLoggerConfig(ctx, cfg)
}

func (m *MemStore) GetLoggerConfigs(ctx context.Context, cruise string) ([]models.LoggerConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.view().GetLoggerConfigs(ctx, cruise)
}

func (m *MemStore) GetLoggerConfigByID(ctx context.Context, id int64) (*models.LoggerConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.view().GetLoggerConfigByID(ctx, id)
}

func (m *MemStore) AppendConfigState(ctx context.Context, state *models.LoggerConfigState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.view().AppendConfigState(ctx, state)
}

func (m *MemStore) SaveConfigState(ctx context.Context, state *models.LoggerConfigState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.view().SaveConfigState(ctx, state)
}

func (m *MemStore) LatestConfigState(ctx context.Context, loggerID int64) (*models.LoggerConfigState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.view().LatestConfigState(ctx, loggerID)
}

func (m *MemStore) ConfigStatesSince(ctx context.Context, since time.Time) ([]models.LoggerConfigState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.view().ConfigStatesSince(ctx, since)
}

func (m *MemStore) AddLogMessage(ctx context.Context, msg *models.LogMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.view().AddLogMessage(ctx, msg)
}

func (m *MemStore) LogMessages(ctx context.Context, source, user string, minLevel int, since time.Time) ([]models.LogMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.view().LogMessages(ctx, source, user, minLevel, since)
}

func (m *MemStore) LastUpdate(ctx context.Context) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.view().LastUpdate(ctx)
}

func (m *MemStore) SetLastUpdate(ctx context.Context, t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.view().SetLastUpdate(ctx, t)
}

// WithTransaction holds the store lock for the whole body; fn sees the
// unlocked view and must not retain it.
func (m *MemStore) WithTransaction(_ context.Context, fn func(tx Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return fn(m.view())
}

func (m *MemStore) Close(_ context.Context) error { return nil }

// --- unlocked implementation ---

func (v memView) GetCruise(context.Context) (*models.Cruise, error) {
	if v.s.cruise == nil {
		return nil, ErrNoCruise
	}

	c := *v.s.cruise

	return &c, nil
}

func (v memView) SaveCruise(_ context.Context, cruise *models.Cruise) error {
	c := *cruise
	v.s.cruise = &c

	return nil
}

func (v memView) DeleteCruise(_ context.Context, id string) error {
	if v.s.cruise == nil || v.s.cruise.ID != id {
		return nil
	}

	v.s.cruise = nil
	v.s.modes = nil
	v.s.loggers = map[int64]*models.Logger{}
	v.s.configs = map[int64]*models.LoggerConfig{}
	v.s.states = nil

	return nil
}

func (v memView) CreateMode(_ context.Context, mode *models.Mode) error {
	v.s.modes = append(v.s.modes, *mode)
	return nil
}

func (v memView) GetModes(_ context.Context, cruise string) ([]models.Mode, error) {
	var out []models.Mode

	for _, m := range v.s.modes {
		if m.Cruise == cruise {
			out = append(out, m)
		}
	}

	return out, nil
}

func (v memView) CreateLogger(_ context.Context, lg *models.Logger) (int64, error) {
	lg.ID = v.s.nextID
	v.s.nextID++

	cp := *lg
	v.s.loggers[lg.ID] = &cp

	return lg.ID, nil
}

func (v memView) SaveLogger(_ context.Context, lg *models.Logger) error {
	if _, ok := v.s.loggers[lg.ID]; !ok {
		return fmt.Errorf("logger %d: %w", lg.ID, ErrNotFound)
	}

	cp := *lg
	v.s.loggers[lg.ID] = &cp

	return nil
}

func (v memView) GetLoggers(_ context.Context, cruise string) ([]models.Logger, error) {
	var out []models.Logger

	for _, lg := range v.s.loggers {
		if lg.Cruise == cruise {
			out = append(out, *lg)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	return out, nil
}

func (v memView) GetLogger(_ context.Context, cruise, name string) (*models.Logger, error) {
	for _, lg := range v.s.loggers {
		if lg.Cruise == cruise && lg.Name == name {
			cp := *lg
			return &cp, nil
		}
	}

	return nil, fmt.Errorf("logger %q: %w", name, ErrNotFound)
}

func (v memView) CreateLoggerConfig(_ context.Context, cfg *models.LoggerConfig) (int64, error) {
	cfg.ID = v.s.nextID
	v.s.nextID++

	cp := *cfg
	v.s.configs[cfg.ID] = &cp

	return cfg.ID, nil
}

func (v memView) SaveLoggerConfig(_ context.Context, cfg *models.LoggerConfig) error {
	if _, ok := v.s.configs[cfg.ID]; !ok {
		return fmt.Errorf("logger config %d: %w", cfg.ID, ErrNotFound)
	}

	cp := *cfg
	v.s.configs[cfg.ID] = &cp

	return nil
}

func (v memView) GetLoggerConfigs(ctx context.Context, cruise string) ([]models.LoggerConfig, error) {
	var out []models.LoggerConfig

	for _, cfg := range v.s.configs {
		lg, ok := v.s.loggers[cfg.LoggerID]
		if ok && lg.Cruise == cruise {
			out = append(out, *cfg)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return out, nil
}

func (v memView) GetLoggerConfigByID(_ context.Context, id int64) (*models.LoggerConfig, error) {
	cfg, ok := v.s.configs[id]
	if !ok {
		return nil, fmt.Errorf("logger config %d: %w", id, ErrNotFound)
	}

	cp := *cfg

	return &cp, nil
}

func (v memView) AppendConfigState(_ context.Context, state *models.LoggerConfigState) error {
	v.s.states = append(v.s.states, *state)
	return nil
}

func (v memView) SaveConfigState(_ context.Context, state *models.LoggerConfigState) error {
	for i := range v.s.states {
		if v.s.states[i].ID == state.ID {
			v.s.states[i] = *state
			return nil
		}
	}

	return fmt.Errorf("config state %q: %w", state.ID, ErrNotFound)
}

func (v memView) LatestConfigState(_ context.Context, loggerID int64) (*models.LoggerConfigState, error) {
	for i := len(v.s.states) - 1; i >= 0; i-- {
		if v.s.states[i].LoggerID == loggerID {
			cp := v.s.states[i]
			return &cp, nil
		}
	}

	return nil, fmt.Errorf("config state for logger %d: %w", loggerID, ErrNotFound)
}

func (v memView) ConfigStatesSince(_ context.Context, since time.Time) ([]models.LoggerConfigState, error) {
	var out []models.LoggerConfigState

	for _, st := range v.s.states {
		if !st.Timestamp.Before(since) {
			out = append(out, st)
		}
	}

	return out, nil
}

func (v memView) AddLogMessage(_ context.Context, msg *models.LogMessage) error {
	v.s.msgs = append(v.s.msgs, *msg)
	return nil
}

func (v memView) LogMessages(_ context.Context, source, user string, minLevel int, since time.Time) ([]models.LogMessage, error) {
	var out []models.LogMessage

	for _, msg := range v.s.msgs {
		if source != "" && msg.Source != source {
			continue
		}

		if user != "" && msg.User != user {
			continue
		}

		if msg.LogLevel < minLevel {
			continue
		}

		if msg.Timestamp.Before(since) {
			continue
		}

		out = append(out, msg)
	}

	return out, nil
}

func (v memView) LastUpdate(context.Context) (time.Time, error) {
	return v.s.lastUpdate, nil
}

func (v memView) SetLastUpdate(_ context.Context, t time.Time) error {
	v.s.lastUpdate = t
	return nil
}

// WithTransaction on an already-held view just runs fn.
func (v memView) WithTransaction(_ context.Context, fn func(tx Store) error) error {
	return fn(v)
}

func (v memView) Close(context.Context) error { return nil }

var (
	_ Store = (*MemStore)(nil)
	_ Store = memView{}
)
