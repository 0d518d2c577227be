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

package main

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/oceandatatools/rvdas/pkg/control"
	"github.com/oceandatatools/rvdas/pkg/logger"
	"github.com/oceandatatools/rvdas/pkg/models"
	"github.com/oceandatatools/rvdas/pkg/pipeline"
)

// runner is one live pipeline with the config it was started from.
type runner struct {
	configID int64
	config   string
	pipe     *pipeline.Pipeline
	cancel   context.CancelFunc
	done     chan struct{}

	mu     sync.Mutex
	failed bool
	errs   []string
}

func (r *runner) status() models.LoggerStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	running := true
	select {
	case <-r.done:
		running = false
	default:
	}

	return models.LoggerStatus{
		Config:  r.config,
		Errors:  append([]string(nil), r.errs...),
		Pid:     0,
		Failed:  r.failed,
		Running: running,
	}
}

// manager keeps one runner per logger in sync with the active
// configuration.
type manager struct {
	api      *control.API
	registry *pipeline.Registry
	log      logger.Logger

	mu      sync.Mutex
	runners map[string]*runner
}

func newManager(api *control.API, log logger.Logger) *manager {
	return &manager{
		api:      api,
		registry: pipeline.NewRegistry(),
		log:      log.WithComponent("manager"),
		runners:  map[string]*runner{},
	}
}

// watch reconciles runners whenever the configuration changes.
func (m *manager) watch(ctx context.Context) error {
	defer m.stopAll()

	if err := m.reconcile(ctx); err != nil {
		m.log.Warn().Err(err).Msg("initial reconcile failed")
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.api.UpdateSignal():
			if err := m.reconcile(ctx); err != nil {
				m.log.Warn().Err(err).Msg("reconcile failed")
			}
		}
	}
}

// reconcile starts, stops and restarts runners so that every logger runs
// exactly its current config.
func (m *manager) reconcile(ctx context.Context) error {
	loggers, err := m.api.GetLoggers(ctx)
	if err != nil {
		if errors.Is(err, control.ErrNoCruise) {
			m.stopAll()
			return nil
		}

		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	wanted := map[string]bool{}

	for _, lg := range loggers {
		wanted[lg.Name] = true

		current := m.runners[lg.Name]

		if lg.ConfigID == 0 {
			if current != nil {
				m.stopLocked(lg.Name)
			}

			continue
		}

		if current != nil && current.configID == lg.ConfigID {
			continue
		}

		if current != nil {
			m.stopLocked(lg.Name)
		}

		if err := m.startLocked(ctx, lg); err != nil {
			m.log.Warn().Err(err).Str("logger", lg.Name).Msg("failed to start logger")
		}
	}

	for name := range m.runners {
		if !wanted[name] {
			m.stopLocked(name)
		}
	}

	return nil
}

func (m *manager) startLocked(ctx context.Context, lg models.Logger) error {
	cfgs, err := m.api.GetLoggerConfigs(ctx, "")
	if err != nil {
		return err
	}

	var cfg *models.LoggerConfig

	for i := range cfgs {
		if cfgs[i].ID == lg.ConfigID {
			cfg = &cfgs[i]
			break
		}
	}

	if cfg == nil || !cfg.Enabled || cfg.Spec == "" {
		return nil
	}

	spec, err := pipeline.ParseSpec([]byte(cfg.Spec))
	if err != nil {
		return err
	}

	// A config with no readers (the usual "off" shape) runs nothing.
	if len(spec.Readers) == 0 && len(spec.Nodes) == 0 {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)

	pipe, err := pipeline.Build(runCtx, spec, m.registry, m.log)
	if err != nil {
		cancel()
		return err
	}

	r := &runner{
		configID: cfg.ID,
		config:   cfg.Name,
		pipe:     pipe,
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	m.runners[lg.Name] = r

	m.log.Info().Str("logger", lg.Name).Str("config", cfg.Name).Msg("starting logger")

	go func() {
		defer close(r.done)

		if err := pipe.Run(runCtx); err != nil && runCtx.Err() == nil {
			r.mu.Lock()
			r.failed = true
			r.errs = append(r.errs, err.Error())
			r.mu.Unlock()

			m.log.Warn().Err(err).Str("logger", lg.Name).Msg("logger pipeline failed")
		}
	}()

	return nil
}

func (m *manager) stopLocked(name string) {
	r, ok := m.runners[name]
	if !ok {
		return
	}

	m.log.Info().Str("logger", name).Msg("stopping logger")

	r.pipe.Quit()
	r.cancel()

	select {
	case <-r.done:
	case <-time.After(5 * time.Second):
		m.log.Warn().Str("logger", name).Msg("logger did not stop in time")
	}

	delete(m.runners, name)
}

func (m *manager) stopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for name := range m.runners {
		m.stopLocked(name)
	}
}

// report pushes observed runner state through the API on the interval.
func (m *manager) report(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			status := m.collect()
			if len(status) == 0 {
				continue
			}

			if err := m.api.UpdateStatus(ctx, status); err != nil {
				m.log.Warn().Err(err).Msg("status report failed")
			}
		}
	}
}

func (m *manager) collect() map[string]models.LoggerStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	status := map[string]models.LoggerStatus{}
	for name, r := range m.runners {
		status[name] = r.status()
	}

	return status
}
