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
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oceandatatools/rvdas/pkg/logger"
	"github.com/oceandatatools/rvdas/pkg/models"
)

// OffMode is the mode every logger falls back to when the requested mode
// has no config for it.
const OffMode = "off"

// API is the single supported interface to the control plane. All
// methods are safe for concurrent use; one mutex serializes the API, and
// mutators additionally run inside an exclusive store transaction.
//
// Go has no re-entrant locks, so exported methods take the mutex and
// delegate to unexported unlocked variants; internal calls stay on the
// unlocked side.
type API struct {
	mu    sync.Mutex
	store Store
	log   logger.Logger
	now   func() time.Time

	// Per-reader caches, valid while their watermark is at or past the
	// store's last-update time.
	cachedMode       string
	modeWatermark    time.Time
	cachedConfigs    []models.LoggerConfig
	configsWatermark time.Time

	cachedStatus map[string]models.LoggerStatus

	updateCh chan struct{}
	loadCh   chan struct{}
}

// NewAPI wraps a store.
func NewAPI(store Store, log logger.Logger) *API {
	if log == nil {
		log = logger.Default()
	}

	return &API{
		store:    store,
		log:      log.WithComponent("control_api"),
		now:      time.Now,
		updateCh: make(chan struct{}, 1),
		loadCh:   make(chan struct{}, 1),
	}
}

// UpdateSignal is readable whenever the active configuration has
// changed since the last receive.
func (a *API) UpdateSignal() <-chan struct{} { return a.updateCh }

// LoadSignal is readable whenever a new cruise has been loaded.
func (a *API) LoadSignal() <-chan struct{} { return a.loadCh }

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// cacheFresh reports whether a cache stamped at watermark may be served.
func (a *API) cacheFresh(ctx context.Context, watermark time.Time) (bool, error) {
	if watermark.IsZero() {
		return false, nil
	}

	last, err := a.store.LastUpdate(ctx)
	if err != nil {
		return false, err
	}

	return !watermark.Before(last), nil
}

// --- readers ---

// GetConfiguration returns the loaded cruise, or ErrNoCruise.
func (a *API) GetConfiguration(ctx context.Context) (*models.Cruise, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.store.GetCruise(ctx)
}

// GetModes returns the defined mode names, sorted.
func (a *API) GetModes(ctx context.Context) ([]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	cruise, err := a.store.GetCruise(ctx)
	if err != nil {
		return nil, err
	}

	modes, err := a.store.GetModes(ctx, cruise.ID)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(modes))
	for _, m := range modes {
		names = append(names, m.Name)
	}

	sort.Strings(names)

	return names, nil
}

// GetActiveMode returns the cruise's active mode, empty when none is set.
func (a *API) GetActiveMode(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.activeMode(ctx)
}

func (a *API) activeMode(ctx context.Context) (string, error) {
	fresh, err := a.cacheFresh(ctx, a.modeWatermark)
	if err != nil {
		return "", err
	}

	if fresh {
		return a.cachedMode, nil
	}

	cruise, err := a.store.GetCruise(ctx)
	if err != nil {
		return "", err
	}

	a.cachedMode = cruise.ActiveMode
	a.modeWatermark = a.now()

	return a.cachedMode, nil
}

// GetDefaultMode returns the cruise's default mode, empty when none is
// set.
func (a *API) GetDefaultMode(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	cruise, err := a.store.GetCruise(ctx)
	if err != nil {
		return "", err
	}

	return cruise.DefaultMode, nil
}

// GetLoggers returns every logger of the loaded cruise, sorted by name.
func (a *API) GetLoggers(ctx context.Context) ([]models.Logger, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.loggers(ctx)
}

func (a *API) loggers(ctx context.Context) ([]models.Logger, error) {
	cruise, err := a.store.GetCruise(ctx)
	if err != nil {
		return nil, err
	}

	return a.store.GetLoggers(ctx, cruise.ID)
}

// GetLogger returns the named logger.
func (a *API) GetLogger(ctx context.Context, name string) (*models.Logger, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	cruise, err := a.store.GetCruise(ctx)
	if err != nil {
		return nil, err
	}

	return a.store.GetLogger(ctx, cruise.ID, name)
}

// GetLoggerConfig returns the config with the given name.
func (a *API) GetLoggerConfig(ctx context.Context, configName string) (*models.LoggerConfig, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	configs, err := a.allConfigs(ctx)
	if err != nil {
		return nil, err
	}

	for i := range configs {
		if configs[i].Name == configName {
			cfg := configs[i]
			return &cfg, nil
		}
	}

	return nil, fmt.Errorf("logger config %q: %w", configName, ErrNotFound)
}

// GetLoggerConfigs returns the configs referenced by mode; an empty mode
// means the active mode.
func (a *API) GetLoggerConfigs(ctx context.Context, mode string) ([]models.LoggerConfig, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if mode == "" {
		var err error

		mode, err = a.activeMode(ctx)
		if err != nil {
			return nil, err
		}
	}

	configs, err := a.allConfigs(ctx)
	if err != nil {
		return nil, err
	}

	var out []models.LoggerConfig

	for _, cfg := range configs {
		if containsString(cfg.Modes, mode) {
			out = append(out, cfg)
		}
	}

	return out, nil
}

func (a *API) allConfigs(ctx context.Context) ([]models.LoggerConfig, error) {
	fresh, err := a.cacheFresh(ctx, a.configsWatermark)
	if err != nil {
		return nil, err
	}

	if fresh {
		return a.cachedConfigs, nil
	}

	cruise, err := a.store.GetCruise(ctx)
	if err != nil {
		return nil, err
	}

	configs, err := a.store.GetLoggerConfigs(ctx, cruise.ID)
	if err != nil {
		return nil, err
	}

	a.cachedConfigs = configs
	a.configsWatermark = a.now()

	return configs, nil
}

// GetLoggerConfigName returns the config name the logger runs in mode;
// an empty mode means the active mode.
func (a *API) GetLoggerConfigName(ctx context.Context, loggerName, mode string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if mode == "" {
		var err error

		mode, err = a.activeMode(ctx)
		if err != nil {
			return "", err
		}
	}

	cruise, err := a.store.GetCruise(ctx)
	if err != nil {
		return "", err
	}

	lg, err := a.store.GetLogger(ctx, cruise.ID, loggerName)
	if err != nil {
		return "", err
	}

	configs, err := a.allConfigs(ctx)
	if err != nil {
		return "", err
	}

	for _, cfg := range configs {
		if cfg.LoggerID == lg.ID && containsString(cfg.Modes, mode) {
			return cfg.Name, nil
		}
	}

	return "", fmt.Errorf("no config for logger %q in mode %q: %w", loggerName, mode, ErrNotFound)
}

// GetLoggerConfigNames returns every config name the logger may run.
func (a *API) GetLoggerConfigNames(ctx context.Context, loggerName string) ([]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	cruise, err := a.store.GetCruise(ctx)
	if err != nil {
		return nil, err
	}

	lg, err := a.store.GetLogger(ctx, cruise.ID, loggerName)
	if err != nil {
		return nil, err
	}

	configs, err := a.allConfigs(ctx)
	if err != nil {
		return nil, err
	}

	var names []string

	for _, cfg := range configs {
		if cfg.LoggerID == lg.ID {
			names = append(names, cfg.Name)
		}
	}

	return names, nil
}

// GetStatus returns observed logger states. A zero since returns the
// latest state per logger; otherwise every state at or after since.
func (a *API) GetStatus(ctx context.Context, since time.Time) ([]models.LoggerConfigState, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !since.IsZero() {
		return a.store.ConfigStatesSince(ctx, since)
	}

	loggers, err := a.loggers(ctx)
	if err != nil {
		return nil, err
	}

	var out []models.LoggerConfigState

	for _, lg := range loggers {
		st, err := a.store.LatestConfigState(ctx, lg.ID)
		if err != nil {
			continue
		}

		out = append(out, *st)
	}

	return out, nil
}

// GetMessageLog returns server log messages filtered by source, user,
// minimum level and time.
func (a *API) GetMessageLog(ctx context.Context, source, user string, minLevel int, since time.Time) ([]models.LogMessage, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.store.LogMessages(ctx, source, user, minLevel, since)
}

// --- mutators ---

// SetActiveMode switches the cruise to mode: every logger moves to its
// config for that mode, falling back to its "off" config, or is skipped
// with a warning when neither exists.
func (a *API) SetActiveMode(ctx context.Context, mode string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	err := a.store.WithTransaction(ctx, func(tx Store) error {
		cruise, err := tx.GetCruise(ctx)
		if err != nil {
			return err
		}

		modes, err := tx.GetModes(ctx, cruise.ID)
		if err != nil {
			return err
		}

		if !modeKnown(modes, mode) {
			return fmt.Errorf("mode %q: %w", mode, ErrNotFound)
		}

		cruise.ActiveMode = mode
		if err := tx.SaveCruise(ctx, cruise); err != nil {
			return err
		}

		loggers, err := tx.GetLoggers(ctx, cruise.ID)
		if err != nil {
			return err
		}

		configs, err := tx.GetLoggerConfigs(ctx, cruise.ID)
		if err != nil {
			return err
		}

		for i := range loggers {
			if err := a.switchLogger(ctx, tx, &loggers[i], configs, mode); err != nil {
				return err
			}
		}

		return tx.SetLastUpdate(ctx, a.now())
	})
	if err != nil {
		return err
	}

	signal(a.updateCh)

	return nil
}

// switchLogger moves one logger to its config for mode, with the "off"
// fallback. Runs inside the caller's transaction.
func (a *API) switchLogger(ctx context.Context, tx Store, lg *models.Logger, configs []models.LoggerConfig, mode string) error {
	if lg.ConfigID != 0 {
		if old := findConfigByID(configs, lg.ConfigID); old != nil {
			old.CurrentConfig = false
			if err := tx.SaveLoggerConfig(ctx, old); err != nil {
				return err
			}
		}
	}

	next := findConfigForMode(configs, lg.ID, mode)
	if next == nil {
		next = findConfigForMode(configs, lg.ID, OffMode)
	}

	if next == nil {
		a.log.Warn().
			Str("logger", lg.Name).
			Str("mode", mode).
			Msg("no config for mode and no off fallback, skipping logger")

		return nil
	}

	next.CurrentConfig = true
	if err := tx.SaveLoggerConfig(ctx, next); err != nil {
		return err
	}

	lg.ConfigID = next.ID
	if err := tx.SaveLogger(ctx, lg); err != nil {
		return err
	}

	return tx.AppendConfigState(ctx, &models.LoggerConfigState{
		ID:          uuid.NewString(),
		LoggerID:    lg.ID,
		ConfigID:    next.ID,
		Timestamp:   a.now(),
		LastChecked: a.now(),
		Running:     false,
		Pid:         0,
	})
}

// SetActiveLoggerConfig points one logger at configName. The config must
// belong to that logger.
func (a *API) SetActiveLoggerConfig(ctx context.Context, loggerName, configName string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	err := a.store.WithTransaction(ctx, func(tx Store) error {
		cruise, err := tx.GetCruise(ctx)
		if err != nil {
			return err
		}

		lg, err := tx.GetLogger(ctx, cruise.ID, loggerName)
		if err != nil {
			return err
		}

		configs, err := tx.GetLoggerConfigs(ctx, cruise.ID)
		if err != nil {
			return err
		}

		var next *models.LoggerConfig

		for i := range configs {
			if configs[i].Name == configName {
				next = &configs[i]
				break
			}
		}

		if next == nil {
			return fmt.Errorf("logger config %q: %w", configName, ErrNotFound)
		}

		if next.LoggerID != lg.ID {
			return fmt.Errorf("config %q does not belong to logger %q", configName, loggerName)
		}

		if lg.ConfigID != 0 && lg.ConfigID != next.ID {
			if old := findConfigByID(configs, lg.ConfigID); old != nil {
				old.CurrentConfig = false
				if err := tx.SaveLoggerConfig(ctx, old); err != nil {
					return err
				}
			}
		}

		next.CurrentConfig = true
		if err := tx.SaveLoggerConfig(ctx, next); err != nil {
			return err
		}

		lg.ConfigID = next.ID
		if err := tx.SaveLogger(ctx, lg); err != nil {
			return err
		}

		if err := tx.AppendConfigState(ctx, &models.LoggerConfigState{
			ID:          uuid.NewString(),
			LoggerID:    lg.ID,
			ConfigID:    next.ID,
			Timestamp:   a.now(),
			LastChecked: a.now(),
		}); err != nil {
			return err
		}

		return tx.SetLastUpdate(ctx, a.now())
	})
	if err != nil {
		return err
	}

	signal(a.updateCh)

	return nil
}

// UpdateStatus records runner-observed logger states. A report identical
// to the previous one is a no-op; otherwise a new state row is appended
// for every logger whose running/failed/pid changed or that reported
// errors, and last_checked advances for all.
func (a *API) UpdateStatus(ctx context.Context, status map[string]models.LoggerStatus) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if reflect.DeepEqual(status, a.cachedStatus) {
		return nil
	}

	cruise, err := a.store.GetCruise(ctx)
	if err != nil {
		return err
	}

	for loggerName, st := range status {
		lg, err := a.store.GetLogger(ctx, cruise.ID, loggerName)
		if err != nil {
			a.log.Warn().Str("logger", loggerName).Msg("status for unknown logger, skipping")
			continue
		}

		if err := a.updateLoggerStatus(ctx, lg, st); err != nil {
			return err
		}
	}

	a.cachedStatus = status

	return nil
}

func (a *API) updateLoggerStatus(ctx context.Context, lg *models.Logger, st models.LoggerStatus) error {
	latest, err := a.store.LatestConfigState(ctx, lg.ID)
	if err != nil {
		// First report for this logger: create a row for its current
		// config when it resolves.
		if lg.ConfigID == 0 {
			return nil
		}

		return a.store.AppendConfigState(ctx, &models.LoggerConfigState{
			ID:          uuid.NewString(),
			LoggerID:    lg.ID,
			ConfigID:    lg.ConfigID,
			Timestamp:   a.now(),
			LastChecked: a.now(),
			Running:     st.Running,
			Failed:      st.Failed,
			Pid:         st.Pid,
			Errors:      strings.Join(st.Errors, ";"),
		})
	}

	changed := latest.Running != st.Running ||
		latest.Failed != st.Failed ||
		latest.Pid != st.Pid ||
		len(st.Errors) > 0

	if changed {
		return a.store.AppendConfigState(ctx, &models.LoggerConfigState{
			ID:          uuid.NewString(),
			LoggerID:    lg.ID,
			ConfigID:    lg.ConfigID,
			Timestamp:   a.now(),
			LastChecked: a.now(),
			Running:     st.Running,
			Failed:      st.Failed,
			Pid:         st.Pid,
			Errors:      strings.Join(st.Errors, ";"),
		})
	}

	latest.LastChecked = a.now()

	return a.store.SaveConfigState(ctx, latest)
}

// MessageLog appends one entry to the server message log.
func (a *API) MessageLog(ctx context.Context, source, user string, level int, message string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	msg := &models.LogMessage{
		ID:        uuid.NewString(),
		Timestamp: a.now(),
		Source:    source,
		User:      user,
		LogLevel:  level,
		Message:   message,
	}

	if cruise, err := a.store.GetCruise(ctx); err == nil {
		msg.CruiseID = cruise.ID
	}

	return a.store.AddLogMessage(ctx, msg)
}

// LoadConfiguration replaces any loaded cruise with def: prior cruise
// deleted with everything under it, then cruise, modes, loggers and
// configs created, with default-mode configs becoming each logger's
// current config.
func (a *API) LoadConfiguration(ctx context.Context, def *Definition) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := def.Validate(); err != nil {
		return err
	}

	err := a.store.WithTransaction(ctx, func(tx Store) error {
		if prior, err := tx.GetCruise(ctx); err == nil {
			if err := tx.DeleteCruise(ctx, prior.ID); err != nil {
				return err
			}
		}

		cruise := &models.Cruise{
			ID:             def.Cruise.ID,
			Start:          def.Cruise.Start,
			End:            def.Cruise.End,
			ConfigFilename: def.Cruise.ConfigFilename,
			LoadedTime:     a.now(),
			DefaultMode:    def.DefaultMode,
		}

		if err := tx.SaveCruise(ctx, cruise); err != nil {
			return err
		}

		for _, mode := range def.ModeNames() {
			if err := tx.CreateMode(ctx, &models.Mode{Name: mode, Cruise: cruise.ID}); err != nil {
				return err
			}
		}

		loggerNames := make([]string, 0, len(def.Loggers))
		for name := range def.Loggers {
			loggerNames = append(loggerNames, name)
		}

		sort.Strings(loggerNames)

		for _, loggerName := range loggerNames {
			lg := &models.Logger{Name: loggerName, Cruise: cruise.ID}
			if _, err := tx.CreateLogger(ctx, lg); err != nil {
				return err
			}

			for _, configName := range def.Loggers[loggerName].Configs {
				spec, err := def.ConfigSpec(configName)
				if err != nil {
					return err
				}

				cfg := &models.LoggerConfig{
					Name:     configName,
					LoggerID: lg.ID,
					Spec:     spec,
					Modes:    def.ConfigModes(loggerName, configName),
					Enabled:  true,
				}

				if def.DefaultMode != "" && def.Modes[def.DefaultMode][loggerName] == configName {
					cfg.CurrentConfig = true
				}

				if _, err := tx.CreateLoggerConfig(ctx, cfg); err != nil {
					return err
				}

				if cfg.CurrentConfig {
					lg.ConfigID = cfg.ID
					if err := tx.SaveLogger(ctx, lg); err != nil {
						return err
					}
				}
			}
		}

		return tx.SetLastUpdate(ctx, a.now())
	})
	if err != nil {
		return err
	}

	signal(a.loadCh)
	signal(a.updateCh)

	return nil
}

// DeleteConfiguration removes the loaded cruise and everything under it.
func (a *API) DeleteConfiguration(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	err := a.store.WithTransaction(ctx, func(tx Store) error {
		cruise, err := tx.GetCruise(ctx)
		if err != nil {
			return err
		}

		if err := tx.DeleteCruise(ctx, cruise.ID); err != nil {
			return err
		}

		return tx.SetLastUpdate(ctx, a.now())
	})
	if err != nil {
		return err
	}

	signal(a.updateCh)

	return nil
}

// --- helpers ---

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}

	return false
}

func modeKnown(modes []models.Mode, name string) bool {
	for _, m := range modes {
		if m.Name == name {
			return true
		}
	}

	return false
}

func findConfigByID(configs []models.LoggerConfig, id int64) *models.LoggerConfig {
	for i := range configs {
		if configs[i].ID == id {
			return &configs[i]
		}
	}

	return nil
}

func findConfigForMode(configs []models.LoggerConfig, loggerID int64, mode string) *models.LoggerConfig {
	for i := range configs {
		if configs[i].LoggerID == loggerID && containsString(configs[i].Modes, mode) {
			return &configs[i]
		}
	}

	return nil
}
