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

// Package control implements the cruise/mode/logger control plane: the
// transactional entity store, the API every reader and mutator goes
// through, and the cruise definition loader.
package control

import (
	"context"
	"errors"
	"time"

	"github.com/oceandatatools/rvdas/pkg/models"
)

var (
	// ErrNoCruise means no cruise configuration is loaded.
	ErrNoCruise = errors.New("no cruise configuration loaded")
	// ErrNotFound means the named entity does not exist.
	ErrNotFound = errors.New("not found")
)

// Store is the transactional entity store under the control API. All
// mutations that must be atomic run inside WithTransaction, which holds
// an exclusive write lock for the duration of fn.
type Store interface {
	GetCruise(ctx context.Context) (*models.Cruise, error)
	SaveCruise(ctx context.Context, cruise *models.Cruise) error
	// DeleteCruise removes the cruise and everything under it.
	DeleteCruise(ctx context.Context, id string) error

	CreateMode(ctx context.Context, mode *models.Mode) error
	GetModes(ctx context.Context, cruise string) ([]models.Mode, error)

	// CreateLogger assigns and returns the logger's id.
	CreateLogger(ctx context.Context, lg *models.Logger) (int64, error)
	SaveLogger(ctx context.Context, lg *models.Logger) error
	GetLoggers(ctx context.Context, cruise string) ([]models.Logger, error)
	GetLogger(ctx context.Context, cruise, name string) (*models.Logger, error)

	CreateLoggerConfig(ctx context.Context, cfg *models.LoggerConfig) (int64, error)
	SaveLoggerConfig(ctx context.Context, cfg *models.LoggerConfig) error
	GetLoggerConfigs(ctx context.Context, cruise string) ([]models.LoggerConfig, error)
	GetLoggerConfigByID(ctx context.Context, id int64) (*models.LoggerConfig, error)

	AppendConfigState(ctx context.Context, state *models.LoggerConfigState) error
	SaveConfigState(ctx context.Context, state *models.LoggerConfigState) error
	LatestConfigState(ctx context.Context, loggerID int64) (*models.LoggerConfigState, error)
	ConfigStatesSince(ctx context.Context, since time.Time) ([]models.LoggerConfigState, error)

	AddLogMessage(ctx context.Context, msg *models.LogMessage) error
	LogMessages(ctx context.Context, source, user string, minLevel int, since time.Time) ([]models.LogMessage, error)

	// LastUpdate is the single configuration-change watermark row.
	LastUpdate(ctx context.Context) (time.Time, error)
	SetLastUpdate(ctx context.Context, t time.Time) error

	WithTransaction(ctx context.Context, fn func(tx Store) error) error
	Close(ctx context.Context) error
}
