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

// rvdasd is the logger orchestrator: it loads a cruise definition into
// the control store, keeps one pipeline running per logger according to
// the active mode, and reports observed state back through the API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/oceandatatools/rvdas/pkg/control"
	"github.com/oceandatatools/rvdas/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cruisePath := flag.String("cruise", "", "Path to cruise definition file (YAML or JSON)")
	database := flag.String("database", "", "Postgres connection string; empty runs on the in-memory store")
	mode := flag.String("mode", "", "Initial mode; empty uses the cruise's default mode")
	interval := flag.Duration("interval", 10*time.Second, "Status report interval")
	logLevel := flag.String("log-level", "info", "Log level: trace, debug, info, warn, error")
	flag.Parse()

	lg, err := logger.New(&logger.Config{Level: *logLevel, Output: "stderr"})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigs
		lg.Info().Msg("shutting down")
		cancel()
	}()

	store, err := openStore(ctx, *database, lg)
	if err != nil {
		return err
	}

	defer func() { _ = store.Close(context.Background()) }()

	api := control.NewAPI(store, lg)

	if *cruisePath != "" {
		def, err := control.LoadDefinition(*cruisePath, lg)
		if err != nil {
			return err
		}

		if err := api.LoadConfiguration(ctx, def); err != nil {
			return err
		}

		initial := *mode
		if initial == "" {
			initial, err = api.GetDefaultMode(ctx)
			if err != nil {
				return err
			}
		}

		if initial != "" {
			if err := api.SetActiveMode(ctx, initial); err != nil {
				return err
			}
		}
	}

	mgr := newManager(api, lg)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return mgr.watch(ctx) })
	g.Go(func() error { return mgr.report(ctx, *interval) })

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}

	return err
}

func openStore(ctx context.Context, dsn string, lg logger.Logger) (control.Store, error) {
	if dsn == "" {
		lg.Info().Msg("no database configured, using in-memory control store")
		return control.NewMemStore(), nil
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open control store pool: %w", err)
	}

	return control.NewPgStore(ctx, pool, lg)
}
