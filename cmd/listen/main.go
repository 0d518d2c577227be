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

// listen runs a single pipeline from a spec file: readers through
// transforms to writers, until the sources run dry or the process is
// interrupted.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/oceandatatools/rvdas/pkg/logger"
	"github.com/oceandatatools/rvdas/pkg/pipeline"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	specPath := flag.String("config", "", "Path to pipeline spec file (YAML or JSON)")
	logLevel := flag.String("log-level", "info", "Log level: trace, debug, info, warn, error")
	flag.Parse()

	if *specPath == "" {
		return fmt.Errorf("no pipeline spec given, use -config")
	}

	lg, err := logger.New(&logger.Config{Level: *logLevel, Output: "stderr"})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	data, err := os.ReadFile(*specPath)
	if err != nil {
		return fmt.Errorf("failed to read spec %q: %w", *specPath, err)
	}

	spec, err := pipeline.ParseSpec(data)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p, err := pipeline.Build(ctx, spec, nil, lg)
	if err != nil {
		return err
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigs
		lg.Info().Msg("shutting down")
		p.Quit()
		cancel()
	}()

	return p.Run(ctx)
}
