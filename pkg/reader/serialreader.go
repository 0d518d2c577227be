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

package reader

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"go.bug.st/serial"

	"github.com/oceandatatools/rvdas/pkg/logger"
)

// SerialReader reads newline-terminated sentences from an instrument
// serial port.
type SerialReader struct {
	port    serial.Port
	scanner *bufio.Scanner
	log     logger.Logger
}

// SerialConfig names the port and line settings. Zero values take the
// usual instrument defaults (9600 8N1).
type SerialConfig struct {
	Port     string `json:"port" yaml:"port"`
	BaudRate int    `json:"baudrate" yaml:"baudrate"`
	DataBits int    `json:"databits" yaml:"databits"`
	StopBits int    `json:"stopbits" yaml:"stopbits"`
	Parity   string `json:"parity" yaml:"parity"`
}

func NewSerialReader(cfg SerialConfig, log logger.Logger) (*SerialReader, error) {
	if log == nil {
		log = logger.Default()
	}

	mode := &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: cfg.DataBits,
		StopBits: serial.OneStopBit,
		Parity:   serial.NoParity,
	}

	if mode.BaudRate == 0 {
		mode.BaudRate = 9600
	}

	if mode.DataBits == 0 {
		mode.DataBits = 8
	}

	if cfg.StopBits == 2 {
		mode.StopBits = serial.TwoStopBits
	}

	switch strings.ToLower(cfg.Parity) {
	case "", "none", "n":
	case "even", "e":
		mode.Parity = serial.EvenParity
	case "odd", "o":
		mode.Parity = serial.OddParity
	default:
		return nil, fmt.Errorf("unknown parity %q", cfg.Parity)
	}

	port, err := serial.Open(cfg.Port, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %q: %w", cfg.Port, err)
	}

	log.Info().Str("port", cfg.Port).Int("baudrate", mode.BaudRate).Msg("serial port open")

	return &SerialReader{
		port:    port,
		scanner: newLineScanner(port),
		log:     log.WithComponent("serial_reader"),
	}, nil
}

func (r *SerialReader) Read(ctx context.Context) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if r.scanner.Scan() {
		return strings.TrimRight(r.scanner.Text(), "\r"), nil
	}

	if err := r.scanner.Err(); err != nil {
		return nil, fmt.Errorf("serial read failed: %w", err)
	}

	return nil, ErrEOF
}

func (r *SerialReader) Close() error {
	return r.port.Close()
}
