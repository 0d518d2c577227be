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
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/oceandatatools/rvdas/pkg/logger"
)

// UDPReader receives datagrams on a local port and returns each payload
// as a string with trailing newlines stripped.
type UDPReader struct {
	conn *net.UDPConn
	buf  []byte
	log  logger.Logger
}

const udpReadPollInterval = time.Second

// NewUDPReader listens on addr ("host:port"; empty host binds all
// interfaces).
func NewUDPReader(addr string, log logger.Logger) (*UDPReader, error) {
	if log == nil {
		log = logger.Default()
	}

	local, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %q: %w", addr, err)
	}

	conn, err := net.ListenUDP("udp", local)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %q: %w", addr, err)
	}

	return &UDPReader{
		conn: conn,
		buf:  make([]byte, 65536),
		log:  log.WithComponent("udp_reader"),
	}, nil
}

func (r *UDPReader) Read(ctx context.Context) (any, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// Short deadlines keep the blocking read responsive to
		// cancellation.
		if err := r.conn.SetReadDeadline(time.Now().Add(udpReadPollInterval)); err != nil {
			return nil, fmt.Errorf("failed to set read deadline: %w", err)
		}

		n, _, err := r.conn.ReadFromUDP(r.buf)
		if err != nil {
			if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
				continue
			}

			return nil, fmt.Errorf("udp read failed: %w", err)
		}

		return strings.TrimRight(string(r.buf[:n]), "\r\n"), nil
	}
}

func (r *UDPReader) Close() error {
	return r.conn.Close()
}
