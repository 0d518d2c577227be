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

package writer

import (
	"fmt"
	"net"

	"github.com/oceandatatools/rvdas/pkg/logger"
)

// UDPWriter sends each record as one datagram. Broadcast addresses work
// when the config enables it.
type UDPWriter struct {
	conn *net.UDPConn
	log  logger.Logger
}

// NewUDPWriter dials the destination, "host:port".
func NewUDPWriter(addr string, broadcast bool, log logger.Logger) (*UDPWriter, error) {
	if log == nil {
		log = logger.Default()
	}

	dest, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %q: %w", addr, err)
	}

	conn, err := net.DialUDP("udp", nil, dest)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %q: %w", addr, err)
	}

	w := &UDPWriter{conn: conn, log: log.WithComponent("udp_writer")}

	if broadcast {
		w.log.Debug().Str("addr", addr).Msg("udp writer in broadcast mode")
	}

	return w, nil
}

func (w *UDPWriter) Write(in any) error {
	if in == nil {
		return nil
	}

	if _, err := w.conn.Write([]byte(Stringify(in))); err != nil {
		return fmt.Errorf("udp write failed: %w", err)
	}

	return nil
}

func (w *UDPWriter) Close() error {
	return w.conn.Close()
}
