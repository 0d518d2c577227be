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
	"strings"

	"github.com/nats-io/nats.go"

	"github.com/oceandatatools/rvdas/pkg/logger"
	"github.com/oceandatatools/rvdas/pkg/models"
)

// NATSWriter publishes each record to a NATS subject. The subject may
// contain the {data_id} placeholder, filled per record.
type NATSWriter struct {
	conn    *nats.Conn
	subject string
	log     logger.Logger
}

// NewNATSWriter connects to the server and publishes to subject.
func NewNATSWriter(serverURL, subject string, log logger.Logger) (*NATSWriter, error) {
	if log == nil {
		log = logger.Default()
	}

	conn, err := nats.Connect(serverURL,
		nats.MaxReconnects(-1),
		nats.RetryOnFailedConnect(true))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %q: %w", serverURL, err)
	}

	return &NATSWriter{
		conn:    conn,
		subject: subject,
		log:     log.WithComponent("nats_writer"),
	}, nil
}

func (w *NATSWriter) Write(in any) error {
	if in == nil {
		return nil
	}

	if err := w.conn.Publish(w.subjectFor(in), []byte(Stringify(in))); err != nil {
		return fmt.Errorf("nats publish failed: %w", err)
	}

	return nil
}

// subjectFor fills the {data_id} placeholder from the record; non-record
// input routes to "unknown".
func (w *NATSWriter) subjectFor(in any) string {
	if !strings.Contains(w.subject, "{data_id}") {
		return w.subject
	}

	dataID := "unknown"
	if rec, ok := in.(*models.Record); ok && rec.DataID != "" {
		dataID = rec.DataID
	}

	return strings.ReplaceAll(w.subject, "{data_id}", dataID)
}

func (w *NATSWriter) Close() error {
	if err := w.conn.Drain(); err != nil {
		w.log.Warn().Err(err).Msg("nats drain failed, closing hard")
		w.conn.Close()
	}

	return nil
}
