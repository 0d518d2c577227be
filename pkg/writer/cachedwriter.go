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
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/oceandatatools/rvdas/pkg/logger"
	"github.com/oceandatatools/rvdas/pkg/models"
)

// cachedDataEnvelope is the cached-data-server publish message: every
// field maps to a list of (timestamp, value) pairs.
type cachedDataEnvelope struct {
	Type string               `json:"type"`
	Data map[string][][2]any  `json:"data"`
}

// CachedDataWriter pushes record fields to a cached data server over a
// websocket, reconnecting with bounded backoff when the connection drops.
type CachedDataWriter struct {
	url  string
	conn *websocket.Conn
	log  logger.Logger

	backoff time.Duration
}

const (
	cachedDataInitialBackoff = time.Second
	cachedDataMaxBackoff     = 30 * time.Second
)

// NewCachedDataWriter builds a writer for the server at url
// (ws://host:port). The connection opens lazily on first write.
func NewCachedDataWriter(url string, log logger.Logger) *CachedDataWriter {
	if log == nil {
		log = logger.Default()
	}

	return &CachedDataWriter{
		url:     url,
		log:     log.WithComponent("cached_data_writer"),
		backoff: cachedDataInitialBackoff,
	}
}

func (w *CachedDataWriter) Write(in any) error {
	recs, err := models.ToRecords(in)
	if err != nil || len(recs) == 0 {
		return nil
	}

	data := map[string][][2]any{}

	for _, rec := range recs {
		for name, value := range rec.Fields {
			data[name] = append(data[name], [2]any{rec.Timestamp, value})
		}
	}

	if len(data) == 0 {
		return nil
	}

	payload, err := json.Marshal(cachedDataEnvelope{Type: "publish", Data: data})
	if err != nil {
		return fmt.Errorf("failed to serialize publish message: %w", err)
	}

	if err := w.ensureConnected(); err != nil {
		return err
	}

	if err := w.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		w.log.Warn().Err(err).Msg("cached data push failed, dropping connection")
		w.dropConnection()

		return fmt.Errorf("cached data push failed: %w", err)
	}

	return nil
}

func (w *CachedDataWriter) ensureConnected() error {
	if w.conn != nil {
		return nil
	}

	conn, _, err := websocket.DefaultDialer.Dial(w.url, nil)
	if err != nil {
		// Hold callers off for the backoff period rather than hammering
		// a down server on every record.
		time.Sleep(w.backoff)

		w.backoff *= 2
		if w.backoff > cachedDataMaxBackoff {
			w.backoff = cachedDataMaxBackoff
		}

		return fmt.Errorf("failed to connect to cached data server %q: %w", w.url, err)
	}

	w.log.Info().Str("url", w.url).Msg("connected to cached data server")

	w.conn = conn
	w.backoff = cachedDataInitialBackoff

	return nil
}

func (w *CachedDataWriter) dropConnection() {
	if w.conn != nil {
		_ = w.conn.Close()
		w.conn = nil
	}
}

func (w *CachedDataWriter) Close() error {
	if w.conn == nil {
		return nil
	}

	err := w.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))

	w.dropConnection()

	return err
}
