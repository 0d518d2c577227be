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
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/oceandatatools/rvdas/pkg/logger"
)

// NATSReader subscribes to a subject and delivers each message payload
// as a string.
type NATSReader struct {
	conn *nats.Conn
	sub  *nats.Subscription
	log  logger.Logger
}

const natsNextMsgPoll = time.Second

// NewNATSReader connects to the server and subscribes to subject.
func NewNATSReader(serverURL, subject string, log logger.Logger) (*NATSReader, error) {
	if log == nil {
		log = logger.Default()
	}

	conn, err := nats.Connect(serverURL,
		nats.MaxReconnects(-1),
		nats.RetryOnFailedConnect(true))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %q: %w", serverURL, err)
	}

	sub, err := conn.SubscribeSync(subject)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to subscribe to %q: %w", subject, err)
	}

	return &NATSReader{
		conn: conn,
		sub:  sub,
		log:  log.WithComponent("nats_reader"),
	}, nil
}

func (r *NATSReader) Read(ctx context.Context) (any, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		msg, err := r.sub.NextMsg(natsNextMsgPoll)
		if err != nil {
			if errors.Is(err, nats.ErrTimeout) {
				continue
			}

			if errors.Is(err, nats.ErrConnectionClosed) || errors.Is(err, nats.ErrBadSubscription) {
				return nil, ErrEOF
			}

			return nil, fmt.Errorf("nats read failed: %w", err)
		}

		return strings.TrimRight(string(msg.Data), "\r\n"), nil
	}
}

func (r *NATSReader) Close() error {
	if err := r.sub.Unsubscribe(); err != nil {
		r.log.Debug().Err(err).Msg("unsubscribe failed")
	}

	r.conn.Close()

	return nil
}
