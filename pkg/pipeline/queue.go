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

package pipeline

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/oceandatatools/rvdas/pkg/logger"
)

// QueuePolicy selects what a full node queue does with a new record.
type QueuePolicy string

const (
	// PolicyBlock applies back-pressure: the producer waits for space.
	PolicyBlock QueuePolicy = "block"
	// PolicyDropOldest evicts the oldest queued record to make room.
	PolicyDropOldest QueuePolicy = "drop_oldest"
)

// DefaultQueueSize bounds node queues unless configured otherwise.
const DefaultQueueSize = 1024

// queue is a node's inbound FIFO. It closes once every registered
// producer has finished, letting the consumer drain and exit.
type queue struct {
	ch     chan any
	policy QueuePolicy
	log    logger.Logger

	producers atomic.Int32
	closeOnce sync.Once
	dropped   atomic.Int64
}

func newQueue(size int, policy QueuePolicy, log logger.Logger) *queue {
	if size <= 0 {
		size = DefaultQueueSize
	}

	if policy == "" {
		policy = PolicyBlock
	}

	return &queue{
		ch:     make(chan any, size),
		policy: policy,
		log:    log,
	}
}

func (q *queue) addProducer() {
	q.producers.Add(1)
}

// producerDone closes the queue once the last producer signs off.
func (q *queue) producerDone() {
	if q.producers.Add(-1) == 0 {
		q.closeOnce.Do(func() { close(q.ch) })
	}
}

// put enqueues v per the queue policy. Returns false when the context is
// canceled before the value lands.
func (q *queue) put(ctx context.Context, v any) bool {
	if q.policy == PolicyBlock {
		select {
		case q.ch <- v:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for {
		select {
		case q.ch <- v:
			return true
		case <-ctx.Done():
			return false
		default:
		}

		// Full: evict one and try again.
		select {
		case <-q.ch:
			if n := q.dropped.Add(1); n == 1 || n%1000 == 0 {
				q.log.Warn().Int64("dropped", n).Msg("queue full, dropping oldest")
			}
		default:
		}
	}
}

// get dequeues the next value. ok is false when the queue is closed and
// drained, or the context is canceled.
func (q *queue) get(ctx context.Context) (any, bool) {
	select {
	case v, open := <-q.ch:
		return v, open
	case <-ctx.Done():
		return nil, false
	}
}
