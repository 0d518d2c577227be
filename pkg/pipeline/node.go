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
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/oceandatatools/rvdas/pkg/logger"
	"github.com/oceandatatools/rvdas/pkg/reader"
	"github.com/oceandatatools/rvdas/pkg/transform"
	"github.com/oceandatatools/rvdas/pkg/writer"
)

// Node is one vertex of the dataflow DAG: a named processor plus the
// queue its upstream nodes feed. A node with no subscriptions must hold
// a Reader; all others hold a Transform or Writer.
type Node struct {
	Name          string
	Subscriptions []string

	processor any
	queue     *queue
	subs      []*Node
	quit      atomic.Bool
	log       logger.Logger
}

// NewNode wraps processor (a reader.Reader, transform.Transform or
// writer.Writer).
func NewNode(name string, processor any, subscriptions []string, queueSize int, policy QueuePolicy, log logger.Logger) (*Node, error) {
	if log == nil {
		log = logger.Default()
	}

	log = logger.NewWithZerolog(log.With().Str("node", name).Logger())

	switch processor.(type) {
	case reader.Reader:
		if len(subscriptions) > 0 {
			return nil, fmt.Errorf("reader node %q cannot subscribe to other nodes", name)
		}
	case transform.Transform, writer.Writer:
		if len(subscriptions) == 0 {
			return nil, fmt.Errorf("node %q has no subscriptions and is not a reader", name)
		}
	default:
		return nil, fmt.Errorf("node %q: unsupported processor type %T", name, processor)
	}

	return &Node{
		Name:          name,
		Subscriptions: subscriptions,
		processor:     processor,
		queue:         newQueue(queueSize, policy, log),
		log:           log,
	}, nil
}

// subscribe registers sub as a downstream consumer of this node.
func (n *Node) subscribe(sub *Node) {
	n.subs = append(n.subs, sub)
	sub.queue.addProducer()
}

// Quit asks the node's run loop to exit after the current record.
func (n *Node) Quit() {
	n.quit.Store(true)
}

// broadcast fans r out to every subscriber queue. Slices fan out
// element-wise.
func (n *Node) broadcast(ctx context.Context, r any) {
	if r == nil {
		return
	}

	items, ok := r.([]any)
	if !ok {
		items = []any{r}
	}

	for _, item := range items {
		if item == nil {
			continue
		}

		for _, sub := range n.subs {
			sub.queue.put(ctx, item)
		}
	}
}

// Run drives the node until its input ends, the context is canceled, or
// Quit is called. On exit it signs the node off from every subscriber.
func (n *Node) Run(ctx context.Context) error {
	defer func() {
		for _, sub := range n.subs {
			sub.queue.producerDone()
		}
	}()

	switch p := n.processor.(type) {
	case reader.Reader:
		return n.runReader(ctx, p)
	case transform.Transform:
		n.runLoop(ctx, func(r any) { n.broadcast(ctx, p.Apply(r)) })
		return nil
	case writer.Writer:
		n.runLoop(ctx, func(r any) {
			if err := p.Write(r); err != nil {
				n.log.Warn().Err(err).Msg("write failed")
			}
		})

		return n.closeWriter(p)
	default:
		return fmt.Errorf("node %q: unsupported processor type %T", n.Name, p)
	}
}

func (n *Node) runReader(ctx context.Context, r reader.Reader) error {
	defer func() {
		if err := r.Close(); err != nil {
			n.log.Debug().Err(err).Msg("reader close failed")
		}
	}()

	for !n.quit.Load() {
		rec, err := r.Read(ctx)
		if err != nil {
			if errors.Is(err, reader.ErrEOF) || ctx.Err() != nil {
				return nil
			}

			n.log.Warn().Err(err).Msg("read failed")

			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}

			continue
		}

		n.broadcast(ctx, rec)
	}

	return nil
}

func (n *Node) runLoop(ctx context.Context, process func(any)) {
	for !n.quit.Load() {
		rec, ok := n.queue.get(ctx)
		if !ok {
			return
		}

		process(rec)
	}
}

func (n *Node) closeWriter(w writer.Writer) error {
	if err := w.Close(); err != nil {
		return fmt.Errorf("node %q: close failed: %w", n.Name, err)
	}

	return nil
}
