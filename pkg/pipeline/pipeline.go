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

// Package pipeline runs the record dataflow: a DAG of nodes, each holding
// a reader, transform or writer, wired by subscription lists and driven
// as goroutines over bounded queues.
package pipeline

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/oceandatatools/rvdas/pkg/logger"
)

// ComponentSpec names a component class and its constructor kwargs.
type ComponentSpec struct {
	Class  string         `json:"class" yaml:"class"`
	Kwargs map[string]any `json:"kwargs" yaml:"kwargs"`
}

// NodeSpec is one explicitly wired node.
type NodeSpec struct {
	Name         string         `json:"name" yaml:"name"`
	Class        string         `json:"class" yaml:"class"`
	Kwargs       map[string]any `json:"kwargs" yaml:"kwargs"`
	SubscribesTo []string       `json:"subscribes_to" yaml:"subscribes_to"`
	QueueSize    int            `json:"queue_size" yaml:"queue_size"`
	QueuePolicy  QueuePolicy    `json:"queue_policy" yaml:"queue_policy"`
}

// Spec describes a pipeline, either as readers/transforms/writers lists
// (wired as a linear chain with fan-in from readers and fan-out to
// writers) or as an explicit node list.
type Spec struct {
	Name string `json:"name" yaml:"name"`

	Readers    []ComponentSpec `json:"readers" yaml:"readers"`
	Transforms []ComponentSpec `json:"transforms" yaml:"transforms"`
	Writers    []ComponentSpec `json:"writers" yaml:"writers"`

	Nodes []NodeSpec `json:"nodes" yaml:"nodes"`

	QueueSize   int         `json:"queue_size" yaml:"queue_size"`
	QueuePolicy QueuePolicy `json:"queue_policy" yaml:"queue_policy"`
}

// ParseSpec decodes a YAML or JSON pipeline spec.
func ParseSpec(data []byte) (*Spec, error) {
	var spec Spec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("bad pipeline spec: %w", err)
	}

	return &spec, nil
}

// Pipeline is a built, runnable node DAG.
type Pipeline struct {
	Name  string
	nodes map[string]*Node
	order []string
	log   logger.Logger
}

// Build instantiates every component in spec and wires the subscription
// edges. Unknown component classes and unknown subscription targets fail
// the build.
func Build(ctx context.Context, spec *Spec, registry *Registry, log logger.Logger) (*Pipeline, error) {
	if log == nil {
		log = logger.Default()
	}

	if registry == nil {
		registry = NewRegistry()
	}

	nodeSpecs, err := normalize(spec)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		Name:  spec.Name,
		nodes: map[string]*Node{},
		log:   log,
	}

	deps := BuildDeps{Ctx: ctx, Log: log}

	for _, ns := range nodeSpecs {
		if _, dup := p.nodes[ns.Name]; dup {
			return nil, fmt.Errorf("duplicate node name %q", ns.Name)
		}

		component, err := registry.Build(ns.Class, ns.Kwargs, deps)
		if err != nil {
			return nil, fmt.Errorf("node %q: %w", ns.Name, err)
		}

		size, policy := ns.QueueSize, ns.QueuePolicy
		if size == 0 {
			size = spec.QueueSize
		}

		if policy == "" {
			policy = spec.QueuePolicy
		}

		node, err := NewNode(ns.Name, component, ns.SubscribesTo, size, policy, log)
		if err != nil {
			return nil, err
		}

		p.nodes[ns.Name] = node
		p.order = append(p.order, ns.Name)
	}

	for _, node := range p.nodes {
		for _, upstream := range node.Subscriptions {
			up, ok := p.nodes[upstream]
			if !ok {
				return nil, fmt.Errorf("node %q subscribes to unknown node %q", node.Name, upstream)
			}

			up.subscribe(node)
		}
	}

	return p, nil
}

// normalize expands the readers/transforms/writers shorthand into an
// explicit node list.
func normalize(spec *Spec) ([]NodeSpec, error) {
	if len(spec.Nodes) > 0 {
		if len(spec.Readers)+len(spec.Transforms)+len(spec.Writers) > 0 {
			return nil, fmt.Errorf("pipeline spec mixes nodes with readers/transforms/writers")
		}

		return spec.Nodes, nil
	}

	if len(spec.Readers) == 0 {
		return nil, fmt.Errorf("pipeline spec has no readers")
	}

	if len(spec.Writers) == 0 {
		return nil, fmt.Errorf("pipeline spec has no writers")
	}

	var nodes []NodeSpec

	var stage []string
	for i, cs := range spec.Readers {
		name := fmt.Sprintf("reader_%d_%s", i, cs.Class)
		nodes = append(nodes, NodeSpec{Name: name, Class: cs.Class, Kwargs: cs.Kwargs})
		stage = append(stage, name)
	}

	for i, cs := range spec.Transforms {
		name := fmt.Sprintf("transform_%d_%s", i, cs.Class)
		nodes = append(nodes, NodeSpec{
			Name: name, Class: cs.Class, Kwargs: cs.Kwargs, SubscribesTo: stage,
		})
		stage = []string{name}
	}

	for i, cs := range spec.Writers {
		name := fmt.Sprintf("writer_%d_%s", i, cs.Class)
		nodes = append(nodes, NodeSpec{
			Name: name, Class: cs.Class, Kwargs: cs.Kwargs, SubscribesTo: stage,
		})
	}

	return nodes, nil
}

// Run drives every node until the sources are exhausted or the context
// is canceled. It returns after all nodes, writers included, finish.
func (p *Pipeline) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, name := range p.order {
		node := p.nodes[name]
		g.Go(func() error { return node.Run(ctx) })
	}

	p.log.Info().Str("pipeline", p.Name).Int("nodes", len(p.order)).Msg("pipeline running")

	return g.Wait()
}

// Quit asks every node to stop after its current record.
func (p *Pipeline) Quit() {
	for _, node := range p.nodes {
		node.Quit()
	}
}

// Node returns the named node, for inspection in tests.
func (p *Pipeline) Node(name string) (*Node, bool) {
	n, ok := p.nodes[name]
	return n, ok
}
