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
	"encoding/json"
	"fmt"
	"sync"

	"github.com/oceandatatools/rvdas/pkg/logger"
)

// BuildDeps carries the ambient dependencies component factories may
// need. Ctx bounds connection setup and store operations.
type BuildDeps struct {
	Ctx context.Context
	Log logger.Logger
	// Registry lets nested component specs (e.g. a timeout reader's
	// wrapped source) build their children.
	Registry *Registry
}

// Factory builds a component from its kwargs. The result must be a
// reader.Reader, transform.Transform or writer.Writer.
type Factory func(kwargs map[string]any, deps BuildDeps) (any, error)

// Registry maps component class names to factories. The built-in classes
// are pre-registered; Register adds plug-ins. Unknown class names are
// rejected at build time, never dispatched dynamically.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns a registry pre-loaded with the built-in component
// classes.
func NewRegistry() *Registry {
	r := &Registry{factories: map[string]Factory{}}
	registerBuiltins(r)

	return r
}

// Register adds (or replaces) a factory for class.
func (r *Registry) Register(class string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.factories[class] = f
}

// Build instantiates the named class with kwargs.
func (r *Registry) Build(class string, kwargs map[string]any, deps BuildDeps) (any, error) {
	r.mu.RLock()
	f, ok := r.factories[class]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown component class %q", class)
	}

	deps.Registry = r

	component, err := f(kwargs, deps)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s: %w", class, err)
	}

	return component, nil
}

// decodeKwargs maps loosely-typed kwargs onto a typed config struct via
// its json tags.
func decodeKwargs(kwargs map[string]any, out any) error {
	raw, err := json.Marshal(kwargs)
	if err != nil {
		return fmt.Errorf("bad kwargs: %w", err)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("bad kwargs: %w", err)
	}

	return nil
}
