// Package session carries the per-run telemetry context that tags every
// model call made during an analysis run.
//
// The context is an explicit value threaded as a parameter through every
// pipeline stage, never stored in module-level mutable state. Concurrent
// runs are therefore isolated by construction: each run gets its own
// value and nested calls derive child values rather than inventing new
// top-level sessions.
package session

import (
	"github.com/google/uuid"
)

// Context identifies one analysis run and the position of a call within
// it. Values are copied on derivation; the Properties map must not be
// mutated after the context is handed to a stage.
type Context struct {
	// RunID is the per-run identifier shared by every call in a run
	RunID string

	// Path is the hierarchical position of the current operation,
	// e.g. "/jobs/analysis/math/investigate". Nested calls append a
	// segment via Child.
	Path string

	// Properties are custom key/value tags propagated to model calls
	Properties map[string]string
}

// New creates a root session context for a fresh run.
func New(path string) Context {
	return Context{
		RunID:      uuid.New().String(),
		Path:       path,
		Properties: map[string]string{},
	}
}

// Child returns a derived context with segment appended to the path.
// The run ID and properties carry over unchanged, so all calls from one
// run remain traceable together.
func (c Context) Child(segment string) Context {
	path := c.Path
	if path == "" || path[len(path)-1] != '/' {
		path += "/"
	}
	return Context{
		RunID:      c.RunID,
		Path:       path + segment,
		Properties: c.Properties,
	}
}

// WithProperty returns a derived context with one extra property set.
// The parent's property map is copied, not shared.
func (c Context) WithProperty(key, value string) Context {
	props := make(map[string]string, len(c.Properties)+1)
	for k, v := range c.Properties {
		props[k] = v
	}
	props[key] = value
	return Context{
		RunID:      c.RunID,
		Path:       c.Path,
		Properties: props,
	}
}
