// Package job carries the per-job state shared by the phases of one run, so
// independent jobs never share caches.
package job

import (
	"log/slog"

	"github.com/cmmoran/jvmobf/internal/exclusion"
	"github.com/cmmoran/jvmobf/internal/hierarchy"
	"github.com/cmmoran/jvmobf/internal/mapping"
	"github.com/cmmoran/jvmobf/internal/registry"
)

// Predicate enables or disables processing of a single class.
type Predicate func(registry.ClassReference) bool

// Always is the default predicate.
func Always(registry.ClassReference) bool { return true }

type Context struct {
	Registry  *registry.Registry
	Hierarchy *hierarchy.Cache
	Mapping   *mapping.Table
	Rules     *exclusion.Rules
	Enabled   Predicate
	Log       *slog.Logger
}

// New wires a context over reg. A nil predicate enables every class.
func New(reg *registry.Registry, rules *exclusion.Rules, acceptMissing bool, enabled Predicate, l *slog.Logger) *Context {
	if l == nil {
		l = slog.Default()
	}
	if enabled == nil {
		enabled = Always
	}
	return &Context{
		Registry:  reg,
		Hierarchy: hierarchy.NewCache(reg, acceptMissing, l),
		Mapping:   mapping.NewTable(),
		Rules:     rules,
		Enabled:   enabled,
		Log:       l,
	}
}

// Advance moves the job onto the registry produced by a pipeline phase.
func (c *Context) Advance(reg *registry.Registry) {
	c.Registry = reg
	c.Hierarchy.Rebind(reg)
}
