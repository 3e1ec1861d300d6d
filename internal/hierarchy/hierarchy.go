// Package hierarchy builds the bidirectional super/sub-type graph of a job.
package hierarchy

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/cmmoran/jvmobf/internal/registry"
)

var (
	ErrMissingSuperClass = errors.New("missing super class")
	ErrCyclicHierarchy   = errors.New("cyclic class hierarchy")
)

// Node is the per-class record of direct ancestors and known descendants.
// Edges are ClassReferences; nodes never point at each other.
type Node struct {
	Ref   registry.ClassReference
	Class *registry.ClassDescriptor

	Parents map[registry.ClassReference]struct{}
	Subs    map[registry.ClassReference]struct{}

	// MissingSuperClass is monotonic: once set on an ancestor, every
	// descendant built afterwards carries it too.
	MissingSuperClass bool
}

func (n *Node) Library() bool { return n.Class.Library }

// SortedParents returns the parent edges in a stable order.
func (n *Node) SortedParents() []registry.ClassReference { return sorted(n.Parents) }

// SortedSubs returns the sub edges in a stable order.
func (n *Node) SortedSubs() []registry.ClassReference { return sorted(n.Subs) }

func sorted(set map[registry.ClassReference]struct{}) []registry.ClassReference {
	out := make([]registry.ClassReference, 0, len(set))
	for r := range set {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Cache memoizes nodes per reference. All methods are safe for concurrent use;
// Build holds the cache lock for the whole (recursive) construction.
type Cache struct {
	mu            sync.Mutex
	reg           *registry.Registry
	nodes         map[registry.ClassReference]*Node
	resolving     map[registry.ClassReference]bool
	acceptMissing bool
	log           *slog.Logger
}

// NewCache returns an empty cache resolving supertypes in reg. With
// acceptMissing, unresolved supertypes taint the subtree instead of failing.
func NewCache(reg *registry.Registry, acceptMissing bool, l *slog.Logger) *Cache {
	if l == nil {
		l = slog.Default()
	}
	return &Cache{
		reg:           reg,
		nodes:         make(map[registry.ClassReference]*Node),
		resolving:     make(map[registry.ClassReference]bool),
		acceptMissing: acceptMissing,
		log:           l,
	}
}

// Build returns the node for d, constructing it and its ancestors on first use.
func (c *Cache) Build(d *registry.ClassDescriptor) (*Node, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.build(d, "")
}

// BuildFrom is Build with sub recorded as a known subtype of d.
func (c *Cache) BuildFrom(d *registry.ClassDescriptor, sub registry.ClassReference) (*Node, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.build(d, sub)
}

// Rebind resolves supertypes against reg from now on. Built nodes are kept;
// it is meant for handing the cache from one pipeline phase to the next.
func (c *Cache) Rebind(reg *registry.Registry) {
	c.mu.Lock()
	c.reg = reg
	c.mu.Unlock()
}

// Get returns an already built node.
func (c *Cache) Get(ref registry.ClassReference) (*Node, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.nodes[ref]
	return n, ok
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.nodes)
}

func (c *Cache) build(d *registry.ClassDescriptor, sub registry.ClassReference) (*Node, error) {
	if n, ok := c.nodes[d.Ref]; ok {
		if sub != "" {
			n.Subs[sub] = struct{}{}
		}
		return n, nil
	}
	if c.resolving[d.Ref] {
		return nil, fmt.Errorf("%w: %s", ErrCyclicHierarchy, d.Ref)
	}
	c.resolving[d.Ref] = true
	defer delete(c.resolving, d.Ref)

	n := &Node{
		Ref:     d.Ref,
		Class:   d,
		Parents: make(map[registry.ClassReference]struct{}),
		Subs:    make(map[registry.ClassReference]struct{}),
	}
	if sub != "" {
		n.Subs[sub] = struct{}{}
	}

	for _, super := range d.Supertypes() {
		sd, ok := c.reg.Get(super)
		if !ok {
			if !c.acceptMissing {
				return nil, fmt.Errorf("%w: %s (required by %s)", ErrMissingSuperClass, super, d.Ref)
			}
			c.log.With("class", d.Ref, "missing", super).Warn("unresolved supertype, renaming disabled for subtree")
			n.MissingSuperClass = true
			continue
		}
		parent, err := c.build(sd, d.Ref)
		if err != nil {
			return nil, err
		}
		n.Parents[super] = struct{}{}
		if parent.MissingSuperClass {
			n.MissingSuperClass = true
		}
	}

	c.nodes[d.Ref] = n
	return n, nil
}
