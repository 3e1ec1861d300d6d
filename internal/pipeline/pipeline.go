// Package pipeline drives per-class processors over a registry with a fixed
// pool of workers pulling from one shared queue.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cmmoran/jvmobf/internal/classfile"
	"github.com/cmmoran/jvmobf/internal/registry"
)

// Callback lets a processor talk back to the pipeline for the current class.
type Callback interface {
	// RequireFrames marks the class as needing stack map frame recomputation.
	RequireFrames()
	// AddClass contributes a newly generated application class.
	AddClass(cls *classfile.Class)
}

// Processor transforms one class in place.
type Processor interface {
	Name() string
	Process(cls *classfile.Class, cb Callback) error
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc struct {
	ID string
	Fn func(cls *classfile.Class, cb Callback) error
}

func (p ProcessorFunc) Name() string { return p.ID }
func (p ProcessorFunc) Process(cls *classfile.Class, cb Callback) error {
	return p.Fn(cls, cb)
}

// FailurePolicy decides what a per-class error does to the rest of the run.
type FailurePolicy int

const (
	// FailFast stops handing out work after the first error; Run returns the
	// error and no registry.
	FailFast FailurePolicy = iota
	// BestEffort restores failed classes from their original bytes and keeps
	// going; Run returns the merged registry together with the joined errors.
	BestEffort
)

func (p FailurePolicy) String() string {
	if p == BestEffort {
		return "best-effort"
	}
	return "fail-fast"
}

// ParseFailurePolicy accepts "fail-fast" and "best-effort".
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch s {
	case "", "fail-fast":
		return FailFast, nil
	case "best-effort":
		return BestEffort, nil
	}
	return FailFast, fmt.Errorf("unknown failure policy %q", s)
}

// DefaultOversubscribeDelay is how long Run pauses after warning about more
// workers than cores.
const DefaultOversubscribeDelay = time.Second

// Pipeline is configured once and may run several phases.
type Pipeline struct {
	Threads            int
	Policy             FailurePolicy
	OversubscribeDelay time.Duration
	// Enabled filters the classes processors run on; nil enables all.
	Enabled func(registry.ClassReference) bool
	Log     *slog.Logger
}

// ClassError carries the class a processor failed on.
type ClassError struct {
	Class     registry.ClassReference
	Processor string
	Err       error
}

func (e *ClassError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Class, e.Processor, e.Err)
}

func (e *ClassError) Unwrap() error { return e.Err }

type queue struct {
	mu    sync.Mutex
	items []*registry.ClassDescriptor
}

func (q *queue) pop() (*registry.ClassDescriptor, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	d := q.items[len(q.items)-1]
	q.items = q.items[:len(q.items)-1]
	return d, true
}

type callback struct {
	frames    bool
	generated *generated
}

func (cb *callback) RequireFrames()                { cb.frames = true }
func (cb *callback) AddClass(cls *classfile.Class) { cb.generated.add(cls) }

type generated struct {
	mu      sync.Mutex
	classes []*classfile.Class
}

func (g *generated) add(cls *classfile.Class) {
	g.mu.Lock()
	g.classes = append(g.classes, cls)
	g.mu.Unlock()
}

// Run applies processors, in order, to every enabled application class and
// returns the registry holding the results. Library and disabled classes are
// carried over untouched.
func (p *Pipeline) Run(ctx context.Context, reg *registry.Registry, processors ...Processor) (*registry.Registry, error) {
	l := p.Log
	if l == nil {
		l = slog.Default()
	}
	threads := max(p.Threads, 1)
	if cores := runtime.NumCPU(); threads > cores {
		l.With("threads", threads, "cores", cores).Warn("thread count exceeds available cores")
		if p.OversubscribeDelay > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(p.OversubscribeDelay):
			}
		}
	}

	out := registry.New()
	q := &queue{}
	for _, d := range reg.Application() {
		if p.Enabled != nil && !p.Enabled(d.Ref) {
			out.Put(d)
			continue
		}
		q.items = append(q.items, d)
	}
	for _, d := range reg.Libraries() {
		out.Put(d)
	}

	var (
		total     = len(q.items)
		processed atomic.Int64
		gen       = &generated{}
		partials  = make([]map[registry.ClassReference]*registry.ClassDescriptor, threads)
		failures  = make([][]error, threads)
	)
	g, gctx := errgroup.WithContext(ctx)
	for w := range threads {
		partial := make(map[registry.ClassReference]*registry.ClassDescriptor)
		partials[w] = partial
		g.Go(func() error {
			for gctx.Err() == nil {
				d, ok := q.pop()
				if !ok {
					return nil
				}
				res, err := p.process(d, processors, gen)
				done := processed.Add(1)
				if err != nil {
					l.With("class", d.Ref, "processed", done, "total", total, "error", err).Error("class processing failed")
					if p.Policy == FailFast {
						return err
					}
					failures[w] = append(failures[w], err)
					if res, err = d.Restore(); err != nil {
						return fmt.Errorf("restore %s: %w", d.Ref, err)
					}
				}
				if prev, dup := partial[res.Ref]; dup {
					return fmt.Errorf("classes %s and %s both resolve to %s", prev.Ref, d.Ref, res.Ref)
				}
				partial[res.Ref] = res
			}
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, partial := range partials {
		for ref, d := range partial {
			if _, dup := out.Get(ref); dup {
				return nil, fmt.Errorf("duplicate class %s after merge", ref)
			}
			out.Put(d)
		}
	}
	for _, cls := range gen.classes {
		if err := out.Add(registry.NewDescriptor(cls, nil, false)); err != nil {
			return nil, fmt.Errorf("generated class: %w", err)
		}
	}

	var errs []error
	for _, f := range failures {
		errs = append(errs, f...)
	}
	l.With("classes", total, "generated", len(gen.classes), "failed", len(errs)).Debug("pipeline phase done")
	return out, errors.Join(errs...)
}

func (p *Pipeline) process(d *registry.ClassDescriptor, processors []Processor, gen *generated) (res *registry.ClassDescriptor, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &ClassError{Class: d.Ref, Processor: "panic", Err: fmt.Errorf("%v", r)}
		}
	}()
	cb := &callback{generated: gen}
	for _, proc := range processors {
		if err := proc.Process(d.Class, cb); err != nil {
			return nil, &ClassError{Class: d.Ref, Processor: proc.Name(), Err: err}
		}
	}
	res = d
	if name := registry.ClassReference(d.Class.Name()); name != d.Ref {
		res = registry.NewDescriptor(d.Class, d.Raw, false)
		res.ComputeFrames = d.ComputeFrames
	}
	if cb.frames {
		res.ComputeFrames = true
	}
	return res, nil
}
