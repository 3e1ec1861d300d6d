// Package obfuscator runs a complete obfuscation job: load inputs, build the
// class hierarchy, decide new names, apply them and write the result.
package obfuscator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/cmmoran/jvmobf/internal/exclusion"
	"github.com/cmmoran/jvmobf/internal/jar"
	"github.com/cmmoran/jvmobf/internal/job"
	"github.com/cmmoran/jvmobf/internal/mapping"
	"github.com/cmmoran/jvmobf/internal/passes"
	"github.com/cmmoran/jvmobf/internal/pipeline"
	"github.com/cmmoran/jvmobf/internal/registry"
	"github.com/cmmoran/jvmobf/internal/remap"
	"github.com/cmmoran/jvmobf/internal/rename"
)

var ErrNoInput = errors.New("no input given")

type Obfuscator struct {
	opts   *Options
	rules  *exclusion.Rules
	policy pipeline.FailurePolicy
	log    *slog.Logger
}

// Result summarizes a finished job.
type Result struct {
	// MainClass is the renamed entry point, "" when it kept its name.
	MainClass string `json:"main_class,omitempty" yaml:"main_class,omitempty"`
	Classes   int    `json:"classes" yaml:"classes"`
	Fields    int    `json:"fields" yaml:"fields"`
	Methods   int    `json:"methods" yaml:"methods"`
	Native    int    `json:"native" yaml:"native"`
	Widened   int    `json:"widened" yaml:"widened"`
	// Mapping holds the mapping file text.
	Mapping []byte `json:"-" yaml:"-"`

	registry *registry.Registry
}

func New(opts ...Option) (*Obfuscator, error) {
	o := NewOptions()
	for _, opt := range opts {
		opt(o)
	}
	return NewWithOpts(o)
}

func NewWithOpts(o *Options) (*Obfuscator, error) {
	if err := o.Normalize(); err != nil {
		return nil, err
	}
	rules, err := exclusion.NewRules(o.ExcludeClasses, o.ExcludeMethods, o.ExcludeFields)
	if err != nil {
		return nil, err
	}
	policy, err := pipeline.ParseFailurePolicy(o.FailurePolicy)
	if err != nil {
		return nil, err
	}
	return &Obfuscator{opts: o, rules: rules, policy: policy, log: slog.Default()}, nil
}

// WithLogger replaces the default logger.
func (ob *Obfuscator) WithLogger(l *slog.Logger) *Obfuscator {
	if l != nil {
		ob.log = l
	}
	return ob
}

// Run loads the inputs, processes them and writes the output jar and the
// mapping file. With the best-effort policy a non-nil Result may come back
// together with the joined per-class errors.
func (ob *Obfuscator) Run(ctx context.Context) (*Result, error) {
	o := ob.opts
	if len(o.Inputs) == 0 {
		return nil, ErrNoInput
	}
	reg := registry.New()
	ld := jar.NewLoader(reg, ob.log)
	if err := ld.Libraries(ctx, o.Libraries...); err != nil {
		return nil, fmt.Errorf("load libraries: %w", err)
	}
	resources, err := ld.Application(ctx, o.Inputs...)
	if err != nil {
		return nil, fmt.Errorf("load inputs: %w", err)
	}

	mainClass := o.MainClass
	if mainClass == "" {
		if mf, ok := jar.Manifest(resources); ok {
			mainClass = jar.MainClass(mf)
		}
	}

	res, runErr := ob.process(ctx, reg, registry.ClassReference(mainClass))
	if res == nil {
		return nil, runErr
	}
	if o.MappingFile != "" {
		if err := os.WriteFile(o.MappingFile, res.Mapping, 0o644); err != nil {
			return nil, fmt.Errorf("write mapping: %w", err)
		}
		ob.log.With("mapping", o.MappingFile).Info("wrote mapping file")
	}
	if o.Output != "" {
		out := jar.Output{Registry: res.registry, Resources: resources, MainClass: registry.ClassReference(res.MainClass)}
		if err := jar.WriteFile(o.Output, out); err != nil {
			return nil, fmt.Errorf("write output: %w", err)
		}
		ob.log.With("output", o.Output, "classes", len(res.registry.Application())).Info("wrote output jar")
	}
	return res, runErr
}

// process runs the three phases over reg:
//
//  1. parallel: hierarchy nodes (and debug info stripping)
//  2. sequential: rename decisions, then the mapping file is rendered while
//     classes still carry their original names
//  3. parallel: the frozen mapping is applied to every application class
func (ob *Obfuscator) process(ctx context.Context, reg *registry.Registry, mainClass registry.ClassReference) (*Result, error) {
	o, l := ob.opts, ob.log

	var enabled job.Predicate
	if o.Enabled != nil {
		enabled = func(ref registry.ClassReference) bool { return o.Enabled(string(ref)) }
	}
	j := job.New(reg, ob.rules, o.AcceptMissing, enabled, l)

	staging := &pipeline.Pipeline{Threads: o.Threads, Policy: ob.policy, OversubscribeDelay: o.OversubscribeDelay, Enabled: enabled, Log: l}
	processors := []pipeline.Processor{j.Hierarchy.Processor()}
	if o.StripDebugInfo {
		processors = append(processors, passes.StripDebugInfo())
	}
	var errs []error
	staged, err := staging.Run(ctx, reg, processors...)
	if staged == nil {
		return nil, fmt.Errorf("hierarchy phase: %w", err)
	}
	if err != nil {
		errs = append(errs, err)
	}
	j.Advance(staged)

	renamed, err := rename.New(j, rename.Config{
		Classes:       o.RenameClasses,
		Methods:       o.RenameMethods,
		Fields:        o.RenameFields,
		WidenAccess:   o.WidenAccess,
		Repackage:     rename.Repackage(o.Repackage),
		TargetPackage: o.TargetPackage,
		PackagePool:   o.PackagePool,
		Dictionary:    rename.Dictionary(o.Dictionary),
		Seed:          o.Seed,
		MainClass:     mainClass,
	}).Run()
	if err != nil {
		return nil, fmt.Errorf("rename phase: %w", err)
	}

	var text bytes.Buffer
	if err := mapping.Write(&text, j.Mapping, staged); err != nil {
		return nil, fmt.Errorf("render mapping: %w", err)
	}

	rm, err := remap.New(j.Mapping, l)
	if err != nil {
		return nil, err
	}
	// Every class is remapped, disabled ones included: they still reference
	// renamed classes and members.
	applying := &pipeline.Pipeline{Threads: o.Threads, Policy: ob.policy, OversubscribeDelay: o.OversubscribeDelay, Log: l}
	out, err := applying.Run(ctx, staged, rm.Processor())
	if out == nil {
		return nil, fmt.Errorf("remap phase: %w", err)
	}
	if err != nil {
		errs = append(errs, err)
	}

	res := &Result{
		MainClass: string(renamed.MainClass),
		Classes:   renamed.Classes,
		Fields:    renamed.Fields,
		Methods:   renamed.Methods,
		Native:    renamed.Native,
		Widened:   renamed.Widened,
		Mapping:   text.Bytes(),
		registry:  out,
	}
	l.With("classes", res.Classes, "fields", res.Fields, "methods", res.Methods, "failed", len(errs)).Info("obfuscation done")
	return res, errors.Join(errs...)
}
