package obfuscator

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/cmmoran/jvmobf/internal/pipeline"
	"github.com/cmmoran/jvmobf/internal/rename"
)

// Options control one obfuscation job.
//
// Inputs             – application jars, jmods, directories or class files
// Libraries          – read-only classpath used to resolve supertypes
// Output             – jar to write
// MappingFile        – where the old → new names are written, empty to skip
// MainClass          – launch entry point, read from the input manifest when empty
// Threads            – pipeline workers
// OversubscribeDelay – pause after warning that Threads exceeds the core count
// FailurePolicy      – "fail-fast" or "best-effort"
// AcceptMissing      – tolerate unresolvable supertypes (the class is kept as is)
// Exclude*           – glob patterns of names that keep their name
// Rename*            – which identifiers are renamed at all
// Repackage          – "keep", "flatten" or "random"
// Seed               – 0 derives one from the input class names
// Note: Threads above the core count is allowed but logged.
type Options struct {
	Inputs             []string      `json:"inputs,omitempty" yaml:"inputs,omitempty" toml:"inputs,omitempty" mapstructure:"inputs,omitempty"`
	Libraries          []string      `json:"libraries,omitempty" yaml:"libraries,omitempty" toml:"libraries,omitempty" mapstructure:"libraries,omitempty"`
	Output             string        `json:"output,omitempty" yaml:"output,omitempty" toml:"output,omitempty" mapstructure:"output,omitempty"`
	MappingFile        string        `json:"mapping_file,omitempty" yaml:"mapping_file,omitempty" toml:"mapping_file,omitempty" mapstructure:"mapping_file,omitempty"`
	MainClass          string        `json:"main_class,omitempty" yaml:"main_class,omitempty" toml:"main_class,omitempty" mapstructure:"main_class,omitempty"`
	Threads            int           `json:"threads,omitempty" yaml:"threads,omitempty" toml:"threads,omitempty" mapstructure:"threads,omitempty"`
	OversubscribeDelay time.Duration `json:"oversubscribe_delay,omitempty" yaml:"oversubscribe_delay,omitempty" toml:"oversubscribe_delay,omitempty" mapstructure:"oversubscribe_delay,omitempty"`
	FailurePolicy      string        `json:"failure_policy,omitempty" yaml:"failure_policy,omitempty" toml:"failure_policy,omitempty" mapstructure:"failure_policy,omitempty"`
	AcceptMissing      bool          `json:"accept_missing,omitempty" yaml:"accept_missing,omitempty" toml:"accept_missing,omitempty" mapstructure:"accept_missing,omitempty"`
	ExcludeClasses     []string      `json:"exclude_classes,omitempty" yaml:"exclude_classes,omitempty" toml:"exclude_classes,omitempty" mapstructure:"exclude_classes,omitempty"`
	ExcludeMethods     []string      `json:"exclude_methods,omitempty" yaml:"exclude_methods,omitempty" toml:"exclude_methods,omitempty" mapstructure:"exclude_methods,omitempty"`
	ExcludeFields      []string      `json:"exclude_fields,omitempty" yaml:"exclude_fields,omitempty" toml:"exclude_fields,omitempty" mapstructure:"exclude_fields,omitempty"`
	RenameClasses      bool          `json:"rename_classes,omitempty" yaml:"rename_classes,omitempty" toml:"rename_classes,omitempty" mapstructure:"rename_classes,omitempty"`
	RenameMethods      bool          `json:"rename_methods,omitempty" yaml:"rename_methods,omitempty" toml:"rename_methods,omitempty" mapstructure:"rename_methods,omitempty"`
	RenameFields       bool          `json:"rename_fields,omitempty" yaml:"rename_fields,omitempty" toml:"rename_fields,omitempty" mapstructure:"rename_fields,omitempty"`
	WidenAccess        bool          `json:"widen_access,omitempty" yaml:"widen_access,omitempty" toml:"widen_access,omitempty" mapstructure:"widen_access,omitempty"`
	Repackage          string        `json:"repackage,omitempty" yaml:"repackage,omitempty" toml:"repackage,omitempty" mapstructure:"repackage,omitempty"`
	TargetPackage      string        `json:"target_package,omitempty" yaml:"target_package,omitempty" toml:"target_package,omitempty" mapstructure:"target_package,omitempty"`
	PackagePool        int           `json:"package_pool,omitempty" yaml:"package_pool,omitempty" toml:"package_pool,omitempty" mapstructure:"package_pool,omitempty"`
	Dictionary         string        `json:"dictionary,omitempty" yaml:"dictionary,omitempty" toml:"dictionary,omitempty" mapstructure:"dictionary,omitempty"`
	Seed               uint64        `json:"seed,omitempty" yaml:"seed,omitempty" toml:"seed,omitempty" mapstructure:"seed,omitempty"`
	StripDebugInfo     bool          `json:"strip_debug_info,omitempty" yaml:"strip_debug_info,omitempty" toml:"strip_debug_info,omitempty" mapstructure:"strip_debug_info,omitempty"`

	// Enabled restricts processing to the classes it accepts; nil accepts all.
	Enabled func(className string) bool `json:"-" yaml:"-" toml:"-" mapstructure:"-"`
}

func NewOptions() *Options {
	return &Options{
		Threads:            runtime.NumCPU(),
		OversubscribeDelay: pipeline.DefaultOversubscribeDelay,
		FailurePolicy:      pipeline.FailFast.String(),
		RenameClasses:      true,
		RenameMethods:      true,
		RenameFields:       true,
		Repackage:          string(rename.Keep),
		Dictionary:         string(rename.Alphabet),
	}
}

// Normalize fills in defaults and rejects values the job cannot run with.
func (o *Options) Normalize() error {
	if o.Threads <= 0 {
		o.Threads = runtime.NumCPU()
	}
	if o.OversubscribeDelay < 0 {
		return fmt.Errorf("negative oversubscribe delay %s", o.OversubscribeDelay)
	}
	if len(o.FailurePolicy) == 0 {
		o.FailurePolicy = pipeline.FailFast.String()
	}
	if _, err := pipeline.ParseFailurePolicy(o.FailurePolicy); err != nil {
		return err
	}
	if len(o.Repackage) == 0 {
		o.Repackage = string(rename.Keep)
	}
	switch rename.Repackage(o.Repackage) {
	case rename.Keep, rename.Flatten, rename.Random:
	default:
		return fmt.Errorf("unknown repackage mode %q", o.Repackage)
	}
	if len(o.Dictionary) == 0 {
		o.Dictionary = string(rename.Alphabet)
	}
	if err := rename.Dictionary(o.Dictionary).Validate(); err != nil {
		return err
	}
	o.MainClass = strings.ReplaceAll(strings.TrimSpace(o.MainClass), ".", "/")
	o.TargetPackage = strings.Trim(strings.ReplaceAll(o.TargetPackage, ".", "/"), "/")
	o.ExcludeClasses = splitRules(o.ExcludeClasses)
	o.ExcludeMethods = splitRules(o.ExcludeMethods)
	o.ExcludeFields = splitRules(o.ExcludeFields)
	for i, in := range o.Inputs {
		o.Inputs[i] = filepath.Clean(in)
	}
	for i, lib := range o.Libraries {
		o.Libraries[i] = filepath.Clean(lib)
	}
	return nil
}

// splitRules accepts both single patterns and whole text blocks.
func splitRules(in []string) []string {
	var out []string
	for _, s := range in {
		for _, line := range strings.Split(s, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				out = append(out, line)
			}
		}
	}
	return out
}

// functional option pattern ---------------------------------------------------

type Option func(*Options)

func WithInputs(paths ...string) Option    { return func(o *Options) { o.Inputs = append(o.Inputs, paths...) } }
func WithLibraries(paths ...string) Option { return func(o *Options) { o.Libraries = append(o.Libraries, paths...) } }
func WithOutput(p string) Option           { return func(o *Options) { o.Output = p } }
func WithMappingFile(p string) Option      { return func(o *Options) { o.MappingFile = p } }
func WithMainClass(name string) Option     { return func(o *Options) { o.MainClass = name } }
func WithThreads(n int) Option             { return func(o *Options) { o.Threads = n } }
func WithOversubscribeDelay(d time.Duration) Option {
	return func(o *Options) { o.OversubscribeDelay = d }
}
func WithBestEffort() Option {
	return func(o *Options) { o.FailurePolicy = pipeline.BestEffort.String() }
}
func WithAcceptMissing() Option { return func(o *Options) { o.AcceptMissing = true } }
func WithExcludeClasses(patterns ...string) Option {
	return func(o *Options) { o.ExcludeClasses = append(o.ExcludeClasses, patterns...) }
}
func WithExcludeMethods(patterns ...string) Option {
	return func(o *Options) { o.ExcludeMethods = append(o.ExcludeMethods, patterns...) }
}
func WithExcludeFields(patterns ...string) Option {
	return func(o *Options) { o.ExcludeFields = append(o.ExcludeFields, patterns...) }
}
func WithoutClassRenaming() Option  { return func(o *Options) { o.RenameClasses = false } }
func WithoutMethodRenaming() Option { return func(o *Options) { o.RenameMethods = false } }
func WithoutFieldRenaming() Option  { return func(o *Options) { o.RenameFields = false } }
func WithWidenAccess() Option       { return func(o *Options) { o.WidenAccess = true } }
func WithRepackage(mode string) Option {
	return func(o *Options) { o.Repackage = mode }
}
func WithTargetPackage(pkg string) Option  { return func(o *Options) { o.TargetPackage = pkg } }
func WithPackagePool(n int) Option         { return func(o *Options) { o.PackagePool = n } }
func WithDictionary(d string) Option       { return func(o *Options) { o.Dictionary = d } }
func WithSeed(seed uint64) Option          { return func(o *Options) { o.Seed = seed } }
func WithStripDebugInfo() Option           { return func(o *Options) { o.StripDebugInfo = true } }
func WithEnabled(fn func(string) bool) Option {
	return func(o *Options) { o.Enabled = fn }
}
