package jar

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/cmmoran/jvmobf/internal/registry"
)

// Loader registers the classes of input archives.
type Loader struct {
	Registry *registry.Registry
	Log      *slog.Logger
}

func NewLoader(reg *registry.Registry, l *slog.Logger) *Loader {
	if l == nil {
		l = slog.Default()
	}
	return &Loader{Registry: reg, Log: l}
}

// Application opens every input and registers its classes as application
// classes. The returned resources are carried to the output unchanged,
// except for the manifest.
func (ld *Loader) Application(ctx context.Context, paths ...string) ([]Entry, error) {
	var resources []Entry
	for _, p := range paths {
		a, err := Open(p)
		if err != nil {
			return nil, err
		}
		if err := ld.register(ctx, a, false); err != nil {
			return nil, err
		}
		resources = append(resources, a.Resources...)
		ld.Log.With("input", p, "classes", len(a.Classes), "resources", len(a.Resources)).Info("loaded application input")
	}
	return resources, nil
}

// Libraries registers the classes of every path as read-only library classes.
// Archives are parsed concurrently.
func (ld *Loader) Libraries(ctx context.Context, paths ...string) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for _, p := range paths {
		g.Go(func() error {
			a, err := Open(p)
			if err != nil {
				return err
			}
			if err := ld.register(ctx, a, true); err != nil {
				return err
			}
			ld.Log.With("library", p, "classes", len(a.Classes)).Debug("loaded library")
			return nil
		})
	}
	return g.Wait()
}

// register parses and adds every class of a. A library class that fails to
// parse is skipped with a warning; an application class that fails aborts.
func (ld *Loader) register(ctx context.Context, a *Archive, library bool) error {
	for _, e := range a.Classes {
		if err := ctx.Err(); err != nil {
			return err
		}
		d, err := registry.Parse(e.Data, library)
		if err != nil {
			if library {
				ld.Log.With("library", a.Path, "entry", e.Name, "error", err).Warn("skipping unreadable library class")
				continue
			}
			return fmt.Errorf("%s!%s: %w", a.Path, e.Name, err)
		}
		if err := ld.Registry.Add(d); err != nil {
			if library {
				continue
			}
			return fmt.Errorf("%s!%s: %w", a.Path, e.Name, err)
		}
	}
	return nil
}
