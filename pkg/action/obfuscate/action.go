package obfuscate

import (
	"context"
	"log/slog"

	"github.com/cmmoran/jvmobf/pkg/obfuscator"
)

// Generate runs one obfuscation job described by opts.
func Generate(ctx context.Context, opts *obfuscator.Options) (*obfuscator.Result, error) {
	ob, err := obfuscator.NewWithOpts(opts)
	if err != nil {
		return nil, err
	}
	res, err := ob.WithLogger(slog.Default()).Run(ctx)
	if res != nil && err != nil {
		slog.Default().With("error", err).Warn("obfuscation finished with per-class failures")
	}
	return res, err
}
