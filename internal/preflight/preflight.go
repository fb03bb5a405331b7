package preflight

import (
	"context"

	"golang.org/x/sync/errgroup"

	"postflow/internal/config"
	"postflow/internal/media"
	"postflow/internal/platform"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// AccountVerifier confirms platform credentials.
type AccountVerifier interface {
	Verify(ctx context.Context) (platform.Account, error)
}

// Dependencies carries the live clients checks exercise. Nil fields skip
// the matching check.
type Dependencies struct {
	Platform AccountVerifier
	Objects  media.ObjectStore
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config, deps Dependencies) []Result {
	if cfg == nil {
		return nil
	}

	checks := []func(context.Context) Result{
		func(context.Context) Result { return CheckDirectoryAccess("Data directory", cfg.Paths.DataDir) },
		func(context.Context) Result { return CheckDirectoryAccess("Log directory", cfg.Paths.LogDir) },
	}
	if cfg.Paths.MediaDir != "" {
		checks = append(checks, func(context.Context) Result {
			return CheckDirectoryAccess("Media directory", cfg.Paths.MediaDir)
		})
	}
	checks = append(checks, func(ctx context.Context) Result {
		return CheckPlatform(ctx, cfg, deps.Platform)
	})
	if cfg.Media.S3Enabled() && deps.Objects != nil {
		checks = append(checks, func(ctx context.Context) Result {
			return CheckObjectStore(ctx, cfg.Media.S3Bucket, deps.Objects)
		})
	}
	if cfg.Events.Enabled {
		checks = append(checks, func(ctx context.Context) Result {
			return CheckBrokers(ctx, cfg.Events.Brokers)
		})
	}

	results := make([]Result, len(checks))
	g, gctx := errgroup.WithContext(ctx)
	for i, check := range checks {
		g.Go(func() error {
			results[i] = check(gctx)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Failed filters results down to the checks that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
