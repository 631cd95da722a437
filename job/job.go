// Package job runs the configured inlets, eddies, and outlets: jobs that
// feed data into the queue, reshape staged layers, or export them.
package job

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rillworks/dataswale"
	"github.com/rillworks/dataswale/config"
)

// Runner is one executable job.
type Runner interface {
	Run(ctx context.Context, swale *dataswale.Swale) error
}

type factory func(cfg map[string]any) (Runner, error)

// The registry is closed: jobs are selected by fetch_type from the
// built-in set.
var registry = map[string]factory{
	"geojson_file":   newGeoJSONFile,
	"filter":         newFilter,
	"geojson_export": newGeoJSONExport,
}

// New builds the runner for a configured job.
func New(job config.Job) (Runner, error) {
	factory, ok := registry[job.FetchType]
	if !ok {
		return nil, fmt.Errorf("unknown fetch type %q", job.FetchType)
	}
	runner, err := factory(job.Config)
	if err != nil {
		return nil, fmt.Errorf("job %q: %w", job.Name, err)
	}
	return runner, nil
}

// Run executes the named job from the swale configuration.
func Run(ctx context.Context, swale *dataswale.Swale, name string, log *slog.Logger) error {
	if log == nil {
		log = slog.Default()
	}
	for _, job := range swale.Config().Jobs {
		if job.Name != name {
			continue
		}
		runner, err := New(job)
		if err != nil {
			return err
		}
		log.Info("running job", "job", name, "fetch_type", job.FetchType)
		return runner.Run(ctx, swale)
	}
	return fmt.Errorf("unknown job %q", name)
}

func stringOption(cfg map[string]any, key string, required bool) (string, error) {
	value, ok := cfg[key]
	if !ok {
		if required {
			return "", fmt.Errorf("missing %q option", key)
		}
		return "", nil
	}
	s, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("option %q must be a string", key)
	}
	return s, nil
}
