package job

import (
	"context"
	"fmt"
	"os"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"

	"github.com/rillworks/dataswale"
	"github.com/rillworks/dataswale/delta"
	"github.com/rillworks/dataswale/object"
)

// geoJSONFile is an inlet: it submits a GeoJSON file as a delta batch and
// applies it to staging.
type geoJSONFile struct {
	path     string
	layer    string
	override delta.Type
}

func newGeoJSONFile(cfg map[string]any) (Runner, error) {
	path, err := stringOption(cfg, "path", true)
	if err != nil {
		return nil, err
	}
	layer, err := stringOption(cfg, "layer", true)
	if err != nil {
		return nil, err
	}
	typeValue, err := stringOption(cfg, "annotation_type", false)
	if err != nil {
		return nil, err
	}
	var override delta.Type
	if typeValue != "" {
		override, err = delta.ParseType(typeValue)
		if err != nil {
			return nil, err
		}
	}
	return &geoJSONFile{path: path, layer: layer, override: override}, nil
}

func (j *geoJSONFile) Run(ctx context.Context, swale *dataswale.Swale) error {
	payload, err := os.ReadFile(j.path)
	if err != nil {
		return err
	}
	if _, err := swale.Submit(ctx, j.layer, payload, j.override, ""); err != nil {
		return err
	}
	report, err := swale.ApplyPending(ctx, j.layer)
	if err != nil {
		return err
	}
	if len(report.Errors) > 0 {
		return fmt.Errorf("%d records failed to apply", len(report.Errors))
	}
	return nil
}

// filter is an eddy: it evaluates a predicate expression against each
// staged record's properties. Without a target it removes non-matching
// records in place; with a target it writes the matching records into the
// target layer's staging area, leaving the source untouched.
type filter struct {
	layer     string
	target    string
	predicate *exprvm.Program
}

func newFilter(cfg map[string]any) (Runner, error) {
	layer, err := stringOption(cfg, "layer", true)
	if err != nil {
		return nil, err
	}
	target, err := stringOption(cfg, "target", false)
	if err != nil {
		return nil, err
	}
	predicate, err := stringOption(cfg, "predicate", true)
	if err != nil {
		return nil, err
	}
	program, err := exprlang.Compile(predicate)
	if err != nil {
		return nil, fmt.Errorf("invalid predicate: %w", err)
	}
	return &filter{layer: layer, target: target, predicate: program}, nil
}

func (j *filter) Run(ctx context.Context, swale *dataswale.Swale) error {
	source, err := swale.Versions().Staging(ctx, j.layer)
	if err != nil {
		return err
	}
	target := source
	if j.target != "" && j.target != j.layer {
		target, err = swale.Versions().Staging(ctx, j.target)
		if err != nil {
			return err
		}
	}

	var keep, drop []string
	err = source.ForEach(ctx, nil, func(id string, record object.Record) error {
		env := record.Properties
		if env == nil {
			env = map[string]any{}
		}
		result, err := exprlang.Run(j.predicate, env)
		if err != nil {
			return fmt.Errorf("record %q: %w", id, err)
		}
		ok, isBool := result.(bool)
		if !isBool {
			return fmt.Errorf("record %q: predicate returned %T, want bool", id, result)
		}
		if ok {
			keep = append(keep, id)
		} else {
			drop = append(drop, id)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if target == source {
		for _, id := range drop {
			if err := source.Delete(id); err != nil {
				return err
			}
		}
		return swale.Versions().SaveStaging(ctx, source)
	}
	for _, id := range keep {
		record, err := source.Get(ctx, id)
		if err != nil {
			return err
		}
		if err := target.Put(ctx, id, record); err != nil {
			return err
		}
	}
	return swale.Versions().SaveStaging(ctx, target)
}

// geoJSONExport is an outlet: it writes a layer as a GeoJSON file.
type geoJSONExport struct {
	layer   string
	path    string
	version string
}

func newGeoJSONExport(cfg map[string]any) (Runner, error) {
	layer, err := stringOption(cfg, "layer", true)
	if err != nil {
		return nil, err
	}
	path, err := stringOption(cfg, "path", true)
	if err != nil {
		return nil, err
	}
	version, err := stringOption(cfg, "version", false)
	if err != nil {
		return nil, err
	}
	return &geoJSONExport{layer: layer, path: path, version: version}, nil
}

func (j *geoJSONExport) Run(ctx context.Context, swale *dataswale.Swale) error {
	data, err := swale.ExportLayer(ctx, j.layer, j.version, nil)
	if err != nil {
		return err
	}
	return os.WriteFile(j.path, data, 0o644)
}
