// Package report turns a set of event files into a browsable comparison site:
// one histogram per key, grouped by collection, with a KS test between
// consecutive files.
package report

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"capybara/columnar"
	"capybara/compare"
	"capybara/figure"
	"capybara/logging"
	"capybara/tracing"
	"capybara/util"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type Options struct {
	Files  []string
	Filter columnar.Filter
	Open   columnar.Opener
	Dir    string

	// LiveReload makes the index page reconnect to Serve's /livereload
	// endpoint and reload after every rebuild.
	LiveReload bool
}

type Figure struct {
	Key string `json:"key"`
	SVG string `json:"svg"`
}

// Collection groups the figures of one branch. PValue is the smallest KS
// p-value over its keys, and is nil when no file differed from its
// predecessor.
type Collection struct {
	Name    string   `json:"name"`
	Figures []Figure `json:"figures"`
	PValue  *float64 `json:"p_value,omitempty"`
}

func (c *Collection) observe(p float64) {
	if c.PValue == nil || p < *c.PValue {
		c.PValue = &p
	}
}

type Report struct {
	Files       []string
	Labels      []string
	Collections map[string]*Collection
	LiveReload  bool
}

// Build generates the report and writes the site into opts.Dir.
func Build(ctx context.Context, opts Options) (*Report, error) {
	r, err := Generate(ctx, opts)
	if err != nil {
		return nil, err
	}

	if err := r.Write(ctx, opts.Dir); err != nil {
		return nil, err
	}

	return r, nil
}

// Generate reads all files and draws the comparison figures.
func Generate(ctx context.Context, opts Options) (*Report, error) {
	ctx, span := tracing.Start(ctx, "generate_report", attribute.StringSlice("files", opts.Files))
	defer span.End()

	log := logging.FromContext(ctx)

	labels, err := util.ShortLabels(opts.Files)
	if err != nil {
		return nil, tracing.Error(span, fmt.Errorf("at least one file is required: %w", err))
	}

	ds, err := columnar.Load(ctx, opts.Files, opts.Filter, opts.Open)
	if err != nil {
		return nil, tracing.Error(span, err)
	}

	r := &Report{
		Files:       opts.Files,
		Labels:      labels,
		Collections: map[string]*Collection{},
		LiveReload:  opts.LiveReload,
	}

	for _, key := range slices.Sorted(maps.Keys(ds.Arrays)) {
		byFile := ds.Arrays[key]

		if !plottable(byFile) {
			log.Info("non-numeric value detected, skipping", zap.String("key", key))
			continue
		}

		binning, ok := compare.NewBinning(slices.Collect(maps.Values(byFile)))
		if !ok {
			log.Debug("no finite values, skipping", zap.String("key", key))
			continue
		}

		branch, leaf := splitKey(key)

		coll, found := r.Collections[branch]
		if !found {
			coll = &Collection{Name: branch}
			r.Collections[branch] = coll
		}

		if len(byFile) != len(opts.Files) {
			// not every file has the key
			coll.observe(0)
		}

		hist := figure.Histogram{
			Title:  key,
			XLabel: leaf,
			Edges:  binning.Edges(),
			Int:    binning.Int,
		}

		var prev *columnar.Array
		for i := range min(len(opts.Files), len(figure.Styles)) {
			arr, found := byFile[i]
			if !found {
				continue
			}

			var pvalue *float64
			if prev != nil && compare.Differs(*prev, arr) {
				p := compare.KSTest(arr.Flatten(), prev.Flatten())
				pvalue = &p
				coll.observe(p)
				log.Info("difference detected", zap.String("key", key), zap.String("file", labels[i]), zap.Float64("p", p))
			}

			hist.Series = append(hist.Series, figure.Series{
				Label:  labels[i],
				Counts: compare.Histogram(arr.Flatten(), binning),
				PValue: pvalue,
			})
			prev = &arr
		}

		svg, warnings, err := figure.Render(hist)
		if err != nil {
			log.Warn("could not draw figure", zap.String("key", key), zap.Error(err))
			continue
		}
		for _, w := range warnings {
			log.Warn(string(w))
		}

		coll.Figures = append(coll.Figures, Figure{Key: key, SVG: string(svg)})
	}

	span.SetAttributes(attribute.Int("collections", len(r.Collections)))
	return r, nil
}

func plottable(byFile map[int]columnar.Array) bool {
	for _, a := range byFile {
		if a.Kind == columnar.String || a.Kind == columnar.Other {
			return false
		}
	}
	return true
}

// splitKey splits branch/leaf keys; a key without a slash is both.
func splitKey(key string) (string, string) {
	if branch, leaf, found := strings.Cut(key, "/"); found {
		return branch, leaf
	}
	return key, key
}
