package report

import (
	"bytes"
	"cmp"
	"compress/gzip"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"capybara/compare"
	"capybara/logging"
	"capybara/tracing"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	Title     = "ePIC capybara report"
	IndexFile = "index.html"
)

//go:embed index.html.tmpl
var indexSource string

var indexTemplate = template.Must(template.New(IndexFile).Parse(indexSource))

// Option is one entry of the collection dropdown.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

type page struct {
	Title      string
	Labels     []string
	Options    []Option
	LiveReload bool
}

type collectionFile struct {
	Collection string   `json:"collection"`
	Marker     string   `json:"marker,omitempty"`
	Options    []Option `json:"options"`
	Figures    []Figure `json:"figures"`
}

// FileName is the base name of the gzipped json holding a collection.
func FileName(collection string) string {
	return strings.ReplaceAll(collection, "#", "__pound__")
}

// Marker is the significance marker shown next to a collection name, empty
// for collections without differences.
func (c *Collection) Marker() string {
	if c.PValue == nil {
		return ""
	}
	return " (" + compare.Marker(*c.PValue) + ")"
}

func (c *Collection) sortKey() string {
	key := strings.TrimLeft(c.Name, "_")
	if c.PValue != nil {
		key = " " + compare.Bucket(*c.PValue) + key
	}
	return key
}

// Options lists the collections with the most significant differences
// first, preceded by an empty entry.
func (r *Report) Options() []Option {
	colls := make([]*Collection, 0, len(r.Collections))
	for _, c := range r.Collections {
		colls = append(colls, c)
	}
	slices.SortFunc(colls, func(a, b *Collection) int {
		return cmp.Or(cmp.Compare(a.sortKey(), b.sortKey()), cmp.Compare(a.Name, b.Name))
	})

	options := []Option{{}}
	for _, c := range colls {
		options = append(options, Option{Value: FileName(c.Name), Label: c.Name + c.Marker()})
	}
	return options
}

// Write stores one gzipped json file per collection and the index page in dir.
func (r *Report) Write(ctx context.Context, dir string) error {
	ctx, span := tracing.Start(ctx, "write_report", attribute.String("dir", dir))
	defer span.End()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return tracing.Error(span, err)
	}

	options := r.Options()

	for _, c := range r.Collections {
		content := collectionFile{
			Collection: c.Name,
			Marker:     c.Marker(),
			Options:    options,
			Figures:    c.Figures,
		}

		path := filepath.Join(dir, FileName(c.Name)+".json.gz")
		if err := writeGzipJSON(path, content); err != nil {
			return tracing.Errorf(span, "writing collection %s: %w", c.Name, err)
		}
	}

	if err := writeIndex(filepath.Join(dir, IndexFile), page{
		Title:      Title,
		Labels:     r.Labels,
		Options:    options,
		LiveReload: r.LiveReload,
	}); err != nil {
		return tracing.Error(span, err)
	}

	logging.FromContext(ctx).Info("report written", zap.String("dir", dir), zap.Int("collections", len(r.Collections)))
	return nil
}

func writeGzipJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	zw := gzip.NewWriter(f)
	if err := json.NewEncoder(zw).Encode(v); err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return err
	}

	return f.Close()
}

func writeIndex(path string, p page) error {
	var buf bytes.Buffer
	if err := indexTemplate.Execute(&buf, p); err != nil {
		return fmt.Errorf("rendering %s: %w", IndexFile, err)
	}

	return os.WriteFile(path, buf.Bytes(), 0o644)
}
