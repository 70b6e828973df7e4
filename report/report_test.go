package report

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"capybara/columnar"

	"github.com/stretchr/testify/require"
)

func floats(events ...[]float64) columnar.Array {
	return columnar.Array{Kind: columnar.Float, Events: events}
}

func testOptions(t *testing.T) Options {
	sources := map[string]map[string]columnar.Array{
		"runs/base/rec.root": {
			"Hits/Hits.energy":            floats([]float64{1, 2, 3}, []float64{4, 5}),
			"Hits/Hits.cellID":            {Kind: columnar.Int, Events: [][]float64{{1, 2}, {3}}},
			"MCParticles/MCParticles.PDG": {Kind: columnar.Int, Events: [][]float64{{11, -11}}},
			"Tracks#0/Tracks#0.index":     {Kind: columnar.Int, Events: [][]float64{{0, 1}}},
			"Names/Names.value":           {Kind: columnar.String},
			"Empty/Empty.x":               floats([]float64{}),
		},
		"runs/head/rec.root": {
			"Hits/Hits.energy":        floats([]float64{1, 2, 3}, []float64{4, 6}),
			"Hits/Hits.cellID":        {Kind: columnar.Int, Events: [][]float64{{1, 2}, {3}}},
			"Tracks#0/Tracks#0.index": {Kind: columnar.Int, Events: [][]float64{{0, 1}}},
			"Names/Names.value":       {Kind: columnar.String},
			"Empty/Empty.x":           floats([]float64{}),
		},
	}

	return Options{
		Files: []string{"runs/base/rec.root", "runs/head/rec.root"},
		Open: func(path string) (columnar.Source, error) {
			return columnar.NewMemorySource(sources[path]), nil
		},
		Dir: t.TempDir(),
	}
}

func TestGenerate(t *testing.T) {
	opts := testOptions(t)

	r, err := Generate(context.Background(), opts)
	require.NoError(t, err)

	require.Equal(t, []string{"base", "head"}, r.Labels)
	require.ElementsMatch(t, []string{"Hits", "MCParticles", "Tracks#0"}, keys(r.Collections))

	hits := r.Collections["Hits"]
	require.Len(t, hits.Figures, 2)
	require.Equal(t, "Hits/Hits.cellID", hits.Figures[0].Key)
	require.Equal(t, "Hits/Hits.energy", hits.Figures[1].Key)
	require.Contains(t, hits.Figures[0].SVG, "<svg")
	require.NotNil(t, hits.PValue)
	require.Greater(t, *hits.PValue, 0.0)

	// only in one file
	mc := r.Collections["MCParticles"]
	require.NotNil(t, mc.PValue)
	require.Equal(t, 0.0, *mc.PValue)

	require.Nil(t, r.Collections["Tracks#0"].PValue)
}

func TestGenerateNoFiles(t *testing.T) {
	opts := testOptions(t)
	opts.Files = nil

	_, err := Generate(context.Background(), opts)
	require.Error(t, err)
}

func TestOptions(t *testing.T) {
	p := func(v float64) *float64 { return &v }

	r := &Report{Collections: map[string]*Collection{
		"_Same":      {Name: "_Same"},
		"Alpha":      {Name: "Alpha"},
		"Close":      {Name: "Close", PValue: p(0.999)},
		"Broken":     {Name: "Broken", PValue: p(0)},
		"Hits#1":     {Name: "Hits#1", PValue: p(0.8)},
		"Borderline": {Name: "Borderline", PValue: p(0.96)},
	}}

	require.Equal(t, []Option{
		{},
		{Value: "Broken", Label: "Broken (****)"},
		{Value: "Hits__pound__1", Label: "Hits#1 (***)"},
		{Value: "Borderline", Label: "Borderline (**)"},
		{Value: "Close", Label: "Close (*)"},
		{Value: "Alpha", Label: "Alpha"},
		{Value: "_Same", Label: "_Same"},
	}, r.Options())
}

func TestBuild(t *testing.T) {
	opts := testOptions(t)
	opts.LiveReload = true

	_, err := Build(context.Background(), opts)
	require.NoError(t, err)

	index, err := os.ReadFile(filepath.Join(opts.Dir, IndexFile))
	require.NoError(t, err)
	require.Contains(t, string(index), "<title>ePIC capybara report</title>")
	require.Contains(t, string(index), `<option value="Tracks__pound__0">Tracks#0</option>`)
	require.Contains(t, string(index), `<option value="MCParticles">MCParticles (****)</option>`)
	require.Contains(t, string(index), "/livereload")

	var content collectionFile
	readGzipJSON(t, filepath.Join(opts.Dir, "Tracks__pound__0.json.gz"), &content)
	require.Equal(t, "Tracks#0", content.Collection)
	require.Empty(t, content.Marker)
	require.Len(t, content.Figures, 1)
	require.Equal(t, "Tracks#0/Tracks#0.index", content.Figures[0].Key)
	require.Equal(t, Option{}, content.Options[0])

	_, err = os.Stat(filepath.Join(opts.Dir, "Names.json.gz"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestBuildWithoutLiveReload(t *testing.T) {
	opts := testOptions(t)

	_, err := Build(context.Background(), opts)
	require.NoError(t, err)

	index, err := os.ReadFile(filepath.Join(opts.Dir, IndexFile))
	require.NoError(t, err)
	require.NotContains(t, string(index), "/livereload")
}

func TestFileName(t *testing.T) {
	require.Equal(t, "Tracks__pound__0", FileName("Tracks#0"))
	require.Equal(t, "Hits", FileName("Hits"))
}

func TestSplitKey(t *testing.T) {
	branch, leaf := splitKey("Hits/Hits.energy")
	require.Equal(t, "Hits", branch)
	require.Equal(t, "Hits.energy", leaf)

	branch, leaf = splitKey("n")
	require.Equal(t, "n", branch)
	require.Equal(t, "n", leaf)
}

func keys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func readGzipJSON(t *testing.T, path string, v any) {
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	zr, err := gzip.NewReader(f)
	require.NoError(t, err)
	require.NoError(t, json.NewDecoder(zr).Decode(v))
}
