// Package figure draws comparison histograms as SVG.
package figure

import (
	"bytes"
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

const (
	Width  = 400
	Height = 300
)

type Style struct {
	Color  color.RGBA
	Width  vg.Length
	Dashes []vg.Length
	Filled bool
}

// Styles are used in file order; files past the last style are not drawn.
var Styles = []Style{
	{Color: color.RGBA{R: 0x00, G: 0x80, B: 0x00, A: 0xff}, Width: vg.Points(1.5), Filled: true},
	{Color: color.RGBA{R: 0xff, G: 0x00, B: 0x00, A: 0xff}, Width: vg.Points(3), Dashes: []vg.Length{vg.Points(6), vg.Points(4)}},
	{Color: color.RGBA{R: 0x00, G: 0x00, B: 0xff, A: 0xff}, Width: vg.Points(2), Dashes: []vg.Length{vg.Points(1), vg.Points(3)}},
}

// Series is one file's histogram.
type Series struct {
	Label  string
	Counts []float64
	PValue *float64
}

type Histogram struct {
	Title  string
	XLabel string
	Edges  []float64
	Int    bool
	Series []Series
}

// Warning describes a problem that left part of a figure at its defaults.
type Warning string

// Render draws h and returns the SVG document with any warnings about axis
// ranges that could not be applied.
func Render(h Histogram) ([]byte, []Warning, error) {
	p := plot.New()
	p.Title.Text = h.Title
	p.X.Label.Text = h.XLabel
	p.Y.Label.Text = "Entries"
	p.Legend.Top = true

	if !h.Int {
		p.X.Tick.Marker = scientificTicks{}
	}

	yMax := 0.0
	for i, s := range h.Series {
		if i >= len(Styles) {
			break
		}
		style := Styles[i]

		band, line, top, err := series(h.Edges, s.Counts, style)
		if err != nil {
			return nil, nil, err
		}

		p.Add(band, line)
		p.Legend.Add(legendLabel(s), line)
		yMax = math.Max(yMax, top)
	}

	var warnings []Warning

	if lo, hi, ok := xBounds(h.Edges); ok {
		p.X.Min, p.X.Max = lo, hi
	} else {
		warnings = append(warnings, Warning(fmt.Sprintf("overflow while calculating x bounds for %q", h.Title)))
	}

	lo, hi, ok := yBounds(yMax)
	switch {
	case !ok:
		warnings = append(warnings, Warning(fmt.Sprintf("overflow while calculating y bounds for %q", h.Title)))
	case lo < hi:
		p.Y.Min, p.Y.Max = lo, hi
	}

	wt, err := p.WriterTo(Width, Height, "svg")
	if err != nil {
		return nil, nil, err
	}

	buf := &bytes.Buffer{}
	if _, err := wt.WriteTo(buf); err != nil {
		return nil, nil, err
	}

	return buf.Bytes(), warnings, nil
}

// xBounds pads the binned range by 5% on each side.
func xBounds(edges []float64) (float64, float64, bool) {
	if len(edges) < 2 {
		return 0, 0, false
	}

	xMin := edges[0]
	xRange := edges[len(edges)-1] - xMin
	lo, hi := xMin-0.05*xRange, xMin+1.05*xRange

	return lo, hi, isFinite(lo) && isFinite(hi) && lo < hi
}

func yBounds(yMax float64) (float64, float64, bool) {
	lo, hi := -0.05*yMax, 1.05*yMax
	return lo, hi, isFinite(lo) && isFinite(hi)
}

func legendLabel(s Series) string {
	if s.PValue == nil {
		return s.Label
	}
	return fmt.Sprintf("%s %.0f%%CL KS", s.Label, 100**s.PValue)
}

// series builds the step line and the ±sqrt(N) band of one histogram, and
// returns the top of the band.
func series(edges, counts []float64, style Style) (*plotter.Polygon, *plotter.Line, float64, error) {
	// repeat the last count so the step runs to the last edge
	steps := make(plotter.XYs, len(edges))
	for i, x := range edges {
		y := 0.0
		switch {
		case i < len(counts):
			y = counts[i]
		case len(counts) > 0:
			y = counts[len(counts)-1]
		}
		steps[i] = plotter.XY{X: x, Y: y}
	}

	line, err := plotter.NewLine(steps)
	if err != nil {
		return nil, nil, 0, err
	}
	line.StepStyle = plotter.PostStep
	line.LineStyle = draw.LineStyle{
		Color:  style.Color,
		Width:  style.Width,
		Dashes: style.Dashes,
	}

	upper := make(plotter.XYs, 0, 2*len(counts))
	lower := make(plotter.XYs, 0, 2*len(counts))
	top := 0.0
	for i, c := range counts {
		e := math.Sqrt(c)
		upper = append(upper, plotter.XY{X: edges[i], Y: c + e}, plotter.XY{X: edges[i+1], Y: c + e})
		lower = append(lower, plotter.XY{X: edges[i], Y: c - e}, plotter.XY{X: edges[i+1], Y: c - e})
		top = math.Max(top, c+e)
	}

	outline := upper
	for i := len(lower) - 1; i >= 0; i-- {
		outline = append(outline, lower[i])
	}

	band, err := plotter.NewPolygon(outline)
	if err != nil {
		return nil, nil, 0, err
	}
	band.LineStyle.Width = 0

	fill := color.NRGBA{R: style.Color.R, G: style.Color.G, B: style.Color.B, A: 0x40}
	if !style.Filled {
		fill.A = 0x18
	}
	band.Color = fill

	return band, line, top, nil
}

// scientificTicks labels the default ticks in %.1e notation.
type scientificTicks struct{}

func (scientificTicks) Ticks(min, max float64) []plot.Tick {
	ticks := plot.DefaultTicks{}.Ticks(min, max)
	for i, t := range ticks {
		if t.Label != "" {
			ticks[i].Label = fmt.Sprintf("%.1e", t.Value)
		}
	}
	return ticks
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
