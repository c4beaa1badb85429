package analysis

import (
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// MaxSeries is the number of runs drawn by PlotConvergence.
const MaxSeries = 10

// gapFloor replaces non-positive gaps, which a log axis cannot show.
const gapFloor = 1e-16

var (
	basePalette = []color.Color{
		rgb(0x1E, 0x90, 0xFF),
		rgb(0x2F, 0x4F, 0x4F),
		rgb(0x99, 0x32, 0xCC),
		rgb(0x8B, 0x45, 0x13),
		rgb(0x22, 0x8B, 0x22),
		rgb(0xD2, 0x69, 0x1E),
		rgb(0x48, 0x3D, 0x8B),
		rgb(0xCD, 0x5C, 0x5C),
	}
	highlightPalette = []color.Color{
		rgb(0xFF, 0xA5, 0x00),
		rgb(0xFF, 0x00, 0x00),
	}
)

func rgb(r, g, b uint8) color.Color {
	return color.RGBA{R: r, G: g, B: b, A: 0xFF}
}

// seriesColors returns n colours: muted ones first and the two highlight
// colours for the last two series.
func seriesColors(n int) []color.Color {
	if n <= len(highlightPalette) {
		return highlightPalette[:n]
	}
	nBase := min(n-len(highlightPalette), len(basePalette))
	colors := append([]color.Color{}, basePalette[:nBase]...)
	return append(colors, highlightPalette[:n-nBase]...)
}

// PlotConvergence draws f(x_k) - f* on a log axis against the iteration
// number for the first MaxSeries runs and saves it to path. The image format
// follows the file extension (png, svg, pdf, ...).
func (a *Analyzer) PlotConvergence(path string) error {
	a.mu.RLock()
	entries := append([]entry(nil), a.entries...)
	a.mu.RUnlock()
	if len(entries) == 0 {
		return fmt.Errorf("plot: no results")
	}
	if len(entries) > MaxSeries {
		entries = entries[:MaxSeries]
	}

	p := plot.New()
	p.X.Label.Text = "Iteration"
	p.Y.Label.Text = "f(x) - f*"
	p.Y.Scale = plot.LogScale{}
	p.Y.Tick.Marker = plot.LogTicks{Prec: -1}
	p.Legend.Top = true
	p.Add(plotter.NewGrid())

	colors := seriesColors(len(entries))
	drawn := 0
	for i, e := range entries {
		if e.result == nil || e.result.Trace == nil {
			continue
		}
		pts := make(plotter.XYs, 0, e.result.Trace.Len())
		for k, l := range e.result.Trace.Losses {
			g := l - a.fStar
			if math.IsNaN(g) || math.IsInf(g, 0) {
				continue
			}
			pts = append(pts, plotter.XY{X: float64(k + 1), Y: math.Max(g, gapFloor)})
		}
		if len(pts) == 0 {
			continue
		}

		line, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("plot %s: %w", e.name, err)
		}
		line.Color = colors[i]
		line.Width = vg.Points(1.5)
		p.Add(line)
		p.Legend.Add(e.name, line)
		drawn++
	}
	if drawn == 0 {
		return fmt.Errorf("plot: no finite gaps to draw")
	}

	return p.Save(10*vg.Inch, 6*vg.Inch, path)
}
