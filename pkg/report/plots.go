package report

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"slices"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/easterhanu/practicalmachinelearning/pkg/selection"
)

var errNoPoints = errors.New("report: nothing to plot")

// CVPlot draws the cross-validated error against the number of variables and
// returns it as PNG. The x axis is logarithmic when the counts span a range.
func CVPlot(rows []CVRow) ([]byte, error) {
	if len(rows) == 0 {
		return nil, errNoPoints
	}
	p := plot.New()
	p.Title.Text = "Cross-validated error by number of variables"
	p.X.Label.Text = "Number of variables"
	p.Y.Label.Text = "CV error rate"

	pts := make(plotter.XYs, len(rows))
	lo, hi := rows[0].NVar, rows[0].NVar
	for i, r := range rows {
		pts[i] = plotter.XY{X: float64(r.NVar), Y: r.Error}
		lo, hi = min(lo, r.NVar), max(hi, r.NVar)
	}
	if lo > 0 && hi > lo {
		p.X.Scale = plot.LogScale{}
		p.X.Tick.Marker = plot.LogTicks{Prec: -1}
	}

	l, s, err := plotter.NewLinePoints(pts)
	if err != nil {
		return nil, fmt.Errorf("report: cv plot: %w", err)
	}
	l.Color = color.RGBA{B: 255, A: 255, R: 50, G: 50}
	s.Shape = draw.CircleGlyph{}
	s.Color = l.Color
	p.Add(l, s, plotter.NewGrid())

	return renderPNG(p, 6*vg.Inch, 4*vg.Inch)
}

// ImportancePlot draws a dot chart of the top n features, most important on top.
func ImportancePlot(ranked []selection.Ranked, n int) ([]byte, error) {
	n = min(n, len(ranked))
	if n < 1 {
		return nil, errNoPoints
	}
	top := slices.Clone(ranked[:n])
	slices.Reverse(top)

	p := plot.New()
	p.Title.Text = "Variable importance"
	p.X.Label.Text = "Mean decrease in accuracy"

	names := make([]string, n)
	pts := make(plotter.XYs, n)
	for i, r := range top {
		names[i] = r.Name
		pts[i] = plotter.XY{X: r.Importance, Y: float64(i)}
	}
	s, err := plotter.NewScatter(pts)
	if err != nil {
		return nil, fmt.Errorf("report: importance plot: %w", err)
	}
	s.Color = color.RGBA{R: 200, A: 255}
	s.Shape = draw.CircleGlyph{}
	s.Radius = vg.Points(3)
	p.Add(s, plotter.NewGrid())
	p.NominalY(names...)

	height := vg.Length(n)*0.25*vg.Inch + 1.5*vg.Inch
	return renderPNG(p, 6*vg.Inch, height)
}

func renderPNG(p *plot.Plot, w, h vg.Length) ([]byte, error) {
	wt, err := p.WriterTo(w, h, "png")
	if err != nil {
		return nil, fmt.Errorf("report: render png: %w", err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("report: render png: %w", err)
	}
	return buf.Bytes(), nil
}
