package session

import (
	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// PlotHistory charts the mean training error of every pass against the
// images trained so far. The format follows the path extension (svg, png,
// pdf...).
func PlotHistory(path string, history []Pass) error {
	if len(history) == 0 {
		return errors.New("no training passes to plot")
	}

	p := plot.New()
	p.Title.Text = "Training error"
	p.X.Label.Text = "Images trained"
	p.Y.Label.Text = "Mean squared error"
	p.Legend.Top = true
	p.Add(plotter.NewGrid())

	pts := make(plotter.XYs, len(history))
	for i, h := range history {
		pts[i].X, pts[i].Y = float64(h.Trained), h.MeanError
	}
	l, err := plotter.NewLine(pts)
	if err != nil {
		return errors.Wrap(err, "building error line")
	}
	l.Width = vg.Points(2)
	l.Color = plotutil.Color(0)
	p.Add(l)
	p.Legend.Add("train", l)

	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "saving plot %s", path)
	}
	return nil
}
