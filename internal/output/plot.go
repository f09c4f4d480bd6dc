package output

import (
	"fmt"
	"math"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/chrissnell/sensorcal/internal/calibration"
	"github.com/chrissnell/sensorcal/internal/regression"
	"github.com/chrissnell/sensorcal/internal/timeseries"
)

// PlotPath returns where the training plot of a quantity goes.
func (s CSVStore) PlotPath(quantity string) string {
	return filepath.Join(s.Dir, s.Name, quantity+"-training.png")
}

// PlotTraining draws the held-out reference series and every candidate's
// predictions over time and saves the figure as PNG.
func PlotTraining(path string, res calibration.TaskResult) error {
	if len(res.Models) == 0 {
		return fmt.Errorf("%s: no trained models to plot", res.Task.Quantity)
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s: performance of various models, best model: %s",
		res.Task.Quantity, res.BestModel().Spec.Kind)
	p.X.Label.Text = "Time"
	p.X.Tick.Marker = plot.TimeTicks{Format: "01-02\n15:04"}
	p.Y.Label.Text = res.Task.Quantity
	p.Legend.Top = true
	p.Add(plotter.NewGrid())

	actual, err := xys(res.Models[0].Results, regression.ColActual)
	if err != nil {
		return err
	}
	lines := []interface{}{regression.ColActual, actual}
	for _, m := range res.Models {
		pred, err := xys(m.Results, regression.ColPredicted)
		if err != nil {
			return err
		}
		lines = append(lines, m.Spec.Kind.String()+" "+regression.ColPredicted, pred)
	}
	if err := plotutil.AddLines(p, lines...); err != nil {
		return fmt.Errorf("adding lines: %w", err)
	}

	if err := p.Save(14*vg.Inch, 8*vg.Inch, path); err != nil {
		return fmt.Errorf("saving plot: %w", err)
	}
	return nil
}

func xys(f *timeseries.Frame, column string) (plotter.XYs, error) {
	if f == nil {
		return nil, fmt.Errorf("no results frame")
	}
	values, err := f.Column(column)
	if err != nil {
		return nil, err
	}
	// plotter rejects NaN and Inf points
	out := make(plotter.XYs, 0, len(values))
	for i, t := range f.Index() {
		if math.IsNaN(values[i]) || math.IsInf(values[i], 0) {
			continue
		}
		out = append(out, plotter.XY{X: float64(t.Unix()), Y: values[i]})
	}
	return out, nil
}
