// Package plotting draws selection diagnostics as image files with gonum/plot.
// The output format follows the file extension (.png, .svg, .pdf).
package plotting

import (
	"image/color"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/specsel/benchmark"
	"github.com/YuminosukeSato/specsel/core/model"
	"github.com/YuminosukeSato/specsel/pkg/errors"
	"github.com/YuminosukeSato/specsel/sklearn/feature_selection"
)

const (
	width  = 10 * vg.Inch
	height = 5 * vg.Inch
)

var (
	scoreColor    = color.RGBA{R: 120, G: 120, B: 120, A: 255}
	selectedColor = color.RGBA{R: 200, G: 30, B: 30, A: 220}
)

// ScoreProfile plots the per-wavelength scores of a selection result and
// marks the retained wavelengths.
func ScoreProfile(result *model.SelectionResult, path string) error {
	if result == nil || len(result.Scores) == 0 {
		return errors.Wrap(errors.ErrEmptyData, "score profile")
	}
	p := plot.New()
	p.Title.Text = result.Method + " scores"
	p.X.Label.Text = "wavelength index"
	p.Y.Label.Text = "score"

	all := make(plotter.XYs, len(result.Scores))
	for j, s := range result.Scores {
		all[j] = plotter.XY{X: float64(j), Y: s}
	}
	line, err := plotter.NewLine(all)
	if err != nil {
		return err
	}
	line.Color = scoreColor
	line.Width = vg.Points(1)
	p.Add(line)
	p.Legend.Add("score", line)

	kept := make(plotter.XYs, 0, len(result.Indices))
	for _, j := range result.Indices {
		kept = append(kept, plotter.XY{X: float64(j), Y: result.Scores[j]})
	}
	if len(kept) > 0 {
		sc, err := plotter.NewScatter(kept)
		if err != nil {
			return err
		}
		sc.GlyphStyle.Color = selectedColor
		sc.GlyphStyle.Radius = vg.Points(2.5)
		p.Add(sc)
		p.Legend.Add("retained", sc)
	}
	p.Add(plotter.NewGrid())
	return save(p, path)
}

// CARSHistory plots the RMSECV and the subset size of every CARS iteration
// into two files: path and path with "_size" before the extension. The
// selected iteration is marked.
func CARSHistory(history []feature_selection.CARSStep, bestIteration int, path string) error {
	if len(history) == 0 {
		return errors.Wrap(errors.ErrEmptyData, "CARS history")
	}
	rmse := make(plotter.XYs, len(history))
	size := make(plotter.XYs, len(history))
	var best plotter.XYs
	for i, step := range history {
		rmse[i] = plotter.XY{X: float64(step.Iteration), Y: step.RMSECV}
		size[i] = plotter.XY{X: float64(step.Iteration), Y: float64(len(step.Subset))}
		if step.Iteration == bestIteration {
			best = plotter.XYs{rmse[i]}
		}
	}

	p := plot.New()
	p.Title.Text = "CARS"
	p.X.Label.Text = "iteration"
	p.Y.Label.Text = "RMSECV"
	if err := plotutil.AddLinePoints(p, "RMSECV", rmse); err != nil {
		return err
	}
	if best != nil {
		sc, err := plotter.NewScatter(best)
		if err != nil {
			return err
		}
		sc.GlyphStyle.Color = selectedColor
		sc.GlyphStyle.Radius = vg.Points(4)
		p.Add(sc)
		p.Legend.Add("selected", sc)
	}
	p.Add(plotter.NewGrid())
	if err := save(p, path); err != nil {
		return err
	}

	ps := plot.New()
	ps.Title.Text = "CARS subset size"
	ps.X.Label.Text = "iteration"
	ps.Y.Label.Text = "wavelengths"
	if err := plotutil.AddLinePoints(ps, "size", size); err != nil {
		return err
	}
	ps.Add(plotter.NewGrid())
	ext := filepath.Ext(path)
	return save(ps, path[:len(path)-len(ext)]+"_size"+ext)
}

// SelectionProbability plots, per method, how often each wavelength was
// selected across the benchmark runs.
func SelectionProbability(report *benchmark.Report, path string) error {
	if report == nil || len(report.Methods) == 0 {
		return errors.Wrap(errors.ErrEmptyData, "selection probability")
	}
	p := plot.New()
	p.Title.Text = "Selection probability"
	p.X.Label.Text = "wavelength index"
	p.Y.Label.Text = "probability"
	p.Y.Min, p.Y.Max = 0, 1

	for i, method := range report.Methods {
		prob := report.SelectionProbability(method)
		xys := make(plotter.XYs, len(prob))
		for j, v := range prob {
			xys[j] = plotter.XY{X: float64(j), Y: v}
		}
		line, err := plotter.NewLine(xys)
		if err != nil {
			return err
		}
		line.Color = plotutil.Color(i)
		line.Width = vg.Points(1.2)
		p.Add(line)
		p.Legend.Add(method, line)
	}
	p.Legend.Top = true
	p.Add(plotter.NewGrid())
	return save(p, path)
}

// MetricBoxes draws one box per method of a regression metric over the runs.
func MetricBoxes(report *benchmark.Report, metric, path string) error {
	if report == nil || len(report.Methods) == 0 {
		return errors.Wrap(errors.ErrEmptyData, "metric boxes")
	}
	p := plot.New()
	p.Title.Text = metric
	p.Y.Label.Text = metric

	for i, method := range report.Methods {
		samples := report.MetricSamples(method, metric)
		if len(samples) == 0 {
			return errors.NewInvalidParameterError("metric", "not recorded for "+method, metric)
		}
		box, err := plotter.NewBoxPlot(vg.Points(20), float64(i), plotter.Values(samples))
		if err != nil {
			return err
		}
		box.FillColor = plotutil.Color(i)
		p.Add(box)
	}
	p.NominalX(report.Methods...)
	return save(p, path)
}

// ExecTime plots the mean selector fit time per method in seconds, with bars
// spanning the fastest and slowest run.
func ExecTime(report *benchmark.Report, path string) error {
	if report == nil || len(report.Methods) == 0 {
		return errors.Wrap(errors.ErrEmptyData, "execution time")
	}
	p := plot.New()
	p.Title.Text = "Execution time: mean and range"
	p.Y.Label.Text = "fit time [s]"

	data := struct {
		plotter.XYs
		plotter.YErrors
	}{
		XYs:     make(plotter.XYs, len(report.Methods)),
		YErrors: make(plotter.YErrors, len(report.Methods)),
	}
	for i, method := range report.Methods {
		var times []float64
		for _, rec := range report.Records {
			if rec.Method == method {
				times = append(times, rec.FitTime.Seconds())
			}
		}
		if len(times) == 0 {
			return errors.NewInvalidParameterError("method", "no runs recorded", method)
		}
		mean := floats.Sum(times) / float64(len(times))
		data.XYs[i] = plotter.XY{X: float64(i), Y: mean}
		data.YErrors[i].Low = mean - floats.Min(times)
		data.YErrors[i].High = floats.Max(times) - mean
	}

	bars, err := plotter.NewYErrorBars(data)
	if err != nil {
		return err
	}
	bars.CapWidth = vg.Points(8)
	sc, err := plotter.NewScatter(data)
	if err != nil {
		return err
	}
	sc.GlyphStyle.Color = selectedColor
	sc.GlyphStyle.Radius = vg.Points(3)
	p.Add(bars, sc, plotter.NewGrid())
	p.NominalX(report.Methods...)
	return save(p, path)
}

// ScoreVsStability draws, for every method, a box of the regression metric
// over the runs placed at the method's stability score on the x axis.
func ScoreVsStability(report *benchmark.Report, metric, stabilityScore, path string) error {
	if report == nil || len(report.Methods) == 0 {
		return errors.Wrap(errors.ErrEmptyData, "score vs stability")
	}
	p := plot.New()
	p.Title.Text = "Regression-Stability"
	p.X.Label.Text = stabilityScore
	p.Y.Label.Text = metric

	names := plotter.XYLabels{
		XYs:    make(plotter.XYs, len(report.Methods)),
		Labels: report.Methods,
	}
	for i, method := range report.Methods {
		x, ok := report.Stability[method][stabilityScore]
		if !ok {
			return errors.NewInvalidParameterError("stability", "not recorded for "+method, stabilityScore)
		}
		samples := report.MetricSamples(method, metric)
		if len(samples) == 0 {
			return errors.NewInvalidParameterError("metric", "not recorded for "+method, metric)
		}
		box, err := plotter.NewBoxPlot(vg.Points(15), x, plotter.Values(samples))
		if err != nil {
			return err
		}
		box.FillColor = plotutil.Color(i)
		p.Add(box)
		// 箱の上に手法名を置く
		names.XYs[i] = plotter.XY{X: x, Y: floats.Max(samples)}
	}
	labels, err := plotter.NewLabels(names)
	if err != nil {
		return err
	}
	p.Add(labels, plotter.NewGrid())
	return save(p, path)
}

func save(p *plot.Plot, path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "create plot directory %s", dir)
		}
	}
	if err := p.Save(width, height, path); err != nil {
		return errors.Wrapf(err, "save plot %s", path)
	}
	return nil
}
