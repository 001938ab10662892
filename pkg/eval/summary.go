package eval

import (
	"fmt"
	"image/color"
	"io"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

func accuracies(results []Result) []float64 {
	out := make([]float64, len(results))
	for i, r := range results {
		out[i] = r.Accuracy
	}
	return out
}

// WriteSummary renders per-subject accuracies followed by their mean, min,
// max and standard deviation.
func WriteSummary(w io.Writer, title string, results []Result) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(title)
	t.AppendHeader(table.Row{"SUBJECT", "METHOD", "SCORER", "ACCURACY"})
	for _, r := range results {
		t.AppendRow(table.Row{fmt.Sprintf("%d", r.Subject), r.Method, r.Scorer, fmt.Sprintf("%6.2f%%", 100*r.Accuracy)})
	}

	if len(results) > 0 {
		acc := accuracies(results)
		t.AppendSeparator()
		t.AppendRows([]table.Row{
			{"MEAN", "", "", fmt.Sprintf("%6.2f%%", 100*stat.Mean(acc, nil))},
			{"MIN", "", "", fmt.Sprintf("%6.2f%%", 100*floats.Min(acc))},
			{"MAX", "", "", fmt.Sprintf("%6.2f%%", 100*floats.Max(acc))},
			{"STDDEV", "", "", fmt.Sprintf("%6.2f", 100*stat.StdDev(acc, nil))},
		})
	}
	t.Render()
}

// PlotAccuracy writes a bar chart of per-subject accuracy to path. The image
// format follows the file extension.
func PlotAccuracy(path string, title string, results []Result) error {
	if len(results) == 0 {
		return fmt.Errorf("no results to plot")
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "held-out subject"
	p.Y.Label.Text = "accuracy"
	p.Y.Min = 0
	p.Y.Max = 1

	bars, err := plotter.NewBarChart(plotter.Values(accuracies(results)), vg.Points(20))
	if err != nil {
		return err
	}
	bars.Color = color.RGBA{R: 20, G: 80, B: 200, A: 220}
	bars.LineStyle.Width = vg.Length(0)
	p.Add(bars)

	names := make([]string, len(results))
	for i, r := range results {
		names[i] = strconv.Itoa(r.Subject)
	}
	p.NominalX(names...)

	mean := stat.Mean(accuracies(results), nil)
	line, err := plotter.NewLine(plotter.XYs{{X: -0.5, Y: mean}, {X: float64(len(results)) - 0.5, Y: mean}})
	if err != nil {
		return err
	}
	line.Color = color.RGBA{R: 200, G: 30, B: 30, A: 200}
	line.Width = vg.Points(1)
	p.Add(line)
	p.Legend.Add(fmt.Sprintf("mean %.4f", mean), line)

	p.Add(plotter.NewGrid())

	return p.Save(8*vg.Inch, 4*vg.Inch, path)
}
