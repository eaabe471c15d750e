package train

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	_ "gonum.org/v1/plot/vg/vgimg" // png, jpg, tiff
	_ "gonum.org/v1/plot/vg/vgpdf"
	_ "gonum.org/v1/plot/vg/vgsvg"
)

// EpochRecord holds the train and test figures of one epoch.
type EpochRecord struct {
	Epoch         int
	TrainLoss     float64
	TrainAccuracy float64
	TestLoss      float64
	TestAccuracy  float64
}

// History collects per-epoch records.
type History struct {
	Epochs []EpochRecord
}

// Add appends the results of epoch (1-based).
func (h *History) Add(epoch int, trained EpochStats, evaluated EvalResult) {
	rec := EpochRecord{
		Epoch:         epoch,
		TrainLoss:     trained.Loss,
		TrainAccuracy: trained.Accuracy,
		TestLoss:      evaluated.Loss,
	}
	if evaluated.Metrics != nil {
		rec.TestAccuracy = evaluated.Metrics.Accuracy()
	}
	h.Epochs = append(h.Epochs, rec)
}

// Plot renders loss and accuracy curves side by side. The image format
// follows the file extension (png, svg, pdf, jpg, ...).
func (h *History) Plot(path string) error {
	if len(h.Epochs) == 0 {
		return fmt.Errorf("plot: empty history")
	}
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if format == "" {
		return fmt.Errorf("plot: %s has no file extension", path)
	}

	loss, err := h.curves("Loss", "loss",
		func(r EpochRecord) float64 { return r.TrainLoss },
		func(r EpochRecord) float64 { return r.TestLoss })
	if err != nil {
		return err
	}
	acc, err := h.curves("Accuracy", "accuracy %",
		func(r EpochRecord) float64 { return 100 * r.TrainAccuracy },
		func(r EpochRecord) float64 { return 100 * r.TestAccuracy })
	if err != nil {
		return err
	}

	const width, height = 10 * vg.Inch, 4 * vg.Inch
	canvas, err := draw.NewFormattedCanvas(width, height, format)
	if err != nil {
		return fmt.Errorf("plot: %w", err)
	}

	plots := [][]*plot.Plot{{loss, acc}}
	tiles := draw.Tiles{Rows: 1, Cols: 2, PadX: vg.Millimeter, PadY: vg.Millimeter}
	cells := plot.Align(plots, tiles, draw.New(canvas))
	for j, p := range plots[0] {
		p.Draw(cells[0][j])
	}

	//nolint:gosec // G304: output path is supplied by the caller
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("plot: %w", err)
	}
	if _, err := canvas.WriteTo(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("plot: %w", err)
	}
	return f.Close()
}

func (h *History) curves(title, yLabel string, train, test func(EpochRecord) float64) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "epoch"
	p.Y.Label.Text = yLabel
	p.Legend.Top = true
	p.Add(plotter.NewGrid())

	for i, series := range []struct {
		name  string
		value func(EpochRecord) float64
	}{{"train", train}, {"test", test}} {
		pts := make(plotter.XYs, len(h.Epochs))
		for k, r := range h.Epochs {
			pts[k].X, pts[k].Y = float64(r.Epoch), series.value(r)
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, fmt.Errorf("plot: %w", err)
		}
		line.Width = vg.Points(2)
		line.Color = plotutil.Color(i)
		p.Add(line)
		p.Legend.Add(series.name, line)
	}
	return p, nil
}
