// Package plotter renders beats and feature series to PNG with gonum/plot.
package plotter

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	gplotter "gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/pulse.report/internal/pulse"
	"github.com/banshee-data/pulse.report/internal/security"
)

// Figure sizes.
var (
	BeatWidth     = 8 * vg.Inch
	BeatHeight    = 5 * vg.Inch
	FeatureWidth  = 14 * vg.Inch
	FeatureHeight = 5 * vg.Inch
)

// ErrEmptyBeat is returned when asked to plot a beat without samples.
var ErrEmptyBeat = errors.New("plotter: beat has no samples")

// PlotBeat draws the normalized beat with its derivatives overlaid, each
// scaled so its largest magnitude matches the beat's peak, and marks the
// detected landmarks.
func PlotBeat(b *pulse.Beat, title, path string) error {
	if b == nil || b.Len() == 0 {
		return ErrEmptyBeat
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Time (s)"
	p.Y.Label.Text = "Amplitude"

	peak := maxAbs(b.Normalized)
	curves := []struct {
		name  string
		data  []float64
		color color.Color
		dash  bool
	}{
		{"pulse", b.Normalized, color.Black, false},
		{"velocity", scaleTo(b.Velocity, peak), palette[0], true},
		{"acceleration", scaleTo(b.Acceleration, peak), palette[1], true},
		{"jerk", scaleTo(b.Jerk, peak), palette[2], true},
	}
	for _, c := range curves {
		if len(c.data) != b.Len() {
			continue
		}
		line, err := gplotter.NewLine(finiteXYs(b.Time, c.data))
		if err != nil {
			return fmt.Errorf("%s line: %w", c.name, err)
		}
		line.Color = c.color
		line.Width = vg.Points(1)
		if c.dash {
			line.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		}
		p.Add(line)
		p.Legend.Add(c.name, line)
	}

	if err := addLandmarks(p, b); err != nil {
		return err
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	if err := p.Save(BeatWidth, BeatHeight, path); err != nil {
		return fmt.Errorf("save beat plot: %w", err)
	}
	return nil
}

type namedIndex struct {
	name string
	idx  int
}

func landmarkMarks(lm pulse.Landmarks) []namedIndex {
	return []namedIndex{
		{"SP", lm.SystolicPeak},
		{"UV", lm.UpstrokeVel},
		{"A+", lm.UpstrokeAccelMax},
		{"A-", lm.UpstrokeAccelMin},
		{"TP", lm.TidalPeak},
		{"TE", lm.TidalEnd},
		{"DN", lm.DicroticNotch},
		{"DP", lm.DicroticPeak},
		{"DI", lm.DicroticInflection},
		{"DV", lm.DicroticFallVelMin},
	}
}

func addLandmarks(p *plot.Plot, b *pulse.Beat) error {
	var pts gplotter.XYs
	var labels []string
	for _, m := range landmarkMarks(b.Landmarks) {
		if m.idx <= 0 || m.idx >= b.Len() {
			continue
		}
		y := b.Normalized[m.idx]
		if math.IsNaN(y) || math.IsInf(y, 0) {
			continue
		}
		pts = append(pts, gplotter.XY{X: b.Time[m.idx], Y: y})
		labels = append(labels, m.name)
	}
	if len(pts) == 0 {
		return nil
	}

	sc, err := gplotter.NewScatter(pts)
	if err != nil {
		return fmt.Errorf("landmark markers: %w", err)
	}
	sc.GlyphStyle.Shape = draw.CircleGlyph{}
	sc.GlyphStyle.Radius = vg.Points(3)
	sc.GlyphStyle.Color = palette[3]

	lbl, err := gplotter.NewLabels(gplotter.XYLabels{XYs: pts, Labels: labels})
	if err != nil {
		return fmt.Errorf("landmark labels: %w", err)
	}
	for i := range lbl.TextStyle {
		lbl.TextStyle[i].Color = palette[3]
	}
	lbl.Offset = vg.Point{X: vg.Points(3), Y: vg.Points(3)}

	p.Add(sc, lbl)
	return nil
}

// PlotBeatGrid writes up to limit beats as beat_0000.png, beat_0001.png,
// ... into dir and returns the number written. limit <= 0 plots all.
func PlotBeatGrid(beats []pulse.Beat, dir string, limit int) (int, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("failed to create output dir: %w", err)
	}
	if limit <= 0 || limit > len(beats) {
		limit = len(beats)
	}
	for i := 0; i < limit; i++ {
		b := &beats[i]
		path := filepath.Join(dir, fmt.Sprintf("beat_%04d.png", i))
		title := fmt.Sprintf("Beat %d at t=%.2fs", i, b.EndTime)
		if err := PlotBeat(b, title, path); err != nil {
			return i, fmt.Errorf("beat %d: %w", i, err)
		}
	}
	return limit, nil
}

// PlotFeatures writes one PNG per named column comparing the per-beat value
// with its trailing average. Columns with no finite values are skipped. It
// returns the paths written.
func PlotFeatures(exact, average []pulse.FeatureRow, names []string, dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}

	var written []string
	for col, name := range names {
		p := plot.New()
		p.Title.Text = name
		p.X.Label.Text = "Time (s)"
		p.Y.Label.Text = name

		n := 0
		for k, rows := range [][]pulse.FeatureRow{exact, average} {
			pts := columnXYs(rows, col)
			if len(pts) == 0 {
				continue
			}
			line, err := gplotter.NewLine(pts)
			if err != nil {
				return written, fmt.Errorf("%s: %w", name, err)
			}
			line.Color = palette[k]
			line.Width = vg.Points(1 + float64(k))
			p.Add(line)
			p.Legend.Add([]string{"exact", "average"}[k], line)
			n++
		}
		if n == 0 {
			continue
		}
		p.Legend.Top = true

		path, err := security.OutputPath(dir, name+".png")
		if err != nil {
			return written, err
		}
		if err := p.Save(FeatureWidth, FeatureHeight, path); err != nil {
			return written, fmt.Errorf("save %s plot: %w", name, err)
		}
		written = append(written, path)
	}
	return written, nil
}

func columnXYs(rows []pulse.FeatureRow, col int) gplotter.XYs {
	pts := make(gplotter.XYs, 0, len(rows))
	for _, r := range rows {
		if col >= len(r.Values) {
			continue
		}
		if v := r.Values[col]; !math.IsNaN(v) && !math.IsInf(v, 0) {
			pts = append(pts, gplotter.XY{X: r.Time, Y: v})
		}
	}
	return pts
}

func finiteXYs(x, y []float64) gplotter.XYs {
	pts := make(gplotter.XYs, 0, len(x))
	for i := range x {
		if math.IsNaN(y[i]) || math.IsInf(y[i], 0) {
			continue
		}
		pts = append(pts, gplotter.XY{X: x[i], Y: y[i]})
	}
	return pts
}

func maxAbs(x []float64) float64 {
	m := 0.0
	for _, v := range x {
		if a := math.Abs(v); a > m && !math.IsInf(a, 0) {
			m = a
		}
	}
	return m
}

// scaleTo rescales x so its largest magnitude equals peak.
func scaleTo(x []float64, peak float64) []float64 {
	out := make([]float64, len(x))
	m := maxAbs(x)
	if m == 0 {
		return out
	}
	for i, v := range x {
		out[i] = v * peak / m
	}
	return out
}
