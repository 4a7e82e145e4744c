// Package report renders a session as a standalone HTML page of go-echarts
// charts: heart rate, one panel per active feature, and a breakdown of
// diagnostic reasons.
package report

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/pulse.report/internal/pulse"
)

// Data is everything a report shows.
type Data struct {
	Subject   string
	SessionID string

	HeartRate    []pulse.HeartRateSample
	FeatureNames []string
	Exact        []pulse.FeatureRow
	Average      []pulse.FeatureRow

	// Reasons counts diagnostics by reason name.
	Reasons map[string]int

	// AssetsHost overrides where the echarts script is loaded from.
	AssetsHost string
}

// FromSession collects report data from a live session.
func FromSession(subject, sessionID string, s *pulse.Session) Data {
	d := Data{
		Subject:      subject,
		SessionID:    sessionID,
		HeartRate:    s.HeartRateSamples(),
		FeatureNames: s.FeatureNames(),
		Exact:        s.ExactFeatures(),
		Average:      s.AveragedFeatures(),
		Reasons:      make(map[string]int),
	}
	for _, diag := range s.Diagnostics() {
		d.Reasons[diag.Reason.String()]++
	}
	return d
}

func (d Data) init(title string, height string) opts.Initialization {
	return opts.Initialization{
		PageTitle:  title,
		Width:      "100%",
		Height:     height,
		AssetsHost: d.AssetsHost,
	}
}

func (d Data) heartRateChart() *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(d.init("Heart rate", "360px")),
		charts.WithTitleOpts(opts.Title{Title: "Heart rate", Subtitle: fmt.Sprintf("%d beats", len(d.HeartRate))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Name: "Time (s)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Name: "BPM"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider"}),
	)
	data := make([]opts.LineData, 0, len(d.HeartRate))
	for _, s := range d.HeartRate {
		if finite(s.BPM) {
			data = append(data, opts.LineData{Value: []interface{}{s.Time, s.BPM}})
		}
	}
	line.AddSeries("bpm", data, charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))
	return line
}

func (d Data) featureChart(col int, name string) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(d.init(name, "320px")),
		charts.WithTitleOpts(opts.Title{Title: name}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10%"}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Name: "Time (s)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Scale: opts.Bool(true)}),
	)
	line.AddSeries("exact", columnData(d.Exact, col),
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(true)}))
	line.AddSeries("average", columnData(d.Average, col),
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false), Smooth: opts.Bool(true)}))
	return line
}

func (d Data) reasonChart() *charts.Bar {
	names := make([]string, 0, len(d.Reasons))
	for name := range d.Reasons {
		names = append(names, name)
	}
	sort.Strings(names)

	values := make([]opts.BarData, len(names))
	total := 0
	for i, name := range names {
		values[i] = opts.BarData{Value: d.Reasons[name]}
		total += d.Reasons[name]
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(d.init("Diagnostics", "360px")),
		charts.WithTitleOpts(opts.Title{Title: "Diagnostics", Subtitle: fmt.Sprintf("%d events", total)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(names).
		AddSeries("count", values,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)
	return bar
}

func columnData(rows []pulse.FeatureRow, col int) []opts.LineData {
	data := make([]opts.LineData, 0, len(rows))
	for _, r := range rows {
		if col < len(r.Values) && finite(r.Values[col]) {
			data = append(data, opts.LineData{Value: []interface{}{r.Time, r.Values[col]}})
		}
	}
	return data
}

var nan = math.NaN()

// finite filters values JSON cannot encode.
func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// Render writes the report page to w.
func Render(w io.Writer, d Data) error {
	page := components.NewPage()
	page.PageTitle = "Pulse report"
	if d.Subject != "" {
		page.PageTitle = "Pulse report: " + d.Subject
	}
	if d.AssetsHost != "" {
		page.SetAssetsHost(d.AssetsHost)
	}

	page.AddCharts(d.heartRateChart())
	for col, name := range d.FeatureNames {
		page.AddCharts(d.featureChart(col, name))
	}
	page.AddCharts(d.reasonChart())

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// WriteFile renders the report to path.
func WriteFile(path string, d Data) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Render(f, d); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
