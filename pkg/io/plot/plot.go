// Package plot renders a stream with its flagged indices as a chart.
package plot

import (
	"fmt"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strings"

	gplot "gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/hed1ad/streamguard/pkg/detectors"
)

// Chart holds presentation settings.
type Chart struct {
	title  string
	width  vg.Length
	height vg.Length
	format string
}

// Option configures a Chart.
type Option func(*Chart)

// WithTitle sets the chart title.
func WithTitle(title string) Option {
	return func(c *Chart) {
		c.title = title
	}
}

// WithSize sets the chart size in inches.
func WithSize(width, height float64) Option {
	return func(c *Chart) {
		c.width = vg.Length(width) * vg.Inch
		c.height = vg.Length(height) * vg.Inch
	}
}

// WithFormat sets the image format: png, svg, pdf, jpg.
func WithFormat(format string) Option {
	return func(c *Chart) {
		c.format = strings.ToLower(format)
	}
}

// New creates a Chart with the given options.
func New(opts ...Option) *Chart {
	c := &Chart{
		title:  "Data Stream with Detected Anomalies",
		width:  10 * vg.Inch,
		height: 6 * vg.Inch,
		format: "png",
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Render draws the stream as a line and each anomaly as a red cross, writing
// the image to w.
func (c *Chart) Render(w io.Writer, stream []float64, anomalies []int) error {
	p, err := c.build(stream, anomalies)
	if err != nil {
		return err
	}

	wt, err := p.WriterTo(c.width, c.height, c.format)
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}

// Save renders to path. The format follows the file extension when it has one.
func (c *Chart) Save(path string, stream []float64, anomalies []int) (err error) {
	chart := *c
	if ext := strings.TrimPrefix(filepath.Ext(path), "."); ext != "" {
		chart.format = strings.ToLower(ext)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	return chart.Render(f, stream, anomalies)
}

func (c *Chart) build(stream []float64, anomalies []int) (*gplot.Plot, error) {
	if len(stream) == 0 {
		return nil, detectors.ErrEmptyInput
	}

	p := gplot.New()
	p.Title.Text = c.title
	p.X.Label.Text = "Time"
	p.Y.Label.Text = "Value"

	pts := make(plotter.XYs, len(stream))
	for i, v := range stream {
		pts[i].X = float64(i)
		pts[i].Y = v
	}

	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, err
	}
	line.Color = color.RGBA{B: 255, A: 255}
	p.Add(line)
	p.Legend.Add("Data Stream", line)

	if len(anomalies) == 0 {
		return p, nil
	}

	marks := make(plotter.XYs, len(anomalies))
	for i, idx := range anomalies {
		if idx < 0 || idx >= len(stream) {
			return nil, fmt.Errorf("anomaly index %d out of range [0, %d)", idx, len(stream))
		}
		marks[i].X = float64(idx)
		marks[i].Y = stream[idx]
	}

	scatter, err := plotter.NewScatter(marks)
	if err != nil {
		return nil, err
	}
	scatter.GlyphStyle.Shape = draw.CrossGlyph{}
	scatter.GlyphStyle.Color = color.RGBA{R: 255, A: 255}
	scatter.GlyphStyle.Radius = vg.Points(4)
	p.Add(scatter)
	p.Legend.Add("Anomalies", scatter)

	return p, nil
}

// Render draws a chart with default settings.
func Render(w io.Writer, stream []float64, anomalies []int, opts ...Option) error {
	return New(opts...).Render(w, stream, anomalies)
}

// Save writes a chart with default settings to path.
func Save(path string, stream []float64, anomalies []int, opts ...Option) error {
	return New(opts...).Save(path, stream, anomalies)
}
