// Package render draws region weight grids as heatmap images.
package render

import (
	"errors"
	"fmt"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/Faultbox/weighted-region-layer/pkg/formats"
)

// Default output size.
const (
	DefaultWidth  = 8 * vg.Inch
	DefaultHeight = 8 * vg.Inch
)

// weightGrid adapts a WRL to plotter.GridXYZ in world coordinates.
type weightGrid struct {
	w *formats.WRL
}

func (g weightGrid) Dims() (c, r int) { return int(g.w.Width), int(g.w.Height) }

func (g weightGrid) Z(c, r int) float64 {
	v, _ := g.w.Weight(c, r)
	return v
}

// X returns the world X of the center of column c.
func (g weightGrid) X(c int) float64 {
	return g.w.OriginX + (float64(c)+0.5)*g.w.Resolution
}

// Y returns the world Y of the center of row r.
func (g weightGrid) Y(r int) float64 {
	return g.w.OriginY + (float64(r)+0.5)*g.w.Resolution
}

// NewPlot builds a heatmap plot of the region weights.
func NewPlot(w *formats.WRL, title string) (*plot.Plot, error) {
	if w == nil {
		return nil, errors.New("render: nil region")
	}
	if err := w.Validate(); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}

	hm := plotter.NewHeatMap(weightGrid{w}, palette.Heat(64, 1))
	if hm.Min == hm.Max {
		hm.Max = hm.Min + 1
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "X (m)"
	p.Y.Label.Text = "Y (m)"
	p.Add(hm)

	minX, minY, maxX, maxY := w.WorldExtent()
	p.X.Min, p.X.Max = minX, maxX
	p.Y.Min, p.Y.Max = minY, maxY
	return p, nil
}

// Heatmap renders w to path. The image format follows the file extension.
func Heatmap(w *formats.WRL, title, path string) error {
	p, err := NewPlot(w, title)
	if err != nil {
		return err
	}
	if err := p.Save(DefaultWidth, DefaultHeight, path); err != nil {
		return fmt.Errorf("save heatmap: %w", err)
	}
	return nil
}

// WriteHeatmap renders w as PNG to dst.
func WriteHeatmap(w *formats.WRL, title string, dst io.Writer) error {
	p, err := NewPlot(w, title)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(DefaultWidth, DefaultHeight, "png")
	if err != nil {
		return fmt.Errorf("encode heatmap: %w", err)
	}
	if _, err := wt.WriteTo(dst); err != nil {
		return fmt.Errorf("write heatmap: %w", err)
	}
	return nil
}
