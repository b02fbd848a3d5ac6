package formats

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// WRLStats summarizes the weights of a region grid.
type WRLStats struct {
	Min      float64
	Max      float64
	Mean     float64
	StdDev   float64
	Weighted int // cells whose weight differs from the neutral weight
}

// Stats returns weight statistics; cells equal to neutral are counted as
// unweighted.
func (w *WRL) Stats(neutral float64) WRLStats {
	if len(w.Weights) == 0 {
		return WRLStats{}
	}

	mean, std := stat.MeanStdDev(w.Weights, nil)
	s := WRLStats{
		Min:    floats.Min(w.Weights),
		Max:    floats.Max(w.Weights),
		Mean:   mean,
		StdDev: std,
	}
	for _, v := range w.Weights {
		if v != neutral {
			s.Weighted++
		}
	}
	return s
}

// WorldExtent returns the world-space rectangle covered by the grid.
func (w *WRL) WorldExtent() (minX, minY, maxX, maxY float64) {
	minX, minY = w.OriginX, w.OriginY
	maxX = w.OriginX + float64(w.Width)*w.Resolution
	maxY = w.OriginY + float64(w.Height)*w.Resolution
	return minX, minY, maxX, maxY
}
