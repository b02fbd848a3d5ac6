// Package overlay merges a weighted region grid into a master costmap.
package overlay

import (
	"github.com/Faultbox/weighted-region-layer/pkg/costmap"
	"github.com/Faultbox/weighted-region-layer/pkg/formats"
)

// Clip returns the part of rect covered by both the region and the master
// grid. Region cells map one-to-one onto master cells.
func Clip(region *formats.WRL, master costmap.Geometry, rect costmap.Rect) costmap.Rect {
	regionExtent := costmap.Rect{MaxX: int(region.Width), MaxY: int(region.Height)}
	return rect.Intersect(regionExtent).Intersect(master.Extent())
}

// Apply writes max(master, policy(weight)) for every cell of rect that lies
// inside both grids and returns the rectangle that was visited.
//
// Cells outside the returned rectangle are never touched, and no cell cost is
// ever lowered, so repeated calls with unchanged inputs are idempotent.
func Apply(region *formats.WRL, master costmap.Grid, rect costmap.Rect, policy CostPolicy) costmap.Rect {
	if region == nil || master == nil {
		return costmap.Rect{}
	}
	clipped := Clip(region, master.Geometry(), rect)
	if clipped.Empty() {
		return clipped
	}

	width := int(region.Width)
	for y := clipped.MinY; y < clipped.MaxY; y++ {
		row := region.Weights[y*width : (y+1)*width]
		for x := clipped.MinX; x < clipped.MaxX; x++ {
			candidate := policy.Cost(row[x])
			if candidate > master.Cost(x, y) {
				master.SetCost(x, y, candidate)
			}
		}
	}
	return clipped
}
