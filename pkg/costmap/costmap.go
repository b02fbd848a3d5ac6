// Package costmap provides the master cost grid model shared by costmap layers.
package costmap

import (
	"fmt"
	"math"
)

// Standard cell cost values.
const (
	FreeSpace                 uint8 = 0
	InscribedInflatedObstacle uint8 = 253
	LethalObstacle            uint8 = 254
	NoInformation             uint8 = 255
)

// Geometry describes the size and placement of a grid.
type Geometry struct {
	Width      int
	Height     int
	Resolution float64 // meters per cell
	OriginX    float64
	OriginY    float64
}

// String returns "WxH@res (ox,oy)".
func (g Geometry) String() string {
	return fmt.Sprintf("%dx%d@%g (%g,%g)", g.Width, g.Height, g.Resolution, g.OriginX, g.OriginY)
}

// Valid reports whether the geometry describes a non-empty grid.
func (g Geometry) Valid() bool {
	return g.Width > 0 && g.Height > 0 && g.Resolution > 0 &&
		!math.IsInf(g.Resolution, 0) && !math.IsNaN(g.OriginX) && !math.IsNaN(g.OriginY)
}

// SameSize reports whether both geometries have the same cell counts.
func (g Geometry) SameSize(o Geometry) bool {
	return g.Width == o.Width && g.Height == o.Height
}

// Extent returns the full-grid rectangle.
func (g Geometry) Extent() Rect {
	return Rect{MaxX: g.Width, MaxY: g.Height}
}

// WorldBounds returns the world-space rectangle covered by the grid.
func (g Geometry) WorldBounds() Bounds {
	return Bounds{
		MinX: g.OriginX,
		MinY: g.OriginY,
		MaxX: g.OriginX + float64(g.Width)*g.Resolution,
		MaxY: g.OriginY + float64(g.Height)*g.Resolution,
	}
}

// WorldToMap converts world coordinates to cell indices.
// Returns false if the point lies outside the grid.
func (g Geometry) WorldToMap(wx, wy float64) (int, int, bool) {
	if wx < g.OriginX || wy < g.OriginY {
		return 0, 0, false
	}
	mx := int((wx - g.OriginX) / g.Resolution)
	my := int((wy - g.OriginY) / g.Resolution)
	if mx >= g.Width || my >= g.Height {
		return 0, 0, false
	}
	return mx, my, true
}

// MapToWorld returns the world coordinates of the center of cell (mx, my).
func (g Geometry) MapToWorld(mx, my int) (float64, float64) {
	return g.OriginX + (float64(mx)+0.5)*g.Resolution,
		g.OriginY + (float64(my)+0.5)*g.Resolution
}

// Grid is the cost storage a layer writes into.
type Grid interface {
	Geometry() Geometry
	Cost(x, y int) uint8
	SetCost(x, y int, cost uint8)
}

// Costmap is a dense row-major cost grid.
type Costmap struct {
	geom  Geometry
	costs []uint8
}

// New creates a costmap with every cell set to fill.
func New(geom Geometry, fill uint8) (*Costmap, error) {
	if !geom.Valid() {
		return nil, fmt.Errorf("invalid costmap geometry %s", geom)
	}
	c := &Costmap{
		geom:  geom,
		costs: make([]uint8, geom.Width*geom.Height),
	}
	if fill != 0 {
		for i := range c.costs {
			c.costs[i] = fill
		}
	}
	return c, nil
}

// Geometry returns the grid geometry.
func (c *Costmap) Geometry() Geometry {
	return c.geom
}

// InBounds reports whether (x, y) is a cell of the grid.
func (c *Costmap) InBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < c.geom.Width && y < c.geom.Height
}

// Cost returns the cost at (x, y), or NoInformation out of bounds.
func (c *Costmap) Cost(x, y int) uint8 {
	if !c.InBounds(x, y) {
		return NoInformation
	}
	return c.costs[y*c.geom.Width+x]
}

// SetCost sets the cost at (x, y). Out-of-bounds writes are ignored.
func (c *Costmap) SetCost(x, y int, cost uint8) {
	if !c.InBounds(x, y) {
		return
	}
	c.costs[y*c.geom.Width+x] = cost
}

// Costs returns the underlying row-major cost slice.
func (c *Costmap) Costs() []uint8 {
	return c.costs
}

// Clone returns a deep copy.
func (c *Costmap) Clone() *Costmap {
	costs := make([]uint8, len(c.costs))
	copy(costs, c.costs)
	return &Costmap{geom: c.geom, costs: costs}
}
