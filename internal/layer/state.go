package layer

import "fmt"

// State is the controller lifecycle state.
type State int

const (
	// Uninitialized: no map geometry has been captured yet.
	Uninitialized State = iota
	// NoRegion: geometry known, no usable region grid.
	NoRegion
	// RegionLoaded: a region grid matching the geometry is live.
	RegionLoaded
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Uninitialized:
		return "Uninitialized"
	case NoRegion:
		return "NoRegion"
	case RegionLoaded:
		return "RegionLoaded"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}
