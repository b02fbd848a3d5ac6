// Package formats provides the weighted region (WRL) binary file format.
//
// A WRL file stores one float64 traversal weight per map cell together with
// the geometry of the map it was authored for. All values are little-endian.
package formats
