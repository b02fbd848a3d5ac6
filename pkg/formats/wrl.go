package formats

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
)

// WRL format errors.
var (
	ErrTruncatedWRLData = errors.New("truncated WRL data")
	ErrMalformedWRL     = errors.New("malformed WRL data")
	ErrUnreadableWRL    = errors.New("unreadable WRL file")
)

// WRLExtension is appended to logical region names to form file names.
const WRLExtension = ".wrl"

// WRL header layout.
const (
	wrlMagic      = "WRGN"
	wrlHeaderSize = 4 + 2 + 4 + 4 + 8 + 8 + 8 // 38
	wrlWeightSize = 8

	// MaxWRLCells caps the decoded cell count (512 MiB of weights).
	MaxWRLCells = 1 << 26
)

// WRLVersion represents the WRL file version.
type WRLVersion struct {
	Major uint8
	Minor uint8
}

// String returns the version as "Major.Minor".
func (v WRLVersion) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// CurrentWRLVersion is written by Encode.
var CurrentWRLVersion = WRLVersion{Major: 1, Minor: 0}

// WRLFileName maps a logical region name to its file name.
func WRLFileName(name string) string {
	if strings.HasSuffix(name, WRLExtension) {
		return name
	}
	return name + WRLExtension
}

// WRL is a weighted region grid: one traversal weight per map cell plus the
// geometry of the map it was authored against.
//
// Geometry fields must not change after construction. Weights is row-major,
// X fastest: index = y*Width + x.
type WRL struct {
	Version    WRLVersion
	Width      uint32
	Height     uint32
	Resolution float64 // meters per cell
	OriginX    float64 // world X of the lower-left corner
	OriginY    float64 // world Y of the lower-left corner
	Weights    []float64
}

// NewWRL creates a grid with every cell set to fill.
func NewWRL(width, height uint32, resolution, originX, originY, fill float64) (*WRL, error) {
	w := &WRL{
		Version:    CurrentWRLVersion,
		Width:      width,
		Height:     height,
		Resolution: resolution,
		OriginX:    originX,
		OriginY:    originY,
	}
	if err := w.validateHeader(); err != nil {
		return nil, err
	}
	w.Weights = make([]float64, int(width)*int(height))
	for i := range w.Weights {
		w.Weights[i] = fill
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return w, nil
}

// CellCount returns width*height.
func (w *WRL) CellCount() int {
	return int(w.Width) * int(w.Height)
}

// InBounds reports whether (x, y) is a cell of the grid.
func (w *WRL) InBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < int(w.Width) && y < int(w.Height)
}

// Weight returns the weight at (x, y).
// Returns false if coordinates are out of bounds.
func (w *WRL) Weight(x, y int) (float64, bool) {
	if !w.InBounds(x, y) {
		return 0, false
	}
	return w.Weights[y*int(w.Width)+x], true
}

// SetWeight sets the weight at (x, y). Only meant for building a grid
// before it is handed to a layer; loaded grids are never patched.
func (w *WRL) SetWeight(x, y int, weight float64) error {
	if !w.InBounds(x, y) {
		return fmt.Errorf("cell (%d,%d) outside %dx%d grid", x, y, w.Width, w.Height)
	}
	if math.IsNaN(weight) || math.IsInf(weight, 0) {
		return fmt.Errorf("weight %v is not finite", weight)
	}
	w.Weights[y*int(w.Width)+x] = weight
	return nil
}

// Clone returns a deep copy.
func (w *WRL) Clone() *WRL {
	c := *w
	c.Weights = make([]float64, len(w.Weights))
	copy(c.Weights, w.Weights)
	return &c
}

// Equal reports whether both grids have identical geometry and weights.
func (w *WRL) Equal(o *WRL) bool {
	if w == nil || o == nil {
		return w == o
	}
	if w.Width != o.Width || w.Height != o.Height ||
		w.Resolution != o.Resolution || w.OriginX != o.OriginX || w.OriginY != o.OriginY {
		return false
	}
	if len(w.Weights) != len(o.Weights) {
		return false
	}
	for i := range w.Weights {
		if w.Weights[i] != o.Weights[i] {
			return false
		}
	}
	return true
}

// Validate checks the invariants a decoded grid must satisfy.
func (w *WRL) Validate() error {
	if err := w.validateHeader(); err != nil {
		return err
	}
	if len(w.Weights) != w.CellCount() {
		return fmt.Errorf("%w: %d weights for %dx%d grid", ErrMalformedWRL, len(w.Weights), w.Width, w.Height)
	}
	for i, v := range w.Weights {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: weight %d is not finite", ErrMalformedWRL, i)
		}
	}
	return nil
}

func (w *WRL) validateHeader() error {
	if w.Width == 0 || w.Height == 0 {
		return fmt.Errorf("%w: invalid dimensions %dx%d", ErrMalformedWRL, w.Width, w.Height)
	}
	if uint64(w.Width)*uint64(w.Height) > MaxWRLCells {
		return fmt.Errorf("%w: %dx%d exceeds %d cells", ErrMalformedWRL, w.Width, w.Height, MaxWRLCells)
	}
	if !(w.Resolution > 0) || math.IsInf(w.Resolution, 0) {
		return fmt.Errorf("%w: invalid resolution %v", ErrMalformedWRL, w.Resolution)
	}
	if math.IsNaN(w.OriginX) || math.IsInf(w.OriginX, 0) || math.IsNaN(w.OriginY) || math.IsInf(w.OriginY, 0) {
		return fmt.Errorf("%w: invalid origin (%v,%v)", ErrMalformedWRL, w.OriginX, w.OriginY)
	}
	return nil
}

// ParseWRL parses a WRL file from raw bytes.
func ParseWRL(data []byte) (*WRL, error) {
	if len(data) < wrlHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes, header needs %d", ErrTruncatedWRLData, len(data), wrlHeaderSize)
	}

	if string(data[0:4]) != wrlMagic {
		return nil, fmt.Errorf("%w: invalid magic %q", ErrMalformedWRL, data[0:4])
	}

	// Version is stored as [minor, major]
	version := WRLVersion{
		Major: data[5],
		Minor: data[4],
	}
	if version.Major != CurrentWRLVersion.Major {
		return nil, fmt.Errorf("%w: unsupported version %s", ErrMalformedWRL, version)
	}

	r := bytes.NewReader(data[6:])
	w := &WRL{Version: version}
	header := []any{&w.Width, &w.Height, &w.Resolution, &w.OriginX, &w.OriginY}
	for _, field := range header {
		if err := binary.Read(r, binary.LittleEndian, field); err != nil {
			return nil, fmt.Errorf("%w: reading header", ErrTruncatedWRLData)
		}
	}

	if err := w.validateHeader(); err != nil {
		return nil, err
	}

	// Check payload length before allocating.
	need := w.CellCount() * wrlWeightSize
	payload := data[wrlHeaderSize:]
	if len(payload) < need {
		return nil, fmt.Errorf("%w: payload has %d bytes, header promises %d", ErrTruncatedWRLData, len(payload), need)
	}
	if len(payload) > need {
		return nil, fmt.Errorf("%w: %d trailing bytes after payload", ErrMalformedWRL, len(payload)-need)
	}

	w.Weights = make([]float64, w.CellCount())
	for i := range w.Weights {
		bits := binary.LittleEndian.Uint64(payload[i*wrlWeightSize:])
		w.Weights[i] = math.Float64frombits(bits)
	}

	if err := w.Validate(); err != nil {
		return nil, err
	}
	return w, nil
}

// ReadWRL parses a WRL stream.
func ReadWRL(r io.Reader) (*WRL, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableWRL, err)
	}
	return ParseWRL(data)
}

// ParseWRLFile parses a WRL file from disk.
func ParseWRLFile(path string) (*WRL, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreadableWRL, err)
	}
	return ParseWRL(data)
}

// Encode serializes the grid. The output always carries CurrentWRLVersion.
func (w *WRL) Encode() ([]byte, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}

	buf := make([]byte, wrlHeaderSize+w.CellCount()*wrlWeightSize)
	copy(buf[0:4], wrlMagic)
	buf[4] = CurrentWRLVersion.Minor
	buf[5] = CurrentWRLVersion.Major
	binary.LittleEndian.PutUint32(buf[6:], w.Width)
	binary.LittleEndian.PutUint32(buf[10:], w.Height)
	binary.LittleEndian.PutUint64(buf[14:], math.Float64bits(w.Resolution))
	binary.LittleEndian.PutUint64(buf[22:], math.Float64bits(w.OriginX))
	binary.LittleEndian.PutUint64(buf[30:], math.Float64bits(w.OriginY))

	off := wrlHeaderSize
	for _, v := range w.Weights {
		binary.LittleEndian.PutUint64(buf[off:], math.Float64bits(v))
		off += wrlWeightSize
	}
	return buf, nil
}

// WriteTo writes the encoded grid to dst.
func (w *WRL) WriteTo(dst io.Writer) (int64, error) {
	data, err := w.Encode()
	if err != nil {
		return 0, err
	}
	n, err := dst.Write(data)
	return int64(n), err
}

// WriteWRLFile encodes the grid and writes it to path.
func WriteWRLFile(path string, w *WRL) error {
	data, err := w.Encode()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing WRL file: %w", err)
	}
	return nil
}
