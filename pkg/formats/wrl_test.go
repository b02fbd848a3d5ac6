package formats

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// createTestWRL builds a raw WRL file. Weights beyond len(weights) are zero.
func createTestWRL(width, height uint32, weights []float64) []byte {
	buf := new(bytes.Buffer)

	buf.WriteString("WRGN")
	buf.WriteByte(0) // minor
	buf.WriteByte(1) // major

	binary.Write(buf, binary.LittleEndian, width)
	binary.Write(buf, binary.LittleEndian, height)
	binary.Write(buf, binary.LittleEndian, 0.05)
	binary.Write(buf, binary.LittleEndian, -10.0)
	binary.Write(buf, binary.LittleEndian, 2.5)

	cellCount := int(width * height)
	for i := 0; i < cellCount; i++ {
		w := 0.0
		if i < len(weights) {
			w = weights[i]
		}
		binary.Write(buf, binary.LittleEndian, w)
	}

	return buf.Bytes()
}

func TestParseWRL_ValidFile(t *testing.T) {
	data := createTestWRL(4, 3, []float64{1, 2, 3})

	wrl, err := ParseWRL(data)
	if err != nil {
		t.Fatalf("ParseWRL failed: %v", err)
	}

	if wrl.Version != CurrentWRLVersion {
		t.Errorf("expected version %s, got %s", CurrentWRLVersion, wrl.Version)
	}
	if wrl.Width != 4 || wrl.Height != 3 {
		t.Errorf("expected 4x3, got %dx%d", wrl.Width, wrl.Height)
	}
	if wrl.Resolution != 0.05 {
		t.Errorf("expected resolution 0.05, got %v", wrl.Resolution)
	}
	if wrl.OriginX != -10 || wrl.OriginY != 2.5 {
		t.Errorf("expected origin (-10,2.5), got (%v,%v)", wrl.OriginX, wrl.OriginY)
	}
	if len(wrl.Weights) != 12 {
		t.Fatalf("expected 12 weights, got %d", len(wrl.Weights))
	}

	// Row-major, X fastest
	if w, _ := wrl.Weight(2, 0); w != 3 {
		t.Errorf("expected weight 3 at (2,0), got %v", w)
	}
	if w, _ := wrl.Weight(0, 1); w != 0 {
		t.Errorf("expected weight 0 at (0,1), got %v", w)
	}
}

func TestWRL_RoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		width   uint32
		height  uint32
		weights func(i int) float64
	}{
		{"single cell", 1, 1, func(int) float64 { return 7 }},
		{"square", 4, 4, func(i int) float64 { return float64(i) * 1.5 }},
		{"wide", 17, 3, func(i int) float64 { return -float64(i) / 3 }},
		{"tiny fractions", 5, 2, func(i int) float64 { return math.SmallestNonzeroFloat64 * float64(i) }},
		{"large values", 2, 9, func(i int) float64 { return math.MaxFloat64 / float64(i+1) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := NewWRL(tt.width, tt.height, 0.1, 3.25, -7.75, 0)
			if err != nil {
				t.Fatalf("NewWRL failed: %v", err)
			}
			for i := range g.Weights {
				g.Weights[i] = tt.weights(i)
			}

			data, err := g.Encode()
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}
			if len(data) != wrlHeaderSize+g.CellCount()*wrlWeightSize {
				t.Errorf("unexpected encoded size %d", len(data))
			}

			got, err := ParseWRL(data)
			if err != nil {
				t.Fatalf("ParseWRL failed: %v", err)
			}
			if diff := cmp.Diff(g, got); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
			if !g.Equal(got) {
				t.Error("Equal reported mismatch after round trip")
			}
		})
	}
}

func TestParseWRL_Truncated(t *testing.T) {
	full := createTestWRL(4, 4, nil)

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"magic only", []byte("WRGN")},
		{"partial header", full[:20]},
		{"header only", full[:wrlHeaderSize]},
		{"missing last weight", full[:len(full)-wrlWeightSize]},
		{"missing one byte", full[:len(full)-1]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseWRL(tt.data)
			if !errors.Is(err, ErrTruncatedWRLData) {
				t.Errorf("expected ErrTruncatedWRLData, got %v", err)
			}
		})
	}
}

func TestParseWRL_HugeHeaderDoesNotAllocate(t *testing.T) {
	// Header promises 60000x1000 cells but carries no payload.
	data := createTestWRL(1, 1, nil)[:wrlHeaderSize]
	binary.LittleEndian.PutUint32(data[6:], 60000)
	binary.LittleEndian.PutUint32(data[10:], 1000)

	_, err := ParseWRL(data)
	if !errors.Is(err, ErrTruncatedWRLData) {
		t.Errorf("expected ErrTruncatedWRLData, got %v", err)
	}
}

func TestParseWRL_Malformed(t *testing.T) {
	tests := []struct {
		name   string
		mutate func([]byte) []byte
	}{
		{"bad magic", func(b []byte) []byte { copy(b, "XXXX"); return b }},
		{"unsupported version", func(b []byte) []byte { b[5] = 9; return b }},
		{"zero width", func(b []byte) []byte { binary.LittleEndian.PutUint32(b[6:], 0); return b }},
		{"zero height", func(b []byte) []byte { binary.LittleEndian.PutUint32(b[10:], 0); return b }},
		{"too many cells", func(b []byte) []byte {
			binary.LittleEndian.PutUint32(b[6:], 1<<16)
			binary.LittleEndian.PutUint32(b[10:], 1<<16)
			return b
		}},
		{"negative resolution", func(b []byte) []byte {
			binary.LittleEndian.PutUint64(b[14:], math.Float64bits(-0.05))
			return b
		}},
		{"NaN origin", func(b []byte) []byte {
			binary.LittleEndian.PutUint64(b[22:], math.Float64bits(math.NaN()))
			return b
		}},
		{"infinite weight", func(b []byte) []byte {
			binary.LittleEndian.PutUint64(b[wrlHeaderSize:], math.Float64bits(math.Inf(1)))
			return b
		}},
		{"trailing bytes", func(b []byte) []byte { return append(b, 0, 0, 0) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := tt.mutate(createTestWRL(2, 2, nil))
			_, err := ParseWRL(data)
			if !errors.Is(err, ErrMalformedWRL) {
				t.Errorf("expected ErrMalformedWRL, got %v", err)
			}
		})
	}
}

func TestParseWRLFile(t *testing.T) {
	dir := t.TempDir()

	_, err := ParseWRLFile(filepath.Join(dir, "missing.wrl"))
	if !errors.Is(err, ErrUnreadableWRL) {
		t.Errorf("expected ErrUnreadableWRL, got %v", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected the not-exist cause to be kept, got %v", err)
	}

	g, err := NewWRL(3, 2, 0.5, 0, 0, 1.25)
	if err != nil {
		t.Fatalf("NewWRL failed: %v", err)
	}
	path := filepath.Join(dir, WRLFileName("area"))
	if err := WriteWRLFile(path, g); err != nil {
		t.Fatalf("WriteWRLFile failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "area.wrl")); err != nil {
		t.Fatalf("expected area.wrl on disk: %v", err)
	}

	got, err := ParseWRLFile(path)
	if err != nil {
		t.Fatalf("ParseWRLFile failed: %v", err)
	}
	if !g.Equal(got) {
		t.Error("file round trip mismatch")
	}
}

func TestReadWRL_WriteTo(t *testing.T) {
	g, _ := NewWRL(2, 2, 1, 0, 0, 4)
	var buf bytes.Buffer
	n, err := g.WriteTo(&buf)
	if err != nil {
		t.Fatalf("WriteTo failed: %v", err)
	}
	if n != int64(buf.Len()) {
		t.Errorf("WriteTo reported %d bytes, buffer has %d", n, buf.Len())
	}

	got, err := ReadWRL(&buf)
	if err != nil {
		t.Fatalf("ReadWRL failed: %v", err)
	}
	if !g.Equal(got) {
		t.Error("stream round trip mismatch")
	}
}

func TestWRLFileName(t *testing.T) {
	tests := []struct {
		name     string
		expected string
	}{
		{"areaA", "areaA.wrl"},
		{"maps/floor1", "maps/floor1.wrl"},
		{"already.wrl", "already.wrl"},
	}

	for _, tc := range tests {
		if got := WRLFileName(tc.name); got != tc.expected {
			t.Errorf("WRLFileName(%q) = %q, expected %q", tc.name, got, tc.expected)
		}
	}
}

func TestWRL_WeightBounds(t *testing.T) {
	g, _ := NewWRL(3, 2, 1, 0, 0, 0)

	if err := g.SetWeight(2, 1, 9); err != nil {
		t.Fatalf("SetWeight failed: %v", err)
	}
	if w, ok := g.Weight(2, 1); !ok || w != 9 {
		t.Errorf("expected (9,true), got (%v,%v)", w, ok)
	}
	if g.Weights[1*3+2] != 9 {
		t.Error("SetWeight did not use row-major index")
	}

	for _, c := range [][2]int{{-1, 0}, {0, -1}, {3, 0}, {0, 2}} {
		if _, ok := g.Weight(c[0], c[1]); ok {
			t.Errorf("(%d,%d) should be out of bounds", c[0], c[1])
		}
		if err := g.SetWeight(c[0], c[1], 1); err == nil {
			t.Errorf("SetWeight(%d,%d) should fail", c[0], c[1])
		}
	}

	if err := g.SetWeight(0, 0, math.NaN()); err == nil {
		t.Error("SetWeight should reject NaN")
	}
}

func TestWRL_Clone(t *testing.T) {
	g, _ := NewWRL(2, 2, 1, 0, 0, 1)
	c := g.Clone()
	c.Weights[0] = 5

	if g.Weights[0] != 1 {
		t.Error("Clone shares weight storage")
	}
	if g.Equal(c) {
		t.Error("modified clone should not be equal")
	}
}

func TestNewWRL_Invalid(t *testing.T) {
	if _, err := NewWRL(0, 4, 1, 0, 0, 0); !errors.Is(err, ErrMalformedWRL) {
		t.Errorf("expected ErrMalformedWRL for zero width, got %v", err)
	}
	if _, err := NewWRL(4, 4, 0, 0, 0, 0); !errors.Is(err, ErrMalformedWRL) {
		t.Errorf("expected ErrMalformedWRL for zero resolution, got %v", err)
	}
	if _, err := NewWRL(4, 4, 1, 0, 0, math.Inf(-1)); !errors.Is(err, ErrMalformedWRL) {
		t.Errorf("expected ErrMalformedWRL for infinite fill, got %v", err)
	}
}

func TestWRL_Stats(t *testing.T) {
	g, _ := NewWRL(2, 2, 0.5, 1, 2, 0)
	g.Weights = []float64{0, 0, 2, 6}

	s := g.Stats(0)
	if s.Min != 0 || s.Max != 6 {
		t.Errorf("expected range [0,6], got [%v,%v]", s.Min, s.Max)
	}
	if s.Mean != 2 {
		t.Errorf("expected mean 2, got %v", s.Mean)
	}
	if s.Weighted != 2 {
		t.Errorf("expected 2 weighted cells, got %d", s.Weighted)
	}

	minX, minY, maxX, maxY := g.WorldExtent()
	if minX != 1 || minY != 2 || maxX != 2 || maxY != 3 {
		t.Errorf("unexpected extent (%v,%v)-(%v,%v)", minX, minY, maxX, maxY)
	}
}
