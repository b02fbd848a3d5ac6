// Package layer implements the weighted region costmap layer: it tracks the
// current region file, keeps the loaded grid consistent with the map
// geometry and merges it into the master costmap on each update cycle.
package layer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/Faultbox/weighted-region-layer/internal/config"
	"github.com/Faultbox/weighted-region-layer/internal/fsutil"
	"github.com/Faultbox/weighted-region-layer/internal/logger"
	"github.com/Faultbox/weighted-region-layer/pkg/costmap"
	"github.com/Faultbox/weighted-region-layer/pkg/formats"
	"github.com/Faultbox/weighted-region-layer/pkg/overlay"
)

// ParamSource resolves named parameters, e.g. the current region file name.
type ParamSource interface {
	Param(name string) (string, bool)
}

// ParamSetter is implemented by parameter sources that accept writes. Load
// records the requested name there so the param follows the live region.
type ParamSetter interface {
	SetParam(name, value string)
}

// Options configures a Controller.
type Options struct {
	FS                 fsutil.FileSystem  // defaults to the OS filesystem
	RegionDir          string             // base directory for relative names
	Enabled            bool               // initial enabled flag
	FileName           string             // region loaded on Initialize, "none" to skip
	EnableParamUpdates bool               // reload through Params on geometry change
	ParameterName      string             // param holding the region name
	Params             ParamSource        // may be nil
	Policy             overlay.CostPolicy // defaults to overlay.DefaultPolicy
}

// OptionsFromConfig builds Options from the layer and cost config sections.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		RegionDir:          cfg.Layer.RegionDir,
		Enabled:            cfg.Layer.Enabled,
		FileName:           cfg.Layer.FileName,
		EnableParamUpdates: cfg.Layer.EnableParamUpdates,
		ParameterName:      cfg.Layer.ParameterName,
		Params:             cfg.ParamSource(),
		Policy:             cfg.Cost.Policy(),
	}
}

// activeRegion is an immutable loaded grid. It is replaced, never modified.
type activeRegion struct {
	grid *formats.WRL
	name string
	path string
}

// Controller owns the live region grid of one layer instance.
//
// Geometry and update callbacks are expected from a single driver; Load and
// Save may run concurrently with them. The live grid is swapped atomically,
// so ComputeUpdate sees either the old grid or the new one in full.
type Controller struct {
	fs     fsutil.FileSystem
	opts   Options
	policy overlay.CostPolicy
	log    *zap.Logger

	enabled atomic.Bool
	region  atomic.Pointer[activeRegion]

	loadMu       sync.Mutex // serializes file decoding
	loads        singleflight.Group
	rollingWarns sync.Once

	mu          sync.Mutex // guards the fields below
	initialized bool
	static      bool
	geom        costmap.Geometry
	generation  uint64 // bumped whenever the geometry is replaced
	lastFile    string // reload target after a geometry change
	paramSeen   string // file param value when lastFile was set
	pending     costmap.Bounds
}

// New creates an uninitialized controller.
func New(opts Options) *Controller {
	if opts.FS == nil {
		opts.FS = fsutil.OSFileSystem{}
	}
	policy := opts.Policy
	if policy == nil {
		policy = overlay.DefaultPolicy()
	}
	c := &Controller{
		fs:      opts.FS,
		opts:    opts,
		policy:  policy,
		log:     logger.Named("weighted_region_layer"),
		pending: costmap.EmptyBounds(),
	}
	c.enabled.Store(opts.Enabled)
	return c
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	initialized := c.initialized
	c.mu.Unlock()

	switch {
	case !initialized:
		return Uninitialized
	case c.region.Load() != nil:
		return RegionLoaded
	default:
		return NoRegion
	}
}

// Region returns the live region grid. The grid must be treated as read-only.
func (c *Controller) Region() (*formats.WRL, bool) {
	r := c.region.Load()
	if r == nil {
		return nil, false
	}
	return r.grid, true
}

// RegionName returns the logical name of the live region, if any.
func (c *Controller) RegionName() (string, bool) {
	r := c.region.Load()
	if r == nil {
		return "", false
	}
	return r.name, true
}

// Geometry returns the captured map geometry.
func (c *Controller) Geometry() costmap.Geometry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.geom
}

// LastFile returns the most recently requested region name.
func (c *Controller) LastFile() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastFile
}

// Enabled reports whether updates are applied.
func (c *Controller) Enabled() bool {
	return c.enabled.Load()
}

// SetEnabled turns the layer on or off.
func (c *Controller) SetEnabled(enabled bool) {
	c.enabled.Store(enabled)
}

// Initialize captures the map geometry and enters NoRegion. A rolling
// (moving window) map makes the layer refuse updates. The configured
// region, or the one named by the file parameter when param updates are
// enabled, is loaded if present; load failures are logged, not returned.
func (c *Controller) Initialize(geom costmap.Geometry, rolling bool) error {
	if !geom.Valid() {
		return fmt.Errorf("initialize: invalid geometry %s", geom)
	}

	c.mu.Lock()
	c.initialized = true
	c.static = !rolling
	c.geom = geom
	c.generation++
	c.pending = costmap.EmptyBounds()
	c.mu.Unlock()
	c.region.Store(nil)

	c.log.Info("initializing", zap.Stringer("geometry", geom), zap.Bool("rolling", rolling))
	if rolling {
		c.warnRolling()
	}

	name := c.opts.FileName
	if c.opts.EnableParamUpdates {
		if v, ok := c.lookupParam(); ok {
			name = v
		}
		c.log.Info("param based updates enabled",
			zap.String("param", c.opts.ParameterName), zap.String("file", name))
	} else {
		c.log.Warn("param updates not enabled; the region can be changed with the load file service")
	}

	if name == "" || name == config.NoFile {
		c.log.Warn("no region file specified; waiting for the load file service")
		return nil
	}
	_ = c.Load(name)
	return nil
}

// GeometryChanged invalidates the live region because its cells no longer
// correspond to the map. With param updates enabled the last requested
// region is loaded again, unless the file parameter was changed since that
// request, in which case the parameter's value is loaded.
func (c *Controller) GeometryChanged(geom costmap.Geometry) error {
	if !geom.Valid() {
		return fmt.Errorf("geometry changed: invalid geometry %s", geom)
	}

	c.mu.Lock()
	if !c.initialized {
		c.mu.Unlock()
		return ErrNotInitialized
	}
	c.geom = geom
	c.generation++
	c.pending = costmap.EmptyBounds()
	last, seen := c.lastFile, c.paramSeen
	c.mu.Unlock()

	if c.region.Swap(nil) != nil {
		c.log.Info("map geometry changed, region invalidated", zap.Stringer("geometry", geom))
	}

	if !c.opts.EnableParamUpdates {
		return nil
	}

	name := last
	if v, ok := c.lookupParam(); !ok {
		c.log.Warn("failed to get region file param", zap.String("param", c.opts.ParameterName))
	} else if last == "" || v != seen {
		name = v
	}
	if name == "" || name == config.NoFile {
		return nil
	}
	return c.Load(name)
}

// Load decodes the named region file and makes it live. On any failure the
// previous region is dropped, the controller enters NoRegion and the error
// is returned after being logged.
func (c *Controller) Load(name string) error {
	c.loadMu.Lock()
	defer c.loadMu.Unlock()

	c.mu.Lock()
	initialized := c.initialized
	c.mu.Unlock()
	if !initialized {
		return ErrNotInitialized
	}
	seen := c.recordParam(name)

	c.mu.Lock()
	geom := c.geom
	gen := c.generation
	c.lastFile = name
	c.paramSeen = seen
	c.mu.Unlock()

	path := c.path(name)
	grid, err := c.decode(path, geom)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil && gen != c.generation {
		err = fmt.Errorf("%w: map geometry changed during load", ErrGeometryMismatch)
	}
	if err != nil {
		c.region.Store(nil)
		c.log.Warn("failed to load region file",
			zap.String("file", path), zap.String("kind", ErrorKind(err)), zap.Error(err))
		return err
	}

	c.region.Store(&activeRegion{grid: grid, name: name, path: path})
	minX, minY, maxX, maxY := grid.WorldExtent()
	c.pending = c.pending.Union(costmap.Bounds{MinX: minX, MinY: minY, MaxX: maxX, MaxY: maxY})
	c.log.Info("region file loaded",
		zap.String("file", path),
		zap.Uint32("width", grid.Width),
		zap.Uint32("height", grid.Height))
	return nil
}

// LoadContext runs Load off the caller's path. Concurrent calls for the same
// name share one decode. If ctx ends first the load still completes.
func (c *Controller) LoadContext(ctx context.Context, name string) error {
	ch := c.loads.DoChan(name, func() (any, error) {
		return nil, c.Load(name)
	})
	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		return res.Err
	}
}

// Save writes the live region to the named file. An existing file is only
// replaced when overwrite is set.
func (c *Controller) Save(name string, overwrite bool) error {
	r := c.region.Load()
	if r == nil {
		c.log.Warn("nothing to save", zap.String("file", name))
		return ErrNoActiveRegion
	}

	path := c.path(name)
	if fsutil.Exists(c.fs, path) && !overwrite {
		c.log.Warn("region file exists and overwrite is not enabled", zap.String("file", path))
		return fmt.Errorf("%w: %s", ErrAlreadyExists, path)
	}

	data, err := r.grid.Encode()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFileUnwritable, err)
	}
	if err := fsutil.WriteFileAtomic(c.fs, path, data, 0644); err != nil {
		c.log.Error("failed to write region file", zap.String("file", path), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrFileUnwritable, err)
	}

	c.log.Info("region file saved", zap.String("file", path), zap.Int("bytes", len(data)))
	return nil
}

// BoundsExtension grows the host's update bounds by the extent of a newly
// loaded region, once per load.
func (c *Controller) BoundsExtension(b costmap.Bounds) costmap.Bounds {
	if !c.enabled.Load() || c.region.Load() == nil {
		return b
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending.Empty() {
		return b
	}
	b = b.Union(c.pending)
	c.pending = costmap.EmptyBounds()
	return b
}

// ComputeUpdate merges the live region into master over rect and returns the
// cells visited. It does nothing unless the layer is enabled, the map is
// static and a region matching the master geometry is loaded.
func (c *Controller) ComputeUpdate(master costmap.Grid, rect costmap.Rect) costmap.Rect {
	if !c.enabled.Load() {
		return costmap.Rect{}
	}

	c.mu.Lock()
	initialized, static, geom := c.initialized, c.static, c.geom
	c.mu.Unlock()

	if !initialized {
		return costmap.Rect{}
	}
	if !static {
		c.warnRolling()
		return costmap.Rect{}
	}

	r := c.region.Load()
	if r == nil {
		return costmap.Rect{}
	}
	if mg := master.Geometry(); !mg.SameSize(geom) {
		c.log.Debug("master geometry differs from layer geometry, skipping update",
			zap.Stringer("master", mg), zap.Stringer("layer", geom))
		return costmap.Rect{}
	}

	return overlay.Apply(r.grid, master, rect, c.policy)
}

func (c *Controller) warnRolling() {
	c.rollingWarns.Do(func() {
		c.log.Error("weighted region layer only supports static costmaps; updates disabled")
	})
}

// recordParam points a writable file param at name and returns the param
// value as of this request.
func (c *Controller) recordParam(name string) string {
	if !c.opts.EnableParamUpdates {
		return ""
	}
	if ps, ok := c.opts.Params.(ParamSetter); ok && c.opts.ParameterName != "" {
		ps.SetParam(c.opts.ParameterName, name)
		return name
	}
	v, _ := c.lookupParam()
	return v
}

func (c *Controller) lookupParam() (string, bool) {
	if c.opts.Params == nil || c.opts.ParameterName == "" {
		return "", false
	}
	return c.opts.Params.Param(c.opts.ParameterName)
}

func (c *Controller) path(name string) string {
	return ResolvePath(c.opts.RegionDir, name)
}

// ResolvePath maps a logical region name to a file path under dir. Absolute
// names and an empty dir leave the name as is, apart from the extension.
func ResolvePath(dir, name string) string {
	p := formats.WRLFileName(name)
	if !filepath.IsAbs(p) && dir != "" {
		p = filepath.Join(dir, p)
	}
	return p
}

// decode reads and validates a region file against geom.
func (c *Controller) decode(path string, geom costmap.Geometry) (*formats.WRL, error) {
	if _, err := c.fs.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("%w: %v", ErrFileUnreadable, err)
	}

	data, err := c.fs.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFileUnreadable, err)
	}

	grid, err := formats.ParseWRL(data)
	switch {
	case errors.Is(err, formats.ErrTruncatedWRLData):
		return nil, fmt.Errorf("%w: %w", ErrDecodeTruncated, err)
	case errors.Is(err, formats.ErrMalformedWRL):
		return nil, fmt.Errorf("%w: %w", ErrDecodeMalformed, err)
	case err != nil:
		return nil, fmt.Errorf("%w: %w", ErrFileUnreadable, err)
	}

	if int(grid.Width) != geom.Width || int(grid.Height) != geom.Height {
		return nil, fmt.Errorf("%w: file is %dx%d, map is %dx%d",
			ErrGeometryMismatch, grid.Width, grid.Height, geom.Width, geom.Height)
	}
	if grid.Resolution != geom.Resolution || grid.OriginX != geom.OriginX || grid.OriginY != geom.OriginY {
		c.log.Warn("region resolution or origin differs from map",
			zap.String("file", path),
			zap.Float64("resolution", grid.Resolution),
			zap.Float64("map_resolution", geom.Resolution))
	}
	return grid, nil
}
