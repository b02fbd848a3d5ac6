// wrltool is a CLI utility for creating, inspecting and previewing weighted
// region (.wrl) files.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"runtime"
	"strconv"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/Faultbox/weighted-region-layer/internal/config"
	"github.com/Faultbox/weighted-region-layer/internal/fsutil"
	"github.com/Faultbox/weighted-region-layer/internal/layer"
	"github.com/Faultbox/weighted-region-layer/internal/logger"
	"github.com/Faultbox/weighted-region-layer/internal/render"
	"github.com/Faultbox/weighted-region-layer/internal/service"
	"github.com/Faultbox/weighted-region-layer/pkg/costmap"
	"github.com/Faultbox/weighted-region-layer/pkg/formats"
)

// maxPreviewCells limits the size of the printed cost matrix.
const maxPreviewCells = 64 * 64

func main() {
	config.ParseFlags()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error: initializing logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	args := config.Args()
	if len(args) < 1 {
		printUsage(os.Stderr)
		os.Exit(1)
	}

	logger.Debug("running command", zap.String("command", args[0]), zap.String("config", cfg.Path()))
	if err := run(cfg, os.Stdout, args[0], args[1:]); err != nil {
		logger.Error("command failed", zap.String("command", args[0]), zap.Error(err))
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, out io.Writer, command string, args []string) error {
	switch command {
	case "info":
		return cmdInfo(cfg, out, args)
	case "create":
		return cmdCreate(cfg, out, args)
	case "set":
		return cmdSet(cfg, out, args)
	case "render":
		return cmdRender(cfg, out, args)
	case "verify":
		return cmdVerify(cfg, out, args)
	case "preview":
		return cmdPreview(cfg, out, args)
	case "copy", "cp":
		return cmdCopy(cfg, out, args)
	case "config":
		return cmdConfig(cfg, out, args)
	case "help", "-h", "--help":
		printUsage(out)
		return nil
	default:
		printUsage(os.Stderr)
		return fmt.Errorf("unknown command: %s", command)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `wrltool - weighted region file utility

Usage:
  wrltool [global flags] <command> [options]

Global flags:
  -config <file>     Config file (default: ./wrl.yaml or user config dir)
  -region-dir <dir>  Base directory for region names
  -debug             Debug logging
  -log-file <file>   Rotated JSON log file

Commands:
  info <name>                                Show header and weight statistics
  create [options] <name>                    Create a uniform region file
  set [-overwrite] <name> <x> <y> <weight>   Change one cell weight
  render <name> <out.png>                    Render weights as a heatmap
  verify <name>...                           Decode files and report failures
  preview [-base N] <name>                   Apply the region to a uniform costmap
  copy [-overwrite] <src> <dst>              Load and save through the layer service
  config [-save [path]]                      Print or save the effective config

Examples:
  wrltool create -width 40 -height 30 -resolution 0.05 warehouse
  wrltool set -overwrite warehouse 12 7 80
  wrltool -region-dir /srv/regions preview -base 10 warehouse`)
}

func regionPath(cfg *config.Config, name string) string {
	return layer.ResolvePath(cfg.Layer.RegionDir, name)
}

func newFlagSet(name string, out io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(out)
	return fs
}

func cmdInfo(cfg *config.Config, out io.Writer, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: wrltool info <name>")
	}

	path := regionPath(cfg, args[0])
	w, err := formats.ParseWRLFile(path)
	if err != nil {
		return err
	}

	policy := cfg.Cost.Policy()
	stats := w.Stats(cfg.Cost.NeutralWeight)
	minX, minY, maxX, maxY := w.WorldExtent()

	var costed int
	for _, v := range w.Weights {
		if policy.Cost(v) > costmap.FreeSpace {
			costed++
		}
	}

	fmt.Fprintf(out, "File:       %s\n", path)
	fmt.Fprintf(out, "Version:    %s\n", w.Version)
	fmt.Fprintf(out, "Size:       %d x %d (%d cells)\n", w.Width, w.Height, w.CellCount())
	fmt.Fprintf(out, "Resolution: %g m/cell\n", w.Resolution)
	fmt.Fprintf(out, "Extent:     (%g, %g) - (%g, %g)\n", minX, minY, maxX, maxY)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Weights:")
	fmt.Fprintf(out, "  min      %g\n", stats.Min)
	fmt.Fprintf(out, "  max      %g\n", stats.Max)
	fmt.Fprintf(out, "  mean     %.4f\n", stats.Mean)
	fmt.Fprintf(out, "  stddev   %.4f\n", stats.StdDev)
	fmt.Fprintf(out, "  weighted %d\n", stats.Weighted)
	fmt.Fprintf(out, "  costed   %d\n", costed)
	return nil
}

func cmdCreate(cfg *config.Config, out io.Writer, args []string) error {
	fs := newFlagSet("create", out)
	width := fs.Uint("width", 0, "Grid width in cells")
	height := fs.Uint("height", 0, "Grid height in cells")
	resolution := fs.Float64("resolution", 0.05, "Meters per cell")
	originX := fs.Float64("origin-x", 0, "World X of the lower-left corner")
	originY := fs.Float64("origin-y", 0, "World Y of the lower-left corner")
	fill := fs.Float64("fill", 0, "Initial weight of every cell")
	overwrite := fs.Bool("overwrite", false, "Replace an existing file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return errors.New("usage: wrltool create [options] <name>")
	}
	if *width > math.MaxUint32 || *height > math.MaxUint32 {
		return fmt.Errorf("size %dx%d exceeds %d cells per side", *width, *height, uint64(math.MaxUint32))
	}

	w, err := formats.NewWRL(uint32(*width), uint32(*height), *resolution, *originX, *originY, *fill)
	if err != nil {
		return err
	}

	path := regionPath(cfg, fs.Arg(0))
	if err := writeRegion(path, w, *overwrite); err != nil {
		return err
	}
	fmt.Fprintf(out, "Created %s (%dx%d)\n", path, w.Width, w.Height)
	return nil
}

func cmdSet(cfg *config.Config, out io.Writer, args []string) error {
	fs := newFlagSet("set", out)
	overwrite := fs.Bool("overwrite", false, "Allow rewriting the file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 4 {
		return errors.New("usage: wrltool set [-overwrite] <name> <x> <y> <weight>")
	}

	x, err := strconv.Atoi(fs.Arg(1))
	if err != nil {
		return fmt.Errorf("invalid x: %w", err)
	}
	y, err := strconv.Atoi(fs.Arg(2))
	if err != nil {
		return fmt.Errorf("invalid y: %w", err)
	}
	weight, err := strconv.ParseFloat(fs.Arg(3), 64)
	if err != nil {
		return fmt.Errorf("invalid weight: %w", err)
	}

	path := regionPath(cfg, fs.Arg(0))
	w, err := formats.ParseWRLFile(path)
	if err != nil {
		return err
	}

	old, _ := w.Weight(x, y)
	if err := w.SetWeight(x, y, weight); err != nil {
		return err
	}
	if err := writeRegion(path, w, *overwrite); err != nil {
		return err
	}
	fmt.Fprintf(out, "%s (%d,%d): %g -> %g\n", path, x, y, old, weight)
	return nil
}

// writeRegion encodes w and writes it atomically.
func writeRegion(path string, w *formats.WRL, overwrite bool) error {
	fsys := fsutil.OSFileSystem{}
	if fsutil.Exists(fsys, path) && !overwrite {
		return fmt.Errorf("%w: %s (use -overwrite)", layer.ErrAlreadyExists, path)
	}
	data, err := w.Encode()
	if err != nil {
		return err
	}
	return fsutil.WriteFileAtomic(fsys, path, data, 0644)
}

func cmdRender(cfg *config.Config, out io.Writer, args []string) error {
	if len(args) < 2 {
		return errors.New("usage: wrltool render <name> <out.png>")
	}

	path := regionPath(cfg, args[0])
	w, err := formats.ParseWRLFile(path)
	if err != nil {
		return err
	}
	if err := render.Heatmap(w, args[0], args[1]); err != nil {
		return err
	}
	fmt.Fprintf(out, "Rendered %s to %s\n", path, args[1])
	return nil
}

type verifyResult struct {
	path string
	kind string
	err  error
}

func cmdVerify(cfg *config.Config, out io.Writer, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: wrltool verify <name>...")
	}

	results := make([]verifyResult, len(args))
	var g errgroup.Group
	g.SetLimit(runtime.NumCPU())
	for i, name := range args {
		g.Go(func() error {
			path := regionPath(cfg, name)
			_, err := formats.ParseWRLFile(path)
			results[i] = verifyResult{path: path, kind: decodeKind(err), err: err}
			return nil
		})
	}
	_ = g.Wait()

	var failed int
	for _, r := range results {
		if r.err != nil {
			failed++
			fmt.Fprintf(out, "FAIL %-18s %s: %v\n", r.kind, r.path, r.err)
			continue
		}
		fmt.Fprintf(out, "OK   %s\n", r.path)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(args))
	}
	return nil
}

// decodeKind names a codec failure the same way the layer does.
func decodeKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, formats.ErrTruncatedWRLData):
		return layer.ErrorKind(layer.ErrDecodeTruncated)
	case errors.Is(err, formats.ErrMalformedWRL):
		return layer.ErrorKind(layer.ErrDecodeMalformed)
	case errors.Is(err, os.ErrNotExist):
		return layer.ErrorKind(layer.ErrFileNotFound)
	default:
		return layer.ErrorKind(layer.ErrFileUnreadable)
	}
}

// newLayer builds a controller and service from cfg, initialized against the
// geometry stored in the named file.
func newLayer(cfg *config.Config, name string) (*layer.Controller, *service.Service, error) {
	path := regionPath(cfg, name)
	w, err := formats.ParseWRLFile(path)
	if err != nil {
		return nil, nil, err
	}

	opts := layer.OptionsFromConfig(cfg)
	opts.Enabled = true
	opts.FileName = config.NoFile
	opts.EnableParamUpdates = false
	ctrl := layer.New(opts)

	geom := costmap.Geometry{
		Width:      int(w.Width),
		Height:     int(w.Height),
		Resolution: w.Resolution,
		OriginX:    w.OriginX,
		OriginY:    w.OriginY,
	}
	if err := ctrl.Initialize(geom, false); err != nil {
		return nil, nil, err
	}

	svc := service.New(ctrl, service.Options{LegacyStatus: cfg.Layer.LegacyStatus})
	return ctrl, svc, nil
}

func cmdPreview(cfg *config.Config, out io.Writer, args []string) error {
	fs := newFlagSet("preview", out)
	base := fs.Uint("base", 0, "Uniform cost of the master grid (0-255)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return errors.New("usage: wrltool preview [-base N] <name>")
	}
	if *base > uint(costmap.NoInformation) {
		return fmt.Errorf("base cost %d out of range", *base)
	}

	name := fs.Arg(0)
	ctrl, svc, err := newLayer(cfg, name)
	if err != nil {
		return err
	}

	resp := svc.LoadFile(context.Background(), service.LoadFileRequest{Filename: name})
	if !resp.Status {
		return fmt.Errorf("load failed (%s): %s", resp.Kind, resp.Message)
	}

	master, err := costmap.New(ctrl.Geometry(), uint8(*base))
	if err != nil {
		return err
	}
	bounds := ctrl.BoundsExtension(costmap.EmptyBounds())
	touched := ctrl.ComputeUpdate(master, master.Geometry().Extent())

	geom := master.Geometry()
	fmt.Fprintf(out, "Geometry: %s\n", geom)
	fmt.Fprintf(out, "Bounds:   (%g, %g) - (%g, %g)\n", bounds.MinX, bounds.MinY, bounds.MaxX, bounds.MaxY)
	fmt.Fprintf(out, "Updated:  %s\n", touched)

	var raised int
	for _, c := range master.Costs() {
		if c > uint8(*base) {
			raised++
		}
	}
	fmt.Fprintf(out, "Raised:   %d cells\n", raised)

	if geom.Width*geom.Height > maxPreviewCells {
		return nil
	}
	fmt.Fprintln(out)
	// Top row first so the output reads like a map.
	for y := geom.Height - 1; y >= 0; y-- {
		for x := 0; x < geom.Width; x++ {
			fmt.Fprintf(out, "%4d", master.Cost(x, y))
		}
		fmt.Fprintln(out)
	}
	return nil
}

func cmdCopy(cfg *config.Config, out io.Writer, args []string) error {
	fs := newFlagSet("copy", out)
	overwrite := fs.Bool("overwrite", false, "Replace an existing destination")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 2 {
		return errors.New("usage: wrltool copy [-overwrite] <src> <dst>")
	}

	src, dst := fs.Arg(0), fs.Arg(1)
	_, svc, err := newLayer(cfg, src)
	if err != nil {
		return err
	}

	ctx := context.Background()
	if resp := svc.LoadFile(ctx, service.LoadFileRequest{Filename: src}); !resp.Status {
		return fmt.Errorf("load failed (%s): %s", resp.Kind, resp.Message)
	}
	resp := svc.SaveFile(ctx, service.SaveFileRequest{Filename: dst, Overwrite: *overwrite})
	if !resp.Status {
		return fmt.Errorf("save failed (%s): %s", resp.Kind, resp.Message)
	}
	fmt.Fprintf(out, "Copied %s to %s\n", regionPath(cfg, src), regionPath(cfg, dst))
	return nil
}

func cmdConfig(cfg *config.Config, out io.Writer, args []string) error {
	fs := newFlagSet("config", out)
	save := fs.Bool("save", false, "Save the effective config")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *save {
		if fs.NArg() > 0 {
			if err := cfg.SaveTo(fs.Arg(0)); err != nil {
				return err
			}
			fmt.Fprintf(out, "Saved config to %s\n", fs.Arg(0))
			return nil
		}
		if err := cfg.Save(); err != nil {
			return err
		}
		fmt.Fprintf(out, "Saved config to %s\n", config.DefaultPath())
		return nil
	}

	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return err
	}
	return enc.Close()
}
