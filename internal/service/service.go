// Package service exposes the load and save operations of a region layer as
// request/response calls for a host transport.
package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/Faultbox/weighted-region-layer/internal/layer"
	"github.com/Faultbox/weighted-region-layer/internal/logger"
)

// LoadFileRequest asks the layer to load a region by logical name.
type LoadFileRequest struct {
	Filename string `json:"filename" yaml:"filename"`
}

// LoadFileResponse reports the outcome of a load.
type LoadFileResponse struct {
	Status  bool   `json:"status" yaml:"status"`
	Kind    string `json:"kind,omitempty" yaml:"kind,omitempty"`
	Message string `json:"message,omitempty" yaml:"message,omitempty"`
}

// SaveFileRequest asks the layer to write its live region.
type SaveFileRequest struct {
	Filename  string `json:"filename" yaml:"filename"`
	Overwrite bool   `json:"overwrite" yaml:"overwrite"`
}

// SaveFileResponse reports the outcome of a save.
type SaveFileResponse struct {
	Status  bool   `json:"status" yaml:"status"`
	Kind    string `json:"kind,omitempty" yaml:"kind,omitempty"`
	Message string `json:"message,omitempty" yaml:"message,omitempty"`
}

// Options configures a Service.
type Options struct {
	// LegacyStatus makes every response report Status=true, failures are
	// only logged. Kept for hosts that depend on that behavior.
	LegacyStatus bool
}

// Service handles load and save requests for one controller.
type Service struct {
	ctrl *layer.Controller
	opts Options
	log  *zap.Logger
}

// New creates a Service bound to ctrl.
func New(ctrl *layer.Controller, opts Options) *Service {
	return &Service{
		ctrl: ctrl,
		opts: opts,
		log:  logger.Named("weighted_region_service"),
	}
}

// LoadFile loads the named region. A failed load leaves the layer without a
// region.
func (s *Service) LoadFile(ctx context.Context, req LoadFileRequest) LoadFileResponse {
	s.log.Info("load file requested", zap.String("file", req.Filename))

	err := s.ctrl.LoadContext(ctx, req.Filename)
	if err == nil {
		return LoadFileResponse{Status: true, Message: "loaded " + req.Filename}
	}

	kind := layer.ErrorKind(err)
	s.log.Warn("load file failed", zap.String("file", req.Filename), zap.String("kind", kind), zap.Error(err))
	return LoadFileResponse{Status: s.opts.LegacyStatus, Kind: kind, Message: err.Error()}
}

// SaveFile writes the live region under the requested name.
func (s *Service) SaveFile(ctx context.Context, req SaveFileRequest) SaveFileResponse {
	if err := ctx.Err(); err != nil {
		return SaveFileResponse{Status: s.opts.LegacyStatus, Kind: layer.ErrorKind(err), Message: err.Error()}
	}
	s.log.Info("save file requested", zap.String("file", req.Filename), zap.Bool("overwrite", req.Overwrite))

	err := s.ctrl.Save(req.Filename, req.Overwrite)
	if err == nil {
		return SaveFileResponse{Status: true, Message: "saved " + req.Filename}
	}

	kind := layer.ErrorKind(err)
	s.log.Warn("save file failed", zap.String("file", req.Filename), zap.String("kind", kind), zap.Error(err))
	return SaveFileResponse{Status: s.opts.LegacyStatus, Kind: kind, Message: err.Error()}
}
