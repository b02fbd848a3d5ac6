package config

import (
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/weighted-region-layer/internal/logger"
)

// FileParams serves the params section of a config and picks up edits to
// the config file made while running. The file is re-read on lookup only
// when its modification time has moved, so values set in memory survive
// until the file itself changes.
type FileParams struct {
	cfg  *Config
	path string

	mu      sync.Mutex
	modTime time.Time
}

// ParamSource returns the parameter source for c. Without a backing file it
// serves the in-memory params only.
func (c *Config) ParamSource() *FileParams {
	p := &FileParams{cfg: c, path: c.path}
	if p.path != "" {
		if info, err := os.Stat(p.path); err == nil {
			p.modTime = info.ModTime()
		}
	}
	return p
}

// Param returns the current value of name.
func (p *FileParams) Param(name string) (string, bool) {
	p.refresh()
	return p.cfg.Param(name)
}

// SetParam records value for name in memory.
func (p *FileParams) SetParam(name, value string) {
	p.cfg.SetParam(name, value)
}

func (p *FileParams) refresh() {
	if p.path == "" {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	info, err := os.Stat(p.path)
	if err != nil {
		logger.Warn("config file unavailable, keeping params", zap.String("path", p.path), zap.Error(err))
		return
	}
	if !info.ModTime().After(p.modTime) {
		return
	}
	if err := p.cfg.ReloadParams(p.path); err != nil {
		logger.Warn("failed to reload params", zap.String("path", p.path), zap.Error(err))
		return
	}
	p.modTime = info.ModTime()
	logger.Info("params reloaded", zap.String("path", p.path))
}
