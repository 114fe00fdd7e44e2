package telemetry

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"sync"

	"github.com/grafana/pyroscope-go"
	"go.uber.org/zap"
)

// ProfilerConfig configures continuous profiling through Pyroscope
type ProfilerConfig struct {
	Enabled         bool
	ServerAddress   string // e.g. "http://pyroscope:4040"
	ApplicationName string
	// Tags are attached to every profile, next to the host name
	Tags map[string]string
	// ProfileGoroutines and ProfileAllocations add to the CPU and heap profiles
	ProfileGoroutines  bool
	ProfileAllocations bool
}

func (c ProfilerConfig) validate() error {
	if c.ServerAddress == "" {
		return errors.New("profiler server address is required when profiling is enabled")
	}
	if c.ApplicationName == "" {
		return errors.New("profiler application name is required when profiling is enabled")
	}
	return nil
}

// profileTypes lists the collected profiles. CPU and in-use heap are always on.
func (c ProfilerConfig) profileTypes() []pyroscope.ProfileType {
	types := []pyroscope.ProfileType{pyroscope.ProfileCPU, pyroscope.ProfileInuseSpace}
	if c.ProfileAllocations {
		types = append(types, pyroscope.ProfileAllocObjects, pyroscope.ProfileAllocSpace)
	}
	if c.ProfileGoroutines {
		types = append(types, pyroscope.ProfileGoroutines)
	}
	return types
}

func (c ProfilerConfig) tags() map[string]string {
	tags := make(map[string]string, len(c.Tags)+1)
	if hostname, err := os.Hostname(); err == nil && hostname != "" {
		tags["hostname"] = hostname
	}
	maps.Copy(tags, c.Tags)
	return tags
}

// Profiler is a running Pyroscope session. The zero value and a disabled
// profiler are no-ops.
type Profiler struct {
	session  *pyroscope.Profiler
	logger   *zap.Logger
	stopOnce sync.Once
	stopErr  error
}

// NewProfiler starts profiling when cfg.Enabled is set
func NewProfiler(cfg ProfilerConfig, logger *zap.Logger) (*Profiler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Profiler{logger: logger}
	if !cfg.Enabled {
		logger.Info("Continuous profiling disabled")
		return p, nil
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	session, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: cfg.ApplicationName,
		ServerAddress:   cfg.ServerAddress,
		Logger:          logger.Named("pyroscope").Sugar(),
		Tags:            cfg.tags(),
		ProfileTypes:    cfg.profileTypes(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start Pyroscope profiler: %w", err)
	}
	p.session = session

	logger.Info("Pyroscope profiler started",
		zap.String("server_address", cfg.ServerAddress),
		zap.String("application_name", cfg.ApplicationName),
	)
	return p, nil
}

// IsEnabled reports whether a profiling session is running
func (p *Profiler) IsEnabled() bool {
	return p != nil && p.session != nil
}

// Stop flushes pending profiles. Later calls return the first result.
func (p *Profiler) Stop() error {
	if !p.IsEnabled() {
		return nil
	}
	p.stopOnce.Do(func() {
		if err := p.session.Stop(); err != nil {
			p.stopErr = fmt.Errorf("failed to stop profiler: %w", err)
			return
		}
		p.logger.Info("Pyroscope profiler stopped")
	})
	return p.stopErr
}
