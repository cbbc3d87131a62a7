package controlpanel

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kofuk/premises-sub000/internal/shared/types"
)

var (
	machineTypes = []string{"2g", "4g", "8g", "16g", "32g", "64g"}
	levelTypes   = []string{"default", "flat", "largeBiomes", "amplified", "buffet"}
)

func defaultConfig() types.PendingConfig {
	return types.PendingConfig{
		MachineType:        types.Ptr("4g"),
		GuessServerVersion: types.Ptr(true),
		InactiveTimeout:    types.Ptr(30),
	}
}

// Normalize validates cfg in place the way the control panel does before
// storing it: out-of-range values are cleared and fields irrelevant to the
// chosen world source are dropped. It reports whether cfg can be launched.
func Normalize(cfg *types.PendingConfig) bool {
	valid := true

	if cfg.MachineType != nil && !slices.Contains(machineTypes, *cfg.MachineType) {
		cfg.MachineType = nil
	}
	if cfg.MachineType == nil {
		valid = false
	}

	if cfg.ServerVersion != nil && *cfg.ServerVersion == "" {
		cfg.ServerVersion = nil
	}
	if cfg.ServerVersion == nil {
		valid = false
	}
	if cfg.GuessServerVersion == nil {
		cfg.GuessServerVersion = types.Ptr(false)
	}

	if cfg.WorldName != nil && *cfg.WorldName == "" {
		cfg.WorldName = nil
	}
	if cfg.WorldName == nil {
		valid = false
	}

	switch types.Get(cfg.WorldSource, "") {
	case types.WorldSourceBackups:
		if cfg.BackupGen == nil || *cfg.BackupGen == "" {
			cfg.BackupGen = nil
			valid = false
		}
		cfg.LevelType = nil
		cfg.Seed = nil
	case types.WorldSourceNewWorld:
		cfg.BackupGen = nil
		if cfg.LevelType != nil && !slices.Contains(levelTypes, *cfg.LevelType) {
			cfg.LevelType = nil
		}
		if cfg.LevelType == nil {
			valid = false
		}
		if cfg.Seed != nil && *cfg.Seed == "" {
			cfg.Seed = nil
		}
	default:
		cfg.WorldSource = nil
		valid = false
	}

	return valid
}

// current returns the stored config, initializing it on first use.
// Callers hold s.mu.
func (s *Server) current() *types.PendingConfig {
	if s.config == nil {
		cfg := defaultConfig()
		s.config = &cfg
	}
	return s.config
}

func (s *Server) handleGetConfig(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := s.current()
	valid := Normalize(cfg)
	ok(c, http.StatusOK, types.ConfigAndValidity{IsValid: valid, Config: cfg.Clone()})
}

func (s *Server) handleUpdateConfig(c *gin.Context) {
	var partial types.PendingConfig
	if err := c.ShouldBindJSON(&partial); err != nil {
		fail(c, http.StatusBadRequest, types.ErrBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	merged := s.current().Merge(partial)
	valid := Normalize(&merged)
	s.config = &merged
	ok(c, http.StatusOK, types.ConfigAndValidity{IsValid: valid, Config: merged.Clone()})
}

func (s *Server) launchable() bool {
	cfg := s.current().Clone()
	return Normalize(&cfg)
}

func (s *Server) handleLaunch(c *gin.Context) {
	s.mu.Lock()
	if !s.launchable() {
		s.mu.Unlock()
		fail(c, http.StatusBadRequest, types.ErrInvalidConfig)
		return
	}
	if s.running {
		s.mu.Unlock()
		fail(c, http.StatusConflict, types.ErrServerRunning)
		return
	}
	s.running = true
	s.commands = append(s.commands, "launch")
	cfg := s.config.Clone()
	s.mu.Unlock()

	s.log.Info("launch accepted",
		zap.String("machine_type", types.Get(cfg.MachineType, "")),
		zap.String("world", types.Get(cfg.WorldName, "")))

	ok(c, http.StatusAccepted, nil)
	s.simulate(launchSteps(cfg), func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.worldInfo = types.WorldInfo{
			Version:   types.Get(cfg.ServerVersion, ""),
			WorldName: types.Get(cfg.WorldName, ""),
			Seed:      types.Get(cfg.Seed, ""),
		}
	})
}

func (s *Server) handleReconfigure(c *gin.Context) {
	s.mu.Lock()
	if !s.launchable() {
		s.mu.Unlock()
		fail(c, http.StatusBadRequest, types.ErrInvalidConfig)
		return
	}
	if !s.running {
		s.mu.Unlock()
		fail(c, http.StatusConflict, types.ErrServerNotRunning)
		return
	}
	s.commands = append(s.commands, "reconfigure")
	cfg := s.config.Clone()
	s.mu.Unlock()

	ok(c, http.StatusAccepted, nil)
	s.simulate(append([]types.StatusEvent{status(types.EventStopping, types.PageLoading)}, launchSteps(cfg)[1:]...), nil)
}

func (s *Server) handleStop(c *gin.Context) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		fail(c, http.StatusConflict, types.ErrServerNotRunning)
		return
	}
	s.commands = append(s.commands, "stop")
	s.mu.Unlock()

	ok(c, http.StatusAccepted, nil)
	s.simulate([]types.StatusEvent{
		status(types.EventStopping, types.PageLoading),
		status(types.EventStopRunner, types.PageLoading),
		status(types.EventStopped, types.PageLaunch),
	}, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.running = false
		s.worldInfo = types.WorldInfo{}
	})
}

func status(code types.EventCode, page types.PageCode) types.StatusEvent {
	return types.StatusEvent{EventCode: code, PageCode: types.Ptr(page)}
}

func launchSteps(cfg types.PendingConfig) []types.StatusEvent {
	steps := []types.StatusEvent{
		status(types.EventCreateRunner, types.PageLoading),
		status(types.EventWaitConn, types.PageLoading),
		status(types.EventGameDownload, types.PageLoading),
	}
	if types.Get(cfg.WorldSource, "") == types.WorldSourceBackups {
		steps = append(steps, status(types.EventWorldDownload, types.PageLoading))
	}
	for _, progress := range []int{25, 75} {
		steps = append(steps, types.StatusEvent{
			EventCode: types.EventLoading,
			Extra:     &types.StatusExtra{Progress: progress},
			PageCode:  types.Ptr(types.PageLoading),
		})
	}
	return append(steps, status(types.EventRunning, types.PageRunning))
}
