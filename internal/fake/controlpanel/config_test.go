package controlpanel

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kofuk/premises-sub000/internal/shared/types"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		in    types.PendingConfig
		valid bool
		check func(t *testing.T, cfg types.PendingConfig)
	}{
		{
			name: "complete backups config",
			in: types.PendingConfig{
				MachineType:   types.Ptr("4g"),
				ServerVersion: types.Ptr("1.21.4"),
				WorldSource:   types.Ptr(types.WorldSourceBackups),
				WorldName:     types.Ptr("main"),
				BackupGen:     types.Ptr(types.LatestGeneration),
				LevelType:     types.Ptr("flat"),
				Seed:          types.Ptr("42"),
			},
			valid: true,
			check: func(t *testing.T, cfg types.PendingConfig) {
				assert.Nil(t, cfg.LevelType)
				assert.Nil(t, cfg.Seed)
				assert.Equal(t, false, *cfg.GuessServerVersion)
			},
		},
		{
			name: "complete new world config",
			in: types.PendingConfig{
				MachineType:   types.Ptr("8g"),
				ServerVersion: types.Ptr("1.21.4"),
				WorldSource:   types.Ptr(types.WorldSourceNewWorld),
				WorldName:     types.Ptr("fresh"),
				BackupGen:     types.Ptr(types.LatestGeneration),
				LevelType:     types.Ptr("amplified"),
				Seed:          types.Ptr(""),
			},
			valid: true,
			check: func(t *testing.T, cfg types.PendingConfig) {
				assert.Nil(t, cfg.BackupGen)
				assert.Nil(t, cfg.Seed)
			},
		},
		{
			name:  "unknown machine type is cleared",
			in:    types.PendingConfig{MachineType: types.Ptr("3g")},
			valid: false,
			check: func(t *testing.T, cfg types.PendingConfig) {
				assert.Nil(t, cfg.MachineType)
			},
		},
		{
			name: "empty world name is cleared",
			in: types.PendingConfig{
				MachineType:   types.Ptr("4g"),
				ServerVersion: types.Ptr("1.21.4"),
				WorldSource:   types.Ptr(types.WorldSourceBackups),
				WorldName:     types.Ptr(""),
				BackupGen:     types.Ptr(types.LatestGeneration),
			},
			valid: false,
			check: func(t *testing.T, cfg types.PendingConfig) {
				assert.Nil(t, cfg.WorldName)
			},
		},
		{
			name: "unknown level type is cleared",
			in: types.PendingConfig{
				MachineType:   types.Ptr("4g"),
				ServerVersion: types.Ptr("1.21.4"),
				WorldSource:   types.Ptr(types.WorldSourceNewWorld),
				WorldName:     types.Ptr("w"),
				LevelType:     types.Ptr("caves"),
			},
			valid: false,
			check: func(t *testing.T, cfg types.PendingConfig) {
				assert.Nil(t, cfg.LevelType)
			},
		},
		{
			name: "missing world source",
			in: types.PendingConfig{
				MachineType:   types.Ptr("4g"),
				ServerVersion: types.Ptr("1.21.4"),
				WorldName:     types.Ptr("w"),
			},
			valid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.in.Clone()
			assert.Equal(t, tt.valid, Normalize(&cfg))
			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestLaunchSteps(t *testing.T) {
	steps := launchSteps(types.PendingConfig{WorldSource: types.Ptr(types.WorldSourceBackups)})
	last := steps[len(steps)-1]
	assert.Equal(t, types.EventRunning, last.EventCode)
	assert.Equal(t, types.PageRunning, *last.PageCode)
	assert.Contains(t, steps, status(types.EventWorldDownload, types.PageLoading))

	fresh := launchSteps(types.PendingConfig{WorldSource: types.Ptr(types.WorldSourceNewWorld)})
	assert.NotContains(t, fresh, status(types.EventWorldDownload, types.PageLoading))
}

func TestAllowedPassword(t *testing.T) {
	assert.True(t, AllowedPassword("abcdefg1"))
	assert.False(t, AllowedPassword("abc1"))
	assert.False(t, AllowedPassword("abcdefgh"))
	assert.False(t, AllowedPassword("12345678"))
}
