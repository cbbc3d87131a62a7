package types

import "maps"

// World sources selectable for a launch.
const (
	WorldSourceBackups  = "backups"
	WorldSourceNewWorld = "new-world"
)

// LatestGeneration selects the newest backup generation of a world.
const LatestGeneration = "@/latest"

// PendingConfig is the server-held launch configuration. A nil field means
// "unset, use the server default"; a PUT body carries only the fields to
// change.
type PendingConfig struct {
	MachineType        *string           `json:"machineType,omitempty"`
	ServerVersion      *string           `json:"serverVersion,omitempty"`
	GuessServerVersion *bool             `json:"guessServerVersion,omitempty"`
	WorldSource        *string           `json:"worldSource,omitempty"`
	WorldName          *string           `json:"worldName,omitempty"`
	BackupGen          *string           `json:"backupGen,omitempty"`
	LevelType          *string           `json:"levelType,omitempty"`
	Seed               *string           `json:"seed,omitempty"`
	Motd               *string           `json:"motd,omitempty"`
	ServerPropOverride map[string]string `json:"serverPropOverride,omitempty"`
	InactiveTimeout    *int              `json:"inactiveTimeout,omitempty"`
}

// ConfigAndValidity is the response of every config read and write.
type ConfigAndValidity struct {
	IsValid bool          `json:"isValid"`
	Config  PendingConfig `json:"config"`
}

// Clone returns a deep copy.
func (c PendingConfig) Clone() PendingConfig {
	out := c
	out.MachineType = cloneP(c.MachineType)
	out.ServerVersion = cloneP(c.ServerVersion)
	out.GuessServerVersion = cloneP(c.GuessServerVersion)
	out.WorldSource = cloneP(c.WorldSource)
	out.WorldName = cloneP(c.WorldName)
	out.BackupGen = cloneP(c.BackupGen)
	out.LevelType = cloneP(c.LevelType)
	out.Seed = cloneP(c.Seed)
	out.Motd = cloneP(c.Motd)
	out.InactiveTimeout = cloneP(c.InactiveTimeout)
	if c.ServerPropOverride != nil {
		out.ServerPropOverride = maps.Clone(c.ServerPropOverride)
	}
	return out
}

// Merge overlays every non-nil field of partial onto c and returns the
// result. c is not modified.
func (c PendingConfig) Merge(partial PendingConfig) PendingConfig {
	out := c.Clone()
	setIf(&out.MachineType, partial.MachineType)
	setIf(&out.ServerVersion, partial.ServerVersion)
	setIf(&out.GuessServerVersion, partial.GuessServerVersion)
	setIf(&out.WorldSource, partial.WorldSource)
	setIf(&out.WorldName, partial.WorldName)
	setIf(&out.BackupGen, partial.BackupGen)
	setIf(&out.LevelType, partial.LevelType)
	setIf(&out.Seed, partial.Seed)
	setIf(&out.Motd, partial.Motd)
	setIf(&out.InactiveTimeout, partial.InactiveTimeout)
	if partial.ServerPropOverride != nil {
		out.ServerPropOverride = maps.Clone(partial.ServerPropOverride)
	}
	return out
}

// Get returns the value behind p, or def when p is nil.
func Get[T any](p *T, def T) T {
	if p == nil {
		return def
	}
	return *p
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}

func cloneP[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func setIf[T any](dst **T, src *T) {
	if src != nil {
		*dst = cloneP(src)
	}
}
