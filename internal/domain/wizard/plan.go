package wizard

import "github.com/kofuk/premises-sub000/internal/shared/types"

// Step is one page of the configuration wizard.
type Step string

const (
	StepMachineType    Step = "machine-type"
	StepServerVersion  Step = "server-version"
	StepWorldSource    Step = "world-source"
	StepChooseBackup   Step = "choose-backup"
	StepWorldName      Step = "world-name"
	StepConfigureWorld Step = "configure-world"
)

// TitleKey is the catalog key of the step's title.
func (s Step) TitleKey() string {
	switch s {
	case StepMachineType:
		return "config_machine_type"
	case StepServerVersion:
		return "config_server_version"
	case StepWorldSource:
		return "config_world_source"
	case StepChooseBackup:
		return "config_choose_backup"
	case StepWorldName:
		return "config_world_name"
	case StepConfigureWorld:
		return "config_configure_world"
	default:
		return string(s)
	}
}

// WorldSource returns the effective world source of cfg. Unset means
// backups.
func WorldSource(cfg types.PendingConfig) string {
	return types.Get(cfg.WorldSource, types.WorldSourceBackups)
}

// Plan returns the ordered steps for cfg. The steps after the world source
// depend on it: an existing backup needs only a backup choice, a new world
// needs a name and generation settings.
func Plan(cfg types.PendingConfig) []Step {
	steps := []Step{StepMachineType, StepServerVersion, StepWorldSource}
	if WorldSource(cfg) == types.WorldSourceNewWorld {
		return append(steps, StepWorldName, StepConfigureWorld)
	}
	return append(steps, StepChooseBackup)
}

// BranchReset is the partial config written when the world source changes.
// It clears the fields that only make sense for the previous branch.
func BranchReset(source string) types.PendingConfig {
	return types.PendingConfig{
		WorldSource: types.Ptr(source),
		WorldName:   types.Ptr(""),
		BackupGen:   types.Ptr(types.LatestGeneration),
	}
}
