package cli

import (
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"github.com/kofuk/premises-sub000/internal/domain/wizard"
	"github.com/kofuk/premises-sub000/internal/shared/types"
)

func newConfigCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or edit the pending launch config",
	}
	cmd.AddCommand(newConfigShowCmd(rt), newConfigSetCmd(rt))
	return cmd
}

func newConfigShowCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the pending config and whether it can be launched",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := rt.requireLogin(); err != nil {
				return err
			}
			store := rt.app.NewConfigStore()
			defer store.Close()

			v, err := store.Read(cmd.Context())
			if err != nil {
				return err
			}
			return rt.printConfig(v)
		},
	}
}

func (rt *runtime) printConfig(v types.ConfigAndValidity) error {
	data, err := sonic.ConfigStd.MarshalIndent(v.Config, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	rt.printf("%s\n", data)
	if v.IsValid {
		rt.printf("valid: ready to launch\n")
	} else {
		rt.printf("invalid: complete the config before launching\n")
	}
	return nil
}

type configFlags struct {
	machineType     string
	serverVersion   string
	guess           bool
	worldSource     string
	worldName       string
	backupGen       string
	levelType       string
	seed            string
	motd            string
	inactiveTimeout int
	props           map[string]string
}

func newConfigSetCmd(rt *runtime) *cobra.Command {
	var f configFlags

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Change fields of the pending config",
		Long: `Change only the given fields. The server merges them into the pending
config and answers with the result.

Switching --world-source clears the world name and selects the latest
backup generation before the other fields are applied.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := rt.requireLogin(); err != nil {
				return err
			}
			ctx := cmd.Context()
			store := rt.app.NewConfigStore()
			defer store.Close()

			current, err := store.Read(ctx)
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			var partial types.PendingConfig
			if flags.Changed("world-source") && f.worldSource != wizard.WorldSource(current.Config) {
				partial = wizard.BranchReset(f.worldSource)
			}
			set := func(name string, dst **string, v string) {
				if flags.Changed(name) {
					*dst = types.Ptr(v)
				}
			}
			set("machine-type", &partial.MachineType, f.machineType)
			set("server-version", &partial.ServerVersion, f.serverVersion)
			set("world-source", &partial.WorldSource, f.worldSource)
			set("world", &partial.WorldName, f.worldName)
			set("generation", &partial.BackupGen, f.backupGen)
			set("level-type", &partial.LevelType, f.levelType)
			set("seed", &partial.Seed, f.seed)
			set("motd", &partial.Motd, f.motd)
			if flags.Changed("guess-version") {
				partial.GuessServerVersion = types.Ptr(f.guess)
			}
			if flags.Changed("inactive-timeout") {
				partial.InactiveTimeout = types.Ptr(f.inactiveTimeout)
			}
			if flags.Changed("prop") {
				partial.ServerPropOverride = f.props
			}

			v, err := store.Write(ctx, partial)
			if err != nil {
				return err
			}
			return rt.printConfig(v)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.machineType, "machine-type", "", "machine size, e.g. 4g")
	flags.StringVar(&f.serverVersion, "server-version", "", "game server version")
	flags.BoolVar(&f.guess, "guess-version", false, "let the server use the version recorded in the world")
	flags.StringVar(&f.worldSource, "world-source", "", "backups or new-world")
	flags.StringVar(&f.worldName, "world", "", "world name")
	flags.StringVar(&f.backupGen, "generation", "", "backup generation id ("+types.LatestGeneration+" for the newest)")
	flags.StringVar(&f.levelType, "level-type", "", "generator for a new world")
	flags.StringVar(&f.seed, "seed", "", "seed for a new world")
	flags.StringVar(&f.motd, "motd", "", "message of the day")
	flags.IntVar(&f.inactiveTimeout, "inactive-timeout", 0, "minutes without players before the server stops")
	flags.StringToStringVar(&f.props, "prop", nil, "server.properties override (key=value, repeatable)")
	return cmd
}

func newWizardCmd(rt *runtime) *cobra.Command {
	var reconfigure bool

	cmd := &cobra.Command{
		Use:   "wizard",
		Short: "Walk through the launch config step by step",
		Long: `Ask for each setting in turn, then launch the server.

Press enter to keep the shown value. Answer "back" to return to the
previous step.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			mode := wizard.ModeLaunch
			if reconfigure {
				mode = wizard.ModeReconfigure
			}

			w, release, err := rt.app.NewWizard(ctx, mode)
			if err != nil {
				return err
			}
			defer release()

			for !w.Done() {
				step, _ := w.Focused()
				back, err := rt.askStep(cmd, w, step)
				if err != nil {
					return err
				}
				if back {
					if cur := w.Current(); cur > 0 {
						if err := w.RequestFocus(cur - 1); err != nil {
							return err
						}
					}
					continue
				}
				if err := w.NextStep(); err != nil {
					return err
				}
			}

			if err := rt.printConfig(w.Config()); err != nil {
				return err
			}
			label := rt.text("launch_server")
			if mode == wizard.ModeReconfigure {
				label = rt.text("relaunch_server")
			}
			ok, err := rt.prompt.confirm(label + "?")
			if err != nil || !ok {
				return err
			}
			if err := w.Submit(ctx); err != nil {
				return err
			}
			rt.printf("%s accepted\n", label)
			return nil
		},
	}

	cmd.Flags().BoolVar(&reconfigure, "reconfigure", false, "restart the running server instead of launching")
	return cmd
}

const answerBack = "back"

// askStep prompts for the fields of one step and writes them. It reports
// true when the user asked to go back instead.
func (rt *runtime) askStep(cmd *cobra.Command, w *wizard.Wizard, step wizard.Step) (bool, error) {
	ctx := cmd.Context()
	cfg := w.Config().Config
	rt.printf("\n[%d/%d] %s\n", w.Current()+1, w.StepCount(), rt.text(step.TitleKey()))

	ask := func(label, def string) (string, bool, error) {
		answer, err := rt.prompt.ask(label, def)
		if err != nil {
			return "", false, err
		}
		return answer, strings.EqualFold(answer, answerBack), nil
	}

	switch step {
	case wizard.StepMachineType:
		answer, back, err := ask(rt.text("config_machine_type"), types.Get(cfg.MachineType, ""))
		if back || err != nil {
			return back, err
		}
		return false, w.SetMachineType(ctx, answer)

	case wizard.StepServerVersion:
		if versions, err := rt.app.API().MCVersions(ctx); err == nil {
			for _, v := range versions {
				if v.IsStable {
					rt.printf("  %s (%s)\n", v.Name, v.ReleaseDate)
				}
			}
		}
		answer, back, err := ask(rt.text("config_server_version"), types.Get(cfg.ServerVersion, ""))
		if back || err != nil {
			return back, err
		}
		guess, err := rt.prompt.confirm("Use the version recorded in the world")
		if err != nil {
			return false, err
		}
		return false, w.SetServerVersion(ctx, answer, guess)

	case wizard.StepWorldSource:
		rt.printf("  %s: %s\n  %s: %s\n",
			types.WorldSourceBackups, rt.text("use_backups"),
			types.WorldSourceNewWorld, rt.text("generate_world"))
		answer, back, err := ask(rt.text("config_world_source"), wizard.WorldSource(cfg))
		if back || err != nil {
			return back, err
		}
		return false, w.SetWorldSource(ctx, answer)

	case wizard.StepChooseBackup:
		worlds, err := rt.app.API().ListWorlds(ctx)
		if err != nil {
			return false, err
		}
		if len(worlds) == 0 {
			rt.printf("  %s\n", rt.text("no_backups"))
		}
		for _, world := range worlds {
			rt.printf("  %s (%d)\n", world.WorldName, len(world.Generations))
		}
		name, back, err := ask(rt.text("config_choose_backup"), types.Get(cfg.WorldName, ""))
		if back || err != nil {
			return back, err
		}
		gen, back, err := ask(rt.text("backup_generation"), types.Get(cfg.BackupGen, types.LatestGeneration))
		if back || err != nil {
			return back, err
		}
		return false, w.ChooseBackup(ctx, name, gen)

	case wizard.StepWorldName:
		answer, back, err := ask(rt.text("config_world_name"), types.Get(cfg.WorldName, ""))
		if back || err != nil {
			return back, err
		}
		return false, w.SetWorldName(ctx, answer)

	case wizard.StepConfigureWorld:
		level, back, err := ask(rt.text("world_type"), types.Get(cfg.LevelType, "default"))
		if back || err != nil {
			return back, err
		}
		seed, back, err := ask(rt.text("seed"), types.Get(cfg.Seed, ""))
		if back || err != nil {
			return back, err
		}
		return false, w.ConfigureWorld(ctx, level, seed)

	default:
		return false, fmt.Errorf("unknown step %q", step)
	}
}
