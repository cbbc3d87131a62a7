package cli

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/kofuk/premises-sub000/internal/api/client"
	"github.com/kofuk/premises-sub000/internal/app"
	"github.com/kofuk/premises-sub000/internal/domain/launch"
	"github.com/kofuk/premises-sub000/internal/domain/status"
	"github.com/kofuk/premises-sub000/internal/shared/types"
)

func newStatusCmd(rt *runtime) *cobra.Command {
	var wait time.Duration

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the server status once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			console, err := rt.app.MountConsole(ctx)
			if err != nil {
				return err
			}
			defer console.Close()

			updates, unsubscribe := console.Status().Subscribe()
			defer unsubscribe()

			if console.Status().Snapshot().Code == types.EventDisconnected {
				select {
				case <-updates:
				case <-time.After(wait):
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			rt.printStatus(console.Status())
			return nil
		},
	}

	cmd.Flags().DurationVar(&wait, "wait", 3*time.Second, "how long to wait for the first status")
	return cmd
}

func newWatchCmd(rt *runtime) *cobra.Command {
	var duration time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow status changes and notifications",
		Long: `Follow the server status until interrupted. Notifications are printed as
they arrive and a CPU usage summary is printed on exit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if duration > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, duration)
				defer cancel()
			}

			console, err := rt.app.MountConsole(ctx)
			if err != nil {
				return err
			}
			defer console.Close()
			return rt.watch(ctx, console)
		},
	}

	cmd.Flags().DurationVar(&duration, "for", 0, "stop after this long (0 runs until interrupted)")
	return cmd
}

func (rt *runtime) watch(ctx context.Context, console *app.Console) error {
	updates, unsubscribe := console.Status().Subscribe()
	defer unsubscribe()

	st := console.Status()
	rt.printStatusLine(st)
	for {
		select {
		case <-ctx.Done():
			rt.printCPU(st.Series().Summary())
			return nil
		case <-console.Done():
			rt.printCPU(st.Series().Summary())
			if err := console.Err(); err != nil {
				return fmt.Errorf("%w (run gamectl login)", err)
			}
			return nil
		case <-updates:
			rt.printStatusLine(st)
		case toast := <-rt.app.Toasts().C():
			prefix := "info"
			if toast.IsError {
				prefix = "error"
			}
			rt.printf("%s %s: %s\n", toast.At.Format(time.TimeOnly), prefix, toast.Message)
		}
	}
}

func (rt *runtime) printStatus(st *status.Store) {
	snap := st.Snapshot()
	page, err := st.Page()
	if err != nil {
		page = status.Page("unknown")
	}
	rt.printf("Page:    %s\n", page)
	rt.printf("Status:  %s\n", st.Message())
	if snap.Extra.Progress > 0 {
		rt.printf("Progress: %d%%\n", snap.Extra.Progress)
	}
	if snap.Code.Retryable() {
		rt.printf("The launch failed; fix the config and run gamectl launch again.\n")
	}
}

func (rt *runtime) printStatusLine(st *status.Store) {
	snap := st.Snapshot()
	line := st.Message()
	if snap.Extra.Progress > 0 {
		line += " (" + strconv.Itoa(snap.Extra.Progress) + "%)"
	}
	rt.printf("%s %s\n", time.Now().Format(time.TimeOnly), line)
}

func (rt *runtime) printCPU(sum status.Summary) {
	if sum.Count == 0 {
		return
	}
	rt.printf("CPU: %d samples, mean %.1f%%, p95 %.1f%%, max %.1f%%\n", sum.Count, sum.Mean, sum.P95, sum.Max)
}

func newLaunchCmd(rt *runtime) *cobra.Command {
	return newServerCommand(rt, "launch", "Launch the server with the pending config", (*launch.Store).Launch)
}

func newReconfigureCmd(rt *runtime) *cobra.Command {
	return newServerCommand(rt, "reconfigure", "Restart the running server with the pending config", (*launch.Store).Reconfigure)
}

func newStopCmd(rt *runtime) *cobra.Command {
	return newServerCommand(rt, "stop", "Stop the server", (*launch.Store).Stop)
}

func newServerCommand(rt *runtime, use, short string, run func(*launch.Store, context.Context) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := rt.requireLogin(); err != nil {
				return err
			}
			store := rt.app.NewConfigStore()
			defer store.Close()
			if err := run(store, cmd.Context()); err != nil {
				return err
			}
			rt.printf("%s accepted\n", use)
			return nil
		},
	}
}

func newInfoCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show machine and world information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := rt.requireLogin(); err != nil {
				return err
			}
			ctx := cmd.Context()
			api := rt.app.API()

			sys, err := api.SystemInfo(ctx)
			if err != nil {
				return err
			}
			rt.printf("%s: %s\n", rt.text("system_info_server_version"), sys.PremisesVersion)
			rt.printf("%s: %s\n", rt.text("system_info_host_os"), sys.HostOS)
			if sys.IPAddr != nil {
				rt.printf("IP: %s\n", *sys.IPAddr)
			}

			world, err := api.WorldInfo(ctx)
			if apiErr, ok := client.IsAPIError(err); ok && apiErr.Code == types.ErrServerNotRunning {
				return nil
			}
			if err != nil {
				return err
			}
			rt.printf("%s: %s\n", rt.text("world_info_game_version"), world.Version)
			rt.printf("%s: %s\n", rt.text("world_info_world_name"), world.WorldName)
			rt.printf("%s: %s\n", rt.text("world_info_seed"), world.Seed)
			return nil
		},
	}
}
