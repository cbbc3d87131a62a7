package cli

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newWorldsCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worlds",
		Short: "Manage saved worlds",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List saved worlds and their backup generations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := rt.requireLogin(); err != nil {
				return err
			}
			worlds, err := rt.app.API().ListWorlds(cmd.Context())
			if err != nil {
				return err
			}
			if len(worlds) == 0 {
				rt.printf("%s\n", rt.text("no_backups"))
				return nil
			}

			w := tabwriter.NewWriter(rt.env.Out, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "WORLD\tGENERATION\tID\tSAVED")
			for _, world := range worlds {
				for _, gen := range world.Generations {
					saved := time.UnixMilli(gen.Timestamp).UTC().Format(time.DateTime)
					_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", world.WorldName, gen.Gen, gen.ID, saved)
				}
				if len(world.Generations) == 0 {
					_, _ = fmt.Fprintf(w, "%s\t-\t-\t-\n", world.WorldName)
				}
			}
			return w.Flush()
		},
	}

	del := &cobra.Command{
		Use:   "delete <world>",
		Short: "Delete a world and all its backups",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rt.requireLogin(); err != nil {
				return err
			}
			if err := rt.app.API().DeleteWorld(cmd.Context(), args[0]); err != nil {
				return err
			}
			rt.printf("Deleted %s\n", args[0])
			return nil
		},
	}

	upload := &cobra.Command{
		Use:   "upload <world> <archive>",
		Short: "Upload a world archive (zip, tar, gzip or zstd)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rt.requireLogin(); err != nil {
				return err
			}
			if err := rt.app.API().UploadWorld(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			rt.printf("Uploaded %s as %s\n", args[1], args[0])
			return nil
		},
	}

	var output string
	download := &cobra.Command{
		Use:   "download <generation-id>",
		Short: "Download a backup generation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rt.requireLogin(); err != nil {
				return err
			}
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("create output: %w", err)
			}
			n, err := rt.app.API().DownloadWorld(cmd.Context(), args[0], f)
			if closeErr := f.Close(); err == nil {
				err = closeErr
			}
			if err != nil {
				_ = os.Remove(output)
				return err
			}
			rt.printf("Saved %d bytes to %s\n", n, output)
			return nil
		},
	}
	download.Flags().StringVarP(&output, "output", "o", "world.tar.zst", "file to write")

	cmd.AddCommand(list, del, upload, download)
	return cmd
}

func newVersionsCmd(rt *runtime) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "versions",
		Short: "List game server versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := rt.requireLogin(); err != nil {
				return err
			}
			versions, err := rt.app.API().MCVersions(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(rt.env.Out, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "NAME\tCHANNEL\tRELEASED")
			for _, v := range versions {
				if !all && !v.IsStable {
					continue
				}
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", v.Name, v.Channel, v.ReleaseDate)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVarP(&all, "all", "a", false, "include snapshots and other unstable channels")
	return cmd
}

func newSnapshotCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot [slot]",
		Short: "Take a quick-undo snapshot of the running world",
		Long:  "Take a quick-undo snapshot. Slots are 0 to 9; the default is 0. The result arrives as a notification.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rt.requireLogin(); err != nil {
				return err
			}
			slot, err := slotArg(args)
			if err != nil {
				return err
			}
			if err := rt.app.API().TakeSnapshot(cmd.Context(), slot); err != nil {
				return err
			}
			rt.printf("Snapshot requested for slot %d\n", slot)
			return nil
		},
	}
}

func newUndoCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "undo [slot]",
		Short: "Roll the running world back to a quick-undo snapshot",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rt.requireLogin(); err != nil {
				return err
			}
			slot, err := slotArg(args)
			if err != nil {
				return err
			}
			if err := rt.app.API().UndoSnapshot(cmd.Context(), slot); err != nil {
				return err
			}
			rt.printf("Undo requested for slot %d\n", slot)
			return nil
		},
	}
}

func slotArg(args []string) (int, error) {
	if len(args) == 0 {
		return 0, nil
	}
	slot, err := strconv.Atoi(args[0])
	if err != nil || slot < 0 || slot > 9 {
		return 0, fmt.Errorf("slot must be 0-9, got %q", args[0])
	}
	return slot, nil
}
