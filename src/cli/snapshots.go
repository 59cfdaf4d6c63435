package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"rbd-backup/src/config"
	"rbd-backup/src/snapshot"
)

func newSnapshotsCmd(stdout io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshots IMAGE...",
		Short: "Show the snapshots of images in the pool",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, nil)
			if err != nil {
				return err
			}
			if err := config.ValidateCluster(&cfg); err != nil {
				return err
			}
			log, closeLog, err := newLogger(cmd, cfg, false)
			if err != nil {
				return err
			}
			defer closeLog()

			sess, err := openSession(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer closeSession(sess, log)

			st := newStyles(stdout)
			mgr := snapshot.NewManager(sess, log)
			for _, image := range args {
				snaps, err := mgr.List(cmd.Context(), image)
				if err != nil {
					return err
				}
				fmt.Fprintln(stdout, st.title.Render(image+" snapshots"))
				tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "\tID\tNAME\tSIZE")
				for _, s := range snaps {
					fmt.Fprintf(tw, "\t%d\t%s\t%s\n", s.ID, s.Name, humanize.IBytes(s.Size))
				}
				if err := tw.Flush(); err != nil {
					return err
				}
			}
			return nil
		},
	}
	addClusterFlags(cmd.Flags())
	return cmd
}
