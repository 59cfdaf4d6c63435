package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"rbd-backup/src/config"
	"rbd-backup/src/reference"
	"rbd-backup/src/safety"
	"rbd-backup/src/snapshot"
)

func newResetReferenceCmd(stdout io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset-reference IMAGE...",
		Short: "Drop the reference snapshot so the next diff run exports a new full base",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, nil)
			if err != nil {
				return err
			}
			if err := config.ValidateCluster(&cfg); err != nil {
				return err
			}
			opts := getSafetyOptions(cmd)
			if opts.DryRun {
				for _, image := range args {
					fmt.Fprintf(stdout, "[dry-run] would remove %s/%s@dummy if present\n", cfg.Backup.Pool, image)
				}
				return nil
			}
			ok, err := safety.Confirm(opts, cmd.InOrStdin(), stdout,
				fmt.Sprintf("Remove the reference snapshot of %d image(s) in pool %s?", len(args), cfg.Backup.Pool))
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(stdout, "Aborted")
				return nil
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

			snaps := snapshot.NewManager(sess, log)
			for _, image := range args {
				removed, err := reference.Reset(cmd.Context(), snaps, image)
				if err != nil {
					return err
				}
				if removed {
					fmt.Fprintf(stdout, "%s: reference removed\n", image)
				} else {
					fmt.Fprintf(stdout, "%s: no reference\n", image)
				}
			}
			return nil
		},
	}
	addClusterFlags(cmd.Flags())
	return cmd
}
