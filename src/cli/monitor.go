package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"rbd-backup/src/monitoring"
)

func newMonitorCmd(stdout io.Writer) *cobra.Command {
	var output, prefix string
	cmd := &cobra.Command{
		Use:   "monitor [LOG_FILE]",
		Short: "Print per-image backup status and duration as monitoring modules",
		Long: "Reads the monitoring log written by the last backup run (or LOG_FILE) and prints\n" +
			"a status and an elapsed time module for every image.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			} else {
				cfg, err := loadConfig(cmd, nil)
				if err != nil {
					return err
				}
				path = cfg.App.MonitoringLog
			}
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()

			results, err := monitoring.Parse(f)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			mods, err := monitoring.Modules(results, prefix)
			if err != nil {
				return err
			}
			switch output {
			case "xml", "":
				return monitoring.WriteXML(stdout, mods)
			case "json":
				return monitoring.WriteJSON(stdout, mods)
			default:
				return fmt.Errorf("unsupported --output: %s", output)
			}
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "xml", "Output format: xml|json")
	cmd.Flags().StringVar(&prefix, "prefix", monitoring.DefaultPrefix, "Module name prefix")
	return cmd
}
