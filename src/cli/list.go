package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"rbd-backup/src/backend"
	dir "rbd-backup/src/backend/directory"
	"rbd-backup/src/config"
)

func newListCmd(stdout io.Writer) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "list [all|full|diff]",
		Short: "List export artifacts in the backup directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := backend.KindAll
			if len(args) == 1 {
				kind = strings.ToLower(args[0])
			}
			cfg, err := loadConfig(cmd, nil)
			if err != nil {
				return err
			}
			if cfg.Backup.Pool == "" {
				return &config.ConfigurationError{Key: "backup.pool", Reason: "backup pool not set"}
			}
			if err := config.ValidateDirectory(&cfg); err != nil {
				return err
			}
			var be backend.StorageBackend
			b, err := dir.New(cfg.Backup.Directory)
			if err != nil {
				return err
			}
			be = b
			entries, err := be.List(cfg.Backup.Pool, kind)
			if err != nil {
				return err
			}
			switch output {
			case "json":
				enc := json.NewEncoder(stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(entries)
			case "table", "":
				return renderTable(stdout, entries)
			default:
				return fmt.Errorf("unsupported --output: %s", output)
			}
		},
	}
	cmd.Flags().StringP("pool", "p", "", "Pool name")
	cmd.Flags().StringP("directory", "d", "", "Backup directory (dir:/path or /path)")
	cmd.Flags().StringVarP(&output, "output", "o", "table", "Output format: table|json")
	return cmd
}

func renderTable(w io.Writer, entries []backend.Entry) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "IMAGE\tKIND\tLABEL\tSIZE\tMODIFIED")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", e.Image, e.Kind, e.Label, humanize.IBytes(e.Size), humanize.Time(e.Modified))
	}
	return tw.Flush()
}
