package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"rbd-backup/src/checksum"
	"rbd-backup/src/config"
)

func newVerifyCmd(stdout io.Writer) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "verify [IMAGE...]",
		Short: "Verify recorded checksums of artifacts in the backup directory",
		RunE: func(cmd *cobra.Command, args []string) error {
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
			poolDir := filepath.Join(cfg.Backup.Directory, cfg.Backup.Pool)

			var results []checksum.Result
			if len(args) == 0 {
				results, err = checksum.VerifyPool(poolDir)
				if err != nil {
					return err
				}
			}
			for _, image := range args {
				res, err := checksum.VerifyImage(filepath.Join(poolDir, image))
				if err != nil {
					return err
				}
				results = append(results, res...)
			}

			switch output {
			case "json":
				enc := json.NewEncoder(stdout)
				enc.SetIndent("", "  ")
				if err := enc.Encode(results); err != nil {
					return err
				}
			case "table", "":
				tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "IMAGE\tFILE\tSTATUS")
				for _, r := range results {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Image, r.File, r.Status)
				}
				if err := tw.Flush(); err != nil {
					return err
				}
			default:
				return fmt.Errorf("unsupported --output: %s", output)
			}

			bad := 0
			for _, r := range results {
				if r.Status != checksum.StatusOK {
					bad++
				}
			}
			if bad > 0 {
				return fmt.Errorf("verify: %d of %d artifact(s) failed", bad, len(results))
			}
			return nil
		},
	}
	cmd.Flags().StringP("pool", "p", "", "Pool name")
	cmd.Flags().StringP("directory", "d", "", "Backup directory (dir:/path or /path)")
	cmd.Flags().StringVarP(&output, "output", "o", "table", "Output format: table|json")
	return cmd
}
