package cli

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"rbd-backup/src/catalog"
	"rbd-backup/src/checksum"
	"rbd-backup/src/config"
	"rbd-backup/src/incusapi"
	"rbd-backup/src/orchestrator"
)

func newBackupCmd(stdout, stderr io.Writer) *cobra.Command {
	var full, diff bool
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Export the selected images of a pool (full or differential)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			overrides := map[string]any{}
			if full {
				overrides["backup.type"] = config.TypeFull
			}
			if diff {
				overrides["backup.type"] = config.TypeDiff
			}
			cfg, err := loadConfig(cmd, overrides)
			if err != nil {
				return err
			}
			if err := config.Validate(&cfg); err != nil {
				return err
			}
			mode, err := orchestrator.ParseMode(cfg.Backup.Type)
			if err != nil {
				return err
			}
			opts := getSafetyOptions(cmd)

			log, closeLog, err := newLogger(cmd, cfg, !opts.DryRun)
			if err != nil {
				return err
			}
			defer closeLog()

			ctx := cmd.Context()
			sess, err := openSession(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer closeSession(sess, log)

			deps := orchestrator.SessionDeps(sess, cfg.Backup.Directory, cfg.Backup.Images, log)
			if cfg.Backup.Incus.Pool != "" && catalog.IsWildcard(cfg.Backup.Images) {
				c, err := connectIncus(cfg.Backup.Incus.Project)
				if err != nil {
					return fmt.Errorf("connect to incus: %w", err)
				}
				deps.Images = incusapi.PoolImages{Client: c, Pool: cfg.Backup.Incus.Pool, CephPool: cfg.Backup.Pool, Project: cfg.Backup.Incus.Project}
			}
			// Resolve once so the overview and the run see the same list.
			images, err := catalog.Resolve(ctx, deps.Images, cfg.Backup.Images)
			if err != nil {
				log.WithError(err).Error("Cannot resolve the images to back up")
				return err
			}
			deps.Selector = images
			if cfg.Backup.Checksums {
				deps.Checksums = checksum.Recorder{Progress: progressWriter(cfg, stderr)}
			}
			orch := orchestrator.New(deps)

			printOverview(stdout, mode, cfg.Backup.Pool, images, cfg.Backup.Directory)
			if opts.DryRun {
				plan, err := orch.Plan(ctx, mode)
				if err != nil {
					return err
				}
				printPlan(stdout, plan)
				return nil
			}

			rep, err := orch.Run(ctx, mode)
			printReport(stdout, rep)
			return err
		},
	}
	addClusterFlags(cmd.Flags())
	cmd.Flags().StringSliceP("images", "i", nil, "List of images to backup ('*' for all)")
	cmd.Flags().StringP("directory", "d", "", "Target directory where backups will be stored (dir:/path or /path)")
	cmd.Flags().Bool("checksums", false, "Record an xxh3 checksum of every artifact")
	cmd.Flags().String("incus-pool", "", "Resolve '*' from the volumes of this Incus storage pool")
	cmd.Flags().String("incus-project", "", "Incus project of --incus-pool")
	cmd.Flags().BoolVar(&full, "full", false, "Perform a full image backup")
	cmd.Flags().BoolVar(&diff, "diff", false, "Perform a differential image backup")
	cmd.MarkFlagsMutuallyExclusive("full", "diff")
	return cmd
}

func progressWriter(cfg config.Config, stderr io.Writer) io.Writer {
	if cfg.App.Verbose {
		return stderr
	}
	return nil
}

type styles struct {
	title, label, faint lipgloss.Style
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		title: r.NewStyle().Bold(true).Foreground(lipgloss.Color("42")),
		label: r.NewStyle().Bold(true),
		faint: r.NewStyle().Foreground(lipgloss.Color("240")),
	}
}

func printOverview(w io.Writer, mode orchestrator.Mode, pool string, images []string, dir string) {
	st := newStyles(w)
	fmt.Fprintln(w, st.title.Render("Backup Overview ("+string(mode)+")"))
	fmt.Fprintln(w, st.label.Render("Images to backup"))
	for _, img := range images {
		fmt.Fprintf(w, "\t%s/%s\n", pool, img)
	}
	fmt.Fprintln(w, st.label.Render("Backup directory:"))
	fmt.Fprintf(w, "\t%s\n", dir)
}

func printPlan(w io.Writer, p *orchestrator.Plan) {
	st := newStyles(w)
	fmt.Fprintln(w, st.title.Render("Planned actions (dry run, label "+p.RunLabel+")"))
	for _, img := range p.Images {
		if img.Baseline {
			fmt.Fprintf(w, "\t%s: no reference snapshot, full base export first\n", img.Image)
		}
		for _, a := range img.Artifacts {
			fmt.Fprintf(w, "\t%s -> %s\n", img.Image, a)
		}
		if img.RollReference {
			fmt.Fprintf(w, "\t%s: %s\n", img.Image, st.faint.Render("roll reference snapshot forward"))
		}
	}
}

func printReport(w io.Writer, rep *orchestrator.Report) {
	if rep == nil {
		return
	}
	for _, img := range rep.Images {
		for _, a := range img.Artifacts {
			fmt.Fprintf(w, "%s\t%s\n", img.Image, a)
		}
	}
	if rep.State == orchestrator.StateFailed {
		fmt.Fprintf(w, "Run %s failed at image %q\n", rep.RunLabel, rep.FailedImage)
		return
	}
	fmt.Fprintf(w, "Run %s done: %d image(s)\n", rep.RunLabel, len(rep.Images))
}
