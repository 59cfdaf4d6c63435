package cli

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"rbd-backup/src/cephapi"
	"rbd-backup/src/config"
	"rbd-backup/src/incusapi"
	"rbd-backup/src/logging"
	"rbd-backup/src/safety"
)

// addGlobalFlags adds the persistent flags shared by every command.
func addGlobalFlags(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.String("config", "", "Path of the configuration file (default: search etc/, ., user config dir, /etc/rbd-backup)")
	pf.BoolP("verbose", "v", false, "Make the program verbose")
	pf.String("log-file", "", "Set the logging file path")
	pf.String("monitoring-log", "", "Set the monitoring log path (truncated every run)")
	pf.Bool("dry-run", false, "Show planned actions without making changes")
	pf.BoolP("yes", "y", false, "Assume 'yes' to prompts and run non-interactively")
}

// addClusterFlags adds the flags that locate the cluster and the pool.
func addClusterFlags(f *pflag.FlagSet) {
	f.String("ceph", "", "Path of the ceph config file")
	f.String("keyring", "", "Path of the client keyring file")
	f.String("user", "", "Client name (without 'client.' prefix)")
	f.StringP("pool", "p", "", "Source pool name")
}

// getSafetyOptions reads global flags into a safety.Options struct.
func getSafetyOptions(cmd *cobra.Command) safety.Options {
	dry, _ := cmd.Flags().GetBool("dry-run")
	yes, _ := cmd.Flags().GetBool("yes")
	return safety.Options{DryRun: dry, Yes: yes}
}

func loadConfig(cmd *cobra.Command, overrides map[string]any) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.Load(cmd, path, overrides)
}

func newLogger(cmd *cobra.Command, cfg config.Config, monitoring bool) (*logrus.Logger, func() error, error) {
	opts := logging.Options{
		Verbose: cfg.App.Verbose,
		LogFile: cfg.App.LogFile,
		Stderr:  cmd.ErrOrStderr(),
	}
	if monitoring {
		opts.MonitoringLog = cfg.App.MonitoringLog
	}
	return logging.New(opts)
}

var newEngine = func(p cephapi.ConnParams) cephapi.Engine { return cephapi.NewRBD(p) }

// SetEngineForTest replaces the storage engine used by commands and returns
// a func restoring the previous one.
func SetEngineForTest(fn func(cephapi.ConnParams) cephapi.Engine) func() {
	prev := newEngine
	newEngine = fn
	return func() { newEngine = prev }
}

var connectIncus = func(project string) (incusapi.Client, error) { return incusapi.ConnectLocal(project) }

// SetIncusClientForTest replaces the Incus connection used for wildcard
// selectors and returns a func restoring the previous one.
func SetIncusClientForTest(fn func(project string) (incusapi.Client, error)) func() {
	prev := connectIncus
	connectIncus = fn
	return func() { connectIncus = prev }
}

// openSession connects to the cluster and binds the configured pool.
func openSession(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (*cephapi.Session, error) {
	eng := newEngine(cephapi.ConnParams{
		ConfFile: cfg.Cluster.ConfFile,
		Keyring:  cfg.Cluster.UserKeyring,
		Client:   cfg.Cluster.Client,
	})
	s, err := cephapi.Open(ctx, eng, cfg.Backup.Pool)
	if err != nil {
		log.WithError(err).Errorf("Cannot open pool %s", cfg.Backup.Pool)
		return nil, err
	}
	log.Debugf("Connected to cluster %s, pool %s", s.Info().FSID, s.Pool())
	return s, nil
}

func closeSession(s *cephapi.Session, log logrus.FieldLogger) {
	if err := s.Close(); err != nil {
		log.WithError(err).Warn("Closing the cluster session failed")
	}
}
