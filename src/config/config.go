// Package config loads the rbd-backup settings from defaults, a YAML file,
// RBD_BACKUP_* environment variables and command-line flags, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"rbd-backup/src/target"
)

const (
	TypeFull = "full"
	TypeDiff = "diff"

	EnvPrefix = "RBD_BACKUP"
	FileName  = "rbd-backup"
)

type App struct {
	Verbose       bool   `mapstructure:"verbose" yaml:"verbose"`
	LogFile       string `mapstructure:"log_file" yaml:"log_file"`
	MonitoringLog string `mapstructure:"monitoring_log" yaml:"monitoring_log"`
}

type Cluster struct {
	ConfFile    string `mapstructure:"conf_file" yaml:"conf_file"`
	UserKeyring string `mapstructure:"user_keyring" yaml:"user_keyring"`
	Client      string `mapstructure:"client" yaml:"client"`
}

// Incus optionally sources the image list of a wildcard selector from an
// Incus storage pool backed by the same Ceph pool.
type Incus struct {
	Pool    string `mapstructure:"pool" yaml:"pool"`
	Project string `mapstructure:"project" yaml:"project"`
}

type Backup struct {
	Type      string   `mapstructure:"type" yaml:"type"`
	Pool      string   `mapstructure:"pool" yaml:"pool"`
	Directory string   `mapstructure:"directory" yaml:"directory"`
	Images    []string `mapstructure:"images" yaml:"images"`
	Checksums bool     `mapstructure:"checksums" yaml:"checksums"`
	Incus     Incus    `mapstructure:"incus" yaml:"incus"`
}

type Config struct {
	App     App     `mapstructure:"app" yaml:"app"`
	Cluster Cluster `mapstructure:"cluster" yaml:"cluster"`
	Backup  Backup  `mapstructure:"backup" yaml:"backup"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		App: App{
			LogFile:       "rbd-backup.log",
			MonitoringLog: "monitoring.log",
		},
		Cluster: Cluster{
			ConfFile:    "etc/ceph/ceph.conf",
			UserKeyring: "etc/ceph/ceph.client.onebackup.keyring",
			Client:      "onebackup",
		},
		Backup: Backup{
			Type:   TypeFull,
			Images: []string{"*"},
		},
	}
}

func defaults() map[string]any {
	d := Default()
	return map[string]any{
		"app.verbose":          d.App.Verbose,
		"app.log_file":         d.App.LogFile,
		"app.monitoring_log":   d.App.MonitoringLog,
		"cluster.conf_file":    d.Cluster.ConfFile,
		"cluster.user_keyring": d.Cluster.UserKeyring,
		"cluster.client":       d.Cluster.Client,
		"backup.type":          d.Backup.Type,
		"backup.pool":          d.Backup.Pool,
		"backup.directory":     d.Backup.Directory,
		"backup.images":        d.Backup.Images,
		"backup.checksums":     d.Backup.Checksums,
		"backup.incus.pool":    d.Backup.Incus.Pool,
		"backup.incus.project": d.Backup.Incus.Project,
	}
}

// FlagKeys maps command-line flag names to configuration keys. Flags missing
// from a command are skipped.
var FlagKeys = map[string]string{
	"verbose":        "app.verbose",
	"log-file":       "app.log_file",
	"monitoring-log": "app.monitoring_log",
	"ceph":           "cluster.conf_file",
	"keyring":        "cluster.user_keyring",
	"user":           "cluster.client",
	"pool":           "backup.pool",
	"directory":      "backup.directory",
	"images":         "backup.images",
	"checksums":      "backup.checksums",
	"incus-pool":     "backup.incus.pool",
	"incus-project":  "backup.incus.project",
}

// SearchPaths are the directories searched for rbd-backup.yaml when no file
// is given explicitly.
func SearchPaths() []string {
	paths := []string{"etc", "."}
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, "rbd-backup"))
	}
	return append(paths, "/etc/rbd-backup")
}

// Load resolves the configuration for cmd. path names an explicit config file;
// when empty the search paths are tried and a missing file is not an error.
// overrides are applied last.
func Load(cmd *cobra.Command, path string, overrides map[string]any) (Config, error) {
	var c Config
	v := viper.New()
	for key, value := range defaults() {
		v.SetDefault(key, value)
	}

	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(FileName)
		for _, p := range SearchPaths() {
			v.AddConfigPath(p)
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return c, &ConfigurationError{Key: "config", Reason: err.Error()}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cmd != nil {
		for name, key := range FlagKeys {
			if f := cmd.Flags().Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return c, err
				}
			}
		}
	}
	for key, value := range overrides {
		v.Set(key, value)
	}

	if err := v.Unmarshal(&c); err != nil {
		return c, &ConfigurationError{Key: "config", Reason: err.Error()}
	}
	return c, nil
}

// Used reports the config file Load would read for path, or "" when none is
// found.
func Used(path string) string {
	if path != "" {
		return path
	}
	for _, dir := range SearchPaths() {
		for _, ext := range []string{".yaml", ".yml"} {
			p := filepath.Join(dir, FileName+ext)
			if _, err := os.Stat(p); err == nil {
				return p
			}
		}
	}
	return ""
}

// ValidateCluster checks the settings needed to open a pool session.
func ValidateCluster(c *Config) error {
	if strings.TrimSpace(c.Backup.Pool) == "" {
		return &ConfigurationError{Key: "backup.pool", Reason: "backup pool not set"}
	}
	if strings.TrimSpace(c.Cluster.Client) == "" {
		return &ConfigurationError{Key: "cluster.client", Reason: "client id not set"}
	}
	return nil
}

// Validate checks c before any cluster interaction and normalizes the backup
// directory, which may be given as "dir:/path" or as an absolute path.
func Validate(c *Config) error {
	if err := ValidateCluster(c); err != nil {
		return err
	}
	if strings.TrimSpace(c.Backup.Directory) == "" {
		return &ConfigurationError{Key: "backup.directory", Reason: "backup directory not set"}
	}
	if c.Backup.Type != TypeFull && c.Backup.Type != TypeDiff {
		return &ConfigurationError{
			Key:    "backup.type",
			Reason: fmt.Sprintf("backup type %q not allowed, please use [%s %s]", c.Backup.Type, TypeFull, TypeDiff),
		}
	}
	if len(c.Backup.Images) == 0 {
		return &ConfigurationError{Key: "backup.images", Reason: "no images selected"}
	}
	for _, img := range c.Backup.Images {
		if strings.TrimSpace(img) == "" {
			return &ConfigurationError{Key: "backup.images", Reason: "blank image name"}
		}
	}
	return ValidateDirectory(c)
}

// ValidateDirectory checks that the backup directory exists and normalizes it.
func ValidateDirectory(c *Config) error {
	if strings.TrimSpace(c.Backup.Directory) == "" {
		return &ConfigurationError{Key: "backup.directory", Reason: "backup directory not set"}
	}
	tgt, err := target.Parse(c.Backup.Directory)
	if err != nil {
		return &ConfigurationError{Key: "backup.directory", Reason: err.Error()}
	}
	info, err := os.Stat(tgt.DirPath)
	if err != nil {
		return &ConfigurationError{Key: "backup.directory", Reason: fmt.Sprintf("backup directory %q does not exist", tgt.DirPath)}
	}
	if !info.IsDir() {
		return &ConfigurationError{Key: "backup.directory", Reason: fmt.Sprintf("backup directory %q is not a directory", tgt.DirPath)}
	}
	c.Backup.Directory = tgt.DirPath
	return nil
}

// WriteDefault writes the built-in settings as YAML to path. An existing file
// is only replaced when overwrite is set.
func WriteDefault(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file %s already exists", path)
		}
	}
	data, err := yaml.Marshal(Default())
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("could not create config directory %s: %w", dir, err)
		}
	}
	return os.WriteFile(path, data, 0o600)
}
