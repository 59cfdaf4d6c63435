// Package version holds the build version, set with
// -ldflags "-X rbd-backup/src/version.Version=...".
package version

var Version = "0.1.0-dev"
