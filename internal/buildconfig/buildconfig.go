// Package buildconfig exposes version metadata injected at link time:
//
//	go build -ldflags "-X .../buildconfig.version=v1.2 -X .../buildconfig.commit=$(git rev-parse --short HEAD)"
package buildconfig

var (
	version = "dev"
	commit  = "unknown"
)

// Version returns the build version.
func Version() string {
	return version
}

// Commit returns the git commit hash.
func Commit() string {
	return commit
}

// VersionInfo returns both fields, keyed for structured logging.
func VersionInfo() map[string]string {
	return map[string]string{
		"version": version,
		"commit":  commit,
	}
}
