// Package version holds build information set with -ldflags, for example
// -X github.com/cfoust/forge/pkg/version.Version=v0.1.0
package version

var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)
