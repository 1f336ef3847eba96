// Package version holds the build version, set with
// -ldflags "-X github.com/guiyumin/vsniff/internal/core/version.Version=..."
package version

var Version = "dev"
