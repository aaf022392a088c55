// Package version reports the sda build. The variables are stamped at link time:
//
//	go build -ldflags "-X github.com/santoshnarayanan/sda/internal/version.Version=v0.4.0 \
//	  -X github.com/santoshnarayanan/sda/internal/version.Commit=$(git rev-parse --short HEAD)" ./cmd/sda
package version

import "fmt"

//nolint:revive // Set via ldflags at build time.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// String is the one-line build description logged at startup.
func String() string {
	return fmt.Sprintf("sda %s (commit %s, built %s)", Version, Commit, BuildTime)
}
