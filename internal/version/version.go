// Package version holds build information injected with -ldflags.
package version

import (
	"fmt"
	"runtime"
)

// Set by cmd/mdm at startup from the linker flags.
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// Info describes the running binary.
type Info struct {
	Version   string `json:"version"`
	BuildTime string `json:"buildTime"`
	GitCommit string `json:"gitCommit"`
	GoVersion string `json:"goVersion"`
	Platform  string `json:"platform"`
}

func Get() Info {
	return Info{
		Version:   Version,
		BuildTime: BuildTime,
		GitCommit: GitCommit,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

// IsRelease reports whether the binary was built with a version tag.
func (i Info) IsRelease() bool {
	return i.Version != "" && i.Version != "dev"
}

func (i Info) String() string {
	if !i.IsRelease() {
		return fmt.Sprintf("MDM development build (%s) on %s", i.GitCommit, i.Platform)
	}
	return fmt.Sprintf("MDM %s (%s) built at %s on %s",
		i.Version,
		i.GitCommit,
		i.BuildTime,
		i.Platform,
	)
}
