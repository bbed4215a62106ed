package ver

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"time"
)

// Load reads the version from the build info embedded by the go toolchain.
func Load() Version {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return Version{
			Version:   "devel",
			GoVersion: runtime.Version(),
			Revision:  "unknown",
			BuildTime: "unknown",
		}
	}

	var (
		revision  = "unknown"
		buildTime = "unknown"
		dirty     bool
	)
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.time":
			buildTime = setting.Value
		case "vcs.modified":
			dirty = setting.Value == "true"
		}
	}

	return Version{
		Version:   info.Main.Version,
		GoVersion: info.GoVersion,
		Revision:  revision,
		BuildTime: buildTime,
		Dirty:     dirty,
	}
}

type Version struct {
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	Revision  string `json:"revision"`
	BuildTime string `json:"build_time"`
	Dirty     bool   `json:"dirty"`
}

func (v Version) Commit() string {
	commit := v.Revision
	if len(commit) > 7 {
		commit = commit[:7]
	}
	if v.Dirty {
		commit += "-dirty"
	}
	return commit
}

func (v Version) Format() string {
	buildTimeStr := "unknown"
	if buildTime, err := time.Parse(time.RFC3339, v.BuildTime); err == nil {
		buildTimeStr = buildTime.Format(time.ANSIC)
	}

	return fmt.Sprintf("Go Version: %s\nVersion: %s\nCommit: %s\nBuild Time: %s\nOS/Arch: %s/%s\n", v.GoVersion, v.Version, v.Commit(), buildTimeStr, runtime.GOOS, runtime.GOARCH)
}
