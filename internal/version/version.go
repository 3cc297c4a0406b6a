// Package version reports the build identity of the swayless binary.
package version

import (
	"runtime/debug"
	"strings"
	"time"
)

const defaultModule = "pkt.systems/swayless"

// buildVersion is set via -ldflags "-X pkt.systems/swayless/internal/version.buildVersion=...".
var buildVersion = ""

// Info describes the running binary.
type Info struct {
	Module    string `yaml:"module"`
	Version   string `yaml:"version"`
	Revision  string `yaml:"revision,omitempty"`
	Time      string `yaml:"time,omitempty"`
	Dirty     bool   `yaml:"dirty,omitempty"`
	GoVersion string `yaml:"go_version,omitempty"`
}

// String renders "module version".
func (i Info) String() string {
	return i.Module + " " + i.Version
}

// Read collects build information.
func Read() Info {
	info, _ := debug.ReadBuildInfo()
	out := Info{Module: moduleFrom(info), Version: resolve(info)}
	if info != nil {
		out.GoVersion = info.GoVersion
		v := readVCS(info)
		out.Revision, out.Dirty = v.revision, v.modified
		if !v.time.IsZero() {
			out.Time = v.time.UTC().Format(time.RFC3339)
		}
	}
	return out
}

// Current returns the best available version string.
func Current() string {
	info, _ := debug.ReadBuildInfo()
	return resolve(info)
}

// Module returns the module path from build info when available.
func Module() string {
	info, _ := debug.ReadBuildInfo()
	return moduleFrom(info)
}

func moduleFrom(info *debug.BuildInfo) string {
	if info != nil {
		if path := strings.TrimSpace(info.Main.Path); path != "" {
			return path
		}
	}
	return defaultModule
}

func resolve(info *debug.BuildInfo) string {
	if v := strings.TrimSpace(buildVersion); v != "" {
		return strings.TrimSuffix(v, "+dirty")
	}
	if info != nil {
		if v := strings.TrimSpace(info.Main.Version); v != "" && v != "(devel)" {
			return strings.TrimSuffix(v, "+dirty")
		}
		if v := pseudoFromBuildInfo(info); v != "" {
			return v
		}
	}
	return "v0.0.0-unknown"
}

type vcsInfo struct {
	revision string
	time     time.Time
	modified bool
}

func readVCS(info *debug.BuildInfo) vcsInfo {
	var out vcsInfo
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			out.revision = setting.Value
		case "vcs.time":
			if parsed, err := time.Parse(time.RFC3339, setting.Value); err == nil {
				out.time = parsed
			}
		case "vcs.modified":
			out.modified = setting.Value == "true"
		}
	}
	return out
}

// pseudoFromBuildInfo derives a Go pseudo-version from VCS stamps.
func pseudoFromBuildInfo(info *debug.BuildInfo) string {
	if info == nil {
		return ""
	}
	v := readVCS(info)
	if v.revision == "" || v.time.IsZero() {
		return ""
	}
	rev := v.revision
	if len(rev) > 12 {
		rev = rev[:12]
	}
	return "v0.0.0-" + v.time.UTC().Format("20060102150405") + "-" + rev
}
