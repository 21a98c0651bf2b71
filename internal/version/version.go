package version

import (
	"os/exec"
	"runtime/debug"
	"strings"
)

// Set through -ldflags at release time.
var (
	Version = "0.1.0"
	Commit  = "unknown"
	Date    = "unknown"
)

type Info struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

// Resolve returns the full version string. Inside a git checkout whose HEAD is
// not on a release tag, a `git describe` suffix is appended.
func Resolve() string {
	return resolveVersion(Version, runGit)
}

// Current reports the resolved version plus build metadata. A commit missing
// from ldflags is taken from the Go build info when available.
func Current() Info {
	return currentInfo(Resolve(), Commit, Date, debug.ReadBuildInfo)
}

func currentInfo(resolved, commit, date string, buildInfo func() (*debug.BuildInfo, bool)) Info {
	info := Info{Version: resolved, Commit: commit, Date: date}
	if info.Commit != "unknown" && info.Commit != "" {
		return info
	}

	bi, ok := buildInfo()
	if !ok || bi == nil {
		return info
	}
	for _, setting := range bi.Settings {
		switch setting.Key {
		case "vcs.revision":
			info.Commit = setting.Value
		case "vcs.time":
			if info.Date == "unknown" || info.Date == "" {
				info.Date = setting.Value
			}
		}
	}
	return info
}

func resolveVersion(base string, git func(...string) (string, error)) string {
	if base == "" {
		base = "0.0.0"
	}

	suffix := computeGitSuffix(base, git)
	if suffix == "" {
		return base
	}
	return base + "-" + suffix
}

func computeGitSuffix(base string, git func(...string) (string, error)) string {
	if _, err := git("rev-parse", "--git-dir"); err != nil {
		return ""
	}

	if _, err := git("describe", "--tags", "--exact-match"); err == nil {
		return ""
	}

	desc, err := git("describe", "--tags", "--dirty", "--always")
	if err != nil {
		return ""
	}

	return strings.TrimPrefix(desc, "v"+base+"-")
}

func runGit(args ...string) (string, error) {
	out, err := exec.Command("git", args...).Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
