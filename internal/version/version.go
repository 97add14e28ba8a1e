// Package version хранит сведения о сборке. Значения подставляются линкером:
//
//	-ldflags "-X github.com/vladislavdragonenkov/inventory/internal/version.version=v1.2.3"
package version

import (
	"fmt"
	"runtime/debug"
)

var (
	version = "dev"
	commit  = ""
	date    = ""
)

// Build — сведения о сборке бинарника.
type Build struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

// Get возвращает сведения о сборке. Если commit и date не заданы через -ldflags,
// они берутся из VCS-информации, которую go build встраивает в бинарник.
func Get() Build {
	b := Build{Version: version, Commit: commit, Date: date}
	if info, ok := debug.ReadBuildInfo(); ok {
		b = b.withVCS(info.Settings)
	}
	if b.Commit == "" {
		b.Commit = "unknown"
	}
	if b.Date == "" {
		b.Date = "unknown"
	}
	return b
}

func (b Build) withVCS(settings []debug.BuildSetting) Build {
	for _, s := range settings {
		switch {
		case s.Key == "vcs.revision" && b.Commit == "":
			b.Commit = s.Value
		case s.Key == "vcs.time" && b.Date == "":
			b.Date = s.Value
		}
	}
	return b
}

func (b Build) String() string {
	return fmt.Sprintf("inventory version=%s commit=%s date=%s", b.Version, b.Commit, b.Date)
}
