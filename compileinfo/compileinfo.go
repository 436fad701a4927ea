// Package compileinfo reports the build provenance of a binary, so that every
// log from a QC or DE run can be tied to the commit that produced it.
package compileinfo

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
)

type CompileInfo struct {
	Program    string
	Package    string
	Version    string
	GoVersion  string
	Commit     string
	CommitTime string
	Modified   bool
}

func (c CompileInfo) String() string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s (%s", c.Program, c.Package)
	if c.Version != "" && c.Version != "(devel)" {
		fmt.Fprintf(&b, " %s", c.Version)
	}
	fmt.Fprintf(&b, ") built with %s", c.GoVersion)

	if c.Commit != "" {
		fmt.Fprintf(&b, " at commit %s (%s)", c.Commit, c.CommitTime)
	} else {
		b.WriteString(" outside version control")
	}
	if c.Modified {
		b.WriteString("; the working tree had uncommitted changes")
	}

	return b.String()
}

// Get reads the build information embedded by the Go toolchain.
func Get() CompileInfo {
	out := CompileInfo{Program: filepath.Base(os.Args[0])}

	z, ok := debug.ReadBuildInfo()
	if !ok {
		return out
	}

	return fromBuildInfo(out, z)
}

func fromBuildInfo(out CompileInfo, z *debug.BuildInfo) CompileInfo {
	out.GoVersion = z.GoVersion
	out.Package = z.Path
	out.Version = z.Main.Version
	for _, s := range z.Settings {
		switch s.Key {
		case "vcs.revision":
			out.Commit = s.Value
		case "vcs.time":
			out.CommitTime = s.Value
		case "vcs.modified":
			out.Modified = s.Value == "true"
		}
	}

	return out
}

func PrintToStdErr() {
	fmt.Fprintln(os.Stderr, Get())
}
