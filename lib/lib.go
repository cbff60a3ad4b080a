/*package lib contains the command line glue of cfdem: argument parsing, the
"check" mode and version information. Almost all of the heavy lifting is done
by lib/'s subpackages, and lib/evolve is the entry point for programs which
want to drive a simulation themselves.
*/
package lib

import (
	"fmt"
	"runtime/debug"
)

// Version is the version of the software. The checkpoint and plot formats
// record their own format versions separately.
const Version = "0.1.0"

// VersionString returns the version along with the Go version and VCS
// revision the binary was built from, when known.
func VersionString() string {
	s := "cfdem " + Version
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return s
	}
	s += fmt.Sprintf(" (%s", info.GoVersion)
	for _, kv := range info.Settings {
		if kv.Key == "vcs.revision" && len(kv.Value) >= 12 {
			s += ", " + kv.Value[:12]
		}
	}
	return s + ")"
}
