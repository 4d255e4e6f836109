package message

import "fmt"

// Version is a semantic version triple.
type Version struct {
	Major uint8
	Minor uint8
	Patch uint8
}

// LocalVersion is the protocol version implemented by this monitor.
var LocalVersion = Version{Major: 1, Minor: 1, Patch: 0}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Compatible reports whether two versions can talk to each other.
// Major and minor must be equal; patch is ignored. The relation is symmetric.
func Compatible(a, b Version) bool {
	return a.Major == b.Major && a.Minor == b.Minor
}

// Compatibility describes which side of an incompatible pair is older.
type Compatibility uint8

const (
	VersionCompatible Compatibility = iota
	// EditorOutdated means the editor runs an older major/minor than the monitor.
	EditorOutdated
	// MonitorOutdated means the monitor runs an older major/minor than the editor.
	MonitorOutdated
)

func (c Compatibility) String() string {
	switch c {
	case VersionCompatible:
		return "compatible"
	case EditorOutdated:
		return "editor outdated"
	case MonitorOutdated:
		return "monitor outdated"
	default:
		return "unknown"
	}
}

// CheckCompatibility compares the monitor version with the editor version.
// It only refines Compatible for log messages and never changes its verdict.
func CheckCompatibility(monitor, editor Version) Compatibility {
	switch {
	case Compatible(monitor, editor):
		return VersionCompatible
	case editor.Major < monitor.Major, editor.Major == monitor.Major && editor.Minor < monitor.Minor:
		return EditorOutdated
	default:
		return MonitorOutdated
	}
}

// MismatchReason formats the rejection text sent to an incompatible serial editor.
func MismatchReason(editor, monitor Version) string {
	return fmt.Sprintf("Version mismatch: Editor[%s], Monitor[%s]", editor, monitor)
}
