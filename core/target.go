// Package core implements the dependency-graph engine: target identity, rule resolution,
// graph expansion, staleness and the node/edge bookkeeping the scheduler in package exec
// drives. It has no knowledge of any particular build language; see package rules/cpp for
// an illustrative consumer.
package core

import (
	"os"
	"time"

	"github.com/djherbis/atime"
	"gopkg.in/op/go-logging.v1"
)

var log = logging.MustGetLogger("core")

// Timestamp is a totally-ordered point in time, expressed as Unix nanoseconds. MinTimestamp
// is a distinguished sentinel meaning "exists, but treat as infinitely old" (used by
// DirectoryTarget: a directory's own existence should never make anything that depends on
// it look stale).
type Timestamp int64

// MinTimestamp sorts before every timestamp a real file could have.
const MinTimestamp Timestamp = -1 << 62

// Before reports whether t is strictly earlier than other.
func (t Timestamp) Before(other Timestamp) bool { return t < other }

// Target is an addressable build artifact description: something that can be identified
// and that has (or lacks) a timestamp. Concrete targets are usually small value types;
// FileTarget, DirectoryTarget and PhonyTarget cover the variants spec.md names, but any
// type satisfying this interface can be used with the graph.
type Target interface {
	// ID returns the target's canonical identity. Two targets that should be treated as
	// the same node in the graph must return equal TargetIDs.
	ID() TargetID
	// Timestamp reports the target's last-modified time and whether it exists at all.
	// exists == false means "does not exist" (NEVER_BUILT in the staleness oracle).
	Timestamp() (ts Timestamp, exists bool)
}

// FileTarget identifies a build artifact by filesystem path. Its timestamp is the file's
// mtime, or "does not exist" if the path can't be stat'd.
type FileTarget struct {
	Path string
}

// NewFileTarget constructs a FileTarget for path.
func NewFileTarget(path string) FileTarget { return FileTarget{Path: path} }

// ID implements Target.
func (t FileTarget) ID() TargetID {
	id, err := NewTargetID(map[string]interface{}{"type": "file", "path": t.Path})
	if err != nil {
		// Path is always a finite string; NewTargetID cannot fail for this shape.
		panic(err)
	}
	return id
}

// Timestamp implements Target.
func (t FileTarget) Timestamp() (Timestamp, bool) {
	info, err := os.Stat(t.Path)
	if err != nil {
		return 0, false
	}
	return Timestamp(info.ModTime().UnixNano()), true
}

func (t FileTarget) String() string { return t.Path }

// AccessTime reports when the file was last read, for diagnostics only (it plays no part in
// Datedness, which is governed strictly by mtime). Falls back to the platform-specific
// atime via github.com/djherbis/atime, since os.FileInfo doesn't expose it portably.
func (t FileTarget) AccessTime() (time.Time, bool) {
	at, err := atime.Stat(t.Path)
	if err != nil {
		return time.Time{}, false
	}
	return at, true
}

// DirectoryTarget identifies a directory. Unlike FileTarget, an existing directory reports
// MinTimestamp rather than its actual mtime: once a directory exists, nothing should be
// considered stale merely because of it (directories are usually just `mkdir -p` targets
// that other rules depend on to exist).
type DirectoryTarget struct {
	Path string
}

// NewDirectoryTarget constructs a DirectoryTarget for path.
func NewDirectoryTarget(path string) DirectoryTarget { return DirectoryTarget{Path: path} }

// ID implements Target.
func (t DirectoryTarget) ID() TargetID {
	id, err := NewTargetID(map[string]interface{}{"type": "directory", "path": t.Path})
	if err != nil {
		panic(err)
	}
	return id
}

// Timestamp implements Target.
func (t DirectoryTarget) Timestamp() (Timestamp, bool) {
	info, err := os.Stat(t.Path)
	if err != nil || !info.IsDir() {
		return 0, false
	}
	return MinTimestamp, true
}

func (t DirectoryTarget) String() string { return t.Path + "/" }

// PhonyTarget identifies a target with no filesystem existence: it has no timestamp, so
// the staleness oracle always reports NeverBuilt for it, and (absent a rule that overrides
// this by having no recipe) it is rebuilt on every build that reaches it.
//
// Name distinguishes otherwise-identical phony targets (e.g. "all", "clean", "release").
type PhonyTarget struct {
	Name string
}

// NewPhonyTarget constructs a PhonyTarget with the given name.
func NewPhonyTarget(name string) PhonyTarget { return PhonyTarget{Name: name} }

// ID implements Target.
func (t PhonyTarget) ID() TargetID {
	id, err := NewTargetID(map[string]interface{}{"type": "phony", "name": t.Name})
	if err != nil {
		panic(err)
	}
	return id
}

// Timestamp implements Target. Phony targets never exist in the staleness sense.
func (t PhonyTarget) Timestamp() (Timestamp, bool) { return 0, false }

func (t PhonyTarget) String() string { return ":" + t.Name }
