// Package cpp is an illustrative rule library for building C/C++ projects: object files and
// linked artifacts (executables or shared libraries), with automatic header-dependency
// discovery via `gcc -MM`. It also defines a StaticLibraryTarget identity, but no rule that
// builds one. It is a consumer of package core, not part of
// the core engine, and exists to exercise the graph against a realistic, nontrivial language
// toolchain — exactly the role GX.langs.cpp plays for the original library (original_source).
package cpp

import (
	"os"
	"path/filepath"

	"gopkg.in/op/go-logging.v1"

	"github.com/jrsala/gx/core"
)

var log = logging.MustGetLogger("rules/cpp")

// fileTimestamp is the os.Stat-based timestamp logic shared by every path-addressed target
// in this package, matching core.FileTarget's own implementation.
func fileTimestamp(path string) (core.Timestamp, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, false
	}
	return core.Timestamp(info.ModTime().UnixNano()), true
}

// CompiledTarget identifies a compiled file (an object file or a linked artifact) by its
// path and the set of compilation flags used to produce it: two targets at the same path
// built with different flags are different targets, so changing a flag correctly forces a
// rebuild instead of silently reusing a stale object file.
type CompiledTarget struct {
	Path     string
	CxxFlags string
}

func (t CompiledTarget) ID() core.TargetID {
	id, err := core.NewTargetID(map[string]interface{}{
		"type": "cpp.compiled", "path": t.Path, "cxxflags": t.CxxFlags,
	})
	if err != nil {
		panic(err)
	}
	return id
}

func (t CompiledTarget) Timestamp() (core.Timestamp, bool) { return fileTimestamp(t.Path) }
func (t CompiledTarget) String() string                    { return t.Path }

// LinkedArtifactTarget identifies the result of a link step: an executable or a shared
// library assembled from a fixed set of .cpp sources. MakeObjectFilePath maps each source
// path to the object file path the linker should depend on; it is behavior, not identifying
// state, so (like the Python original's plain instance attribute, versus its Id-wrapped
// siblings) it is excluded from the target's ID.
type LinkedArtifactTarget struct {
	Path               string
	CxxFlags           string
	LdFlags            string
	CppFilePaths       []string
	MakeObjectFilePath func(cppFilePath string) string
}

func (t LinkedArtifactTarget) ID() core.TargetID {
	id, err := core.NewTargetID(map[string]interface{}{
		"type": "cpp.linked_artifact", "path": t.Path, "cxxflags": t.CxxFlags,
		"ldflags": t.LdFlags, "cpp_file_paths": toAnySlice(t.CppFilePaths),
	})
	if err != nil {
		panic(err)
	}
	return id
}

func (t LinkedArtifactTarget) Timestamp() (core.Timestamp, bool) { return fileTimestamp(t.Path) }
func (t LinkedArtifactTarget) String() string                    { return t.Path }

// StaticLibraryTarget identifies a static library archive made from a fixed set of .cpp
// sources. Only its identity and timestamp are defined here: NewRuleSetBuilder has no rule
// for it, so nothing in this package archives the objects.
type StaticLibraryTarget struct {
	Path         string
	CxxFlags     string
	CppFilePaths []string
}

func (t StaticLibraryTarget) ID() core.TargetID {
	id, err := core.NewTargetID(map[string]interface{}{
		"type": "cpp.static_library", "path": t.Path, "cxxflags": t.CxxFlags,
		"cpp_file_paths": toAnySlice(t.CppFilePaths),
	})
	if err != nil {
		panic(err)
	}
	return id
}

func (t StaticLibraryTarget) Timestamp() (core.Timestamp, bool) { return fileTimestamp(t.Path) }
func (t StaticLibraryTarget) String() string                    { return t.Path }

// ObjectFileTarget identifies a single compiled object file produced from one .cpp source.
type ObjectFileTarget struct {
	Path        string
	CxxFlags    string
	CppFilePath string
}

func (t ObjectFileTarget) ID() core.TargetID {
	id, err := core.NewTargetID(map[string]interface{}{
		"type": "cpp.object_file", "path": t.Path, "cxxflags": t.CxxFlags,
		"cpp_file_path": t.CppFilePath,
	})
	if err != nil {
		panic(err)
	}
	return id
}

func (t ObjectFileTarget) Timestamp() (core.Timestamp, bool) { return fileTimestamp(t.Path) }
func (t ObjectFileTarget) String() string                    { return t.Path }

// HeaderDepsTarget identifies the act of computing one .cpp file's header dependencies via
// `gcc -MM`. It never reports a timestamp, so the staleness oracle always reports
// NeverBuilt for it and its recipe reruns on every build that reaches it — the source's
// "TODO write the .d file instead" tradeoff, kept deliberately.
type HeaderDepsTarget struct {
	CppFilePath string
}

func (t HeaderDepsTarget) ID() core.TargetID {
	id, err := core.NewTargetID(map[string]interface{}{
		"type": "cpp.header_deps", "cpp_file_path": t.CppFilePath,
	})
	if err != nil {
		panic(err)
	}
	return id
}

func (t HeaderDepsTarget) Timestamp() (core.Timestamp, bool) { return 0, false }
func (t HeaderDepsTarget) String() string                    { return "header-deps:" + t.CppFilePath }

// SourceFileTarget identifies a hand-written .cpp or .h file.
type SourceFileTarget struct {
	Path string
}

func (t SourceFileTarget) ID() core.TargetID {
	id, err := core.NewTargetID(map[string]interface{}{"type": "cpp.source_file", "path": t.Path})
	if err != nil {
		panic(err)
	}
	return id
}

func (t SourceFileTarget) Timestamp() (core.Timestamp, bool) { return fileTimestamp(t.Path) }
func (t SourceFileTarget) String() string                    { return t.Path }

func toAnySlice(ss []string) []interface{} {
	out := make([]interface{}, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// ObjectFilePath mirrors make_object_file_path from examples/cpp/build.py: a .cpp source
// under srcDir maps to buildDir/<same relative path>.o. Callers building a
// LinkedArtifactTarget typically close over this to build its MakeObjectFilePath function.
func ObjectFilePath(srcDir, buildDir, cppFilePath string) string {
	rel, err := filepath.Rel(srcDir, cppFilePath)
	if err != nil {
		rel = cppFilePath
	}
	ext := filepath.Ext(rel)
	return filepath.Join(buildDir, rel[:len(rel)-len(ext)]+".o")
}
