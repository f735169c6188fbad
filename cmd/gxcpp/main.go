// Command gxcpp is the illustrative C++ build driver, porting examples/cpp/build.py
// (original_source): it globs a source tree for .cpp files and builds a "release" or
// "debug" artifact named foo, using package rules/cpp for the actual compile/link rules.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/karrick/godirwalk"
	"github.com/thought-machine/go-flags"
	"go.uber.org/automaxprocs/maxprocs"
	"gopkg.in/op/go-logging.v1"

	"github.com/jrsala/gx/cli"
	"github.com/jrsala/gx/cliconfig"
	"github.com/jrsala/gx/core"
	"github.com/jrsala/gx/exec"
	"github.com/jrsala/gx/gxwatch"
	"github.com/jrsala/gx/rules/cpp"
)

var log = logging.MustGetLogger("gxcpp")

const (
	srcDirName   = "src"
	buildDirName = "build"
	artifactName = "foo"
)

var cxxflagsCommon = "-Wall -Werror"
var cxxflagsRelease = cxxflagsCommon + " -O2 -flto -march=native"
var cxxflagsDebug = cxxflagsCommon + " -O0 -g3"
var ldflags = "-lstdc++"

// buildMode identifies which PhonyTarget variant ("release" or "debug") to produce,
// mirroring examples/cpp/build.py's BuildMode enum.
type buildMode int

const (
	modeRelease buildMode = iota
	modeDebug
)

func buildModeFromString(s string) (buildMode, error) {
	switch strings.ToUpper(s) {
	case "RELEASE":
		return modeRelease, nil
	case "DEBUG":
		return modeDebug, nil
	default:
		return 0, fmt.Errorf("invalid build mode %q", s)
	}
}

func (m buildMode) dirname() string {
	if m == modeDebug {
		return "debug"
	}
	return "release"
}

// buildModeTarget is a PhonyTarget naming a build mode; its rule resolves to the linked
// artifact for that mode.
type buildModeTarget struct {
	mode buildMode
}

func (t buildModeTarget) ID() core.TargetID {
	id, err := core.NewTargetID(map[string]interface{}{"type": "gxcpp.build_mode", "mode": int(t.mode)})
	if err != nil {
		panic(err)
	}
	return id
}

func (t buildModeTarget) Timestamp() (core.Timestamp, bool) { return 0, false }
func (t buildModeTarget) String() string                    { return t.mode.dirname() }

type buildModeRule struct {
	core.TrivialRule
	tgt              buildModeTarget
	cppFilePaths     []string
	buildDirAbs      string
}

func (r *buildModeRule) Deps() []core.Target {
	modeBuildDir := filepath.Join(r.buildDirAbs, r.tgt.mode.dirname())
	flags := cxxflagsRelease
	if r.tgt.mode == modeDebug {
		flags = cxxflagsDebug
	}
	return []core.Target{cpp.LinkedArtifactTarget{
		Path:         filepath.Join(modeBuildDir, artifactName),
		CxxFlags:     flags,
		LdFlags:      ldflags,
		CppFilePaths: r.cppFilePaths,
		MakeObjectFilePath: func(cppFilePath string) string {
			return cpp.ObjectFilePath(srcDirName, modeBuildDir, cppFilePath)
		},
	}}
}

var opts struct {
	Usage string `usage:"gxcpp builds the example C++ project under src/ into build/<mode>/foo."`

	BuildFlags struct {
		WorkerCount int  `short:"j" long:"jobs" description:"Number of concurrent build operations." default:"1"`
		Watch       bool `short:"w" long:"watch" description:"Watch sources and rebuild on change."`
	} `group:"Options controlling what to build & how to build it"`

	OutputFlags struct {
		Verbosity int `short:"v" long:"verbosity" description:"Verbosity of output, 0 (error) through 4 (debug)." default:"3"`
	} `group:"Options controlling output & logging"`

	Args struct {
		Targets []string `positional-arg-name:"targets" description:"Build modes to build (release, debug)."`
	} `positional-args:"yes"`
}

func main() {
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flags.WroteHelp(err) {
			os.Exit(0)
		}
		os.Exit(1)
	}

	cli.InitLogging(cli.Verbosity(opts.OutputFlags.Verbosity))

	config, _ := cliconfig.ReadConfigFiles([]string{".gxconfig"})
	workerCount := config.Build.WorkerCount
	if opts.BuildFlags.WorkerCount > 0 {
		workerCount = opts.BuildFlags.WorkerCount
	}

	if _, err := maxprocs.Set(maxprocs.Logger(log.Info), maxprocs.Min(workerCount)); err != nil {
		log.Errorf("failed to set GOMAXPROCS: %s", err)
	}

	targets := opts.Args.Targets
	if len(targets) == 0 {
		targets = []string{"release"}
	}

	cppFilePaths, err := globCppFiles(srcDirName)
	if err != nil {
		log.Fatalf("scanning %s: %s", srcDirName, err)
	}

	buildDirAbs, err := filepath.Abs(buildDirName)
	if err != nil {
		log.Fatalf("resolving %s: %s", buildDirName, err)
	}

	rsb := cpp.NewRuleSetBuilder()
	for _, mode := range []buildMode{modeRelease, modeDebug} {
		tgt := buildModeTarget{mode: mode}
		rsb.AddStaticRule(tgt, &buildModeRule{tgt: tgt, cppFilePaths: cppFilePaths, buildDirAbs: buildDirAbs})
	}

	build := func() bool {
		executor, err := exec.New(rsb.Build(), workerCount, ".")
		if err != nil {
			log.Fatalf("%s", err)
		}
		roots := make([]core.Target, len(targets))
		for i, t := range targets {
			mode, err := buildModeFromString(t)
			if err != nil {
				log.Fatalf("%s", err)
			}
			roots[i] = buildModeTarget{mode: mode}
		}
		ok, err := executor.Build(roots)
		if err != nil {
			log.Errorf("build failed: %s", err)
			return false
		}
		return ok
	}

	if opts.BuildFlags.Watch {
		if err := gxwatch.Watch(cppFilePaths, func() { build() }); err != nil {
			log.Fatalf("watch: %s", err)
		}
		return
	}

	if !build() {
		os.Exit(1)
	}
}

// globCppFiles walks srcDir for .cpp files using github.com/karrick/godirwalk, the teacher's
// own filepath.Walk replacement (src/fs/walk.go), rather than the stdlib walker.
func globCppFiles(srcDir string) ([]string, error) {
	var out []string
	err := godirwalk.Walk(srcDir, &godirwalk.Options{
		Callback: func(path string, ent *godirwalk.Dirent) error {
			if !ent.IsDir() && strings.HasSuffix(path, ".cpp") {
				out = append(out, path)
			}
			return nil
		},
	})
	return out, err
}
