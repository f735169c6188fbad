// Command gx is a thin driver around package exec: it reads .gxconfig, parses command-line
// flags in Please's opts-struct-with-tags convention (src/please.go), and builds a set of
// phony targets named on the command line.
//
// gx on its own has no language rules wired in — the only rules it knows how to produce are
// the [groups] aliases defined in .gxconfig (each a TrivialRule whose dependencies are the
// group's named members, themselves phony targets), so it is mostly a smoke-test / scripting
// entry point for grouping other targets together. cmd/gxcpp is the real illustrative
// driver, wiring in package rules/cpp the way examples/cpp/build.py does.
package main

import (
	"os"
	"path/filepath"

	"github.com/thought-machine/go-flags"
	"go.uber.org/automaxprocs/maxprocs"
	"gopkg.in/op/go-logging.v1"

	"github.com/jrsala/gx/cli"
	"github.com/jrsala/gx/cliconfig"
	"github.com/jrsala/gx/core"
	"github.com/jrsala/gx/exec"
)

var log = logging.MustGetLogger("gx")

var opts struct {
	Usage string `usage:"gx builds a set of named phony targets, each a [groups] alias for other targets defined in .gxconfig."`

	BuildFlags struct {
		WorkerCount int    `short:"j" long:"jobs" env:"GX_JOBS" description:"Number of concurrent build operations."`
		WorkDir     string `short:"d" long:"work_dir" description:"Base working directory recipes run in."`
		ConfigFile  string `long:"config" env:"GX_CONFIG" description:"Path to the .gxconfig file to read." default:".gxconfig"`
	} `group:"Options controlling what to build & how to build it"`

	OutputFlags struct {
		Verbosity int `short:"v" long:"verbosity" description:"Verbosity of output, 0 (error) through 4 (debug)." default:"3"`
	} `group:"Options controlling output & logging"`

	Args struct {
		Targets []string `positional-arg-name:"targets" description:"Phony targets to build."`
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

	config, err := cliconfig.ReadConfigFiles([]string{opts.BuildFlags.ConfigFile})
	if err != nil {
		log.Fatalf("reading config: %s", err)
	}
	workerCount := config.Build.WorkerCount
	if opts.BuildFlags.WorkerCount > 0 {
		workerCount = opts.BuildFlags.WorkerCount
	}
	workDir := config.Build.WorkDir
	if !filepath.IsAbs(workDir) {
		workDir = filepath.Join(filepath.Dir(opts.BuildFlags.ConfigFile), workDir)
	}
	if opts.BuildFlags.WorkDir != "" {
		workDir = opts.BuildFlags.WorkDir
	}

	if _, err := maxprocs.Set(maxprocs.Logger(log.Info), maxprocs.Min(workerCount)); err != nil {
		log.Errorf("failed to set GOMAXPROCS: %s", err)
	}

	targets := opts.Args.Targets
	if len(targets) == 0 {
		targets = []string{"all"}
	}

	rsb := core.NewRuleSetBuilder()
	rsb.AddRuleFactory(groupRuleFactory{groups: config.Groups})
	executor, err := exec.New(rsb.Build(), workerCount, workDir)
	if err != nil {
		log.Fatalf("%s", err)
	}

	roots := make([]core.Target, len(targets))
	for i, t := range targets {
		roots[i] = core.NewPhonyTarget(t)
	}

	ok, err := executor.Build(roots)
	if err != nil {
		log.Errorf("build failed: %s", err)
		os.Exit(1)
	}
	if !ok {
		os.Exit(1)
	}
}
