// Package cliconfig reads the optional .gxconfig file a repo may keep at its root, in the
// same ini-ish format and with the same "defaults, then override per file found" merge
// policy as Please's own config loader (src/core/config.go), ported here because the
// retrieved pack carries github.com/please-build/gcfg specifically for this purpose.
package cliconfig

import (
	"os"

	"github.com/please-build/gcfg"
	"gopkg.in/op/go-logging.v1"
)

var log = logging.MustGetLogger("cliconfig")

// Configuration is the shape of a .gxconfig file.
type Configuration struct {
	Build struct {
		// WorkerCount is the default worker pool size, overridable with -j on the command line.
		WorkerCount int `gcfg:"worker-count"`
		// WorkDir is the default base working directory recipes run in, relative to the
		// config file's own directory if not absolute.
		WorkDir string `gcfg:"work-dir"`
	}
	Log struct {
		// Level names a diagnostic level: one of debug, info, notice, warning, error,
		// critical. It is read from the file but neither cmd/gx nor cmd/gxcpp applies it;
		// their log level comes from the -v flag alone.
		Level string `gcfg:"level"`
	}
	// Groups defines named phony-target aliases: each key is a group name, each value a
	// whitespace-separated list of the targets it expands to (which may themselves be group
	// names, so groups can nest). Mirrors Please's own `[alias]` section
	// (`core.Configuration.Aliases`, a map[string]string keyed by the ini key within that
	// section), just expanding to a target list instead of a command line.
	//
	// [groups]
	// all = build test
	// build = :foo :bar
	Groups map[string]string
}

// Default returns a Configuration with the baseline values used when no config file exists
// or a file doesn't set a given key.
func Default() *Configuration {
	c := &Configuration{}
	c.Build.WorkerCount = 1
	c.Build.WorkDir = "."
	c.Log.Level = "info"
	c.Groups = map[string]string{}
	return c
}

// ReadConfigFiles merges each of filenames, in order, over the defaults. A missing file is
// not an error (matching Please's own policy: a repo need not have a config file at all); a
// malformed one is.
func ReadConfigFiles(filenames []string) (*Configuration, error) {
	config := Default()
	for _, filename := range filenames {
		if err := readConfigFile(config, filename); err != nil {
			return config, err
		}
	}
	return config, nil
}

func readConfigFile(config *Configuration, filename string) error {
	if err := gcfg.ReadFileInto(config, filename); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		if gcfg.FatalOnly(err) != nil {
			return err
		}
		log.Warningf("error in config file %s: %s", filename, err)
	}
	return nil
}
