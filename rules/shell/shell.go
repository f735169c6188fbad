// Package shell provides the shelling-out helper and gcc dependency-output parser shared by
// the illustrative rule libraries in package rules. Grounded on GX.util (original_source):
// Run replaces GX.util.sh, and ParseObjectFileMakeDeps replaces
// GX.util.parse_object_file_make_deps almost line for line, since the grammar it parses
// (gcc -MM output) doesn't change across languages.
//
// The one deliberate change from the source: Run never sets shell=True. Splitting the
// command line with github.com/google/shlex and exec.Command'ing the argv directly avoids
// handing a shell a string built out of target paths and flags, some of which
// (cpp_file_paths glob results, in particular) could contain characters a shell would
// reinterpret.
package shell

import (
	"bytes"
	"fmt"
	"os/exec"
	"regexp"

	"github.com/google/shlex"
	"gopkg.in/op/go-logging.v1"
)

var log = logging.MustGetLogger("rules/shell")

// Run splits cmd into argv with shell-like quoting rules and executes it in workDir,
// returning stdout on success. On failure the returned error includes the command's stderr;
// its stdout is discarded.
func Run(workDir, cmd string) (stdout string, err error) {
	log.Debug(cmd)
	argv, err := shlex.Split(cmd)
	if err != nil {
		return "", fmt.Errorf("shell: splitting command %q: %w", cmd, err)
	}
	if len(argv) == 0 {
		return "", fmt.Errorf("shell: empty command")
	}
	var out, errOut bytes.Buffer
	c := exec.Command(argv[0], argv[1:]...)
	c.Dir = workDir
	c.Stdout = &out
	c.Stderr = &errOut
	if err := c.Run(); err != nil {
		return "", fmt.Errorf("shell: command %q failed: %w\n%s", cmd, err, errOut.String())
	}
	return out.String(), nil
}

// ObjectFileDeps is the parsed result of a `gcc -MM` invocation for one .cpp file: the
// object file it produces, the source file itself, and every header it transitively
// includes.
type ObjectFileDeps struct {
	ObjectFilename  string
	CppFilename     string
	HeaderFilenames []string
}

var (
	objectFileDepsRegexp        = regexp.MustCompile(`^\S+?\.o:[\s\\]*\S+?\.cpp(?:[\s\\\r\n]*[^\s\n\r\\]+)*\s*$`)
	objectFileDepsParsingRegexp = regexp.MustCompile(`[^\s\n\r\\:]+`)
)

// ParseObjectFileMakeDeps parses the Makefile-rule output of `gcc -MM <file>.cpp` into an
// ObjectFileDeps. Returns an error if input doesn't match the expected "obj.o: src.cpp
// [header ...]" shape.
func ParseObjectFileMakeDeps(input string) (ObjectFileDeps, error) {
	if !objectFileDepsRegexp.MatchString(input) {
		return ObjectFileDeps{}, fmt.Errorf("shell: invalid or unsupported make object file rule:\n%q", input)
	}
	names := objectFileDepsParsingRegexp.FindAllString(input, -1)
	if len(names) < 2 {
		return ObjectFileDeps{}, fmt.Errorf("shell: object file rule must depend on at least the .cpp file: %q", input)
	}
	objectFilename := names[0]
	if len(objectFilename) <= 2 || objectFilename[len(objectFilename)-2:] != ".o" {
		return ObjectFileDeps{}, fmt.Errorf("shell: expected object filename ending in \".o\", got %q", objectFilename)
	}
	return ObjectFileDeps{
		ObjectFilename:  objectFilename,
		CppFilename:     names[1],
		HeaderFilenames: append([]string{}, names[2:]...),
	}, nil
}

func (d ObjectFileDeps) String() string {
	s := fmt.Sprintf("%s: %s", d.ObjectFilename, d.CppFilename)
	for _, h := range d.HeaderFilenames {
		s += " \\\n " + h
	}
	return s
}
