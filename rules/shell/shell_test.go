package shell

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseObjectFileMakeDepsSingleHeader(t *testing.T) {
	deps, err := ParseObjectFileMakeDeps("foo.o: foo.cpp foo.h\n")
	require.NoError(t, err)
	assert.Equal(t, "foo.o", deps.ObjectFilename)
	assert.Equal(t, "foo.cpp", deps.CppFilename)
	assert.Equal(t, []string{"foo.h"}, deps.HeaderFilenames)
}

func TestParseObjectFileMakeDepsLineContinuations(t *testing.T) {
	input := "foo.o: foo.cpp \\\n bar.h \\\n baz.h\n"
	deps, err := ParseObjectFileMakeDeps(input)
	require.NoError(t, err)
	assert.Equal(t, []string{"bar.h", "baz.h"}, deps.HeaderFilenames)
}

func TestParseObjectFileMakeDepsNoHeaders(t *testing.T) {
	deps, err := ParseObjectFileMakeDeps("foo.o: foo.cpp\n")
	require.NoError(t, err)
	assert.Empty(t, deps.HeaderFilenames)
}

func TestParseObjectFileMakeDepsRejectsMalformedInput(t *testing.T) {
	_, err := ParseObjectFileMakeDeps("not a make rule at all")
	assert.Error(t, err)
}

func TestParseObjectFileMakeDepsRejectsNonObjectTarget(t *testing.T) {
	_, err := ParseObjectFileMakeDeps("foo.txt: foo.cpp\n")
	assert.Error(t, err)
}

func TestRunSplitsAndExecutesCommand(t *testing.T) {
	out, err := Run(t.TempDir(), "echo hello")
	require.NoError(t, err)
	assert.Contains(t, out, "hello")
}

func TestRunReportsNonZeroExit(t *testing.T) {
	_, err := Run(t.TempDir(), "false")
	assert.Error(t, err)
}

func TestObjectFileDepsString(t *testing.T) {
	d := ObjectFileDeps{ObjectFilename: "foo.o", CppFilename: "foo.cpp", HeaderFilenames: []string{"foo.h"}}
	assert.Contains(t, d.String(), "foo.o: foo.cpp")
	assert.Contains(t, d.String(), "foo.h")
}
