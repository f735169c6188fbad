package cpp

import (
	"fmt"

	"github.com/jrsala/gx/core"
	"github.com/jrsala/gx/rules/shell"
)

// directoryRule makes sure a directory exists with `mkdir -p`. Grounded on
// GX.langs.cpp.cpp_ruleset_builder's DirectoryRule.
type directoryRule struct {
	core.BaseRule
	path string
}

func (r *directoryRule) Deps() []core.Target { return nil }
func (r *directoryRule) HasRecipe() bool     { return true }
func (r *directoryRule) Recipe() core.RecipeFunc {
	return func(ctx core.RecipeContext) (interface{}, error) {
		_, err := shell.Run(ctx.WorkDir, fmt.Sprintf("mkdir -p %s", r.path))
		return nil, err
	}
}

// linkedArtifactRule links a set of object files (one per source, computed via
// MakeObjectFilePath) into an executable or shared library.
type linkedArtifactRule struct {
	core.BaseRule
	tgt     LinkedArtifactTarget
	objTgts []ObjectFileTarget
}

func newLinkedArtifactRule(tgt LinkedArtifactTarget) *linkedArtifactRule {
	objTgts := make([]ObjectFileTarget, len(tgt.CppFilePaths))
	for i, p := range tgt.CppFilePaths {
		objTgts[i] = ObjectFileTarget{
			Path:        tgt.MakeObjectFilePath(p),
			CxxFlags:    tgt.CxxFlags,
			CppFilePath: p,
		}
	}
	return &linkedArtifactRule{tgt: tgt, objTgts: objTgts}
}

func (r *linkedArtifactRule) Deps() []core.Target {
	deps := make([]core.Target, 0, len(r.objTgts)+1)
	deps = append(deps, core.NewDirectoryTarget(parentDir(r.tgt.Path)))
	for _, o := range r.objTgts {
		deps = append(deps, o)
	}
	return deps
}

func (r *linkedArtifactRule) HasRecipe() bool { return true }
func (r *linkedArtifactRule) Recipe() core.RecipeFunc {
	return func(ctx core.RecipeContext) (interface{}, error) {
		objPaths := ""
		for i, o := range r.objTgts {
			if i > 0 {
				objPaths += " "
			}
			objPaths += o.Path
		}
		cmd := fmt.Sprintf("gcc %s -o %s %s", objPaths, r.tgt.Path, r.tgt.LdFlags)
		_, err := shell.Run(ctx.WorkDir, cmd)
		return nil, err
	}
}

// objectFileRule compiles one .cpp source into an object file. Its header dependencies
// start empty and are injected later by headerDepsRule.OnSuccess, which re-expands this
// rule's node once `gcc -MM` output is available (spec.md §4.3's dynamic discovery).
type objectFileRule struct {
	core.BaseRule
	tgt         ObjectFileTarget
	headerDeps  []core.Target
}

func (r *objectFileRule) Deps() []core.Target {
	deps := []core.Target{
		core.NewDirectoryTarget(parentDir(r.tgt.Path)),
		HeaderDepsTarget{CppFilePath: r.tgt.CppFilePath},
		SourceFileTarget{Path: r.tgt.CppFilePath},
	}
	return append(deps, r.headerDeps...)
}

func (r *objectFileRule) HasRecipe() bool { return true }
func (r *objectFileRule) Recipe() core.RecipeFunc {
	return func(ctx core.RecipeContext) (interface{}, error) {
		cmd := fmt.Sprintf("gcc -c %s -o %s %s", r.tgt.CppFilePath, r.tgt.Path, r.tgt.CxxFlags)
		_, err := shell.Run(ctx.WorkDir, cmd)
		return nil, err
	}
}

// SetHeaderDeps installs the header files discovered for this object file's source, called
// by headerDepsRule.OnSuccess before it re-expands this rule's node.
func (r *objectFileRule) SetHeaderDeps(deps []core.Target) { r.headerDeps = deps }

// headerDepsRule runs `gcc -MM` on a .cpp file and, once it succeeds, pushes the discovered
// header files onto every predecessor (always an objectFileRule node, by construction of
// this ruleset) and re-expands it.
type headerDepsRule struct {
	core.BaseRule
	tgt HeaderDepsTarget
}

func (r *headerDepsRule) Deps() []core.Target {
	return []core.Target{SourceFileTarget{Path: r.tgt.CppFilePath}}
}

func (r *headerDepsRule) HasRecipe() bool { return true }
func (r *headerDepsRule) Recipe() core.RecipeFunc {
	return func(ctx core.RecipeContext) (interface{}, error) {
		out, err := shell.Run(ctx.WorkDir, fmt.Sprintf("gcc -MM %s", r.tgt.CppFilePath))
		if err != nil {
			return nil, err
		}
		deps, err := shell.ParseObjectFileMakeDeps(out)
		if err != nil {
			return nil, err
		}
		return deps, nil
	}
}

func (r *headerDepsRule) OnSuccess(ex core.Expander, n *core.Node, jobValue interface{}) {
	deps, ok := jobValue.(shell.ObjectFileDeps)
	if !ok {
		return
	}
	headerTargets := make([]core.Target, len(deps.HeaderFilenames))
	for i, name := range deps.HeaderFilenames {
		headerTargets[i] = SourceFileTarget{Path: name}
	}
	for _, p := range n.Predecessors() {
		obj, ok := p.Rule().(*objectFileRule)
		if !ok {
			log.Warningf("header deps rule expected an object file predecessor, got %T", p.Rule())
			continue
		}
		obj.SetHeaderDeps(headerTargets)
		if err := ex.Expand(p); err != nil {
			log.Errorf("re-expanding %s after header scan: %s", p.Target(), err)
		}
	}
}

// cppSourceFileRule marks a .cpp/.h file as a SourceRule: no dependencies, nothing to build.
type cppSourceFileRule struct {
	core.SourceRule
}

func parentDir(path string) string {
	i := len(path) - 1
	for i >= 0 && path[i] != '/' {
		i--
	}
	if i <= 0 {
		return "."
	}
	return path[:i]
}

// NewRuleSetBuilder returns a RuleSetBuilder pre-populated with rule factories for
// core.DirectoryTarget, LinkedArtifactTarget, ObjectFileTarget, HeaderDepsTarget and
// SourceFileTarget, mirroring GX.langs.cpp.cpp_ruleset_builder. It registers no factory for
// CompiledTarget or StaticLibraryTarget, so resolving either fails with a NoRuleMatchError.
// Callers add their own project-specific rules (e.g. a PhonyTarget for build modes) on top
// of the returned builder before calling Build.
func NewRuleSetBuilder() *core.RuleSetBuilder {
	rsb := core.NewRuleSetBuilder()

	rsb.AddRuleFactory(core.RuleFactoryFunc{
		MatchesFunc: func(t core.Target) bool {
			_, ok := t.(core.DirectoryTarget)
			return ok
		},
		InstantiateFunc: func(t core.Target) core.Rule {
			return &directoryRule{path: t.(core.DirectoryTarget).Path}
		},
	})

	rsb.AddRuleFactory(core.RuleFactoryFunc{
		MatchesFunc: func(t core.Target) bool {
			_, ok := t.(LinkedArtifactTarget)
			return ok
		},
		InstantiateFunc: func(t core.Target) core.Rule {
			return newLinkedArtifactRule(t.(LinkedArtifactTarget))
		},
	})

	rsb.AddRuleFactory(core.RuleFactoryFunc{
		MatchesFunc: func(t core.Target) bool {
			_, ok := t.(ObjectFileTarget)
			return ok
		},
		InstantiateFunc: func(t core.Target) core.Rule {
			return &objectFileRule{tgt: t.(ObjectFileTarget)}
		},
	})

	rsb.AddRuleFactory(core.RuleFactoryFunc{
		MatchesFunc: func(t core.Target) bool {
			_, ok := t.(HeaderDepsTarget)
			return ok
		},
		InstantiateFunc: func(t core.Target) core.Rule {
			return &headerDepsRule{tgt: t.(HeaderDepsTarget)}
		},
	})

	rsb.AddRuleFactory(core.RuleFactoryFunc{
		MatchesFunc: func(t core.Target) bool {
			_, ok := t.(SourceFileTarget)
			return ok
		},
		InstantiateFunc: func(t core.Target) core.Rule {
			return &cppSourceFileRule{}
		},
	})

	return rsb
}
