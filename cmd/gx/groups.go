package main

import (
	"strings"

	"github.com/jrsala/gx/core"
)

// groupRule is a TrivialRule whose dependencies are the other phony targets (possibly other
// groups) named in a .gxconfig [groups] entry, e.g. "all = build test" makes building :all
// equivalent to building :build and :test.
type groupRule struct {
	core.TrivialRule
	members []string
}

func (r *groupRule) Deps() []core.Target {
	deps := make([]core.Target, len(r.members))
	for i, m := range r.members {
		deps[i] = core.NewPhonyTarget(m)
	}
	return deps
}

// groupRuleFactory matches any PhonyTarget named in groups, producing a groupRule for it.
// Phony targets not named there fall through unmatched, so a ruleset combining this factory
// with a language-specific one (e.g. rules/cpp, which has no PhonyTarget factory of its own)
// still resolves every other target through the other factory.
type groupRuleFactory struct {
	groups map[string]string
}

func (f groupRuleFactory) Matches(t core.Target) bool {
	p, ok := t.(core.PhonyTarget)
	if !ok {
		return false
	}
	_, ok = f.groups[p.Name]
	return ok
}

func (f groupRuleFactory) Instantiate(t core.Target) core.Rule {
	p := t.(core.PhonyTarget)
	return &groupRule{members: strings.Fields(f.groups[p.Name])}
}
