package exec

import (
	"sync"

	"github.com/jrsala/gx/core"
)

// memTarget is an in-memory test target: existence and timestamp are set directly rather
// than backed by the filesystem, so tests can drive staleness deterministically.
type memTarget struct {
	name      string
	exists    bool
	timestamp core.Timestamp
}

func newMemTarget(name string) *memTarget { return &memTarget{name: name} }

func (t *memTarget) ID() core.TargetID {
	id, err := core.NewTargetID(map[string]interface{}{"type": "mem", "name": t.name})
	if err != nil {
		panic(err)
	}
	return id
}

func (t *memTarget) Timestamp() (core.Timestamp, bool) { return t.timestamp, t.exists }
func (t *memTarget) String() string                    { return t.name }

// memRule is a configurable core.Rule. recipeCalls counts how many times Recipe's closure
// actually ran, guarded by a mutex since the scheduler may run recipes from pool
// goroutines concurrently.
type memRule struct {
	core.BaseRule
	mu          sync.Mutex
	deps        []core.Target
	hasRecipe   bool
	recipeCalls int
	recipeErr   error
	recipeValue interface{}
	onSuccessFn func(ex core.Expander, n *core.Node, jobValue interface{})
}

func (r *memRule) Deps() []core.Target {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]core.Target{}, r.deps...)
}

func (r *memRule) setDeps(deps []core.Target) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deps = deps
}

func (r *memRule) HasRecipe() bool { return r.hasRecipe }

func (r *memRule) Recipe() core.RecipeFunc {
	return func(ctx core.RecipeContext) (interface{}, error) {
		r.mu.Lock()
		r.recipeCalls++
		r.mu.Unlock()
		return r.recipeValue, r.recipeErr
	}
}

func (r *memRule) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recipeCalls
}

func (r *memRule) OnSuccess(ex core.Expander, n *core.Node, jobValue interface{}) {
	if r.onSuccessFn != nil {
		r.onSuccessFn(ex, n, jobValue)
	}
}

// staticRuleset builds a core.Ruleset by static registration keyed on identical targets;
// tests construct the whole rule graph up front and wire it in with AddStaticRule.
func staticRuleset(pairs map[core.Target]core.Rule) *core.Ruleset {
	b := core.NewRuleSetBuilder()
	for t, r := range pairs {
		b.AddStaticRule(t, r)
	}
	return b.Build()
}
