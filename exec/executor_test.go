package exec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jrsala/gx/core"
)

func newExecutor(t *testing.T, rs *core.Ruleset) *Executor {
	t.Helper()
	e, err := New(rs, 2, t.TempDir())
	require.NoError(t, err)
	return e
}

func TestBuildRunsRecipeForNeverBuiltLeaf(t *testing.T) {
	tgt := newMemTarget("leaf")
	rule := &memRule{hasRecipe: true}
	e := newExecutor(t, staticRuleset(map[core.Target]core.Rule{tgt: rule}))

	ok, err := e.Build([]core.Target{tgt})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, rule.callCount())
}

func TestBuildSkipsUpToDateNode(t *testing.T) {
	dep := newMemTarget("dep")
	dep.exists, dep.timestamp = true, 5

	tgt := newMemTarget("out")
	tgt.exists, tgt.timestamp = true, 10 // strictly newer than dep: up to date

	depRule := &memRule{hasRecipe: true}
	outRule := &memRule{hasRecipe: true, deps: []core.Target{dep}}

	e := newExecutor(t, staticRuleset(map[core.Target]core.Rule{dep: depRule, tgt: outRule}))
	ok, err := e.Build([]core.Target{tgt})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0, outRule.callCount(), "up-to-date node must not run its recipe")
}

func TestBuildRebuildsOutOfDateNode(t *testing.T) {
	dep := newMemTarget("dep")
	dep.exists, dep.timestamp = true, 10

	tgt := newMemTarget("out")
	tgt.exists, tgt.timestamp = true, 5 // strictly older than dep: out of date

	outRule := &memRule{hasRecipe: true, deps: []core.Target{dep}}
	e := newExecutor(t, staticRuleset(map[core.Target]core.Rule{dep: &memRule{hasRecipe: true}, tgt: outRule}))

	ok, err := e.Build([]core.Target{tgt})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, outRule.callCount())
}

// TestFailurePropagatesToAncestorWithoutRunningRecipe is property P5.
func TestFailurePropagatesToAncestorWithoutRunningRecipe(t *testing.T) {
	dep := newMemTarget("dep")
	depRule := &memRule{hasRecipe: true, recipeErr: assertErr}

	ancestor := newMemTarget("ancestor")
	ancestorRule := &memRule{hasRecipe: true, deps: []core.Target{dep}}

	e := newExecutor(t, staticRuleset(map[core.Target]core.Rule{dep: depRule, ancestor: ancestorRule}))
	ok, err := e.Build([]core.Target{ancestor})

	assert.False(t, ok)
	require.Error(t, err)
	assert.Equal(t, 0, ancestorRule.callCount(), "ancestor of a failed node must never run its recipe")
}

// TestIndependentBranchSucceedsDespiteOtherFailing is property P7.
func TestIndependentBranchSucceedsDespiteOtherFailing(t *testing.T) {
	failing := newMemTarget("failing")
	failingRule := &memRule{hasRecipe: true, recipeErr: assertErr}

	healthy := newMemTarget("healthy")
	healthyRule := &memRule{hasRecipe: true}

	e := newExecutor(t, staticRuleset(map[core.Target]core.Rule{failing: failingRule, healthy: healthyRule}))
	ok, err := e.Build([]core.Target{failing, healthy})

	assert.False(t, ok)
	require.Error(t, err)
	assert.Equal(t, 1, healthyRule.callCount(), "independent branch must still be built")
}

func TestTrivialRuleNeverDispatchedToPool(t *testing.T) {
	tgt := newMemTarget("phony")
	rule := &memRule{hasRecipe: false}
	e := newExecutor(t, staticRuleset(map[core.Target]core.Rule{tgt: rule}))

	ok, err := e.Build([]core.Target{tgt})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0, rule.callCount())
}

// TestDynamicDependencyDiscoveryViaOnSuccess exercises a predecessor's Expander.Expand call
// from within OnSuccess: "scanner" succeeds and, in its OnSuccess hook, injects a brand new
// dependency into "consumer" (its predecessor) and re-expands it. The build must not
// consider "consumer" done until the newly discovered dependency has also completed.
func TestDynamicDependencyDiscoveryViaOnSuccess(t *testing.T) {
	discovered := newMemTarget("discovered")
	discoveredRule := &memRule{hasRecipe: true}

	scanner := newMemTarget("scanner")
	scannerRule := &memRule{hasRecipe: true}

	consumer := newMemTarget("consumer")
	consumerRule := &memRule{hasRecipe: true, deps: []core.Target{scanner}}

	scannerRule.onSuccessFn = func(ex core.Expander, n *core.Node, jobValue interface{}) {
		for _, p := range n.Predecessors() {
			pr := p.Rule().(*memRule)
			pr.setDeps(append(pr.Deps(), discovered))
			require.NoError(t, ex.Expand(p))
		}
	}

	e := newExecutor(t, staticRuleset(map[core.Target]core.Rule{
		discovered: discoveredRule,
		scanner:    scannerRule,
		consumer:   consumerRule,
	}))

	ok, err := e.Build([]core.Target{consumer})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, discoveredRule.callCount(), "dynamically discovered dependency must be built")
	assert.Equal(t, 1, consumerRule.callCount())
}

var assertErr = &testError{"recipe failed"}

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }
