package core

// Test-only Target and Rule implementations shared across this package's test files.

// fakeTarget is a named, phony-like test target with a controllable timestamp.
type fakeTarget struct {
	name   string
	ts     Timestamp
	exists bool
}

func newFakeTarget(name string) fakeTarget { return fakeTarget{name: name} }

func (t fakeTarget) ID() TargetID {
	id, err := NewTargetID(map[string]interface{}{"type": "fake", "name": t.name})
	if err != nil {
		panic(err)
	}
	return id
}

func (t fakeTarget) Timestamp() (Timestamp, bool) { return t.ts, t.exists }

func (t fakeTarget) String() string { return t.name }

func (t fakeTarget) withTimestamp(ts Timestamp) fakeTarget {
	t.ts, t.exists = ts, true
	return t
}

// fakeRule is a configurable Rule: its dependency list and recipe presence are set directly
// by the test, and DepsFunc may panic or return a dynamic list across calls to exercise
// re-expansion and error paths.
type fakeRule struct {
	BaseRule
	DepsFunc     func() []Target
	HasRecipeVal bool
	RecipeFunc   RecipeFunc
	OnSuccessFn  func(ex Expander, n *Node, jobValue interface{})
}

func (r *fakeRule) Deps() []Target {
	if r.DepsFunc == nil {
		return nil
	}
	return r.DepsFunc()
}

func (r *fakeRule) HasRecipe() bool { return r.HasRecipeVal }

func (r *fakeRule) Recipe() RecipeFunc { return r.RecipeFunc }

func (r *fakeRule) OnSuccess(ex Expander, n *Node, jobValue interface{}) {
	if r.OnSuccessFn != nil {
		r.OnSuccessFn(ex, n, jobValue)
	}
}

// fakeRuleFactory matches any target whose name is in names (or, if names is nil, every
// target), constructing a leaf fakeRule with no deps and no recipe for each.
type fakeRuleFactory struct {
	names map[string]struct{}
	make  func(t Target) Rule
}

func (f fakeRuleFactory) Matches(t Target) bool {
	if f.names == nil {
		return true
	}
	ft, ok := t.(fakeTarget)
	if !ok {
		return false
	}
	_, ok = f.names[ft.name]
	return ok
}

func (f fakeRuleFactory) Instantiate(t Target) Rule {
	if f.make != nil {
		return f.make(t)
	}
	return &fakeRule{}
}
