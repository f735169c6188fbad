package core

import (
	"fmt"
	"strings"
)

// NoRuleMatchError is raised when the ruleset has no static rule and no factory matching a
// target encountered during expansion. Fatal for the whole build.
type NoRuleMatchError struct {
	Target Target
}

func (e *NoRuleMatchError) Error() string {
	return fmt.Sprintf("no rule matches target %s", e.Target.ID())
}

// AmbiguousTargetError is raised when more than one rule factory matches a target
// encountered during expansion. Fatal for the whole build.
type AmbiguousTargetError struct {
	Target    Target
	Factories []RuleFactory
}

func (e *AmbiguousTargetError) Error() string {
	return fmt.Sprintf("target %s matches %d rule factories, expected exactly one", e.Target.ID(), len(e.Factories))
}

// pathError is the shared implementation behind CyclicDependencyError and
// GraphExpansionError: both accumulate a chain of targets as the error unwinds back up the
// expansion recursion, one ancestor appended per stack frame, so the final error can report
// the full root-to-failure (or root-to-cycle) chain.
type pathError struct {
	path []Target // insertion order: failure point first, root last, until finalize() reverses it
}

func (e *pathError) addAncestor(t Target) { e.path = append(e.path, t) }

// finalize reverses the accumulated path into root-to-failure order. Called exactly once,
// by DependencyGraph.Expand, when an error propagates all the way out.
func (e *pathError) finalize() {
	for i, j := 0, len(e.path)-1; i < j; i, j = i+1, j-1 {
		e.path[i], e.path[j] = e.path[j], e.path[i]
	}
}

func (e *pathError) pathString() string {
	ids := make([]string, len(e.path))
	for i, t := range e.path {
		ids[i] = t.ID().String()
	}
	return strings.Join(ids, "\n -> ")
}

// Path returns the accumulated chain of targets, in root-to-failure order (valid only
// after the error has fully propagated out of DependencyGraph.Expand).
func (e *pathError) Path() []Target {
	out := make([]Target, len(e.path))
	copy(out, e.path)
	return out
}

// CyclicDependencyError is raised when expansion re-enters a node that is still being
// visited further down the same DFS traversal. Path() reports the cycle starting and
// ending at the same target, e.g. [X, Y, Z, X] for a cycle X -> Y -> Z -> X.
type CyclicDependencyError struct {
	pathError
}

func (e *CyclicDependencyError) Error() string {
	return "cyclic dependency:\n   " + e.pathString()
}

// GraphExpansionError wraps any unexpected error raised while computing a rule's
// dependencies (a panic from Rule.Deps, or a resolution failure — NoRuleMatchError /
// AmbiguousTargetError — for one of its dependencies) during expansion, together with the
// chain of ancestors between the node where expansion was entered and the node where the
// error actually originated.
type GraphExpansionError struct {
	pathError
	Cause error
}

func (e *GraphExpansionError) Error() string {
	return fmt.Sprintf("error expanding dependency graph:\n   %s\ncaused by: %s", e.pathString(), e.Cause)
}

// Unwrap allows errors.As / errors.Is to see through to Cause.
func (e *GraphExpansionError) Unwrap() error { return e.Cause }

// RecipeFailureError wraps a recipe's error with the target it was building. Unlike the
// other four error kinds, this one is non-fatal: the owning node is marked Failure, the
// overall build result becomes false, and dependent ancestors cascade to Failure without
// running, but independent branches of the DAG continue.
type RecipeFailureError struct {
	Target Target
	Cause  error
}

func (e *RecipeFailureError) Error() string {
	return fmt.Sprintf("recipe failed for %s: %s", e.Target.ID(), e.Cause)
}

// Unwrap allows errors.As / errors.Is to see through to Cause.
func (e *RecipeFailureError) Unwrap() error { return e.Cause }
