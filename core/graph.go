// Representation and expansion of the dependency graph. The graph of targets forms a DAG
// which we discover from the roots down (Expand) and build leaves-up (package exec).
package core

import (
	"fmt"
	"sync"
)

// DependencyGraph owns every Node reached so far and the TargetID -> Node index that makes
// node sharing work (invariant 1 in spec.md §3: at most one Node per TargetID). Nodes are
// held in an arena slice (nodes), a flat allocation that also gives each Node a stable
// integer ID for diagnostics, per SPEC_FULL.md §9's "store nodes in an arena" redesign
// note; cross-references between nodes (Successors / Predecessors) are plain *Node
// pointers rather than a second indirection through that ID, since Go's garbage collector
// makes that safe and it's the more idiomatic choice here (see DESIGN.md).
type DependencyGraph struct {
	mu       sync.Mutex
	ruleset  *Ruleset
	nodes    []*Node
	nodeByID map[TargetID]*Node
}

// NewDependencyGraph constructs an empty graph resolving unknown targets against ruleset.
func NewDependencyGraph(ruleset *Ruleset) *DependencyGraph {
	return &DependencyGraph{
		ruleset:  ruleset,
		nodeByID: map[TargetID]*Node{},
	}
}

// GetOrMakeNode returns the existing node for t's TargetID, or resolves t to a Rule via the
// ruleset and creates one.
func (g *DependencyGraph) GetOrMakeNode(t Target) (*Node, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := t.ID()
	if n, ok := g.nodeByID[id]; ok {
		return n, nil
	}
	rule, err := g.ruleset.FindOrMakeRule(t)
	if err != nil {
		return nil, err
	}
	n := &Node{id: len(g.nodes), target: t, rule: rule}
	g.nodes = append(g.nodes, n)
	g.nodeByID[id] = n
	return n, nil
}

// Len returns the number of nodes materialized so far.
func (g *DependencyGraph) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.nodes)
}

// Datedness classifies n's freshness relative to its successors, per spec.md §4.4: NeverBuilt
// if the target doesn't exist; OutOfDate if any successor that exists is strictly newer;
// UpToDate otherwise. A successor that doesn't exist (e.g. a phony dependency) never forces
// a rebuild by its absence, so it's excluded from the comparison.
func (g *DependencyGraph) Datedness(n *Node) Datedness {
	ts, exists := n.target.Timestamp()
	if !exists {
		return NeverBuilt
	}
	newest := MinTimestamp
	any := false
	for _, s := range n.Successors {
		sts, sexists := s.target.Timestamp()
		if !sexists {
			continue
		}
		any = true
		if sts > newest {
			newest = sts
		}
	}
	if any && ts.Before(newest) {
		return OutOfDate
	}
	return UpToDate
}

// Expand materializes the subgraph reachable from root via DFS, resolving each dependency
// to a node (creating it if needed), installing successor/predecessor edges, and detecting
// cycles. It returns the set of *new* leaves discovered during this call — nodes with no
// dependencies at all, freshly visited for the first time — which is the scheduler's work
// feed; nodes that become ready only once their successors finish are discovered later, via
// predecessor-readiness propagation in package exec, not through this return value.
//
// root.traversal is reset to unvisited before the DFS starts, which is what allows
// Expand to be called again on a node that was already fully expanded (re-expansion): the
// entry node is revisited, its Deps() is called again and its successors are replaced by
// the newly returned list (see reconcileEdges), but everything previously marked visited
// below it is left untouched.
func (g *DependencyGraph) Expand(root *Node) (map[*Node]*Node, error) {
	root.traversal = unvisited
	leaves := map[*Node]*Node{}
	if err := g.expand(root, leaves); err != nil {
		switch e := err.(type) {
		case *CyclicDependencyError:
			e.finalize()
		case *GraphExpansionError:
			e.finalize()
		}
		return nil, err
	}
	return leaves, nil
}

func (g *DependencyGraph) expand(n *Node, leaves map[*Node]*Node) error {
	switch n.traversal {
	case visited:
		return nil
	case visiting:
		return &CyclicDependencyError{pathError{path: []Target{n.target}}}
	}
	n.traversal = visiting

	deps, err := safeDeps(n.rule)
	if err != nil {
		return err
	}

	successors := make([]*Node, 0, len(deps))
	for _, dep := range deps {
		s, err := g.GetOrMakeNode(dep)
		if err != nil {
			return err
		}
		successors = append(successors, s)
	}
	g.reconcileEdges(n, successors)
	n.Successors = successors

	if len(successors) == 0 {
		n.traversal = visited
		leaves[n] = n
		return nil
	}

	for _, s := range successors {
		if err := g.expand(s, leaves); err != nil {
			switch e := err.(type) {
			case *CyclicDependencyError:
				e.addAncestor(n.target)
				return e
			case *GraphExpansionError:
				e.addAncestor(n.target)
				return e
			default:
				return &GraphExpansionError{pathError{path: []Target{s.target}}, err}
			}
		}
	}
	n.traversal = visited
	return nil
}

// reconcileEdges replaces n's successor-side predecessor edges to match newSuccessors:
// edges to successors no longer present are dropped, edges to newly-present ones are
// added. This is what makes dynamic dependency discovery (e.g. header scanning) safe to
// re-run: a rule is free to mutate its own Deps() result between calls, and the graph's
// edge set always reflects only the most recent call (spec.md §4.3 "Edge case").
func (g *DependencyGraph) reconcileEdges(n *Node, newSuccessors []*Node) {
	newSet := make(map[*Node]struct{}, len(newSuccessors))
	for _, s := range newSuccessors {
		newSet[s] = struct{}{}
	}
	for _, old := range n.Successors {
		if _, ok := newSet[old]; !ok {
			old.removePredecessor(n)
		}
	}
	for _, s := range newSuccessors {
		s.addPredecessor(n)
	}
}

// safeDeps calls rule.Deps(), recovering a panic and reporting it as an error instead. The
// Rule interface models Deps as a pure, deterministic function with no error return (per
// spec.md §3); this recover is defensive plumbing so that a misbehaving rule produces a
// GraphExpansionError, matching the source's behaviour of letting an arbitrary exception
// from deps() escape and be wrapped one frame up, rather than crashing the whole process.
func safeDeps(rule Rule) (deps []Target, err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
			} else {
				err = fmt.Errorf("%v", r)
			}
		}
	}()
	return rule.Deps(), nil
}
