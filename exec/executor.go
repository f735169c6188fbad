// Package exec implements the scheduler: the single goroutine that drives graph expansion,
// dispatches ready nodes to a worker pool, and propagates completion up through predecessors
// until every root is done. Grounded on GX.GX.GraphExecutor (original_source) for the
// dispatch/collect loop shape and on Please's plz.Run / core/state.go for how a production
// Go build tool logs state transitions and aggregates per-target failures into one reported
// error via hashicorp/go-multierror (see DESIGN.md).
package exec

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	multierror "github.com/hashicorp/go-multierror"
	"gopkg.in/op/go-logging.v1"

	"github.com/jrsala/gx/core"
	"github.com/jrsala/gx/worker"
)

var log = logging.MustGetLogger("exec")

// resultPollInterval bounds how long the collect phase blocks on its first pop_result call
// per spec.md §4.6 ("blocking with a short timeout on first pop to avoid spinning, then
// non-blocking").
const resultPollInterval = 50 * time.Millisecond

// Executor is the scheduler: GraphExecutor in spec.md §4.6. It owns the dependency graph, a
// worker pool sized to workerCount, and the base working directory recipes are resolved
// against.
type Executor struct {
	graph       *core.DependencyGraph
	pool        *worker.Pool
	baseWorkDir string

	nodesInFlight int
	readyLeaves   map[*core.Node]struct{}
	overallOK     bool
	errs          *multierror.Error
}

// New constructs an Executor. workerCount must be at least 1; baseWorkDir is resolved to an
// absolute path once, up front, so every recipe's working directory is deterministic
// regardless of the process's own CWD at the time Build is called.
func New(ruleset *core.Ruleset, workerCount int, baseWorkDir string) (*Executor, error) {
	abs, err := filepath.Abs(baseWorkDir)
	if err != nil {
		return nil, fmt.Errorf("exec: resolving base working directory: %w", err)
	}
	return &Executor{
		graph:       core.NewDependencyGraph(ruleset),
		pool:        worker.New(workerCount),
		baseWorkDir: abs,
		readyLeaves: map[*core.Node]struct{}{},
	}, nil
}

// Expand implements core.Expander, letting a rule's OnSuccess hook request (re-)expansion of
// a predecessor after this node's job value reveals new dependencies (spec.md §4.3's
// "dynamic dependency discovery"). Newly discovered leaves are folded straight into
// readyLeaves so the running dispatch loop picks them up on its next iteration.
func (e *Executor) Expand(n *core.Node) error {
	leaves, err := e.graph.Expand(n)
	if err != nil {
		return err
	}
	for leaf := range leaves {
		e.readyLeaves[leaf] = struct{}{}
	}
	return nil
}

// Build resolves each of targets to a node, expands the graph from each of them, then runs
// every node reachable from any root to completion. It returns whether every node reached
// SUCCESS or SKIPPED, plus an aggregated error (nil if the build was entirely clean, a
// *multierror.Error wrapping one *core.RecipeFailureError per failed node otherwise, or a
// single graph-construction error if expansion itself failed before any worker ran).
func (e *Executor) Build(targets []core.Target) (bool, error) {
	e.overallOK = true

	for _, t := range targets {
		node, err := e.graph.GetOrMakeNode(t)
		if err != nil {
			return false, err
		}
		if err := e.Expand(node); err != nil {
			return false, err
		}
	}

	e.pool.Start()
	for {
		e.dispatchReady()
		if e.nodesInFlight == 0 {
			break
		}
		e.collectOne()
	}
	e.pool.Stop()

	return e.overallOK, e.errs.ErrorOrNil()
}

// dispatchReady drains readyLeaves, classifying and dispatching each node exactly once per
// spec.md §4.6 step 3's dispatch phase.
func (e *Executor) dispatchReady() {
	for len(e.readyLeaves) > 0 {
		var n *core.Node
		for k := range e.readyLeaves {
			n = k
			break
		}
		delete(e.readyLeaves, n)
		e.dispatchOne(n)
	}
}

func (e *Executor) dispatchOne(n *core.Node) {
	switch {
	case !n.Rule().HasRecipe():
		n.Status = core.StatusSuccess
		e.propagateSuccess(n, nil)
	case n.HasFailedSuccessor():
		n.Status = core.StatusFailure
		log.Noticef("Cannot build %s: target has failed dependencies", n.Target())
		e.propagateDone(n)
	default:
		switch e.graph.Datedness(n) {
		case core.UpToDate:
			n.Status = core.StatusSkipped
			log.Infof("Skipping up-to-date %s%s", n.Target(), lastReadSuffix(n.Target()))
			e.propagateSuccess(n, nil)
		case core.NeverBuilt:
			log.Infof("Building %s", n.Target())
			e.dispatchRecipe(n)
		default: // OutOfDate
			log.Infof("Rebuilding out-of-date %s", n.Target())
			e.dispatchRecipe(n)
		}
	}
}

func (e *Executor) dispatchRecipe(n *core.Node) {
	recipe := n.Rule().Recipe()
	workDir := e.resolveWorkDir(n.Target())
	e.pool.Push(worker.Job{
		Context: n,
		Run: func() (interface{}, error) {
			return recipe(core.RecipeContext{Target: n.Target(), WorkDir: workDir})
		},
	})
	e.nodesInFlight++
}

// resolveWorkDir implements spec.md §4.6's "base_wd / override" rule: an override that's
// already absolute is used as-is, a relative override is resolved against baseWorkDir, and
// no override at all means baseWorkDir itself. Targets opt into an override by implementing
// WorkDirTarget; most don't, and get baseWorkDir.
func (e *Executor) resolveWorkDir(t core.Target) string {
	wd, ok := t.(WorkDirTarget)
	if !ok {
		return e.baseWorkDir
	}
	override := wd.WorkDirOverride()
	if override == "" {
		return e.baseWorkDir
	}
	if filepath.IsAbs(override) {
		return override
	}
	return filepath.Join(e.baseWorkDir, override)
}

// accessTimer is implemented by core.FileTarget (via github.com/djherbis/atime); targets
// that don't track access time simply get no suffix.
type accessTimer interface {
	AccessTime() (time.Time, bool)
}

// lastReadSuffix renders "(last read 3 days ago)" for a skipped target that reports an
// access time, humanized via github.com/dustin/go-humanize exactly as Please's dir_cache.go
// renders cache entry ages.
func lastReadSuffix(t core.Target) string {
	at, ok := t.(accessTimer)
	if !ok {
		return ""
	}
	accessed, ok := at.AccessTime()
	if !ok {
		return ""
	}
	return fmt.Sprintf(" (last read %s)", humanize.Time(accessed))
}

// WorkDirTarget is implemented by targets that need their recipe to run somewhere other
// than the executor's base working directory.
type WorkDirTarget interface {
	// WorkDirOverride returns a path (absolute or relative to the base working directory),
	// or "" to use the base working directory unchanged.
	WorkDirOverride() string
}

// collectOne blocks (briefly, to avoid spinning) for the first result, then drains whatever
// else has already arrived non-blockingly, per spec.md §4.6 step 3's collect phase.
func (e *Executor) collectOne() {
	result, ok := e.pool.PopResult(resultPollInterval)
	if !ok {
		return
	}
	e.handleResult(result)
	for {
		result, ok := e.pool.PopResult(0)
		if !ok {
			return
		}
		e.handleResult(result)
	}
}

func (e *Executor) handleResult(result worker.Result) {
	n := result.Job.Context.(*core.Node)
	e.nodesInFlight--
	if result.Err != nil {
		n.Status = core.StatusFailure
		n.JobErr = &core.RecipeFailureError{Target: n.Target(), Cause: result.Err}
		e.overallOK = false
		e.errs = multierror.Append(e.errs, n.JobErr)
		log.Errorf("Recipe failed for %s: %s", n.Target(), result.Err)
		e.propagateDone(n)
		return
	}
	n.Status = core.StatusSuccess
	log.Infof("Built %s", n.Target())
	e.propagateSuccess(n, result.Value)
}

// propagateSuccess runs the rule's OnSuccess hook (which may call back into Expand) and then
// propagates readiness to predecessors, per spec.md §4.6's "Success propagation".
func (e *Executor) propagateSuccess(n *core.Node, jobValue interface{}) {
	n.Rule().OnSuccess(e, n, jobValue)
	e.propagateDone(n)
}

// propagateDone implements the predecessor-readiness check shared by success and failure
// propagation: a predecessor becomes ready exactly when all of its successors are done.
func (e *Executor) propagateDone(n *core.Node) {
	for _, p := range n.Predecessors() {
		if p.AllSuccessorsDone() {
			e.readyLeaves[p] = struct{}{}
		}
	}
}
