// Package scheduler implements the Idle -> PullInputs -> Run ->
// PushActivatedExec state machine that drives a board to quiescence from
// a designated start node, grounded in a coordinator dispatch loop
// (routeToNextNodes, handleAbsorberNode) generalized from a Redis-stream
// worker queue to a direct in-process call graph.
package scheduler

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/lyzr/flowengine/flow/board"
	execctx "github.com/lyzr/flowengine/flow/context"
	"github.com/lyzr/flowengine/flow/node"
	"github.com/lyzr/flowengine/flow/pin"
	"github.com/lyzr/flowengine/flow/trace"
	"github.com/lyzr/flowengine/flow/value"
)

// Registry resolves a Node's stable Name to its behavior. flow/catalog
// provides the concrete implementation; the scheduler only depends on
// this narrow interface to avoid importing every node package.
type Registry interface {
	Lookup(name string) (node.NodeLogic, bool)
}

// Status is a run's terminal outcome.
type Status string

const (
	StatusOK        Status = "ok"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Result is what Run returns once a run reaches quiescence or is halted.
type Result struct {
	Status Status
	Err    error
	Traces []*trace.Trace
}

// Scheduler drives one board's execution graph. It holds no per-run
// state itself; Run constructs a fresh dispatch tree for every
// invocation so a single Scheduler can serve concurrent runs safely.
type Scheduler struct {
	registry Registry
	logger   execctx.Logger
	maxFanout int // bounds concurrent downstream dispatch in pushActivatedExec
}

// New constructs a Scheduler bound to a node registry. maxFanout <= 0
// means unbounded (errgroup.SetLimit is skipped).
func New(registry Registry, logger execctx.Logger, maxFanout int) *Scheduler {
	return &Scheduler{registry: registry, logger: logger, maxFanout: maxFanout}
}

// run carries the mutable state shared by every context dispatched
// within a single Scheduler.Run invocation: the collected trace list and
// the first recorded failure.
type run struct {
	mu     sync.Mutex
	traces []*trace.Trace
	failed error
}

func (r *run) record(t *trace.Trace) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.traces = append(r.traces, t)
}

func (r *run) recordFailure(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failed == nil {
		r.failed = err
	}
}

// Run executes b starting at startNodeID with the given payload, driving
// scheduling until quiescence or cancellation. b must already be the resolved board snapshot for the target
// version; Run does not consult releases (flow/release does that before
// calling Run).
func (s *Scheduler) Run(ctx context.Context, b *board.Board, startNodeID string, payload value.Value, delegated bool, services execctx.Services) *Result {
	b.RLock()
	start, ok := b.Nodes[startNodeID]
	b.RUnlock()
	if !ok {
		return &Result{Status: StatusFailed, Err: fmt.Errorf("scheduler: start node %q not found", startNodeID)}
	}

	r := &run{}
	root := execctx.Root(ctx, b, start, payload, delegated, s.logger, services)
	defer root.CloseCache()

	if root.Cancelled() {
		return &Result{Status: StatusCancelled}
	}

	s.wirePullAndSpawn(b, root, r)

	err := s.dispatch(root, r)
	if err != nil {
		r.recordFailure(err)
	}

	switch {
	case root.Cancelled():
		return &Result{Status: StatusCancelled, Traces: r.traces}
	case r.failed != nil:
		return &Result{Status: StatusFailed, Err: r.failed, Traces: r.traces}
	default:
		return &Result{Status: StatusOK, Traces: r.traces}
	}
}

// wirePullAndSpawn installs ctx.SetPuller/SetSpawner callbacks that
// recursively dispatch an upstream/spawned node against the same run
// bookkeeping.
func (s *Scheduler) wirePullAndSpawn(b *board.Board, c *execctx.Context, r *run) {
	c.SetPuller(func(upstreamNodeID string) error {
		return s.runNode(b, c, upstreamNodeID, r)
	})
	c.SetSpawner(func(nodeID string) error {
		b.RLock()
		n, ok := b.Nodes[nodeID]
		b.RUnlock()
		if !ok {
			return fmt.Errorf("scheduler: spawn target %q not found", nodeID)
		}
		child := c.Child(n)
		s.wirePullAndSpawn(b, child, r)
		return s.runAndFollow(n.Name, child, r)
	})
}

// runNode invokes a single node's logic and marks it executed so
// EvaluatePin's pull phase does not re-enter it. It does not
// activate downstream exec edges; callers of Run (dispatch) or
// control-flow nodes are responsible for that.
func (s *Scheduler) runNode(b *board.Board, parent *execctx.Context, nodeID string, r *run) error {
	b.RLock()
	n, ok := b.Nodes[nodeID]
	b.RUnlock()
	if !ok {
		return fmt.Errorf("scheduler: node %q not found", nodeID)
	}

	logic, ok := s.registry.Lookup(n.Name)
	if !ok {
		return fmt.Errorf("scheduler: no registered logic for node %q (%s)", n.ID, n.Name)
	}

	child := parent.Child(n)
	s.wirePullAndSpawn(b, child, r)

	if child.Cancelled() {
		return context.Canceled
	}

	t := child.Trace()
	err := logic.Run(child)
	if err != nil {
		t.Fail(err)
		r.record(t)
		return fmt.Errorf("node %q: %w", n.ID, err)
	}
	t.Finish()
	r.record(t)
	parent.MarkExecuted(n.ID)
	child.MarkExecuted(n.ID)
	return nil
}

// dispatch runs the start node, then follows its activated exec outputs.
// Two nodes reached from distinct activated outputs of the same
// node run concurrently, bounded by maxFanout; within a single Sequence
// node's own outputs, the control node (not dispatch) enforces ordering.
func (s *Scheduler) dispatch(root *execctx.Context, r *run) error {
	return s.runAndFollow(root.Node().Name, root, r)
}

// runAndFollow invokes the node owned by c, then concurrently dispatches
// every downstream node reachable from an activated output exec pin.
func (s *Scheduler) runAndFollow(_ string, c *execctx.Context, r *run) error {
	b := boardOf(c)

	logic, ok := s.registry.Lookup(c.Node().Name)
	if !ok {
		return fmt.Errorf("scheduler: no registered logic for node %q (%s)", c.Node().ID, c.Node().Name)
	}

	if c.Cancelled() {
		return context.Canceled
	}

	t := c.Trace()
	if err := logic.Run(c); err != nil {
		t.Fail(err)
		r.record(t)
		return fmt.Errorf("node %q: %w", c.Node().ID, err)
	}
	t.Finish()
	r.record(t)
	c.MarkExecuted(c.Node().ID)

	return s.pushActivatedExec(b, c, r)
}

// pushActivatedExec implements the "PushActivatedExec" state: for
// each activated output exec pin, for each connected downstream input
// exec pin, build a child context, pull its data pins, and invoke it.
// Branches reached from distinct activated outputs run concurrently,
// bounded by maxFanout.
func (s *Scheduler) pushActivatedExec(b *board.Board, c *execctx.Context, r *run) error {
	active := c.ActiveExecPins()
	if len(active) == 0 {
		return nil
	}

	g, _ := errgroup.WithContext(c.StdContext())
	if s.maxFanout > 0 {
		g.SetLimit(s.maxFanout)
	}

	for _, pinID := range active {
		p, ok := b.LookupPin(pinID)
		if !ok {
			continue
		}
		for _, peerID := range p.Connections {
			peer, ok := b.LookupPin(peerID)
			if !ok || peer.Direction != pin.DirectionInput {
				continue
			}
			downstreamNodeID := peer.NodeID
			g.Go(func() error {
				b.RLock()
				n, ok := b.Nodes[downstreamNodeID]
				b.RUnlock()
				if !ok {
					return fmt.Errorf("scheduler: downstream node %q not found", downstreamNodeID)
				}
				child := c.Child(n)
				s.wirePullAndSpawn(b, child, r)
				return s.runAndFollow(n.Name, child, r)
			})
		}
	}
	return g.Wait()
}

// boardOf recovers the board a context was constructed against. The
// scheduler is the only layer allowed to reach back into board internals
// this way; node authors only ever see the ExecContext surface.
func boardOf(c *execctx.Context) *board.Board {
	return c.BoardRef()
}
