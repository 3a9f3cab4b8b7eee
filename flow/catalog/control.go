package catalog

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lyzr/flowengine/flow/node"
	"github.com/lyzr/flowengine/flow/pin"
	"github.com/lyzr/flowengine/flow/value"
)

// Template pins carry their own Name as a placeholder ID: GetNode builds
// a throwaway node shape that command.remintNode re-IDs (via uuid) the
// moment a node is actually dropped onto a board, so all that matters
// here is that IDs are unique within this one template.
func execIn() *pin.Pin {
	return &pin.Pin{ID: "exec_in", Name: "exec_in", Direction: pin.DirectionInput, DataType: pin.TypeExecution}
}

func execOut(name string) *pin.Pin {
	return &pin.Pin{ID: name, Name: name, Direction: pin.DirectionOutput, DataType: pin.TypeExecution}
}

// SimpleEvent is the board's entry point: a start node with no inputs
// that immediately activates its single exec output.
type SimpleEvent struct{}

func (SimpleEvent) GetNode(interface{}) *node.Node {
	n := node.NewNode("", "simple_event", "Simple Event")
	n.Start = true
	n.AddPin(execOut("exec_out"))
	return n
}

func (SimpleEvent) Run(ctx node.ExecContext) error {
	return ctx.ActivateExecPin("exec_out")
}

func (SimpleEvent) OnUpdate(*node.Node, node.BoardAccessor) error { return nil }

// Branch reads a boolean input pin and activates exactly one of its two
// exec outputs.
type Branch struct{}

func (Branch) GetNode(interface{}) *node.Node {
	n := node.NewNode("", "branch", "Branch")
	n.AddPin(execIn())
	n.AddPin(&pin.Pin{ID: "condition", Name: "condition", Direction: pin.DirectionInput, DataType: pin.TypeBoolean})
	n.AddPin(execOut("true"))
	n.AddPin(execOut("false"))
	return n
}

func (Branch) Run(ctx node.ExecContext) error {
	cond, err := ctx.EvaluatePin("condition")
	if err != nil {
		return fmt.Errorf("branch: %w", err)
	}
	b, err := cond.AsBool()
	if err != nil {
		return fmt.Errorf("branch: condition pin: %w", err)
	}
	if b {
		return ctx.ActivateExecPin("true")
	}
	return ctx.ActivateExecPin("false")
}

func (Branch) OnUpdate(*node.Node, node.BoardAccessor) error { return nil }

// Sequence runs each of its ordered exec outputs in turn, each
// running to completion before the next starts. Run resolves the nodes
// connected to "out_0", "out_1", "out_2" in that order and drives each
// one synchronously with ctx.Spawn; it activates no exec pin itself, so
// the scheduler's concurrent post-Run fan-out is not involved.
type Sequence struct{}

func (Sequence) GetNode(interface{}) *node.Node {
	n := node.NewNode("", "sequence", "Sequence")
	n.AddPin(execIn())
	n.AddPin(execOut("out_0"))
	n.AddPin(execOut("out_1"))
	n.AddPin(execOut("out_2"))
	return n
}

func (Sequence) Run(ctx node.ExecContext) error {
	for _, name := range []string{"out_0", "out_1", "out_2"} {
		p, ok := ctx.GetPinByName(name)
		if !ok || len(p.Connections) == 0 {
			continue
		}
		targets, err := ctx.ConnectedNodeIDs(name)
		if err != nil {
			return fmt.Errorf("sequence: %w", err)
		}
		for _, nodeID := range targets {
			if err := ctx.Spawn(nodeID); err != nil {
				return fmt.Errorf("sequence: %s: %w", name, err)
			}
		}
	}
	return nil
}

func (Sequence) OnUpdate(*node.Node, node.BoardAccessor) error { return nil }

// ForEach iterates an input array, setting "current"/"index" and
// activating "body" for each element in order, then activates
// "completed". The per-element body is
// run as a spawned sub-chain via ctx.Spawn so each iteration completes
// before the next starts, guaranteeing strictly increasing start times.
type ForEach struct{}

func (ForEach) GetNode(interface{}) *node.Node {
	n := node.NewNode("", "for_each", "For Each")
	n.AddPin(execIn())
	n.AddPin(&pin.Pin{ID: "array", Name: "array", Direction: pin.DirectionInput, DataType: pin.TypeGeneric, ValueType: pin.ShapeArray})
	n.AddPin(&pin.Pin{ID: "current", Name: "current", Direction: pin.DirectionOutput, DataType: pin.TypeGeneric})
	n.AddPin(&pin.Pin{ID: "index", Name: "index", Direction: pin.DirectionOutput, DataType: pin.TypeInteger})
	n.AddPin(execOut("body"))
	n.AddPin(execOut("completed"))
	return n
}

func (ForEach) Run(ctx node.ExecContext) error {
	arr, err := ctx.EvaluatePin("array")
	if err != nil {
		return fmt.Errorf("for_each: %w", err)
	}
	elements, err := arr.AsArray()
	if err != nil {
		return fmt.Errorf("for_each: %w", err)
	}

	bodyPin, hasBody := ctx.GetPinByName("body")
	var bodyTargets []string
	if hasBody && len(bodyPin.Connections) > 0 {
		var err error
		bodyTargets, err = ctx.ConnectedNodeIDs("body")
		if err != nil {
			return fmt.Errorf("for_each: %w", err)
		}
	}

	for i, el := range elements {
		if ctx.Cancelled() {
			return nil
		}
		if err := ctx.SetPinValue("current", el); err != nil {
			return err
		}
		if err := ctx.SetPinValue("index", value.Int(int64(i))); err != nil {
			return err
		}
		for _, nodeID := range bodyTargets {
			if err := ctx.Spawn(nodeID); err != nil {
				return fmt.Errorf("for_each: body iteration %d: %w", i, err)
			}
		}
	}
	return ctx.ActivateExecPin("completed")
}

func (ForEach) OnUpdate(*node.Node, node.BoardAccessor) error { return nil }

// ParallelExecution activates all of its outputs concurrently, awaiting
// all branches before activating "done".
// Run spawns every node connected to a branch output on its own
// goroutine, waits for all of them, and activates "done" only if every
// branch succeeded; otherwise it returns the joined branch errors.
type ParallelExecution struct{}

func (ParallelExecution) GetNode(interface{}) *node.Node {
	n := node.NewNode("", "parallel_execution", "Parallel Execution")
	n.AddPin(execIn())
	n.AddPin(execOut("branch_0"))
	n.AddPin(execOut("branch_1"))
	n.AddPin(execOut("branch_2"))
	n.AddPin(execOut("done"))
	return n
}

func (ParallelExecution) Run(ctx node.ExecContext) error {
	var targets []string
	for _, name := range []string{"branch_0", "branch_1", "branch_2"} {
		if p, ok := ctx.GetPinByName(name); ok && len(p.Connections) > 0 {
			ids, err := ctx.ConnectedNodeIDs(name)
			if err != nil {
				return fmt.Errorf("parallel_execution: %w", err)
			}
			targets = append(targets, ids...)
		}
	}
	errs := make([]error, len(targets))
	var wg sync.WaitGroup
	for i, nodeID := range targets {
		wg.Add(1)
		go func() { defer wg.Done(); errs[i] = ctx.Spawn(nodeID) }()
	}
	wg.Wait()
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("parallel_execution: %w", err)
	}
	return ctx.ActivateExecPin("done")
}

func (ParallelExecution) OnUpdate(*node.Node, node.BoardAccessor) error { return nil }

// Delay suspends for time_ms then activates exec_out; if the run is
// cancelled during the wait it returns without activating. GetNode marks
// the node LongRunning. The scheduler does not read that flag: it
// dispatches downstream branches on their own goroutines regardless, so
// the sleep does not block sibling branches.
type Delay struct{}

func (Delay) GetNode(interface{}) *node.Node {
	n := node.NewNode("", "delay", "Delay")
	n.LongRunning = true
	n.AddPin(execIn())
	n.AddPin(&pin.Pin{ID: "time_ms", Name: "time_ms", Direction: pin.DirectionInput, DataType: pin.TypeInteger})
	n.AddPin(execOut("exec_out"))
	return n
}

func (Delay) Run(ctx node.ExecContext) error {
	ms, err := ctx.EvaluatePin("time_ms")
	if err != nil {
		return fmt.Errorf("delay: %w", err)
	}
	millis, err := ms.AsInt()
	if err != nil {
		return fmt.Errorf("delay: time_ms: %w", err)
	}

	timer := time.NewTimer(time.Duration(millis) * time.Millisecond)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.StdContext().Done():
		return nil
	}
	if ctx.Cancelled() {
		return nil
	}
	return ctx.ActivateExecPin("exec_out")
}

func (Delay) OnUpdate(*node.Node, node.BoardAccessor) error { return nil }

// Gather is a re-entrant join point: every time one of its input exec
// pins fires, it checks whether all have now fired at least once within
// this run, activating "done" only then.
type Gather struct{}

func (Gather) GetNode(interface{}) *node.Node {
	n := node.NewNode("", "gather", "Gather")
	n.AddPin(&pin.Pin{ID: "in_0", Name: "in_0", Direction: pin.DirectionInput, DataType: pin.TypeExecution})
	n.AddPin(&pin.Pin{ID: "in_1", Name: "in_1", Direction: pin.DirectionInput, DataType: pin.TypeExecution})
	n.AddPin(execOut("done"))
	return n
}

func (Gather) Run(ctx node.ExecContext) error {
	allActive := true
	for _, name := range []string{"in_0", "in_1"} {
		p, ok := ctx.GetPinByName(name)
		if !ok || len(p.Connections) == 0 {
			continue
		}
		v, err := ctx.EvaluatePin(name)
		if err != nil || v.IsNull() {
			allActive = false
		}
	}
	if !allActive {
		return nil
	}
	return ctx.ActivateExecPin("done")
}

func (Gather) OnUpdate(*node.Node, node.BoardAccessor) error { return nil }
