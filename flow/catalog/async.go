package catalog

import (
	"fmt"

	flowerrors "github.com/lyzr/flowengine/flow/errors"
	"github.com/lyzr/flowengine/flow/node"
	"github.com/lyzr/flowengine/flow/pin"
	"github.com/lyzr/flowengine/flow/value"
)

// The async-callback class: a node whose
// EventCallback flag is set tells the scheduler this Run does not
// complete the unit of work itself -- it hands a tool/agent call off to
// an external system and expects a later, separate invocation (carrying
// the same trace's delegated context) to deliver the result via
// PushToolOutput. Between the two, the board's execution is suspended
// rather than failed; nothing in this package enforces that suspension
// directly, since it is the composition root's transport layer that
// holds a pending invocation open until the callback arrives.

// PushToolOutput delivers an asynchronously produced result back into a
// delegated run: set EventCallback so the
// scheduler and trace know this node's Run is satisfying a prior
// suspension rather than starting fresh work.
type PushToolOutput struct{}

func (PushToolOutput) GetNode(interface{}) *node.Node {
	n := node.NewNode("", "push_tool_output", "Push Tool Output")
	n.EventCallback = true
	n.AddPin(execIn())
	n.AddPin(&pin.Pin{ID: "call_id", Name: "call_id", Direction: pin.DirectionInput, DataType: pin.TypeString})
	n.AddPin(&pin.Pin{ID: "output", Name: "output", Direction: pin.DirectionInput, DataType: pin.TypeGeneric})
	n.AddPin(&pin.Pin{ID: "call_id_out", Name: "call_id_out", Direction: pin.DirectionOutput, DataType: pin.TypeString})
	n.AddPin(&pin.Pin{ID: "output_out", Name: "output_out", Direction: pin.DirectionOutput, DataType: pin.TypeGeneric})
	n.AddPin(execOut("exec_out"))
	return n
}

func (PushToolOutput) Run(ctx node.ExecContext) error {
	if !ctx.Delegated() {
		return flowerrors.Control(nil, "push_tool_output: run is not delegated -- nothing is waiting for this callback")
	}

	callID, err := mustEvalString(ctx, "call_id")
	if err != nil {
		return fmt.Errorf("push_tool_output: %w", err)
	}
	output, err := ctx.EvaluatePin("output")
	if err != nil {
		return fmt.Errorf("push_tool_output: %w", err)
	}

	if err := ctx.SetPinValue("call_id_out", value.String(callID)); err != nil {
		return fmt.Errorf("push_tool_output: %w", err)
	}
	if err := ctx.SetPinValue("output_out", output); err != nil {
		return fmt.Errorf("push_tool_output: %w", err)
	}
	ctx.LogMessage(fmt.Sprintf("push_tool_output: delivered result for call %s", callID), "info")
	return ctx.ActivateExecPin("exec_out")
}

func (PushToolOutput) OnUpdate(*node.Node, node.BoardAccessor) error { return nil }
