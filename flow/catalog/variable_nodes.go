package catalog

import (
	"fmt"

	"github.com/lyzr/flowengine/flow/node"
	"github.com/lyzr/flowengine/flow/pin"
	"github.com/lyzr/flowengine/flow/value"
)

// variableName reads the static "variable_name" input pin, which boards
// wire to a literal string default rather than an upstream connection —
// the variable being written is an authoring-time choice, not runtime
// data.
func variableName(ctx node.ExecContext) (string, error) {
	v, err := ctx.EvaluatePin("variable_name")
	if err != nil {
		return "", fmt.Errorf("variable_name: %w", err)
	}
	name, err := v.AsString()
	if err != nil {
		return "", fmt.Errorf("variable_name: %w", err)
	}
	if name == "" {
		return "", fmt.Errorf("variable_name: empty")
	}
	return name, nil
}

// SetVariable writes its "value" input onto a run-scoped variable, shared
// by every context descending from the same root.
type SetVariable struct{}

func (SetVariable) GetNode(interface{}) *node.Node {
	n := node.NewNode("", "set_variable", "Set Variable")
	n.AddPin(execIn())
	nameDefault := value.String("")
	n.AddPin(&pin.Pin{ID: "variable_name", Name: "variable_name", Direction: pin.DirectionInput, DataType: pin.TypeString, Default: &nameDefault})
	n.AddPin(&pin.Pin{ID: "value", Name: "value", Direction: pin.DirectionInput, DataType: pin.TypeGeneric})
	n.AddPin(execOut("exec_out"))
	return n
}

func (SetVariable) Run(ctx node.ExecContext) error {
	name, err := variableName(ctx)
	if err != nil {
		return fmt.Errorf("set_variable: %w", err)
	}
	v, err := ctx.EvaluatePin("value")
	if err != nil {
		return fmt.Errorf("set_variable: %w", err)
	}
	ctx.SetVariable(name, v)
	return ctx.ActivateExecPin("exec_out")
}

func (SetVariable) OnUpdate(*node.Node, node.BoardAccessor) error { return nil }

// PushToArrayVariable appends its "value" input to an existing array
// variable, creating it as a single-element array if unset.
type PushToArrayVariable struct{}

func (PushToArrayVariable) GetNode(interface{}) *node.Node {
	n := node.NewNode("", "push_to_array_variable", "Push To Array Variable")
	n.AddPin(execIn())
	nameDefault := value.String("")
	n.AddPin(&pin.Pin{ID: "variable_name", Name: "variable_name", Direction: pin.DirectionInput, DataType: pin.TypeString, Default: &nameDefault})
	n.AddPin(&pin.Pin{ID: "value", Name: "value", Direction: pin.DirectionInput, DataType: pin.TypeGeneric})
	n.AddPin(execOut("exec_out"))
	return n
}

func (PushToArrayVariable) Run(ctx node.ExecContext) error {
	name, err := variableName(ctx)
	if err != nil {
		return fmt.Errorf("push_to_array_variable: %w", err)
	}
	v, err := ctx.EvaluatePin("value")
	if err != nil {
		return fmt.Errorf("push_to_array_variable: %w", err)
	}

	existing, ok := ctx.GetVariable(name)
	var arr []value.Value
	if ok && !existing.IsNull() {
		arr, err = existing.AsArray()
		if err != nil {
			return fmt.Errorf("push_to_array_variable: %s: %w", name, err)
		}
	}
	ctx.SetVariable(name, value.Array(append(arr, v)))
	return ctx.ActivateExecPin("exec_out")
}

func (PushToArrayVariable) OnUpdate(*node.Node, node.BoardAccessor) error { return nil }
