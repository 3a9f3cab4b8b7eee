package catalog

import (
	"fmt"

	"github.com/lyzr/flowengine/flow/node"
	"github.com/lyzr/flowengine/flow/pin"
	"github.com/lyzr/flowengine/flow/value"
)

// ConstInt emits a fixed integer literal on its single output pin.
// The literal itself lives in the output
// pin's Default, set at authoring time; Run only has to surface it.
type ConstInt struct{}

func (ConstInt) GetNode(interface{}) *node.Node {
	n := node.NewNode("", "const_int", "Const Int")
	out := &pin.Pin{ID: "value", Name: "value", Direction: pin.DirectionOutput, DataType: pin.TypeInteger}
	zero := value.Int(0)
	out.Default = &zero
	n.AddPin(out)
	return n
}

func (ConstInt) Run(ctx node.ExecContext) error {
	p, ok := ctx.GetPinByName("value")
	if !ok {
		return fmt.Errorf("const_int: missing value pin")
	}
	if p.Default == nil {
		return ctx.SetPinValue("value", value.Int(0))
	}
	return ctx.SetPinValue("value", *p.Default)
}

func (ConstInt) OnUpdate(*node.Node, node.BoardAccessor) error { return nil }

// AddInt sums two integer input pins onto a single integer output pin
// (e.g. Int(3) -> Add -> Int(4) -> set variable X).
type AddInt struct{}

func (AddInt) GetNode(interface{}) *node.Node {
	n := node.NewNode("", "add_int", "Add Int")
	n.AddPin(&pin.Pin{ID: "a", Name: "a", Direction: pin.DirectionInput, DataType: pin.TypeInteger})
	n.AddPin(&pin.Pin{ID: "b", Name: "b", Direction: pin.DirectionInput, DataType: pin.TypeInteger})
	n.AddPin(&pin.Pin{ID: "sum", Name: "sum", Direction: pin.DirectionOutput, DataType: pin.TypeInteger})
	return n
}

func (AddInt) Run(ctx node.ExecContext) error {
	av, err := ctx.EvaluatePin("a")
	if err != nil {
		return fmt.Errorf("add_int: %w", err)
	}
	bv, err := ctx.EvaluatePin("b")
	if err != nil {
		return fmt.Errorf("add_int: %w", err)
	}
	a, err := av.AsInt()
	if err != nil {
		return fmt.Errorf("add_int: a: %w", err)
	}
	b, err := bv.AsInt()
	if err != nil {
		return fmt.Errorf("add_int: b: %w", err)
	}
	return ctx.SetPinValue("sum", value.Int(a+b))
}

func (AddInt) OnUpdate(*node.Node, node.BoardAccessor) error { return nil }
