package catalog

import (
	"fmt"

	"github.com/lyzr/flowengine/flow/node"
	"github.com/lyzr/flowengine/flow/pin"
)

// ConditionalBranch routes on an arbitrary CEL expression rather than a
// pre-computed boolean pin (contrast Branch): it evaluates "expression"
// against a caller-supplied variable map via a shared ConditionEvaluator,
// the same compile-and-cache path cmd/workflow-runner's worker used per-task
// (cmd/workflow-runner/condition/evaluator.go), now driven from within a
// node's own Run instead of a queue worker's pre-dispatch filter.
type ConditionalBranch struct {
	evaluator *ConditionEvaluator
}

// NewConditionalBranch builds a ConditionalBranch sharing one compiled-
// program cache across every invocation of this node kind -- Default()
// constructs a single instance so boards with many ConditionalBranch
// nodes don't each pay a fresh CEL environment per node.
func NewConditionalBranch(evaluator *ConditionEvaluator) *ConditionalBranch {
	return &ConditionalBranch{evaluator: evaluator}
}

func (*ConditionalBranch) GetNode(interface{}) *node.Node {
	n := node.NewNode("", "conditional_branch", "Conditional Branch")
	n.AddPin(execIn())
	n.AddPin(&pin.Pin{ID: "expression", Name: "expression", Direction: pin.DirectionInput, DataType: pin.TypeString})
	n.AddPin(&pin.Pin{ID: "vars", Name: "vars", Direction: pin.DirectionInput, DataType: pin.TypeGeneric, ValueType: pin.ShapeHashMap})
	n.AddPin(execOut("true"))
	n.AddPin(execOut("false"))
	return n
}

func (b *ConditionalBranch) Run(ctx node.ExecContext) error {
	expr, err := mustEvalString(ctx, "expression")
	if err != nil {
		return fmt.Errorf("conditional_branch: %w", err)
	}

	vars := map[string]interface{}{}
	varsVal, err := ctx.EvaluatePin("vars")
	if err != nil {
		return fmt.Errorf("conditional_branch: %w", err)
	}
	if !varsVal.IsNull() {
		m, err := varsVal.AsMap()
		if err != nil {
			return fmt.Errorf("conditional_branch: vars pin: %w", err)
		}
		for k, v := range m {
			vars[k] = v.Native()
		}
	}

	result, err := b.evaluator.EvaluateBool(expr, vars)
	if err != nil {
		return fmt.Errorf("conditional_branch: %w", err)
	}
	if result {
		return ctx.ActivateExecPin("true")
	}
	return ctx.ActivateExecPin("false")
}

func (*ConditionalBranch) OnUpdate(*node.Node, node.BoardAccessor) error { return nil }
