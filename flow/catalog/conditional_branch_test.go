package catalog

import (
	gocontext "context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lyzr/flowengine/flow/board"
	execctx "github.com/lyzr/flowengine/flow/context"
	"github.com/lyzr/flowengine/flow/value"
)

func TestConditionalBranch_Run_EvaluatesExpressionAgainstVars(t *testing.T) {
	logic := NewConditionalBranch(NewConditionEvaluator())
	n := logic.GetNode(nil)
	stampNodeID(n, "n1")
	b := board.New("b1", "test")
	b.Nodes[n.ID] = n

	ctx := execctx.Root(gocontext.Background(), b, n, value.Null(), false, nil, execctx.Services{})
	require.NoError(t, ctx.SetPinValue("expression", value.String("score > 10")))
	require.NoError(t, ctx.SetPinValue("vars", value.Map(map[string]value.Value{
		"score": value.Int(42),
	})))

	require.NoError(t, logic.Run(ctx))
	assert.Contains(t, ctx.ActiveExecPins(), "true")
	assert.NotContains(t, ctx.ActiveExecPins(), "false")
}

func TestConditionalBranch_Run_FalseBranch(t *testing.T) {
	logic := NewConditionalBranch(NewConditionEvaluator())
	n := logic.GetNode(nil)
	stampNodeID(n, "n1")
	b := board.New("b1", "test")
	b.Nodes[n.ID] = n

	ctx := execctx.Root(gocontext.Background(), b, n, value.Null(), false, nil, execctx.Services{})
	require.NoError(t, ctx.SetPinValue("expression", value.String("score > 10")))
	require.NoError(t, ctx.SetPinValue("vars", value.Map(map[string]value.Value{
		"score": value.Int(1),
	})))

	require.NoError(t, logic.Run(ctx))
	assert.Contains(t, ctx.ActiveExecPins(), "false")
}

func TestConditionalBranch_Run_NoVarsPinConnectedEvaluatesLiteral(t *testing.T) {
	logic := NewConditionalBranch(NewConditionEvaluator())
	n := logic.GetNode(nil)
	stampNodeID(n, "n1")
	b := board.New("b1", "test")
	b.Nodes[n.ID] = n

	ctx := execctx.Root(gocontext.Background(), b, n, value.Null(), false, nil, execctx.Services{})
	require.NoError(t, ctx.SetPinValue("expression", value.String("1 == 1")))

	require.NoError(t, logic.Run(ctx))
	assert.Contains(t, ctx.ActiveExecPins(), "true")
}
