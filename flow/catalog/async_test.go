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

func TestPushToolOutput_Run_RequiresDelegatedContext(t *testing.T) {
	logic := PushToolOutput{}
	n := logic.GetNode(nil)
	stampNodeID(n, "n1")
	b := board.New("b1", "test")
	b.Nodes[n.ID] = n

	ctx := execctx.Root(gocontext.Background(), b, n, value.Null(), false, nil, execctx.Services{})
	require.NoError(t, ctx.SetPinValue("call_id", value.String("call-1")))
	require.NoError(t, ctx.SetPinValue("output", value.String("result")))

	err := logic.Run(ctx)
	require.Error(t, err)
}

func TestPushToolOutput_Run_DeliversOutputWhenDelegated(t *testing.T) {
	logic := PushToolOutput{}
	n := logic.GetNode(nil)
	stampNodeID(n, "n1")
	b := board.New("b1", "test")
	b.Nodes[n.ID] = n

	ctx := execctx.Root(gocontext.Background(), b, n, value.Null(), true, nil, execctx.Services{})
	require.NoError(t, ctx.SetPinValue("call_id", value.String("call-1")))
	require.NoError(t, ctx.SetPinValue("output", value.String("result")))
	require.NoError(t, logic.Run(ctx))

	assert.Contains(t, ctx.ActiveExecPins(), "exec_out")
	out, err := ctx.EvaluatePin("output_out")
	require.NoError(t, err)
	s, err := out.AsString()
	require.NoError(t, err)
	assert.Equal(t, "result", s)
}

func TestPushToolOutput_GetNode_SetsEventCallback(t *testing.T) {
	logic := PushToolOutput{}
	n := logic.GetNode(nil)
	assert.True(t, n.EventCallback)
}
