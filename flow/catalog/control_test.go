package catalog

import (
	gocontext "context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lyzr/flowengine/flow/board"
	execctx "github.com/lyzr/flowengine/flow/context"
	"github.com/lyzr/flowengine/flow/node"
	"github.com/lyzr/flowengine/flow/pin"
	"github.com/lyzr/flowengine/flow/value"
)

func newRootCtx(b *board.Board, n *node.Node) *execctx.Context {
	return execctx.Root(gocontext.Background(), b, n, value.Null(), false, nil, execctx.Services{})
}

func stampNodeID(n *node.Node, id string) {
	n.ID = id
	for _, p := range n.Pins {
		p.NodeID = id
	}
}

func TestSimpleEvent_Run_ActivatesExecOut(t *testing.T) {
	logic := SimpleEvent{}
	n := logic.GetNode(nil)
	stampNodeID(n, "n1")
	b := board.New("b1", "test")
	b.Nodes[n.ID] = n

	ctx := newRootCtx(b, n)
	require.NoError(t, logic.Run(ctx))
	assert.Contains(t, ctx.ActiveExecPins(), "exec_out")
}

func TestBranch_Run_ActivatesTrueOrFalse(t *testing.T) {
	logic := Branch{}
	n := logic.GetNode(nil)
	stampNodeID(n, "n1")
	b := board.New("b1", "test")
	b.Nodes[n.ID] = n

	ctx := newRootCtx(b, n)
	require.NoError(t, ctx.SetPinValue("condition", value.Bool(true)))
	require.NoError(t, logic.Run(ctx))
	assert.Contains(t, ctx.ActiveExecPins(), "true")
	assert.NotContains(t, ctx.ActiveExecPins(), "false")
}

func TestConstInt_Run_SetsDefaultValue(t *testing.T) {
	logic := ConstInt{}
	n := logic.GetNode(nil)
	stampNodeID(n, "n1")
	out := n.PinByName("value")
	five := value.Int(5)
	out.Default = &five

	b := board.New("b1", "test")
	b.Nodes[n.ID] = n

	ctx := newRootCtx(b, n)
	require.NoError(t, logic.Run(ctx))
	got, err := ctx.EvaluatePin("value")
	require.NoError(t, err)
	gotInt, err := got.AsInt()
	require.NoError(t, err)
	assert.Equal(t, int64(5), gotInt)
}

func TestAddInt_Run_SumsInputs(t *testing.T) {
	logic := AddInt{}
	n := logic.GetNode(nil)
	stampNodeID(n, "n1")
	b := board.New("b1", "test")
	b.Nodes[n.ID] = n

	ctx := newRootCtx(b, n)
	require.NoError(t, ctx.SetPinValue("a", value.Int(3)))
	require.NoError(t, ctx.SetPinValue("b", value.Int(4)))
	require.NoError(t, logic.Run(ctx))

	got, err := ctx.EvaluatePin("sum")
	require.NoError(t, err)
	gotInt, err := got.AsInt()
	require.NoError(t, err)
	assert.Equal(t, int64(7), gotInt)
}

func TestSetVariable_Run_WritesSharedVariable(t *testing.T) {
	logic := SetVariable{}
	n := logic.GetNode(nil)
	stampNodeID(n, "n1")
	b := board.New("b1", "test")
	b.Nodes[n.ID] = n

	ctx := newRootCtx(b, n)
	require.NoError(t, ctx.SetPinValue("variable_name", value.String("X")))
	require.NoError(t, ctx.SetPinValue("value", value.Int(7)))
	require.NoError(t, logic.Run(ctx))

	got, ok := ctx.GetVariable("X")
	require.True(t, ok)
	gotInt, err := got.AsInt()
	require.NoError(t, err)
	assert.Equal(t, int64(7), gotInt)
	assert.Contains(t, ctx.ActiveExecPins(), "exec_out")
}

func TestPushToArrayVariable_Run_AppendsAndCreates(t *testing.T) {
	logic := PushToArrayVariable{}
	n := logic.GetNode(nil)
	stampNodeID(n, "n1")
	b := board.New("b1", "test")
	b.Nodes[n.ID] = n

	ctx := newRootCtx(b, n)
	require.NoError(t, ctx.SetPinValue("variable_name", value.String("Y")))

	require.NoError(t, ctx.SetPinValue("value", value.Int(1)))
	require.NoError(t, logic.Run(ctx))
	require.NoError(t, ctx.SetPinValue("value", value.Int(2)))
	require.NoError(t, logic.Run(ctx))

	got, ok := ctx.GetVariable("Y")
	require.True(t, ok)
	arr, err := got.AsArray()
	require.NoError(t, err)
	require.Len(t, arr, 2)
	first, _ := arr[0].AsInt()
	second, _ := arr[1].AsInt()
	assert.Equal(t, int64(1), first)
	assert.Equal(t, int64(2), second)
}

// connectOutTo wires seq's named output pin to a fresh exec-input pin on
// downstream, mimicking what Board.Connect records without
// pulling in the command package just for test setup.
func connectOutTo(seq, downstream *node.Node, outName, peerPinID string) {
	in := &pin.Pin{ID: peerPinID, NodeID: downstream.ID, Name: "exec_in", Direction: pin.DirectionInput, DataType: pin.TypeExecution}
	downstream.AddPin(in)
	seq.PinByName(outName).Connections = []string{peerPinID}
}

func TestSequence_Run_SpawnsOutputsInOrder(t *testing.T) {
	logic := Sequence{}
	seq := logic.GetNode(nil)
	stampNodeID(seq, "seq")

	b := board.New("b1", "test")
	b.Nodes[seq.ID] = seq

	names := []string{"out_0", "out_1", "out_2"}
	downstreamIDs := make(map[string]string, len(names))
	for _, name := range names {
		downstream := node.NewNode("down-"+name, "noop", "Noop")
		b.Nodes[downstream.ID] = downstream
		downstreamIDs[name] = downstream.ID
		connectOutTo(seq, downstream, name, "peer-"+name)
	}

	ctx := newRootCtx(b, seq)
	var spawned []string
	ctx.SetSpawner(func(nodeID string) error {
		spawned = append(spawned, nodeID)
		return nil
	})

	require.NoError(t, logic.Run(ctx))
	require.Len(t, spawned, 3)
	assert.Equal(t, downstreamIDs["out_0"], spawned[0])
	assert.Equal(t, downstreamIDs["out_1"], spawned[1])
	assert.Equal(t, downstreamIDs["out_2"], spawned[2])
}

func TestForEach_Run_SpawnsBodyPerElement(t *testing.T) {
	logic := ForEach{}
	fe := logic.GetNode(nil)
	stampNodeID(fe, "fe")

	b := board.New("b1", "test")
	b.Nodes[fe.ID] = fe

	body := node.NewNode("body", "noop", "Noop")
	b.Nodes[body.ID] = body
	connectOutTo(fe, body, "body", "peer-body")

	ctx := newRootCtx(b, fe)
	require.NoError(t, ctx.SetPinValue("array", value.Array([]value.Value{value.Int(1), value.Int(2), value.Int(3)})))

	var spawns int
	ctx.SetSpawner(func(nodeID string) error {
		spawns++
		assert.Equal(t, "body", nodeID)
		return nil
	})

	require.NoError(t, logic.Run(ctx))
	assert.Equal(t, 3, spawns)
	assert.Contains(t, ctx.ActiveExecPins(), "completed")
}
