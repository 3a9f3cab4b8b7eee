package context

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lyzr/flowengine/flow/board"
	"github.com/lyzr/flowengine/flow/node"
	"github.com/lyzr/flowengine/flow/pin"
	"github.com/lyzr/flowengine/flow/value"
)

func TestContext_EvaluatePin_UnconnectedReturnsDefault(t *testing.T) {
	b := board.New("b1", "test")
	n := node.NewNode("n1", "const", "Const")
	def := value.Int(42)
	n.AddPin(&pin.Pin{ID: "n1-out", NodeID: "n1", Name: "out", Direction: pin.DirectionInput, DataType: pin.TypeInteger, Default: &def})
	b.Nodes[n.ID] = n

	root := Root(context.Background(), b, n, value.Null(), false, nil, Services{})
	got, err := root.EvaluatePin("out")
	require.NoError(t, err)
	gotInt, err := got.AsInt()
	require.NoError(t, err)
	assert.Equal(t, int64(42), gotInt)
}

func TestContext_EvaluatePin_PullsUpstreamOnce(t *testing.T) {
	b := board.New("b1", "test")
	src := node.NewNode("src", "const", "Const")
	src.AddPin(&pin.Pin{ID: "src-out", NodeID: "src", Name: "out", Direction: pin.DirectionOutput, DataType: pin.TypeInteger})
	dst := node.NewNode("dst", "identity", "Identity")
	dst.AddPin(&pin.Pin{ID: "dst-in", NodeID: "dst", Name: "in", Direction: pin.DirectionInput, DataType: pin.TypeInteger})
	src.Pins["src-out"].Connections = []string{"dst-in"}
	dst.Pins["dst-in"].Connections = []string{"src-out"}
	b.Nodes[src.ID] = src
	b.Nodes[dst.ID] = dst

	root := Root(context.Background(), b, dst, value.Null(), false, nil, Services{})
	pulls := 0
	root.SetPuller(func(upstreamNodeID string) error {
		pulls++
		assert.Equal(t, "src", upstreamNodeID)
		root.pinValues["src-out"] = value.Int(7)
		root.MarkExecuted("src")
		return nil
	})

	got, err := root.EvaluatePin("in")
	require.NoError(t, err)
	gotInt, _ := got.AsInt()
	assert.Equal(t, int64(7), gotInt)
	assert.Equal(t, 1, pulls)

	// A second read must not pull again: the node is already marked executed.
	_, err = root.EvaluatePin("in")
	require.NoError(t, err)
	assert.Equal(t, 1, pulls)
}

func TestContext_ActivateExecPin_RejectsNonExecOutput(t *testing.T) {
	b := board.New("b1", "test")
	n := node.NewNode("n1", "add", "Add")
	n.AddPin(&pin.Pin{ID: "n1-in", NodeID: "n1", Name: "a", Direction: pin.DirectionInput, DataType: pin.TypeInteger})
	b.Nodes[n.ID] = n

	root := Root(context.Background(), b, n, value.Null(), false, nil, Services{})
	assert.Error(t, root.ActivateExecPin("a"))
}

func TestContext_VariableScope_SharedAcrossChildren(t *testing.T) {
	b := board.New("b1", "test")
	n := node.NewNode("n1", "noop", "Noop")
	b.Nodes[n.ID] = n

	root := Root(context.Background(), b, n, value.Null(), false, nil, Services{})
	child := root.Child(n)
	child.SetVariable("x", value.Int(1))

	got, ok := root.GetVariable("x")
	require.True(t, ok)
	gotInt, _ := got.AsInt()
	assert.Equal(t, int64(1), gotInt)
}

func TestContext_Cancel_PropagatesToChildren(t *testing.T) {
	b := board.New("b1", "test")
	n := node.NewNode("n1", "noop", "Noop")
	b.Nodes[n.ID] = n

	root := Root(context.Background(), b, n, value.Null(), false, nil, Services{})
	child := root.Child(n)
	root.Cancel()
	assert.True(t, child.Cancelled())
}
