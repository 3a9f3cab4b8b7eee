package command

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

func newTestBoard() *board.Board {
	return board.New("board-1", "test board")
}

func newTestNode(id string) *node.Node {
	n := node.NewNode(id, "add", "Add")
	n.AddPin(&pin.Pin{ID: id + "-a", Name: "a", Direction: pin.DirectionInput, DataType: pin.TypeInteger})
	return n
}

func TestLog_ApplyUndoRedo_RoundTrips(t *testing.T) {
	b := newTestBoard()
	log := NewLog(b)
	ctx := context.Background()

	n := newTestNode("n1")
	require.NoError(t, log.Apply(ctx, NewAddNode(n, nil)))
	require.Len(t, b.Nodes, 1)

	require.NoError(t, log.Undo(ctx))
	assert.Len(t, b.Nodes, 0)
	assert.False(t, log.CanUndo())
	assert.True(t, log.CanRedo())

	require.NoError(t, log.Redo(ctx))
	assert.Len(t, b.Nodes, 1)
}

func TestLog_NewCommandPrunesRedoBranch(t *testing.T) {
	b := newTestBoard()
	log := NewLog(b)
	ctx := context.Background()

	require.NoError(t, log.Apply(ctx, NewAddNode(newTestNode("n1"), nil)))
	require.NoError(t, log.Undo(ctx))
	require.True(t, log.CanRedo())

	require.NoError(t, log.Apply(ctx, NewAddNode(newTestNode("n2"), nil)))
	assert.False(t, log.CanRedo())
	assert.Len(t, b.Nodes, 1)
}

func TestUpsertVariable_RejectsNonEditable(t *testing.T) {
	b := newTestBoard()
	v := &board.Variable{ID: "v1", Name: "locked", Editable: false, Default: value.String("x")}
	b.Variables[v.ID] = v

	cmd := NewUpsertVariable(&board.Variable{ID: "v1", Name: "locked", Editable: false, Default: value.String("y")})
	err := cmd.Execute(context.Background(), b)
	assert.Error(t, err)
	got, _ := b.Variables["v1"].Default.AsString()
	assert.Equal(t, "x", got)
}

func TestConnect_EnforcesSingleFanInOnInputPin(t *testing.T) {
	b := newTestBoard()
	src1 := node.NewNode("src1", "const", "Const")
	src1.AddPin(&pin.Pin{ID: "src1-out", Name: "out", Direction: pin.DirectionOutput, DataType: pin.TypeInteger})
	src2 := node.NewNode("src2", "const", "Const")
	src2.AddPin(&pin.Pin{ID: "src2-out", Name: "out", Direction: pin.DirectionOutput, DataType: pin.TypeInteger})
	dst := node.NewNode("dst", "add", "Add")
	dst.AddPin(&pin.Pin{ID: "dst-in", Name: "in", Direction: pin.DirectionInput, DataType: pin.TypeInteger})
	b.Nodes[src1.ID] = src1
	b.Nodes[src2.ID] = src2
	b.Nodes[dst.ID] = dst

	log := NewLog(b)
	ctx := context.Background()
	require.NoError(t, log.Apply(ctx, NewConnect("src1-out", "dst-in")))
	assert.Error(t, log.Apply(ctx, NewConnect("src2-out", "dst-in")))
}
