package scheduler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lyzr/flowengine/flow/board"
	"github.com/lyzr/flowengine/flow/catalog"
	execctx "github.com/lyzr/flowengine/flow/context"
	"github.com/lyzr/flowengine/flow/node"
	"github.com/lyzr/flowengine/flow/value"
)

// mintNode stamps a NodeLogic's authoring-time template with a concrete
// node id and per-pin ids (id + "-" + pin name), mirroring what
// flow/command.remintNode does the moment a node is dropped onto a real
// board, so pin lookups stay unambiguous across the whole board.
func mintNode(logic node.NodeLogic, id string) *node.Node {
	tmpl := logic.GetNode(nil)
	n := node.NewNode(id, tmpl.Name, tmpl.FriendlyName)
	n.Start = tmpl.Start
	n.LongRunning = tmpl.LongRunning

	for _, oldID := range tmpl.PinOrder {
		p := *tmpl.Pins[oldID]
		p.ID = id + "-" + p.Name
		p.Connections = nil
		n.AddPin(&p)
	}
	return n
}

func pinID(n *node.Node, name string) string {
	return n.ID + "-" + name
}

func namedRegistry() *catalog.Registry {
	r := catalog.NewRegistry()
	r.Register("simple_event", &catalog.SimpleEvent{})
	r.Register("branch", &catalog.Branch{})
	r.Register("const_int", &catalog.ConstInt{})
	r.Register("add_int", &catalog.AddInt{})
	r.Register("set_variable", &catalog.SetVariable{})
	return r
}

func TestArithmeticScenario_SimpleEventAddIntSetsVariable(t *testing.T) {
	b := board.New("b1", "arithmetic")

	start := mintNode(&catalog.SimpleEvent{}, "start")
	constA := mintNode(&catalog.ConstInt{}, "const-a")
	constB := mintNode(&catalog.ConstInt{}, "const-b")
	add := mintNode(&catalog.AddInt{}, "add")
	setVar := mintNode(&catalog.SetVariable{}, "set-var")

	three := value.Int(3)
	constA.PinByName("value").Default = &three
	four := value.Int(4)
	constB.PinByName("value").Default = &four
	name := value.String("X")
	setVar.PinByName("variable_name").Default = &name

	b.Nodes[start.ID] = start
	b.Nodes[constA.ID] = constA
	b.Nodes[constB.ID] = constB
	b.Nodes[add.ID] = add
	b.Nodes[setVar.ID] = setVar

	require.NoError(t, b.Connect(pinID(start, "exec_out"), pinID(setVar, "exec_in")))
	require.NoError(t, b.Connect(pinID(constA, "value"), pinID(add, "a")))
	require.NoError(t, b.Connect(pinID(constB, "value"), pinID(add, "b")))
	require.NoError(t, b.Connect(pinID(add, "sum"), pinID(setVar, "value")))

	sched := New(namedRegistry(), nil, 0)
	result := sched.Run(context.Background(), b, start.ID, value.Null(), false, execctx.Services{})

	require.Equal(t, StatusOK, result.Status)
	require.NoError(t, result.Err)
	// start, const-a, const-b, add, set-var each produce one trace.
	assert.Len(t, result.Traces, 5)
}

func TestBranchScenario_RoutesOnConditionValue(t *testing.T) {
	b := board.New("b1", "branch")

	start := mintNode(&catalog.SimpleEvent{}, "start")
	br := mintNode(&catalog.Branch{}, "branch")
	onTrue := mintNode(&catalog.SetVariable{}, "on-true")
	onFalse := mintNode(&catalog.SetVariable{}, "on-false")

	trueName := value.String("T")
	onTrue.PinByName("variable_name").Default = &trueName
	trueVal := value.Int(1)
	onTrue.PinByName("value").Default = &trueVal

	falseName := value.String("F")
	onFalse.PinByName("variable_name").Default = &falseName
	falseVal := value.Int(0)
	onFalse.PinByName("value").Default = &falseVal

	cond := value.Bool(true)
	br.PinByName("condition").Default = &cond

	b.Nodes[start.ID] = start
	b.Nodes[br.ID] = br
	b.Nodes[onTrue.ID] = onTrue
	b.Nodes[onFalse.ID] = onFalse

	require.NoError(t, b.Connect(pinID(start, "exec_out"), pinID(br, "exec_in")))
	require.NoError(t, b.Connect(pinID(br, "true"), pinID(onTrue, "exec_in")))
	require.NoError(t, b.Connect(pinID(br, "false"), pinID(onFalse, "exec_in")))

	sched := New(namedRegistry(), nil, 0)
	result := sched.Run(context.Background(), b, start.ID, value.Null(), false, execctx.Services{})

	require.Equal(t, StatusOK, result.Status)
	// start, branch, and the "true" branch's set_variable all run; the
	// "false" branch is never reached.
	assert.Len(t, result.Traces, 3)
}
