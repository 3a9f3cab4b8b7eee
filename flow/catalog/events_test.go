package catalog

import (
	gocontext "context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lyzr/flowengine/flow/board"
	execctx "github.com/lyzr/flowengine/flow/context"
	"github.com/lyzr/flowengine/flow/node"
	"github.com/lyzr/flowengine/flow/value"
)

func newRootCtxWithPayload(b *board.Board, n *node.Node, payload value.Value) *execctx.Context {
	return execctx.Root(gocontext.Background(), b, n, payload, false, nil, execctx.Services{})
}

func TestHTTPEvent_Run_ExposesDecodedFields(t *testing.T) {
	logic := HTTPEvent{}
	n := logic.GetNode(nil)
	stampNodeID(n, "n1")
	b := board.New("b1", "test")
	b.Nodes[n.ID] = n

	payload := value.Map(map[string]value.Value{
		"method": value.String("POST"),
		"path":   value.String("/webhook"),
		"body":   value.Map(map[string]value.Value{"key": value.String("val")}),
		"sub":    value.String("user-1"),
	})
	ctx := newRootCtxWithPayload(b, n, payload)

	require.NoError(t, logic.Run(ctx))
	method, err := ctx.EvaluatePin("method")
	require.NoError(t, err)
	s, err := method.AsString()
	require.NoError(t, err)
	assert.Equal(t, "POST", s)
	assert.Contains(t, ctx.ActiveExecPins(), "exec_out")
}

func TestHTTPEvent_Run_MissingFieldFails(t *testing.T) {
	logic := HTTPEvent{}
	n := logic.GetNode(nil)
	stampNodeID(n, "n1")
	b := board.New("b1", "test")
	b.Nodes[n.ID] = n

	payload := value.Map(map[string]value.Value{"method": value.String("GET")})
	ctx := newRootCtxWithPayload(b, n, payload)

	err := logic.Run(ctx)
	require.Error(t, err)
}

func TestChatEvent_Run_ExposesUsernameAndMessage(t *testing.T) {
	logic := ChatEvent{}
	n := logic.GetNode(nil)
	stampNodeID(n, "n1")
	b := board.New("b1", "test")
	b.Nodes[n.ID] = n

	payload := value.Map(map[string]value.Value{
		"username": value.String("alice"),
		"message":  value.String("hello"),
	})
	ctx := newRootCtxWithPayload(b, n, payload)

	require.NoError(t, logic.Run(ctx))
	msg, err := ctx.EvaluatePin("message")
	require.NoError(t, err)
	s, err := msg.AsString()
	require.NoError(t, err)
	assert.Equal(t, "hello", s)
}

func TestMailEvent_Run_ExposesFromSubjectBody(t *testing.T) {
	logic := MailEvent{}
	n := logic.GetNode(nil)
	stampNodeID(n, "n1")
	b := board.New("b1", "test")
	b.Nodes[n.ID] = n

	payload := value.Map(map[string]value.Value{
		"from":    value.String("a@example.com"),
		"subject": value.String("hi"),
		"body":    value.String("body text"),
	})
	ctx := newRootCtxWithPayload(b, n, payload)

	require.NoError(t, logic.Run(ctx))
	assert.Contains(t, ctx.ActiveExecPins(), "exec_out")
}

func TestGeneric_Run_PassesPayloadThrough(t *testing.T) {
	logic := Generic{}
	n := logic.GetNode(nil)
	stampNodeID(n, "n1")
	b := board.New("b1", "test")
	b.Nodes[n.ID] = n

	payload := value.Map(map[string]value.Value{"anything": value.Int(42)})
	ctx := newRootCtxWithPayload(b, n, payload)

	require.NoError(t, logic.Run(ctx))
	got, err := ctx.EvaluatePin("payload")
	require.NoError(t, err)
	m, err := got.AsMap()
	require.NoError(t, err)
	n2, err := m["anything"].AsInt()
	require.NoError(t, err)
	assert.Equal(t, int64(42), n2)
}
