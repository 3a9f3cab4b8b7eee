package catalog

import (
	gocontext "context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lyzr/flowengine/external/httpclient"
	"github.com/lyzr/flowengine/external/store"
	"github.com/lyzr/flowengine/flow/board"
	execctx "github.com/lyzr/flowengine/flow/context"
	"github.com/lyzr/flowengine/flow/value"
)

func TestHTTPRequest_Run_SucceedsAndDecodesJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"content":"ok"}`))
	}))
	defer srv.Close()

	logic := HTTPRequest{}
	n := logic.GetNode(nil)
	stampNodeID(n, "n1")
	b := board.New("b1", "test")
	b.Nodes[n.ID] = n

	ctx := execctx.Root(gocontext.Background(), b, n, value.Null(), false, nil, execctx.Services{HTTP: httpclient.New()})
	require.NoError(t, ctx.SetPinValue("method", value.String("GET")))
	require.NoError(t, ctx.SetPinValue("url", value.String(srv.URL)))
	require.NoError(t, logic.Run(ctx))

	assert.Contains(t, ctx.ActiveExecPins(), "exec_out")
	status, err := ctx.EvaluatePin("status_code")
	require.NoError(t, err)
	code, err := status.AsInt()
	require.NoError(t, err)
	assert.Equal(t, int64(200), code)
}

func TestHTTPRequest_Run_NoClientWiredErrors(t *testing.T) {
	logic := HTTPRequest{}
	n := logic.GetNode(nil)
	stampNodeID(n, "n1")
	b := board.New("b1", "test")
	b.Nodes[n.ID] = n

	ctx := execctx.Root(gocontext.Background(), b, n, value.Null(), false, nil, execctx.Services{})
	require.NoError(t, ctx.SetPinValue("method", value.String("GET")))
	require.NoError(t, ctx.SetPinValue("url", value.String("http://example.invalid")))

	err := logic.Run(ctx)
	require.Error(t, err)
}

func TestReadFile_Run_ReadsContents(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "catalog-test-*.txt")
	require.NoError(t, err)
	_, err = f.WriteString("hello world")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	logic := ReadFile{}
	n := logic.GetNode(nil)
	stampNodeID(n, "n1")
	b := board.New("b1", "test")
	b.Nodes[n.ID] = n

	ctx := execctx.Root(gocontext.Background(), b, n, value.Null(), false, nil, execctx.Services{})
	require.NoError(t, ctx.SetPinValue("path", value.String(f.Name())))
	require.NoError(t, logic.Run(ctx))

	got, err := ctx.EvaluatePin("contents")
	require.NoError(t, err)
	s, err := got.AsString()
	require.NoError(t, err)
	assert.Equal(t, "hello world", s)
}

func TestReadFile_Run_MissingFileActivatesError(t *testing.T) {
	logic := ReadFile{}
	n := logic.GetNode(nil)
	stampNodeID(n, "n1")
	b := board.New("b1", "test")
	b.Nodes[n.ID] = n

	ctx := execctx.Root(gocontext.Background(), b, n, value.Null(), false, nil, execctx.Services{})
	require.NoError(t, ctx.SetPinValue("path", value.String("/does/not/exist")))
	require.NoError(t, logic.Run(ctx))
	assert.Contains(t, ctx.ActiveExecPins(), "error")
}

func TestStoreInsert_Run_PutsIntoStore(t *testing.T) {
	mem := store.NewMemoryStore()

	logic := StoreInsert{}
	n := logic.GetNode(nil)
	stampNodeID(n, "n1")
	b := board.New("b1", "test")
	b.Nodes[n.ID] = n

	ctx := execctx.Root(gocontext.Background(), b, n, value.Null(), false, nil, execctx.Services{Store: mem})
	require.NoError(t, ctx.SetPinValue("data", value.String("blob contents")))
	require.NoError(t, ctx.SetPinValue("media_type", value.String("text/plain")))
	require.NoError(t, logic.Run(ctx))

	assert.Contains(t, ctx.ActiveExecPins(), "exec_out")
	refVal, err := ctx.EvaluatePin("ref")
	require.NoError(t, err)
	ref, err := refVal.AsString()
	require.NoError(t, err)

	data, err := mem.Get(gocontext.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, "blob contents", string(data))
}

type fakeMailer struct {
	to      []string
	subject string
	body    string
	err     error
}

func (f *fakeMailer) Send(to []string, subject, body string) error {
	f.to, f.subject, f.body = to, subject, body
	return f.err
}

func TestSendMail_Run_DeliversThroughMailer(t *testing.T) {
	mailer := &fakeMailer{}

	logic := SendMail{}
	n := logic.GetNode(nil)
	stampNodeID(n, "n1")
	b := board.New("b1", "test")
	b.Nodes[n.ID] = n

	ctx := execctx.Root(gocontext.Background(), b, n, value.Null(), false, nil, execctx.Services{Mail: mailer})
	require.NoError(t, ctx.SetPinValue("to", value.String("a@example.com, b@example.com")))
	require.NoError(t, ctx.SetPinValue("subject", value.String("hello")))
	require.NoError(t, ctx.SetPinValue("body", value.String("world")))
	require.NoError(t, logic.Run(ctx))

	assert.Contains(t, ctx.ActiveExecPins(), "exec_out")
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, mailer.to)
	assert.Equal(t, "hello", mailer.subject)
}

func TestSendMail_Run_NoMailerErrors(t *testing.T) {
	logic := SendMail{}
	n := logic.GetNode(nil)
	stampNodeID(n, "n1")
	b := board.New("b1", "test")
	b.Nodes[n.ID] = n

	ctx := execctx.Root(gocontext.Background(), b, n, value.Null(), false, nil, execctx.Services{})
	require.NoError(t, ctx.SetPinValue("to", value.String("a@example.com")))
	require.NoError(t, ctx.SetPinValue("subject", value.String("hello")))
	require.NoError(t, ctx.SetPinValue("body", value.String("world")))

	err := logic.Run(ctx)
	require.Error(t, err)
}

type fakeDirectory struct{ value string }

func (f *fakeDirectory) Name() string { return "fake" }

func (f *fakeDirectory) GetAttribute(gocontext.Context, string, string, string) (string, error) {
	return f.value, nil
}

func TestGetUserAttribute_Run_ReadsFromDirectory(t *testing.T) {
	dir := &fakeDirectory{value: "gold"}

	logic := GetUserAttribute{}
	n := logic.GetNode(nil)
	stampNodeID(n, "n1")
	b := board.New("b1", "test")
	b.Nodes[n.ID] = n

	ctx := execctx.Root(gocontext.Background(), b, n, value.Null(), false, nil, execctx.Services{Users: dir})
	require.NoError(t, ctx.SetPinValue("sub", value.String("sub-1")))
	require.NoError(t, ctx.SetPinValue("username", value.String("alice")))
	require.NoError(t, ctx.SetPinValue("attribute", value.String("tier")))
	require.NoError(t, logic.Run(ctx))

	assert.Contains(t, ctx.ActiveExecPins(), "exec_out")
	got, err := ctx.EvaluatePin("value")
	require.NoError(t, err)
	s, err := got.AsString()
	require.NoError(t, err)
	assert.Equal(t, "gold", s)
}
