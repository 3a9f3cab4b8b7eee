package node

import (
	"context"

	"github.com/lyzr/flowengine/external/httpclient"
	"github.com/lyzr/flowengine/external/model"
	"github.com/lyzr/flowengine/external/store"
	"github.com/lyzr/flowengine/external/users"
	"github.com/lyzr/flowengine/external/vectordb"
	"github.com/lyzr/flowengine/flow/pin"
	"github.com/lyzr/flowengine/flow/value"
)

// Services bundles the external collaborators (object
// store, vector DB, model provider, HTTP client, user directory) that
// side-effect, event, and async-callback nodes address by field.
// Declared here (not in flow/context, which only consumes it) so that
// node.ExecContext can expose it without flow/node importing
// flow/context and creating a cycle. Every field is optional: a board
// that never needs vector search can run with VectorDB left nil, and a
// node that touches a nil field should fail with flow/errors.ErrResource
// rather than panic.
type Services struct {
	Store    store.Store
	VectorDB vectordb.VectorDB
	Model    model.Provider
	HTTP     *httpclient.Client
	Users    users.Directory
	Mail     Mailer
}

// Mailer is the minimal surface a side-effect node needs to send mail,
// satisfied structurally by transport/mail.Sender without node needing
// to import the transport layer above it.
type Mailer interface {
	Send(to []string, subject, body string) error
}

// Node and context are both low in the dependency graph and must not import each
// other, so the handful of methods a NodeLogic implementation needs are
// declared here as consumer-side interfaces (ExecContext, BoardAccessor),
// satisfied structurally by flow/context.Context and flow/board.Board.

// ExecContext is the minimal surface a NodeLogic.Run implementation
// needs from the execution context. flow/context.Context
// implements this interface; node authors never construct one directly.
type ExecContext interface {
	// EvaluatePin resolves an input pin's value, pulling from an
	// upstream pure node if necessary.
	EvaluatePin(name string) (value.Value, error)
	// SetPinValue programmatically sets an output (or input default)
	// pin's value for the current invocation.
	SetPinValue(name string, v value.Value) error
	// GetPinByName / GetPinsByName support variadic pins (multi-input
	// boolean operators and similar).
	GetPinByName(name string) (*pin.Pin, bool)
	GetPinsByName(name string) []*pin.Pin

	ActivateExecPin(name string) error
	DeactivateExecPin(name string) error

	// ConnectedNodeIDs resolves the node ids on the other end of every
	// connection leaving the named pin. Control nodes that must drive a
	// body sub-chain synchronously per iteration (ForEach) use this to
	// find what to pass to Spawn, rather than relying on the scheduler's
	// own post-Run exec fan-out.
	ConnectedNodeIDs(pinName string) ([]string, error)

	GetVariable(name string) (value.Value, bool)
	SetVariable(name string, v value.Value)

	LogMessage(message string, level string)
	GetPayload() value.Value

	// Delegated reports whether this run was resumed from a prior
	// suspension awaiting an async callback.
	Delegated() bool

	// Cancelled reports whether the run's cancellation token has
	// fired; long-running nodes must poll this at suspension points.
	Cancelled() bool

	// Spawn runs a board's sub-execution (used by nodes like ForEach
	// body or a future "call board" node) sharing this context's
	// variable scope, cache, and logger.
	Spawn(nodeID string) error

	// Services exposes the external collaborators to side-effect,
	// event, and async-callback nodes. Returns the zero value (every
	// field nil) for a context built without any wired.
	Services() Services

	// StdContext exposes the underlying context.Context so a node can
	// pass it straight through to a Services call (HTTP request, store
	// put, model invoke) without the engine needing its own cancellation
	// plumbing duplicated in node.ExecContext.
	StdContext() context.Context
}

// BoardAccessor is the minimal surface a NodeLogic.OnUpdate implementation
// needs from the owning board: enough to look up peer pins and re-run
// generic type propagation after a connection changes.
type BoardAccessor interface {
	LookupPin(pinID string) (*pin.Pin, bool)
	PropagateGeneric(pinID string, resolved string) error
}

// NodeLogic is the sole polymorphic seam in the engine. Concrete node behaviors (math, branch, HTTP
// request, ...) are ordinary values registered under a stable name in
// flow/catalog's registry.
type NodeLogic interface {
	// GetNode returns this node's static descriptor: used both to render
	// the authoring catalog and to stamp out a fresh Node instance when
	// a user drags the node onto a board.
	GetNode(appState interface{}) *Node
	// Run is the node's behavior, invoked by the scheduler once its
	// data pins have been pulled.
	Run(ctx ExecContext) error
	// OnUpdate fires when a pin is connected or disconnected, giving the
	// node a chance to propagate resolved generic types and reshape pins.
	OnUpdate(n *Node, board BoardAccessor) error
}
