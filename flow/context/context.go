// Package context implements the execution context: the per-node
// handle a NodeLogic.Run receives, chained parent-to-child down a run's
// scheduling tree so sibling branches share variables, cache, and logger
// while each keeps its own pin-value store and exec activations.
package context

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/lyzr/flowengine/flow/board"
	"github.com/lyzr/flowengine/flow/node"
	"github.com/lyzr/flowengine/flow/pin"
	"github.com/lyzr/flowengine/flow/trace"
	"github.com/lyzr/flowengine/flow/value"
)

// Cacheable is any object a node stashes in the run-scoped cache,
// e.g. an opened vector DB handle reused across invocations of the same
// run. Close is called when the run tears its cache down.
type Cacheable interface {
	Close() error
}

// variableScope is the shared, mutex-guarded variable map a context tree
// hangs off of. Writes are last-writer-wins.
type variableScope struct {
	mu   sync.Mutex
	vars map[string]value.Value
}

func newVariableScope() *variableScope {
	return &variableScope{vars: make(map[string]value.Value)}
}

func (s *variableScope) get(id string) (value.Value, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vars[id]
	return v, ok
}

func (s *variableScope) set(id string, v value.Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vars[id] = v
}

// producedValues is the run-wide record of every pin value a node has
// set, keyed by pin id (globally unique on a board). Each node
// invocation gets its own throwaway Context with a private pinValues
// cache, so once that context's Run returns, nothing else
// holds a reference to it -- producedValues is what lets a later sibling
// pull an upstream node's output after its own context has gone out of
// scope.
type producedValues struct {
	mu   sync.Mutex
	vals map[string]value.Value
}

func newProducedValues() *producedValues {
	return &producedValues{vals: make(map[string]value.Value)}
}

func (p *producedValues) set(pinID string, v value.Value) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.vals[pinID] = v
}

func (p *producedValues) get(pinID string) (value.Value, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.vals[pinID]
	return v, ok
}

// RunCache is the string-keyed, single-construction-per-key object cache
// shared across an entire run's context tree.
type RunCache struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
	items map[string]Cacheable
}

func newRunCache() *RunCache {
	return &RunCache{locks: make(map[string]*sync.Mutex), items: make(map[string]Cacheable)}
}

// GetOrCreate fetches the cached item for key, constructing it under a
// per-key lock if absent so concurrent siblings never build it twice.
func (c *RunCache) GetOrCreate(key string, build func() (Cacheable, error)) (Cacheable, error) {
	c.mu.Lock()
	lock, ok := c.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		c.locks[key] = lock
	}
	c.mu.Unlock()

	lock.Lock()
	defer lock.Unlock()

	c.mu.Lock()
	if item, ok := c.items[key]; ok {
		c.mu.Unlock()
		return item, nil
	}
	c.mu.Unlock()

	item, err := build()
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.items[key] = item
	c.mu.Unlock()
	return item, nil
}

func (c *RunCache) closeAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, item := range c.items {
		_ = item.Close()
	}
}

// Logger is the minimal surface Context needs to record LogMessages;
// flow/context never imports internal/logger directly to avoid a
// dependency from the engine core onto the ambient stack — a concrete
// *internal/logger.Logger satisfies this by construction.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Services is node.Services: declared in flow/node (lower in the import
// graph) so that node.ExecContext can expose it without flow/node
// depending on flow/context. Aliased here so existing call sites in this
// package (Root, Child) read naturally.
type Services = node.Services

// Context is the per-node execution handle.
type Context struct {
	ctx    context.Context
	cancel context.CancelFunc

	parent *Context
	board  node.BoardAccessor
	boardRef *board.Board

	node *node.Node

	// pinValues holds this context's in-flight values, keyed by pin id.
	// Reads fall back to the owning pin's Default when absent.
	pinValues map[string]value.Value
	pinMu     sync.Mutex

	activeExec map[string]bool
	execMu     sync.Mutex

	executedNodes map[string]bool // within the current run tree, for the pull phase
	executedMu    *sync.Mutex

	// produced records every SetPinValue write for the whole run tree, so
	// a pull across context boundaries (a sibling's throwaway child
	// context already returned) still finds the value.
	produced *producedValues

	scope *variableScope
	cache *RunCache

	logger    Logger
	trace     *trace.Trace
	logLevel  board.LogLevel

	payload   value.Value
	delegated bool

	services Services

	// puller recursively runs an upstream node so its pin values become
	// available to EvaluatePin. Supplied by the scheduler, which
	// is the only layer that knows how to dispatch a node; flow/context
	// never imports flow/scheduler to avoid a cycle.
	puller func(upstreamNodeID string) error

	// spawner drives a node (and whatever its own activations reach) to
	// quiescence as a nested exec chain sharing this context's scope,
	// cache, and logger.
	spawner func(nodeID string) error
}

// SetPuller installs the scheduler's recursive-pull callback. Called
// once per context by the scheduler immediately after construction.
func (c *Context) SetPuller(puller func(upstreamNodeID string) error) {
	c.puller = puller
}

// SetSpawner installs the scheduler's nested-exec-chain callback.
func (c *Context) SetSpawner(spawner func(nodeID string) error) {
	c.spawner = spawner
}

// Spawn runs nodeID's exec chain to quiescence, sharing this context's
// variable scope, cache, and logger.
func (c *Context) Spawn(nodeID string) error {
	if c.spawner == nil {
		return fmt.Errorf("context: no spawner installed, cannot spawn node %q", nodeID)
	}
	return c.spawner(nodeID)
}

// Root constructs the top-level context for a run: a fresh variable
// scope, cache, and cancellation token.
func Root(parent context.Context, b *board.Board, n *node.Node, payload value.Value, delegated bool, logger Logger, services Services) *Context {
	ctx, cancel := context.WithCancel(parent)
	executed := &sync.Mutex{}
	return &Context{
		ctx:           ctx,
		cancel:        cancel,
		board:         b,
		boardRef:      b,
		node:          n,
		pinValues:     make(map[string]value.Value),
		activeExec:    make(map[string]bool),
		executedNodes: make(map[string]bool),
		executedMu:    executed,
		produced:      newProducedValues(),
		scope:         newVariableScope(),
		cache:         newRunCache(),
		logger:        logger,
		trace:         trace.New(n.ID),
		logLevel:      b.LogLevel,
		payload:       payload,
		delegated:     delegated,
		services:      services,
	}
}

// Child constructs a new context for a downstream node, sharing the
// parent's variable scope, cache, logger, and cancellation, but starting
// with its own pin-value store and exec activations.
func (c *Context) Child(n *node.Node) *Context {
	return &Context{
		ctx:           c.ctx,
		cancel:        c.cancel,
		parent:        c,
		board:         c.board,
		boardRef:      c.boardRef,
		node:          n,
		pinValues:     make(map[string]value.Value),
		activeExec:    make(map[string]bool),
		executedNodes: c.executedNodes,
		executedMu:    c.executedMu,
		produced:      c.produced,
		scope:         c.scope,
		cache:         c.cache,
		logger:        c.logger,
		trace:         trace.New(n.ID),
		logLevel:      c.logLevel,
		payload:       c.payload,
		delegated:     c.delegated,
		services:      c.services,
		puller:        c.puller,
		spawner:       c.spawner,
	}
}

// Cancelled reports whether the run's cancellation token has fired.
func (c *Context) Cancelled() bool {
	select {
	case <-c.ctx.Done():
		return true
	default:
		return false
	}
}

// Done returns the underlying cancellation channel for select loops in
// long-running nodes.
func (c *Context) Done() <-chan struct{} { return c.ctx.Done() }

// Cancel fires this run's cancellation token, propagating to every
// context sharing it.
func (c *Context) Cancel() { c.cancel() }

// StdContext exposes the underlying context.Context for library calls
// that need one (HTTP client, pgx, redis).
func (c *Context) StdContext() context.Context { return c.ctx }

// Node returns the node this context is executing.
func (c *Context) Node() *node.Node { return c.node }

// BoardRef returns the concrete board this context was built against.
// Reserved for the scheduler's own dispatch bookkeeping; node authors
// use the narrower node.BoardAccessor surface via OnUpdate instead.
func (c *Context) BoardRef() *board.Board { return c.boardRef }

// Trace returns this invocation's open trace.
func (c *Context) Trace() *trace.Trace { return c.trace }

// MarkExecuted records that this node has run within the current exec
// chain, consulted by EvaluatePin to decide between a cached read and a
// recursive pull.
func (c *Context) MarkExecuted(nodeID string) {
	c.executedMu.Lock()
	defer c.executedMu.Unlock()
	c.executedNodes[nodeID] = true
}

func (c *Context) wasExecuted(nodeID string) bool {
	c.executedMu.Lock()
	defer c.executedMu.Unlock()
	return c.executedNodes[nodeID]
}

// GetPayload returns the event-time input for this run.
func (c *Context) GetPayload() value.Value { return c.payload }

// Delegated reports whether an external host owns reply delivery.
func (c *Context) Delegated() bool { return c.delegated }

// Services exposes the external capability handles addressable by name
//: object store, vector DB, model provider, HTTP client.
func (c *Context) Services() Services { return c.services }

// GetVariable reads a board-scoped variable, per  — the scope is shared across the
// whole run tree, so "chained to parent" in practice means every
// context in a run sees the same writes.
func (c *Context) GetVariable(id string) (value.Value, bool) {
	return c.scope.get(id)
}

// SetVariable writes a board-scoped variable (last-writer-wins, ).
func (c *Context) SetVariable(id string, v value.Value) {
	c.scope.set(id, v)
}

// Cache exposes the run-scoped object cache to node authors that need a
// custom key shape beyond GetOrCreate's default string key.
func (c *Context) Cache() *RunCache { return c.cache }

// CloseCache tears down every cached object; called once by the
// scheduler when a run reaches quiescence or is cancelled.
func (c *Context) CloseCache() { c.cache.closeAll() }

// GetPinByName resolves a pin on the current node by name.
func (c *Context) GetPinByName(name string) (*pin.Pin, bool) {
	p := c.node.PinByName(name)
	return p, p != nil
}

// GetPinsByName resolves every pin with the given name, for variadic
// inputs like multi-input boolean operators.
func (c *Context) GetPinsByName(name string) []*pin.Pin {
	return c.node.PinsByName(name)
}

// ConnectedNodeIDs resolves the node ids connected to pinName, for
// control nodes (ForEach) that drive a body sub-chain via Spawn rather
// than the scheduler's own post-Run exec fan-out.
func (c *Context) ConnectedNodeIDs(pinName string) ([]string, error) {
	p, ok := c.GetPinByName(pinName)
	if !ok {
		return nil, fmt.Errorf("node %q: no pin named %q", c.node.ID, pinName)
	}
	out := make([]string, 0, len(p.Connections))
	for _, peerID := range p.Connections {
		peer, ok := c.board.LookupPin(peerID)
		if !ok {
			continue
		}
		out = append(out, peer.NodeID)
	}
	return out, nil
}

// SetPinValue programmatically sets a pin's current value, overriding
// its default and any incoming connection for the remainder of this
// invocation.
func (c *Context) SetPinValue(name string, v value.Value) error {
	p, ok := c.GetPinByName(name)
	if !ok {
		return fmt.Errorf("node %q: no pin named %q", c.node.ID, name)
	}
	if err := validatePinSchema(p, v); err != nil {
		return fmt.Errorf("node %q: %w", c.node.ID, err)
	}
	c.pinMu.Lock()
	c.pinValues[p.ID] = v
	c.pinMu.Unlock()
	c.produced.set(p.ID, v)
	return nil
}

// validatePinSchema enforces a generic-shaped pin's declared JSON Schema
// against the value a node is
// about to produce for it. Pins that don't opt into EnforceSchema are
// unaffected -- this is a per-pin authoring choice, not a blanket rule.
func validatePinSchema(p *pin.Pin, v value.Value) error {
	if !p.Options.EnforceSchema || len(p.Options.Schema) == 0 {
		return nil
	}
	schemaBytes, err := json.Marshal(p.Options.Schema)
	if err != nil {
		return fmt.Errorf("pin %q: encode schema: %w", p.Name, err)
	}
	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaBytes),
		gojsonschema.NewGoLoader(v.Native()),
	)
	if err != nil {
		return fmt.Errorf("pin %q: run schema validation: %w", p.Name, err)
	}
	if !result.Valid() {
		return fmt.Errorf("pin %q: value does not satisfy its schema: %v", p.Name, result.Errors())
	}
	return nil
}

// EvaluatePin implements 's evaluate_pin semantics: a programmatically
// set or already-pulled value wins; otherwise, an unconnected pin yields
// its Default; a connected input pin locates its upstream output pin,
// recursively pulling the owning node (via the scheduler's puller
// callback) if it has not yet run in this exec chain, then reads that
// pin's produced value.
func (c *Context) EvaluatePin(name string) (value.Value, error) {
	p, ok := c.GetPinByName(name)
	if !ok {
		return value.Null(), fmt.Errorf("node %q: no pin named %q", c.node.ID, name)
	}
	return c.evaluatePin(p)
}

func (c *Context) evaluatePin(p *pin.Pin) (value.Value, error) {
	c.pinMu.Lock()
	if v, ok := c.pinValues[p.ID]; ok {
		c.pinMu.Unlock()
		return v, nil
	}
	c.pinMu.Unlock()

	if len(p.Connections) == 0 {
		if p.Default != nil {
			return *p.Default, nil
		}
		return value.Null(), nil
	}

	upstream, ok := c.board.LookupPin(p.Connections[0])
	if !ok {
		return value.Null(), fmt.Errorf("pin %q: connection %q not found", p.ID, p.Connections[0])
	}

	if !c.wasExecuted(upstream.NodeID) {
		if c.puller == nil {
			return value.Null(), fmt.Errorf("pin %q: upstream node %q has not run and no puller was supplied", p.ID, upstream.NodeID)
		}
		if err := c.puller(upstream.NodeID); err != nil {
			return value.Null(), fmt.Errorf("pull upstream node %q: %w", upstream.NodeID, err)
		}
	}

	c.pinMu.Lock()
	v, ok := c.pinValues[upstream.ID]
	c.pinMu.Unlock()
	if ok {
		return v, nil
	}
	if v, ok := c.produced.get(upstream.ID); ok {
		return v, nil
	}
	if upstream.Default != nil {
		return *upstream.Default, nil
	}
	return value.Null(), nil
}

// ActivateExecPin marks an output exec pin active; the scheduler consults
// ActiveExecPins after Run returns to decide which downstream nodes to
// dispatch.
func (c *Context) ActivateExecPin(name string) error {
	p, ok := c.GetPinByName(name)
	if !ok {
		return fmt.Errorf("node %q: no pin named %q", c.node.ID, name)
	}
	if !p.IsExec() || p.Direction != pin.DirectionOutput {
		return fmt.Errorf("pin %q is not an output exec pin", name)
	}
	c.execMu.Lock()
	c.activeExec[p.ID] = true
	c.execMu.Unlock()
	return nil
}

// DeactivateExecPin clears a previously activated output exec pin, for
// nodes that may be invoked repeatedly without always producing
// activation. No catalog node calls it.
func (c *Context) DeactivateExecPin(name string) error {
	p, ok := c.GetPinByName(name)
	if !ok {
		return fmt.Errorf("node %q: no pin named %q", c.node.ID, name)
	}
	c.execMu.Lock()
	delete(c.activeExec, p.ID)
	c.execMu.Unlock()
	return nil
}

// ActiveExecPins returns the ids of every output exec pin this
// invocation activated.
func (c *Context) ActiveExecPins() []string {
	c.execMu.Lock()
	defer c.execMu.Unlock()
	out := make([]string, 0, len(c.activeExec))
	for id := range c.activeExec {
		out = append(out, id)
	}
	return out
}

// LogMessage appends a log entry to this invocation's trace, filtered by
// the board's configured log level. level is one of the
// board.LogLevel string values ("debug", "info", "warn", "error",
// "fatal"); an unrecognized value is treated as "info".
func (c *Context) LogMessage(message string, level string) {
	lvl := board.LogLevel(level)
	msg := trace.NewLogMessage(message, lvl, nil)
	c.trace.Append(msg, c.logLevel)
	if c.logger != nil {
		logByLevel(c.logger, lvl, message, "node_id", c.node.ID, "trace_id", c.trace.ID)
	}
}

// LogOperation is the richer, non-interface form used by node
// implementations that want to correlate a start/end pair of messages
// via operation_id or attach LogStat token accounting; returned so the
// caller can call Finish()/PutStats() once the operation completes.
func (c *Context) LogOperation(text string, level board.LogLevel, operationID *string) *trace.LogMessage {
	msg := trace.NewLogMessage(text, level, operationID)
	c.trace.Append(msg, c.logLevel)
	return msg
}

func logByLevel(l Logger, level board.LogLevel, msg string, args ...any) {
	switch level {
	case board.LogDebug:
		l.Debug(msg, args...)
	case board.LogWarn:
		l.Warn(msg, args...)
	case board.LogError, board.LogFatal:
		l.Error(msg, args...)
	default:
		l.Info(msg, args...)
	}
}
