// Package catalog implements the node registry's runtime binding half
// plus the control-flow and arithmetic NodeLogic implementations,
// grounded in a CEL-based condition evaluator
// (cmd/workflow-runner/condition/evaluator.go) and control flow router
// (cmd/workflow-runner/operators/control_flow.go), generalized from a
// queue-driven worker dispatch to ordinary pin-based NodeLogic values.
package catalog

import (
	"sync"

	"github.com/lyzr/flowengine/flow/node"
)

// Factory builds a fresh NodeLogic instance for a registered name. Most
// node kinds are stateless and may return the same shared value every
// time; a Factory exists so stateful kinds (condition cache, etc.) can
// construct per-registration state once at startup.
type Factory func() node.NodeLogic

// Registry is the process-wide map of node name -> behavior.
// Implements scheduler.Registry.
type Registry struct {
	mu    sync.RWMutex
	logic map[string]node.NodeLogic
}

// NewRegistry creates an empty registry. Use Default for one pre-seeded
// with every node kind this repo ships.
func NewRegistry() *Registry {
	return &Registry{logic: make(map[string]node.NodeLogic)}
}

// Register binds name to logic, overwriting any previous registration.
func (r *Registry) Register(name string, logic node.NodeLogic) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logic[name] = logic
}

// Lookup implements scheduler.Registry.
func (r *Registry) Lookup(name string) (node.NodeLogic, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.logic[name]
	return l, ok
}

// Names returns every registered node name, for the authoring catalog.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.logic))
	for name := range r.logic {
		out = append(out, name)
	}
	return out
}

// Default returns a registry pre-seeded with every node this package
// ships: the control-flow primitives and pure value nodes, the event
// entry points, the side-effect nodes and the async-callback node.
func Default() *Registry {
	r := NewRegistry()
	r.Register("simple_event", &SimpleEvent{})
	r.Register("branch", &Branch{})
	r.Register("sequence", &Sequence{})
	r.Register("for_each", &ForEach{})
	r.Register("parallel_execution", &ParallelExecution{})
	r.Register("delay", &Delay{})
	r.Register("gather", &Gather{})
	r.Register("add_int", &AddInt{})
	r.Register("const_int", &ConstInt{})
	r.Register("set_variable", &SetVariable{})
	r.Register("push_to_array_variable", &PushToArrayVariable{})
	r.Register("conditional_branch", NewConditionalBranch(NewConditionEvaluator()))

	r.Register("http_event", &HTTPEvent{})
	r.Register("chat_event", &ChatEvent{})
	r.Register("mail_event", &MailEvent{})
	r.Register("generic_event", &Generic{})

	r.Register("http_request", &HTTPRequest{})
	r.Register("read_file", &ReadFile{})
	r.Register("store_insert", &StoreInsert{})
	r.Register("send_mail", &SendMail{})
	r.Register("get_user_attribute", &GetUserAttribute{})

	r.Register("push_tool_output", &PushToolOutput{})
	return r
}
