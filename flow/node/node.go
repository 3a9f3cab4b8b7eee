// Package node defines the Node data shape and the NodeLogic contract
// that the registry (flow/catalog) binds to it at run time.
package node

import "github.com/lyzr/flowengine/flow/pin"

// Coordinates places a node on the authoring canvas. Purely cosmetic —
// the scheduler never reads it — but kept on Node because boards persist
// it alongside everything else.
type Coordinates struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is a unit of computation with typed pins. Node.Name is the
// stable key the registry uses to bind a NodeLogic implementation.
type Node struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	FriendlyName string          `json:"friendly_name"`
	Description  string          `json:"description,omitempty"`
	Category     string          `json:"category,omitempty"`
	Icon         string          `json:"icon,omitempty"`
	Coordinates  Coordinates     `json:"coordinates"`
	Layer        *string         `json:"layer,omitempty"`

	Start          bool `json:"start"`
	LongRunning    bool `json:"long_running"`
	EventCallback  bool `json:"event_callback"`
	Delegated      bool `json:"delegated"`

	// Pins is ordered for deterministic iteration (pull phase, trace
	// display) but keyed by id for O(1) lookup.
	PinOrder []string            `json:"pin_order"`
	Pins     map[string]*pin.Pin `json:"pins"`
}

// NewNode creates an empty node shell; callers populate pins via AddPin.
func NewNode(id, name, friendlyName string) *Node {
	return &Node{
		ID:           id,
		Name:         name,
		FriendlyName: friendlyName,
		Pins:         make(map[string]*pin.Pin),
	}
}

// AddPin inserts a pin, preserving insertion order in PinOrder.
func (n *Node) AddPin(p *pin.Pin) {
	if _, exists := n.Pins[p.ID]; !exists {
		n.PinOrder = append(n.PinOrder, p.ID)
	}
	p.NodeID = n.ID
	n.Pins[p.ID] = p
}

// RemovePin deletes a pin by id, fixing up PinOrder.
func (n *Node) RemovePin(id string) {
	delete(n.Pins, id)
	out := n.PinOrder[:0]
	for _, pid := range n.PinOrder {
		if pid != id {
			out = append(out, pid)
		}
	}
	n.PinOrder = out
}

// PinByName finds the first pin with the given name (names are unique
// within a node, except for variadic pins like multi-input
// boolean operators, where callers should use PinsByName).
func (n *Node) PinByName(name string) *pin.Pin {
	for _, id := range n.PinOrder {
		if p := n.Pins[id]; p != nil && p.Name == name {
			return p
		}
	}
	return nil
}

// PinsByName returns every pin with the given name, in declaration order.
func (n *Node) PinsByName(name string) []*pin.Pin {
	var out []*pin.Pin
	for _, id := range n.PinOrder {
		if p := n.Pins[id]; p != nil && p.Name == name {
			out = append(out, p)
		}
	}
	return out
}

// ExecOutputs returns this node's output exec pins, in declaration order.
func (n *Node) ExecOutputs() []*pin.Pin {
	var out []*pin.Pin
	for _, id := range n.PinOrder {
		p := n.Pins[id]
		if p != nil && p.IsExec() && p.Direction == pin.DirectionOutput {
			out = append(out, p)
		}
	}
	return out
}

// ExecInputs returns this node's input exec pins, in declaration order.
func (n *Node) ExecInputs() []*pin.Pin {
	var out []*pin.Pin
	for _, id := range n.PinOrder {
		p := n.Pins[id]
		if p != nil && p.IsExec() && p.Direction == pin.DirectionInput {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks node-local invariants that don't require board context:
// start nodes need >=1 output exec pin and no input exec pins.
func (n *Node) Validate() error {
	if n.Start {
		if len(n.ExecInputs()) != 0 {
			return &InvariantError{Node: n.ID, Reason: "start node must not declare input exec pins"}
		}
		if len(n.ExecOutputs()) == 0 {
			return &InvariantError{Node: n.ID, Reason: "start node must declare at least one output exec pin"}
		}
	}
	return nil
}

// InvariantError reports a violated node-level invariant.
type InvariantError struct {
	Node   string
	Reason string
}

func (e *InvariantError) Error() string {
	return "node " + e.Node + ": " + e.Reason
}
