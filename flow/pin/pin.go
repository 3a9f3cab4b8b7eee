// Package pin defines the static pin type system and the Pin struct
// itself.
package pin

import "github.com/lyzr/flowengine/flow/value"

// VariableType is the static type a data (or exec) pin declares.
type VariableType string

const (
	TypeExecution VariableType = "execution"
	TypeBoolean   VariableType = "boolean"
	TypeInteger   VariableType = "integer"
	TypeFloat     VariableType = "float"
	TypeString    VariableType = "string"
	TypeByte      VariableType = "byte"
	TypeDate      VariableType = "date"
	TypePathBuf   VariableType = "path_buf"
	TypeGeneric   VariableType = "generic"
	TypeStruct    VariableType = "struct"
)

// ValueType is the shape modifier layered on top of VariableType.
type ValueType string

const (
	ShapeNormal  ValueType = "normal"
	ShapeArray   ValueType = "array"
	ShapeHashSet ValueType = "hash_set"
	ShapeHashMap ValueType = "hash_map"
)

// Direction is which side of a node a pin sits on.
type Direction string

const (
	DirectionInput  Direction = "input"
	DirectionOutput Direction = "output"
)

// Options carries the optional constraints a pin's value must satisfy.
type Options struct {
	Range          *Range                 `json:"range,omitempty"`
	ValidValues    []value.Value          `json:"valid_values,omitempty"`
	Step           *float64               `json:"step,omitempty"`
	Schema         map[string]interface{} `json:"schema,omitempty"`
	EnforceSchema  bool                   `json:"enforce_schema,omitempty"`
}

// Range bounds a numeric pin's permitted values.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Pin is identified by (ID, NodeID, Name), unique within a node.
type Pin struct {
	ID            string         `json:"id"`
	NodeID        string         `json:"node_id"`
	Name          string         `json:"name"`
	FriendlyName  string         `json:"friendly_name,omitempty"`
	Description   string         `json:"description,omitempty"`
	Direction     Direction      `json:"direction"`
	DataType      VariableType   `json:"data_type"`
	ValueType     ValueType      `json:"value_type"`
	Default       *value.Value   `json:"default,omitempty"`
	Options       Options        `json:"options,omitempty"`
	Connections   []string       `json:"connections,omitempty"` // peer pin ids
}

// IsExec reports whether this pin carries control flow rather than data.
func (p *Pin) IsExec() bool { return p.DataType == TypeExecution }

// IsGeneric reports whether this pin's concrete type is still unresolved.
func (p *Pin) IsGeneric() bool { return p.DataType == TypeGeneric }

// CanConnect reports whether p may be directly wired to other:
// opposite direction, and either both exec or both data.
func (p *Pin) CanConnect(other *Pin) bool {
	if p.Direction == other.Direction {
		return false
	}
	if p.IsExec() != other.IsExec() {
		return false
	}
	return true
}

// AddConnection records a peer pin id, deduplicating (fix_pins also
// dedupes, but constructors should not rely on that alone).
func (p *Pin) AddConnection(peerID string) {
	for _, id := range p.Connections {
		if id == peerID {
			return
		}
	}
	p.Connections = append(p.Connections, peerID)
}

// RemoveConnection drops a peer pin id if present.
func (p *Pin) RemoveConnection(peerID string) {
	out := p.Connections[:0]
	for _, id := range p.Connections {
		if id != peerID {
			out = append(out, id)
		}
	}
	p.Connections = out
}
