package board

import (
	"github.com/lyzr/flowengine/flow/pin"
	"github.com/lyzr/flowengine/flow/value"
)

// Variable is a named, typed slot. Board variables are declared on the
// board and shared per run; nodes may also create ad-hoc runtime
// variables through the execution context.
type Variable struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	DataType pin.VariableType `json:"data_type"`
	ValueType pin.ValueType   `json:"value_type"`
	Default  value.Value     `json:"-"`
	Editable bool            `json:"editable"`
	Secret   bool            `json:"secret"`
	Category *string         `json:"category,omitempty"`
}

// Comment is a free-floating annotation on the authoring canvas.
type Comment struct {
	ID          string  `json:"id"`
	Text        string  `json:"text"`
	CommentType string  `json:"comment_type"`
	Layer       *string `json:"layer,omitempty"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Width       float64 `json:"width"`
	Height      float64 `json:"height"`
}

// Layer groups nodes/comments for collapsible display; purely an
// authoring concern, never read by the scheduler.
type Layer struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	ParentID *string `json:"parent_id,omitempty"`
}
