package catalog

import (
	"fmt"

	"github.com/lyzr/flowengine/flow/errors"
	"github.com/lyzr/flowengine/flow/node"
	"github.com/lyzr/flowengine/flow/pin"
	"github.com/lyzr/flowengine/flow/value"
)

// The event class: a board entry point
// that, unlike SimpleEvent, carries a typed payload shape describing
// what triggered the run. Each kind corresponds to one transport
// (transport/http, transport/chat, transport/mail); Generic covers any
// caller that invokes a board directly (e.g. a nested "call board" spawn
// or a test) without going through a transport at all.

// HTTPEvent is the entry point for boards triggered by an inbound HTTP
// request (transport/http), exposing the decoded JSON body, the method,
// and the path as output pins.
type HTTPEvent struct{}

func (HTTPEvent) GetNode(interface{}) *node.Node {
	n := node.NewNode("", "http_event", "HTTP Event")
	n.Start = true
	n.AddPin(&pin.Pin{ID: "method", Name: "method", Direction: pin.DirectionOutput, DataType: pin.TypeString})
	n.AddPin(&pin.Pin{ID: "path", Name: "path", Direction: pin.DirectionOutput, DataType: pin.TypeString})
	n.AddPin(&pin.Pin{ID: "body", Name: "body", Direction: pin.DirectionOutput, DataType: pin.TypeGeneric})
	n.AddPin(&pin.Pin{ID: "sub", Name: "sub", Direction: pin.DirectionOutput, DataType: pin.TypeString})
	n.AddPin(execOut("exec_out"))
	return n
}

func (HTTPEvent) Run(ctx node.ExecContext) error {
	payload, err := payloadFields(ctx, "method", "path", "body", "sub")
	if err != nil {
		return fmt.Errorf("http_event: %w", err)
	}
	for name, v := range payload {
		if err := ctx.SetPinValue(name, v); err != nil {
			return fmt.Errorf("http_event: %w", err)
		}
	}
	return ctx.ActivateExecPin("exec_out")
}

func (HTTPEvent) OnUpdate(*node.Node, node.BoardAccessor) error { return nil }

// ChatEvent is the entry point for boards triggered by an inbound chat
// message (transport/chat), exposing the sender and message text.
type ChatEvent struct{}

func (ChatEvent) GetNode(interface{}) *node.Node {
	n := node.NewNode("", "chat_event", "Chat Event")
	n.Start = true
	n.AddPin(&pin.Pin{ID: "username", Name: "username", Direction: pin.DirectionOutput, DataType: pin.TypeString})
	n.AddPin(&pin.Pin{ID: "message", Name: "message", Direction: pin.DirectionOutput, DataType: pin.TypeString})
	n.AddPin(execOut("exec_out"))
	return n
}

func (ChatEvent) Run(ctx node.ExecContext) error {
	payload, err := payloadFields(ctx, "username", "message")
	if err != nil {
		return fmt.Errorf("chat_event: %w", err)
	}
	for name, v := range payload {
		if err := ctx.SetPinValue(name, v); err != nil {
			return fmt.Errorf("chat_event: %w", err)
		}
	}
	return ctx.ActivateExecPin("exec_out")
}

func (ChatEvent) OnUpdate(*node.Node, node.BoardAccessor) error { return nil }

// MailEvent is the entry point for boards triggered by an inbound email
// (transport/mail), exposing sender, subject, and body.
type MailEvent struct{}

func (MailEvent) GetNode(interface{}) *node.Node {
	n := node.NewNode("", "mail_event", "Mail Event")
	n.Start = true
	n.AddPin(&pin.Pin{ID: "from", Name: "from", Direction: pin.DirectionOutput, DataType: pin.TypeString})
	n.AddPin(&pin.Pin{ID: "subject", Name: "subject", Direction: pin.DirectionOutput, DataType: pin.TypeString})
	n.AddPin(&pin.Pin{ID: "body", Name: "body", Direction: pin.DirectionOutput, DataType: pin.TypeString})
	n.AddPin(execOut("exec_out"))
	return n
}

func (MailEvent) Run(ctx node.ExecContext) error {
	payload, err := payloadFields(ctx, "from", "subject", "body")
	if err != nil {
		return fmt.Errorf("mail_event: %w", err)
	}
	for name, v := range payload {
		if err := ctx.SetPinValue(name, v); err != nil {
			return fmt.Errorf("mail_event: %w", err)
		}
	}
	return ctx.ActivateExecPin("exec_out")
}

func (MailEvent) OnUpdate(*node.Node, node.BoardAccessor) error { return nil }

// Generic is the entry point for a board invoked without a transport at
// all (a direct API call, a nested board spawn, a test): it exposes
// whatever the caller's payload map contains without asserting any
// particular shape, unlike the three typed event kinds above.
type Generic struct{}

func (Generic) GetNode(interface{}) *node.Node {
	n := node.NewNode("", "generic_event", "Generic Event")
	n.Start = true
	n.AddPin(&pin.Pin{ID: "payload", Name: "payload", Direction: pin.DirectionOutput, DataType: pin.TypeGeneric})
	n.AddPin(execOut("exec_out"))
	return n
}

func (Generic) Run(ctx node.ExecContext) error {
	if err := ctx.SetPinValue("payload", ctx.GetPayload()); err != nil {
		return fmt.Errorf("generic_event: %w", err)
	}
	return ctx.ActivateExecPin("exec_out")
}

func (Generic) OnUpdate(*node.Node, node.BoardAccessor) error { return nil }

// payloadFields extracts named fields out of the invocation's payload
// map, which every transport populates before calling
// the scheduler. A missing field is a validation failure, not a runtime
// one -- the transport should never hand a board an event shape it
// doesn't understand.
func payloadFields(ctx node.ExecContext, fields ...string) (map[string]value.Value, error) {
	payload := ctx.GetPayload()
	m, err := payload.AsMap()
	if err != nil {
		return nil, errors.Validation(err, "event payload is not a map")
	}
	out := make(map[string]value.Value, len(fields))
	for _, f := range fields {
		v, ok := m[f]
		if !ok {
			return nil, errors.Validation(nil, "event payload missing field %q", f)
		}
		out[f] = v
	}
	return out, nil
}
