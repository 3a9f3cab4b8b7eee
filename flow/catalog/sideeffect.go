package catalog

import (
	"fmt"
	"os"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/lyzr/flowengine/external/httpclient"
	flowerrors "github.com/lyzr/flowengine/flow/errors"
	"github.com/lyzr/flowengine/flow/node"
	"github.com/lyzr/flowengine/flow/pin"
	"github.com/lyzr/flowengine/flow/value"
)

// The side-effect class: nodes whose Run reaches outside the
// pure pin-dataflow graph into an external collaborator or the local
// filesystem. Unlike the math/logic catalog, these never cache their
// output (flow/context.RunCache is keyed for pure nodes only) -- every
// invocation re-runs the effect.

// HTTPRequest issues an outbound HTTP call via ctx.Services().HTTP,
// exposing status/body/json as outputs.
type HTTPRequest struct{}

func (HTTPRequest) GetNode(interface{}) *node.Node {
	n := node.NewNode("", "http_request", "HTTP Request")
	n.AddPin(execIn())
	n.AddPin(&pin.Pin{ID: "method", Name: "method", Direction: pin.DirectionInput, DataType: pin.TypeString})
	n.AddPin(&pin.Pin{ID: "url", Name: "url", Direction: pin.DirectionInput, DataType: pin.TypeString})
	n.AddPin(&pin.Pin{ID: "body", Name: "body", Direction: pin.DirectionInput, DataType: pin.TypeGeneric})
	n.AddPin(&pin.Pin{ID: "json_path", Name: "json_path", Direction: pin.DirectionInput, DataType: pin.TypeString})
	n.AddPin(&pin.Pin{ID: "status_code", Name: "status_code", Direction: pin.DirectionOutput, DataType: pin.TypeInteger})
	n.AddPin(&pin.Pin{ID: "response", Name: "response", Direction: pin.DirectionOutput, DataType: pin.TypeGeneric})
	n.AddPin(&pin.Pin{ID: "field", Name: "field", Direction: pin.DirectionOutput, DataType: pin.TypeGeneric})
	n.AddPin(execOut("exec_out"))
	n.AddPin(execOut("error"))
	return n
}

func (HTTPRequest) Run(ctx node.ExecContext) error {
	svc := ctx.Services()
	if svc.HTTP == nil {
		return flowerrors.Resource(nil, "http_request: no HTTP client wired")
	}

	method, err := mustEvalString(ctx, "method")
	if err != nil {
		return fmt.Errorf("http_request: %w", err)
	}
	url, err := mustEvalString(ctx, "url")
	if err != nil {
		return fmt.Errorf("http_request: %w", err)
	}
	bodyVal, err := ctx.EvaluatePin("body")
	if err != nil {
		return fmt.Errorf("http_request: %w", err)
	}

	var body []byte
	if !bodyVal.IsNull() {
		if b, err := bodyVal.AsBytes(); err == nil {
			body = b
		} else if s, err := bodyVal.AsString(); err == nil {
			body = []byte(s)
		}
	}

	resp, err := svc.HTTP.Do(ctx.StdContext(), httpclient.Request{Method: method, URL: url, Body: body})
	if err != nil {
		if perr := ctx.SetPinValue("status_code", value.Int(0)); perr != nil {
			return perr
		}
		ctx.LogMessage(fmt.Sprintf("http_request: %v", err), "error")
		return ctx.ActivateExecPin("error")
	}

	if err := ctx.SetPinValue("status_code", value.Int(int64(resp.StatusCode))); err != nil {
		return fmt.Errorf("http_request: %w", err)
	}
	respValue := value.FromNative(resp.JSON)
	if resp.JSON == nil {
		respValue = value.String(string(resp.Body))
	}
	if err := ctx.SetPinValue("response", respValue); err != nil {
		return fmt.Errorf("http_request: %w", err)
	}

	if err := ctx.SetPinValue("field", extractField(ctx, resp.Body)); err != nil {
		return fmt.Errorf("http_request: %w", err)
	}

	if resp.StatusCode >= 400 {
		return ctx.ActivateExecPin("error")
	}
	return ctx.ActivateExecPin("exec_out")
}

func (HTTPRequest) OnUpdate(*node.Node, node.BoardAccessor) error { return nil }

// extractField pulls one field out of the response body by gjson path
// when the node author wired a non-empty "json_path"
// pin, letting a board read e.g. "data.items.0.id" without round-
// tripping the whole body through value.Value first. An unset or
// non-matching path yields Null rather than an error -- a missing field
// is a board-authoring concern to branch on, not a node-level failure.
func extractField(ctx node.ExecContext, body []byte) value.Value {
	path, err := mustEvalString(ctx, "json_path")
	if err != nil || path == "" {
		return value.Null()
	}
	result := gjson.GetBytes(body, path)
	if !result.Exists() {
		return value.Null()
	}
	return value.FromNative(result.Value())
}

// ReadFile reads a local file's contents, the one side effect in this
// class with no external collaborator behind it -- grounded directly on
// os.ReadFile rather than a Services field, since no pack dependency
// wraps local filesystem access and plain os.* is the idiomatic choice
// for this kind of local I/O.
type ReadFile struct{}

func (ReadFile) GetNode(interface{}) *node.Node {
	n := node.NewNode("", "read_file", "Read File")
	n.AddPin(execIn())
	n.AddPin(&pin.Pin{ID: "path", Name: "path", Direction: pin.DirectionInput, DataType: pin.TypePathBuf})
	n.AddPin(&pin.Pin{ID: "contents", Name: "contents", Direction: pin.DirectionOutput, DataType: pin.TypeString})
	n.AddPin(execOut("exec_out"))
	n.AddPin(execOut("error"))
	return n
}

func (ReadFile) Run(ctx node.ExecContext) error {
	path, err := mustEvalString(ctx, "path")
	if err != nil {
		return fmt.Errorf("read_file: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		ctx.LogMessage(fmt.Sprintf("read_file: %v", err), "error")
		return ctx.ActivateExecPin("error")
	}
	if err := ctx.SetPinValue("contents", value.String(string(data))); err != nil {
		return fmt.Errorf("read_file: %w", err)
	}
	return ctx.ActivateExecPin("exec_out")
}

func (ReadFile) OnUpdate(*node.Node, node.BoardAccessor) error { return nil }

// StoreInsert writes a value into the wired object store, returning the content-addressed reference -- the board-level
// equivalent of a db-insert node, backed by external/store rather than a
// SQL table since the engine has no generic relational schema of its
// own to insert into.
type StoreInsert struct{}

func (StoreInsert) GetNode(interface{}) *node.Node {
	n := node.NewNode("", "store_insert", "Store Insert")
	n.AddPin(execIn())
	n.AddPin(&pin.Pin{ID: "data", Name: "data", Direction: pin.DirectionInput, DataType: pin.TypeGeneric})
	n.AddPin(&pin.Pin{ID: "media_type", Name: "media_type", Direction: pin.DirectionInput, DataType: pin.TypeString})
	n.AddPin(&pin.Pin{ID: "ref", Name: "ref", Direction: pin.DirectionOutput, DataType: pin.TypeString})
	n.AddPin(execOut("exec_out"))
	n.AddPin(execOut("error"))
	return n
}

func (StoreInsert) Run(ctx node.ExecContext) error {
	svc := ctx.Services()
	if svc.Store == nil {
		return flowerrors.Resource(nil, "store_insert: no object store wired")
	}

	dataVal, err := ctx.EvaluatePin("data")
	if err != nil {
		return fmt.Errorf("store_insert: %w", err)
	}
	mediaType, _ := mustEvalString(ctx, "media_type")

	var data []byte
	if b, err := dataVal.AsBytes(); err == nil {
		data = b
	} else if s, err := dataVal.AsString(); err == nil {
		data = []byte(s)
	} else {
		data = []byte(fmt.Sprintf("%v", dataVal.Native()))
	}

	ref, err := svc.Store.Put(ctx.StdContext(), data, mediaType)
	if err != nil {
		ctx.LogMessage(fmt.Sprintf("store_insert: %v", err), "error")
		return ctx.ActivateExecPin("error")
	}
	if err := ctx.SetPinValue("ref", value.String(ref)); err != nil {
		return fmt.Errorf("store_insert: %w", err)
	}
	return ctx.ActivateExecPin("exec_out")
}

func (StoreInsert) OnUpdate(*node.Node, node.BoardAccessor) error { return nil }

// SendMail delivers a notification through the wired mail transport,
// the outbound counterpart to the mail_event
// start node -- a board can both wake on an inbound message and answer
// one without leaving the pin-dataflow graph.
type SendMail struct{}

func (SendMail) GetNode(interface{}) *node.Node {
	n := node.NewNode("", "send_mail", "Send Mail")
	n.AddPin(execIn())
	n.AddPin(&pin.Pin{ID: "to", Name: "to", Direction: pin.DirectionInput, DataType: pin.TypeString})
	n.AddPin(&pin.Pin{ID: "subject", Name: "subject", Direction: pin.DirectionInput, DataType: pin.TypeString})
	n.AddPin(&pin.Pin{ID: "body", Name: "body", Direction: pin.DirectionInput, DataType: pin.TypeString})
	n.AddPin(execOut("exec_out"))
	n.AddPin(execOut("error"))
	return n
}

func (SendMail) Run(ctx node.ExecContext) error {
	svc := ctx.Services()
	if svc.Mail == nil {
		return flowerrors.Resource(nil, "send_mail: no mail transport wired")
	}

	to, err := mustEvalString(ctx, "to")
	if err != nil {
		return fmt.Errorf("send_mail: %w", err)
	}
	subject, err := mustEvalString(ctx, "subject")
	if err != nil {
		return fmt.Errorf("send_mail: %w", err)
	}
	body, err := mustEvalString(ctx, "body")
	if err != nil {
		return fmt.Errorf("send_mail: %w", err)
	}

	recipients := strings.FieldsFunc(to, func(r rune) bool { return r == ',' || r == ';' || r == ' ' })
	if err := svc.Mail.Send(recipients, subject, body); err != nil {
		ctx.LogMessage(fmt.Sprintf("send_mail: %v", err), "error")
		return ctx.ActivateExecPin("error")
	}
	return ctx.ActivateExecPin("exec_out")
}

func (SendMail) OnUpdate(*node.Node, node.BoardAccessor) error { return nil }

// GetUserAttribute looks up one attribute of a caller's identity via
// the wired user directory, the node-level home
// for the identity lookup cmd/orchestrator's auth middleware (X-User-ID
// header -> tag namespace) used directly inline -- here the header is
// lifted into the payload by the HTTP transport and a board reaches for
// whatever attribute it needs through this node instead of the engine
// baking identity into every event shape.
type GetUserAttribute struct{}

func (GetUserAttribute) GetNode(interface{}) *node.Node {
	n := node.NewNode("", "get_user_attribute", "Get User Attribute")
	n.AddPin(execIn())
	n.AddPin(&pin.Pin{ID: "sub", Name: "sub", Direction: pin.DirectionInput, DataType: pin.TypeString})
	n.AddPin(&pin.Pin{ID: "username", Name: "username", Direction: pin.DirectionInput, DataType: pin.TypeString})
	n.AddPin(&pin.Pin{ID: "attribute", Name: "attribute", Direction: pin.DirectionInput, DataType: pin.TypeString})
	n.AddPin(&pin.Pin{ID: "value", Name: "value", Direction: pin.DirectionOutput, DataType: pin.TypeString})
	n.AddPin(execOut("exec_out"))
	n.AddPin(execOut("error"))
	return n
}

func (GetUserAttribute) Run(ctx node.ExecContext) error {
	svc := ctx.Services()
	if svc.Users == nil {
		return flowerrors.Resource(nil, "get_user_attribute: no user directory wired")
	}

	sub, err := mustEvalString(ctx, "sub")
	if err != nil {
		return fmt.Errorf("get_user_attribute: %w", err)
	}
	username, err := mustEvalString(ctx, "username")
	if err != nil {
		return fmt.Errorf("get_user_attribute: %w", err)
	}
	attribute, err := mustEvalString(ctx, "attribute")
	if err != nil {
		return fmt.Errorf("get_user_attribute: %w", err)
	}

	val, err := svc.Users.GetAttribute(ctx.StdContext(), sub, username, attribute)
	if err != nil {
		ctx.LogMessage(fmt.Sprintf("get_user_attribute: %v", err), "error")
		return ctx.ActivateExecPin("error")
	}
	if err := ctx.SetPinValue("value", value.String(val)); err != nil {
		return fmt.Errorf("get_user_attribute: %w", err)
	}
	return ctx.ActivateExecPin("exec_out")
}

func (GetUserAttribute) OnUpdate(*node.Node, node.BoardAccessor) error { return nil }

func mustEvalString(ctx node.ExecContext, pinName string) (string, error) {
	v, err := ctx.EvaluatePin(pinName)
	if err != nil {
		return "", err
	}
	return v.AsString()
}
