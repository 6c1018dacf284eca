// Package toolwire implements the line-delimited framing shared by the tool
// client and the tool server. Every protocol message is a single JSON object
// terminated by a newline; anything else on the stream is diagnostic noise and
// is skipped during decoding.
package toolwire

import (
	"bytes"
	"encoding/json"
	"fmt"
)

const (
	// MethodCall invokes a named tool.
	MethodCall = "tools/call"
	// MethodList requests the tool catalog.
	MethodList = "tools/list"

	// ReadyLine is the sentinel the tool server prints once it is
	// initialized and accepting requests.
	ReadyLine = `{"pennywise":"ready"}`
)

// Params carries the tool name and arguments of a tools/call request.
type Params struct {
	Name      string         `json:"name,omitempty"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// Request is one framed request line.
type Request struct {
	ID     string `json:"id"`
	Method string `json:"method"`
	Params Params `json:"params,omitempty"`
}

// Response is one framed response line. Result holds the raw payload; use
// ToolError to check for a tool-level failure.
type Response struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
}

// ToolError is the in-band failure shape carried inside a Result.
type ToolError struct {
	IsError bool   `json:"isError"`
	Message string `json:"message,omitempty"`
}

// EncodeRequest renders req as one newline-terminated line, safe to hand to a
// single Write call.
func EncodeRequest(req Request) ([]byte, error) {
	if req.ID == "" {
		return nil, fmt.Errorf("encode request: empty id")
	}
	if req.Method == "" {
		return nil, fmt.Errorf("encode request: empty method")
	}
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	return append(data, '\n'), nil
}

// EncodeResponse renders resp as one newline-terminated line.
func EncodeResponse(resp Response) ([]byte, error) {
	if resp.ID == "" {
		return nil, fmt.Errorf("encode response: empty id")
	}
	data, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	return append(data, '\n'), nil
}

// ErrorResult marshals a ToolError into a Result payload.
func ErrorResult(message string) json.RawMessage {
	data, _ := json.Marshal(ToolError{IsError: true, Message: message})
	return data
}

// ResultError reports whether a result payload is a tool-level failure.
func ResultError(result json.RawMessage) (ToolError, bool) {
	var te ToolError
	if err := json.Unmarshal(result, &te); err != nil {
		return ToolError{}, false
	}
	if !te.IsError {
		return ToolError{}, false
	}
	return te, true
}

// DecodeResponses scans buf line by line and returns every line that parses as
// a protocol response. Lines that are not well-formed responses (stray prints,
// partial trailing data) are ignored; callers re-run the scan as the buffer
// grows, so decoding is stateless.
func DecodeResponses(buf []byte) []Response {
	var out []Response
	for _, line := range bytes.Split(buf, []byte{'\n'}) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 || line[0] != '{' {
			continue
		}
		var resp Response
		if err := json.Unmarshal(line, &resp); err != nil {
			continue
		}
		if resp.ID == "" {
			continue
		}
		out = append(out, resp)
	}
	return out
}

// DecodeRequest parses one request line. Unlike response decoding this is
// strict: the server only ever sees lines the client framed itself.
func DecodeRequest(line []byte) (Request, error) {
	var req Request
	if err := json.Unmarshal(bytes.TrimSpace(line), &req); err != nil {
		return Request{}, fmt.Errorf("decode request: %w", err)
	}
	if req.ID == "" {
		return Request{}, fmt.Errorf("decode request: missing id")
	}
	if req.Method == "" {
		return Request{}, fmt.Errorf("decode request: missing method")
	}
	return req, nil
}
