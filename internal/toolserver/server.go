// Package toolserver implements the worker process side of the tool
// protocol: it reads framed requests from stdin, dispatches them against a
// fixed tool catalog, and writes one framed response per request to stdout.
// The process announces readiness with a sentinel line and exits cleanly when
// its input closes.
package toolserver

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"sort"

	"github.com/pennywiseapp/pennywise/internal/toolwire"
)

const maxRequestLine = 1 << 20

func newLineScanner(in io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxRequestLine)
	return scanner
}

// Handler executes one tool call. A returned error becomes an in-band
// application error, never a process failure.
type Handler func(ctx context.Context, args map[string]any) (any, error)

// Tool is one catalog entry plus its handler.
type Tool struct {
	Name        string
	Description string
	// InputSchema is the JSON-schema-shaped description of the arguments.
	InputSchema map[string]any
	// Required lists argument names validated before dispatch.
	Required []string
	Handle   Handler
}

// Descriptor is the discovery shape returned by tools/list.
type Descriptor struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

// Server owns the catalog and the request loop.
type Server struct {
	tools map[string]Tool
}

// New builds a server over the given tools. Duplicate names panic: the
// catalog is assembled once at startup and a collision is a programming
// error.
func New(tools ...Tool) *Server {
	s := &Server{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		if t.Name == "" || t.Handle == nil {
			panic("toolserver: tool needs a name and a handler")
		}
		if _, exists := s.tools[t.Name]; exists {
			panic("toolserver: duplicate tool " + t.Name)
		}
		s.tools[t.Name] = t
	}
	return s
}

// Catalog returns the descriptors sorted by name. Successive calls return
// the same catalog.
func (s *Server) Catalog() []Descriptor {
	names := make([]string, 0, len(s.tools))
	for name := range s.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]Descriptor, 0, len(names))
	for _, name := range names {
		t := s.tools[name]
		out = append(out, Descriptor{Name: t.Name, Description: t.Description, InputSchema: t.InputSchema})
	}
	return out
}

// Run writes the readiness sentinel, then serves framed requests from in
// until EOF. Each request yields exactly one response line carrying the
// request's id. Run only returns a non-nil error for output failures; bad
// requests are answered in-band.
func (s *Server) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	if _, err := fmt.Fprintln(out, toolwire.ReadyLine); err != nil {
		return fmt.Errorf("toolserver: write readiness: %w", err)
	}

	scanner := newLineScanner(in)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		req, err := toolwire.DecodeRequest(line)
		if err != nil {
			log.Printf("[toolserver] dropping malformed request line: %v", err)
			continue
		}
		resp := toolwire.Response{ID: req.ID, Result: s.dispatch(ctx, req)}
		encoded, err := toolwire.EncodeResponse(resp)
		if err != nil {
			log.Printf("[toolserver] encode response for %s: %v", req.ID, err)
			encoded, _ = toolwire.EncodeResponse(toolwire.Response{
				ID:     req.ID,
				Result: toolwire.ErrorResult("internal: response not serializable"),
			})
		}
		if _, err := out.Write(encoded); err != nil {
			return fmt.Errorf("toolserver: write response: %w", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("toolserver: read input: %w", err)
	}
	return nil
}

func (s *Server) dispatch(ctx context.Context, req toolwire.Request) json.RawMessage {
	switch req.Method {
	case toolwire.MethodList:
		payload, err := json.Marshal(map[string]any{"tools": s.Catalog()})
		if err != nil {
			return toolwire.ErrorResult("internal: catalog not serializable")
		}
		return payload
	case toolwire.MethodCall:
		return s.call(ctx, req.Params.Name, req.Params.Arguments)
	default:
		return toolwire.ErrorResult("unknown method: " + req.Method)
	}
}

func (s *Server) call(ctx context.Context, name string, args map[string]any) json.RawMessage {
	tool, ok := s.tools[name]
	if !ok {
		return toolwire.ErrorResult("unknown tool: " + name)
	}
	for _, field := range tool.Required {
		if _, present := args[field]; !present {
			return toolwire.ErrorResult("missing required argument: " + field)
		}
	}
	result, err := tool.Handle(ctx, args)
	if err != nil {
		log.Printf("[toolserver] %s failed: %v", name, err)
		return toolwire.ErrorResult(err.Error())
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return toolwire.ErrorResult("internal: result not serializable")
	}
	return payload
}
