// Package toolclient invokes tools on a pennywise tool server. Every call
// spawns its own short-lived server process, writes one framed request, and
// reads the matching framed response. Calls never share a process, so a hung
// or crashed tool can only ever cost its own call.
package toolclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/pennywiseapp/pennywise/internal/toolwire"
)

// ErrorKind classifies a failed call.
type ErrorKind string

const (
	// KindTransport covers process start failures, premature exits, and
	// timeouts. The tool never reported anything.
	KindTransport ErrorKind = "transport"
	// KindApplication covers in-band tool failures: the tool ran and
	// reported a semantic error.
	KindApplication ErrorKind = "application"
)

// CallError is the terminal failure of a call. It is carried inside Result
// rather than returned as a Go error: callers treat failures as "data source
// unavailable", not as conditions to handle.
type CallError struct {
	Kind    ErrorKind
	Message string
}

func (e *CallError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Result is the single terminal outcome of an Invoke.
type Result struct {
	Payload json.RawMessage
	Err     *CallError
}

// OK reports whether the call produced a usable payload.
func (r Result) OK() bool { return r.Err == nil }

// Worker is one spawned tool server process. The default implementation wraps
// exec.Cmd; tests substitute in-memory fakes through Options.Factory.
type Worker interface {
	Stdin() io.WriteCloser
	Stdout() io.Reader
	// Terminate asks the process to exit gracefully.
	Terminate() error
	// Kill forcibly ends the process.
	Kill() error
	// Wait reaps the process. Safe to call more than once.
	Wait() error
}

// Factory starts a fresh worker for one call.
type Factory func(ctx context.Context) (Worker, error)

const (
	// DefaultTimeout bounds startup plus response for one call.
	DefaultTimeout = 20 * time.Second
	// DefaultKillGrace is how long a terminated worker gets to exit before
	// it is killed.
	DefaultKillGrace = 2 * time.Second
	// DefaultMaxWorkers bounds concurrently live worker processes.
	DefaultMaxWorkers = 16
)

// Options configures a Client.
type Options struct {
	// Command is the tool server argv, e.g. {"pennywise", "toolserver"}.
	// Ignored when Factory is set.
	Command []string
	// Env is appended to the inherited environment of spawned workers.
	Env []string
	// Factory overrides process creation (tests).
	Factory Factory
	// MaxWorkers caps concurrently live workers. Zero means DefaultMaxWorkers.
	MaxWorkers int
	// KillGrace overrides DefaultKillGrace.
	KillGrace time.Duration
}

// Client issues isolated tool calls.
type Client struct {
	factory   Factory
	sem       chan struct{}
	killGrace time.Duration
}

// New builds a Client. Options.Command (or Options.Factory) must be set.
func New(opts Options) (*Client, error) {
	factory := opts.Factory
	if factory == nil {
		if len(opts.Command) == 0 {
			return nil, fmt.Errorf("toolclient: command or factory required")
		}
		factory = execFactory(opts.Command, opts.Env)
	}
	maxWorkers := opts.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = DefaultMaxWorkers
	}
	killGrace := opts.KillGrace
	if killGrace <= 0 {
		killGrace = DefaultKillGrace
	}
	return &Client{
		factory:   factory,
		sem:       make(chan struct{}, maxWorkers),
		killGrace: killGrace,
	}, nil
}

// Invoke runs one tool call to its single terminal outcome. Slow, crashed, or
// unresponsive workers resolve as transport errors; in-band tool failures
// resolve as application errors. The worker process is gone by the time
// Invoke returns, on every path.
func (c *Client) Invoke(ctx context.Context, tool string, args map[string]any, timeout time.Duration) Result {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	select {
	case c.sem <- struct{}{}:
		defer func() { <-c.sem }()
	case <-callCtx.Done():
		return transportErr("worker slot unavailable before deadline")
	}

	worker, err := c.factory(callCtx)
	if err != nil {
		return transportErr(fmt.Sprintf("start worker: %v", err))
	}
	defer func() { _ = worker.Wait() }()

	id := uuid.NewString()
	line, err := toolwire.EncodeRequest(toolwire.Request{
		ID:     id,
		Method: toolwire.MethodCall,
		Params: toolwire.Params{Name: tool, Arguments: args},
	})
	if err != nil {
		c.teardown(worker)
		return transportErr(fmt.Sprintf("encode request: %v", err))
	}

	// One request per worker: write it and signal end of input.
	stdin := worker.Stdin()
	if _, err := stdin.Write(line); err != nil {
		c.teardown(worker)
		return transportErr(fmt.Sprintf("write request: %v", err))
	}
	_ = stdin.Close()

	type outcome struct {
		resp toolwire.Response
		ok   bool
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		resp, ok, err := awaitResponse(worker.Stdout(), id)
		done <- outcome{resp: resp, ok: ok, err: err}
	}()

	select {
	case out := <-done:
		c.teardown(worker)
		if out.ok {
			return resultFromResponse(out.resp)
		}
		if out.err != nil {
			return transportErr(fmt.Sprintf("worker output: %v", out.err))
		}
		return transportErr(exitReason(worker.Wait()))
	case <-callCtx.Done():
		c.teardown(worker)
		log.Printf("[toolclient] %s timed out after %s, worker terminated", tool, timeout)
		return transportErr("timeout")
	}
}

// awaitResponse accumulates stdout until a response with the wanted id shows
// up or the stream closes. Non-protocol lines on the stream are ignored.
func awaitResponse(stdout io.Reader, id string) (toolwire.Response, bool, error) {
	var buf []byte
	chunk := make([]byte, 4096)
	for {
		n, err := stdout.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			for _, resp := range toolwire.DecodeResponses(buf) {
				if resp.ID == id {
					return resp, true, nil
				}
			}
		}
		if err != nil {
			if err == io.EOF {
				return toolwire.Response{}, false, nil
			}
			return toolwire.Response{}, false, err
		}
	}
}

// teardown guarantees the worker is gone: graceful termination first, kill
// after the grace period, then reap.
func (c *Client) teardown(w Worker) {
	exited := make(chan struct{})
	go func() {
		_ = w.Wait()
		close(exited)
	}()

	select {
	case <-exited:
		return
	case <-time.After(50 * time.Millisecond):
	}

	_ = w.Terminate()
	select {
	case <-exited:
		return
	case <-time.After(c.killGrace):
	}

	_ = w.Kill()
	<-exited
}

func resultFromResponse(resp toolwire.Response) Result {
	if te, ok := toolwire.ResultError(resp.Result); ok {
		return Result{Err: &CallError{Kind: KindApplication, Message: te.Message}}
	}
	return Result{Payload: resp.Result}
}

func transportErr(message string) Result {
	return Result{Err: &CallError{Kind: KindTransport, Message: message}}
}

func exitReason(waitErr error) string {
	if waitErr != nil {
		return fmt.Sprintf("worker exited before responding: %v", waitErr)
	}
	return "worker closed its output without a matching response"
}
