package toolclient

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"
)

// Call is one member of a fan-out batch.
type Call struct {
	// Purpose keys the call's slot in the aggregated context.
	Purpose string
	Tool    string
	Args    map[string]any
	// Timeout for this call alone. Zero means DefaultTimeout.
	Timeout time.Duration
}

// Context is the merged output of a batch: one optional slot per purpose. A
// purpose whose call failed or timed out is simply absent.
type Context map[string]json.RawMessage

// Has reports whether a purpose produced a payload.
func (c Context) Has(purpose string) bool {
	_, ok := c[purpose]
	return ok
}

// GatherAll runs every call concurrently and waits for all of them to settle.
// No member outcome cancels or delays another member beyond its own timeout,
// and the merged context is only assembled after the last call finishes.
func (c *Client) GatherAll(ctx context.Context, calls []Call) Context {
	results := make([]Result, len(calls))
	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call Call) {
			defer wg.Done()
			results[i] = c.Invoke(ctx, call.Tool, call.Args, call.Timeout)
		}(i, call)
	}
	wg.Wait()

	merged := make(Context, len(calls))
	for i, call := range calls {
		if results[i].OK() {
			merged[call.Purpose] = results[i].Payload
			continue
		}
		log.Printf("[toolclient] %s (%s) unavailable: %v", call.Purpose, call.Tool, results[i].Err)
	}
	return merged
}
