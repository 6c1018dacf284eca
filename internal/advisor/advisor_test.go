package advisor

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/pennywiseapp/pennywise/internal/toolclient"
)

// fakeTools returns a fixed context and records the requested calls.
type fakeTools struct {
	cctx  toolclient.Context
	calls []toolclient.Call
}

func (f *fakeTools) GatherAll(ctx context.Context, calls []toolclient.Call) toolclient.Context {
	f.calls = calls
	return f.cctx
}

type fakeCompleter struct {
	reply  string
	err    error
	system string
	prompt string
}

func (f *fakeCompleter) Complete(ctx context.Context, system, prompt string) (string, error) {
	f.system, f.prompt = system, prompt
	return f.reply, f.err
}

func purposes(calls []toolclient.Call) map[string]bool {
	out := make(map[string]bool, len(calls))
	for _, c := range calls {
		out[c.Purpose] = true
	}
	return out
}

func TestAdvise_BuildsPromptFromContext(t *testing.T) {
	tools := &fakeTools{cctx: toolclient.Context{
		"profile": json.RawMessage(`{"summary":{"net":"2000"}}`),
		"market":  json.RawMessage(`{"quotes":[]}`),
	}}
	llm := &fakeCompleter{reply: "Save more."}
	a := New(tools, llm, time.Second)

	resp := a.Advise(context.Background(), Request{TenantID: "t1", Question: "How am I doing?"})
	if resp.Degraded {
		t.Error("response should not be degraded")
	}
	if resp.Advice != "Save more." {
		t.Errorf("advice = %q", resp.Advice)
	}
	if !strings.Contains(llm.prompt, "How am I doing?") {
		t.Error("prompt missing the question")
	}
	if !strings.Contains(llm.prompt, "## profile") || !strings.Contains(llm.prompt, "## market") {
		t.Errorf("prompt missing context sections:\n%s", llm.prompt)
	}
	// profile must come before market per section ordering
	if strings.Index(llm.prompt, "## profile") > strings.Index(llm.prompt, "## market") {
		t.Error("profile section should precede market")
	}
	if len(resp.UsedContext) != 2 {
		t.Errorf("usedContext = %v, want 2 entries", resp.UsedContext)
	}
}

func TestAdvise_SkipsProfileForAnonymous(t *testing.T) {
	tools := &fakeTools{cctx: toolclient.Context{}}
	a := New(tools, &fakeCompleter{reply: "ok"}, time.Second)

	a.Advise(context.Background(), Request{})
	got := purposes(tools.calls)
	if got["profile"] {
		t.Error("anonymous request should not gather a profile")
	}
	if !got["market"] || !got["news"] || !got["indicators"] {
		t.Errorf("base calls missing: %v", got)
	}
}

func TestAdvise_FocusAddsCalls(t *testing.T) {
	tools := &fakeTools{cctx: toolclient.Context{}}
	a := New(tools, &fakeCompleter{reply: "ok"}, time.Second)

	a.Advise(context.Background(), Request{TenantID: "t1", Focus: FocusInvestment})
	if !purposes(tools.calls)["opportunities"] {
		t.Error("investment focus should gather opportunities")
	}

	a.Advise(context.Background(), Request{TenantID: "t1", Focus: FocusExpense})
	if !purposes(tools.calls)["reductions"] {
		t.Error("expense focus should gather reduction suggestions")
	}
}

func TestAdvise_ModelFailureYieldsCannedAdvice(t *testing.T) {
	tools := &fakeTools{cctx: toolclient.Context{}}
	a := New(tools, &fakeCompleter{err: errors.New("model down")}, time.Second)

	resp := a.Advise(context.Background(), Request{TenantID: "t1", Focus: FocusExpense})
	if !resp.Degraded {
		t.Error("response should be flagged degraded")
	}
	if resp.Advice == "" {
		t.Fatal("canned advice missing")
	}
	if !strings.Contains(resp.Advice, "subscription") {
		t.Errorf("expense-focus canned advice = %q", resp.Advice)
	}
	if !strings.Contains(resp.Advice, "not personalized") {
		t.Errorf("missing-profile note absent: %q", resp.Advice)
	}
}

func TestAdvise_EmptyContextPrompt(t *testing.T) {
	tools := &fakeTools{cctx: toolclient.Context{}}
	llm := &fakeCompleter{reply: "ok"}
	a := New(tools, llm, time.Second)

	a.Advise(context.Background(), Request{Question: "hi"})
	if !strings.Contains(llm.prompt, "No context data is available") {
		t.Errorf("prompt = %q, want empty-context note", llm.prompt)
	}
}
