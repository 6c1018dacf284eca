// Package advisor produces AI-assisted finance advice. It gathers context
// through the tool layer, renders a prompt, and asks the configured language
// model. Every context source is optional: advice degrades to canned guidance
// rather than failing when data or the model is unavailable.
package advisor

import (
	"context"
	"log"
	"time"

	"github.com/pennywiseapp/pennywise/internal/toolclient"
)

// Completer is the single external LLM call: request text in, response text
// out.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// ToolCaller is the slice of the tool client the advisor needs.
type ToolCaller interface {
	GatherAll(ctx context.Context, calls []toolclient.Call) toolclient.Context
}

// Focus selects which extra context the advisor gathers.
const (
	FocusGeneral    = "general"
	FocusInvestment = "investment"
	FocusExpense    = "expense"
)

// Request is one advice question.
type Request struct {
	// TenantID may be empty for unauthenticated callers; profile-backed
	// context is skipped in that case.
	TenantID string
	Question string
	Focus    string
}

// Response is the advice outcome. Degraded is set when the model call failed
// and canned guidance was substituted.
type Response struct {
	Advice      string   `json:"advice"`
	UsedContext []string `json:"usedContext"`
	Degraded    bool     `json:"degraded"`
}

// Advisor wires the tool layer to the model.
type Advisor struct {
	tools       ToolCaller
	llm         Completer
	callTimeout time.Duration
}

// New builds an Advisor. callTimeout bounds each individual tool call.
func New(tools ToolCaller, llm Completer, callTimeout time.Duration) *Advisor {
	if callTimeout <= 0 {
		callTimeout = toolclient.DefaultTimeout
	}
	return &Advisor{tools: tools, llm: llm, callTimeout: callTimeout}
}

// Advise gathers context and asks the model. It never returns an error for
// missing context or model failure; the worst case is canned advice.
func (a *Advisor) Advise(ctx context.Context, req Request) Response {
	if req.Focus == "" {
		req.Focus = FocusGeneral
	}
	cctx := a.tools.GatherAll(ctx, a.calls(req))

	used := make([]string, 0, len(cctx))
	for purpose := range cctx {
		used = append(used, purpose)
	}

	system, prompt := renderPrompt(req, cctx)
	advice, err := a.llm.Complete(ctx, system, prompt)
	if err != nil {
		log.Printf("[advisor] model call failed, using canned advice: %v", err)
		return Response{Advice: cannedAdvice(req, cctx), UsedContext: sortStrings(used), Degraded: true}
	}
	return Response{Advice: advice, UsedContext: sortStrings(used)}
}

// calls assembles the fan-out batch for one request. The profile slot is
// only requested for authenticated tenants.
func (a *Advisor) calls(req Request) []toolclient.Call {
	t := a.callTimeout
	calls := []toolclient.Call{
		{Purpose: "market", Tool: "get_market_data", Args: map[string]any{"symbols": []string{"VTI", "BND", "QQQ"}}, Timeout: t},
		{Purpose: "news", Tool: "get_financial_news", Args: map[string]any{"category": "business", "limit": 5}, Timeout: t},
		{Purpose: "indicators", Tool: "get_economic_indicators", Args: map[string]any{}, Timeout: t},
	}
	if req.TenantID == "" {
		return calls
	}
	calls = append(calls, toolclient.Call{
		Purpose: "profile",
		Tool:    "get_user_financial_profile",
		Args:    map[string]any{"tenantId": req.TenantID},
		Timeout: t,
	})
	switch req.Focus {
	case FocusInvestment:
		calls = append(calls, toolclient.Call{
			Purpose: "opportunities",
			Tool:    "get_investment_opportunities",
			Args:    map[string]any{"tenantId": req.TenantID},
			Timeout: t,
		})
	case FocusExpense:
		calls = append(calls, toolclient.Call{
			Purpose: "reductions",
			Tool:    "get_expense_reduction_suggestions",
			Args:    map[string]any{"tenantId": req.TenantID},
			Timeout: t,
		})
	}
	return calls
}
