package advisor

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pennywiseapp/pennywise/internal/toolclient"
)

const systemPrompt = `You are a careful personal-finance assistant. Ground every
recommendation in the provided context sections. When a section is missing, say
so instead of guessing. Never present synthetic or reference values as live
market data. Keep answers under 300 words.`

// Ordering of context sections in the prompt. Purposes not listed are
// appended alphabetically after these.
var sectionOrder = []string{"profile", "market", "indicators", "news", "opportunities", "reductions"}

func renderPrompt(req Request, cctx toolclient.Context) (system, prompt string) {
	var b strings.Builder
	question := strings.TrimSpace(req.Question)
	if question == "" {
		question = "Give me a short review of my current financial situation."
	}
	fmt.Fprintf(&b, "Question: %s\n\n", question)

	if len(cctx) == 0 {
		b.WriteString("No context data is available; answer from general principles and say data was unavailable.\n")
		return systemPrompt, b.String()
	}

	b.WriteString("Context sections (JSON):\n")
	for _, purpose := range orderedPurposes(cctx) {
		fmt.Fprintf(&b, "\n## %s\n%s\n", purpose, cctx[purpose])
	}
	return systemPrompt, b.String()
}

func orderedPurposes(cctx toolclient.Context) []string {
	seen := make(map[string]bool, len(cctx))
	var out []string
	for _, purpose := range sectionOrder {
		if cctx.Has(purpose) {
			out = append(out, purpose)
			seen[purpose] = true
		}
	}
	var rest []string
	for purpose := range cctx {
		if !seen[purpose] {
			rest = append(rest, purpose)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}

// cannedAdvice is the zero-dependency fallback used when the model is
// unreachable. It leans on whatever context did arrive.
func cannedAdvice(req Request, cctx toolclient.Context) string {
	var b strings.Builder
	b.WriteString("The advice service is temporarily unavailable, so here is general guidance: ")
	switch req.Focus {
	case FocusInvestment:
		b.WriteString("keep contributions regular, prefer broad low-cost index funds, and avoid reacting to single-day market moves.")
	case FocusExpense:
		b.WriteString("review your three largest spending categories this month and cancel any subscription you have not used in 30 days.")
	default:
		b.WriteString("aim to save at least 20% of income, keep an emergency fund of 3-6 months of expenses, and review recurring costs monthly.")
	}
	if !cctx.Has("profile") && req.TenantID != "" {
		b.WriteString(" Your account data could not be loaded, so this is not personalized.")
	}
	return b.String()
}

func sortStrings(in []string) []string {
	sort.Strings(in)
	return in
}
