// Package usage tracks token spend and dollar cost for model calls.
//
// A Ledger accumulates the calls of a single conversation request and
// produces the cost breakdown returned to the client. The Store
// (store.go) keeps the append-only history across requests.
package usage

import (
	"math"

	"github.com/speaks999/memorytest/internal/config"
)

// CallCost records one model call's tokens and cost.
type CallCost struct {
	Call             int     `json:"call"`
	Model            string  `json:"model"`
	PromptTokens     int     `json:"promptTokens"`
	CompletionTokens int     `json:"completionTokens"`
	Cost             float64 `json:"cost"`
}

// CostInfo aggregates a request's calls.
type CostInfo struct {
	Calls                 []CallCost `json:"calls"`
	TotalPromptTokens     int        `json:"totalPromptTokens"`
	TotalCompletionTokens int        `json:"totalCompletionTokens"`
	TotalCost             float64    `json:"totalCost"`
}

// Ledger accumulates per-call costs for one request. Not safe for
// concurrent use; every request builds its own.
type Ledger struct {
	pricing config.PricingConfig
	calls   []CallCost
}

// NewLedger creates a Ledger billing against pricing.
func NewLedger(pricing config.PricingConfig) *Ledger {
	return &Ledger{pricing: pricing}
}

// Add records a call and returns its cost entry. Calls are numbered
// from 1 in the order they are added.
func (l *Ledger) Add(model string, promptTokens, completionTokens int) CallCost {
	entry := CallCost{
		Call:             len(l.calls) + 1,
		Model:            model,
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		Cost:             ComputeCost(l.pricing, model, promptTokens, completionTokens),
	}
	l.calls = append(l.calls, entry)
	return entry
}

// Info returns the breakdown of everything added so far.
func (l *Ledger) Info() CostInfo {
	info := CostInfo{Calls: make([]CallCost, len(l.calls))}
	copy(info.Calls, l.calls)
	for _, c := range l.calls {
		info.TotalPromptTokens += c.PromptTokens
		info.TotalCompletionTokens += c.CompletionTokens
		info.TotalCost += c.Cost
	}
	info.TotalCost = Round6(info.TotalCost)
	return info
}

// ComputeCost calculates the USD cost of a call at the pricing table's
// per-million-token rates, rounded to six decimal places. Models
// without an entry are billed at the default model's rates.
func ComputeCost(pricing config.PricingConfig, model string, promptTokens, completionTokens int) float64 {
	entry := pricing.Resolve(model)
	cost := float64(promptTokens) / 1_000_000.0 * entry.InputPerMillion
	cost += float64(completionTokens) / 1_000_000.0 * entry.OutputPerMillion
	return Round6(cost)
}

// Round6 rounds to six decimal places, the billing granularity.
func Round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
