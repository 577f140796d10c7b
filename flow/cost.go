package flow

import (
	"sync"
	"time"
)

// ModelPricing is the per-million-token USD cost of one model.
type ModelPricing struct {
	InputPer1M  float64
	OutputPer1M float64
}

// defaultModelPricing covers the models the bundled provider adapters
// (anthropic, openai, google) ship with by default.
var defaultModelPricing = map[string]ModelPricing{
	"gpt-4o":                     {InputPer1M: 2.50, OutputPer1M: 10.00},
	"gpt-4o-mini":                {InputPer1M: 0.15, OutputPer1M: 0.60},
	"gpt-4-turbo":                {InputPer1M: 10.00, OutputPer1M: 30.00},
	"gpt-3.5-turbo":              {InputPer1M: 0.50, OutputPer1M: 1.50},
	"claude-sonnet-4-5-20250929": {InputPer1M: 3.00, OutputPer1M: 15.00},
	"claude-3-5-sonnet-20241022": {InputPer1M: 3.00, OutputPer1M: 15.00},
	"claude-3-opus-20240229":     {InputPer1M: 15.00, OutputPer1M: 75.00},
	"claude-3-haiku-20240307":    {InputPer1M: 0.25, OutputPer1M: 1.25},
	"gemini-2.5-flash":           {InputPer1M: 0.30, OutputPer1M: 2.50},
	"gemini-1.5-pro":             {InputPer1M: 1.25, OutputPer1M: 5.00},
	"gemini-1.5-flash":           {InputPer1M: 0.075, OutputPer1M: 0.30},
}

// LLMCall is one recorded model invocation.
type LLMCall struct {
	Model        string
	StepName     string
	InputTokens  int
	OutputTokens int
	CostUSD      float64
	Timestamp    time.Time
}

// CostTracker accumulates per-run LLM spend, attributed by model. It is an
// ambient observability concern wired into the llm handler; nothing in the
// engine's correctness depends on it.
type CostTracker struct {
	RunID    string
	Currency string
	Pricing  map[string]ModelPricing

	mu         sync.Mutex
	calls      []LLMCall
	totalCost  float64
	modelCosts map[string]float64
}

// NewCostTracker returns a CostTracker seeded with default pricing.
func NewCostTracker(runID, currency string) *CostTracker {
	return &CostTracker{
		RunID:      runID,
		Currency:   currency,
		Pricing:    defaultModelPricing,
		modelCosts: make(map[string]float64),
	}
}

// RecordLLMCall records one invocation's token usage and adds its cost to
// the running totals. A model absent from the pricing table is recorded at
// zero cost rather than rejected, so tracking never blocks execution.
func (ct *CostTracker) RecordLLMCall(model, stepName string, inputTokens, outputTokens int) {
	if ct == nil {
		return
	}
	ct.mu.Lock()
	defer ct.mu.Unlock()

	pricing := ct.Pricing[model]
	cost := (float64(inputTokens)/1_000_000.0)*pricing.InputPer1M +
		(float64(outputTokens)/1_000_000.0)*pricing.OutputPer1M

	ct.calls = append(ct.calls, LLMCall{
		Model:        model,
		StepName:     stepName,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		CostUSD:      cost,
		Timestamp:    time.Now(),
	})
	ct.totalCost += cost
	ct.modelCosts[model] += cost
}

// TotalCost returns the cumulative cost recorded so far.
func (ct *CostTracker) TotalCost() float64 {
	if ct == nil {
		return 0
	}
	ct.mu.Lock()
	defer ct.mu.Unlock()
	return ct.totalCost
}

// CostByModel returns a snapshot of cost attributed to each model seen.
func (ct *CostTracker) CostByModel() map[string]float64 {
	if ct == nil {
		return nil
	}
	ct.mu.Lock()
	defer ct.mu.Unlock()
	out := make(map[string]float64, len(ct.modelCosts))
	for k, v := range ct.modelCosts {
		out[k] = v
	}
	return out
}
