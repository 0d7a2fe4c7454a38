package model

// Pricing defines USD cost per 1,000 tokens for prompt/completion. Used only
// to report estimated spend, never for billing enforcement.
type Pricing struct {
	PromptPerK     float64
	CompletionPerK float64
}

// defaultPricing provides hardcoded USD pricing per 1K text tokens.
var defaultPricing = map[string]Pricing{
	"gemini-2.5-flash":      {PromptPerK: 0.0003, CompletionPerK: 0.0025},
	"gemini-2.5-flash-lite": {PromptPerK: 0.0001, CompletionPerK: 0.0004},
	"gemini-2.5-pro":        {PromptPerK: 0.00125, CompletionPerK: 0.01},
}

// ResolvePricing returns pricing for a model, zero-valued when unknown.
func ResolvePricing(model string) Pricing {
	p, ok := defaultPricing[model]
	if !ok {
		return Pricing{}
	}
	return p
}

// ComputeCost converts token usage to USD using per-1K pricing.
func ComputeCost(usage TokenUsage, p Pricing) (promptCost, completionCost, total float64) {
	promptCost = p.PromptPerK * float64(usage.PromptTokens) / 1000.0
	completionCost = p.CompletionPerK * float64(usage.CompletionTokens) / 1000.0
	total = promptCost + completionCost
	return
}
