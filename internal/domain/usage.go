package domain

// TokenUsage records token consumption for a single reviewer call.
type TokenUsage struct {
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
	TotalTokens  int    `json:"total_tokens"`
	Reviewer     string `json:"reviewer,omitempty"`
	BatchIndex   int    `json:"batch_index"`
}

// modelPricing maps model names to USD cost per million tokens.
var modelPricing = map[string]struct{ input, output float64 }{
	"gpt-4o-mini": {input: 0.15, output: 0.60},
	"gpt-4o":      {input: 2.50, output: 10.00},
	"gpt-4-turbo": {input: 10.00, output: 30.00},
}

// CostUSD estimates the cost of this call for the given model. Unknown
// models use gpt-4o-mini pricing.
func (u TokenUsage) CostUSD(model string) float64 {
	rates, ok := modelPricing[model]
	if !ok {
		rates = modelPricing["gpt-4o-mini"]
	}
	inputCost := float64(u.InputTokens) / 1_000_000 * rates.input
	outputCost := float64(u.OutputTokens) / 1_000_000 * rates.output
	return inputCost + outputCost
}

// ReviewMeta carries metadata about the review request and its execution.
type ReviewMeta struct {
	TriggeredBy   string       `json:"triggered_by,omitempty"`
	TriggeredByID int64        `json:"triggered_by_id,omitempty"`
	TokenUsage    []TokenUsage `json:"token_usage"`
}

// TotalTokens sums token counts across all recorded calls.
func (m ReviewMeta) TotalTokens() int {
	total := 0
	for _, usage := range m.TokenUsage {
		total += usage.TotalTokens
	}
	return total
}

// TotalCostUSD estimates the combined cost of all recorded calls.
func (m ReviewMeta) TotalCostUSD(model string) float64 {
	total := 0.0
	for _, usage := range m.TokenUsage {
		total += usage.CostUSD(model)
	}
	return total
}
