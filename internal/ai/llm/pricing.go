package llm

import "github.com/kiranshivaraju/feedlens/pkg/models"

// Price is a provider's list price in USD per million tokens.
type Price struct {
	InputPerMillion  float64
	OutputPerMillion float64
}

// Prices is the fixed per-provider price table used for cost estimates.
// Local inference is free and has no entry.
var Prices = map[models.ProviderKind]Price{
	models.ProviderAnthropic: {InputPerMillion: 3.00, OutputPerMillion: 15.00},
	models.ProviderOpenAI:    {InputPerMillion: 2.50, OutputPerMillion: 10.00},
}

// NewTokenUsage builds a TokenUsage, attaching a cost estimate when the
// provider has a price.
func NewTokenUsage(kind models.ProviderKind, input, output int) *models.TokenUsage {
	usage := &models.TokenUsage{
		Input:  input,
		Output: output,
		Total:  input + output,
	}
	if p, ok := Prices[kind]; ok {
		cost := float64(input)/1e6*p.InputPerMillion + float64(output)/1e6*p.OutputPerMillion
		usage.EstimatedCost = &cost
	}
	return usage
}
