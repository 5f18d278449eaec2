// Package cost holds the pricing table, the realized-spend ledger, and the
// pre-flight estimator.
package cost

import (
	"fmt"
	"math"

	"github.com/sells-group/outreach-cli/internal/model"
)

// MicroUSD is a fixed-point money amount in millionths of a dollar. Ledger
// sums stay exact under concurrent appends.
type MicroUSD int64

// USD converts to a floating dollar amount for display.
func (m MicroUSD) USD() float64 { return float64(m) / 1e6 }

func (m MicroUSD) String() string { return fmt.Sprintf("$%.4f", m.USD()) }

// FromUSD converts a dollar amount to MicroUSD, rounding half away from zero.
func FromUSD(usd float64) MicroUSD {
	return MicroUSD(math.Round(usd * 1e6))
}

// ProviderRate holds per-provider token and request pricing.
type ProviderRate struct {
	// InputPerMTok and OutputPerMTok are USD per million tokens.
	InputPerMTok  float64 `yaml:"input_per_mtok" mapstructure:"input_per_mtok"`
	OutputPerMTok float64 `yaml:"output_per_mtok" mapstructure:"output_per_mtok"`
	// PerRequest is a flat USD fee charged per API request.
	PerRequest float64 `yaml:"per_request" mapstructure:"per_request"`
}

// Rates is the static pricing table, keyed by provider.
type Rates map[model.Provider]ProviderRate

// DefaultRates returns the default pricing table.
func DefaultRates() Rates {
	return Rates{
		model.ProviderPerplexity: {InputPerMTok: 1.00, OutputPerMTok: 1.00, PerRequest: 0.005},
		model.ProviderOpenAI:     {InputPerMTok: 0.15, OutputPerMTok: 0.60},
		model.ProviderAnthropic:  {InputPerMTok: 0.80, OutputPerMTok: 4.00},
	}
}

// Calculator computes costs for API usage against a rate table.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// Cost prices one request's token usage for a provider. Unknown providers
// cost zero.
func (c *Calculator) Cost(provider model.Provider, usage model.TokenUsage) MicroUSD {
	rate, ok := c.rates[provider]
	if !ok {
		return 0
	}
	usd := (float64(usage.InputTokens)/1e6)*rate.InputPerMTok +
		(float64(usage.OutputTokens)/1e6)*rate.OutputPerMTok +
		rate.PerRequest
	return FromUSD(usd)
}

// CostN prices usage realized across n requests, charging the flat request
// fee once per request. Retried items bill the fee for every attempt made.
func (c *Calculator) CostN(provider model.Provider, usage model.TokenUsage, n int) MicroUSD {
	rate, ok := c.rates[provider]
	if !ok {
		return 0
	}
	if n < 1 {
		n = 1
	}
	usd := (float64(usage.InputTokens)/1e6)*rate.InputPerMTok +
		(float64(usage.OutputTokens)/1e6)*rate.OutputPerMTok +
		float64(n)*rate.PerRequest
	return FromUSD(usd)
}
