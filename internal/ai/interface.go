package ai

import "context"

// Estimator defines the contract for the external, non-deterministic price estimator.
// It is treated as an untrusted black box: callers must be prepared for errors,
// timeouts, and implausible numbers, and must have their own fallback.
type Estimator interface {
	// EstimateTransportPrice prices a transport job described by query and returns
	// a structured estimate, or an error when the provider is unavailable or its
	// response cannot be parsed.
	EstimateTransportPrice(ctx context.Context, query PriceQuery) (*PriceEstimate, error)
}
