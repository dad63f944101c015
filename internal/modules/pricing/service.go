// README: Pricing engine: cache, external estimator, heuristic fallback, split rule.
package pricing

import (
	"context"
	"fmt"
	"math"
	"time"

	"camionback/internal/ai"
	"camionback/internal/config"
)

// Service produces price quotes. Quote never fails outward: whatever happens
// to the external estimator, the caller gets a usable split.
type Service struct {
	estimator ai.Estimator // nil means heuristic-only
	cache     *Cache
	timeout   time.Duration
}

func NewService(estimator ai.Estimator, cache *Cache, cfg config.PricingConfig) *Service {
	timeout := cfg.ExternalTimeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &Service{estimator: estimator, cache: cache, timeout: timeout}
}

// Quote returns the client/transporter/platform split for the described job.
// Results from the external path are cached; heuristic fallbacks are not, so a
// transient outage is retried on the next call instead of being pinned for the
// full cache TTL.
func (s *Service) Quote(ctx context.Context, in QuoteInput) Quote {
	key := CacheKey(in)
	if s.cache != nil {
		if q, ok := s.cache.Get(key); ok {
			return q
		}
	}

	heuristic := heuristicTotal(in)

	q := s.externalQuote(ctx, in, heuristic)
	if q == nil {
		q = heuristicQuote(heuristic, fallbackConfidence,
			"automatic estimate unavailable, tariff grid applied")
	}

	if s.cache != nil && q.Source == SourceExternal {
		s.cache.Put(key, *q)
	}
	return *q
}

// externalQuote runs the AI estimator under a hard timeout and applies the
// deviation gate. Returns nil when the heuristic must take over entirely.
func (s *Service) externalQuote(ctx context.Context, in QuoteInput, heuristic int64) *Quote {
	if s.estimator == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	est, err := s.estimator.EstimateTransportPrice(ctx, ai.PriceQuery{
		OriginCity:      in.OriginCity,
		DestinationCity: in.DestinationCity,
		DistanceKm:      in.DistanceKm,
		CargoCategory:   in.CargoCategory,
		Description:     in.Description,
		EstimatedWeight: in.EstimatedWeight,
		FloorOrigin:     in.FloorOrigin,
		FloorDest:       in.FloorDest,
		HasElevator:     in.HasElevator,
	})
	if err != nil {
		return nil
	}

	deviation := math.Abs(float64(est.MarketplacePrice-heuristic)) / float64(heuristic)
	if deviation > deviationThreshold && est.Confidence < confidenceFloor {
		// An estimate this far off the grid with this little conviction is noise.
		return heuristicQuote(heuristic, rejectedConfidence,
			fmt.Sprintf("automatic estimate rejected (%.0f%% off tariff grid), grid applied", deviation*100))
	}

	reasoning := append([]string{}, est.Reasoning...)
	reasoning = append(reasoning,
		fmt.Sprintf("traditional market level: %d", est.TraditionalPrice))
	return split(est.MarketplacePrice, est.Confidence, reasoning, SourceExternal)
}

// heuristicTotal is the deterministic tariff-grid price after the marketplace
// discount: base + km * rate * category multiplier + handling per flagged end.
func heuristicTotal(in QuoteInput) int64 {
	mult, ok := categoryMultipliers[normalize(in.CargoCategory)]
	if !ok {
		mult = 1.0
	}

	raw := float64(baseFare) + in.DistanceKm*perKmRate*mult
	if !in.HasElevator {
		if in.FloorOrigin > 0 {
			raw += handlingFee
		}
		if in.FloorDest > 0 {
			raw += handlingFee
		}
	}

	return int64(math.Round(raw * marketplaceDiscount))
}

func heuristicQuote(total int64, confidence float64, note string) *Quote {
	reasoning := []string{
		fmt.Sprintf("tariff grid: base %d + distance + handling, discount x%.2f", baseFare, marketplaceDiscount),
		note,
	}
	return split(total, confidence, reasoning, SourceHeuristic)
}

// split applies the ceiling clamp, the platform-fee floor, and the fixed
// 60/40 transporter/platform split. platformFee >= MinPlatformFee always holds
// on return.
func split(total int64, confidence float64, reasoning []string, source Source) *Quote {
	if total > maxClientTotal {
		total = maxClientTotal
	}
	// Raise the total so 40% of it is never under the minimum platform fee.
	if floor := int64(MinPlatformFee * 100 / platformSharePct); total < floor {
		total = floor
	}

	transporter := total * transporterSharePct / 100
	return &Quote{
		ClientTotal:    total,
		TransporterFee: transporter,
		PlatformFee:    total - transporter,
		Confidence:     confidence,
		Reasoning:      reasoning,
		Source:         source,
	}
}
