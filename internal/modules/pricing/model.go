// README: Pricing engine types and tariff constants.
package pricing

const (
	// baseFare covers dispatch overhead and the first kilometers, in whole
	// currency units.
	baseFare = 120

	// perKmRate is the per-kilometer charge before category adjustment.
	perKmRate = 1.2

	// handlingFee is charged per end that needs manual carrying (floor without
	// elevator).
	handlingFee = 60

	// marketplaceDiscount is applied to the traditional price level: routing a
	// job to a transporter with spare capacity is cheaper than a dedicated run.
	marketplaceDiscount = 0.85

	// transporterSharePct / platformSharePct is the fixed revenue split.
	transporterSharePct = 60
	platformSharePct    = 40

	// MinPlatformFee is the hard lower bound on the platform margin. The client
	// total is raised so the 40% share never falls below it.
	MinPlatformFee = 200

	// maxClientTotal blocks runaway estimates.
	maxClientTotal = 100_000

	// deviationThreshold and confidenceFloor gate the external estimate: an
	// estimate that strays more than 60% from the heuristic while reporting
	// confidence under 0.65 is discarded.
	deviationThreshold = 0.60
	confidenceFloor    = 0.65

	// fallbackConfidence is reported when the external estimator failed outright;
	// rejectedConfidence when it responded but the deviation gate discarded it.
	fallbackConfidence = 0.3
	rejectedConfidence = 0.55
)

// categoryMultipliers adjusts the distance charge per cargo category.
// Unknown categories price as standard.
var categoryMultipliers = map[string]float64{
	"standard":       1.0,
	"meubles":        1.2,
	"electromenager": 1.3,
	"fragile":        1.5,
	"vehicule":       1.8,
}

// QuoteInput describes the route, cargo, and handling needs of a request.
type QuoteInput struct {
	OriginCity      string
	DestinationCity string
	DistanceKm      float64
	CargoCategory   string
	Description     string
	EstimatedWeight float64
	FloorOrigin     int
	FloorDest       int
	HasElevator     bool
}

// Source records which path produced a quote.
type Source string

const (
	SourceExternal  Source = "external"
	SourceHeuristic Source = "heuristic"
)

// Quote is the three-way price split returned by the engine.
// Invariants: ClientTotal == TransporterFee + PlatformFee, PlatformFee >= MinPlatformFee.
type Quote struct {
	ClientTotal    int64
	TransporterFee int64
	PlatformFee    int64
	Confidence     float64
	Reasoning      []string
	Source         Source
}
