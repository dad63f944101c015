package ai

// PriceQuery describes a transport job for the estimator. Free-text fields are
// passed through as-is; the provider prompt bounds how they are used.
type PriceQuery struct {
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

// PriceEstimate captures the structured output from the AI model.
type PriceEstimate struct {
	// TraditionalPrice is what a classic mover/transporter would charge, in whole
	// currency units.
	TraditionalPrice int64 `json:"traditional_price"`

	// MarketplacePrice is the discounted price the platform should charge.
	MarketplacePrice int64 `json:"marketplace_price"`

	// Confidence in [0,1] as self-reported by the model.
	Confidence float64 `json:"confidence"`

	// Reasoning holds short human-readable justification lines.
	Reasoning []string `json:"reasoning"`
}
