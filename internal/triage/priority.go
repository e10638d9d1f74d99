package triage

// Well-known triage categories.
const (
	CategoryAssist          = "assist"
	CategoryBadService      = "bad service/experience"
	CategoryVehicleTracking = "vehicle tracking"
	CategoryRetentions      = "retentions"
	CategoryAmendments      = "amendments"
	CategoryClaims          = "claims"
	CategoryRefundRequest   = "refund request"
	CategoryOnlineApp       = "online/app"
	CategoryQuoteRequest    = "request for quote"
	CategoryDocumentRequest = "document request"
	CategoryOther           = "other"
)

// Priority is the total business ordering over categories, highest first.
// It breaks ties inside the AI prompt and serves as the deterministic
// fallback when the prioritize stage degrades.
type Priority struct {
	order []string
	rank  map[string]int
}

// NewPriority builds the ordering from a configured list.
func NewPriority(order []string) *Priority {
	rank := make(map[string]int, len(order))
	for i, cat := range order {
		if _, ok := rank[cat]; !ok {
			rank[cat] = i
		}
	}
	return &Priority{order: order, rank: rank}
}

// Rank returns the position of a category, lower is higher priority.
// Unlisted categories rank below every listed one.
func (p *Priority) Rank(category string) int {
	if r, ok := p.rank[category]; ok {
		return r
	}
	return len(p.order)
}

// Highest returns the highest-priority category among the candidates,
// keeping candidate order as the tie-break for unlisted categories.
func (p *Priority) Highest(candidates []string) string {
	if len(candidates) == 0 {
		return ""
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if p.Rank(c) < p.Rank(best) {
			best = c
		}
	}
	return best
}

// Order returns the configured ordering, highest first.
func (p *Priority) Order() []string {
	return p.order
}
