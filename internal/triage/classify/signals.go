package classify

import "github.com/vietddude/pushwatch/internal/core/domain"

// ConfidenceTier bands the ML regression-confidence score. None means the
// prediction source had no opinion about the group at all.
type ConfidenceTier int

const (
	ConfidenceNone ConfidenceTier = iota
	ConfidenceLow
	ConfidenceHigh
)

func (c ConfidenceTier) String() string {
	switch c {
	case ConfidenceHigh:
		return "high"
	case ConfidenceLow:
		return "low"
	default:
		return "none"
	}
}

// Likelihood is the lineage-derived regression signal for a group.
type Likelihood int

const (
	LikelihoodNone Likelihood = iota
	LikelihoodPossible
	LikelihoodLikely
)

func (l Likelihood) String() string {
	switch l {
	case LikelihoodLikely:
		return "likely"
	case LikelihoodPossible:
		return "possible"
	default:
		return "none"
	}
}

// Freshness tells whether the failure pattern has been triaged before.
type Freshness int

const (
	FreshnessKnown Freshness = iota
	FreshnessNew
)

func (f Freshness) String() string {
	if f == FreshnessNew {
		return "new"
	}
	return "known"
}

// Signals is the tier combination the decision table evaluates for one
// failing group. Absence of evidence is a tier, never an error.
type Signals struct {
	Confidence  ConfidenceTier
	Likelihood  Likelihood
	Consistency domain.Consistency
	Freshness   Freshness
}

func confidenceTier(score float64, scored bool, high float64) ConfidenceTier {
	switch {
	case !scored:
		return ConfidenceNone
	case score >= high:
		return ConfidenceHigh
	default:
		return ConfidenceLow
	}
}

func likelihoodTier(group string, likely, possible map[string]struct{}) Likelihood {
	if _, ok := likely[group]; ok {
		return LikelihoodLikely
	}
	if _, ok := possible[group]; ok {
		return LikelihoodPossible
	}
	return LikelihoodNone
}

func freshnessTier(g *domain.GroupSummary) Freshness {
	if g.IsNewFailure() {
		return FreshnessNew
	}
	return FreshnessKnown
}
