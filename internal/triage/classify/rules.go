package classify

import "github.com/vietddude/pushwatch/internal/core/domain"

// Action is a follow-up job recommendation attached to a verdict.
type Action int

const (
	ActionRealRetrigger Action = iota
	ActionIntermittentRetrigger
	ActionBackfill
)

func (a Action) String() string {
	switch a {
	case ActionRealRetrigger:
		return "real-retrigger"
	case ActionIntermittentRetrigger:
		return "intermittent-retrigger"
	default:
		return "backfill"
	}
}

// Signal patterns. Each signal of a rule is a bitmask over that signal's
// values, so a single row can match "low or no confidence" or "any
// freshness" without duplicating rows.
type (
	consistencyMask uint8
	likelihoodMask  uint8
	confidenceMask  uint8
	freshnessMask   uint8
)

const (
	consUnknown consistencyMask = 1 << iota
	consConsistent
	consInconsistent
)

const (
	likeNone likelihoodMask = 1 << iota
	likePossible
	likeLikely
)

const (
	confNone confidenceMask = 1 << iota
	confLow
	confHigh
)

const (
	freshKnown freshnessMask = 1 << iota
	freshNew
)

const (
	anyConsistency = consUnknown | consConsistent | consInconsistent
	anyLikelihood  = likeNone | likePossible | likeLikely
	anyConfidence  = confNone | confLow | confHigh
	anyFreshness   = freshKnown | freshNew
	notHigh        = confNone | confLow
)

// rule is one row of the decision table. Rows are evaluated in order and
// the first match wins.
type rule struct {
	consistency consistencyMask
	likelihood  likelihoodMask
	confidence  confidenceMask
	freshness   freshnessMask

	verdict domain.Verdict
	actions []Action

	// defaultOnly rows encode the "previously known, consistently
	// reproducing, non-causally-linked" fallback and only apply when the
	// engine is allowed to default such groups to intermittent.
	defaultOnly bool
}

// decisionTable maps every signal-tier combination to a verdict and the
// follow-up jobs that would resolve remaining uncertainty. Kept as data so
// each row is independently testable.
var decisionTable = []rule{
	// An inconsistent failure leans good: some config already passed it.
	// Only hard contrary evidence (confident prediction of a never-seen
	// failure) holds the verdict open pending confirmation.
	{consInconsistent, anyLikelihood, confHigh, freshNew, domain.VerdictUnknown, nil, false},
	{consInconsistent, anyLikelihood, anyConfidence, anyFreshness, domain.VerdictIntermittent, nil, false},

	// A consistent failure that the lineage pins on this push is real when
	// either the model is confident or the pattern is new. A merely
	// possible regression earns a backfill under the same evidence bar.
	{consConsistent, likeLikely, confHigh, anyFreshness, domain.VerdictReal, nil, false},
	{consConsistent, likeLikely, anyConfidence, freshNew, domain.VerdictReal, nil, false},
	{consConsistent, likePossible, confHigh, anyFreshness, domain.VerdictUnknown, []Action{ActionBackfill}, false},
	{consConsistent, likePossible, anyConfidence, freshNew, domain.VerdictUnknown, []Action{ActionBackfill}, false},
	{consConsistent, likeNone, confNone, freshKnown, domain.VerdictIntermittent, nil, true},
	{consConsistent, anyLikelihood, anyConfidence, anyFreshness, domain.VerdictUnknown, nil, false},

	// Unknown consistency never classifies; the actions say which extra
	// runs would settle it. A retrigger on this push separates real from
	// intermittent; a backfill separates this push from its ancestors.
	{consUnknown, likeLikely, confHigh, freshNew, domain.VerdictUnknown, []Action{ActionRealRetrigger}, false},
	{consUnknown, likeLikely, confHigh, freshKnown, domain.VerdictUnknown, []Action{ActionRealRetrigger, ActionIntermittentRetrigger}, false},
	{consUnknown, likeLikely, notHigh, freshNew, domain.VerdictUnknown, []Action{ActionRealRetrigger, ActionIntermittentRetrigger}, false},
	{consUnknown, likeLikely, notHigh, freshKnown, domain.VerdictUnknown, []Action{ActionIntermittentRetrigger}, false},
	{consUnknown, likePossible, confHigh, freshNew, domain.VerdictUnknown, []Action{ActionBackfill}, false},
	{consUnknown, likePossible, confHigh, freshKnown, domain.VerdictUnknown, []Action{ActionBackfill, ActionIntermittentRetrigger}, false},
	{consUnknown, likePossible, notHigh, freshNew, domain.VerdictUnknown, []Action{ActionBackfill, ActionIntermittentRetrigger}, false},
	{consUnknown, likePossible, notHigh, freshKnown, domain.VerdictUnknown, []Action{ActionIntermittentRetrigger}, false},
	{consUnknown, likeNone, confHigh, freshNew, domain.VerdictUnknown, nil, false},
	{consUnknown, likeNone, anyConfidence, anyFreshness, domain.VerdictUnknown, []Action{ActionIntermittentRetrigger}, false},
}

func (r rule) matches(s Signals) bool {
	return r.consistency&consistencyBit(s.Consistency) != 0 &&
		r.likelihood&likelihoodBit(s.Likelihood) != 0 &&
		r.confidence&confidenceBit(s.Confidence) != 0 &&
		r.freshness&freshnessBit(s.Freshness) != 0
}

// decide resolves a signal combination against the table. allowDefaults
// enables the intermittent fallback for known, consistent, signal-less
// failures; with it off such groups stay unknown.
func decide(s Signals, allowDefaults bool) (domain.Verdict, []Action) {
	for _, r := range decisionTable {
		if r.defaultOnly && !allowDefaults {
			continue
		}
		if r.matches(s) {
			return r.verdict, r.actions
		}
	}
	// The table ends in catch-all rows per consistency value, so this is
	// unreachable for well-formed signals.
	return domain.VerdictUnknown, nil
}

func consistencyBit(c domain.Consistency) consistencyMask {
	switch c {
	case domain.ConsistencyConsistent:
		return consConsistent
	case domain.ConsistencyInconsistent:
		return consInconsistent
	default:
		return consUnknown
	}
}

func likelihoodBit(l Likelihood) likelihoodMask {
	switch l {
	case LikelihoodLikely:
		return likeLikely
	case LikelihoodPossible:
		return likePossible
	default:
		return likeNone
	}
}

func confidenceBit(c ConfidenceTier) confidenceMask {
	switch c {
	case ConfidenceHigh:
		return confHigh
	case ConfidenceLow:
		return confLow
	default:
		return confNone
	}
}

func freshnessBit(f Freshness) freshnessMask {
	if f == FreshnessNew {
		return freshNew
	}
	return freshKnown
}
