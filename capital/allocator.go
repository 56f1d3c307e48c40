// Package capital computes per-candidate allocations for ranked entry
// candidates. All benchmarks are fractions of initial capital, fixed once at
// construction and never recomputed from current equity.
package capital

import (
	"math"

	"github.com/sirupsen/logrus"

	"github.com/rustyeddy/pairtrader/config"
	"github.com/rustyeddy/pairtrader/market"
)

var log = logrus.WithField("module", "capital")

// Candidate is one ranked entry opportunity. Quality is the upstream model's
// score, already used for ranking; here it also scales the target fraction.
type Candidate struct {
	Pair    market.PairID
	Quality float64
}

// Allocation is the capital granted to one candidate.
type Allocation struct {
	Pair   market.PairID
	Amount float64
}

// Allocator holds the fixed reserve and the allocation benchmarks.
type Allocator struct {
	initial       float64
	reserve       float64
	maxFraction   float64
	minInvestment float64
}

func NewAllocator(initial float64, cfg config.CapitalConfig) *Allocator {
	return &Allocator{
		initial:       initial,
		reserve:       initial * cfg.ReserveRatio,
		maxFraction:   cfg.MaxPairFraction,
		minInvestment: initial * cfg.MinInvestmentRatio,
	}
}

// Reserve is the fixed amount always held back from allocation.
func (a *Allocator) Reserve() float64 { return a.reserve }

// MinInvestment is the floor below which an allocation is not worth opening.
func (a *Allocator) MinInvestment() float64 { return a.minInvestment }

// targetFraction derives a candidate's benchmark fraction of initial capital
// from its quality score, clamped to [0, maxFraction].
func (a *Allocator) targetFraction(quality float64) float64 {
	q := math.Max(0, math.Min(1, quality))
	return a.maxFraction * q
}

// Allocate walks the ranked candidates greedily. Each candidate receives the
// lesser of the remaining usable capital and its initial-capital benchmark;
// candidates below the minimum-investment floor are skipped without
// consuming the pool. The pool is a local copy decremented per acceptance,
// so the whole batch is decided in one synchronous pass without re-reading
// account state.
func (a *Allocator) Allocate(candidates []Candidate, availableMargin float64) []Allocation {
	usable := availableMargin - a.reserve
	if usable <= 0 {
		return nil
	}

	var out []Allocation
	for _, c := range candidates {
		if usable <= 0 {
			break
		}
		target := a.initial * a.targetFraction(c.Quality)
		amount := math.Min(usable, target)
		if amount < a.minInvestment {
			log.WithFields(logrus.Fields{
				"pair":   c.Pair,
				"amount": amount,
			}).Debug("candidate below minimum investment, skipped")
			continue
		}
		out = append(out, Allocation{Pair: c.Pair, Amount: amount})
		usable -= amount
	}
	return out
}
