package market

import "strings"

// PairID identifies an unordered instrument pair. The two legs are
// canonicalized into a fixed order so the same pair always produces the same
// map key no matter which way round the caller names the legs.
type PairID string

const pairSep = "|"

func NewPairID(a, b string) PairID {
	if strings.Compare(a, b) > 0 {
		a, b = b, a
	}
	return PairID(a + pairSep + b)
}

// Legs returns the two instruments in canonical order.
func (p PairID) Legs() (string, string) {
	i := strings.Index(string(p), pairSep)
	if i < 0 {
		return string(p), ""
	}
	return string(p)[:i], string(p)[i+1:]
}

func (p PairID) String() string { return string(p) }
