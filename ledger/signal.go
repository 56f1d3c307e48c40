package ledger

import "fmt"

// SignalKind is the outcome of one signal evaluation. Signal generation has
// no side effects; abstentions (no_data, cooldown, wait, hold) are explicit
// values rather than errors.
type SignalKind int

const (
	SignalNoData SignalKind = iota
	SignalWait
	SignalCooldown
	SignalOpenLongSpread
	SignalOpenShortSpread
	SignalHold
	SignalClose
	SignalStopLoss
)

func (s SignalKind) String() string {
	switch s {
	case SignalNoData:
		return "no_data"
	case SignalWait:
		return "wait"
	case SignalCooldown:
		return "cooldown"
	case SignalOpenLongSpread:
		return "open_long_spread"
	case SignalOpenShortSpread:
		return "open_short_spread"
	case SignalHold:
		return "hold"
	case SignalClose:
		return "close"
	case SignalStopLoss:
		return "stop_loss"
	default:
		return fmt.Sprintf("signal(%d)", int(s))
	}
}

// IsOpen reports whether the signal calls for opening a position.
func (s SignalKind) IsOpen() bool {
	return s == SignalOpenLongSpread || s == SignalOpenShortSpread
}

// IsClose reports whether the signal calls for closing a position.
func (s SignalKind) IsClose() bool {
	return s == SignalClose || s == SignalStopLoss
}

// PositionMode is the closed set of shapes a pair position can be in,
// computed once from the tracked quantities instead of re-derived ad hoc.
type PositionMode int

const (
	ModeNone PositionMode = iota
	ModeLongSpread
	ModeShortSpread
	ModePartialA
	ModePartialB
	ModeSameDirection
)

func (m PositionMode) String() string {
	switch m {
	case ModeNone:
		return "none"
	case ModeLongSpread:
		return "long_spread"
	case ModeShortSpread:
		return "short_spread"
	case ModePartialA:
		return "partial_leg_a"
	case ModePartialB:
		return "partial_leg_b"
	case ModeSameDirection:
		return "same_direction"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}
