package dto

type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

func (s Side) Valid() bool {
	return s == SideLong || s == SideShort
}

// Sign is +1 for long and -1 for short.
func (s Side) Sign() float64 {
	if s == SideShort {
		return -1
	}
	return 1
}

func (s Side) String() string {
	switch s {
	case SideLong:
		return "🟢 Long"
	case SideShort:
		return "🔴 Short"
	default:
		return "Unknown"
	}
}

type SignalDirection string

const (
	SignalBullish SignalDirection = "bullish"
	SignalBearish SignalDirection = "bearish"
	SignalNeutral SignalDirection = "neutral"
)

// Directional reports a bullish or bearish reading.
func (s SignalDirection) Directional() bool {
	return s == SignalBullish || s == SignalBearish
}

// Side maps a directional signal to the position side it would open.
func (s SignalDirection) Side() Side {
	if s == SignalBearish {
		return SideShort
	}
	return SideLong
}

type MACDSignal string

const (
	MACDBuy     MACDSignal = "buy"
	MACDSell    MACDSignal = "sell"
	MACDNeutral MACDSignal = "neutral"
)

type BBSignal string

const (
	BBUpper   BBSignal = "upper"
	BBLower   BBSignal = "lower"
	BBNeutral BBSignal = "neutral"
)

type Category string

const (
	CategoryMajor   Category = "major"
	CategoryMeme    Category = "meme"
	CategoryMover   Category = "mover"
	CategoryRegular Category = "regular"
)

type Phase string

const (
	PhasePumping  Phase = "pumping"
	PhasePeak     Phase = "peak"
	PhaseReversal Phase = "reversal"
	PhaseNeutral  Phase = "neutral"
	PhaseUnknown  Phase = "unknown"
	PhaseError    Phase = "error"
)

// Blocking reports the phases that stop a new entry and can trigger a reversal exit.
func (p Phase) Blocking() bool {
	return p == PhasePeak || p == PhaseReversal
}

// HasOpinion is false for unknown/error classifications.
func (p Phase) HasOpinion() bool {
	return p != PhaseUnknown && p != PhaseError && p != ""
}

type ExitPolicyName string

const (
	PolicyLadder ExitPolicyName = "ladder"
	PolicySingle ExitPolicyName = "single"
)

type BrainAction string

const (
	ActionNone      BrainAction = "none"
	ActionPartial   BrainAction = "partial"
	ActionPartial40 BrainAction = "partial_40"
	ActionExitAll   BrainAction = "exit_all"
)

type ExitReason string

const (
	ExitTrailStop ExitReason = "trail_stop"
	ExitReversal  ExitReason = "reversal"
	ExitDrawdown  ExitReason = "roi_drawdown"
	ExitManual    ExitReason = "manual"
	ExitExternal  ExitReason = "external"
)
