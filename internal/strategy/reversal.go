package strategy

import (
	"github.com/tathienbao/signal-bot/internal/indicator"
	"github.com/tathienbao/signal-bot/internal/types"
)

// ReversalConfig holds the thresholds of the exhaustion-reversal rule.
type ReversalConfig struct {
	CallRSIBelow   float64 // RSI must be strictly below
	CallStochBelow float64 // %K must be strictly below
	CallBandFactor float64 // close <= lower band * factor
	PutRSIAbove    float64 // RSI must be strictly above
	PutStochAbove  float64 // %K must be strictly above
	PutBandFactor  float64 // close >= upper band * factor
	MinVolumeRatio float64 // volume ratio must be strictly above
}

// DefaultReversalConfig returns the standard thresholds.
func DefaultReversalConfig() ReversalConfig {
	return ReversalConfig{
		CallRSIBelow:   8,
		CallStochBelow: 15,
		CallBandFactor: 1.001,
		PutRSIAbove:    92,
		PutStochAbove:  85,
		PutBandFactor:  0.999,
		MinVolumeRatio: 1.2,
	}
}

// Reversal fires CALL on oversold exhaustion at the lower band and PUT on
// overbought exhaustion at the upper band, both on a volume spike.
//
// CALL is checked first. The RSI thresholds do not overlap, so at most one
// branch can match.
type Reversal struct {
	cfg ReversalConfig
}

// NewReversal creates a new reversal evaluator.
func NewReversal(cfg ReversalConfig) *Reversal {
	return &Reversal{cfg: cfg}
}

// Name returns the evaluator identifier.
func (r *Reversal) Name() string {
	return "reversal"
}

// Evaluate classifies the row.
func (r *Reversal) Evaluate(row indicator.Row) Decision {
	d := Decision{Direction: types.DirectionNone, Row: row}
	if !row.Ready() {
		return d
	}

	spike := row.VolumeRatio() > r.cfg.MinVolumeRatio

	switch {
	case row.RSI < r.cfg.CallRSIBelow &&
		row.StochK < r.cfg.CallStochBelow &&
		row.Close <= row.BBLower*r.cfg.CallBandFactor &&
		spike:
		d.Direction = types.DirectionCall
	case row.RSI > r.cfg.PutRSIAbove &&
		row.StochK > r.cfg.PutStochAbove &&
		row.Close >= row.BBUpper*r.cfg.PutBandFactor &&
		spike:
		d.Direction = types.DirectionPut
	}
	return d
}
