package builtins

import (
	"schicchi/internal/domain"
	"schicchi/internal/indicator"
	"schicchi/internal/strategy"
)

// NameSqueezeBreakout is the registry name for the squeeze breakout strategy.
const NameSqueezeBreakout = "squeeze-breakout"

var _ strategy.Strategy = (*SqueezeBreakout)(nil)

// SqueezeBreakout waits for the Bollinger bands to contract inside the
// Keltner channel (a volatility squeeze) and enters long when price breaks
// above the upper Bollinger band on elevated volume. It exits when price
// closes back below the Bollinger middle band.
//
// Parameters: bb_period (20), bb_std (2.0), kc_period (20), kc_mult (1.5),
// atr_period (14), atr_multiplier_stop (2.0), atr_multiplier_target (3.0),
// volume_filter (1.5).
type SqueezeBreakout struct {
	bbPeriod      int
	bbStd         float64
	kcPeriod      int
	kcMult        float64
	atrPeriod     int
	atrStopMult   float64
	atrTargetMult float64
	volumeFilter  float64
}

// NewSqueezeBreakout builds a SqueezeBreakout from flat parameters,
// applying the documented defaults for absent keys.
func NewSqueezeBreakout(params strategy.Params) (strategy.Strategy, error) {
	bbPeriod, err := params.GetInt("bb_period", 20)
	if err != nil {
		return nil, err
	}
	kcPeriod, err := params.GetInt("kc_period", 20)
	if err != nil {
		return nil, err
	}
	atrPeriod, err := params.GetInt("atr_period", 14)
	if err != nil {
		return nil, err
	}

	s := &SqueezeBreakout{
		bbPeriod:      bbPeriod,
		bbStd:         params.Get("bb_std", 2.0),
		kcPeriod:      kcPeriod,
		kcMult:        params.Get("kc_mult", 1.5),
		atrPeriod:     atrPeriod,
		atrStopMult:   params.Get("atr_multiplier_stop", 2.0),
		atrTargetMult: params.Get("atr_multiplier_target", 3.0),
		volumeFilter:  params.Get("volume_filter", 1.5),
	}
	if err := requirePeriods(s.bbPeriod, s.kcPeriod, s.atrPeriod); err != nil {
		return nil, err
	}
	for key, v := range map[string]float64{
		"bb_std":                s.bbStd,
		"kc_mult":               s.kcMult,
		"atr_multiplier_stop":   s.atrStopMult,
		"atr_multiplier_target": s.atrTargetMult,
		"volume_filter":         s.volumeFilter,
	} {
		if err := requirePositive(key, v); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Name returns "squeeze-breakout".
func (s *SqueezeBreakout) Name() string { return NameSqueezeBreakout }

// Generate computes signals for the whole series in one pass.
func (s *SqueezeBreakout) Generate(bars []domain.Bar) ([]strategy.Signal, error) {
	if err := domain.ValidateBars(bars); err != nil {
		return nil, err
	}

	closes := indicator.Closes(bars)
	atr := indicator.ATR(bars, s.atrPeriod)
	bb := indicator.Bollinger(closes, s.bbPeriod, s.bbStd)
	// The channel envelope uses the atr_period ATR, not a kc_period one.
	kc := indicator.Keltner(bars, s.kcPeriod, s.kcMult, atr)
	avgVol := indicator.RollingMean(indicator.Volumes(bars), volumeAvgWindow)

	// A squeeze bar has both Bollinger bands inside the Keltner channel.
	squeeze := make([]bool, len(bars))
	for i := range bars {
		squeeze[i] = bb.Upper[i] < kc.Upper[i] && bb.Lower[i] > kc.Lower[i]
	}

	signals := make([]strategy.Signal, len(bars))
	for i := range bars {
		enter := i > 0 &&
			squeeze[i-1] &&
			closes[i] > bb.Upper[i] &&
			float64(bars[i].Volume) > avgVol[i]*s.volumeFilter

		if enter {
			signals[i] = strategy.Signal{
				Action:     strategy.ActionEnterLong,
				StopLoss:   closes[i] - atr[i]*s.atrStopMult,
				TakeProfit: closes[i] + atr[i]*s.atrTargetMult,
			}
			continue
		}
		if closes[i] < bb.Middle[i] {
			signals[i] = strategy.Signal{Action: strategy.ActionExit}
		}
	}
	return signals, nil
}
