// Package builtins provides the built-in strategy implementations that ship
// with the schicchi platform.
package builtins

import (
	"schicchi/internal/domain"
	"schicchi/internal/indicator"
	"schicchi/internal/strategy"
)

// NameRSIPullback is the registry name for the RSI pullback strategy.
const NameRSIPullback = "rsi-pullback"

// volumeAvgWindow is the lookback for the average-volume filter shared by
// all built-in strategies.
const volumeAvgWindow = 20

// Compile-time interface check.
var _ strategy.Strategy = (*RSIPullback)(nil)

// RSIPullback enters long on an oversold RSI reading confirmed by elevated
// volume and a rising close, and exits when the RSI turns overbought.
// Stops and targets are ATR multiples of the entry close.
//
// Parameters: rsi_period (10), oversold (40), overbought (75), atr_period
// (14), atr_multiplier_stop (2.0), atr_multiplier_target (3.0),
// volume_filter (1.5).
type RSIPullback struct {
	rsiPeriod     int
	oversold      float64
	overbought    float64
	atrPeriod     int
	atrStopMult   float64
	atrTargetMult float64
	volumeFilter  float64
}

// NewRSIPullback builds an RSIPullback from flat parameters, applying the
// documented defaults for absent keys.
func NewRSIPullback(params strategy.Params) (strategy.Strategy, error) {
	rsiPeriod, err := params.GetInt("rsi_period", 10)
	if err != nil {
		return nil, err
	}
	atrPeriod, err := params.GetInt("atr_period", 14)
	if err != nil {
		return nil, err
	}

	s := &RSIPullback{
		rsiPeriod:     rsiPeriod,
		oversold:      params.Get("oversold", 40),
		overbought:    params.Get("overbought", 75),
		atrPeriod:     atrPeriod,
		atrStopMult:   params.Get("atr_multiplier_stop", 2.0),
		atrTargetMult: params.Get("atr_multiplier_target", 3.0),
		volumeFilter:  params.Get("volume_filter", 1.5),
	}
	if err := requirePeriods(s.rsiPeriod, s.atrPeriod); err != nil {
		return nil, err
	}
	for key, v := range map[string]float64{
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

// Name returns "rsi-pullback".
func (s *RSIPullback) Name() string { return NameRSIPullback }

// Generate computes signals for the whole series in one pass.
func (s *RSIPullback) Generate(bars []domain.Bar) ([]strategy.Signal, error) {
	if err := domain.ValidateBars(bars); err != nil {
		return nil, err
	}

	closes := indicator.Closes(bars)
	rsi := indicator.RSI(closes, s.rsiPeriod)
	atr := indicator.ATR(bars, s.atrPeriod)
	avgVol := indicator.RollingMean(indicator.Volumes(bars), volumeAvgWindow)

	signals := make([]strategy.Signal, len(bars))
	for i := range bars {
		// NaN warm-up values fail every comparison, so early bars stay
		// ActionNone without explicit index guards.
		enter := i > 0 &&
			rsi[i] < s.oversold &&
			float64(bars[i].Volume) > avgVol[i]*s.volumeFilter &&
			closes[i] > closes[i-1]

		if enter {
			signals[i] = strategy.Signal{
				Action:     strategy.ActionEnterLong,
				StopLoss:   closes[i] - atr[i]*s.atrStopMult,
				TakeProfit: closes[i] + atr[i]*s.atrTargetMult,
			}
			continue
		}
		if rsi[i] > s.overbought {
			signals[i] = strategy.Signal{Action: strategy.ActionExit}
		}
	}
	return signals, nil
}
