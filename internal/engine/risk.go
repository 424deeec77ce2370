package engine

import (
	"fmt"

	"schicchi/internal/domain"
)

// RiskManager enforces pre-trade risk rules on fixed-notional orders.
type RiskManager struct {
	maxPositionPct  float64
	maxDailyLossPct float64
}

// NewRiskManager creates a RiskManager with the specified thresholds.
//
//   - maxPositionPct: maximum fraction of equity allowed in a single order
//     (e.g. 0.10 for 10%). Zero disables the check.
//   - maxDailyLossPct: maximum fraction of last close equity that may be
//     lost today before new orders are refused. Zero disables the check.
func NewRiskManager(maxPositionPct, maxDailyLossPct float64) *RiskManager {
	return &RiskManager{
		maxPositionPct:  maxPositionPct,
		maxDailyLossPct: maxDailyLossPct,
	}
}

// CheckNotional evaluates whether an order of the given notional complies
// with the configured limits given the current account state.
func (rm *RiskManager) CheckNotional(notional float64, acct *domain.AccountInfo) error {
	if notional <= 0 {
		return fmt.Errorf("%w: notional must be > 0, got %v", domain.ErrBadParameter, notional)
	}
	if rm.maxPositionPct > 0 && acct.Equity > 0 {
		if limit := acct.Equity * rm.maxPositionPct; notional > limit {
			return fmt.Errorf("notional %.2f exceeds position limit %.2f (%.0f%% of equity)",
				notional, limit, rm.maxPositionPct*100)
		}
	}
	if rm.maxDailyLossPct > 0 && acct.LastEquity > 0 {
		loss := acct.LastEquity - acct.Equity
		if limit := acct.LastEquity * rm.maxDailyLossPct; loss > limit {
			return fmt.Errorf("daily loss %.2f exceeds limit %.2f (%.0f%% of last equity)",
				loss, limit, rm.maxDailyLossPct*100)
		}
	}
	return nil
}
