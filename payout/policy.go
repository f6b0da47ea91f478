/*
policy.go - Monthly quota entitlement

The entitlement policy is a step function of how many tickets an agent sold in
the current calendar month:

  ticketsSold >= quota      -> full salary
  ticketsSold >= quota/2    -> full salary * partial percentage / 100
  otherwise                 -> nothing

Entitlement is recomputed live for each payout request against the month
containing "now"; nothing is cached between requests.
*/
package payout

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/voucher-engine/ledger"
)

var hundred = decimal.NewFromInt(100)

// Entitlement returns what the settings owe for ticketsSold in one period.
// Non-decreasing in ticketsSold.
func Entitlement(settings ledger.PayoutSettings, ticketsSold int) decimal.Decimal {
	switch {
	case ticketsSold >= settings.MonthlyQuota:
		return settings.FullSalary
	case float64(ticketsSold) >= float64(settings.MonthlyQuota)/2:
		return settings.FullSalary.Mul(settings.PartialSalaryPercentage).Div(hundred)
	default:
		return decimal.Zero
	}
}

// CurrentPeriod returns the [start, end) bounds of the calendar month
// containing now, in UTC.
func CurrentPeriod(now time.Time) (time.Time, time.Time) {
	now = now.UTC()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}
