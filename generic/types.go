/*
Package generic provides the domain-agnostic primitives of the leave engine.

PURPOSE:
  This package holds the small value types every other package builds on:
  quantities of days, calendar dates, closed date ranges and the rules that
  pick an entitlement window for a date. Nothing in here knows what a
  vacation request, an employee or an approval is.

KEY CONCEPTS IN THIS FILE (types.go):
  - Amount: A quantity with a unit (e.g., 5 days)
  - Unit: What an Amount counts

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal to avoid floating-point drift when
     quotas are summed and subtracted
  2. Immutability: Every arithmetic method returns a new value
  3. Day semantics: Dates are calendar days, never instants

USAGE:
  quota := generic.NewAmountFromInt(24, generic.UnitDays)
  used := generic.NewAmountFromInt(5, generic.UnitDays)
  remaining := quota.Sub(used).ClampZero()

SEE ALSO:
  - time.go: TimePoint (calendar day)
  - period.go: Period (closed range) and PeriodConfig (work-year windows)
  - errors.go: Store-level sentinel errors
*/
package generic

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNT - Quantity with unit
// =============================================================================

type Amount struct {
	Value decimal.Decimal
	Unit  Unit
}

type Unit string

const UnitDays Unit = "days"

func NewAmountFromInt(value int, unit Unit) Amount {
	return Amount{Value: decimal.NewFromInt(int64(value)), Unit: unit}
}

// Days is shorthand for an Amount of whole days.
func Days(n int) Amount { return NewAmountFromInt(n, UnitDays) }

func (a Amount) Zero() Amount              { return Amount{Value: decimal.Zero, Unit: a.Unit} }
func (a Amount) Add(b Amount) Amount       { return Amount{Value: a.Value.Add(b.Value), Unit: a.Unit} }
func (a Amount) Sub(b Amount) Amount       { return Amount{Value: a.Value.Sub(b.Value), Unit: a.Unit} }
func (a Amount) IsZero() bool              { return a.Value.IsZero() }
func (a Amount) GreaterThan(b Amount) bool { return a.Value.GreaterThan(b.Value) }
func (a Amount) Equal(b Amount) bool       { return a.Value.Equal(b.Value) && a.Unit == b.Unit }

func (a Amount) Max(b Amount) Amount {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// ClampZero floors the amount at zero.
func (a Amount) ClampZero() Amount { return a.Max(a.Zero()) }

// IntPart returns the whole-unit part of the amount.
func (a Amount) IntPart() int { return int(a.Value.IntPart()) }

func (a Amount) String() string { return a.Value.String() + " " + string(a.Unit) }
