package promo

import (
	"time"

	"ms-booking/internal/models"

	"github.com/shopspring/decimal"
)

// Reason explains why a promotion was not applied.
type Reason string

const (
	ReasonNone         Reason = ""
	ReasonInactive     Reason = "Promotion is not active"
	ReasonNotStarted   Reason = "Promotion is not yet valid"
	ReasonExpired      Reason = "Promotion has expired"
	ReasonExhausted    Reason = "Promotion usage limit has been reached"
	ReasonUserLimit    Reason = "You have already used this promotion the maximum number of times"
	ReasonWrongTour    Reason = "Promotion does not apply to this tour"
	ReasonBelowMinimum Reason = "Subtotal does not meet the promotion minimum"
	ReasonMisconfigure Reason = "Promotion is misconfigured"
)

// NotFound reports whether the reason hides the promotion entirely (as
// opposed to a promotion that exists but does not fit this request).
func (r Reason) NotFound() bool {
	switch r {
	case ReasonInactive, ReasonNotStarted, ReasonExpired, ReasonExhausted:
		return true
	}
	return false
}

type Input struct {
	// TourID is zero when the caller does not know the tour yet.
	TourID   int64
	Subtotal decimal.Decimal
	// PriorUses is the caller's redemption count; ignored unless CheckUserLimit.
	PriorUses      int
	CheckUserLimit bool
	Now            time.Time
}

type Result struct {
	IsValid        bool
	DiscountAmount decimal.Decimal
	Reason         Reason
}

// Evaluate checks eligibility and computes the discount for one promotion.
// An ineligible promotion yields a zero discount and a reason, never an error.
func Evaluate(p *models.Promocion, in Input) Result {
	result := Result{DiscountAmount: decimal.Zero}
	if p == nil {
		return result
	}

	if reason := checkEligibility(p, in); reason != ReasonNone {
		result.Reason = reason
		return result
	}

	amount, ok := Discount(p, in.Subtotal)
	if !ok {
		result.Reason = ReasonMisconfigure
		return result
	}

	result.IsValid = true
	result.DiscountAmount = amount
	return result
}

func checkEligibility(p *models.Promocion, in Input) Reason {
	if !p.IsActive {
		return ReasonInactive
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}
	if now.Before(p.ValidFrom) {
		return ReasonNotStarted
	}
	if now.After(p.ValidUntil) {
		return ReasonExpired
	}

	if p.UsageLimit != nil && p.CurrentUsageCount >= *p.UsageLimit {
		return ReasonExhausted
	}

	if in.CheckUserLimit && p.UsageLimitPerUser != nil && in.PriorUses >= *p.UsageLimitPerUser {
		return ReasonUserLimit
	}

	if p.TourID != nil && in.TourID != 0 && *p.TourID != in.TourID {
		return ReasonWrongTour
	}

	if p.MinPurchaseAmount != nil && in.Subtotal.IsPositive() && in.Subtotal.LessThan(*p.MinPurchaseAmount) {
		return ReasonBelowMinimum
	}

	return ReasonNone
}

var hundred = decimal.NewFromInt(100)

// Discount computes the amount a promotion takes off subtotal, capped at
// max_discount_amount and never more than the subtotal itself.
func Discount(p *models.Promocion, subtotal decimal.Decimal) (decimal.Decimal, bool) {
	var amount decimal.Decimal

	switch p.Type {
	case models.PromocionPercentage:
		if p.DiscountPercentage == nil {
			return decimal.Zero, false
		}
		amount = subtotal.Mul(*p.DiscountPercentage).Div(hundred)
		if p.MaxDiscountAmount != nil && amount.GreaterThan(*p.MaxDiscountAmount) {
			amount = *p.MaxDiscountAmount
		}
	case models.PromocionFixedAmount:
		if p.DiscountAmount == nil {
			return decimal.Zero, false
		}
		amount = *p.DiscountAmount
	default:
		return decimal.Zero, false
	}

	if amount.GreaterThan(subtotal) {
		amount = subtotal
	}
	if amount.IsNegative() {
		amount = decimal.Zero
	}
	return amount.Round(2), true
}
