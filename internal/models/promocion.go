package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

type PromocionType string

const (
	PromocionPercentage  PromocionType = "percentage"
	PromocionFixedAmount PromocionType = "fixed_amount"
)

type Promocion struct {
	bun.BaseModel `bun:"table:promociones"`

	ID                 int64            `bun:"id,pk,autoincrement" json:"id"`
	Code               string           `bun:"code,unique,notnull" json:"code"`
	Name               string           `bun:"name,nullzero" json:"name,omitempty"`
	Description        string           `bun:"description,nullzero" json:"description,omitempty"`
	Type               PromocionType    `bun:"promocion_type,notnull" json:"promocion_type"`
	DiscountPercentage *decimal.Decimal `bun:"discount_percentage,type:decimal(5,2)" json:"discount_percentage,omitempty"`
	DiscountAmount     *decimal.Decimal `bun:"discount_amount,type:decimal(10,2)" json:"discount_amount,omitempty"`
	MaxDiscountAmount  *decimal.Decimal `bun:"max_discount_amount,type:decimal(10,2)" json:"max_discount_amount,omitempty"`
	MinPurchaseAmount  *decimal.Decimal `bun:"min_purchase_amount,type:decimal(10,2)" json:"min_purchase_amount,omitempty"`
	TourID             *int64           `bun:"tour_id" json:"tour_id,omitempty"`
	UsageLimit         *int             `bun:"usage_limit" json:"usage_limit,omitempty"`
	UsageLimitPerUser  *int             `bun:"usage_limit_per_user" json:"usage_limit_per_user,omitempty"`
	CurrentUsageCount  int              `bun:"current_usage_count,notnull" json:"current_usage_count"`
	IsActive           bool             `bun:"is_active,notnull" json:"is_active"`
	ValidFrom          time.Time        `bun:"valid_from,notnull" json:"valid_from"`
	ValidUntil         time.Time        `bun:"valid_until,notnull" json:"valid_until"`
	CreatedAt          time.Time        `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt          time.Time        `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`
}

// PromocionUsage records one redemption of a promotion by a user for a booking.
type PromocionUsage struct {
	bun.BaseModel `bun:"table:promocion_usage"`

	ID             int64           `bun:"id,pk,autoincrement" json:"id"`
	PromocionID    int64           `bun:"promocion_id,notnull" json:"promocion_id"`
	UserID         string          `bun:"user_id,notnull" json:"user_id"`
	BookingID      int64           `bun:"booking_id,notnull" json:"booking_id"`
	DiscountAmount decimal.Decimal `bun:"discount_amount,type:decimal(10,2),notnull" json:"discount_amount"`
	UsedAt         time.Time       `bun:"used_at,nullzero,notnull,default:current_timestamp" json:"used_at"`
}

type PromoValidation struct {
	Promotion          *Promocion      `json:"promotion"`
	CalculatedDiscount decimal.Decimal `json:"calculated_discount"`
}
