package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

type TourStatus string

const (
	TourActive   TourStatus = "active"
	TourDraft    TourStatus = "draft"
	TourInactive TourStatus = "inactive"
)

type Tour struct {
	bun.BaseModel `bun:"table:tours"`

	ID            int64           `bun:"id,pk,autoincrement" json:"id"`
	CaptainID     string          `bun:"captain_id,nullzero" json:"captain_id,omitempty"`
	Title         string          `bun:"title,notnull" json:"title"`
	Description   string          `bun:"description,nullzero" json:"description,omitempty"`
	Location      string          `bun:"location,nullzero" json:"location,omitempty"`
	Price         decimal.Decimal `bun:"price,type:decimal(10,2),notnull" json:"price"`
	Capacity      int             `bun:"capacity,notnull" json:"capacity"`
	DurationHours decimal.Decimal `bun:"duration_hours,type:decimal(4,1),notnull" json:"duration_hours"`
	Status        TourStatus      `bun:"status,notnull" json:"status"`
	ViewsCount    int             `bun:"views_count,notnull" json:"views_count"`
	CreatedAt     time.Time       `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt     time.Time       `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`
}

// TourAvailability is the per-day capacity counter for a tour.
type TourAvailability struct {
	bun.BaseModel `bun:"table:tour_availability"`

	ID             int64            `bun:"id,pk,autoincrement" json:"id"`
	TourID         int64            `bun:"tour_id,notnull,unique:tour_date" json:"tour_id"`
	Date           time.Time        `bun:"date,type:date,notnull,unique:tour_date" json:"date"`
	AvailableSlots int              `bun:"available_slots,notnull" json:"available_slots"`
	IsAvailable    bool             `bun:"is_available,notnull" json:"is_available"`
	SpecialPrice   *decimal.Decimal `bun:"special_price,type:decimal(10,2)" json:"special_price,omitempty"`
	CreatedAt      time.Time        `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt      time.Time        `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`
}

// PricePerPerson returns the date's special price when set, else the tour price.
func (a *TourAvailability) PricePerPerson(tour *Tour) decimal.Decimal {
	if a.SpecialPrice != nil {
		return *a.SpecialPrice
	}
	return tour.Price
}
