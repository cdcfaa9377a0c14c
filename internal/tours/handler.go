package tours

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"ms-booking/internal/apperrors"
	"ms-booking/internal/logger"
	"ms-booking/internal/utils"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

const (
	defaultWindowDays = 30
	maxWindowDays     = 90
)

// DayAvailability is one calendar cell.
type DayAvailability struct {
	Date           string          `json:"date"`
	AvailableSlots int             `json:"available_slots"`
	IsAvailable    bool            `json:"is_available"`
	PricePerPerson decimal.Decimal `json:"price_per_person"`
}

type Calendar struct {
	TourID   int64             `json:"tour_id"`
	Title    string            `json:"title"`
	Capacity int               `json:"capacity"`
	From     string            `json:"from"`
	To       string            `json:"to"`
	Days     []DayAvailability `json:"days"`
}

type Handler struct {
	Store  *Store
	Logger *logger.Logger
	Expose bool
	Now    func() time.Time
	// Location decides which calendar day is today.
	Location *time.Location
}

func NewHandler(store *Store, log *logger.Logger, expose bool) *Handler {
	return &Handler{Store: store, Logger: log, Expose: expose, Now: time.Now, Location: time.UTC}
}

// GetAvailability serves GET /api/tours/{tour_id}/availability?from=&to=
func (h *Handler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	tourID, err := strconv.ParseInt(chi.URLParam(r, "tour_id"), 10, 64)
	if err != nil || tourID <= 0 {
		utils.WriteError(w, apperrors.BadRequest("tour_id must be a positive integer"), h.Expose)
		return
	}

	from, to, err := h.window(r)
	if err != nil {
		utils.WriteError(w, err, h.Expose)
		return
	}

	tour, err := h.Store.GetActiveTour(r.Context(), tourID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetAvailability: %v", err))
		utils.WriteError(w, err, h.Expose)
		return
	}
	if tour == nil {
		utils.WriteError(w, apperrors.NotFound("Tour not found"), h.Expose)
		return
	}

	rows, err := h.Store.ListAvailability(r.Context(), tourID, from, to)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetAvailability: %v", err))
		utils.WriteError(w, err, h.Expose)
		return
	}

	cal := Calendar{
		TourID:   tour.ID,
		Title:    tour.Title,
		Capacity: tour.Capacity,
		From:     from.Format(utils.DateLayout),
		To:       to.Format(utils.DateLayout),
		Days:     make([]DayAvailability, 0, len(rows)),
	}
	for i := range rows {
		a := &rows[i]
		cal.Days = append(cal.Days, DayAvailability{
			Date:           a.Date.UTC().Format(utils.DateLayout),
			AvailableSlots: a.AvailableSlots,
			IsAvailable:    a.IsAvailable && a.AvailableSlots > 0,
			PricePerPerson: a.PricePerPerson(tour),
		})
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("", cal))
}

func (h *Handler) window(r *http.Request) (time.Time, time.Time, error) {
	q := r.URL.Query()

	from := utils.Today(h.Now(), h.Location)
	if raw := q.Get("from"); raw != "" {
		d, err := utils.ParseDate(raw)
		if err != nil {
			return time.Time{}, time.Time{}, apperrors.BadRequest("from: %v", err)
		}
		from = d
	}

	to := from.AddDate(0, 0, defaultWindowDays)
	if raw := q.Get("to"); raw != "" {
		d, err := utils.ParseDate(raw)
		if err != nil {
			return time.Time{}, time.Time{}, apperrors.BadRequest("to: %v", err)
		}
		to = d
	}

	if to.Before(from) {
		return time.Time{}, time.Time{}, apperrors.BadRequest("to must not be before from")
	}
	if to.Sub(from) > maxWindowDays*24*time.Hour {
		return time.Time{}, time.Time{}, apperrors.BadRequest("window cannot exceed %d days", maxWindowDays)
	}
	return from, to, nil
}
