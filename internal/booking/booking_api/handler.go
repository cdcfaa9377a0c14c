package booking_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"ms-booking/internal/apperrors"
	"ms-booking/internal/auth"
	"ms-booking/internal/booking"
	"ms-booking/internal/booking/voucher"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"ms-booking/internal/sse"
	"ms-booking/internal/utils"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type Handler struct {
	BookingService *booking.BookingService
	Vouchers       *voucher.Generator
	Emitter        *sse.BookingEventEmitter
	Logger         *logger.Logger
	// Expose adds internal error detail to responses outside production.
	Expose bool
}

func NewHandler(svc *booking.BookingService, vouchers *voucher.Generator, emitter *sse.BookingEventEmitter, log *logger.Logger, expose bool) *Handler {
	return &Handler{
		BookingService: svc,
		Vouchers:       vouchers,
		Emitter:        emitter,
		Logger:         log,
		Expose:         expose,
	}
}

// RegisterRoutes mounts the booking endpoints under r.
func (h *Handler) RegisterRoutes(r chi.Router, mw *auth.Middleware) {
	r.Group(func(r chi.Router) {
		r.Use(mw.Optional)
		r.Post("/", h.CreateBooking)
		r.Get("/promo/{code}/validate", h.ValidatePromo)
		r.Get("/{booking_number}", h.GetBooking)
		r.Get("/{booking_number}/voucher", h.GetVoucher)
		r.Put("/{booking_number}/cancel", h.CancelBooking)
	})

	r.Group(func(r chi.Router) {
		r.Use(mw.Required)
		r.Get("/my-bookings", h.ListMyBookings)
	})

	r.Group(func(r chi.Router) {
		r.Use(mw.RequireRoles(models.RoleAdmin, models.RoleCapitan))
		r.Put("/{booking_number}/confirm", h.ConfirmBooking)
		r.Put("/{booking_number}/complete", h.CompleteBooking)
		r.Get("/stream/tours/{tour_id}", h.StreamTourBookings)
	})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	appErr := utils.WriteError(w, err, h.Expose)
	if appErr.Status >= http.StatusInternalServerError {
		h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
		return
	}
	h.Logger.Debug("API", fmt.Sprintf("%s: %d %s", op, appErr.Status, appErr.Message))
}

func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req models.CreateBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, r, "CreateBooking", apperrors.BadRequest("Invalid request body: %v", err))
		return
	}

	res, err := h.BookingService.CreateBooking(r.Context(), auth.ActorFrom(r.Context()), req, r.Header.Get("Idempotency-Key"))
	if err != nil {
		h.fail(w, r, "CreateBooking", err)
		return
	}

	if res.Replayed {
		w.Header().Set("Idempotent-Replayed", "true")
		utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Booking already created", res.Booking))
		return
	}
	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("Booking created successfully", res.Booking))
}

func (h *Handler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "booking_number")

	var req models.CancelBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.fail(w, r, "CancelBooking", apperrors.BadRequest("Invalid request body: %v", err))
		return
	}

	b, err := h.BookingService.CancelBooking(r.Context(), auth.ActorFrom(r.Context()), number, req)
	if err != nil {
		h.fail(w, r, "CancelBooking", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Booking cancelled successfully", b))
}

func (h *Handler) ConfirmBooking(w http.ResponseWriter, r *http.Request) {
	b, err := h.BookingService.ConfirmBooking(r.Context(), auth.ActorFrom(r.Context()), chi.URLParam(r, "booking_number"))
	if err != nil {
		h.fail(w, r, "ConfirmBooking", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Booking confirmed successfully", b))
}

func (h *Handler) CompleteBooking(w http.ResponseWriter, r *http.Request) {
	b, err := h.BookingService.CompleteBooking(r.Context(), auth.ActorFrom(r.Context()), chi.URLParam(r, "booking_number"))
	if err != nil {
		h.fail(w, r, "CompleteBooking", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Booking completed successfully", b))
}

func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	b, err := h.BookingService.GetBooking(r.Context(), auth.ActorFrom(r.Context()), chi.URLParam(r, "booking_number"))
	if err != nil {
		h.fail(w, r, "GetBooking", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("", b))
}

func (h *Handler) ListMyBookings(w http.ResponseWriter, r *http.Request) {
	user, ok := models.AsUser(auth.ActorFrom(r.Context()))
	if !ok {
		h.fail(w, r, "ListMyBookings", apperrors.Unauthorized("Authentication required"))
		return
	}

	q := r.URL.Query()
	page, err := positiveIntParam(q, "page")
	if err != nil {
		h.fail(w, r, "ListMyBookings", err)
		return
	}
	limit, err := positiveIntParam(q, "limit")
	if err != nil {
		h.fail(w, r, "ListMyBookings", err)
		return
	}

	bookings, pagination, err := h.BookingService.ListMyBookings(r.Context(), user, page, limit, q.Get("status"))
	if err != nil {
		h.fail(w, r, "ListMyBookings", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.PaginatedResponse(bookings, pagination))
}

// positiveIntParam reads an optional query parameter; absent means 0 so the
// service applies its default.
func positiveIntParam(q url.Values, name string) (int, error) {
	raw := q.Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, apperrors.BadRequest("%s must be a positive integer", name)
	}
	return n, nil
}

func (h *Handler) ValidatePromo(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var tourID int64
	if raw := q.Get("tour_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			h.fail(w, r, "ValidatePromo", apperrors.BadRequest("tour_id must be a positive integer"))
			return
		}
		tourID = id
	}

	subtotal := decimal.Zero
	if raw := q.Get("subtotal"); raw != "" {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			h.fail(w, r, "ValidatePromo", apperrors.BadRequest("subtotal must be a number"))
			return
		}
		subtotal = d
	}

	res, err := h.BookingService.ValidatePromocion(r.Context(), auth.ActorFrom(r.Context()), chi.URLParam(r, "code"), tourID, subtotal)
	if err != nil {
		h.fail(w, r, "ValidatePromo", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Promotion is valid", res))
}

// GetVoucher returns the boarding QR code as a PNG.
func (h *Handler) GetVoucher(w http.ResponseWriter, r *http.Request) {
	b, err := h.BookingService.GetBooking(r.Context(), auth.ActorFrom(r.Context()), chi.URLParam(r, "booking_number"))
	if err != nil {
		h.fail(w, r, "GetVoucher", err)
		return
	}
	if b.Status != models.BookingConfirmed && b.Status != models.BookingCompleted {
		h.fail(w, r, "GetVoucher", apperrors.BadRequest("Voucher is only available for confirmed bookings"))
		return
	}

	png, err := h.Vouchers.PNG(b)
	if err != nil {
		h.fail(w, r, "GetVoucher", err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", b.BookingNumber+".png"))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(png); err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetVoucher: failed to write image: %v", err))
	}
}
