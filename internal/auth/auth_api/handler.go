package auth_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"ms-booking/internal/apperrors"
	"ms-booking/internal/auth"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"ms-booking/internal/utils"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	AuthService *auth.AuthService
	Logger      *logger.Logger
	Expose      bool
}

func NewHandler(svc *auth.AuthService, log *logger.Logger, expose bool) *Handler {
	return &Handler{AuthService: svc, Logger: log, Expose: expose}
}

func (h *Handler) RegisterRoutes(r chi.Router, mw *auth.Middleware) {
	r.Post("/register", h.Register)
	r.Post("/login", h.Login)
	r.Post("/refresh", h.Refresh)

	r.Group(func(r chi.Router) {
		r.Use(mw.Required)
		r.Post("/logout", h.Logout)
		r.Get("/me", h.Me)
	})
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	appErr := utils.WriteError(w, err, h.Expose)
	if appErr.Status >= http.StatusInternalServerError {
		h.Logger.Error("AUTH", fmt.Sprintf("%s: %v", op, err))
	}
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, "Register", apperrors.BadRequest("Invalid request body: %v", err))
		return
	}

	pair, err := h.AuthService.Register(r.Context(), req)
	if err != nil {
		h.fail(w, "Register", err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("Account created", pair))
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, "Login", apperrors.BadRequest("Invalid request body: %v", err))
		return
	}

	pair, err := h.AuthService.Login(r.Context(), req)
	if err != nil {
		h.fail(w, "Login", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Login successful", pair))
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req models.RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, "Refresh", apperrors.BadRequest("Invalid request body: %v", err))
		return
	}

	pair, err := h.AuthService.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		h.fail(w, "Refresh", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Token refreshed", pair))
}

// Logout revokes the caller's access token. A refresh_token in the body is
// dropped as well.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var req models.RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.fail(w, "Logout", apperrors.BadRequest("Invalid request body: %v", err))
		return
	}

	if err := h.AuthService.Logout(r.Context(), auth.ClaimsFrom(r.Context()), req.RefreshToken); err != nil {
		h.fail(w, "Logout", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Logged out", nil))
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFrom(r.Context())
	if claims == nil {
		h.fail(w, "Me", apperrors.Unauthorized("Authentication required"))
		return
	}

	user, err := h.AuthService.Me(r.Context(), claims.Subject)
	if err != nil {
		h.fail(w, "Me", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("", user))
}
