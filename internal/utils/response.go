package utils

import (
	"encoding/json"
	"net/http"

	"ms-booking/internal/apperrors"
)

type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

func NewPagination(page, limit, total int) *Pagination {
	totalPages := 0
	if limit > 0 {
		totalPages = (total + limit - 1) / limit
	}
	return &Pagination{Page: page, Limit: limit, Total: total, TotalPages: totalPages}
}

type APIResponse struct {
	Success    bool        `json:"success"`
	Message    string      `json:"message,omitempty"`
	Data       interface{} `json:"data,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty"`
	Error      *ErrorInfo  `json:"error,omitempty"`
}

// ErrorInfo is only attached outside production.
type ErrorInfo struct {
	Detail string `json:"detail,omitempty"`
	Cause  string `json:"cause,omitempty"`
	Stack  string `json:"stack,omitempty"`
}

func SuccessResponse(message string, data interface{}) APIResponse {
	return APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	}
}

func PaginatedResponse(data interface{}, p *Pagination) APIResponse {
	return APIResponse{
		Success:    true,
		Data:       data,
		Pagination: p,
	}
}

// ErrorResponse builds the failure envelope. The constraint detail of an
// integrity error is always returned; cause and stack only when expose is set.
func ErrorResponse(err *apperrors.Error, expose bool) APIResponse {
	resp := APIResponse{Success: false, Message: err.Message}
	if err.Detail != "" || expose {
		resp.Error = &ErrorInfo{Detail: err.Detail}
	}
	if expose {
		if err.Err != nil {
			resp.Error.Cause = err.Err.Error()
		}
		resp.Error.Stack = err.Stack
	}
	return resp
}

func WriteJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func WriteError(w http.ResponseWriter, err error, expose bool) *apperrors.Error {
	appErr := apperrors.From(err)
	WriteJSON(w, appErr.Status, ErrorResponse(appErr, expose))
	return appErr
}
