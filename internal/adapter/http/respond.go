package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/YelzhanWeb/printtrack/internal/adapter/logger"
	"github.com/YelzhanWeb/printtrack/internal/app/tracking"
	"github.com/YelzhanWeb/printtrack/internal/domain"
	"github.com/YelzhanWeb/printtrack/internal/interfaces"
)

const (
	operatorHeader = "X-Operator"
	roleHeader     = "X-Operator-Role"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ErrorResponse is the body of every failed request. Fix tells the operator
// what to change.
type ErrorResponse struct {
	Error  string            `json:"error"`
	Code   string            `json:"code"`
	Fix    string            `json:"fix,omitempty"`
	Errors []ValidationError `json:"errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// actorFrom reads the operator identity set by the authenticating proxy.
func actorFrom(r *http.Request) interfaces.Actor {
	return interfaces.Actor{
		Name: strings.TrimSpace(r.Header.Get(operatorHeader)),
		Role: interfaces.ParseRole(strings.ToLower(strings.TrimSpace(r.Header.Get(roleHeader)))),
	}
}

// localeFrom prefers ?locale= over the first Accept-Language tag.
func localeFrom(r *http.Request, fallback domain.Locale) domain.Locale {
	tag := r.URL.Query().Get("locale")
	if tag == "" {
		lang := r.Header.Get("Accept-Language")
		if i := strings.IndexAny(lang, ",;"); i >= 0 {
			lang = lang[:i]
		}
		tag = strings.TrimSpace(lang)
	}
	if tag == "" {
		return fallback
	}
	return domain.ParseLocale(tag)
}

func validationErrors(err error) []ValidationError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []ValidationError{{Message: err.Error()}}
	}
	out := make([]ValidationError, 0, len(verrs))
	for _, fe := range verrs {
		msg := "failed " + fe.Tag()
		if fe.Param() != "" {
			msg += "=" + fe.Param()
		}
		out = append(out, ValidationError{Field: fe.Field(), Message: msg})
	}
	return out
}

// respondError maps service and workflow errors to HTTP statuses.
func respondError(w http.ResponseWriter, r *http.Request, lgr logger.Logger, err error) {
	switch {
	case errors.Is(err, tracking.ErrForbidden):
		writeJSON(w, http.StatusForbidden, ErrorResponse{Error: err.Error(), Code: "FORBIDDEN",
			Fix: "sign in as an administrator"})
		return
	case errors.Is(err, tracking.ErrOrderNotFound):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "ORDER_NOT_FOUND"})
		return
	case errors.Is(err, tracking.ErrDuplicateOrderNumber):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: err.Error(), Code: "DUPLICATE_ORDER_NUMBER",
			Fix: "choose another order number or leave it empty for a quote number"})
		return
	case errors.Is(err, tracking.ErrConfirmationMismatch):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "CONFIRMATION_MISMATCH",
			Fix: "repeat the order number exactly in confirm_order_number"})
		return
	case errors.Is(err, tracking.ErrOrderBusy):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: err.Error(), Code: "ORDER_BUSY",
			Fix: "retry in a moment"})
		return
	}

	if kind := domain.KindOf(err); kind != "" {
		status := http.StatusUnprocessableEntity
		switch kind {
		case domain.KindChainBroken:
			status = http.StatusConflict
		case domain.KindEntryNotFound:
			status = http.StatusNotFound
		}
		writeJSON(w, status, ErrorResponse{Error: err.Error(), Code: string(kind), Fix: domain.FixOf(err)})
		return
	}

	lgr.Error("request_failed", "Request failed", RequestID(r.Context()), map[string]interface{}{
		"method": r.Method,
		"path":   r.URL.Path,
	}, err)
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Internal server error", Code: "INTERNAL"})
}
