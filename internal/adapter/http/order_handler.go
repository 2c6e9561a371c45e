package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/go-playground/validator/v10"

	"github.com/YelzhanWeb/printtrack/internal/adapter/logger"
	"github.com/YelzhanWeb/printtrack/internal/domain"
	"github.com/YelzhanWeb/printtrack/internal/interfaces"
)

// OrderHandler serves the endpoints that change orders.
type OrderHandler struct {
	service       interfaces.TrackingService
	validate      *validator.Validate
	logger        logger.Logger
	defaultLocale domain.Locale
}

func NewOrderHandler(service interfaces.TrackingService, validate *validator.Validate, logger logger.Logger, defaultLocale domain.Locale) *OrderHandler {
	return &OrderHandler{
		service:       service,
		validate:      validate,
		logger:        logger,
		defaultLocale: defaultLocale,
	}
}

type CreateOrderRequest struct {
	OrderNumber      string      `json:"order_number" validate:"omitempty,max=50"`
	CustomerName     string      `json:"customer_name" validate:"required,max=100"`
	OrderDate        *civil.Date `json:"order_date"`
	ProductionType   string      `json:"production_type" validate:"max=100"`
	ProductName      string      `json:"product_name" validate:"max=100"`
	ProductCode      string      `json:"product_code" validate:"max=50"`
	PatternCode      string      `json:"pattern_code" validate:"max=50"`
	Quantity         int         `json:"quantity" validate:"gte=0"`
	Factory          string      `json:"factory" validate:"max=100"`
	ExpectedDelivery *civil.Date `json:"expected_delivery"`
	Notes            string      `json:"notes" validate:"max=2000"`
}

// UpdateOrderRequest carries only the fields to change.
type UpdateOrderRequest struct {
	CustomerName     *string     `json:"customer_name" validate:"omitempty,max=100"`
	ProductionType   *string     `json:"production_type" validate:"omitempty,max=100"`
	ProductName      *string     `json:"product_name" validate:"omitempty,max=100"`
	ProductCode      *string     `json:"product_code" validate:"omitempty,max=50"`
	PatternCode      *string     `json:"pattern_code" validate:"omitempty,max=50"`
	Quantity         *int        `json:"quantity" validate:"omitempty,gte=0"`
	Factory          *string     `json:"factory" validate:"omitempty,max=100"`
	ExpectedDelivery *civil.Date `json:"expected_delivery"`
	Notes            *string     `json:"notes" validate:"omitempty,max=2000"`
	Reason           string      `json:"reason" validate:"max=1000"`
}

type DeleteOrderRequest struct {
	ConfirmOrderNumber string `json:"confirm_order_number" validate:"required,max=50"`
	Reason             string `json:"reason" validate:"max=1000"`
}

type ActionRequest struct {
	Action string      `json:"action" validate:"required"`
	Date   *civil.Date `json:"date"`
	Notes  string      `json:"notes" validate:"max=1000"`
}

type SkipRequest struct {
	Target string      `json:"target" validate:"required"`
	Date   *civil.Date `json:"date"`
	Notes  string      `json:"notes" validate:"max=1000"`
}

type CancelRequest struct {
	Date   *civil.Date `json:"date"`
	Reason string      `json:"reason" validate:"max=1000"`
}

type UndoRequest struct {
	Reason string `json:"reason" validate:"max=1000"`
}

type AmendEntryRequest struct {
	ActionDate *civil.Date       `json:"action_date"`
	Notes      string            `json:"notes" validate:"max=1000"`
	FromStatus *domain.StatusKey `json:"from_status"`
	ToStatus   *domain.StatusKey `json:"to_status"`
	Reason     string            `json:"reason" validate:"max=1000"`
}

func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if !h.decode(w, r, &req, false) {
		return
	}

	cmd := interfaces.CreateOrderCommand{
		Number:       strings.TrimSpace(req.OrderNumber),
		CustomerName: strings.TrimSpace(req.CustomerName),
		OrderDate:    dateOrZero(req.OrderDate),
		Product: domain.ProductAttributes{
			ProductionType:   strings.TrimSpace(req.ProductionType),
			ProductName:      strings.TrimSpace(req.ProductName),
			ProductCode:      strings.TrimSpace(req.ProductCode),
			PatternCode:      strings.TrimSpace(req.PatternCode),
			Quantity:         req.Quantity,
			Factory:          strings.TrimSpace(req.Factory),
			ExpectedDelivery: req.ExpectedDelivery,
			Notes:            strings.TrimSpace(req.Notes),
		},
	}

	result, err := h.service.CreateOrder(r.Context(), actorFrom(r), cmd, localeFrom(r, h.defaultLocale))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (h *OrderHandler) UpdateOrder(w http.ResponseWriter, r *http.Request) {
	var req UpdateOrderRequest
	if !h.decode(w, r, &req, false) {
		return
	}

	result, err := h.service.UpdateOrder(r.Context(), actorFrom(r), interfaces.UpdateOrderCommand{
		Number: r.PathValue("number"),
		Patch: domain.OrderPatch{
			CustomerName:     req.CustomerName,
			ProductionType:   req.ProductionType,
			ProductName:      req.ProductName,
			ProductCode:      req.ProductCode,
			PatternCode:      req.PatternCode,
			Quantity:         req.Quantity,
			Factory:          req.Factory,
			ExpectedDelivery: req.ExpectedDelivery,
			Notes:            req.Notes,
		},
		Reason: req.Reason,
	}, localeFrom(r, h.defaultLocale))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *OrderHandler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	var req DeleteOrderRequest
	if !h.decode(w, r, &req, false) {
		return
	}

	result, err := h.service.DeleteOrder(r.Context(), actorFrom(r), interfaces.DeleteOrderCommand{
		Number:        r.PathValue("number"),
		ConfirmNumber: req.ConfirmOrderNumber,
		Reason:        req.Reason,
	})
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *OrderHandler) ApplyAction(w http.ResponseWriter, r *http.Request) {
	var req ActionRequest
	if !h.decode(w, r, &req, false) {
		return
	}

	result, err := h.service.ApplyAction(r.Context(), actorFrom(r), interfaces.ApplyActionCommand{
		Number: r.PathValue("number"),
		Action: domain.ActionID(strings.TrimSpace(req.Action)),
		Date:   dateOrZero(req.Date),
		Notes:  req.Notes,
	}, localeFrom(r, h.defaultLocale))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *OrderHandler) Skip(w http.ResponseWriter, r *http.Request) {
	var req SkipRequest
	if !h.decode(w, r, &req, false) {
		return
	}

	result, err := h.service.Skip(r.Context(), actorFrom(r), interfaces.SkipCommand{
		Number: r.PathValue("number"),
		Target: domain.StatusKey(strings.TrimSpace(req.Target)),
		Date:   dateOrZero(req.Date),
		Notes:  req.Notes,
	}, localeFrom(r, h.defaultLocale))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	var req CancelRequest
	if !h.decode(w, r, &req, false) {
		return
	}

	result, err := h.service.Cancel(r.Context(), actorFrom(r), interfaces.CancelCommand{
		Number: r.PathValue("number"),
		Date:   dateOrZero(req.Date),
		Reason: req.Reason,
	}, localeFrom(r, h.defaultLocale))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *OrderHandler) Undo(w http.ResponseWriter, r *http.Request) {
	var req UndoRequest
	if !h.decode(w, r, &req, true) {
		return
	}

	result, err := h.service.UndoLast(r.Context(), actorFrom(r), interfaces.UndoCommand{
		Number: r.PathValue("number"),
		Reason: req.Reason,
	}, localeFrom(r, h.defaultLocale))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *OrderHandler) AmendEntry(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid history entry id", Code: "BAD_REQUEST"})
		return
	}

	var req AmendEntryRequest
	if !h.decode(w, r, &req, false) {
		return
	}

	result, err := h.service.AmendEntry(r.Context(), actorFrom(r), interfaces.AmendEntryCommand{
		Number:     r.PathValue("number"),
		EntryID:    id,
		ActionDate: dateOrZero(req.ActionDate),
		Notes:      strings.TrimSpace(req.Notes),
		FromStatus: req.FromStatus,
		ToStatus:   req.ToStatus,
		Reason:     req.Reason,
	}, localeFrom(r, h.defaultLocale))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// decode reads and validates the JSON body into dst. It writes the error
// response itself and reports whether the handler may continue.
func (h *OrderHandler) decode(w http.ResponseWriter, r *http.Request, dst interface{}, optional bool) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if !(optional && errors.Is(err, io.EOF)) {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Code: "BAD_REQUEST",
				Errors: []ValidationError{{Message: err.Error()}}})
			return false
		}
	}

	if err := h.validate.Struct(dst); err != nil {
		h.logger.Debug("validation_failed", "Request validation failed", RequestID(r.Context()), map[string]interface{}{
			"path": r.URL.Path,
		})
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Validation failed", Code: "VALIDATION_FAILED",
			Errors: validationErrors(err)})
		return false
	}
	return true
}

func dateOrZero(d *civil.Date) civil.Date {
	if d == nil {
		return civil.Date{}
	}
	return *d
}
