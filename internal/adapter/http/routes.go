package http

import (
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/YelzhanWeb/printtrack/internal/adapter/logger"
)

// NewValidator reports fields by their JSON names.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// NewRouter registers every endpoint and wraps the mux in the middleware
// chain.
func NewRouter(orders *OrderHandler, tracking *TrackingHandler, lgr logger.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /orders", orders.CreateOrder)
	mux.HandleFunc("GET /orders", tracking.ListOrders)
	mux.HandleFunc("GET /orders/next-number", tracking.NextNumber)
	mux.HandleFunc("GET /orders/{number}", tracking.GetOrder)
	mux.HandleFunc("PUT /orders/{number}", orders.UpdateOrder)
	mux.HandleFunc("DELETE /orders/{number}", orders.DeleteOrder)
	mux.HandleFunc("GET /orders/{number}/history", tracking.GetHistory)
	mux.HandleFunc("GET /orders/{number}/audit", tracking.GetAudit)
	mux.HandleFunc("POST /orders/{number}/actions", orders.ApplyAction)
	mux.HandleFunc("POST /orders/{number}/skip", orders.Skip)
	mux.HandleFunc("POST /orders/{number}/cancel", orders.Cancel)
	mux.HandleFunc("POST /orders/{number}/undo", orders.Undo)
	mux.HandleFunc("PATCH /orders/{number}/history/{id}", orders.AmendEntry)
	mux.HandleFunc("GET /customers/search", tracking.SearchCustomers)
	mux.HandleFunc("GET /board", tracking.GetBoard)
	mux.HandleFunc("GET /board/export.xlsx", tracking.ExportBoard)
	mux.HandleFunc("GET /workflow", tracking.GetWorkflow)
	mux.HandleFunc("GET /sweepers/status", tracking.GetSweepersStatus)

	// Apply middleware
	handler := OperatorMiddleware(mux)
	handler = LoggingMiddleware(lgr)(handler)
	handler = RecoveryMiddleware(lgr)(handler)
	handler = RequestIDMiddleware(handler)
	return handler
}
