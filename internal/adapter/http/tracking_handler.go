package http

import (
	"fmt"
	"net/http"

	"github.com/YelzhanWeb/printtrack/internal/adapter/logger"
	"github.com/YelzhanWeb/printtrack/internal/app/report"
	"github.com/YelzhanWeb/printtrack/internal/domain"
	"github.com/YelzhanWeb/printtrack/internal/interfaces"
)

// TrackingHandler serves the read-only endpoints.
type TrackingHandler struct {
	service       interfaces.TrackingService
	logger        logger.Logger
	defaultLocale domain.Locale
}

func NewTrackingHandler(service interfaces.TrackingService, logger logger.Logger, defaultLocale domain.Locale) *TrackingHandler {
	return &TrackingHandler{
		service:       service,
		logger:        logger,
		defaultLocale: defaultLocale,
	}
}

func (h *TrackingHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.GetOrder(r.Context(), actorFrom(r), r.PathValue("number"), localeFrom(r, h.defaultLocale))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *TrackingHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	history, err := h.service.History(r.Context(), r.PathValue("number"), localeFrom(r, h.defaultLocale))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (h *TrackingHandler) GetAudit(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.Audit(r.Context(), r.PathValue("number"))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	if records == nil {
		records = []domain.AuditRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *TrackingHandler) SearchCustomers(w http.ResponseWriter, r *http.Request) {
	names, err := h.service.SearchCustomers(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, names)
}

func (h *TrackingHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	filter, ok := parseFilter(w, r)
	if !ok {
		return
	}
	rows, err := h.service.ListOrders(r.Context(), filter, localeFrom(r, h.defaultLocale))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	if rows == nil {
		rows = []interfaces.OrderRow{}
	}
	writeJSON(w, http.StatusOK, rows)
}

func (h *TrackingHandler) NextNumber(w http.ResponseWriter, r *http.Request) {
	number, err := h.service.NextQuoteNumber(r.Context())
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"order_number": number})
}

func (h *TrackingHandler) GetBoard(w http.ResponseWriter, r *http.Request) {
	board, err := h.service.Board(r.Context(), localeFrom(r, h.defaultLocale))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

func (h *TrackingHandler) ExportBoard(w http.ResponseWriter, r *http.Request) {
	filter, ok := parseFilter(w, r)
	if !ok {
		return
	}
	locale := localeFrom(r, h.defaultLocale)
	views, err := h.service.ExportViews(r.Context(), filter, locale)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	w.Header().Set("Content-Type", report.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=board-%s.xlsx", locale))
	if err := report.WriteBoard(w, views, locale); err != nil {
		h.logger.Error("export_failed", "Failed to write board export", RequestID(r.Context()), map[string]interface{}{
			"orders": len(views),
		}, err)
	}
}

func (h *TrackingHandler) GetWorkflow(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.Workflow(localeFrom(r, h.defaultLocale)))
}

func (h *TrackingHandler) GetSweepersStatus(w http.ResponseWriter, r *http.Request) {
	h.logger.Debug("request_received", "Sweepers status requested", RequestID(r.Context()), nil)

	sweepers, err := h.service.SweepersStatus(r.Context())
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	if sweepers == nil {
		sweepers = []interfaces.SweeperStatusResponse{}
	}
	writeJSON(w, http.StatusOK, sweepers)
}

func parseFilter(w http.ResponseWriter, r *http.Request) (domain.Filter, bool) {
	q := r.URL.Query()
	f := domain.Filter{
		Stage:       domain.StageID(q.Get("stage")),
		FilterGroup: domain.FilterGroupID(q.Get("filter_group")),
		Status:      domain.StatusKey(q.Get("status")),
		Severity:    domain.Severity(q.Get("severity")),
		Search:      q.Get("search"),
	}

	var errs []ValidationError
	if f.Stage != "" && !f.Stage.IsKnown() && f.Stage != domain.StageUnclassified {
		errs = append(errs, ValidationError{Field: "stage", Message: "unknown stage"})
	}
	if f.FilterGroup != "" && !f.FilterGroup.IsKnown() {
		errs = append(errs, ValidationError{Field: "filter_group", Message: "unknown filter group"})
	}
	if f.Status != "" && !f.Status.IsKnown() {
		errs = append(errs, ValidationError{Field: "status", Message: "unknown status"})
	}
	switch f.Severity {
	case "", domain.SeverityNormal, domain.SeverityWarning, domain.SeverityCritical:
	default:
		errs = append(errs, ValidationError{Field: "severity", Message: "must be one of normal, warning, critical"})
	}
	if len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid filter", Code: "VALIDATION_FAILED", Errors: errs})
		return domain.Filter{}, false
	}
	return f, true
}
