package domain

import "cloud.google.com/go/civil"

// ActionView is a quick action as offered to a caller.
type ActionView struct {
	Action         ActionID  `json:"action"`
	Label          string    `json:"label"`
	To             StatusKey `json:"to"`
	ToLabel        string    `json:"to_label"`
	RequiresReason bool      `json:"requires_reason"`
}

type StatusOption struct {
	Status StatusKey `json:"status"`
	Label  string    `json:"label"`
}

// OrderView is the derived, read-only picture of an order on a given day.
type OrderView struct {
	Number        string            `json:"order_number"`
	CustomerName  string            `json:"customer_name"`
	Product       ProductAttributes `json:"product"`
	Status        StatusKey         `json:"status"`
	StatusLabel   string            `json:"status_label"`
	Stage         StageID           `json:"stage"`
	StageName     string            `json:"stage_name"`
	FilterGroups  []FilterGroupID   `json:"filter_groups"`
	OrderDate     civil.Date        `json:"order_date"`
	EnteredAt     civil.Date        `json:"entered_at"`
	StatusDays    int               `json:"status_days"`
	TotalDays     int               `json:"total_days"`
	Severity      Severity          `json:"severity"`
	Light         string            `json:"light"`
	Anomaly       bool              `json:"anomaly"`
	Terminal      bool              `json:"terminal"`
	Actions       []ActionView      `json:"actions"`
	SkipTargets   []StatusOption    `json:"skip_targets"`
	CanCancel     bool              `json:"can_cancel"`
	CanUndo       bool              `json:"can_undo"`
	HistoryLength int               `json:"history_length"`
}

// EntryView is a history entry with its dwell time and labels resolved.
type EntryView struct {
	HistoryEntry
	FromLabel string `json:"from_label,omitempty"`
	ToLabel   string `json:"to_label"`
	DwellDays int    `json:"dwell_days"`
	Anomaly   bool   `json:"anomaly"`
}

// Describe derives the view of o as of asOf. canUndo is the caller's
// capability to undo; the view only offers it when there is a step to undo.
func Describe(o *Order, asOf civil.Date, locale Locale, canUndo bool) OrderView {
	status := o.CurrentStatus
	stage := PrimaryStageOf(status)
	v := OrderView{
		Number:        o.Number,
		CustomerName:  o.CustomerName,
		Product:       o.Product,
		Status:        status,
		StatusLabel:   LabelOf(status, locale),
		Stage:         stage,
		StageName:     StageName(stage, locale),
		FilterGroups:  FilterGroupsOf(status),
		OrderDate:     o.OrderDate(),
		EnteredAt:     o.EnteredAt(),
		Terminal:      status.IsTerminal(),
		CanCancel:     !status.IsTerminal(),
		CanUndo:       canUndo && o.History.Len() > 1,
		HistoryLength: o.History.Len(),
	}

	days, err := ElapsedDays(v.EnteredAt, asOf)
	v.StatusDays = days
	v.Anomaly = err != nil
	v.Severity, _ = SeverityOf(status, v.EnteredAt, asOf)
	v.Light = v.Severity.Light()
	v.TotalDays, _ = ElapsedDays(v.OrderDate, asOf)

	for _, t := range LegalActionsOf(status) {
		v.Actions = append(v.Actions, ActionView{
			Action:         t.Action,
			Label:          t.Label(locale),
			To:             t.To,
			ToLabel:        LabelOf(t.To, locale),
			RequiresReason: t.RequiresReason,
		})
	}
	for _, s := range SkippableTargets(status) {
		v.SkipTargets = append(v.SkipTargets, StatusOption{Status: s, Label: LabelOf(s, locale)})
	}
	return v
}

// DescribeHistory resolves labels and dwell days for every entry.
func DescribeHistory(o *Order, asOf civil.Date, locale Locale) []EntryView {
	entries := o.History.Entries()
	out := make([]EntryView, len(entries))
	for i, e := range entries {
		ev := EntryView{HistoryEntry: e, ToLabel: LabelOf(e.ToStatus, locale)}
		if e.FromStatus != nil {
			ev.FromLabel = LabelOf(*e.FromStatus, locale)
		}
		d, err := o.History.DwellTime(i, asOf)
		ev.DwellDays = d
		ev.Anomaly = err != nil
		out[i] = ev
	}
	return out
}
