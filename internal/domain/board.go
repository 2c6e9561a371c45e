package domain

import (
	"strings"

	"cloud.google.com/go/civil"
)

// Summary is the light row the board and listing queries load per order.
type Summary struct {
	Number       string     `json:"order_number"`
	CustomerName string     `json:"customer_name"`
	ProductName  string     `json:"product_name,omitempty"`
	Status       StatusKey  `json:"status"`
	EnteredAt    civil.Date `json:"entered_at"`
	OrderDate    civil.Date `json:"order_date"`

	// CachedSeverity is the light stored by the last write or sweep.
	CachedSeverity Severity `json:"-"`
}

// Evaluation is the SLA reading of one summary.
type Evaluation struct {
	Severity   Severity
	StatusDays int
	Anomaly    bool
}

// Evaluate computes severity and status days of s as of asOf.
func (s Summary) Evaluate(asOf civil.Date) Evaluation {
	days, err := ElapsedDays(s.EnteredAt, asOf)
	sev, _ := SeverityOf(s.Status, s.EnteredAt, asOf)
	return Evaluation{Severity: sev, StatusDays: days, Anomaly: err != nil}
}

// Board holds the statistics of a set of orders.
type Board struct {
	Total      int                   `json:"total"`
	Active     int                   `json:"active"`
	ByStage    map[StageID]int       `json:"by_stage"`
	ByFilter   map[FilterGroupID]int `json:"by_filter"`
	BySeverity map[Severity]int      `json:"by_severity"`
	Anomalies  int                   `json:"anomalies"`
}

// Tally counts summaries in one pass. Severity counts cover active orders
// only.
func Tally(summaries []Summary, asOf civil.Date) Board {
	b := Board{
		ByStage:    make(map[StageID]int, len(primaryStages)+1),
		ByFilter:   make(map[FilterGroupID]int, len(filterGroups)),
		BySeverity: map[Severity]int{SeverityNormal: 0, SeverityWarning: 0, SeverityCritical: 0},
	}
	for _, st := range primaryStages {
		b.ByStage[st.ID] = 0
	}
	for _, fg := range filterGroups {
		b.ByFilter[fg.ID] = 0
	}

	for _, s := range summaries {
		b.Total++
		b.ByStage[PrimaryStageOf(s.Status)]++
		for _, g := range filtersByStatus[s.Status] {
			b.ByFilter[g]++
		}
		if s.Status.IsTerminal() {
			continue
		}
		b.Active++
		ev := s.Evaluate(asOf)
		b.BySeverity[ev.Severity]++
		if ev.Anomaly {
			b.Anomalies++
		}
	}
	return b
}

// Filter selects orders for listings. Empty fields match everything.
type Filter struct {
	Stage       StageID       `json:"stage,omitempty"`
	FilterGroup FilterGroupID `json:"filter_group,omitempty"`
	Status      StatusKey     `json:"status,omitempty"`
	Severity    Severity      `json:"severity,omitempty"`
	Search      string        `json:"search,omitempty"`
}

func (f Filter) Match(s Summary, sev Severity) bool {
	if f.Stage != "" && PrimaryStageOf(s.Status) != f.Stage {
		return false
	}
	if f.FilterGroup != "" && !InFilterGroup(s.Status, f.FilterGroup) {
		return false
	}
	if f.Status != "" && s.Status != f.Status {
		return false
	}
	if f.Severity != "" && sev != f.Severity {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" {
		hay := strings.ToLower(s.Number + " " + s.CustomerName + " " + s.ProductName)
		if !strings.Contains(hay, q) {
			return false
		}
	}
	return true
}
