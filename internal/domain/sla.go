package domain

import "cloud.google.com/go/civil"

// Severity is the traffic light of an order in its current status.
type Severity string

const (
	SeverityNormal   Severity = "normal"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Light returns the colour name stored in the cached status_light column.
func (s Severity) Light() string {
	switch s {
	case SeverityWarning:
		return "yellow"
	case SeverityCritical:
		return "red"
	default:
		return "green"
	}
}

func SeverityFromLight(light string) Severity {
	switch light {
	case "yellow", string(SeverityWarning):
		return SeverityWarning
	case "red", string(SeverityCritical):
		return SeverityCritical
	default:
		return SeverityNormal
	}
}

func (s Severity) rank() int {
	switch s {
	case SeverityWarning:
		return 1
	case SeverityCritical:
		return 2
	default:
		return 0
	}
}

// Worse reports whether s is more severe than other.
func (s Severity) Worse(other Severity) bool { return s.rank() > other.rank() }

// ElapsedDays counts whole calendar days from enteredAt to asOf. Civil dates
// carry no time zone, so the count follows UTC midnight boundaries.
// A negative count means enteredAt lies in the future; it is returned as is
// together with a DATA_ANOMALY error.
func ElapsedDays(enteredAt, asOf civil.Date) (int, error) {
	n := asOf.DaysSince(enteredAt)
	if n < 0 {
		return n, newError(KindDataAnomaly, "entry dated %s is %d day(s) after %s", enteredAt, -n, asOf)
	}
	return n, nil
}

// SeverityForDays applies the thresholds of status to an elapsed day count.
// Thresholds are inclusive.
func SeverityForDays(status StatusKey, elapsed int) Severity {
	if status.IsTerminal() {
		return SeverityNormal
	}
	t := ThresholdsOf(status)
	if t.RedDays != nil && elapsed >= *t.RedDays {
		return SeverityCritical
	}
	if t.YellowDays != nil && elapsed >= *t.YellowDays {
		return SeverityWarning
	}
	return SeverityNormal
}

// SeverityOf evaluates status entered on enteredAt as of asOf. Terminal
// statuses are always normal. A future enteredAt yields SeverityNormal with
// a DATA_ANOMALY error so the bad date stays visible.
func SeverityOf(status StatusKey, enteredAt, asOf civil.Date) (Severity, error) {
	if status.IsTerminal() {
		return SeverityNormal, nil
	}
	n, err := ElapsedDays(enteredAt, asOf)
	if err != nil {
		return SeverityNormal, err
	}
	return SeverityForDays(status, n), nil
}
