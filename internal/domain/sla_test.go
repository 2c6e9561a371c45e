package domain

import (
	"errors"
	"testing"

	"cloud.google.com/go/civil"
)

func date(s string) civil.Date {
	d, err := civil.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestSeverityOf_InclusiveThresholds(t *testing.T) {
	entered := date("2025-03-01")
	cases := []struct {
		status StatusKey
		asOf   string
		want   Severity
	}{
		{StatusQuoteConfirming, "2025-03-03", SeverityNormal},
		{StatusQuoteConfirming, "2025-03-04", SeverityWarning},
		{StatusQuoteConfirming, "2025-03-05", SeverityWarning},
		{StatusQuoteConfirming, "2025-03-06", SeverityCritical},
		{StatusSampling, "2025-03-11", SeverityWarning},
		{StatusSampling, "2025-06-01", SeverityWarning},
		{StatusCompleted, "2026-03-01", SeverityNormal},
		{StatusCancelled, "2026-03-01", SeverityNormal},
	}
	for _, tc := range cases {
		got, err := SeverityOf(tc.status, entered, date(tc.asOf))
		if err != nil {
			t.Fatalf("SeverityOf(%s, %s) error: %v", tc.status, tc.asOf, err)
		}
		if got != tc.want {
			t.Fatalf("SeverityOf(%s, %s) expected %s, got %s", tc.status, tc.asOf, tc.want, got)
		}
	}
}

func TestSeverityOf_FutureEntryIsAnomaly(t *testing.T) {
	sev, err := SeverityOf(StatusProducing, date("2025-03-10"), date("2025-03-01"))
	if !errors.Is(err, ErrDataAnomaly) {
		t.Fatalf("expected DATA_ANOMALY, got %v", err)
	}
	if sev != SeverityNormal {
		t.Fatalf("expected normal severity with anomaly, got %s", sev)
	}
}

func TestElapsedDays_NotClamped(t *testing.T) {
	n, err := ElapsedDays(date("2025-03-10"), date("2025-03-07"))
	if err == nil || n != -3 {
		t.Fatalf("expected -3 with error, got %d, %v", n, err)
	}
}

func TestElapsedDays_AcrossMonthAndLeapDay(t *testing.T) {
	n, err := ElapsedDays(date("2024-02-27"), date("2024-03-02"))
	if err != nil || n != 4 {
		t.Fatalf("expected 4, got %d, %v", n, err)
	}
}
