package domain

import "testing"

func TestLabelOf_FallsBackToDefaultLocaleThenKey(t *testing.T) {
	cases := []struct {
		key    StatusKey
		locale Locale
		want   string
	}{
		{StatusSampling, LocaleEN, "Sampling"},
		{StatusSampling, LocaleZhTW, "打樣中"},
		{StatusSampling, Locale("fr"), "打样中"},
		{StatusKey("LEGACY_STATUS"), LocaleEN, "LEGACY_STATUS"},
	}
	for _, tc := range cases {
		if got := LabelOf(tc.key, tc.locale); got != tc.want {
			t.Fatalf("LabelOf(%s, %s) expected %q, got %q", tc.key, tc.locale, tc.want, got)
		}
	}
}

func TestThresholdsOf_Sampling(t *testing.T) {
	th := ThresholdsOf(StatusSampling)
	if th.YellowDays == nil || *th.YellowDays != 10 {
		t.Fatalf("expected SAMPLING yellow threshold 10, got %v", th.YellowDays)
	}
	if th.RedDays != nil {
		t.Fatalf("expected SAMPLING to have no red threshold, got %d", *th.RedDays)
	}
}

func TestThresholdsOf_NoneForTerminalAndUnknown(t *testing.T) {
	for _, key := range []StatusKey{StatusCompleted, StatusCancelled, StatusKey("NOPE")} {
		th := ThresholdsOf(key)
		if th.YellowDays != nil || th.RedDays != nil {
			t.Fatalf("expected no thresholds for %s", key)
		}
	}
}

func TestThresholdsOf_ReturnsCopies(t *testing.T) {
	th := ThresholdsOf(StatusProducing)
	*th.YellowDays = 999
	if again := ThresholdsOf(StatusProducing); *again.YellowDays != 14 {
		t.Fatalf("registry was mutated through a returned threshold: %d", *again.YellowDays)
	}
}

func TestThresholds_YellowBeforeRed(t *testing.T) {
	for _, key := range AllStatuses() {
		th := ThresholdsOf(key)
		if th.YellowDays != nil && th.RedDays != nil && *th.YellowDays > *th.RedDays {
			t.Fatalf("%s: yellow %d is after red %d", key, *th.YellowDays, *th.RedDays)
		}
	}
}

func TestParseLocale(t *testing.T) {
	cases := map[string]Locale{
		"en":    LocaleEN,
		"zh-TW": LocaleZhTW,
		"zh_cn": LocaleZhCN,
		"":      DefaultLocale,
		"de":    DefaultLocale,
	}
	for in, want := range cases {
		if got := ParseLocale(in); got != want {
			t.Fatalf("ParseLocale(%q) expected %s, got %s", in, want, got)
		}
	}
}
