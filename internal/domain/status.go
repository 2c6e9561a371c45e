package domain

// StatusKey is the persisted identifier of a point in the order lifecycle.
// Keys are stable strings; display text always comes from LabelOf.
type StatusKey string

const (
	StatusNewOrder          StatusKey = "NEW_ORDER"
	StatusQuoteConfirming   StatusKey = "QUOTE_CONFIRMING"
	StatusDraftMaking       StatusKey = "DRAFT_MAKING"
	StatusDraftConfirming   StatusKey = "DRAFT_CONFIRMING"
	StatusDraftRevising     StatusKey = "DRAFT_REVISING"
	StatusPendingSample     StatusKey = "PENDING_SAMPLE"
	StatusSampling          StatusKey = "SAMPLING"
	StatusSampleConfirming  StatusKey = "SAMPLE_CONFIRMING"
	StatusSampleRevising    StatusKey = "SAMPLE_REVISING"
	StatusPendingProduction StatusKey = "PENDING_PRODUCTION"
	StatusProducing         StatusKey = "PRODUCING"
	StatusCompleted         StatusKey = "COMPLETED"
	StatusCancelled         StatusKey = "CANCELLED"
)

type Locale string

const (
	LocaleZhCN Locale = "zh_cn"
	LocaleZhTW Locale = "zh_tw"
	LocaleEN   Locale = "en"

	DefaultLocale = LocaleZhCN
)

// ParseLocale maps a caller supplied tag to a supported locale.
// Unknown or empty tags fall back to DefaultLocale.
func ParseLocale(tag string) Locale {
	switch Locale(tag) {
	case LocaleZhCN, LocaleZhTW, LocaleEN:
		return Locale(tag)
	}
	switch tag {
	case "zh-CN", "zh-Hans", "zh":
		return LocaleZhCN
	case "zh-TW", "zh-HK", "zh-Hant":
		return LocaleZhTW
	case "en-US", "en-GB":
		return LocaleEN
	}
	return DefaultLocale
}

// Thresholds holds the SLA limits of a status in whole days.
// A nil limit means the status never reaches that severity.
type Thresholds struct {
	YellowDays *int `json:"yellow_days"`
	RedDays    *int `json:"red_days"`
}

// StatusDefinition describes one status of the registry.
type StatusDefinition struct {
	Key        StatusKey         `json:"key"`
	Labels     map[Locale]string `json:"labels"`
	Thresholds Thresholds        `json:"thresholds"`
	Terminal   bool              `json:"terminal"`
	Revision   bool              `json:"revision"`
}

func days(n int) *int { return &n }

var statusDefinitions = []StatusDefinition{
	{
		Key:        StatusNewOrder,
		Labels:     map[Locale]string{LocaleZhCN: "新订单", LocaleZhTW: "新訂單", LocaleEN: "New Order"},
		Thresholds: Thresholds{YellowDays: days(5), RedDays: days(7)},
	},
	{
		Key:        StatusQuoteConfirming,
		Labels:     map[Locale]string{LocaleZhCN: "报价待确认", LocaleZhTW: "報價待確認", LocaleEN: "Quote Pending Confirmation"},
		Thresholds: Thresholds{YellowDays: days(3), RedDays: days(5)},
	},
	{
		Key:        StatusDraftMaking,
		Labels:     map[Locale]string{LocaleZhCN: "图稿制作中", LocaleZhTW: "圖稿製作中", LocaleEN: "Artwork in Progress"},
		Thresholds: Thresholds{YellowDays: days(2), RedDays: days(4)},
	},
	{
		Key:        StatusDraftConfirming,
		Labels:     map[Locale]string{LocaleZhCN: "图稿待确认", LocaleZhTW: "圖稿待確認", LocaleEN: "Artwork Pending Confirmation"},
		Thresholds: Thresholds{YellowDays: days(3), RedDays: days(5)},
	},
	{
		Key:        StatusDraftRevising,
		Labels:     map[Locale]string{LocaleZhCN: "图稿修改中", LocaleZhTW: "圖稿修改中", LocaleEN: "Artwork Revising"},
		Thresholds: Thresholds{YellowDays: days(2), RedDays: days(4)},
		Revision:   true,
	},
	{
		Key:        StatusPendingSample,
		Labels:     map[Locale]string{LocaleZhCN: "待打样", LocaleZhTW: "待打樣", LocaleEN: "Pending Sample"},
		Thresholds: Thresholds{YellowDays: days(5), RedDays: days(7)},
	},
	{
		// Sampling only warns; it is an open-ended monitoring status.
		Key:        StatusSampling,
		Labels:     map[Locale]string{LocaleZhCN: "打样中", LocaleZhTW: "打樣中", LocaleEN: "Sampling"},
		Thresholds: Thresholds{YellowDays: days(10)},
	},
	{
		Key:        StatusSampleConfirming,
		Labels:     map[Locale]string{LocaleZhCN: "打样待确认", LocaleZhTW: "打樣待確認", LocaleEN: "Sample Pending Confirmation"},
		Thresholds: Thresholds{YellowDays: days(2), RedDays: days(3)},
	},
	{
		Key:        StatusSampleRevising,
		Labels:     map[Locale]string{LocaleZhCN: "打样修改中", LocaleZhTW: "打樣修改中", LocaleEN: "Sample Revising"},
		Thresholds: Thresholds{YellowDays: days(3), RedDays: days(5)},
		Revision:   true,
	},
	{
		Key:        StatusPendingProduction,
		Labels:     map[Locale]string{LocaleZhCN: "待生产", LocaleZhTW: "待生產", LocaleEN: "Pending Production"},
		Thresholds: Thresholds{YellowDays: days(3), RedDays: days(5)},
	},
	{
		Key:        StatusProducing,
		Labels:     map[Locale]string{LocaleZhCN: "生产中", LocaleZhTW: "生產中", LocaleEN: "Producing"},
		Thresholds: Thresholds{YellowDays: days(14), RedDays: days(21)},
	},
	{
		Key:      StatusCompleted,
		Labels:   map[Locale]string{LocaleZhCN: "已完成", LocaleZhTW: "已完成", LocaleEN: "Completed"},
		Terminal: true,
	},
	{
		Key:      StatusCancelled,
		Labels:   map[Locale]string{LocaleZhCN: "已取消", LocaleZhTW: "已取消", LocaleEN: "Cancelled"},
		Terminal: true,
	},
}

var statusIndex = func() map[StatusKey]int {
	idx := make(map[StatusKey]int, len(statusDefinitions))
	for i, def := range statusDefinitions {
		idx[def.Key] = i
	}
	return idx
}()

// AllStatuses returns every known status in declaration order.
func AllStatuses() []StatusKey {
	keys := make([]StatusKey, len(statusDefinitions))
	for i, def := range statusDefinitions {
		keys[i] = def.Key
	}
	return keys
}

// Definition returns a copy of the registry entry for key.
func Definition(key StatusKey) (StatusDefinition, bool) {
	i, ok := statusIndex[key]
	if !ok {
		return StatusDefinition{}, false
	}
	def := statusDefinitions[i]
	labels := make(map[Locale]string, len(def.Labels))
	for l, s := range def.Labels {
		labels[l] = s
	}
	def.Labels = labels
	def.Thresholds = ThresholdsOf(key)
	return def, true
}

func (s StatusKey) IsKnown() bool {
	_, ok := statusIndex[s]
	return ok
}

func (s StatusKey) IsTerminal() bool {
	i, ok := statusIndex[s]
	return ok && statusDefinitions[i].Terminal
}

// IsRevision reports whether s is a rework status entered through a
// "needs revision" action.
func (s StatusKey) IsRevision() bool {
	i, ok := statusIndex[s]
	return ok && statusDefinitions[i].Revision
}

func (s StatusKey) String() string { return string(s) }

// LabelOf returns the display label of key in locale. Missing locales fall
// back to DefaultLocale and unknown keys to the raw key, because stored
// history may reference statuses from an older schema.
func LabelOf(key StatusKey, locale Locale) string {
	i, ok := statusIndex[key]
	if !ok {
		return string(key)
	}
	labels := statusDefinitions[i].Labels
	if s, ok := labels[locale]; ok && s != "" {
		return s
	}
	if s, ok := labels[DefaultLocale]; ok && s != "" {
		return s
	}
	return string(key)
}

// ThresholdsOf returns the SLA thresholds of key. Unknown and terminal
// statuses have none.
func ThresholdsOf(key StatusKey) Thresholds {
	i, ok := statusIndex[key]
	if !ok || statusDefinitions[i].Terminal {
		return Thresholds{}
	}
	t := statusDefinitions[i].Thresholds
	var out Thresholds
	if t.YellowDays != nil {
		out.YellowDays = days(*t.YellowDays)
	}
	if t.RedDays != nil {
		out.RedDays = days(*t.RedDays)
	}
	return out
}
