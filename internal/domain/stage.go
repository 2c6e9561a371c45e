package domain

// StageID identifies a primary stage. Every known status belongs to exactly
// one primary stage; unknown statuses map to StageUnclassified.
type StageID string

const (
	StageNewAndQuote  StageID = "new_and_quote"
	StageDraft        StageID = "draft"
	StageSampling     StageID = "sampling"
	StageProduction   StageID = "production"
	StageCompleted    StageID = "completed"
	StageCancelled    StageID = "cancelled"
	StageUnclassified StageID = "unclassified"
)

// FilterGroupID identifies an overlapping, purely presentational grouping.
type FilterGroupID string

const (
	FilterWaitingConfirm FilterGroupID = "waiting_confirm"
	FilterActive         FilterGroupID = "active"
	FilterRevising       FilterGroupID = "revising"
)

type PrimaryStage struct {
	ID      StageID           `json:"id"`
	Names   map[Locale]string `json:"names"`
	Members []StatusKey       `json:"members"`
	Ordinal int               `json:"ordinal"`
}

type FilterGroup struct {
	ID      FilterGroupID     `json:"id"`
	Names   map[Locale]string `json:"names"`
	Members []StatusKey       `json:"members"`
}

var primaryStages = []PrimaryStage{
	{
		ID:      StageNewAndQuote,
		Names:   map[Locale]string{LocaleZhCN: "新订单/询价", LocaleZhTW: "新訂單/詢價", LocaleEN: "New Order/Quote"},
		Members: []StatusKey{StatusNewOrder, StatusQuoteConfirming},
		Ordinal: 1,
	},
	{
		ID:      StageDraft,
		Names:   map[Locale]string{LocaleZhCN: "图稿阶段", LocaleZhTW: "圖稿階段", LocaleEN: "Draft Stage"},
		Members: []StatusKey{StatusDraftMaking, StatusDraftConfirming, StatusDraftRevising},
		Ordinal: 2,
	},
	{
		ID:      StageSampling,
		Names:   map[Locale]string{LocaleZhCN: "打样阶段", LocaleZhTW: "打樣階段", LocaleEN: "Sampling Stage"},
		Members: []StatusKey{StatusPendingSample, StatusSampling, StatusSampleConfirming, StatusSampleRevising},
		Ordinal: 3,
	},
	{
		ID:      StageProduction,
		Names:   map[Locale]string{LocaleZhCN: "生产阶段", LocaleZhTW: "生產階段", LocaleEN: "Production Stage"},
		Members: []StatusKey{StatusPendingProduction, StatusProducing},
		Ordinal: 4,
	},
	{
		ID:      StageCompleted,
		Names:   map[Locale]string{LocaleZhCN: "已完成", LocaleZhTW: "已完成", LocaleEN: "Completed"},
		Members: []StatusKey{StatusCompleted},
		Ordinal: 5,
	},
	{
		ID:      StageCancelled,
		Names:   map[Locale]string{LocaleZhCN: "已取消", LocaleZhTW: "已取消", LocaleEN: "Cancelled"},
		Members: []StatusKey{StatusCancelled},
		Ordinal: 6,
	},
}

var unclassifiedNames = map[Locale]string{LocaleZhCN: "其他", LocaleZhTW: "其他", LocaleEN: "Other"}

var filterGroups = []FilterGroup{
	{
		// Only statuses waiting on the overseas customer; DRAFT_MAKING is
		// internal work and does not belong here.
		ID:      FilterWaitingConfirm,
		Names:   map[Locale]string{LocaleZhCN: "等国外确认/询价", LocaleZhTW: "等國外確認/詢價", LocaleEN: "Waiting for Overseas Confirmation"},
		Members: []StatusKey{StatusQuoteConfirming, StatusDraftConfirming, StatusSampleConfirming},
	},
	{
		ID:      FilterActive,
		Names:   map[Locale]string{LocaleZhCN: "进行中", LocaleZhTW: "進行中", LocaleEN: "Active"},
		Members: activeStatuses(),
	},
	{
		ID:      FilterRevising,
		Names:   map[Locale]string{LocaleZhCN: "修改中", LocaleZhTW: "修改中", LocaleEN: "Revising"},
		Members: []StatusKey{StatusDraftRevising, StatusSampleRevising},
	},
}

func activeStatuses() []StatusKey {
	var out []StatusKey
	for _, def := range statusDefinitions {
		if !def.Terminal {
			out = append(out, def.Key)
		}
	}
	return out
}

var (
	stageByStatus   = map[StatusKey]StageID{}
	stageIndex      = map[StageID]int{}
	filtersByStatus = map[StatusKey][]FilterGroupID{}
	filterIndex     = map[FilterGroupID]int{}
)

func init() {
	for i, st := range primaryStages {
		stageIndex[st.ID] = i
		for _, s := range st.Members {
			stageByStatus[s] = st.ID
		}
	}
	for i, fg := range filterGroups {
		filterIndex[fg.ID] = i
		for _, s := range fg.Members {
			filtersByStatus[s] = append(filtersByStatus[s], fg.ID)
		}
	}
}

// PrimaryStageOf returns the single stage owning status.
func PrimaryStageOf(status StatusKey) StageID {
	if id, ok := stageByStatus[status]; ok {
		return id
	}
	return StageUnclassified
}

// FilterGroupsOf returns every filter group containing status, in
// declaration order. The result may be empty.
func FilterGroupsOf(status StatusKey) []FilterGroupID {
	groups := filtersByStatus[status]
	out := make([]FilterGroupID, len(groups))
	copy(out, groups)
	return out
}

func InFilterGroup(status StatusKey, id FilterGroupID) bool {
	for _, g := range filtersByStatus[status] {
		if g == id {
			return true
		}
	}
	return false
}

// PrimaryStages returns copies of the stages ordered by ordinal.
func PrimaryStages() []PrimaryStage {
	out := make([]PrimaryStage, len(primaryStages))
	for i, st := range primaryStages {
		out[i] = PrimaryStage{
			ID:      st.ID,
			Names:   copyNames(st.Names),
			Members: append([]StatusKey(nil), st.Members...),
			Ordinal: st.Ordinal,
		}
	}
	return out
}

func FilterGroups() []FilterGroup {
	out := make([]FilterGroup, len(filterGroups))
	for i, fg := range filterGroups {
		out[i] = FilterGroup{
			ID:      fg.ID,
			Names:   copyNames(fg.Names),
			Members: append([]StatusKey(nil), fg.Members...),
		}
	}
	return out
}

func (id StageID) IsKnown() bool {
	_, ok := stageIndex[id]
	return ok
}

func (id FilterGroupID) IsKnown() bool {
	_, ok := filterIndex[id]
	return ok
}

func StageName(id StageID, locale Locale) string {
	if i, ok := stageIndex[id]; ok {
		return localized(primaryStages[i].Names, locale, string(id))
	}
	return localized(unclassifiedNames, locale, string(id))
}

func FilterGroupName(id FilterGroupID, locale Locale) string {
	if i, ok := filterIndex[id]; ok {
		return localized(filterGroups[i].Names, locale, string(id))
	}
	return string(id)
}

func localized(names map[Locale]string, locale Locale, fallback string) string {
	if s, ok := names[locale]; ok && s != "" {
		return s
	}
	if s, ok := names[DefaultLocale]; ok && s != "" {
		return s
	}
	return fallback
}

func copyNames(in map[Locale]string) map[Locale]string {
	out := make(map[Locale]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
