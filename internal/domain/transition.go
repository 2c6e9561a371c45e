package domain

// ActionID names a quick action offered for a status.
type ActionID string

const (
	ActionToQuote            ActionID = "to_quote"
	ActionQuoteConfirmed     ActionID = "quote_confirmed"
	ActionDraftSent          ActionID = "draft_sent"
	ActionDraftConfirm       ActionID = "draft_confirm"
	ActionDraftModify        ActionID = "draft_modify"
	ActionDraftResent        ActionID = "draft_resent"
	ActionSamplingStart      ActionID = "sampling_start"
	ActionSamplingSent       ActionID = "sampling_sent"
	ActionSamplingConfirm    ActionID = "sampling_confirm"
	ActionSamplingModify     ActionID = "sampling_modify"
	ActionSamplingRestart    ActionID = "sampling_restart"
	ActionProductionStart    ActionID = "production_start"
	ActionProductionComplete ActionID = "production_complete"

	// Synthetic ids recorded for entries that do not come from a quick action.
	ActionCreate ActionID = "create"
	ActionSkip   ActionID = "skip"
	ActionCancel ActionID = "cancel"

	// ActionUndo only appears in events; undo removes history rather than
	// recording it.
	ActionUndo ActionID = "undo"
)

// Transition is one configured forward edge of the workflow.
type Transition struct {
	From           StatusKey         `json:"from"`
	Action         ActionID          `json:"action"`
	To             StatusKey         `json:"to"`
	RequiresReason bool              `json:"requires_reason"`
	Labels         map[Locale]string `json:"labels"`
}

func (t Transition) Label(locale Locale) string {
	return localized(t.Labels, locale, string(t.Action))
}

var quickActions = map[StatusKey][]Transition{
	StatusNewOrder: {
		{Action: ActionToQuote, To: StatusQuoteConfirming,
			Labels: map[Locale]string{LocaleZhCN: "发报价", LocaleZhTW: "發報價", LocaleEN: "Send quote"}},
	},
	StatusQuoteConfirming: {
		{Action: ActionQuoteConfirmed, To: StatusDraftMaking,
			Labels: map[Locale]string{LocaleZhCN: "客户确认", LocaleZhTW: "客戶確認", LocaleEN: "Customer confirmed"}},
	},
	StatusDraftMaking: {
		{Action: ActionDraftSent, To: StatusDraftConfirming,
			Labels: map[Locale]string{LocaleZhCN: "发图稿", LocaleZhTW: "發圖稿", LocaleEN: "Send artwork"}},
	},
	StatusDraftConfirming: {
		{Action: ActionDraftConfirm, To: StatusPendingSample,
			Labels: map[Locale]string{LocaleZhCN: "图稿确认", LocaleZhTW: "圖稿確認", LocaleEN: "Artwork approved"}},
		{Action: ActionDraftModify, To: StatusDraftRevising, RequiresReason: true,
			Labels: map[Locale]string{LocaleZhCN: "需修改", LocaleZhTW: "需修改", LocaleEN: "Needs revision"}},
	},
	StatusDraftRevising: {
		{Action: ActionDraftResent, To: StatusDraftConfirming,
			Labels: map[Locale]string{LocaleZhCN: "重新发图", LocaleZhTW: "重新發圖", LocaleEN: "Resend artwork"}},
	},
	StatusPendingSample: {
		{Action: ActionSamplingStart, To: StatusSampling,
			Labels: map[Locale]string{LocaleZhCN: "开始打样", LocaleZhTW: "開始打樣", LocaleEN: "Start sampling"}},
	},
	StatusSampling: {
		{Action: ActionSamplingSent, To: StatusSampleConfirming,
			Labels: map[Locale]string{LocaleZhCN: "打样待确认", LocaleZhTW: "打樣待確認", LocaleEN: "Sample sent"}},
	},
	StatusSampleConfirming: {
		{Action: ActionSamplingConfirm, To: StatusPendingProduction,
			Labels: map[Locale]string{LocaleZhCN: "样品确认", LocaleZhTW: "樣品確認", LocaleEN: "Sample approved"}},
		{Action: ActionSamplingModify, To: StatusSampleRevising, RequiresReason: true,
			Labels: map[Locale]string{LocaleZhCN: "需修改", LocaleZhTW: "需修改", LocaleEN: "Needs revision"}},
	},
	StatusSampleRevising: {
		{Action: ActionSamplingRestart, To: StatusSampling,
			Labels: map[Locale]string{LocaleZhCN: "重新打样", LocaleZhTW: "重新打樣", LocaleEN: "Restart sampling"}},
	},
	StatusPendingProduction: {
		{Action: ActionProductionStart, To: StatusProducing,
			Labels: map[Locale]string{LocaleZhCN: "开始生产", LocaleZhTW: "開始生產", LocaleEN: "Start production"}},
	},
	StatusProducing: {
		{Action: ActionProductionComplete, To: StatusCompleted,
			Labels: map[Locale]string{LocaleZhCN: "生产完成", LocaleZhTW: "生產完成", LocaleEN: "Production complete"}},
	},
}

func init() {
	for from, ts := range quickActions {
		for i := range ts {
			ts[i].From = from
		}
	}
}

// transitionOrder is the happy path used to compute skip targets.
// CANCELLED is deliberately absent.
var transitionOrder = []StatusKey{
	StatusNewOrder,
	StatusQuoteConfirming,
	StatusDraftMaking,
	StatusDraftConfirming,
	StatusDraftRevising,
	StatusPendingSample,
	StatusSampling,
	StatusSampleConfirming,
	StatusSampleRevising,
	StatusPendingProduction,
	StatusProducing,
	StatusCompleted,
}

func TransitionOrder() []StatusKey {
	return append([]StatusKey(nil), transitionOrder...)
}

// LegalActionsOf returns the quick actions configured for status.
// Terminal and unknown statuses have none.
func LegalActionsOf(status StatusKey) []Transition {
	ts := quickActions[status]
	out := make([]Transition, len(ts))
	for i, t := range ts {
		t.Labels = copyNames(t.Labels)
		out[i] = t
	}
	return out
}

func FindAction(status StatusKey, action ActionID) (Transition, bool) {
	for _, t := range quickActions[status] {
		if t.Action == action {
			t.Labels = copyNames(t.Labels)
			return t, true
		}
	}
	return Transition{}, false
}

// SkippableTargets returns every status strictly after status on the happy
// path, leaving out revision statuses and CANCELLED.
func SkippableTargets(status StatusKey) []StatusKey {
	pos := -1
	for i, s := range transitionOrder {
		if s == status {
			pos = i
			break
		}
	}
	if pos < 0 {
		return nil
	}
	var out []StatusKey
	for _, s := range transitionOrder[pos+1:] {
		if s.IsRevision() || s == StatusCancelled {
			continue
		}
		out = append(out, s)
	}
	return out
}

func CanSkipTo(from, to StatusKey) bool {
	for _, s := range SkippableTargets(from) {
		if s == to {
			return true
		}
	}
	return false
}
