package tracking

import (
	"github.com/YelzhanWeb/printtrack/internal/domain"
	"github.com/YelzhanWeb/printtrack/internal/interfaces"
)

// Workflow describes the status registry, stages and transition graph
// with labels resolved for locale.
func (s *Service) Workflow(locale domain.Locale) interfaces.WorkflowDescription {
	desc := interfaces.WorkflowDescription{Locale: locale}

	for _, key := range domain.AllStatuses() {
		def, _ := domain.Definition(key)
		info := interfaces.StatusInfo{
			Key:          key,
			Label:        domain.LabelOf(key, locale),
			Stage:        domain.PrimaryStageOf(key),
			FilterGroups: domain.FilterGroupsOf(key),
			Thresholds:   def.Thresholds,
			Terminal:     def.Terminal,
			Revision:     def.Revision,
			SkipTargets:  domain.SkippableTargets(key),
		}
		for _, t := range domain.LegalActionsOf(key) {
			info.Actions = append(info.Actions, domain.ActionView{
				Action:         t.Action,
				Label:          t.Label(locale),
				To:             t.To,
				ToLabel:        domain.LabelOf(t.To, locale),
				RequiresReason: t.RequiresReason,
			})
		}
		desc.Statuses = append(desc.Statuses, info)
	}

	for _, st := range domain.PrimaryStages() {
		desc.Stages = append(desc.Stages, interfaces.StageInfo{
			ID:      st.ID,
			Name:    domain.StageName(st.ID, locale),
			Members: st.Members,
		})
	}
	for _, fg := range domain.FilterGroups() {
		desc.FilterGroups = append(desc.FilterGroups, interfaces.FilterGroupInfo{
			ID:      fg.ID,
			Name:    domain.FilterGroupName(fg.ID, locale),
			Members: fg.Members,
		})
	}
	return desc
}
