package review

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ledgermesh/ledgermesh/internal/model"
)

type queueLoadedMsg struct {
	aggregates []model.Aggregate
}

type detailLoadedMsg struct {
	aggregate    model.Aggregate
	observations []model.Observation
}

type opResultMsg struct {
	err        error
	message    string
	backToList bool
}

func (m Model) loadQueue() tea.Cmd {
	return func() tea.Msg {
		aggs, err := m.store.GetForReview(m.ctx, m.threshold)
		if err != nil {
			return opResultMsg{err: fmt.Errorf("loading review queue: %w", err)}
		}
		return queueLoadedMsg{aggregates: aggs}
	}
}

func (m Model) loadDetail(aggregateID string) tea.Cmd {
	return func() tea.Msg {
		agg, err := m.store.GetAggregateByID(m.ctx, aggregateID)
		if err != nil {
			return opResultMsg{err: fmt.Errorf("loading aggregate %s: %w", aggregateID, err)}
		}
		obs, err := m.store.GetForAggregate(m.ctx, aggregateID)
		if err != nil {
			return opResultMsg{err: fmt.Errorf("loading observations for %s: %w", aggregateID, err)}
		}
		return detailLoadedMsg{aggregate: *agg, observations: obs}
	}
}

func (m Model) markDuplicate(aggregateID, observationID string) tea.Cmd {
	return func() tea.Msg {
		if err := m.ops.MarkDuplicate(m.ctx, aggregateID, observationID); err != nil {
			return opResultMsg{err: fmt.Errorf("marking %s duplicate: %w", observationID, err)}
		}
		return opResultMsg{message: fmt.Sprintf("marked %s duplicate", observationID)}
	}
}

func (m Model) split(sourceID string, observationIDs []string) tea.Cmd {
	return func() tea.Msg {
		_, created, err := m.ops.Split(m.ctx, sourceID, observationIDs)
		if err != nil {
			return opResultMsg{err: fmt.Errorf("splitting %s: %w", sourceID, err)}
		}
		return opResultMsg{message: fmt.Sprintf("split into new aggregate %s", created.ID)}
	}
}

func (m Model) forceMerge(sourceID, targetID string) tea.Cmd {
	return func() tea.Msg {
		if targetID == "" {
			return opResultMsg{err: fmt.Errorf("merge target id is required")}
		}
		merged, err := m.ops.ForceMerge(m.ctx, targetID, sourceID)
		if err != nil {
			return opResultMsg{err: fmt.Errorf("merging %s into %s: %w", sourceID, targetID, err)}
		}
		return opResultMsg{message: fmt.Sprintf("merged into %s", merged.ID), backToList: true}
	}
}

func (m Model) editField(aggregateID, fieldName, newValue string) tea.Cmd {
	oldValue := m.currentFieldValue(fieldName)
	return func() tea.Msg {
		updated, err := m.ops.EditField(m.ctx, aggregateID, fieldName, oldValue, newValue)
		if err != nil {
			return opResultMsg{err: fmt.Errorf("editing %s on %s: %w", fieldName, aggregateID, err)}
		}
		if updated == nil {
			return opResultMsg{err: fmt.Errorf("unrecognized field %q", fieldName)}
		}
		return opResultMsg{message: fmt.Sprintf("updated %s", fieldName)}
	}
}

// currentFieldValue reads the pre-edit value straight from the loaded
// aggregate purely for the ops-log entry; edit_field enforces no check
// against it.
func (m Model) currentFieldValue(fieldName string) string {
	if m.current == nil {
		return ""
	}
	switch fieldName {
	case "categoryId":
		if m.current.CategoryID != nil {
			return fmt.Sprintf("%d", *m.current.CategoryID)
		}
		return ""
	case "userNotes":
		if m.current.UserNotes != nil {
			return *m.current.UserNotes
		}
		return ""
	case "canonicalCounterparty":
		if m.current.Counterparty != nil {
			return *m.current.Counterparty
		}
		return ""
	default:
		return ""
	}
}
