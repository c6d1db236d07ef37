package review

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"github.com/ledgermesh/ledgermesh/internal/model"
)

func listColumns(width int) []table.Column {
	return []table.Column{
		{Title: "ID", Width: 12},
		{Title: "Counterparty", Width: 28},
		{Title: "Amount", Width: 14},
		{Title: "Dir", Width: 6},
		{Title: "Conf", Width: 5},
		{Title: "Obs", Width: 4},
	}
}

func detailColumns(width int) []table.Column {
	return []table.Column{
		{Title: "Obs ID", Width: 14},
		{Title: "Source", Width: 8},
		{Title: "When", Width: 17},
		{Title: "Amount", Width: 14},
		{Title: "Dir", Width: 6},
		{Title: "Sel", Width: 3},
	}
}

func buildListRows(aggregates []model.Aggregate) []table.Row {
	rows := make([]table.Row, 0, len(aggregates))
	for _, a := range aggregates {
		rows = append(rows, table.Row{
			a.ID,
			counterpartyLabel(a.Counterparty),
			formatAmount(a.AmountMinor, a.Currency),
			string(a.Direction),
			fmt.Sprintf("%d", a.ConfidenceScore),
			fmt.Sprintf("%d", a.ObservationCount),
		})
	}
	return rows
}

func buildDetailRows(observations []model.Observation) []table.Row {
	return buildDetailRowsSelected(observations, nil)
}

func buildDetailRowsSelected(observations []model.Observation, selected map[string]bool) []table.Row {
	rows := make([]table.Row, 0, len(observations))
	for _, o := range observations {
		mark := " "
		if selected[o.ID] {
			mark = "x"
		}
		rows = append(rows, table.Row{
			o.ID,
			string(o.SourceType),
			formatTimestamp(o.Timestamp),
			formatAmount(o.AmountMinor, o.Currency),
			string(o.Direction),
			mark,
		})
	}
	return rows
}

func counterpartyLabel(v *string) string {
	if v == nil || *v == "" {
		return "(unknown)"
	}
	return *v
}

func formatAmount(minor int64, currency string) string {
	return fmt.Sprintf("%s %s", decimal.New(minor, -2).StringFixed(2), currency)
}

func formatTimestamp(ts *time.Time) string {
	if ts == nil {
		return "(none)"
	}
	return ts.Format("2006-01-02 15:04")
}

// View renders the active screen.
func (m Model) View() string {
	var b strings.Builder

	switch m.state {
	case stateDetail:
		b.WriteString(m.theme.Title.Render("Aggregate detail"))
		b.WriteString("\n")
		if m.current != nil {
			b.WriteString(m.theme.Subtitle.Render(fmt.Sprintf(
				"%s  %s  confidence %d  %d observation(s)",
				m.current.ID, formatAmount(m.current.AmountMinor, m.current.Currency),
				m.current.ConfidenceScore, m.current.ObservationCount,
			)))
			b.WriteString("\n\n")
		}
		b.WriteString(m.detail.View())
		b.WriteString("\n\n")
		b.WriteString(m.theme.HelpDesc.Render(
			"space select · x split selected · d mark duplicate · m merge into… · n notes… · g category… · p counterparty… · b back · q quit",
		))

	case statePrompt:
		b.WriteString(m.theme.Title.Render(promptLabel(m.prompt)))
		b.WriteString("\n")
		b.WriteString(m.input.View())
		b.WriteString("\n\n")
		b.WriteString(m.theme.HelpDesc.Render("enter confirm · esc cancel"))

	default:
		b.WriteString(m.theme.Title.Render("Review queue"))
		b.WriteString("\n")
		b.WriteString(m.theme.Subtitle.Render(fmt.Sprintf("%d aggregate(s) below confidence threshold %d", len(m.aggregates), m.threshold)))
		b.WriteString("\n\n")
		b.WriteString(m.list.View())
		b.WriteString("\n\n")
		b.WriteString(m.theme.HelpDesc.Render("enter open · r refresh · q quit"))
	}

	if m.status != "" {
		style := m.theme.StatusSuccess
		if !m.statusOK {
			style = m.theme.StatusError
		}
		b.WriteString("\n\n")
		b.WriteString(style.Render(m.status))
	}

	return lipgloss.NewStyle().Padding(1, 2).Render(b.String())
}

func promptLabel(k promptKind) string {
	switch k {
	case promptMergeTarget:
		return "Merge into aggregate ID"
	case promptEditNotes:
		return "Edit notes"
	case promptEditCategory:
		return "Edit category ID"
	case promptEditCounterparty:
		return "Edit counterparty"
	default:
		return "Input"
	}
}
