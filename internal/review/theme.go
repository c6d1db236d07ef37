// Package review is a charmbracelet/bubbletea terminal browser over the
// review queue (aggregates whose confidence_score sits below the
// configured threshold): a bubbles/table list driving a single bubbletea
// program, styled with lipgloss.
package review

import "github.com/charmbracelet/lipgloss"

// theme holds the lipgloss styles this package renders with.
type theme struct {
	Title         lipgloss.Style
	Subtitle      lipgloss.Style
	Normal        lipgloss.Style
	Bold          lipgloss.Style
	StatusError   lipgloss.Style
	StatusSuccess lipgloss.Style
	Muted         lipgloss.Style
	HelpKey       lipgloss.Style
	HelpDesc      lipgloss.Style
}

func defaultTheme() theme {
	primary := lipgloss.Color("#7c3aed")
	muted := lipgloss.Color("#737373")
	success := lipgloss.Color("#10b981")
	errColor := lipgloss.Color("#ef4444")

	return theme{
		Title: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#fafafa")).MarginBottom(1),
		Subtitle: lipgloss.NewStyle().Foreground(lipgloss.Color("#a3a3a3")),
		Normal: lipgloss.NewStyle().Foreground(lipgloss.Color("#fafafa")),
		Bold:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#fafafa")),
		StatusError:   lipgloss.NewStyle().Foreground(errColor),
		StatusSuccess: lipgloss.NewStyle().Foreground(success),
		Muted:         lipgloss.NewStyle().Foreground(muted),
		HelpKey:       lipgloss.NewStyle().Foreground(primary).Bold(true),
		HelpDesc:      lipgloss.NewStyle().Foreground(muted),
	}
}
