package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/Zacy-Sokach/PolyWrite/internal/models"
)

var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))

	PaneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	FocusedPaneStyle = PaneStyle.
				BorderForeground(lipgloss.Color("39"))

	SelectedRowStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("231")).
				Background(lipgloss.Color("237"))

	DimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244"))

	ErrorTextStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("203"))

	SuggestionStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("63")).
			Foreground(lipgloss.Color("250")).
			Italic(true).
			Padding(0, 1)

	StatusBarStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			Background(lipgloss.Color("236")).
			Padding(0, 1)

	badgeBase = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1)
)

// badgeColors 每种状态的徽标颜色
var badgeColors = map[models.State]lipgloss.Color{
	models.StateIdle:        lipgloss.Color("244"),
	models.StateChecking:    lipgloss.Color("220"),
	models.StateDownloading: lipgloss.Color("39"),
	models.StateReady:       lipgloss.Color("42"),
	models.StateUnavailable: lipgloss.Color("208"),
	models.StateError:       lipgloss.Color("196"),
}

// Badge 渲染状态徽标
func Badge(state models.State) string {
	color, ok := badgeColors[state]
	if !ok {
		color = lipgloss.Color("244")
	}
	return badgeBase.
		Foreground(lipgloss.Color("16")).
		Background(color).
		Render(string(state))
}
