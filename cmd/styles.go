package cmd

import "github.com/charmbracelet/lipgloss"

var (
	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	badgeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("231")).
			Background(lipgloss.Color("161")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170"))

	dimStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))

	activeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
)
