package tui

import "github.com/charmbracelet/lipgloss"

// Colors using AdaptiveColor for light/dark terminal support.
var (
	colorWhite  = lipgloss.AdaptiveColor{Light: "0", Dark: "15"}
	colorDim    = lipgloss.AdaptiveColor{Light: "242", Dark: "240"}
	colorGreen  = lipgloss.AdaptiveColor{Light: "28", Dark: "40"}
	colorRed    = lipgloss.AdaptiveColor{Light: "160", Dark: "196"}
	colorYellow = lipgloss.AdaptiveColor{Light: "136", Dark: "220"}
	colorCyan   = lipgloss.AdaptiveColor{Light: "30", Dark: "45"}
)

// Layout styles.
var (
	headerStyle = lipgloss.NewStyle().
			Bold(true)

	statusBarStyle = lipgloss.NewStyle().
			Foreground(colorWhite).
			Background(lipgloss.AdaptiveColor{Light: "235", Dark: "236"})

	focusedBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(colorWhite)

	unfocusedBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(colorDim)
)

// Record list styles.
var (
	brandStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)

	sectionHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(colorWhite)

	selectedItemStyle = lipgloss.NewStyle().
				Background(lipgloss.AdaptiveColor{Light: "254", Dark: "237"})

	recordOKStyle    = lipgloss.NewStyle().Foreground(colorGreen)
	recordErrorStyle = lipgloss.NewStyle().Foreground(colorRed)
	dimStyle         = lipgloss.NewStyle().Foreground(colorDim)
	labelStyle       = lipgloss.NewStyle().Width(16).Foreground(colorDim)
)

// Daemon badge styles.
var (
	badgeStoppedStyle  = lipgloss.NewStyle().Foreground(colorDim)
	badgePollingStyle  = lipgloss.NewStyle().Foreground(colorGreen).Bold(true)
	badgeStoppingStyle = lipgloss.NewStyle().Foreground(colorYellow).Bold(true)
)
