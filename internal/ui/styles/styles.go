// Package styles contains Lip Gloss style definitions.
package styles

import "github.com/charmbracelet/lipgloss"

var (
	// Text hierarchy
	TextPrimaryColor = lipgloss.AdaptiveColor{Light: "#2D3436", Dark: "#CCCCCC"}
	TextMutedColor   = lipgloss.AdaptiveColor{Light: "#999999", Dark: "#696969"}

	// Borders
	BorderDefaultColor = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#696969"}
	BorderFocusColor   = lipgloss.AdaptiveColor{Light: "#54A0FF", Dark: "#54A0FF"}

	// Console origins
	ConsoleStdoutColor = TextPrimaryColor
	ConsoleStderrColor = lipgloss.AdaptiveColor{Light: "#FF6B6B", Dark: "#FF8787"}
	ConsoleSystemColor = lipgloss.AdaptiveColor{Light: "#8839EF", Dark: "#CBA6F7"}

	// Interpreter state
	StateStoppedColor  = lipgloss.AdaptiveColor{Light: "#AAAAAA", Dark: "#BBBBBB"}
	StateStartingColor = lipgloss.AdaptiveColor{Light: "#FECA57", Dark: "#FECA57"}
	StateRunningColor  = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}
	StateStoppingColor = lipgloss.AdaptiveColor{Light: "#FF9F43", Dark: "#FF9F43"}

	// Toast borders
	ToastBorderSuccessColor = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}
	ToastBorderErrorColor   = lipgloss.AdaptiveColor{Light: "#FF6B6B", Dark: "#FF8787"}
	ToastBorderInfoColor    = lipgloss.AdaptiveColor{Light: "#54A0FF", Dark: "#54A0FF"}

	ConsoleStdoutStyle = lipgloss.NewStyle().Foreground(ConsoleStdoutColor)
	ConsoleStderrStyle = lipgloss.NewStyle().Foreground(ConsoleStderrColor)
	ConsoleSystemStyle = lipgloss.NewStyle().Foreground(ConsoleSystemColor).Italic(true)

	StatusBarStyle = lipgloss.NewStyle().Foreground(TextMutedColor)
	StatusKeyStyle = lipgloss.NewStyle().Foreground(TextPrimaryColor).Bold(true)
	StatusErrStyle = lipgloss.NewStyle().Foreground(ConsoleStderrColor)
)
