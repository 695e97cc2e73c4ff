package styles

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Rounded border characters
const (
	borderTopLeft     = "╭"
	borderTopRight    = "╮"
	borderBottomLeft  = "╰"
	borderBottomRight = "╯"
	borderHorizontal  = "─"
	borderVertical    = "│"
)

// RenderPanel draws content inside a rounded border of exactly width x height
// cells, with title embedded in the top edge: ╭─ Title ─────╮
func RenderPanel(content, title string, width, height int, focused bool) string {
	var borderColor lipgloss.TerminalColor = BorderDefaultColor
	if focused {
		borderColor = BorderFocusColor
	}
	border := lipgloss.NewStyle().Foreground(borderColor)
	titleStyle := lipgloss.NewStyle().Foreground(TextPrimaryColor).Bold(focused)

	inner := max(width-2, 1)
	rows := max(height-2, 1)

	body := lipgloss.NewStyle().Width(inner).Height(rows).MaxHeight(rows).Render(content)
	lines := strings.Split(body, "\n")

	var b strings.Builder
	b.WriteString(topEdge(title, inner, border, titleStyle))
	for i := 0; i < rows; i++ {
		var line string
		if i < len(lines) {
			line = lines[i]
		}
		if w := lipgloss.Width(line); w < inner {
			line += strings.Repeat(" ", inner-w)
		}
		b.WriteString("\n")
		b.WriteString(border.Render(borderVertical) + line + border.Render(borderVertical))
	}
	b.WriteString("\n")
	b.WriteString(border.Render(borderBottomLeft + strings.Repeat(borderHorizontal, inner) + borderBottomRight))
	return b.String()
}

func topEdge(title string, inner int, border, titleStyle lipgloss.Style) string {
	// "─ " + title + " " needs at least four cells
	if title == "" || inner < 4 {
		return border.Render(borderTopLeft + strings.Repeat(borderHorizontal, inner) + borderTopRight)
	}

	title = TruncateString(title, inner-4)
	rest := max(inner-3-lipgloss.Width(title), 0)
	return border.Render(borderTopLeft+borderHorizontal+" ") +
		titleStyle.Render(title) +
		border.Render(" "+strings.Repeat(borderHorizontal, rest)+borderTopRight)
}
