package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/csheth/pagelens/internal/guide"
)

func (m *model) View() string {
	if m.session == nil {
		return m.viewOpen()
	}
	return m.viewDisplay()
}

func (m *model) viewOpen() string {
	parts := []string{
		lipgloss.JoinVertical(lipgloss.Left, renderLogo(), taglineStyle.Render(heroTagline)),
		helperStyle.Render("Type a file path or an http(s) URL and press Enter. Esc quits."),
	}
	parts = append(parts, m.messageLines()...)
	if m.helpVisible {
		parts = append(parts, m.helpView())
	}
	parts = append(parts, m.input.View(), m.statusBarView())
	return joinNonEmpty(parts)
}

func (m *model) viewDisplay() string {
	parts := []string{
		m.headerView(),
		pageBoxStyle.Render(m.viewport.View()),
	}
	if results := m.resultsView(); results != "" {
		parts = append(parts, results)
	}
	parts = append(parts, joinLines(
		sectionHeaderStyle.Render("Response"),
		m.responseViewport.View(),
	))
	parts = append(parts, m.messageLines()...)
	if m.helpVisible {
		if legend := m.keyLegendView(); legend != "" {
			parts = append(parts, legend)
		}
		parts = append(parts, m.helpView())
	}
	parts = append(parts, m.inputView(), m.statusBarView())
	return joinNonEmpty(parts)
}

func (m *model) headerView() string {
	state := m.session.Snapshot()
	title := heroTitleStyle.Render(state.Name)
	meta := helperStyle.Render(fmt.Sprintf("Page %d of %d", state.Page, state.NumPages))
	return lipgloss.JoinHorizontal(lipgloss.Top, title, "  ", meta)
}

func (m *model) messageLines() []string {
	var lines []string
	if m.errorMessage != "" {
		lines = append(lines, errorStyle.Render(m.errorMessage))
	}
	message := m.infoMessage
	if m.session != nil {
		if loading, text := m.session.Loading(); loading && text != "" {
			message = text
		}
	}
	if message != "" {
		if m.busy() {
			message = fmt.Sprintf("%s %s", m.spinner.View(), message)
		}
		lines = append(lines, helperStyle.Render(message))
	}
	return lines
}

func (m *model) inputView() string {
	label := "Command"
	if m.opening {
		label = "Open"
	}
	if m.focus != focusCommand {
		return helperStyle.Render(label + ": press i to type a command, o to open another file, ? for help")
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, sectionHeaderStyle.Render(label+" "), m.input.View())
}

func (m *model) focusLabel() string {
	switch {
	case m.focus == focusPage:
		return "PAGE"
	case m.opening:
		return "OPEN"
	default:
		return "COMMAND"
	}
}

func (m *model) llmLabel() string {
	switch {
	case m.config.LLM == nil:
		return "LLM off"
	case m.llmError != "":
		return "LLM offline"
	case m.llmStatus != nil && m.llmStatus.Connected:
		return m.config.LLM.Name() + " ●"
	default:
		return m.config.LLM.Name()
	}
}

func (m *model) statusBarView() string {
	stats := []string{m.focusLabel()}
	if m.session != nil {
		stats = append(stats, fmt.Sprintf("Page %d/%d", m.session.Page(), m.session.NumPages()))
		if m.highlightCount > 0 {
			stats = append(stats, fmt.Sprintf("Matches %d", m.highlightCount))
		}
		if len(m.exchanges) > 0 {
			stats = append(stats, fmt.Sprintf("Commands %d", len(m.exchanges)))
		}
	}
	stats = append(stats, m.llmLabel())
	stats = append(stats, m.jobStates.badges()...)
	return statusBarStyle.Render(strings.Join(stats, "  •  "))
}

type keyHint struct {
	Key         string
	Description string
}

func (m *model) keyLegendView() string {
	hints := []keyHint{
		{"←/→", "Prev/next page"},
		{"j/k", "Scroll page"},
		{"J/K", "Scroll response"},
		{"g/G", "Top or bottom"},
		{"n/N", "Next/prev result"},
		{"i", "Type a command"},
		{"o", "Open a file"},
		{"Esc", "Leave the input"},
		{"?", "Toggle cheatsheet"},
		{"q", "Quit"},
	}
	rows := []string{sectionHeaderStyle.Render("Navigation Cheatsheet")}
	const columns = 3
	for i := 0; i < len(hints); i += columns {
		end := i + columns
		if end > len(hints) {
			end = len(hints)
		}
		var cells []string
		for _, hint := range hints[i:end] {
			key := keyStyle.Render(hint.Key)
			desc := keyDescStyle.Render(" " + hint.Description + "  ")
			cells = append(cells, lipgloss.JoinHorizontal(lipgloss.Top, key, desc))
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	}
	return legendBoxStyle.Render(strings.Join(rows, "\n"))
}

func (m *model) helpView() string {
	meta := guide.Metadata{}
	if m.session != nil {
		meta.Document = m.session.Name
		meta.Pages = m.session.NumPages()
	}
	if m.config.LLM != nil {
		meta.Model = m.config.LLM.Name()
	}
	wrap := m.wrapWidth(8)
	lines := []string{sectionHeaderStyle.Render("Commands")}
	for _, step := range guide.Build(meta) {
		lines = append(lines, heroTitleStyle.Render(step.Title))
		lines = append(lines, helperStyle.Width(wrap).Render(step.Description))
		for _, example := range step.Examples {
			lines = append(lines, "  • "+example)
		}
	}
	return helpBoxStyle.Render(strings.Join(lines, "\n"))
}

func joinNonEmpty(parts []string) string {
	filtered := make([]string, 0, len(parts))
	for _, part := range parts {
		if strings.TrimSpace(part) == "" {
			continue
		}
		filtered = append(filtered, part)
	}
	return strings.Join(filtered, "\n\n")
}

func joinLines(parts ...string) string {
	return strings.Join(parts, "\n")
}

func renderLogo() string {
	if len(logoArtLines) == 0 {
		return ""
	}
	width := 0
	lineRunes := make([][]rune, len(logoArtLines))
	for i, line := range logoArtLines {
		runes := []rune(line)
		lineRunes[i] = runes
		if len(runes) > width {
			width = len(runes)
		}
	}
	width++
	height := len(logoArtLines) + 1

	type cell struct {
		r     rune
		style lipgloss.Style
	}

	grid := make([][]cell, height)
	for i := range grid {
		grid[i] = make([]cell, width)
	}
	for y, runes := range lineRunes {
		for x, r := range runes {
			if r == ' ' {
				continue
			}
			grid[y+1][x+1] = cell{r: r, style: logoShadowStyle}
		}
	}
	for y, runes := range lineRunes {
		for x, r := range runes {
			if r == ' ' {
				continue
			}
			grid[y][x] = cell{r: r, style: logoFaceStyle}
		}
	}

	lines := make([]string, height)
	for y, row := range grid {
		var b strings.Builder
		for _, c := range row {
			if c.r == 0 {
				b.WriteRune(' ')
				continue
			}
			b.WriteString(c.style.Render(string(c.r)))
		}
		lines[y] = b.String()
	}
	return logoContainerStyle.Render(strings.Join(lines, "\n"))
}
