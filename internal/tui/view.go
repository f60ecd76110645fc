package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// View renders the current screen.
func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}
	if m.screen == screenLobby {
		return m.viewLobby()
	}
	return m.viewTable()
}

func (m *Model) viewLobby() string {
	var b strings.Builder

	b.WriteString(HeaderStyle.Render(" Big Two "))
	b.WriteString("  ")
	b.WriteString(InfoStyle.Render("playing as " + m.session.Username))
	b.WriteString("\n\n")

	if m.loading {
		b.WriteString(m.spin.View() + " loading...\n")
	} else if len(m.rooms) == 0 {
		b.WriteString(InfoStyle.Render("No open rooms. Type 'new' to host one.") + "\n")
	} else {
		for _, rm := range m.rooms {
			line := fmt.Sprintf("  %s  %d/4 players  %s", rm.ID, rm.PlayerCount, rm.Status)
			b.WriteString(line + "\n")
		}
	}

	if m.status != "" {
		b.WriteString("\n" + WarningStyle.Render(m.status) + "\n")
	}

	b.WriteString("\n" + m.input.View() + "\n")
	b.WriteString(InfoStyle.Render("new • join <room> • list • quit"))
	return b.String()
}

func (m *Model) viewTable() string {
	actionContent := m.renderActionPane()
	actionHeight := lipgloss.Height(actionContent)

	actionWidth := max(m.width-2, 1)
	actionStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#04B575")).
		Width(actionWidth).
		Height(max(actionHeight-2, 1))
	actionPane := actionStyle.Render(actionContent)

	sidebarContent := m.renderSidebarPane()
	sidebarWidth := max(lipgloss.Width(sidebarContent), 25)
	paneHeight := max(m.height-actionHeight-4, 1)

	sidebarPane := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#626262")).
		Width(sidebarWidth).
		Height(paneHeight).
		Render(sidebarContent)

	logWidth := max(m.width-sidebarWidth-4, 1)
	m.logVP.Width = logWidth
	m.logVP.Height = paneHeight
	if !m.initialized {
		m.logVP.SetContent(strings.Join(m.gameLog, "\n"))
		m.logVP.GotoBottom()
		m.initialized = true
	}

	logPane := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#626262")).
		Width(logWidth).
		Height(paneHeight).
		Render(m.logVP.View())

	topRow := lipgloss.JoinHorizontal(lipgloss.Top, logPane, sidebarPane)
	return lipgloss.JoinVertical(lipgloss.Top, topRow, actionPane)
}

// renderSidebarPane lists the seats: name, card count, ready and
// connection marks, host and turn markers.
func (m *Model) renderSidebarPane() string {
	var b strings.Builder

	b.WriteString(HeaderStyle.Render(" Room " + m.room.ID + " "))
	b.WriteString("\n\n")

	botSet := make(map[string]bool, len(m.bots))
	for _, id := range m.bots {
		botSet[id] = true
	}

	for _, id := range m.room.Players {
		marker := "  "
		if id == m.turn && m.gameOn {
			marker = TurnStyle.Render("▶ ")
		}
		name := m.nameOf(id)
		if m.isMe(id) {
			name += " (you)"
		}

		var tags []string
		if id == m.room.Host {
			tags = append(tags, "host")
		}
		if botSet[id] {
			tags = append(tags, "bot")
		} else if !m.connected[id] {
			tags = append(tags, "away")
		}
		if !m.gameOn && m.readySet[id] {
			tags = append(tags, SuccessStyle.Render("ready"))
		}

		line := marker + name
		if m.gameOn {
			line += fmt.Sprintf("  %d cards", m.cardCounts[id])
		}
		if len(tags) > 0 {
			line += "  " + InfoStyle.Render(strings.Join(tags, ","))
		}
		b.WriteString(line + "\n")
	}

	if m.gameOn && len(m.lastPlay) > 0 {
		b.WriteString("\n")
		b.WriteString(InfoStyle.Render("To beat: ") + formatCards(m.lastPlay))
		b.WriteString("\n")
		b.WriteString(InfoStyle.Render("by " + m.nameOf(m.lastSeat)))
		b.WriteString("\n")
	}

	return b.String()
}

func (m *Model) renderActionPane() string {
	var b strings.Builder

	if m.gameOn {
		b.WriteString(HandInfoStyle.Render("Hand: ") + formatCards(m.hand))
		b.WriteString("\n")
	}
	if m.status != "" {
		b.WriteString(m.status + "\n")
	}

	if m.gameOn && m.isMe(m.turn) {
		m.input.Placeholder = "play <cards> or pass"
	} else if m.gameOn {
		m.input.Placeholder = "say <msg> while you wait"
	} else {
		m.input.Placeholder = "ready, start, bot add, say <msg>, leave"
	}

	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(InfoStyle.Render("PgUp/PgDn scroll log • Ctrl+C quit"))
	return b.String()
}
