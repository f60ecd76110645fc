// Package tui is the Bubble Tea terminal client: a lobby for finding
// rooms and a table view for playing.
package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"github.com/mkchan/bigtwo/internal/card"
	"github.com/mkchan/bigtwo/internal/client"
	"github.com/mkchan/bigtwo/internal/protocol"
)

type screen int

const (
	screenLobby screen = iota
	screenTable
)

// Model is the Bubble Tea model for the whole client.
type Model struct {
	rest   *client.REST
	logger *log.Logger

	screen screen
	spin   spinner.Model
	input  textinput.Model
	logVP  viewport.Model

	width       int
	height      int
	initialized bool
	quitting    bool
	loading     bool

	session client.Session
	rooms   []client.RoomSummary

	// table state, rebuilt from server frames
	room       client.Room
	conn       *client.GameConn
	names      map[string]string
	bots       []string
	readySet   map[string]bool
	connected  map[string]bool
	hand       []string
	cardCounts map[string]int
	turn       string
	lastPlay   []string
	lastSeat   string
	gameOn     bool
	gameLog    []string
	status     string
}

// Messages delivered by commands.

type roomsMsg []client.RoomSummary

type joinedMsg struct {
	room client.Room
	conn *client.GameConn
}

type frameMsg protocol.Envelope

type connClosedMsg struct{}

type errMsg struct{ err error }

// NewModel builds the client model. The REST client must already hold
// a session token.
func NewModel(rest *client.REST, session client.Session, logger *log.Logger) *Model {
	ti := textinput.New()
	ti.Placeholder = "new, join <room>, list, quit"
	ti.Focus()
	ti.CharLimit = 200
	ti.Prompt = "> "
	ti.PromptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")).Bold(true)

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	vp := viewport.New(10, 5)

	return &Model{
		rest:    rest,
		logger:  logger.WithPrefix("tui"),
		screen:  screenLobby,
		spin:    sp,
		input:   ti,
		logVP:   vp,
		session: session,
	}
}

// Init fetches the initial room list.
func (m *Model) Init() tea.Cmd {
	m.loading = true
	return tea.Batch(textinput.Blink, m.spin.Tick, m.listRooms())
}

// Update handles messages.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quit()
			return m, tea.Sequence(tea.ClearScreen, tea.Quit)
		case "enter":
			if cmd := m.handleInput(strings.TrimSpace(m.input.Value())); cmd != nil {
				cmds = append(cmds, cmd)
			}
			m.input.SetValue("")
			if m.quitting {
				return m, tea.Sequence(tea.ClearScreen, tea.Quit)
			}
		case "pgup":
			m.logVP.HalfPageUp()
		case "pgdown":
			m.logVP.HalfPageDown()
		}

	case roomsMsg:
		m.loading = false
		m.rooms = msg

	case joinNowMsg:
		m.loading = true
		cmds = append(cmds, m.spin.Tick, m.joinRoom(msg.roomID))

	case joinedMsg:
		m.loading = false
		m.enterTable(msg.room, msg.conn)
		cmds = append(cmds, m.nextFrame())

	case frameMsg:
		m.handleFrame(protocol.Envelope(msg))
		cmds = append(cmds, m.nextFrame())

	case connClosedMsg:
		m.leaveTable("Connection closed.")

	case errMsg:
		m.loading = false
		m.pushLog(ErrorStyle.Render(msg.err.Error()))
		m.logger.Error("command failed", "error", msg.err)

	case spinner.TickMsg:
		if m.loading {
			var cmd tea.Cmd
			m.spin, cmd = m.spin.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.logVP, cmd = m.logVP.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m *Model) quit() {
	m.quitting = true
	if m.conn != nil {
		m.conn.Close()
		m.conn = nil
	}
}

// enterTable switches to the table screen for a freshly joined room.
func (m *Model) enterTable(rm client.Room, conn *client.GameConn) {
	m.screen = screenTable
	m.room = rm
	m.conn = conn
	m.names = rm.Names
	m.readySet = make(map[string]bool)
	m.connected = make(map[string]bool)
	m.cardCounts = make(map[string]int)
	m.hand = nil
	m.gameOn = false
	m.gameLog = nil
	m.status = ""
	m.input.Placeholder = "ready, start, play <cards>, pass, say <msg>, leave"
	m.pushLog(InfoStyle.Render("Joined room " + rm.ID))
}

// leaveTable returns to the lobby.
func (m *Model) leaveTable(reason string) {
	if m.conn != nil {
		m.conn.Close()
		m.conn = nil
	}
	m.screen = screenLobby
	m.input.Placeholder = "new, join <room>, list, quit"
	if reason != "" {
		m.status = reason
	}
}

// pushLog appends a line to the table log and keeps the viewport at
// the bottom.
func (m *Model) pushLog(line string) {
	m.gameLog = append(m.gameLog, line)
	m.logVP.SetContent(strings.Join(m.gameLog, "\n"))
	if m.logVP.Height > 0 && m.logVP.Width > 0 {
		m.logVP.GotoBottom()
	}
}

func (m *Model) nameOf(playerID string) string {
	if name, ok := m.names[playerID]; ok && name != "" {
		return name
	}
	if len(playerID) > 8 {
		return playerID[:8]
	}
	return playerID
}

func (m *Model) isMe(playerID string) bool {
	return playerID == m.session.PlayerID
}

// handleFrame folds one server envelope into the display state.
func (m *Model) handleFrame(env protocol.Envelope) {
	switch env.Type {
	case protocol.TypePlayersList:
		var p protocol.PlayersListPayload
		if env.DecodePayload(&p) != nil {
			return
		}
		m.room.Players = p.Players
		m.room.Host = p.Host
		m.names = p.Names
		m.bots = p.Bots
		m.readySet = make(map[string]bool, len(p.Ready))
		for _, id := range p.Ready {
			m.readySet[id] = true
		}
		m.connected = make(map[string]bool, len(p.Connected))
		for _, id := range p.Connected {
			m.connected[id] = true
		}

	case protocol.TypeHostChange:
		var p protocol.HostChangePayload
		if env.DecodePayload(&p) != nil {
			return
		}
		m.room.Host = p.Host
		m.pushLog(InfoStyle.Render(m.nameOf(p.Host) + " is now the host"))

	case protocol.TypeChat:
		var p protocol.ChatBroadcastPayload
		if env.DecodePayload(&p) != nil {
			return
		}
		m.pushLog(ChatStyle.Render(p.Name+": ") + p.Content)

	case protocol.TypeGameStarted:
		var p protocol.GameStartedPayload
		if env.DecodePayload(&p) != nil {
			return
		}
		m.gameOn = true
		m.hand = sortHand(p.Hand)
		m.cardCounts = p.CardCounts
		m.lastPlay = nil
		m.lastSeat = ""
		m.pushLog(HeaderStyle.Render(fmt.Sprintf(" Game %d ", p.GameNumber)) + " " +
			InfoStyle.Render(m.nameOf(p.OpeningPlayer)+" opens"))

	case protocol.TypeSnapshot:
		var p protocol.SnapshotPayload
		if env.DecodePayload(&p) != nil {
			return
		}
		m.gameOn = true
		m.hand = sortHand(p.Hand)
		m.cardCounts = p.CardCounts
		m.turn = p.Turn
		m.lastPlay = p.LastPlay
		m.lastSeat = p.LastSeat
		m.pushLog(InfoStyle.Render(fmt.Sprintf("Rejoined game %d in progress", p.GameNumber)))

	case protocol.TypeMovePlayed:
		var p protocol.MovePlayedPayload
		if env.DecodePayload(&p) != nil {
			return
		}
		m.cardCounts[p.Player] = p.Remaining
		m.lastPlay = p.Cards
		m.lastSeat = p.Player
		if m.isMe(p.Player) {
			m.hand = removeCards(m.hand, p.Cards)
		}
		m.pushLog(fmt.Sprintf("%s played %s  %s",
			m.nameOf(p.Player), formatCards(p.Cards), InfoStyle.Render(p.HandName)))

	case protocol.TypePassed:
		var p protocol.PassedPayload
		if env.DecodePayload(&p) != nil {
			return
		}
		m.pushLog(InfoStyle.Render(m.nameOf(p.Player) + " passed"))
		if p.TrickEnded {
			m.lastPlay = nil
			m.lastSeat = ""
			m.pushLog(InfoStyle.Render("Trick cleared, next player leads"))
		}

	case protocol.TypeTurnChange:
		var p protocol.TurnChangePayload
		if env.DecodePayload(&p) != nil {
			return
		}
		m.turn = p.Player
		if m.isMe(p.Player) {
			m.status = TurnStyle.Render("Your turn")
		} else {
			m.status = "Waiting for " + m.nameOf(p.Player)
		}

	case protocol.TypeGameWon:
		var p protocol.GameWonPayload
		if env.DecodePayload(&p) != nil {
			return
		}
		m.gameOn = false
		m.turn = ""
		m.status = ""
		m.pushLog(SuccessStyle.Render(fmt.Sprintf("%s wins game %d!", m.nameOf(p.Winner), p.GameNumber)))

	case protocol.TypeGameReset:
		var p protocol.GameResetPayload
		if env.DecodePayload(&p) != nil {
			return
		}
		m.gameOn = false
		m.hand = nil
		m.lastPlay = nil
		m.turn = ""
		line := "Back to the lobby"
		if p.Reason != "" {
			line += " (" + p.Reason + ")"
		}
		m.pushLog(InfoStyle.Render(line))

	case protocol.TypeBotAdded:
		var p protocol.BotPayload
		if env.DecodePayload(&p) != nil {
			return
		}
		m.pushLog(InfoStyle.Render(p.Name + " sat down"))

	case protocol.TypeBotRemoved:
		var p protocol.BotPayload
		if env.DecodePayload(&p) != nil {
			return
		}
		m.pushLog(InfoStyle.Render(p.Name + " left the table"))

	case protocol.TypeStatsUpdated:
		var p client.RoomStats
		if env.DecodePayload(&p) != nil {
			return
		}
		parts := make([]string, 0, len(p.Players))
		for _, totals := range p.Players {
			parts = append(parts, fmt.Sprintf("%s %d", m.nameOf(totals.Player), totals.Score))
		}
		m.pushLog(WarningStyle.Render("Scores: " + strings.Join(parts, " | ")))

	case protocol.TypeError:
		var p protocol.ErrorPayload
		if env.DecodePayload(&p) != nil {
			return
		}
		m.pushLog(ErrorStyle.Render(p.Message))
	}
}

// sortHand orders wire-form cards lowest first. Unparseable entries
// are kept as-is at the front.
func sortHand(cards []string) []string {
	out := append([]string(nil), cards...)
	sort.Slice(out, func(i, j int) bool {
		a, errA := card.ParseCard(out[i])
		b, errB := card.ParseCard(out[j])
		if errA != nil || errB != nil {
			return errA != nil
		}
		return card.Less(a, b)
	})
	return out
}

func removeCards(hand, played []string) []string {
	gone := make(map[string]bool, len(played))
	for _, c := range played {
		gone[strings.ToLower(c[:1])+c[1:]] = true
	}
	out := hand[:0]
	for _, c := range hand {
		if !gone[c] {
			out = append(out, c)
		}
	}
	return out
}

// formatCards renders wire-form cards with suit colors.
func formatCards(cards []string) string {
	if len(cards) == 0 {
		return ""
	}
	formatted := make([]string, 0, len(cards))
	for _, s := range cards {
		c, err := card.ParseCard(s)
		if err != nil {
			formatted = append(formatted, s)
			continue
		}
		label := c.Rank.String() + c.Suit.Symbol()
		if c.Suit.IsRed() {
			formatted = append(formatted, RedCardStyle.Render(label))
		} else {
			formatted = append(formatted, BlackCardStyle.Render(label))
		}
	}
	return "[" + strings.Join(formatted, " ") + "]"
}
