package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/mkchan/bigtwo/internal/client"
	"github.com/mkchan/bigtwo/internal/protocol"
)

const restTimeout = 10 * time.Second

func (m *Model) listRooms() tea.Cmd {
	rest := m.rest
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), restTimeout)
		defer cancel()
		rooms, err := rest.Rooms(ctx)
		if err != nil {
			return errMsg{err}
		}
		return roomsMsg(rooms)
	}
}

func (m *Model) createRoom() tea.Cmd {
	rest := m.rest
	logger := m.logger
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), restTimeout)
		defer cancel()
		rm, err := rest.CreateRoom(ctx)
		if err != nil {
			return errMsg{err}
		}
		return connectRoom(ctx, rest, rm, logger)
	}
}

func (m *Model) joinRoom(roomID string) tea.Cmd {
	rest := m.rest
	logger := m.logger
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), restTimeout)
		defer cancel()
		rm, err := rest.JoinRoom(ctx, roomID)
		if err != nil {
			// Rejoining a room we already sit in is fine; fetch it
			// and reconnect.
			if apiErr, ok := err.(*client.APIError); ok && apiErr.Status == 409 {
				rm, err = rest.Room(ctx, roomID)
			}
			if err != nil {
				return errMsg{err}
			}
		}
		return connectRoom(ctx, rest, rm, logger)
	}
}

func connectRoom(ctx context.Context, rest *client.REST, rm client.Room, logger *log.Logger) tea.Msg {
	conn, err := client.Dial(ctx, rest.BaseURL(), rm.ID, rest.Token(), logger)
	if err != nil {
		return errMsg{err}
	}
	return joinedMsg{room: rm, conn: conn}
}

// nextFrame delivers one server envelope as a message.
func (m *Model) nextFrame() tea.Cmd {
	conn := m.conn
	if conn == nil {
		return nil
	}
	return func() tea.Msg {
		env, ok := <-conn.Frames
		if !ok {
			return connClosedMsg{}
		}
		return frameMsg(env)
	}
}

// handleInput interprets one submitted line for the current screen.
func (m *Model) handleInput(line string) tea.Cmd {
	if line == "" {
		return nil
	}
	fields := strings.Fields(line)
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	if m.screen == screenLobby {
		return m.handleLobbyInput(cmd, args)
	}
	return m.handleTableInput(cmd, args, line)
}

func (m *Model) handleLobbyInput(cmd string, args []string) tea.Cmd {
	switch cmd {
	case "quit", "q", "exit":
		m.quit()
		return nil
	case "new", "create":
		m.loading = true
		return tea.Batch(m.spin.Tick, m.createRoom())
	case "join", "j":
		if len(args) != 1 {
			m.status = "usage: join <room>"
			return nil
		}
		m.loading = true
		return tea.Batch(m.spin.Tick, m.joinRoom(args[0]))
	case "list", "rooms", "l":
		m.loading = true
		return tea.Batch(m.spin.Tick, m.listRooms())
	default:
		m.status = fmt.Sprintf("unknown command %q", cmd)
		return nil
	}
}

func (m *Model) handleTableInput(cmd string, args []string, line string) tea.Cmd {
	if m.conn == nil {
		return nil
	}

	var err error
	switch cmd {
	case "quit", "q", "exit":
		m.quit()
	case "leave":
		err = m.conn.Leave()
		// Give the write pump a beat to flush the LEAVE frame before
		// the socket closes.
		conn := m.conn
		m.conn = nil
		m.leaveTable("")
		return tea.Batch(
			m.listRooms(),
			tea.Tick(200*time.Millisecond, func(time.Time) tea.Msg {
				conn.Close()
				return nil
			}),
		)
	case "ready", "r":
		err = m.conn.Ready(true)
	case "unready":
		err = m.conn.Ready(false)
	case "start", "s":
		err = m.conn.StartGame()
	case "play", "p":
		if len(args) == 0 {
			m.status = "usage: play <cards>, e.g. play 3d 3c"
			return nil
		}
		err = m.conn.Move(args)
	case "pass":
		err = m.conn.Pass()
	case "say", "chat":
		text := strings.TrimSpace(strings.TrimPrefix(line, cmd))
		if text == "" {
			m.status = "usage: say <message>"
			return nil
		}
		err = m.conn.Chat(text)
	case "bot":
		return m.handleBotInput(args)
	case "stats":
		return m.fetchStats()
	default:
		m.status = fmt.Sprintf("unknown command %q", cmd)
	}

	if err != nil {
		m.pushLog(ErrorStyle.Render(err.Error()))
	}
	return nil
}

func (m *Model) handleBotInput(args []string) tea.Cmd {
	if len(args) == 0 {
		m.status = "usage: bot add [difficulty] | bot kick <id>"
		return nil
	}
	rest := m.rest
	roomID := m.room.ID

	switch args[0] {
	case "add":
		difficulty := ""
		if len(args) > 1 {
			difficulty = args[1]
		}
		return func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), restTimeout)
			defer cancel()
			if _, err := rest.AddBot(ctx, roomID, difficulty); err != nil {
				return errMsg{err}
			}
			return nil
		}
	case "kick":
		if len(args) != 2 {
			m.status = "usage: bot kick <id>"
			return nil
		}
		botID := args[1]
		return func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), restTimeout)
			defer cancel()
			if err := rest.RemoveBot(ctx, roomID, botID); err != nil {
				return errMsg{err}
			}
			return nil
		}
	default:
		m.status = "usage: bot add [difficulty] | bot kick <id>"
		return nil
	}
}

func (m *Model) fetchStats() tea.Cmd {
	rest := m.rest
	roomID := m.room.ID
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), restTimeout)
		defer cancel()
		stats, err := rest.RoomStats(ctx, roomID)
		if err != nil {
			return errMsg{err}
		}
		// Reuse the frame path so REST-fetched stats render the same
		// as a live STATS_UPDATED broadcast.
		env, err := protocol.NewEnvelope(protocol.TypeStatsUpdated, stats, time.Now())
		if err != nil {
			return errMsg{err}
		}
		return frameMsg(env)
	}
}
