package room

import (
	"sort"
	"sync"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"

	"github.com/mkchan/bigtwo/internal/events"
	"github.com/mkchan/bigtwo/internal/identity"
	"github.com/mkchan/bigtwo/internal/roomid"
)

// Service owns every room. Mutations emit facts on the bus after the
// lock is released, so subscribers always observe completed changes.
type Service struct {
	logger zerolog.Logger
	bus    *events.Bus
	clock  quartz.Clock

	mu    sync.RWMutex
	rooms map[string]*roomState
}

// NewService creates an empty room service.
func NewService(bus *events.Bus, clock quartz.Clock, logger zerolog.Logger) *Service {
	return &Service{
		logger: logger.With().Str("component", "rooms").Logger(),
		bus:    bus,
		clock:  clock,
		rooms:  make(map[string]*roomState),
	}
}

// Create opens a room with the given player as host and first member.
func (s *Service) Create(hostID string) Room {
	now := s.clock.Now().UTC()
	st := &roomState{
		id:         roomid.New(),
		host:       hostID,
		players:    []string{hostID},
		status:     StatusWaiting,
		ready:      make(map[string]bool),
		createdAt:  now,
		lastActive: now,
	}

	s.mu.Lock()
	s.rooms[st.id] = st
	snap := st.snapshot()
	s.mu.Unlock()

	s.logger.Info().Str("room", st.id).Str("host", hostID).Msg("room created")
	return snap
}

// Get returns a snapshot of a room.
func (s *Service) Get(roomID string) (Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.rooms[roomID]
	if !ok {
		return Room{}, ErrNotFound
	}
	return st.snapshot(), nil
}

// List returns snapshots of all rooms, oldest first.
func (s *Service) List() []Room {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rooms := make([]Room, 0, len(s.rooms))
	for _, st := range s.rooms {
		rooms = append(rooms, st.snapshot())
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].ID < rooms[j].ID })
	return rooms
}

// Join seats a player. Joining clears everyone's ready marks.
func (s *Service) Join(roomID, playerID string) (Room, error) {
	var out pending
	defer s.flush(&out)

	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.rooms[roomID]
	if !ok {
		return Room{}, ErrNotFound
	}
	for _, p := range st.players {
		if p == playerID {
			return Room{}, ErrAlreadyJoined
		}
	}
	if len(st.players) >= MaxPlayers {
		return Room{}, ErrFull
	}

	st.players = append(st.players, playerID)
	st.ready = make(map[string]bool)
	st.lastActive = s.clock.Now().UTC()

	out.emit(events.PlayerJoined{Base: events.In(roomID), Player: playerID})
	s.logger.Info().Str("room", roomID).Str("player", playerID).
		Int("players", len(st.players)).Msg("player joined")
	return st.snapshot(), nil
}

// Leave removes a player. The host seat migrates to the first
// remaining human; when no humans remain the room is torn down.
func (s *Service) Leave(roomID, playerID string) error {
	var out pending
	defer s.flush(&out)

	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.rooms[roomID]
	if !ok {
		return ErrNotFound
	}

	idx := -1
	for i, p := range st.players {
		if p == playerID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrNotMember
	}

	st.players = append(st.players[:idx], st.players[idx+1:]...)
	st.ready = make(map[string]bool)
	st.lastActive = s.clock.Now().UTC()
	wasHost := st.host == playerID

	if !s.humansRemain(st) {
		out.emit(events.PlayerLeft{Base: events.In(roomID), Player: playerID, WasHost: wasHost})
		out.emit(events.RoomDeleted{Base: events.In(roomID)})
		out.closeRoom(roomID)
		delete(s.rooms, roomID)
		s.logger.Info().Str("room", roomID).Msg("last human left, room deleted")
		return nil
	}

	left := events.PlayerLeft{Base: events.In(roomID), Player: playerID, WasHost: wasHost}
	if wasHost {
		st.host = s.firstHuman(st)
		left.NewHost = st.host
		out.emit(left)
		out.emit(events.HostChanged{Base: events.In(roomID), NewHost: st.host})
		s.logger.Info().Str("room", roomID).Str("host", st.host).Msg("host migrated")
	} else {
		out.emit(left)
	}

	s.logger.Info().Str("room", roomID).Str("player", playerID).
		Int("players", len(st.players)).Msg("player left")
	return nil
}

// Delete tears a room down. Only the host may do this.
func (s *Service) Delete(roomID, requesterID string) error {
	var out pending
	defer s.flush(&out)

	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.rooms[roomID]
	if !ok {
		return ErrNotFound
	}
	if st.host != requesterID {
		return ErrNotHost
	}

	delete(s.rooms, roomID)
	out.emit(events.RoomDeleted{Base: events.In(roomID)})
	out.closeRoom(roomID)
	s.logger.Info().Str("room", roomID).Str("host", requesterID).Msg("room deleted by host")
	return nil
}

// SetReady toggles a member's ready mark and announces the change.
func (s *Service) SetReady(roomID, playerID string, ready bool) error {
	var out pending
	defer s.flush(&out)

	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.rooms[roomID]
	if !ok {
		return ErrNotFound
	}
	member := false
	for _, p := range st.players {
		if p == playerID {
			member = true
			break
		}
	}
	if !member {
		return ErrNotMember
	}

	st.ready[playerID] = ready
	if !ready {
		delete(st.ready, playerID)
	}
	st.lastActive = s.clock.Now().UTC()

	out.emit(events.PlayerReadyToggled{Base: events.In(roomID), Player: playerID, Ready: ready})
	return nil
}

// SetStatus moves a room between waiting and playing. Entering play
// clears ready marks for the next lobby round.
func (s *Service) SetStatus(roomID string, status Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.rooms[roomID]
	if !ok {
		return ErrNotFound
	}
	st.status = status
	if status == StatusPlaying {
		st.ready = make(map[string]bool)
	}
	st.lastActive = s.clock.Now().UTC()
	return nil
}

// Touch refreshes a room's activity timestamp.
func (s *Service) Touch(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.rooms[roomID]; ok {
		st.lastActive = s.clock.Now().UTC()
	}
}

func (s *Service) firstHuman(st *roomState) string {
	for _, p := range st.players {
		if !identity.IsBot(p) {
			return p
		}
	}
	return ""
}

func (s *Service) humansRemain(st *roomState) bool {
	return s.firstHuman(st) != ""
}

// pending batches bus work to run after the service lock is released.
type pending struct {
	events     []events.Event
	closeRooms []string
}

func (p *pending) emit(e events.Event) {
	p.events = append(p.events, e)
}

func (p *pending) closeRoom(roomID string) {
	p.closeRooms = append(p.closeRooms, roomID)
}

// flush publishes queued events, then closes any torn-down rooms so
// subscribers drain the final events before their channels close.
func (s *Service) flush(p *pending) {
	for _, e := range p.events {
		s.bus.Publish(e)
	}
	for _, id := range p.closeRooms {
		s.bus.CloseRoom(id)
	}
}
