package app

import (
	"fmt"
	"sort"

	"trivia-rooms/internal/domain"
)

// RoomService owns room lifecycle: create, join, leave, settings and host
// migration. Host-only operations issued by a non-host, or in the wrong game
// state, are silently ignored; only join/create failures surface errors.
type RoomService struct {
	store     RoomStore
	registry  *ConnectionRegistry
	broadcast Broadcaster
}

func NewRoomService(store RoomStore, registry *ConnectionRegistry, broadcast Broadcaster) *RoomService {
	return &RoomService{store: store, registry: registry, broadcast: broadcast}
}

// SettingsPatch is a partial settings update; nil fields are left untouched.
// Each present field is validated independently and silently skipped when out
// of bounds, so one bad field never fails the whole request.
type SettingsPatch struct {
	Name            *string                 `json:"roomName,omitempty"`
	IsPrivate       *bool                   `json:"isPrivate,omitempty"`
	Password        *string                 `json:"password,omitempty"`
	MaxPlayers      *int                    `json:"maxPlayers,omitempty"`
	SelectedTopics  []string                `json:"selectedTopics,omitempty"`
	AnswerTimeLimit *int                    `json:"answerTimeLimit,omitempty"`
	DifficultyRange *domain.DifficultyRange `json:"difficultyRange,omitempty"`
	QuestionCount   *int                    `json:"questionCount,omitempty"`
}

func validateSettings(s domain.RoomSettings) error {
	switch {
	case s.Name == "":
		return fmt.Errorf("%w: room name required", domain.ErrInvalidSettings)
	case s.MaxPlayers < domain.MinPlayers || s.MaxPlayers > domain.MaxPlayers:
		return fmt.Errorf("%w: max players must be between %d and %d", domain.ErrInvalidSettings, domain.MinPlayers, domain.MaxPlayers)
	case s.AnswerTimeLimit < domain.MinAnswerTime || s.AnswerTimeLimit > domain.MaxAnswerTime:
		return fmt.Errorf("%w: answer time limit must be between %d and %d seconds", domain.ErrInvalidSettings, domain.MinAnswerTime, domain.MaxAnswerTime)
	case !validDifficulty(s.DifficultyRange):
		return fmt.Errorf("%w: difficulty range must satisfy %d <= min < max <= %d", domain.ErrInvalidSettings, domain.MinDifficulty, domain.MaxDifficulty)
	case s.QuestionCount < domain.MinQuestions || s.QuestionCount > domain.MaxQuestions:
		return fmt.Errorf("%w: question count must be between %d and %d", domain.ErrInvalidSettings, domain.MinQuestions, domain.MaxQuestions)
	case s.IsPrivate && s.Password == "":
		return fmt.Errorf("%w: private rooms need a password", domain.ErrInvalidSettings)
	}
	return nil
}

func validDifficulty(d domain.DifficultyRange) bool {
	return d.Min >= domain.MinDifficulty && d.Max <= domain.MaxDifficulty && d.Min < d.Max
}

// CreateRoom allocates a fresh room with the requester as its host.
func (s *RoomService) CreateRoom(connID, hostName string, settings domain.RoomSettings) error {
	if hostName == "" {
		return fmt.Errorf("%w: host name required", domain.ErrInvalidSettings)
	}
	if err := validateSettings(settings); err != nil {
		return err
	}
	if !settings.IsPrivate {
		settings.Password = ""
	}

	roomID := newRoomCode()
	for _, taken := s.store.Get(roomID); taken; _, taken = s.store.Get(roomID) {
		roomID = newRoomCode()
	}

	host := domain.Player{ID: connID, Name: hostName, IsHost: true, IsReady: true}
	room := NewRoom(roomID, settings, host)
	s.store.Put(room)
	s.registry.SetRoom(connID, roomID)

	room.mu.Lock()
	view := room.viewLocked()
	room.mu.Unlock()

	s.broadcast.ToConn(connID, EventRoomCreated, RoomPayload{RoomID: roomID, Room: view})
	s.broadcast.ToLobby(EventRoomList, s.publicRooms())
	return nil
}

// JoinRoom appends the requester to the roster as a non-host, non-ready player.
func (s *RoomService) JoinRoom(connID, roomID, playerName, password string) error {
	room, ok := s.store.Get(roomID)
	if !ok {
		return domain.ErrRoomNotFound
	}

	room.mu.Lock()
	if len(room.players) >= room.settings.MaxPlayers {
		room.mu.Unlock()
		return domain.ErrRoomFull
	}
	if room.settings.IsPrivate && room.settings.Password != password {
		room.mu.Unlock()
		return domain.ErrInvalidPassword
	}

	player := domain.Player{ID: connID, Name: playerName}
	room.players = append(room.players, &player)
	s.registry.SetRoom(connID, roomID)

	view := room.viewLocked()
	players := room.playersLocked()
	refreshLobby := !room.settings.IsPrivate && room.game.Status == domain.StatusWaiting

	s.broadcast.ToConn(connID, EventJoinedRoom, RoomPayload{RoomID: roomID, Room: view})
	s.broadcast.ToRoom(roomID, EventPlayerJoined, PlayerChangePayload{Player: player, Players: players})
	room.mu.Unlock()

	if refreshLobby {
		s.broadcast.ToLobby(EventRoomList, s.publicRooms())
	}
	return nil
}

// FetchRooms sends the public directory to one connection.
func (s *RoomService) FetchRooms(connID string) {
	s.broadcast.ToConn(connID, EventRoomList, s.publicRooms())
}

// UpdateSettings applies a host's partial settings update while waiting.
func (s *RoomService) UpdateSettings(connID string, patch SettingsPatch) {
	room, ok := s.roomOf(connID)
	if !ok {
		return
	}

	room.mu.Lock()
	player := room.playerLocked(connID)
	if player == nil || !player.IsHost || room.game.Status != domain.StatusWaiting {
		room.mu.Unlock()
		return
	}

	settings := &room.settings
	if patch.Name != nil && *patch.Name != "" {
		settings.Name = *patch.Name
	}
	if patch.MaxPlayers != nil && *patch.MaxPlayers >= domain.MinPlayers && *patch.MaxPlayers <= domain.MaxPlayers {
		settings.MaxPlayers = *patch.MaxPlayers
	}
	if patch.AnswerTimeLimit != nil && *patch.AnswerTimeLimit >= domain.MinAnswerTime && *patch.AnswerTimeLimit <= domain.MaxAnswerTime {
		settings.AnswerTimeLimit = *patch.AnswerTimeLimit
	}
	if patch.DifficultyRange != nil && validDifficulty(*patch.DifficultyRange) {
		settings.DifficultyRange = *patch.DifficultyRange
	}
	if patch.QuestionCount != nil && *patch.QuestionCount >= domain.MinQuestions && *patch.QuestionCount <= domain.MaxQuestions {
		settings.QuestionCount = *patch.QuestionCount
	}
	if len(patch.SelectedTopics) > 0 {
		settings.SelectedTopics = patch.SelectedTopics
	}
	if patch.IsPrivate != nil {
		settings.IsPrivate = *patch.IsPrivate
	}
	if settings.IsPrivate {
		// Keep the previous password unless a new one was supplied.
		if patch.Password != nil && *patch.Password != "" {
			settings.Password = *patch.Password
		}
	} else {
		settings.Password = ""
	}

	view := room.viewLocked()
	s.broadcast.ToRoom(room.id, EventRoomSettingsUpdated, RoomViewPayload{Room: view})
	room.mu.Unlock()

	// Visibility or name changes affect the public listing either way.
	s.broadcast.ToLobby(EventRoomList, s.publicRooms())
}

// ToggleReady flips the caller's ready flag; a no-op for the host.
func (s *RoomService) ToggleReady(connID string) {
	room, ok := s.roomOf(connID)
	if !ok {
		return
	}

	room.mu.Lock()
	defer room.mu.Unlock()
	player := room.playerLocked(connID)
	if player == nil || player.IsHost {
		return
	}
	player.IsReady = !player.IsReady
	s.broadcast.ToRoom(room.id, EventPlayerUpdated, PlayerChangePayload{Player: *player, Players: room.playersLocked()})
}

// Leave removes the connection's player from its room, migrating the host or
// deleting the room as needed. Safe to call repeatedly and for connections
// that are not in any room.
func (s *RoomService) Leave(connID string) {
	room, ok := s.roomOf(connID)
	if !ok {
		return
	}

	room.mu.Lock()
	idx := -1
	for i, p := range room.players {
		if p.ID == connID {
			idx = i
			break
		}
	}
	if idx < 0 {
		room.mu.Unlock()
		return
	}

	left := *room.players[idx]
	room.players = append(room.players[:idx], room.players[idx+1:]...)
	s.registry.ClearRoom(connID)

	if len(room.players) == 0 {
		room.stopTimersLocked()
		s.store.Delete(room.id)
		room.mu.Unlock()
		s.broadcast.ToLobby(EventRoomList, s.publicRooms())
		return
	}

	if left.IsHost {
		// Earliest-joined remaining player inherits the room.
		newHost := room.players[0]
		newHost.IsHost = true
		newHost.IsReady = true
		s.broadcast.ToRoom(room.id, EventHostChanged, HostChangedPayload{NewHostID: newHost.ID, Players: room.playersLocked()})
	}

	s.broadcast.ToRoom(room.id, EventPlayerLeft, PlayerLeftPayload{PlayerID: left.ID, Players: room.playersLocked()})
	refreshLobby := !room.settings.IsPrivate && room.game.Status == domain.StatusWaiting
	room.mu.Unlock()

	if refreshLobby {
		s.broadcast.ToLobby(EventRoomList, s.publicRooms())
	}
}

func (s *RoomService) roomOf(connID string) (*Room, bool) {
	roomID, ok := s.registry.RoomOf(connID)
	if !ok {
		return nil, false
	}
	return s.store.Get(roomID)
}

func (s *RoomService) publicRooms() []domain.RoomSummary {
	return publicRoomSummaries(s.store)
}

// publicRoomSummaries lists waiting public rooms, ordered by room code for a
// stable directory.
func publicRoomSummaries(store RoomStore) []domain.RoomSummary {
	rooms := store.List()
	summaries := make([]domain.RoomSummary, 0, len(rooms))
	for _, room := range rooms {
		room.mu.Lock()
		if !room.settings.IsPrivate && room.game.Status == domain.StatusWaiting {
			summaries = append(summaries, room.summaryLocked())
		}
		room.mu.Unlock()
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].ID < summaries[j].ID })
	return summaries
}
