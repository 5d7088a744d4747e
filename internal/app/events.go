package app

import "trivia-rooms/internal/domain"

// Broadcaster fans events out to connections. ToRoom delivers to every member
// of the room, ToLobby to every connection not currently in any room.
// Implementations must not block the caller.
type Broadcaster interface {
	ToConn(connID, event string, payload any)
	ToRoom(roomID, event string, payload any)
	ToLobby(event string, payload any)
}

// Outbound event names, one per state transition.
const (
	EventError                 = "error"
	EventRoomCreated           = "roomCreated"
	EventJoinedRoom            = "joinedRoom"
	EventRoomList              = "roomList"
	EventPlayerJoined          = "playerJoined"
	EventPlayerLeft            = "playerLeft"
	EventHostChanged           = "hostChanged"
	EventPlayerUpdated         = "playerUpdated"
	EventRoomSettingsUpdated   = "roomSettingsUpdated"
	EventGameStarted           = "gameStarted"
	EventGameReady             = "gameReady"
	EventTypewriterInterrupted = "typewriterInterrupted"
	EventQuestionAnswering     = "questionAnswering"
	EventAnswerSubmitted       = "answerSubmitted"
	EventAppealStarted         = "appealStarted"
	EventAppealVoted           = "appealVoted"
	EventAppealResolved        = "appealResolved"
	EventNextQuestion          = "nextQuestion"
	EventGameEnded             = "gameEnded"
	EventReturnedToRoom        = "returnedToRoom"
)

type ErrorPayload struct {
	Message string `json:"message"`
}

type RoomPayload struct {
	RoomID string   `json:"roomId"`
	Room   RoomView `json:"room"`
}

type RoomViewPayload struct {
	Room RoomView `json:"room"`
}

type PlayerListPayload struct {
	Players []domain.Player `json:"players"`
}

type PlayerChangePayload struct {
	Player  domain.Player   `json:"player"`
	Players []domain.Player `json:"players"`
}

type PlayerLeftPayload struct {
	PlayerID string          `json:"playerId"`
	Players  []domain.Player `json:"players"`
}

type HostChangedPayload struct {
	NewHostID string          `json:"newHostId"`
	Players   []domain.Player `json:"players"`
}

type GameStatePayload struct {
	GameState domain.GameState `json:"gameState"`
}

type AnsweringPayload struct {
	PlayerID  string           `json:"playerId"`
	GameState domain.GameState `json:"gameState"`
}

type AnswerSubmittedPayload struct {
	GameState domain.GameState `json:"gameState"`
	Players   []domain.Player  `json:"players"`
}

type AppealVotedPayload struct {
	VoterID   string           `json:"voterId"`
	GameState domain.GameState `json:"gameState"`
}

type AppealResolvedPayload struct {
	GameState domain.GameState `json:"gameState"`
	Players   []domain.Player  `json:"players"`
}
