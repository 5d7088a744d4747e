package http

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"trivia-rooms/internal/app"
	"trivia-rooms/internal/domain"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// WSHandler upgrades connections and dispatches inbound intents to the room
// and game services. Failures that the protocol surfaces (join/create
// conflicts) come back as "error" events; everything else is silently
// ignored per the server-is-a-silent-guard policy.
type WSHandler struct {
	hub      *Hub
	rooms    *app.RoomService
	games    *app.GameService
	registry *app.ConnectionRegistry
	upgrader websocket.Upgrader
}

func NewWSHandler(hub *Hub, rooms *app.RoomService, games *app.GameService, registry *app.ConnectionRegistry) *WSHandler {
	return &WSHandler{
		hub:      hub,
		rooms:    rooms,
		games:    games,
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type createRoomPayload struct {
	domain.RoomSettings
	HostName string `json:"hostName"`
}

type joinRoomPayload struct {
	RoomID     string `json:"roomId"`
	PlayerName string `json:"playerName"`
	Password   string `json:"password"`
}

type startGamePayload struct {
	GameQuestions []domain.Question `json:"gameQuestions"`
}

type claimPayload struct {
	ClientTimestamp int64 `json:"clientTimestamp"`
}

type submitAnswerPayload struct {
	Answer string `json:"answer"`
}

type votePayload struct {
	Vote string `json:"vote"`
}

// ServeWS upgrades the request and runs the connection's read loop.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}

	connID := uuid.NewString()
	h.registry.Connect(connID)
	c := h.hub.add(connID, conn)

	defer func() {
		h.rooms.Leave(connID)
		h.hub.remove(connID)
		h.registry.Disconnect(connID)
		conn.Close()
	}()

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		h.registry.SetLatency(connID, c.rtt())
		return nil
	})

	// New connections see the current public directory right away.
	h.rooms.FetchRooms(connID)

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("ws read error: %v", err)
			}
			return
		}
		h.dispatch(r, connID, inbound)
	}
}

func (h *WSHandler) dispatch(r *http.Request, connID string, inbound inboundMessage) {
	switch inbound.Type {
	case "createRoom":
		var payload createRoomPayload
		if !decode(inbound, &payload) {
			return
		}
		if err := h.rooms.CreateRoom(connID, payload.HostName, payload.RoomSettings); err != nil {
			h.sendError(connID, err)
		}

	case "fetchRooms":
		h.rooms.FetchRooms(connID)

	case "joinRoom":
		var payload joinRoomPayload
		if !decode(inbound, &payload) {
			return
		}
		if err := h.rooms.JoinRoom(connID, payload.RoomID, payload.PlayerName, payload.Password); err != nil {
			h.sendError(connID, err)
		}

	case "updateRoomSettings":
		var patch app.SettingsPatch
		if !decode(inbound, &patch) {
			return
		}
		h.rooms.UpdateSettings(connID, patch)

	case "toggleReady":
		h.rooms.ToggleReady(connID)

	case "startGame":
		var payload startGamePayload
		if len(inbound.Payload) > 0 && !decode(inbound, &payload) {
			return
		}
		if err := h.games.StartGame(r.Context(), connID, payload.GameQuestions); err != nil {
			h.sendError(connID, err)
		}

	case "answerQuestion":
		var payload claimPayload
		if !decode(inbound, &payload) {
			return
		}
		h.games.ClaimAnswer(connID, payload.ClientTimestamp)

	case "submitAnswer":
		var payload submitAnswerPayload
		if !decode(inbound, &payload) {
			return
		}
		if err := h.games.SubmitAnswer(r.Context(), connID, payload.Answer); err != nil {
			h.sendError(connID, err)
		}

	case "skipQuestion":
		h.games.SkipQuestion(connID)

	case "appealAnswer":
		h.games.AppealAnswer(connID)

	case "voteOnAppeal":
		var payload votePayload
		if !decode(inbound, &payload) {
			return
		}
		h.games.VoteOnAppeal(connID, payload.Vote)

	case "nextQuestion":
		h.games.NextQuestion(connID)

	case "returnToRoom":
		h.games.ReturnToRoom(connID)

	case "leaveRoom":
		h.rooms.Leave(connID)

	default:
		h.hub.ToConn(connID, app.EventError, app.ErrorPayload{Message: "unsupported message type"})
	}
}

// decode drops malformed payloads instead of surfacing an error event.
func decode(inbound inboundMessage, into any) bool {
	if err := json.Unmarshal(inbound.Payload, into); err != nil {
		log.Printf("dropping malformed %s payload: %v", inbound.Type, err)
		return false
	}
	return true
}

func (h *WSHandler) sendError(connID string, err error) {
	h.hub.ToConn(connID, app.EventError, app.ErrorPayload{Message: err.Error()})
}
