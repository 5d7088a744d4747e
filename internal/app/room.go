package app

import (
	"crypto/rand"
	"sync"
	"time"

	"trivia-rooms/internal/domain"
)

// RoomStore abstracts how live rooms are stored (in-memory, Redis-backed, etc).
type RoomStore interface {
	Put(room *Room)
	Get(roomID string) (*Room, bool)
	Delete(roomID string)
	List() []*Room
}

// Room is the live aggregate for one game session. All mutation happens under
// mu; a broadcast triggered by a mutation is emitted before the lock is
// released so every member observes room events in a single serialized order.
type Room struct {
	id string

	mu       sync.Mutex
	settings domain.RoomSettings
	players  []*domain.Player
	game     domain.GameState

	// version increments on every game-state transition. Deferred work
	// (arbitration window, start grace, grading returns) captures the
	// version it saw and re-validates it before applying any effect.
	version uint64

	claims     []answerClaim
	claimTimer *time.Timer
}

// answerClaim is one buffered "I want to answer" intent.
type answerClaim struct {
	playerID   string
	clientTS   int64 // client-stamped send time, unix millis
	receivedAt time.Time
	latency    time.Duration
}

// adjusted estimates the true event time by removing one-way network delay.
func (c answerClaim) adjusted() int64 {
	return c.clientTS - c.latency.Milliseconds()/2
}

// NewRoom builds a room containing only its host, in the waiting state.
func NewRoom(id string, settings domain.RoomSettings, host domain.Player) *Room {
	return &Room{
		id:       id,
		settings: settings,
		players:  []*domain.Player{&host},
		game:     domain.GameState{Status: domain.StatusWaiting},
	}
}

// ID returns the room's short code.
func (r *Room) ID() string {
	return r.id
}

// IsEmpty reports whether the roster is empty.
func (r *Room) IsEmpty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.players) == 0
}

func (r *Room) playerLocked(id string) *domain.Player {
	for _, p := range r.players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (r *Room) hostLocked() *domain.Player {
	for _, p := range r.players {
		if p.IsHost {
			return p
		}
	}
	return nil
}

func (r *Room) playersLocked() []domain.Player {
	out := make([]domain.Player, len(r.players))
	for i, p := range r.players {
		out[i] = *p
	}
	return out
}

// gameLocked snapshots the game state so broadcasts never alias live maps.
func (r *Room) gameLocked() domain.GameState {
	state := r.game
	if state.Play == nil {
		return state
	}
	play := *state.Play
	if play.Submission != nil {
		sub := *play.Submission
		if sub.Appeal != nil {
			appeal := *sub.Appeal
			votes := make(map[string]string, len(appeal.Votes))
			for voter, vote := range appeal.Votes {
				votes[voter] = vote
			}
			appeal.Votes = votes
			sub.Appeal = &appeal
		}
		play.Submission = &sub
	}
	state.Play = &play
	return state
}

// stopTimersLocked drops any pending arbitration state. The timer callback
// re-validates the room version, so a stop that loses the race is harmless.
func (r *Room) stopTimersLocked() {
	if r.claimTimer != nil {
		r.claimTimer.Stop()
		r.claimTimer = nil
	}
	r.claims = nil
}

// RoomView is the full room snapshot broadcast to members. The password is
// deliberately excluded.
type RoomView struct {
	ID              string                 `json:"id"`
	Name            string                 `json:"name"`
	IsPrivate       bool                   `json:"isPrivate"`
	MaxPlayers      int                    `json:"maxPlayers"`
	SelectedTopics  []string               `json:"selectedTopics"`
	AnswerTimeLimit int                    `json:"answerTimeLimit"`
	DifficultyRange domain.DifficultyRange `json:"difficultyRange"`
	QuestionCount   int                    `json:"questionCount"`
	Players         []domain.Player        `json:"players"`
	GameState       domain.GameState       `json:"gameState"`
}

func (r *Room) viewLocked() RoomView {
	return RoomView{
		ID:              r.id,
		Name:            r.settings.Name,
		IsPrivate:       r.settings.IsPrivate,
		MaxPlayers:      r.settings.MaxPlayers,
		SelectedTopics:  r.settings.SelectedTopics,
		AnswerTimeLimit: r.settings.AnswerTimeLimit,
		DifficultyRange: r.settings.DifficultyRange,
		QuestionCount:   r.settings.QuestionCount,
		Players:         r.playersLocked(),
		GameState:       r.gameLocked(),
	}
}

func (r *Room) summaryLocked() domain.RoomSummary {
	hostName := "Unknown Host"
	if host := r.hostLocked(); host != nil {
		hostName = host.Name
	}
	return domain.RoomSummary{
		ID:          r.id,
		Name:        r.settings.Name,
		HostName:    hostName,
		PlayerCount: len(r.players),
		MaxPlayers:  r.settings.MaxPlayers,
	}
}

// roomCodeAlphabet avoids ambiguous characters in spoken/typed codes.
const roomCodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const roomCodeLength = 4

func newRoomCode() string {
	buf := make([]byte, roomCodeLength)
	if _, err := rand.Read(buf); err != nil {
		panic(err) // crypto/rand failure is unrecoverable
	}
	for i, b := range buf {
		buf[i] = roomCodeAlphabet[int(b)%len(roomCodeAlphabet)]
	}
	return string(buf)
}
