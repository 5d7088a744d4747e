package app

import (
	"sort"
	"time"

	"trivia-rooms/internal/domain"
)

// ClaimAnswer buffers an "I want to answer" claim for the current question.
// The first claim opens a short collection window; when it closes the claim
// with the smallest latency-adjusted timestamp wins. Claims arriving after a
// winner is set are ignored.
func (s *GameService) ClaimAnswer(connID string, clientTimestamp int64) {
	room, ok := s.roomOf(connID)
	if !ok {
		return
	}

	room.mu.Lock()
	defer room.mu.Unlock()
	if room.game.Status != domain.StatusPlaying ||
		room.game.Play.AnsweringPlayerID != "" ||
		room.game.Play.Submission != nil ||
		room.playerLocked(connID) == nil {
		return
	}

	room.claims = append(room.claims, answerClaim{
		playerID:   connID,
		clientTS:   clientTimestamp,
		receivedAt: time.Now(),
		latency:    s.registry.Latency(connID),
	})

	if room.claimTimer == nil {
		version := room.version
		roomID := room.id
		room.claimTimer = time.AfterFunc(s.timings.ArbitrationWindow, func() {
			s.resolveClaims(roomID, version)
		})
	}
}

// resolveClaims fires when the collection window closes. The room or question
// may be gone by then; the captured version guards against acting on a state
// that has moved on.
func (s *GameService) resolveClaims(roomID string, version uint64) {
	room, ok := s.store.Get(roomID)
	if !ok {
		return
	}

	room.mu.Lock()
	defer room.mu.Unlock()
	room.claimTimer = nil
	claims := room.claims
	room.claims = nil

	if room.version != version || room.game.Status != domain.StatusPlaying ||
		room.game.Play.AnsweringPlayerID != "" || room.game.Play.Submission != nil ||
		len(claims) == 0 {
		return
	}

	// Stable sort keeps arrival order as the tie break for equal adjusted
	// timestamps.
	sort.SliceStable(claims, func(i, j int) bool {
		return claims[i].adjusted() < claims[j].adjusted()
	})
	winner := claims[0]
	room.game.Play.AnsweringPlayerID = winner.playerID

	// Interrupt any in-progress question reveal first, then announce who won
	// the buzz.
	s.broadcast.ToRoom(roomID, EventTypewriterInterrupted, nil)
	s.broadcast.ToRoom(roomID, EventQuestionAnswering, AnsweringPayload{
		PlayerID:  winner.playerID,
		GameState: room.gameLocked(),
	})
}
