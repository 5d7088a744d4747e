package app

import "trivia-rooms/internal/domain"

// AppealAnswer opens the one-shot peer vote contesting the current verdict.
// Only one appeal is allowed per question, even if it fails.
func (s *GameService) AppealAnswer(connID string) {
	room, ok := s.roomOf(connID)
	if !ok {
		return
	}

	room.mu.Lock()
	defer room.mu.Unlock()
	if room.game.Status != domain.StatusPlaying || room.playerLocked(connID) == nil {
		return
	}
	sub := room.game.Play.Submission
	if sub == nil || !sub.ShowAnswer || sub.Appealed {
		return
	}

	sub.Appealed = true
	sub.Appeal = &domain.Appeal{
		InProgress: true,
		PlayerID:   connID,
		Answer:     sub.Answer,
		Votes:      make(map[string]string),
	}
	s.broadcast.ToRoom(room.id, EventAppealStarted, GameStatePayload{GameState: room.gameLocked()})

	// A room with nobody eligible to vote resolves immediately (and fails,
	// since zero accepts never beat zero rejects).
	if s.eligibleVotersLocked(room) == 0 {
		s.resolveAppealLocked(room)
	}
}

// VoteOnAppeal records one accept/reject vote and resolves the appeal as soon
// as the outcome is decided: all eligible votes are in, or rejects already
// reach half of the eligible voters. Accepts can never win early because a
// late surge of rejects could still flip the result.
func (s *GameService) VoteOnAppeal(connID, vote string) {
	if vote != domain.VoteAccept && vote != domain.VoteReject {
		return
	}

	room, ok := s.roomOf(connID)
	if !ok {
		return
	}

	room.mu.Lock()
	defer room.mu.Unlock()
	if room.game.Status != domain.StatusPlaying || room.playerLocked(connID) == nil {
		return
	}
	sub := room.game.Play.Submission
	if sub == nil || sub.Appeal == nil || !sub.Appeal.InProgress {
		return
	}
	// The appellant has a stake in the outcome and does not get a vote.
	if connID == sub.Appeal.PlayerID {
		return
	}

	sub.Appeal.Votes[connID] = vote
	s.broadcast.ToRoom(room.id, EventAppealVoted, AppealVotedPayload{
		VoterID:   connID,
		GameState: room.gameLocked(),
	})

	eligible := s.eligibleVotersLocked(room)
	votesCast := len(sub.Appeal.Votes)
	rejects := 0
	for _, v := range sub.Appeal.Votes {
		if v == domain.VoteReject {
			rejects++
		}
	}
	if votesCast >= eligible || rejects*2 >= eligible {
		s.resolveAppealLocked(room)
	}
}

// eligibleVotersLocked counts roster members other than the appellant.
func (s *GameService) eligibleVotersLocked(room *Room) int {
	appeal := room.game.Play.Submission.Appeal
	eligible := 0
	for _, p := range room.players {
		if p.ID != appeal.PlayerID {
			eligible++
		}
	}
	return eligible
}

// resolveAppealLocked closes the vote. Ties fail: the appeal passes only with
// strictly more accepts than rejects. A passed appeal flips the verdict and
// awards the appellant two points, reversing the earlier penalty and granting
// the point for a correct answer. A failed appeal changes nothing but the
// appeal state itself.
func (s *GameService) resolveAppealLocked(room *Room) {
	sub := room.game.Play.Submission
	appeal := sub.Appeal

	accepts, rejects := 0, 0
	for _, v := range appeal.Votes {
		if v == domain.VoteAccept {
			accepts++
		} else {
			rejects++
		}
	}
	passed := accepts > rejects

	if passed {
		if player := room.playerLocked(appeal.PlayerID); player != nil {
			player.Score += 2
		}
		sub.Correct = true
	}
	appeal.InProgress = false
	appeal.Passed = &passed

	s.broadcast.ToRoom(room.id, EventAppealResolved, AppealResolvedPayload{
		GameState: room.gameLocked(),
		Players:   room.playersLocked(),
	})
}
