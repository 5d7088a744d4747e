package app

import (
	"context"
	"log"
	"strings"
	"time"

	"trivia-rooms/internal/domain"
)

// Timings groups the server-side delays of the game protocol. Tests shrink
// them to keep runs fast.
type Timings struct {
	// ArbitrationWindow is how long answer claims are collected after the
	// first one arrives before a winner is chosen.
	ArbitrationWindow time.Duration
	// StartGrace is the pause between gameStarted and gameReady that lets
	// slow clients render the first question.
	StartGrace time.Duration
}

func DefaultTimings() Timings {
	return Timings{
		ArbitrationWindow: 300 * time.Millisecond,
		StartGrace:        2 * time.Second,
	}
}

// GameService drives question sequencing, answer arbitration, grading and the
// appeal vote. External calls (grading, stats) happen outside the room lock;
// their effects are applied only after re-validating that the game has not
// moved on in the meantime.
type GameService struct {
	store     RoomStore
	registry  *ConnectionRegistry
	broadcast Broadcaster
	grader    Grader
	stats     StatsRecorder
	questions QuestionRepository
	timings   Timings
}

func NewGameService(store RoomStore, registry *ConnectionRegistry, broadcast Broadcaster, grader Grader, stats StatsRecorder, questions QuestionRepository, timings Timings) *GameService {
	return &GameService{
		store:     store,
		registry:  registry,
		broadcast: broadcast,
		grader:    grader,
		stats:     stats,
		questions: questions,
		timings:   timings,
	}
}

// StartGame moves a waiting room into the initializing phase with a fresh
// question list and zeroed scores. When the caller supplies no questions the
// list is assembled from the question source using the room's settings. After
// the grace delay the room transitions to playing, unless it was deleted or
// superseded in the meantime.
func (s *GameService) StartGame(ctx context.Context, connID string, questions []domain.Question) error {
	room, ok := s.roomOf(connID)
	if !ok {
		return nil
	}

	room.mu.Lock()
	player := room.playerLocked(connID)
	if player == nil || !player.IsHost || room.game.Status != domain.StatusWaiting {
		room.mu.Unlock()
		return nil
	}
	settings := room.settings
	room.mu.Unlock()

	if len(questions) == 0 {
		var err error
		questions, err = s.questions.GetQuestions(ctx, settings.SelectedTopics, settings.DifficultyRange, settings.QuestionCount)
		if err != nil {
			return err
		}
	}

	room.mu.Lock()
	player = room.playerLocked(connID)
	if player == nil || !player.IsHost || room.game.Status != domain.StatusWaiting {
		room.mu.Unlock()
		return nil
	}
	for _, p := range room.players {
		p.Score = 0
	}
	room.game = domain.GameState{
		Status: domain.StatusInitializing,
		Play:   &domain.PlayState{Questions: questions},
	}
	room.version++
	version := room.version
	s.broadcast.ToRoom(room.id, EventGameStarted, GameStatePayload{GameState: room.gameLocked()})
	room.mu.Unlock()

	time.AfterFunc(s.timings.StartGrace, func() {
		s.activateGame(room.id, version)
	})
	return nil
}

// activateGame fires after the start grace delay and re-validates the room
// before flipping initializing into playing.
func (s *GameService) activateGame(roomID string, version uint64) {
	room, ok := s.store.Get(roomID)
	if !ok {
		return
	}

	room.mu.Lock()
	defer room.mu.Unlock()
	if room.version != version || room.game.Status != domain.StatusInitializing {
		return
	}
	room.game.Status = domain.StatusPlaying
	room.version++
	s.broadcast.ToRoom(roomID, EventGameReady, GameStatePayload{GameState: room.gameLocked()})
}

// SubmitAnswer grades the answering player's submission and applies the score
// change. Empty submissions are marked incorrect without consulting the
// grader. Submissions from anyone but the arbitration winner are ignored.
func (s *GameService) SubmitAnswer(ctx context.Context, connID, answer string) error {
	room, ok := s.roomOf(connID)
	if !ok {
		return nil
	}

	room.mu.Lock()
	play := room.game.Play
	if room.game.Status != domain.StatusPlaying || play.AnsweringPlayerID != connID || play.Submission != nil {
		room.mu.Unlock()
		return nil
	}
	question := play.Questions[play.CurrentIndex]
	index := play.CurrentIndex
	version := room.version
	room.mu.Unlock()

	answer = strings.TrimSpace(answer)
	answered := answer != ""
	verdict := domain.Verdict{
		Confidence:  1.0,
		Explanation: "No answer was provided, so the submission is incorrect.",
	}
	if answered {
		var err error
		verdict, err = s.grader.Check(ctx, question.Prompt, question.Answer, answer)
		if err != nil {
			verdict = ExactMatchVerdict(question.Answer, answer)
		}
		s.recordAttempt(question.Prompt, verdict.IsCorrect)
	}

	room.mu.Lock()
	defer room.mu.Unlock()
	// The room may have advanced, ended or restarted while grading was in
	// flight; a stale verdict is discarded.
	play = room.game.Play
	if room.version != version || room.game.Status != domain.StatusPlaying ||
		play.AnsweringPlayerID != connID || play.CurrentIndex != index || play.Submission != nil {
		return nil
	}

	if player := room.playerLocked(connID); player != nil {
		if verdict.IsCorrect {
			player.Score++
		} else {
			player.Score--
		}
	}

	text := answer
	if !answered {
		text = domain.NoAnswerText
	}
	play.Submission = &domain.Submission{
		Answer:        text,
		CorrectAnswer: question.Answer,
		Correct:       verdict.IsCorrect,
		Explanation:   verdict.Explanation,
		ShowAnswer:    true,
	}
	s.broadcast.ToRoom(room.id, EventAnswerSubmitted, AnswerSubmittedPayload{
		GameState: room.gameLocked(),
		Players:   room.playersLocked(),
	})
	return nil
}

// SkipQuestion lets the host reveal the answer without any score change.
func (s *GameService) SkipQuestion(connID string) {
	room, ok := s.roomOf(connID)
	if !ok {
		return
	}

	room.mu.Lock()
	defer room.mu.Unlock()
	player := room.playerLocked(connID)
	play := room.game.Play
	if player == nil || !player.IsHost || room.game.Status != domain.StatusPlaying || play.Submission != nil {
		return
	}

	question := play.Questions[play.CurrentIndex]
	play.Submission = &domain.Submission{
		Answer:        domain.SkippedText,
		CorrectAnswer: question.Answer,
		Correct:       false,
		Explanation:   "This question was skipped by the host.",
		ShowAnswer:    true,
	}
	s.recordAttempt(question.Prompt, false)
	s.broadcast.ToRoom(room.id, EventAnswerSubmitted, AnswerSubmittedPayload{
		GameState: room.gameLocked(),
		Players:   room.playersLocked(),
	})
}

// NextQuestion advances the host's room to the next question, or ends the
// game when the list is exhausted.
func (s *GameService) NextQuestion(connID string) {
	room, ok := s.roomOf(connID)
	if !ok {
		return
	}

	room.mu.Lock()
	defer room.mu.Unlock()
	player := room.playerLocked(connID)
	if player == nil || !player.IsHost || room.game.Status != domain.StatusPlaying {
		return
	}

	play := room.game.Play
	next := play.CurrentIndex + 1
	room.stopTimersLocked()
	room.version++

	if next >= len(play.Questions) {
		room.game.Status = domain.StatusEnded
		s.broadcast.ToRoom(room.id, EventGameEnded, PlayerListPayload{Players: room.playersLocked()})
		return
	}

	play.CurrentIndex = next
	play.AnsweringPlayerID = ""
	play.Submission = nil
	s.broadcast.ToRoom(room.id, EventNextQuestion, GameStatePayload{GameState: room.gameLocked()})
}

// ReturnToRoom resets the room to waiting after a game, clearing non-host
// ready flags. Any member may trigger it.
func (s *GameService) ReturnToRoom(connID string) {
	room, ok := s.roomOf(connID)
	if !ok {
		return
	}

	room.mu.Lock()
	if room.playerLocked(connID) == nil {
		room.mu.Unlock()
		return
	}
	room.stopTimersLocked()
	room.game = domain.GameState{Status: domain.StatusWaiting}
	room.version++
	for _, p := range room.players {
		if !p.IsHost {
			p.IsReady = false
		}
	}
	refreshLobby := !room.settings.IsPrivate
	s.broadcast.ToRoom(room.id, EventReturnedToRoom, PlayerListPayload{Players: room.playersLocked()})
	room.mu.Unlock()

	if refreshLobby {
		s.broadcast.ToLobby(EventRoomList, s.publicRooms())
	}
}

// recordAttempt reports the outcome to the stats collaborator without ever
// blocking or failing the answer flow.
func (s *GameService) recordAttempt(questionText string, wasCorrect bool) {
	if s.stats == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.stats.RecordAttempt(ctx, questionText, wasCorrect); err != nil {
			log.Printf("record attempt failed: %v", err)
		}
	}()
}

func (s *GameService) roomOf(connID string) (*Room, bool) {
	roomID, ok := s.registry.RoomOf(connID)
	if !ok {
		return nil, false
	}
	return s.store.Get(roomID)
}

// publicRooms mirrors RoomService's directory so return-to-room can refresh
// the lobby listing.
func (s *GameService) publicRooms() []domain.RoomSummary {
	return publicRoomSummaries(s.store)
}
