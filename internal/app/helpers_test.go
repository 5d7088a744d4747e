package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"trivia-rooms/internal/domain"
)

// stubStore is a minimal in-test RoomStore.
type stubStore struct {
	mu    sync.RWMutex
	rooms map[string]*Room
}

func newStubStore() *stubStore {
	return &stubStore{rooms: make(map[string]*Room)}
}

func (s *stubStore) Put(room *Room) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[room.ID()] = room
}

func (s *stubStore) Get(roomID string) (*Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[roomID]
	return room, ok
}

func (s *stubStore) Delete(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, roomID)
}

func (s *stubStore) List() []*Room {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rooms := make([]*Room, 0, len(s.rooms))
	for _, room := range s.rooms {
		rooms = append(rooms, room)
	}
	return rooms
}

type recordedEvent struct {
	scope   string // "conn", "room" or "lobby"
	target  string
	event   string
	payload any
}

// recordingBroadcaster captures every broadcast for assertions.
type recordingBroadcaster struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (b *recordingBroadcaster) ToConn(connID, event string, payload any) {
	b.record(recordedEvent{scope: "conn", target: connID, event: event, payload: payload})
}

func (b *recordingBroadcaster) ToRoom(roomID, event string, payload any) {
	b.record(recordedEvent{scope: "room", target: roomID, event: event, payload: payload})
}

func (b *recordingBroadcaster) ToLobby(event string, payload any) {
	b.record(recordedEvent{scope: "lobby", event: event, payload: payload})
}

func (b *recordingBroadcaster) record(ev recordedEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, ev)
}

func (b *recordingBroadcaster) named(event string) []recordedEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []recordedEvent
	for _, ev := range b.events {
		if ev.event == event {
			out = append(out, ev)
		}
	}
	return out
}

func (b *recordingBroadcaster) last(event string) (recordedEvent, bool) {
	matches := b.named(event)
	if len(matches) == 0 {
		return recordedEvent{}, false
	}
	return matches[len(matches)-1], true
}

func (b *recordingBroadcaster) count(event string) int {
	return len(b.named(event))
}

// sequence returns every broadcast event name in emission order.
func (b *recordingBroadcaster) sequence() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	names := make([]string, len(b.events))
	for i, ev := range b.events {
		names[i] = ev.event
	}
	return names
}

// stubGrader returns a fixed verdict or error.
type stubGrader struct {
	mu      sync.Mutex
	verdict domain.Verdict
	err     error
	calls   int
}

func (g *stubGrader) Check(context.Context, string, string, string) (domain.Verdict, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	return g.verdict, g.err
}

func (g *stubGrader) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

// stubStats counts RecordAttempt calls; it must be safe for the
// fire-and-forget goroutine.
type stubStats struct {
	mu       sync.Mutex
	attempts int
	correct  int
}

func (s *stubStats) RecordAttempt(_ context.Context, _ string, wasCorrect bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts++
	if wasCorrect {
		s.correct++
	}
	return nil
}

type stubQuestions struct {
	questions []domain.Question
	err       error
}

func (q *stubQuestions) GetQuestions(context.Context, []string, domain.DifficultyRange, int) ([]domain.Question, error) {
	return q.questions, q.err
}

type fixture struct {
	store     *stubStore
	registry  *ConnectionRegistry
	broadcast *recordingBroadcaster
	rooms     *RoomService
	games     *GameService
	grader    *stubGrader
	stats     *stubStats
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:     newStubStore(),
		registry:  NewConnectionRegistry(),
		broadcast: &recordingBroadcaster{},
		grader:    &stubGrader{verdict: domain.Verdict{IsCorrect: true, Confidence: 1, Explanation: "matches"}},
		stats:     &stubStats{},
	}
	f.rooms = NewRoomService(f.store, f.registry, f.broadcast)
	f.games = NewGameService(f.store, f.registry, f.broadcast, GraderWithFallback(f.grader, time.Second), f.stats, &stubQuestions{}, Timings{
		ArbitrationWindow: 20 * time.Millisecond,
		StartGrace:        10 * time.Millisecond,
	})
	return f
}

func testSettings() domain.RoomSettings {
	return domain.RoomSettings{
		Name:            "Friday Night Trivia",
		MaxPlayers:      4,
		SelectedTopics:  []string{"science"},
		AnswerTimeLimit: 15,
		DifficultyRange: domain.DifficultyRange{Min: 1, Max: 10},
		QuestionCount:   3,
	}
}

func testQuestions(n int) []domain.Question {
	questions := make([]domain.Question, n)
	for i := range questions {
		questions[i] = domain.Question{
			Prompt:     "prompt",
			Answer:     "answer",
			Topic:      "science",
			Difficulty: 5,
		}
	}
	return questions
}

// createRoom connects the host and creates a room, returning its ID.
func (f *fixture) createRoom(t *testing.T, connID, hostName string) string {
	t.Helper()
	f.registry.Connect(connID)
	if err := f.rooms.CreateRoom(connID, hostName, testSettings()); err != nil {
		t.Fatalf("create room: %v", err)
	}
	ev, ok := f.broadcast.last(EventRoomCreated)
	if !ok {
		t.Fatalf("expected roomCreated event")
	}
	return ev.payload.(RoomPayload).RoomID
}

func (f *fixture) join(t *testing.T, connID, roomID, name string) {
	t.Helper()
	f.registry.Connect(connID)
	if err := f.rooms.JoinRoom(connID, roomID, name, ""); err != nil {
		t.Fatalf("join room: %v", err)
	}
}

// startPlaying starts a game and waits until the grace period has elapsed.
func (f *fixture) startPlaying(t *testing.T, hostConn string, questions []domain.Question) *Room {
	t.Helper()
	if err := f.games.StartGame(context.Background(), hostConn, questions); err != nil {
		t.Fatalf("start game: %v", err)
	}
	roomID, ok := f.registry.RoomOf(hostConn)
	if !ok {
		t.Fatalf("host not in a room")
	}
	room, ok := f.store.Get(roomID)
	if !ok {
		t.Fatalf("room not in store")
	}
	waitForStatus(t, room, domain.StatusPlaying)
	return room
}

func waitForStatus(t *testing.T, room *Room, want domain.GameStatus) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		room.mu.Lock()
		status := room.game.Status
		room.mu.Unlock()
		if status == want {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("room never reached status %q", want)
}

// setAnswering installs an arbitration winner directly, bypassing the claim
// window, so submission tests stay focused.
func setAnswering(room *Room, connID string) {
	room.mu.Lock()
	defer room.mu.Unlock()
	room.game.Play.AnsweringPlayerID = connID
}

func waitForAttempts(t *testing.T, stats *stubStats, want int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		stats.mu.Lock()
		n := stats.attempts
		stats.mu.Unlock()
		if n >= want {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("stats never reached %d attempts", want)
}

func (f *fixture) scoreOf(t *testing.T, room *Room, connID string) int {
	t.Helper()
	room.mu.Lock()
	defer room.mu.Unlock()
	player := room.playerLocked(connID)
	if player == nil {
		t.Fatalf("player %s not in room", connID)
	}
	return player.Score
}
