package app

import (
	"testing"
	"time"

	"trivia-rooms/internal/domain"
)

func waitForAnsweringPlayer(t *testing.T, room *Room) string {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		room.mu.Lock()
		var winner string
		if room.game.Play != nil {
			winner = room.game.Play.AnsweringPlayerID
		}
		room.mu.Unlock()
		if winner != "" {
			return winner
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("no arbitration winner was chosen")
	return ""
}

func TestClaimWindowPicksLatencyAdjustedWinner(t *testing.T) {
	f := newFixture(t)
	roomID := f.createRoom(t, "host", "Alice")
	f.join(t, "fast-net", roomID, "Bob")
	f.join(t, "slow-net", roomID, "Carol")
	room := f.startPlaying(t, "host", testQuestions(1))

	// Carol's claim carries an older client timestamp once half her RTT is
	// subtracted, so she wins even though Bob's claim arrived first.
	f.registry.SetLatency("slow-net", 20*time.Millisecond)
	f.registry.SetLatency("fast-net", 0)
	f.games.ClaimAnswer("fast-net", 105)
	f.games.ClaimAnswer("slow-net", 100)

	if winner := waitForAnsweringPlayer(t, room); winner != "slow-net" {
		t.Fatalf("winner %q, want slow-net", winner)
	}

	ev, ok := f.broadcast.last(EventQuestionAnswering)
	if !ok {
		t.Fatalf("missing questionAnswering")
	}
	if payload := ev.payload.(AnsweringPayload); payload.PlayerID != "slow-net" {
		t.Fatalf("announced winner %q, want slow-net", payload.PlayerID)
	}

	// The reveal interruption precedes the winner announcement.
	seq := f.broadcast.sequence()
	interruptIdx, answeringIdx := -1, -1
	for i, name := range seq {
		if name == EventTypewriterInterrupted && interruptIdx < 0 {
			interruptIdx = i
		}
		if name == EventQuestionAnswering && answeringIdx < 0 {
			answeringIdx = i
		}
	}
	if interruptIdx < 0 || answeringIdx < 0 || interruptIdx > answeringIdx {
		t.Fatalf("event order %v, want typewriterInterrupted before questionAnswering", seq)
	}
}

func TestClaimTieBreaksByArrival(t *testing.T) {
	f := newFixture(t)
	roomID := f.createRoom(t, "host", "Alice")
	f.join(t, "guest", roomID, "Bob")
	room := f.startPlaying(t, "host", testQuestions(1))

	f.games.ClaimAnswer("guest", 100)
	f.games.ClaimAnswer("host", 100)

	if winner := waitForAnsweringPlayer(t, room); winner != "guest" {
		t.Fatalf("winner %q, want first claimant guest", winner)
	}
}

func TestClaimAfterWinnerIsIgnored(t *testing.T) {
	f := newFixture(t)
	roomID := f.createRoom(t, "host", "Alice")
	f.join(t, "guest", roomID, "Bob")
	room := f.startPlaying(t, "host", testQuestions(1))

	f.games.ClaimAnswer("host", 100)
	waitForAnsweringPlayer(t, room)

	f.games.ClaimAnswer("guest", 50)
	time.Sleep(3 * f.games.timings.ArbitrationWindow)
	if winner := waitForAnsweringPlayer(t, room); winner != "host" {
		t.Fatalf("winner changed to %q after late claim", winner)
	}
	if f.broadcast.count(EventQuestionAnswering) != 1 {
		t.Fatalf("late claim triggered another announcement")
	}
}

func TestClaimFromNonMemberIsIgnored(t *testing.T) {
	f := newFixture(t)
	f.createRoom(t, "host", "Alice")
	f.startPlaying(t, "host", testQuestions(1))

	f.registry.Connect("outsider")
	f.games.ClaimAnswer("outsider", 100)
	time.Sleep(3 * f.games.timings.ArbitrationWindow)
	if f.broadcast.count(EventQuestionAnswering) != 0 {
		t.Fatalf("claim from a connection outside the room was honored")
	}
}

func TestPendingClaimsDropWhenQuestionAdvances(t *testing.T) {
	f := newFixture(t)
	roomID := f.createRoom(t, "host", "Alice")
	f.join(t, "guest", roomID, "Bob")
	room := f.startPlaying(t, "host", testQuestions(2))

	f.games.ClaimAnswer("guest", 100)
	// The host advances before the window closes; the stale claim must not
	// crown a winner on the next question.
	f.games.NextQuestion("host")
	time.Sleep(3 * f.games.timings.ArbitrationWindow)

	room.mu.Lock()
	winner := room.game.Play.AnsweringPlayerID
	room.mu.Unlock()
	if winner != "" {
		t.Fatalf("stale claim produced winner %q", winner)
	}
	if f.broadcast.count(EventQuestionAnswering) != 0 {
		t.Fatalf("stale claim was announced")
	}
}

func TestPendingClaimsDropWhenHostSkips(t *testing.T) {
	f := newFixture(t)
	roomID := f.createRoom(t, "host", "Alice")
	f.join(t, "guest", roomID, "Bob")
	room := f.startPlaying(t, "host", testQuestions(1))

	// The skip lands between the claim and the window closing; the revealed
	// question must not gain a winner after the fact.
	f.games.ClaimAnswer("guest", 100)
	f.games.SkipQuestion("host")
	time.Sleep(3 * f.games.timings.ArbitrationWindow)

	room.mu.Lock()
	winner := room.game.Play.AnsweringPlayerID
	room.mu.Unlock()
	if winner != "" {
		t.Fatalf("claim resolved after skip, winner %q", winner)
	}
	if f.broadcast.count(EventQuestionAnswering) != 0 || f.broadcast.count(EventTypewriterInterrupted) != 0 {
		t.Fatalf("arbitration events emitted after the answer was revealed")
	}
}

func TestClaimIgnoredAfterSubmission(t *testing.T) {
	f := newFixture(t)
	roomID := f.createRoom(t, "host", "Alice")
	f.join(t, "guest", roomID, "Bob")
	room := f.startPlaying(t, "host", testQuestions(1))

	f.games.SkipQuestion("host")
	f.games.ClaimAnswer("guest", 100)
	time.Sleep(3 * f.games.timings.ArbitrationWindow)

	room.mu.Lock()
	winner := room.game.Play.AnsweringPlayerID
	room.mu.Unlock()
	if winner != "" {
		t.Fatalf("claim after reveal produced winner %q", winner)
	}
}

func TestAdjustedTimestampCompensatesLatency(t *testing.T) {
	claim := answerClaim{clientTS: 100, latency: 20 * time.Millisecond}
	if got := claim.adjusted(); got != 90 {
		t.Fatalf("adjusted() = %d, want 90", got)
	}
	zero := answerClaim{clientTS: 105}
	if got := zero.adjusted(); got != 105 {
		t.Fatalf("adjusted() = %d, want 105", got)
	}
}

func TestClaimsNotAcceptedWhileWaiting(t *testing.T) {
	f := newFixture(t)
	roomID := f.createRoom(t, "host", "Alice")
	f.join(t, "guest", roomID, "Bob")
	room, _ := f.store.Get(roomID)

	f.games.ClaimAnswer("guest", 100)
	time.Sleep(3 * f.games.timings.ArbitrationWindow)

	room.mu.Lock()
	play := room.game.Play
	status := room.game.Status
	room.mu.Unlock()
	if status != domain.StatusWaiting || play != nil {
		t.Fatalf("claim outside a game mutated state: status=%q play=%+v", status, play)
	}
}
