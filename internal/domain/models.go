package domain

// Game bounds enforced at room creation and settings updates.
const (
	MinPlayers = 2
	MaxPlayers = 8

	MinAnswerTime = 5
	MaxAnswerTime = 60

	MinDifficulty = 1
	MaxDifficulty = 10

	MinQuestions = 1
	MaxQuestions = 50
)

// Sentinel submission texts used in place of a real answer.
const (
	NoAnswerText = "(no answer)"
	SkippedText  = "(skipped)"
)

// GameStatus enumerates the lifecycle phases of a room's game.
type GameStatus string

const (
	StatusWaiting      GameStatus = "waiting"
	StatusInitializing GameStatus = "initializing"
	StatusPlaying      GameStatus = "playing"
	StatusEnded        GameStatus = "ended"
)

// Vote values accepted during an appeal.
const (
	VoteAccept = "accept"
	VoteReject = "reject"
)

// Player is a member of a room, keyed by its connection ID.
type Player struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	IsHost  bool   `json:"isHost"`
	IsReady bool   `json:"isReady"`
	Score   int    `json:"score"`
}

// DifficultyRange bounds the difficulty of sourced questions, min < max.
type DifficultyRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// RoomSettings carries the host-tunable parameters of a room.
type RoomSettings struct {
	Name            string          `json:"roomName"`
	IsPrivate       bool            `json:"isPrivate"`
	Password        string          `json:"password,omitempty"`
	MaxPlayers      int             `json:"maxPlayers"`
	SelectedTopics  []string        `json:"selectedTopics"`
	AnswerTimeLimit int             `json:"answerTimeLimit"`
	DifficultyRange DifficultyRange `json:"difficultyRange"`
	QuestionCount   int             `json:"questionCount"`
}

// Question is an immutable prompt/answer pair sourced outside the core.
type Question struct {
	Prompt     string  `json:"question"`
	Answer     string  `json:"answer"`
	Topic      string  `json:"topic"`
	Subtopic   string  `json:"subtopic,omitempty"`
	Difficulty float64 `json:"difficulty"`
}

// Verdict is the outcome of grading a submitted answer.
type Verdict struct {
	IsCorrect   bool    `json:"isCorrect"`
	Confidence  float64 `json:"confidence"`
	Explanation string  `json:"explanation"`
}

// Appeal is the one-shot peer-vote sub-state nested in a submission.
type Appeal struct {
	InProgress bool              `json:"inProgress"`
	PlayerID   string            `json:"playerId,omitempty"`
	Answer     string            `json:"answer,omitempty"`
	Votes      map[string]string `json:"votes,omitempty"`
	Passed     *bool             `json:"passed,omitempty"`
}

// Submission is the per-question transient result, cleared on advance.
type Submission struct {
	Answer        string  `json:"submittedAnswer"`
	CorrectAnswer string  `json:"correctAnswer"`
	Correct       bool    `json:"answerResult"`
	Explanation   string  `json:"answerExplanation"`
	ShowAnswer    bool    `json:"showAnswer"`
	Appealed      bool    `json:"hasBeenAppealed"`
	Appeal        *Appeal `json:"appeal,omitempty"`
}

// GameState is the tagged state carried inside a room. Play is nil while
// Waiting and set from Initializing onward.
type GameState struct {
	Status GameStatus `json:"status"`
	Play   *PlayState `json:"play,omitempty"`
}

// PlayState holds the fields only valid once a game has been started.
type PlayState struct {
	Questions         []Question  `json:"gameQuestions"`
	CurrentIndex      int         `json:"currentQuestionIndex"`
	AnsweringPlayerID string      `json:"answeringPlayerId,omitempty"`
	Submission        *Submission `json:"submission,omitempty"`
}

// RoomSummary is a directory entry for the public room list.
type RoomSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	HostName    string `json:"hostName"`
	PlayerCount int    `json:"playerCount"`
	MaxPlayers  int    `json:"maxPlayers"`
}
