package cli

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"trivia-rooms/internal/app"
	"trivia-rooms/internal/config"
	"trivia-rooms/internal/domain"
	"trivia-rooms/internal/infra/gemini"
	"trivia-rooms/internal/infra/memory"
	pginfra "trivia-rooms/internal/infra/postgres"
	redisinfra "trivia-rooms/internal/infra/redis"
	transport "trivia-rooms/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the trivia room server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 24*time.Hour)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var loader memory.QuestionLoader = memory.NewStaticQuestionLoader(sampleQuestions())
	if pool != nil {
		loader = pginfra.NewQuestionLoader(pool)
	}

	questionTTL := config.TTLDuration(cfg.Questions.TTL, 10*time.Minute)
	var questionRepo app.QuestionRepository
	if redisClient != nil {
		questionRepo = redisinfra.NewQuestionRepository(redisClient, loader, questionTTL)
	} else {
		questionRepo = memory.NewQuestionRepository(loader, questionTTL)
	}

	var stats app.StatsRecorder = memory.NewStatsRecorder()
	if cfg.Postgres.URL != "" {
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
		db := bun.NewDB(sqldb, pgdialect.New())
		defer db.Close()
		stats = pginfra.NewStatsRecorder(db)
	}

	var semanticGrader app.Grader
	if cfg.Grading.APIKey != "" {
		var opts []gemini.Option
		if cfg.Grading.Model != "" {
			opts = append(opts, gemini.WithModel(cfg.Grading.Model))
		}
		semanticGrader = gemini.NewGrader(cfg.Grading.APIKey, opts...)
	}
	gradingTimeout := config.TTLDuration(cfg.Grading.Timeout, 10*time.Second)
	grader := app.GraderWithFallback(semanticGrader, gradingTimeout)

	var store app.RoomStore
	if redisClient != nil {
		store = redisinfra.NewRoomStore(redisClient, redisTTL)
	} else {
		store = memory.NewRoomStore()
	}

	timings := app.DefaultTimings()
	timings.ArbitrationWindow = config.TTLDuration(cfg.Game.ArbitrationWindow, timings.ArbitrationWindow)
	timings.StartGrace = config.TTLDuration(cfg.Game.StartGrace, timings.StartGrace)

	registry := app.NewConnectionRegistry()
	hub := transport.NewHub(registry)
	rooms := app.NewRoomService(store, registry, hub)
	games := app.NewGameService(store, registry, hub, grader, stats, questionRepo, timings)
	wsHandler := transport.NewWSHandler(hub, rooms, games, registry)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting trivia room server on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleQuestions provides a minimal bank per topic; the Postgres loader
// replaces this in production.
func sampleQuestions() map[string][]domain.Question {
	return map[string][]domain.Question{
		"science": {
			{Prompt: "What planet is known as the Red Planet?", Answer: "Mars", Topic: "science", Difficulty: 2},
			{Prompt: "What gas do plants absorb from the atmosphere?", Answer: "Carbon dioxide", Topic: "science", Difficulty: 3},
			{Prompt: "What is the chemical symbol for gold?", Answer: "Au", Topic: "science", Difficulty: 4},
		},
		"history": {
			{Prompt: "In which year did the Berlin Wall fall?", Answer: "1989", Topic: "history", Difficulty: 3},
			{Prompt: "Who was the first president of the United States?", Answer: "George Washington", Topic: "history", Difficulty: 2},
			{Prompt: "Which empire built the Colosseum?", Answer: "The Roman Empire", Topic: "history", Difficulty: 3},
		},
		"geography": {
			{Prompt: "What is the longest river in the world?", Answer: "The Nile", Topic: "geography", Difficulty: 4},
			{Prompt: "Which country has the largest population?", Answer: "India", Topic: "geography", Difficulty: 3},
			{Prompt: "What is the capital of Australia?", Answer: "Canberra", Topic: "geography", Difficulty: 5},
		},
	}
}
