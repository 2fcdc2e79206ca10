package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"pinquiz-service/internal/app"
	"pinquiz-service/internal/config"
	"pinquiz-service/internal/domain"
	"pinquiz-service/internal/infra/memory"
	pginfra "pinquiz-service/internal/infra/postgres"
	redisinfra "pinquiz-service/internal/infra/redis"
	transport "pinquiz-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the live quiz server",
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
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var loader memory.QuizLoader = memory.NewStaticQuizLoader(sampleQuizzes())
	if pool != nil {
		loader = pginfra.NewQuizLoader(pool)
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var quizRepo app.QuizRepository
	if redisClient != nil {
		quizRepo = redisinfra.NewQuizRepository(redisClient, loader, quizTTL)
	} else {
		quizRepo = memory.NewQuizRepository(loader, quizTTL)
	}

	var sessions app.SessionRepository
	var codes app.CodeRegistry
	if redisClient != nil {
		sessions = redisinfra.NewSessionStore(redisClient, redisTTL)
		codes = redisinfra.NewCodeRegistry(redisClient, 24*time.Hour)
	} else {
		sessions = memory.NewSessionStore()
		codes = memory.NewCodeRegistry()
	}

	var results app.ResultStore = memory.NewResultArchive()
	if pool != nil {
		results = pginfra.NewResultWriter(pool)
	}

	settings := app.Settings{
		MinPlayers:  cfg.Game.MinPlayers,
		CodeLength:  cfg.Game.CodeLength,
		AutoAdvance: config.TTLDuration(cfg.Game.AutoAdvance, 0),
		SaveRetries: cfg.Game.SaveRetries,
	}
	service := app.NewGameService(sessions, quizRepo, codes, results, settings)
	wsHandler := transport.NewWSHandler(service)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws/host", wsHandler.ServeHost)
	mux.HandleFunc("/ws/play", wsHandler.ServePlayer)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting pinquiz service on :%s", finalPort)
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

// sampleQuizzes provides demo content so the server runs without Postgres.
func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"quiz-1": {
			ID:    "quiz-1",
			Title: "Warm-up trivia",
			Questions: []domain.Question{
				{
					ID:   "q1",
					Text: "What is 2 + 2?",
					Type: domain.QuestionSingleChoice,
					Options: []domain.AnswerOption{
						{ID: "o1", Text: "3", SortOrder: 1},
						{ID: "o2", Text: "4", Correct: true, SortOrder: 2},
						{ID: "o3", Text: "5", SortOrder: 3},
					},
					TimeLimit: 30 * time.Second,
					Points:    1000,
					SortOrder: 1,
				},
				{
					ID:   "q2",
					Text: "The capital of Australia is Sydney.",
					Type: domain.QuestionTrueFalse,
					Options: []domain.AnswerOption{
						{ID: "o4", Text: "True", SortOrder: 1},
						{ID: "o5", Text: "False", Correct: true, SortOrder: 2},
					},
					TimeLimit: 15 * time.Second,
					Points:    500,
					SortOrder: 2,
				},
			},
		},
	}
}
