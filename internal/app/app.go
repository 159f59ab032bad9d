package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"

	"osce-station/internal/agent"
	"osce-station/internal/casefile"
	"osce-station/internal/config"
	"osce-station/internal/platform/telegram"
	"osce-station/internal/report"
	"osce-station/internal/station"
)

const (
	dbConnectAttempts = 10
	dbRetryDelay      = 2 * time.Second
)

// App holds the collaborators shared by the server and the CLI.
type App struct {
	Config config.Config
	Logger *slog.Logger

	DB      *sql.DB
	Archive *report.Archive

	Cases      casefile.Repository
	Patient    *agent.Patient
	Aggregator *report.Aggregator
	Renderer   *report.Renderer
	Publisher  *report.Publisher

	STT station.Transcriber
	TTS station.Synthesizer
}

// New wires everything the configuration enables. A missing database is
// not fatal: cases then come from CasesDir and reports are not archived.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}

	if cfg.DatabaseURL != "" {
		db, err := OpenDB(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			logger.Warn("continuing without database", "error", err)
		} else {
			a.DB = db
			if err := Migrate(cfg.MigrationsPath, cfg.DatabaseURL); err != nil {
				logger.Error("migration failed", "error", err)
			} else {
				logger.Info("migrations applied")
			}
			a.Archive = report.NewArchive(db)
		}
	}

	var stored casefile.Repository
	if a.DB != nil {
		stored = casefile.NewPostgresRepository(a.DB)
	}
	a.Cases = caseRepository(stored, cfg.CasesDir, logger)

	llm, err := agent.NewChatClient(agent.Config{
		APIKey:  cfg.GroqAPIKey,
		BaseURL: cfg.LLMBaseURL,
		Model:   cfg.LLMModel,
		Timeout: cfg.LLMTimeout,
	}, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("chat client: %w", err)
	}

	a.Patient = agent.NewPatient(llm, logger,
		agent.WithModel(cfg.LLMModel),
		agent.WithFamilyRelevantBias(cfg.FamilyRelevantBias),
	)
	a.Aggregator = report.NewAggregator(agent.NewExaminer(llm, cfg.LLMModel), logger)
	a.Renderer = report.NewRenderer()

	switch {
	case cfg.ElevenLabsAPIKey != "":
		a.TTS = agent.NewElevenLabsClient(cfg.ElevenLabsAPIKey, "")
	case cfg.TTSURL != "":
		a.TTS = agent.NewLocalTTSClient(cfg.TTSURL)
	}
	if cfg.STTURL != "" {
		a.STT = agent.NewWhisperClient(cfg.STTURL)
	}

	var store report.Store
	if a.Archive != nil {
		store = a.Archive
	}
	var tg report.TelegramClient
	if cfg.TelegramBotToken != "" {
		tg = telegram.NewClient(cfg.TelegramBotToken)
		if cfg.ExaminerChatID == 0 {
			logger.Warn("EXAMINER_CHAT_ID is not set, reports will not be sent")
		}
	}
	a.Publisher = report.NewPublisher(store, a.Renderer, tg, cfg.ExaminerChatID, logger)

	return a, nil
}

// caseRepository serves cases from the database when there is one, falling
// back to the case directory for anything the database cannot return.
func caseRepository(stored casefile.Repository, dir string, logger *slog.Logger) casefile.Repository {
	files := casefile.NewDirRepository(dir, logger)
	if stored == nil {
		return files
	}
	return casefile.NewFallbackRepository(stored, files, logger)
}

// EngineFactory builds engines that speak through the session outbox,
// with audio when a synthesizer is configured.
func (a *App) EngineFactory() station.EngineFactory {
	return func(in station.InputProvider, out *station.Outbox) *station.Engine {
		var speech station.SpeechOutput = out
		if a.TTS != nil {
			speech = agent.NewVoice(a.TTS, a.Config.VoiceID, out)
		}
		return a.NewEngine(in, speech)
	}
}

func (a *App) NewEngine(in station.InputProvider, speech station.SpeechOutput) *station.Engine {
	return station.NewEngine(in, a.Patient, speech, a.Aggregator,
		station.WithPhases(a.Config.StationPhases()),
		station.WithTiming(a.Config.Timing),
		station.WithLogger(a.Logger),
	)
}

func (a *App) Close() {
	if a.DB != nil {
		a.DB.Close()
	}
}

// OpenDB connects to Postgres, retrying while the server starts up.
func OpenDB(ctx context.Context, url string, logger *slog.Logger) (*sql.DB, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, err
	}
	for i := 1; i <= dbConnectAttempts; i++ {
		if err = db.PingContext(ctx); err == nil {
			logger.Info("connected to database")
			return db, nil
		}
		logger.Info("waiting for database", "attempt", i, "max", dbConnectAttempts)
		select {
		case <-ctx.Done():
			db.Close()
			return nil, ctx.Err()
		case <-time.After(dbRetryDelay):
		}
	}
	db.Close()
	return nil, fmt.Errorf("could not connect to database: %w", err)
}

// Migrate applies every pending migration from source.
func Migrate(source, databaseURL string) error {
	m, err := migrate.New(source, databaseURL)
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}
