package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/matti-app/matti/backend/internal/config"
	"github.com/matti-app/matti/backend/internal/handler"
	"github.com/matti-app/matti/backend/internal/jobs"
	"github.com/matti-app/matti/backend/internal/model/assistant"
	"github.com/matti-app/matti/backend/internal/service/ai"
	actionService "github.com/matti-app/matti/backend/internal/service/action"
	authService "github.com/matti-app/matti/backend/internal/service/auth"
	chatService "github.com/matti-app/matti/backend/internal/service/chat"
	"github.com/matti-app/matti/backend/internal/service/coach"
	feedbackService "github.com/matti-app/matti/backend/internal/service/feedback"
	followupService "github.com/matti-app/matti/backend/internal/service/followup"
	goalService "github.com/matti-app/matti/backend/internal/service/goal"
	"github.com/matti-app/matti/backend/internal/store"
)

type deps struct {
	db       *store.DB
	services handler.Services
	sweeps   jobs.Sweeps
}

func openStore(ctx context.Context, cfg *config.Config) (*store.DB, error) {
	dialect, err := store.ParseDialect(cfg.Database.Driver)
	if err != nil {
		return nil, err
	}
	db, err := store.Open(ctx, dialect, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return db, nil
}

// loadAssistant picks the configured assistant, replacing its base prompt
// with the instructions file when one is set.
func loadAssistant(cfg config.ChatConfig) (assistant.Store, assistant.Assistant, error) {
	assistants := assistant.NewMemoryStore(assistant.Seed())
	if cfg.InstructionsFile != "" {
		raw, err := os.ReadFile(cfg.InstructionsFile)
		if err != nil {
			return nil, assistant.Assistant{}, fmt.Errorf("read assistant instructions: %w", err)
		}
		if prompt := strings.TrimSpace(string(raw)); prompt != "" {
			assistants = assistants.WithPrompt(cfg.Assistant, prompt)
		}
	}

	active, ok := assistants.FindByID(cfg.Assistant)
	if !ok {
		return nil, assistant.Assistant{}, fmt.Errorf("unknown assistant %q", cfg.Assistant)
	}
	return assistants, active, nil
}

func build(ctx context.Context, cfg *config.Config) (*deps, error) {
	log := zerolog.Ctx(ctx)

	db, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	assistants, active, err := loadAssistant(cfg.Chat)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	completer, err := ai.New(ctx, cfg.AI)
	if err != nil {
		log.Warn().Err(err).Str("provider", cfg.AI.Provider).Msg("language model unavailable, continuing without generation")
		completer = ai.Unavailable{}
	}
	if !cfg.AI.Enabled() {
		log.Warn().Msg("no language model credentials configured, replies and plans are disabled")
	}

	authSvc, err := authService.NewService(db, authService.Options{
		Secret:      cfg.Auth.CookieSecret,
		AccessTTL:   cfg.Auth.AccessTTL,
		RefreshTTL:  cfg.Auth.RefreshTTL,
		OwnerOpenID: cfg.Auth.OwnerOpenID,
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	summarizer := ai.NewSummarizer(completer, active.Name)
	chats := chatService.NewService(db, summarizer, chatService.Options{
		MaxConversations: cfg.Chat.MaxConversations,
		IdleTimeout:      cfg.Chat.IdleTimeout,
	})
	actions := actionService.NewService(db, nil)
	followUps := followupService.NewService(db, chats, cfg.Jobs.BatchSize, nil)

	coachSvc := coach.NewService(coach.Config{
		Conversations: chats,
		Actions:       actions,
		FollowUps:     followUps,
		Completer:     completer,
		Summarizer:    summarizer,
		Assistant:     active,
		SummaryEvery:  cfg.Chat.SummaryEvery,
	})

	return &deps{
		db: db,
		services: handler.Services{
			Assistants: assistants,
			Auth:       authSvc,
			Chat:       chats,
			Coach:      coachSvc,
			Actions:    actions,
			Goals:      goalService.NewService(db, ai.NewPlanner(completer), nil),
			Feedback:   feedbackService.NewService(db, nil),
			FollowUps:  followUps,
			DB:         db,
		},
		sweeps: jobs.Sweeps{FollowUps: followUps, Archiver: chats},
	}, nil
}

// newRunner schedules the sweeps with River on Postgres and with an
// in-process ticker on SQLite.
func newRunner(ctx context.Context, cfg *config.Config, d *deps) (jobs.Runner, error) {
	every := jobs.Intervals{FollowUp: cfg.Jobs.FollowUpInterval, Archive: cfg.Jobs.ArchiveInterval}
	if d.db.Dialect() != store.Postgres {
		return jobs.NewTickerRunner(d.sweeps, every), nil
	}

	if err := jobs.MigrateRiver(ctx, cfg.Database.DSN); err != nil {
		return nil, err
	}
	runner, err := jobs.NewRiverRunner(ctx, cfg.Database.DSN, d.sweeps, every)
	if err != nil {
		return nil, fmt.Errorf("create River client: %w", err)
	}
	return runner, nil
}
