package daemon

import (
	"fmt"
	"log/slog"
	"time"

	"daystart/internal/cleanup"
	"daystart/internal/compose"
	"daystart/internal/config"
	"daystart/internal/content"
	"daystart/internal/queue"
	"daystart/internal/server"
	"daystart/internal/services/llm"
	"daystart/internal/sources"
	"daystart/internal/speech"
	"daystart/internal/worker"
)

// Build wires the full backend from configuration: queue store, content
// cache with registered source adapters, composer, synthesizer, worker,
// sweeper, API server, and the daemon around them.
func Build(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	store, err := queue.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open queue store: %w", err)
	}

	budget := content.NewBudget(store.DB())
	manager := content.NewManager(
		store.DB(),
		time.Duration(cfg.Cache.TTLHours)*time.Hour,
		time.Duration(cfg.Cache.StaleGraceHours)*time.Hour,
		logger,
	)
	sources.RegisterAll(manager, cfg.Sources, budget, logger)

	completer := llm.NewClient(llm.Config{
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		Model:          cfg.LLM.Model,
		Referer:        cfg.LLM.Referer,
		Title:          cfg.LLM.Title,
		TimeoutSeconds: cfg.LLM.TimeoutSeconds,
	})
	composer := compose.NewComposer(completer, logger)

	synth, err := speech.NewSynthesizer(cfg.TTS, cfg.Paths.AudioDir, logger)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("build synthesizer: %w", err)
	}

	w := worker.New(store, manager, composer, synth, cfg, logger)
	sweeper := cleanup.New(store, manager, cfg, logger)
	api := server.New(cfg, store, w, manager, sweeper, logger)

	return New(cfg, store, api, w, manager, logger)
}
