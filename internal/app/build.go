package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/devashq/intervoice/internal/audiostore"
	"github.com/devashq/intervoice/internal/config"
	"github.com/devashq/intervoice/internal/httpapi"
	"github.com/devashq/intervoice/internal/interview"
	"github.com/devashq/intervoice/internal/observability"
	"github.com/devashq/intervoice/internal/pipeline"
	"github.com/devashq/intervoice/internal/session"
	"github.com/devashq/intervoice/internal/speech"
	"github.com/devashq/intervoice/internal/transcript"
)

// BuildResult bundles everything main needs to run the service.
type BuildResult struct {
	Config       config.Config
	API          *httpapi.Server
	Sessions     *session.Manager
	Orchestrator *pipeline.Orchestrator
	Metrics      *observability.Metrics

	SpeechProvider string

	// Cleanup should be called on shutdown to release external resources.
	Cleanup func() error
}

func Build(ctx context.Context, cfg config.Config) (*BuildResult, error) {
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	store, err := transcript.NewStore(ctx, transcript.Options{
		DatabaseURL:   cfg.DatabaseURL,
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		RedisDB:       cfg.RedisDB,
	})
	if err != nil {
		return nil, fmt.Errorf("transcript store init failed: %w", err)
	}

	generator, err := interview.NewGenerator(interview.GeneratorConfig{
		Provider: cfg.BrainProvider,
		APIKey:   cfg.OpenAIAPIKey,
		BaseURL:  cfg.OpenAIBaseURL,
		Model:    cfg.OpenAIChatModel,
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("generator init failed: %w", err)
	}
	engine := interview.NewEngine(generator)

	providers, err := speech.NewProviders(ctx, speech.Config{
		Provider: cfg.SpeechProvider,
		Language: cfg.SpeechLanguage,
		OpenAI: speech.OpenAIConfig{
			APIKey:          cfg.OpenAIAPIKey,
			BaseURL:         cfg.OpenAIBaseURL,
			TranscribeModel: cfg.OpenAITranscribeModel,
			TTSModel:        cfg.OpenAITTSModel,
			TTSVoice:        cfg.OpenAITTSVoice,
		},
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("speech provider init failed: %w", err)
	}

	audioClips, err := audiostore.New(ctx, audiostore.Options{
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		RedisDB:       cfg.RedisDB,
		TTL:           cfg.AudioTTL,
	})
	if err != nil {
		_ = providers.Cleanup()
		_ = store.Close()
		return nil, fmt.Errorf("audio store init failed: %w", err)
	}

	sessions := session.NewManager(cfg.SessionInactivityTimeout)
	sessions.SetExpireHook(func(_ *session.Session) {
		metrics.ActiveInterviews.Set(float64(sessions.ActiveCount()))
	})

	feed := pipeline.NewFeed()

	delivery := pipeline.DeliveryInline
	if strings.EqualFold(strings.TrimSpace(cfg.AudioDelivery), string(pipeline.DeliveryStored)) {
		delivery = pipeline.DeliveryStored
	}

	orchestrator := pipeline.NewOrchestrator(
		store,
		engine,
		providers.Transcriber,
		providers.Synthesizer,
		sessions,
		audioClips,
		metrics,
		feed,
		delivery,
	)

	api := httpapi.New(cfg, sessions, orchestrator, audioClips, feed, metrics)

	cleanup := func() error {
		var errs []string
		if err := providers.Cleanup(); err != nil {
			errs = append(errs, err.Error())
		}
		if err := audioClips.Close(); err != nil {
			errs = append(errs, err.Error())
		}
		if err := store.Close(); err != nil {
			errs = append(errs, err.Error())
		}
		if len(errs) > 0 {
			return fmt.Errorf("%s", strings.Join(errs, "; "))
		}
		return nil
	}

	return &BuildResult{
		Config:         cfg,
		API:            api,
		Sessions:       sessions,
		Orchestrator:   orchestrator,
		Metrics:        metrics,
		SpeechProvider: providers.Resolved,
		Cleanup:        cleanup,
	}, nil
}
