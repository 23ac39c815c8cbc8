// Package app wires configuration into the services shared by the API
// server and the CLI.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dvloznov/expense-voice/internal/cache"
	"github.com/dvloznov/expense-voice/internal/config"
	"github.com/dvloznov/expense-voice/internal/gcsuploader"
	infraBQ "github.com/dvloznov/expense-voice/internal/infra/bigquery"
	"github.com/dvloznov/expense-voice/internal/llm"
	"github.com/dvloznov/expense-voice/internal/pipeline"
	"github.com/dvloznov/expense-voice/internal/retry"
	"github.com/dvloznov/expense-voice/internal/stt"
	"github.com/dvloznov/expense-voice/internal/transcripts"
)

// Options selects optional components.
type Options struct {
	// RequireLLM fails construction when no Gemini key is configured.
	RequireLLM bool
	// SkipTranslation overrides llm.translate.
	SkipTranslation bool
	// Persist enables the BigQuery recorder when configured.
	Persist bool
}

// App holds the wired components. Optional ones are nil when not configured.
type App struct {
	Config *config.Config
	Log    zerolog.Logger

	Service     *pipeline.Service
	Transcriber *stt.Chain
	ElevenLabs  *stt.ElevenLabsClient
	Uploader    *gcsuploader.Client
	Results     *infraBQ.ResultRepository

	closers []func() error
}

// New builds an App from cfg.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger, opts Options) (*App, error) {
	if opts.RequireLLM {
		if err := cfg.RequireLLM(); err != nil {
			return nil, err
		}
	}

	a := &App{Config: cfg, Log: log}

	a.Transcriber = a.buildTranscriber(ctx)

	if cfg.Storage.GCSBucket != "" {
		up, err := gcsuploader.New(ctx, cfg.Storage.GCSBucket, cfg.Storage.GCSPrefix)
		if err != nil {
			log.Warn().Err(err).Msg("GCS mirror disabled")
		} else {
			a.Uploader = up
			a.closers = append(a.closers, up.Close)
		}
	}

	if opts.Persist && cfg.BigQueryEnabled() {
		repo, err := infraBQ.NewResultRepository(ctx, cfg.Storage.BigQueryProject, cfg.Storage.BigQueryDataset)
		if err != nil {
			log.Warn().Err(err).Msg("BigQuery recording disabled")
		} else {
			a.Results = repo
			a.closers = append(a.closers, repo.Close)
		}
	}

	if cfg.LLM.APIKey != "" {
		gen, err := a.buildGenerator(ctx)
		if err != nil {
			a.Close()
			return nil, err
		}
		deps := pipeline.ServiceDeps{
			Generator:       gen,
			Transcriber:     a.Transcriber,
			ModelName:       cfg.LLM.Model,
			SkipTranslation: opts.SkipTranslation || !cfg.LLM.Translate,
			Logger:          log,
		}
		if a.Results != nil {
			deps.Recorder = a.Results
		}
		a.Service = pipeline.NewService(deps)
	}

	return a, nil
}

func (a *App) buildGenerator(ctx context.Context) (llm.Generator, error) {
	cfg := a.Config
	client, err := llm.NewGeminiClient(ctx, llm.GeminiConfig{
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
		Retry:       retry.DefaultConfig().WithAttempts(cfg.LLM.MaxRetries),
	}, a.Log)
	if err != nil {
		return nil, err
	}

	store := a.buildCache(ctx)
	if store == nil {
		return client, nil
	}
	return llm.NewCachedGenerator(client, store, client.Model(), cfg.Cache.TTL, a.Log), nil
}

// buildCache prefers Redis and falls back to an in-process store.
func (a *App) buildCache(ctx context.Context) cache.Store {
	cfg := a.Config.Cache
	if !cfg.Enabled {
		return nil
	}
	var store cache.Store
	if cfg.RedisAddr != "" {
		redisStore, err := cache.NewRedisStore(ctx, cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err == nil {
			a.Log.Info().Str("addr", cfg.RedisAddr).Msg("Using Redis response cache")
			store = redisStore
		} else {
			a.Log.Warn().Err(err).Msg("Redis unavailable, using in-memory cache")
		}
	}
	if store == nil {
		store = cache.NewMemoryStore(0)
	}
	a.closers = append(a.closers, store.Close)
	return store
}

// buildTranscriber assembles the providers in configured order, skipping
// those that cannot be constructed.
func (a *App) buildTranscriber(ctx context.Context) *stt.Chain {
	cfg := a.Config.STT
	var providers []stt.Provider
	for _, name := range cfg.Providers {
		switch name {
		case config.ProviderElevenLabs:
			client := stt.NewElevenLabsClient(stt.ElevenLabsConfig{
				APIKey:  cfg.ElevenLabsAPIKey,
				ModelID: cfg.ElevenLabsModel,
				BaseURL: cfg.ElevenLabsBaseURL,
				Timeout: cfg.Timeout,
				Retry:   retry.DefaultConfig().WithAttempts(cfg.MaxRetries),
			}, a.Log)
			a.ElevenLabs = client
			if !client.HasAPIKey() {
				a.Log.Warn().Msg("ELEVENLABS_API_KEY not set, skipping ElevenLabs")
				continue
			}
			providers = append(providers, client)
		case config.ProviderGoogle:
			g, err := stt.NewGoogleTranscriber(ctx, stt.GoogleConfig{
				LanguageCode:    cfg.GoogleLanguage,
				CredentialsFile: cfg.GoogleCredentialsFile,
				SampleRate:      a.Config.Audio.SampleRate,
			}, a.Log)
			if err != nil {
				a.Log.Warn().Err(err).Msg("Google Speech unavailable, skipping")
				continue
			}
			providers = append(providers, g)
			a.closers = append(a.closers, g.Close)
		}
	}
	if len(providers) == 0 {
		a.Log.Warn().Msg("No speech-to-text provider configured")
	}
	return stt.NewChain(a.Log, providers...)
}

// NewArchive creates the transcript archive, mirroring to GCS when configured.
func (a *App) NewArchive() (*transcripts.Archive, error) {
	cfg := transcripts.Config{
		AudioDir:       a.Config.Audio.AudioDir,
		TranscriptsDir: a.Config.Audio.TranscriptsDir,
		SaveAudio:      a.Config.Audio.SaveAudio,
		ChunkSeconds:   a.Config.Audio.ChunkSeconds,
	}
	if a.Uploader != nil {
		return transcripts.NewArchive(cfg, a.Uploader, a.Log)
	}
	return transcripts.NewArchive(cfg, nil, a.Log)
}

// RequireService reports an error when the LLM pipeline is not available.
func (a *App) RequireService() error {
	if a.Service == nil {
		return fmt.Errorf("expense pipeline unavailable: %w", a.Config.RequireLLM())
	}
	return nil
}

// Close releases every client in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
