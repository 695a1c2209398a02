// Package main is the entry point for the agent configurator API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/agent-configurator/internal/audio"
	"github.com/capitalize-ai/agent-configurator/internal/config"
	"github.com/capitalize-ai/agent-configurator/internal/handler"
	"github.com/capitalize-ai/agent-configurator/internal/llm"
	"github.com/capitalize-ai/agent-configurator/internal/middleware"
	natsclient "github.com/capitalize-ai/agent-configurator/internal/nats"
	"github.com/capitalize-ai/agent-configurator/internal/playback"
	"github.com/capitalize-ai/agent-configurator/internal/prompt"
	"github.com/capitalize-ai/agent-configurator/internal/service"
	"github.com/capitalize-ai/agent-configurator/internal/store"
	"github.com/capitalize-ai/agent-configurator/pkg/logger"
	"github.com/capitalize-ai/agent-configurator/pkg/tracing"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	var (
		log *logger.Logger
		err error
	)
	if cfg.IsDevelopment() {
		log, err = logger.NewDevelopment()
	} else {
		log, err = logger.New(cfg.LogLevel, "json")
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("starting agent configurator",
		zap.String("store", cfg.StoreBackend),
		zap.String("llm_provider", cfg.LLMProvider),
	)

	ctx := context.Background()

	// Initialize tracing if enabled
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "agent-configurator", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// Configuration persistence
	kv, err := store.Open(ctx, store.Options{
		Backend:     store.Backend(cfg.StoreBackend),
		SQLitePath:  cfg.SQLitePath,
		RedisURL:    cfg.RedisURL,
		PostgresDSN: cfg.PostgresDSN,
	})
	if err != nil {
		log.Fatal("failed to open configuration store", zap.Error(err))
	}
	defer kv.Close()

	configStore := store.NewConfigStore(kv, log.Named("store"))
	editor, err := service.NewConfigEditor(ctx, configStore, log.Named("editor"))
	if err != nil {
		log.Fatal("failed to load configuration", zap.Error(err))
	}

	// Prompt templates
	templates := prompt.DefaultTemplates()
	if cfg.PromptTemplatesPath != "" {
		templates, err = prompt.LoadTemplates(cfg.PromptTemplatesPath)
		if err != nil {
			log.Fatal("failed to load prompt templates", zap.Error(err), zap.String("path", cfg.PromptTemplatesPath))
		}
	}
	builder := prompt.NewBuilder(templates)

	// Initialize LLM client
	llmClient := newLLMClient(cfg, log.Named("llm"))
	var assistant service.Assistant
	if llmClient.CanComplete() {
		assistant = llmClient
	} else {
		log.Warn("no completion provider configured, chat preview will reject submissions")
	}

	// Optional event publication
	readiness := map[string]handler.ReadinessCheck{}
	var publisher service.EventPublisher
	if cfg.NATSEnabled {
		natsClient, err := natsclient.Connect(ctx, natsclient.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log.Named("nats"))
		if err != nil {
			log.Fatal("failed to connect to NATS", zap.Error(err))
		}
		defer natsClient.Close()

		if err := natsclient.EnsureStream(ctx, natsClient.JetStream()); err != nil {
			log.Fatal("failed to ensure stream", zap.Error(err))
		}
		publisher = natsclient.NewPublisher(natsClient.JetStream(), log.Named("nats"))
		readiness["nats"] = natsClient.Ready
	}

	// Chat preview
	media := audio.NewStore()
	chat := service.NewChatService(assistant, builder, media, publisher, service.ChatOptions{
		Voice:       cfg.SpeechVoice,
		CallTimeout: cfg.LLMTimeout,
		Probe:       audio.MP3Duration,
	}, log.Named("chat"))
	chat.SetConfiguration(editor.Saved())
	configStore.OnSave(chat.SetConfiguration)
	chat.StartConversation()

	var limiter *middleware.Limiter
	if cfg.RateLimitRequests > 0 {
		limiter = middleware.NewLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow)
	}

	coordinator := playback.NewCoordinator(playback.NewTimerPlayer(playback.DefaultClipDuration), log.Named("playback"))

	router := handler.NewRouter(handler.RouterConfig{
		Health:        handler.NewHealthHandler(readiness),
		Configuration: handler.NewConfigurationHandler(editor, log),
		Chat:          handler.NewChatHandler(chat, cfg.MaxUploadBytes, log),
		Stream:        handler.NewStreamHandler(chat, log),
		WebSocket:     handler.NewWebSocketHandler(chat, cfg.CORSAllowedOrigins, limiter, log),
		Media:         handler.NewMediaHandler(media),
		Playback:      handler.NewPlaybackHandler(coordinator, chat, log),

		AllowedOrigins: cfg.CORSAllowedOrigins,
		Limiter:        limiter,
		MaxBodyBytes:   cfg.MaxUploadBytes + 1<<20, // multipart overhead
		Logger:         log,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}
	if err := chat.Wait(shutdownCtx); err != nil {
		log.Warn("pipelines still running at shutdown", zap.Error(err))
	}
	coordinator.Stop()

	log.Info("server stopped")
}

// newLLMClient selects the completion provider. Transcription and speech
// always go through OpenAI when a key is present.
func newLLMClient(cfg *config.Config, log *logger.Logger) *llm.Client {
	var (
		completer   llm.Completer
		transcriber llm.Transcriber
		synthesizer llm.Synthesizer
	)

	if cfg.OpenAIAPIKey != "" {
		oc, err := llm.NewOpenAIClient(llm.OpenAIConfig{
			APIKey:             cfg.OpenAIAPIKey,
			BaseURL:            cfg.OpenAIBaseURL,
			ChatModel:          cfg.CompletionModel,
			TranscriptionModel: cfg.TranscriptionModel,
			SpeechModel:        cfg.SpeechModel,
		})
		if err != nil {
			log.Warn("failed to create OpenAI client, audio features disabled", zap.Error(err))
		} else {
			transcriber, synthesizer = oc, oc
			if llm.Provider(cfg.LLMProvider) == llm.ProviderOpenAIChat {
				completer = oc
			}
		}
	}

	switch llm.Provider(cfg.LLMProvider) {
	case llm.ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			break
		}
		rc, err := llm.NewResponsesClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.CompletionModel, &http.Client{Timeout: cfg.LLMTimeout})
		if err != nil {
			log.Warn("failed to create Responses client", zap.Error(err))
			break
		}
		completer = rc
	case llm.ProviderAnthropic:
		ac, err := llm.NewAnthropicClient(cfg.AnthropicAPIKey, cfg.CompletionModel)
		if err != nil {
			log.Warn("failed to create Anthropic client", zap.Error(err))
			break
		}
		completer = ac
	case llm.ProviderOpenAIChat:
	default:
		log.Warn("unknown LLM provider", zap.String("provider", cfg.LLMProvider))
	}

	return llm.NewClient(completer, transcriber, synthesizer, llm.Options{
		Temperature: llm.Float(cfg.Temperature),
		MaxTokens:   cfg.MaxTokens,
		TopP:        llm.Float(cfg.TopP),
	}, log)
}
