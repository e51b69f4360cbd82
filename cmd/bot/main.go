// cmd/bot/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fitgenius-bot/config"
	"fitgenius-bot/internal/bot"
	"fitgenius-bot/internal/gateway"
	"fitgenius-bot/internal/gpt"
	"fitgenius-bot/internal/payment"
	"fitgenius-bot/internal/server"
	"fitgenius-bot/internal/store"
	"fitgenius-bot/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New().Fatalw("Failed to load config", "error", err)
	}

	l := logger.For(cfg.Env)
	defer l.Sync()
	l.Infow("Starting FitGenius bot...", "env", cfg.Env, "provider", cfg.LLM.Provider, "storage", cfg.Storage.Driver)

	if cfg.Telegram.Token == "" {
		l.Fatalw("Telegram token is not configured")
	}

	// Storage backends may come up after us, so retry like a database would
	var st store.Store
	maxRetries := 5
	for i := 0; i < maxRetries; i++ {
		st, err = store.Open(context.Background(), cfg)
		if err == nil {
			break
		}
		l.Errorw("Failed to open storage, retrying...", "error", err, "attempt", i+1)
		time.Sleep(time.Duration(i+1) * time.Second)
	}
	if st == nil {
		l.Fatalw("Failed to open storage after multiple attempts", "error", err)
	}
	defer st.Close()

	gw := newGateway(cfg, l)
	if !gw.HasCredentials() {
		l.Warnw("No LLM API keys configured; users will be asked to provide one")
	}

	stripeClient := payment.NewStripeClient(cfg.Stripe)
	if stripeClient == nil {
		l.Infow("Stripe not configured, onboarding is not gated")
	}

	telegramBot, err := bot.NewTelegramBot(bot.Options{
		Token:             cfg.Telegram.Token,
		Debug:             cfg.Telegram.Debug,
		KeyPrefix:         cfg.Storage.KeyPrefix,
		GenerationTimeout: cfg.LLM.GenerationTimeout,
	}, gw, st, stripeClient, l.Named("bot"))
	if err != nil {
		l.Fatalw("Failed to create Telegram bot", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := telegramBot.Start(ctx); err != nil {
		l.Fatalw("Failed to start Telegram bot", "error", err)
	}
	l.Infow("Telegram bot started successfully")

	httpServer := server.NewServer(cfg.Server.Port, telegramBot.WebhookHandler(), l.Named("http"))
	go func() {
		if err := httpServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Fatalw("Failed to start HTTP server", "error", err)
		}
	}()

	// Wait for termination signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	l.Infow("Shutting down bot...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Stop(shutdownCtx); err != nil {
		l.Errorw("Error during HTTP server shutdown", "error", err)
	}

	if err := telegramBot.Stop(shutdownCtx); err != nil {
		l.Errorw("Error during bot shutdown", "error", err)
	}
	cancel()

	l.Infow("Bot stopped successfully")
}

// newGateway wires the configured provider adapter, key pool and failure
// classification into one gateway shared by every user.
func newGateway(cfg *config.Config, l *logger.Logger) *gateway.Gateway {
	var completer gateway.Completer
	switch cfg.LLM.Provider {
	case "openai-go":
		completer = gpt.NewGoClient(cfg.LLM.BaseURL, cfg.LLM.Model).
			WithMaxTokens(cfg.LLM.MaxTokens).
			WithRequestTimeout(cfg.LLM.Timeout)
	default:
		completer = gpt.NewClient(cfg.LLM.BaseURL).
			WithModel(cfg.LLM.Model).
			WithMaxTokens(cfg.LLM.MaxTokens).
			WithHTTPClient(&http.Client{Timeout: cfg.LLM.Timeout})
	}

	rules := gateway.DefaultClassifierRules()
	rules.AuthPatterns = append(rules.AuthPatterns, cfg.LLM.AuthPatterns...)
	rules.QuotaPatterns = append(rules.QuotaPatterns, cfg.LLM.QuotaPatterns...)

	pool := gateway.NewCredentialPool(gateway.ParseCredentials(cfg.LLM.APIKeys))
	l.Infow("Credential pool ready", "keys", pool.Size())
	if n := pool.Size(); n > 1 && cfg.LLM.GenerationTimeout < time.Duration(n)*cfg.LLM.Timeout {
		l.Warnw("Generation timeout is shorter than one request timeout per key; rotation may be cut short",
			"generation_timeout", cfg.LLM.GenerationTimeout, "request_timeout", cfg.LLM.Timeout, "keys", n)
	}

	return gateway.New(pool, completer,
		gateway.WithClassifier(gateway.NewClassifier(rules)),
		gateway.WithLogger(l.Named("gateway")),
	)
}
