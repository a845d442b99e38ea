package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"tgfb-relay/internal/auth"
	"tgfb-relay/internal/config"
	"tgfb-relay/internal/facebook"
	"tgfb-relay/internal/locales"
	"tgfb-relay/internal/pipeline"
	"tgfb-relay/internal/source"
	"tgfb-relay/internal/stager"
	"tgfb-relay/internal/translator"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/mymmrac/telego"
	"github.com/spf13/cobra"
)

// setupTimeout bounds the network checks done before the pass starts.
const setupTimeout = 30 * time.Second

func runRelay(cmd *cobra.Command, _ []string) error {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	if cfg.Version == "dev" {
		cfg.Version = version
	}

	// Initialize localization bundle
	if err := locales.Init(cfg.DefaultLanguage); err != nil {
		return fmt.Errorf("failed to initialize locales: %w", err)
	}

	// Initialize Sentry (no-op without a DSN)
	err = sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.SentryDSN,
		Environment:      cfg.AppEnv,
		Release:          cfg.Version,
		AttachStacktrace: true,
		Debug:            cfg.Debug,
	})
	if err != nil {
		return fmt.Errorf("sentry.Init: %w", err)
	}
	defer sentry.Flush(2 * time.Second)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := relay(ctx, cfg); err != nil {
		sentry.CaptureException(err)
		return err
	}
	return nil
}

// relay wires the components for one pass and runs it.
func relay(ctx context.Context, cfg *config.Config) error {
	channel, err := source.ParseChannel(cfg.TelegramChannel)
	if err != nil {
		return err
	}

	var bot *telego.Bot
	if cfg.Debug {
		bot, err = telego.NewBot(cfg.TelegramBotToken, telego.WithDefaultDebugLogger())
	} else {
		bot, err = telego.NewBot(cfg.TelegramBotToken, telego.WithDefaultLogger(false, true))
	}
	if err != nil {
		return fmt.Errorf("failed to create telego bot: %w", err)
	}

	checker, err := auth.NewChannelAccessChecker(bot, channel)
	if err != nil {
		return err
	}
	setupCtx, cancel := context.WithTimeout(ctx, setupTimeout)
	err = checker.Verify(setupCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("cannot read channel %s: %w", channel, err)
	}

	reader, err := source.NewReader(bot, channel, cfg.Debug)
	if err != nil {
		return err
	}

	store, closeStore, err := openStore(ctx, cfg.StoreConfig)
	if err != nil {
		return err
	}
	defer closeStore()

	gen, err := translator.NewGeminiGenerator(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	scratch := filepath.Join(cfg.MediaDir, "tgfb-relay-"+runID)
	defer func() {
		if err := os.RemoveAll(scratch); err != nil {
			log.Printf("[Run %s] Failed to remove scratch dir %s: %v", runID, scratch, err)
		}
	}()

	publisher := facebook.NewPublisher(facebook.NewClient(facebook.Options{
		GraphURL:      cfg.FBGraphURL,
		GraphVideoURL: cfg.FBGraphVideoURL,
		Version:       cfg.FBGraphVersion,
		PageID:        cfg.FBPageID,
		UserToken:     cfg.LongLivedUserToken,
	}))

	printer := locales.NewPrinter()
	p, err := pipeline.New(pipeline.Deps{
		Fetcher:    reader,
		Store:      store,
		Translator: translator.New(gen, cfg.TranslateAttempts, cfg.TranslateRetryDelay),
		Stager:     stager.New(reader, scratch),
		Publisher:  publisher,
		Printer:    printer,
	}, pipeline.Options{
		FetchLimit:      cfg.FetchLimit,
		GroupScanWindow: cfg.GroupScanWindow,
		MinTokens:       cfg.MinTokens,
		DedupByText:     cfg.DedupByText,
		ItemPause:       cfg.ItemPause,
	})
	if err != nil {
		return err
	}

	printer.Println("MsgRunStarted", map[string]interface{}{"RunID": runID, "Channel": channel.String()})
	if _, err := p.Run(ctx); err != nil {
		return err
	}
	return nil
}
