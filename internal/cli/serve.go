package cli

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/ppiankov/chainbreaker/internal/logger"
	"github.com/ppiankov/chainbreaker/internal/metrics"
	"github.com/ppiankov/chainbreaker/internal/model"
	"github.com/ppiankov/chainbreaker/internal/pipeline"
	"github.com/ppiankov/chainbreaker/internal/rumour"
	"github.com/ppiankov/chainbreaker/internal/server"
	"github.com/ppiankov/chainbreaker/internal/store"
	"github.com/ppiankov/chainbreaker/internal/telegram"
)

var (
	serveAddr string
	noBot     bool
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the Telegram bot",
	Long: `Starts the fact-check service:
- HTTP API on server.addr (POST /api/factCheck, GET /api/dashboard, /health, /metrics)
- Telegram bot when telegram.token is set
- Repeated rumours are broadcast to every known chat

Example:
  chainbreaker serve
  chainbreaker serve --addr :8080 --no-bot`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
	serveCmd.Flags().BoolVar(&noBot, "no-bot", false, "do not start the Telegram bot")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(prometheus.DefaultRegisterer)

	db, err := store.Open(ctx, cfg.Database, log)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Warn("failed to close database", "error", err)
		}
	}()

	checker := pipeline.NewPipeline(ctx, cfg, log, m)

	api, err := connectTelegram(cfg.Telegram, log)
	if err != nil {
		return err
	}

	var sender rumour.Sender
	if api != nil {
		sender = telegram.NewSender(api)
	}
	dispatcher := rumour.NewDispatcher(sender, db, cfg.Telegram.SendTimeout, log, m)
	service := rumour.NewService(db, checker, dispatcher, log, m)

	srv := server.New(server.Options{
		Addr:           cfg.Server.Addr,
		Mode:           cfg.Server.Mode,
		DashboardLimit: cfg.Server.DashboardLimit,
	}, service, db, log, m)

	var wg sync.WaitGroup
	errCh := make(chan error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := srv.Run(ctx); err != nil {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	if api != nil && !noBot {
		username := cfg.Telegram.BotUsername
		if username == "" {
			username = api.Self.UserName
		}
		bot := telegram.NewBot(api, service, username, log)

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := bot.Run(ctx); err != nil {
				errCh <- fmt.Errorf("telegram bot: %w", err)
			}
		}()
	}

	log.Info("chainbreaker started",
		"addr", cfg.Server.Addr,
		"database", cfg.Database.Driver,
		"llm", cfg.LLM.Provider,
		"telegram", api != nil && !noBot,
	)

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case runErr = <-errCh:
		log.Error("component failed, shutting down", "error", runErr)
		stop()
	}

	wg.Wait()
	dispatcher.Wait()
	return runErr
}

// connectTelegram returns nil without a token
func connectTelegram(cfg model.TelegramConfig, log *logger.Logger) (*tgbotapi.BotAPI, error) {
	if cfg.Token == "" {
		log.Warn("telegram.token not set, bot and broadcasts disabled")
		return nil, nil
	}
	api, err := telegram.Connect(cfg.Token)
	if err != nil {
		return nil, err
	}
	log.Info("connected to telegram", "bot", api.Self.UserName)
	return api, nil
}
