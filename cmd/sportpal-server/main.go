package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/Anne-LaureRochebois/sport-pal-planner/internal/api"
	"github.com/Anne-LaureRochebois/sport-pal-planner/internal/config"
	"github.com/Anne-LaureRochebois/sport-pal-planner/internal/database"
	"github.com/Anne-LaureRochebois/sport-pal-planner/internal/email"
	"github.com/Anne-LaureRochebois/sport-pal-planner/internal/logger"
	"github.com/Anne-LaureRochebois/sport-pal-planner/internal/notify"
	"github.com/Anne-LaureRochebois/sport-pal-planner/internal/realtime"
	"github.com/Anne-LaureRochebois/sport-pal-planner/internal/reminder"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := pflag.String("config", "", "path to a YAML configuration file")
	envFile := pflag.String("env-file", ".env", "dotenv file to load before reading the environment")
	noScheduler := pflag.Bool("no-scheduler", false, "do not run the in-process reminder loop")
	dispatchOnce := pflag.Bool("dispatch-once", false, "run one reminder pass, print the summary and exit")
	pflag.Parse()

	if err := run(*configPath, *envFile, *noScheduler, *dispatchOnce); err != nil {
		fmt.Fprintf(os.Stderr, "sportpal-server: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, envFile string, noScheduler, dispatchOnce bool) error {
	// A missing .env is normal outside development.
	envErr := godotenv.Load(envFile)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Output: os.Stderr})
	if envErr != nil {
		log.Debug().Str("file", envFile).Msg("no dotenv file loaded, using the process environment")
	}

	if err := os.MkdirAll(cfg.DataPath, 0o755); err != nil {
		return fmt.Errorf("create data directory %s: %w", cfg.DataPath, err)
	}

	db, err := database.NewService(cfg.DbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := db.InitSchema(); err != nil {
		return fmt.Errorf("initialize schema: %w", err)
	}
	log.Info().Str("path", cfg.DbPath).Msg("database ready")

	broker := realtime.NewBroker(log)
	notifier := notify.New(db, broker, log)
	dispatcher := reminder.New(db, notifier, cfg.Location, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if dispatchOnce {
		summary, err := dispatcher.Run(ctx)
		if err != nil {
			return fmt.Errorf("dispatch reminders: %w", err)
		}
		return json.NewEncoder(os.Stdout).Encode(summary)
	}

	mailer := email.NewEmailService(email.SMTPServerConfig{
		Host:     cfg.SmtpHost,
		Port:     cfg.SmtpPort,
		Username: cfg.SmtpUser,
		Password: cfg.SmtpPass,
		Sender:   cfg.SmtpSender,
	}, cfg.FrontendURL, log)
	if !mailer.Enabled() {
		log.Warn().Msg("SMTP is not configured; invite and recovery links will only be logged")
	}

	server := api.NewServer(cfg, db, broker, mailer, notifier, dispatcher, log)
	httpServer := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		// Open notification streams end with the process context.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", cfg.ServerAddr).Msg("sportpal server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info().Msg("shutting down")
		return httpServer.Shutdown(shutdownCtx)
	})
	if !noScheduler && cfg.ReminderInterval > 0 {
		g.Go(func() error {
			dispatcher.Start(gCtx, cfg.ReminderInterval)
			return nil
		})
	} else {
		log.Info().Msg("in-process reminder loop disabled")
	}

	return g.Wait()
}
