package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/bowerhall/mira/internal/behavior"
	"github.com/bowerhall/mira/internal/calendar"
	"github.com/bowerhall/mira/internal/config"
	"github.com/bowerhall/mira/internal/crm"
	"github.com/bowerhall/mira/internal/engine"
	"github.com/bowerhall/mira/internal/handler"
	"github.com/bowerhall/mira/internal/interrupt"
	"github.com/bowerhall/mira/internal/llm"
	"github.com/bowerhall/mira/internal/logger"
	"github.com/bowerhall/mira/internal/notify"
	"github.com/bowerhall/mira/internal/retrieval"
	"github.com/bowerhall/mira/internal/session"
	"github.com/bowerhall/mira/internal/task"
	"github.com/bowerhall/mira/internal/tools"
)

func init() {
	godotenv.Load()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", "error", err)
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Fatal("invalid timezone", "timezone", cfg.Timezone, "error", err)
	}

	model, err := llm.New(llm.Config{
		Provider: cfg.LLM.Provider,
		APIKey:   cfg.LLM.APIKey,
		Model:    cfg.LLM.Model,
		BaseURL:  cfg.LLM.BaseURL,
	})
	if err != nil {
		logger.Fatal("failed to create llm", "error", err)
	}

	persona, err := behavior.Load(cfg.BehaviorFile)
	if err != nil {
		logger.Fatal("failed to load behavior", "error", err)
	}

	docs := loadKnowledge(cfg.Knowledge)
	retriever := retrieval.New(docs)

	twilioClient := notify.NewTwilio(notify.TwilioConfig{
		AccountSID: cfg.Twilio.AccountSID,
		AuthToken:  cfg.Twilio.AuthToken,
		FromNumber: cfg.Twilio.FromNumber,
	})

	var busy calendar.BusySource
	var sink calendar.BookingSink
	if cfg.Calendar.Enabled {
		initCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		gcal, err := calendar.NewGoogleCalendar(initCtx, cfg.Calendar.CredentialsFile, cfg.Calendar.CalendarID)
		cancel()
		if err != nil {
			logger.Error("failed to create calendar client", "error", err)
		} else {
			busy, sink = gcal, gcal
			logger.Info("calendar enabled", "calendar", cfg.Calendar.CalendarID)
		}
	}
	calSvc := calendar.NewService(busy, sink, loc)

	var mailer tools.Mailer
	if cfg.Email.Enabled {
		mailer = notify.NewMailer(notify.MailConfig{
			Host:     cfg.Email.Host,
			Port:     cfg.Email.Port,
			Username: cfg.Email.Username,
			Password: cfg.Email.Password,
			From:     cfg.Email.From,
			To:       cfg.Email.To,
		})
		logger.Info("order email enabled", "host", cfg.Email.Host, "to", cfg.Email.To)
	}

	var lookup crm.Lookup
	if cfg.CRM.Enabled {
		lookup = crm.NewClient(cfg.CRM.BaseURL, cfg.CRM.APIKey)
		logger.Info("crm lookup enabled", "url", cfg.CRM.BaseURL)
	}

	registry := tools.NewRegistry()
	tools.RegisterCalendarTools(registry, calSvc)
	tools.RegisterMessagingTools(registry, twilioClient)
	tools.RegisterTransferTool(registry)
	tools.RegisterBookingTool(registry, calSvc, twilioClient, mailer, tools.BookingConfig{
		OwnerNumber:        cfg.Booking.OwnerNumber,
		DefaultPaymentLink: cfg.Booking.DefaultPaymentLink,
		Terms:              cfg.Booking.Terms,
	})

	sessions := session.NewStore()
	tasks := task.NewRegistry()

	orchestrator := engine.New(engine.Config{
		Provider:  model,
		Sessions:  sessions,
		Tasks:     tasks,
		Retriever: retriever,
		CRM:       lookup,
		Registry:  registry,
		Behavior:  persona,
		Location:  loc,
	})

	interrupts := interrupt.NewController(twilioClient, cfg.Housekeeping.MinHold)
	if cfg.BaseURL == "" {
		logger.Warn("PUBLIC_BASE_URL not set; live-call interruption disabled, replies wait for the hold loop")
	}

	h := handler.New(handler.Config{
		Engine:     orchestrator,
		Behavior:   persona,
		Interrupts: interrupts,
		BaseURL:    cfg.BaseURL,
	})

	mux := http.NewServeMux()
	h.Routes(mux)

	sweeper := cron.New()
	sweeper.AddFunc(cfg.Housekeeping.SweepEvery, func() {
		if n := sessions.Sweep(cfg.Housekeeping.SessionTTL); n > 0 {
			logger.Info("sessions evicted", "count", n)
		}
		if n := tasks.Sweep(cfg.Housekeeping.TaskTTL); n > 0 {
			logger.Info("orphaned tasks evicted", "count", n)
		}
	})
	sweeper.Start()
	defer sweeper.Stop()

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("mira started",
			"port", cfg.Port,
			"llm", cfg.LLM.Provider,
			"documents", len(docs),
			"timezone", cfg.Timezone,
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	server.Shutdown(ctx)
}

// loadKnowledge pulls the knowledge base from the bucket when one is
// configured, otherwise from the local directory. Starting with no knowledge
// is allowed; the bot just answers from the prompt alone.
func loadKnowledge(cfg config.KnowledgeConfig) []retrieval.Document {
	if cfg.BucketEnabled {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		docs, err := retrieval.LoadBucket(ctx, retrieval.BucketConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			UseSSL:    cfg.MinioUseSSL,
			Bucket:    cfg.Bucket,
		})
		if err != nil {
			logger.Error("bucket knowledge load failed", "error", err)
			return nil
		}
		return docs
	}

	docs, err := retrieval.LoadDir(cfg.Dir)
	if err != nil {
		logger.Warn("knowledge directory not loaded", "dir", cfg.Dir, "error", err)
		return nil
	}
	return docs
}
