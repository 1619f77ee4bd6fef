package main

import (
	"context"
	"crypto/rand"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"metaltrade/db"
	"metaltrade/db/memory"
	"metaltrade/db/migrations"
	"metaltrade/internal/auth"
	"metaltrade/internal/config"
	"metaltrade/internal/documents"
	"metaltrade/internal/events"
	"metaltrade/internal/files"
	"metaltrade/internal/handlers"
	"metaltrade/internal/logging"
	"metaltrade/internal/notify"
	"metaltrade/internal/rfq"
	"metaltrade/internal/ws"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Invalid configuration")
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// хранилище
	var store rfq.Store
	switch cfg.StorageDriver {
	case "memory":
		logger.Warn("Using in-memory storage, data is lost on restart")
		store = memory.New()
	default:
		dbConn, err := db.Connect(ctx, cfg.PostgresConn)
		if err != nil {
			logger.WithError(err).Fatal("Cannot connect to DB")
		}
		defer dbConn.Close()

		if cfg.MigrationsEnabled {
			if err := migrations.Run(dbConn.DB, logger); err != nil {
				logger.WithError(err).Fatal("Failed to run migrations")
			}
		}
		store = db.NewStorage(dbConn, logger)
	}

	// очередь писем
	var queue notify.Queue
	switch cfg.NotifyQueue {
	case "redis":
		client, err := notify.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logger.WithError(err).Fatal("Cannot connect to Redis")
		}
		defer client.Close()
		queue = notify.NewRedisQueue(client, cfg.RedisQueueKey)
	default:
		queue = notify.NewMemoryQueue(cfg.NotifyQueueSize)
	}

	var sender notify.Sender
	smtpCfg := notify.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		User:     cfg.SMTPUser,
		Password: cfg.SMTPPassword,
		FromName: cfg.SMTPFromName,
		Timeout:  cfg.SMTPTimeout,
	}
	if smtpCfg.Configured() {
		sender = notify.NewSMTPSender(smtpCfg)
	} else {
		logger.Warn("SMTP is not configured, emails will be logged only")
		sender = notify.NewLogSender(logger)
	}
	dispatcher := notify.NewDispatcher(queue, sender, logger, cfg.NotifyWorkers, cfg.SMTPTimeout)

	// доменные события
	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		kp := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer kp.Close()
		publisher = kp
	}

	renderer, err := notify.NewRenderer()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load email templates")
	}
	docs, err := documents.NewGenerator(cfg.DocumentsDir)
	if err != nil {
		logger.WithError(err).Fatal("Failed to init document generator")
	}
	uploads, err := files.NewStore(cfg.UploadsDir, cfg.MaxUploadBytes)
	if err != nil {
		logger.WithError(err).Fatal("Failed to init uploads store")
	}

	registry := ws.NewRegistry(logger)

	engine, err := rfq.NewEngine(store, rfq.Deps{
		Mailer:      dispatcher,
		Renderer:    renderer,
		Live:        registry,
		Events:      publisher,
		Documents:   docs,
		Logger:      logger,
		FrontendURL: cfg.FrontendURL,
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to init RFQ engine")
	}

	sessionKey := []byte(cfg.SessionKey)
	if len(sessionKey) == 0 {
		// без AUTH_ENABLED ключ нужен только для dev-сессий
		sessionKey = make([]byte, 32)
		rand.Read(sessionKey)
	}
	sessions := auth.NewSessions(sessionKey, cfg.CookieSecure)
	if !cfg.AuthEnabled {
		logger.Warn("AUTH_ENABLED=false: identity is taken from X-User-ID/X-User-Role headers")
	}

	h := handlers.NewHandler(engine, uploads, logger)
	// тело multipart: два файла и JSON
	h.MaxUploadBytes = 2*cfg.MaxUploadBytes + 1<<20
	router := handlers.NewRouter(handlers.RouterConfig{
		Handler:    h,
		Sessions:   sessions,
		HeaderAuth: !cfg.AuthEnabled,
		WS:         ws.NewHandler(registry, cfg.WSOrigin, logger),
		Logger:     logger,
	})

	go dispatcher.Run(ctx)

	srv := &http.Server{
		Addr:              cfg.ServerAddress,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.WithField("address", cfg.ServerAddress).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server failed")
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Graceful shutdown failed")
	}
}
