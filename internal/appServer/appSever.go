package appServer

import (
	"context"
	"crypto/tls"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/avdeev-m/ticketflow/config"
	repository "github.com/avdeev-m/ticketflow/internal/database/postgres"
	"github.com/avdeev-m/ticketflow/internal/service"
	"github.com/avdeev-m/ticketflow/internal/transport"
	"github.com/avdeev-m/ticketflow/internal/worker"

	"github.com/avdeev-m/ticketflow/pkg/postgres"
	"github.com/avdeev-m/ticketflow/pkg/queue"
	"github.com/avdeev-m/ticketflow/pkg/redis"
	"github.com/avdeev-m/ticketflow/pkg/scheduler"
	"github.com/avdeev-m/ticketflow/pkg/telegram"
)

type Server struct {
	httpServer *http.Server
}

func (s *Server) Run(cfg *config.Config, handler http.Handler) error {
	s.httpServer = &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           handler,
		MaxHeaderBytes:    1 << 20,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       cfg.Server.Idle_timeout,
		ReadHeaderTimeout: 3 * time.Second,
		TLSConfig:         &tls.Config{MinVersion: tls.VersionTLS12},
		ErrorLog:          log.New(os.Stderr, "SERVER ERROR: ", log.LstdFlags),
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func NewServer(cfg *config.Config) {

	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetOutput(os.Stdout)
	logrus.SetLevel(logrus.InfoLevel)

	// Initialize database
	db, err := postgres.NewPostgresDB(&cfg.Database)
	if err != nil {
		logrus.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	// Run database migrations
	if err := postgres.RunMigrations(db); err != nil {
		logrus.Fatalf("Failed to run migrations: %v", err)
	}

	// Initialize repositories
	eventRepo := repository.NewEventRepository(db)
	ticketTypeRepo := repository.NewTicketTypeRepository(db)
	seatRepo := repository.NewSeatRepository(db)
	purchaseRepo := repository.NewPurchaseRepository(db)

	// Initialize Telegram bot
	var telegramBot *telegram.Bot
	if cfg.Telegram.Enabled && cfg.Telegram.BotToken != "" {
		telegramBot = telegram.NewBot(cfg.Telegram.BotToken)
		logrus.Info("Telegram bot initialized")
	} else {
		logrus.Warn("Telegram bot not configured, notifications disabled")
	}

	var redisQueue queue.Queue
	var taskPublisher service.TaskPublisher

	if cfg.Redis.Host != "" {
		queueConfig := queue.DefaultRedisQueueConfig()
		queueConfig.Addr = cfg.Redis.URL
		queueConfig.Password = cfg.Redis.Password
		queueConfig.DB = cfg.Redis.DB

		redisClient := redis.NewRedisClient(&cfg.Redis)
		defer redisClient.Close()
		dlqHandler := queue.NewDefaultDLQHandler(redisClient, queueConfig.DLQ, queueConfig.MainQueue)

		redisQueue, err = queue.NewRedisQueue(queueConfig, nil, dlqHandler)
		if err != nil {
			logrus.Errorf("Failed to initialize Redis queue: %v. Continuing without queue...", err)
			redisQueue = nil
		} else {
			logrus.Info("Redis queue initialized")
			taskPublisher = service.NewQueuePublisher(redisQueue)
		}
	}

	// Initialize services
	purchaseService := service.NewPurchaseService(
		ticketTypeRepo, seatRepo, purchaseRepo,
		taskPublisher, telegramBot, cfg.Telegram.ChatID, cfg.Reservation,
	)
	eventService := service.NewEventService(eventRepo, ticketTypeRepo)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize task handler if queue is available
	if redisQueue != nil {
		var notifier queue.Notifier
		if telegramBot != nil {
			notifier = telegramBot
		}
		taskHandler := queue.NewTaskHandler(purchaseService, notifier, cfg.Telegram.ChatID)

		// Start queue consumer
		go func() {
			if err := redisQueue.Subscribe(ctx, taskHandler.HandleTask); err != nil {
				logrus.Errorf("Queue subscriber error: %v", err)
			}
		}()
		logrus.Info("Queue subscriber started")
	}

	// Initialize and start scheduler
	expirationScheduler := scheduler.NewScheduler(purchaseService, time.Minute)
	go expirationScheduler.Start(ctx)
	logrus.Info("Expiration scheduler started")

	// Initialize cleanup worker
	cleanupInterval := time.Duration(cfg.Worker.CleanupInterval) * time.Minute
	if cleanupInterval <= 0 {
		cleanupInterval = 30 * time.Minute
	}
	cleanupWorker := worker.NewPurchaseCleanupWorker(purchaseService, seatRepo, cleanupInterval, cfg.Reservation.ReleaseSeats)
	go cleanupWorker.Start(ctx)
	logrus.Info("Cleanup worker started")

	// Initialize handlers
	eventHandler := transport.NewEventHandler(eventService)
	purchaseHandler := transport.NewPurchaseHandler(purchaseService)
	ticketHandler := transport.NewTicketHandler(purchaseService)

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	srv := new(Server)
	go func() {
		if err := srv.Run(cfg, transport.InitRoutes(eventHandler, purchaseHandler, ticketHandler)); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("error occured while running http server: %s", err.Error())
		}
	}()

	logrus.Print("App Started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	<-quit

	logrus.Print("App Shutting Down")

	if redisQueue != nil {
		if err := redisQueue.Close(); err != nil {
			logrus.Errorf("error occured on queue shutting down: %s", err.Error())
		}
	}

	if err := srv.Shutdown(context.Background()); err != nil {
		logrus.Errorf("error occured on server shutting down: %s", err.Error())
	}
}
