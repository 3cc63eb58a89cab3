package main

import (
	"cafe_bot/internal/config"
	"cafe_bot/internal/database"
	"cafe_bot/internal/debounce"
	"cafe_bot/internal/events"
	"cafe_bot/internal/handlers"
	"cafe_bot/internal/menu"
	"cafe_bot/internal/migrations"
	"cafe_bot/internal/monitoring"
	"cafe_bot/internal/redis"
	"cafe_bot/internal/repository"
	"cafe_bot/internal/services"
	"cafe_bot/pkg/whatsapp"
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/llms/openai"
)

func main() {
	// Load configuration
	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := database.Initialize(cfg.DatabaseURL)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}
	sqlDB, err := db.DB()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to get database handle")
	}
	defer sqlDB.Close()

	// Initialize Redis
	redisClient, err := redis.Initialize(cfg.RedisURL, time.Duration(cfg.HistoryTTL)*time.Second)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to Redis")
	}
	defer redisClient.Close()

	// Initialize repositories
	orderRepo := repository.NewOrderRepository(db)
	menuRepo := repository.NewMenuRepository(db)
	customerRepo := repository.NewCustomerRepository(db)

	// Load menu
	if n, err := migrations.SeedDefaultMenu(ctx, menuRepo); err != nil {
		logrus.WithError(err).Fatal("Failed to seed menu")
	} else if n > 0 {
		logrus.WithField("items", n).Info("Seeded default menu")
	}
	menuIndex := menu.NewIndex(menuRepo)
	if n, err := menuIndex.Load(ctx); err != nil {
		logrus.WithError(err).Fatal("Failed to load menu")
	} else {
		logrus.WithField("items", n).Info("Menu loaded")
	}

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if err := monitoring.Register(registry); err != nil {
		logrus.WithError(err).Fatal("Failed to register metrics")
	}

	checks := map[string]handlers.HealthCheck{
		"database": sqlDB.PingContext,
		"redis":    redisClient.Ping,
	}

	// Order events: kitchen websocket, optional broker, feedback scheduler
	hub := events.NewHub()
	defer hub.Close()

	var whatsappService services.WhatsAppService
	if cfg.WhatsAppAPIURL != "" {
		client := whatsapp.NewClient(cfg.WhatsAppAPIURL, cfg.WhatsAppUsername, cfg.WhatsAppPassword, cfg.WhatsAppPath)
		whatsappService = services.NewWhatsAppService(client)
	} else {
		logrus.Warn("WHATSAPP_API_URL not set, WhatsApp channel disabled")
	}

	feedback := services.NewFeedbackService(redisClient, customerRepo, whatsappService, cfg.FeedbackDelay())
	defer feedback.Stop()

	publisher := events.Multi{hub, feedback}
	if cfg.RabbitMQURL != "" {
		rabbit, err := events.DialRabbitMQ(cfg.RabbitMQURL)
		if err != nil {
			logrus.WithError(err).Fatal("Failed to connect to RabbitMQ")
		}
		defer rabbit.Close()
		publisher = append(publisher, rabbit)
		checks["rabbitmq"] = func(context.Context) error { return rabbit.Ping() }
	}

	// Initialize services
	orderService := services.NewOrderService(orderRepo, menuIndex, publisher, services.OrderRules{
		PrepBufferMinutes:  cfg.PrepBufferMinutes,
		DefaultPrepMinutes: cfg.DefaultPrepMinutes,
		DefaultUnitPrice:   cfg.DefaultUnitPrice,
		CostRatio:          cfg.CostRatio,
	})
	cancellationService := services.NewCancellationService(orderRepo, publisher, cfg.CancelWindow())
	classifier := newClassifier(cfg, menuIndex)
	chatService := services.NewChatService(redisClient, classifier, orderService, cancellationService, customerRepo, cfg.ChatHistoryLimit, cfg.Location())
	coalescer := debounce.NewCoalescer(chatService, cfg.DebounceInterval())

	// Setup routes
	router := gin.Default()
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	api := router.Group("/api")
	handlers.NewChatHandler(coalescer, checks).Register(api)
	handlers.NewOrderHandler(orderService).Register(api)
	handlers.NewMenuHandler(menuIndex).Register(api)
	api.GET("/orders/stream", hub.ServeWS)

	var whatsappHandler *handlers.WhatsAppHandler
	if whatsappService != nil {
		whatsappHandler = handlers.NewWhatsAppHandler(coalescer, whatsappService)
		whatsappHandler.Register(api)
	}

	// Start server
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: router,
	}
	go func() {
		logrus.WithField("port", cfg.ServerPort).Info("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Fatal("Failed to start server")
		}
	}()

	<-ctx.Done()
	logrus.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("Server shutdown did not complete cleanly")
	}
	if whatsappHandler != nil {
		whatsappHandler.Wait()
	}
}

func setupLogging(level string) {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		logrus.WithField("level", level).Warn("Unknown log level, using info")
		lvl = logrus.InfoLevel
	}
	logrus.SetLevel(lvl)
}

// newClassifier uses the OpenAI model when a key is configured and the keyword
// classifier otherwise.
func newClassifier(cfg *config.Config, menuIndex *menu.Index) services.IntentClassifier {
	timeout := time.Duration(cfg.ClassifierTimeout) * time.Second
	if cfg.OpenAIAPIKey == "" {
		logrus.Warn("OPENAI_API_KEY not set, using keyword classifier")
		return services.NewAIProcessor(nil, menuIndex, timeout)
	}

	opts := []openai.Option{openai.WithToken(cfg.OpenAIAPIKey), openai.WithModel(cfg.OpenAIModel)}
	if cfg.OpenAIBaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.OpenAIBaseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to create OpenAI client")
	}
	return services.NewAIProcessor(llm, menuIndex, timeout)
}
