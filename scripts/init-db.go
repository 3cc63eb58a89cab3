package main

import (
	"cafe_bot/internal/config"
	"cafe_bot/internal/database"
	"cafe_bot/internal/migrations"
	"cafe_bot/internal/models"
	"cafe_bot/internal/redis"
	"cafe_bot/internal/repository"
	"context"
	"flag"
	"time"

	"github.com/sirupsen/logrus"
)

func main() {
	menuFile := flag.String("menu", "", "YAML menu file to load (defaults to the built-in menu)")
	reset := flag.Bool("reset", false, "drop and recreate all tables and clear chat history first")
	flag.Parse()

	logrus.Info("Initializing database...")

	// Load configuration
	cfg := config.Load()
	ctx := context.Background()

	// Initialize database
	db, err := database.Initialize(cfg.DatabaseURL)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}

	if *reset {
		logrus.Info("Dropping existing tables...")
		if err := db.Migrator().DropTable(&models.Order{}, &models.MenuItem{}, &models.CustomerProfile{}); err != nil {
			logrus.WithError(err).Warn("Error dropping tables")
		}
		logrus.Info("Creating tables...")
		if err := db.AutoMigrate(&models.Order{}, &models.MenuItem{}, &models.CustomerProfile{}); err != nil {
			logrus.WithError(err).Fatal("Failed to migrate database")
		}

		redisClient, err := redis.Initialize(cfg.RedisURL, time.Duration(cfg.HistoryTTL)*time.Second)
		if err != nil {
			logrus.WithError(err).Fatal("Failed to connect to Redis")
		}
		n, err := redisClient.ClearHistory(ctx)
		redisClient.Close()
		if err != nil {
			logrus.WithError(err).Fatal("Failed to clear chat history")
		}
		logrus.WithField("histories", n).Info("Chat history cleared")
	}

	var items []models.MenuItem
	if *menuFile != "" {
		items, err = migrations.LoadMenuFile(*menuFile)
	} else {
		items, err = migrations.DefaultMenu()
	}
	if err != nil {
		logrus.WithError(err).Fatal("Failed to read menu")
	}

	logrus.WithField("items", len(items)).Info("Seeding menu...")
	n, err := migrations.SeedMenu(ctx, repository.NewMenuRepository(db), items)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to seed menu")
	}

	logrus.WithField("items", n).Info("Database initialization completed successfully")
}
