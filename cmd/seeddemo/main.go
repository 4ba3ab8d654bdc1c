package main

import (
	"context"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/mind-engage/examroom/internal/config"
	"github.com/mind-engage/examroom/internal/db"
	"github.com/mind-engage/examroom/internal/exam"
	"github.com/mind-engage/examroom/internal/logging"
	"github.com/mind-engage/examroom/internal/seed"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		logger.Fatal("db open failed", zap.Error(err))
	}
	defer dbh.Close()

	store := exam.NewSQLStore(dbh, cfg.DBDriver)
	if _, err := seed.Demo(ctx, store, store, 12, logger); err != nil {
		logger.Fatal("seed", zap.Error(err))
	}
}
