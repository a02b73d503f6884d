package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/openjudge-dev/openjudge/internal/activity"
	"github.com/openjudge-dev/openjudge/internal/api/admin"
	"github.com/openjudge-dev/openjudge/internal/api/user"
	"github.com/openjudge-dev/openjudge/internal/config"
	"github.com/openjudge-dev/openjudge/internal/database"
	"github.com/openjudge-dev/openjudge/internal/judge"
	"github.com/openjudge-dev/openjudge/internal/sandbox"
)

var Version = "dev-build"

func main() {

	fmt.Fprintf(os.Stderr, "OpenJudge %s - Online Coding Judge Platform\n\n", Version)

	// config
	var configPath string
	flag.StringVar(&configPath, "c", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// logger
	var logger *zap.Logger
	if cfg.Logger.Level == "debug" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	// database
	db, err := database.Init(cfg.Storage.Database)
	if err != nil {
		zap.S().Fatalf("failed to initialize database: %v", err)
	}
	zap.S().Info("database initialized successfully")

	if err := database.SeedAchievements(db); err != nil {
		zap.S().Fatalf("failed to seed achievement catalog: %v", err)
	}

	// submissions interrupted by the previous run get a terminal verdict
	if err := judge.RecoverInterrupted(db); err != nil {
		zap.S().Errorf("failed to recover interrupted submissions: %v", err)
	}

	// judging engine against the external sandbox
	executor := sandbox.NewClient(cfg.Sandbox)
	engine := judge.NewEngine(db, executor)

	// activity tracker consumes judging events off the critical path
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tracker := activity.NewTracker(db)
	tracker.Start(ctx)
	zap.S().Info("activity tracker started")

	// API routers
	userEngine := user.NewUserRouter(cfg, db, engine, tracker)
	adminEngine := admin.NewAdminRouter(cfg, db, engine)

	// start servers
	go func() {
		zap.S().Infof("starting user server at %s", cfg.Listen)
		if err := userEngine.Run(cfg.Listen); err != nil {
			zap.S().Fatalf("failed to start user server: %v", err)
		}
	}()

	if cfg.Admin.Enabled {
		go func() {
			zap.S().Infof("starting admin server at %s", cfg.Admin.Listen)
			if err := adminEngine.Run(cfg.Admin.Listen); err != nil {
				zap.S().Fatalf("failed to start admin server: %v", err)
			}
		}()
	}

	// graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zap.S().Info("shutting down server...")
}
