package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/wfunc/wordbot/command"
	"github.com/wfunc/wordbot/config"
	"github.com/wfunc/wordbot/dictionary"
	"github.com/wfunc/wordbot/logger"
	"github.com/wfunc/wordbot/persistence"
	"github.com/wfunc/wordbot/server"
)

func main() {
	configDir := pflag.StringP("config", "c", ".", "directory holding config.yaml")
	pflag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configDir)
	if err != nil {
		logger.Init(false)
		logger.Log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Init(cfg.Debug)
	defer logger.Sync()

	auth, err := command.NewAuthorizer(command.DefaultCatalog(), cfg.Bot.SuperuserID)
	if err != nil {
		logger.Log.Fatalf("Invalid command catalog: %v", err)
	}

	dict, err := dictionary.LoadFile(cfg.Dictionary.Path)
	if err != nil {
		logger.Log.Fatalf("Failed to load dictionary: %v", err)
	}
	logger.Log.Infof("Loaded %d words", dict.Len())

	// Initialize the room archive
	archive, err := persistence.Open(cfg.Database)
	if err != nil {
		logger.Log.Fatalf("Failed to connect to database: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bot := server.NewBot(cfg, auth, dict, archive)
	logger.Log.Infof("Starting %s", cfg.Bot.Nickname)
	if err := bot.Run(ctx); err != nil {
		logger.Log.Errorf("Bot stopped: %v", err)
		stop()
		logger.Sync()
		os.Exit(1)
	}
	logger.Log.Info("Bot stopped.")
}
