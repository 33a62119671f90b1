package main

import (
	"os"

	"github.com/sahilchouksey/devpilot-api/config"
	"github.com/sahilchouksey/devpilot-api/database"
	"github.com/sahilchouksey/devpilot-api/utils"
	"go.uber.org/zap"
)

func main() {
	if err := config.LoadENV(); err != nil {
		panic(err)
	}
	env := config.Read()

	log, err := utils.NewLogger(env.GO_ENV, env.LOG_LEVEL)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	store, err := database.StartGORM(env, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer store.Close()

	if err := store.Init(); err != nil {
		log.Error("failed to migrate database", zap.Error(err))
		os.Exit(1)
	}

	if err := database.NewSeeder(store.GetDB(), log).SeedAll(); err != nil {
		log.Error("seeding failed", zap.Error(err))
		os.Exit(1)
	}
}
