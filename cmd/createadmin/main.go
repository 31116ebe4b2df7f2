// Command createadmin grants or revokes admin rights of an existing profile.
// Database settings come from the config file and environment.
package main

import (
	"context"
	"flag"
	"github.com/rookgm/tableorder/config"
	"github.com/rookgm/tableorder/internal/logger"
	"github.com/rookgm/tableorder/internal/repository"
	"github.com/rookgm/tableorder/internal/repository/postgres"
	"go.uber.org/zap"
	"log"
	"os"
	"time"
)

func main() {
	email := flag.String("email", "", "email of the profile")
	revoke := flag.Bool("revoke", false, "revoke admin rights instead of granting them")
	flag.Parse()

	if *email == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(nil)
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	lg, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Error initializing logger: %v", err)
	}
	defer lg.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := postgres.New(ctx, cfg.DatabaseDSN)
	if err != nil {
		lg.Fatal("Error initializing database", zap.Error(err))
	}
	defer db.Close()

	profile, err := repository.NewProfileRepository(db).SetAdmin(ctx, *email, !*revoke)
	if err != nil {
		lg.Fatal("Error updating profile", zap.String("email", *email), zap.Error(err))
	}

	lg.Info("Profile updated", zap.String("uid", profile.ID), zap.String("email", profile.Email), zap.Bool("is_admin", profile.IsAdmin))
}
