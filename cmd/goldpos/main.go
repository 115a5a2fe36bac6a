package main

import (
	"log"

	_ "github.com/joho/godotenv/autoload"
	"go.uber.org/zap"

	"github.com/iurnickita/goldpos/internal/auth"
	"github.com/iurnickita/goldpos/internal/config"
	"github.com/iurnickita/goldpos/internal/handler"
	"github.com/iurnickita/goldpos/internal/hardware"
	"github.com/iurnickita/goldpos/internal/logger"
	"github.com/iurnickita/goldpos/internal/service"
	"github.com/iurnickita/goldpos/internal/store"
	"github.com/iurnickita/goldpos/internal/store/memstore"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.GetConfig()
	if err != nil {
		return err
	}

	zaplog, err := logger.NewZapLog(cfg.Logger)
	if err != nil {
		return err
	}
	defer zaplog.Sync()

	var db store.Store
	if cfg.Store.DBDsn == "" {
		zaplog.Warn("DATABASE_URI is empty, using in-memory store")
		db = memstore.New()
	} else {
		db, err = store.NewStore(cfg.Store)
		if err != nil {
			return err
		}
	}
	defer db.Close()

	device, err := hardware.NewDevice(cfg.Hardware, zaplog)
	if err != nil {
		return err
	}
	trigger := hardware.NewTrigger(cfg.Hardware, device, zaplog)
	zaplog.Info("hardware configured",
		zap.Bool("enabled", cfg.Hardware.Enabled),
		zap.String("driver", cfg.Hardware.Driver),
		zap.Int("attempts", cfg.Hardware.Attempts),
		zap.Duration("backoff", cfg.Hardware.Backoff))

	auth := auth.NewAuth(cfg.Auth, zaplog)
	service := service.NewService(cfg.Service, db, trigger, zaplog)

	return handler.Serve(cfg.Handler, auth, service, zaplog)
}
