package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	authConfig "github.com/iurnickita/goldpos/internal/auth/config"
	handlerConfig "github.com/iurnickita/goldpos/internal/handler/config"
	hardwareConfig "github.com/iurnickita/goldpos/internal/hardware/config"
	loggerConfig "github.com/iurnickita/goldpos/internal/logger/config"
	serviceConfig "github.com/iurnickita/goldpos/internal/service/config"
	storeConfig "github.com/iurnickita/goldpos/internal/store/config"
)

type Config struct {
	Handler  handlerConfig.Config
	Service  serviceConfig.Config
	Store    storeConfig.Config
	Logger   loggerConfig.Config
	Auth     authConfig.Config
	Hardware hardwareConfig.Config
}

// GetConfig: переменные окружения важнее флагов, флаги важнее значений по умолчанию
func GetConfig() (Config, error) {
	return parse(flag.CommandLine, os.Args[1:], os.LookupEnv)
}

func parse(fs *flag.FlagSet, args []string, lookupEnv func(string) (string, bool)) (Config, error) {
	cfg := Config{}

	fs.StringVar(&cfg.Handler.ServerAddr, "a", ":8080", "address and port to run server")
	fs.StringVar(&cfg.Store.DBDsn, "d", "", "database connection string, empty for in-memory store")
	fs.StringVar(&cfg.Logger.LogLevel, "l", "info", "log level")
	fs.StringVar(&cfg.Auth.SecretKey, "k", "goldpos-dev-secret", "JWT secret key")
	fs.StringVar(&cfg.Hardware.Driver, "hw", "stub", "hardware driver: stub, escpos or bridge")
	fs.StringVar(&cfg.Hardware.Addr, "hw-addr", "", "printer host:port or print bridge URL")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg.Auth.TokenTTL = 12 * time.Hour
	cfg.Service.RateHistoryLimit = 50
	cfg.Hardware.Enabled = true
	cfg.Hardware.Attempts = 3
	cfg.Hardware.Backoff = time.Second

	// строки
	for env, dst := range map[string]*string{
		"RUN_ADDRESS":     &cfg.Handler.ServerAddr,
		"DATABASE_URI":    &cfg.Store.DBDsn,
		"LOG_LEVEL":       &cfg.Logger.LogLevel,
		"JWT_SECRET_KEY":  &cfg.Auth.SecretKey,
		"HARDWARE_DRIVER": &cfg.Hardware.Driver,
		"HARDWARE_ADDR":   &cfg.Hardware.Addr,
	} {
		if v, ok := lookupEnv(env); ok && v != "" {
			*dst = v
		}
	}

	// остальные типы
	var err error
	if v, ok := lookupEnv("HARDWARE_ENABLED"); ok && v != "" {
		if cfg.Hardware.Enabled, err = strconv.ParseBool(v); err != nil {
			return Config{}, fmt.Errorf("HARDWARE_ENABLED: %w", err)
		}
	}
	if v, ok := lookupEnv("HARDWARE_PRINT_RECEIPT"); ok && v != "" {
		if cfg.Hardware.PrintReceipt, err = strconv.ParseBool(v); err != nil {
			return Config{}, fmt.Errorf("HARDWARE_PRINT_RECEIPT: %w", err)
		}
	}
	if v, ok := lookupEnv("HARDWARE_ATTEMPTS"); ok && v != "" {
		if cfg.Hardware.Attempts, err = strconv.Atoi(v); err != nil || cfg.Hardware.Attempts < 1 {
			return Config{}, fmt.Errorf("HARDWARE_ATTEMPTS: must be a positive integer, got %q", v)
		}
	}
	if v, ok := lookupEnv("HARDWARE_BACKOFF"); ok && v != "" {
		if cfg.Hardware.Backoff, err = time.ParseDuration(v); err != nil {
			return Config{}, fmt.Errorf("HARDWARE_BACKOFF: %w", err)
		}
	}
	if v, ok := lookupEnv("TOKEN_TTL"); ok && v != "" {
		if cfg.Auth.TokenTTL, err = time.ParseDuration(v); err != nil {
			return Config{}, fmt.Errorf("TOKEN_TTL: %w", err)
		}
	}
	if v, ok := lookupEnv("RATE_HISTORY_LIMIT"); ok && v != "" {
		if cfg.Service.RateHistoryLimit, err = strconv.Atoi(v); err != nil {
			return Config{}, fmt.Errorf("RATE_HISTORY_LIMIT: %w", err)
		}
	}

	return cfg, nil
}
