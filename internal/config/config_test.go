package config

import (
	"flag"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func env(values map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func TestParseDefaults(t *testing.T) {
	cfg, err := parse(flag.NewFlagSet("test", flag.ContinueOnError), nil, env(nil))
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.Handler.ServerAddr)
	require.Empty(t, cfg.Store.DBDsn)
	require.Equal(t, "stub", cfg.Hardware.Driver)
	require.True(t, cfg.Hardware.Enabled)
	require.Equal(t, 3, cfg.Hardware.Attempts)
	require.Equal(t, time.Second, cfg.Hardware.Backoff)
	require.False(t, cfg.Hardware.PrintReceipt)
	require.Equal(t, 50, cfg.Service.RateHistoryLimit)
}

func TestParseEnvOverFlags(t *testing.T) {
	cfg, err := parse(flag.NewFlagSet("test", flag.ContinueOnError),
		[]string{"-a", ":9090", "-d", "postgres://flag", "-hw", "escpos"},
		env(map[string]string{
			"DATABASE_URI":           "postgres://env",
			"HARDWARE_ENABLED":       "false",
			"HARDWARE_ATTEMPTS":      "5",
			"HARDWARE_BACKOFF":       "250ms",
			"HARDWARE_PRINT_RECEIPT": "true",
		}))
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.Handler.ServerAddr)
	require.Equal(t, "postgres://env", cfg.Store.DBDsn)
	require.Equal(t, "escpos", cfg.Hardware.Driver)
	require.False(t, cfg.Hardware.Enabled)
	require.Equal(t, 5, cfg.Hardware.Attempts)
	require.Equal(t, 250*time.Millisecond, cfg.Hardware.Backoff)
	require.True(t, cfg.Hardware.PrintReceipt)
}

func TestParseBadEnv(t *testing.T) {
	_, err := parse(flag.NewFlagSet("test", flag.ContinueOnError), nil,
		env(map[string]string{"HARDWARE_ATTEMPTS": "0"}))
	require.Error(t, err)

	_, err = parse(flag.NewFlagSet("test", flag.ContinueOnError), nil,
		env(map[string]string{"HARDWARE_BACKOFF": "soon"}))
	require.Error(t, err)
}
