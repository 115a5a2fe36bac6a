package config

import "time"

type Config struct {
	Enabled      bool
	Driver       string // stub | escpos | bridge
	Addr         string // host:port принтера или URL моста печати
	Attempts     int
	Backoff      time.Duration
	PrintReceipt bool
}
