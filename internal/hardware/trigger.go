package hardware

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/iurnickita/goldpos/internal/hardware/config"
)

const (
	DefaultAttempts = 3
	DefaultBackoff  = time.Second
)

// Trigger - побочное действие после фиксации продажи.
// Ошибки повторяются с фиксированной паузой и никогда не откатывают продажу.
type Trigger struct {
	device Device
	cfg    config.Config
	zaplog *zap.Logger
}

func NewTrigger(cfg config.Config, device Device, zaplog *zap.Logger) *Trigger {
	if cfg.Attempts <= 0 {
		cfg.Attempts = DefaultAttempts
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = DefaultBackoff
	}
	return &Trigger{device: device, cfg: cfg, zaplog: zaplog}
}

// Fire открывает ящик и, если включено, печатает чек.
// Возвращает ErrHardwareUnavailable, когда попытки исчерпаны.
func (t *Trigger) Fire(ctx context.Context, saleID string, receipt string) error {
	if !t.cfg.Enabled {
		t.zaplog.Info("hardware disabled in settings, skipping cash drawer and printer",
			zap.String("sale", saleID))
		return nil
	}

	t.zaplog.Info("attempting hardware trigger", zap.String("sale", saleID))
	err := t.withRetry(ctx, "cash drawer", saleID, t.device.OpenCashDrawer)
	if err != nil {
		return err
	}

	if t.cfg.PrintReceipt && receipt != "" {
		return t.withRetry(ctx, "receipt printer", saleID, func(ctx context.Context) error {
			return t.device.PrintReceipt(ctx, receipt)
		})
	}
	return nil
}

func (t *Trigger) withRetry(ctx context.Context, what string, saleID string, fn func(ctx context.Context) error) error {
	attempt := 0
	backoff := retry.WithMaxRetries(uint64(t.cfg.Attempts-1), retry.NewConstant(t.cfg.Backoff))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if err := fn(ctx); err != nil {
			t.zaplog.Warn("hardware attempt failed",
				zap.String("device", what),
				zap.String("sale", saleID),
				zap.Int("attempt", attempt),
				zap.Error(err))
			return retry.RetryableError(err)
		}
		if attempt > 1 {
			t.zaplog.Info("hardware attempt succeeded",
				zap.String("device", what),
				zap.String("sale", saleID),
				zap.Int("attempt", attempt))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %s after %d attempts: %w", ErrHardwareUnavailable, what, attempt, err)
	}
	return nil
}
