package hardware

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/iurnickita/goldpos/internal/hardware/bridgeclient"
	"github.com/iurnickita/goldpos/internal/hardware/config"
)

// Device - кассовый ящик и чековый принтер. Любая ошибка считается
// временной и может быть повторена.
type Device interface {
	OpenCashDrawer(ctx context.Context) error
	PrintReceipt(ctx context.Context, content string) error
}

const (
	DriverStub   = "stub"
	DriverEscPos = "escpos"
	DriverBridge = "bridge"
)

var (
	ErrHardwareUnavailable = errors.New("hardware unavailable")
	ErrUnknownDriver       = errors.New("unknown hardware driver")
)

func NewDevice(cfg config.Config, zaplog *zap.Logger) (Device, error) {
	switch cfg.Driver {
	case "", DriverStub:
		return NewStub(zaplog), nil
	case DriverEscPos:
		if cfg.Addr == "" {
			return nil, fmt.Errorf("%s driver: printer address is empty", DriverEscPos)
		}
		return NewEscPos(cfg.Addr), nil
	case DriverBridge:
		if cfg.Addr == "" {
			return nil, fmt.Errorf("%s driver: bridge address is empty", DriverBridge)
		}
		return bridgeclient.NewBridgeClient(cfg.Addr), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}

// stub - имитация для dev/test окружений
type stub struct {
	zaplog *zap.Logger
}

func NewStub(zaplog *zap.Logger) Device {
	return &stub{zaplog: zaplog}
}

func (s *stub) OpenCashDrawer(_ context.Context) error {
	s.zaplog.Info("[SIMULATION] cash drawer opened")
	return nil
}

func (s *stub) PrintReceipt(_ context.Context, content string) error {
	s.zaplog.Info("[SIMULATION] printing receipt", zap.String("content", content))
	return nil
}
