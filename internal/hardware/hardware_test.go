package hardware

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iurnickita/goldpos/internal/hardware/config"
)

type fakeDevice struct {
	failDrawer int // сколько первых попыток открыть ящик завершатся ошибкой
	drawer     int
	printed    []string
}

func (d *fakeDevice) OpenCashDrawer(_ context.Context) error {
	d.drawer++
	if d.drawer <= d.failDrawer {
		return errors.New("printer offline")
	}
	return nil
}

func (d *fakeDevice) PrintReceipt(_ context.Context, content string) error {
	d.printed = append(d.printed, content)
	return nil
}

func testConfig() config.Config {
	return config.Config{Enabled: true, Attempts: 3, Backoff: time.Millisecond}
}

func TestTriggerExhausted(t *testing.T) {
	device := &fakeDevice{failDrawer: 100}
	trigger := NewTrigger(testConfig(), device, zap.NewNop())

	err := trigger.Fire(context.Background(), "sale-1", "")
	require.ErrorIs(t, err, ErrHardwareUnavailable)
	require.Equal(t, 3, device.drawer)
}

func TestTriggerRecovers(t *testing.T) {
	device := &fakeDevice{failDrawer: 2}
	cfg := testConfig()
	cfg.PrintReceipt = true
	trigger := NewTrigger(cfg, device, zap.NewNop())

	err := trigger.Fire(context.Background(), "sale-1", "receipt")
	require.NoError(t, err)
	require.Equal(t, 3, device.drawer)
	require.Equal(t, []string{"receipt"}, device.printed)
}

func TestTriggerDisabled(t *testing.T) {
	device := &fakeDevice{failDrawer: 100}
	cfg := testConfig()
	cfg.Enabled = false
	trigger := NewTrigger(cfg, device, zap.NewNop())

	require.NoError(t, trigger.Fire(context.Background(), "sale-1", "receipt"))
	require.Zero(t, device.drawer)
}

func TestTriggerDefaults(t *testing.T) {
	trigger := NewTrigger(config.Config{Enabled: true}, &fakeDevice{}, zap.NewNop())
	require.Equal(t, DefaultAttempts, trigger.cfg.Attempts)
	require.Equal(t, DefaultBackoff, trigger.cfg.Backoff)
}

func TestNewDevice(t *testing.T) {
	device, err := NewDevice(config.Config{}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, device.OpenCashDrawer(context.Background()))

	_, err = NewDevice(config.Config{Driver: DriverEscPos}, zap.NewNop())
	require.Error(t, err)

	_, err = NewDevice(config.Config{Driver: "lpt"}, zap.NewNop())
	require.ErrorIs(t, err, ErrUnknownDriver)
}

func TestEscPosSendsDrawerKick(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	received := make(chan []byte, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		data, _ := io.ReadAll(conn)
		received <- data
	}()

	printer := NewEscPos(ln.Addr().String())
	require.NoError(t, printer.OpenCashDrawer(context.Background()))

	select {
	case data := <-received:
		require.Equal(t, cmdOpenDrawer, data)
	case <-time.After(2 * time.Second):
		t.Fatal("printer got nothing")
	}
}

func TestEscPosOffline(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	require.Error(t, NewEscPos(addr).OpenCashDrawer(context.Background()))
}
