package hardware

import (
	"context"
	"net"
	"time"
)

// ESC/POS команды
var (
	// ESC p 0 25 250: импульс на ящик (pin 2, 50ms вкл, 500ms выкл)
	cmdOpenDrawer = []byte{0x1B, 0x70, 0x00, 0x19, 0xFA}
	// GS V 66 0: отрезка бумаги
	cmdCutPaper = []byte{0x1D, 0x56, 0x42, 0x00}
)

const escPosTimeout = 3 * time.Second

// escPos - сетевой принтер в raw-режиме (обычно порт 9100),
// ящик подключен к принтеру
type escPos struct {
	addr string
}

func NewEscPos(addr string) Device {
	return &escPos{addr: addr}
}

func (p *escPos) OpenCashDrawer(ctx context.Context) error {
	return p.send(ctx, cmdOpenDrawer)
}

func (p *escPos) PrintReceipt(ctx context.Context, content string) error {
	data := make([]byte, 0, len(content)+len(cmdCutPaper)+1)
	data = append(data, content...)
	data = append(data, '\n')
	data = append(data, cmdCutPaper...)
	return p.send(ctx, data)
}

func (p *escPos) send(ctx context.Context, data []byte) error {
	dialer := net.Dialer{Timeout: escPosTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", p.addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err = conn.SetWriteDeadline(time.Now().Add(escPosTimeout)); err != nil {
		return err
	}
	_, err = conn.Write(data)
	return err
}
