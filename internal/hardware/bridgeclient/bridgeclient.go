package bridgeclient

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// Мост печати - локальный HTTP-сервис рядом с принтером,
// принимает команды ящика и текст чека

// JSON запрос печати
type ReceiptRequest struct {
	Content string `json:"content"`
	Cut     bool   `json:"cut"`
}

const (
	PathDrawerOpen = "/api/drawer/open"
	PathReceipt    = "/api/receipt"
)

type BridgeClient struct {
	serviceAddr string
	client      *resty.Client
}

func NewBridgeClient(serviceAddr string) *BridgeClient {
	return &BridgeClient{
		serviceAddr: serviceAddr,
		client:      resty.New().SetTimeout(5 * time.Second),
	}
}

func (bridge *BridgeClient) OpenCashDrawer(ctx context.Context) error {
	setreq := bridge.client.R().SetContext(ctx)
	setreq.Method = http.MethodPost
	setreq.URL = bridge.serviceAddr + PathDrawerOpen
	setresp, err := setreq.Send()
	if err != nil {
		return err
	}
	return checkStatus(setresp)
}

func (bridge *BridgeClient) PrintReceipt(ctx context.Context, content string) error {
	setreq := bridge.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(ReceiptRequest{Content: content, Cut: true})
	setreq.Method = http.MethodPost
	setreq.URL = bridge.serviceAddr + PathReceipt
	setresp, err := setreq.Send()
	if err != nil {
		return err
	}
	return checkStatus(setresp)
}

func checkStatus(setresp *resty.Response) error {
	switch setresp.StatusCode() {
	case http.StatusOK, http.StatusAccepted, http.StatusNoContent:
		return nil
	default:
		return fmt.Errorf("print bridge request status: %d", setresp.StatusCode())
	}
}
