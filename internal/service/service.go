package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/iurnickita/goldpos/internal/checkout"
	"github.com/iurnickita/goldpos/internal/inventory"
	"github.com/iurnickita/goldpos/internal/model"
	"github.com/iurnickita/goldpos/internal/rates"
	"github.com/iurnickita/goldpos/internal/service/config"
	"github.com/iurnickita/goldpos/internal/store"
	"github.com/iurnickita/goldpos/internal/tradein"
)

// Service - фасад ядра для HTTP-слоя
type Service interface {
	Checkout(ctx context.Context, req checkout.Request) (checkout.Result, error)
	GetSale(ctx context.Context, id string) (model.Sale, []model.TradeIn, error)
	Scan(ctx context.Context, barcode string) (model.Item, error)
	AddItem(ctx context.Context, item model.Item) (model.Item, error)
	SetRate(ctx context.Context, rate24k, rate21k, rate18k decimal.Decimal) (model.Rate, error)
	GetLatestRate(ctx context.Context) (model.Rate, error)
	GetRateHistory(ctx context.Context, limit int) ([]model.Rate, error)
	BuyBack(ctx context.Context, req tradein.Request) (model.TradeIn, error)
	GetScrapInventory(ctx context.Context) ([]model.ScrapBalance, error)
}

// Ошибки для HTTP-слоя. Исходная ошибка сохраняется в цепочке,
// чтобы ответ называл штрихкод.
var (
	ErrInsufficientData = errors.New("insufficient data")
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrAlreadyExists    = errors.New("already exists")
)

type service struct {
	cfg       config.Config
	ledger    rates.Ledger
	inventory inventory.Inventory
	valuator  tradein.Valuator
	checkout  checkout.Orchestrator
	zaplog    *zap.Logger
}

func NewService(cfg config.Config, store store.Store, trigger checkout.Trigger, zaplog *zap.Logger) Service {
	valuator := tradein.NewValuator(store)
	return &service{
		cfg:       cfg,
		ledger:    rates.NewLedger(store),
		inventory: inventory.NewInventory(store),
		valuator:  valuator,
		checkout:  checkout.NewCheckout(store, valuator, trigger, zaplog),
		zaplog:    zaplog,
	}
}

func (service *service) Checkout(ctx context.Context, req checkout.Request) (checkout.Result, error) {
	if req.Cashier == "" {
		return checkout.Result{}, ErrInsufficientData
	}
	result, err := service.checkout.Checkout(ctx, req)
	if err != nil {
		return checkout.Result{}, translate(err)
	}
	return result, nil
}

func (service *service) GetSale(ctx context.Context, id string) (model.Sale, []model.TradeIn, error) {
	if id == "" {
		return model.Sale{}, nil, ErrInsufficientData
	}
	sale, err := service.checkout.GetSale(ctx, id)
	if err != nil {
		return model.Sale{}, nil, translate(err)
	}
	tradeIns, err := service.valuator.GetBySale(ctx, id)
	if err != nil {
		return model.Sale{}, nil, err
	}
	return sale, tradeIns, nil
}

func (service *service) Scan(ctx context.Context, barcode string) (model.Item, error) {
	if barcode == "" {
		return model.Item{}, ErrInsufficientData
	}
	item, err := service.inventory.Scan(ctx, barcode)
	if err != nil {
		return model.Item{}, translate(err)
	}
	return item, nil
}

func (service *service) AddItem(ctx context.Context, item model.Item) (model.Item, error) {
	item, err := service.inventory.Add(ctx, item)
	if err != nil {
		return model.Item{}, translate(err)
	}
	service.zaplog.Info("item added",
		zap.String("barcode", item.Barcode),
		zap.String("purity", string(item.Data.Purity)))
	return item, nil
}

func (service *service) SetRate(ctx context.Context, rate24k, rate21k, rate18k decimal.Decimal) (model.Rate, error) {
	rate, err := service.ledger.SetRate(ctx, rate24k, rate21k, rate18k)
	if err != nil {
		return model.Rate{}, translate(err)
	}
	service.zaplog.Info("gold rate updated",
		zap.String("id", rate.ID),
		zap.String("24k", rate.Data.Rate24k.StringFixed(model.MoneyPlaces)),
		zap.String("21k", rate.Data.Rate21k.StringFixed(model.MoneyPlaces)),
		zap.String("18k", rate.Data.Rate18k.StringFixed(model.MoneyPlaces)))
	return rate, nil
}

func (service *service) GetLatestRate(ctx context.Context) (model.Rate, error) {
	rate, err := service.ledger.GetLatestRate(ctx)
	if err != nil {
		return model.Rate{}, translate(err)
	}
	return rate, nil
}

func (service *service) GetRateHistory(ctx context.Context, limit int) ([]model.Rate, error) {
	if limit <= 0 {
		limit = service.cfg.RateHistoryLimit
	}
	return service.ledger.GetHistory(ctx, limit)
}

func (service *service) BuyBack(ctx context.Context, req tradein.Request) (model.TradeIn, error) {
	tradeIn, err := service.valuator.BuyBack(ctx, req)
	if err != nil {
		return model.TradeIn{}, translate(err)
	}
	service.zaplog.Info("old gold bought",
		zap.String("id", tradeIn.ID),
		zap.String("purity", string(tradeIn.Data.Purity)),
		zap.String("weight", tradeIn.Data.Weight.StringFixed(model.WeightPlaces)),
		zap.String("value", tradeIn.Data.TotalValue.StringFixed(model.MoneyPlaces)))
	return tradeIn, nil
}

func (service *service) GetScrapInventory(ctx context.Context) ([]model.ScrapBalance, error) {
	return service.valuator.GetBalances(ctx)
}

// translate - доменная ошибка в ошибку фасада
func translate(err error) error {
	switch {
	case errors.Is(err, checkout.ErrEmptyCart),
		errors.Is(err, checkout.ErrBlankBarcode),
		errors.Is(err, checkout.ErrDuplicateItem),
		errors.Is(err, checkout.ErrInvalidGoldRate),
		errors.Is(err, tradein.ErrInvalidTradeIn),
		errors.Is(err, rates.ErrInvalidRate),
		errors.Is(err, inventory.ErrInvalidItem),
		errors.Is(err, model.ErrUnknownPurity):
		return fmt.Errorf("%w: %w", ErrInsufficientData, err)
	case errors.Is(err, inventory.ErrProductNotFound),
		errors.Is(err, checkout.ErrSaleNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, inventory.ErrProductNotAvailable),
		errors.Is(err, inventory.ErrProductUnavailable),
		errors.Is(err, rates.ErrRateNotConfigured):
		return fmt.Errorf("%w: %w", ErrConflict, err)
	case errors.Is(err, inventory.ErrAlreadyExists):
		return fmt.Errorf("%w: %w", ErrAlreadyExists, err)
	default:
		return err
	}
}
